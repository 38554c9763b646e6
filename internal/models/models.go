// Package models defines the durable entities of a match: games, players,
// card definitions and instances, turns, and the action ledger rows.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Location identifies the pile a card instance currently resides in.
type Location string

// The seven places a card instance can be.
const (
	LocationDeck         Location = "DECK"
	LocationDraft        Location = "DRAFT"
	LocationDiscard      Location = "DISCARD"
	LocationHand         Location = "HAND"
	LocationSecretSet    Location = "SECRET_SET"
	LocationDetectiveSet Location = "DETECTIVE_SET"
	LocationRemoved      Location = "REMOVED"
)

// Owned reports whether instances in this location carry an owner.
func (l Location) Owned() bool {
	switch l {
	case LocationHand, LocationSecretSet, LocationDetectiveSet:
		return true
	}
	return false
}

// CardType tags a card definition with its rules archetype.
type CardType string

// Card type tags.
const (
	CardTypeEvent     CardType = "EVENT"
	CardTypeSecret    CardType = "SECRET"
	CardTypeInstant   CardType = "INSTANT"
	CardTypeDevious   CardType = "DEVIOUS"
	CardTypeDetective CardType = "DETECTIVE"
	CardTypeEnd       CardType = "END"
)

// TurnStatus is the lifecycle state of a turn.
type TurnStatus string

// Turn lifecycle states. Exactly one turn per game is IN_PROGRESS.
const (
	TurnInProgress TurnStatus = "IN_PROGRESS"
	TurnFinished   TurnStatus = "FINISHED"
)

// ActionType classifies a ledger row.
type ActionType string

// Ledger action types.
const (
	ActionDiscard      ActionType = "DISCARD"
	ActionDraw         ActionType = "DRAW"
	ActionEventCard    ActionType = "EVENT_CARD"
	ActionDetectiveSet ActionType = "DETECTIVE_SET"
	ActionAddDetective ActionType = "ADD_DETECTIVE"
	ActionInstant      ActionType = "INSTANT"
	ActionRevealSecret ActionType = "REVEAL_SECRET"
	ActionHideSecret   ActionType = "HIDE_SECRET"
	ActionVote         ActionType = "VOTE"
	ActionCardExchange ActionType = "CARD_EXCHANGE"
	ActionMoveCard     ActionType = "MOVE_CARD"
	ActionStealSet     ActionType = "STEAL_SET"
)

// ActionResult is the outcome recorded on a ledger row. A PENDING row with
// no parent marks an interaction awaiting a follow-up request.
type ActionResult string

// Action outcomes.
const (
	ResultPending   ActionResult = "PENDING"
	ResultSuccess   ActionResult = "SUCCESS"
	ResultCancelled ActionResult = "CANCELLED"
	ResultFailed    ActionResult = "FAILED"
)

// CardDefinition is a static catalog entry, immutable for the lifetime of a
// game. Copies holds how many instances of the card enter the deck.
type CardDefinition struct {
	ID     int
	Name   string
	Type   CardType
	Copies int
}

// CardInstance is one copy of a CardDefinition inside one game. Owner is
// uuid.Nil unless Location.Owned() is true.
type CardInstance struct {
	ID       uuid.UUID
	GameID   uuid.UUID
	DefID    int
	Location Location
	Position int
	Owner    uuid.UUID
	Hidden   bool
}

// Player is a seat in a game. Order is the immutable turn-order index
// assigned once at game start.
type Player struct {
	ID        uuid.UUID
	Name      string
	Birthdate time.Time
	Order     int
	Host      bool
	Connected bool
}

// Game is an active match.
type Game struct {
	ID         uuid.UUID
	TurnHolder uuid.UUID
	Finished   bool
}

// Turn is one player's slot in the turn sequence. ID is the per-game index
// of the turn, Number its 1-based sequence number.
type Turn struct {
	ID        int
	GameID    uuid.UUID
	Number    int
	Player    uuid.UUID
	Status    TurnStatus
	StartedAt time.Time
}

// NoAction is the nil value for intra-ledger references.
const NoAction = -1

// MaxActionCards caps the card instance references a single row may carry.
const MaxActionCards = 4

// Action is one ledger row. Parent and TriggeredBy are indices into the
// per-game action arena (NoAction when absent); by construction they always
// reference earlier rows, so the reference forest is acyclic. Rows are never
// deleted.
type Action struct {
	ID          int
	GameID      uuid.UUID
	TurnID      int
	Actor       uuid.UUID
	Type        ActionType
	Name        string
	Result      ActionResult
	Parent      int
	TriggeredBy int
	Source      uuid.UUID
	Target      uuid.UUID
	Cards       []uuid.UUID
	CreatedAt   time.Time
}
