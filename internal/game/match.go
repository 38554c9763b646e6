package game

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cluefall/cluefall/internal/models"
)

// DraftSize is how many face-up cards the draft row holds while the deck
// can refill it.
const DraftSize = 3

// Recorder persists a card mutation batch and its accompanying ledger rows
// as one atomic unit. A card is never moved without its action logged, and
// vice versa.
type Recorder interface {
	CommitBatch(ctx context.Context, gameID uuid.UUID, cards []CardMutation, actions []models.Action) error
}

// HistoryFn mirrors resolved ledger rows to an external history sink
// (fire-and-forget, e.g. a Redis stream).
type HistoryFn func(models.Action)

// EventType labels an outbound notification.
type EventType string

// Outbound event types.
const (
	EventGameState      EventType = "game_state"
	EventPrivateState   EventType = "private_state"
	EventActionStarted  EventType = "action_started"
	EventActionComplete EventType = "action_complete"
	EventGameFinished   EventType = "game_finished"
)

// Event is the envelope pushed through the broadcast callbacks after every
// mutating command.
type Event struct {
	Type    EventType              `json:"type"`
	Public  *PublicView            `json:"public,omitempty"`
	Private *PrivateView           `json:"private,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Winner pairs a player with the secret role that won them the game.
type Winner struct {
	PlayerID uuid.UUID `json:"playerId"`
	Role     string    `json:"role"`
}

// Match is one running game: the card table, the turn/action ledger, the
// seated players, and the in-flight interaction continuations. Mutating
// operations on a match are serialized by Mu; different matches are fully
// independent. Broadcast callbacks are injected by the transport layer so
// the engine never touches a connection.
type Match struct {
	ID uuid.UUID
	Mu sync.Mutex

	players []*models.Player
	table   *Table
	ledger  *Ledger
	pending map[int]Continuation

	turnHolder uuid.UUID
	finished   bool
	winners    []Winner

	// dealing scratch: leftovers between dealHands and buildDeck
	undealt []models.CardDefinition

	rng *rand.Rand
	log logrus.FieldLogger
	now func() time.Time

	recorder Recorder
	history  HistoryFn

	// BroadcastFn pushes an event to every connected player;
	// BroadcastToPlayerFn to a single one. Both may be nil in tests.
	BroadcastFn         func(Event)
	BroadcastToPlayerFn func(playerID uuid.UUID, ev Event)
}

// Players returns the seated players ordered by turn-order index.
func (m *Match) Players() []*models.Player {
	out := make([]*models.Player, len(m.players))
	copy(out, m.players)
	return out
}

// Finished reports whether the game reached a terminal state.
func (m *Match) Finished() bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.finished
}

// Winners returns the terminal winners list (empty until the game ends, and
// empty forever if the deck ran out on anything but the escape card).
func (m *Match) Winners() []Winner {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]Winner, len(m.winners))
	copy(out, m.winners)
	return out
}

// Turns returns a copy of the turn sequence for terminal snapshots.
func (m *Match) Turns() []models.Turn {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.ledger.Turns()
}

// SetConnected flags a seat's connection state for the projections.
func (m *Match) SetConnected(playerID uuid.UUID, connected bool) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	for _, p := range m.players {
		if p.ID == playerID {
			p.Connected = connected
			return
		}
	}
}

// TurnHolder returns the player currently authorized to act.
func (m *Match) TurnHolder() uuid.UUID {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.turnHolder
}

// player looks a seat up by id. Assumes lock is held by caller.
func (m *Match) player(id uuid.UUID) (*models.Player, error) {
	for _, p := range m.players {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, ErrPlayerNotFound
}

// requireTurn authorizes a mutating command: the game must be running and
// the actor must hold the in-progress turn. Assumes lock is held by caller.
func (m *Match) requireTurn(actor uuid.UUID) error {
	if m.finished {
		return ErrGameFinished
	}
	if _, err := m.player(actor); err != nil {
		return err
	}
	_, err := m.ledger.ActiveTurnFor(actor)
	return err
}

// handCard fetches a card instance and checks it sits in the actor's hand.
// Assumes lock is held by caller.
func (m *Match) handCard(actor, cardID uuid.UUID) (*models.CardInstance, error) {
	inst, err := m.table.Card(cardID)
	if err != nil {
		return nil, err
	}
	if inst.Location != models.LocationHand || inst.Owner != actor {
		return nil, ErrCardNotInHand
	}
	return inst, nil
}

// eventCard is handCard plus a definition check: the instance must be the
// named event/devious card. Assumes lock is held by caller.
func (m *Match) eventCard(actor, cardID uuid.UUID, name string) (*models.CardInstance, error) {
	inst, err := m.handCard(actor, cardID)
	if err != nil {
		return nil, err
	}
	if m.table.NameOf(inst) != name {
		return nil, ErrWrongCard
	}
	return inst, nil
}

// logAction appends a ledger row and mirrors it to the history sink.
// Assumes lock is held by caller.
func (m *Match) logAction(a models.Action) (int, error) {
	if turn := m.ledger.CurrentTurn(); turn != nil {
		a.TurnID = turn.ID
	}
	id, err := m.ledger.Append(a)
	if err != nil {
		return 0, err
	}
	if m.history != nil {
		row, _ := m.ledger.Action(id)
		m.history(row)
	}
	return id, nil
}

// commit flushes the staged card mutations and ledger rows of the current
// command as one atomic batch. Assumes lock is held by caller.
func (m *Match) commit(ctx context.Context) error {
	cards := m.table.TakeJournal()
	actions := m.ledger.TakeJournal()
	if m.recorder == nil || (len(cards) == 0 && len(actions) == 0) {
		return nil
	}
	if err := m.recorder.CommitBatch(ctx, m.ID, cards, actions); err != nil {
		// the rows stay staged so the next batch carries them; memory
		// and storage must not drift apart
		m.table.RestoreJournal(cards)
		m.ledger.RestoreJournal(actions)
		m.log.WithError(err).WithField("game", m.ID).Error("batch commit failed")
		return err
	}
	return nil
}

// broadcastState recomputes and pushes the public view plus one private
// view per seat. Views are derived fresh on every call; nothing is cached
// across mutations. Assumes lock is held by caller.
func (m *Match) broadcastState() {
	if m.BroadcastFn != nil {
		pub := m.publicViewLocked()
		m.BroadcastFn(Event{Type: EventGameState, Public: &pub})
	}
	if m.BroadcastToPlayerFn != nil {
		for _, p := range m.players {
			priv := m.privateViewLocked(p.ID)
			m.BroadcastToPlayerFn(p.ID, Event{Type: EventPrivateState, Private: &priv})
		}
	}
	if m.finished && m.BroadcastFn != nil {
		m.BroadcastFn(Event{
			Type:    EventGameFinished,
			Payload: map[string]interface{}{"winners": m.winners},
		})
	}
}

// Discard moves the given hand cards to the discard pile in the submitted
// order, draws the same number back (short draws are valid and feed the
// end-of-game check), and advances the turn.
func (m *Match) Discard(ctx context.Context, actor uuid.UUID, cardIDs []uuid.UUID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.requireTurn(actor); err != nil {
		return err
	}
	if len(cardIDs) == 0 || !uniqueIDs(cardIDs) {
		return ErrBadSelection
	}
	for _, id := range cardIDs {
		if _, err := m.handCard(actor, id); err != nil {
			return err
		}
	}

	if _, err := m.table.Discard(cardIDs); err != nil {
		return err
	}
	discardID, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionDiscard,
		Result: models.ResultSuccess,
		Parent: models.NoAction, TriggeredBy: models.NoAction,
		Cards: cardIDs,
	})
	if err != nil {
		return err
	}

	drawn := m.table.Draw(len(cardIDs), actor)
	drawnIDs := make([]uuid.UUID, 0, len(drawn))
	for _, inst := range drawn {
		drawnIDs = append(drawnIDs, inst.ID)
	}
	if _, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionDraw,
		Result: models.ResultSuccess,
		Parent: models.NoAction, TriggeredBy: discardID,
		Cards: drawnIDs,
	}); err != nil {
		return err
	}

	m.advanceTurn()
	m.checkEndOfGame(m.table.Count(models.LocationDeck), m.lastName(drawn))

	if err := m.commit(ctx); err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{"game": m.ID, "player": actor, "discarded": len(cardIDs), "drawn": len(drawn)}).Info("discard")
	m.broadcastState()
	return nil
}

// TakeFromDeck draws up to count cards from the deck into the actor's hand.
// Drawing fewer than requested is a valid outcome and may end the game.
func (m *Match) TakeFromDeck(ctx context.Context, actor uuid.UUID, count int) ([]*models.CardInstance, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.requireTurn(actor); err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, ErrBadSelection
	}

	drawn := m.table.Draw(count, actor)
	ids := make([]uuid.UUID, 0, len(drawn))
	for _, inst := range drawn {
		ids = append(ids, inst.ID)
	}
	if _, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionDraw,
		Result: models.ResultSuccess,
		Parent: models.NoAction, TriggeredBy: models.NoAction,
		Cards: ids,
	}); err != nil {
		return nil, err
	}

	m.checkEndOfGame(m.table.Count(models.LocationDeck), m.lastName(drawn))

	if err := m.commit(ctx); err != nil {
		return nil, err
	}
	m.broadcastState()
	return drawn, nil
}

// TakeFromDraft moves one face-up draft card into the actor's hand and
// refills the draft row from the deck. The refill can expose the escape
// card and end the game.
func (m *Match) TakeFromDraft(ctx context.Context, actor, cardID uuid.UUID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.requireTurn(actor); err != nil {
		return err
	}
	inst, err := m.table.Card(cardID)
	if err != nil {
		return err
	}
	if inst.Location != models.LocationDraft {
		return ErrCardNotInPile
	}

	if _, err := m.table.Move(cardID, models.LocationHand, MoveOverride{Owner: &actor}); err != nil {
		return err
	}
	takeID, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionDraw,
		Result: models.ResultSuccess,
		Parent: models.NoAction, TriggeredBy: models.NoAction,
		Cards: []uuid.UUID{cardID},
	})
	if err != nil {
		return err
	}

	exposed := m.refillDraft(takeID)
	m.checkEndOfGame(m.table.Count(models.LocationDeck), exposed)

	if err := m.commit(ctx); err != nil {
		return err
	}
	m.broadcastState()
	return nil
}

// refillDraft tops the draft row back up from the deck, face-up, and
// returns the name of the last card exposed (empty when nothing moved).
// Assumes lock is held by caller.
func (m *Match) refillDraft(triggeredBy int) string {
	exposed := ""
	visible := false
	for m.table.Count(models.LocationDraft) < DraftSize {
		top := m.table.InLocation(models.LocationDeck, uuid.Nil)
		if len(top) == 0 {
			break
		}
		inst, err := m.table.Move(top[0].ID, models.LocationDraft, MoveOverride{Hidden: &visible})
		if err != nil {
			break
		}
		exposed = m.table.NameOf(inst)
		m.logMove(inst.ID, triggeredBy)
	}
	return exposed
}

// logMove appends a MOVE_CARD row for bookkeeping moves triggered by
// another action. Assumes lock is held by caller.
func (m *Match) logMove(cardID uuid.UUID, triggeredBy int) {
	actor := m.turnHolder
	_, _ = m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionMoveCard,
		Result: models.ResultSuccess,
		Parent: models.NoAction, TriggeredBy: triggeredBy,
		Cards: []uuid.UUID{cardID},
	})
}

// SkipTurn discards the actor's lowest-position hand card, draws one
// replacement, and passes the turn.
func (m *Match) SkipTurn(ctx context.Context, actor uuid.UUID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.requireTurn(actor); err != nil {
		return err
	}
	hand := m.table.InLocation(models.LocationHand, actor)
	if len(hand) == 0 {
		return ErrEmptyHand
	}

	if _, err := m.table.Discard([]uuid.UUID{hand[0].ID}); err != nil {
		return err
	}
	skipID, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionDiscard,
		Name:   "Skip Turn",
		Result: models.ResultSuccess,
		Parent: models.NoAction, TriggeredBy: models.NoAction,
		Cards: []uuid.UUID{hand[0].ID},
	})
	if err != nil {
		return err
	}

	drawn := m.table.Draw(1, actor)
	drawnIDs := make([]uuid.UUID, 0, 1)
	for _, inst := range drawn {
		drawnIDs = append(drawnIDs, inst.ID)
	}
	if _, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionDraw,
		Result: models.ResultSuccess,
		Parent: models.NoAction, TriggeredBy: skipID,
		Cards: drawnIDs,
	}); err != nil {
		return err
	}

	m.advanceTurn()
	m.checkEndOfGame(m.table.Count(models.LocationDeck), m.lastName(drawn))

	if err := m.commit(ctx); err != nil {
		return err
	}
	m.broadcastState()
	return nil
}

// FinishTurn passes the turn without playing anything.
func (m *Match) FinishTurn(ctx context.Context, actor uuid.UUID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.requireTurn(actor); err != nil {
		return err
	}
	m.advanceTurn()
	m.checkEndOfGame(m.table.Count(models.LocationDeck), "")

	if err := m.commit(ctx); err != nil {
		return err
	}
	m.broadcastState()
	return nil
}

// lastName returns the definition name of the last instance in a draw, the
// "last exposed card" the end-of-game evaluator inspects.
func (m *Match) lastName(drawn []*models.CardInstance) string {
	if len(drawn) == 0 {
		return ""
	}
	return m.table.NameOf(drawn[len(drawn)-1])
}
