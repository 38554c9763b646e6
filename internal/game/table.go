package game

import (
	"sort"

	"github.com/google/uuid"

	"github.com/cluefall/cluefall/internal/models"
)

// CardMutation records the post-state of one card move for the persistence
// batch. Every mutating table operation appends to the journal; the match
// flushes the journal together with the ledger rows of the same command.
type CardMutation struct {
	Card     uuid.UUID
	DefID    int
	Location models.Location
	Position int
	Owner    uuid.UUID
	Hidden   bool
}

// Table is the card location store of one game: every card instance, indexed
// by id, plus the immutable definition catalog. All mutations go through the
// state machine methods below so the position, owner, and visibility
// invariants hold regardless of caller. Not safe for concurrent use; the
// owning Match serializes access.
type Table struct {
	gameID  uuid.UUID
	defs    map[int]models.CardDefinition
	cards   map[uuid.UUID]*models.CardInstance
	journal []CardMutation
}

// NewTable creates an empty table for a game over the given catalog.
func NewTable(gameID uuid.UUID, catalog []models.CardDefinition) *Table {
	defs := make(map[int]models.CardDefinition, len(catalog))
	for _, d := range catalog {
		defs[d.ID] = d
	}
	return &Table{
		gameID: gameID,
		defs:   defs,
		cards:  make(map[uuid.UUID]*models.CardInstance),
	}
}

// DefaultHidden is the destination-dependent visibility default: the draft
// row and the discard pile are face-up, removed cards have nothing left to
// hide, and everything else enters face-down unless an effect reveals it.
func DefaultHidden(to models.Location) bool {
	switch to {
	case models.LocationDraft, models.LocationDiscard, models.LocationRemoved:
		return false
	}
	return true
}

// AddInstance creates a card instance during dealing. Position and hidden
// are taken as given; owner must be uuid.Nil unless the location is owned.
func (t *Table) AddInstance(defID int, loc models.Location, position int, owner uuid.UUID, hidden bool) *models.CardInstance {
	inst := &models.CardInstance{
		ID:       uuid.New(),
		GameID:   t.gameID,
		DefID:    defID,
		Location: loc,
		Position: position,
		Owner:    owner,
		Hidden:   hidden,
	}
	if !loc.Owned() {
		inst.Owner = uuid.Nil
	}
	t.cards[inst.ID] = inst
	t.record(inst)
	return inst
}

// Card returns the instance with the given id, or ErrCardNotFound.
func (t *Table) Card(id uuid.UUID) (*models.CardInstance, error) {
	inst, ok := t.cards[id]
	if !ok {
		return nil, ErrCardNotFound
	}
	return inst, nil
}

// Definition resolves an instance's catalog entry.
func (t *Table) Definition(inst *models.CardInstance) models.CardDefinition {
	return t.defs[inst.DefID]
}

// NameOf is a shorthand for the instance's definition name.
func (t *Table) NameOf(inst *models.CardInstance) string {
	return t.defs[inst.DefID].Name
}

// DefinitionByName looks a catalog entry up by its card name.
func (t *Table) DefinitionByName(name string) (models.CardDefinition, bool) {
	for _, d := range t.defs {
		if d.Name == name {
			return d, true
		}
	}
	return models.CardDefinition{}, false
}

// MoveOverride carries optional overrides for Move. Nil fields fall back to
// the destination defaults: append position, DefaultHidden visibility, and
// owner cleared or kept depending on the destination.
type MoveOverride struct {
	Position *int
	Owner    *uuid.UUID
	Hidden   *bool
}

// Move transitions a card instance to another location, applying the
// position/owner/visibility defaults unless overridden. REMOVED is terminal.
func (t *Table) Move(id uuid.UUID, to models.Location, ov MoveOverride) (*models.CardInstance, error) {
	inst, ok := t.cards[id]
	if !ok {
		return nil, ErrCardNotFound
	}
	if inst.Location == models.LocationRemoved {
		return nil, ErrInvalidTransition
	}

	owner := uuid.Nil
	if to.Owned() {
		switch {
		case ov.Owner != nil:
			owner = *ov.Owner
		case inst.Owner != uuid.Nil:
			owner = inst.Owner
		default:
			return nil, ErrInvalidTransition
		}
	}

	position := 0
	if ov.Position != nil {
		position = *ov.Position
	} else {
		position = t.MaxPosition(to, t.positionScope(to, owner)) + 1
	}

	hidden := DefaultHidden(to)
	if ov.Hidden != nil {
		hidden = *ov.Hidden
	}

	inst.Location = to
	inst.Position = position
	inst.Owner = owner
	inst.Hidden = hidden
	t.record(inst)
	return inst, nil
}

// positionScope returns the owner filter used when appending to a location:
// shared piles order globally, owned piles per owner.
func (t *Table) positionScope(loc models.Location, owner uuid.UUID) uuid.UUID {
	if loc.Owned() {
		return owner
	}
	return uuid.Nil
}

// SetHidden flips visibility in place without touching pile or position.
func (t *Table) SetHidden(id uuid.UUID, hidden bool) (*models.CardInstance, error) {
	inst, ok := t.cards[id]
	if !ok {
		return nil, ErrCardNotFound
	}
	inst.Hidden = hidden
	t.record(inst)
	return inst, nil
}

// SetOwner reassigns ownership in place, keeping location, position, and
// visibility. Only valid inside owned locations.
func (t *Table) SetOwner(id uuid.UUID, owner uuid.UUID) (*models.CardInstance, error) {
	inst, ok := t.cards[id]
	if !ok {
		return nil, ErrCardNotFound
	}
	if !inst.Location.Owned() {
		return nil, ErrInvalidTransition
	}
	inst.Owner = owner
	t.record(inst)
	return inst, nil
}

// Draw moves up to count instances with the lowest deck positions into the
// owner's hand, face-down. Returning fewer than requested is a valid
// outcome, never an error; the caller interprets a short draw as a possible
// end-of-game signal.
func (t *Table) Draw(count int, owner uuid.UUID) []*models.CardInstance {
	pile := t.InLocation(models.LocationDeck, uuid.Nil)
	if count > len(pile) {
		count = len(pile)
	}
	drawn := make([]*models.CardInstance, 0, count)
	for _, inst := range pile[:count] {
		moved, _ := t.Move(inst.ID, models.LocationHand, MoveOverride{Owner: &owner})
		drawn = append(drawn, moved)
	}
	return drawn
}

// Discard moves the given instances to the discard pile in caller order,
// each appended at the running maximum position, owner cleared, face-up.
func (t *Table) Discard(ids []uuid.UUID) ([]*models.CardInstance, error) {
	out := make([]*models.CardInstance, 0, len(ids))
	for _, id := range ids {
		inst, err := t.Move(id, models.LocationDiscard, MoveOverride{})
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// PeekTop returns up to n instances with the highest positions in a shared
// pile, top first. Read-only.
func (t *Table) PeekTop(loc models.Location, n int) []*models.CardInstance {
	pile := t.InLocation(loc, uuid.Nil)
	if n > len(pile) {
		n = len(pile)
	}
	top := make([]*models.CardInstance, 0, n)
	for i := 0; i < n; i++ {
		top = append(top, pile[len(pile)-1-i])
	}
	return top
}

// Count returns how many instances sit in a location, across owners.
func (t *Table) Count(loc models.Location) int {
	n := 0
	for _, inst := range t.cards {
		if inst.Location == loc {
			n++
		}
	}
	return n
}

// MaxPosition returns the highest position in a location, filtered to one
// owner when owner is not uuid.Nil. Returns -1 for an empty pile so that
// append always lands at max+1.
func (t *Table) MaxPosition(loc models.Location, owner uuid.UUID) int {
	max := -1
	for _, inst := range t.cards {
		if inst.Location != loc {
			continue
		}
		if owner != uuid.Nil && inst.Owner != owner {
			continue
		}
		if inst.Position > max {
			max = inst.Position
		}
	}
	return max
}

// MinPosition mirrors MaxPosition for the low end of a pile; the deck's
// minimum position is its top, since draws consume lowest-first. Returns 0
// for an empty pile.
func (t *Table) MinPosition(loc models.Location, owner uuid.UUID) int {
	min := 0
	found := false
	for _, inst := range t.cards {
		if inst.Location != loc {
			continue
		}
		if owner != uuid.Nil && inst.Owner != owner {
			continue
		}
		if !found || inst.Position < min {
			min = inst.Position
			found = true
		}
	}
	return min
}

// InLocation returns the instances in a location sorted by ascending
// position, filtered to one owner when owner is not uuid.Nil.
func (t *Table) InLocation(loc models.Location, owner uuid.UUID) []*models.CardInstance {
	var out []*models.CardInstance
	for _, inst := range t.cards {
		if inst.Location != loc {
			continue
		}
		if owner != uuid.Nil && inst.Owner != owner {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// SetMembers returns the detective cards a player has at one set position.
// Detective sets share a position: the set number.
func (t *Table) SetMembers(owner uuid.UUID, position int) []*models.CardInstance {
	var out []*models.CardInstance
	for _, inst := range t.cards {
		if inst.Location == models.LocationDetectiveSet && inst.Owner == owner && inst.Position == position {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// TakeJournal returns the mutations staged since the last call and resets
// the journal. The match commits them atomically with the ledger rows.
func (t *Table) TakeJournal() []CardMutation {
	j := t.journal
	t.journal = nil
	return j
}

// RestoreJournal puts drained mutations back at the front of the journal
// after a failed commit, so the next batch retries them in order.
func (t *Table) RestoreJournal(entries []CardMutation) {
	if len(entries) == 0 {
		return
	}
	t.journal = append(entries, t.journal...)
}

func (t *Table) record(inst *models.CardInstance) {
	t.journal = append(t.journal, CardMutation{
		Card:     inst.ID,
		DefID:    inst.DefID,
		Location: inst.Location,
		Position: inst.Position,
		Owner:    inst.Owner,
		Hidden:   inst.Hidden,
	})
}
