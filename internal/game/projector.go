package game

import (
	"github.com/google/uuid"

	"github.com/cluefall/cluefall/internal/models"
)

// DiscardTopShown is how many face-up discard cards the views surface.
const DiscardTopShown = 3

// CardSummary is a card as one viewer may see it. Name and type are blank
// while the card is face-down for that viewer; every card back looks the
// same.
type CardSummary struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name,omitempty"`
	Type     models.CardType `json:"type,omitempty"`
	Position int             `json:"position"`
	Hidden   bool            `json:"hidden"`
}

// DetectiveSetView groups the face-up members of one detective set.
type DetectiveSetView struct {
	Position int           `json:"position"`
	Cards    []CardSummary `json:"cards"`
}

// SeatView is what everyone can see of one seat: counts, face-up cards,
// and card backs where secrets are still hidden.
type SeatView struct {
	PlayerID      uuid.UUID          `json:"playerId"`
	Name          string             `json:"name"`
	Order         int                `json:"order"`
	Connected     bool               `json:"connected"`
	HandCount     int                `json:"handCount"`
	Secrets       []CardSummary      `json:"secrets"`
	DetectiveSets []DetectiveSetView `json:"detectiveSets"`
	Disgraced     bool               `json:"disgraced"`
}

// PublicView is the shared projection of a match, derived fresh from the
// table and ledger on every broadcast. It never carries a face-down card's
// identity.
type PublicView struct {
	GameID     uuid.UUID     `json:"gameId"`
	TurnHolder uuid.UUID     `json:"turnHolder"`
	TurnNumber int           `json:"turnNumber"`
	DeckCount  int           `json:"deckCount"`
	Draft      []CardSummary `json:"draft"`
	DiscardTop []CardSummary `json:"discardTop"`
	Discarded  int           `json:"discarded"`
	Seats      []SeatView    `json:"seats"`
	Finished   bool          `json:"finished"`
	Winners    []Winner      `json:"winners,omitempty"`
}

// PrivateView supplements the public view for one player: their own hand
// and their own secrets, identities included.
type PrivateView struct {
	PlayerID uuid.UUID     `json:"playerId"`
	Hand     []CardSummary `json:"hand"`
	Secrets  []CardSummary `json:"secrets"`
}

// summarize projects one instance for a viewer. reveal forces the identity
// through even when the card is face-down (the owner looking at their own
// cards).
func (m *Match) summarize(inst *models.CardInstance, reveal bool) CardSummary {
	s := CardSummary{ID: inst.ID, Position: inst.Position, Hidden: inst.Hidden}
	if !inst.Hidden || reveal {
		def := m.table.Definition(inst)
		s.Name = def.Name
		s.Type = def.Type
	}
	return s
}

// PublicView computes the shared projection.
func (m *Match) PublicView() PublicView {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.publicViewLocked()
}

// publicViewLocked assumes lock is held by caller.
func (m *Match) publicViewLocked() PublicView {
	v := PublicView{
		GameID:     m.ID,
		TurnHolder: m.turnHolder,
		DeckCount:  m.table.Count(models.LocationDeck),
		Discarded:  m.table.Count(models.LocationDiscard),
		Finished:   m.finished,
	}
	if len(m.winners) > 0 {
		v.Winners = append([]Winner(nil), m.winners...)
	}
	if turn := m.ledger.CurrentTurn(); turn != nil {
		v.TurnNumber = turn.Number
	} else if turns := m.ledger.Turns(); len(turns) > 0 {
		v.TurnNumber = turns[len(turns)-1].Number
	}
	for _, inst := range m.table.InLocation(models.LocationDraft, uuid.Nil) {
		v.Draft = append(v.Draft, m.summarize(inst, false))
	}
	for _, inst := range m.table.PeekTop(models.LocationDiscard, DiscardTopShown) {
		v.DiscardTop = append(v.DiscardTop, m.summarize(inst, false))
	}
	for _, p := range m.players {
		v.Seats = append(v.Seats, m.seatView(p))
	}
	return v
}

// seatView assumes lock is held by caller.
func (m *Match) seatView(p *models.Player) SeatView {
	seat := SeatView{
		PlayerID:  p.ID,
		Name:      p.Name,
		Order:     p.Order,
		Connected: p.Connected,
		HandCount: len(m.table.InLocation(models.LocationHand, p.ID)),
		Disgraced: m.inDisgrace(p.ID),
	}
	for _, s := range m.table.InLocation(models.LocationSecretSet, p.ID) {
		seat.Secrets = append(seat.Secrets, m.summarize(s, false))
	}
	sets := map[int][]CardSummary{}
	var order []int
	for _, d := range m.table.InLocation(models.LocationDetectiveSet, p.ID) {
		if _, ok := sets[d.Position]; !ok {
			order = append(order, d.Position)
		}
		sets[d.Position] = append(sets[d.Position], m.summarize(d, false))
	}
	for _, pos := range order {
		seat.DetectiveSets = append(seat.DetectiveSets, DetectiveSetView{Position: pos, Cards: sets[pos]})
	}
	return seat
}

// PrivateView computes one player's own-cards projection.
func (m *Match) PrivateView(playerID uuid.UUID) PrivateView {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.privateViewLocked(playerID)
}

// privateViewLocked assumes lock is held by caller.
func (m *Match) privateViewLocked(playerID uuid.UUID) PrivateView {
	v := PrivateView{PlayerID: playerID}
	for _, inst := range m.table.InLocation(models.LocationHand, playerID) {
		v.Hand = append(v.Hand, m.summarize(inst, true))
	}
	for _, inst := range m.table.InLocation(models.LocationSecretSet, playerID) {
		v.Secrets = append(v.Secrets, m.summarize(inst, true))
	}
	return v
}
