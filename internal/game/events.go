package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cluefall/cluefall/internal/models"
)

// How far event effects reach into the discard pile.
const (
	AshesLook        = 5
	EscapeDelayCards = 3
)

// PlayLookIntoAshes plays the event card and offers the actor the top
// discard cards as they lay before the play. The pick arrives through
// PickFromAshes against the returned action id.
func (m *Match) PlayLookIntoAshes(ctx context.Context, actor, cardID uuid.UUID) (int, []uuid.UUID, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.requireTurn(actor); err != nil {
		return 0, nil, err
	}
	if _, err := m.eventCard(actor, cardID, models.CardLookIntoAshes); err != nil {
		return 0, nil, err
	}
	top := m.table.PeekTop(models.LocationDiscard, AshesLook)
	if len(top) == 0 {
		return 0, nil, ErrDiscardEmpty
	}
	offered := make([]uuid.UUID, 0, len(top))
	for _, inst := range top {
		offered = append(offered, inst.ID)
	}

	if _, err := m.table.Discard([]uuid.UUID{cardID}); err != nil {
		return 0, nil, err
	}
	id, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionEventCard,
		Name:   models.CardLookIntoAshes,
		Parent: models.NoAction, TriggeredBy: models.NoAction,
		Cards: []uuid.UUID{cardID},
	})
	if err != nil {
		return 0, nil, err
	}
	m.pending[id] = AshesPick{Offered: offered}

	if err := m.commit(ctx); err != nil {
		return 0, nil, err
	}
	m.broadcastState()
	return id, offered, nil
}

// PickFromAshes takes one of the offered discard cards into the actor's
// hand and resolves the pending play.
func (m *Match) PickFromAshes(ctx context.Context, actor uuid.UUID, actionID int, cardID uuid.UUID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.finished {
		return ErrGameFinished
	}
	if _, err := m.pendingFor(actionID, actor); err != nil {
		return err
	}
	cont, ok := m.pending[actionID].(AshesPick)
	if !ok {
		return ErrActionNotFound
	}
	if !containsID(cont.Offered, cardID) {
		return ErrBadSelection
	}
	inst, err := m.table.Card(cardID)
	if err != nil {
		return err
	}
	if inst.Location != models.LocationDiscard {
		return ErrCardNotInPile
	}

	if _, err := m.table.Move(cardID, models.LocationHand, MoveOverride{Owner: &actor}); err != nil {
		return err
	}
	if _, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionMoveCard,
		Result: models.ResultSuccess,
		Parent: actionID, TriggeredBy: models.NoAction,
		Cards: []uuid.UUID{cardID},
	}); err != nil {
		return err
	}
	if err := m.ledger.Resolve(actionID, models.ResultSuccess); err != nil {
		return err
	}
	delete(m.pending, actionID)

	if err := m.commit(ctx); err != nil {
		return err
	}
	m.broadcastState()
	return nil
}

// PlayEscapeDelay plays the event card, removes it from the game, and
// offers the requested number of top discard cards for reordering onto the
// deck. Count is capped at EscapeDelayCards and the offer is shorter when
// the pile is. The ordering arrives through OrderEscapeDelay.
func (m *Match) PlayEscapeDelay(ctx context.Context, actor, cardID uuid.UUID, count int) (int, []uuid.UUID, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.requireTurn(actor); err != nil {
		return 0, nil, err
	}
	if count < 1 || count > EscapeDelayCards {
		return 0, nil, ErrBadSelection
	}
	if _, err := m.eventCard(actor, cardID, models.CardEscapeDelay); err != nil {
		return 0, nil, err
	}
	top := m.table.PeekTop(models.LocationDiscard, count)
	if len(top) == 0 {
		return 0, nil, ErrDiscardEmpty
	}
	offered := make([]uuid.UUID, 0, len(top))
	for _, inst := range top {
		offered = append(offered, inst.ID)
	}

	// the delay card leaves the game so the deck cannot be padded twice
	// with the same copy
	if _, err := m.table.Move(cardID, models.LocationRemoved, MoveOverride{}); err != nil {
		return 0, nil, err
	}
	id, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionEventCard,
		Name:   models.CardEscapeDelay,
		Parent: models.NoAction, TriggeredBy: models.NoAction,
		Cards: []uuid.UUID{cardID},
	})
	if err != nil {
		return 0, nil, err
	}
	m.pending[id] = EscapeDelay{Offered: offered}

	if err := m.commit(ctx); err != nil {
		return 0, nil, err
	}
	m.broadcastState()
	return id, offered, nil
}

// OrderEscapeDelay pushes the offered discard cards back onto the top of
// the deck in the submitted order: the first id becomes the new deck top.
// The submission must be a full permutation of the offer.
func (m *Match) OrderEscapeDelay(ctx context.Context, actor uuid.UUID, actionID int, ordered []uuid.UUID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.finished {
		return ErrGameFinished
	}
	if _, err := m.pendingFor(actionID, actor); err != nil {
		return err
	}
	cont, ok := m.pending[actionID].(EscapeDelay)
	if !ok {
		return ErrActionNotFound
	}
	if !samePermutation(cont.Offered, ordered) {
		return ErrBadSelection
	}
	// an offered card may have left the pile since step one, e.g. picked
	// up through Look into the Ashes
	for _, id := range ordered {
		inst, err := m.table.Card(id)
		if err != nil {
			return err
		}
		if inst.Location != models.LocationDiscard {
			return ErrCardNotInPile
		}
	}

	min := m.table.MinPosition(models.LocationDeck, uuid.Nil)
	facedown := true
	for i, id := range ordered {
		pos := min - len(ordered) + i
		if _, err := m.table.Move(id, models.LocationDeck, MoveOverride{
			Position: &pos,
			Hidden:   &facedown,
		}); err != nil {
			return err
		}
	}
	if _, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionMoveCard,
		Result: models.ResultSuccess,
		Parent: actionID, TriggeredBy: models.NoAction,
		Cards: ordered,
	}); err != nil {
		return err
	}
	if err := m.ledger.Resolve(actionID, models.ResultSuccess); err != nil {
		return err
	}
	delete(m.pending, actionID)

	if err := m.commit(ctx); err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{"game": m.ID, "player": actor, "cards": len(ordered)}).Info("escape delayed")
	m.broadcastState()
	return nil
}

// PlayOneMore starts the three-step secret-return saga: every face-up
// secret on the table becomes the pool, the actor later picks one and then
// chooses who hides it in their collection.
func (m *Match) PlayOneMore(ctx context.Context, actor, cardID uuid.UUID) (int, []uuid.UUID, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.requireTurn(actor); err != nil {
		return 0, nil, err
	}
	if _, err := m.eventCard(actor, cardID, models.CardOneMore); err != nil {
		return 0, nil, err
	}
	var pool []uuid.UUID
	for _, p := range m.players {
		for _, s := range m.table.InLocation(models.LocationSecretSet, p.ID) {
			if !s.Hidden {
				pool = append(pool, s.ID)
			}
		}
	}
	if len(pool) == 0 {
		return 0, nil, ErrNoRevealedSecrets
	}

	if _, err := m.table.Discard([]uuid.UUID{cardID}); err != nil {
		return 0, nil, err
	}
	id, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionEventCard,
		Name:   models.CardOneMore,
		Parent: models.NoAction, TriggeredBy: models.NoAction,
		Cards: []uuid.UUID{cardID},
	})
	if err != nil {
		return 0, nil, err
	}
	m.pending[id] = SecretReturn{Pool: pool}

	if err := m.commit(ctx); err != nil {
		return 0, nil, err
	}
	m.broadcastState()
	return id, pool, nil
}

// PickOneMoreSecret is step two: the actor picks one revealed secret from
// the pool. The play stays pending until AssignOneMoreSecret.
func (m *Match) PickOneMoreSecret(ctx context.Context, actor uuid.UUID, actionID int, secretID uuid.UUID) ([]uuid.UUID, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.finished {
		return nil, ErrGameFinished
	}
	if _, err := m.pendingFor(actionID, actor); err != nil {
		return nil, err
	}
	cont, ok := m.pending[actionID].(SecretReturn)
	if !ok {
		return nil, ErrActionNotFound
	}
	if cont.Secret != uuid.Nil {
		return nil, ErrBadSelection
	}
	if !containsID(cont.Pool, secretID) {
		return nil, ErrBadSelection
	}
	secret, err := m.table.Card(secretID)
	if err != nil {
		return nil, err
	}
	if secret.Location != models.LocationSecretSet || secret.Hidden {
		return nil, ErrSecretNotRevealed
	}

	recipients := make([]uuid.UUID, 0, len(m.players))
	for _, p := range m.players {
		recipients = append(recipients, p.ID)
	}
	cont.Secret = secretID
	cont.Recipients = recipients
	m.pending[actionID] = cont
	return recipients, nil
}

// AssignOneMoreSecret is step three: the picked secret moves face-down into
// the chosen player's collection and the play resolves.
func (m *Match) AssignOneMoreSecret(ctx context.Context, actor uuid.UUID, actionID int, recipient uuid.UUID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.finished {
		return ErrGameFinished
	}
	if _, err := m.pendingFor(actionID, actor); err != nil {
		return err
	}
	cont, ok := m.pending[actionID].(SecretReturn)
	if !ok {
		return ErrActionNotFound
	}
	if cont.Secret == uuid.Nil {
		return ErrBadSelection
	}
	if !containsID(cont.Recipients, recipient) {
		return ErrBadSelection
	}

	prev, err := m.table.Card(cont.Secret)
	if err != nil {
		return err
	}
	source := prev.Owner
	hidden := true
	if _, err := m.table.Move(cont.Secret, models.LocationSecretSet, MoveOverride{
		Owner:  &recipient,
		Hidden: &hidden,
	}); err != nil {
		return err
	}
	if _, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionMoveCard,
		Result: models.ResultSuccess,
		Parent: actionID, TriggeredBy: models.NoAction,
		Source: source, Target: recipient,
		Cards: []uuid.UUID{cont.Secret},
	}); err != nil {
		return err
	}
	if err := m.ledger.Resolve(actionID, models.ResultSuccess); err != nil {
		return err
	}
	delete(m.pending, actionID)

	if err := m.commit(ctx); err != nil {
		return err
	}
	m.broadcastState()
	return nil
}

// StealSet plays Another Victim! against one of the target's detective
// sets. The whole set changes sides: every member keeps its position and
// only the owner flips to the actor.
func (m *Match) StealSet(ctx context.Context, actor, cardID, target uuid.UUID, setPosition int) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.requireTurn(actor); err != nil {
		return err
	}
	if target == actor {
		return ErrInvalidTargetSelf
	}
	if _, err := m.player(target); err != nil {
		return err
	}
	if _, err := m.eventCard(actor, cardID, models.CardAnotherVictim); err != nil {
		return err
	}
	members := m.table.SetMembers(target, setPosition)
	if len(members) < MinDetectiveSet {
		return ErrSetTooSmall
	}

	if _, err := m.table.Discard([]uuid.UUID{cardID}); err != nil {
		return err
	}
	playID, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionEventCard,
		Name:   models.CardAnotherVictim,
		Result: models.ResultSuccess,
		Parent: models.NoAction, TriggeredBy: models.NoAction,
		Target: target,
		Cards:  []uuid.UUID{cardID},
	})
	if err != nil {
		return err
	}
	stealID, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionStealSet,
		Name:   models.CardAnotherVictim,
		Result: models.ResultSuccess,
		Parent: models.NoAction, TriggeredBy: playID,
		Source: target, Target: actor,
	})
	if err != nil {
		return err
	}
	for _, inst := range members {
		if _, err := m.table.SetOwner(inst.ID, actor); err != nil {
			return err
		}
		if _, err := m.logAction(models.Action{
			Actor:  actor,
			Type:   models.ActionMoveCard,
			Result: models.ResultSuccess,
			Parent: models.NoAction, TriggeredBy: stealID,
			Source: target, Target: actor,
			Cards: []uuid.UUID{inst.ID},
		}); err != nil {
			return err
		}
	}

	if err := m.commit(ctx); err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{"game": m.ID, "player": actor, "target": target, "cards": len(members)}).Info("detective set stolen")
	m.broadcastState()
	return nil
}

// SweepTable plays Cards off the Table! against a player: every
// Not So Fast! card in their hand goes to the discard pile and they draw
// that many back. The play ends the actor's turn, and the replacement draw
// can exhaust the deck.
func (m *Match) SweepTable(ctx context.Context, actor, cardID, target uuid.UUID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.requireTurn(actor); err != nil {
		return err
	}
	if target == actor {
		return ErrInvalidTargetSelf
	}
	if _, err := m.player(target); err != nil {
		return err
	}
	if _, err := m.eventCard(actor, cardID, models.CardSweepTable); err != nil {
		return err
	}

	if _, err := m.table.Discard([]uuid.UUID{cardID}); err != nil {
		return err
	}
	playID, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionEventCard,
		Name:   models.CardSweepTable,
		Result: models.ResultSuccess,
		Parent: models.NoAction, TriggeredBy: models.NoAction,
		Target: target,
		Cards:  []uuid.UUID{cardID},
	})
	if err != nil {
		return err
	}

	var swept []uuid.UUID
	for _, inst := range m.table.InLocation(models.LocationHand, target) {
		if m.table.NameOf(inst) == models.CardNotSoFast {
			swept = append(swept, inst.ID)
		}
	}
	if len(swept) > 0 {
		if _, err := m.table.Discard(swept); err != nil {
			return err
		}
		if _, err := m.logAction(models.Action{
			Actor:  target,
			Type:   models.ActionDiscard,
			Name:   models.CardNotSoFast,
			Result: models.ResultSuccess,
			Parent: models.NoAction, TriggeredBy: playID,
			Cards: swept,
		}); err != nil {
			return err
		}
	}
	drawn := m.table.Draw(len(swept), target)
	if len(drawn) > 0 {
		drawnIDs := make([]uuid.UUID, 0, len(drawn))
		for _, inst := range drawn {
			drawnIDs = append(drawnIDs, inst.ID)
		}
		if _, err := m.logAction(models.Action{
			Actor:  target,
			Type:   models.ActionDraw,
			Result: models.ResultSuccess,
			Parent: models.NoAction, TriggeredBy: playID,
			Cards: drawnIDs,
		}); err != nil {
			return err
		}
	}
	m.advanceTurn()
	m.checkEndOfGame(m.table.Count(models.LocationDeck), m.lastName(drawn))

	if err := m.commit(ctx); err != nil {
		return err
	}
	m.broadcastState()
	return nil
}

// pendingFor is the common step-two lookup: a live PENDING row owned by the
// caller. Expired rows also drop their continuation. Assumes lock is held
// by caller.
func (m *Match) pendingFor(actionID int, owner uuid.UUID) (models.Action, error) {
	row, err := m.ledger.PendingOwnedBy(actionID, owner)
	if err != nil {
		if err == ErrActionExpired {
			delete(m.pending, actionID)
		}
		return models.Action{}, err
	}
	return row, nil
}

// uniqueIDs reports whether the submitted ids are all distinct. Repeating
// an id would let one card stand in for several.
func uniqueIDs(ids []uuid.UUID) bool {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// samePermutation reports whether b reorders exactly the elements of a.
func samePermutation(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uuid.UUID]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
