package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cluefall/cluefall/internal/models"
)

// MinDetectiveSet is the smallest playable detective set.
const MinDetectiveSet = 2

// Archetype is the effect family of a detective character. Wildcards take
// the archetype of the set they join.
type Archetype string

// Detective effect families.
const (
	// ArchetypeRevealOne lets the set's player reveal one hidden secret of
	// the target (Poirot, Marple).
	ArchetypeRevealOne Archetype = "reveal_one"
	// ArchetypeHideOne lets the set's player hide one revealed secret of the
	// target (Parker Pyne).
	ArchetypeHideOne Archetype = "hide_one"
	// ArchetypeSelfReveal forces the target to reveal one of their own
	// secrets, target's choice (the Beresfords, Lady Eileen Brent,
	// Mr. Satterthwaite). A Satterthwaite set that includes Harley Quin
	// additionally transfers the revealed secret to the set's player.
	ArchetypeSelfReveal Archetype = "self_reveal"
)

// archetypeFor maps a detective definition to its effect family. The
// wildcard has no archetype of its own.
func archetypeFor(def models.CardDefinition) (Archetype, bool) {
	switch def.Name {
	case models.CardPoirot, models.CardMarple:
		return ArchetypeRevealOne, true
	case models.CardPyne:
		return ArchetypeHideOne, true
	case models.CardTommy, models.CardTuppence, models.CardBrent, models.CardSatterthwaite:
		return ArchetypeSelfReveal, true
	}
	return "", false
}

// setShape validates a detective selection: at least one named detective,
// all named cards the same character, wildcards free. Returns the shared
// definition, its archetype, and whether a wildcard is present.
func (m *Match) setShape(cards []*models.CardInstance) (models.CardDefinition, Archetype, bool, error) {
	var def models.CardDefinition
	wild := false
	for _, inst := range cards {
		d := m.table.Definition(inst)
		if d.Type != models.CardTypeDetective {
			return models.CardDefinition{}, "", false, ErrWrongCard
		}
		if d.Name == models.CardWildcard {
			wild = true
			continue
		}
		if def.ID != 0 && def.ID != d.ID {
			return models.CardDefinition{}, "", false, ErrBadSelection
		}
		def = d
	}
	if def.ID == 0 {
		// all wildcards: no character to take an effect from
		return models.CardDefinition{}, "", false, ErrBadSelection
	}
	arch, ok := archetypeFor(def)
	if !ok {
		return models.CardDefinition{}, "", false, ErrWrongCard
	}
	return def, arch, wild, nil
}

// PlayDetectiveSet lays two or more matching detective cards from the
// actor's hand as a new face-up set and opens a PENDING effect against the
// target. The follow-up arrives through ResolveDetective: from the actor
// for reveal/hide sets, from the target for self-reveal sets.
func (m *Match) PlayDetectiveSet(ctx context.Context, actor uuid.UUID, cardIDs []uuid.UUID, target uuid.UUID) (int, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.requireTurn(actor); err != nil {
		return 0, err
	}
	if len(cardIDs) < MinDetectiveSet {
		return 0, ErrSetTooSmall
	}
	if !uniqueIDs(cardIDs) {
		return 0, ErrBadSelection
	}
	if target == actor {
		return 0, ErrInvalidTargetSelf
	}
	if _, err := m.player(target); err != nil {
		return 0, err
	}
	cards := make([]*models.CardInstance, 0, len(cardIDs))
	for _, id := range cardIDs {
		inst, err := m.handCard(actor, id)
		if err != nil {
			return 0, err
		}
		cards = append(cards, inst)
	}
	def, arch, wild, err := m.setShape(cards)
	if err != nil {
		return 0, err
	}

	setPos := m.table.MaxPosition(models.LocationDetectiveSet, actor) + 1
	visible := false
	for _, inst := range cards {
		if _, err := m.table.Move(inst.ID, models.LocationDetectiveSet, MoveOverride{
			Position: &setPos,
			Owner:    &actor,
			Hidden:   &visible,
		}); err != nil {
			return 0, err
		}
	}

	id, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionDetectiveSet,
		Name:   def.Name,
		Parent: models.NoAction, TriggeredBy: models.NoAction,
		Target: target,
		Cards:  cardIDs,
	})
	if err != nil {
		return 0, err
	}
	m.pending[id] = DetectiveEffect{
		Archetype:   arch,
		Target:      target,
		Wildcard:    wild,
		SetPosition: setPos,
	}

	if err := m.commit(ctx); err != nil {
		return 0, err
	}
	m.log.WithFields(logrus.Fields{"game": m.ID, "player": actor, "detective": def.Name, "target": target}).Info("detective set played")
	m.notifyEffect(id, arch, actor, target)
	m.broadcastState()
	return id, nil
}

// AddDetective extends one of the actor's existing sets with a matching
// card (same character, or the wildcard) and fires the set's effect again
// at a fresh target.
func (m *Match) AddDetective(ctx context.Context, actor, cardID uuid.UUID, setPosition int, target uuid.UUID) (int, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.requireTurn(actor); err != nil {
		return 0, err
	}
	if target == actor {
		return 0, ErrInvalidTargetSelf
	}
	if _, err := m.player(target); err != nil {
		return 0, err
	}
	inst, err := m.handCard(actor, cardID)
	if err != nil {
		return 0, err
	}
	members := m.table.SetMembers(actor, setPosition)
	if len(members) == 0 {
		return 0, ErrCardNotInPile
	}
	def, arch, wild, err := m.setShape(append(members, inst))
	if err != nil {
		return 0, err
	}

	visible := false
	if _, err := m.table.Move(cardID, models.LocationDetectiveSet, MoveOverride{
		Position: &setPosition,
		Owner:    &actor,
		Hidden:   &visible,
	}); err != nil {
		return 0, err
	}

	id, err := m.logAction(models.Action{
		Actor:  actor,
		Type:   models.ActionAddDetective,
		Name:   def.Name,
		Parent: models.NoAction, TriggeredBy: models.NoAction,
		Target: target,
		Cards:  []uuid.UUID{cardID},
	})
	if err != nil {
		return 0, err
	}
	m.pending[id] = DetectiveEffect{
		Archetype:   arch,
		Target:      target,
		Wildcard:    wild,
		SetPosition: setPosition,
	}

	if err := m.commit(ctx); err != nil {
		return 0, err
	}
	m.notifyEffect(id, arch, actor, target)
	m.broadcastState()
	return id, nil
}

// notifyEffect prompts whichever player owes the follow-up request.
// Assumes lock is held by caller.
func (m *Match) notifyEffect(actionID int, arch Archetype, actor, target uuid.UUID) {
	if m.BroadcastToPlayerFn == nil {
		return
	}
	who := actor
	if arch == ArchetypeSelfReveal {
		who = target
	}
	m.BroadcastToPlayerFn(who, Event{
		Type: EventActionStarted,
		Payload: map[string]interface{}{
			"actionId":  actionID,
			"archetype": string(arch),
		},
	})
}

// ResolveDetective completes a pending detective effect by choosing the
// secret it applies to. Reveal and hide effects are resolved by the set's
// player; self-reveal effects by the target, who picks one of their own
// secrets. A Satterthwaite set holding the wildcard moves the revealed
// secret into the set player's collection, still face-up.
func (m *Match) ResolveDetective(ctx context.Context, caller uuid.UUID, actionID int, secretID uuid.UUID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.finished {
		return ErrGameFinished
	}
	row, err := m.ledger.Pending(actionID)
	if err != nil {
		if err == ErrActionExpired {
			delete(m.pending, actionID)
		}
		return err
	}
	cont, ok := m.pending[actionID].(DetectiveEffect)
	if !ok {
		return ErrActionNotFound
	}
	switch cont.Archetype {
	case ArchetypeSelfReveal:
		if caller != cont.Target {
			return ErrActionNotOwned
		}
	default:
		if caller != row.Actor {
			return ErrActionNotOwned
		}
	}

	secret, err := m.table.Card(secretID)
	if err != nil {
		return err
	}
	if secret.Location != models.LocationSecretSet || secret.Owner != cont.Target {
		return ErrSecretNotFound
	}

	switch cont.Archetype {
	case ArchetypeHideOne:
		if secret.Hidden {
			return ErrSecretNotRevealed
		}
		if _, err := m.table.SetHidden(secretID, true); err != nil {
			return err
		}
		if _, err := m.logAction(models.Action{
			Actor:  caller,
			Type:   models.ActionHideSecret,
			Result: models.ResultSuccess,
			Parent: actionID, TriggeredBy: models.NoAction,
			Target: cont.Target,
			Cards:  []uuid.UUID{secretID},
		}); err != nil {
			return err
		}

	default: // reveal, by actor or by target
		if !secret.Hidden {
			return ErrSecretNotHidden
		}
		if _, err := m.table.SetHidden(secretID, false); err != nil {
			return err
		}
		revealID, err := m.logAction(models.Action{
			Actor:  caller,
			Type:   models.ActionRevealSecret,
			Result: models.ResultSuccess,
			Parent: actionID, TriggeredBy: models.NoAction,
			Target: cont.Target,
			Cards:  []uuid.UUID{secretID},
		})
		if err != nil {
			return err
		}
		if m.transferSet(row.Actor, cont) {
			visible := false
			if _, err := m.table.Move(secretID, models.LocationSecretSet, MoveOverride{
				Owner:  &row.Actor,
				Hidden: &visible,
			}); err != nil {
				return err
			}
			if _, err := m.logAction(models.Action{
				Actor:  row.Actor,
				Type:   models.ActionMoveCard,
				Result: models.ResultSuccess,
				Parent: actionID, TriggeredBy: revealID,
				Source: cont.Target, Target: row.Actor,
				Cards: []uuid.UUID{secretID},
			}); err != nil {
				return err
			}
		}
	}

	if err := m.ledger.Resolve(actionID, models.ResultSuccess); err != nil {
		return err
	}
	delete(m.pending, actionID)
	m.checkEndOfGame(m.table.Count(models.LocationDeck), "")

	if err := m.commit(ctx); err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{"game": m.ID, "action": actionID, "archetype": string(cont.Archetype)}).Info("detective effect resolved")
	m.broadcastState()
	return nil
}

// transferSet reports whether a resolved self-reveal also transfers the
// secret: the set belongs to Satterthwaite and includes the wildcard.
// Assumes lock is held by caller.
func (m *Match) transferSet(setOwner uuid.UUID, cont DetectiveEffect) bool {
	if cont.Archetype != ArchetypeSelfReveal || !cont.Wildcard {
		return false
	}
	for _, inst := range m.table.SetMembers(setOwner, cont.SetPosition) {
		if m.table.NameOf(inst) == models.CardSatterthwaite {
			return true
		}
	}
	return false
}

// inDisgrace reports social disgrace: the player holds at least one secret
// and every one of them is face-up. Assumes lock is held by caller.
func (m *Match) inDisgrace(playerID uuid.UUID) bool {
	secrets := m.table.InLocation(models.LocationSecretSet, playerID)
	if len(secrets) == 0 {
		return false
	}
	for _, s := range secrets {
		if s.Hidden {
			return false
		}
	}
	return true
}
