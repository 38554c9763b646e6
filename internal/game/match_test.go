package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluefall/cluefall/internal/models"
)

// testSeats returns n seats whose birthdays sit at increasing distance from
// September 15, so the seating order matches the slice order.
func testSeats(n int) []Seat {
	days := []time.Time{
		time.Date(1990, time.September, 15, 0, 0, 0, 0, time.UTC),
		time.Date(1985, time.September, 17, 0, 0, 0, 0, time.UTC),
		time.Date(1992, time.September, 20, 0, 0, 0, 0, time.UTC),
		time.Date(1988, time.September, 24, 0, 0, 0, 0, time.UTC),
		time.Date(1995, time.September, 29, 0, 0, 0, 0, time.UTC),
		time.Date(1983, time.October, 5, 0, 0, 0, 0, time.UTC),
	}
	names := []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	seats := make([]Seat, 0, n)
	for i := 0; i < n; i++ {
		seats = append(seats, Seat{
			ID:        uuid.New(),
			Name:      names[i],
			Birthdate: days[i],
			Host:      i == 0,
		})
	}
	return seats
}

func newTestMatch(t *testing.T, n int) *Match {
	t.Helper()
	m, err := NewMatch(MatchConfig{GameID: uuid.New(), Seats: testSeats(n), Seed: 42})
	require.NoError(t, err)
	return m
}

// giveCard plants a named card into a player's hand for scenario setup.
func giveCard(t *testing.T, m *Match, owner uuid.UUID, name string) uuid.UUID {
	t.Helper()
	def, ok := m.table.DefinitionByName(name)
	require.True(t, ok, "unknown card %q", name)
	pos := m.table.MaxPosition(models.LocationHand, owner) + 1
	return m.table.AddInstance(def.ID, models.LocationHand, pos, owner, true).ID
}

// seedDiscard plants named cards on top of the discard pile, last name on
// top, and returns their ids in planting order.
func seedDiscard(t *testing.T, m *Match, names ...string) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		def, ok := m.table.DefinitionByName(name)
		require.True(t, ok, "unknown card %q", name)
		pos := m.table.MaxPosition(models.LocationDiscard, uuid.Nil) + 1
		ids = append(ids, m.table.AddInstance(def.ID, models.LocationDiscard, pos, uuid.Nil, false).ID)
	}
	return ids
}

// dropInstants strips Not So Fast! cards from a hand so devious plays land.
func dropInstants(t *testing.T, m *Match, owner uuid.UUID) {
	t.Helper()
	for _, inst := range m.table.InLocation(models.LocationHand, owner) {
		if m.table.NameOf(inst) == models.CardNotSoFast {
			_, err := m.table.Move(inst.ID, models.LocationRemoved, MoveOverride{})
			require.NoError(t, err)
		}
	}
}

func otherPlayer(m *Match, not uuid.UUID) uuid.UUID {
	for _, p := range m.players {
		if p.ID != not {
			return p.ID
		}
	}
	return uuid.Nil
}

type mockRecorder struct {
	batches int
	cards   []CardMutation
	actions []models.Action
	fail    error
}

func (r *mockRecorder) CommitBatch(_ context.Context, _ uuid.UUID, cards []CardMutation, actions []models.Action) error {
	if r.fail != nil {
		return r.fail
	}
	r.batches++
	r.cards = append(r.cards, cards...)
	r.actions = append(r.actions, actions...)
	return nil
}

func TestDiscardRejectsDuplicateIDs(t *testing.T) {
	m := newTestMatch(t, 3)
	actor := m.turnHolder
	hand := m.table.InLocation(models.LocationHand, actor)
	deckBefore := m.table.Count(models.LocationDeck)

	err := m.Discard(context.Background(), actor, []uuid.UUID{hand[0].ID, hand[0].ID})
	assert.Equal(t, ErrBadSelection, err)

	assert.Len(t, m.table.InLocation(models.LocationHand, actor), len(hand), "hand untouched")
	assert.Equal(t, deckBefore, m.table.Count(models.LocationDeck), "deck untouched")
	assert.Equal(t, actor, m.turnHolder)
}

func TestFailedCommitRetriesWithTheNextBatch(t *testing.T) {
	rec := &mockRecorder{}
	m, err := NewMatch(MatchConfig{Seats: testSeats(3), Seed: 7, Recorder: rec})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, m.Begin(ctx))

	rec.fail = errors.New("connection reset")
	actor := m.turnHolder
	discarded := m.table.InLocation(models.LocationHand, actor)[0].ID
	require.Error(t, m.Discard(ctx, actor, []uuid.UUID{discarded}))
	batches := rec.batches

	rec.fail = nil
	require.NoError(t, m.FinishTurn(ctx, m.turnHolder))
	require.Equal(t, batches+1, rec.batches)

	var replayed bool
	for _, mut := range rec.cards {
		if mut.Card == discarded && mut.Location == models.LocationDiscard {
			replayed = true
		}
	}
	assert.True(t, replayed, "the failed batch rides the next commit")

	var discardRow bool
	for _, a := range rec.actions {
		if a.Type == models.ActionDiscard && a.Actor == actor {
			discardRow = true
		}
	}
	assert.True(t, discardRow, "ledger rows are retried with their cards")
}

func TestDiscardDrawsBackAndAdvancesTurn(t *testing.T) {
	m := newTestMatch(t, 4)
	actor := m.turnHolder

	hand := m.table.InLocation(models.LocationHand, actor)
	require.Len(t, hand, HandSize+InstantsPerHand)
	ids := []uuid.UUID{hand[0].ID, hand[1].ID}

	require.NoError(t, m.Discard(context.Background(), actor, ids))

	assert.Len(t, m.table.InLocation(models.LocationHand, actor), HandSize+InstantsPerHand)
	assert.Equal(t, 2, m.table.Count(models.LocationDiscard))
	assert.NotEqual(t, actor, m.turnHolder, "turn should pass")
	assert.Equal(t, m.players[1].ID, m.turnHolder)

	actions := m.ledger.Actions()
	require.Len(t, actions, 2)
	assert.Equal(t, models.ActionDiscard, actions[0].Type)
	assert.Equal(t, models.ActionDraw, actions[1].Type)
	assert.Equal(t, actions[0].ID, actions[1].TriggeredBy)
	assert.Equal(t, models.ResultSuccess, actions[0].Result)
}

func TestDiscardRejectsForeignCards(t *testing.T) {
	m := newTestMatch(t, 3)
	actor := m.turnHolder
	victim := otherPlayer(m, actor)

	theirs := m.table.InLocation(models.LocationHand, victim)[0].ID
	err := m.Discard(context.Background(), actor, []uuid.UUID{theirs})
	assert.Equal(t, ErrCardNotInHand, err)
	assert.Equal(t, 0, m.table.Count(models.LocationDiscard), "no partial mutation")
}

func TestCommandsRequireTurn(t *testing.T) {
	m := newTestMatch(t, 3)
	outsider := otherPlayer(m, m.turnHolder)

	hand := m.table.InLocation(models.LocationHand, outsider)
	err := m.Discard(context.Background(), outsider, []uuid.UUID{hand[0].ID})
	assert.Equal(t, ErrNotYourTurn, err)

	err = m.SkipTurn(context.Background(), outsider)
	assert.Equal(t, ErrNotYourTurn, err)

	err = m.FinishTurn(context.Background(), uuid.New())
	assert.Equal(t, ErrPlayerNotFound, err)
}

func TestTakeFromDraftRefills(t *testing.T) {
	m := newTestMatch(t, 4)
	actor := m.turnHolder

	draft := m.table.InLocation(models.LocationDraft, uuid.Nil)
	require.Len(t, draft, DraftSize)
	pick := draft[1].ID
	deckBefore := m.table.Count(models.LocationDeck)

	require.NoError(t, m.TakeFromDraft(context.Background(), actor, pick))

	assert.Len(t, m.table.InLocation(models.LocationHand, actor), HandSize+InstantsPerHand+1)
	assert.Equal(t, DraftSize, m.table.Count(models.LocationDraft), "draft refilled")
	assert.Equal(t, deckBefore-1, m.table.Count(models.LocationDeck))

	picked, err := m.table.Card(pick)
	require.NoError(t, err)
	assert.Equal(t, models.LocationHand, picked.Location)
	assert.True(t, picked.Hidden, "hand cards are face-down")

	for _, inst := range m.table.InLocation(models.LocationDraft, uuid.Nil) {
		assert.False(t, inst.Hidden, "draft cards are face-up")
	}
}

func TestSkipTurnDiscardsOneAndPasses(t *testing.T) {
	m := newTestMatch(t, 2)
	actor := m.turnHolder

	require.NoError(t, m.SkipTurn(context.Background(), actor))

	assert.Len(t, m.table.InLocation(models.LocationHand, actor), HandSize+InstantsPerHand)
	assert.Equal(t, 1, m.table.Count(models.LocationDiscard))
	assert.NotEqual(t, actor, m.turnHolder)
}

func TestFinishTurnWrapsAround(t *testing.T) {
	m := newTestMatch(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.FinishTurn(ctx, m.turnHolder))
	}
	assert.Equal(t, m.players[0].ID, m.turnHolder, "turn order wraps")

	turns := m.ledger.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, 4, turns[3].Number)
}

func TestDeckExhaustionOnEscapeCardEndsGameWithWinners(t *testing.T) {
	m := newTestMatch(t, 5)
	actor := m.turnHolder

	// strip the deck down to the escape card at the bottom
	deck := m.table.InLocation(models.LocationDeck, uuid.Nil)
	for _, inst := range deck[:len(deck)-1] {
		_, err := m.table.Move(inst.ID, models.LocationRemoved, MoveOverride{})
		require.NoError(t, err)
	}
	require.Equal(t, models.CardEscape, m.table.NameOf(m.table.InLocation(models.LocationDeck, uuid.Nil)[0]))

	drawn, err := m.TakeFromDeck(context.Background(), actor, 1)
	require.NoError(t, err)
	require.Len(t, drawn, 1)

	assert.True(t, m.Finished())
	winners := m.Winners()
	require.NotEmpty(t, winners, "murderer escapes")
	roles := map[string]bool{}
	for _, w := range winners {
		roles[w.Role] = true
	}
	assert.True(t, roles["murderer"])
	assert.True(t, roles["accomplice"], "five seats deal an accomplice")
	assert.Nil(t, m.ledger.CurrentTurn(), "no turn stays open")

	err = m.FinishTurn(context.Background(), actor)
	assert.Equal(t, ErrGameFinished, err)
}

func TestDeckExhaustionWithoutEscapeHasNoWinners(t *testing.T) {
	m := newTestMatch(t, 3)
	actor := m.turnHolder

	// leave a single ordinary card on top, park the escape card elsewhere
	deck := m.table.InLocation(models.LocationDeck, uuid.Nil)
	escape := deck[len(deck)-1]
	require.Equal(t, models.CardEscape, m.table.NameOf(escape))
	_, err := m.table.Move(escape.ID, models.LocationRemoved, MoveOverride{})
	require.NoError(t, err)
	deck = m.table.InLocation(models.LocationDeck, uuid.Nil)
	for _, inst := range deck[1:] {
		_, err := m.table.Move(inst.ID, models.LocationRemoved, MoveOverride{})
		require.NoError(t, err)
	}

	_, err = m.TakeFromDeck(context.Background(), actor, 1)
	require.NoError(t, err)

	assert.True(t, m.Finished())
	assert.Empty(t, m.Winners())
}

func TestShortDrawIsNotAnError(t *testing.T) {
	m := newTestMatch(t, 2)
	actor := m.turnHolder

	deck := m.table.InLocation(models.LocationDeck, uuid.Nil)
	for _, inst := range deck[2:] {
		_, err := m.table.Move(inst.ID, models.LocationRemoved, MoveOverride{})
		require.NoError(t, err)
	}

	drawn, err := m.TakeFromDeck(context.Background(), actor, 5)
	require.NoError(t, err)
	assert.Len(t, drawn, 2)
	assert.True(t, m.Finished())
}

func TestCommandsFlushOneBatchToRecorder(t *testing.T) {
	rec := &mockRecorder{}
	m, err := NewMatch(MatchConfig{Seats: testSeats(3), Seed: 7, Recorder: rec})
	require.NoError(t, err)
	require.NoError(t, m.Begin(context.Background()))
	require.Equal(t, 1, rec.batches, "initial snapshot")

	actor := m.turnHolder
	hand := m.table.InLocation(models.LocationHand, actor)
	require.NoError(t, m.Discard(context.Background(), actor, []uuid.UUID{hand[0].ID}))

	assert.Equal(t, 2, rec.batches, "one batch per command")
	var types []models.ActionType
	for _, a := range rec.actions {
		types = append(types, a.Type)
	}
	assert.Equal(t, []models.ActionType{models.ActionDiscard, models.ActionDraw}, types)
	assert.NotEmpty(t, rec.cards)
}

func TestBroadcastsAfterMutation(t *testing.T) {
	m := newTestMatch(t, 2)

	var public []Event
	perPlayer := map[uuid.UUID]int{}
	m.BroadcastFn = func(ev Event) { public = append(public, ev) }
	m.BroadcastToPlayerFn = func(id uuid.UUID, ev Event) { perPlayer[id]++ }

	require.NoError(t, m.FinishTurn(context.Background(), m.turnHolder))

	require.Len(t, public, 1)
	assert.Equal(t, EventGameState, public[0].Type)
	require.NotNil(t, public[0].Public)
	for _, p := range m.Players() {
		assert.Equal(t, 1, perPlayer[p.ID])
	}
}
