package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluefall/cluefall/internal/models"
)

func TestStartTurnClosesThePreviousOne(t *testing.T) {
	l := NewLedger(uuid.New())
	a, b := uuid.New(), uuid.New()

	l.StartTurn(a)
	require.NotNil(t, l.CurrentTurn())
	assert.Equal(t, 1, l.CurrentTurn().Number)

	l.StartTurn(b)
	turns := l.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, models.TurnFinished, turns[0].Status)
	assert.Equal(t, models.TurnInProgress, turns[1].Status)
	assert.Equal(t, b, l.CurrentTurn().Player)
}

func TestActiveTurnForGatesByPlayer(t *testing.T) {
	l := NewLedger(uuid.New())
	a, b := uuid.New(), uuid.New()

	_, err := l.ActiveTurnFor(a)
	assert.Equal(t, ErrNotYourTurn, err, "no turn open yet")

	l.StartTurn(a)
	_, err = l.ActiveTurnFor(a)
	assert.NoError(t, err)
	_, err = l.ActiveTurnFor(b)
	assert.Equal(t, ErrNotYourTurn, err)

	l.FinishCurrentTurn()
	_, err = l.ActiveTurnFor(a)
	assert.Equal(t, ErrNotYourTurn, err)
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	l := NewLedger(uuid.New())
	actor := uuid.New()

	id0, err := l.Append(models.Action{Actor: actor, Type: models.ActionDraw, Parent: models.NoAction, TriggeredBy: models.NoAction})
	require.NoError(t, err)
	id1, err := l.Append(models.Action{Actor: actor, Type: models.ActionDiscard, Parent: models.NoAction, TriggeredBy: id0})
	require.NoError(t, err)

	assert.Equal(t, 0, id0)
	assert.Equal(t, 1, id1)

	row, err := l.Action(id0)
	require.NoError(t, err)
	assert.Equal(t, models.ResultPending, row.Result, "result defaults to pending")
	assert.False(t, row.CreatedAt.IsZero())
}

func TestAppendValidatesReferences(t *testing.T) {
	l := NewLedger(uuid.New())
	actor := uuid.New()

	_, err := l.Append(models.Action{Actor: actor, Parent: 5, TriggeredBy: models.NoAction})
	assert.Equal(t, ErrActionNotFound, err, "parent must exist")

	_, err = l.Append(models.Action{Actor: actor, Parent: models.NoAction, TriggeredBy: 9})
	assert.Equal(t, ErrActionNotFound, err, "trigger must exist")

	id, err := l.Append(models.Action{Actor: actor, Parent: models.NoAction, TriggeredBy: models.NoAction})
	require.NoError(t, err)
	require.NoError(t, l.Resolve(id, models.ResultCancelled))

	_, err = l.Append(models.Action{Actor: actor, Parent: id, TriggeredBy: models.NoAction})
	assert.Equal(t, ErrActionResolved, err, "cancelled rows take no children")
}

func TestAppendCapsCardReferences(t *testing.T) {
	l := NewLedger(uuid.New())
	cards := make([]uuid.UUID, models.MaxActionCards+2)
	for i := range cards {
		cards[i] = uuid.New()
	}
	id, err := l.Append(models.Action{Actor: uuid.New(), Parent: models.NoAction, TriggeredBy: models.NoAction, Cards: cards})
	require.NoError(t, err)
	row, err := l.Action(id)
	require.NoError(t, err)
	assert.Len(t, row.Cards, models.MaxActionCards)
}

func TestResolveIsTerminal(t *testing.T) {
	l := NewLedger(uuid.New())
	id, err := l.Append(models.Action{Actor: uuid.New(), Parent: models.NoAction, TriggeredBy: models.NoAction})
	require.NoError(t, err)

	require.NoError(t, l.Resolve(id, models.ResultSuccess))
	assert.Equal(t, ErrActionResolved, l.Resolve(id, models.ResultFailed))

	_, err = l.Pending(id)
	assert.Equal(t, ErrActionResolved, err)
}

func TestPendingExpiresLazily(t *testing.T) {
	l := NewLedger(uuid.New())
	now := time.Now()
	l.now = func() time.Time { return now }

	actor := uuid.New()
	id, err := l.Append(models.Action{Actor: actor, Parent: models.NoAction, TriggeredBy: models.NoAction})
	require.NoError(t, err)

	_, err = l.Pending(id)
	require.NoError(t, err, "fresh row is live")

	now = now.Add(PendingActionTTL + time.Second)
	_, err = l.Pending(id)
	assert.Equal(t, ErrActionExpired, err)

	row, err := l.Action(id)
	require.NoError(t, err)
	assert.Equal(t, models.ResultFailed, row.Result, "expiry fails the row")

	_, err = l.Pending(id)
	assert.Equal(t, ErrActionResolved, err, "expiry only fires once")
}

func TestPendingOwnedByGatesOnActor(t *testing.T) {
	l := NewLedger(uuid.New())
	actor, stranger := uuid.New(), uuid.New()
	id, err := l.Append(models.Action{Actor: actor, Parent: models.NoAction, TriggeredBy: models.NoAction})
	require.NoError(t, err)

	_, err = l.PendingOwnedBy(id, stranger)
	assert.Equal(t, ErrActionNotOwned, err)
	_, err = l.PendingOwnedBy(id, actor)
	assert.NoError(t, err)
	_, err = l.PendingOwnedBy(99, actor)
	assert.Equal(t, ErrActionNotFound, err)
}

func TestLedgerJournalTracksDirtyRows(t *testing.T) {
	l := NewLedger(uuid.New())
	id, err := l.Append(models.Action{Actor: uuid.New(), Parent: models.NoAction, TriggeredBy: models.NoAction})
	require.NoError(t, err)

	j := l.TakeJournal()
	require.Len(t, j, 1)
	assert.Equal(t, models.ResultPending, j[0].Result)

	require.NoError(t, l.Resolve(id, models.ResultSuccess))
	j = l.TakeJournal()
	require.Len(t, j, 1)
	assert.Equal(t, models.ResultSuccess, j[0].Result)
	assert.Empty(t, l.TakeJournal())
}
