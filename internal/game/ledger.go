package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/cluefall/cluefall/internal/models"
)

// PendingActionTTL is how long a PENDING action may wait for its follow-up.
// Expiry is checked lazily on the next reference, never by a sweeper.
const PendingActionTTL = 10 * time.Minute

// Ledger is the turn sequence and append-only action arena of one game.
// Action ids are indices into the arena; parent and trigger references are
// plain indices into earlier entries, so cycles are structurally impossible.
// Rows are never deleted. Not safe for concurrent use; the owning Match
// serializes access.
type Ledger struct {
	gameID  uuid.UUID
	turns   []models.Turn
	actions []models.Action
	dirty   []int
	now     func() time.Time
}

// NewLedger creates an empty ledger for a game.
func NewLedger(gameID uuid.UUID) *Ledger {
	return &Ledger{gameID: gameID, now: time.Now}
}

// StartTurn finishes the current turn, if any, and opens the next one for
// the given player with an incremented sequence number.
func (l *Ledger) StartTurn(player uuid.UUID) *models.Turn {
	if cur := l.CurrentTurn(); cur != nil {
		cur.Status = models.TurnFinished
	}
	l.turns = append(l.turns, models.Turn{
		ID:        len(l.turns),
		GameID:    l.gameID,
		Number:    len(l.turns) + 1,
		Player:    player,
		Status:    models.TurnInProgress,
		StartedAt: l.now(),
	})
	return &l.turns[len(l.turns)-1]
}

// CurrentTurn returns the single IN_PROGRESS turn, or nil before the first
// turn or after the game finished.
func (l *Ledger) CurrentTurn() *models.Turn {
	if len(l.turns) == 0 {
		return nil
	}
	cur := &l.turns[len(l.turns)-1]
	if cur.Status != models.TurnInProgress {
		return nil
	}
	return cur
}

// FinishCurrentTurn closes the in-progress turn without opening another.
// Used when the game ends.
func (l *Ledger) FinishCurrentTurn() {
	if cur := l.CurrentTurn(); cur != nil {
		cur.Status = models.TurnFinished
	}
}

// ActiveTurnFor returns the current turn if it belongs to the player, or
// ErrNotYourTurn. This is the authorization lookup every command uses.
func (l *Ledger) ActiveTurnFor(player uuid.UUID) (*models.Turn, error) {
	cur := l.CurrentTurn()
	if cur == nil || cur.Player != player {
		return nil, ErrNotYourTurn
	}
	return cur, nil
}

// Turns returns a copy of the turn sequence.
func (l *Ledger) Turns() []models.Turn {
	out := make([]models.Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Append adds a row to the arena and returns its id. A parent reference must
// point at an earlier row that was not cancelled or failed; card references
// are capped at MaxActionCards.
func (l *Ledger) Append(a models.Action) (int, error) {
	if a.Parent != models.NoAction {
		if a.Parent < 0 || a.Parent >= len(l.actions) {
			return 0, ErrActionNotFound
		}
		switch l.actions[a.Parent].Result {
		case models.ResultCancelled, models.ResultFailed:
			return 0, ErrActionResolved
		}
	}
	if a.TriggeredBy != models.NoAction && (a.TriggeredBy < 0 || a.TriggeredBy >= len(l.actions)) {
		return 0, ErrActionNotFound
	}
	if len(a.Cards) > models.MaxActionCards {
		a.Cards = a.Cards[:models.MaxActionCards]
	}
	a.ID = len(l.actions)
	a.GameID = l.gameID
	a.CreatedAt = l.now()
	if a.Result == "" {
		a.Result = models.ResultPending
	}
	l.actions = append(l.actions, a)
	l.dirty = append(l.dirty, a.ID)
	return a.ID, nil
}

// Action returns a copy of the row with the given id.
func (l *Ledger) Action(id int) (models.Action, error) {
	if id < 0 || id >= len(l.actions) {
		return models.Action{}, ErrActionNotFound
	}
	return l.actions[id], nil
}

// Actions returns a copy of the whole arena.
func (l *Ledger) Actions() []models.Action {
	out := make([]models.Action, len(l.actions))
	copy(out, l.actions)
	return out
}

// Pending looks up a PENDING row. It fails with ActionNotFound for a bad
// id, ActionResolved when the row is already terminal, and ActionExpired
// past the staleness window (marking the row FAILED as a side effect).
func (l *Ledger) Pending(id int) (models.Action, error) {
	if id < 0 || id >= len(l.actions) {
		return models.Action{}, ErrActionNotFound
	}
	row := &l.actions[id]
	if row.Result != models.ResultPending {
		return models.Action{}, ErrActionResolved
	}
	if l.now().Sub(row.CreatedAt) > PendingActionTTL {
		row.Result = models.ResultFailed
		l.dirty = append(l.dirty, id)
		return models.Action{}, ErrActionExpired
	}
	return *row, nil
}

// PendingOwnedBy is Pending plus the common ownership gate: only the row's
// actor may resolve it. Interactions whose follow-up belongs to the target
// (self-reveal) gate on the continuation instead.
func (l *Ledger) PendingOwnedBy(id int, owner uuid.UUID) (models.Action, error) {
	row, err := l.Pending(id)
	if err != nil {
		return models.Action{}, err
	}
	if row.Actor != owner {
		return models.Action{}, ErrActionNotOwned
	}
	return row, nil
}

// Resolve transitions a PENDING row to a terminal result. Resolving a row
// twice fails the second call with a conflict.
func (l *Ledger) Resolve(id int, result models.ActionResult) error {
	if id < 0 || id >= len(l.actions) {
		return ErrActionNotFound
	}
	row := &l.actions[id]
	if row.Result != models.ResultPending {
		return ErrActionResolved
	}
	row.Result = result
	l.dirty = append(l.dirty, id)
	return nil
}

// TakeJournal returns copies of the rows appended or updated since the last
// call, in order, and resets the dirty list.
func (l *Ledger) TakeJournal() []models.Action {
	out := make([]models.Action, 0, len(l.dirty))
	for _, id := range l.dirty {
		out = append(out, l.actions[id])
	}
	l.dirty = nil
	return out
}

// RestoreJournal re-marks drained rows dirty after a failed commit, ahead
// of anything staged since, so the next batch retries them.
func (l *Ledger) RestoreJournal(rows []models.Action) {
	if len(rows) == 0 {
		return
	}
	ids := make([]int, 0, len(rows)+len(l.dirty))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	l.dirty = append(ids, l.dirty...)
}
