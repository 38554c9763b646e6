package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluefall/cluefall/internal/models"
)

func TestNewMatchValidatesSeatCount(t *testing.T) {
	_, err := NewMatch(MatchConfig{Seats: testSeats(1), Seed: 1})
	assert.Equal(t, ErrBadSelection, err)
	_, err = NewMatch(MatchConfig{Seats: append(testSeats(6), testSeats(1)...), Seed: 1})
	assert.Equal(t, ErrBadSelection, err)
}

func TestSeatOrderFollowsBirthdayProximity(t *testing.T) {
	seats := []Seat{
		{ID: uuid.New(), Name: "far", Birthdate: time.Date(1990, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), Name: "exact", Birthdate: time.Date(1988, time.September, 15, 0, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), Name: "close", Birthdate: time.Date(1993, time.September, 20, 0, 0, 0, 0, time.UTC)},
	}
	ordered := seatOrder(seats)
	assert.Equal(t, "exact", ordered[0].Name)
	assert.Equal(t, "close", ordered[1].Name)
	assert.Equal(t, "far", ordered[2].Name)
}

func TestSeatOrderWrapsAroundTheYear(t *testing.T) {
	seats := []Seat{
		{ID: uuid.New(), Name: "june", Birthdate: time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), Name: "january", Birthdate: time.Date(1990, time.January, 2, 0, 0, 0, 0, time.UTC)},
	}
	// January 2 is ~109 days before September 15 going backwards through
	// New Year, June 15 is ~92 days away directly.
	ordered := seatOrder(seats)
	assert.Equal(t, "june", ordered[0].Name)
}

func TestSeatOrderUsesTheBirthYearLength(t *testing.T) {
	seats := []Seat{
		{ID: uuid.New(), Name: "zed", Birthdate: time.Date(1992, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), Name: "amy", Birthdate: time.Date(1991, time.May, 30, 0, 0, 0, 0, time.UTC)},
	}
	// both birthdays sit 108 days from September 15 once the leap day is
	// counted, so the tie falls to the name
	ordered := seatOrder(seats)
	assert.Equal(t, "amy", ordered[0].Name)
}

func TestSeatOrderBreaksTiesDeterministically(t *testing.T) {
	day := time.Date(1991, time.September, 10, 0, 0, 0, 0, time.UTC)
	seats := []Seat{
		{ID: uuid.New(), Name: "zoe", Birthdate: day},
		{ID: uuid.New(), Name: "amy", Birthdate: day},
	}
	ordered := seatOrder(seats)
	assert.Equal(t, "amy", ordered[0].Name)
}

func TestDealShapesTheTable(t *testing.T) {
	m := newTestMatch(t, 4)

	for _, p := range m.players {
		secrets := m.table.InLocation(models.LocationSecretSet, p.ID)
		require.Len(t, secrets, SecretsPerPlayer)
		for _, s := range secrets {
			assert.True(t, s.Hidden)
			assert.Equal(t, models.CardTypeSecret, m.table.Definition(s).Type)
		}

		hand := m.table.InLocation(models.LocationHand, p.ID)
		require.Len(t, hand, HandSize+InstantsPerHand)
		instants := 0
		for _, c := range hand {
			assert.True(t, c.Hidden)
			if m.table.Definition(c).Type == models.CardTypeInstant {
				instants++
			}
		}
		assert.GreaterOrEqual(t, instants, InstantsPerHand)
	}

	draft := m.table.InLocation(models.LocationDraft, uuid.Nil)
	require.Len(t, draft, DraftSize)
	for _, c := range draft {
		assert.False(t, c.Hidden, "draft is face-up")
	}
}

func TestDealPlacesExactlyOneMurderer(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		m, err := NewMatch(MatchConfig{Seats: testSeats(4), Seed: seed})
		require.NoError(t, err)

		murderers, accomplices := 0, 0
		for _, p := range m.players {
			for _, s := range m.table.InLocation(models.LocationSecretSet, p.ID) {
				switch m.table.NameOf(s) {
				case models.CardMurderer:
					murderers++
				case models.CardAccomplice:
					accomplices++
				}
			}
		}
		assert.Equal(t, 1, murderers)
		assert.Equal(t, 0, accomplices, "no accomplice at four seats")
	}
}

func TestDealAddsAccompliceAboveFourSeats(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		m, err := NewMatch(MatchConfig{Seats: testSeats(5), Seed: seed})
		require.NoError(t, err)

		var murderer, accomplice uuid.UUID
		for _, p := range m.players {
			for _, s := range m.table.InLocation(models.LocationSecretSet, p.ID) {
				switch m.table.NameOf(s) {
				case models.CardMurderer:
					murderer = p.ID
				case models.CardAccomplice:
					accomplice = p.ID
				}
			}
		}
		require.NotEqual(t, uuid.Nil, murderer)
		require.NotEqual(t, uuid.Nil, accomplice)
		assert.NotEqual(t, murderer, accomplice, "different players")
	}
}

func TestEscapeCardSitsAtTheDeckBottom(t *testing.T) {
	m := newTestMatch(t, 3)
	deck := m.table.InLocation(models.LocationDeck, uuid.Nil)
	require.NotEmpty(t, deck)
	assert.Equal(t, models.CardEscape, m.table.NameOf(deck[len(deck)-1]))
	for _, c := range deck[:len(deck)-1] {
		assert.NotEqual(t, models.CardEscape, m.table.NameOf(c))
	}
}

func TestFirstTurnBelongsToTheFirstSeat(t *testing.T) {
	m := newTestMatch(t, 4)
	require.NotNil(t, m.ledger.CurrentTurn())
	assert.Equal(t, m.players[0].ID, m.ledger.CurrentTurn().Player)
	assert.Equal(t, m.players[0].ID, m.TurnHolder())
	assert.Equal(t, 1, m.ledger.CurrentTurn().Number)
	assert.Equal(t, "alice", m.players[0].Name)
}

func TestSameSeedDealsTheSameGame(t *testing.T) {
	seats := testSeats(4)
	a, err := NewMatch(MatchConfig{Seats: seats, Seed: 99})
	require.NoError(t, err)
	b, err := NewMatch(MatchConfig{Seats: seats, Seed: 99})
	require.NoError(t, err)

	for _, p := range seats {
		ha := a.table.InLocation(models.LocationHand, p.ID)
		hb := b.table.InLocation(models.LocationHand, p.ID)
		require.Len(t, hb, len(ha))
		for i := range ha {
			assert.Equal(t, ha[i].DefID, hb[i].DefID)
		}
	}
}
