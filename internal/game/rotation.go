package game

import (
	"github.com/sirupsen/logrus"

	"github.com/cluefall/cluefall/internal/models"
)

// advanceTurn hands the in-progress turn to the next seat in order,
// wrapping after the last one. Assumes lock is held by caller.
func (m *Match) advanceTurn() {
	if m.finished || len(m.players) == 0 {
		return
	}
	idx := 0
	for i, p := range m.players {
		if p.ID == m.turnHolder {
			idx = i
			break
		}
	}
	next := m.players[(idx+1)%len(m.players)]
	m.ledger.StartTurn(next.ID)
	m.turnHolder = next.ID
}

// checkEndOfGame finishes the game once the deck is empty. The murderer
// side wins only when the last card exposed from the deck was the escape
// card; any other deck exhaustion ends the game with no winners. Calling
// this on a finished game is a no-op, so every draw site may invoke it
// unconditionally. Assumes lock is held by caller.
func (m *Match) checkEndOfGame(deckRemaining int, lastExposed string) {
	if m.finished || deckRemaining > 0 {
		return
	}
	m.finished = true
	m.ledger.FinishCurrentTurn()

	// in-flight interactions can never complete now
	for id := range m.pending {
		_ = m.ledger.Resolve(id, models.ResultFailed)
		delete(m.pending, id)
	}

	if lastExposed == models.CardEscape {
		for _, p := range m.players {
			for _, s := range m.table.InLocation(models.LocationSecretSet, p.ID) {
				switch m.table.NameOf(s) {
				case models.CardMurderer:
					m.winners = append(m.winners, Winner{PlayerID: p.ID, Role: "murderer"})
				case models.CardAccomplice:
					m.winners = append(m.winners, Winner{PlayerID: p.ID, Role: "accomplice"})
				}
			}
		}
	}
	m.log.WithFields(logrus.Fields{"game": m.ID, "winners": len(m.winners), "escaped": lastExposed == models.CardEscape}).Info("game finished")
}
