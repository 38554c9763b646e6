package game

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cluefall/cluefall/internal/models"
)

// Table counts at game start.
const (
	MinPlayers       = 2
	MaxPlayers       = 6
	HandSize         = 5
	InstantsPerHand  = 1
	SecretsPerPlayer = 3

	// the accomplice secret enters play only above this seat count
	AccompliceAbove = 4
)

// Seat describes one joined player before dealing.
type Seat struct {
	ID        uuid.UUID
	Name      string
	Birthdate time.Time
	Host      bool
}

// MatchConfig carries everything NewMatch needs. Recorder, History, and
// Logger may be nil; Seed zero means a time-based shuffle.
type MatchConfig struct {
	GameID   uuid.UUID
	Seats    []Seat
	Seed     int64
	Recorder Recorder
	History  HistoryFn
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

// seatOrder sorts seats by how close their birthday falls to September 15,
// wrapping around the year; the closest player opens the game. Ties break
// on name, then id, so the order is stable for a given seat list.
func seatOrder(seats []Seat) []Seat {
	dist := func(s Seat) int {
		year := s.Birthdate.Year()
		ref := time.Date(year, time.September, 15, 0, 0, 0, 0, time.UTC).YearDay()
		days := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
		d := s.Birthdate.YearDay() - ref
		if d < 0 {
			d = -d
		}
		if wrap := days - d; wrap < d {
			d = wrap
		}
		return d
	}
	out := append([]Seat(nil), seats...)
	sort.Slice(out, func(i, j int) bool {
		di, dj := dist(out[i]), dist(out[j])
		if di != dj {
			return di < dj
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// NewMatch seats the players, deals secrets and hands, builds the deck with
// the escape card at the bottom, and opens the first turn. Begin flushes
// the resulting snapshot once the transport has attached its callbacks.
func NewMatch(cfg MatchConfig) (*Match, error) {
	if len(cfg.Seats) < MinPlayers || len(cfg.Seats) > MaxPlayers {
		return nil, ErrBadSelection
	}
	if cfg.GameID == uuid.Nil {
		cfg.GameID = uuid.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = cfg.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	m := &Match{
		ID:      cfg.GameID,
		table:   NewTable(cfg.GameID, models.DefaultCatalog()),
		ledger:  NewLedger(cfg.GameID),
		pending: make(map[int]Continuation),
		rng:     rng,
		log:     cfg.Logger.WithField("game", cfg.GameID),
		now:     cfg.Now,
		recorder: cfg.Recorder,
		history:  cfg.History,
	}

	for i, s := range seatOrder(cfg.Seats) {
		m.players = append(m.players, &models.Player{
			ID:        s.ID,
			Name:      s.Name,
			Birthdate: s.Birthdate,
			Order:     i,
			Host:      s.Host,
			Connected: true,
		})
	}

	m.dealSecrets()
	m.dealHands()
	m.buildDeck()

	first := m.players[0]
	m.ledger.StartTurn(first.ID)
	m.turnHolder = first.ID

	m.log.WithFields(logrus.Fields{"players": len(m.players), "first": first.ID}).Info("match dealt")
	return m, nil
}

// Begin flushes the dealt snapshot and pushes the opening views. Call after
// wiring BroadcastFn/BroadcastToPlayerFn.
func (m *Match) Begin(ctx context.Context) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if err := m.commit(ctx); err != nil {
		return err
	}
	m.broadcastState()
	return nil
}

// dealSecrets gives every player three face-down secrets. Exactly one
// player gets the murderer; in games above AccompliceAbove seats another
// gets the accomplice. Assumes lock is held by caller.
func (m *Match) dealSecrets() {
	var murdererDef, accompliceDef models.CardDefinition
	var plain []models.CardDefinition
	for _, d := range models.DefaultCatalog() {
		if d.Type != models.CardTypeSecret {
			continue
		}
		switch d.Name {
		case models.CardMurderer:
			murdererDef = d
		case models.CardAccomplice:
			accompliceDef = d
		default:
			for i := 0; i < d.Copies; i++ {
				plain = append(plain, d)
			}
		}
	}
	m.rng.Shuffle(len(plain), func(i, j int) { plain[i], plain[j] = plain[j], plain[i] })

	murdererSeat := m.rng.Intn(len(m.players))
	accompliceSeat := -1
	if len(m.players) > AccompliceAbove {
		accompliceSeat = m.rng.Intn(len(m.players) - 1)
		if accompliceSeat >= murdererSeat {
			accompliceSeat++
		}
	}

	next := 0
	for i, p := range m.players {
		var defs []models.CardDefinition
		if i == murdererSeat {
			defs = append(defs, murdererDef)
		}
		if i == accompliceSeat {
			defs = append(defs, accompliceDef)
		}
		for len(defs) < SecretsPerPlayer {
			defs = append(defs, plain[next])
			next++
		}
		m.rng.Shuffle(len(defs), func(a, b int) { defs[a], defs[b] = defs[b], defs[a] })
		for pos, d := range defs {
			m.table.AddInstance(d.ID, models.LocationSecretSet, pos, p.ID, true)
		}
	}
}

// actionPool expands every non-secret, non-end catalog entry into one
// definition per copy, split into playable cards and instants.
func actionPool() (cards, instants []models.CardDefinition) {
	for _, d := range models.DefaultCatalog() {
		switch d.Type {
		case models.CardTypeSecret, models.CardTypeEnd:
			continue
		case models.CardTypeInstant:
			for i := 0; i < d.Copies; i++ {
				instants = append(instants, d)
			}
		default:
			for i := 0; i < d.Copies; i++ {
				cards = append(cards, d)
			}
		}
	}
	return cards, instants
}

// dealHands gives every player HandSize action cards plus one instant, and
// stages the leftovers for buildDeck. Assumes lock is held by caller.
func (m *Match) dealHands() {
	cards, instants := actionPool()
	m.rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	m.rng.Shuffle(len(instants), func(i, j int) { instants[i], instants[j] = instants[j], instants[i] })

	for _, p := range m.players {
		pos := 0
		for i := 0; i < HandSize; i++ {
			m.table.AddInstance(cards[0].ID, models.LocationHand, pos, p.ID, true)
			cards = cards[1:]
			pos++
		}
		for i := 0; i < InstantsPerHand; i++ {
			m.table.AddInstance(instants[0].ID, models.LocationHand, pos, p.ID, true)
			instants = instants[1:]
			pos++
		}
	}
	m.undealt = append(append([]models.CardDefinition(nil), cards...), instants...)
}

// buildDeck shuffles the undealt cards, turns the first DraftSize face-up
// as the draft row, stacks the rest as the deck, and pins the escape card
// at the very bottom. Assumes lock is held by caller.
func (m *Match) buildDeck() {
	pool := m.undealt
	m.undealt = nil
	m.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	for i := 0; i < DraftSize && len(pool) > 0; i++ {
		m.table.AddInstance(pool[0].ID, models.LocationDraft, i, uuid.Nil, false)
		pool = pool[1:]
	}

	pos := 0
	for _, d := range pool {
		m.table.AddInstance(d.ID, models.LocationDeck, pos, uuid.Nil, true)
		pos++
	}
	for _, d := range models.DefaultCatalog() {
		if d.Type == models.CardTypeEnd {
			m.table.AddInstance(d.ID, models.LocationDeck, pos, uuid.Nil, true)
		}
	}
}
