// Package rooms runs the lobby: players gather in a room, the host starts
// it, and the room hands off to a dealt Match.
package rooms

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cluefall/cluefall/internal/game"
	"github.com/cluefall/cluefall/internal/models"
)

// Status is a room's lifecycle state.
type Status string

// Room lifecycle.
const (
	StatusWaiting  Status = "WAITING"
	StatusInGame   Status = "INGAME"
	StatusFinished Status = "FINISH"
)

// Lobby rejections, in the engine's error taxonomy.
var (
	ErrRoomNotFound   = &game.Error{Code: game.CodeNotFound, Reason: "room_not_found"}
	ErrNotHost        = &game.Error{Code: game.CodeForbidden, Reason: "not_host"}
	ErrRoomFull       = &game.Error{Code: game.CodeConflict, Reason: "room_full"}
	ErrAlreadySeated  = &game.Error{Code: game.CodeConflict, Reason: "already_seated"}
	ErrAlreadyStarted = &game.Error{Code: game.CodeConflict, Reason: "already_started"}
	ErrNotStarted     = &game.Error{Code: game.CodeConflict, Reason: "not_started"}
	ErrTooFewPlayers  = &game.Error{Code: game.CodeConflict, Reason: "too_few_players"}
)

// Room is one lobby entry. Seats accumulate while WAITING; Match is set
// once the host starts the game.
type Room struct {
	ID     uuid.UUID
	Name   string
	Host   uuid.UUID
	Status Status
	Seats  []game.Seat
	Match  *game.Match
}

// Broadcaster fans engine events out to a room's connections.
type Broadcaster interface {
	Broadcast(roomID uuid.UUID, ev game.Event)
	SendTo(roomID, playerID uuid.UUID, ev game.Event)
}

// Store is the persistence surface the lobby needs. Nil disables
// persistence (in-memory play).
type Store interface {
	game.Recorder
	CreateGame(ctx context.Context, gameID uuid.UUID, players []*models.Player) error
	FinishGame(ctx context.Context, gameID uuid.UUID, turnHolder uuid.UUID, turns []models.Turn) error
}

// Manager owns every room and running match in the process.
type Manager struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*Room

	broadcast Broadcaster
	store     Store
	history   game.HistoryFn
	log       logrus.FieldLogger
	seed      int64
}

// NewManager wires a lobby. Broadcaster is required; store and history may
// be nil.
func NewManager(b Broadcaster, store Store, history game.HistoryFn, seed int64, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		rooms:     make(map[uuid.UUID]*Room),
		broadcast: b,
		store:     store,
		history:   history,
		log:       log,
		seed:      seed,
	}
}

// Create opens a WAITING room with the host in the first seat.
func (m *Manager) Create(name string, host game.Seat) *Room {
	host.Host = true
	room := &Room{
		ID:     uuid.New(),
		Name:   name,
		Host:   host.ID,
		Status: StatusWaiting,
		Seats:  []game.Seat{host},
	}
	m.mu.Lock()
	m.rooms[room.ID] = room
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"room": room.ID, "host": host.ID}).Info("room created")
	return room
}

// Join seats a player in a WAITING room.
func (m *Manager) Join(roomID uuid.UUID, seat game.Seat) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.Status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if len(room.Seats) >= game.MaxPlayers {
		return nil, ErrRoomFull
	}
	for _, s := range room.Seats {
		if s.ID == seat.ID {
			return nil, ErrAlreadySeated
		}
	}
	seat.Host = false
	room.Seats = append(room.Seats, seat)
	m.log.WithFields(logrus.Fields{"room": roomID, "player": seat.ID, "seats": len(room.Seats)}).Info("player joined")
	return room, nil
}

// Start deals the match and flips the room to INGAME. Host only, at least
// MinPlayers seated.
func (m *Manager) Start(ctx context.Context, roomID, caller uuid.UUID) (*game.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.Status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if caller != room.Host {
		return nil, ErrNotHost
	}
	if len(room.Seats) < game.MinPlayers {
		return nil, ErrTooFewPlayers
	}

	cfg := game.MatchConfig{
		GameID:  room.ID,
		Seats:   room.Seats,
		Seed:    m.seed,
		History: m.history,
		Logger:  m.log,
	}
	if m.store != nil {
		cfg.Recorder = m.store
	}
	match, err := game.NewMatch(cfg)
	if err != nil {
		return nil, err
	}
	match.BroadcastFn = func(ev game.Event) { m.broadcast.Broadcast(roomID, ev) }
	match.BroadcastToPlayerFn = func(playerID uuid.UUID, ev game.Event) {
		m.broadcast.SendTo(roomID, playerID, ev)
	}

	if m.store != nil {
		if err := m.store.CreateGame(ctx, match.ID, match.Players()); err != nil {
			return nil, err
		}
	}
	if err := match.Begin(ctx); err != nil {
		return nil, err
	}

	room.Match = match
	room.Status = StatusInGame
	m.log.WithFields(logrus.Fields{"room": roomID, "players": len(room.Seats)}).Info("game started")
	return match, nil
}

// Room looks a room up.
func (m *Manager) Room(roomID uuid.UUID) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Match returns the running match of an INGAME room.
func (m *Manager) Match(roomID uuid.UUID) (*game.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.Match == nil {
		return nil, ErrNotStarted
	}
	return room.Match, nil
}

// SettleIfOver flips an INGAME room whose match reached a terminal state to
// FINISH and writes the terminal snapshot. Safe to call after every
// command.
func (m *Manager) SettleIfOver(ctx context.Context, roomID uuid.UUID) {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if !ok || room.Status != StatusInGame || room.Match == nil || !room.Match.Finished() {
		m.mu.Unlock()
		return
	}
	room.Status = StatusFinished
	match := room.Match
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.FinishGame(ctx, match.ID, match.TurnHolder(), match.Turns()); err != nil {
			m.log.WithError(err).WithField("game", match.ID).Error("terminal snapshot failed")
		}
	}
	m.log.WithFields(logrus.Fields{"room": roomID, "winners": len(match.Winners())}).Info("room settled")
}
