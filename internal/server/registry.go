package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cluefall/cluefall/internal/game"
)

const sendTimeout = 5 * time.Second

// Sink is one player's outbound channel. The websocket handler provides a
// real connection; tests provide a capture.
type Sink interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Registry tracks which sink serves which player in which room. It is a
// plain object owned by the server; nothing global.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[uuid.UUID]Sink
	log   logrus.FieldLogger
}

// NewRegistry creates an empty registry.
func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{
		rooms: make(map[uuid.UUID]map[uuid.UUID]Sink),
		log:   log,
	}
}

// Attach registers a player's sink, closing any previous one (a reconnect
// replaces the old socket).
func (r *Registry) Attach(roomID, playerID uuid.UUID, s Sink) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[uuid.UUID]Sink)
		r.rooms[roomID] = room
	}
	old := room[playerID]
	room[playerID] = s
	r.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// Detach removes a player's sink if it is still the registered one.
func (r *Registry) Detach(roomID, playerID uuid.UUID, s Sink) {
	r.mu.Lock()
	if room, ok := r.rooms[roomID]; ok && room[playerID] == s {
		delete(room, playerID)
		if len(room) == 0 {
			delete(r.rooms, roomID)
		}
	}
	r.mu.Unlock()
}

// Connected reports whether a player currently has a sink in the room.
func (r *Registry) Connected(roomID, playerID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][playerID]
	return ok
}

// Broadcast pushes an event to every sink in a room.
func (r *Registry) Broadcast(roomID uuid.UUID, ev game.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.WithError(err).Error("event marshal failed")
		return
	}
	r.mu.RLock()
	sinks := make([]Sink, 0, len(r.rooms[roomID]))
	for _, s := range r.rooms[roomID] {
		sinks = append(sinks, s)
	}
	r.mu.RUnlock()

	for _, s := range sinks {
		r.deliver(s, payload)
	}
}

// SendTo pushes an event to one player. A miss is fine: disconnected
// players catch up from the next broadcast.
func (r *Registry) SendTo(roomID, playerID uuid.UUID, ev game.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.WithError(err).Error("event marshal failed")
		return
	}
	r.mu.RLock()
	s := r.rooms[roomID][playerID]
	r.mu.RUnlock()
	if s != nil {
		r.deliver(s, payload)
	}
}

func (r *Registry) deliver(s Sink, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := s.Send(ctx, payload); err != nil {
		r.log.WithError(err).Debug("event delivery failed")
	}
}
