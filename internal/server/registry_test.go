package server

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluefall/cluefall/internal/game"
)

type captureSink struct {
	mu       sync.Mutex
	payloads [][]byte
	closed   bool
}

func (c *captureSink) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *captureSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func newTestRegistry() *Registry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewRegistry(log)
}

func TestBroadcastReachesEveryRoomMember(t *testing.T) {
	r := newTestRegistry()
	room, elsewhere := uuid.New(), uuid.New()
	a, b, c := &captureSink{}, &captureSink{}, &captureSink{}

	r.Attach(room, uuid.New(), a)
	r.Attach(room, uuid.New(), b)
	r.Attach(elsewhere, uuid.New(), c)

	r.Broadcast(room, game.Event{Type: game.EventGameState})

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, 0, c.count(), "other rooms are untouched")

	var ev game.Event
	require.NoError(t, json.Unmarshal(a.payloads[0], &ev))
	assert.Equal(t, game.EventGameState, ev.Type)
}

func TestSendToTargetsOnePlayer(t *testing.T) {
	r := newTestRegistry()
	room := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	a, b := &captureSink{}, &captureSink{}

	r.Attach(room, alice, a)
	r.Attach(room, bob, b)

	r.SendTo(room, alice, game.Event{Type: game.EventPrivateState})
	r.SendTo(room, uuid.New(), game.Event{Type: game.EventPrivateState})

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 0, b.count())
}

func TestAttachReplacesAndClosesTheOldSink(t *testing.T) {
	r := newTestRegistry()
	room, player := uuid.New(), uuid.New()
	old, replacement := &captureSink{}, &captureSink{}

	r.Attach(room, player, old)
	r.Attach(room, player, replacement)
	assert.True(t, old.closed, "reconnect closes the stale socket")

	r.SendTo(room, player, game.Event{Type: game.EventPrivateState})
	assert.Equal(t, 0, old.count())
	assert.Equal(t, 1, replacement.count())
}

func TestDetachOnlyRemovesTheCurrentSink(t *testing.T) {
	r := newTestRegistry()
	room, player := uuid.New(), uuid.New()
	old, current := &captureSink{}, &captureSink{}

	r.Attach(room, player, old)
	r.Attach(room, player, current)

	// the stale goroutine detaching its own sink must not evict the new one
	r.Detach(room, player, old)
	assert.True(t, r.Connected(room, player))

	r.Detach(room, player, current)
	assert.False(t, r.Connected(room, player))
}
