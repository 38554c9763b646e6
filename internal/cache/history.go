// Package cache appends ledger rows to a Redis stream so spectator tools
// and post-game analysis can tail the action history without touching
// Postgres. Writes are fire-and-forget; a lost record never blocks play.
package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cluefall/cluefall/internal/game"
	"github.com/cluefall/cluefall/internal/models"
)

const publishTimeout = 2 * time.Second

// Publisher streams action records via XADD.
type Publisher struct {
	rdb    *redis.Client
	stream string
	log    logrus.FieldLogger
}

// Connect parses a Redis URL and verifies the connection.
func Connect(ctx context.Context, url, stream string, log logrus.FieldLogger) (*Publisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &Publisher{rdb: rdb, stream: stream, log: log}, nil
}

// Close releases the client.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}

// HistoryFn adapts the publisher to the engine's history hook.
func (p *Publisher) HistoryFn() game.HistoryFn {
	return p.Record
}

// Record appends one ledger row to the stream in the background.
func (p *Publisher) Record(a models.Action) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			Values: actionValues(a),
		}).Err(); err != nil {
			p.log.WithError(err).WithFields(logrus.Fields{
				"game":   a.GameID,
				"action": a.ID,
			}).Warn("action history publish failed")
		}
	}()
}

// actionValues flattens a ledger row for XADD.
func actionValues(a models.Action) map[string]interface{} {
	cards := make([]string, 0, len(a.Cards))
	for _, id := range a.Cards {
		cards = append(cards, id.String())
	}
	return map[string]interface{}{
		"game":         a.GameID.String(),
		"action_id":    strconv.Itoa(a.ID),
		"turn_id":      strconv.Itoa(a.TurnID),
		"actor":        a.Actor.String(),
		"type":         string(a.Type),
		"name":         a.Name,
		"result":       string(a.Result),
		"parent":       strconv.Itoa(a.Parent),
		"triggered_by": strconv.Itoa(a.TriggeredBy),
		"source":       a.Source.String(),
		"target":       a.Target.String(),
		"cards":        strings.Join(cards, ","),
		"created_at":   a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
