// Package database persists matches to Postgres through pgx. The engine
// stays storage-agnostic; it hands this package journals of card mutations
// and ledger rows, and each journal pair commits in one transaction.
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cluefall/cluefall/internal/game"
	"github.com/cluefall/cluefall/internal/models"
)

// Store wraps a pgx pool. It satisfies game.Recorder.
type Store struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

// Connect opens a pool, verifies it, and ensures the schema exists.
func Connect(ctx context.Context, url string, log logrus.FieldLogger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}
	s := &Store{pool: pool, log: log}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("database schema: %w", err)
	}
	return nil
}

// CreateGame inserts the game row and its seated players. Called once,
// right after dealing.
func (s *Store) CreateGame(ctx context.Context, gameID uuid.UUID, players []*models.Player) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO games (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, gameID); err != nil {
		return fmt.Errorf("database insert game: %w", err)
	}
	for _, p := range players {
		if _, err := tx.Exec(ctx,
			`INSERT INTO players (id, game_id, name, birthdate, turn_order, host)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (game_id, id) DO NOTHING`,
			p.ID, gameID, p.Name, p.Birthdate, p.Order, p.Host); err != nil {
			return fmt.Errorf("database insert player: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// CommitBatch writes one command's card mutations and ledger rows in a
// single transaction, so a card never moves on disk without its ledger
// entry and vice versa.
func (s *Store) CommitBatch(ctx context.Context, gameID uuid.UUID, cards []game.CardMutation, actions []models.Action) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range cards {
		batch.Queue(
			`INSERT INTO card_instances (id, game_id, def_id, location, position, owner, hidden)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (game_id, id) DO UPDATE
			 SET location = EXCLUDED.location,
			     position = EXCLUDED.position,
			     owner    = EXCLUDED.owner,
			     hidden   = EXCLUDED.hidden`,
			c.Card, gameID, c.DefID, c.Location, c.Position, nullableUUID(c.Owner), c.Hidden)
	}
	for _, a := range actions {
		batch.Queue(
			`INSERT INTO actions (id, game_id, turn_id, actor, action_type, card_name, result,
			                      parent_id, triggered_by, source, target, cards, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (game_id, id) DO UPDATE
			 SET result = EXCLUDED.result`,
			a.ID, gameID, a.TurnID, a.Actor, a.Type, a.Name, a.Result,
			a.Parent, a.TriggeredBy, nullableUUID(a.Source), nullableUUID(a.Target), a.Cards, a.CreatedAt)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("database batch: %w", err)
	}
	return tx.Commit(ctx)
}

// FinishGame records the terminal snapshot: game flags, the full turn
// sequence, and the winners in the game row's wake.
func (s *Store) FinishGame(ctx context.Context, gameID uuid.UUID, turnHolder uuid.UUID, turns []models.Turn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE games SET finished = TRUE, turn_holder = $2 WHERE id = $1`,
		gameID, nullableUUID(turnHolder)); err != nil {
		return fmt.Errorf("database finish game: %w", err)
	}
	for _, t := range turns {
		if _, err := tx.Exec(ctx,
			`INSERT INTO turns (id, game_id, number, player_id, status, started_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (game_id, id) DO UPDATE SET status = EXCLUDED.status`,
			t.ID, gameID, t.Number, t.Player, t.Status, t.StartedAt); err != nil {
			return fmt.Errorf("database insert turn: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// nullableUUID maps uuid.Nil to SQL NULL.
func nullableUUID(id uuid.UUID) interface{} {
	if id == uuid.Nil {
		return nil
	}
	return id
}
