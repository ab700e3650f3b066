package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/bazaar/go/internal/notify"
)

// Batch is a locked set of unsent outbox rows inside one transaction.
type Batch interface {
	Events() []notify.Envelope
	MarkSent(ctx context.Context, ids []uuid.UUID) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Queue hands out batches of unsent envelopes.
type Queue interface {
	NextBatch(ctx context.Context, limit int32) (Batch, error)
	CountPending(ctx context.Context) (int, error)
}

// Store is the Postgres-backed outbox. As a notify.Publisher it only
// persists envelopes; the Relay delivers them.
type Store struct {
	pool *pgxpool.Pool
	repo *Repository
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, repo: NewRepository(pool)}
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.repo.Migrate(ctx)
}

func (s *Store) Publish(ctx context.Context, env notify.Envelope) error {
	return s.repo.Insert(ctx, env)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) CountPending(ctx context.Context) (int, error) {
	return s.repo.CountPending(ctx)
}

func (s *Store) NextBatch(ctx context.Context, limit int32) (Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	repo := NewRepository(tx)
	events, err := repo.FetchUnsent(ctx, limit)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	return &pgBatch{tx: tx, repo: repo, events: events}, nil
}

type pgBatch struct {
	tx interface {
		Commit(ctx context.Context) error
		Rollback(ctx context.Context) error
	}
	repo   *Repository
	events []notify.Envelope
}

func (b *pgBatch) Events() []notify.Envelope { return b.events }

func (b *pgBatch) MarkSent(ctx context.Context, ids []uuid.UUID) error {
	return b.repo.MarkSent(ctx, ids)
}

func (b *pgBatch) Commit(ctx context.Context) error   { return b.tx.Commit(ctx) }
func (b *pgBatch) Rollback(ctx context.Context) error { return b.tx.Rollback(ctx) }
