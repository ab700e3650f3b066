package outbox

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/mcdev12/bazaar/go/internal/notify"
)

//go:embed schema.sql
var schema string

// DBTX is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	insertOutbox = `
INSERT INTO notification_outbox (id, kind, auction_id, payload, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`

	fetchUnsentOutbox = `
SELECT id, kind, auction_id, payload, created_at
FROM notification_outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED`

	markOutboxSent = `
UPDATE notification_outbox
SET sent_at = now()
WHERE id = ANY($1)`

	countPendingOutbox = `SELECT COUNT(*) FROM notification_outbox WHERE sent_at IS NULL`
)

type Repository struct {
	db DBTX
}

func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// Migrate creates the outbox table when it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create notification outbox: %w", err)
	}
	return nil
}

// Insert stores an envelope. Re-inserting the same id is a no-op.
func (r *Repository) Insert(ctx context.Context, env notify.Envelope) error {
	_, err := r.db.Exec(ctx, insertOutbox,
		env.ID, string(env.Kind), env.AuctionID.String(), []byte(env.Payload), env.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", env.Kind, err)
	}
	return nil
}

func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]notify.Envelope, error) {
	rows, err := r.db.Query(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var events []notify.Envelope
	for rows.Next() {
		var (
			env       notify.Envelope
			kind      string
			auctionID string
			payload   []byte
		)
		if err := rows.Scan(&env.ID, &kind, &auctionID, &payload, &env.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		env.Kind = notify.Kind(kind)
		env.AuctionID = models.ID(auctionID)
		env.Payload = payload
		events = append(events, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outbox events: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkSent(ctx context.Context, ids []uuid.UUID) error {
	if _, err := r.db.Exec(ctx, markOutboxSent, ids); err != nil {
		return fmt.Errorf("failed to mark outbox events as sent: %w", err)
	}
	return nil
}

func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, countPendingOutbox).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending outbox events: %w", err)
	}
	return count, nil
}
