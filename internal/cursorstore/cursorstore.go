// Package cursorstore implements the Cursor Store component (spec.md
// §4.3): the per-(consumer, partition) bookmark of the last durably
// processed event id.
package cursorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for the cursor table (spec.md §6).
const Schema = `
CREATE TABLE IF NOT EXISTS notification_cursor (
	consumer      TEXT NOT NULL,
	partition_id  INT NOT NULL,
	last_event_id BIGINT NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (consumer, partition_id)
);
`

// Store reads and advances cursors.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Load returns the last processed event id for (consumer, partition),
// inserting a default-zero row if one doesn't exist yet (spec.md §4.2
// "upsert-if-missing semantics").
func (s *Store) Load(ctx context.Context, consumer string, partition int) (uint64, error) {
	var lastID int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notification_cursor (consumer, partition_id, last_event_id)
		 VALUES ($1, $2, 0)
		 ON CONFLICT (consumer, partition_id) DO UPDATE SET consumer = EXCLUDED.consumer
		 RETURNING last_event_id`,
		consumer, partition,
	).Scan(&lastID)
	if err != nil {
		return 0, fmt.Errorf("cursorstore: load: %w", err)
	}
	return uint64(lastID), nil
}

// Save advances the cursor to eventID inside the caller's transaction.
// It never opens its own transaction: spec.md §4.3 requires the cursor
// advance and the aggregate upsert to commit or roll back together.
func (s *Store) Save(ctx context.Context, tx pgx.Tx, consumer string, partition int, eventID uint64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO notification_cursor (consumer, partition_id, last_event_id, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (consumer, partition_id)
		 DO UPDATE SET last_event_id = EXCLUDED.last_event_id, updated_at = now()`,
		consumer, partition, int64(eventID),
	)
	if err != nil {
		return fmt.Errorf("cursorstore: save: %w", err)
	}
	return nil
}
