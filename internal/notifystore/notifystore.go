// Package notifystore persists notification slots — the aggregated,
// per-recipient payloads the Notification Aggregator merges events
// into (spec.md §3 "Notification slot"). It is a thin transactional
// layer; the merge decision logic lives in package aggregator so it
// can be unit tested without a database.
package notifystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for the notification table (spec.md §6).
const Schema = `
CREATE TABLE IF NOT EXISTS notification (
	user_id    TEXT NOT NULL,
	slot       TEXT NOT NULL,
	term       TEXT NOT NULL,
	is_read    BOOL NOT NULL DEFAULT false,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, slot, term)
);
`

// Record is one contributor entry inside an AggregatePayload (spec.md
// §3). PostID/PostSnippet are only populated for post-centric slots.
type Record struct {
	UserID       string `json:"userId"`
	UserNickname string `json:"userNickname"`
	PostID       string `json:"postId,omitempty"`
	PostSnippet  string `json:"postSnippet,omitempty"`
	Ts           int64  `json:"ts"`
}

// AggregatePayload is the JSON document stored in a slot (spec.md §3).
// CountPosts is only maintained for reply and mention slots; it stays
// zero, and is omitted from the JSON, for follow and like slots.
type AggregatePayload struct {
	CountUsers int      `json:"countUsers"`
	CountPosts int      `json:"countPosts,omitempty"`
	Records    []Record `json:"records"`
}

// Store reads and writes notification slot rows.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// LoadForUpdate selects the slot row for (recipient, slot, term) with
// FOR UPDATE, preventing interleaving with any concurrent mutator
// (spec.md §5 "Locking discipline"). found is false if the slot doesn't
// exist yet.
func (s *Store) LoadForUpdate(ctx context.Context, tx pgx.Tx, recipient, slot, term string) (AggregatePayload, bool, error) {
	var raw []byte
	err := tx.QueryRow(ctx,
		`SELECT payload FROM notification WHERE user_id = $1 AND slot = $2 AND term = $3 FOR UPDATE`,
		recipient, slot, term,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return AggregatePayload{}, false, nil
	}
	if err != nil {
		return AggregatePayload{}, false, fmt.Errorf("notifystore: load_for_update: %w", err)
	}
	var payload AggregatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return AggregatePayload{}, false, fmt.Errorf("notifystore: unmarshal payload: %w", err)
	}
	return payload, true, nil
}

// Upsert writes the merged payload back, clearing is_read and bumping
// updated_at to the event's own timestamp (spec.md §3 invariant 7,
// §4.5.2 step 6).
func (s *Store) Upsert(ctx context.Context, tx pgx.Tx, recipient, slot, term string, payload AggregatePayload, updatedAtMs int64) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notifystore: marshal payload: %w", err)
	}
	updatedAt := time.UnixMilli(updatedAtMs)

	_, err = tx.Exec(ctx,
		`INSERT INTO notification (user_id, slot, term, is_read, payload, updated_at)
		 VALUES ($1, $2, $3, false, $4, $5)
		 ON CONFLICT (user_id, slot, term)
		 DO UPDATE SET is_read = false, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		recipient, slot, term, raw, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("notifystore: upsert: %w", err)
	}
	return nil
}

// PurgeOld deletes slot rows whose updated_at is older than retention,
// bounded by a per-statement timeout, run in its own transaction
// (spec.md §4.5.2 "Retention purge"). On timeout or error it reports
// zero deleted together with the error, leaving the rows in place.
func (s *Store) PurgeOld(ctx context.Context, retention time.Duration, statementTimeout time.Duration) (int64, error) {
	purgeCtx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	cutoff := time.Now().Add(-retention)
	tag, err := s.pool.Exec(purgeCtx, `DELETE FROM notification WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("notifystore: purge_old: %w", err)
	}
	return tag.RowsAffected(), nil
}
