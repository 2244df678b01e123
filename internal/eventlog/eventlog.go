// Package eventlog implements the Event Log component (spec.md §4.2): a
// partitioned, append-only table of immutable events. Partition
// selection, append, batch reads and retention purge all live here; the
// cursor and the wake bus are separate components the caller wires in.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/estraier/stgy-sub003/internal/idgen"
)

// Schema is the DDL for the event log table (spec.md §6).
const Schema = `
CREATE TABLE IF NOT EXISTS event_log (
	partition_id INT NOT NULL,
	event_id     BIGINT NOT NULL,
	payload      JSONB NOT NULL,
	PRIMARY KEY (partition_id, event_id)
);
CREATE INDEX IF NOT EXISTS event_log_partition_event_idx ON event_log (partition_id, event_id);
`

// Publisher is the Wake Bus's producer-facing surface (spec.md §4.4). A
// publish failure is non-fatal: the wake bus is a hint, not a queue.
type Publisher interface {
	Publish(ctx context.Context, partition int) error
}

// Log appends events to, and reads/purges, the partitioned event table.
type Log struct {
	pool       *pgxpool.Pool
	partitions int
	issuer     *idgen.Issuer
	bus        Publisher
	log        zerolog.Logger
}

// New constructs a Log. partitions is P, fixed for the deployment.
func New(pool *pgxpool.Pool, partitions int, issuer *idgen.Issuer, bus Publisher, log zerolog.Logger) *Log {
	return &Log{
		pool:       pool,
		partitions: partitions,
		issuer:     issuer,
		bus:        bus,
		log:        log.With().Str("component", "eventlog").Logger(),
	}
}

// Record appends one event: it computes the partition from the
// payload's affinity key, issues an id, inserts the row in a single
// atomic write, then publishes a wake hint for the owning worker.
// Returns the issued id.
func (l *Log) Record(ctx context.Context, payload Payload) (uint64, error) {
	key, err := payload.AffinityKey()
	if err != nil {
		return 0, err
	}
	partition := PartitionFor(key, l.partitions)

	id, err := l.issueID(ctx)
	if err != nil {
		return 0, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("eventlog: marshal payload: %w", err)
	}

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO event_log (partition_id, event_id, payload) VALUES ($1, $2, $3)`,
		partition, int64(id), raw,
	); err != nil {
		return 0, fmt.Errorf("eventlog: append: %w", err)
	}

	// Publish is best-effort: the drain loop can always reconstruct
	// work from the cursor and the log (spec.md §9).
	if err := l.bus.Publish(ctx, partition); err != nil {
		l.log.Warn().Err(err).Int("partition", partition).Msg("wake publish failed; drain will catch up on next tick")
	}

	return id, nil
}

// issueID retries on ErrSeqExhausted with a short sleep, per spec.md
// §4.1's contract that callers must retry rather than crash.
func (l *Log) issueID(ctx context.Context) (uint64, error) {
	for {
		id, err := l.issuer.Issue()
		if err == nil {
			return id, nil
		}
		if err != idgen.ErrSeqExhausted {
			return 0, err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// Row is one event read back from the log.
type Row struct {
	EventID uint64
	Payload Payload
}

// FetchBatch returns events in partition p with event_id > afterID, in
// ascending order, up to limit rows (spec.md §4.2 fetch_batch).
func (l *Log) FetchBatch(ctx context.Context, partition int, afterID uint64, limit int) ([]Row, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT event_id, payload FROM event_log
		 WHERE partition_id = $1 AND event_id > $2
		 ORDER BY event_id ASC
		 LIMIT $3`,
		partition, int64(afterID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("eventlog: fetch_batch: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var id int64
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("eventlog: fetch_batch scan: %w", err)
		}
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("eventlog: fetch_batch unmarshal: %w", err)
		}
		out = append(out, Row{EventID: uint64(id), Payload: p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: fetch_batch rows: %w", err)
	}
	return out, nil
}

// PurgeOld deletes rows in partition older than retention, bounded by a
// per-statement timeout. On timeout it reports zero deleted rather than
// propagating, leaving the rows for the next attempt (spec.md §4.2,
// §7 Retention-purge-failure).
func (l *Log) PurgeOld(ctx context.Context, partition int, retention time.Duration, statementTimeout time.Duration) (int64, error) {
	cutoff := idgen.LowerBoundFor(time.Now().Add(-retention).UnixMilli())

	purgeCtx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	tag, err := l.pool.Exec(purgeCtx,
		`DELETE FROM event_log WHERE partition_id = $1 AND event_id < $2`,
		partition, int64(cutoff),
	)
	if err != nil {
		l.log.Warn().Err(err).Int("partition", partition).Msg("event log purge failed; will retry on next opportunity")
		return 0, nil
	}
	return tag.RowsAffected(), nil
}

// TxFromPool begins a transaction used to wrap one event's aggregate
// upsert + cursor advance (spec.md §4.3, §4.5 step 3a/3f).
func (l *Log) TxFromPool(ctx context.Context) (pgx.Tx, error) {
	return l.pool.Begin(ctx)
}
