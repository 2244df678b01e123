package dbx

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SingletonLock holds a Postgres advisory lock for the lifetime of one
// dedicated connection. Only one process in the deployment can hold the
// same named lock at a time (spec.md §5 "Singleton gate").
type SingletonLock struct {
	conn *pgxpool.Conn
	key  int64
}

// lockKey derives a stable 64-bit advisory lock key from a name, so the
// same name always maps to the same key regardless of process or
// language (matches the determinism requirement of spec.md §4.2.1 for
// the partition hash, applied here to lock naming).
func lockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// TryAcquireSingleton attempts a non-blocking advisory lock on its own
// checked-out connection. It returns ok=false (no error) if another
// process already holds the lock — the caller's contract per spec.md §5
// is to exit 0 in that case, not to treat it as a failure.
func TryAcquireSingleton(ctx context.Context, pool *pgxpool.Pool, name string) (*SingletonLock, bool, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire dedicated session for singleton lock: %w", err)
	}

	key := lockKey(name)
	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("pg_try_advisory_lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}
	return &SingletonLock{conn: conn, key: key}, true, nil
}

// Release unlocks and returns the dedicated session to the pool. Safe to
// call once on process shutdown.
func (l *SingletonLock) Release(ctx context.Context) {
	if l == nil || l.conn == nil {
		return
	}
	_, _ = l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	l.conn.Release()
	l.conn = nil
}
