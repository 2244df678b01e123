package integration_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/estraier/stgy-sub003/internal/aggregator"
	"github.com/estraier/stgy-sub003/internal/cursorstore"
	"github.com/estraier/stgy-sub003/internal/dbx"
	"github.com/estraier/stgy-sub003/internal/eventlog"
	"github.com/estraier/stgy-sub003/internal/idgen"
	"github.com/estraier/stgy-sub003/internal/notifystore"
	"github.com/estraier/stgy-sub003/internal/readside"
)

// Integration tests require a reachable Postgres and are skipped by
// default. To run them locally: set RUN_NOTIFY_INTEGRATION=1 and
// DATABASE_URL, then `go test -run Integration ./...`.
func TestIntegrationSingleLikeProducesExpectedSlot(t *testing.T) {
	if os.Getenv("RUN_NOTIFY_INTEGRATION") != "1" {
		t.Skip("integration tests skipped; set RUN_NOTIFY_INTEGRATION=1 to run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dsn := os.Getenv("DATABASE_URL")
	pool, err := dbx.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	for _, ddl := range []string{eventlog.Schema, cursorstore.Schema, notifystore.Schema} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS posts (id TEXT PRIMARY KEY, owned_by TEXT, snippet TEXT)`); err != nil {
		t.Fatalf("create posts table: %v", err)
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, nickname TEXT)`); err != nil {
		t.Fatalf("create users table: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO posts (id, owned_by, snippet) VALUES ('P9', 'U2', 'hello world') ON CONFLICT (id) DO NOTHING`); err != nil {
		t.Fatalf("seed post: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO users (id, nickname) VALUES ('U1', 'alice') ON CONFLICT (id) DO NOTHING`); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	issuer, err := idgen.NewIssuer(1)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	events := eventlog.New(pool, 4, issuer, noopPublisher{}, zerolog.Nop())
	cursors := cursorstore.New(pool)
	notifications := notifystore.New(pool)
	posts := readside.NewPgPostStore(pool)
	users := readside.NewPgUserStore(pool)
	agg := aggregator.New(notifications, posts, users, 8, time.UTC)

	eventID, err := events.Record(ctx, eventlog.Payload{Type: eventlog.PayloadLike, UserID: "U1", PostID: "P9"})
	if err != nil {
		t.Fatalf("record event: %v", err)
	}

	partition := eventlog.PartitionFor("P9", 4)
	batch, err := events.FetchBatch(ctx, partition, 0, 10)
	if err != nil {
		t.Fatalf("fetch batch: %v", err)
	}
	if len(batch) != 1 || batch[0].EventID != eventID {
		t.Fatalf("expected exactly the recorded event back, got %+v", batch)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	outcome, err := agg.ProcessEvent(ctx, tx, batch[0].EventID, batch[0].Payload)
	if err != nil {
		t.Fatalf("process event: %v", err)
	}
	if err := cursors.Save(ctx, tx, "notification", partition, batch[0].EventID); err != nil {
		t.Fatalf("save cursor: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if outcome != aggregator.Merged {
		t.Fatalf("expected Merged outcome, got %v", outcome)
	}

	term := time.UnixMilli(idgen.TimestampOf(eventID)).UTC().Format("2006-01-02")
	verifyTx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin verify tx: %v", err)
	}
	defer verifyTx.Rollback(ctx)

	payload, found, err := notifications.LoadForUpdate(ctx, verifyTx, "U2", "like:P9", term)
	if err != nil {
		t.Fatalf("load slot: %v", err)
	}
	if !found {
		t.Fatal("expected slot to exist")
	}
	if payload.CountUsers != 1 || len(payload.Records) != 1 || payload.Records[0].UserID != "U1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	cursor, err := cursors.Load(ctx, "notification", partition)
	if err != nil {
		t.Fatalf("load cursor: %v", err)
	}
	if cursor != eventID {
		t.Fatalf("expected cursor %d, got %d", eventID, cursor)
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, partition int) error { return nil }
