package idgen_test

import (
	"errors"
	"testing"
	"time"

	"github.com/estraier/stgy-sub003/internal/idgen"
)

func TestIssueIsStrictlyMonotonic(t *testing.T) {
	iss, err := idgen.NewIssuer(1)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	var last uint64
	for i := 0; i < 10000; i++ {
		id, err := iss.Issue()
		for errors.Is(err, idgen.ErrSeqExhausted) {
			// Callers retry after a short sleep rather than fail.
			time.Sleep(time.Millisecond)
			id, err = iss.Issue()
		}
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if i > 0 && id <= last {
			t.Fatalf("id did not increase: last=%d id=%d", last, id)
		}
		last = id
	}
}

func TestTimestampOfIsNonDecreasing(t *testing.T) {
	iss, err := idgen.NewIssuer(2)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	var lastID uint64
	var lastTs int64 = -1
	for i := 0; i < 5000; i++ {
		id, err := iss.Issue()
		for errors.Is(err, idgen.ErrSeqExhausted) {
			time.Sleep(time.Millisecond)
			id, err = iss.Issue()
		}
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		ts := idgen.TimestampOf(id)
		if id > lastID && ts < lastTs {
			t.Fatalf("timestamp decreased for increasing id: lastTs=%d ts=%d", lastTs, ts)
		}
		lastID, lastTs = id, ts
	}
}

func TestLowerBoundForIsPureAndOrdered(t *testing.T) {
	now := time.Now().UnixMilli()
	a := idgen.LowerBoundFor(now)
	b := idgen.LowerBoundFor(now)
	if a != b {
		t.Fatalf("LowerBoundFor must be pure: got %d and %d for same input", a, b)
	}

	later := idgen.LowerBoundFor(now + 1000)
	if later <= a {
		t.Fatalf("expected LowerBoundFor to increase with t: a=%d later=%d", a, later)
	}

	if idgen.TimestampOf(a) < now {
		t.Fatalf("LowerBoundFor(%d) produced id with timestamp %d < t", now, idgen.TimestampOf(a))
	}
}

func TestInvalidWorkerID(t *testing.T) {
	if _, err := idgen.NewIssuer(-1); err == nil {
		t.Fatalf("expected error for negative worker id")
	}
	if _, err := idgen.NewIssuer(1 << 20); err == nil {
		t.Fatalf("expected error for out-of-range worker id")
	}
}
