// Package idgen implements the Id Issuer (spec.md §4.1): a 64-bit,
// strictly-monotonic-per-process id that doubles as a time-ordered
// partition cursor. The bit layout is an implementation detail private
// to this package — callers only rely on the two guarantees spec.md
// promises: timestamp_of is non-decreasing in id, and LowerBoundFor
// returns the smallest id whose timestamp is >= t.
package idgen

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	timestampBits = 42
	workerBits    = 10
	sequenceBits  = 12

	maxWorkerID = (1 << workerBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	workerShift = sequenceBits
	msShift     = sequenceBits + workerBits
)

// Epoch is the reference point for the timestamp field, chosen so the
// 42-bit field doesn't roll over for well over a century.
var Epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrSeqExhausted is returned when more ids are requested within a
// single millisecond than the sequence field can represent. Callers
// must retry after a short sleep rather than treat this as fatal
// (spec.md §4.1, §7).
var ErrSeqExhausted = errors.New("idgen: sequence exhausted for current millisecond")

// Issuer issues strictly monotonic ids for one worker identity. It is
// safe for concurrent use by multiple goroutines in the same process.
type Issuer struct {
	mu       sync.Mutex
	workerID int64

	// startWall + time.Since(startWall) implements the hybrid clock:
	// wall-clock seed, advanced by a monotonic reading, so NTP
	// corrections can't move the emitted timestamp backward.
	startWall time.Time

	lastMs int64
	seq    int64
}

// NewIssuer creates an Issuer for the given worker identity. workerID
// must fit in workerBits; callers are expected to assign distinct
// worker ids across processes for cross-process uniqueness (spec.md
// §4.1, §6 ID_ISSUE_WORKER_ID).
func NewIssuer(workerID int64) (*Issuer, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("idgen: worker id %d out of range [0,%d]", workerID, maxWorkerID)
	}
	return &Issuer{
		workerID:  workerID,
		startWall: time.Now(),
		lastMs:    -1,
	}, nil
}

func (iss *Issuer) currentMs() int64 {
	now := iss.startWall.Add(time.Since(iss.startWall))
	return now.Sub(Epoch).Milliseconds()
}

// Issue returns a fresh id, strictly increasing across concurrent
// callers within this process.
func (iss *Issuer) Issue() (uint64, error) {
	iss.mu.Lock()
	defer iss.mu.Unlock()

	ms := iss.currentMs()
	if ms < iss.lastMs {
		// Clamp: never let the emitted timestamp regress relative to
		// the last emitted id (spec.md §4.1).
		ms = iss.lastMs
	}

	if ms == iss.lastMs {
		iss.seq++
		if iss.seq > maxSequence {
			return 0, ErrSeqExhausted
		}
	} else {
		iss.lastMs = ms
		iss.seq = 0
	}

	id := (uint64(ms) << msShift) | (uint64(iss.workerID) << workerShift) | uint64(iss.seq)
	return id, nil
}

// TimestampOf returns the millisecond timestamp encoded in id. Pure and
// non-decreasing in id (spec.md §3 Event ID invariant ii).
func TimestampOf(id uint64) int64 {
	msSinceEpoch := int64(id >> msShift)
	return Epoch.UnixMilli() + msSinceEpoch
}

// LowerBoundFor returns the smallest id whose TimestampOf is >= t
// (milliseconds since Unix epoch). Pure (spec.md §3 Event ID invariant
// iii).
func LowerBoundFor(t int64) uint64 {
	epochMs := Epoch.UnixMilli()
	msSinceEpoch := t - epochMs
	if msSinceEpoch < 0 {
		msSinceEpoch = 0
	}
	return uint64(msSinceEpoch) << msShift
}
