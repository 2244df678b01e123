package worker

import (
	"context"
	"sync"
	"time"

	"github.com/estraier/stgy-sub003/internal/aggregator"
	"github.com/estraier/stgy-sub003/internal/eventlog"
)

// worker owns a fixed subset of partitions (`p mod N == index`) and
// runs the §4.5.3 state machine independently for each one.
type worker struct {
	pool       *Pool
	index      int
	partitions []int
	states     map[int]*partitionState
	drains     sync.WaitGroup
}

// partitionState tracks the Idle/Draining/Pending machine for one
// partition. draining/pending are guarded by mu so concurrent wake
// deliveries can never start two drains for the same partition
// (spec.md §5 "in_flight and pending... guarded").
type partitionState struct {
	mu       sync.Mutex
	draining bool
	pending  bool
}

func newWorker(pool *Pool, index int) *worker {
	var owned []int
	for p := 0; p < pool.cfg.Partitions; p++ {
		if p%pool.cfg.Workers == index {
			owned = append(owned, p)
		}
	}
	states := make(map[int]*partitionState, len(owned))
	for _, p := range owned {
		states[p] = &partitionState{}
	}
	return &worker{pool: pool, index: index, partitions: owned, states: states}
}

// run drives the partition on startup (spec.md §4.5.3 "Idle →
// Draining on ... startup"), then reacts to wakes and a periodic tick
// fallback until ctx is cancelled.
func (w *worker) run(ctx context.Context) {
	defer w.drains.Wait()

	wakes, unsubscribe := w.pool.bus.Subscribe(ctx, w.index)
	defer unsubscribe()

	ticker := time.NewTicker(w.pool.cfg.WakeTick)
	defer ticker.Stop()

	for _, p := range w.partitions {
		w.wake(ctx, p)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case partition, ok := <-wakes:
			if !ok {
				return
			}
			w.pool.metrics.WakeReceived.Inc()
			if _, owned := w.states[partition]; owned {
				w.wake(ctx, partition)
			}
		case <-ticker.C:
			for _, p := range w.partitions {
				w.wake(ctx, p)
			}
		}
	}
}

// wake transitions a partition's state machine on a wake-received
// event (spec.md §4.5.3): start a drain if idle, otherwise set the
// pending flag so the current drain loops once more on completion.
func (w *worker) wake(ctx context.Context, partition int) {
	ps := w.states[partition]
	ps.mu.Lock()
	if ps.draining {
		ps.pending = true
		ps.mu.Unlock()
		return
	}
	ps.draining = true
	ps.mu.Unlock()

	w.drains.Add(1)
	go func() {
		defer w.drains.Done()
		w.drainLoop(ctx, partition, ps)
	}()
}

// drainLoop repeatedly calls drainOnce until a pass yields no events
// and no pending wake arrived meanwhile, then returns to Idle.
func (w *worker) drainLoop(ctx context.Context, partition int, ps *partitionState) {
	for {
		n, err := w.drainOnce(ctx, partition)
		if err != nil {
			w.pool.log.Error().Err(err).Int("partition", partition).Msg("drain pass aborted; will retry on next wake")
		}

		ps.mu.Lock()
		switch {
		case n > 0 && err == nil:
			ps.mu.Unlock()
			continue
		case ps.pending:
			ps.pending = false
			ps.mu.Unlock()
			continue
		default:
			ps.draining = false
			ps.mu.Unlock()
			return
		}
	}
}

// drainOnce performs one pass of spec.md §4.5 steps 1-4: load the
// cursor, fetch a batch, process each event in its own transaction,
// and opportunistically purge. It returns the number of events fetched
// (not necessarily all committed, if an error aborted partway).
func (w *worker) drainOnce(ctx context.Context, partition int) (int, error) {
	cursor, err := w.pool.cursors.Load(ctx, Consumer, partition)
	if err != nil {
		return 0, err
	}

	batch, err := w.pool.events.FetchBatch(ctx, partition, cursor, w.pool.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		w.pool.metrics.DrainPasses.WithLabelValues("empty").Inc()
		return 0, nil
	}

	for _, row := range batch {
		if err := w.processOne(ctx, partition, row.EventID, row.Payload); err != nil {
			w.pool.metrics.DrainPasses.WithLabelValues("error").Inc()
			return len(batch), err
		}
	}

	w.pool.metrics.DrainPasses.WithLabelValues("ok").Inc()
	w.pool.metrics.DrainPassEvents.Observe(float64(len(batch)))
	w.afterNonEmptyPass(ctx, partition, len(batch))
	return len(batch), nil
}

// processOne runs one event through a single transaction covering
// recipient resolution, merge and cursor advance (spec.md §5 "Locking
// discipline", §4.5 step 3a/3e/3f). On any error a-e it rolls back and
// does not advance past the failing event (spec.md §4.5 step 3f); a
// Logical-skip outcome from the aggregator still commits the cursor
// advance, matching spec.md §7.
func (w *worker) processOne(ctx context.Context, partition int, eventID uint64, payload eventlog.Payload) error {
	tx, err := w.pool.db.Begin(ctx)
	if err != nil {
		return err
	}

	outcome, err := w.pool.agg.ProcessEvent(ctx, tx, eventID, payload)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := w.pool.cursors.Save(ctx, tx, Consumer, partition, eventID); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	w.pool.metrics.EventsProcessed.WithLabelValues(outcomeLabel(outcome)).Inc()
	if outcome != aggregator.Merged {
		w.pool.log.Debug().Int("partition", partition).Uint64("event_id", eventID).Str("outcome", outcomeLabel(outcome)).Msg("event skipped, cursor advanced")
	}
	return nil
}

func outcomeLabel(o aggregator.Outcome) string {
	switch o {
	case aggregator.Merged:
		return "merged"
	case aggregator.SkippedSelfInteraction:
		return "self_interaction"
	case aggregator.SkippedDeletedPost:
		return "deleted_post"
	case aggregator.SkippedUnknownType:
		return "unknown_type"
	default:
		return "unknown"
	}
}

// afterNonEmptyPass runs the opportunistic and threshold-triggered
// purges described in spec.md §4.5 step 4. Both failures are logged,
// never propagated to the drain loop (spec.md §7).
func (w *worker) afterNonEmptyPass(ctx context.Context, partition int, processed int) {
	deleted, err := w.pool.events.PurgeOld(ctx, partition, w.pool.cfg.EventLogRetention, w.pool.cfg.PurgeStatementTimeout)
	if err != nil {
		w.pool.log.Warn().Err(err).Int("partition", partition).Msg("event log purge failed")
	} else if deleted > 0 {
		w.pool.metrics.EventLogPurged.Add(float64(deleted))
	}

	if w.pool.notePurgeOpportunity(processed) {
		deleted, err := w.pool.notifications.PurgeOld(ctx, w.pool.cfg.NotificationRetention, w.pool.cfg.PurgeStatementTimeout)
		if err != nil {
			w.pool.log.Warn().Err(err).Msg("notification retention purge failed")
		} else if deleted > 0 {
			w.pool.metrics.NotificationsPurged.Add(float64(deleted))
		}
	}
}
