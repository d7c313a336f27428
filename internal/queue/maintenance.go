package queue

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sirclappington/enq/internal/store"
)

func (q *Queue[T]) startMaintenance() {
	ctx, cancel := context.WithCancel(q.disposeCtx)
	q.maintCancel = cancel
	done := make(chan struct{})
	q.maintDone = done
	go q.runMaintenance(ctx, done)
}

func (q *Queue[T]) stopMaintenance() {
	if q.maintCancel != nil {
		q.maintCancel()
	}
	if q.maintDone != nil {
		<-q.maintDone
	}
}

// runMaintenance implements spec.md §4.3's loop: try the throttled lock
// back-to-back with no sleep — the lock's own throttle interval provides
// the effective cadence, since TryUsingLock holds the lock for the full
// interval and does not release it early.
func (q *Queue[T]) runMaintenance(ctx context.Context, done chan struct{}) {
	defer close(done)

	lockName := q.keys.MaintenanceLockName()
	throttle := q.cfg.maintenanceThrottle()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := q.lockProvider.TryUsingLock(ctx, lockName, throttle, q.cfg.MaintenanceAcquireTimeout,
			func(innerCtx context.Context) error {
				return q.runMaintenancePass(innerCtx)
			})
		if err != nil {
			q.logger.Warn("maintenance: pass failed", zap.Error(err))
		}
	}
}

// runMaintenancePass runs the three sweeps in order. Each sweep's
// per-item failures are aggregated with multierr and logged; a failure
// in one sweep never prevents the next sweep in this pass, or the next
// pass, from running (spec.md §7's "maintenance sub-step failure").
func (q *Queue[T]) runMaintenancePass(ctx context.Context) error {
	var errs error

	if err := q.sweepInFlightTimeouts(ctx); err != nil {
		errs = multierr.Append(errs, err)
		q.logger.Warn("maintenance: in-flight timeout sweep had errors", zap.Error(err))
	}
	if err := q.sweepDelayedRelease(ctx); err != nil {
		errs = multierr.Append(errs, err)
		q.logger.Warn("maintenance: delayed release sweep had errors", zap.Error(err))
	}
	if err := q.sweepDeadLetterTrim(ctx); err != nil {
		errs = multierr.Append(errs, err)
		q.logger.Warn("maintenance: dead-letter trim had errors", zap.Error(err))
	}
	return errs
}

// sweepInFlightTimeouts implements spec.md §4.3 step 1.
func (q *Queue[T]) sweepInFlightTimeouts(ctx context.Context) error {
	ids, err := q.st.ListRange(ctx, q.keys.InFlight)
	if err != nil {
		return transient(err, "maintenance: list in-flight")
	}

	now := q.clock()
	var errs error
	for _, id := range ids {
		data, found, err := q.st.Get(ctx, q.keys.Dequeued(id))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !found {
			// Defers action one pass, per spec.md §4.3 step 1.
			if err := q.st.Set(ctx, q.keys.Dequeued(id), timestampBytes(now), q.cfg.dequeueTimestampTTL()); err != nil {
				errs = multierr.Append(errs, err)
			}
			continue
		}
		dequeuedAt, ok := parseTimestamp(data)
		if !ok {
			continue
		}
		if now.Sub(dequeuedAt) <= q.cfg.WorkItemTimeout {
			continue
		}
		if err := q.Abandon(ctx, id); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		q.counters.workItemTimeouts.Add(1)
	}
	return errs
}

// sweepDelayedRelease implements spec.md §4.3 step 2.
func (q *Queue[T]) sweepDelayedRelease(ctx context.Context) error {
	ids, err := q.st.ListRange(ctx, q.keys.Delayed)
	if err != nil {
		return transient(err, "maintenance: list delayed")
	}

	now := q.clock()
	var errs error
	for _, id := range ids {
		data, found, err := q.st.Get(ctx, q.keys.Wait(id))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		due := !found
		if found {
			if waitUntil, ok := parseTimestamp(data); ok {
				due = !waitUntil.After(now)
			} else {
				due = true
			}
		}
		if !due {
			continue
		}

		err = q.st.Transact(ctx, func(tx store.Tx) {
			tx.ListRemove(q.keys.Delayed, id)
			tx.HeadPush(q.keys.Ready, id)
			tx.Delete(q.keys.Wait(id))
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := q.st.Publish(ctx, q.keys.Channel, id); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// sweepDeadLetterTrim implements spec.md §4.3 step 3.
func (q *Queue[T]) sweepDeadLetterTrim(ctx context.Context) error {
	dropped, err := q.st.TrimFromTail(ctx, q.keys.Dead, q.cfg.DeadLetterMaxItems)
	if err != nil {
		return transient(err, "maintenance: trim dead list")
	}

	var errs error
	for _, id := range dropped {
		_ = q.st.Delete(ctx, q.keys.Payload(id))
		_ = q.st.Delete(ctx, q.keys.Attempts(id))
		_ = q.st.Delete(ctx, q.keys.Enqueued(id))
		_ = q.st.Delete(ctx, q.keys.Dequeued(id))
		_ = q.st.Delete(ctx, q.keys.Wait(id))
		// Already removed from Dead by TrimFromTail; these defensively
		// cover the momentary duplication §3.3 tolerates across a crash.
		if err := q.st.ListRemove(ctx, q.keys.Ready, id); err != nil {
			errs = multierr.Append(errs, err)
		}
		if err := q.st.ListRemove(ctx, q.keys.InFlight, id); err != nil {
			errs = multierr.Append(errs, err)
		}
		if err := q.st.ListRemove(ctx, q.keys.Delayed, id); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
