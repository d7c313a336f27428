package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// StartWorking implements spec.md §4.2: at most one runloop per queue
// instance repeatedly dequeues, invokes handler, and auto-completes or
// abandons based on the outcome. ctx is the per-worker cancellation
// handle (spec.md §5); passing nil uses context.Background().
func (q *Queue[T]) StartWorking(ctx context.Context, handler Handler[T], autoComplete bool) error {
	if handler == nil {
		return misuse("start_working: handler must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	if q.handler != nil {
		q.mu.Unlock()
		return misuse("start_working: a worker runloop is already running for this queue")
	}
	workerCtx, cancel := context.WithCancel(ctx)
	q.handler = handler
	q.autoComplete = autoComplete
	q.workerCancel = cancel
	done := make(chan struct{})
	q.workerDone = done
	q.mu.Unlock()

	go q.runWorker(workerCtx, done)
	return nil
}

// StopWorking clears the handler, cancels the runloop's handle (which in
// turn tears down any subscription the runloop's blocked Dequeue call
// holds, and wakes it), and waits for the runloop goroutine to exit.
func (q *Queue[T]) StopWorking() {
	q.mu.Lock()
	if q.handler == nil {
		q.mu.Unlock()
		return
	}
	cancel := q.workerCancel
	done := q.workerDone
	q.handler = nil
	q.workerCancel = nil
	q.workerDone = nil
	q.mu.Unlock()

	cancel()
	<-done
}

func (q *Queue[T]) runWorker(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.disposeCtx.Done():
			return
		default:
		}

		entry, err := q.Dequeue(ctx, q.cfg.DequeueTimeout)
		if err != nil {
			q.logger.Warn("worker: dequeue error", zap.Error(err))
			continue
		}
		if entry == nil {
			continue // timeout, cancellation, or disposal: try again
		}

		q.mu.Lock()
		handler := q.handler
		autoComplete := q.autoComplete
		q.mu.Unlock()
		if handler == nil {
			return // StopWorking raced us between Dequeue and here
		}

		if herr := invokeHandler(ctx, handler, entry); herr != nil {
			q.counters.workerErrors.Add(1)
			q.logger.Warn("worker: handler failed",
				zap.String("id", entry.ID), zap.Error(herr))
			if aerr := q.Abandon(ctx, entry.ID); aerr != nil {
				q.logger.Warn("worker: abandon after handler error failed",
					zap.String("id", entry.ID), zap.Error(aerr))
			}
			continue
		}

		if autoComplete {
			if cerr := q.Complete(ctx, entry.ID); cerr != nil {
				q.logger.Warn("worker: auto-complete failed",
					zap.String("id", entry.ID), zap.Error(cerr))
			}
		}
	}
}

// invokeHandler runs handler, converting a panic into a handler
// exception (spec.md §7) instead of crashing the runloop.
func invokeHandler[T any](ctx context.Context, handler Handler[T], entry *QueueEntry[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, entry)
}
