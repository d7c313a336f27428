package queue

import (
	"context"
	"time"
)

// Handler processes one dequeued entry. Returning an error is treated as
// a handler exception (spec.md §7): the worker runloop abandons the
// entry and increments the worker-error counter.
type Handler[T any] func(ctx context.Context, entry *QueueEntry[T]) error

// QueueEntry is the consumer-visible handle for one dequeue, spec.md
// §3.1. It carries a back-reference to its queue so Complete and Abandon
// do not require the caller to still be "holding" anything beyond the
// entry itself (spec.md §9's auto-abandon re-entrancy note).
type QueueEntry[T any] struct {
	ID         string
	Payload    T
	EnqueuedAt time.Time
	Attempts   int

	queue *Queue[T]
}

// Complete marks this entry's item as done.
func (e *QueueEntry[T]) Complete(ctx context.Context) error {
	return e.queue.Complete(ctx, e.ID)
}

// Abandon returns this entry's item to retry (or dead-letters it if
// retries are exhausted).
func (e *QueueEntry[T]) Abandon(ctx context.Context) error {
	return e.queue.Abandon(ctx, e.ID)
}
