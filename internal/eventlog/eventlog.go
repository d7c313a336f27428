// Package eventlog is a durable, append-only audit trail for the two
// terminal events the in-store dead list cannot answer once an item has
// been trimmed or completed and its sidecar keys deleted: completions
// and dead-letterings. It is additive: a write failure here never fails
// the queue operation that already committed, since by the time a
// behavior hook runs the store-side transition is already durable.
package eventlog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sirclappington/enq/internal/queue"
)

// Event names recorded in the event log's event column.
const (
	EventCompleted    = "completed"
	EventDeadLettered = "dead_lettered"
)

// Store is a pgx-backed sink for queue lifecycle events.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pgx pool. Schema is managed separately by the
// goose migrations under internal/eventlog/migrations, applied by
// cmd/migrate.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record inserts one audit row. Safe to call from a behavior hook:
// failures are the caller's to log and swallow, not propagate.
func (s *Store) Record(ctx context.Context, queueName, itemID, event string, attempts int) error {
	_, err := s.pool.Exec(ctx,
		`insert into queue_events (queue_name, item_id, event, attempts, recorded_at)
		 values ($1, $2, $3, $4, now())`,
		queueName, itemID, event, attempts,
	)
	return err
}

// Behavior implements queue.Behavior, recording a row on every
// completion and every dead-lettering. Embed queue.BaseBehavior is
// unnecessary here since every hook is defined, but OnEnqueuing,
// OnEnqueued, and OnDequeued are intentionally no-ops: this sink only
// cares about terminal outcomes.
type Behavior struct {
	QueueName string
	Store     *Store
	Logger    *zap.Logger
}

func (b Behavior) OnEnqueuing(context.Context, any) bool        { return true }
func (b Behavior) OnEnqueued(context.Context, string, any)      {}
func (b Behavior) OnDequeued(context.Context, string, any, int) {}

// OnCompleted records a completion row, swallowing any write failure.
func (b Behavior) OnCompleted(ctx context.Context, id string) {
	if err := b.Store.Record(ctx, b.QueueName, id, EventCompleted, -1); err != nil {
		b.logger().Warn("eventlog: record completed failed",
			zap.String("queue", b.QueueName), zap.String("id", id), zap.Error(err))
	}
}

// OnAbandoned records a dead-lettering row; every other abandon outcome
// (ready, delayed) is not terminal and is not recorded.
func (b Behavior) OnAbandoned(ctx context.Context, id string, attempts int, outcome queue.AbandonOutcome) {
	if outcome != queue.AbandonOutcomeDead {
		return
	}
	if err := b.Store.Record(ctx, b.QueueName, id, EventDeadLettered, attempts); err != nil {
		b.logger().Warn("eventlog: record dead-lettered failed",
			zap.String("queue", b.QueueName), zap.String("id", id), zap.Error(err))
	}
}

func (b Behavior) logger() *zap.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return zap.NewNop()
}
