// Package queue implements the reliable at-least-once work queue engine
// from spec.md: enqueue/dequeue/complete/abandon against a store.Store,
// the worker runloop, and the cooperative maintenance loop.
package queue

import (
	"context"
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sirclappington/enq/internal/lock"
	"github.com/sirclappington/enq/internal/store"
)

const idlePollInterval = time.Second

// Queue is a single logical queue instance, generic over the payload
// type T. Multiple Queue[T] instances across multiple processes, all
// constructed with the same queue name against the same store, form one
// logical distributed queue (spec.md §1).
type Queue[T any] struct {
	st         store.Store
	keys       Keys
	cfg        Config
	serializer Serializer[T]
	logger     *zap.Logger
	idGen      func() string
	clock      func() time.Time

	lockProvider lock.Provider

	counters counters

	mu           sync.Mutex
	handler      Handler[T]
	autoComplete bool
	workerCancel context.CancelFunc
	workerDone   chan struct{}

	disposeCtx    context.Context
	disposeCancel context.CancelFunc

	maintCancel context.CancelFunc
	maintDone   chan struct{}
}

// Option customizes a Queue[T] at construction.
type Option[T any] func(*Queue[T])

// WithLogger sets the zap logger used for worker/maintenance diagnostics.
func WithLogger[T any](l *zap.Logger) Option[T] {
	return func(q *Queue[T]) { q.logger = l }
}

// WithLockProvider sets the distributed lock provider used to throttle
// maintenance. Required unless Config.DisableMaintenanceTasks is set.
func WithLockProvider[T any](p lock.Provider) Option[T] {
	return func(q *Queue[T]) { q.lockProvider = p }
}

// WithSerializer overrides the default JSON (de)serialization.
func WithSerializer[T any](s Serializer[T]) Option[T] {
	return func(q *Queue[T]) { q.serializer = s }
}

// WithIDGenerator overrides item id generation. The default produces a
// 32-hex-character random string, spec.md §3.1.
func WithIDGenerator[T any](f func() string) Option[T] {
	return func(q *Queue[T]) { q.idGen = f }
}

// WithClock overrides the source of "now", for deterministic tests.
func WithClock[T any](f func() time.Time) Option[T] {
	return func(q *Queue[T]) { q.clock = f }
}

func defaultIDGenerator() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// New constructs a Queue[T] against st. If cfg.QueueName is empty it
// defaults to T's type name, per spec.md §6.4. Unless
// cfg.DisableMaintenanceTasks is set, a lock provider (WithLockProvider)
// must be supplied and a maintenance goroutine starts immediately.
func New[T any](st store.Store, cfg Config, opts ...Option[T]) (*Queue[T], error) {
	cfg = cfg.withDefaults()
	if cfg.QueueName == "" {
		cfg.QueueName = defaultQueueName[T]()
	}

	q := &Queue[T]{
		st:         st,
		keys:       NewKeys(cfg.QueueName),
		cfg:        cfg,
		serializer: jsonSerializer[T]{},
		idGen:      defaultIDGenerator,
		clock:      func() time.Time { return time.Now().UTC() },
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.disposeCtx, q.disposeCancel = context.WithCancel(context.Background())

	if !cfg.DisableMaintenanceTasks {
		if q.lockProvider == nil {
			q.disposeCancel()
			return nil, misuse("maintenance is enabled but no lock provider was configured (queue.WithLockProvider)")
		}
		q.startMaintenance()
	}
	return q, nil
}

func defaultQueueName[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// Enqueue implements spec.md §4.1 Enqueue. It returns the new item id,
// or ErrRejected if a behavior's OnEnqueuing hook vetoed it.
func (q *Queue[T]) Enqueue(ctx context.Context, payload T) (string, error) {
	id := q.idGen()

	if !runOnEnqueuing(ctx, q.cfg.Behaviors, payload) {
		return "", ErrRejected
	}

	data, err := q.serializer.Serialize(payload)
	if err != nil {
		return "", transient(err, "enqueue: serialize payload")
	}

	ttl := q.cfg.payloadTTL()
	added, err := q.st.AddIfAbsent(ctx, q.keys.Payload(id), data, ttl)
	if err != nil {
		return "", transient(err, "enqueue: store payload")
	}
	if !added {
		return "", invariantViolation(fmt.Sprintf("payload key already existed for id %s", id))
	}

	if err := q.st.HeadPush(ctx, q.keys.Ready, id); err != nil {
		return "", transient(err, "enqueue: push onto ready list")
	}
	if err := q.st.Set(ctx, q.keys.Enqueued(id), timestampBytes(q.clock()), ttl); err != nil {
		return "", transient(err, "enqueue: record enqueue time")
	}
	if err := q.st.Publish(ctx, q.keys.Channel, id); err != nil {
		return "", transient(err, "enqueue: publish notification")
	}

	q.counters.enqueued.Add(1)
	runOnEnqueued(ctx, q.cfg.Behaviors, id, payload)
	return id, nil
}

// Dequeue implements spec.md §4.1 Dequeue. timeout <= 0 uses
// Config.DequeueTimeout (default 30s). It returns a nil entry (no error)
// on timeout, cancellation, or disposal, per spec.md §5 and §7.
func (q *Queue[T]) Dequeue(ctx context.Context, timeout time.Duration) (*QueueEntry[T], error) {
	if timeout <= 0 {
		timeout = q.cfg.DequeueTimeout
	}
	deadline := q.clock().Add(timeout)

	for {
		select {
		case <-q.disposeCtx.Done():
			return nil, nil
		case <-ctx.Done():
			return nil, nil
		default:
		}

		id, ok, err := q.st.TailPopHeadPush(ctx, q.keys.Ready, q.keys.InFlight)
		if err != nil {
			return nil, transient(err, "dequeue: tail-pop-head-push")
		}
		if ok {
			return q.afterDequeue(ctx, id)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		if err := q.idleWait(ctx, remaining); err != nil {
			return nil, transient(err, "dequeue: idle wait")
		}
	}
}

// idleWait blocks until the notification channel fires, remaining
// elapses, or ctx/disposal is cancelled — never longer than
// idlePollInterval at a time, so a missed pub/sub message cannot wedge
// the wait past the next poll (spec.md §9's idle-wait design note).
func (q *Queue[T]) idleWait(ctx context.Context, remaining time.Duration) error {
	woke := make(chan struct{}, 1)
	unsubscribe, err := q.st.Subscribe(ctx, q.keys.Channel, func(string) {
		select {
		case woke <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	wait := remaining
	if wait > idlePollInterval {
		wait = idlePollInterval
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-woke:
	case <-timer.C:
	case <-ctx.Done():
	case <-q.disposeCtx.Done():
	}
	return nil
}

func (q *Queue[T]) afterDequeue(ctx context.Context, id string) (*QueueEntry[T], error) {
	now := q.clock()
	data, found, err := q.st.Get(ctx, q.keys.Payload(id))
	if err != nil {
		return nil, transient(err, "dequeue: fetch payload")
	}
	if !found {
		// Missing payload means the key expired while the id still sat
		// on the ready list: a stale artifact, not a fault (spec.md §7).
		if err := q.st.ListRemove(ctx, q.keys.InFlight, id); err != nil {
			return nil, transient(err, "dequeue: remove stale entry from in-flight")
		}
		return nil, nil
	}

	if err := q.st.Set(ctx, q.keys.Dequeued(id), timestampBytes(now), q.cfg.dequeueTimestampTTL()); err != nil {
		return nil, transient(err, "dequeue: stamp dequeue time")
	}

	payload, err := q.serializer.Deserialize(data)
	if err != nil {
		return nil, transient(err, "dequeue: deserialize payload")
	}

	enqueuedRaw, found, err := q.st.Get(ctx, q.keys.Enqueued(id))
	if err != nil {
		return nil, transient(err, "dequeue: fetch enqueue time")
	}
	var enqueuedAt time.Time
	if found {
		if t, ok := parseTimestamp(enqueuedRaw); ok {
			enqueuedAt = t
		}
	}

	rawAttempts, err := q.getAttemptsRaw(ctx, id, -1)
	if err != nil {
		return nil, transient(err, "dequeue: fetch attempts")
	}
	displayAttempts := rawAttempts
	if displayAttempts < 0 {
		displayAttempts = 0
	}

	q.counters.dequeued.Add(1)

	entry := &QueueEntry[T]{
		ID:         id,
		Payload:    payload,
		EnqueuedAt: enqueuedAt,
		Attempts:   displayAttempts,
		queue:      q,
	}
	runOnDequeued(ctx, q.cfg.Behaviors, id, payload, displayAttempts)
	return entry, nil
}

// Complete implements spec.md §4.1 Complete.
func (q *Queue[T]) Complete(ctx context.Context, id string) error {
	err := q.st.Transact(ctx, func(tx store.Tx) {
		tx.ListRemove(q.keys.InFlight, id)
		tx.Delete(q.keys.Payload(id))
		tx.Delete(q.keys.Attempts(id))
		tx.Delete(q.keys.Enqueued(id))
		tx.Delete(q.keys.Dequeued(id))
		tx.Delete(q.keys.Wait(id))
	})
	if err != nil {
		return transient(err, "complete: transaction")
	}
	q.counters.completed.Add(1)
	runOnCompleted(ctx, q.cfg.Behaviors, id)
	return nil
}

// Abandon implements spec.md §4.1 Abandon and §4.1.1's retry schedule.
func (q *Queue[T]) Abandon(ctx context.Context, id string) error {
	currentAttempts, err := q.getAttemptsRaw(ctx, id, 0)
	if err != nil {
		return transient(err, "abandon: fetch attempts")
	}
	nextAttempts := currentAttempts + 1
	delay := q.cfg.retryDelay(nextAttempts)

	var outcome AbandonOutcome
	switch {
	case nextAttempts > *q.cfg.Retries:
		outcome = AbandonOutcomeDead
		err = q.st.Transact(ctx, func(tx store.Tx) {
			tx.ListRemove(q.keys.InFlight, id)
			tx.HeadPush(q.keys.Dead, id)
			tx.Expire(q.keys.Payload(id), q.cfg.DeadLetterTTL)
			tx.Increment(q.keys.Attempts(id), 1, q.cfg.DeadLetterTTL)
		})
	case delay > 0:
		outcome = AbandonOutcomeDelayed
		err = q.st.Transact(ctx, func(tx store.Tx) {
			tx.ListRemove(q.keys.InFlight, id)
			tx.HeadPush(q.keys.Delayed, id)
			tx.Set(q.keys.Wait(id), timestampBytes(q.clock().Add(delay)), q.cfg.payloadTTL())
			tx.Increment(q.keys.Attempts(id), 1, q.cfg.payloadTTL())
		})
	default:
		outcome = AbandonOutcomeReady
		err = q.st.Transact(ctx, func(tx store.Tx) {
			tx.ListRemove(q.keys.InFlight, id)
			tx.HeadPush(q.keys.Ready, id)
			tx.Increment(q.keys.Attempts(id), 1, q.cfg.payloadTTL())
		})
	}
	if err != nil {
		return transient(err, "abandon: transaction")
	}

	if outcome == AbandonOutcomeReady {
		if err := q.st.Publish(ctx, q.keys.Channel, id); err != nil {
			return transient(err, "abandon: publish notification")
		}
	}

	q.counters.abandoned.Add(1)
	runOnAbandoned(ctx, q.cfg.Behaviors, id, nextAttempts, outcome)
	return nil
}

// getAttemptsRaw fetches the raw attempts counter, returning missingValue
// when the key is absent (or unparsable, treated the same way).
func (q *Queue[T]) getAttemptsRaw(ctx context.Context, id string, missingValue int) (int, error) {
	data, found, err := q.st.Get(ctx, q.keys.Attempts(id))
	if err != nil {
		return 0, err
	}
	if !found {
		return missingValue, nil
	}
	n, convErr := strconv.Atoi(string(data))
	if convErr != nil {
		return missingValue, nil
	}
	return n, nil
}

// Stats implements spec.md §4.5: a non-transactional snapshot of the
// three list lengths and the process-local cumulative counters.
func (q *Queue[T]) Stats(ctx context.Context) (Stats, error) {
	ready, err := q.st.ListLength(ctx, q.keys.Ready)
	if err != nil {
		return Stats{}, transient(err, "stats: ready length")
	}
	inFlight, err := q.st.ListLength(ctx, q.keys.InFlight)
	if err != nil {
		return Stats{}, transient(err, "stats: in-flight length")
	}
	dead, err := q.st.ListLength(ctx, q.keys.Dead)
	if err != nil {
		return Stats{}, transient(err, "stats: dead length")
	}
	return Stats{
		Ready:            ready,
		InFlight:         inFlight,
		Dead:             dead,
		Enqueued:         q.counters.enqueued.Load(),
		Dequeued:         q.counters.dequeued.Load(),
		Completed:        q.counters.completed.Load(),
		Abandoned:        q.counters.abandoned.Load(),
		WorkerErrors:     q.counters.workerErrors.Load(),
		WorkItemTimeouts: q.counters.workItemTimeouts.Load(),
	}, nil
}

// DeleteQueue implements spec.md §6.1 delete_queue: removes all four
// lists and their sidecar keys, and zeroes the cumulative counters.
func (q *Queue[T]) DeleteQueue(ctx context.Context) error {
	lists := []string{q.keys.Ready, q.keys.InFlight, q.keys.Delayed, q.keys.Dead}
	for _, list := range lists {
		ids, err := q.st.ListRange(ctx, list)
		if err != nil {
			return transient(err, "delete_queue: list range")
		}
		for _, id := range ids {
			_ = q.st.Delete(ctx, q.keys.Payload(id))
			_ = q.st.Delete(ctx, q.keys.Attempts(id))
			_ = q.st.Delete(ctx, q.keys.Enqueued(id))
			_ = q.st.Delete(ctx, q.keys.Dequeued(id))
			_ = q.st.Delete(ctx, q.keys.Wait(id))
		}
		if err := q.st.Delete(ctx, list); err != nil {
			return transient(err, "delete_queue: delete list")
		}
	}
	q.counters.reset()
	return nil
}

// DeadLetterItems is explicitly not supported by the core, per spec.md
// §9's open question: the source throws "not implemented" and this spec
// surfaces that as an absent capability rather than inventing one.
func (q *Queue[T]) DeadLetterItems(context.Context) ([]string, error) {
	return nil, fmt.Errorf("%w: dead_letter_items", ErrNotImplemented)
}

// Dispose stops working, cancels maintenance, and releases this queue
// instance's background resources.
func (q *Queue[T]) Dispose() {
	q.StopWorking()
	q.disposeCancel()
	q.stopMaintenance()
}
