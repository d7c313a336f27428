package queue

import "context"

// AbandonOutcome describes which state transition an Abandon call took,
// for behaviors that want to distinguish them in OnAbandoned.
type AbandonOutcome int

const (
	// AbandonOutcomeReady means the item went straight back to ready
	// (retryDelay == 0).
	AbandonOutcomeReady AbandonOutcome = iota
	// AbandonOutcomeDelayed means the item is waiting out its retry
	// delay.
	AbandonOutcomeDelayed
	// AbandonOutcomeDead means the item exhausted its retries.
	AbandonOutcomeDead
)

// Behavior is a pluggable observer/veto hook, spec.md §6.2. A queue is
// parameterized by an ordered collection of behaviors; any OnEnqueuing
// veto aborts the enqueue. Embed BaseBehavior to satisfy Behavior while
// overriding only the methods you need, the way http middleware types
// commonly embed a no-op base in this codebase's style.
type Behavior interface {
	// OnEnqueuing runs after the id is generated and before the payload
	// is stored. Returning false vetoes the enqueue.
	OnEnqueuing(ctx context.Context, payload any) bool
	// OnEnqueued runs after the enqueue has fully committed.
	OnEnqueued(ctx context.Context, id string, payload any)
	// OnDequeued runs after a QueueEntry has been constructed and
	// counted, before it is returned to the caller.
	OnDequeued(ctx context.Context, id string, payload any, attempts int)
	// OnCompleted runs after a completion has fully committed.
	OnCompleted(ctx context.Context, id string)
	// OnAbandoned runs after an abandon transition has fully committed.
	OnAbandoned(ctx context.Context, id string, attempts int, outcome AbandonOutcome)
}

// BaseBehavior is a no-op Behavior. Embed it in a concrete behavior type
// to implement only the hooks you care about.
type BaseBehavior struct{}

func (BaseBehavior) OnEnqueuing(context.Context, any) bool { return true }
func (BaseBehavior) OnEnqueued(context.Context, string, any) {}
func (BaseBehavior) OnDequeued(context.Context, string, any, int) {}
func (BaseBehavior) OnCompleted(context.Context, string) {}
func (BaseBehavior) OnAbandoned(context.Context, string, int, AbandonOutcome) {}

// runOnEnqueuing runs every behavior's veto hook in order, short-circuiting
// on the first veto.
func runOnEnqueuing(ctx context.Context, behaviors []Behavior, payload any) bool {
	for _, b := range behaviors {
		if !b.OnEnqueuing(ctx, payload) {
			return false
		}
	}
	return true
}

func runOnEnqueued(ctx context.Context, behaviors []Behavior, id string, payload any) {
	for _, b := range behaviors {
		b.OnEnqueued(ctx, id, payload)
	}
}

func runOnDequeued(ctx context.Context, behaviors []Behavior, id string, payload any, attempts int) {
	for _, b := range behaviors {
		b.OnDequeued(ctx, id, payload, attempts)
	}
}

func runOnCompleted(ctx context.Context, behaviors []Behavior, id string) {
	for _, b := range behaviors {
		b.OnCompleted(ctx, id)
	}
}

func runOnAbandoned(ctx context.Context, behaviors []Behavior, id string, attempts int, outcome AbandonOutcome) {
	for _, b := range behaviors {
		b.OnAbandoned(ctx, id, attempts, outcome)
	}
}
