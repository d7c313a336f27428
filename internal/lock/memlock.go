package lock

import (
	"context"
	"sync"
	"time"
)

// MemProvider is an in-process Provider used by internal/queue's tests
// so maintenance can be exercised without a real Redis/redislock
// dependency. It enforces the exact same throttle semantics: a name
// cannot be re-obtained until its held-until time elapses.
type MemProvider struct {
	mu        sync.Mutex
	heldUntil map[string]time.Time
	now       func() time.Time
}

// NewMemProvider returns a MemProvider. now defaults to time.Now when nil,
// overridable so tests can control the throttle window deterministically.
func NewMemProvider(now func() time.Time) *MemProvider {
	if now == nil {
		now = time.Now
	}
	return &MemProvider{heldUntil: make(map[string]time.Time), now: now}
}

func (p *MemProvider) TryUsingLock(ctx context.Context, name string, throttle, _ time.Duration, body func(ctx context.Context) error) error {
	p.mu.Lock()
	now := p.now()
	if until, ok := p.heldUntil[name]; ok && now.Before(until) {
		p.mu.Unlock()
		return nil
	}
	p.heldUntil[name] = now.Add(throttle)
	p.mu.Unlock()

	return body(ctx)
}
