// Package lock implements the throttled distributed lock contract
// spec.md §6.3 calls try_using_lock: run body at most once per throttle
// interval across every participant trying to acquire it.
package lock

import (
	"context"
	"errors"
	"time"
)

// Provider runs body under a named lock, throttled so that across every
// process calling TryUsingLock with the same name, body executes at
// most once per throttle interval. A failure to obtain the lock because
// another participant is already inside its throttle window is not an
// error — TryUsingLock simply returns nil without calling body.
type Provider interface {
	TryUsingLock(ctx context.Context, name string, throttle, acquireTimeout time.Duration, body func(ctx context.Context) error) error
}

// ErrUnavailable wraps failures to reach the lock backend itself (as
// opposed to simply losing the race for the lock, which is not an
// error).
var ErrUnavailable = errors.New("lock: backend unavailable")
