package queue

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Error kinds from spec.md §7. Callers match on these with errors.Is;
// the underlying cause, if any, is still reachable by unwrapping further.
var (
	// ErrInvariantViolation marks a fatal contract breach: an
	// add-if-absent that should have succeeded reported a collision. A
	// transaction that fails to commit is reported as ErrTransient.
	ErrInvariantViolation = fmt.Errorf("enq: invariant violation")

	// ErrTransient marks a store-layer error the caller may retry.
	ErrTransient = fmt.Errorf("enq: transient store error")

	// ErrMisuse marks a caller contract violation, such as a nil
	// handler passed to StartWorking.
	ErrMisuse = fmt.Errorf("enq: misuse")

	// ErrNotImplemented marks a capability the core intentionally does
	// not provide (spec.md §9's dead-letter iteration open question).
	ErrNotImplemented = fmt.Errorf("enq: not implemented")

	// ErrRejected is returned by Enqueue when a behavior's OnEnqueuing
	// hook vetoes the enqueue.
	ErrRejected = fmt.Errorf("enq: enqueue rejected")
)

// invariantViolation wraps msg with ErrInvariantViolation, preserving a
// stack trace via pkg/errors for operators debugging a fatal condition.
func invariantViolation(msg string) error {
	return fmt.Errorf("%w: %w", ErrInvariantViolation, pkgerrors.New(msg))
}

// transient wraps a store-layer cause with ErrTransient so callers can
// both errors.Is(err, ErrTransient) and inspect the original cause.
func transient(cause error, msg string) error {
	return fmt.Errorf("%w: %w", ErrTransient, pkgerrors.Wrap(cause, msg))
}

func misuse(msg string) error {
	return fmt.Errorf("%w: %s", ErrMisuse, msg)
}
