package queue

import (
	"fmt"
	"strings"
	"unicode"
)

// Keys is the bit-exact key schema from spec.md §3.2. Every key a queue
// instance touches is constructed here and nowhere else; the choice of
// ':' as separator is a hard compatibility constraint with any other
// implementation reading the same store, so this file must never diverge
// from it.
type Keys struct {
	// Queue is the sanitized queue name, Q in spec.md §3.2.
	Queue string
	// Ready is the ready list, q:{Q}:in.
	Ready string
	// InFlight is the in-flight list, q:{Q}:work.
	InFlight string
	// Delayed is the delayed list, q:{Q}:wait.
	Delayed string
	// Dead is the dead-letter list, q:{Q}:dead.
	Dead string
	// Channel is the notification channel, q:{Q}:in (same name as Ready).
	Channel string
}

// NewKeys sanitizes queueName and builds the key set for it.
func NewKeys(queueName string) Keys {
	q := SanitizeQueueName(queueName)
	return Keys{
		Queue:    q,
		Ready:    fmt.Sprintf("q:%s:in", q),
		InFlight: fmt.Sprintf("q:%s:work", q),
		Delayed:  fmt.Sprintf("q:%s:wait", q),
		Dead:     fmt.Sprintf("q:%s:dead", q),
		Channel:  fmt.Sprintf("q:%s:in", q),
	}
}

// SanitizeQueueName removes whitespace and replaces ':' with '-', per
// spec.md §3.2.
func SanitizeQueueName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) {
			continue
		}
		if r == ':' {
			b.WriteByte('-')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Payload returns the payload key for id.
func (k Keys) Payload(id string) string { return fmt.Sprintf("q:%s:%s", k.Queue, id) }

// Attempts returns the attempt-counter key for id.
func (k Keys) Attempts(id string) string { return fmt.Sprintf("q:%s:%s:attempts", k.Queue, id) }

// Enqueued returns the enqueue-timestamp key for id.
func (k Keys) Enqueued(id string) string { return fmt.Sprintf("q:%s:%s:enqueued", k.Queue, id) }

// Dequeued returns the dequeue-timestamp key for id.
func (k Keys) Dequeued(id string) string { return fmt.Sprintf("q:%s:%s:dequeued", k.Queue, id) }

// Wait returns the wait-until-timestamp key for id.
func (k Keys) Wait(id string) string { return fmt.Sprintf("q:%s:%s:wait", k.Queue, id) }

// MaintenanceLockName returns the distributed lock name for this queue's
// maintenance critical section, {Q}-maintenance.
func (k Keys) MaintenanceLockName() string { return fmt.Sprintf("%s-maintenance", k.Queue) }
