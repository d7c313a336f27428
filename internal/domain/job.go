// Package domain holds the payload shape carried inside the queue.
// Lifecycle state (ready/in-flight/delayed/dead, attempt count, lease
// ownership) is no longer part of this type: internal/queue derives all
// of that from which list an item's id sits on and its sidecar keys, so
// a Job value only needs to describe the work itself.
package domain

import "time"

// Job is the payload type cmd/worker's demo queue carries. Application
// code using this module as a library would define its own payload
// struct instead; Job exists so cmd/worker has something concrete to
// wire up end to end.
type Job struct {
	TenantID  string    `json:"tenantId"`
	Type      string    `json:"type"`
	Payload   []byte    `json:"payload"`
	Priority  int       `json:"priority"`
	RunAt     time.Time `json:"runAt"`
	DedupeKey *string   `json:"dedupeKey,omitempty"`
}
