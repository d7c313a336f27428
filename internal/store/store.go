// Package store defines the contract the queue engine needs from a shared
// key/value store: scalar get/set with TTLs, list primitives with atomic
// cross-list moves, transactions, and pub/sub. internal/store/redisstore
// implements it against Redis; internal/store/memstore implements it
// in-process for tests.
package store

import (
	"context"
	"time"
)

// Store is the collaborator the queue engine is built against. It never
// sees queue semantics (retries, leases, dead-lettering) — only bytes,
// lists of strings, and channels.
type Store interface {
	// AddIfAbsent sets key to value with the given TTL only if key did
	// not already exist. It reports whether the set happened.
	AddIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Set unconditionally sets key to value with the given TTL. A zero
	// TTL means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value and true, or nil and false if key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Increment adds delta to the integer stored at key (treating an
	// absent key as 0), refreshes its TTL, and returns the new value.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Expire resets the TTL on an existing key. It is a no-op if the key
	// is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// ListLength returns the number of elements on list.
	ListLength(ctx context.Context, list string) (int64, error)

	// HeadPush pushes value onto the head of list.
	HeadPush(ctx context.Context, list string, value string) error

	// TailPopHeadPush atomically pops the tail element of src and pushes
	// it onto the head of dst in a single round trip, returning the
	// moved value and true, or "" and false if src was empty.
	TailPopHeadPush(ctx context.Context, src, dst string) (string, bool, error)

	// ListRemove removes the first occurrence of value from list.
	ListRemove(ctx context.Context, list string, value string) error

	// ListRange returns every element of list, head to tail.
	ListRange(ctx context.Context, list string) ([]string, error)

	// TrimFromTail drops every element of list beyond the first maxLen
	// elements counted from the head, and returns the dropped values
	// (the tail side) in head-to-tail order, so the oldest value is last.
	TrimFromTail(ctx context.Context, list string, maxLen int64) ([]string, error)

	// Transact runs fn against a Tx whose queued operations commit
	// all-or-nothing. fn must not perform its own store I/O; it only
	// queues operations on tx.
	Transact(ctx context.Context, fn func(tx Tx)) error

	// Batch runs fn against a Batch that pipelines queued reads without
	// atomicity guarantees, for reducing round trips.
	Batch(ctx context.Context, fn func(b Batch)) error

	// Subscribe registers handler to be invoked with the raw published
	// value every time something is published on channel. It returns a
	// function that unsubscribes.
	Subscribe(ctx context.Context, channel string, handler func(value string)) (unsubscribe func(), err error)

	// Publish sends value to every current subscriber of channel.
	Publish(ctx context.Context, channel string, value string) error
}

// Tx queues operations for Store.Transact. All queued operations commit
// together or not at all.
type Tx interface {
	ListRemove(list string, value string)
	HeadPush(list string, value string)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
	Increment(key string, delta int64, ttl time.Duration)
	Expire(key string, ttl time.Duration)
}

// Batch queues read operations for Store.Batch. Results land in the
// destination pointers once the enclosing Batch call returns.
type Batch interface {
	// Get queues a read of key; *out and *found are populated once the
	// batch executes.
	Get(key string, out *[]byte, found *bool)
}
