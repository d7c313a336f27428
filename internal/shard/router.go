// Package shard routes queue names onto a fixed set of backing stores
// using rendezvous (highest random weight) hashing, so that adding or
// removing a shard only remaps the keys that actually belong to that
// shard instead of reshuffling the whole key space, the way a modulo
// scheme would.
package shard

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"

	"github.com/sirclappington/enq/internal/store"
)

// Router maps a queue name to one of a fixed set of named stores. It is
// the seam a multi-shard deployment uses to spread many logical queues
// across several Redis instances while keeping any one queue's keys on
// a single instance (the engine's TxPipeline-based transactions require
// that).
type Router struct {
	mu     sync.RWMutex
	names  []string
	stores map[string]store.Store
	rv     *rendezvous.Rendezvous
}

// NewRouter builds a Router over the given shard name -> Store mapping.
// At least one shard is required.
func NewRouter(stores map[string]store.Store) (*Router, error) {
	if len(stores) == 0 {
		return nil, fmt.Errorf("shard: at least one backing store is required")
	}
	names := make([]string, 0, len(stores))
	for name := range stores {
		names = append(names, name)
	}
	return &Router{
		names:  names,
		stores: stores,
		rv:     rendezvous.New(names, hashSeed),
	}, nil
}

func hashSeed(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Store returns the backing store that owns queueName, and the shard
// name it was routed to.
func (r *Router) Store(queueName string) (store.Store, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name := r.rv.Lookup(queueName)
	return r.stores[name], name
}

// Shards returns the current shard names, in no particular order.
func (r *Router) Shards() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// AddShard adds a new backing store under name, rebuilding the
// rendezvous table. Existing queue names are remapped only if the new
// shard wins their hash comparison; most queue names keep their
// current shard.
func (r *Router) AddShard(name string, st store.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("shard: %q already registered", name)
	}
	r.stores[name] = st
	r.names = append(r.names, name)
	r.rv = rendezvous.New(r.names, hashSeed)
	return nil
}

// RemoveShard drops name from the table. Queue names that hashed to it
// move to their next-best shard on the next Store lookup; the caller is
// responsible for migrating or draining that shard's queues first.
func (r *Router) RemoveShard(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stores[name]; !exists {
		return fmt.Errorf("shard: %q not registered", name)
	}
	delete(r.stores, name)
	names := make([]string, 0, len(r.names)-1)
	for _, n := range r.names {
		if n != name {
			names = append(names, n)
		}
	}
	r.names = names
	r.rv = rendezvous.New(r.names, hashSeed)
	return nil
}
