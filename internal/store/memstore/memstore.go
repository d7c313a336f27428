// Package memstore is an in-process implementation of store.Store used by
// internal/queue's tests. The spec treats in-memory store variants as an
// external collaborator used only for tests (spec.md §1); this is that
// collaborator.
package memstore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirclappington/enq/internal/store"
)

type entry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// Store is a single-process, mutex-guarded implementation of
// store.Store. It is not meant to be shared across processes; it exists
// so internal/queue's tests can exercise the engine without a Redis
// instance.
type Store struct {
	mu    sync.Mutex
	kv    map[string]entry
	lists map[string][]string

	subMu sync.Mutex
	subs  map[string][]func(string)
}

// New returns an empty memstore.
func New() *Store {
	return &Store{
		kv:    make(map[string]entry),
		lists: make(map[string][]string),
		subs:  make(map[string][]func(string)),
	}
}

func (s *Store) getLocked(key string, now time.Time) ([]byte, bool) {
	e, ok := s.kv[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && now.After(e.expires) {
		delete(s.kv, key)
		return nil, false
	}
	return e.value, true
}

func (s *Store) AddIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if _, ok := s.getLocked(key, now); ok {
		return false, nil
	}
	s.kv[key] = entry{value: append([]byte(nil), value...), expires: expiry(now, ttl)}
	return true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = entry{value: append([]byte(nil), value...), expires: expiry(time.Now(), ttl)}
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.getLocked(key, time.Now())
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Delete removes key from whichever namespace holds it. Redis DEL does not
// distinguish string keys from list keys, so this mirrors that: both maps
// share one key space.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	delete(s.lists, key)
	return nil
}

func (s *Store) Increment(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var n int64
	if v, ok := s.getLocked(key, now); ok {
		n, _ = strconv.ParseInt(string(v), 10, 64)
	}
	n += delta
	s.kv[key] = entry{value: []byte(strconv.FormatInt(n, 10)), expires: expiry(now, ttl)}
	return n, nil
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.kv[key]
	if !ok {
		return nil
	}
	e.expires = expiry(time.Now(), ttl)
	s.kv[key] = e
	return nil
}

func (s *Store) ListLength(_ context.Context, list string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.lists[list])), nil
}

func (s *Store) HeadPush(_ context.Context, list string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[list] = append([]string{value}, s.lists[list]...)
	return nil
}

func (s *Store) TailPopHeadPush(_ context.Context, src, dst string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lists[src]
	if len(l) == 0 {
		return "", false, nil
	}
	v := l[len(l)-1]
	s.lists[src] = l[:len(l)-1]
	s.lists[dst] = append([]string{v}, s.lists[dst]...)
	return v, true, nil
}

func (s *Store) ListRemove(_ context.Context, list string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lists[list]
	for i, v := range l {
		if v == value {
			s.lists[list] = append(l[:i], l[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) ListRange(_ context.Context, list string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lists[list]))
	copy(out, s.lists[list])
	return out, nil
}

func (s *Store) TrimFromTail(_ context.Context, list string, maxLen int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxLen < 0 {
		maxLen = 0
	}
	l := s.lists[list]
	if int64(len(l)) <= maxLen {
		return nil, nil
	}
	dropped := append([]string(nil), l[maxLen:]...)
	s.lists[list] = append([]string(nil), l[:maxLen]...)
	return dropped, nil
}

type memTx struct {
	s   *Store
	ops []func()
}

func (t *memTx) ListRemove(list string, value string) {
	t.ops = append(t.ops, func() { _ = t.s.listRemoveLocked(list, value) })
}
func (t *memTx) HeadPush(list string, value string) {
	t.ops = append(t.ops, func() { t.s.lists[list] = append([]string{value}, t.s.lists[list]...) })
}
func (t *memTx) Set(key string, value []byte, ttl time.Duration) {
	t.ops = append(t.ops, func() {
		t.s.kv[key] = entry{value: append([]byte(nil), value...), expires: expiry(time.Now(), ttl)}
	})
}
func (t *memTx) Delete(key string) {
	t.ops = append(t.ops, func() {
		delete(t.s.kv, key)
		delete(t.s.lists, key)
	})
}
func (t *memTx) Increment(key string, delta int64, ttl time.Duration) {
	t.ops = append(t.ops, func() {
		now := time.Now()
		var n int64
		if v, ok := t.s.getLocked(key, now); ok {
			n, _ = strconv.ParseInt(string(v), 10, 64)
		}
		n += delta
		t.s.kv[key] = entry{value: []byte(strconv.FormatInt(n, 10)), expires: expiry(now, ttl)}
	})
}
func (t *memTx) Expire(key string, ttl time.Duration) {
	t.ops = append(t.ops, func() {
		e, ok := t.s.kv[key]
		if !ok {
			return
		}
		e.expires = expiry(time.Now(), ttl)
		t.s.kv[key] = e
	})
}

func (s *Store) listRemoveLocked(list string, value string) error {
	l := s.lists[list]
	for i, v := range l {
		if v == value {
			s.lists[list] = append(l[:i], l[i+1:]...)
			return nil
		}
	}
	return nil
}

// Transact applies every queued op while holding the single lock, so it
// is atomic with respect to every other Store method by construction.
func (s *Store) Transact(_ context.Context, fn func(tx store.Tx)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{s: s}
	fn(tx)
	for _, op := range tx.ops {
		op()
	}
	return nil
}

type memBatch struct {
	s   *Store
	ops []func()
}

func (b *memBatch) Get(key string, out *[]byte, found *bool) {
	b.ops = append(b.ops, func() {
		v, ok := b.s.getLocked(key, time.Now())
		*found = ok
		if ok {
			*out = append([]byte(nil), v...)
		}
	})
}

// Batch has no atomicity requirement; memstore still runs it under the
// single lock since that lock is process-wide and cheap, not because
// Batch needs to be atomic.
func (s *Store) Batch(_ context.Context, fn func(b store.Batch)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &memBatch{s: s}
	fn(b)
	for _, op := range b.ops {
		op()
	}
	return nil
}

func (s *Store) Subscribe(_ context.Context, channel string, handler func(string)) (func(), error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs[channel] = append(s.subs[channel], handler)
	idx := len(s.subs[channel]) - 1
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		subs := s.subs[channel]
		if idx < len(subs) {
			subs[idx] = nil
		}
	}, nil
}

func (s *Store) Publish(_ context.Context, channel string, value string) error {
	s.subMu.Lock()
	handlers := append([]func(string){}, s.subs[channel]...)
	s.subMu.Unlock()
	for _, h := range handlers {
		if h != nil {
			h(value)
		}
	}
	return nil
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
