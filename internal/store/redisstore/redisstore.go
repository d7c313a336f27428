// Package redisstore implements the store.Store contract on top of
// github.com/redis/go-redis/v9, the way the teacher repo's
// internal/queue/redisq.go and cmd/scheduler/main.go drive *redis.Client:
// LPUSH/RPOPLPUSH for list moves, TxPipeline for atomic batches of
// commands, plain Pipeline for non-atomic ones.
package redisstore

import (
	"context"
	"errors"

	"time"

	r "github.com/redis/go-redis/v9"

	"github.com/sirclappington/enq/internal/store"
)

// Store adapts a *redis.Client (or any redis.Cmdable, so it also accepts
// a *redis.ClusterClient) to store.Store.
type Store struct {
	rdb r.Cmdable
}

// New wraps rdb as a store.Store.
func New(rdb r.Cmdable) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) AddIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, r.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *Store) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	pipe := s.rdb.TxPipeline()
	incr := pipe.IncrBy(ctx, key, delta)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}

func (s *Store) ListLength(ctx context.Context, list string) (int64, error) {
	return s.rdb.LLen(ctx, list).Result()
}

func (s *Store) HeadPush(ctx context.Context, list string, value string) error {
	return s.rdb.LPush(ctx, list, value).Err()
}

// TailPopHeadPush is RPOPLPUSH src dst: a single Redis command, atomic by
// construction, matching §5's requirement that dequeue's tail-pop/
// head-push be one atomic round trip.
func (s *Store) TailPopHeadPush(ctx context.Context, src, dst string) (string, bool, error) {
	v, err := s.rdb.RPopLPush(ctx, src, dst).Result()
	if errors.Is(err, r.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) ListRemove(ctx context.Context, list string, value string) error {
	return s.rdb.LRem(ctx, list, 1, value).Err()
}

func (s *Store) ListRange(ctx context.Context, list string) ([]string, error) {
	return s.rdb.LRange(ctx, list, 0, -1).Result()
}

// TrimFromTail keeps the first maxLen elements (head side) of list and
// reports the dropped tail elements so the caller can clean up their
// sidecar keys. The dead list is head-pushed, so the tail side is the
// oldest entries — exactly what §4.3's trim step is meant to drop.
func (s *Store) TrimFromTail(ctx context.Context, list string, maxLen int64) ([]string, error) {
	if maxLen < 0 {
		maxLen = 0
	}
	dropped, err := s.rdb.LRange(ctx, list, maxLen, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(dropped) == 0 {
		return nil, nil
	}
	if maxLen == 0 {
		// LTRIM list 0 -1 would keep everything, so an empty result is a DEL.
		if err := s.rdb.Del(ctx, list).Err(); err != nil {
			return nil, err
		}
		return dropped, nil
	}
	if err := s.rdb.LTrim(ctx, list, 0, maxLen-1).Err(); err != nil {
		return nil, err
	}
	return dropped, nil
}

// redisTx queues commands against a *redis.Tx pipeline for Transact.
type redisTx struct {
	pipe r.Pipeliner
}

func (t *redisTx) ListRemove(list string, value string) { t.pipe.LRem(context.Background(), list, 1, value) }
func (t *redisTx) HeadPush(list string, value string)    { t.pipe.LPush(context.Background(), list, value) }
func (t *redisTx) Set(key string, value []byte, ttl time.Duration) {
	t.pipe.Set(context.Background(), key, value, ttl)
}
func (t *redisTx) Delete(key string) { t.pipe.Del(context.Background(), key) }
func (t *redisTx) Increment(key string, delta int64, ttl time.Duration) {
	t.pipe.IncrBy(context.Background(), key, delta)
	if ttl > 0 {
		t.pipe.Expire(context.Background(), key, ttl)
	}
}
func (t *redisTx) Expire(key string, ttl time.Duration) { t.pipe.Expire(context.Background(), key, ttl) }

// Transact runs fn against a TxPipeline, the same tool the teacher's
// cmd/scheduler/main.go uses (rdb.TxPipeline()) for its delayed-job
// moves: MULTI/EXEC, all-or-nothing.
func (s *Store) Transact(ctx context.Context, fn func(tx store.Tx)) error {
	pipe := s.rdb.TxPipeline()
	fn(&redisTx{pipe: pipe})
	_, err := pipe.Exec(ctx)
	return err
}

// redisBatch queues reads against a plain (non-transactional) pipeline.
type redisBatch struct {
	pipe  r.Pipeliner
	gets  []pendingGet
}

type pendingGet struct {
	cmd   *r.StringCmd
	out   *[]byte
	found *bool
}

func (b *redisBatch) Get(key string, out *[]byte, found *bool) {
	cmd := b.pipe.Get(context.Background(), key)
	b.gets = append(b.gets, pendingGet{cmd: cmd, out: out, found: found})
}

// Batch pipelines reads without MULTI/EXEC, matching §6.3's distinction
// between an atomic "transaction" and a merely-pipelined "batch".
func (s *Store) Batch(ctx context.Context, fn func(b store.Batch)) error {
	pipe := s.rdb.Pipeline()
	rb := &redisBatch{pipe: pipe}
	fn(rb)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, r.Nil) {
		return err
	}
	for _, g := range rb.gets {
		v, err := g.cmd.Bytes()
		if errors.Is(err, r.Nil) {
			*g.found = false
			continue
		}
		if err != nil {
			return err
		}
		*g.out = v
		*g.found = true
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, channel string, handler func(value string)) (func(), error) {
	client, ok := s.rdb.(*r.Client)
	if !ok {
		return nil, errors.New("redisstore: Subscribe requires a *redis.Client, not a pipeline or cluster client")
	}
	sub := client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	ch := sub.Channel()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Payload)
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		_ = sub.Close()
	}, nil
}

func (s *Store) Publish(ctx context.Context, channel string, value string) error {
	return s.rdb.Publish(ctx, channel, value).Err()
}
