package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"
)

// Backpressure bounds how many semantic evaluations may run at once,
// per §5's back-pressure rule (default cap 32 in-flight). The
// Orchestrator's own semantic.Evaluator already bounds its internal
// per-contract fan-out; Backpressure bounds how many Validate calls may
// be in their semantic phase at once across the whole process (or, with
// RedisBackpressure, across every process sharing one history repository).
type Backpressure interface {
	Acquire(ctx context.Context) error
	Release()
}

// semBackpressure is the default, in-process Backpressure.
type semBackpressure struct {
	sem *semaphore.Weighted
}

// NewBackpressure returns an in-process Backpressure bounding concurrent
// semantic evaluations to cap.
func NewBackpressure(cap int64) Backpressure {
	return &semBackpressure{sem: semaphore.NewWeighted(cap)}
}

func (b *semBackpressure) Acquire(ctx context.Context) error { return b.sem.Acquire(ctx, 1) }
func (b *semBackpressure) Release()                          { b.sem.Release(1) }

// RedisBackpressure is a counting semaphore backed by a Redis integer
// key, for deployments that run more than one contractguard process
// against the same policy catalog and history repository and need the
// in-flight cap enforced across all of them, not just within one.
type RedisBackpressure struct {
	client *redis.Client
	key    string
	cap    int64
	ttl    time.Duration
}

// NewRedisBackpressure returns a Backpressure whose count lives in
// Redis under key, capped at cap. ttl bounds how long a leaked slot
// (e.g. a process killed mid-Acquire) can linger before Redis expires
// the key and the count resets to zero.
func NewRedisBackpressure(client *redis.Client, key string, cap int64, ttl time.Duration) *RedisBackpressure {
	return &RedisBackpressure{client: client, key: key, cap: cap, ttl: ttl}
}

// Acquire increments the shared counter and fails if doing so would
// exceed cap, decrementing back before returning the error.
func (b *RedisBackpressure) Acquire(ctx context.Context) error {
	n, err := b.client.Incr(ctx, b.key).Result()
	if err != nil {
		return fmt.Errorf("orchestrator: redis backpressure incr: %w", err)
	}
	if n == 1 {
		b.client.Expire(ctx, b.key, b.ttl)
	}
	if n > b.cap {
		b.client.Decr(ctx, b.key)
		return fmt.Errorf("orchestrator: redis backpressure cap %d in-flight exceeded", b.cap)
	}
	return nil
}

// Release decrements the shared counter. It uses a background context
// so a caller's own cancelled context never leaks a held slot.
func (b *RedisBackpressure) Release() {
	b.client.Decr(context.Background(), b.key)
}
