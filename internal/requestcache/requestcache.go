// Package requestcache provides in-flight de-duplication and TTL caching
// for remote fetches, keyed by an operation name plus its parameters.
//
// A call whose key matches an outstanding fetch shares the pending result
// instead of issuing a second request. A completed result is served without
// re-fetching while it is younger than the caller's TTL. Only the
// producer's own failure is ever surfaced; a failed fetch is never cached.
package requestcache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Cache is a concurrency-safe dedupe/TTL cache. The zero value is not
// usable; construct with New.
type Cache struct {
	mu      sync.Mutex
	clock   func() time.Time
	entries map[string]*entry
}

type entry struct {
	done        chan struct{}
	val         any
	err         error
	completedAt time.Time // zero while the fetch is in flight
}

// Option mutates cache configuration.
type Option func(*Cache)

// WithClock injects a time source, used by tests to control TTL expiry.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New creates an empty cache.
func New(options ...Option) *Cache {
	c := &Cache{
		clock:   time.Now,
		entries: make(map[string]*entry),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Do returns the cached or shared pending result for key, invoking producer
// only when neither exists. ttl == 0 means a completed result is never
// served from cache, though an in-flight fetch is still shared.
func (c *Cache) Do(ctx context.Context, key string, ttl time.Duration, producer func(context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.completedAt.IsZero() {
			// Fetch in flight: share its outcome.
			c.mu.Unlock()
			inflightHitsTotal.Inc()
			select {
			case <-e.done:
				return e.val, e.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if ttl > 0 && c.clock().Sub(e.completedAt) < ttl {
			val := e.val
			c.mu.Unlock()
			hitsTotal.Inc()
			return val, nil
		}
		delete(c.entries, key)
	}

	e := &entry{done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()
	missesTotal.Inc()

	val, err := producer(ctx)

	c.mu.Lock()
	e.val, e.err = val, err
	e.completedAt = c.clock()
	close(e.done)
	if err != nil || ttl == 0 {
		// Keep only successful results worth serving again. The entry map
		// may already hold a newer entry after Invalidate; only remove our
		// own.
		if c.entries[key] == e {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	return val, err
}

// Invalidate forces the next Do call for key to re-invoke its producer
// regardless of age. Waiters on an in-flight fetch still receive its
// result.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every cached and pending entry reference. Outstanding
// fetches complete normally but their results are not retained.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Dedupe runs producer through c with typed results. A key collision with a
// differently-typed operation surfaces as an error rather than a zero value.
func Dedupe[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, producer func(context.Context) (T, error)) (T, error) {
	val, err := c.Do(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return producer(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := val.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("requestcache: key %q holds %T, not %T", key, val, zero)
	}
	return typed, nil
}
