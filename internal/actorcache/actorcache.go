// Package actorcache holds a small TTL-bounded lookup cache mapping an
// actor identifier to the minimal profile fields needed to render "who did
// this". It exists purely to avoid a full profile fetch for every push
// event.
package actorcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/workloop/notify-go/internal/types"
)

// DefaultTTL bounds how long a fetched profile may be reused.
const DefaultTTL = 5 * time.Minute

// FetchFunc retrieves a profile from the authoritative store. It returns
// types.ErrNotFound when the actor does not exist.
type FetchFunc func(ctx context.Context, actorID string) (*types.ActorProfile, error)

type cacheEntry struct {
	profile   types.ActorProfile
	fetchedAt time.Time
}

// Cache is a concurrency-safe actor profile cache.
type Cache struct {
	mu      sync.Mutex
	log     zerolog.Logger
	fetch   FetchFunc
	ttl     time.Duration
	clock   func() time.Time
	entries map[string]cacheEntry
}

// Option mutates cache configuration.
type Option func(*Cache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger injects a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// New creates an empty cache backed by fetch.
func New(fetch FetchFunc, options ...Option) *Cache {
	c := &Cache{
		log:     zerolog.Nop(),
		fetch:   fetch,
		ttl:     DefaultTTL,
		clock:   time.Now,
		entries: make(map[string]cacheEntry),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Resolve returns the profile for actorID, fetching and caching on miss or
// expiry. A fetch failure degrades to an all-empty profile rather than
// failing the caller; the next Resolve retries.
func (c *Cache) Resolve(ctx context.Context, actorID string) types.ActorProfile {
	if actorID == "" {
		return types.ActorProfile{}
	}

	now := c.clock()

	c.mu.Lock()
	if e, ok := c.entries[actorID]; ok && now.Sub(e.fetchedAt) < c.ttl {
		profile := e.profile
		c.mu.Unlock()
		return profile
	}
	c.mu.Unlock()

	profile, err := c.fetch(ctx, actorID)
	switch {
	case errors.Is(err, types.ErrNotFound):
		// A deleted actor stays deleted; cache the empty profile so the
		// lookup is not repeated until the entry expires.
		profile = &types.ActorProfile{}
	case err != nil:
		c.log.Debug().Err(err).Str("actor_id", actorID).Msg("actor profile fetch failed")
		return types.ActorProfile{}
	case profile == nil:
		profile = &types.ActorProfile{}
	}

	c.mu.Lock()
	c.entries[actorID] = cacheEntry{profile: *profile, fetchedAt: now}
	c.mu.Unlock()

	return *profile
}

// Clear drops every entry. Called on sign-out and on switching to a
// different authenticated user so one user's actor metadata never leaks
// into another's session.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len reports the number of cached entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
