// Package memcache provides an in-memory entity cache with an optional
// staleness window.
//
// The cache is intentionally unbounded: entries are never evicted by
// policy and grow for the process lifetime. Staleness, when enabled, gates
// a re-fetch decision only — an expired entry remains readable as the
// last known good value while a refresh hook is given the chance to
// schedule a background re-fetch.
package memcache

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultStalenessWindow is the staleness window used for remote-entity
// metadata caches when one is enabled.
const DefaultStalenessWindow = 30 * time.Minute

// Entry pairs a cached value with the time it was fetched. Entries are
// only ever constructed by Put after a successful fetch; they are replaced
// whole, never mutated in place.
type Entry[V any] struct {
	Value     V
	FetchedAt time.Time
}

// RefreshHook is invoked when a stale entry is read and stale-while-
// revalidate is enabled. It runs on the read path and must be fast and
// non-blocking; typically it schedules a background re-fetch for the id.
type RefreshHook func(id string)

// config holds Cache configuration.
type config struct {
	maxAge               time.Duration
	staleWhileRevalidate bool
	refresh              RefreshHook
	now                  func() time.Time
	logger               *slog.Logger
}

// Option configures a Cache.
type Option func(*config)

// WithMaxAge sets the staleness window. Use 0 to disable staleness
// tracking entirely. Defaults to 0.
func WithMaxAge(d time.Duration) Option {
	return func(c *config) {
		c.maxAge = d
	}
}

// WithStaleWhileRevalidate controls what happens when a stale entry is
// read: when true the entry is still returned and the refresh hook fires;
// when false entries are never reported stale and the hook never fires.
// Defaults to false.
func WithStaleWhileRevalidate(enabled bool) Option {
	return func(c *config) {
		c.staleWhileRevalidate = enabled
	}
}

// WithRefreshHook sets the hook invoked on reads of stale entries.
func WithRefreshHook(hook RefreshHook) Option {
	return func(c *config) {
		c.refresh = hook
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithLogger sets the logger. If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Cache is a concurrency-safe mapping from entity id to cached value.
// Reads never trigger a remote fetch; callers observing a miss must drive
// a fetch themselves.
type Cache[V any] struct {
	mu                   sync.RWMutex
	entries              map[string]Entry[V]
	maxAge               time.Duration
	staleWhileRevalidate bool
	refresh              RefreshHook
	now                  func() time.Time
	logger               *slog.Logger
}

// New creates an empty cache.
func New[V any](opts ...Option) (*Cache[V], error) {
	cfg := config{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxAge < 0 {
		return nil, errors.New("max age must be >= 0")
	}
	if cfg.staleWhileRevalidate && cfg.maxAge == 0 {
		return nil, errors.New("stale-while-revalidate requires a max age")
	}
	return &Cache[V]{
		entries:              make(map[string]Entry[V]),
		maxAge:               cfg.maxAge,
		staleWhileRevalidate: cfg.staleWhileRevalidate,
		refresh:              cfg.refresh,
		now:                  cfg.now,
		logger:               cfg.logger,
	}, nil
}

func (c *Cache[V]) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Get returns the entry for id. Stale entries are still returned; when
// stale-while-revalidate is on, reading a stale entry also invokes the
// refresh hook.
func (c *Cache[V]) Get(id string) (Entry[V], bool) {
	c.mu.RLock()
	ent, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return Entry[V]{}, false
	}
	if c.staleWhileRevalidate && c.stale(ent) {
		c.log().Debug("serving stale entry", "id", id, "fetched_at", ent.FetchedAt)
		if c.refresh != nil {
			c.refresh(id)
		}
	}
	return ent, true
}

// Put inserts or replaces the entry for id, stamping it with the current
// time.
func (c *Cache[V]) Put(id string, value V) {
	ent := Entry[V]{Value: value, FetchedAt: c.now()}
	c.mu.Lock()
	c.entries[id] = ent
	c.mu.Unlock()
}

// Has reports whether an entry exists for id, stale or not.
func (c *Cache[V]) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return ok
}

// Stale reports whether the entry for id is past the staleness window and
// eligible for re-fetch. Always false when stale-while-revalidate is off
// or the id is absent.
func (c *Cache[V]) Stale(id string) bool {
	if !c.staleWhileRevalidate {
		return false
	}
	c.mu.RLock()
	ent, ok := c.entries[id]
	c.mu.RUnlock()
	return ok && c.stale(ent)
}

func (c *Cache[V]) stale(ent Entry[V]) bool {
	return c.maxAge > 0 && c.now().Sub(ent.FetchedAt) > c.maxAge
}

// Delete removes the entry for id. This is the only removal path; there
// is no eviction policy.
func (c *Cache[V]) Delete(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// IDs returns the ids of all cached entries in unspecified order.
func (c *Cache[V]) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}
