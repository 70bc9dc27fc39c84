// Package cache keeps translation results keyed by (target language, text)
// with per-entry expiry and a bound on the number of entries.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"translate-bridge/pkg/types"

	"go.uber.org/zap"
)

// Entry is a cached translation. It is valid while now-CreatedAt < TTL.
type Entry struct {
	Key       string
	Data      types.TranslationResult
	CreatedAt time.Time
	TTL       time.Duration

	seq uint64
}

// Valid reports whether the entry may still be served at now
func (e *Entry) Valid(now time.Time) bool {
	return now.Sub(e.CreatedAt) < e.TTL
}

// Store persists entries so a restarted process can warm its cache.
// Implementations must be safe for concurrent use.
type Store interface {
	Save(ctx context.Context, e Entry) error
	Delete(ctx context.Context, keys ...string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Clear(ctx context.Context) error
	LoadValid(ctx context.Context, now time.Time) ([]Entry, error)
}

// ResponseCache is an in-memory TTL and size bounded cache, optionally
// written through to a Store. Safe for concurrent use; concurrent writes to
// the same key resolve last-write-wins.
type ResponseCache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	maxEntries int
	defaultTTL time.Duration
	seq        uint64

	now    func() time.Time
	store  Store
	logger *zap.Logger
}

// Option configures a ResponseCache
type Option func(*ResponseCache)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

// WithStore enables write-through persistence
func WithStore(s Store) Option {
	return func(c *ResponseCache) { c.store = s }
}

// WithLogger sets the logger used for persistence failures
func WithLogger(l *zap.Logger) Option {
	return func(c *ResponseCache) { c.logger = l }
}

// New creates a cache holding at most maxEntries entries
func New(maxEntries int, defaultTTL time.Duration, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached result for key. Expired entries are removed and reported absent.
func (c *ResponseCache) Get(key string) (types.TranslationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return types.TranslationResult{}, false
	}
	if !e.Valid(c.now()) {
		delete(c.entries, key)
		return types.TranslationResult{}, false
	}
	return e.Data, true
}

// Put stores result under key. Expired entries are pruned first, then the
// oldest entries are evicted until the cache is within its bound.
func (c *ResponseCache) Put(ctx context.Context, key string, result types.TranslationResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	now := c.now()
	removed := c.pruneExpired(now)

	c.seq++
	e := &Entry{Key: key, Data: result, CreatedAt: now, TTL: ttl, seq: c.seq}
	c.entries[key] = e
	removed = append(removed, c.evictOldest()...)
	saved := *e
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if len(removed) > 0 {
		if err := c.store.Delete(ctx, removed...); err != nil {
			c.logger.Warn("failed to delete evicted cache entries", zap.Int("count", len(removed)), zap.Error(err))
		}
	}
	if err := c.store.Save(ctx, saved); err != nil {
		c.logger.Warn("failed to persist cache entry", zap.String("key", key), zap.Error(err))
	}
}

// pruneExpired removes invalid entries and returns their keys. Caller holds mu.
func (c *ResponseCache) pruneExpired(now time.Time) []string {
	var removed []string
	for k, e := range c.entries {
		if !e.Valid(now) {
			delete(c.entries, k)
			removed = append(removed, k)
		}
	}
	return removed
}

// evictOldest drops entries by ascending CreatedAt until within bound. Caller holds mu.
func (c *ResponseCache) evictOldest() []string {
	over := len(c.entries) - c.maxEntries
	if over <= 0 {
		return nil
	}
	all := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].seq < all[j].seq
	})
	removed := make([]string, 0, over)
	for _, e := range all[:over] {
		delete(c.entries, e.Key)
		removed = append(removed, e.Key)
	}
	return removed
}

// Clear removes every entry, including persisted ones
func (c *ResponseCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	return c.store.Clear(ctx)
}

// Purge removes expired entries and returns how many were dropped from memory
func (c *ResponseCache) Purge(ctx context.Context) int {
	c.mu.Lock()
	now := c.now()
	removed := c.pruneExpired(now)
	c.mu.Unlock()

	if c.store != nil {
		if _, err := c.store.DeleteExpired(ctx, now); err != nil {
			c.logger.Warn("failed to purge persisted cache entries", zap.Error(err))
		}
	}
	return len(removed)
}

// Warm loads still-valid persisted entries, oldest first, respecting the size bound.
// Entries evicted to honour the bound are deleted from the store. It returns the number loaded.
func (c *ResponseCache) Warm(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	now := c.now()
	loaded, err := c.store.LoadValid(ctx, now)
	if err != nil {
		return 0, err
	}
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].CreatedAt.Before(loaded[j].CreatedAt) })

	c.mu.Lock()
	n := 0
	for i := range loaded {
		e := loaded[i]
		if !e.Valid(now) {
			continue
		}
		c.seq++
		e.seq = c.seq
		c.entries[e.Key] = &e
		n++
	}
	evicted := c.evictOldest()
	c.mu.Unlock()

	if len(evicted) > 0 {
		if err := c.store.Delete(ctx, evicted...); err != nil {
			c.logger.Warn("failed to delete evicted cache entries", zap.Int("count", len(evicted)), zap.Error(err))
		}
	}
	return n, nil
}

// Stats summarises the cache contents
type Stats struct {
	Total      int `json:"total"`
	Valid      int `json:"valid"`
	Expired    int `json:"expired"`
	MaxEntries int `json:"max_entries"`
}

// Stats counts valid and expired entries currently held in memory
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := Stats{Total: len(c.entries), MaxEntries: c.maxEntries}
	for _, e := range c.entries {
		if e.Valid(now) {
			s.Valid++
		} else {
			s.Expired++
		}
	}
	return s
}

// Len returns the number of entries held, valid or not
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
