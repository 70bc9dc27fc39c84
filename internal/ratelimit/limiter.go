// Package ratelimit implements the per-provider sliding-window quota.
package ratelimit

import (
	"sync"
	"time"

	"translate-bridge/pkg/types"
)

// Limiter admits at most max requests within any trailing window.
// Denial is immediate; callers never block on a Limiter.
type Limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	stamps []time.Time
	now    func() time.Time
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter admitting max requests per window
func New(max int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		max:    max,
		window: window,
		stamps: make([]time.Time, 0, max),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryAcquire records a request and returns true if the quota allows it
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	if len(l.stamps) >= l.max {
		return false
	}
	l.stamps = append(l.stamps, now)
	return true
}

// prune drops timestamps at or before now-window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

// Snapshot describes the current usage of a limiter
type Snapshot struct {
	Used    int           `json:"used"`
	Max     int           `json:"max"`
	Window  time.Duration `json:"window"`
	ResetIn time.Duration `json:"reset_in"`
}

// Snapshot reports usage within the window ending now
func (l *Limiter) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	s := Snapshot{Used: len(l.stamps), Max: l.max, Window: l.window}
	if len(l.stamps) > 0 {
		s.ResetIn = l.stamps[0].Add(l.window).Sub(now)
	}
	return s
}

// Set holds one Limiter per provider
type Set struct {
	limiters map[types.ProviderID]*Limiter
}

// NewSet builds a Set from the given limiters
func NewSet(limiters map[types.ProviderID]*Limiter) *Set {
	m := make(map[types.ProviderID]*Limiter, len(limiters))
	for id, l := range limiters {
		m[id] = l
	}
	return &Set{limiters: m}
}

// NewSetFromConfig creates limiters from each provider's configured quota
func NewSetFromConfig(cfg *types.Config, opts ...Option) *Set {
	limiters := make(map[types.ProviderID]*Limiter, len(types.KnownProviders))
	for _, id := range types.KnownProviders {
		pc := cfg.Provider(id)
		limiters[id] = New(pc.RateLimit, pc.RateWindow, opts...)
	}
	return NewSet(limiters)
}

// TryAcquire gates a request to provider id. Providers without a limiter are always admitted.
func (s *Set) TryAcquire(id types.ProviderID) bool {
	l, ok := s.limiters[id]
	if !ok {
		return true
	}
	return l.TryAcquire()
}

// Snapshots reports usage for every provider in the set
func (s *Set) Snapshots() map[types.ProviderID]Snapshot {
	out := make(map[types.ProviderID]Snapshot, len(s.limiters))
	for id, l := range s.limiters {
		out[id] = l.Snapshot()
	}
	return out
}
