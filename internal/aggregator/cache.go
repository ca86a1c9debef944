package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/korimako/scentcover/internal/domain"
)

// lookupResult labels how a cache lookup was satisfied, for metrics.
type lookupResult string

const (
	lookupFresh      lookupResult = "fresh"      // served from cache within TTL
	lookupJoined     lookupResult = "joined"     // awaited an in-flight recompute
	lookupRecomputed lookupResult = "recomputed" // this caller ran the recompute
	lookupStale      lookupResult = "stale"      // recompute failed; served last-known-good
)

// scopeCache holds one entry per aggregation scope with TTL freshness,
// dirty marking, and a single-flight discipline: concurrent stale lookups of
// the same scope collapse into one recomputation while other scopes proceed
// in parallel.
type scopeCache struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[domain.Scope]*cacheEntry
}

type cacheEntry struct {
	mu sync.Mutex

	coverage domain.AggregateCoverage
	has      bool
	dirty    bool
	// dirtyGen advances on every markDirty. A completing recompute clears
	// dirty only when the generation it started from is still current, so a
	// batch landing mid-flight (after the flight already collected its
	// inputs) forces the next lookup to recompute.
	dirtyGen   uint64
	version    uint64
	computedAt time.Time
	lastErr    error

	// inflight is non-nil while a recompute runs; it closes when the
	// recompute finishes and the entry fields are settled.
	inflight chan struct{}
}

func newScopeCache(clock clockwork.Clock, ttl time.Duration) *scopeCache {
	return &scopeCache{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[domain.Scope]*cacheEntry),
	}
}

func (c *scopeCache) entry(scope domain.Scope) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[scope]
	if !ok {
		e = &cacheEntry{}
		c.entries[scope] = e
	}
	return e
}

// markDirty flags scopes so the next lookup recomputes regardless of TTL.
func (c *scopeCache) markDirty(scopes ...domain.Scope) {
	for _, scope := range scopes {
		e := c.entry(scope)
		e.mu.Lock()
		e.dirty = true
		e.dirtyGen++
		e.mu.Unlock()
	}
}

// get returns the scope's aggregate, recomputing when the entry is dirty,
// expired, or absent. A failed recompute falls back to the last-known-good
// aggregate; only when none exists does the failure surface. Readers never
// observe a half-written aggregate: entry fields change only under the entry
// lock, after compute returns.
func (c *scopeCache) get(
	ctx context.Context,
	scope domain.Scope,
	compute func(context.Context) (domain.AggregateCoverage, error),
) (domain.AggregateCoverage, lookupResult, error) {
	e := c.entry(scope)

	e.mu.Lock()
	if e.has && !e.dirty && c.clock.Since(e.computedAt) < c.ttl {
		cov := e.coverage
		e.mu.Unlock()
		return cov, lookupFresh, nil
	}

	if e.inflight != nil {
		done := e.inflight
		e.mu.Unlock()
		select {
		case <-ctx.Done():
			return domain.AggregateCoverage{}, lookupJoined, ctx.Err()
		case <-done:
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		// The flight either stored a fresh aggregate or left the previous
		// last-known-good in place; return whichever is visible now.
		if e.has {
			return e.coverage, lookupJoined, nil
		}
		return domain.AggregateCoverage{}, lookupJoined, e.lastErr
	}

	done := make(chan struct{})
	e.inflight = done
	gen := e.dirtyGen
	e.mu.Unlock()

	cov, err := compute(ctx)

	e.mu.Lock()
	defer func() {
		e.inflight = nil
		close(done)
		e.mu.Unlock()
	}()

	if err != nil {
		e.lastErr = err
		if e.has {
			// Last-known-good: stale coverage beats no coverage. Dirty flag
			// and computedAt are untouched, so the next lookup retries.
			return e.coverage, lookupStale, nil
		}
		return domain.AggregateCoverage{}, lookupRecomputed, err
	}

	e.version++
	cov.Version = e.version
	cov.ComputedAt = c.clock.Now()
	e.coverage = cov
	e.has = true
	if e.dirtyGen == gen {
		e.dirty = false
	}
	e.lastErr = nil
	e.computedAt = cov.ComputedAt
	return cov, lookupRecomputed, nil
}
