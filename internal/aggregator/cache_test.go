package aggregator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korimako/scentcover/internal/domain"
)

func fixedCoverage(area float64) domain.AggregateCoverage {
	return domain.AggregateCoverage{PolygonCount: 1, CombinedAreaM2: area, SumAreaM2: area}
}

func countingCompute(calls *atomic.Int64, cov domain.AggregateCoverage, err error) func(context.Context) (domain.AggregateCoverage, error) {
	return func(context.Context) (domain.AggregateCoverage, error) {
		calls.Add(1)
		return cov, err
	}
}

func TestCache_FreshWithinTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newScopeCache(clock, time.Second)
	var calls atomic.Int64

	cov1, res, err := c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, fixedCoverage(10), nil))
	require.NoError(t, err)
	assert.Equal(t, lookupRecomputed, res)
	assert.Equal(t, uint64(1), cov1.Version)

	clock.Advance(500 * time.Millisecond)
	cov2, res, err := c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, fixedCoverage(20), nil))
	require.NoError(t, err)
	assert.Equal(t, lookupFresh, res)
	assert.Equal(t, cov1.Version, cov2.Version)
	assert.InDelta(t, cov1.CombinedAreaM2, cov2.CombinedAreaM2, 1e-9)
	assert.Equal(t, int64(1), calls.Load())
}

func TestCache_TTLExpiryRecomputes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newScopeCache(clock, time.Second)
	var calls atomic.Int64

	_, _, err := c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, fixedCoverage(10), nil))
	require.NoError(t, err)

	clock.Advance(time.Second)
	cov, res, err := c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, fixedCoverage(20), nil))
	require.NoError(t, err)
	assert.Equal(t, lookupRecomputed, res)
	assert.Equal(t, uint64(2), cov.Version)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCache_DirtyBypassesTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newScopeCache(clock, time.Hour)
	var calls atomic.Int64

	_, _, err := c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, fixedCoverage(10), nil))
	require.NoError(t, err)

	c.markDirty(domain.ScopeGlobal)
	cov, res, err := c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, fixedCoverage(20), nil))
	require.NoError(t, err)
	assert.Equal(t, lookupRecomputed, res)
	assert.Equal(t, uint64(2), cov.Version)
	assert.InDelta(t, 20.0, cov.CombinedAreaM2, 1e-9)
}

// A batch that lands while a recompute is in flight arrived after the flight
// collected its inputs, so its data is missing from the flight's result. The
// entry must stay dirty and the next lookup must recompute.
func TestCache_DirtyDuringFlightForcesRecompute(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newScopeCache(clock, time.Hour)

	gate := make(chan struct{})
	started := make(chan struct{})
	flightDone := make(chan struct{})
	go func() {
		defer close(flightDone)
		_, _, _ = c.get(context.Background(), domain.ScopeGlobal, func(context.Context) (domain.AggregateCoverage, error) {
			close(started)
			<-gate
			return fixedCoverage(10), nil
		})
	}()
	<-started

	c.markDirty(domain.ScopeGlobal)
	close(gate)
	<-flightDone

	var calls atomic.Int64
	cov, res, err := c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, fixedCoverage(20), nil))
	require.NoError(t, err)
	assert.Equal(t, lookupRecomputed, res)
	assert.Equal(t, uint64(2), cov.Version)
	assert.InDelta(t, 20.0, cov.CombinedAreaM2, 1e-9)
	assert.Equal(t, int64(1), calls.Load())
}

func TestCache_ScopesIndependent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newScopeCache(clock, time.Hour)
	var calls atomic.Int64

	_, _, err := c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, fixedCoverage(10), nil))
	require.NoError(t, err)
	_, _, err = c.get(context.Background(), domain.SourceScope("a"), countingCompute(&calls, fixedCoverage(20), nil))
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())

	// Dirtying one scope leaves the other fresh.
	c.markDirty(domain.SourceScope("a"))
	_, res, err := c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, fixedCoverage(30), nil))
	require.NoError(t, err)
	assert.Equal(t, lookupFresh, res)
}

// Concurrent stale lookups of one scope must run the recompute exactly once;
// the rest join the flight and observe the same result.
func TestCache_SingleFlight(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newScopeCache(clock, time.Second)

	var calls atomic.Int64
	gate := make(chan struct{})
	compute := func(context.Context) (domain.AggregateCoverage, error) {
		calls.Add(1)
		<-gate
		return fixedCoverage(42), nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]lookupResult, workers)
	covs := make([]domain.AggregateCoverage, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			covs[i], results[i], errs[i] = c.get(context.Background(), domain.ScopeGlobal, compute)
		}(i)
	}

	// Let the goroutines pile up on the flight before releasing it.
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	recomputed := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i] == lookupRecomputed {
			recomputed++
		}
		assert.Equal(t, uint64(1), covs[i].Version)
		assert.InDelta(t, 42.0, covs[i].CombinedAreaM2, 1e-9)
	}
	assert.Equal(t, 1, recomputed)
}

func TestCache_JoinCancelled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newScopeCache(clock, time.Second)

	gate := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _, _ = c.get(context.Background(), domain.ScopeGlobal, func(context.Context) (domain.AggregateCoverage, error) {
			close(started)
			<-gate
			return fixedCoverage(1), nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, res, err := c.get(ctx, domain.ScopeGlobal, nil)
	assert.Equal(t, lookupJoined, res)
	assert.ErrorIs(t, err, context.Canceled)
	close(gate)
}

func TestCache_LastKnownGoodOnFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newScopeCache(clock, time.Second)
	var calls atomic.Int64

	_, _, err := c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, fixedCoverage(10), nil))
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	cov, res, err := c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, domain.AggregateCoverage{}, errors.New("clipping fault")))
	require.NoError(t, err)
	assert.Equal(t, lookupStale, res)
	assert.Equal(t, uint64(1), cov.Version)
	assert.InDelta(t, 10.0, cov.CombinedAreaM2, 1e-9)

	// A later successful recompute resumes version numbering.
	clock.Advance(2 * time.Second)
	cov, _, err = c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, fixedCoverage(30), nil))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cov.Version)
}

func TestCache_FailureWithoutPriorSurfaces(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newScopeCache(clock, time.Second)
	var calls atomic.Int64

	wantErr := errors.New("clipping fault")
	_, res, err := c.get(context.Background(), domain.ScopeGlobal, countingCompute(&calls, domain.AggregateCoverage{}, wantErr))
	assert.Equal(t, lookupRecomputed, res)
	assert.ErrorIs(t, err, wantErr)
}
