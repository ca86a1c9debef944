package aggregator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korimako/scentcover/internal/geometry"
	"github.com/korimako/scentcover/internal/observability"
	"github.com/korimako/scentcover/internal/source"
)

var _ Engine = (*geometry.Engine)(nil)

// flakySource fails ListSources a configured number of times, then delegates
// to the wrapped source.
type flakySource struct {
	source.Source
	failures atomic.Int64
	calls    atomic.Int64
}

func (f *flakySource) ListSources(ctx context.Context) ([]source.Info, error) {
	f.calls.Add(1)
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return nil, source.ErrUnavailable
	}
	return f.Source.ListSources(ctx)
}

func startPoller(t *testing.T, src source.Source, a *Aggregator, clock clockwork.Clock) {
	t.Helper()
	p := NewPoller(src, a, time.Second, clock, testLogger(), observability.NewMetricsForTesting())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = p.Run(ctx) }()
	t.Cleanup(cancel)
}

func TestPoller_IngestsNewMeasurements(t *testing.T) {
	mem := source.NewMemory()
	mem.Add(
		measurement("tracker-01", 1, 3),
		measurement("tracker-01", 2, 3),
	)

	clock := clockwork.NewFakeClock()
	a, _ := newTestAggregator(t, Options{})
	startPoller(t, mem, a, clock)

	clock.BlockUntil(1)
	clock.Advance(time.Second)

	assert.Eventually(t, func() bool {
		return a.Watermark("tracker-01") == 2
	}, time.Second, time.Millisecond)

	cov, err := a.GetUnifiedCoverage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cov.PolygonCount)
}

func TestPoller_OnlyFetchesAboveWatermark(t *testing.T) {
	mem := source.NewMemory()
	mem.Add(measurement("tracker-01", 1, 3))

	clock := clockwork.NewFakeClock()
	a, _ := newTestAggregator(t, Options{})
	startPoller(t, mem, a, clock)

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		return a.Watermark("tracker-01") == 1
	}, time.Second, time.Millisecond)

	// New data arrives between ticks; the next tick picks up only sequence 2.
	mem.Add(measurement("tracker-01", 2, 4))
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	assert.Eventually(t, func() bool {
		return a.Watermark("tracker-01") == 2
	}, time.Second, time.Millisecond)

	cov, err := a.GetUnifiedCoverage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cov.PolygonCount)
}

func TestPoller_MultipleSources(t *testing.T) {
	mem := source.NewMemory()
	mem.Add(
		measurement("tracker-01", 1, 3),
		measurement("tracker-02", 1, 5),
		measurement("tracker-02", 2, 5),
	)

	clock := clockwork.NewFakeClock()
	a, _ := newTestAggregator(t, Options{})
	startPoller(t, mem, a, clock)

	clock.BlockUntil(1)
	clock.Advance(time.Second)

	assert.Eventually(t, func() bool {
		return a.Watermark("tracker-01") == 1 && a.Watermark("tracker-02") == 2
	}, time.Second, time.Millisecond)
}

// A failed listing is retried on the next tick without corrupting state.
func TestPoller_RetryAfterListFailure(t *testing.T) {
	mem := source.NewMemory()
	mem.Add(measurement("tracker-01", 1, 3))
	flaky := &flakySource{Source: mem}
	flaky.failures.Store(1)

	clock := clockwork.NewFakeClock()
	a, _ := newTestAggregator(t, Options{})
	startPoller(t, flaky, a, clock)

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return flaky.calls.Load() >= 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(0), a.Watermark("tracker-01"))

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		return a.Watermark("tracker-01") == 1
	}, time.Second, time.Millisecond)
}

func TestNewPoller_Defaults(t *testing.T) {
	p := NewPoller(source.NewMemory(), nil, 0, nil, testLogger(), observability.NewMetricsForTesting())
	assert.Equal(t, time.Second, p.interval)
	assert.NotNil(t, p.clock)
}
