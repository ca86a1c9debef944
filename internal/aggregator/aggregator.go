// Package aggregator owns the mutable state of the coverage service: the
// polygon store, per-source watermarks, and the per-scope aggregate cache.
// A single loop applies ingest batches; aggregate queries run on caller
// goroutines under the cache's single-flight discipline.
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"

	"github.com/korimako/scentcover/internal/domain"
	"github.com/korimako/scentcover/internal/geometry"
	"github.com/korimako/scentcover/internal/observability"
	"github.com/korimako/scentcover/internal/source"
)

// Engine is the geometry dependency: polygon construction and unions.
type Engine interface {
	Build(m domain.Measurement) domain.DetectionPolygon
	Unify(polys []domain.DetectionPolygon) (domain.AggregateCoverage, error)
	Intersect(a, b orb.MultiPolygon) (orb.MultiPolygon, error)
}

// BoundaryProvider supplies the static reference polygon, when available.
type BoundaryProvider interface {
	Boundary() (orb.MultiPolygon, bool)
}

// Publisher receives the global aggregate after each successful recompute.
type Publisher interface {
	PublishCoverage(ctx context.Context, cov domain.AggregateCoverage) error
}

// IngestBatch is one immutable batch of new measurements for one source.
type IngestBatch struct {
	Source       source.Info
	Measurements []domain.Measurement
}

// BoundaryIntersection pairs the intersection area of global coverage with
// the boundary against the boundary's own area.
type BoundaryIntersection struct {
	IntersectionAreaM2 float64 `json:"intersection_area_m2"`
	BoundaryAreaM2     float64 `json:"boundary_area_m2"`
}

// Aggregator caches detection polygons per measurement and maintains
// versioned aggregate coverage per scope.
type Aggregator struct {
	engine    Engine
	store     *polygonStore
	cache     *scopeCache
	boundary  BoundaryProvider
	publisher Publisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	batches chan IngestBatch
	ready   atomic.Bool
}

// Options carries the aggregator's collaborators. Clock and Publisher are
// optional; a nil clock means real time.
type Options struct {
	Engine    Engine
	Boundary  BoundaryProvider
	Publisher Publisher
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	CacheTTL  time.Duration
}

// New creates an Aggregator.
func New(opts Options) *Aggregator {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Second
	}
	a := &Aggregator{
		engine:    opts.Engine,
		store:     newPolygonStore(),
		cache:     newScopeCache(clock, ttl),
		boundary:  opts.Boundary,
		publisher: opts.Publisher,
		clock:     clock,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		batches:   make(chan IngestBatch, 16),
	}
	return a
}

// Run consumes ingest batches until the context is cancelled. All store
// mutation happens here, in one serialized owner.
func (a *Aggregator) Run(ctx context.Context) error {
	a.metrics.AggregatorRunning.Set(1)
	defer a.metrics.AggregatorRunning.Set(0)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("aggregator stopping", "reason", ctx.Err())
			return nil
		case batch := <-a.batches:
			a.apply(batch)
		}
	}
}

// Submit hands an immutable measurement batch to the aggregator loop.
func (a *Aggregator) Submit(ctx context.Context, batch IngestBatch) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case a.batches <- batch:
		return nil
	}
}

// Watermark returns the highest memoized sequence for a source.
func (a *Aggregator) Watermark(sourceID string) int64 {
	return a.store.watermark(sourceID)
}

// apply builds and memoizes polygons for a batch, advances the watermark,
// and marks the affected scopes dirty. Recomputation stays demand-driven.
func (a *Aggregator) apply(batch IngestBatch) {
	if len(batch.Measurements) == 0 {
		return
	}

	polys := make([]domain.DetectionPolygon, 0, len(batch.Measurements))
	for _, m := range batch.Measurements {
		if err := m.Validate(); err != nil {
			a.metrics.MalformedRecords.Inc()
			a.logger.Warn("skipping malformed measurement", "source", batch.Source.ID, "error", err)
			continue
		}
		p := a.engine.Build(m)
		if p.Fallback {
			a.metrics.PolygonFallbacks.Inc()
		}
		polys = append(polys, p)
	}
	if len(polys) == 0 {
		return
	}
	a.metrics.PolygonsBuilt.Add(float64(len(polys)))

	inserted := a.store.insert(batch.Source, polys)
	if inserted == 0 {
		return
	}
	a.metrics.MeasurementsIngested.Add(float64(inserted))
	a.metrics.IngestBatchSize.Observe(float64(inserted))
	a.cache.markDirty(domain.ScopeGlobal, domain.SourceScope(batch.Source.ID))
	a.ready.Store(true)

	a.logger.Debug("ingested measurement batch",
		"source", batch.Source.ID,
		"inserted", inserted,
		"watermark", a.store.watermark(batch.Source.ID),
	)
}

// GetUnifiedCoverage returns the global aggregate, recomputing it when stale
// or dirty. Returns domain.ErrNoCoverage while no polygons are stored.
func (a *Aggregator) GetUnifiedCoverage(ctx context.Context) (domain.AggregateCoverage, error) {
	return a.coverage(ctx, domain.ScopeGlobal, a.store.all)
}

// GetPerSourceCoverage returns one source's aggregate under the same cache
// discipline as the global scope.
func (a *Aggregator) GetPerSourceCoverage(ctx context.Context, sourceID string) (domain.AggregateCoverage, error) {
	return a.coverage(ctx, domain.SourceScope(sourceID), func() []domain.DetectionPolygon {
		return a.store.bySource(sourceID)
	})
}

func (a *Aggregator) coverage(
	ctx context.Context,
	scope domain.Scope,
	collect func() []domain.DetectionPolygon,
) (domain.AggregateCoverage, error) {
	cov, result, err := a.cache.get(ctx, scope, func(ctx context.Context) (domain.AggregateCoverage, error) {
		start := a.clock.Now()
		agg, err := a.engine.Unify(collect())
		a.metrics.RecomputeDuration.Observe(a.clock.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "failed"
		}
		a.metrics.UnionRecomputes.WithLabelValues(scope.Kind(), outcome).Inc()
		if err != nil {
			if !errors.Is(err, domain.ErrNoCoverage) {
				a.logger.Error("coverage recompute failed", "scope", string(scope), "error", err)
			}
			return domain.AggregateCoverage{}, err
		}
		a.metrics.UnionSkippedPolygons.Add(float64(agg.SkippedCount))
		return agg, nil
	})
	a.metrics.CacheLookups.WithLabelValues(scope.Kind(), string(result)).Inc()
	if err != nil {
		return domain.AggregateCoverage{}, err
	}

	if result == lookupRecomputed && scope == domain.ScopeGlobal {
		a.metrics.CoverageAreaM2.Set(cov.CombinedAreaM2)
		a.metrics.CoverageEfficiency.Set(cov.CoverageEfficiency)
		a.publish(ctx, cov)
	}
	return cov, nil
}

func (a *Aggregator) publish(ctx context.Context, cov domain.AggregateCoverage) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.PublishCoverage(ctx, cov); err != nil {
		a.logger.Warn("coverage publish failed", "version", cov.Version, "error", err)
	}
}

// GetBoundaryIntersection intersects the current global coverage with the
// reference boundary. The bool is false when no boundary is configured or
// loadable; that is the "metric unavailable" state, not an error.
func (a *Aggregator) GetBoundaryIntersection(ctx context.Context) (BoundaryIntersection, bool, error) {
	bnd, bndArea, ok := a.loadBoundary()
	if !ok {
		return BoundaryIntersection{}, false, nil
	}

	cov, err := a.GetUnifiedCoverage(ctx)
	if err != nil {
		return BoundaryIntersection{}, true, err
	}

	inter, err := a.engine.Intersect(cov.Geometry, bnd)
	if err != nil {
		// Intersection faults degrade to "no overlap measured" rather than
		// failing the query; the boundary area is still meaningful.
		a.logger.Warn("boundary intersection failed", "error", err)
		return BoundaryIntersection{BoundaryAreaM2: bndArea}, true, nil
	}
	return BoundaryIntersection{
		IntersectionAreaM2: geometry.AreaM2(inter),
		BoundaryAreaM2:     bndArea,
	}, true, nil
}

func (a *Aggregator) loadBoundary() (orb.MultiPolygon, float64, bool) {
	if a.boundary == nil {
		return nil, 0, false
	}
	mp, ok := a.boundary.Boundary()
	if !ok || len(mp) == 0 {
		return nil, 0, false
	}
	return mp, geometry.AreaM2(mp), true
}

// LatestPolygon returns the most recent detection polygon for a source.
func (a *Aggregator) LatestPolygon(sourceID string) (domain.DetectionPolygon, bool) {
	return a.store.latest(sourceID)
}

// Sources lists every known source with its watermark and polygon count.
func (a *Aggregator) Sources() []SourceStatus {
	return a.store.statuses()
}

// CheckReadiness returns nil once at least one measurement batch has been
// ingested.
func (a *Aggregator) CheckReadiness(_ context.Context) error {
	if !a.ready.Load() {
		return errors.New("aggregator has not ingested any measurements yet")
	}
	return nil
}
