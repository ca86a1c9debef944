package geometry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/korimako/scentcover/internal/domain"
)

// UnionOutcome classifies what a boolean union produced. Modelling the three
// cases explicitly keeps the resolution policy in one place instead of type
// switches scattered at call sites.
type UnionOutcome int

const (
	// UnionPolygon: a single combined polygon, usable directly.
	UnionPolygon UnionOutcome = iota
	// UnionMultiPolygon: disjoint fragments remain after the union.
	UnionMultiPolygon
	// UnionFailed: the clipping library rejected the inputs.
	UnionFailed
)

// UnionResult is the tagged outcome of a union. Multi is populated for both
// success outcomes; Polygon only for UnionPolygon.
type UnionResult struct {
	Outcome UnionOutcome
	Polygon orb.Polygon
	Multi   orb.MultiPolygon
	Err     error
}

// union merges two multipolygons and classifies the result.
func union(a, b orb.MultiPolygon) UnionResult {
	g, err := safeUnion(toGeom(a), toGeom(b))
	if err != nil {
		return UnionResult{Outcome: UnionFailed, Err: err}
	}
	mp := fromGeom(g)
	switch len(mp) {
	case 0:
		return UnionResult{Outcome: UnionFailed, Err: errors.New("union produced empty geometry")}
	case 1:
		return UnionResult{Outcome: UnionPolygon, Polygon: mp[0], Multi: mp}
	default:
		return UnionResult{Outcome: UnionMultiPolygon, Multi: mp}
	}
}

// resolveLargest is the single-polygon resolution policy: a lone polygon
// passes through, a multipolygon yields its largest member, and a failed
// union yields nothing. Discarding smaller members is a documented lossy
// simplification used only for per-measurement shapes.
func resolveLargest(r UnionResult) (orb.Polygon, bool) {
	switch r.Outcome {
	case UnionPolygon:
		return r.Polygon, true
	case UnionMultiPolygon:
		var best orb.Polygon
		bestArea := -1.0
		for _, poly := range r.Multi {
			if a := AreaM2(poly); a > bestArea {
				bestArea = a
				best = poly
			}
		}
		return best, best != nil
	default:
		return nil, false
	}
}

// Unify merges a scope's detection polygons into one aggregate coverage.
// Invalid inputs are dropped up front; per-item union failures are skipped
// and counted; a total failure falls back to the convex hull of every input
// vertex. Version and ComputedAt are left for the caller to stamp.
func (e *Engine) Unify(polys []domain.DetectionPolygon) (domain.AggregateCoverage, error) {
	valid := make([]domain.DetectionPolygon, 0, len(polys))
	skipped := 0
	for _, p := range polys {
		if err := Validate(p.Geometry); err != nil {
			skipped++
			continue
		}
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		return domain.AggregateCoverage{}, domain.ErrNoCoverage
	}

	combined, unionSkipped := e.progressiveUnion(valid)
	skipped += unionSkipped

	if len(combined) == 0 {
		if hull := convexHull(collectVertices(valid)); len(hull) >= 4 {
			combined = orb.MultiPolygon{orb.Polygon{hull}}
		}
	}
	if len(combined) == 0 {
		return domain.AggregateCoverage{}, fmt.Errorf("unify: %w", domain.ErrNoCoverage)
	}

	combined = e.smooth(combined)

	return e.deriveStats(combined, valid, skipped), nil
}

// progressiveUnion accumulates the union in bounded batches. Within a batch
// each polygon is folded into the batch accumulator; a polygon whose union
// fails is skipped rather than aborting the whole pass.
func (e *Engine) progressiveUnion(polys []domain.DetectionPolygon) (orb.MultiPolygon, int) {
	var running orb.MultiPolygon
	skipped := 0

	for start := 0; start < len(polys); start += e.cfg.UnionBatchSize {
		end := min(start+e.cfg.UnionBatchSize, len(polys))

		var acc orb.MultiPolygon
		for _, p := range polys[start:end] {
			item := orb.MultiPolygon{p.Geometry}
			if acc == nil {
				acc = item
				continue
			}
			res := union(acc, item)
			if res.Outcome == UnionFailed {
				skipped++
				continue
			}
			acc = res.Multi
		}
		if acc == nil {
			continue
		}
		if running == nil {
			running = acc
			continue
		}
		res := union(running, acc)
		if res.Outcome == UnionFailed {
			skipped += end - start
			continue
		}
		running = res.Multi
	}
	return running, skipped
}

// smooth runs the aggregate-only vertex-noise reduction pass. The simplified
// shape is kept only when every member polygon is still valid.
func (e *Engine) smooth(mp orb.MultiPolygon) orb.MultiPolygon {
	if e.cfg.SmoothingToleranceDeg <= 0 {
		return mp
	}
	simplified := simplify.DouglasPeucker(e.cfg.SmoothingToleranceDeg).Simplify(mp.Clone())
	out, ok := simplified.(orb.MultiPolygon)
	if !ok {
		return mp
	}
	for _, poly := range out {
		if Validate(poly) != nil {
			return mp
		}
	}
	return out
}

// deriveStats computes the aggregate's numeric attributes from the source
// polygons (not the unioned geometry, except for the combined area and
// vertex count, which belong to the union itself).
func (e *Engine) deriveStats(combined orb.MultiPolygon, valid []domain.DetectionPolygon, skipped int) domain.AggregateCoverage {
	cov := domain.AggregateCoverage{
		Geometry:     combined,
		PolygonCount: len(valid),
		SkippedCount: skipped,
		VertexCount:  vertexCount(combined),
	}

	sources := make(map[string]struct{})
	var windSum float64
	for i, p := range valid {
		cov.SumAreaM2 += p.AreaM2
		sources[p.SourceID] = struct{}{}

		windSum += p.WindSpeedMps
		if i == 0 || p.WindSpeedMps < cov.Wind.MinMps {
			cov.Wind.MinMps = p.WindSpeedMps
		}
		if p.WindSpeedMps > cov.Wind.MaxMps {
			cov.Wind.MaxMps = p.WindSpeedMps
		}
		if cov.TimeRange.From.IsZero() || p.Timestamp.Before(cov.TimeRange.From) {
			cov.TimeRange.From = p.Timestamp
		}
		if p.Timestamp.After(cov.TimeRange.To) {
			cov.TimeRange.To = p.Timestamp
		}
	}
	cov.Wind.AvgMps = windSum / float64(len(valid))

	cov.SourceIDs = make([]string, 0, len(sources))
	for id := range sources {
		cov.SourceIDs = append(cov.SourceIDs, id)
	}
	sort.Strings(cov.SourceIDs)

	cov.CombinedAreaM2 = AreaM2(combined)
	if cov.CombinedAreaM2 > 0 {
		cov.CoverageEfficiency = cov.SumAreaM2 / cov.CombinedAreaM2
	}
	return cov
}

// Intersect returns the boolean intersection of two multipolygons.
func (e *Engine) Intersect(a, b orb.MultiPolygon) (orb.MultiPolygon, error) {
	g, err := safeIntersection(toGeom(a), toGeom(b))
	if err != nil {
		return nil, fmt.Errorf("intersect: %w", err)
	}
	return fromGeom(g), nil
}

// collectVertices flattens every outer-ring vertex of the inputs, feeding the
// convex-hull fallback.
func collectVertices(polys []domain.DetectionPolygon) []orb.Point {
	var pts []orb.Point
	for _, p := range polys {
		if len(p.Geometry) == 0 {
			continue
		}
		pts = append(pts, p.Geometry[0]...)
	}
	return pts
}

// --- polygol adapter ---
//
// polygol works on raw multipolygon coordinates and reports degenerate input
// through its error return, which maps directly onto UnionFailed. The recover
// wrappers keep pathological input from escaping as a panic.

func toGeom(mp orb.MultiPolygon) [][][][]float64 {
	g := make([][][][]float64, len(mp))
	for i, poly := range mp {
		g[i] = make([][][]float64, len(poly))
		for j, ring := range poly {
			g[i][j] = make([][]float64, len(ring))
			for k, pt := range ring {
				g[i][j][k] = []float64{pt[0], pt[1]}
			}
		}
	}
	return g
}

func fromGeom(g [][][][]float64) orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(g))
	for _, poly := range g {
		p := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			r := make(orb.Ring, 0, len(ring))
			for _, pt := range ring {
				if len(pt) < 2 {
					continue
				}
				r = append(r, orb.Point{pt[0], pt[1]})
			}
			if len(r) > 0 && !r.Closed() {
				r = append(r, r[0])
			}
			p = append(p, r)
		}
		if len(p) > 0 {
			mp = append(mp, p)
		}
	}
	return mp
}

func safeUnion(a, b [][][][]float64) (g [][][][]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("polygon clipping panic: %v", r)
		}
	}()
	return polygol.Union(a, b)
}

func safeIntersection(a, b [][][][]float64) (g [][][][]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("polygon clipping panic: %v", r)
		}
	}()
	return polygol.Intersection(a, b)
}
