package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Scope identifies one aggregation cache entry: the global union or the
// union over a single source's polygons.
type Scope string

// ScopeGlobal is the scope covering every stored detection polygon.
const ScopeGlobal Scope = "global"

// SourceScope returns the per-source aggregation scope for a tracker.
func SourceScope(sourceID string) Scope {
	return Scope("source:" + sourceID)
}

// Kind reports "global" or "source", used as a metrics label.
func (s Scope) Kind() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "source"
}

// DetectionPolygon is the detection shape derived from exactly one
// measurement. Measurements never change, so a built polygon is cached
// indefinitely.
type DetectionPolygon struct {
	SourceID     string      `json:"source_id"`
	Sequence     int64       `json:"sequence"`
	Timestamp    time.Time   `json:"timestamp"`
	Geometry     orb.Polygon `json:"-"`
	AreaM2       float64     `json:"area_m2"`
	MaxDistanceM float64     `json:"max_distance_m"`
	WindSpeedMps float64     `json:"wind_speed_mps"`
	// Fallback marks a polygon produced by the degraded construction path
	// (buffer-only or degenerate quad) rather than the full fan union.
	Fallback bool `json:"fallback,omitempty"`
}

// WindStats summarizes wind speeds over the measurements behind an aggregate.
type WindStats struct {
	MinMps float64 `json:"min_mps"`
	MaxMps float64 `json:"max_mps"`
	AvgMps float64 `json:"avg_mps"`
}

// TimeRange is the [From, To] span of measurement timestamps in an aggregate.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AggregateCoverage is the union of a scope's detection polygons plus derived
// statistics. Geometry is always a MultiPolygon; a single combined shape is a
// one-member MultiPolygon, and disjoint coverage fragments are retained
// rather than discarded.
type AggregateCoverage struct {
	Geometry     orb.MultiPolygon `json:"-"`
	PolygonCount int              `json:"polygon_count"`
	// SkippedCount is the number of input polygons dropped because they were
	// invalid or failed to union; the aggregate covers the rest.
	SkippedCount       int       `json:"skipped_count,omitempty"`
	SumAreaM2          float64   `json:"sum_area_m2"`
	CombinedAreaM2     float64   `json:"combined_area_m2"`
	CoverageEfficiency float64   `json:"coverage_efficiency"` // SumAreaM2 / CombinedAreaM2; higher means more overlap
	VertexCount        int       `json:"vertex_count"`
	TimeRange          TimeRange `json:"time_range"`
	SourceIDs          []string  `json:"source_ids"`
	Wind               WindStats `json:"wind"`

	// Version increases by one on every successful recomputation of this
	// scope; ComputedAt is stamped from the aggregator's clock.
	Version    uint64    `json:"version"`
	ComputedAt time.Time `json:"computed_at"`
}
