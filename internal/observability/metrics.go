package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// coverage aggregation service.
type Metrics struct {
	MeasurementsIngested prometheus.Counter
	MalformedRecords     prometheus.Counter
	IngestErrors         prometheus.Counter
	IngestBatchSize      prometheus.Histogram

	PolygonsBuilt    prometheus.Counter
	PolygonFallbacks prometheus.Counter

	UnionRecomputes      *prometheus.CounterVec // labels: scope={global,source}, outcome={success,failed}
	UnionSkippedPolygons prometheus.Counter
	RecomputeDuration    prometheus.Histogram
	CacheLookups         *prometheus.CounterVec // labels: scope={global,source}, result={fresh,joined,recomputed,stale}

	CoverageAreaM2     prometheus.Gauge
	CoverageEfficiency prometheus.Gauge
	AggregatorRunning  prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		MeasurementsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scentcover",
			Name:      "measurements_ingested_total",
			Help:      "Total measurements accepted into the polygon store.",
		}),
		MalformedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scentcover",
			Name:      "malformed_records_total",
			Help:      "Total measurement records skipped as malformed.",
		}),
		IngestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scentcover",
			Name:      "ingest_errors_total",
			Help:      "Total failed ingest ticks (source unreachable).",
		}),
		IngestBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scentcover",
			Name:      "ingest_batch_size",
			Help:      "Number of new measurements per ingest batch.",
			Buckets:   []float64{1, 5, 10, 20, 50, 100, 250, 500},
		}),
		PolygonsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scentcover",
			Name:      "polygons_built_total",
			Help:      "Total detection polygons constructed.",
		}),
		PolygonFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scentcover",
			Name:      "polygon_fallbacks_total",
			Help:      "Detection polygons built via the degraded fallback path.",
		}),
		UnionRecomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scentcover",
			Name:      "union_recomputes_total",
			Help:      "Aggregate union recomputations by scope and outcome.",
		}, []string{"scope", "outcome"}),
		UnionSkippedPolygons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scentcover",
			Name:      "union_skipped_polygons_total",
			Help:      "Polygons skipped during aggregate unions (invalid or union failure).",
		}),
		RecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scentcover",
			Name:      "recompute_duration_seconds",
			Help:      "Duration of one aggregate union recomputation.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scentcover",
			Name:      "cache_lookups_total",
			Help:      "Coverage cache lookups by scope and result.",
		}, []string{"scope", "result"}),
		CoverageAreaM2: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scentcover",
			Name:      "coverage_area_m2",
			Help:      "Combined area of the latest global coverage.",
		}),
		CoverageEfficiency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scentcover",
			Name:      "coverage_efficiency",
			Help:      "Sum of individual areas over combined area for the latest global coverage.",
		}),
		AggregatorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scentcover",
			Name:      "aggregator_running",
			Help:      "1 when the aggregator loop is active, 0 when shut down.",
		}),
	}

	prometheus.MustRegister(
		m.MeasurementsIngested,
		m.MalformedRecords,
		m.IngestErrors,
		m.IngestBatchSize,
		m.PolygonsBuilt,
		m.PolygonFallbacks,
		m.UnionRecomputes,
		m.UnionSkippedPolygons,
		m.RecomputeDuration,
		m.CacheLookups,
		m.CoverageAreaM2,
		m.CoverageEfficiency,
		m.AggregatorRunning,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		MeasurementsIngested: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "scentcover", Name: "measurements_ingested_total"}),
		MalformedRecords:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "scentcover", Name: "malformed_records_total"}),
		IngestErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "scentcover", Name: "ingest_errors_total"}),
		IngestBatchSize:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "scentcover", Name: "ingest_batch_size"}),
		PolygonsBuilt:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "scentcover", Name: "polygons_built_total"}),
		PolygonFallbacks:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "scentcover", Name: "polygon_fallbacks_total"}),
		UnionRecomputes:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "scentcover", Name: "union_recomputes_total"}, []string{"scope", "outcome"}),
		UnionSkippedPolygons: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "scentcover", Name: "union_skipped_polygons_total"}),
		RecomputeDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "scentcover", Name: "recompute_duration_seconds"}),
		CacheLookups:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "scentcover", Name: "cache_lookups_total"}, []string{"scope", "result"}),
		CoverageAreaM2:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "scentcover", Name: "coverage_area_m2"}),
		CoverageEfficiency:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "scentcover", Name: "coverage_efficiency"}),
		AggregatorRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "scentcover", Name: "aggregator_running"}),
	}
}
