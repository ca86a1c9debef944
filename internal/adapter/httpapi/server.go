// Package httpapi exposes the coverage read API plus health, readiness, and
// metrics endpoints. It is a thin adapter: all state lives in the aggregator.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/korimako/scentcover/internal/aggregator"
	"github.com/korimako/scentcover/internal/domain"
)

// CoverageReader is the aggregator surface the API needs.
type CoverageReader interface {
	GetUnifiedCoverage(ctx context.Context) (domain.AggregateCoverage, error)
	GetPerSourceCoverage(ctx context.Context, sourceID string) (domain.AggregateCoverage, error)
	GetBoundaryIntersection(ctx context.Context) (aggregator.BoundaryIntersection, bool, error)
	LatestPolygon(sourceID string) (domain.DetectionPolygon, bool)
	Sources() []aggregator.SourceStatus
	CheckReadiness(ctx context.Context) error
}

// Server exposes the coverage HTTP API.
type Server struct {
	httpServer *http.Server
	reader     CoverageReader
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the API and operational routes.
func NewServer(addr string, reader CoverageReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reader: reader,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/coverage", s.handleCoverage)
	mux.HandleFunc("GET /api/coverage/sources/{id}", s.handleSourceCoverage)
	mux.HandleFunc("GET /api/coverage/boundary", s.handleBoundary)
	mux.HandleFunc("GET /api/sources", s.handleSources)
	mux.HandleFunc("GET /api/sources/{id}/latest", s.handleLatest)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.reader.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	cov, err := s.reader.GetUnifiedCoverage(r.Context())
	s.writeCoverage(w, cov, err)
}

func (s *Server) handleSourceCoverage(w http.ResponseWriter, r *http.Request) {
	cov, err := s.reader.GetPerSourceCoverage(r.Context(), r.PathValue("id"))
	s.writeCoverage(w, cov, err)
}

// writeCoverage renders an aggregate as a GeoJSON Feature whose properties
// carry the derived statistics. The defined empty state maps to 404.
func (s *Server) writeCoverage(w http.ResponseWriter, cov domain.AggregateCoverage, err error) {
	switch {
	case errors.Is(err, domain.ErrNoCoverage):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no coverage yet"})
		return
	case err != nil:
		s.logger.Error("coverage query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "coverage unavailable"})
		return
	}

	f := geojson.NewFeature(cov.Geometry)
	f.Properties["polygon_count"] = cov.PolygonCount
	f.Properties["skipped_count"] = cov.SkippedCount
	f.Properties["sum_area_m2"] = cov.SumAreaM2
	f.Properties["combined_area_m2"] = cov.CombinedAreaM2
	f.Properties["coverage_efficiency"] = cov.CoverageEfficiency
	f.Properties["vertex_count"] = cov.VertexCount
	f.Properties["source_ids"] = cov.SourceIDs
	f.Properties["wind_min_mps"] = cov.Wind.MinMps
	f.Properties["wind_max_mps"] = cov.Wind.MaxMps
	f.Properties["wind_avg_mps"] = cov.Wind.AvgMps
	f.Properties["time_from"] = cov.TimeRange.From.Format(time.RFC3339)
	f.Properties["time_to"] = cov.TimeRange.To.Format(time.RFC3339)
	f.Properties["version"] = cov.Version
	f.Properties["computed_at"] = cov.ComputedAt.Format(time.RFC3339)
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleBoundary(w http.ResponseWriter, r *http.Request) {
	inter, ok, err := s.reader.GetBoundaryIntersection(r.Context())
	switch {
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no boundary configured"})
	case errors.Is(err, domain.ErrNoCoverage):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no coverage yet"})
	case err != nil:
		s.logger.Error("boundary intersection failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boundary metric unavailable"})
	default:
		percent := 0.0
		if inter.BoundaryAreaM2 > 0 {
			percent = 100 * inter.IntersectionAreaM2 / inter.BoundaryAreaM2
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"intersection_area_m2": inter.IntersectionAreaM2,
			"boundary_area_m2":     inter.BoundaryAreaM2,
			"coverage_percent":     percent,
		})
	}
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.reader.Sources()})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	poly, ok := s.reader.LatestPolygon(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no measurements for source"})
		return
	}

	f := geojson.NewFeature(poly.Geometry)
	f.Properties["source_id"] = poly.SourceID
	f.Properties["sequence"] = poly.Sequence
	f.Properties["timestamp"] = poly.Timestamp.Format(time.RFC3339)
	f.Properties["area_m2"] = poly.AreaM2
	f.Properties["max_distance_m"] = poly.MaxDistanceM
	f.Properties["wind_speed_mps"] = poly.WindSpeedMps
	f.Properties["fallback"] = poly.Fallback
	writeJSON(w, http.StatusOK, f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
