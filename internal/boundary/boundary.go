// Package boundary loads the static reference polygon (the surveyed forest
// block) used for coverage-percentage metrics.
package boundary

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Loader reads a GeoJSON boundary file lazily, once, and caches the result
// for the process lifetime. An absent or unreadable boundary is reported as
// "not available", never as an error: the aggregator simply skips the
// intersection metric.
type Loader struct {
	path   string
	logger *slog.Logger

	once sync.Once
	poly orb.MultiPolygon
	ok   bool
}

// NewLoader creates a Loader for a GeoJSON file. An empty path disables the
// boundary entirely.
func NewLoader(path string, logger *slog.Logger) *Loader {
	return &Loader{path: path, logger: logger}
}

// Boundary returns the boundary multipolygon. The bool is false when no
// boundary is available.
func (l *Loader) Boundary() (orb.MultiPolygon, bool) {
	l.once.Do(l.load)
	return l.poly, l.ok
}

func (l *Loader) load() {
	if l.path == "" {
		return
	}
	poly, err := readGeoJSON(l.path)
	if err != nil {
		l.logger.Warn("boundary unavailable, skipping intersection metrics",
			"path", l.path, "error", err)
		return
	}
	l.poly = poly
	l.ok = true
	l.logger.Info("boundary loaded", "path", l.path, "polygons", len(poly))
}

// readGeoJSON accepts a FeatureCollection, single Feature, or bare geometry
// and extracts the first polygonal shape.
func readGeoJSON(path string) (orb.MultiPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		for _, f := range fc.Features {
			if mp, ok := asMultiPolygon(f.Geometry); ok {
				return mp, nil
			}
		}
		return nil, fmt.Errorf("no polygon feature in %s", path)
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil {
		if mp, ok := asMultiPolygon(f.Geometry); ok {
			return mp, nil
		}
		return nil, fmt.Errorf("feature in %s is not polygonal", path)
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	if mp, ok := asMultiPolygon(g.Geometry()); ok {
		return mp, nil
	}
	return nil, fmt.Errorf("geometry in %s is not polygonal", path)
}

func asMultiPolygon(g orb.Geometry) (orb.MultiPolygon, bool) {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}, true
	case orb.MultiPolygon:
		return v, true
	default:
		return nil, false
	}
}
