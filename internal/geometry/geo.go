package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// metersPerDegreeLat is the flat-earth scale used throughout: one degree of
// latitude spans ~111.32 km everywhere; longitude shrinks with cos(lat).
const metersPerDegreeLat = 111320.0

func metersPerDegreeLon(latDeg float64) float64 {
	return metersPerDegreeLat * math.Cos(latDeg*math.Pi/180)
}

// destination returns the point distM metres from (lat, lon) along a compass
// bearing (degrees clockwise of true north), using the equirectangular
// approximation. Points are orb order: {lon, lat}.
func destination(lat, lon, bearingDeg, distM float64) orb.Point {
	rad := bearingDeg * math.Pi / 180
	dLat := distM * math.Cos(rad) / metersPerDegreeLat
	dLon := distM * math.Sin(rad) / metersPerDegreeLon(lat)
	return orb.Point{lon + dLon, lat + dLat}
}

// AreaM2 converts a geometry's planar degree-space area to square metres,
// latitude-corrected at the geometry's centroid.
func AreaM2(g orb.Geometry) float64 {
	centroid, area := planar.CentroidArea(g)
	return math.Abs(area) * metersPerDegreeLat * metersPerDegreeLon(centroid[1])
}

// vertexCount totals the ring points across a multipolygon.
func vertexCount(mp orb.MultiPolygon) int {
	n := 0
	for _, poly := range mp {
		for _, ring := range poly {
			n += len(ring)
		}
	}
	return n
}
