package geometry

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/korimako/scentcover/internal/domain"
)

// Build constructs the detection polygon for one measurement: the downwind
// fan unioned with the omnidirectional near-field buffer. It never fails;
// construction faults degrade to the buffer alone and finally to a minimal
// quad around the position.
func (e *Engine) Build(m domain.Measurement) domain.DetectionPolygon {
	dist := MaxDetectionDistance(m.WindSpeedMps)

	fan := e.fanRing(m.Lat, m.Lon, m.WindDirectionDeg, m.WindSpeedMps, dist)
	buffer := e.bufferRing(m.Lat, m.Lon)

	poly, fallback := e.combineFanBuffer(fan, buffer, m.Lat, m.Lon)

	return domain.DetectionPolygon{
		SourceID:     m.SourceID,
		Sequence:     m.Sequence,
		Timestamp:    m.Timestamp,
		Geometry:     poly,
		AreaM2:       AreaM2(poly),
		MaxDistanceM: dist,
		WindSpeedMps: m.WindSpeedMps,
		Fallback:     fallback,
	}
}

// fanRing samples the downwind arc. The centre bearing is the reported wind
// direction rotated 180 degrees (scent travels with the wind, away from the
// dog). Spoke length tapers with the cosine of the angular offset from
// centre, floored at MinSpokeMultiplier of the full detection distance.
func (e *Engine) fanRing(lat, lon, windFromDeg, speedMps, distM float64) orb.Ring {
	center := math.Mod(windFromDeg+180, 360)
	half := FanHalfAngle(speedMps)

	origin := orb.Point{lon, lat}
	ring := make(orb.Ring, 0, e.cfg.FanSegments+3)
	ring = append(ring, origin)
	for i := 0; i <= e.cfg.FanSegments; i++ {
		offset := -half + 2*half*float64(i)/float64(e.cfg.FanSegments)
		taper := math.Max(e.cfg.MinSpokeMultiplier, math.Cos(offset*math.Pi/180))
		ring = append(ring, destination(lat, lon, center+offset, distM*taper))
	}
	ring = append(ring, origin)
	return ring
}

// bufferRing approximates the fixed-radius near-field circle, independent of
// wind, modelling close-range omnidirectional detection.
func (e *Engine) bufferRing(lat, lon float64) orb.Ring {
	n := e.cfg.BufferSegments
	ring := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		bearing := 360 * float64(i) / float64(n)
		ring = append(ring, destination(lat, lon, bearing, e.cfg.BufferRadiusM))
	}
	ring = append(ring, ring[0])
	return ring
}

// combineFanBuffer unions fan and buffer, resolves the outcome to a single
// polygon, and validates/repairs the choice. The bool reports whether a
// degraded fallback shape was used.
func (e *Engine) combineFanBuffer(fan, buffer orb.Ring, lat, lon float64) (orb.Polygon, bool) {
	res := union(orb.MultiPolygon{orb.Polygon{fan}}, orb.MultiPolygon{orb.Polygon{buffer}})
	if poly, ok := resolveLargest(res); ok {
		if Validate(poly) == nil {
			return poly, false
		}
		if repaired, ok := Repair(poly); ok {
			return repaired, false
		}
		// Best effort: keep the unrepaired shape rather than surface a fault.
		return poly, false
	}

	bufferPoly := orb.Polygon{buffer}
	if Validate(bufferPoly) == nil {
		return bufferPoly, true
	}
	return e.degenerateQuad(lat, lon), true
}

// degenerateQuad is the final fallback: a diamond at the buffer radius
// around the position. It is always a valid simple polygon.
func (e *Engine) degenerateQuad(lat, lon float64) orb.Polygon {
	r := e.cfg.BufferRadiusM
	ring := orb.Ring{
		destination(lat, lon, 0, r),
		destination(lat, lon, 90, r),
		destination(lat, lon, 180, r),
		destination(lat, lon, 270, r),
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}
