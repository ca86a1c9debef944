package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Validate reports whether p is a usable simple polygon: a non-empty closed
// outer ring with at least four points, nonzero area, and no self-crossing
// edges. Holes are checked for closure and size only.
func Validate(p orb.Polygon) error {
	if len(p) == 0 {
		return errors.New("polygon has no rings")
	}
	for i, ring := range p {
		if len(ring) < 4 {
			return fmt.Errorf("ring %d has %d points, need at least 4", i, len(ring))
		}
		if !ring.Closed() {
			return fmt.Errorf("ring %d is not closed", i)
		}
	}
	if math.Abs(planar.Area(p[0])) == 0 {
		return errors.New("outer ring has zero area")
	}
	if crossesItself(p[0]) {
		return errors.New("outer ring self-intersects")
	}
	return nil
}

// Repair attempts to fix an invalid polygon by unioning it with itself,
// which rebuilds the ring structure the same way a zero-distance buffer
// does. The second return is false when the repair produced nothing usable.
func Repair(p orb.Polygon) (orb.Polygon, bool) {
	res := union(orb.MultiPolygon{p}, orb.MultiPolygon{p})
	fixed, ok := resolveLargest(res)
	if !ok {
		return nil, false
	}
	return fixed, Validate(fixed) == nil
}

// crossesItself checks every non-adjacent segment pair of a closed ring.
// Rings here are small (tens of points), so the quadratic scan is fine.
func crossesItself(ring orb.Ring) bool {
	n := len(ring) - 1 // last point repeats the first
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // first and last segments share the closing point
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports a proper intersection or collinear overlap between
// segments ab and cd.
func segmentsCross(a, b, c, d orb.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(c, d, a) {
		return true
	}
	if d2 == 0 && onSegment(c, d, b) {
		return true
	}
	if d3 == 0 && onSegment(a, b, c) {
		return true
	}
	if d4 == 0 && onSegment(a, b, d) {
		return true
	}
	return false
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}
