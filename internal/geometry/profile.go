package geometry

// The detection-distance and fan-width profiles are piecewise linear in wind
// speed, anchored at the 0.5, 2.0, 5.0 and 8.0 m/s breakpoints. Interpolating
// between shared anchor points keeps both profiles continuous at every
// breakpoint; beyond the last anchor each profile decays linearly to a floor
// (plume dilution in strong wind).

type profileAnchor struct {
	speedMps float64
	value    float64
}

var distanceAnchors = []profileAnchor{
	{0, 50},    // near-calm: scent pools, little transport
	{0.5, 100}, // light air
	{2, 200},   // light breeze
	{5, 300},   // moderate breeze
	{8, 350},   // peak carry distance
}

const (
	distanceDecayPerMps = 25.0  // metres lost per m/s beyond 8 m/s
	distanceFloorM      = 150.0 // dilution floor
)

var halfAngleAnchors = []profileAnchor{
	{0, 30},  // widest cone in calm air
	{0.5, 28},
	{2, 22},
	{5, 12},
	{8, 6},
}

const (
	halfAngleDecayPerMps = 0.5
	halfAngleFloorDeg    = 5.0
)

// MaxDetectionDistance returns the maximum downwind detection distance in
// metres for a wind speed in m/s.
func MaxDetectionDistance(speedMps float64) float64 {
	return interpolateProfile(distanceAnchors, distanceDecayPerMps, distanceFloorM, speedMps)
}

// FanHalfAngle returns the fan half-angle in degrees for a wind speed in m/s.
// The cone narrows as the wind strengthens.
func FanHalfAngle(speedMps float64) float64 {
	return interpolateProfile(halfAngleAnchors, halfAngleDecayPerMps, halfAngleFloorDeg, speedMps)
}

func interpolateProfile(anchors []profileAnchor, decayPerMps, floor, speedMps float64) float64 {
	if speedMps <= anchors[0].speedMps {
		return anchors[0].value
	}
	for i := 1; i < len(anchors); i++ {
		hi := anchors[i]
		if speedMps <= hi.speedMps {
			lo := anchors[i-1]
			frac := (speedMps - lo.speedMps) / (hi.speedMps - lo.speedMps)
			return lo.value + frac*(hi.value-lo.value)
		}
	}
	last := anchors[len(anchors)-1]
	v := last.value - decayPerMps*(speedMps-last.speedMps)
	if v < floor {
		return floor
	}
	return v
}
