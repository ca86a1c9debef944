// Package geometry builds per-measurement detection polygons and unions them
// into aggregate coverage shapes. All functions are pure; construction faults
// collapse into fallback geometry instead of errors.
package geometry

// Config holds the tunable constants of the detection model.
type Config struct {
	// FanSegments is the number of arc segments in the downwind fan; the arc
	// is sampled at FanSegments+1 bearings.
	FanSegments int
	// MinSpokeMultiplier floors each spoke at this fraction of the full
	// detection distance so edge spokes never collapse to the apex.
	MinSpokeMultiplier float64
	// BufferRadiusM is the radius of the omnidirectional near-field circle.
	BufferRadiusM float64
	// BufferSegments is the number of segments approximating that circle.
	BufferSegments int
	// UnionBatchSize bounds how many polygons are accumulated per progressive
	// union batch, capping the peak working set for large collections.
	UnionBatchSize int
	// SmoothingToleranceDeg is the Douglas-Peucker tolerance (in degrees) for
	// the aggregate-only vertex-noise reduction pass. Zero disables smoothing.
	SmoothingToleranceDeg float64
}

// DefaultConfig returns the production detection-model constants.
func DefaultConfig() Config {
	return Config{
		FanSegments:           15,
		MinSpokeMultiplier:    0.4,
		BufferRadiusM:         30,
		BufferSegments:        32,
		UnionBatchSize:        50,
		SmoothingToleranceDeg: 2e-5, // ~2 m at mid latitudes
	}
}

// Engine is the stateless geometry engine. The zero fields of cfg are
// replaced with defaults so a partially populated Config stays usable.
type Engine struct {
	cfg Config
}

// New creates an Engine, filling unset config fields from DefaultConfig.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.FanSegments <= 0 {
		cfg.FanSegments = def.FanSegments
	}
	if cfg.MinSpokeMultiplier <= 0 {
		cfg.MinSpokeMultiplier = def.MinSpokeMultiplier
	}
	if cfg.BufferRadiusM <= 0 {
		cfg.BufferRadiusM = def.BufferRadiusM
	}
	if cfg.BufferSegments <= 0 {
		cfg.BufferSegments = def.BufferSegments
	}
	if cfg.UnionBatchSize <= 0 {
		cfg.UnionBatchSize = def.UnionBatchSize
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config { return e.cfg }
