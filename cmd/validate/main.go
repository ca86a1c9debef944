// Command validate performs end-to-end integrity checks on a measurement
// fixture: record validity, detection profile continuity, polygon
// construction, aggregation consistency, and optional boundary containment.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -fixture data/mock/measurements.jsonl \
//	  -boundary data/mock/boundary.geojson
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/korimako/scentcover/internal/boundary"
	"github.com/korimako/scentcover/internal/domain"
	"github.com/korimako/scentcover/internal/geometry"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	fixture := flag.String("fixture", "", "path to JSON-lines measurement fixture")
	boundaryPath := flag.String("boundary", "", "optional path to boundary GeoJSON")
	flag.Parse()

	if *fixture == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*fixture, *boundaryPath); code != 0 {
		os.Exit(code)
	}
}

func run(fixturePath, boundaryPath string) int {
	fmt.Println("=== Coverage Fixture Integrity Validation ===")
	fmt.Println()

	ms, malformed, err := loadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}

	engine := geometry.New(geometry.DefaultConfig())

	phases := []*phase{
		validateRecords(ms, malformed),
		validateProfiles(),
		validatePolygons(engine, ms),
		validateAggregation(engine, ms),
	}
	if boundaryPath != "" {
		phases = append(phases, validateBoundary(engine, ms, boundaryPath))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d valid, %d malformed\n", len(ms), malformed)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// loadFixture reads a JSON-lines fixture, counting malformed records instead
// of failing on them.
func loadFixture(path string) ([]domain.Measurement, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var ms []domain.Measurement
	var malformed int
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		m, err := domain.ParseMeasurement(line)
		if err != nil {
			malformed++
			continue
		}
		ms = append(ms, m)
	}
	return ms, malformed, sc.Err()
}

// ── Phase 1: Record Integrity ──
// Validates field ranges and per-source sequence ordering.

func validateRecords(ms []domain.Measurement, malformed int) *phase {
	p := &phase{name: "Phase 1: Record Integrity"}

	if malformed > 0 {
		p.errorf("fixture contains %d malformed records", malformed)
	}
	if len(ms) == 0 {
		p.errorf("fixture contains no valid measurements")
		return p
	}

	lastSeq := map[string]int64{}
	for i, m := range ms {
		if err := m.Validate(); err != nil {
			p.errorf("record %d: %v", i, err)
			continue
		}
		if prev, ok := lastSeq[m.SourceID]; ok && m.Sequence <= prev {
			p.errorf("record %d: %s sequence %d not greater than previous %d", i, m.SourceID, m.Sequence, prev)
		}
		lastSeq[m.SourceID] = m.Sequence
	}
	return p
}

// ── Phase 2: Profile Continuity ──
// The piecewise detection profiles must be continuous at their breakpoints
// and monotone in the expected direction.

func validateProfiles() *phase {
	p := &phase{name: "Phase 2: Profile Continuity"}

	const eps = 1e-6
	breakpoints := []float64{0.5, 2, 5, 8}
	for _, bp := range breakpoints {
		left := geometry.MaxDetectionDistance(bp - eps)
		right := geometry.MaxDetectionDistance(bp + eps)
		if math.Abs(left-right) > 0.01 {
			p.errorf("max distance discontinuous at %.1f m/s: %.3f vs %.3f", bp, left, right)
		}
		left = geometry.FanHalfAngle(bp - eps)
		right = geometry.FanHalfAngle(bp + eps)
		if math.Abs(left-right) > 0.01 {
			p.errorf("half angle discontinuous at %.1f m/s: %.3f vs %.3f", bp, left, right)
		}
	}

	// Distance grows to the 8 m/s peak then decays to its floor; the half
	// angle narrows monotonically.
	prevDist := geometry.MaxDetectionDistance(0)
	prevAngle := geometry.FanHalfAngle(0)
	for s := 0.1; s <= 8.0; s += 0.1 {
		d := geometry.MaxDetectionDistance(s)
		if d < prevDist-1e-9 {
			p.errorf("max distance decreasing at %.1f m/s before peak", s)
		}
		prevDist = d
		a := geometry.FanHalfAngle(s)
		if a > prevAngle+1e-9 {
			p.errorf("half angle increasing at %.1f m/s", s)
		}
		prevAngle = a
	}
	for s := 8.1; s <= 40.0; s += 0.5 {
		if d := geometry.MaxDetectionDistance(s); d < 150-1e-9 {
			p.errorf("max distance %.2f below floor at %.1f m/s", d, s)
		}
		if a := geometry.FanHalfAngle(s); a < 5-1e-9 {
			p.errorf("half angle %.2f below floor at %.1f m/s", a, s)
		}
	}
	return p
}

// ── Phase 3: Polygon Construction ──
// Every measurement must yield a valid, closed, non-self-intersecting polygon
// with a positive area.

func validatePolygons(engine *geometry.Engine, ms []domain.Measurement) *phase {
	p := &phase{name: "Phase 3: Polygon Construction"}

	var fallbacks int
	for i, m := range ms {
		poly := engine.Build(m)
		if err := geometry.Validate(poly.Geometry); err != nil {
			p.errorf("measurement %d (%s/%d): invalid polygon: %v", i, m.SourceID, m.Sequence, err)
			continue
		}
		if poly.AreaM2 <= 0 {
			p.errorf("measurement %d (%s/%d): non-positive area %.2f", i, m.SourceID, m.Sequence, poly.AreaM2)
		}
		if poly.Fallback {
			fallbacks++
		}
	}
	if fallbacks > 0 {
		fmt.Printf("  Note: %d polygon(s) used the buffer-only fallback\n", fallbacks)
	}
	return p
}

// ── Phase 4: Aggregation Consistency ──
// The combined area must be bounded by the largest member below and the sum
// of members above, and the efficiency ratio must follow from those.

func validateAggregation(engine *geometry.Engine, ms []domain.Measurement) *phase {
	p := &phase{name: "Phase 4: Aggregation Consistency"}

	polys := make([]domain.DetectionPolygon, 0, len(ms))
	var maxArea float64
	for _, m := range ms {
		poly := engine.Build(m)
		polys = append(polys, poly)
		if poly.AreaM2 > maxArea {
			maxArea = poly.AreaM2
		}
	}

	cov, err := engine.Unify(polys)
	if err != nil {
		p.errorf("unify failed: %v", err)
		return p
	}

	if cov.PolygonCount+cov.SkippedCount != len(polys) {
		p.errorf("member accounting: %d used + %d skipped != %d input", cov.PolygonCount, cov.SkippedCount, len(polys))
	}
	if cov.CombinedAreaM2 > cov.SumAreaM2*1.001 {
		p.errorf("combined area %.2f exceeds member sum %.2f", cov.CombinedAreaM2, cov.SumAreaM2)
	}
	if cov.CombinedAreaM2 < maxArea*0.999 {
		p.errorf("combined area %.2f below largest member %.2f", cov.CombinedAreaM2, maxArea)
	}
	if cov.CoverageEfficiency < 1-1e-6 {
		p.errorf("efficiency %.4f below 1", cov.CoverageEfficiency)
	}
	want := cov.SumAreaM2 / cov.CombinedAreaM2
	if math.Abs(cov.CoverageEfficiency-want) > 1e-6*want {
		p.errorf("efficiency %.6f inconsistent with areas (want %.6f)", cov.CoverageEfficiency, want)
	}

	fmt.Printf("  Note: %d polygons, combined %.0f m2, efficiency %.2f\n",
		cov.PolygonCount, cov.CombinedAreaM2, cov.CoverageEfficiency)
	return p
}

// ── Phase 5: Boundary Containment ──
// The coverage/boundary intersection can never exceed either operand's area.

func validateBoundary(engine *geometry.Engine, ms []domain.Measurement, path string) *phase {
	p := &phase{name: "Phase 5: Boundary Containment"}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	bnd, ok := boundary.NewLoader(path, logger).Boundary()
	if !ok {
		p.errorf("boundary file %s could not be loaded", path)
		return p
	}

	polys := make([]domain.DetectionPolygon, 0, len(ms))
	for _, m := range ms {
		polys = append(polys, engine.Build(m))
	}
	cov, err := engine.Unify(polys)
	if err != nil {
		p.errorf("unify failed: %v", err)
		return p
	}

	inter, err := engine.Intersect(cov.Geometry, bnd)
	if err != nil {
		p.errorf("intersection failed: %v", err)
		return p
	}

	interArea := geometry.AreaM2(inter)
	bndArea := geometry.AreaM2(bnd)
	if interArea > cov.CombinedAreaM2*1.001 {
		p.errorf("intersection %.2f exceeds coverage area %.2f", interArea, cov.CombinedAreaM2)
	}
	if interArea > bndArea*1.001 {
		p.errorf("intersection %.2f exceeds boundary area %.2f", interArea, bndArea)
	}

	fmt.Printf("  Note: intersection %.0f m2 of %.0f m2 boundary (%.1f%%)\n",
		interArea, bndArea, 100*interArea/bndArea)
	return p
}
