// Command simtrack generates synthetic tracker measurement fixtures: a few
// wandering tracks around a base position with smoothly varying wind, written
// as JSON lines for the file-backed ingest path and test suites.
//
// Usage:
//
//	go run ./cmd/simtrack \
//	  -out data/mock/measurements.jsonl \
//	  -tracks 3 -points 120 -seed 42
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/korimako/scentcover/internal/domain"
)

// Base position: Auckland waterfront.
const (
	baseLat = -36.8
	baseLon = 174.7
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for JSON-lines measurement fixture")
	tracks := flag.Int("tracks", 3, "number of tracker sources")
	points := flag.Int("points", 120, "measurements per source")
	seed := flag.Int64("seed", 42, "random seed for reproducible fixtures")
	stepSec := flag.Int("step", 5, "seconds between consecutive measurements")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	// Fixed clock so fixture timestamps are reproducible.
	clock := clockwork.NewFakeClockAt(
		time.Date(2026, time.August, 25, 6, 0, 0, 0, time.UTC),
	)
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create fixture: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	var total int
	for t := 0; t < *tracks; t++ {
		sourceID := fmt.Sprintf("tracker-%02d", t+1)
		sessionID := uuid.NewString()
		ms := generateTrack(rng, clock.Now(), sourceID, sessionID, *points, time.Duration(*stepSec)*time.Second)
		for _, m := range ms {
			if err := m.Validate(); err != nil {
				return fmt.Errorf("generated invalid measurement: %w", err)
			}
			if err := enc.Encode(m); err != nil {
				return fmt.Errorf("encode measurement: %w", err)
			}
		}
		total += len(ms)
		log.Printf("%s: %d measurements, session %s", sourceID, len(ms), sessionID)
	}

	if err := w.Flush(); err != nil {
		return err
	}
	log.Printf("wrote %d measurements: %s", total, *out)
	return nil
}

// generateTrack produces one source's measurements: a random walk in position
// with wind direction drifting slowly and speed oscillating through the
// profile's interesting range.
func generateTrack(rng *rand.Rand, start time.Time, sourceID, sessionID string, points int, step time.Duration) []domain.Measurement {
	lat := baseLat + (rng.Float64()-0.5)*0.01
	lon := baseLon + (rng.Float64()-0.5)*0.01
	windDir := rng.Float64() * 360
	heading := rng.Float64() * 2 * math.Pi

	ms := make([]domain.Measurement, 0, points)
	for i := 0; i < points; i++ {
		// Wander roughly 10-30 m per step.
		heading += (rng.Float64() - 0.5) * 0.6
		stepM := 10 + rng.Float64()*20
		lat += stepM * math.Cos(heading) / 111320.0
		lon += stepM * math.Sin(heading) / (111320.0 * math.Cos(lat*math.Pi/180))

		windDir = math.Mod(windDir+(rng.Float64()-0.5)*8+360, 360)
		// Oscillate through calm to fresh breeze, clamped at zero.
		speed := 4 + 4*math.Sin(float64(i)/15) + (rng.Float64()-0.5)*1.5
		if speed < 0 {
			speed = 0
		}

		ms = append(ms, domain.Measurement{
			SourceID:         sourceID,
			SourceName:       "Sim " + sourceID,
			SessionID:        sessionID,
			Sequence:         int64(i + 1),
			Timestamp:        start.Add(time.Duration(i) * step),
			Lat:              lat,
			Lon:              lon,
			WindDirectionDeg: windDir,
			WindSpeedMps:     speed,
		})
	}
	return ms
}
