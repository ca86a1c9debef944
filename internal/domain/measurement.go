package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoCoverage is returned when an aggregation scope holds no usable
// detection polygons and no previously computed aggregate exists. It is the
// defined empty state, distinct from a computation failure.
var ErrNoCoverage = errors.New("no coverage available")

// Measurement is one geolocated wind sample reported by a tracker. It is
// immutable once created; the aggregation layer never mutates it.
type Measurement struct {
	SourceID         string    `json:"source_id"`
	SourceName       string    `json:"source_name,omitempty"`
	SessionID        string    `json:"session_id,omitempty"`
	Sequence         int64     `json:"sequence"`
	Timestamp        time.Time `json:"timestamp"`
	Lat              float64   `json:"lat"`
	Lon              float64   `json:"lon"`
	WindDirectionDeg float64   `json:"wind_direction_deg"` // bearing the wind blows FROM, [0,360)
	WindSpeedMps     float64   `json:"wind_speed_mps"`
}

// ParseMeasurement deserializes and validates a single JSON measurement
// record. A non-nil error marks the record malformed; callers skip and count
// malformed records rather than aborting the batch.
func ParseMeasurement(data []byte) (Measurement, error) {
	var m Measurement
	if err := json.Unmarshal(data, &m); err != nil {
		return Measurement{}, fmt.Errorf("parse measurement: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Measurement{}, err
	}
	return m, nil
}

// Validate checks the measurement's field ranges.
func (m Measurement) Validate() error {
	switch {
	case m.SourceID == "":
		return errors.New("measurement missing source_id")
	case m.Sequence <= 0:
		return fmt.Errorf("measurement %s: sequence %d is not positive", m.SourceID, m.Sequence)
	case m.Timestamp.IsZero():
		return fmt.Errorf("measurement %s/%d: missing timestamp", m.SourceID, m.Sequence)
	case m.Lat < -90 || m.Lat > 90:
		return fmt.Errorf("measurement %s/%d: latitude %.6f out of range", m.SourceID, m.Sequence, m.Lat)
	case m.Lon < -180 || m.Lon > 180:
		return fmt.Errorf("measurement %s/%d: longitude %.6f out of range", m.SourceID, m.Sequence, m.Lon)
	case m.WindDirectionDeg < 0 || m.WindDirectionDeg >= 360:
		return fmt.Errorf("measurement %s/%d: wind direction %.1f out of [0,360)", m.SourceID, m.Sequence, m.WindDirectionDeg)
	case m.WindSpeedMps < 0:
		return fmt.Errorf("measurement %s/%d: negative wind speed %.2f", m.SourceID, m.Sequence, m.WindSpeedMps)
	}
	return nil
}

// ID produces a deterministic identifier from the measurement's key fields.
// Reprocessing the same record yields the same ID, enabling idempotent
// handling downstream.
func (m Measurement) ID() string {
	input := fmt.Sprintf("%s|%d|%.6f|%.6f|%d", m.SourceID, m.Sequence, m.Lat, m.Lon, m.Timestamp.UnixMilli())
	hash := sha256.Sum256([]byte(input))
	return m.SourceID + "-" + hex.EncodeToString(hash[:8])
}
