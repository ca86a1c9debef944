// Package source defines the measurement data-source contract and its
// in-memory and file-backed implementations.
package source

import (
	"context"
	"errors"

	"github.com/korimako/scentcover/internal/domain"
)

// ErrUnavailable marks a connectivity-level read failure. The ingest loop
// logs it and retries on the next tick; it is distinct from the no-data case,
// which is an empty slice with a nil error.
var ErrUnavailable = errors.New("measurement source unavailable")

// Info describes one known tracker.
type Info struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Source supplies ordered measurement records. Implementations must return
// measurements in ascending sequence order within a source.
type Source interface {
	// ListSources returns every tracker currently known to the source.
	ListSources(ctx context.Context) ([]Info, error)

	// All returns every measurement for a tracker.
	All(ctx context.Context, sourceID string) ([]domain.Measurement, error)

	// NewerThan returns measurements with sequence strictly greater than
	// afterSeq. An empty result with nil error means no new data.
	NewerThan(ctx context.Context, sourceID string, afterSeq int64) ([]domain.Measurement, error)

	// Latest returns the highest-sequence measurement for a tracker. The
	// bool is false when the tracker has no measurements.
	Latest(ctx context.Context, sourceID string) (domain.Measurement, bool, error)
}
