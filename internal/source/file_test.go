package source

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "measurements.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFixture(t, `{"source_id":"tracker-01","sequence":1,"timestamp":"2026-08-25T06:00:00Z","lat":-36.8,"lon":174.7,"wind_direction_deg":90,"wind_speed_mps":3}
{"source_id":"tracker-01","sequence":2,"timestamp":"2026-08-25T06:00:05Z","lat":-36.8001,"lon":174.7,"wind_direction_deg":95,"wind_speed_mps":3.5}
{"source_id":"tracker-02","sequence":1,"timestamp":"2026-08-25T06:00:00Z","lat":-36.81,"lon":174.71,"wind_direction_deg":180,"wind_speed_mps":2}
`)

	mem, skipped, err := LoadFile(path, testLogger())
	require.NoError(t, err)
	assert.Zero(t, skipped)

	infos, err := mem.ListSources(context.Background())
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	ms, err := mem.All(context.Background(), "tracker-01")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, int64(2), ms[1].Sequence)
}

func TestLoadFile_SkipsMalformed(t *testing.T) {
	path := writeFixture(t, `{"source_id":"tracker-01","sequence":1,"timestamp":"2026-08-25T06:00:00Z","lat":-36.8,"lon":174.7,"wind_direction_deg":90,"wind_speed_mps":3}
not json at all
{"source_id":"tracker-01","sequence":2,"timestamp":"2026-08-25T06:00:05Z","lat":-36.8,"lon":174.7,"wind_direction_deg":400,"wind_speed_mps":3}

{"source_id":"tracker-01","sequence":3,"timestamp":"2026-08-25T06:00:10Z","lat":-36.8,"lon":174.7,"wind_direction_deg":90,"wind_speed_mps":3}
`)

	mem, skipped, err := LoadFile(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)

	ms, err := mem.All(context.Background(), "tracker-01")
	require.NoError(t, err)
	assert.Len(t, ms, 2)
}

func TestLoadFile_Missing(t *testing.T) {
	_, _, err := LoadFile(filepath.Join(t.TempDir(), "nope.jsonl"), testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}
