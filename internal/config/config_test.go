package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MEASUREMENTS_FILE", "data/mock/measurements.jsonl")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 1*time.Second, cfg.IngestInterval)
	assert.Equal(t, 1*time.Second, cfg.CacheTTL)
	assert.Equal(t, 50, cfg.UnionBatchSize)
	assert.Equal(t, 15, cfg.FanSegments)
	assert.InDelta(t, 30.0, cfg.BufferRadiusM, 1e-9)
	assert.InDelta(t, 0.4, cfg.MinSpokeMultiplier, 1e-9)
	assert.InDelta(t, 2e-5, cfg.SmoothingToleranceDeg, 1e-12)
	assert.Equal(t, "data/mock/measurements.jsonl", cfg.MeasurementsFile)
	assert.Empty(t, cfg.BoundaryFile)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Empty(t, cfg.KafkaSourceTopic)
	assert.Empty(t, cfg.KafkaSinkTopic)
	assert.Equal(t, "scent-coverage", cfg.KafkaGroupID)
	assert.Equal(t, 50, cfg.KafkaBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.KafkaFlushInterval)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("INGEST_INTERVAL", "2s")
	t.Setenv("CACHE_TTL", "250ms")
	t.Setenv("UNION_BATCH_SIZE", "25")
	t.Setenv("FAN_SEGMENTS", "31")
	t.Setenv("BUFFER_RADIUS_M", "45")
	t.Setenv("MIN_SPOKE_MULTIPLIER", "0.3")
	t.Setenv("SMOOTHING_TOLERANCE_DEG", "0")
	t.Setenv("BOUNDARY_FILE", "data/boundary.geojson")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "wind-measurements")
	t.Setenv("KAFKA_SINK_TOPIC", "coverage-snapshots")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("KAFKA_BATCH_SIZE", "100")
	t.Setenv("KAFKA_FLUSH_INTERVAL", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 2*time.Second, cfg.IngestInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.CacheTTL)
	assert.Equal(t, 25, cfg.UnionBatchSize)
	assert.Equal(t, 31, cfg.FanSegments)
	assert.InDelta(t, 45.0, cfg.BufferRadiusM, 1e-9)
	assert.InDelta(t, 0.3, cfg.MinSpokeMultiplier, 1e-9)
	assert.Zero(t, cfg.SmoothingToleranceDeg)
	assert.Equal(t, "data/boundary.geojson", cfg.BoundaryFile)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "wind-measurements", cfg.KafkaSourceTopic)
	assert.Equal(t, "coverage-snapshots", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, 100, cfg.KafkaBatchSize)
	assert.Equal(t, 1*time.Second, cfg.KafkaFlushInterval)
}

func TestLoad_NoIngestSource(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEASUREMENTS_FILE")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("MEASUREMENTS_FILE", "m.jsonl")
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeCacheTTL(t *testing.T) {
	t.Setenv("MEASUREMENTS_FILE", "m.jsonl")
	t.Setenv("CACHE_TTL", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_TTL")
}

func TestLoad_InvalidUnionBatchSize(t *testing.T) {
	t.Setenv("MEASUREMENTS_FILE", "m.jsonl")
	t.Setenv("UNION_BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNION_BATCH_SIZE")
}

func TestLoad_UnionBatchSizeTooLarge(t *testing.T) {
	t.Setenv("MEASUREMENTS_FILE", "m.jsonl")
	t.Setenv("UNION_BATCH_SIZE", "9999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNION_BATCH_SIZE")
}

func TestLoad_InvalidFanSegments(t *testing.T) {
	t.Setenv("MEASUREMENTS_FILE", "m.jsonl")
	t.Setenv("FAN_SEGMENTS", "-3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAN_SEGMENTS")
}

func TestLoad_InvalidBufferRadius(t *testing.T) {
	t.Setenv("MEASUREMENTS_FILE", "m.jsonl")
	t.Setenv("BUFFER_RADIUS_M", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BUFFER_RADIUS_M")
}

func TestLoad_MinSpokeMultiplierAtLeastOne(t *testing.T) {
	t.Setenv("MEASUREMENTS_FILE", "m.jsonl")
	t.Setenv("MIN_SPOKE_MULTIPLIER", "1.0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIN_SPOKE_MULTIPLIER")
}

func TestLoad_NegativeSmoothingTolerance(t *testing.T) {
	t.Setenv("MEASUREMENTS_FILE", "m.jsonl")
	t.Setenv("SMOOTHING_TOLERANCE_DEG", "-0.1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMOOTHING_TOLERANCE_DEG")
}

func TestLoad_SourceTopicWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_SOURCE_TOPIC", "wind-measurements")
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}
