package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Ingest and caching.
	IngestInterval time.Duration
	CacheTTL       time.Duration

	// Detection-model tuning.
	UnionBatchSize        int
	FanSegments           int
	BufferRadiusM         float64
	MinSpokeMultiplier    float64
	SmoothingToleranceDeg float64

	// Collaborator inputs.
	MeasurementsFile string
	BoundaryFile     string

	// Kafka measurement stream (optional; enabled when the source topic is set).
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	KafkaBatchSize     int
	KafkaFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	ingestInterval, err := parseDuration("INGEST_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "1s")
	if err != nil {
		return nil, err
	}
	flushInterval, err := parseDuration("KAFKA_FLUSH_INTERVAL", "500ms")
	if err != nil {
		return nil, err
	}

	unionBatchSize, err := parsePositiveInt("UNION_BATCH_SIZE", 50, 1000)
	if err != nil {
		return nil, err
	}
	fanSegments, err := parsePositiveInt("FAN_SEGMENTS", 15, 360)
	if err != nil {
		return nil, err
	}
	kafkaBatchSize, err := parsePositiveInt("KAFKA_BATCH_SIZE", 50, 1000)
	if err != nil {
		return nil, err
	}

	bufferRadius, err := parsePositiveFloat("BUFFER_RADIUS_M", 30)
	if err != nil {
		return nil, err
	}
	minSpoke, err := parsePositiveFloat("MIN_SPOKE_MULTIPLIER", 0.4)
	if err != nil {
		return nil, err
	}
	smoothing, err := parseNonNegativeFloat("SMOOTHING_TOLERANCE_DEG", 2e-5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		IngestInterval: ingestInterval,
		CacheTTL:       cacheTTL,

		UnionBatchSize:        unionBatchSize,
		FanSegments:           fanSegments,
		BufferRadiusM:         bufferRadius,
		MinSpokeMultiplier:    minSpoke,
		SmoothingToleranceDeg: smoothing,

		MeasurementsFile: os.Getenv("MEASUREMENTS_FILE"),
		BoundaryFile:     os.Getenv("BOUNDARY_FILE"),

		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   os.Getenv("KAFKA_SOURCE_TOPIC"),
		KafkaSinkTopic:     os.Getenv("KAFKA_SINK_TOPIC"),
		KafkaGroupID:       envOrDefault("KAFKA_GROUP_ID", "scent-coverage"),
		KafkaBatchSize:     kafkaBatchSize,
		KafkaFlushInterval: flushInterval,
	}

	if cfg.MinSpokeMultiplier >= 1 {
		return nil, errors.New("MIN_SPOKE_MULTIPLIER must be below 1")
	}
	if cfg.KafkaSourceTopic != "" && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is set but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaSinkTopic != "" && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_SINK_TOPIC is set but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaSourceTopic == "" && cfg.MeasurementsFile == "" {
		return nil, errors.New("either KAFKA_SOURCE_TOPIC or MEASUREMENTS_FILE must be set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > max {
		return 0, fmt.Errorf("invalid %s: must be in 1..%d", key, max)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return v, nil
}

func parseNonNegativeFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return v, nil
}
