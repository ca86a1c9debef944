package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/korimako/scentcover/internal/config"
	"github.com/korimako/scentcover/internal/domain"
)

// Writer publishes coverage snapshots to the sink topic.
// It implements aggregator.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// coverageSnapshot is the wire form of a published aggregate: the derived
// statistics without the geometry, which consumers fetch over HTTP when they
// need it.
type coverageSnapshot struct {
	PolygonCount       int       `json:"polygon_count"`
	SkippedCount       int       `json:"skipped_count"`
	SumAreaM2          float64   `json:"sum_area_m2"`
	CombinedAreaM2     float64   `json:"combined_area_m2"`
	CoverageEfficiency float64   `json:"coverage_efficiency"`
	VertexCount        int       `json:"vertex_count"`
	SourceIDs          []string  `json:"source_ids"`
	WindMinMps         float64   `json:"wind_min_mps"`
	WindMaxMps         float64   `json:"wind_max_mps"`
	WindAvgMps         float64   `json:"wind_avg_mps"`
	TimeFrom           time.Time `json:"time_from"`
	TimeTo             time.Time `json:"time_to"`
	Version            uint64    `json:"version"`
	ComputedAt         time.Time `json:"computed_at"`
}

// PublishCoverage serializes and publishes one aggregate snapshot. All
// snapshots share the key "global" so the topic compacts to the latest.
func (w *Writer) PublishCoverage(ctx context.Context, cov domain.AggregateCoverage) error {
	msg, err := serializeToMessage(cov)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish coverage snapshot: %w", err)
	}
	w.logger.Debug("published coverage snapshot", "version", cov.Version)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an aggregate into a Kafka message.
func serializeToMessage(cov domain.AggregateCoverage) (kafkago.Message, error) {
	snap := coverageSnapshot{
		PolygonCount:       cov.PolygonCount,
		SkippedCount:       cov.SkippedCount,
		SumAreaM2:          cov.SumAreaM2,
		CombinedAreaM2:     cov.CombinedAreaM2,
		CoverageEfficiency: cov.CoverageEfficiency,
		VertexCount:        cov.VertexCount,
		SourceIDs:          cov.SourceIDs,
		WindMinMps:         cov.Wind.MinMps,
		WindMaxMps:         cov.Wind.MaxMps,
		WindAvgMps:         cov.Wind.AvgMps,
		TimeFrom:           cov.TimeRange.From,
		TimeTo:             cov.TimeRange.To,
		Version:            cov.Version,
		ComputedAt:         cov.ComputedAt,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize coverage snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte("global"),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "version", Value: []byte(strconv.FormatUint(cov.Version, 10))},
			{Key: "computed_at", Value: []byte(cov.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
