// Package kafka adapts the coverage service to a Kafka measurement stream:
// a Reader that feeds ingest batches to the aggregator and a Writer that
// publishes coverage snapshots after global recomputes.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/korimako/scentcover/internal/aggregator"
	"github.com/korimako/scentcover/internal/config"
	"github.com/korimako/scentcover/internal/domain"
	"github.com/korimako/scentcover/internal/observability"
	"github.com/korimako/scentcover/internal/source"
)

// Ingestor accepts immutable measurement batches.
type Ingestor interface {
	Submit(ctx context.Context, batch aggregator.IngestBatch) error
}

// Reader consumes measurement JSON from the source topic and submits it to
// the aggregator grouped by source. Malformed records are skipped, counted,
// and committed so they are not redelivered forever.
type Reader struct {
	reader        *kafkago.Reader
	ingestor      Ingestor
	logger        *slog.Logger
	metrics       *observability.Metrics
	batchSize     int
	flushInterval time.Duration
}

// NewReader creates a Kafka consumer for the configured source topic.
func NewReader(cfg *config.Config, ingestor Ingestor, logger *slog.Logger, metrics *observability.Metrics) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaSourceTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Reader{
		reader:        r,
		ingestor:      ingestor,
		logger:        logger,
		metrics:       metrics,
		batchSize:     cfg.KafkaBatchSize,
		flushInterval: cfg.KafkaFlushInterval,
	}
}

// Run consumes until the context is cancelled.
func (r *Reader) Run(ctx context.Context) error {
	r.logger.Info("kafka measurement reader started",
		"topic", r.reader.Config().Topic, "batch_size", r.batchSize)

	for {
		msgs, ms, err := r.fetchBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.metrics.IngestErrors.Inc()
			r.logger.Error("kafka fetch failed", "error", err)
			continue
		}
		if len(ms) > 0 {
			if err := r.submitBySource(ctx, ms); err != nil {
				return nil // shutting down
			}
		}
		if len(msgs) > 0 {
			if err := r.reader.CommitMessages(ctx, msgs...); err != nil && ctx.Err() == nil {
				r.logger.Warn("kafka commit failed", "error", err)
			}
		}
	}
}

// fetchBatch reads up to batchSize messages, giving up after flushInterval
// so small trickles still flow. Returns the raw messages (for commit) and
// the parsed measurements.
func (r *Reader) fetchBatch(ctx context.Context) ([]kafkago.Message, []domain.Measurement, error) {
	deadline, cancel := context.WithTimeout(ctx, r.flushInterval)
	defer cancel()

	var msgs []kafkago.Message
	var ms []domain.Measurement
	for len(msgs) < r.batchSize {
		msg, err := r.reader.FetchMessage(deadline)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return msgs, ms, nil
			}
			return msgs, ms, err
		}
		msgs = append(msgs, msg)

		m, err := domain.ParseMeasurement(msg.Value)
		if err != nil {
			r.metrics.MalformedRecords.Inc()
			r.logger.Warn("skipping malformed measurement message",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		ms = append(ms, m)
	}
	return msgs, ms, nil
}

// submitBySource splits a mixed batch into per-source ingest batches,
// preserving each source's ascending sequence order.
func (r *Reader) submitBySource(ctx context.Context, ms []domain.Measurement) error {
	grouped := make(map[string][]domain.Measurement)
	names := make(map[string]string)
	for _, m := range ms {
		grouped[m.SourceID] = append(grouped[m.SourceID], m)
		if m.SourceName != "" {
			names[m.SourceID] = m.SourceName
		}
	}
	for id, batch := range grouped {
		err := r.ingestor.Submit(ctx, aggregator.IngestBatch{
			Source:       source.Info{ID: id, Name: names[id]},
			Measurements: batch,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close shuts down the underlying consumer.
func (r *Reader) Close() error {
	return r.reader.Close()
}
