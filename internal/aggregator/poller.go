package aggregator

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/korimako/scentcover/internal/observability"
	"github.com/korimako/scentcover/internal/source"
)

// Poller drives ingest: on every tick it asks the data source for
// measurements newer than each source's watermark and submits them to the
// aggregator as immutable batches. A failed tick is logged and retried on
// the next one; it never corrupts stored polygons or watermarks.
type Poller struct {
	src      source.Source
	agg      *Aggregator
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewPoller creates a Poller. A nil clock means real time.
func NewPoller(src source.Source, agg *Aggregator, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		src:      src,
		agg:      agg,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run executes the ingest loop until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("ingest poller started", "interval", p.interval)
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ingest poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.tick(ctx)
		}
	}
}

// tick performs one ingest pass across every known source.
func (p *Poller) tick(ctx context.Context) {
	infos, err := p.src.ListSources(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.metrics.IngestErrors.Inc()
		p.logger.Warn("listing sources failed, retrying next tick", "error", err)
		return
	}

	for _, info := range infos {
		if ctx.Err() != nil {
			return
		}
		wm := p.agg.Watermark(info.ID)
		ms, err := p.src.NewerThan(ctx, info.ID, wm)
		if err != nil {
			p.metrics.IngestErrors.Inc()
			p.logger.Warn("fetching new measurements failed, retrying next tick",
				"source", info.ID, "watermark", wm, "error", err)
			continue
		}
		if len(ms) == 0 {
			continue
		}
		if err := p.agg.Submit(ctx, IngestBatch{Source: info, Measurements: ms}); err != nil {
			return // shutting down
		}
	}
}
