package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/korimako/scentcover/internal/adapter/httpapi"
	kafkaadapter "github.com/korimako/scentcover/internal/adapter/kafka"
	"github.com/korimako/scentcover/internal/aggregator"
	"github.com/korimako/scentcover/internal/boundary"
	"github.com/korimako/scentcover/internal/config"
	"github.com/korimako/scentcover/internal/geometry"
	"github.com/korimako/scentcover/internal/observability"
	"github.com/korimako/scentcover/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	engine := geometry.New(geometry.Config{
		FanSegments:           cfg.FanSegments,
		MinSpokeMultiplier:    cfg.MinSpokeMultiplier,
		BufferRadiusM:         cfg.BufferRadiusM,
		UnionBatchSize:        cfg.UnionBatchSize,
		SmoothingToleranceDeg: cfg.SmoothingToleranceDeg,
	})

	var bnd aggregator.BoundaryProvider
	if cfg.BoundaryFile != "" {
		bnd = boundary.NewLoader(cfg.BoundaryFile, logger)
		logger.Info("boundary configured", "path", cfg.BoundaryFile)
	}

	// Coverage publishing is feature-flagged via KAFKA_SINK_TOPIC.
	var publisher aggregator.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaSinkTopic != "" {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("coverage publishing enabled", "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("coverage publishing disabled")
	}

	agg := aggregator.New(aggregator.Options{
		Engine:    engine,
		Boundary:  bnd,
		Publisher: publisher,
		Logger:    logger,
		Metrics:   metrics,
		CacheTTL:  cfg.CacheTTL,
	})

	srv := httpapi.NewServer(cfg.HTTPAddr, agg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the ingest path: a Kafka stream when a source topic is set,
	// otherwise a file-backed source behind the poller.
	var reader *kafkaadapter.Reader
	if cfg.KafkaSourceTopic != "" {
		reader = kafkaadapter.NewReader(cfg, agg, logger, metrics)
		logger.Info("kafka ingest enabled", "topic", cfg.KafkaSourceTopic)
		go func() {
			if err := reader.Run(ctx); err != nil {
				logger.Error("kafka reader error", "error", err)
			}
		}()
	} else {
		src, skipped, err := source.LoadFile(cfg.MeasurementsFile, logger)
		if err != nil {
			logger.Error("failed to load measurements file", "path", cfg.MeasurementsFile, "error", err)
			os.Exit(1)
		}
		logger.Info("file ingest enabled", "path", cfg.MeasurementsFile, "skipped", skipped)
		poller := aggregator.NewPoller(src, agg, cfg.IngestInterval, nil, logger, metrics)
		go func() {
			if err := poller.Run(ctx); err != nil {
				logger.Error("poller error", "error", err)
			}
		}()
	}

	// Start aggregator loop.
	go func() {
		if err := agg.Run(ctx); err != nil {
			logger.Error("aggregator error", "error", err)
		}
	}()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
