package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/river-level-etl/internal/adapter/feed"
	httpadapter "github.com/couchcryptid/river-level-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/river-level-etl/internal/adapter/kafka"
	"github.com/couchcryptid/river-level-etl/internal/config"
	"github.com/couchcryptid/river-level-etl/internal/observability"
	"github.com/couchcryptid/river-level-etl/internal/pipeline"
	"github.com/couchcryptid/river-level-etl/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slots, err := store.Open(ctx, cfg.CacheDriver, cfg.CachePath)
	if err != nil {
		logger.Error("failed to open cache", "driver", cfg.CacheDriver, "path", cfg.CachePath, "error", err)
		os.Exit(1)
	}
	logger.Info("cache opened", "driver", cfg.CacheDriver, "path", cfg.CachePath)

	client := feed.NewClient(cfg.FeedURL, cfg.FetchTimeout, metrics, logger)
	repo := store.New(slots, cfg.FeedURL, logger)

	// Publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var (
		publisher pipeline.EventPublisher
		writer    *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("refresh events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("refresh events disabled")
	}

	refresher := pipeline.New(client, repo, publisher,
		pipeline.Settings{SafeLevel: cfg.SafeLevel, Window: cfg.DisplayWindow},
		logger, metrics)
	refresher.Restore(ctx)

	srv := httpadapter.NewServer(cfg.HTTPAddr, refresher, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scheduled refreshes.
	go func() {
		if err := refresher.Run(ctx, cfg.RefreshInterval); err != nil {
			logger.Error("refresher error", "error", err)
		}
	}()

	// Hot reload of the station file adjusts threshold and window only.
	if cfg.StationConfig != "" {
		go func() {
			err := config.WatchStation(ctx, cfg.StationConfig, logger, func(st *config.Station) {
				s := refresher.Settings()
				if st.SafeLevel > 0 {
					s.SafeLevel = st.SafeLevel
				}
				if st.DisplayWindow != "" {
					s.Window = st.Window()
				}
				refresher.UpdateSettings(s)
			})
			if err != nil {
				logger.Error("station watch error", "error", err)
			}
		}()
	}

	logger.Info("river level service started",
		"station", cfg.StationName,
		"feed_url", cfg.FeedURL,
		"safe_level", cfg.SafeLevel,
		"display_window", cfg.DisplayWindow.String(),
		"refresh_interval", cfg.RefreshInterval,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := slots.Close(); err != nil {
		logger.Error("cache close error", "error", err)
	}

	logger.Info("shutdown complete")
}
