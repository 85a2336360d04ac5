package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/terrylica/gapless-network-data/internal/core/config"
	"github.com/terrylica/gapless-network-data/internal/gapscan"
	"github.com/terrylica/gapless-network-data/internal/infra/alert"
	redisclient "github.com/terrylica/gapless-network-data/internal/infra/redis"
	"github.com/terrylica/gapless-network-data/internal/infra/storage/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Store.Primary)
	if err != nil {
		logger.Error("Failed to open primary store", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := postgres.NewRecordRepo(db)

	rc, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rc.Close()

	sinks := alert.MultiSink{alert.NewLogSink(logger)}
	if cfg.Alerts.PushoverToken != "" {
		sinks = append(sinks, alert.NewPushoverSink(cfg.Alerts.PushoverToken, cfg.Alerts.PushoverUser, logger))
	}

	runner := gapscan.NewRunner(
		gapscan.NewDetector(repo, cfg.GapScan.StalenessThreshold),
		gapscan.NewTracker(redisclient.NewGapStore(rc), cfg.GapScan.GracePeriod),
		redisclient.NewQueue(rc),
		sinks,
		alert.NewHeartbeat(cfg.Alerts.HealthchecksURL, logger),
		cfg.GapScan.TopN,
		logger,
	)

	// Interval 0 means a single scan, exiting nonzero when unhealthy so
	// cron-style schedulers see the failure.
	if cfg.GapScan.Interval == 0 {
		_, healthy, err := runner.Run(ctx)
		if err != nil {
			logger.Error("Scan failed", "error", err)
			os.Exit(1)
		}
		if !healthy {
			os.Exit(2)
		}
		return
	}

	ticker := time.NewTicker(cfg.GapScan.Interval)
	defer ticker.Stop()
	for {
		if _, _, err := runner.Run(ctx); err != nil {
			logger.Error("Scan failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("Scanner stopped")
			return
		case <-ticker.C:
		}
	}
}
