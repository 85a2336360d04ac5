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

	"github.com/terrylica/gapless-network-data/internal/backfill"
	"github.com/terrylica/gapless-network-data/internal/core/config"
	"github.com/terrylica/gapless-network-data/internal/core/domain"
	redisclient "github.com/terrylica/gapless-network-data/internal/infra/redis"
	"github.com/terrylica/gapless-network-data/internal/infra/source"
	"github.com/terrylica/gapless-network-data/internal/infra/storage"
	"github.com/terrylica/gapless-network-data/internal/infra/storage/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	start := flag.Uint64("start", 0, "First block of the range to fill")
	end := flag.Uint64("end", 0, "Last block of the range to fill (inclusive)")
	fromQueue := flag.Bool("from-queue", false, "Drain ranges from the backfill queue instead of -start/-end")
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

	if !*fromQueue && (*end == 0 || *end < *start) {
		logger.Error("Provide -start and -end (inclusive), or -from-queue")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	primary, err := postgres.Open(ctx, cfg.Store.Primary)
	if err != nil {
		logger.Error("Failed to open primary store", "error", err)
		os.Exit(1)
	}
	defer primary.Close()
	if err := primary.Migrate(ctx); err != nil {
		logger.Error("Failed to migrate primary store", "error", err)
		os.Exit(1)
	}
	primaryRepo := postgres.NewRecordRepo(primary)

	var secondaryRepo storage.RecordStore
	if !cfg.Store.PrimaryOnly && cfg.Store.Secondary.URL != "" {
		secondary, err := postgres.Open(ctx, cfg.Store.Secondary)
		if err != nil {
			logger.Error("Failed to open secondary store", "error", err)
			os.Exit(1)
		}
		defer secondary.Close()
		secondaryRepo = postgres.NewRecordRepo(secondary)
	}
	writer := storage.NewWriter(primaryRepo, secondaryRepo, secondaryRepo == nil, logger)

	archive := source.NewArchiveClient(cfg.Source.ArchiveURL, 0)
	job := backfill.NewJob(archive, writer, cfg.Backfill.ChunkSize, logger)

	if *fromQueue {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			logger.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rc.Close()

		filled, err := job.DrainQueue(ctx, redisclient.NewQueue(rc))
		if err != nil {
			logger.Error("Queue drain failed", "ranges_filled", filled, "error", err)
			os.Exit(1)
		}
		logger.Info("Queue drained", "ranges_filled", filled)
		return
	}

	if err := job.FillRange(ctx, domain.Range{Start: *start, End: *end}); err != nil {
		logger.Error("Backfill failed", "error", err)
		os.Exit(1)
	}
}
