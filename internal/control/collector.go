// Package control wires the application components together and manages
// their lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/terrylica/gapless-network-data/internal/core/config"
	"github.com/terrylica/gapless-network-data/internal/health"
	"github.com/terrylica/gapless-network-data/internal/infra/alert"
	"github.com/terrylica/gapless-network-data/internal/infra/source"
	"github.com/terrylica/gapless-network-data/internal/infra/storage"
	"github.com/terrylica/gapless-network-data/internal/infra/storage/postgres"
	"github.com/terrylica/gapless-network-data/internal/ingest"
)

// Collector is the live ingestion application: one subscription, one
// buffer, one flush worker, dual-write storage.
type Collector struct {
	cfg          *config.AppConfig
	primary      *postgres.DB
	secondary    *postgres.DB
	consumer     *ingest.Consumer
	flusher      *ingest.Flusher
	heartbeat    *alert.Heartbeat
	healthServer *health.Server
	log          *slog.Logger

	// Shutdown order matters: the consumer must stop producing before
	// the flusher runs its final flush, so each gets its own cancel.
	consumerCancel context.CancelFunc
	flusherCancel  context.CancelFunc
	consumerWG     sync.WaitGroup
	flusherWG      sync.WaitGroup

	errCh chan error
}

// NewCollector creates a collector with all dependencies initialized.
func NewCollector(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*Collector, error) {
	// 1. Primary store (owns the schema)
	primary, err := postgres.Open(ctx, cfg.Store.Primary)
	if err != nil {
		return nil, fmt.Errorf("failed to open primary store: %w", err)
	}
	if err := primary.Migrate(ctx); err != nil {
		primary.Close()
		return nil, fmt.Errorf("failed to migrate primary store: %w", err)
	}
	primaryRepo := postgres.NewRecordRepo(primary)

	// 2. Optional secondary store (legacy, best effort)
	var secondary *postgres.DB
	var secondaryRepo storage.RecordStore
	if !cfg.Store.PrimaryOnly && cfg.Store.Secondary.URL != "" {
		secondary, err = postgres.Open(ctx, cfg.Store.Secondary)
		if err != nil {
			primary.Close()
			return nil, fmt.Errorf("failed to open secondary store: %w", err)
		}
		secondaryRepo = postgres.NewRecordRepo(secondary)
	}
	writer := storage.NewWriter(primaryRepo, secondaryRepo, cfg.Store.PrimaryOnly || secondary == nil, log)

	// 3. Alerting
	sinks := alert.MultiSink{alert.NewLogSink(log)}
	if cfg.Alerts.PushoverToken != "" {
		sinks = append(sinks, alert.NewPushoverSink(cfg.Alerts.PushoverToken, cfg.Alerts.PushoverUser, log))
	}
	heartbeat := alert.NewHeartbeat(cfg.Alerts.HealthchecksURL, log)

	// 4. Ingest pipeline
	buf := ingest.NewBuffer()
	flusher := ingest.NewFlusher(buf, writer, sinks, log, ingest.FlusherConfig{
		Interval: cfg.Buffer.FlushInterval,
		MaxBatch: cfg.Buffer.MaxBatch,
	})
	fetcher := source.NewFetcher(source.FetcherConfig{
		Endpoint:    cfg.Source.RPCURL,
		Timeout:     cfg.Source.FetchTimeout,
		MaxAttempts: cfg.Source.MaxAttempts,
	})
	subscriber := source.NewSubscriber(cfg.Source.WSURL)
	dialer := ingest.DialerFunc(func(ctx context.Context) (ingest.Stream, error) {
		return subscriber.Connect(ctx)
	})
	consumer := ingest.NewConsumer(dialer, fetcher, buf, flusher, sinks, log, ingest.ConsumerConfig{
		SmallGapThreshold: cfg.Consumer.SmallGapThreshold,
	})

	// 5. Health endpoints
	monitor := health.NewMonitor(5 * time.Second)
	monitor.Register("primary_store", true, primary.Health)
	if secondary != nil {
		monitor.Register("secondary_store", false, secondary.Health)
	}
	healthServer := health.NewServer(monitor, cfg.Server.Port)

	return &Collector{
		cfg:          cfg,
		primary:      primary,
		secondary:    secondary,
		consumer:     consumer,
		flusher:      flusher,
		heartbeat:    heartbeat,
		healthServer: healthServer,
		log:          log,
		errCh:        make(chan error, 1),
	}, nil
}

// Start launches all components. Fatal errors from the pipeline surface
// on Done.
func (c *Collector) Start(ctx context.Context) error {
	go func() {
		if err := c.healthServer.Start(); err != nil {
			c.log.Error("Health server failed", "error", err)
		}
	}()

	go c.heartbeat.Run(ctx, time.Minute)

	flusherCtx, flusherCancel := context.WithCancel(ctx)
	c.flusherCancel = flusherCancel
	c.flusherWG.Add(1)
	go func() {
		defer c.flusherWG.Done()
		if err := c.flusher.Run(flusherCtx); err != nil {
			c.fail(fmt.Errorf("flush worker: %w", err))
		}
	}()

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	c.consumerCancel = consumerCancel
	c.consumerWG.Add(1)
	go func() {
		defer c.consumerWG.Done()
		if err := c.consumer.Run(consumerCtx); err != nil && consumerCtx.Err() == nil {
			c.fail(fmt.Errorf("stream consumer: %w", err))
		}
	}()

	c.log.Info("Collector started", "port", c.cfg.Server.Port)
	return nil
}

// Done delivers the first fatal error from a pipeline component.
func (c *Collector) Done() <-chan error {
	return c.errCh
}

func (c *Collector) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

// Stop shuts the collector down: the consumer stops producing first,
// then the flusher drains the buffer, then connections close. A failed
// final flush is returned so the process can exit nonzero.
func (c *Collector) Stop(ctx context.Context) error {
	c.log.Info("Stopping collector...")

	c.consumerCancel()
	c.consumerWG.Wait()

	c.flusherCancel()
	c.flusherWG.Wait()

	var flushErr error
	select {
	case flushErr = <-c.errCh:
	default:
	}

	if c.secondary != nil {
		if err := c.secondary.Close(); err != nil {
			c.log.Warn("Failed to close secondary store", "error", err)
		}
	}
	if err := c.primary.Close(); err != nil {
		c.log.Warn("Failed to close primary store", "error", err)
	}
	if err := c.healthServer.Stop(ctx); err != nil {
		c.log.Warn("Failed to stop health server", "error", err)
	}

	return flushErr
}
