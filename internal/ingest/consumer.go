package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
	"github.com/terrylica/gapless-network-data/internal/infra/alert"
	"github.com/terrylica/gapless-network-data/internal/metrics"
)

// Stream is one live connection delivering block notifications. Next
// blocks until a notification arrives or the connection dies; Close
// unblocks a pending Next.
type Stream interface {
	Next() (domain.Notification, error)
	Close() error
}

// Dialer opens a Stream. The consumer redials through it after every
// connection failure.
type Dialer interface {
	Connect(ctx context.Context) (Stream, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Stream, error)

func (f DialerFunc) Connect(ctx context.Context) (Stream, error) { return f(ctx) }

// Fetcher retrieves the full record behind a notification stub.
type Fetcher interface {
	Fetch(ctx context.Context, number uint64) (*domain.BlockRecord, error)
}

// ConsumerConfig tunes the stream consumer.
type ConsumerConfig struct {
	// SmallGapThreshold is the largest local gap closed inline on the
	// hot path. Larger gaps are alerted and left to external backfill.
	SmallGapThreshold uint64
	// ReconnectBase and ReconnectMax bound the redial backoff. Retries
	// are unbounded: this is a long-running service, not a batch job.
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
}

// Consumer maintains exactly one live subscription, fetches the full
// record per notification in arrival order, and tracks the next block
// number it expects so small local discontinuities can be repaired
// before they ever reach the store.
//
// expected is owned exclusively by the processing path; the flush
// worker never touches it. The buffer is the only shared state.
type Consumer struct {
	dial    Dialer
	fetcher Fetcher
	buf     *Buffer
	flusher *Flusher
	alerts  alert.Sink
	log     *slog.Logger
	cfg     ConsumerConfig

	// expected is the block number that should arrive next. seeded is
	// false until the first notification after a (re)connect: the
	// consumer assumes nothing about continuity across a dropped
	// connection and re-seeds from whatever arrives first.
	expected uint64
	seeded   bool
}

func NewConsumer(dial Dialer, fetcher Fetcher, buf *Buffer, flusher *Flusher,
	alerts alert.Sink, log *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.SmallGapThreshold == 0 {
		cfg.SmallGapThreshold = 5
	}
	if cfg.ReconnectBase == 0 {
		cfg.ReconnectBase = time.Second
	}
	if cfg.ReconnectMax == 0 {
		cfg.ReconnectMax = time.Minute
	}
	return &Consumer{
		dial:    dial,
		fetcher: fetcher,
		buf:     buf,
		flusher: flusher,
		alerts:  alerts,
		log:     log,
		cfg:     cfg,
	}
}

// Run consumes until ctx is cancelled, reconnecting forever on failure.
func (c *Consumer) Run(ctx context.Context) error {
	delay := c.cfg.ReconnectBase

	for {
		if ctx.Err() != nil {
			return nil
		}

		stream, err := c.dial.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("stream connect failed", "error", err, "retry_in", delay)
			metrics.Reconnects.Inc()
			if !sleep(ctx, delay) {
				return nil
			}
			delay = nextDelay(delay, c.cfg.ReconnectMax)
			continue
		}

		delay = c.cfg.ReconnectBase
		c.seeded = false // no continuity assumed across connections
		c.log.Info("stream connected")

		err = c.consume(ctx, stream)
		stream.Close()
		if ctx.Err() != nil {
			return nil
		}

		c.log.Warn("stream disconnected", "error", err)
		metrics.Reconnects.Inc()
		if !sleep(ctx, delay) {
			return nil
		}
		delay = nextDelay(delay, c.cfg.ReconnectMax)
	}
}

func (c *Consumer) consume(ctx context.Context, stream Stream) error {
	// Next has no context; close the connection to unblock it on
	// shutdown so no notification is half-processed.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-done:
		}
	}()

	for {
		notif, err := stream.Next()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		c.handle(ctx, notif)
	}
}

// handle processes one notification. Notifications are handled strictly
// one at a time, in arrival order; that is what keeps the expected-next
// tracker meaningful.
func (c *Consumer) handle(ctx context.Context, notif domain.Notification) {
	num := notif.Number

	switch {
	case !c.seeded:
		if c.fetchAndAdd(ctx, num) {
			c.expected = num + 1
			c.seeded = true
		}

	case num == c.expected:
		if c.fetchAndAdd(ctx, num) {
			c.expected = num + 1
		}

	case num < c.expected:
		// Duplicate or out-of-order delivery. The upsert absorbs it;
		// the tracker never moves backward.
		c.log.Debug("duplicate notification", "block", num, "expected", c.expected)
		c.fetchAndAdd(ctx, num)

	case num-c.expected <= c.cfg.SmallGapThreshold:
		c.log.Info("small gap detected, backfilling inline",
			"from", c.expected, "to", num)
		if c.backfillInline(ctx, domain.Range{Start: c.expected, End: num}) {
			metrics.InlineBackfills.Inc()
		} else {
			// Partial inline backfill counts as full failure; keep the
			// arrived record and leave the hole to the gap scanner.
			c.alerts.Notify(ctx, alert.SeverityWarning, "inline backfill failed",
				fmt.Sprintf("blocks %d-%d could not be backfilled inline", c.expected, num-1))
			c.fetchAndAdd(ctx, num)
		}
		c.expected = num + 1

	default:
		// Too large to close on the hot path. Ingestion must not stall
		// behind a bulk backfill, so accept the arrived block and alert.
		gap := domain.Range{Start: c.expected, End: num - 1}
		metrics.LargeGaps.Inc()
		c.alerts.Notify(ctx, alert.SeverityCritical, "large gap in live stream",
			fmt.Sprintf("blocks %s missing (%d blocks), external backfill required", gap, gap.Size()))
		c.fetchAndAdd(ctx, num)
		c.expected = num + 1
	}
}

// backfillInline fetches every block in the range in order and buffers
// them all, or none on failure.
func (c *Consumer) backfillInline(ctx context.Context, r domain.Range) bool {
	records := make([]*domain.BlockRecord, 0, r.Size())
	for num := r.Start; num <= r.End; num++ {
		rec, err := c.fetcher.Fetch(ctx, num)
		if err != nil {
			c.log.Error("inline backfill fetch failed", "block", num, "error", err)
			return false
		}
		records = append(records, rec)
	}
	for _, rec := range records {
		c.add(rec)
	}
	return true
}

func (c *Consumer) fetchAndAdd(ctx context.Context, num uint64) bool {
	rec, err := c.fetcher.Fetch(ctx, num)
	if err != nil {
		// The gap scanner will find the hole; don't kill the stream.
		c.log.Error("record fetch failed", "block", num, "error", err)
		c.alerts.Notify(ctx, alert.SeverityWarning, "record fetch failed",
			fmt.Sprintf("block %d: %v", num, err))
		return false
	}
	c.add(rec)
	return true
}

func (c *Consumer) add(rec *domain.BlockRecord) {
	n := c.buf.Add(rec)
	metrics.RecordsIngested.Inc()
	c.flusher.Added(n)
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
