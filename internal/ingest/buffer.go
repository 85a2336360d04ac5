package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
	"github.com/terrylica/gapless-network-data/internal/infra/alert"
	"github.com/terrylica/gapless-network-data/internal/infra/storage"
	"github.com/terrylica/gapless-network-data/internal/metrics"
)

// Buffer accumulates fetched records between flushes. It is the single
// piece of state shared between the consumer and the flush worker; the
// lock is held only to append or to swap the slice out, never across a
// store write.
type Buffer struct {
	mu      sync.Mutex
	records []*domain.BlockRecord
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Add appends a record and returns the new buffered count.
func (b *Buffer) Add(rec *domain.BlockRecord) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, rec)
	n := len(b.records)
	metrics.BufferSize.Set(float64(n))
	return n
}

// Len returns the buffered count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// take swaps the buffer for an empty one and returns the old contents
// in insertion order.
func (b *Buffer) take() []*domain.BlockRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.records
	b.records = nil
	metrics.BufferSize.Set(0)
	return batch
}

// FlusherConfig tunes the flush worker.
type FlusherConfig struct {
	// Interval is the timer-driven flush period.
	Interval time.Duration
	// MaxBatch triggers an immediate flush once the buffer reaches it.
	MaxBatch int
}

// Flusher drains the buffer to the write path on a timer or a size
// threshold, whichever fires first. A failed primary write is fatal:
// the batch is reported with its exact key range and the error
// propagates so process supervision can restart from a known state.
type Flusher struct {
	buf    *Buffer
	writer storage.Writer
	alerts alert.Sink
	log    *slog.Logger
	cfg    FlusherConfig
	kick   chan struct{}
}

func NewFlusher(buf *Buffer, writer storage.Writer, alerts alert.Sink, log *slog.Logger, cfg FlusherConfig) *Flusher {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.MaxBatch == 0 {
		cfg.MaxBatch = 25
	}
	return &Flusher{
		buf:    buf,
		writer: writer,
		alerts: alerts,
		log:    log,
		cfg:    cfg,
		kick:   make(chan struct{}, 1),
	}
}

// Added tells the flusher the buffer grew to n records. Once n reaches
// the threshold a flush is scheduled without waiting for the timer.
func (f *Flusher) Added(n int) {
	if n < f.cfg.MaxBatch {
		return
	}
	select {
	case f.kick <- struct{}{}:
	default: // a flush is already scheduled
	}
}

// Run flushes until ctx is cancelled, then performs one final flush so
// nothing accepted before shutdown is lost. The error return is a
// failed write; the caller is expected to treat it as fatal.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			return f.Flush(final)
		case <-ticker.C:
			if err := f.Flush(ctx); err != nil {
				return err
			}
		case <-f.kick:
			if err := f.Flush(ctx); err != nil {
				return err
			}
		}
	}
}

// Flush swaps the buffer out and writes the batch. The failed batch is
// not re-enqueued: its exact key range is alerted instead, so recovery
// goes through the backfill path rather than an unbounded retry buffer.
func (f *Flusher) Flush(ctx context.Context) error {
	batch := f.buf.take()
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	err := f.writer.Write(ctx, batch)
	metrics.FlushDuration.Observe(time.Since(start).Seconds())
	metrics.FlushBatchSize.Observe(float64(len(batch)))

	if err != nil {
		lo, hi := keyRange(batch)
		flushErr := &domain.FlushError{From: lo, To: hi, Count: len(batch), Err: err}
		metrics.FlushesTotal.WithLabelValues("error").Inc()
		f.alerts.Notify(ctx, alert.SeverityCritical, "flush failed",
			fmt.Sprintf("%d records lost, blocks %d-%d: %v", len(batch), lo, hi, err))
		return flushErr
	}

	metrics.FlushesTotal.WithLabelValues("ok").Inc()
	lo, hi := keyRange(batch)
	f.log.Info("flushed batch", "records", len(batch), "from", lo, "to", hi,
		"duration", time.Since(start))
	return nil
}

func keyRange(batch []*domain.BlockRecord) (lo, hi uint64) {
	lo, hi = batch[0].Number, batch[0].Number
	for _, rec := range batch[1:] {
		if rec.Number < lo {
			lo = rec.Number
		}
		if rec.Number > hi {
			hi = rec.Number
		}
	}
	return lo, hi
}
