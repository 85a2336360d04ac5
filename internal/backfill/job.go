// Package backfill fills historical ranges from the bulk archive source.
package backfill

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
	"github.com/terrylica/gapless-network-data/internal/infra/storage"
	"github.com/terrylica/gapless-network-data/internal/metrics"
)

// ArchiveSource reads whole ranges of historical records.
type ArchiveSource interface {
	QueryRange(ctx context.Context, r domain.Range) ([]*domain.BlockRecord, error)
}

// RangeQueue hands out ranges the scanner flagged for backfill.
type RangeQueue interface {
	Pop(ctx context.Context) (domain.Range, bool, error)
}

// DefaultChunkSize bounds how many records one archive query can return.
const DefaultChunkSize = 10000

// Job fills ranges chunk by chunk, writing through the same path the live
// collector uses so both stores stay aligned.
type Job struct {
	source    ArchiveSource
	writer    storage.Writer
	chunkSize uint64
	log       *slog.Logger
}

// NewJob creates a backfill job.
func NewJob(source ArchiveSource, writer storage.Writer, chunkSize uint64, log *slog.Logger) *Job {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	return &Job{
		source:    source,
		writer:    writer,
		chunkSize: chunkSize,
		log:       log,
	}
}

// FillRange fills one range, splitting it into chunks so a failure loses at
// most one chunk of progress. Chunks run in ascending order and the first
// failure stops the job; completed chunks stay written.
func (j *Job) FillRange(ctx context.Context, r domain.Range) error {
	chunks := r.Split(j.chunkSize)
	j.log.Info("starting backfill",
		"range", r.String(),
		"blocks", r.Size(),
		"chunks", len(chunks))

	var total int
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}

		records, err := j.source.QueryRange(ctx, chunk)
		if err != nil {
			metrics.BackfillChunks.WithLabelValues("error").Inc()
			return fmt.Errorf("backfill chunk %s: %w", chunk, err)
		}
		if len(records) == 0 {
			j.log.Warn("archive returned no records for chunk", "chunk", chunk.String())
			metrics.BackfillChunks.WithLabelValues("empty").Inc()
			continue
		}

		if err := j.writer.Write(ctx, records); err != nil {
			metrics.BackfillChunks.WithLabelValues("error").Inc()
			return fmt.Errorf("backfill write %s: %w", chunk, err)
		}

		total += len(records)
		metrics.BackfillChunks.WithLabelValues("success").Inc()
		j.log.Debug("chunk filled", "chunk", chunk.String(), "records", len(records))
	}

	j.log.Info("backfill complete", "range", r.String(), "records", total)
	return nil
}

// DrainQueue pops and fills ranges until the queue is empty. A failed range
// stops the drain; the popped range is lost from the queue but the next
// scan re-detects whatever is still missing.
func (j *Job) DrainQueue(ctx context.Context, queue RangeQueue) (int, error) {
	var filled int
	for {
		r, ok, err := queue.Pop(ctx)
		if err != nil {
			return filled, fmt.Errorf("pop backfill queue: %w", err)
		}
		if !ok {
			return filled, nil
		}
		if err := j.FillRange(ctx, r); err != nil {
			return filled, err
		}
		filled++
	}
}
