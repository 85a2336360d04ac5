package storage

import (
	"context"
	"log/slog"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
	"github.com/terrylica/gapless-network-data/internal/metrics"
)

// Writer is the single write path shared by the live collector and the
// backfill job.
type Writer interface {
	Write(ctx context.Context, records []*domain.BlockRecord) error
}

// NewWriter selects the write strategy once at startup. With primaryOnly
// set (or no secondary configured) writes go to the primary store alone;
// otherwise both stores are written for the duration of the migration.
func NewWriter(primary, secondary RecordStore, primaryOnly bool, log *slog.Logger) Writer {
	if primaryOnly || secondary == nil {
		return &PrimaryOnly{store: primary}
	}
	return &DualWriter{primary: primary, secondary: secondary, log: log}
}

// PrimaryOnly writes to a single store.
type PrimaryOnly struct {
	store RecordStore
}

func NewPrimaryOnly(store RecordStore) *PrimaryOnly {
	return &PrimaryOnly{store: store}
}

func (w *PrimaryOnly) Write(ctx context.Context, records []*domain.BlockRecord) error {
	return w.store.Upsert(ctx, records)
}

// DualWriter writes to two stores during a storage migration window.
// The primary is authoritative: its failure aborts the write before the
// secondary is touched, so the primary is never behind the secondary.
// Secondary failures are logged and counted, never returned.
type DualWriter struct {
	primary   RecordStore
	secondary RecordStore
	log       *slog.Logger
}

func NewDualWriter(primary, secondary RecordStore, log *slog.Logger) *DualWriter {
	return &DualWriter{primary: primary, secondary: secondary, log: log}
}

func (w *DualWriter) Write(ctx context.Context, records []*domain.BlockRecord) error {
	if err := w.primary.Upsert(ctx, records); err != nil {
		return err
	}

	if err := w.secondary.Upsert(ctx, records); err != nil {
		metrics.SecondaryWriteFailures.Inc()
		w.log.Warn("secondary store write failed",
			"records", len(records),
			"error", err,
		)
	}

	return nil
}
