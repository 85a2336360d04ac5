// Package gapscan verifies that the stored block sequence has no holes.
//
// Detection never touches the live sources: it is a read-only pass over
// the record store. The expensive part, locating exact missing ranges,
// only runs when the cheap arithmetic check (expected vs actual count)
// says something is missing, and uses a single ordered pass rather than
// per-key existence probes, which is what makes it viable at tens of
// millions of rows.
package gapscan

import (
	"context"
	"time"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
	"github.com/terrylica/gapless-network-data/internal/infra/storage"
	"github.com/terrylica/gapless-network-data/internal/metrics"
)

// Detector scans a record store for missing block numbers and stale data.
type Detector struct {
	store              storage.RecordStore
	stalenessThreshold time.Duration
	now                func() time.Time
}

// NewDetector creates a detector. stalenessThreshold of zero defaults
// to 16 minutes (roughly 80 blocks at 12s each: long enough to ride out
// pipeline hiccups, short enough to page before the backlog grows).
func NewDetector(store storage.RecordStore, stalenessThreshold time.Duration) *Detector {
	if stalenessThreshold == 0 {
		stalenessThreshold = 16 * time.Minute
	}
	return &Detector{
		store:              store,
		stalenessThreshold: stalenessThreshold,
		now:                time.Now,
	}
}

// Scan produces a gap report for the current store state. Gaps are a
// report, not an error: escalation is the caller's decision.
func (d *Detector) Scan(ctx context.Context) (*domain.GapReport, error) {
	report := &domain.GapReport{ScannedAt: d.now()}

	count, err := d.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	minNum, ok, err := d.store.MinNumber(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Empty store: nothing to verify yet.
		return report, nil
	}
	maxNum, _, err := d.store.MaxNumber(ctx)
	if err != nil {
		return nil, err
	}

	report.TotalExpected = maxNum - minNum + 1
	report.TotalActual = count

	if report.TotalExpected != report.TotalActual {
		gaps, err := d.findGaps(ctx)
		if err != nil {
			return nil, err
		}
		report.Gaps = gaps
	}

	// Staleness is independent of gaps: a gapless sequence can still
	// have stopped growing.
	latestNum, latestTS, ok, err := d.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		report.LatestNumber = latestNum
		report.LatestTimestamp = latestTS
		report.Age = report.ScannedAt.Sub(latestTS)
		report.Stale = report.Age > d.stalenessThreshold
	}

	metrics.GapsFound.Set(float64(len(report.Gaps)))
	metrics.MissingRecords.Set(float64(report.MissingTotal()))
	metrics.StalenessSeconds.Set(report.Age.Seconds())

	return report, nil
}

// findGaps prefers the store's native window-function pass and falls
// back to an ordered scan with a previous-key lookback.
func (d *Detector) findGaps(ctx context.Context) ([]domain.Range, error) {
	if finder, ok := d.store.(storage.GapFinder); ok {
		return finder.FindGaps(ctx)
	}
	return FindGapsByScan(ctx, d.store)
}

// FindGapsByScan locates missing ranges with one ordered pass: any step
// between consecutive keys larger than 1 marks a gap.
func FindGapsByScan(ctx context.Context, store storage.RecordStore) ([]domain.Range, error) {
	var gaps []domain.Range
	var prev uint64
	first := true

	err := store.ScanOrdered(ctx, func(number uint64, ts time.Time) error {
		if !first && number > prev+1 {
			gaps = append(gaps, domain.Range{Start: prev + 1, End: number - 1})
		}
		prev = number
		first = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	return gaps, nil
}
