package gapscan

import (
	"context"
	"testing"
	"time"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
	"github.com/terrylica/gapless-network-data/internal/infra/storage/memory"
)

func seed(t *testing.T, store *memory.Store, ts time.Time, numbers ...uint64) {
	t.Helper()
	records := make([]*domain.BlockRecord, len(numbers))
	for i, n := range numbers {
		records[i] = &domain.BlockRecord{Number: n, Timestamp: ts}
	}
	if err := store.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
}

func contiguous(start, end uint64) []uint64 {
	out := make([]uint64, 0, end-start+1)
	for n := start; n <= end; n++ {
		out = append(out, n)
	}
	return out
}

func newTestDetector(store *memory.Store, threshold time.Duration, now time.Time) *Detector {
	d := NewDetector(store, threshold)
	d.now = func() time.Time { return now }
	return d
}

func TestDetector_FindsSingleGap(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	seed(t, store, now, contiguous(1, 99)...)
	seed(t, store, now, contiguous(105, 200)...)

	report, err := newTestDetector(store, 0, now).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if report.TotalExpected != 200 {
		t.Errorf("Expected 200 expected records, got %d", report.TotalExpected)
	}
	if report.TotalActual != 195 {
		t.Errorf("Expected 195 actual records, got %d", report.TotalActual)
	}
	if report.MissingTotal() != 5 {
		t.Errorf("Expected 5 missing, got %d", report.MissingTotal())
	}
	if len(report.Gaps) != 1 {
		t.Fatalf("Expected 1 gap, got %d: %v", len(report.Gaps), report.Gaps)
	}
	if report.Gaps[0] != (domain.Range{Start: 100, End: 104}) {
		t.Errorf("Expected gap 100-104, got %v", report.Gaps[0])
	}
}

func TestDetector_CompleteSequence(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	seed(t, store, now, contiguous(500, 600)...)

	report, err := newTestDetector(store, 0, now).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !report.Complete() {
		t.Errorf("Expected complete report, got gaps %v", report.Gaps)
	}
	if report.TotalExpected != 101 || report.TotalActual != 101 {
		t.Errorf("Expected 101/101, got %d/%d", report.TotalExpected, report.TotalActual)
	}
}

func TestDetector_EmptyStore(t *testing.T) {
	store := memory.NewStore()

	report, err := NewDetector(store, 0).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !report.Complete() || report.TotalExpected != 0 || report.Stale {
		t.Errorf("Expected empty clean report, got %+v", report)
	}
}

func TestDetector_MultipleGaps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	seed(t, store, now, 1, 2, 5, 6, 10)

	report, err := newTestDetector(store, 0, now).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	expected := []domain.Range{{Start: 3, End: 4}, {Start: 7, End: 9}}
	if len(report.Gaps) != len(expected) {
		t.Fatalf("Expected %d gaps, got %d: %v", len(expected), len(report.Gaps), report.Gaps)
	}
	for i, g := range report.Gaps {
		if g != expected[i] {
			t.Errorf("Gap %d: expected %v, got %v", i, expected[i], g)
		}
	}
}

func TestDetector_StalenessIndependentOfGaps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	// Gapless but last record is 20 minutes old.
	seed(t, store, now.Add(-20*time.Minute), contiguous(1, 50)...)

	report, err := newTestDetector(store, 16*time.Minute, now).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !report.Complete() {
		t.Errorf("Expected no gaps, got %v", report.Gaps)
	}
	if !report.Stale {
		t.Error("Expected stale report for 20 minute old data")
	}
	if report.Age != 20*time.Minute {
		t.Errorf("Expected age 20m, got %v", report.Age)
	}
}

func TestDetector_FreshDataNotStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	seed(t, store, now.Add(-time.Minute), contiguous(1, 10)...)

	report, err := newTestDetector(store, 16*time.Minute, now).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if report.Stale {
		t.Errorf("Expected fresh report, age %v", report.Age)
	}
	if report.LatestNumber != 10 {
		t.Errorf("Expected latest number 10, got %d", report.LatestNumber)
	}
}

func TestFindGapsByScan(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, time.Now().UTC(), 10, 11, 12, 20, 21, 30)

	gaps, err := FindGapsByScan(context.Background(), store)
	if err != nil {
		t.Fatalf("FindGapsByScan failed: %v", err)
	}

	expected := []domain.Range{{Start: 13, End: 19}, {Start: 22, End: 29}}
	if len(gaps) != len(expected) {
		t.Fatalf("Expected %d gaps, got %d: %v", len(expected), len(gaps), gaps)
	}
	for i, g := range gaps {
		if g != expected[i] {
			t.Errorf("Gap %d: expected %v, got %v", i, expected[i], g)
		}
	}
}
