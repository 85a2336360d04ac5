package backfill

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
)

// =============================================================================
// Mocks
// =============================================================================

type fakeArchive struct {
	mu      sync.Mutex
	queries []domain.Range
	fail    map[domain.Range]error
	empty   map[domain.Range]bool
}

func (f *fakeArchive) QueryRange(ctx context.Context, r domain.Range) ([]*domain.BlockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, r)
	if err := f.fail[r]; err != nil {
		return nil, err
	}
	if f.empty[r] {
		return nil, nil
	}
	records := make([]*domain.BlockRecord, 0, r.Size())
	for n := r.Start; n <= r.End; n++ {
		records = append(records, &domain.BlockRecord{Number: n, Timestamp: time.Now().UTC()})
	}
	return records, nil
}

type captureWriter struct {
	mu      sync.Mutex
	numbers []uint64
	err     error
}

func (w *captureWriter) Write(ctx context.Context, records []*domain.BlockRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	for _, r := range records {
		w.numbers = append(w.numbers, r.Number)
	}
	return nil
}

type sliceQueue struct {
	ranges []domain.Range
}

func (q *sliceQueue) Pop(ctx context.Context) (domain.Range, bool, error) {
	if len(q.ranges) == 0 {
		return domain.Range{}, false, nil
	}
	r := q.ranges[0]
	q.ranges = q.ranges[1:]
	return r, true, nil
}

// =============================================================================
// Tests
// =============================================================================

func TestJob_FillRangeChunks(t *testing.T) {
	archive := &fakeArchive{}
	writer := &captureWriter{}
	job := NewJob(archive, writer, 10, slog.Default())

	if err := job.FillRange(context.Background(), domain.Range{Start: 1, End: 25}); err != nil {
		t.Fatalf("FillRange failed: %v", err)
	}

	expectedChunks := []domain.Range{{Start: 1, End: 10}, {Start: 11, End: 20}, {Start: 21, End: 25}}
	if len(archive.queries) != len(expectedChunks) {
		t.Fatalf("Expected %d queries, got %d: %v", len(expectedChunks), len(archive.queries), archive.queries)
	}
	for i, q := range archive.queries {
		if q != expectedChunks[i] {
			t.Errorf("Query %d: expected %v, got %v", i, expectedChunks[i], q)
		}
	}

	if len(writer.numbers) != 25 {
		t.Fatalf("Expected 25 records written, got %d", len(writer.numbers))
	}
	for i, n := range writer.numbers {
		if n != uint64(i+1) {
			t.Fatalf("Expected ascending write order, position %d has %d", i, n)
		}
	}
}

func TestJob_FailedChunkStopsJob(t *testing.T) {
	archive := &fakeArchive{fail: map[domain.Range]error{
		{Start: 11, End: 20}: errors.New("archive timeout"),
	}}
	writer := &captureWriter{}
	job := NewJob(archive, writer, 10, slog.Default())

	err := job.FillRange(context.Background(), domain.Range{Start: 1, End: 30})
	if err == nil {
		t.Fatal("Expected error from failed chunk")
	}

	// The first chunk landed, nothing after the failure did.
	if len(writer.numbers) != 10 {
		t.Errorf("Expected 10 records written before failure, got %d", len(writer.numbers))
	}
	if len(archive.queries) != 2 {
		t.Errorf("Expected job to stop at failed chunk, got %d queries", len(archive.queries))
	}
}

func TestJob_EmptyChunkSkipped(t *testing.T) {
	archive := &fakeArchive{empty: map[domain.Range]bool{
		{Start: 1, End: 10}: true,
	}}
	writer := &captureWriter{}
	job := NewJob(archive, writer, 10, slog.Default())

	if err := job.FillRange(context.Background(), domain.Range{Start: 1, End: 20}); err != nil {
		t.Fatalf("FillRange failed: %v", err)
	}
	if len(writer.numbers) != 10 {
		t.Errorf("Expected 10 records from the second chunk, got %d", len(writer.numbers))
	}
}

func TestJob_DrainQueue(t *testing.T) {
	archive := &fakeArchive{}
	writer := &captureWriter{}
	job := NewJob(archive, writer, 100, slog.Default())

	queue := &sliceQueue{ranges: []domain.Range{
		{Start: 1, End: 5},
		{Start: 50, End: 52},
	}}

	filled, err := job.DrainQueue(context.Background(), queue)
	if err != nil {
		t.Fatalf("DrainQueue failed: %v", err)
	}
	if filled != 2 {
		t.Errorf("Expected 2 ranges filled, got %d", filled)
	}
	if len(writer.numbers) != 8 {
		t.Errorf("Expected 8 records written, got %d", len(writer.numbers))
	}
}

func TestJob_WriteFailureStopsJob(t *testing.T) {
	archive := &fakeArchive{}
	writer := &captureWriter{err: errors.New("store down")}
	job := NewJob(archive, writer, 10, slog.Default())

	if err := job.FillRange(context.Background(), domain.Range{Start: 1, End: 5}); err == nil {
		t.Fatal("Expected error from failed write")
	}
}
