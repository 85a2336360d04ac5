package memory

import (
	"context"
	"testing"
	"time"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
)

func record(num uint64, ts time.Time) *domain.BlockRecord {
	return &domain.BlockRecord{Number: num, Timestamp: ts, GasUsed: num * 1000}
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	ts := time.Now().UTC()

	batch := []*domain.BlockRecord{record(100, ts), record(101, ts), record(102, ts)}
	if err := store.Upsert(ctx, batch); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	// Same batch again must not change the count
	if err := store.Upsert(ctx, batch); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}
}

func TestStore_UpsertLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	ts := time.Now().UTC()

	first := record(100, ts)
	first.GasUsed = 1
	second := record(100, ts)
	second.GasUsed = 2

	store.Upsert(ctx, []*domain.BlockRecord{first})
	store.Upsert(ctx, []*domain.BlockRecord{second})

	got := store.Get(100)
	if got == nil {
		t.Fatal("Expected record 100 to exist")
	}
	if got.GasUsed != 2 {
		t.Errorf("Expected later write to win, got gas_used=%d", got.GasUsed)
	}
}

func TestStore_UpsertCopiesRecords(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	rec := record(5, time.Now().UTC())
	store.Upsert(ctx, []*domain.BlockRecord{rec})
	rec.GasUsed = 999999

	if store.Get(5).GasUsed == 999999 {
		t.Error("Store aliased the caller's record")
	}
}

func TestStore_Aggregates(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	// Empty store
	if _, ok, _ := store.MinNumber(ctx); ok {
		t.Error("Expected no min for empty store")
	}
	if _, ok, _ := store.MaxNumber(ctx); ok {
		t.Error("Expected no max for empty store")
	}
	if _, _, ok, _ := store.Latest(ctx); ok {
		t.Error("Expected no latest for empty store")
	}

	ts := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	store.Upsert(ctx, []*domain.BlockRecord{
		record(50, ts.Add(-time.Hour)),
		record(10, ts.Add(-2*time.Hour)),
		record(99, ts),
	})

	minNum, ok, _ := store.MinNumber(ctx)
	if !ok || minNum != 10 {
		t.Errorf("Expected min 10, got %d (ok=%v)", minNum, ok)
	}
	maxNum, ok, _ := store.MaxNumber(ctx)
	if !ok || maxNum != 99 {
		t.Errorf("Expected max 99, got %d (ok=%v)", maxNum, ok)
	}
	num, latestTS, ok, _ := store.Latest(ctx)
	if !ok || num != 99 || !latestTS.Equal(ts) {
		t.Errorf("Expected latest (99, %v), got (%d, %v)", ts, num, latestTS)
	}
}

func TestStore_ScanOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	ts := time.Now().UTC()

	store.Upsert(ctx, []*domain.BlockRecord{
		record(30, ts), record(10, ts), record(20, ts),
	})

	var seen []uint64
	err := store.ScanOrdered(ctx, func(number uint64, _ time.Time) error {
		seen = append(seen, number)
		return nil
	})
	if err != nil {
		t.Fatalf("ScanOrdered failed: %v", err)
	}

	expected := []uint64{10, 20, 30}
	if len(seen) != len(expected) {
		t.Fatalf("Expected %d records, got %d", len(expected), len(seen))
	}
	for i, n := range seen {
		if n != expected[i] {
			t.Errorf("Position %d: expected %d, got %d", i, expected[i], n)
		}
	}
}
