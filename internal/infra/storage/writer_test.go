package storage

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
)

// fakeStore records upserts and optionally fails them.
type fakeStore struct {
	upserts [][]*domain.BlockRecord
	err     error
}

func (f *fakeStore) Upsert(ctx context.Context, records []*domain.BlockRecord) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *fakeStore) Count(ctx context.Context) (uint64, error)            { return 0, nil }
func (f *fakeStore) MinNumber(ctx context.Context) (uint64, bool, error)  { return 0, false, nil }
func (f *fakeStore) MaxNumber(ctx context.Context) (uint64, bool, error)  { return 0, false, nil }
func (f *fakeStore) Latest(ctx context.Context) (uint64, time.Time, bool, error) {
	return 0, time.Time{}, false, nil
}
func (f *fakeStore) ScanOrdered(ctx context.Context, fn func(uint64, time.Time) error) error {
	return nil
}

func testBatch() []*domain.BlockRecord {
	return []*domain.BlockRecord{{Number: 1}, {Number: 2}}
}

func TestDualWriter_WritesBoth(t *testing.T) {
	primary := &fakeStore{}
	secondary := &fakeStore{}
	w := NewDualWriter(primary, secondary, slog.Default())

	if err := w.Write(context.Background(), testBatch()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(primary.upserts) != 1 {
		t.Errorf("Expected 1 primary upsert, got %d", len(primary.upserts))
	}
	if len(secondary.upserts) != 1 {
		t.Errorf("Expected 1 secondary upsert, got %d", len(secondary.upserts))
	}
}

func TestDualWriter_PrimaryFailureAbortsSecondary(t *testing.T) {
	primary := &fakeStore{err: errors.New("primary down")}
	secondary := &fakeStore{}
	w := NewDualWriter(primary, secondary, slog.Default())

	err := w.Write(context.Background(), testBatch())
	if err == nil {
		t.Fatal("Expected error from primary failure")
	}
	if len(secondary.upserts) != 0 {
		t.Errorf("Secondary must not be written when primary fails, got %d upserts", len(secondary.upserts))
	}
}

func TestDualWriter_SecondaryFailureSwallowed(t *testing.T) {
	primary := &fakeStore{}
	secondary := &fakeStore{err: errors.New("legacy store down")}
	w := NewDualWriter(primary, secondary, slog.Default())

	if err := w.Write(context.Background(), testBatch()); err != nil {
		t.Fatalf("Secondary failure must not surface, got: %v", err)
	}
	if len(primary.upserts) != 1 {
		t.Errorf("Expected primary write to land, got %d upserts", len(primary.upserts))
	}
}

func TestNewWriter_Selection(t *testing.T) {
	primary := &fakeStore{}
	secondary := &fakeStore{}

	if _, ok := NewWriter(primary, secondary, false, slog.Default()).(*DualWriter); !ok {
		t.Error("Expected DualWriter when secondary configured")
	}
	if _, ok := NewWriter(primary, secondary, true, slog.Default()).(*PrimaryOnly); !ok {
		t.Error("Expected PrimaryOnly when primaryOnly set")
	}
	if _, ok := NewWriter(primary, nil, false, slog.Default()).(*PrimaryOnly); !ok {
		t.Error("Expected PrimaryOnly when no secondary")
	}
}
