package storage

import (
	"context"
	"time"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
)

// RecordStore holds block records keyed by number with last-write-wins
// upsert semantics. Implementations must support concurrent readers
// during writes.
type RecordStore interface {
	// Upsert writes a batch of records. A record whose number already
	// exists replaces the stored one.
	Upsert(ctx context.Context, records []*domain.BlockRecord) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (uint64, error)

	// MinNumber returns the smallest stored block number.
	// ok is false when the store is empty.
	MinNumber(ctx context.Context) (number uint64, ok bool, err error)

	// MaxNumber returns the largest stored block number.
	MaxNumber(ctx context.Context) (number uint64, ok bool, err error)

	// Latest returns the largest stored block number and its timestamp.
	Latest(ctx context.Context) (number uint64, ts time.Time, ok bool, err error)

	// ScanOrdered visits every stored (number, timestamp) pair in
	// ascending number order. Returning an error from fn aborts the scan.
	ScanOrdered(ctx context.Context, fn func(number uint64, ts time.Time) error) error
}

// GapFinder is implemented by stores that can locate missing ranges
// natively (e.g. with a SQL window function). The gap scanner prefers
// it over a full ScanOrdered pass.
type GapFinder interface {
	FindGaps(ctx context.Context) ([]domain.Range, error)
}
