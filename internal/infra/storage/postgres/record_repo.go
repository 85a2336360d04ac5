package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
)

// RecordRepo implements storage.RecordStore and storage.GapFinder on
// PostgreSQL.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new PostgreSQL record repository.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

const upsertQuery = `
	INSERT INTO blocks (
		number, block_timestamp, gas_limit, gas_used, base_fee_per_gas,
		transaction_count, difficulty, total_difficulty, size,
		blob_gas_used, excess_blob_gas
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (number) DO UPDATE SET
		block_timestamp   = EXCLUDED.block_timestamp,
		gas_limit         = EXCLUDED.gas_limit,
		gas_used          = EXCLUDED.gas_used,
		base_fee_per_gas  = EXCLUDED.base_fee_per_gas,
		transaction_count = EXCLUDED.transaction_count,
		difficulty        = EXCLUDED.difficulty,
		total_difficulty  = EXCLUDED.total_difficulty,
		size              = EXCLUDED.size,
		blob_gas_used     = EXCLUDED.blob_gas_used,
		excess_blob_gas   = EXCLUDED.excess_blob_gas
`

// Upsert writes a batch of records inside one transaction.
func (r *RecordRepo) Upsert(ctx context.Context, records []*domain.BlockRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			int64(rec.Number),
			rec.Timestamp,
			int64(rec.GasLimit),
			int64(rec.GasUsed),
			nullableUint(rec.BaseFeePerGas),
			int64(rec.TransactionCount),
			int64(rec.Difficulty),
			nullableString(rec.TotalDifficulty),
			int64(rec.Size),
			nullableUint(rec.BlobGasUsed),
			nullableUint(rec.ExcessBlobGas),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert block %d: %w", rec.Number, err)
		}
	}

	return tx.Commit()
}

// Count returns the number of stored records.
func (r *RecordRepo) Count(ctx context.Context) (uint64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM blocks`); err != nil {
		return 0, fmt.Errorf("failed to count blocks: %w", err)
	}
	return uint64(count), nil
}

// MinNumber returns the smallest stored block number.
func (r *RecordRepo) MinNumber(ctx context.Context) (uint64, bool, error) {
	return r.aggregate(ctx, `SELECT MIN(number) FROM blocks`)
}

// MaxNumber returns the largest stored block number.
func (r *RecordRepo) MaxNumber(ctx context.Context) (uint64, bool, error) {
	return r.aggregate(ctx, `SELECT MAX(number) FROM blocks`)
}

func (r *RecordRepo) aggregate(ctx context.Context, query string) (uint64, bool, error) {
	var number sql.NullInt64
	if err := r.db.GetContext(ctx, &number, query); err != nil {
		return 0, false, fmt.Errorf("failed to query block range: %w", err)
	}
	if !number.Valid {
		return 0, false, nil
	}
	return uint64(number.Int64), true, nil
}

// Latest returns the largest stored block number and its timestamp.
func (r *RecordRepo) Latest(ctx context.Context) (uint64, time.Time, bool, error) {
	var row struct {
		Number    int64     `db:"number"`
		Timestamp time.Time `db:"block_timestamp"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT number, block_timestamp
		FROM blocks
		ORDER BY number DESC
		LIMIT 1
	`)
	if err == sql.ErrNoRows {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("failed to get latest block: %w", err)
	}
	return uint64(row.Number), row.Timestamp, true, nil
}

// ScanOrdered streams (number, timestamp) pairs in ascending order.
func (r *RecordRepo) ScanOrdered(ctx context.Context, fn func(number uint64, ts time.Time) error) error {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT number, block_timestamp
		FROM blocks
		ORDER BY number ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to scan blocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var number int64
		var ts time.Time
		if err := rows.Scan(&number, &ts); err != nil {
			return err
		}
		if err := fn(uint64(number), ts); err != nil {
			return err
		}
	}
	return rows.Err()
}

// FindGaps locates missing ranges with a single window-function pass.
// This keeps gap detection inside the database, which matters at tens
// of millions of rows.
func (r *RecordRepo) FindGaps(ctx context.Context) ([]domain.Range, error) {
	rows, err := r.db.QueryxContext(ctx, `
		WITH numbered AS (
			SELECT number, LEAD(number) OVER (ORDER BY number) AS next_number
			FROM blocks
		)
		SELECT number + 1 AS gap_start, next_number - 1 AS gap_end
		FROM numbered
		WHERE next_number - number > 1
		ORDER BY gap_start ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to find gaps: %w", err)
	}
	defer rows.Close()

	var gaps []domain.Range
	for rows.Next() {
		var gap struct {
			GapStart int64 `db:"gap_start"`
			GapEnd   int64 `db:"gap_end"`
		}
		if err := rows.StructScan(&gap); err != nil {
			return nil, err
		}
		gaps = append(gaps, domain.Range{Start: uint64(gap.GapStart), End: uint64(gap.GapEnd)})
	}
	return gaps, rows.Err()
}

func nullableUint(v *uint64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullableString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
