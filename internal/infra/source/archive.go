package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
)

// ArchiveClient reads the historical bulk source. Unlike the live path
// it queries whole ranges at once; the backfill job bounds peak memory
// by keeping its chunks small.
type ArchiveClient struct {
	endpoint    string
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
}

// NewArchiveClient creates a client for the bulk block export endpoint.
func NewArchiveClient(endpoint string, timeout time.Duration) *ArchiveClient {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &ArchiveClient{
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: 4,
		baseDelay:   2 * time.Second,
	}
}

// QueryRange fetches every record in the inclusive range. The archive
// may legitimately return fewer rows than the range spans: it only has
// what it has, and over-asking is harmless because writes are upserts.
func (c *ArchiveClient) QueryRange(ctx context.Context, r domain.Range) ([]*domain.BlockRecord, error) {
	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1),
		retry.WithJitterPercent(20, retry.NewExponential(c.baseDelay)))

	var records []*domain.BlockRecord
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		recs, err := c.queryOnce(ctx, r)
		if err != nil {
			if isPermanent(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		records = recs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive query %s: %w", r, err)
	}
	return records, nil
}

func (c *ArchiveClient) queryOnce(ctx context.Context, r domain.Range) ([]*domain.BlockRecord, error) {
	url := fmt.Sprintf("%s/blocks?start=%d&end=%d", c.endpoint, r.Start, r.End)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, &permanentError{fmt.Errorf("http %d: %s", resp.StatusCode, string(body))}
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var rows []archiveBlock
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &permanentError{fmt.Errorf("%w: %v", domain.ErrMalformed, err)}
	}

	records := make([]*domain.BlockRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toRecord())
	}
	return records, nil
}

// archiveBlock mirrors the bulk export row format (decimal quantities).
type archiveBlock struct {
	Number           uint64    `json:"number"`
	Timestamp        time.Time `json:"timestamp"`
	GasLimit         uint64    `json:"gas_limit"`
	GasUsed          uint64    `json:"gas_used"`
	BaseFeePerGas    *uint64   `json:"base_fee_per_gas"`
	TransactionCount int       `json:"transaction_count"`
	Difficulty       uint64    `json:"difficulty"`
	TotalDifficulty  *string   `json:"total_difficulty"`
	Size             uint64    `json:"size"`
	BlobGasUsed      *uint64   `json:"blob_gas_used"`
	ExcessBlobGas    *uint64   `json:"excess_blob_gas"`
}

func (b *archiveBlock) toRecord() *domain.BlockRecord {
	return &domain.BlockRecord{
		Number:           b.Number,
		Timestamp:        b.Timestamp.UTC(),
		GasLimit:         b.GasLimit,
		GasUsed:          b.GasUsed,
		BaseFeePerGas:    b.BaseFeePerGas,
		TransactionCount: b.TransactionCount,
		Difficulty:       b.Difficulty,
		TotalDifficulty:  b.TotalDifficulty,
		Size:             b.Size,
		BlobGasUsed:      b.BlobGasUsed,
		ExcessBlobGas:    b.ExcessBlobGas,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
