package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
	"github.com/terrylica/gapless-network-data/internal/metrics"
)

// Fetcher retrieves full block records over JSON-RPC. The live stream
// only carries a stub per block, so every notification costs one fetch.
//
// Transient failures (network errors, 5xx, block not yet served) are
// retried with exponential backoff and jitter up to MaxAttempts.
// Malformed responses are never retried.
type Fetcher struct {
	endpoint    string
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// FetcherConfig holds fetch tuning. Zero values fall back to defaults.
type FetcherConfig struct {
	Endpoint    string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewFetcher creates a fetcher against a JSON-RPC HTTP endpoint.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	return &Fetcher{
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
	}
}

// Fetch retrieves the full record for one block number.
func (f *Fetcher) Fetch(ctx context.Context, number uint64) (*domain.BlockRecord, error) {
	backoff := retry.WithMaxRetries(uint64(f.maxAttempts-1),
		retry.WithJitterPercent(20,
			retry.WithCappedDuration(f.maxDelay,
				retry.NewExponential(f.baseDelay))))

	var record *domain.BlockRecord
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		rec, err := f.fetchOnce(ctx, number)
		if err != nil {
			if errors.Is(err, domain.ErrMalformed) {
				return err // retrying cannot fix the shape
			}
			return retry.RetryableError(err)
		}
		record = rec
		return nil
	})
	if err != nil {
		kind := "transient"
		if errors.Is(err, domain.ErrMalformed) {
			kind = "malformed"
		}
		metrics.FetchFailures.WithLabelValues(kind).Inc()
		return nil, fmt.Errorf("fetch block %d: %w", number, err)
	}
	return record, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, number uint64) (*domain.BlockRecord, error) {
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  "eth_getBlockByNumber",
		"params":  []any{hexUint(number), false},
		"id":      1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformed, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		// Announced but not yet served by this endpoint.
		return nil, domain.ErrNotFound
	}

	var raw rpcBlock
	if err := json.Unmarshal(rpcResp.Result, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformed, err)
	}
	return raw.toRecord()
}

// rpcBlock mirrors the eth_getBlockByNumber result with hex quantities.
type rpcBlock struct {
	Number          string            `json:"number"`
	Timestamp       string            `json:"timestamp"`
	GasLimit        string            `json:"gasLimit"`
	GasUsed         string            `json:"gasUsed"`
	BaseFeePerGas   string            `json:"baseFeePerGas"`
	Transactions    []json.RawMessage `json:"transactions"`
	Difficulty      string            `json:"difficulty"`
	TotalDifficulty string            `json:"totalDifficulty"`
	Size            string            `json:"size"`
	BlobGasUsed     string            `json:"blobGasUsed"`
	ExcessBlobGas   string            `json:"excessBlobGas"`
}

func (b *rpcBlock) toRecord() (*domain.BlockRecord, error) {
	number, err := requiredHex("number", b.Number)
	if err != nil {
		return nil, err
	}
	tsUnix, err := requiredHex("timestamp", b.Timestamp)
	if err != nil {
		return nil, err
	}
	gasLimit, err := requiredHex("gasLimit", b.GasLimit)
	if err != nil {
		return nil, err
	}
	gasUsed, err := requiredHex("gasUsed", b.GasUsed)
	if err != nil {
		return nil, err
	}

	rec := &domain.BlockRecord{
		Number:           number,
		Timestamp:        time.Unix(int64(tsUnix), 0).UTC(),
		GasLimit:         gasLimit,
		GasUsed:          gasUsed,
		TransactionCount: len(b.Transactions),
	}

	// Optional fields are nil before their fork activation heights.
	// That is a source-schema fact, not an error.
	if rec.BaseFeePerGas, err = optionalHex("baseFeePerGas", b.BaseFeePerGas); err != nil {
		return nil, err
	}
	if b.Difficulty != "" {
		if rec.Difficulty, err = requiredHex("difficulty", b.Difficulty); err != nil {
			return nil, err
		}
	}
	if b.TotalDifficulty != "" {
		td, err := hexBigString(b.TotalDifficulty)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", domain.ErrMalformed, "totalDifficulty", err)
		}
		rec.TotalDifficulty = &td
	}
	if b.Size != "" {
		if rec.Size, err = requiredHex("size", b.Size); err != nil {
			return nil, err
		}
	}
	if rec.BlobGasUsed, err = optionalHex("blobGasUsed", b.BlobGasUsed); err != nil {
		return nil, err
	}
	if rec.ExcessBlobGas, err = optionalHex("excessBlobGas", b.ExcessBlobGas); err != nil {
		return nil, err
	}

	return rec, nil
}

func requiredHex(field, value string) (uint64, error) {
	if value == "" {
		return 0, fmt.Errorf("%w: missing field %q", domain.ErrMalformed, field)
	}
	n, err := hexUint64(value)
	if err != nil {
		return 0, fmt.Errorf("%w: field %q: %v", domain.ErrMalformed, field, err)
	}
	return n, nil
}

func optionalHex(field, value string) (*uint64, error) {
	if value == "" {
		return nil, nil
	}
	n, err := hexUint64(value)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", domain.ErrMalformed, field, err)
	}
	return &n, nil
}

func hexUint64(s string) (uint64, error) {
	if !strings.HasPrefix(s, "0x") {
		return 0, fmt.Errorf("not a hex quantity: %q", s)
	}
	return strconv.ParseUint(s[2:], 16, 64)
}

func hexBigString(s string) (string, error) {
	if !strings.HasPrefix(s, "0x") {
		return "", fmt.Errorf("not a hex quantity: %q", s)
	}
	n, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		return "", fmt.Errorf("not a hex quantity: %q", s)
	}
	return n.String(), nil
}

func hexUint(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}
