package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested block does not exist upstream yet.
	// Treated as transient: the live source announces blocks slightly
	// before every fetch endpoint can serve them.
	ErrNotFound = errors.New("block not found upstream")

	// ErrMalformed means the upstream response had an unexpected shape
	// or was missing a required field. Never retried.
	ErrMalformed = errors.New("malformed response")
)

// FlushError reports a failed primary write together with the exact key
// range that was dropped, so an operator or the gap scanner can recover it.
type FlushError struct {
	From  uint64
	To    uint64
	Count int
	Err   error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush of %d records (blocks %d-%d) failed: %v", e.Count, e.From, e.To, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}
