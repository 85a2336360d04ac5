package domain

import (
	"sort"
	"time"
)

// GapReport is the output of one consistency scan over the record store.
// It is ephemeral: callers decide whether to alert, track or persist it.
type GapReport struct {
	// Gaps holds every missing range, ascending by start.
	Gaps []Range

	TotalExpected uint64 // max - min + 1 over the observed range
	TotalActual   uint64 // count of stored records

	LatestNumber    uint64
	LatestTimestamp time.Time

	// Age is how far LatestTimestamp lags behind scan time.
	Age   time.Duration
	Stale bool

	ScannedAt time.Time
}

// MissingTotal returns the number of missing records across all gaps.
func (r *GapReport) MissingTotal() uint64 {
	return r.TotalExpected - r.TotalActual
}

// Complete reports whether the observed range has no holes.
func (r *GapReport) Complete() bool {
	return len(r.Gaps) == 0
}

// TopN returns the n largest gaps by size, largest first. The report's
// own ordering (ascending by start) is left untouched.
func (r *GapReport) TopN(n int) []Range {
	top := make([]Range, len(r.Gaps))
	copy(top, r.Gaps)
	sort.Slice(top, func(i, j int) bool {
		if top[i].Size() != top[j].Size() {
			return top[i].Size() > top[j].Size()
		}
		return top[i].Start < top[j].Start
	})
	if n > 0 && len(top) > n {
		top = top[:n]
	}
	return top
}
