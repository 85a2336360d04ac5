package gapscan

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
)

// TrackedGap is a gap the scanner has seen before, with enough history
// to apply the grace period.
type TrackedGap struct {
	ID        string    `json:"id"`
	Start     uint64    `json:"start"`
	End       uint64    `json:"end"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Notified  bool      `json:"notified"`
}

// Range returns the tracked span.
func (g TrackedGap) Range() domain.Range {
	return domain.Range{Start: g.Start, End: g.End}
}

// GapStore persists tracked gaps between scanner runs.
type GapStore interface {
	List(ctx context.Context) ([]TrackedGap, error)
	Put(ctx context.Context, gap TrackedGap) error
	Delete(ctx context.Context, r domain.Range) error
}

// Outcome partitions one reconciliation.
type Outcome struct {
	// New gaps entered tracking this run. Not alerted yet: the inline
	// backfill and the live stream usually close them on their own.
	New []TrackedGap
	// Persistent gaps outlived the grace period and escalate exactly
	// once each.
	Persistent []TrackedGap
	// Resolved gaps disappeared since the previous run.
	Resolved []TrackedGap
}

// Tracker applies two-tier alerting to scanner results: new gaps are
// recorded silently, gaps that survive the grace period escalate, and
// gaps that close announce their resolution.
type Tracker struct {
	store GapStore
	grace time.Duration
	now   func() time.Time
}

// NewTracker creates a tracker. grace of zero defaults to 30 minutes,
// which is how long the self-healing paths get before a human is paged.
func NewTracker(store GapStore, grace time.Duration) *Tracker {
	if grace == 0 {
		grace = 30 * time.Minute
	}
	return &Tracker{store: store, grace: grace, now: time.Now}
}

// Reconcile compares the gaps found by the current scan against the
// tracked set and updates tracking state.
func (t *Tracker) Reconcile(ctx context.Context, current []domain.Range) (*Outcome, error) {
	tracked, err := t.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := t.now()
	outcome := &Outcome{}

	trackedByRange := make(map[domain.Range]TrackedGap, len(tracked))
	for _, g := range tracked {
		trackedByRange[g.Range()] = g
	}
	currentSet := make(map[domain.Range]struct{}, len(current))
	for _, r := range current {
		currentSet[r] = struct{}{}
	}

	for _, r := range current {
		existing, seen := trackedByRange[r]
		if !seen {
			gap := TrackedGap{
				ID:        uuid.New().String(),
				Start:     r.Start,
				End:       r.End,
				FirstSeen: now,
				LastSeen:  now,
			}
			if err := t.store.Put(ctx, gap); err != nil {
				return nil, err
			}
			outcome.New = append(outcome.New, gap)
			continue
		}

		existing.LastSeen = now
		if !existing.Notified && now.Sub(existing.FirstSeen) > t.grace {
			existing.Notified = true
			outcome.Persistent = append(outcome.Persistent, existing)
		}
		if err := t.store.Put(ctx, existing); err != nil {
			return nil, err
		}
	}

	for _, g := range tracked {
		if _, still := currentSet[g.Range()]; still {
			continue
		}
		if err := t.store.Delete(ctx, g.Range()); err != nil {
			return nil, err
		}
		outcome.Resolved = append(outcome.Resolved, g)
	}

	return outcome, nil
}
