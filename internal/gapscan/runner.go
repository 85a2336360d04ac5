package gapscan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
	"github.com/terrylica/gapless-network-data/internal/infra/alert"
)

// BackfillQueue receives ranges that are too large (or too stubborn)
// for the live path and must be closed from the historical source.
type BackfillQueue interface {
	Push(ctx context.Context, r domain.Range) error
}

// Runner ties one scan together: detect, reconcile tracking state,
// alert, enqueue persistent gaps for backfill, and report liveness.
type Runner struct {
	detector  *Detector
	tracker   *Tracker
	queue     BackfillQueue
	alerts    alert.Sink
	heartbeat *alert.Heartbeat
	topN      int
	log       *slog.Logger
}

func NewRunner(detector *Detector, tracker *Tracker, queue BackfillQueue,
	alerts alert.Sink, heartbeat *alert.Heartbeat, topN int, log *slog.Logger) *Runner {
	if topN == 0 {
		topN = 20
	}
	return &Runner{
		detector:  detector,
		tracker:   tracker,
		queue:     queue,
		alerts:    alerts,
		heartbeat: heartbeat,
		topN:      topN,
		log:       log,
	}
}

// Run executes one scan cycle. healthy means: data fresh and no gap has
// outlived its grace period. A fresh gap alone does not flip health;
// the self-heal paths get their grace window first.
func (r *Runner) Run(ctx context.Context) (report *domain.GapReport, healthy bool, err error) {
	report, err = r.detector.Scan(ctx)
	if err != nil {
		r.heartbeat.Ping(ctx, false, fmt.Sprintf("scan failed: %v", err))
		return nil, false, err
	}

	r.log.Info("scan complete",
		"expected", report.TotalExpected,
		"actual", report.TotalActual,
		"missing", report.MissingTotal(),
		"gaps", len(report.Gaps),
		"latest", report.LatestNumber,
		"age", report.Age,
	)

	outcome, err := r.tracker.Reconcile(ctx, report.Gaps)
	if err != nil {
		r.heartbeat.Ping(ctx, false, fmt.Sprintf("gap tracking failed: %v", err))
		return nil, false, err
	}

	notified := 0
	for _, g := range outcome.Resolved {
		r.alerts.Notify(ctx, alert.SeverityInfo, "gap resolved",
			fmt.Sprintf("blocks %s (%d blocks) filled after first seen %s",
				g.Range(), g.Range().Size(), g.FirstSeen.Format("2006-01-02 15:04:05 MST")))
		notified++
	}
	for _, g := range outcome.Persistent {
		r.alerts.Notify(ctx, alert.SeverityCritical, "persistent gap",
			fmt.Sprintf("blocks %s (%d blocks) missing since %s, queued for backfill",
				g.Range(), g.Range().Size(), g.FirstSeen.Format("2006-01-02 15:04:05 MST")))
		notified++
		if err := r.queue.Push(ctx, g.Range()); err != nil {
			r.log.Error("failed to enqueue gap for backfill", "range", g.Range(), "error", err)
		}
	}
	if report.Stale {
		r.alerts.Notify(ctx, alert.SeverityCritical, "data stale",
			fmt.Sprintf("latest block %d is %s old", report.LatestNumber, report.Age.Round(time.Second)))
		notified++
	}

	healthy = !report.Stale && len(outcome.Persistent) == 0

	if healthy && notified == 0 {
		r.alerts.Notify(ctx, alert.SeverityInfo, "sequence healthy", r.summary(report, outcome))
	}

	r.heartbeat.Ping(ctx, healthy, r.summary(report, outcome))
	return report, healthy, nil
}

func (r *Runner) summary(report *domain.GapReport, outcome *Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "records: %d\n", report.TotalActual)
	fmt.Fprintf(&b, "latest: %d @ %s (age %s)\n",
		report.LatestNumber, report.LatestTimestamp.Format("2006-01-02 15:04:05 MST"), report.Age.Round(time.Second))
	fmt.Fprintf(&b, "missing: %d across %d gaps\n", report.MissingTotal(), len(report.Gaps))
	fmt.Fprintf(&b, "gaps: %d new, %d persistent, %d resolved",
		len(outcome.New), len(outcome.Persistent), len(outcome.Resolved))

	if top := report.TopN(r.topN); len(top) > 0 {
		b.WriteString("\nlargest:")
		for _, g := range top {
			fmt.Fprintf(&b, " %s(%d)", g, g.Size())
		}
	}
	return b.String()
}
