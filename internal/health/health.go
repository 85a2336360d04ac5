// Package health exposes liveness and readiness endpoints for the
// collector alongside the Prometheus metrics handler.
package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the health state of the system or a component.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Component is the health of one dependency.
type Component struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
	Required bool   `json:"required"`
}

// Report is the full system health report.
type Report struct {
	Status     Status      `json:"status"`
	Components []Component `json:"components"`
	CheckedAt  time.Time   `json:"checked_at"`
}

type check struct {
	name     string
	fn       CheckFunc
	required bool
}

// Monitor runs registered checks on demand. A failing required check makes
// the system critical; a failing optional one only degrades it.
type Monitor struct {
	mu      sync.Mutex
	checks  []check
	timeout time.Duration
}

// NewMonitor creates a monitor with a per-check timeout.
func NewMonitor(timeout time.Duration) *Monitor {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Monitor{timeout: timeout}
}

// Register adds a named check.
func (m *Monitor) Register(name string, required bool, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, check{name: name, fn: fn, required: required})
}

// Check runs all registered checks and aggregates the worst outcome.
func (m *Monitor) Check(ctx context.Context) Report {
	m.mu.Lock()
	checks := make([]check, len(m.checks))
	copy(checks, m.checks)
	m.mu.Unlock()

	report := Report{
		Status:    StatusHealthy,
		CheckedAt: time.Now().UTC(),
	}

	for _, c := range checks {
		comp := Component{Name: c.name, Status: StatusHealthy, Required: c.required}

		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := c.fn(checkCtx)
		cancel()

		if err != nil {
			comp.Error = err.Error()
			if c.required {
				comp.Status = StatusCritical
				report.Status = StatusCritical
			} else {
				comp.Status = StatusDegraded
				if report.Status == StatusHealthy {
					report.Status = StatusDegraded
				}
			}
		}
		report.Components = append(report.Components, comp)
	}

	return report
}
