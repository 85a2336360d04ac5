// Package alert delivers operator notifications. Sinks are strictly
// fire-and-forget: a failing alert channel must never take ingestion
// down with it, so Notify has no error return and implementations log
// their own delivery failures.
package alert

import (
	"context"
	"log/slog"
)

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Sink receives notifications.
type Sink interface {
	Notify(ctx context.Context, severity Severity, title, message string)
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(ctx context.Context, severity Severity, title, message string) {
	switch severity {
	case SeverityCritical:
		s.log.Error(title, "detail", message)
	case SeverityWarning:
		s.log.Warn(title, "detail", message)
	default:
		s.log.Info(title, "detail", message)
	}
}

// MultiSink fans one notification out to several sinks.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, severity Severity, title, message string) {
	for _, s := range m {
		s.Notify(ctx, severity, title, message)
	}
}
