package alert

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Heartbeat pings a dead-man's-switch endpoint (Healthchecks.io style).
// If the process stops pinging, the monitoring side raises the alarm:
// the inverse of push alerting, which goes quiet exactly when the
// process dies.
type Heartbeat struct {
	pingURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewHeartbeat(pingURL string, log *slog.Logger) *Heartbeat {
	return &Heartbeat{
		pingURL:    pingURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Ping reports liveness. healthy=false hits the /fail endpoint so the
// monitor distinguishes "running but unhealthy" from "gone".
func (h *Heartbeat) Ping(ctx context.Context, healthy bool, diagnostic string) {
	if h.pingURL == "" {
		return
	}

	url := h.pingURL
	if !healthy {
		url += "/fail"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(diagnostic))
	if err != nil {
		h.log.Warn("heartbeat request build failed", "error", err)
		return
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.log.Warn("heartbeat ping failed", "error", err)
		return
	}
	resp.Body.Close()
}

// Run pings on a fixed interval until the context is cancelled.
func (h *Heartbeat) Run(ctx context.Context, interval time.Duration) {
	if h.pingURL == "" {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.Ping(ctx, true, "started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Ping(ctx, true, "alive")
		}
	}
}
