package alert

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const pushoverAPI = "https://api.pushover.net/1/messages.json"

// Pushover priority levels. Emergency requires acknowledgment and keeps
// re-notifying until acknowledged or expired.
const (
	priorityNormal    = "0"
	priorityEmergency = "2"
)

// PushoverSink sends notifications through the Pushover API. Critical
// notifications use emergency priority with retry/expire.
type PushoverSink struct {
	token      string
	user       string
	api        string
	httpClient *http.Client
	log        *slog.Logger
}

func NewPushoverSink(token, user string, log *slog.Logger) *PushoverSink {
	return &PushoverSink{
		token:      token,
		user:       user,
		api:        pushoverAPI,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (s *PushoverSink) Notify(ctx context.Context, severity Severity, title, message string) {
	// Each notification carries a unique id so duplicates can be traced
	// back to a single emission.
	id := uuid.New().String()

	form := url.Values{}
	form.Set("token", s.token)
	form.Set("user", s.user)
	form.Set("title", title)
	form.Set("message", message+"\n\nid: "+id)

	if severity == SeverityCritical {
		form.Set("priority", priorityEmergency)
		form.Set("retry", "60")
		form.Set("expire", "3600")
	} else {
		form.Set("priority", priorityNormal)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.api, strings.NewReader(form.Encode()))
	if err != nil {
		s.log.Warn("pushover request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Warn("pushover delivery failed", "title", title, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Warn("pushover delivery rejected", "title", title, "status", resp.StatusCode)
		return
	}
	s.log.Debug("pushover notification sent", "title", title, "id", id)
}
