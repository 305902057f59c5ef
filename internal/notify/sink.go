// Package notify implements the Notification Sink (C15): best-effort
// delivery of terminal pipeline events and security incidents to an
// external transport; notification transports are treated as external
// collaborators, out of scope for anything beyond the interface.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
)

// Event is the payload shape every sink receives: a terminal pipeline
// outcome or a security incident, normalised to one envelope.
type Event struct {
	Kind      string         `json:"event"`
	Account   string         `json:"account,omitempty"`
	Severity  model.Severity `json:"severity"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink delivers an Event. Implementations must never block the caller past
// their own configured timeout and must never return an error the pipeline
// needs to act on; a send failure is logged and swallowed at the call
// site, never propagated.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// NoopSink discards every event; used when notifications.transport="noop" or
// no webhook URL is configured.
type NoopSink struct{}

func (NoopSink) Notify(ctx context.Context, ev Event) error { return nil }

// WebhookSink posts the event as JSON to a single webhook URL with a fixed
// per-call timeout, independent of the caller's context deadline so a slow
// webhook never holds up the pipeline beyond its own budget.
type WebhookSink struct {
	URL        string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewWebhookSink returns a WebhookSink with sane defaults.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{URL: url, HTTPClient: &http.Client{}, Timeout: 10 * time.Second}
}

func (s *WebhookSink) Notify(ctx context.Context, ev Event) error {
	if s.URL == "" {
		return fmt.Errorf("notify: webhook sink has no URL configured")
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned %s", resp.Status)
	}
	return nil
}

// Emit is the call site every collaborator uses: it never returns an error
// the caller must check, logging failures through logf instead, per the
// NotificationError swallow-at-call-site policy.
func Emit(sink Sink, logf func(format string, args ...any), ev Event) {
	if sink == nil {
		sink = NoopSink{}
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := sink.Notify(ctx, ev); err != nil {
		logf("notify: delivery failed: %s", Mask(err.Error()))
	}
}

var secretLike = regexp.MustCompile(`(?i)("?(?:token|password|secret|authorization|cookie)"?\s*[:=]\s*"?)([^",}\s]{4,})`)

// Mask redacts anything that looks like a credential before it reaches a log
// line or an outbound notification, so a webhook delivery failure never
// leaks the token it was trying to report on.
func Mask(s string) string {
	return secretLike.ReplaceAllString(s, "$1<redacted>")
}
