package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bookora/payments/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Notification is the outbound push payload sent to the notification service.
type Notification struct {
	UserID string         `json:"user_id"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   map[string]any `json:"data,omitempty"`
	// URL is the in-app deep link the notification opens.
	URL string `json:"url,omitempty"`
}

// Notifier delivers user-facing notifications. Settlement treats delivery as
// best-effort; failures are logged and never roll back a payment.
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
}

// Tracker forwards analytics events to the event-tracking service.
type Tracker interface {
	Track(ctx context.Context, event string, userID string, props map[string]any) error
}

type httpNotifier struct {
	baseURL string
	httpc   *http.Client
	log     *zap.SugaredLogger
}

func NewNotifier(cfg *config.Config, log *zap.SugaredLogger) Notifier {
	return &httpNotifier{
		baseURL: cfg.Notification.BaseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (n *httpNotifier) Send(ctx context.Context, msg *Notification) error {
	// No base URL configured means notifications are disabled (local dev).
	if n.baseURL == "" {
		n.log.Debugw("notification_skipped", "title", msg.Title, "user_id", msg.UserID)
		return nil
	}
	return postJSON(ctx, n.httpc, n.baseURL+"/v1/notifications", msg)
}

type httpTracker struct {
	baseURL string
	httpc   *http.Client
	log     *zap.SugaredLogger
}

func NewTracker(cfg *config.Config, log *zap.SugaredLogger) Tracker {
	return &httpTracker{
		baseURL: cfg.Analytics.BaseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (t *httpTracker) Track(ctx context.Context, event string, userID string, props map[string]any) error {
	if t.baseURL == "" {
		t.log.Debugw("analytics_event_skipped", "event", event, "user_id", userID)
		return nil
	}
	payload := map[string]any{
		"event":      event,
		"user_id":    userID,
		"properties": props,
	}
	return postJSON(ctx, t.httpc, t.baseURL+"/v1/events", payload)
}

func postJSON(ctx context.Context, httpc *http.Client, url string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("request to %s returned status %d", url, resp.StatusCode)
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(NewNotifier),
	fx.Provide(NewTracker),
)
