package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feltsync/internal/config"
)

const userAgent = "Feltsync/0.1.0"

// Service defines the notification surface exposed to the sync engine.
type Service interface {
	NotifyCycleCompleted(ctx context.Context, pulled, pushed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		cycleSummary: cfg.Notifications.CycleSummary,
		errors:       cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	cycleSummary bool
	errors       bool
}

func (n *ntfyService) NotifyCycleCompleted(ctx context.Context, pulled, pushed, failed int, duration time.Duration) error {
	if !n.cycleSummary {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "Feltsync - Cycle Complete"
		message = fmt.Sprintf("Sync complete: %d pulled, %d pushed in %s", pulled, pushed, durationText)
	} else {
		title = "Feltsync - Cycle Complete (with errors)"
		message = fmt.Sprintf("Sync complete: %d pulled, %d pushed, %d failed in %s", pulled, pushed, failed, durationText)
	}

	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"feltsync", "cycle", "completed"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Sync error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "Feltsync - Error",
		message:  builder.String(),
		tags:     []string{"feltsync", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Feltsync - Test",
		message:  "Notification system test",
		tags:     []string{"feltsync", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyCycleCompleted(context.Context, int, int, int, time.Duration) error {
	return nil
}

func (noopService) NotifyError(context.Context, error, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
