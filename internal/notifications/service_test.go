package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feltsync/internal/config"
	"feltsync/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyCycleCompleted(context.Background(), 3, 2, 0, time.Minute); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsCycleSummary(t *testing.T) {
	var (
		gotTitle   string
		gotBody    string
		gotTags    string
		gotCalls   int
		gotMethods []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotTitle = r.Header.Get("Title")
		gotBody = string(body)
		gotTags = r.Header.Get("Tags")
		gotCalls++
		gotMethods = append(gotMethods, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.CycleSummary = true
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyCycleCompleted(context.Background(), 5, 3, 0, 90*time.Second); err != nil {
		t.Fatalf("notify cycle completed: %v", err)
	}
	if gotTitle != "Feltsync - Cycle Complete" {
		t.Fatalf("unexpected title: %q", gotTitle)
	}
	if gotBody != "Sync complete: 5 pulled, 3 pushed in 1m30s" {
		t.Fatalf("unexpected body: %q", gotBody)
	}
	if gotTags != "feltsync,cycle,completed" {
		t.Fatalf("unexpected tags: %q", gotTags)
	}

	if err := svc.NotifyCycleCompleted(context.Background(), 5, 3, 2, 10*time.Second); err != nil {
		t.Fatalf("notify cycle completed with errors: %v", err)
	}
	if gotTitle != "Feltsync - Cycle Complete (with errors)" {
		t.Fatalf("unexpected title: %q", gotTitle)
	}
	if gotBody != "Sync complete: 5 pulled, 3 pushed, 2 failed in 10s" {
		t.Fatalf("unexpected body: %q", gotBody)
	}

	if gotCalls != 2 {
		t.Fatalf("expected 2 calls, got %d", gotCalls)
	}
	for _, m := range gotMethods {
		if m != http.MethodPost {
			t.Fatalf("expected POST, got %s", m)
		}
	}
}

func TestNtfyServiceFormatsErrors(t *testing.T) {
	var gotBody, gotPriority string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotPriority = r.Header.Get("Priority")
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyError(context.Background(), errors.New("remote unreachable"), "sync cycle"); err != nil {
		t.Fatalf("notify error: %v", err)
	}
	if gotBody != "Sync error with sync cycle: remote unreachable" {
		t.Fatalf("unexpected body: %q", gotBody)
	}
	if gotPriority != "high" {
		t.Fatalf("expected high priority, got %q", gotPriority)
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.CycleSummary = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyCycleCompleted(context.Background(), 1, 1, 0, time.Second); err != nil {
		t.Fatalf("notify cycle completed: %v", err)
	}
	if err := svc.NotifyError(context.Background(), errors.New("boom"), ""); err != nil {
		t.Fatalf("notify error: %v", err)
	}
	if calls != 0 {
		t.Fatalf("disabled notifications must not call ntfy, got %d calls", calls)
	}
}

func TestNtfyServiceSurfacesHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic not found", http.StatusNotFound)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
