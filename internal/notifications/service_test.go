package notifications_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"backlog/internal/config"
	"backlog/internal/notifications"
)

func sampleEvent() notifications.ProgressEvent {
	return notifications.ProgressEvent{
		Passing:              4,
		Total:                10,
		Percentage:           40,
		PreviousPassing:      2,
		CompletedThisSession: 2,
		CompletedTests:       []string{"auth login", "logout"},
		Project:              "demo",
		Timestamp:            time.Date(2025, 3, 4, 5, 6, 7, 123456000, time.UTC),
	}
}

func TestNewServiceReturnsNoopWhenNothingConfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.WebhookURL = ""
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if notifications.Configured(svc) {
		t.Fatal("expected noop service")
	}
	if err := svc.NotifyProgress(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestWebhookPostsSingleElementArray(t *testing.T) {
	var (
		body        []byte
		contentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Notifications.WebhookURL = srv.URL
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyProgress(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("NotifyProgress: %v", err)
	}

	if contentType != "application/json" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	var items []map[string]any
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatalf("body is not a JSON array: %v (%s)", err, body)
	}
	if len(items) != 1 {
		t.Fatalf("expected one element, got %d", len(items))
	}
	got := items[0]
	expect := map[string]any{
		"event":                        "test_progress",
		"passing":                      float64(4),
		"total":                        float64(10),
		"percentage":                   float64(40),
		"previous_passing":             float64(2),
		"tests_completed_this_session": float64(2),
		"project":                      "demo",
		"timestamp":                    "2025-03-04T05:06:07.123456Z",
	}
	for key, want := range expect {
		if got[key] != want {
			t.Fatalf("%s = %v, want %v", key, got[key], want)
		}
	}
	completed, ok := got["completed_tests"].([]any)
	if !ok || len(completed) != 2 || completed[0] != "auth login" {
		t.Fatalf("unexpected completed_tests: %v", got["completed_tests"])
	}
}

func TestWebhookEmitsEmptyCompletedList(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Notifications.WebhookURL = srv.URL
	event := sampleEvent()
	event.CompletedTests = nil
	if err := notifications.NewService(&cfg).NotifyProgress(context.Background(), event); err != nil {
		t.Fatalf("NotifyProgress: %v", err)
	}
	if !strings.Contains(string(body), `"completed_tests":[]`) {
		t.Fatalf("expected empty array, got %s", body)
	}
}

func TestNtfyFormatsProgress(t *testing.T) {
	var (
		title, tags, priority string
		message               string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = r.Header.Get("Title")
		tags = r.Header.Get("Tags")
		priority = r.Header.Get("Priority")
		data, _ := io.ReadAll(r.Body)
		message = string(data)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyProgress(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("NotifyProgress: %v", err)
	}
	if title != "demo - Progress" {
		t.Fatalf("unexpected title %q", title)
	}
	if tags != "backlog,progress" {
		t.Fatalf("unexpected tags %q", tags)
	}
	if priority != "" {
		t.Fatalf("unexpected priority %q", priority)
	}
	if !strings.Contains(message, "4/10 tests passing (40.0%)") || !strings.Contains(message, "• auth login") {
		t.Fatalf("unexpected message %q", message)
	}

	done := sampleEvent()
	done.Passing = 10
	if err := svc.NotifyProgress(context.Background(), done); err != nil {
		t.Fatalf("NotifyProgress: %v", err)
	}
	if priority != "high" || !strings.Contains(tags, "complete") {
		t.Fatalf("expected completion to raise priority, got %q / %q", priority, tags)
	}
}

func TestMultiServiceReportsSinkFailures(t *testing.T) {
	var hits atomic.Int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer ok.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer failing.Close()

	cfg := config.Default()
	cfg.Notifications.WebhookURL = failing.URL
	cfg.Notifications.NtfyTopic = ok.URL
	err := notifications.NewService(&cfg).NotifyProgress(context.Background(), sampleEvent())
	if err == nil || !strings.Contains(err.Error(), "webhook returned 502") {
		t.Fatalf("expected webhook failure, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected ntfy to still be called, hits=%d", hits.Load())
	}
}

func TestProgressDisabledSuppressesProgressOnly(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Notifications.WebhookURL = srv.URL
	cfg.Notifications.Progress = false
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyProgress(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("NotifyProgress: %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected progress suppressed, hits=%d", hits.Load())
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected test notification delivered, hits=%d", hits.Load())
	}
}
