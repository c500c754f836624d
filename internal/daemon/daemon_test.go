package daemon_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"backlog/internal/daemon"
	"backlog/internal/progress"
	"backlog/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running || status.APIAddress == "" {
		t.Fatalf("unexpected status %+v", status)
	}

	resp, err := http.Get("http://" + d.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
	if d.Addr() != "" {
		t.Fatalf("listener should be closed after Stop")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { first.Close() })
	second, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("second daemon should not acquire the lock")
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
	second.Stop()
}

func TestDaemonRejectsInvalidSchedule(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSchedule("every now and then"))
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected invalid schedule to fail Start")
	}
	if d.Status().Running {
		t.Fatal("daemon must not report running after a failed start")
	}
}

func TestDaemonScheduledProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSchedule("@every 1s"))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewFeature(t, store, 1)

	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(cfg.CheckpointPath()); err == nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("scheduled progress check never wrote %s", cfg.CheckpointPath())
}

func newCountingSink(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestDaemonRunOnStartDeliversBeforeClose(t *testing.T) {
	sink, hits := newCountingSink(t)
	cfg := testsupport.NewConfig(t, testsupport.WithWebhook(sink.URL), testsupport.WithRunOnStart())
	store := testsupport.MustOpenStore(t, cfg)
	f := testsupport.NewFeature(t, store, 1)
	testsupport.NewFeature(t, store, 2)
	testsupport.MarkPassing(t, store, f.ID)

	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	d.Close()

	if hits.Load() != 1 {
		t.Fatalf("expected one startup notification, got %d", hits.Load())
	}
	snap, err := progress.NewFileCheckpoint(cfg.CheckpointPath()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load checkpoint: %v", err)
	}
	if snap.Count != 1 {
		t.Fatalf("checkpoint count = %d, want 1", snap.Count)
	}
}

func TestDaemonStopJoinsStartupCycle(t *testing.T) {
	sink, hits := newCountingSink(t)
	cfg := testsupport.NewConfig(t, testsupport.WithWebhook(sink.URL), testsupport.WithRunOnStart())
	store := testsupport.MustOpenStore(t, cfg)
	f := testsupport.NewFeature(t, store, 1)
	testsupport.MarkPassing(t, store, f.ID)

	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Close()
	// The caller closes the store right after Close in production.
	if err := store.Close(); err != nil {
		t.Fatalf("store.Close: %v", err)
	}

	// Whether the cycle finished or was cancelled, a committed checkpoint
	// must have been delivered before Close returned.
	_, statErr := os.Stat(cfg.CheckpointPath())
	committed := statErr == nil
	if committed && hits.Load() != 1 {
		t.Fatalf("checkpoint committed but %d notifications delivered", hits.Load())
	}
	if !committed && hits.Load() != 0 {
		t.Fatalf("notification delivered without a checkpoint")
	}
}
