package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"backlog/internal/api"
	"backlog/internal/config"
	"backlog/internal/features"
	"backlog/internal/logging"
	"backlog/internal/notifications"
	"backlog/internal/progress"
	"backlog/internal/telemetry"
)

// Daemon owns the store, the API server and the progress scheduler, and
// enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *features.Store
	notifier   notifications.Service
	dispatcher *notifications.Dispatcher
	engine     *progress.Engine
	telemetry  *telemetry.Provider
	validator  *api.Validator

	lockPath string
	lock     *flock.Flock

	api       *apiServer
	scheduler *scheduler

	mu         sync.Mutex
	running    atomic.Bool
	cancel     context.CancelFunc
	background sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	APIAddress     string
	DatabasePath   string
	CheckpointPath string
	LockFilePath   string
	Schedule       string
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithTelemetry instruments the daemon with p.
func WithTelemetry(p *telemetry.Provider) Option {
	return func(d *Daemon) {
		if p != nil {
			d.telemetry = p
		}
	}
}

// WithNotifier overrides the notification service built from config.
func WithNotifier(svc notifications.Service) Option {
	return func(d *Daemon) {
		if svc != nil {
			d.notifier = svc
		}
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *features.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	validator, err := api.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("load request schemas: %w", err)
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		telemetry: telemetry.Disabled(),
		validator: validator,
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	d.dispatcher = notifications.NewDispatcher(d.notifier, timeout, logger,
		notifications.WithObserver(d.telemetry.Metrics.ObserveDelivery))
	d.engine = progress.NewEngine(store, progress.NewFileCheckpoint(cfg.CheckpointPath()), d.dispatcher, cfg.Project.Name,
		progress.WithLogger(logger),
		progress.WithTracer(d.telemetry.Tracer),
	)
	d.api = newAPIServer(cfg, d, logger)
	d.scheduler = newScheduler(cfg.Progress.Schedule, d.RunProgress, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the API server and the progress
// scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another backlog daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	if err := d.scheduler.start(runCtx); err != nil {
		cancel()
		d.api.stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start progress scheduler: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)

	if d.cfg.Progress.RunOnStart {
		d.background.Go(func() {
			_, _ = d.RunProgress(runCtx)
		})
	}

	d.logger.Info("backlog daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.String("schedule", d.cfg.Progress.Schedule),
	)
	return nil
}

// Stop stops background work and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.scheduler.stop()
	d.api.stop()
	d.background.Wait()
	d.dispatcher.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("backlog daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and drains pending notifications. The store is
// owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	d.dispatcher.Close()
	return nil
}

// RunProgress runs one progress cycle and records its outcome.
func (d *Daemon) RunProgress(ctx context.Context) (progress.Result, error) {
	result, err := d.engine.Run(ctx)
	if err != nil {
		d.telemetry.Metrics.ObserveProgress(ctx, "error")
		logging.ErrorWithContext(logging.WithContext(ctx, d.logger), "progress check failed", "progress_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access and the checkpoint directory"),
		)
		return progress.Result{}, err
	}
	d.telemetry.Metrics.ObserveProgress(ctx, string(result.Outcome))
	return result, nil
}

// TestNotification sends a test message through the configured sinks.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if !notifications.Configured(d.notifier) {
		return false, "no notification sinks configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Addr returns the address the API server listens on, or "" before Start.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:        d.running.Load(),
		APIAddress:     d.api.address(),
		DatabasePath:   d.store.Path(),
		CheckpointPath: d.cfg.CheckpointPath(),
		LockFilePath:   d.lockPath,
		Schedule:       d.cfg.Progress.Schedule,
	}
}
