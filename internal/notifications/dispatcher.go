package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"backlog/internal/logging"
)

const defaultDispatchTimeout = 5 * time.Second

// Observer receives the outcome of each delivery attempt.
type Observer func(ctx context.Context, err error, elapsed time.Duration)

// Dispatcher delivers events in the background. A failed delivery is logged
// and dropped; the event is not retried.
type Dispatcher struct {
	svc     Service
	timeout time.Duration
	logger  *slog.Logger
	observe Observer

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithObserver registers fn to be called after every delivery attempt.
func WithObserver(fn Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observe = fn }
}

// NewDispatcher wraps svc. timeout bounds each delivery; zero uses 5s.
func NewDispatcher(svc Service, timeout time.Duration, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if svc == nil {
		svc = noopService{}
	}
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	d := &Dispatcher{
		svc:     svc,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "notifier"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch queues event for delivery and returns immediately. Values carried
// by ctx (request ids, trace spans) are kept but its cancellation is not, so
// delivery outlives the request that produced the event. It reports false
// once the dispatcher has been closed.
func (d *Dispatcher) Dispatch(ctx context.Context, event ProgressEvent) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer d.wg.Done()
		d.deliver(context.WithoutCancel(ctx), event)
	}()
	return true
}

func (d *Dispatcher) deliver(ctx context.Context, event ProgressEvent) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := d.svc.NotifyProgress(ctx, event)
	elapsed := time.Since(start)
	if d.observe != nil {
		d.observe(ctx, err, elapsed)
	}

	logger := logging.WithContext(ctx, d.logger)
	if err != nil {
		logging.WarnWithContext(logger, "progress notification failed", "notification_failed",
			logging.Error(err),
			logging.Int("passing", event.Passing),
			logging.Int("total", event.Total),
			logging.String(logging.FieldErrorHint, "check notifications.webhook_url / ntfy_topic reachability"),
			logging.String(logging.FieldImpact, "this progress update will not be resent"),
		)
		return
	}
	logger.Info("progress notification sent",
		logging.String(logging.FieldEventType, "notification_sent"),
		logging.Int("passing", event.Passing),
		logging.Int("total", event.Total),
		logging.Int("new", event.CompletedThisSession),
		logging.Duration("elapsed", elapsed),
	)
}

// Wait blocks until every dispatched delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting events and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
