package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the daemon's instruments.
type Metrics struct {
	RequestDuration     metric.Float64Histogram
	FeaturesCreated     metric.Int64Counter
	FeaturesSkipped     metric.Int64Counter
	StatusChanges       metric.Int64Counter
	ProgressRuns        metric.Int64Counter
	NotificationsSent   metric.Int64Counter
	NotificationsFailed metric.Int64Counter
}

// NewMetrics creates every instrument from meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RequestDuration, err = meter.Float64Histogram("backlog.http.duration",
		metric.WithDescription("API request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.FeaturesCreated, err = meter.Int64Counter("backlog.features.created",
		metric.WithDescription("Features added to the backlog"),
	)
	if err != nil {
		return nil, err
	}

	m.FeaturesSkipped, err = meter.Int64Counter("backlog.features.skipped",
		metric.WithDescription("Features moved to the end of the queue"),
	)
	if err != nil {
		return nil, err
	}

	m.StatusChanges, err = meter.Int64Counter("backlog.features.status_changes",
		metric.WithDescription("Pass/fail updates applied"),
	)
	if err != nil {
		return nil, err
	}

	m.ProgressRuns, err = meter.Int64Counter("backlog.progress.runs",
		metric.WithDescription("Progress cycles by outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.NotificationsSent, err = meter.Int64Counter("backlog.notifications.sent",
		metric.WithDescription("Progress notifications delivered"),
	)
	if err != nil {
		return nil, err
	}

	m.NotificationsFailed, err = meter.Int64Counter("backlog.notifications.failed",
		metric.WithDescription("Progress notifications that could not be delivered"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(ctx context.Context, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		AttrRoute.String(route),
		AttrStatus.Int(status),
	))
}

// ObserveProgress counts a progress cycle by outcome ("error" on failure).
func (m *Metrics) ObserveProgress(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.ProgressRuns.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}

// ObserveDelivery counts a notification attempt. It matches
// notifications.Observer so it can be passed to WithObserver directly.
func (m *Metrics) ObserveDelivery(ctx context.Context, err error, _ time.Duration) {
	if m == nil {
		return
	}
	if err != nil {
		m.NotificationsFailed.Add(ctx, 1)
		return
	}
	m.NotificationsSent.Add(ctx, 1)
}

// AddCreated counts n new features.
func (m *Metrics) AddCreated(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FeaturesCreated.Add(ctx, int64(n))
}

// AddSkipped counts one skip.
func (m *Metrics) AddSkipped(ctx context.Context) {
	if m == nil {
		return
	}
	m.FeaturesSkipped.Add(ctx, 1)
}

// AddStatusChange counts one pass/fail update.
func (m *Metrics) AddStatusChange(ctx context.Context, passes bool) {
	if m == nil {
		return
	}
	m.StatusChanges.Add(ctx, 1, metric.WithAttributes(attribute.Bool("backlog.passes", passes)))
}
