package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"backlog/internal/features"
	"backlog/internal/logging"
	"backlog/internal/notifications"
)

// Source reports the current state of the backlog. Both *features.Store and
// the HTTP client satisfy it.
type Source interface {
	Stats(ctx context.Context) (features.Stats, error)
	PassingSet(ctx context.Context) ([]features.PassingFeature, error)
}

// Notifier accepts events for delivery. Delivery itself is not the engine's
// concern; see notifications.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, event notifications.ProgressEvent) bool
}

// Outcome names what a progress cycle did.
type Outcome string

const (
	OutcomeNoFeatures   Outcome = "no_features"
	OutcomeBootstrapped Outcome = "bootstrapped"
	OutcomeUnchanged    Outcome = "unchanged"
	OutcomeNotified     Outcome = "notified"
)

// Result summarizes one cycle.
type Result struct {
	Outcome  Outcome
	Passing  int
	Total    int
	Previous int
	NewIDs   []int64
	// Event is set only when Outcome is OutcomeNotified.
	Event *notifications.ProgressEvent
	// Queued reports whether the notifier accepted the event.
	Queued bool
}

// Engine runs progress cycles against a source and a checkpoint.
type Engine struct {
	source      Source
	checkpoints CheckpointStore
	notifier    Notifier
	project     string

	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTracer wraps each cycle in a span.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine constructs an engine. A nil notifier drops every event.
func NewEngine(source Source, checkpoints CheckpointStore, notifier Notifier, project string, opts ...Option) *Engine {
	e := &Engine{
		source:      source,
		checkpoints: checkpoints,
		notifier:    notifier,
		project:     project,
		tracer:      noop.NewTracerProvider().Tracer("backlog/progress"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "progress")
	return e
}

// Run performs one cycle: read stats, compare with the checkpoint, commit the
// new checkpoint, then queue a notification. Any error leaves the checkpoint
// untouched and nothing queued.
func (e *Engine) Run(ctx context.Context) (result Result, err error) {
	if e == nil || e.source == nil || e.checkpoints == nil {
		return Result{}, errors.New("progress engine is not configured")
	}
	ctx, span := e.tracer.Start(ctx, "progress.run")
	defer func() {
		span.SetAttributes(
			attribute.String("progress.outcome", string(result.Outcome)),
			attribute.Int("progress.passing", result.Passing),
			attribute.Int("progress.total", result.Total),
			attribute.Int("progress.previous", result.Previous),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	stats, err := e.source.Stats(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read stats: %w", err)
	}
	result = Result{Passing: stats.Passing, Total: stats.Total}
	if stats.Total == 0 {
		result.Outcome = OutcomeNoFeatures
		return result, nil
	}

	snapshot, err := e.loadSnapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	result.Previous = snapshot.Count

	if stats.Passing <= snapshot.Count {
		if snapshot.Kind != SnapshotMissing {
			result.Outcome = OutcomeUnchanged
			return result, nil
		}
		ids, _, err := e.passingSet(ctx)
		if err != nil {
			return Result{}, err
		}
		if err := e.checkpoints.Save(ctx, NewSnapshot(stats.Passing, ids)); err != nil {
			return Result{}, fmt.Errorf("save checkpoint: %w", err)
		}
		e.logger.Info("progress checkpoint initialized",
			logging.String(logging.FieldEventType, "progress_bootstrap"),
			logging.Int("passing", stats.Passing),
			logging.Int("total", stats.Total),
		)
		result.Outcome = OutcomeBootstrapped
		return result, nil
	}

	ids, labels, err := e.passingSet(ctx)
	if err != nil {
		return Result{}, err
	}
	newIDs := snapshot.newIDs(ids)
	completed := make([]string, 0, len(newIDs))
	for _, id := range newIDs {
		completed = append(completed, labels[id])
	}

	event := notifications.ProgressEvent{
		Passing:              stats.Passing,
		Total:                stats.Total,
		Percentage:           stats.Percentage,
		PreviousPassing:      snapshot.Count,
		CompletedThisSession: stats.Passing - snapshot.Count,
		CompletedTests:       completed,
		Project:              e.project,
		Timestamp:            e.now().UTC(),
	}

	if err := e.checkpoints.Save(ctx, NewSnapshot(stats.Passing, ids)); err != nil {
		return Result{}, fmt.Errorf("save checkpoint: %w", err)
	}

	result.Outcome = OutcomeNotified
	result.NewIDs = newIDs
	result.Event = &event
	if e.notifier != nil {
		result.Queued = e.notifier.Dispatch(ctx, event)
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "progress_increase"),
		logging.Int("passing", stats.Passing),
		logging.Int("total", stats.Total),
		logging.Int("previous", snapshot.Count),
		logging.Int("new", len(newIDs)),
		logging.Bool("queued", result.Queued),
	}
	if snapshot.Kind == SnapshotLegacy {
		attrs = append(attrs, logging.String("snapshot", snapshot.Kind.String()))
	}
	e.logger.Info("progress increased", logging.Args(attrs...)...)
	return result, nil
}

// loadSnapshot treats an undecodable checkpoint as missing so a damaged file
// cannot wedge the tracker. Other read errors abort the cycle.
func (e *Engine) loadSnapshot(ctx context.Context) (Snapshot, error) {
	snapshot, err := e.checkpoints.Load(ctx)
	if errors.Is(err, ErrCorruptSnapshot) {
		logging.WarnWithContext(e.logger, "progress checkpoint unreadable; starting from zero", "progress_checkpoint_corrupt",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the next cycle rewrites the checkpoint"),
			logging.String(logging.FieldImpact, "features already passing are reported again"),
		)
		return Snapshot{Kind: SnapshotMissing}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load checkpoint: %w", err)
	}
	return snapshot, nil
}

func (e *Engine) passingSet(ctx context.Context) ([]int64, map[int64]string, error) {
	passing, err := e.source.PassingSet(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read passing set: %w", err)
	}
	ids := make([]int64, 0, len(passing))
	labels := make(map[int64]string, len(passing))
	for _, p := range passing {
		ids = append(ids, p.ID)
		labels[p.ID] = p.Label()
	}
	return ids, labels, nil
}
