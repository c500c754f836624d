package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent names the subsystem emitting the record.
	FieldComponent = "component"
	// FieldFeatureID identifies the feature a record concerns.
	FieldFeatureID = "feature_id"
	// FieldCorrelationID carries the HTTP request id.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a record for filtering (e.g. "feature_skipped").
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	featureIDKey
)

// WithRequestID stores a request correlation id on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// WithFeatureID tags the context with the feature being operated on.
func WithFeatureID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, featureIDKey, id)
}

// FeatureIDFromContext returns the id stored by WithFeatureID.
func FeatureIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(featureIDKey).(int64)
	return id, ok
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr
	if rid, ok := RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	if id, ok := FeatureIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldFeatureID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
