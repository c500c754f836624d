package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by spans and metrics.
var (
	AttrFeatureID = attribute.Key("backlog.feature.id")
	AttrRoute     = attribute.Key("backlog.http.route")
	AttrStatus    = attribute.Key("backlog.http.status")
	AttrOutcome   = attribute.Key("backlog.progress.outcome")
	AttrRequestID = attribute.Key("backlog.request.id")
)

// StartServerSpan starts a span for an inbound API request.
func StartServerSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartSpan starts an internal span.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}
