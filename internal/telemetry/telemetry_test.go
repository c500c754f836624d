package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"backlog/internal/config"
	"backlog/internal/telemetry"
)

func TestInitDisabled(t *testing.T) {
	p, err := telemetry.Init(context.Background(), config.Telemetry{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.Tracer == nil || p.Meter == nil || p.Metrics == nil {
		t.Fatalf("disabled provider should still expose no-op instruments: %+v", p)
	}
	if p.TracerProvider != nil {
		t.Fatalf("disabled provider should not build an SDK tracer provider")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestInitNoneExporter(t *testing.T) {
	p, err := telemetry.Init(context.Background(), config.Telemetry{Enabled: true, Exporter: "none"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	if p.TracerProvider == nil {
		t.Fatal("expected SDK tracer provider")
	}
	ctx, span := telemetry.StartSpan(context.Background(), p.Tracer, "test.span", telemetry.AttrFeatureID.Int64(7))
	span.End()

	p.Metrics.ObserveRequest(ctx, "GET /health", 200, 5*time.Millisecond)
	p.Metrics.ObserveProgress(ctx, "notified")
	p.Metrics.ObserveDelivery(ctx, errors.New("boom"), time.Millisecond)
	p.Metrics.AddCreated(ctx, 3)
	p.Metrics.AddSkipped(ctx)
	p.Metrics.AddStatusChange(ctx, true)
}

func TestInitUnknownExporter(t *testing.T) {
	if _, err := telemetry.Init(context.Background(), config.Telemetry{Enabled: true, Exporter: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *telemetry.Metrics
	m.ObserveRequest(context.Background(), "GET /health", 200, time.Millisecond)
	m.ObserveDelivery(context.Background(), nil, time.Millisecond)
	m.AddCreated(context.Background(), 1)
}
