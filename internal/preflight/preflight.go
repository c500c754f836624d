package preflight

import (
	"context"
	"strings"

	"backlog/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDatabase(ctx, cfg.DatabasePath()),
	}

	if url := strings.TrimSpace(cfg.Notifications.WebhookURL); url != "" {
		results = append(results, CheckEndpoint(ctx, "Webhook", url))
	}
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		results = append(results, CheckEndpoint(ctx, "ntfy", topic))
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Exporter == "otlp-http" {
		endpoint := cfg.Telemetry.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		results = append(results, CheckEndpoint(ctx, "OTLP collector", endpoint))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
