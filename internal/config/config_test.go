package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"backlog/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndUsesEnvWebhook(t *testing.T) {
	t.Setenv("PROGRESS_N8N_WEBHOOK_URL", "https://hooks.example.com/progress")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "backlog")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8765" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Notifications.WebhookURL != "https://hooks.example.com/progress" {
		t.Fatalf("expected webhook from env, got %q", cfg.Notifications.WebhookURL)
	}
	if cfg.Notifications.RequestTimeout != 5 {
		t.Fatalf("unexpected request timeout: %d", cfg.Notifications.RequestTimeout)
	}
	if !cfg.Notifications.Progress {
		t.Fatal("expected progress notifications enabled by default")
	}
	if cfg.Progress.Schedule != "@every 5m" {
		t.Fatalf("unexpected schedule: %q", cfg.Progress.Schedule)
	}
	if cfg.Project.Name == "" {
		t.Fatal("expected project name default")
	}
	if got := cfg.DatabasePath(); got != filepath.Join(wantData, "features.db") {
		t.Fatalf("unexpected database path: %q", got)
	}
	if got := cfg.PIDPath(); got != filepath.Join(wantData, "backlogd.pid") {
		t.Fatalf("unexpected pid path: %q", got)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "backlog.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
			APIBind string `toml:"api_bind"`
		} `toml:"paths"`
		Project struct {
			Name string `toml:"name"`
		} `toml:"project"`
		Notifications struct {
			WebhookURL string `toml:"webhook_url"`
		} `toml:"notifications"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Paths.APIBind = "127.0.0.1:9999"
	custom.Project.Name = "demo"
	custom.Notifications.WebhookURL = "https://file.example.com/hook"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}
	t.Setenv("PROGRESS_N8N_WEBHOOK_URL", "https://env.example.com/hook")

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.APIBaseURL() != "http://127.0.0.1:9999" {
		t.Fatalf("unexpected api base url: %q", cfg.APIBaseURL())
	}
	if cfg.Notifications.WebhookURL != "https://file.example.com/hook" {
		t.Fatalf("expected file webhook to win over env, got %q", cfg.Notifications.WebhookURL)
	}
	if got := cfg.CheckpointPath(); got != filepath.Join(tempDir, "data", "demo.progress.json") {
		t.Fatalf("unexpected checkpoint path: %q", got)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "PROGRESS_N8N_WEBHOOK_URL") {
		t.Fatalf("sample config missing webhook env hint: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "backlog") {
		t.Fatalf("expected data dir to contain backlog, got %q", cfg.Paths.DataDir)
	}
	if cfg.Progress.Schedule == "" {
		t.Fatal("expected sample schedule")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.APIBind = "http://localhost:8765"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for api_bind with scheme")
	}

	cfg = config.Default()
	cfg.Notifications.WebhookURL = "ftp://example.com/hook"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-http webhook")
	}

	cfg = config.Default()
	cfg.Progress.Schedule = "every now and then"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad cron schedule")
	}

	cfg = config.Default()
	cfg.Telemetry.Exporter = "zipkin"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown exporter")
	}

	cfg = config.Default()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporter = "otlp-http"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for otlp exporter without endpoint")
	}

	cfg = config.Default()
	cfg.Progress.Schedule = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty schedule should disable the scheduler, got %v", err)
	}
}
