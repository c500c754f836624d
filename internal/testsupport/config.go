package testsupport

import (
	"path/filepath"
	"testing"

	"backlog/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Notification sinks are disabled unless an option enables them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Project.Name = "test-project"
	cfgVal.Notifications.WebhookURL = ""
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Progress.Schedule = ""

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithWebhook points progress notifications at url.
func WithWebhook(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.WebhookURL = url
	}
}

// WithAPIToken requires bearer auth on the test daemon.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithSchedule enables the daemon progress scheduler.
func WithSchedule(spec string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Progress.Schedule = spec
	}
}

// WithRunOnStart makes the daemon run one progress cycle as it starts.
func WithRunOnStart() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Progress.RunOnStart = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
