package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"backlog/internal/config"
	"backlog/internal/daemon"
	"backlog/internal/features"
	"backlog/internal/logging"
	"backlog/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *features.Store
	daemon     *daemon.Daemon
	configPath string
	apiAddr    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("BACKLOG_API_TOKEN", "")
	t.Setenv("PROGRESS_N8N_WEBHOOK_URL", "")

	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Close()
	})

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		configPath: filepath.Join(testsupport.BaseDir(cfg), "backlog.toml"),
		apiAddr:    d.Addr(),
	}
	writeTestConfig(t, env.configPath, cfg, env.apiAddr)
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, apiAddr string) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\ndata_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\n\n",
		cfg.Paths.DataDir, cfg.Paths.LogDir, apiAddr, cfg.Paths.APIToken)
	fmt.Fprintf(&b, "[project]\nname = %q\n\n", cfg.Project.Name)
	fmt.Fprintf(&b, "[notifications]\nwebhook_url = %q\nntfy_topic = %q\n\n",
		cfg.Notifications.WebhookURL, cfg.Notifications.NtfyTopic)
	b.WriteString("[progress]\nschedule = \"\"\n")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
