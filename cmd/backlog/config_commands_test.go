package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"backlog/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatalf("sample config missing [paths]:\n%s", data)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, "backlog.toml")
	content := "[paths]\ndata_dir = \"" + filepath.Join(home, "data") + "\"\nlog_dir = \"" + filepath.Join(home, "logs") + "\"\n\n[project]\nname = \"demo\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, _, err := runCLI(t, []string{"config", "validate"}, path)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+path)
	requireContains(t, out, "Project: demo")
	requireContains(t, out, "demo.progress.json")
	requireContains(t, out, "Configuration valid")

	bad := filepath.Join(home, "bad.toml")
	if err := os.WriteFile(bad, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("write bad config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, bad); err == nil {
		t.Fatal("expected invalid config to fail validation")
	}
}

func TestStatusCommandReportsDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Project test-project")
	requireContains(t, out, "[OK] running at http://"+env.apiAddr)
	requireContains(t, out, "no features yet")
	requireContains(t, out, "Progress: No features in database yet")
}

func TestAPIUnavailableMessage(t *testing.T) {
	env := setupCLITestEnv(t)
	env.daemon.Stop()

	_, _, err := runCLI(t, []string{"features", "pass", "1"}, env.configPath)
	if err == nil {
		t.Fatal("expected error with daemon stopped")
	}
	requireContains(t, describeError(err), "start it with `backlog serve`")

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status should still succeed: %v", err)
	}
	requireContains(t, out, "[ERROR] not reachable")
}

func TestReadCommandsFallBackToDatabase(t *testing.T) {
	env := setupCLITestEnv(t)
	f := testsupport.NewFeature(t, env.store, 1)
	testsupport.NewFeature(t, env.store, 2)
	testsupport.MarkPassing(t, env.store, f.ID)
	env.daemon.Stop()

	out, stderr, err := runCLI(t, []string{"progress", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("progress status offline: %v", err)
	}
	requireContains(t, out, "Progress: 1/2 tests passing (50.0%)")
	requireContains(t, stderr, "backlogd not reachable")

	out, _, err = runCLI(t, []string{"features", "next"}, env.configPath)
	if err != nil {
		t.Fatalf("features next offline: %v", err)
	}
	requireContains(t, out, "Feature 2: feature 2")
}

func TestRenderTableWrapsLongColumns(t *testing.T) {
	out := renderTable(
		[]tableColumn{{header: "ID", align: alignRight}, {header: "Name", maxWidth: 10}},
		[][]string{{"1", "a fairly long feature name"}},
	)
	requireContains(t, out, "ID")
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.Contains(line, "a fairly long feature name") {
			t.Fatalf("expected name to wrap, got line %q", line)
		}
	}
}
