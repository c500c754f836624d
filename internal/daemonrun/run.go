// Package daemonrun hosts the backlogd process lifecycle shared by the
// backlogd binary and `backlog serve`.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"backlog/internal/config"
	"backlog/internal/daemon"
	"backlog/internal/features"
	"backlog/internal/logging"
	"backlog/internal/notifications"
	"backlog/internal/preflight"
	"backlog/internal/telemetry"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the daemon and blocks until cmdCtx is cancelled or the process
// receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logCfg := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		logCfg.Logging.Level = level
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logName := fmt.Sprintf("backlogd-%s.log", runID)
	logPath := filepath.Join(cfg.Paths.LogDir, logName)
	logger, err := logging.NewFromConfig(&logCfg, logName)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "backlogd-*.log", Exclude: []string{logPath}},
	)
	logConfigSnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	tel, err := telemetry.Init(signalCtx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", logging.Error(err))
		}
	}()

	store, err := features.Open(cfg)
	if err != nil {
		logger.Error("open feature store", logging.Error(err))
		return err
	}
	defer store.Close()

	d, err := daemon.New(cfg, store, logger, daemon.WithTelemetry(tel))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another backlogd on this data_dir and that api_bind is free"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("backlog daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("project", cfg.Project.Name),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_set", cfg.Paths.APIToken != ""),
		logging.Bool("notifications_configured", notifications.Configured(notifications.NewService(cfg))),
		logging.Bool("webhook_set", strings.TrimSpace(cfg.Notifications.WebhookURL) != ""),
		logging.Bool("ntfy_set", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.String("progress_schedule", cfg.Progress.Schedule),
		logging.Bool("telemetry_enabled", cfg.Telemetry.Enabled),
	)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "the daemon starts anyway; affected operations may fail"),
		)
	}
}
