package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigPath           = "~/.config/backlog/config.toml"
	defaultDataDir              = "~/.local/share/backlog"
	defaultLogDir               = "~/.local/share/backlog/logs"
	defaultLogRetentionDays     = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultAPIBind              = "127.0.0.1:8765"
	defaultProjectName          = "backlog"
	defaultNotifyRequestTimeout = 5
	defaultProgressSchedule     = "@every 5m"
	defaultTelemetryExporter    = "stdout"
	defaultTelemetryServiceName = "backlogd"
	defaultTelemetrySampleRate  = 1.0
	webhookURLEnv               = "PROGRESS_N8N_WEBHOOK_URL"
	apiTokenEnv                 = "BACKLOG_API_TOKEN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Project: Project{
			Name: defaultProject(),
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Progress:       true,
		},
		Progress: Progress{
			Schedule: defaultProgressSchedule,
		},
		Telemetry: Telemetry{
			Exporter:    defaultTelemetryExporter,
			ServiceName: defaultTelemetryServiceName,
			SampleRate:  defaultTelemetrySampleRate,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// defaultProject names the project after the working directory.
func defaultProject() string {
	wd, err := os.Getwd()
	if err != nil {
		return defaultProjectName
	}
	base := filepath.Base(wd)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return defaultProjectName
	}
	return base
}
