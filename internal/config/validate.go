package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	if err := c.validateTelemetry(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	bind := c.Paths.APIBind
	if strings.Contains(bind, "://") {
		return fmt.Errorf("paths.api_bind must be host:port, got %q", bind)
	}
	if _, _, err := net.SplitHostPort(bind); err != nil {
		return fmt.Errorf("paths.api_bind: %w", err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.WebhookURL != "" {
		parsed, err := url.Parse(c.Notifications.WebhookURL)
		if err != nil {
			return fmt.Errorf("notifications.webhook_url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return errors.New("notifications.webhook_url must use http or https")
		}
		if parsed.Host == "" {
			return errors.New("notifications.webhook_url must include a host")
		}
	}
	if c.Notifications.NtfyTopic != "" {
		if _, err := url.Parse(c.Notifications.NtfyTopic); err != nil {
			return fmt.Errorf("notifications.ntfy_topic: %w", err)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

// ScheduleParser parses progress.schedule values. Exposed so the daemon
// scheduler and validation agree on the accepted syntax.
var ScheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func (c *Config) validateProgress() error {
	if c.Progress.Schedule == "" {
		return nil
	}
	if _, err := ScheduleParser.Parse(c.Progress.Schedule); err != nil {
		return fmt.Errorf("progress.schedule %q: %w", c.Progress.Schedule, err)
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	switch c.Telemetry.Exporter {
	case "stdout", "otlp-http", "none":
	default:
		return fmt.Errorf("telemetry.exporter must be one of stdout, otlp-http, none (got %q)", c.Telemetry.Exporter)
	}
	if c.Telemetry.Enabled && c.Telemetry.Exporter == "otlp-http" && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint must be set when telemetry.exporter is otlp-http")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return errors.New("telemetry.sample_rate must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
