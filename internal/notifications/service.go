package notifications

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"backlog/internal/config"
)

const userAgent = "backlog/0.1.0"

// Service defines the notification surface used by the progress engine.
type Service interface {
	NotifyProgress(ctx context.Context, event ProgressEvent) error
	TestNotification(ctx context.Context) error
}

// NewService builds a Service delivering to every configured sink. When no
// sink is configured a noop implementation is returned. With
// notifications.progress disabled, progress events are dropped but test
// notifications still go out.
func NewService(cfg *config.Config) Service {
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	var sinks []Service
	if url := strings.TrimSpace(cfg.Notifications.WebhookURL); url != "" {
		sinks = append(sinks, &webhookService{endpoint: url, client: client})
	}
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		sinks = append(sinks, &ntfyService{endpoint: topic, project: cfg.Project.Name, client: client})
	}
	if len(sinks) == 0 {
		return noopService{}
	}
	return &multiService{sinks: sinks, progress: cfg.Notifications.Progress}
}

// Configured reports whether svc delivers anywhere.
func Configured(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type multiService struct {
	sinks    []Service
	progress bool
}

func (m *multiService) NotifyProgress(ctx context.Context, event ProgressEvent) error {
	if !m.progress {
		return nil
	}
	return m.each(func(s Service) error { return s.NotifyProgress(ctx, event) })
}

func (m *multiService) TestNotification(ctx context.Context) error {
	return m.each(func(s Service) error { return s.TestNotification(ctx) })
}

func (m *multiService) each(fn func(Service) error) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := fn(sink); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) NotifyProgress(context.Context, ProgressEvent) error { return nil }
func (noopService) TestNotification(context.Context) error             { return nil }
