package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"

	"backlog/internal/config"
	"backlog/internal/logging"
	"backlog/internal/progress"
)

// scheduler fires progress cycles on a cron schedule. A tick that arrives
// while the previous cycle is still running is skipped.
type scheduler struct {
	spec   string
	run    func(context.Context) (progress.Result, error)
	logger *slog.Logger

	cron *cron.Cron
}

func newScheduler(spec string, run func(context.Context) (progress.Result, error), logger *slog.Logger) *scheduler {
	return &scheduler{
		spec:   strings.TrimSpace(spec),
		run:    run,
		logger: logging.NewComponentLogger(logger, "scheduler"),
	}
}

func (s *scheduler) start(ctx context.Context) error {
	if s.spec == "" {
		s.logger.Info("progress scheduler disabled", logging.String(logging.FieldEventType, "scheduler_disabled"))
		return nil
	}
	adapter := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithParser(config.ScheduleParser),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	if _, err := c.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("progress scheduler started",
		logging.String(logging.FieldEventType, "scheduler_started"),
		logging.String("schedule", s.spec),
	)
	return nil
}

func (s *scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	result, err := s.run(ctx)
	if err != nil {
		return
	}
	s.logger.Debug("scheduled progress check finished",
		logging.String("outcome", string(result.Outcome)),
		logging.Int("passing", result.Passing),
		logging.Int("total", result.Total),
	)
}

// stop halts the schedule and waits for a running cycle to return.
func (s *scheduler) stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{logging.Error(err)}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
