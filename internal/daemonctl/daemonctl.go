// Package daemonctl starts and stops a detached backlogd process on behalf of
// the CLI. Liveness is judged by the HTTP health endpoint; the pid file that
// daemonrun writes is used to signal the process.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"backlog/internal/client"
)

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning indicates the daemon API did not answer.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	APIAddress string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Launch starts `<executable> serve` in its own session so it outlives the
// calling terminal.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"serve"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if addr := strings.TrimSpace(opts.APIAddress); addr != "" {
		args = append(args, "--api", addr)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// Running reports whether the daemon health endpoint answers.
func Running(ctx context.Context, cl *client.Client) bool {
	if cl == nil {
		return false
	}
	_, err := cl.Health(ctx)
	return err == nil
}

// WaitForHealthy polls the health endpoint until it answers or timeout passes.
func WaitForHealthy(ctx context.Context, cl *client.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		_, err := cl.Health(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return fmt.Errorf("daemon failed to start: %w", lastErr)
}

// WaitForShutdown polls until the health endpoint stops answering.
func WaitForShutdown(ctx context.Context, cl *client.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !Running(ctx, cl) {
			return nil
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
	return errors.New("daemon did not stop: still answering health checks")
}

// EnsureStarted launches the daemon unless it is already answering.
func EnsureStarted(ctx context.Context, cl *client.Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if Running(ctx, cl) {
		return StartResult{State: StartStateAlreadyRunning}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	if err := WaitForHealthy(ctx, cl, waitTimeout); err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true}, nil
}

// StopAndTerminate sends SIGTERM to the pid recorded in pidPath and escalates
// to SIGKILL if the daemon still answers after gracePeriod.
func StopAndTerminate(ctx context.Context, cl *client.Client, pidPath, lockPath string, gracePeriod time.Duration) (StopResult, error) {
	if !Running(ctx, cl) {
		return StopResult{}, ErrDaemonNotRunning
	}
	pid, err := ReadPID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if err := signalProcess(pid, syscall.SIGTERM); err != nil {
		return StopResult{PID: pid}, err
	}
	result := StopResult{PID: pid}
	if err := WaitForShutdown(ctx, cl, gracePeriod); err == nil {
		return result, nil
	}

	killedPID, err := ForceKillProcess(pidPath, lockPath, pid)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then starts it again.
func Restart(ctx context.Context, cl *client.Client, pidPath, lockPath, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(ctx, cl, pidPath, lockPath, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}
	startResult, err := EnsureStarted(ctx, cl, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}
	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// ReadPID parses the daemon pid file.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("daemon pid file %q is malformed", pidPath)
	}
	return pid, nil
}

// ForceKillProcess sends SIGKILL to the daemon and removes its pid and lock
// files. fallbackPID is used when the pid file is missing.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	if parsed, err := ReadPID(pidPath); err == nil {
		pid = parsed
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if err := signalProcess(pid, syscall.SIGKILL); err != nil {
		return 0, err
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

func signalProcess(pid int, sig syscall.Signal) error {
	if pid == os.Getpid() {
		return fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
