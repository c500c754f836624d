package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"backlog/internal/features"
)

const dialTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDatabase reads the feature count without creating the database. A
// database that does not exist yet passes.
func CheckDatabase(ctx context.Context, dbPath string) Result {
	const name = "Database"

	count, err := features.CountFeatures(ctx, dbPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", dbPath)}
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", dbPath, err)}
	case count == 0:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (empty)", dbPath)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d features)", dbPath, count)}
	}
}

// CheckEndpoint verifies that a sink address parses and accepts TCP
// connections. Nothing is sent, so no notification is triggered.
func CheckEndpoint(ctx context.Context, name, raw string) Result {
	addr, err := dialAddress(raw)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(checkCtx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: summarizeDialError(addr, err)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", addr)}
}

func dialAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("missing url")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url (%v)", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", errors.New("url has no host")
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(host, port), nil
}

func summarizeDialError(addr string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s timed out", addr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("%s timed out", addr)
	}
	return fmt.Sprintf("%s unreachable (%v)", addr, err)
}
