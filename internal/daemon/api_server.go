package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"backlog/internal/config"
	"backlog/internal/logging"
	"backlog/internal/telemetry"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	return &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  cfg.Paths.APIToken,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
}

// handler builds the full middleware stack around the routes.
func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /features", s.handleList)
	mux.HandleFunc("GET /features/next", s.handleNext)
	mux.HandleFunc("GET /features/stats", s.handleStats)
	mux.HandleFunc("GET /features/all-passing", s.handleAllPassing)
	mux.HandleFunc("GET /features/{id}", s.handleGet)
	mux.HandleFunc("POST /features", s.handleCreate)
	mux.HandleFunc("POST /features/bulk", s.handleCreateBulk)
	mux.HandleFunc("PATCH /features/{id}", s.handleSetPasses)
	mux.HandleFunc("POST /features/{id}/skip", s.handleSkip)
	mux.HandleFunc("DELETE /features/{id}", s.handleDelete)
	mux.HandleFunc("POST /progress/check", s.handleProgressCheck)
	mux.HandleFunc("POST /notifications/test", s.handleTestNotification)

	return s.instrument(authMiddleware(s.token, mux))
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("paths.api_bind is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// statusRecorder captures the response status for logs and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument assigns a request id, opens a server span, and records the
// request duration.
func (s *apiServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		tel := s.daemon.telemetry
		ctx := logging.WithRequestID(r.Context(), requestID)
		ctx, span := telemetry.StartServerSpan(ctx, tel.Tracer, r.Method+" "+r.URL.Path,
			telemetry.AttrRequestID.String(requestID),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r = r.WithContext(ctx)
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = r.Method + " " + r.URL.Path
		}
		elapsed := time.Since(start)
		span.SetName(route)
		span.SetAttributes(telemetry.AttrRoute.String(route), telemetry.AttrStatus.Int(rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
		tel.Metrics.ObserveRequest(ctx, route, rec.status, elapsed)

		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", elapsed),
		)
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
