package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"backlog/internal/api"
	"backlog/internal/features"
	"backlog/internal/logging"
)

const (
	detailNotFound      = "Feature not found"
	detailAllPassing    = "All features are passing! No more work to do."
	detailSkipPassing   = "Cannot skip a feature that is already passing"
	detailInternalError = "internal error"
)

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.store.Ping(r.Context()); err != nil {
		s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "unhealthy", Database: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "healthy", Database: "connected"})
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	query, err := parseListQuery(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.daemon.store.List(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromListPage(page))
}

func parseListQuery(r *http.Request) (features.ListQuery, error) {
	values := r.URL.Query()
	query := features.ListQuery{Limit: features.MaxListLimit}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return query, fmt.Errorf("invalid limit %q", raw)
		}
		query.Limit = limit
	}
	if raw := strings.TrimSpace(values.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return query, fmt.Errorf("invalid offset %q", raw)
		}
		query.Offset = offset
	}
	if raw := strings.TrimSpace(values.Get("passes")); raw != "" {
		passes, err := strconv.ParseBool(raw)
		if err != nil {
			return query, fmt.Errorf("invalid passes %q", raw)
		}
		query.Passes = &passes
	}
	if values.Has("category") {
		query.Category = values.Get("category")
	}
	if raw := strings.TrimSpace(values.Get("random")); raw != "" {
		random, err := strconv.ParseBool(raw)
		if err != nil {
			return query, fmt.Errorf("invalid random %q", raw)
		}
		query.Random = random
	}
	return query, nil
}

func (s *apiServer) handleNext(w http.ResponseWriter, r *http.Request) {
	feature, err := s.daemon.store.Next(r.Context())
	if errors.Is(err, features.ErrNoPendingWork) {
		writeDetail(w, http.StatusNotFound, detailAllPassing)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromFeature(feature))
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.daemon.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStats(stats))
}

func (s *apiServer) handleAllPassing(w http.ResponseWriter, r *http.Request) {
	passing, err := s.daemon.store.PassingSet(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromPassingSet(passing))
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := featureID(w, r)
	if !ok {
		return
	}
	feature, err := s.daemon.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromFeature(feature))
}

func (s *apiServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.FeatureCreate
	if !s.decode(w, r, api.SchemaFeatureCreate, &req) {
		return
	}
	feature, err := s.daemon.store.Create(r.Context(), api.ToNewFeature(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.daemon.telemetry.Metrics.AddCreated(r.Context(), 1)
	logging.WithContext(r.Context(), s.logger).Info("feature created",
		logging.String(logging.FieldEventType, "feature_created"),
		logging.Int64(logging.FieldFeatureID, feature.ID),
		logging.Int64("priority", feature.Priority),
	)
	s.writeJSON(w, http.StatusCreated, api.FromFeature(feature))
}

func (s *apiServer) handleCreateBulk(w http.ResponseWriter, r *http.Request) {
	var req api.BulkCreateRequest
	if !s.decode(w, r, api.SchemaBulkCreate, &req) {
		return
	}
	created, err := s.daemon.store.CreateBulk(r.Context(), api.ToNewFeatures(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.daemon.telemetry.Metrics.AddCreated(r.Context(), created)
	logging.WithContext(r.Context(), s.logger).Info("features created",
		logging.String(logging.FieldEventType, "features_bulk_created"),
		logging.Int("count", created),
	)
	s.writeJSON(w, http.StatusCreated, api.BulkCreateResponse{Created: created})
}

func (s *apiServer) handleSetPasses(w http.ResponseWriter, r *http.Request) {
	id, ok := featureID(w, r)
	if !ok {
		return
	}
	var req api.StatusUpdate
	if !s.decode(w, r, api.SchemaStatusUpdate, &req) {
		return
	}
	feature, err := s.daemon.store.SetPasses(r.Context(), id, req.Passes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.daemon.telemetry.Metrics.AddStatusChange(r.Context(), req.Passes)
	logging.WithContext(r.Context(), s.logger).Info("feature status updated",
		logging.String(logging.FieldEventType, "feature_status_updated"),
		logging.Int64(logging.FieldFeatureID, id),
		logging.Bool("passes", req.Passes),
	)
	s.writeJSON(w, http.StatusOK, api.FromFeature(feature))
}

func (s *apiServer) handleSkip(w http.ResponseWriter, r *http.Request) {
	id, ok := featureID(w, r)
	if !ok {
		return
	}
	result, err := s.daemon.store.Skip(r.Context(), id)
	if errors.Is(err, features.ErrInvalidState) {
		writeDetail(w, http.StatusBadRequest, detailSkipPassing)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.daemon.telemetry.Metrics.AddSkipped(r.Context())
	logging.WithContext(r.Context(), s.logger).Info("feature skipped",
		logging.String(logging.FieldEventType, "feature_skipped"),
		logging.Int64(logging.FieldFeatureID, id),
		logging.Int64("old_priority", result.OldPriority),
		logging.Int64("new_priority", result.NewPriority),
	)
	s.writeJSON(w, http.StatusOK, api.FromSkipResult(result))
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := featureID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("feature deleted",
		logging.String(logging.FieldEventType, "feature_deleted"),
		logging.Int64(logging.FieldFeatureID, id),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleProgressCheck(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.RunProgress(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProgressResult(result))
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		writeDetail(w, http.StatusBadGateway, fmt.Sprintf("%s: %v", message, err))
		return
	}
	status := http.StatusOK
	if !sent {
		status = http.StatusBadRequest
	}
	writeDetail(w, status, message)
}

// featureID parses the {id} path value, answering 404 for ids that cannot
// name a feature.
func featureID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeDetail(w, http.StatusNotFound, detailNotFound)
		return 0, false
	}
	return id, true
}

// decode reads, schema-checks and unmarshals the body. On failure it has
// already written the response.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeDetail(w, http.StatusBadRequest, "read request body: "+err.Error())
		return false
	}
	if err := s.daemon.validator.Decode(schema, body, dst); err != nil {
		s.writeError(w, r, err)
		return false
	}
	return true
}

// writeError maps domain errors onto status codes.
func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, features.ErrValidation):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, features.ErrNotFound):
		writeDetail(w, http.StatusNotFound, detailNotFound)
	case errors.Is(err, features.ErrInvalidState):
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_error",
			logging.Error(err),
			logging.String("path", r.URL.Path),
		)
		writeDetail(w, http.StatusInternalServerError, detailInternalError)
	}
}
