// Package client talks to the backlogd HTTP API. Error responses are mapped
// back onto the features sentinels so callers can branch with errors.Is the
// same way they would against a local store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"backlog/internal/api"
	"backlog/internal/config"
	"backlog/internal/features"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrAPIUnavailable marks a daemon that could not be reached.
	ErrAPIUnavailable = errors.New("backlog API unavailable")
	// ErrUnauthorized marks a rejected or missing API token.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api returned status %d", e.Status)
	}
	return e.Detail
}

// Unwrap maps the status code onto the matching domain sentinel.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnprocessableEntity:
		return features.ErrValidation
	case e.Status == http.StatusNotFound:
		return features.ErrNotFound
	case e.Status == http.StatusBadRequest:
		return features.ErrInvalidState
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Status >= http.StatusInternalServerError:
		return features.ErrStore
	default:
		return nil
	}
}

// Client is a typed wrapper around the daemon API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// New builds a client for bind ("host:port" or a full URL).
func New(bind, token string, timeout time.Duration) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, fmt.Errorf("%w: no API address configured", ErrAPIUnavailable)
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse API address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base:  base,
		http:  &http.Client{Timeout: timeout},
		token: strings.TrimSpace(token),
	}, nil
}

// NewFromConfig builds a client for the configured daemon address.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	return New(cfg.APIBaseURL(), cfg.Paths.APIToken, defaultTimeout)
}

// BaseURL returns the daemon address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Health reports daemon and database health.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out)
	return out, err
}

// List returns one page of features.
func (c *Client) List(ctx context.Context, q features.ListQuery) (features.ListPage, error) {
	values := url.Values{}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		values.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Passes != nil {
		values.Set("passes", strconv.FormatBool(*q.Passes))
	}
	if q.Category != "" {
		values.Set("category", q.Category)
	}
	if q.Random {
		values.Set("random", "true")
	}
	var out api.FeatureListResponse
	if err := c.do(ctx, http.MethodGet, "/features", values, nil, &out); err != nil {
		return features.ListPage{}, err
	}
	page := features.ListPage{Total: out.Total, Limit: out.Limit, Offset: out.Offset}
	for _, dto := range out.Features {
		page.Features = append(page.Features, *api.ToFeature(dto))
	}
	return page, nil
}

// Next returns the highest-priority pending feature, or an error matching
// features.ErrNoPendingWork when everything passes.
func (c *Client) Next(ctx context.Context) (*features.Feature, error) {
	var out api.Feature
	err := c.do(ctx, http.MethodGet, "/features/next", nil, nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", features.ErrNoPendingWork, apiErr.Detail)
	}
	if err != nil {
		return nil, err
	}
	return api.ToFeature(out), nil
}

// Get fetches a feature by id.
func (c *Client) Get(ctx context.Context, id int64) (*features.Feature, error) {
	var out api.Feature
	if err := c.do(ctx, http.MethodGet, featurePath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return api.ToFeature(out), nil
}

// Create adds one feature at the end of the queue.
func (c *Client) Create(ctx context.Context, in features.NewFeature) (*features.Feature, error) {
	var out api.Feature
	if err := c.do(ctx, http.MethodPost, "/features", nil, api.FromNewFeature(in), &out); err != nil {
		return nil, err
	}
	return api.ToFeature(out), nil
}

// CreateBulk adds features in order and returns how many were created.
func (c *Client) CreateBulk(ctx context.Context, in []features.NewFeature) (int, error) {
	req := api.BulkCreateRequest{Features: make([]api.FeatureCreate, 0, len(in))}
	for _, f := range in {
		req.Features = append(req.Features, api.FromNewFeature(f))
	}
	var out api.BulkCreateResponse
	if err := c.do(ctx, http.MethodPost, "/features/bulk", nil, req, &out); err != nil {
		return 0, err
	}
	return out.Created, nil
}

// SetPasses marks a feature passing or failing.
func (c *Client) SetPasses(ctx context.Context, id int64, passes bool) (*features.Feature, error) {
	var out api.Feature
	if err := c.do(ctx, http.MethodPatch, featurePath(id), nil, api.StatusUpdate{Passes: passes}, &out); err != nil {
		return nil, err
	}
	return api.ToFeature(out), nil
}

// Skip moves a pending feature to the end of the queue.
func (c *Client) Skip(ctx context.Context, id int64) (api.SkipResponse, error) {
	var out api.SkipResponse
	err := c.do(ctx, http.MethodPost, featurePath(id)+"/skip", nil, nil, &out)
	return out, err
}

// Delete removes a feature.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, featurePath(id), nil, nil, nil)
}

// Stats returns completion counts.
func (c *Client) Stats(ctx context.Context) (features.Stats, error) {
	var out api.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/features/stats", nil, nil, &out); err != nil {
		return features.Stats{}, err
	}
	return features.Stats{Passing: out.Passing, Total: out.Total, Percentage: out.Percentage}, nil
}

// PassingSet returns every passing feature in queue order.
func (c *Client) PassingSet(ctx context.Context) ([]features.PassingFeature, error) {
	var out api.AllPassingResponse
	if err := c.do(ctx, http.MethodGet, "/features/all-passing", nil, nil, &out); err != nil {
		return nil, err
	}
	return api.ToPassingSet(out), nil
}

// CheckProgress asks the daemon to run one progress cycle.
func (c *Client) CheckProgress(ctx context.Context) (api.ProgressCheckResponse, error) {
	var out api.ProgressCheckResponse
	err := c.do(ctx, http.MethodPost, "/progress/check", nil, nil, &out)
	return out, err
}

// TestNotification asks the daemon to send a test message.
func (c *Client) TestNotification(ctx context.Context) (string, error) {
	var out api.ErrorResponse
	err := c.do(ctx, http.MethodPost, "/notifications/test", nil, nil, &out)
	return out.Detail, err
}

func featurePath(id int64) string {
	return "/features/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if IsAPIUnavailable(err) {
			return fmt.Errorf("%w: %w", ErrAPIUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var detail api.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&detail); err == nil {
			apiErr.Detail = detail.Detail
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// IsAPIUnavailable reports whether err means the daemon could not be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAPIUnavailable) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
