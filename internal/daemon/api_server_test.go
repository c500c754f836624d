package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"backlog/internal/api"
	"backlog/internal/config"
	"backlog/internal/features"
	"backlog/internal/testsupport"
)

type apiHarness struct {
	t      *testing.T
	daemon *Daemon
	store  *features.Store
	server *httptest.Server
	token  string
}

func newAPIHarness(t *testing.T, opts ...testsupport.ConfigOption) *apiHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	return newAPIHarnessFromConfig(t, cfg)
}

func newAPIHarnessFromConfig(t *testing.T, cfg *config.Config) *apiHarness {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	srv := httptest.NewServer(d.api.handler())
	t.Cleanup(srv.Close)
	return &apiHarness{t: t, daemon: d, store: store, server: srv, token: cfg.Paths.APIToken}
}

func (h *apiHarness) do(method, path string, body any) *http.Response {
	h.t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, reader)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := h.server.Client().Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status %d, want %d (body %s)", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

func sampleCreate(n int) api.FeatureCreate {
	return api.FromNewFeature(testsupport.SampleFeature(n))
}

func TestAPIHealth(t *testing.T) {
	h := newAPIHarness(t)
	resp := h.do(http.MethodGet, "/health", nil)
	expectStatus(t, resp, http.StatusOK)
	health := decodeBody[api.HealthResponse](t, resp)
	if health.Status != "healthy" || health.Database != "connected" {
		t.Fatalf("unexpected health %+v", health)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestAPICreateAndFetch(t *testing.T) {
	h := newAPIHarness(t)

	resp := h.do(http.MethodPost, "/features", sampleCreate(1))
	expectStatus(t, resp, http.StatusCreated)
	created := decodeBody[api.Feature](t, resp)
	if created.ID == 0 || created.Priority != 1 || created.Passes {
		t.Fatalf("unexpected created feature %+v", created)
	}

	resp = h.do(http.MethodGet, "/features/"+itoa(created.ID), nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody[api.Feature](t, resp); got.Name != created.Name || len(got.Steps) != 2 {
		t.Fatalf("unexpected fetched feature %+v", got)
	}

	resp = h.do(http.MethodGet, "/features/9999", nil)
	expectStatus(t, resp, http.StatusNotFound)
	if detail := decodeBody[api.ErrorResponse](t, resp); detail.Detail != "Feature not found" {
		t.Fatalf("detail = %q", detail.Detail)
	}
}

func TestAPIValidationErrorsAre422(t *testing.T) {
	h := newAPIHarness(t)
	for _, body := range []string{
		`{"category":"c","name":"n","description":"d","steps":[]}`,
		`{"category":"   ","name":"n","description":"d","steps":["a"]}`,
		`{not json`,
	} {
		resp := h.do(http.MethodPost, "/features", body)
		expectStatus(t, resp, http.StatusUnprocessableEntity)
		if detail := decodeBody[api.ErrorResponse](t, resp); detail.Detail == "" {
			t.Fatalf("expected a detail message for %s", body)
		}
	}
	if page, err := h.store.List(context.Background(), features.ListQuery{}); err != nil || page.Total != 0 {
		t.Fatalf("rejected bodies must not create rows: total=%d err=%v", page.Total, err)
	}
}

func TestAPIBulkCreate(t *testing.T) {
	h := newAPIHarness(t)
	req := api.BulkCreateRequest{Features: []api.FeatureCreate{sampleCreate(1), sampleCreate(2), sampleCreate(3)}}
	resp := h.do(http.MethodPost, "/features/bulk", req)
	expectStatus(t, resp, http.StatusCreated)
	if got := decodeBody[api.BulkCreateResponse](t, resp); got.Created != 3 {
		t.Fatalf("created = %d, want 3", got.Created)
	}

	bad := api.BulkCreateRequest{Features: []api.FeatureCreate{sampleCreate(4), {Category: "c", Name: "", Description: "d", Steps: []string{"a"}}}}
	resp = h.do(http.MethodPost, "/features/bulk", bad)
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = h.do(http.MethodGet, "/features/stats", nil)
	expectStatus(t, resp, http.StatusOK)
	if stats := decodeBody[api.StatsResponse](t, resp); stats.Total != 3 {
		t.Fatalf("rejected batch must not insert anything, total=%d", stats.Total)
	}
}

func TestAPIListQueryParameters(t *testing.T) {
	h := newAPIHarness(t)
	for i := 1; i <= 7; i++ {
		testsupport.NewFeature(t, h.store, i)
	}

	resp := h.do(http.MethodGet, "/features?limit=50", nil)
	expectStatus(t, resp, http.StatusOK)
	page := decodeBody[api.FeatureListResponse](t, resp)
	if page.Limit != 5 || len(page.Features) != 5 || page.Total != 7 {
		t.Fatalf("unexpected page %+v", page)
	}

	resp = h.do(http.MethodGet, "/features?offset=5&passes=false", nil)
	expectStatus(t, resp, http.StatusOK)
	if page := decodeBody[api.FeatureListResponse](t, resp); len(page.Features) != 2 || page.Offset != 5 {
		t.Fatalf("unexpected offset page %+v", page)
	}

	for _, bad := range []string{"limit=abc", "offset=x", "passes=maybe", "random=sometimes"} {
		resp := h.do(http.MethodGet, "/features?"+bad, nil)
		expectStatus(t, resp, http.StatusBadRequest)
	}
}

func TestAPINextAndSkip(t *testing.T) {
	h := newAPIHarness(t)
	a := testsupport.NewFeature(t, h.store, 1)
	b := testsupport.NewFeature(t, h.store, 2)
	testsupport.NewFeature(t, h.store, 3)

	resp := h.do(http.MethodPost, "/features/"+itoa(a.ID)+"/skip", nil)
	expectStatus(t, resp, http.StatusOK)
	skip := decodeBody[api.SkipResponse](t, resp)
	if skip.OldPriority != 1 || skip.NewPriority != 4 {
		t.Fatalf("unexpected skip %+v", skip)
	}
	if skip.Message != "Feature 'feature 1' moved to end of queue" {
		t.Fatalf("message = %q", skip.Message)
	}

	resp = h.do(http.MethodGet, "/features/next", nil)
	expectStatus(t, resp, http.StatusOK)
	if next := decodeBody[api.Feature](t, resp); next.ID != b.ID {
		t.Fatalf("next = %d, want %d", next.ID, b.ID)
	}

	testsupport.MarkPassing(t, h.store, b.ID)
	resp = h.do(http.MethodPost, "/features/"+itoa(b.ID)+"/skip", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if detail := decodeBody[api.ErrorResponse](t, resp); detail.Detail != "Cannot skip a feature that is already passing" {
		t.Fatalf("detail = %q", detail.Detail)
	}

	resp = h.do(http.MethodPost, "/features/9999/skip", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestAPINextWhenAllPassing(t *testing.T) {
	h := newAPIHarness(t)
	f := testsupport.NewFeature(t, h.store, 1)
	testsupport.MarkPassing(t, h.store, f.ID)

	resp := h.do(http.MethodGet, "/features/next", nil)
	expectStatus(t, resp, http.StatusNotFound)
	if detail := decodeBody[api.ErrorResponse](t, resp); detail.Detail != "All features are passing! No more work to do." {
		t.Fatalf("detail = %q", detail.Detail)
	}
}

func TestAPIPatchAndDelete(t *testing.T) {
	h := newAPIHarness(t)
	f := testsupport.NewFeature(t, h.store, 1)

	resp := h.do(http.MethodPatch, "/features/"+itoa(f.ID), api.StatusUpdate{Passes: true})
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody[api.Feature](t, resp); !got.Passes {
		t.Fatalf("expected passes=true")
	}

	resp = h.do(http.MethodGet, "/features/all-passing", nil)
	expectStatus(t, resp, http.StatusOK)
	if all := decodeBody[api.AllPassingResponse](t, resp); all.Count != 1 || all.Features[0].ID != f.ID {
		t.Fatalf("unexpected all-passing %+v", all)
	}

	resp = h.do(http.MethodPatch, "/features/"+itoa(f.ID), `{"passes":"yes"}`)
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = h.do(http.MethodDelete, "/features/"+itoa(f.ID), nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp = h.do(http.MethodDelete, "/features/"+itoa(f.ID), nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp = h.do(http.MethodPatch, "/features/"+itoa(f.ID), api.StatusUpdate{Passes: false})
	expectStatus(t, resp, http.StatusNotFound)
}

func TestAPIAuth(t *testing.T) {
	h := newAPIHarness(t, testsupport.WithAPIToken("s3cret"))

	resp := h.do(http.MethodGet, "/features/stats", nil)
	expectStatus(t, resp, http.StatusOK)

	h.token = "wrong"
	resp = h.do(http.MethodGet, "/features/stats", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	h.token = ""
	resp = h.do(http.MethodGet, "/health", nil)
	expectStatus(t, resp, http.StatusOK)
}

func TestAPIProgressCheckNotifies(t *testing.T) {
	var hits atomic.Int32
	var lastBody atomic.Value
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		lastBody.Store(string(body))
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(webhook.Close)

	h := newAPIHarness(t, testsupport.WithWebhook(webhook.URL))
	a := testsupport.NewFeature(t, h.store, 1)
	testsupport.NewFeature(t, h.store, 2)

	resp := h.do(http.MethodPost, "/progress/check", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody[api.ProgressCheckResponse](t, resp); got.Outcome != "bootstrapped" {
		t.Fatalf("first outcome = %q, want bootstrapped", got.Outcome)
	}

	testsupport.MarkPassing(t, h.store, a.ID)
	resp = h.do(http.MethodPost, "/progress/check", nil)
	expectStatus(t, resp, http.StatusOK)
	got := decodeBody[api.ProgressCheckResponse](t, resp)
	if got.Outcome != "notified" || len(got.NewIDs) != 1 || got.NewIDs[0] != a.ID {
		t.Fatalf("unexpected progress response %+v", got)
	}

	h.daemon.dispatcher.Wait()
	if hits.Load() != 1 {
		t.Fatalf("webhook hits = %d, want 1", hits.Load())
	}
	body, _ := lastBody.Load().(string)
	if !strings.Contains(body, `"completed_tests":["functional feature 1"]`) {
		t.Fatalf("unexpected webhook body %s", body)
	}

	resp = h.do(http.MethodPost, "/progress/check", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody[api.ProgressCheckResponse](t, resp); got.Outcome != "unchanged" {
		t.Fatalf("third outcome = %q, want unchanged", got.Outcome)
	}
	h.daemon.dispatcher.Wait()
	if hits.Load() != 1 {
		t.Fatalf("repeated check must not notify again, hits=%d", hits.Load())
	}
}

func TestAPITestNotificationWithoutSinks(t *testing.T) {
	h := newAPIHarness(t)
	resp := h.do(http.MethodPost, "/notifications/test", nil)
	expectStatus(t, resp, http.StatusBadRequest)
}
