package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/deusflow/dailybrief/internal/metrics"
)

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Invalid JSON response %q: %v", w.Body.String(), err)
	}
	return w, out
}

func TestHealth(t *testing.T) {
	m := metrics.New()
	m.SetLastRun("abc")
	r := NewServer(NewHandler(nil, m, ""))

	w, out := do(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || out["status"] != "ok" || out["last_run_id"] != "abc" {
		t.Errorf("Unexpected health %d %v", w.Code, out)
	}

	m.SetError("boom")
	w, out = do(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusServiceUnavailable || out["status"] != "error" || out["last_error"] != "boom" {
		t.Errorf("Expected degraded health, got %v", out)
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	m.AddTopicsFetched(7)
	_, out := do(t, NewServer(NewHandler(nil, m, "")), http.MethodGet, "/metrics", "", nil)
	if out["topics_fetched"] != float64(7) {
		t.Errorf("Expected topics_fetched 7, got %v", out["topics_fetched"])
	}
}

func TestRunPassesPayloadAndRunID(t *testing.T) {
	var got RunRequest
	run := func(ctx context.Context, req RunRequest) (any, error) {
		got = req
		return map[string]string{"day_dir": "output/2025-01-02"}, nil
	}
	r := NewServer(NewHandler(run, metrics.New(), ""))

	w, out := do(t, r, http.MethodPost, "/run", `{"config":"alt.yaml","dry_run":true}`, nil)
	if w.Code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("Unexpected response %d %v", w.Code, out)
	}
	if got.Config != "alt.yaml" || !got.DryRun {
		t.Errorf("Unexpected request %+v", got)
	}
	if _, err := uuid.Parse(got.RunID); err != nil || out["run_id"] != got.RunID {
		t.Errorf("Expected uuid run id, got %q / %v", got.RunID, out["run_id"])
	}
	if output, _ := out["output"].(map[string]interface{}); output["day_dir"] != "output/2025-01-02" {
		t.Errorf("Unexpected output %v", out["output"])
	}
}

func TestRunWithoutBody(t *testing.T) {
	called := false
	run := func(ctx context.Context, req RunRequest) (any, error) {
		called = true
		return nil, nil
	}
	w, _ := do(t, NewServer(NewHandler(run, metrics.New(), "")), http.MethodPost, "/run", "", nil)
	if w.Code != http.StatusOK || !called {
		t.Errorf("Expected empty body to run with defaults, got %d", w.Code)
	}
}

func TestRunAPIKey(t *testing.T) {
	run := func(ctx context.Context, req RunRequest) (any, error) { return "done", nil }
	r := NewServer(NewHandler(run, metrics.New(), "secret"))

	if w, _ := do(t, r, http.MethodPost, "/run", "{}", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}
	if w, _ := do(t, r, http.MethodPost, "/run", "{}", map[string]string{"X-API-Key": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}
	if w, _ := do(t, r, http.MethodPost, "/run", "{}", map[string]string{"x-api-key": "secret"}); w.Code != http.StatusOK {
		t.Errorf("Expected 200 with key, got %d", w.Code)
	}
}

func TestRunFailureReturns500(t *testing.T) {
	run := func(ctx context.Context, req RunRequest) (any, error) { return nil, errors.New("renderer failed") }
	w, out := do(t, NewServer(NewHandler(run, metrics.New(), "")), http.MethodPost, "/run", "{}", nil)
	if w.Code != http.StatusInternalServerError || out["error"] != "renderer failed" {
		t.Errorf("Unexpected response %d %v", w.Code, out)
	}
}

func TestConcurrentRunConflicts(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	run := func(ctx context.Context, req RunRequest) (any, error) {
		close(started)
		<-release
		return "ok", nil
	}
	r := NewServer(NewHandler(run, metrics.New(), ""))

	first := make(chan int, 1)
	go func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/run", strings.NewReader("{}")))
		first <- w.Code
	}()

	<-started
	w, _ := do(t, r, http.MethodPost, "/run", "{}", nil)
	close(release)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 while busy, got %d", w.Code)
	}
	if code := <-first; code != http.StatusOK {
		t.Errorf("Expected first run to succeed, got %d", code)
	}
}
