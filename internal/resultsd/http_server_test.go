package resultsd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()
	root := t.TempDir()
	writeExperiment(t, root, "exp1")
	return NewHTTPServer(NewReportStore(root))
}

func doGet(t *testing.T, srv *HTTPServer, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	srv.Handler().ServeHTTP(rr, req)
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json from %s: %v", target, err)
	}
	return rr, body
}

func TestHTTPServerHealthz(t *testing.T) {
	srv := newTestServer(t)
	rr, body := doGet(t, srv, "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["timestamp"] == "" {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestHTTPServerHealthzUnavailable(t *testing.T) {
	srv := NewHTTPServer(NewReportStore(filepath.Join(t.TempDir(), "missing")))
	rr, body := doGet(t, srv, "/healthz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	if body["status"] != "unavailable" {
		t.Fatalf("expected status unavailable, got %v", body["status"])
	}
}

func TestHTTPServerListExperiments(t *testing.T) {
	srv := newTestServer(t)
	rr, body := doGet(t, srv, "/v1/experiments")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body["total"].(float64) != 1 {
		t.Fatalf("expected 1 experiment, got %v", body["total"])
	}
	list := body["experiments"].([]any)
	first := list[0].(map[string]any)
	if first["name"] != "exp1" || first["run_type"] != "optimize" {
		t.Fatalf("unexpected summary: %v", first)
	}
}

func TestHTTPServerMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	for _, target := range []string{"/v1/experiments", "/v1/experiments/exp1/metrics"} {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, target, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected status 405, got %d", target, rr.Code)
		}
	}
}

func TestHTTPServerExperimentViews(t *testing.T) {
	srv := newTestServer(t)

	rr, body := doGet(t, srv, "/v1/experiments/exp1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	cfg := body["config"].(map[string]any)
	if cfg["experiment_name"] != "exp1" {
		t.Fatalf("unexpected config: %v", cfg)
	}

	rr, body = doGet(t, srv, "/v1/experiments/exp1/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	a := body["metrics"].(map[string]any)["A"].(map[string]any)
	if a["test"].(map[string]any)["r2"].(float64) != 0.8 {
		t.Fatalf("unexpected metrics for A: %v", a)
	}

	rr, _ = doGet(t, srv, "/v1/experiments/exp1/features")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	rr, body = doGet(t, srv, "/v1/experiments/exp1/cv_scores")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body["cv_scoring"] != "mse" {
		t.Fatalf("expected cv_scoring mse, got %v", body["cv_scoring"])
	}
	if len(body["cv_scores"].(map[string]any)["A"].([]any)) != 2 {
		t.Fatalf("expected 2 cv scores for A: %v", body["cv_scores"])
	}
}

func TestHTTPServerSorted(t *testing.T) {
	srv := newTestServer(t)

	rr, body := doGet(t, srv, "/v1/experiments/exp1/sorted?metric=r2")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %v", rr.Code, body)
	}
	rows := body["rows"].([]any)
	if len(rows) != 2 || rows[0].(map[string]any)["variant"] != "A" {
		t.Fatalf("expected A ranked first, got %v", rows)
	}

	_, body = doGet(t, srv, "/v1/experiments/exp1/sorted?metric=r2&cutoff_type=greater&cutoff_val=0.7")
	if rows := body["rows"].([]any); len(rows) != 1 {
		t.Fatalf("expected cutoff to keep one row, got %v", rows)
	}

	_, body = doGet(t, srv, "/v1/experiments/exp1/sorted?metric=nse&ignore_nans=false")
	rows = body["rows"].([]any)
	if len(rows) != 2 || rows[0].(map[string]any)["test"] != nil {
		t.Fatalf("expected null values for a missing metric, got %v", rows)
	}

	tests := []string{
		"/v1/experiments/exp1/sorted",
		"/v1/experiments/exp1/sorted?metric=r2&cutoff_val=abc",
		"/v1/experiments/exp1/sorted?metric=r2&ignore_nans=maybe",
		"/v1/experiments/exp1/sorted?metric=r2&cutoff_type=between",
		"/v1/experiments/exp1/sorted?metric=r2&sort_by=val",
	}
	for _, target := range tests {
		rr, _ := doGet(t, srv, target)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", target, rr.Code)
		}
	}
}

func TestHTTPServerImprovement(t *testing.T) {
	srv := newTestServer(t)
	rr, body := doGet(t, srv, "/v1/experiments/exp1/improvement?metric=r2")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	rows := body["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("expected one optimized row, got %v", rows)
	}
	row := rows[0].(map[string]any)
	if row["variant"] != "A" || row["start"].(float64) != 0.1 || row["end"].(float64) != 0.8 {
		t.Fatalf("unexpected improvement row: %v", row)
	}

	rr, _ = doGet(t, srv, "/v1/experiments/exp1/improvement")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without metric, got %d", rr.Code)
	}
}

func TestHTTPServerConvergenceAfterMove(t *testing.T) {
	root := t.TempDir()
	writeExperiment(t, root, "exp1")
	moved := t.TempDir()
	if err := os.Rename(filepath.Join(root, "exp1"), filepath.Join(moved, "exp1")); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	srv := NewHTTPServer(NewReportStore(moved))
	rr, body := doGet(t, srv, "/v1/experiments/exp1/convergence?variant=A")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %v", rr.Code, body)
	}
	curve := body["convergence"].(map[string]any)["A"].([]any)
	if len(curve) != 4 || curve[3].(float64) != 1 {
		t.Fatalf("unexpected curve %v", curve)
	}
}

func TestHTTPServerConvergence(t *testing.T) {
	srv := newTestServer(t)
	rr, body := doGet(t, srv, "/v1/experiments/exp1/convergence")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	curve := body["convergence"].(map[string]any)["A"].([]any)
	want := []float64{4, 2.5, 2.5, 1}
	if len(curve) != len(want) {
		t.Fatalf("expected %v, got %v", want, curve)
	}
	for i, v := range want {
		if curve[i].(float64) != v {
			t.Fatalf("expected %v, got %v", want, curve)
		}
	}

	rr, body = doGet(t, srv, "/v1/experiments/exp1/convergence?variant=model_A")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if _, ok := body["convergence"].(map[string]any)["A"]; !ok {
		t.Fatalf("expected canonical key A, got %v", body)
	}

	rr, _ = doGet(t, srv, "/v1/experiments/exp1/convergence?variant=B")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for a variant without search, got %d", rr.Code)
	}
}

func TestHTTPServerExperimentErrors(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		target string
		code   int
	}{
		{"/v1/experiments/", http.StatusBadRequest},
		{"/v1/experiments/missing/metrics", http.StatusNotFound},
		{"/v1/experiments/exp1/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.target, nil))
		if rr.Code != tt.code {
			t.Fatalf("%s: expected status %d, got %d", tt.target, tt.code, rr.Code)
		}
	}
}
