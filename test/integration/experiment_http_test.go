//go:build integration
// +build integration

package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/GoSim-25-26J-441/experiment-core/internal/metrics"
	"github.com/GoSim-25-26J-441/experiment-core/internal/resultsd"
	"github.com/GoSim-25-26J-441/experiment-core/internal/trial"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/config"
)

var truth = []float64{1, 2, 3, 4, 5, 6, 7, 8}

// offsetModel alternates +offset and -offset around the truth.
type offsetModel struct {
	offset float64
	path   string
}

func (m *offsetModel) Fit(ctx context.Context, data trial.Dataset) error { return nil }

func (m *offsetModel) Predict(ctx context.Context, data trial.Dataset, split trial.Split) (trial.Prediction, error) {
	pred := make([]float64, len(truth))
	for i, v := range truth {
		if i%2 == 0 {
			pred[i] = v + m.offset
		} else {
			pred[i] = v - m.offset
		}
	}
	return trial.Prediction{True: slices.Clone(truth), Pred: pred}, nil
}

func (m *offsetModel) ValMetric() string  { return metrics.MSE }
func (m *offsetModel) IsMulticlass() bool { return false }
func (m *offsetModel) Path() string       { return m.path }

func offsetFactory(root string) trial.Factory {
	return trial.FactoryFunc(func(ctx context.Context, cfg trial.Config) (trial.Model, error) {
		name, _ := cfg["model"].(string)
		offset, _ := cfg["offset"].(float64)
		return &offsetModel{offset: offset, path: filepath.Join(root, "models", name)}, nil
	})
}

const experimentYAML = `
log_level: warn
experiment:
  name: integration
  mode: regression
  monitor: [r2, mse]
fit:
  run_type: optimize
  opt_method: random
  num_iterations: 6
  post_optimize: train_best
  hpo_kws: {seed: 7}
variants:
  - name: model_Close
    parameters:
      - {type: Real, name: offset, low: 0.0, high: 0.5}
    x0: [0.25]
    case: {model: close}
  - name: Far
    parameters:
      - {type: Real, name: offset, low: 2.0, high: 3.0}
    x0: [2.5]
    case: {model: far}
`

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: expected status 200, got %d", url, resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("GET %s: invalid json: %v", url, err)
	}
	return body
}

func TestIntegration_FitThenServeResults(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "experiment.yaml")
	if err := os.WriteFile(path, []byte(experimentYAML), 0o644); err != nil {
		t.Fatalf("write experiment: %v", err)
	}

	cfg, err := config.LoadExperiment(path)
	if err != nil {
		t.Fatalf("LoadExperiment failed: %v", err)
	}
	cfg.Experiment.ResultsDir = filepath.Join(root, "results")

	orch, err := cfg.Orchestrator(offsetFactory(root))
	if err != nil {
		t.Fatalf("Orchestrator failed: %v", err)
	}
	opts, err := cfg.FitOptions()
	if err != nil {
		t.Fatalf("FitOptions failed: %v", err)
	}
	if _, err := orch.Fit(context.Background(), nil, opts); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	srv := httptest.NewServer(resultsd.NewHTTPServer(resultsd.NewReportStore(cfg.Experiment.ResultsDir)).Handler())
	defer srv.Close()

	list := getJSON(t, srv.URL+"/v1/experiments")
	if list["total"].(float64) != 1 {
		t.Fatalf("expected one experiment, got %v", list)
	}

	sorted := getJSON(t, srv.URL+"/v1/experiments/integration/sorted?metric=r2")
	rows := sorted["rows"].([]any)
	if len(rows) != 2 {
		t.Fatalf("expected two ranked variants, got %v", rows)
	}
	if rows[0].(map[string]any)["variant"] != "Close" {
		t.Fatalf("expected Close ranked first, got %v", rows)
	}

	conv := getJSON(t, srv.URL+"/v1/experiments/integration/convergence")
	curves := conv["convergence"].(map[string]any)
	for _, name := range []string{"Close", "Far"} {
		curve, ok := curves[name].([]any)
		if !ok || len(curve) == 0 {
			t.Fatalf("expected a convergence curve for %s, got %v", name, curves)
		}
		for i := 1; i < len(curve); i++ {
			if curve[i].(float64) > curve[i-1].(float64) {
				t.Fatalf("convergence curve of %s increases: %v", name, curve)
			}
		}
	}

	improvement := getJSON(t, srv.URL+"/v1/experiments/integration/improvement?metric=mse")
	if len(improvement["rows"].([]any)) != 2 {
		t.Fatalf("expected improvement rows for both variants, got %v", improvement)
	}
}
