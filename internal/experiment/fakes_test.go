package experiment

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/experiment-core/internal/metrics"
	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/internal/trial"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/logger"
)

var truth = []float64{1, 2, 3, 4, 5, 6, 7, 8}

// fakeModel predicts truth shifted by +offset and -offset alternately, so
// mse equals offset squared and r2 falls as the offset grows.
type fakeModel struct {
	offset     float64
	path       string
	checkpoint bool
}

func (m *fakeModel) Fit(ctx context.Context, data trial.Dataset) error { return nil }

func (m *fakeModel) Predict(ctx context.Context, data trial.Dataset, split trial.Split) (trial.Prediction, error) {
	pred := make([]float64, len(truth))
	for i, v := range truth {
		w := 1.0
		if i%2 == 1 {
			w = -1
		}
		pred[i] = v + m.offset*w
	}
	return trial.Prediction{True: slices.Clone(truth), Pred: pred}, nil
}

func (m *fakeModel) ValMetric() string  { return metrics.MSE }
func (m *fakeModel) IsMulticlass() bool { return false }
func (m *fakeModel) Path() string       { return m.path }

func (m *fakeModel) CrossValScores(ctx context.Context, data trial.Dataset, scoring string) ([]float64, error) {
	return []float64{m.offset, 2 * m.offset, 1}, nil
}

func (m *fakeModel) Checkpoint() (trial.Checkpoint, bool) {
	return trial.Checkpoint{
		ConfigPath:  filepath.Join(m.path, "config.json"),
		WeightsPath: strconv.FormatFloat(m.offset, 'g', -1, 64),
	}, m.checkpoint
}

type fakeFactory struct {
	mu     sync.Mutex
	builds int
}

func (f *fakeFactory) Build(ctx context.Context, cfg trial.Config) (trial.Model, error) {
	f.mu.Lock()
	f.builds++
	f.mu.Unlock()
	if cfg["fail"] == true {
		return nil, errors.New("invalid layer configuration")
	}
	m := &fakeModel{path: "/models/default"}
	if v, ok := cfg["offset"].(float64); ok {
		m.offset = v
	}
	if p, ok := cfg["path"].(string); ok {
		m.path = p
	}
	m.checkpoint = cfg["checkpoint"] == true
	return m, nil
}

func (f *fakeFactory) Builds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds
}

// loadingFactory can also restore models from checkpoints.
type loadingFactory struct {
	*fakeFactory
	restored []trial.Checkpoint
}

func (f *loadingFactory) FromCheckpoint(ctx context.Context, cp trial.Checkpoint) (trial.Model, error) {
	f.restored = append(f.restored, cp)
	offset, err := strconv.ParseFloat(cp.WeightsPath, 64)
	if err != nil {
		return nil, err
	}
	return &fakeModel{offset: offset, path: filepath.Dir(cp.ConfigPath)}, nil
}

// offsetBuilder declares one real parameter "offset" in [low, high].
func offsetBuilder(low, high, x0 float64, extra trial.Config) BuilderFunc {
	return func(suggested space.Assignment) (*space.SearchSpace, trial.Config, error) {
		p, err := space.NewReal("offset", low, high)
		if err != nil {
			return nil, nil, err
		}
		s, err := space.New([]*space.Parameter{p}, []any{x0})
		if err != nil {
			return nil, nil, err
		}
		cfg := trial.Config{"offset": x0}.Merge(extra).Merge(suggested)
		return s, cfg, nil
	}
}

// testRegistry declares A, B and C with test r2 of roughly 0.95, 0.82 and 0.12.
func testRegistry(t *testing.T, extra trial.Config) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register("model_A", offsetBuilder(-1, 1, 0.5, extra)))
	require.NoError(t, r.Register("B", offsetBuilder(0.5, 3, 1, extra)))
	require.NoError(t, r.Register("C", offsetBuilder(3, 5, 4, extra)))
	return r
}

func newTestOrchestrator(t *testing.T, reg *Registry, factory trial.Factory) *Orchestrator {
	t.Helper()
	runner, err := trial.NewRunner(factory, metrics.ModeRegression, nil)
	require.NoError(t, err)
	o, err := New("exp", t.TempDir(), reg, runner.WithLogger(logger.Discard()))
	require.NoError(t, err)
	return o.WithLogger(logger.Discard())
}
