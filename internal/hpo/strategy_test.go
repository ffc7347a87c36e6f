package hpo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
)

func records(objectives ...float64) []Record {
	out := make([]Record, len(objectives))
	for i, v := range objectives {
		out[i] = Record{Iteration: i, Objective: v}
	}
	return out
}

func TestBestScoreStrategy(t *testing.T) {
	s := &BestScoreStrategy{}
	_, err := s.SelectBest(nil)
	assert.Error(t, err)

	best, err := s.SelectBest(records(3, 1, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, best.Iteration)
}

func TestEvaluatedOnlyStrategy(t *testing.T) {
	h := records(0.5, 2, 1)
	h[0].Resumed = true
	best, err := (&EvaluatedOnlyStrategy{}).SelectBest(h)
	require.NoError(t, err)
	assert.Equal(t, 2, best.Iteration)

	h = records(0.5)
	h[0].Resumed = true
	best, err = (&EvaluatedOnlyStrategy{}).SelectBest(h)
	require.NoError(t, err)
	assert.Equal(t, 0, best.Iteration)
}

func TestNoImprovementStrategy(t *testing.T) {
	cfg := &ConvergenceConfig{NoImprovementIterations: 3, MinIterations: 2, ScoreTolerance: 1e-3, PlateauIterations: 3}
	s := NewNoImprovementStrategy(cfg)

	ok, _ := s.CheckConvergence(records(5, 4, 3, 2))
	assert.False(t, ok)
	ok, reason := s.CheckConvergence(records(5, 1, 3, 2, 4))
	assert.True(t, ok)
	assert.Contains(t, reason, "best at iteration 1")
}

func TestPlateauAndCombinedStrategies(t *testing.T) {
	cfg := &ConvergenceConfig{NoImprovementIterations: 10, MinIterations: 2, ScoreTolerance: 0.01, PlateauIterations: 3}
	plateau := NewPlateauStrategy(cfg)

	ok, _ := plateau.CheckConvergence(records(9, 2, 2.001, 2.002))
	assert.True(t, ok)
	ok, _ = plateau.CheckConvergence(records(9, 2, 3, 2))
	assert.False(t, ok)

	combined := NewCombinedStrategy(NewNoImprovementStrategy(cfg), plateau)
	ok, reason := combined.CheckConvergence(records(9, 2, 2.001, 2.002))
	assert.True(t, ok)
	assert.Contains(t, reason, "plateau")
}

func TestDriverReportsConvergence(t *testing.T) {
	d, err := NewDriver(MethodRandom, Options{})
	require.NoError(t, err)
	res, err := d.buildResult(records(1, 2, 3, 4, 5, 6, 7))
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.NotEmpty(t, res.ConvergenceReason)
}

func TestOptionsStrategies(t *testing.T) {
	tests := []struct {
		name        string
		opts        Options
		selection   string
		convergence string
	}{
		{"defaults", Options{}, "best_score", "no_improvement"},
		{"evaluated only", Options{Selection: "evaluated_only"}, "evaluated_only", "no_improvement"},
		{"plateau", Options{Convergence: "plateau"}, "best_score", "plateau"},
		{"combined", Options{Convergence: "combined"}, "best_score", "combined"},
		{"disabled", Options{Convergence: "none"}, "best_score", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, conv, err := tt.opts.Strategies()
			require.NoError(t, err)
			assert.Equal(t, tt.selection, sel.Name())
			if tt.convergence == "" {
				assert.Nil(t, conv)
				return
			}
			require.NotNil(t, conv)
			assert.Equal(t, tt.convergence, conv.Name())
		})
	}

	_, _, err := Options{Selection: "median"}.Strategies()
	assert.Error(t, err)
	_, _, err = Options{Convergence: "forever"}.Strategies()
	assert.Error(t, err)
}

func TestOptionsPatienceAndTolerance(t *testing.T) {
	_, conv, err := Options{Convergence: "plateau", Patience: 2, Tolerance: 0.5}.Strategies()
	require.NoError(t, err)
	ok, _ := conv.CheckConvergence(records(9, 8, 3, 3.4))
	assert.True(t, ok)

	_, conv, err = Options{Patience: 2}.Strategies()
	require.NoError(t, err)
	ok, _ = conv.CheckConvergence(records(1, 5, 6))
	assert.True(t, ok)
}

func TestDriverUsesConfiguredStrategies(t *testing.T) {
	sel, conv, err := Options{Selection: "evaluated_only", Convergence: "none"}.Strategies()
	require.NoError(t, err)
	d, err := NewDriver(MethodRandom, Options{})
	require.NoError(t, err)
	d.WithSelection(sel).WithConvergence(conv)

	h := records(0.1, 2, 1, 3, 4, 5, 6)
	h[0].Resumed = true
	res, err := d.buildResult(h)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Best.Iteration)
	assert.False(t, res.Converged)
	assert.Empty(t, res.ConvergenceReason)
}

func TestDefaultExplorer(t *testing.T) {
	x, err := space.NewReal("x", 0, 10)
	require.NoError(t, err)
	c, err := space.NewCategorical("c", []any{"a", "b", "c"})
	require.NoError(t, err)
	s, err := space.New([]*space.Parameter{x, c}, nil)
	require.NoError(t, err)

	e := NewDefaultExplorer(s)
	assert.Equal(t, "default", e.Name())

	n := e.GenerateNeighbors(space.Assignment{"x": 5.0, "c": "b"}, 0.1)
	require.Len(t, n, 4)
	var xs []float64
	var cs []any
	for _, a := range n {
		if a["c"] == "b" {
			xs = append(xs, a["x"].(float64))
		} else {
			assert.Equal(t, 5.0, a["x"])
			cs = append(cs, a["c"])
		}
	}
	require.Len(t, xs, 2)
	assert.InDelta(t, 4.0, xs[0], 1e-9)
	assert.InDelta(t, 6.0, xs[1], 1e-9)
	assert.ElementsMatch(t, []any{"a", "c"}, cs)

	edge := e.GenerateNeighbors(space.Assignment{"x": 0.0, "c": "a"}, 0.1)
	assert.Len(t, edge, 2)
}
