package hpo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/GoSim-25-26J-441/experiment-core/internal/metrics"
	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/internal/trial"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/logger"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

// Outcome is what the objective reports for one assignment.
type Outcome struct {
	Objective  float64
	Metrics    metrics.Snapshot
	Checkpoint *trial.Checkpoint
}

// Objective evaluates one assignment. An error aborts the search.
type Objective func(ctx context.Context, a space.Assignment) (Outcome, error)

// Observation is a previously evaluated point used to resume a search.
type Observation struct {
	Assignment space.Assignment `json:"assignment"`
	Objective  float64          `json:"objective"`
}

// Record is one entry of the trial history.
type Record struct {
	Iteration   int               `json:"iteration"`
	Fingerprint string            `json:"fingerprint"`
	Assignment  space.Assignment  `json:"assignment"`
	Objective   float64           `json:"objective"`
	Metrics     metrics.Snapshot  `json:"metrics,omitempty"`
	Resumed     bool              `json:"resumed,omitempty"`
	Checkpoint  *trial.Checkpoint `json:"checkpoint,omitempty"`
}

// Result contains the trial history and the best point found
type Result struct {
	Method            Method
	History           []Record
	Best              Record
	Converged         bool
	ConvergenceReason string
	Dir               string
}

// BestPoint returns the best assignment.
func (r *Result) BestPoint() space.Assignment {
	return r.Best.Assignment.Clone()
}

// Objectives returns the objective of every record in iteration order.
func (r *Result) Objectives() []float64 {
	out := make([]float64, len(r.History))
	for i, rec := range r.History {
		out[i] = rec.Objective
	}
	return out
}

// Curve returns the running minimum of the objectives.
func (r *Result) Curve() []float64 {
	return utils.RunningMin(r.Objectives())
}

// Driver runs one search with a fixed backend kind. It holds no state
// between runs, so one Driver may serve many variants in turn.
type Driver struct {
	method      Method
	opts        Options
	dir         string
	selection   SelectionStrategy
	convergence ConvergenceStrategy
	logger      *slog.Logger
}

// NewDriver creates a driver for method.
func NewDriver(method Method, opts Options) (*Driver, error) {
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	return &Driver{
		method:      method,
		opts:        opts,
		selection:   &BestScoreStrategy{},
		convergence: NewNoImprovementStrategy(nil),
	}, nil
}

// WithDir sets the directory the search is persisted to. Empty disables persistence.
func (d *Driver) WithDir(dir string) *Driver {
	d.dir = dir
	return d
}

// WithLogger sets the logger
func (d *Driver) WithLogger(l *slog.Logger) *Driver {
	d.logger = l
	return d
}

// WithSelection sets how the best record is chosen. Nil keeps the current one.
func (d *Driver) WithSelection(s SelectionStrategy) *Driver {
	if s != nil {
		d.selection = s
	}
	return d
}

// WithConvergence sets the strategy used to report convergence. Nil disables it.
func (d *Driver) WithConvergence(c ConvergenceStrategy) *Driver {
	d.convergence = c
	return d
}

// Method returns the backend kind.
func (d *Driver) Method() Method { return d.method }

// Run searches s. Prior observations seed the backend and open the history
// without being evaluated again. x0, or the space's default point when x0 is
// nil, is evaluated first and counts toward the budget. The grid backend
// evaluates its whole grid and ignores the budget; every other backend runs
// exactly budget new evaluations. Non-finite objectives are replaced by
// trial.DegenerateObjective. An objective error ends the search.
func (d *Driver) Run(ctx context.Context, s *space.SearchSpace, x0 []any, objective Objective, budget int, prior ...Observation) (*Result, error) {
	if s == nil || s.Len() == 0 {
		return nil, errors.New("search space is empty")
	}
	if objective == nil {
		return nil, errors.New("objective function is required")
	}
	if d.method != MethodGrid && budget <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBudget, budget)
	}

	backend, err := NewBackend(d.method, s, d.opts)
	if err != nil {
		return nil, err
	}
	l := logger.OrDefault(d.logger).With("method", string(d.method))

	history := make([]Record, 0, len(prior)+budget)
	seen := make(map[string]bool)

	for _, obs := range prior {
		a, err := s.Coerce(obs.Assignment)
		if err != nil {
			return nil, fmt.Errorf("prior observation: %w", err)
		}
		obj := sanitize(obs.Objective)
		backend.Tell(a, obj)
		fp := utils.Fingerprint(a)
		seen[fp] = true
		history = append(history, Record{
			Iteration:   len(history),
			Fingerprint: fp,
			Assignment:  a,
			Objective:   obj,
			Resumed:     true,
		})
	}
	if len(prior) > 0 {
		l.Info("search resumed", "observations", len(prior))
	}

	evaluate := func(a space.Assignment) error {
		iter := len(history)
		out, err := objective(ctx, a.Clone())
		if err != nil {
			return fmt.Errorf("iteration %d: %w", iter, err)
		}
		obj := sanitize(out.Objective)
		backend.Tell(a, obj)
		fp := utils.Fingerprint(a)
		seen[fp] = true
		history = append(history, Record{
			Iteration:   iter,
			Fingerprint: fp,
			Assignment:  a,
			Objective:   obj,
			Metrics:     out.Metrics,
			Checkpoint:  out.Checkpoint,
		})
		l.Debug("trial completed", "iteration", iter, "objective", obj)
		return nil
	}

	evaluated := 0
	if x0 == nil {
		x0 = s.X0()
	}
	if d.method != MethodGrid && x0 != nil {
		a, err := s.Point(x0)
		if err != nil {
			return nil, fmt.Errorf("default point: %w", err)
		}
		if !seen[utils.Fingerprint(a)] {
			if err := evaluate(a); err != nil {
				return nil, err
			}
			evaluated++
		}
	}

	for d.method == MethodGrid || evaluated < budget {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, ok, err := backend.Ask(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s backend: %w", d.method, err)
		}
		if !ok {
			break
		}
		if err := evaluate(a); err != nil {
			return nil, err
		}
		evaluated++
	}

	result, err := d.buildResult(history)
	if err != nil {
		return nil, err
	}
	l.Info("search completed", "evaluated", evaluated, "best_objective", result.Best.Objective, "best_iteration", result.Best.Iteration)

	if d.dir != "" {
		result.Dir = d.dir
		if err := Save(d.dir, s, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (d *Driver) buildResult(history []Record) (*Result, error) {
	best, err := d.selection.SelectBest(history)
	if err != nil {
		return nil, err
	}
	result := &Result{Method: d.method, History: history, Best: best}
	if d.convergence != nil {
		result.Converged, result.ConvergenceReason = d.convergence.CheckConvergence(history)
	}
	return result, nil
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return trial.DegenerateObjective
	}
	return v
}
