package experiment

import (
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/experiment-core/internal/hpo"
)

// RunType selects between a single training pass and a search.
type RunType string

const (
	RunDryRun   RunType = "dry_run"
	RunOptimize RunType = "optimize"
)

// PostOptimize selects how the final model of an optimized variant is produced.
type PostOptimize string

const (
	// PostEvalBest restores the rank 1 checkpoint and predicts without retraining.
	PostEvalBest PostOptimize = "eval_best"
	// PostTrainBest retrains a fresh model on the best assignment.
	PostTrainBest PostOptimize = "train_best"
)

// DefaultNumIterations is the search budget when none is configured.
const DefaultNumIterations = 14

// FitOptions configures one call to Orchestrator.Fit.
type FitOptions struct {
	RunType       RunType
	Method        hpo.Method
	NumIterations int
	Include       []string
	Exclude       []string
	CrossValidate bool
	// Scoring is the cross-validation metric shared by every variant. Empty
	// uses the first variant's validation metric.
	Scoring      string
	PostOptimize PostOptimize
	HPO          hpo.Options
	// Workers bounds how many variants run at once. Values below 2 run
	// variants sequentially in declaration order.
	Workers int
	// Prior holds previously observed evaluations per variant to resume from.
	Prior map[string][]hpo.Observation
}

func (o FitOptions) withDefaults() FitOptions {
	if o.RunType == "" {
		o.RunType = RunDryRun
	}
	if o.Method == "" {
		o.Method = hpo.MethodBayes
	}
	if o.NumIterations == 0 {
		o.NumIterations = DefaultNumIterations
	}
	if o.PostOptimize == "" {
		o.PostOptimize = PostEvalBest
	}
	return o
}

// Validate checks the options without touching any variant.
func (o FitOptions) Validate() error {
	switch o.RunType {
	case RunDryRun, RunOptimize:
	default:
		return &ConfigError{Field: "run_type", Name: string(o.RunType), Err: errors.New("must be dry_run or optimize")}
	}
	switch o.PostOptimize {
	case PostEvalBest, PostTrainBest:
	default:
		return &ConfigError{Field: "post_optimize", Name: string(o.PostOptimize), Err: errors.New("must be eval_best or train_best")}
	}
	if _, err := hpo.ParseMethod(string(o.Method)); err != nil {
		return &ConfigError{Field: "opt_method", Name: string(o.Method), Err: err}
	}
	if _, _, err := o.HPO.Strategies(); err != nil {
		return &ConfigError{Field: "hpo_kws", Err: err}
	}
	if o.NumIterations < 0 {
		return &ConfigError{Field: "num_iterations", Err: fmt.Errorf("%w: %d", hpo.ErrInvalidBudget, o.NumIterations)}
	}
	if o.Workers < 0 {
		return &ConfigError{Field: "workers", Err: fmt.Errorf("must be non-negative, got %d", o.Workers)}
	}
	return nil
}
