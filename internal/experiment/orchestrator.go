// Package experiment compares model variants: each variant is trained once or
// searched with an optimization backend, and its final predictions are scored
// into tables that are comparable across variants and persisted as JSON.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/experiment-core/internal/hpo"
	"github.com/GoSim-25-26J-441/experiment-core/internal/metrics"
	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/internal/trial"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/logger"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

// VariantState is the lifecycle stage of one variant within a Fit call.
type VariantState string

const (
	StatePending        VariantState = "pending"
	StateRunning        VariantState = "running"
	StatePostOptimizing VariantState = "post_optimizing"
	StateCompleted      VariantState = "completed"
)

// Orchestrator runs the variants of a registry and aggregates their results.
type Orchestrator struct {
	name       string
	dir        string
	registry   *Registry
	runner     *trial.Runner
	static     space.Static
	logger     *slog.Logger
	mu         sync.RWMutex
	states     map[string]VariantState
	lastReport *Report
}

// New creates an orchestrator writing to resultsDir/name. An empty name is
// replaced by a timestamped one.
func New(name, resultsDir string, registry *Registry, runner *trial.Runner) (*Orchestrator, error) {
	if registry == nil {
		return nil, errors.New("variant registry is required")
	}
	if runner == nil {
		return nil, errors.New("trial runner is required")
	}
	if name == "" {
		name = utils.GenerateExperimentName(time.Now())
	}
	if resultsDir == "" {
		resultsDir = "results"
	}
	return &Orchestrator{
		name:     name,
		dir:      filepath.Join(resultsDir, name),
		registry: registry,
		runner:   runner,
		states:   make(map[string]VariantState),
	}, nil
}

// WithStatic sets the cross-variant parameters appended to every searched space.
func (o *Orchestrator) WithStatic(st space.Static) *Orchestrator {
	o.static = st
	return o
}

// WithLogger sets the logger
func (o *Orchestrator) WithLogger(l *slog.Logger) *Orchestrator {
	o.logger = l
	return o
}

// Name returns the experiment name.
func (o *Orchestrator) Name() string { return o.name }

// Dir returns the experiment directory.
func (o *Orchestrator) Dir() string { return o.dir }

// State returns the stage of a variant in the current or last Fit call.
func (o *Orchestrator) State(variant string) (VariantState, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.states[CanonicalName(variant)]
	return s, ok
}

// States returns a copy of every variant's stage.
func (o *Orchestrator) States() map[string]VariantState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return maps.Clone(o.states)
}

// Report returns the report of the last completed Fit call.
func (o *Orchestrator) Report() (*Report, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastReport, o.lastReport != nil
}

func (o *Orchestrator) setState(variant string, s VariantState) {
	o.mu.Lock()
	o.states[variant] = s
	o.mu.Unlock()
}

// Fit runs every selected variant and persists the aggregate tables. All
// options and variant names are validated before any variant executes. The
// first variant failure halts the run.
func (o *Orchestrator) Fit(ctx context.Context, data trial.Dataset, opts FitOptions) (*Report, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	names, err := o.registry.Resolve(opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}
	prior := make(map[string][]hpo.Observation, len(opts.Prior))
	for name, obs := range opts.Prior {
		if _, ok := o.registry.get(name); !ok {
			return nil, &ConfigError{Field: "prior", Name: name, Err: ErrUnknownVariant}
		}
		prior[CanonicalName(name)] = obs
	}
	opts.Prior = prior

	l := logger.ForExperiment(logger.OrDefault(o.logger), o.name)
	run := &runState{
		opts:    opts,
		scoring: opts.Scoring,
		report: newReport(RunConfig{
			RunID:           utils.GenerateRunID(),
			ExperimentName:  o.name,
			ExpPath:         o.dir,
			RunType:         opts.RunType,
			Mode:            o.runner.Mode(),
			Monitor:         o.runner.Monitor(),
			Variants:        names,
			Cases:           o.registry.Cases(),
			EvalModels:      make(map[string]string),
			OptimizedModels: make(map[string]string),
		}),
	}
	if opts.RunType == RunOptimize {
		run.report.Config.OptMethod = opts.Method
	}

	o.mu.Lock()
	o.states = make(map[string]VariantState, len(names))
	for _, name := range names {
		o.states[name] = StatePending
	}
	o.lastReport = nil
	o.mu.Unlock()

	l.Info("experiment started", "run_id", run.report.Config.RunID, "run_type", string(opts.RunType),
		"variants", len(names), "registered", o.registry.Len(), "workers", max(opts.Workers, 1))
	start := time.Now()

	if opts.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for _, name := range names {
			g.Go(func() error {
				return o.runVariant(gctx, name, data, run, l)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := o.runVariant(ctx, name, data, run, l); err != nil {
				return nil, err
			}
		}
	}

	run.report.Config.CVScoring = run.scoring
	if !opts.CrossValidate {
		run.report.Config.CVScoring = ""
	}
	if err := run.report.Save(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.lastReport = run.report
	o.mu.Unlock()
	l.Info("experiment completed", "variants", len(names), "duration", time.Since(start).String(), "dir", o.dir)
	return run.report, nil
}

// runState is the mutable state shared by the variants of one Fit call.
type runState struct {
	opts FitOptions

	mu      sync.Mutex
	scoring string
	report  *Report
}

// claimScoring fixes the run's cross-validation metric on first use and
// rejects a different one afterwards.
func (r *runState) claimScoring(variant, scoring string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scoring == "" {
		r.scoring = scoring
		return nil
	}
	if r.scoring != scoring {
		return &ConfigError{Field: "cv_scoring", Name: variant, Err: fmt.Errorf("%w: %s and %s", ErrMixedScoring, r.scoring, scoring)}
	}
	return nil
}

func (r *runState) sharedScoring() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scoring
}

func (o *Orchestrator) runVariant(ctx context.Context, name string, data trial.Dataset, run *runState, parent *slog.Logger) error {
	v, _ := o.registry.get(name)
	l := logger.ForVariant(parent, name)
	runner := o.runner.Fork().WithLogger(l)
	o.setState(name, StateRunning)

	var (
		res     trial.Result
		optDir  string
		scoring = run.sharedScoring()
	)
	switch run.opts.RunType {
	case RunDryRun:
		l.Info("training variant")
		_, cfg, err := v.build(nil)
		if err != nil {
			return &VariantError{Variant: name, Stage: StageBuild, Err: err}
		}
		res, err = runner.DryRun(ctx, cfg, data, run.opts.CrossValidate, scoring)
		if err != nil {
			return &VariantError{Variant: name, Stage: StageTrain, Err: err}
		}
	case RunOptimize:
		optDir = filepath.Join(o.dir, name)
		best, err := o.search(ctx, v, runner, data, optDir, run, l)
		if err != nil {
			return err
		}
		o.setState(name, StatePostOptimizing)
		res, err = o.postOptimize(ctx, v, runner, data, optDir, best, run.opts.PostOptimize, l)
		if err != nil {
			return &VariantError{Variant: name, Stage: StagePostOptimize, Err: err}
		}
		if run.opts.CrossValidate {
			_, cfg, err := v.build(best)
			if err != nil {
				return &VariantError{Variant: name, Stage: StageBuild, Err: err}
			}
			if res.CVScores, scoring, err = crossValidate(ctx, runner, cfg, data, scoring); err != nil {
				return &VariantError{Variant: name, Stage: StageTrain, Err: err}
			}
		}
	}

	if run.opts.CrossValidate {
		if scoring == "" {
			scoring = res.Model.ValMetric()
		}
		if err := run.claimScoring(name, scoring); err != nil {
			return err
		}
	}

	split, err := o.score(res)
	if err != nil {
		return &VariantError{Variant: name, Stage: StageEvaluate, Err: err}
	}

	run.mu.Lock()
	rep := run.report
	rep.Metrics[name] = split
	rep.Features[name] = newFeatures(res.Train, res.Test)
	rep.Config.EvalModels[name] = res.Model.Path()
	if optDir != "" {
		rep.Config.OptimizedModels[name] = optDir
	}
	if res.CVScores != nil {
		rep.CVScores[name] = res.CVScores
	}
	rep.IterMetrics[name] = runner.Collector().Iterations()
	run.mu.Unlock()

	o.setState(name, StateCompleted)
	l.Info("variant completed", "eval_model", res.Model.Path(), "iterations", runner.Collector().Len())
	return nil
}

// search materializes the variant's space and runs the optimization driver
// over it. It returns the best assignment found.
func (o *Orchestrator) search(ctx context.Context, v *variant, runner *trial.Runner, data trial.Dataset, optDir string, run *runState, l *slog.Logger) (space.Assignment, error) {
	s, base, err := v.build(nil)
	if err != nil {
		return nil, &VariantError{Variant: v.name, Stage: StageBuild, Err: err}
	}
	if s == nil || s.Len() == 0 {
		return nil, &ConfigError{Field: "search_space", Name: v.name, Err: ErrNoSearchSpace}
	}
	if o.static.Enabled() {
		if s, err = o.static.Extend(s, space.Assignment(base)); err != nil {
			return nil, &ConfigError{Field: "search_space", Name: v.name, Err: err}
		}
	}

	if run.opts.Method == hpo.MethodGrid {
		for _, p := range s.Parameters() {
			if !p.HasGrid() {
				return nil, &ConfigError{Field: "search_space", Name: v.name, Err: fmt.Errorf("%w: %q", space.ErrNoGrid, p.Name())}
			}
		}
	}

	driver, err := hpo.NewDriver(run.opts.Method, run.opts.HPO)
	if err != nil {
		return nil, &ConfigError{Field: "opt_method", Name: string(run.opts.Method), Err: err}
	}
	sel, conv, err := run.opts.HPO.Strategies()
	if err != nil {
		return nil, &ConfigError{Field: "hpo_kws", Err: err}
	}
	driver.WithDir(optDir).WithLogger(l).WithSelection(sel).WithConvergence(conv)

	scoring := run.sharedScoring()
	objective := func(ctx context.Context, a space.Assignment) (hpo.Outcome, error) {
		_, cfg, err := v.build(a)
		if err != nil {
			return hpo.Outcome{}, &VariantError{Variant: v.name, Stage: StageBuild, Err: err}
		}
		ev, err := runner.Objective(ctx, cfg, data, run.opts.CrossValidate, scoring)
		if err != nil {
			return hpo.Outcome{}, &VariantError{Variant: v.name, Stage: StageTrain, Err: err}
		}
		out := hpo.Outcome{Objective: ev.Objective, Metrics: ev.Metrics}
		if cp, ok := ev.Model.(trial.Checkpointer); ok {
			if c, ok := cp.Checkpoint(); ok {
				out.Checkpoint = &c
			}
		}
		return out, nil
	}

	l.Info("optimizing variant", "method", string(run.opts.Method), "iterations", run.opts.NumIterations, "parameters", s.Len())
	result, err := driver.Run(ctx, s, nil, objective, run.opts.NumIterations, run.opts.Prior[v.name]...)
	if err != nil {
		var ve *VariantError
		if errors.As(err, &ve) {
			return nil, err
		}
		return nil, &VariantError{Variant: v.name, Stage: StageSearch, Err: err}
	}
	l.Info("search finished", "best_objective", result.Best.Objective, "best_iteration", result.Best.Iteration, "converged", result.Converged)
	return result.BestPoint(), nil
}

// postOptimize produces the final model of a searched variant. eval_best
// restores the rank 1 checkpoint when one exists and the factory can load
// it; otherwise the best assignment is retrained.
func (o *Orchestrator) postOptimize(ctx context.Context, v *variant, runner *trial.Runner, data trial.Dataset, optDir string, best space.Assignment, policy PostOptimize, l *slog.Logger) (trial.Result, error) {
	if policy == PostEvalBest {
		cp, ok, err := hpo.BestCheckpoint(optDir)
		if err != nil {
			return trial.Result{}, err
		}
		loader, canLoad := runner.Factory().(trial.CheckpointLoader)
		if ok && canLoad {
			m, err := loader.FromCheckpoint(ctx, cp)
			if err != nil {
				return trial.Result{}, fmt.Errorf("restore checkpoint: %w", err)
			}
			l.Info("evaluating best checkpoint", "config", cp.ConfigPath)
			return runner.PredictModel(ctx, m, data)
		}
		l.Info("no ranked checkpoint, retraining best parameters")
	}

	_, cfg, err := v.build(best)
	if err != nil {
		return trial.Result{}, err
	}
	return runner.DryRun(ctx, cfg, data, false, "")
}

func crossValidate(ctx context.Context, runner *trial.Runner, cfg trial.Config, data trial.Dataset, scoring string) ([]float64, string, error) {
	t, err := runner.Build(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	if scoring == "" {
		scoring = t.Model().ValMetric()
	}
	if err := t.CrossValidate(ctx, data, scoring); err != nil {
		return nil, "", err
	}
	return t.CVScores(), scoring, nil
}

// score computes the monitor metrics of both splits of a final result.
func (o *Orchestrator) score(res trial.Result) (SplitMetrics, error) {
	mc := res.Model.IsMulticlass()
	train, err := metrics.Compute(o.runner.Mode(), res.Train.True, res.Train.Pred, o.runner.Monitor(), mc)
	if err != nil {
		return SplitMetrics{}, fmt.Errorf("training split: %w", err)
	}
	test, err := metrics.Compute(o.runner.Mode(), res.Test.True, res.Test.Pred, o.runner.Monitor(), mc)
	if err != nil {
		return SplitMetrics{}, fmt.Errorf("test split: %w", err)
	}
	return SplitMetrics{Train: train, Test: test}, nil
}
