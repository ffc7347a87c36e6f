package trial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/GoSim-25-26J-441/experiment-core/internal/metrics"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/logger"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

// State is the lifecycle stage of a Trial.
type State string

const (
	StateBuilt     State = "built"
	StateTrained   State = "trained"
	StateEvaluated State = "evaluated"
	StatePredicted State = "predicted"
)

var (
	ErrInvalidState     = errors.New("invalid trial state")
	ErrMissingValMetric = errors.New("model declares no validation metric")
	ErrNoCrossValidator = errors.New("model does not support cross-validation")
)

// Evaluation is the outcome of scoring one trial.
type Evaluation struct {
	Iteration int
	// Objective is the finite, minimized value a search backend observes.
	Objective float64
	// Raw is the unflipped selection metric, possibly non-finite.
	Raw     float64
	Metrics metrics.Snapshot
	Model   Model
}

// Runner drives trials for one variant at a time. Metric snapshots of every
// evaluated trial are recorded in its collector under the trial's iteration.
type Runner struct {
	factory   Factory
	mode      metrics.Mode
	monitor   []string
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewRunner creates a runner scoring with the given mode. An empty monitor
// selects the mode's full metric set.
func NewRunner(factory Factory, mode metrics.Mode, monitor []string) (*Runner, error) {
	if factory == nil {
		return nil, errors.New("trial runner requires a model factory")
	}
	if len(monitor) == 0 {
		monitor = metrics.Monitor(mode)
	}
	for _, name := range monitor {
		if !metrics.Supported(mode, name) {
			return nil, &metrics.UnknownMetricError{Name: name, Mode: mode}
		}
	}
	return &Runner{
		factory:   factory,
		mode:      mode,
		monitor:   slices.Clone(monitor),
		collector: metrics.NewCollector(),
	}, nil
}

// WithLogger sets the logger
func (r *Runner) WithLogger(l *slog.Logger) *Runner {
	r.logger = l
	return r
}

// Mode returns the scoring mode.
func (r *Runner) Mode() metrics.Mode { return r.mode }

// Monitor returns the ordered metric set.
func (r *Runner) Monitor() []string { return slices.Clone(r.monitor) }

// Collector returns the per-iteration metric record of the current variant.
func (r *Runner) Collector() *metrics.Collector { return r.collector }

// Factory returns the model collaborator.
func (r *Runner) Factory() Factory { return r.factory }

// Fork returns a runner sharing the factory and metric set with a fresh
// collector, for running another variant independently.
func (r *Runner) Fork() *Runner {
	return &Runner{
		factory:   r.factory,
		mode:      r.mode,
		monitor:   slices.Clone(r.monitor),
		collector: metrics.NewCollector(),
		logger:    r.logger,
	}
}

// Trial is one model instance moving through Built, Trained and then
// Evaluated or Predicted.
type Trial struct {
	runner    *Runner
	config    Config
	model     Model
	state     State
	cvScores  []float64
	cvScoring string
}

// Build materializes a model for cfg. A model without a usable validation
// metric is rejected here, before any training.
func (r *Runner) Build(ctx context.Context, cfg Config) (*Trial, error) {
	model, err := r.factory.Build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	if model == nil {
		return nil, errors.New("build model: factory returned no model")
	}
	vm := model.ValMetric()
	if vm == "" {
		return nil, ErrMissingValMetric
	}
	if !metrics.Supported(r.mode, vm) {
		return nil, fmt.Errorf("build model: %w", &metrics.UnknownMetricError{Name: vm, Mode: r.mode})
	}
	return &Trial{runner: r, config: cfg, model: model, state: StateBuilt}, nil
}

// State returns the lifecycle stage.
func (t *Trial) State() State { return t.state }

// Model returns the model handle.
func (t *Trial) Model() Model { return t.model }

// Config returns the configuration the model was built from.
func (t *Trial) Config() Config { return t.config }

// CVScores returns the cross-validation scores, if Train ran with cross-validation.
func (t *Trial) CVScores() []float64 { return slices.Clone(t.cvScores) }

func (t *Trial) expect(s State) error {
	if t.state != s {
		return fmt.Errorf("%w: %s, expected %s", ErrInvalidState, t.state, s)
	}
	return nil
}

// Train fits the model on data.
func (t *Trial) Train(ctx context.Context, data Dataset) error {
	if err := t.expect(StateBuilt); err != nil {
		return err
	}
	if err := t.model.Fit(ctx, data); err != nil {
		return fmt.Errorf("train model: %w", err)
	}
	t.state = StateTrained
	return nil
}

// CrossValidate scores the model by cross-validation instead of a held-out fit.
func (t *Trial) CrossValidate(ctx context.Context, data Dataset, scoring string) error {
	if err := t.expect(StateBuilt); err != nil {
		return err
	}
	cv, ok := t.model.(CrossValidator)
	if !ok {
		return ErrNoCrossValidator
	}
	scores, err := cv.CrossValScores(ctx, data, scoring)
	if err != nil {
		return fmt.Errorf("cross-validate model: %w", err)
	}
	t.cvScores = slices.Clone(scores)
	t.cvScoring = scoring
	t.state = StateTrained
	return nil
}

// Evaluate scores the trained model. After cross-validation the selection
// metric is the mean cross-validation score under scoring; otherwise the
// monitor metrics plus the model's validation metric are computed on the
// validation split. The snapshot is recorded under a new iteration index.
func (t *Trial) Evaluate(ctx context.Context, data Dataset) (Evaluation, error) {
	if err := t.expect(StateTrained); err != nil {
		return Evaluation{}, err
	}
	r := t.runner
	vm := t.model.ValMetric()

	var snap metrics.Snapshot
	if t.cvScores != nil {
		vm = t.cvScoring
		snap = metrics.Snapshot{vm: utils.Mean(t.cvScores)}
	} else {
		pred, err := t.model.Predict(ctx, data, SplitValidation)
		if err != nil {
			return Evaluation{}, fmt.Errorf("predict validation split: %w", err)
		}
		names := r.monitor
		if !slices.Contains(names, vm) {
			names = append(slices.Clone(names), vm)
		}
		snap, err = metrics.Compute(r.mode, pred.True, pred.Pred, names, t.model.IsMulticlass())
		if err != nil {
			return Evaluation{}, fmt.Errorf("compute metrics: %w", err)
		}
	}

	raw, ok := snap[vm]
	if !ok {
		return Evaluation{}, &MissingMetricError{Metric: vm}
	}
	iter := r.collector.Record(snap)
	ev := Evaluation{
		Iteration: iter,
		Objective: ScalarObjective(vm, raw),
		Raw:       raw,
		Metrics:   snap,
		Model:     t.model,
	}
	t.state = StateEvaluated

	l := logger.OrDefault(r.logger)
	if ev.Objective == DegenerateObjective && !utils.IsFinite(raw) {
		l.Warn("non-finite objective replaced", "iteration", iter, "metric", vm, "raw", fmt.Sprint(raw))
	}
	l.Debug("trial evaluated", "iteration", iter, "metric", vm, "objective", ev.Objective)
	return ev, nil
}

// Predict returns the training and test predictions of the trained model.
func (t *Trial) Predict(ctx context.Context, data Dataset) (train, test Prediction, err error) {
	if err = t.expect(StateTrained); err != nil {
		return train, test, err
	}
	if train, err = t.model.Predict(ctx, data, SplitTraining); err != nil {
		return train, test, fmt.Errorf("predict training split: %w", err)
	}
	if test, err = t.model.Predict(ctx, data, SplitTest); err != nil {
		return train, test, fmt.Errorf("predict test split: %w", err)
	}
	t.state = StatePredicted
	return train, test, nil
}

// Objective runs build, train and evaluate for one configuration. With
// crossValidate set, training is replaced by cross-validation under scoring.
func (r *Runner) Objective(ctx context.Context, cfg Config, data Dataset, crossValidate bool, scoring string) (Evaluation, error) {
	t, err := r.Build(ctx, cfg)
	if err != nil {
		return Evaluation{}, err
	}
	if crossValidate {
		if scoring == "" {
			scoring = t.model.ValMetric()
		}
		err = t.CrossValidate(ctx, data, scoring)
	} else {
		err = t.Train(ctx, data)
	}
	if err != nil {
		return Evaluation{}, err
	}
	return t.Evaluate(ctx, data)
}

// Result is the outcome of a build, train and predict pass.
type Result struct {
	Model    Model
	Train    Prediction
	Test     Prediction
	CVScores []float64
}

// DryRun runs build, train and predict for one configuration. With
// crossValidate set, cross-validation scores are computed first on a
// separate model instance and returned alongside the predictions.
func (r *Runner) DryRun(ctx context.Context, cfg Config, data Dataset, crossValidate bool, scoring string) (Result, error) {
	var res Result
	if crossValidate {
		cvTrial, err := r.Build(ctx, cfg)
		if err != nil {
			return res, err
		}
		if scoring == "" {
			scoring = cvTrial.model.ValMetric()
		}
		if err := cvTrial.CrossValidate(ctx, data, scoring); err != nil {
			return res, err
		}
		res.CVScores = cvTrial.CVScores()
	}

	t, err := r.Build(ctx, cfg)
	if err != nil {
		return res, err
	}
	if err := t.Train(ctx, data); err != nil {
		return res, err
	}
	res.Model = t.model
	res.Train, res.Test, err = t.Predict(ctx, data)
	return res, err
}

// PredictModel predicts both splits with an already trained model, as when
// a checkpoint is restored.
func (r *Runner) PredictModel(ctx context.Context, m Model, data Dataset) (Result, error) {
	t := &Trial{runner: r, model: m, state: StateTrained}
	train, test, err := t.Predict(ctx, data)
	if err != nil {
		return Result{}, err
	}
	return Result{Model: m, Train: train, Test: test}, nil
}
