// Package trial builds, trains and scores one model instance per parameter
// assignment through an external model collaborator.
package trial

import (
	"context"
	"maps"
)

// Split names a dataset partition.
type Split string

const (
	SplitTraining   Split = "training"
	SplitValidation Split = "validation"
	SplitTest       Split = "test"
)

// Dataset is an opaque handle passed through to the model collaborator.
type Dataset = any

// Config is a model configuration handed to the collaborator.
type Config map[string]any

// Merge returns a copy of c with overrides applied on top.
func (c Config) Merge(overrides map[string]any) Config {
	out := make(Config, len(c)+len(overrides))
	maps.Copy(out, c)
	maps.Copy(out, overrides)
	return out
}

// Prediction is a pair of aligned true and predicted arrays.
type Prediction struct {
	True []float64
	Pred []float64
}

// Model is a trainable model handle produced by a Factory.
type Model interface {
	Fit(ctx context.Context, data Dataset) error
	// Predict returns the true and predicted values of one split.
	Predict(ctx context.Context, data Dataset, split Split) (Prediction, error)
	// ValMetric names the metric the model is selected on.
	ValMetric() string
	IsMulticlass() bool
	// Path is the directory holding the model's artifacts.
	Path() string
}

// CrossValidator is implemented by models that can score themselves by
// cross-validation.
type CrossValidator interface {
	CrossValScores(ctx context.Context, data Dataset, scoring string) ([]float64, error)
}

// Checkpoint points at weights persisted by a trained model.
type Checkpoint struct {
	ConfigPath  string `json:"config_path"`
	WeightsPath string `json:"weights_path"`
}

// Checkpointer is implemented by models that persist weights after training.
type Checkpointer interface {
	Checkpoint() (Checkpoint, bool)
}

// Factory materializes model handles from configurations.
type Factory interface {
	Build(ctx context.Context, cfg Config) (Model, error)
}

// CheckpointLoader is implemented by factories that can restore a trained
// model from a checkpoint without retraining.
type CheckpointLoader interface {
	FromCheckpoint(ctx context.Context, cp Checkpoint) (Model, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, cfg Config) (Model, error)

// Build calls f.
func (f FactoryFunc) Build(ctx context.Context, cfg Config) (Model, error) {
	return f(ctx, cfg)
}
