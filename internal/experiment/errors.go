package experiment

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownVariant   = errors.New("unknown variant")
	ErrDuplicateVariant = errors.New("variant already registered")
	ErrNoSearchSpace    = errors.New("variant produced no search space")
	ErrNotOptimized     = errors.New("variant was not optimized")
	ErrMixedScoring     = errors.New("cross-validation scoring differs between variants")
)

// ConfigError is a configuration problem detected before or at the start of
// a variant's execution. Field names the offending option.
type ConfigError struct {
	Field string
	Name  string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Name, e.Err)
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Stage is the part of a variant's lifecycle an error came from.
type Stage string

const (
	StageBuild        Stage = "build"
	StageTrain        Stage = "train"
	StageSearch       Stage = "search"
	StagePostOptimize Stage = "post_optimize"
	StageEvaluate     Stage = "evaluate"
)

// VariantError wraps a failure of one variant. It halts the whole run.
type VariantError struct {
	Variant string
	Stage   Stage
	Err     error
}

func (e *VariantError) Error() string {
	return fmt.Sprintf("variant %q failed during %s: %v", e.Variant, e.Stage, e.Err)
}

func (e *VariantError) Unwrap() error { return e.Err }
