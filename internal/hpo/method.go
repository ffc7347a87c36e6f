// Package hpo runs black-box hyperparameter searches over a space.SearchSpace.
package hpo

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

// Method is the closed set of search backends.
type Method string

const (
	MethodGrid    Method = "grid"
	MethodRandom  Method = "random"
	MethodBayes   Method = "bayes"
	MethodTPE     Method = "tpe"
	MethodGenetic Method = "genetic"
)

var (
	ErrUnknownMethod = errors.New("unknown optimization method")
	ErrInvalidBudget = errors.New("iteration budget must be positive")
)

// Methods lists every supported backend.
func Methods() []Method {
	return []Method{MethodGrid, MethodRandom, MethodBayes, MethodTPE, MethodGenetic}
}

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// Options are the backend-specific knobs. Zero values take defaults.
type Options struct {
	Seed           int64   `yaml:"seed" json:"seed"`
	NInitialPoints int     `yaml:"n_initial_points" json:"n_initial_points"`
	NCandidates    int     `yaml:"n_candidates" json:"n_candidates"`
	PopulationSize int     `yaml:"population_size" json:"population_size"`
	MutationRate   float64 `yaml:"mutation_rate" json:"mutation_rate"`
	Gamma          float64 `yaml:"gamma" json:"gamma"`
	LengthScale    float64 `yaml:"length_scale" json:"length_scale"`
	Xi             float64 `yaml:"xi" json:"xi"`

	// Selection names the SelectionStrategy: best_score or evaluated_only.
	Selection   string  `yaml:"selection" json:"selection"`
	// Convergence names the ConvergenceStrategy: no_improvement, plateau,
	// combined or none.
	Convergence string  `yaml:"convergence" json:"convergence"`
	// Patience is the trailing window used by the convergence strategies.
	Patience    int     `yaml:"patience" json:"patience"`
	// Tolerance is the score range treated as a plateau.
	Tolerance   float64 `yaml:"tolerance" json:"tolerance"`
}

// DefaultSeed makes searches reproducible unless a seed is configured.
const DefaultSeed = 313

func (o Options) withDefaults() Options {
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.NInitialPoints <= 0 {
		o.NInitialPoints = 5
	}
	if o.NCandidates <= 0 {
		o.NCandidates = 256
	}
	if o.PopulationSize <= 1 {
		o.PopulationSize = 10
	}
	if o.MutationRate <= 0 {
		o.MutationRate = 0.2
	}
	if o.Gamma <= 0 || o.Gamma >= 1 {
		o.Gamma = 0.25
	}
	if o.LengthScale <= 0 {
		o.LengthScale = 0.3
	}
	if o.Xi <= 0 {
		o.Xi = 0.01
	}
	return o
}

// Strategies builds the selection and convergence strategies the options name.
// Empty names select best_score and no_improvement.
func (o Options) Strategies() (SelectionStrategy, ConvergenceStrategy, error) {
	sel, err := NewSelectionStrategy(o.Selection)
	if err != nil {
		return nil, nil, err
	}
	cfg := DefaultConvergenceConfig()
	if o.Patience > 0 {
		cfg.NoImprovementIterations = o.Patience
		cfg.PlateauIterations = o.Patience
	}
	if o.Tolerance > 0 {
		cfg.ScoreTolerance = o.Tolerance
	}
	conv, err := NewConvergenceStrategy(o.Convergence, cfg)
	if err != nil {
		return nil, nil, err
	}
	return sel, conv, nil
}

// Backend proposes assignments and learns from observed objectives. Every
// kind shares this interface, so one evaluation loop drives them all.
type Backend interface {
	Method() Method
	// Tell reports the objective observed for a.
	Tell(a space.Assignment, objective float64)
	// Ask proposes the next assignment. ok is false once the backend has
	// nothing left to propose.
	Ask(ctx context.Context) (a space.Assignment, ok bool, err error)
}

// NewBackend creates the backend for method over s. The grid backend needs
// a finite grid for every parameter and fails here otherwise.
func NewBackend(method Method, s *space.SearchSpace, opts Options) (Backend, error) {
	opts = opts.withDefaults()
	rng := utils.NewRandSource(opts.Seed)
	switch method {
	case MethodGrid:
		return newGridBackend(s)
	case MethodRandom:
		return newRandomBackend(s, rng), nil
	case MethodBayes:
		return newBayesBackend(s, rng, opts), nil
	case MethodTPE:
		return newTPEBackend(s, rng, opts), nil
	case MethodGenetic:
		return newGeneticBackend(s, rng, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// observation is one told (assignment, objective) pair.
type observation struct {
	assignment space.Assignment
	objective  float64
}
