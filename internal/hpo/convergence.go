package hpo

import (
	"fmt"
	"math"
)

// ConvergenceStrategy inspects a finished history. The budget, not the
// strategy, decides when a search stops; the verdict is reported only.
type ConvergenceStrategy interface {
	CheckConvergence(history []Record) (bool, string)
	Name() string
}

// ConvergenceConfig holds configuration for convergence detection
type ConvergenceConfig struct {
	// NoImprovementIterations is the number of trailing iterations without a new best
	NoImprovementIterations int
	// ScoreTolerance is the absolute tolerance for scores to be considered equal
	ScoreTolerance float64
	// MinIterations is the minimum history length before convergence can be detected
	MinIterations int
	// PlateauIterations is the number of trailing iterations within tolerance
	PlateauIterations int
}

// DefaultConvergenceConfig returns a default convergence configuration
func DefaultConvergenceConfig() *ConvergenceConfig {
	return &ConvergenceConfig{
		NoImprovementIterations: 5,
		ScoreTolerance:          1e-3,
		MinIterations:           3,
		PlateauIterations:       5,
	}
}

// NewConvergenceStrategy returns the named strategy. Empty means
// no_improvement; none returns a nil strategy, which disables the report.
func NewConvergenceStrategy(name string, config *ConvergenceConfig) (ConvergenceStrategy, error) {
	switch name {
	case "", "no_improvement":
		return NewNoImprovementStrategy(config), nil
	case "plateau":
		return NewPlateauStrategy(config), nil
	case "combined":
		return NewCombinedStrategy(NewNoImprovementStrategy(config), NewPlateauStrategy(config)), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown convergence strategy %q", name)
	}
}

// NoImprovementStrategy reports convergence when the best record is at least
// NoImprovementIterations old
type NoImprovementStrategy struct {
	config *ConvergenceConfig
}

// NewNoImprovementStrategy creates a new no-improvement convergence strategy
func NewNoImprovementStrategy(config *ConvergenceConfig) *NoImprovementStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &NoImprovementStrategy{config: config}
}

func (s *NoImprovementStrategy) Name() string {
	return "no_improvement"
}

func (s *NoImprovementStrategy) CheckConvergence(history []Record) (bool, string) {
	if len(history) < s.config.MinIterations {
		return false, ""
	}
	bestScore := math.MaxFloat64
	bestIteration := -1
	for i, r := range history {
		if r.Objective < bestScore {
			bestScore = r.Objective
			bestIteration = i
		}
	}
	if bestIteration < 0 {
		return false, ""
	}
	since := len(history) - 1 - bestIteration
	if since >= s.config.NoImprovementIterations {
		return true, fmt.Sprintf("no improvement for %d iterations (best at iteration %d)", since, bestIteration)
	}
	return false, ""
}

// PlateauStrategy reports convergence when the trailing scores lie within tolerance
type PlateauStrategy struct {
	config *ConvergenceConfig
}

// NewPlateauStrategy creates a new plateau convergence strategy
func NewPlateauStrategy(config *ConvergenceConfig) *PlateauStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &PlateauStrategy{config: config}
}

func (s *PlateauStrategy) Name() string {
	return "plateau"
}

func (s *PlateauStrategy) CheckConvergence(history []Record) (bool, string) {
	if len(history) < s.config.MinIterations || len(history) < s.config.PlateauIterations {
		return false, ""
	}
	recent := history[len(history)-s.config.PlateauIterations:]
	lo, hi := recent[0].Objective, recent[0].Objective
	for _, r := range recent {
		lo = math.Min(lo, r.Objective)
		hi = math.Max(hi, r.Objective)
	}
	if hi-lo <= s.config.ScoreTolerance {
		return true, fmt.Sprintf("score plateaued for %d iterations (range: %.6f)", s.config.PlateauIterations, hi-lo)
	}
	return false, ""
}

// CombinedStrategy reports convergence when any member strategy does
type CombinedStrategy struct {
	strategies []ConvergenceStrategy
}

// NewCombinedStrategy creates a combined strategy
func NewCombinedStrategy(strategies ...ConvergenceStrategy) *CombinedStrategy {
	return &CombinedStrategy{strategies: strategies}
}

func (s *CombinedStrategy) Name() string {
	return "combined"
}

func (s *CombinedStrategy) CheckConvergence(history []Record) (bool, string) {
	for _, st := range s.strategies {
		if ok, reason := st.CheckConvergence(history); ok {
			return true, fmt.Sprintf("%s: %s", st.Name(), reason)
		}
	}
	return false, ""
}
