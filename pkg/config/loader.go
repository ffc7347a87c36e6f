package config

import (
	"fmt"
	"os"

	"github.com/GoSim-25-26J-441/experiment-core/internal/experiment"
	"github.com/GoSim-25-26J-441/experiment-core/internal/hpo"
	"github.com/GoSim-25-26J-441/experiment-core/internal/metrics"
	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/internal/trial"
)

// LoadExperiment loads and parses an experiment file
func LoadExperiment(path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment file %s: %w", path, err)
	}
	cfg, err := ParseExperimentYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse experiment file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *ExperimentConfig) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Experiment.Mode == "" {
		c.Experiment.Mode = string(metrics.ModeRegression)
	}
	if c.Experiment.ResultsDir == "" {
		c.Experiment.ResultsDir = "results"
	}
	if c.Fit.RunType == "" {
		c.Fit.RunType = string(experiment.RunDryRun)
	}
	if c.Fit.OptMethod == "" {
		c.Fit.OptMethod = string(hpo.MethodBayes)
	}
	if c.Fit.NumIterations == 0 {
		c.Fit.NumIterations = experiment.DefaultNumIterations
	}
	if c.Fit.PostOptimize == "" {
		c.Fit.PostOptimize = string(experiment.PostEvalBest)
	}
	if c.Fit.Workers == 0 {
		c.Fit.Workers = 1
	}
}

// validateExperiment performs validation on the experiment configuration
func validateExperiment(cfg *ExperimentConfig) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	mode, err := metrics.ParseMode(cfg.Experiment.Mode)
	if err != nil {
		return fmt.Errorf("experiment: %w", err)
	}
	for _, name := range cfg.Experiment.Monitor {
		if !metrics.Supported(mode, name) {
			return fmt.Errorf("experiment: %w", &metrics.UnknownMetricError{Name: name, Mode: mode})
		}
	}

	opts, err := cfg.FitOptions()
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	if cfg.Fit.NumIterations <= 0 {
		return fmt.Errorf("fit: num_iterations must be positive, got %d", cfg.Fit.NumIterations)
	}

	names := make(map[string]bool)
	for i, v := range cfg.Variants {
		name := experiment.CanonicalName(v.Name)
		if name == "" {
			return fmt.Errorf("variant %d: name cannot be empty", i)
		}
		if names[name] {
			return fmt.Errorf("duplicate variant name: %s", name)
		}
		names[name] = true
		if _, err := v.SearchSpace(); err != nil {
			return fmt.Errorf("variant %s: %w", name, err)
		}
		if v.X0 != nil && len(v.Parameters) == 0 {
			return fmt.Errorf("variant %s: x0 given without parameters", name)
		}
	}
	return nil
}

// Mode returns the scoring mode.
func (c *ExperimentConfig) Mode() metrics.Mode {
	return metrics.Mode(c.Experiment.Mode)
}

// FitOptions converts the fit section.
func (c *ExperimentConfig) FitOptions() (experiment.FitOptions, error) {
	method, err := hpo.ParseMethod(c.Fit.OptMethod)
	if err != nil {
		return experiment.FitOptions{}, fmt.Errorf("fit: %w", err)
	}
	return experiment.FitOptions{
		RunType:       experiment.RunType(c.Fit.RunType),
		Method:        method,
		NumIterations: c.Fit.NumIterations,
		Include:       c.Fit.Include,
		Exclude:       c.Fit.Exclude,
		CrossValidate: c.Fit.CrossValidate,
		Scoring:       c.Fit.Scoring,
		PostOptimize:  experiment.PostOptimize(c.Fit.PostOptimize),
		HPO:           c.Fit.HPOKws,
		Workers:       c.Fit.Workers,
	}, nil
}

// SearchSpace materializes the declared parameters. A variant without
// parameters has no search space.
func (v Variant) SearchSpace() (*space.SearchSpace, error) {
	if len(v.Parameters) == 0 {
		return nil, nil
	}
	return space.FromSpecs(v.Parameters, v.X0)
}

// SearchSpaces materializes every declared search space by variant name.
func (c *ExperimentConfig) SearchSpaces() (map[string]*space.SearchSpace, error) {
	out := make(map[string]*space.SearchSpace)
	for _, v := range c.Variants {
		s, err := v.SearchSpace()
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", v.Name, err)
		}
		if s != nil {
			out[experiment.CanonicalName(v.Name)] = s
		}
	}
	return out, nil
}

// Static returns the enabled cross-variant parameters.
func (c *ExperimentConfig) Static() space.Static {
	return space.DefaultStatic(c.StaticSpace)
}

// Registry declares every variant as a case on a new registry. Builders
// registered in code may be added to the result.
func (c *ExperimentConfig) Registry() (*experiment.Registry, error) {
	reg := experiment.NewRegistry()
	for _, v := range c.Variants {
		s, err := v.SearchSpace()
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", v.Name, err)
		}
		if err := reg.AddCase(v.Name, trial.Config(v.Case), s); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Orchestrator wires the configuration into an orchestrator over factory.
func (c *ExperimentConfig) Orchestrator(factory trial.Factory) (*experiment.Orchestrator, error) {
	reg, err := c.Registry()
	if err != nil {
		return nil, err
	}
	runner, err := trial.NewRunner(factory, c.Mode(), c.Experiment.Monitor)
	if err != nil {
		return nil, err
	}
	o, err := experiment.New(c.Experiment.Name, c.Experiment.ResultsDir, reg, runner)
	if err != nil {
		return nil, err
	}
	return o.WithStatic(c.Static()), nil
}
