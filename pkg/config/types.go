package config

import (
	"github.com/GoSim-25-26J-441/experiment-core/internal/hpo"
	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
)

// ExperimentConfig represents an experiment definition file
type ExperimentConfig struct {
	LogLevel    string              `yaml:"log_level"`
	Experiment  Experiment          `yaml:"experiment"`
	Fit         Fit                 `yaml:"fit"`
	StaticSpace space.StaticOptions `yaml:"static_space"`
	Variants    []Variant           `yaml:"variants"`
}

// Experiment names the experiment and how its variants are scored
type Experiment struct {
	Name       string   `yaml:"name"`
	ResultsDir string   `yaml:"results_dir"`
	Mode       string   `yaml:"mode"` // regression or classification
	Monitor    []string `yaml:"monitor,omitempty"`
}

// Fit holds the options of one fit call
type Fit struct {
	RunType       string      `yaml:"run_type"`   // dry_run or optimize
	OptMethod     string      `yaml:"opt_method"` // grid, random, bayes, tpe, genetic
	NumIterations int         `yaml:"num_iterations"`
	Include       []string    `yaml:"include,omitempty"`
	Exclude       []string    `yaml:"exclude,omitempty"`
	CrossValidate bool        `yaml:"cross_validate"`
	Scoring       string      `yaml:"scoring,omitempty"`
	PostOptimize  string      `yaml:"post_optimize"` // eval_best or train_best
	Workers       int         `yaml:"workers"`
	HPOKws        hpo.Options `yaml:"hpo_kws"`
}

// Variant declares a fixed-configuration variant and, optionally, the
// space it is searched over. Parameters use the serialized parameter form.
type Variant struct {
	Name       string         `yaml:"name"`
	Parameters []space.Spec   `yaml:"parameters,omitempty"`
	X0         []any          `yaml:"x0,omitempty"`
	Case       map[string]any `yaml:"case,omitempty"`
}
