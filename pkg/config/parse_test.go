package config

import (
	"strings"
	"testing"
)

func TestParseExperimentYAMLString(t *testing.T) {
	yamlText := `
experiment:
  mode: classification
fit:
  run_type: optimize
  opt_method: grid
variants:
  - name: tree
    parameters:
      - {type: Integer, name: depth, low: 2, high: 8, step: 2}
      - {type: Categorical, name: criterion, categories: [gini, entropy]}
    case: {model: DecisionTreeClassifier}
`
	cfg, err := ParseExperimentYAMLString(yamlText)
	if err != nil {
		t.Fatalf("ParseExperimentYAMLString failed: %v", err)
	}
	if cfg.Mode() != "classification" {
		t.Fatalf("expected classification mode, got %s", cfg.Mode())
	}
	s, err := cfg.Variants[0].SearchSpace()
	if err != nil {
		t.Fatalf("SearchSpace failed: %v", err)
	}
	p, _ := s.Lookup("depth")
	grid, err := p.Grid()
	if err != nil {
		t.Fatalf("Grid failed: %v", err)
	}
	if len(grid) != 3 {
		t.Fatalf("expected grid [2 4 6], got %v", grid)
	}
}

func TestParseExperimentYAMLStringInvalid(t *testing.T) {
	tests := []struct {
		name     string
		yamlText string
		wantErr  string
	}{
		{
			name:     "Invalid log level",
			yamlText: `log_level: verbose`,
			wantErr:  "log_level",
		},
		{
			name:     "Unknown mode",
			yamlText: `experiment: {mode: ranking}`,
			wantErr:  "mode",
		},
		{
			name:     "Unsupported monitor metric",
			yamlText: `experiment: {mode: classification, monitor: [nse]}`,
			wantErr:  "nse",
		},
		{
			name:     "Unknown run type",
			yamlText: `fit: {run_type: search}`,
			wantErr:  "run_type",
		},
		{
			name:     "Unknown method",
			yamlText: `fit: {opt_method: annealing}`,
			wantErr:  "annealing",
		},
		{
			name:     "Unknown post optimize",
			yamlText: `fit: {post_optimize: keep_best}`,
			wantErr:  "post_optimize",
		},
		{
			name:     "Negative iterations",
			yamlText: `fit: {num_iterations: -3}`,
			wantErr:  "num_iterations",
		},
		{
			name: "Duplicate variant",
			yamlText: `
variants:
  - name: model_A
  - name: A
`,
			wantErr: "duplicate variant",
		},
		{
			name: "Bad parameter bounds",
			yamlText: `
variants:
  - name: A
    parameters:
      - {type: Real, name: lr, low: 1, high: 0.1}
`,
			wantErr: "lr",
		},
		{
			name: "Default point length",
			yamlText: `
variants:
  - name: A
    parameters:
      - {type: Real, name: lr, low: 0.1, high: 1}
    x0: [0.5, 3]
`,
			wantErr: "variant A",
		},
		{
			name:     "Malformed yaml",
			yamlText: `fit: [`,
			wantErr:  "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExperimentYAMLString(tt.yamlText)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMarshalExperimentYAMLRoundTrip(t *testing.T) {
	cfg, err := LoadExperiment("../../config/experiment.yaml")
	if err != nil {
		t.Fatalf("LoadExperiment failed: %v", err)
	}
	data, err := MarshalExperimentYAML(cfg)
	if err != nil {
		t.Fatalf("MarshalExperimentYAML failed: %v", err)
	}
	again, err := ParseExperimentYAML(data)
	if err != nil {
		t.Fatalf("ParseExperimentYAML failed: %v", err)
	}
	if len(again.Variants) != len(cfg.Variants) || again.Fit.OptMethod != cfg.Fit.OptMethod {
		t.Fatalf("round trip changed the configuration: %+v", again)
	}
}
