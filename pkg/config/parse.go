package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseExperimentYAML parses an ExperimentConfig from YAML bytes, applies
// defaults and validates it.
func ParseExperimentYAML(data []byte) (*ExperimentConfig, error) {
	var cfg ExperimentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse experiment yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := validateExperiment(&cfg); err != nil {
		return nil, fmt.Errorf("invalid experiment: %w", err)
	}

	return &cfg, nil
}

// ParseExperimentYAMLString parses an ExperimentConfig from a YAML string.
func ParseExperimentYAMLString(yamlText string) (*ExperimentConfig, error) {
	return ParseExperimentYAML([]byte(yamlText))
}

// MarshalExperimentYAML encodes cfg as YAML.
func MarshalExperimentYAML(cfg *ExperimentConfig) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal experiment yaml: %w", err)
	}
	return data, nil
}
