package experiment

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GoSim-25-26J-441/experiment-core/internal/metrics"
)

// Files written to an experiment directory.
const (
	ConfigFile      = "config.json"
	MetricsFile     = "metrics.json"
	FeaturesFile    = "features.json"
	CVScoresFile    = "cv_scores.json"
	IterMetricsFile = "iter_metrics.json"
)

// scores encodes non-finite values as null.
type scores []float64

func (s scores) MarshalJSON() ([]byte, error) {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = finiteOrNil(v)
	}
	return json.Marshal(out)
}

func (s *scores) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(scores, len(raw))
	for i, v := range raw {
		out[i] = orNaN(v)
	}
	*s = out
	return nil
}

// Save writes the report into its experiment directory.
func (r *Report) Save() error {
	dir := r.Config.ExpPath
	if dir == "" {
		return errors.New("report has no experiment directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create experiment directory: %w", err)
	}

	cv := make(map[string]scores, len(r.CVScores))
	for name, s := range r.CVScores {
		cv[name] = s
	}
	cfg := r.Config
	cfg.EvalModels = relocate(cfg.EvalModels, func(p string) string { return relativeTo(dir, p) })
	cfg.OptimizedModels = relocate(cfg.OptimizedModels, func(p string) string { return relativeTo(dir, p) })

	files := []struct {
		name string
		v    any
	}{
		{ConfigFile, cfg},
		{MetricsFile, r.Metrics},
		{FeaturesFile, r.Features},
		{CVScoresFile, cv},
		{IterMetricsFile, r.IterMetrics},
	}
	for _, f := range files {
		if err := writeJSON(filepath.Join(dir, f.name), f.v); err != nil {
			return err
		}
	}
	return nil
}

// Load rebuilds a report from a persisted run configuration file without
// executing anything. The tables are read from the file's directory, which
// also anchors the relative model directories.
func Load(configPath string) (*Report, error) {
	if filepath.Ext(configPath) != ".json" {
		return nil, fmt.Errorf("%s is not a json file", configPath)
	}
	var cfg RunConfig
	if err := readJSON(configPath, &cfg); err != nil {
		return nil, err
	}
	dir := filepath.Dir(configPath)
	cfg.ExpPath = dir
	cfg.EvalModels = relocate(cfg.EvalModels, func(p string) string { return anchorAt(dir, p) })
	cfg.OptimizedModels = relocate(cfg.OptimizedModels, func(p string) string { return anchorAt(dir, p) })

	r := newReport(cfg)
	if err := readJSON(filepath.Join(dir, MetricsFile), &r.Metrics); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, FeaturesFile), &r.Features); err != nil {
		return nil, err
	}

	var cv map[string]scores
	if err := readOptionalJSON(filepath.Join(dir, CVScoresFile), &cv); err != nil {
		return nil, err
	}
	for name, s := range cv {
		r.CVScores[name] = s
	}
	var iters map[string]map[int]metrics.Snapshot
	if err := readOptionalJSON(filepath.Join(dir, IterMetricsFile), &iters); err != nil {
		return nil, err
	}
	for name, m := range iters {
		r.IterMetrics[name] = m
	}
	return r, nil
}

// LoadDir loads the report of an experiment directory.
func LoadDir(dir string) (*Report, error) {
	return Load(filepath.Join(dir, ConfigFile))
}

func relocate(paths map[string]string, fn func(string) string) map[string]string {
	out := make(map[string]string, len(paths))
	for name, p := range paths {
		out[name] = fn(p)
	}
	return out
}

// relativeTo returns p relative to dir when p lies inside dir and an
// absolute path otherwise.
func relativeTo(dir, p string) string {
	if p == "" {
		return p
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return p
	}
	absP, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(absDir, absP)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return absP
	}
	return rel
}

func anchorAt(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readOptionalJSON(path string, v any) error {
	err := readJSON(path, v)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
