package experiment

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"

	"github.com/GoSim-25-26J-441/experiment-core/internal/hpo"
	"github.com/GoSim-25-26J-441/experiment-core/internal/metrics"
	"github.com/GoSim-25-26J-441/experiment-core/internal/trial"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

// SplitMetrics holds the monitor metrics of the training and test splits.
type SplitMetrics struct {
	Train metrics.Snapshot `json:"train"`
	Test  metrics.Snapshot `json:"test"`
}

// Stat is a summary statistic of one array.
type Stat struct {
	Std float64 `json:"std"`
}

// SeriesFeatures summarizes the true and predicted arrays of one split.
type SeriesFeatures struct {
	True       Stat `json:"true"`
	Simulation Stat `json:"simulation"`
}

// Features summarizes both splits of a variant's final predictions.
type Features struct {
	Train SeriesFeatures `json:"train"`
	Test  SeriesFeatures `json:"test"`
}

func newFeatures(train, test trial.Prediction) Features {
	return Features{
		Train: SeriesFeatures{True: Stat{metrics.Std(train.True)}, Simulation: Stat{metrics.Std(train.Pred)}},
		Test:  SeriesFeatures{True: Stat{metrics.Std(test.True)}, Simulation: Stat{metrics.Std(test.Pred)}},
	}
}

// RunConfig is the persisted description of a run. Model directories inside
// ExpPath are written relative to it, so a moved experiment still loads.
type RunConfig struct {
	RunID           string                  `json:"run_id"`
	ExperimentName  string                  `json:"experiment_name"`
	ExpPath         string                  `json:"exp_path"`
	RunType         RunType                 `json:"run_type"`
	OptMethod       hpo.Method              `json:"opt_method,omitempty"`
	Mode            metrics.Mode            `json:"mode"`
	Monitor         []string                `json:"monitor"`
	Variants        []string                `json:"variants"`
	Cases           map[string]trial.Config `json:"cases"`
	EvalModels      map[string]string       `json:"eval_models"`
	OptimizedModels map[string]string       `json:"optimized_models"`
	CVScoring       string                  `json:"cv_scoring,omitempty"`
}

// Report is the comparable outcome of a run, either fresh from Fit or
// rebuilt from disk by Load.
type Report struct {
	Config      RunConfig
	Metrics     map[string]SplitMetrics
	Features    map[string]Features
	CVScores    map[string][]float64
	IterMetrics map[string]map[int]metrics.Snapshot
}

func newReport(cfg RunConfig) *Report {
	return &Report{
		Config:      cfg,
		Metrics:     make(map[string]SplitMetrics),
		Features:    make(map[string]Features),
		CVScores:    make(map[string][]float64),
		IterMetrics: make(map[string]map[int]metrics.Snapshot),
	}
}

// variants returns the reported variants in declaration order, followed by
// any undeclared ones sorted by name.
func (r *Report) variants() []string {
	out := make([]string, 0, len(r.Metrics))
	for _, name := range r.Config.Variants {
		if _, ok := r.Metrics[name]; ok {
			out = append(out, name)
		}
	}
	var extra []string
	for name := range r.Metrics {
		if !slices.Contains(out, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Cutoff is the threshold comparison applied by SortByMetric.
type Cutoff string

const (
	CutoffNone         Cutoff = ""
	CutoffGreater      Cutoff = "greater"
	CutoffGreaterEqual Cutoff = "greater_equal"
	CutoffLess         Cutoff = "less"
	CutoffLessEqual    Cutoff = "less_equal"
)

func (c Cutoff) keep(v, threshold float64) (bool, error) {
	switch c {
	case CutoffNone:
		return true, nil
	case CutoffGreater:
		return v > threshold, nil
	case CutoffGreaterEqual:
		return v >= threshold, nil
	case CutoffLess:
		return v < threshold, nil
	case CutoffLessEqual:
		return v <= threshold, nil
	default:
		return false, fmt.Errorf("unknown cutoff type %q", string(c))
	}
}

// SortOptions configures SortByMetric.
type SortOptions struct {
	Metric     string
	CutoffType Cutoff
	CutoffVal  float64
	// IgnoreNaNs drops variants whose train or test value is NaN.
	IgnoreNaNs bool
	// SortBy is "train" or "test"; empty means test.
	SortBy string
}

// Ranked is one row of a metric comparison.
type Ranked struct {
	Variant string  `json:"variant"`
	Train   float64 `json:"train"`
	Test    float64 `json:"test"`
}

// SortByMetric ranks variants by a metric in descending order of the
// SortBy split and applies the cutoff to that split. NaN values sort last.
func (r *Report) SortByMetric(opts SortOptions) ([]Ranked, error) {
	if opts.Metric == "" {
		return nil, errors.New("metric name is required")
	}
	if opts.SortBy == "" {
		opts.SortBy = "test"
	}
	if opts.SortBy != "train" && opts.SortBy != "test" {
		return nil, fmt.Errorf("sort_by must be train or test, got %q", opts.SortBy)
	}
	if _, err := opts.CutoffType.keep(0, 0); err != nil {
		return nil, err
	}

	rows := make([]Ranked, 0, len(r.Metrics))
	for _, name := range r.variants() {
		m := r.Metrics[name]
		row := Ranked{Variant: name, Train: lookup(m.Train, opts.Metric), Test: lookup(m.Test, opts.Metric)}
		if opts.IgnoreNaNs && (math.IsNaN(row.Train) || math.IsNaN(row.Test)) {
			continue
		}
		v := row.Test
		if opts.SortBy == "train" {
			v = row.Train
		}
		keep, _ := opts.CutoffType.keep(v, opts.CutoffVal)
		if keep {
			rows = append(rows, row)
		}
	}

	key := func(row Ranked) float64 {
		if opts.SortBy == "train" {
			return row.Train
		}
		return row.Test
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := key(rows[i]), key(rows[j])
		if math.IsNaN(a) {
			return false
		}
		if math.IsNaN(b) {
			return true
		}
		return a > b
	})
	return rows, nil
}

func lookup(s metrics.Snapshot, name string) float64 {
	v, ok := s[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// ImprovementRow compares the first search iteration with the final test result.
type ImprovementRow struct {
	Variant string  `json:"variant"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Improvement reports, for every variant with recorded search iterations,
// the metric at the first iteration and on the final test split.
func (r *Report) Improvement(metric string) ([]ImprovementRow, error) {
	if metric == "" {
		return nil, errors.New("metric name is required")
	}
	var rows []ImprovementRow
	for _, name := range r.variants() {
		iters := r.IterMetrics[name]
		if len(iters) == 0 {
			continue
		}
		first := slices.Min(slices.Collect(maps.Keys(iters)))
		rows = append(rows, ImprovementRow{
			Variant: name,
			Start:   lookup(iters[first], metric),
			End:     lookup(r.Metrics[name].Test, metric),
		})
	}
	return rows, nil
}

// OptimizedVariants returns the optimized variants in declaration order.
func (r *Report) OptimizedVariants() []string {
	var out []string
	for _, name := range r.Config.Variants {
		if _, ok := r.Config.OptimizedModels[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Convergence returns the running minimum of a variant's search objectives.
func (r *Report) Convergence(variant string) ([]float64, error) {
	dir, ok := r.Config.OptimizedModels[CanonicalName(variant)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotOptimized, variant)
	}
	return hpo.Convergence(dir)
}

// CompareConvergence returns the convergence curve of every optimized variant.
func (r *Report) CompareConvergence() (map[string][]float64, error) {
	out := make(map[string][]float64)
	for _, name := range r.OptimizedVariants() {
		curve, err := r.Convergence(name)
		if err != nil {
			return nil, fmt.Errorf("variant %q: %w", name, err)
		}
		out[name] = curve
	}
	return out, nil
}

// LossFile is the per-model training history a model collaborator may write.
const LossFile = "losses.csv"

// LossCurve reads one column of the loss history in the variant's final
// model directory.
func (r *Report) LossCurve(variant, column string) ([]float64, error) {
	dir, ok := r.Config.EvalModels[CanonicalName(variant)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	f, err := os.Open(filepath.Join(dir, LossFile))
	if err != nil {
		return nil, fmt.Errorf("open loss history: %w", err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("read loss history header: %w", err)
	}
	col := slices.Index(header, column)
	if col < 0 {
		return nil, fmt.Errorf("loss history has no column %q", column)
	}

	var out []float64
	for {
		rec, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read loss history: %w", err)
		}
		v, err := strconv.ParseFloat(rec[col], 64)
		if err != nil {
			return nil, fmt.Errorf("loss history row %d: %w", len(out)+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// MarshalJSON writes a non-finite value as null.
func (s Stat) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"std": finiteOrNil(s.Std)})
}

// UnmarshalJSON reads a null value back as NaN.
func (s *Stat) UnmarshalJSON(data []byte) error {
	var raw struct {
		Std *float64 `json:"std"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Std = orNaN(raw.Std)
	return nil
}

func finiteOrNil(v float64) any {
	if utils.IsFinite(v) {
		return v
	}
	return nil
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
