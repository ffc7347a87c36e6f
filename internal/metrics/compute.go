package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

var (
	ErrEmptyInput     = errors.New("empty input")
	ErrLengthMismatch = errors.New("true and predicted lengths differ")
)

// Snapshot maps metric names to values.
type Snapshot map[string]float64

// Clone returns a copy of s.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type metricFunc func(truth, pred []float64, multiclass bool) float64

var regressionFuncs = map[string]metricFunc{
	R2:        func(t, p []float64, _ bool) float64 { r := pearson(t, p); return r * r },
	CorrCoeff: func(t, p []float64, _ bool) float64 { return pearson(t, p) },
	MSE:       func(t, p []float64, _ bool) float64 { return mse(t, p) },
	RMSE:      func(t, p []float64, _ bool) float64 { return math.Sqrt(mse(t, p)) },
	R2Score:   func(t, p []float64, _ bool) float64 { return nse(t, p) },
	NSE:       func(t, p []float64, _ bool) float64 { return nse(t, p) },
	KGE:       func(t, p []float64, _ bool) float64 { return kge(t, p) },
	MAPE:      func(t, p []float64, _ bool) float64 { return mape(t, p) },
	PBias:     func(t, p []float64, _ bool) float64 { return 100 * sumDiff(t, p) / utils.Sum(t) },
	Bias:      func(t, p []float64, _ bool) float64 { return sumDiff(t, p) / float64(len(t)) },
	MAE:       func(t, p []float64, _ bool) float64 { return mae(t, p) },
	NRMSE:     func(t, p []float64, _ bool) float64 { return math.Sqrt(mse(t, p)) / (slices.Max(t) - slices.Min(t)) },
	MASE:      func(t, p []float64, _ bool) float64 { return mase(t, p) },
	R2Mod:     func(t, p []float64, _ bool) float64 { return r2Mod(t, p) },
	R2Adj:     func(t, p []float64, _ bool) float64 { return r2Adj(t, p) },
}

var classificationFuncs = map[string]metricFunc{
	Accuracy:  func(t, p []float64, _ bool) float64 { return accuracy(t, p) },
	Precision: func(t, p []float64, mc bool) float64 { pr, _ := precisionRecall(t, p, mc); return pr },
	Recall:    func(t, p []float64, mc bool) float64 { _, rc := precisionRecall(t, p, mc); return rc },
	F1Score:   func(t, p []float64, mc bool) float64 { return f1(t, p, mc) },
	MSE:       func(t, p []float64, _ bool) float64 { return mse(t, p) },
}

// Compute evaluates the named metrics over (truth, pred). Degenerate inputs,
// such as a constant prediction, may produce NaN or Inf; those are returned
// as is so the caller can see them.
func Compute(mode Mode, truth, pred []float64, names []string, multiclass bool) (Snapshot, error) {
	if len(truth) == 0 {
		return nil, ErrEmptyInput
	}
	if len(truth) != len(pred) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(truth), len(pred))
	}
	funcs := regressionFuncs
	if mode == ModeClassification {
		funcs = classificationFuncs
	}

	out := make(Snapshot, len(names))
	for _, name := range names {
		fn, ok := funcs[name]
		if !ok {
			return nil, &UnknownMetricError{Name: name, Mode: mode}
		}
		out[name] = fn(truth, pred, multiclass)
	}
	return out, nil
}

// Std returns the population standard deviation of values.
func Std(values []float64) float64 {
	return utils.StdDev(values)
}

func pearson(t, p []float64) float64 {
	mt, mp := utils.Mean(t), utils.Mean(p)
	var cov, vt, vp float64
	for i := range t {
		dt, dp := t[i]-mt, p[i]-mp
		cov += dt * dp
		vt += dt * dt
		vp += dp * dp
	}
	return cov / math.Sqrt(vt*vp)
}

func mse(t, p []float64) float64 {
	var s float64
	for i := range t {
		d := t[i] - p[i]
		s += d * d
	}
	return s / float64(len(t))
}

func mae(t, p []float64) float64 {
	var s float64
	for i := range t {
		s += math.Abs(t[i] - p[i])
	}
	return s / float64(len(t))
}

func sumDiff(t, p []float64) float64 {
	var s float64
	for i := range t {
		s += t[i] - p[i]
	}
	return s
}

func nse(t, p []float64) float64 {
	mt := utils.Mean(t)
	var num, den float64
	for i := range t {
		num += (t[i] - p[i]) * (t[i] - p[i])
		den += (t[i] - mt) * (t[i] - mt)
	}
	return 1 - num/den
}

func kge(t, p []float64) float64 {
	r := pearson(t, p)
	alpha := utils.StdDev(p) / utils.StdDev(t)
	beta := utils.Mean(p) / utils.Mean(t)
	return 1 - math.Sqrt((r-1)*(r-1)+(alpha-1)*(alpha-1)+(beta-1)*(beta-1))
}

// r2Mod weights r2 by the slope b of the regression of pred on truth:
// |b|*r2 when |b| <= 1, r2/|b| otherwise.
func r2Mod(t, p []float64) float64 {
	r := pearson(t, p)
	b := math.Abs(r * utils.StdDev(p) / utils.StdDev(t))
	if b <= 1 {
		return b * r * r
	}
	return r * r / b
}

// r2Adj adjusts r2 for a single predictor. It is NaN below three samples.
func r2Adj(t, p []float64) float64 {
	n := float64(len(t))
	if n < 3 {
		return math.NaN()
	}
	r := pearson(t, p)
	return 1 - (1-r*r)*(n-1)/(n-2)
}

func mape(t, p []float64) float64 {
	var s float64
	for i := range t {
		s += math.Abs((t[i] - p[i]) / t[i])
	}
	return 100 * s / float64(len(t))
}

// mase scales the absolute error by the in-sample naive one-step forecast error.
func mase(t, p []float64) float64 {
	if len(t) < 2 {
		return math.NaN()
	}
	var naive float64
	for i := 1; i < len(t); i++ {
		naive += math.Abs(t[i] - t[i-1])
	}
	naive /= float64(len(t) - 1)
	return mae(t, p) / naive
}

func accuracy(t, p []float64) float64 {
	hits := 0
	for i := range t {
		if t[i] == p[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(t))
}

// precisionRecall returns binary scores for label 1, or macro averages over
// every label in truth when multiclass is set.
func precisionRecall(t, p []float64, multiclass bool) (float64, float64) {
	if !multiclass {
		return classScores(t, p, 1)
	}
	labels := uniqueLabels(t)
	var ps, rs float64
	for _, l := range labels {
		pr, rc := classScores(t, p, l)
		ps += pr
		rs += rc
	}
	return ps / float64(len(labels)), rs / float64(len(labels))
}

func f1(t, p []float64, multiclass bool) float64 {
	if !multiclass {
		pr, rc := classScores(t, p, 1)
		return harmonic(pr, rc)
	}
	labels := uniqueLabels(t)
	var s float64
	for _, l := range labels {
		pr, rc := classScores(t, p, l)
		s += harmonic(pr, rc)
	}
	return s / float64(len(labels))
}

func classScores(t, p []float64, label float64) (float64, float64) {
	var tp, fp, fn float64
	for i := range t {
		switch {
		case p[i] == label && t[i] == label:
			tp++
		case p[i] == label:
			fp++
		case t[i] == label:
			fn++
		}
	}
	var precision, recall float64
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	return precision, recall
}

func harmonic(a, b float64) float64 {
	if a+b == 0 {
		return 0
	}
	return 2 * a * b / (a + b)
}

func uniqueLabels(values []float64) []float64 {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

// MarshalJSON writes non-finite values as null.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s))
	for k, v := range s {
		if utils.IsFinite(v) {
			out[k] = v
			continue
		}
		out[k] = nil
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null values back as NaN.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = nil
		return nil
	}
	out := make(Snapshot, len(raw))
	for k, v := range raw {
		if v == nil {
			out[k] = math.NaN()
			continue
		}
		out[k] = *v
	}
	*s = out
	return nil
}
