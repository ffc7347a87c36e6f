// Package metrics computes the regression and classification scores used to
// compare trials and variants.
package metrics

import (
	"fmt"
	"slices"
)

// Mode selects which metric family a variant is scored with.
type Mode string

const (
	ModeRegression     Mode = "regression"
	ModeClassification Mode = "classification"
)

// ParseMode validates a mode name. Empty means regression.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRegression:
		return ModeRegression, nil
	case ModeClassification:
		return ModeClassification, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Metric names
const (
	R2        = "r2"
	CorrCoeff = "corr_coeff"
	MSE       = "mse"
	RMSE      = "rmse"
	R2Score   = "r2_score"
	NSE       = "nse"
	KGE       = "kge"
	MAPE      = "mape"
	PBias     = "pbias"
	Bias      = "bias"
	MAE       = "mae"
	NRMSE     = "nrmse"
	MASE      = "mase"
	R2Mod     = "r2_mod"
	R2Adj     = "r2_adj"
	Accuracy  = "accuracy"
	Precision = "precision"
	Recall    = "recall"
	F1Score   = "f1_score"
)

var regressionMonitor = []string{R2, CorrCoeff, MSE, RMSE, R2Score, NSE, KGE, MAPE, PBias, Bias, MAE, NRMSE, MASE}

var classificationMonitor = []string{Accuracy, Precision, Recall, F1Score, MSE}

// maximized lists the metrics where larger is better.
var maximized = map[string]bool{
	R2: true, NSE: true, KGE: true, R2Mod: true, R2Adj: true, R2Score: true, Accuracy: true, F1Score: true,
}

// Monitor returns the ordered metric set reported for mode.
func Monitor(mode Mode) []string {
	if mode == ModeClassification {
		return slices.Clone(classificationMonitor)
	}
	return slices.Clone(regressionMonitor)
}

// IsMaximized reports whether larger values of the metric are better.
func IsMaximized(name string) bool {
	return maximized[name]
}

// Supported reports whether the metric can be computed for mode.
func Supported(mode Mode, name string) bool {
	if mode == ModeClassification {
		_, ok := classificationFuncs[name]
		return ok
	}
	_, ok := regressionFuncs[name]
	return ok
}

// UnknownMetricError is returned for a metric name the mode cannot compute
type UnknownMetricError struct {
	Name string
	Mode Mode
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown %s metric: %s", e.Mode, e.Name)
}
