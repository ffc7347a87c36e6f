package trial

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/experiment-core/internal/metrics"
)

// DegenerateObjective replaces non-finite objectives so search backends only
// ever observe finite values.
const DegenerateObjective = 9999.0

// ScalarObjective reduces the value of the selection metric to the minimized
// objective. Larger-is-better metrics are flipped to 1 - value.
func ScalarObjective(metric string, value float64) float64 {
	if metrics.IsMaximized(metric) {
		value = 1 - value
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return DegenerateObjective
	}
	return value
}

// MissingMetricError is returned when the selection metric is absent from a snapshot
type MissingMetricError struct {
	Metric string
}

func (e *MissingMetricError) Error() string {
	return fmt.Sprintf("selection metric %q was not computed", e.Metric)
}
