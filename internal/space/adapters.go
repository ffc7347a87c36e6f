package space

import (
	"fmt"
	"math"
	"slices"
)

// TreeDim is the tree-structured backend form of a parameter: a labelled
// stochastic expression. Log-scaled distributions carry their bounds in log
// space, as that family expects.
type TreeDim struct {
	Label   string
	Dist    string // uniform, loguniform, randint, qloguniform, choice
	Low     float64
	High    float64
	Q       float64
	Options []any
}

// ToTreeDim renders p for a tree-structured backend.
func ToTreeDim(p *Parameter) TreeDim {
	d := TreeDim{Label: p.name}
	switch p.kind {
	case KindCategorical:
		d.Dist = "choice"
		d.Options = slices.Clone(p.categories)
	case KindInteger:
		if p.prior == PriorLog {
			d.Dist = "qloguniform"
			d.Low, d.High, d.Q = math.Log(p.low), math.Log(p.high), 1
			return d
		}
		d.Dist = "randint"
		d.Low, d.High = p.low, p.high
	default:
		if p.prior == PriorLog {
			d.Dist = "loguniform"
			d.Low, d.High = math.Log(p.low), math.Log(p.high)
			return d
		}
		d.Dist = "uniform"
		d.Low, d.High = p.low, p.high
	}
	return d
}

// Distribution is the sample-and-score backend form of a parameter.
type Distribution struct {
	Type    string // float, int, categorical
	Low     float64
	High    float64
	Step    float64
	Log     bool
	Choices []any
}

// ToDistribution renders p for a sample-and-score backend.
func ToDistribution(p *Parameter) Distribution {
	switch p.kind {
	case KindCategorical:
		return Distribution{Type: "categorical", Choices: slices.Clone(p.categories)}
	case KindInteger:
		step := p.step
		if step == 0 || p.prior == PriorLog {
			step = 1
		}
		return Distribution{Type: "int", Low: p.low, High: p.high, Step: step, Log: p.prior == PriorLog}
	default:
		d := Distribution{Type: "float", Low: p.low, High: p.high, Log: p.prior == PriorLog}
		if !d.Log {
			d.Step = p.step
		}
		return d
	}
}

// SuggestContext is a trial handed out by a sample-and-score backend.
// A zero float step means continuous sampling.
type SuggestContext interface {
	SuggestFloat(name string, low, high, step float64, log bool) (float64, error)
	SuggestInt(name string, low, high, step int, log bool) (int, error)
	SuggestCategorical(name string, choices []any) (any, error)
}

// Suggest asks the trial for one value of p. A log prior is always passed
// through as log sampling.
func Suggest(p *Parameter, trial SuggestContext) (any, error) {
	d := ToDistribution(p)
	var (
		v   any
		err error
	)
	switch d.Type {
	case "categorical":
		v, err = trial.SuggestCategorical(p.name, d.Choices)
	case "int":
		v, err = trial.SuggestInt(p.name, int(d.Low), int(d.High), int(d.Step), d.Log)
	default:
		v, err = trial.SuggestFloat(p.name, d.Low, d.High, d.Step, d.Log)
	}
	if err != nil {
		return nil, fmt.Errorf("suggest %q: %w", p.name, err)
	}
	return v, nil
}

// Dimension is the scikit-style backend form of a parameter. It maps values
// to and from the unit interval, which model-based backends search over.
type Dimension struct {
	Name       string
	Type       string // real, integer, categorical
	Low        float64
	High       float64
	Prior      string // uniform, log-uniform
	Categories []any
}

// ToDimension renders p for a scikit-style backend.
func ToDimension(p *Parameter) Dimension {
	d := Dimension{Name: p.name}
	switch p.kind {
	case KindCategorical:
		d.Type = "categorical"
		d.Categories = slices.Clone(p.categories)
		return d
	case KindInteger:
		d.Type = "integer"
	default:
		d.Type = "real"
	}
	d.Low, d.High = p.low, p.high
	d.Prior = "uniform"
	if p.prior == PriorLog {
		d.Prior = "log-uniform"
	}
	return d
}

// ToUnit maps a value of the dimension into [0, 1].
func (d Dimension) ToUnit(v any) float64 {
	if d.Type == "categorical" {
		if len(d.Categories) < 2 {
			return 0
		}
		for i, c := range d.Categories {
			if valuesEqual(c, v) {
				return float64(i) / float64(len(d.Categories)-1)
			}
		}
		return 0
	}
	f, _ := toFloat(v)
	low, high := d.Low, d.High
	if d.Prior == "log-uniform" {
		f, low, high = math.Log(f), math.Log(low), math.Log(high)
	}
	if high == low {
		return 0
	}
	return math.Min(1, math.Max(0, (f-low)/(high-low)))
}

// FromUnit maps u in [0, 1] back to a value of the dimension.
func (d Dimension) FromUnit(u float64) any {
	u = math.Min(1, math.Max(0, u))
	if d.Type == "categorical" {
		i := int(math.Round(u * float64(len(d.Categories)-1)))
		return d.Categories[i]
	}
	var f float64
	if d.Prior == "log-uniform" {
		f = math.Exp(math.Log(d.Low) + u*(math.Log(d.High)-math.Log(d.Low)))
	} else {
		f = d.Low + u*(d.High-d.Low)
	}
	if d.Type == "integer" {
		return int(math.Min(d.High, math.Max(d.Low, math.Round(f))))
	}
	return math.Min(d.High, math.Max(d.Low, f))
}
