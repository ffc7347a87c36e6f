package space

import (
	"fmt"
	"slices"
)

// Spec is the pure-data form of a Parameter. It is what Serialize produces,
// what experiment YAML declares, and what persisted search tables store.
type Spec struct {
	Type       string   `json:"type" yaml:"type"`
	Name       string   `json:"name" yaml:"name"`
	Low        *float64 `json:"low,omitempty" yaml:"low,omitempty"`
	High       *float64 `json:"high,omitempty" yaml:"high,omitempty"`
	Categories []any    `json:"categories,omitempty" yaml:"categories,omitempty"`
	Prior      string   `json:"prior,omitempty" yaml:"prior,omitempty"`
	Grid       []any    `json:"grid,omitempty" yaml:"grid,omitempty"`
	NumSamples int      `json:"num_samples,omitempty" yaml:"num_samples,omitempty"`
	Step       float64  `json:"step,omitempty" yaml:"step,omitempty"`
}

const (
	TypeReal        = "Real"
	TypeInteger     = "Integer"
	TypeCategorical = "Categorical"
)

// Serialize returns the pure-data form of p.
func Serialize(p *Parameter) Spec {
	s := Spec{
		Name:       p.name,
		Grid:       slices.Clone(p.grid),
		NumSamples: p.numSamples,
		Step:       p.step,
	}
	switch p.kind {
	case KindCategorical:
		s.Type = TypeCategorical
		s.Categories = slices.Clone(p.categories)
		return s
	case KindInteger:
		s.Type = TypeInteger
	default:
		s.Type = TypeReal
	}
	low, high := p.low, p.high
	s.Low, s.High = &low, &high
	s.Prior = string(p.prior)
	return s
}

// Deserialize reconstructs a Parameter from its pure-data form. Bounds may be
// omitted when a grid is given, in which case they are the grid's extremes.
func Deserialize(s Spec) (*Parameter, error) {
	var opts []Option
	if s.Prior != "" {
		opts = append(opts, WithPrior(Prior(s.Prior)))
	}
	if s.NumSamples != 0 {
		opts = append(opts, WithNumSamples(s.NumSamples))
	}
	if s.Step != 0 {
		opts = append(opts, WithStep(s.Step))
	}

	switch s.Type {
	case TypeCategorical:
		if s.Prior != "" {
			return nil, fmt.Errorf("%w: %q: categorical parameters take no prior", ErrInvalidParameter, s.Name)
		}
		if s.Grid != nil {
			opts = append(opts, WithGrid(s.Grid...))
		}
		return NewCategorical(s.Name, s.Categories, opts...)
	case TypeReal, TypeInteger:
	default:
		return nil, fmt.Errorf("%w: %q: unknown type %q", ErrInvalidParameter, s.Name, s.Type)
	}

	low, high, err := specBounds(s)
	if err != nil {
		return nil, err
	}
	if s.Grid != nil {
		opts = append(opts, WithGrid(s.Grid...))
	}
	if s.Type == TypeInteger {
		return NewInteger(s.Name, int(low), int(high), opts...)
	}
	return NewReal(s.Name, low, high, opts...)
}

func specBounds(s Spec) (float64, float64, error) {
	if s.Low != nil && s.High != nil {
		return *s.Low, *s.High, nil
	}
	if len(s.Grid) == 0 {
		return 0, 0, fmt.Errorf("%w: %q: low and high or a grid are required", ErrInvalidParameter, s.Name)
	}
	var low, high float64
	for i, v := range s.Grid {
		f, ok := toFloat(v)
		if !ok {
			return 0, 0, fmt.Errorf("%w: %q: grid value %v is not numeric", ErrInvalidParameter, s.Name, v)
		}
		if i == 0 || f < low {
			low = f
		}
		if i == 0 || f > high {
			high = f
		}
	}
	return low, high, nil
}
