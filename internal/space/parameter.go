// Package space describes tunable hyperparameters and the search spaces built from them.
package space

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

// Kind is the domain family of a Parameter.
type Kind string

const (
	KindContinuous  Kind = "continuous"
	KindInteger     Kind = "integer"
	KindCategorical Kind = "categorical"
)

// Prior is the sampling distribution over a numeric domain.
type Prior string

const (
	PriorUniform Prior = "uniform"
	PriorLog     Prior = "log"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNoGrid           = errors.New("no grid")
)

// Parameter is one tunable hyperparameter. Values are float64 for continuous
// parameters, int for integer parameters and one of the category values for
// categorical parameters. A Parameter is immutable after construction.
type Parameter struct {
	name       string
	kind       Kind
	low, high  float64
	categories []any
	prior      Prior
	grid       []any
	numSamples int
	step       float64
}

// Option configures a Parameter at construction.
type Option func(*Parameter)

// WithPrior sets the sampling prior of a numeric parameter.
func WithPrior(p Prior) Option {
	return func(pr *Parameter) { pr.prior = p }
}

// WithGrid sets an explicit grid, returned verbatim by Grid.
func WithGrid(values ...any) Option {
	return func(pr *Parameter) { pr.grid = slices.Clone(values) }
}

// WithNumSamples derives the grid as n evenly spaced points between the bounds.
func WithNumSamples(n int) Option {
	return func(pr *Parameter) { pr.numSamples = n }
}

// WithStep derives the grid as the half-open sequence from low to high with stride s.
func WithStep(s float64) Option {
	return func(pr *Parameter) { pr.step = s }
}

// NewReal creates a continuous parameter over [low, high].
func NewReal(name string, low, high float64, opts ...Option) (*Parameter, error) {
	p := &Parameter{name: name, kind: KindContinuous, low: low, high: high, prior: PriorUniform}
	return p.apply(opts)
}

// NewInteger creates an integer parameter over [low, high].
func NewInteger(name string, low, high int, opts ...Option) (*Parameter, error) {
	p := &Parameter{name: name, kind: KindInteger, low: float64(low), high: float64(high), prior: PriorUniform}
	return p.apply(opts)
}

// NewCategorical creates a parameter choosing among categories.
func NewCategorical(name string, categories []any, opts ...Option) (*Parameter, error) {
	p := &Parameter{name: name, kind: KindCategorical, categories: slices.Clone(categories)}
	return p.apply(opts)
}

// RealFromGrid creates a continuous parameter whose bounds are the extremes of grid.
func RealFromGrid(name string, grid []float64, opts ...Option) (*Parameter, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: %q: empty grid", ErrInvalidParameter, name)
	}
	values := make([]any, len(grid))
	for i, v := range grid {
		values[i] = v
	}
	return NewReal(name, slices.Min(grid), slices.Max(grid), append(opts, WithGrid(values...))...)
}

// IntegerFromGrid creates an integer parameter whose bounds are the extremes of grid.
func IntegerFromGrid(name string, grid []int, opts ...Option) (*Parameter, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: %q: empty grid", ErrInvalidParameter, name)
	}
	values := make([]any, len(grid))
	for i, v := range grid {
		values[i] = v
	}
	return NewInteger(name, slices.Min(grid), slices.Max(grid), append(opts, WithGrid(values...))...)
}

func (p *Parameter) apply(opts []Option) (*Parameter, error) {
	for _, opt := range opts {
		opt(p)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.grid != nil && p.kind != KindCategorical {
		coerced := make([]any, len(p.grid))
		for i, v := range p.grid {
			c, err := p.coerceNumber(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: grid value %v: %v", ErrInvalidParameter, p.name, v, err)
			}
			coerced[i] = c
		}
		p.grid = coerced
	}
	return p, nil
}

func (p *Parameter) validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %q: %s", ErrInvalidParameter, p.name, fmt.Sprintf(format, args...))
	}
	if strings.TrimSpace(p.name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidParameter)
	}

	sources := 0
	if p.grid != nil {
		sources++
	}
	if p.numSamples != 0 {
		sources++
	}
	if p.step != 0 {
		sources++
	}
	if sources > 1 {
		return invalid("at most one of grid, num_samples and step may be set")
	}
	if p.numSamples < 0 {
		return invalid("num_samples must be positive, got %d", p.numSamples)
	}
	if p.step < 0 || math.IsNaN(p.step) {
		return invalid("step must be positive, got %v", p.step)
	}
	if p.grid != nil && len(p.grid) == 0 {
		return invalid("grid must not be empty")
	}

	switch p.kind {
	case KindContinuous, KindInteger:
		if !utils.IsFinite(p.low) || !utils.IsFinite(p.high) {
			return invalid("bounds must be finite")
		}
		if p.kind == KindContinuous && p.low >= p.high {
			return invalid("low %v must be below high %v", p.low, p.high)
		}
		if p.kind == KindInteger && p.low > p.high {
			return invalid("low %v must not exceed high %v", p.low, p.high)
		}
		if p.kind == KindInteger && p.step != 0 && p.step != math.Trunc(p.step) {
			return invalid("integer step must be whole, got %v", p.step)
		}
		switch p.prior {
		case PriorUniform:
		case PriorLog:
			if p.low <= 0 {
				return invalid("log prior requires positive bounds, got low %v", p.low)
			}
		default:
			return invalid("unknown prior %q", p.prior)
		}
	case KindCategorical:
		if len(p.categories) == 0 {
			return invalid("categories must not be empty")
		}
		if p.prior != "" {
			return invalid("categorical parameters take no prior")
		}
		if p.numSamples != 0 || p.step != 0 {
			return invalid("categorical parameters take no num_samples or step")
		}
	default:
		return invalid("unknown kind %q", p.kind)
	}
	return nil
}

// Name returns the parameter name.
func (p *Parameter) Name() string { return p.name }

// Kind returns the domain family.
func (p *Parameter) Kind() Kind { return p.kind }

// Low returns the lower bound of a numeric parameter.
func (p *Parameter) Low() float64 { return p.low }

// High returns the upper bound of a numeric parameter.
func (p *Parameter) High() float64 { return p.high }

// Prior returns the sampling prior; empty for categorical parameters.
func (p *Parameter) Prior() Prior { return p.prior }

// Categories returns a copy of the category values.
func (p *Parameter) Categories() []any { return slices.Clone(p.categories) }

// NumSamples returns the configured grid sample count, or zero.
func (p *Parameter) NumSamples() int { return p.numSamples }

// Step returns the configured grid stride, or zero.
func (p *Parameter) Step() float64 { return p.step }

// HasGrid reports whether Grid can produce a finite sequence.
func (p *Parameter) HasGrid() bool {
	return p.kind == KindCategorical || p.grid != nil || p.numSamples > 0 || p.step > 0
}

// Grid returns the ordered candidate values of the parameter. An explicit grid
// is returned verbatim; otherwise num_samples or step derive one from the
// bounds. Categorical parameters use their categories. A numeric parameter
// with none of these returns ErrNoGrid.
func (p *Parameter) Grid() ([]any, error) {
	if p.grid != nil {
		return slices.Clone(p.grid), nil
	}
	if p.kind == KindCategorical {
		return slices.Clone(p.categories), nil
	}

	var raw []float64
	switch {
	case p.numSamples > 0:
		raw = utils.Linspace(p.low, p.high, p.numSamples)
	case p.step > 0:
		raw = utils.Arange(p.low, p.high, p.step)
	default:
		return nil, fmt.Errorf("%w: parameter %q declares no grid, num_samples or step", ErrNoGrid, p.name)
	}

	out := make([]any, len(raw))
	for i, v := range raw {
		if p.kind == KindInteger {
			out[i] = int(math.Floor(v))
			continue
		}
		out[i] = v
	}
	return out, nil
}

// Sample draws one value from the domain honoring the prior.
func (p *Parameter) Sample(r *utils.RandSource) any {
	switch p.kind {
	case KindCategorical:
		return p.categories[r.Intn(len(p.categories))]
	case KindInteger:
		low, high := int(p.low), int(p.high)
		if p.prior == PriorLog {
			v := int(math.Floor(r.LogUniformFloat64(p.low, p.high+1)))
			return min(max(v, low), high)
		}
		return r.IntRange(low, high)
	default:
		if p.prior == PriorLog {
			return r.LogUniformFloat64(p.low, p.high)
		}
		return r.UniformFloat64(p.low, p.high)
	}
}

// Coerce converts v to the parameter's native value type. Decoded JSON and
// YAML numbers are accepted for every numeric kind, and a categorical value
// matches a category numerically when both are numbers.
func (p *Parameter) Coerce(v any) (any, error) {
	if p.kind == KindCategorical {
		for _, c := range p.categories {
			if valuesEqual(c, v) {
				return c, nil
			}
		}
		return nil, fmt.Errorf("%w: %q: %v is not one of %v", ErrInvalidParameter, p.name, v, p.categories)
	}

	c, err := p.coerceNumber(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidParameter, p.name, err)
	}
	f, _ := toFloat(c)
	if f < p.low || f > p.high {
		return nil, fmt.Errorf("%w: %q: %v outside [%v, %v]", ErrInvalidParameter, p.name, v, p.low, p.high)
	}
	return c, nil
}

func (p *Parameter) coerceNumber(v any) (any, error) {
	f, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("%v (%T) is not numeric", v, v)
	}
	if p.kind == KindInteger {
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not a whole number", v)
		}
		return int(f), nil
	}
	return f, nil
}

// Equal reports whether two parameters describe the same domain and grid.
func (p *Parameter) Equal(o *Parameter) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.name != o.name || p.kind != o.kind || p.prior != o.prior ||
		p.low != o.low || p.high != o.high || p.numSamples != o.numSamples || p.step != o.step {
		return false
	}
	return sliceEqual(p.categories, o.categories) && sliceEqual(p.grid, o.grid)
}

// String renders the parameter for display. Category lists longer than seven
// entries show the first three, an ellipsis and the last three.
func (p *Parameter) String() string {
	switch p.kind {
	case KindCategorical:
		cats := p.categories
		parts := make([]string, 0, 7)
		if len(cats) > 7 {
			for _, c := range cats[:3] {
				parts = append(parts, formatValue(c))
			}
			parts = append(parts, "...")
			for _, c := range cats[len(cats)-3:] {
				parts = append(parts, formatValue(c))
			}
		} else {
			for _, c := range cats {
				parts = append(parts, formatValue(c))
			}
		}
		return fmt.Sprintf("Categorical(categories=[%s], name=%q)", strings.Join(parts, ", "), p.name)
	case KindInteger:
		return fmt.Sprintf("Integer(low=%d, high=%d, prior=%q, name=%q)", int(p.low), int(p.high), p.prior, p.name)
	default:
		return fmt.Sprintf("Real(low=%g, high=%g, prior=%q, name=%q)", p.low, p.high, p.prior, p.name)
	}
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func valuesEqual(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	if okA != okB {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func sliceEqual(a, b []any) bool {
	if len(a) != len(b) || (a == nil) != (b == nil) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
