package space

import "fmt"

// Default values of the static parameters when a variant declares none.
const (
	DefaultLookback     = 5
	DefaultBatchSize    = 32
	DefaultLearningRate = 0.001
)

// Static holds the cross-variant parameters shared by every deep-learning
// variant. A nil field is disabled.
type Static struct {
	Lookback     *Parameter
	BatchSize    *Parameter
	LearningRate *Parameter
}

// StaticOptions toggles the default static parameters.
type StaticOptions struct {
	Lookback     bool `yaml:"lookback" json:"lookback"`
	BatchSize    bool `yaml:"batch_size" json:"batch_size"`
	LearningRate bool `yaml:"lr" json:"lr"`
}

// DefaultStatic returns the standard static parameters selected by opts:
// lookback in [1, 15], batch size among 4 to 32 and a learning rate in [1e-5, 0.005].
func DefaultStatic(opts StaticOptions) Static {
	var st Static
	if opts.Lookback {
		st.Lookback = mustParam(NewInteger("lookback", 1, 15))
	}
	if opts.BatchSize {
		st.BatchSize = mustParam(NewCategorical("batch_size", []any{4, 8, 12, 16, 32}))
	}
	if opts.LearningRate {
		st.LearningRate = mustParam(NewReal("lr", 1e-5, 0.005))
	}
	return st
}

func mustParam(p *Parameter, err error) *Parameter {
	if err != nil {
		panic(err)
	}
	return p
}

// Enabled reports whether any static parameter is set.
func (st Static) Enabled() bool {
	return st.Lookback != nil || st.BatchSize != nil || st.LearningRate != nil
}

type staticEntry struct {
	param *Parameter
	def   any
}

func (st Static) entries() []staticEntry {
	var out []staticEntry
	for _, e := range []staticEntry{
		{st.Lookback, DefaultLookback},
		{st.BatchSize, DefaultBatchSize},
		{st.LearningRate, DefaultLearningRate},
	} {
		if e.param != nil {
			out = append(out, e)
		}
	}
	return out
}

// Extend appends the enabled static parameters to s. Their defaults are
// appended to the default point: a value from overrides when present, else
// the documented default. A default point must cover every parameter, so
// when s declares none the static defaults are dropped and the extended
// space has no default point either.
func (st Static) Extend(s *SearchSpace, overrides Assignment) (*SearchSpace, error) {
	params := s.Parameters()
	var x0 []any
	if s.HasX0() {
		x0 = s.X0()
	}
	for _, e := range st.entries() {
		params = append(params, e.param)
		if x0 == nil {
			continue
		}
		def := e.def
		if v, ok := overrides[e.param.Name()]; ok {
			def = v
		}
		x0 = append(x0, def)
	}
	out, err := New(params, x0)
	if err != nil {
		return nil, fmt.Errorf("extend with static parameters: %w", err)
	}
	return out, nil
}
