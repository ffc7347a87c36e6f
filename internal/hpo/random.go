package hpo

import (
	"context"
	"math"

	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

// randomTrial answers sample-and-score suggestions from a seeded source.
type randomTrial struct {
	rng *utils.RandSource
}

func (t randomTrial) SuggestFloat(name string, low, high, step float64, log bool) (float64, error) {
	if log {
		return t.rng.LogUniformFloat64(low, high), nil
	}
	v := t.rng.UniformFloat64(low, high)
	if step > 0 {
		v = math.Min(high, low+math.Round((v-low)/step)*step)
	}
	return v, nil
}

func (t randomTrial) SuggestInt(name string, low, high, step int, log bool) (int, error) {
	if log {
		v := int(math.Floor(t.rng.LogUniformFloat64(float64(low), float64(high+1))))
		return min(max(v, low), high), nil
	}
	if step <= 0 {
		step = 1
	}
	return low + step*t.rng.Intn((high-low)/step+1), nil
}

func (t randomTrial) SuggestCategorical(name string, choices []any) (any, error) {
	return choices[t.rng.Intn(len(choices))], nil
}

// randomBackend samples every parameter independently from its prior.
type randomBackend struct {
	space *space.SearchSpace
	trial randomTrial
}

func newRandomBackend(s *space.SearchSpace, rng *utils.RandSource) *randomBackend {
	return &randomBackend{space: s, trial: randomTrial{rng: rng}}
}

func (b *randomBackend) Method() Method { return MethodRandom }

func (b *randomBackend) Tell(space.Assignment, float64) {}

func (b *randomBackend) Ask(ctx context.Context) (space.Assignment, bool, error) {
	a, err := sampleAssignment(b.space, b.trial)
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

func sampleAssignment(s *space.SearchSpace, trial space.SuggestContext) (space.Assignment, error) {
	a := make(space.Assignment, s.Len())
	for _, p := range s.Parameters() {
		v, err := space.Suggest(p, trial)
		if err != nil {
			return nil, err
		}
		a[p.Name()] = v
	}
	return a, nil
}
