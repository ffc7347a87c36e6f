package hpo

import (
	"context"
	"math"

	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

// bayesBackend fits a Gaussian process to every observation in unit-cube
// coordinates and proposes the candidate maximizing expected improvement.
// The first NInitialPoints proposals are random.
type bayesBackend struct {
	dims []space.Dimension
	rng  *utils.RandSource
	opts Options

	observations []observation
	seen         map[string]bool
}

func newBayesBackend(s *space.SearchSpace, rng *utils.RandSource, opts Options) *bayesBackend {
	b := &bayesBackend{rng: rng, opts: opts, seen: make(map[string]bool)}
	for _, p := range s.Parameters() {
		b.dims = append(b.dims, space.ToDimension(p))
	}
	return b
}

func (b *bayesBackend) Method() Method { return MethodBayes }

func (b *bayesBackend) Tell(a space.Assignment, objective float64) {
	b.observations = append(b.observations, observation{assignment: a, objective: objective})
	b.seen[utils.Fingerprint(a)] = true
}

func (b *bayesBackend) Ask(ctx context.Context) (space.Assignment, bool, error) {
	if len(b.observations) < b.opts.NInitialPoints {
		return b.decode(b.randomUnit()), true, nil
	}

	x := make([][]float64, len(b.observations))
	y := make([]float64, len(b.observations))
	best := math.Inf(1)
	bestIdx := 0
	for i, o := range b.observations {
		x[i] = b.encode(o.assignment)
		y[i] = o.objective
		if o.objective < best {
			best, bestIdx = o.objective, i
		}
	}

	gp := newGaussianProcess(b.opts.LengthScale)
	if err := gp.fit(x, y); err != nil {
		// a degenerate kernel falls back to exploration
		return b.decode(b.randomUnit()), true, nil
	}

	var (
		chosen []float64
		bestEI = -1.0
	)
	for i := 0; i < b.opts.NCandidates; i++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		var cand []float64
		if i%2 == 0 {
			cand = b.randomUnit()
		} else {
			cand = b.perturb(x[bestIdx])
		}
		if b.seen[utils.Fingerprint(b.decode(cand))] {
			continue
		}
		mu, sigma := gp.predict(cand)
		if ei := expectedImprovement(mu, sigma, best, b.opts.Xi); ei > bestEI {
			bestEI, chosen = ei, cand
		}
	}
	if chosen == nil {
		chosen = b.randomUnit()
	}
	return b.decode(chosen), true, nil
}

func (b *bayesBackend) randomUnit() []float64 {
	u := make([]float64, len(b.dims))
	for i := range u {
		u[i] = b.rng.Float64()
	}
	return u
}

func (b *bayesBackend) perturb(center []float64) []float64 {
	u := make([]float64, len(center))
	for i, c := range center {
		u[i] = utils.ClampFloat64(b.rng.NormFloat64(c, 0.1), 0, 1)
	}
	return u
}

func (b *bayesBackend) encode(a space.Assignment) []float64 {
	u := make([]float64, len(b.dims))
	for i, d := range b.dims {
		u[i] = d.ToUnit(a[d.Name])
	}
	return u
}

func (b *bayesBackend) decode(u []float64) space.Assignment {
	a := make(space.Assignment, len(b.dims))
	for i, d := range b.dims {
		a[d.Name] = d.FromUnit(u[i])
	}
	return a
}
