package hpo

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

// tpeBackend is a tree-structured Parzen estimator. Observations are split
// at the gamma quantile into good and bad sets; each dimension draws
// candidates from the good density l and keeps the one maximizing l/g.
type tpeBackend struct {
	dims []space.TreeDim
	rng  *utils.RandSource
	opts Options

	observations []observation
}

func newTPEBackend(s *space.SearchSpace, rng *utils.RandSource, opts Options) *tpeBackend {
	b := &tpeBackend{rng: rng, opts: opts}
	for _, p := range s.Parameters() {
		b.dims = append(b.dims, space.ToTreeDim(p))
	}
	return b
}

func (b *tpeBackend) Method() Method { return MethodTPE }

func (b *tpeBackend) Tell(a space.Assignment, objective float64) {
	b.observations = append(b.observations, observation{assignment: a, objective: objective})
}

func (b *tpeBackend) Ask(ctx context.Context) (space.Assignment, bool, error) {
	a := make(space.Assignment, len(b.dims))
	if len(b.observations) < b.opts.NInitialPoints {
		for _, d := range b.dims {
			a[d.Label] = b.fromInternal(d, b.samplePrior(d))
		}
		return a, true, nil
	}

	sorted := make([]observation, len(b.observations))
	copy(sorted, b.observations)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].objective < sorted[j].objective })
	nGood := max(1, int(math.Ceil(b.opts.Gamma*float64(len(sorted)))))
	good, bad := sorted[:nGood], sorted[nGood:]

	nCand := min(b.opts.NCandidates, 64)
	for _, d := range b.dims {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if d.Dist == "choice" {
			a[d.Label] = b.suggestChoice(d, good, bad, nCand)
			continue
		}
		x, err := b.suggestNumeric(d, good, bad, nCand)
		if err != nil {
			return nil, false, err
		}
		a[d.Label] = b.fromInternal(d, x)
	}
	return a, true, nil
}

// internal coordinates are the log of the value for log distributions.
func (b *tpeBackend) toInternal(d space.TreeDim, v any) (float64, error) {
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", d.Label, err)
	}
	if d.Dist == "loguniform" || d.Dist == "qloguniform" {
		return math.Log(f), nil
	}
	return f, nil
}

func (b *tpeBackend) fromInternal(d space.TreeDim, x any) any {
	if d.Dist == "choice" {
		return x
	}
	f := utils.ClampFloat64(x.(float64), d.Low, d.High)
	switch d.Dist {
	case "loguniform":
		return math.Exp(f)
	case "qloguniform":
		return int(math.Round(math.Exp(f)/d.Q) * d.Q)
	case "randint":
		return int(math.Round(f))
	default:
		return f
	}
}

func (b *tpeBackend) samplePrior(d space.TreeDim) any {
	if d.Dist == "choice" {
		return d.Options[b.rng.Intn(len(d.Options))]
	}
	return b.rng.UniformFloat64(d.Low, d.High)
}

// parzen is a mixture of a uniform prior over [low, high] and one Gaussian
// per observation, equally weighted.
type parzen struct {
	low, high float64
	mus       []float64
	sigma     float64
}

func (b *tpeBackend) newParzen(d space.TreeDim, obs []observation) (parzen, error) {
	p := parzen{low: d.Low, high: d.High}
	for _, o := range obs {
		mu, err := b.toInternal(d, o.assignment[d.Label])
		if err != nil {
			return parzen{}, err
		}
		p.mus = append(p.mus, mu)
	}
	width := d.High - d.Low
	p.sigma = math.Max(width/math.Max(1, math.Sqrt(float64(len(obs))))*0.5, width*0.01)
	if p.sigma == 0 {
		p.sigma = 1
	}
	return p, nil
}

func (p parzen) pdf(x float64) float64 {
	width := p.high - p.low
	density := 0.0
	if width > 0 {
		density = 1 / width
	}
	for _, mu := range p.mus {
		z := (x - mu) / p.sigma
		density += math.Exp(-0.5*z*z) / (p.sigma * math.Sqrt(2*math.Pi))
	}
	return density / float64(len(p.mus)+1)
}

func (p parzen) sample(rng *utils.RandSource) float64 {
	k := rng.Intn(len(p.mus) + 1)
	if k == len(p.mus) {
		return rng.UniformFloat64(p.low, p.high)
	}
	return utils.ClampFloat64(rng.NormFloat64(p.mus[k], p.sigma), p.low, p.high)
}

func (b *tpeBackend) suggestNumeric(d space.TreeDim, good, bad []observation, n int) (float64, error) {
	l, err := b.newParzen(d, good)
	if err != nil {
		return 0, err
	}
	g, err := b.newParzen(d, bad)
	if err != nil {
		return 0, err
	}
	best, bestScore := l.sample(b.rng), math.Inf(-1)
	for i := 0; i < n; i++ {
		x := l.sample(b.rng)
		score := math.Log(l.pdf(x)+1e-300) - math.Log(g.pdf(x)+1e-300)
		if score > bestScore {
			best, bestScore = x, score
		}
	}
	return best, nil
}

func (b *tpeBackend) suggestChoice(d space.TreeDim, good, bad []observation, n int) any {
	lw := choiceWeights(d, good)
	gw := choiceWeights(d, bad)
	best, bestScore := d.Options[0], math.Inf(-1)
	for i := 0; i < n; i++ {
		k := sampleWeighted(b.rng, lw)
		score := math.Log(lw[k]) - math.Log(gw[k])
		if score > bestScore {
			best, bestScore = d.Options[k], score
		}
	}
	return best
}

// choiceWeights returns add-one smoothed category frequencies.
func choiceWeights(d space.TreeDim, obs []observation) []float64 {
	w := make([]float64, len(d.Options))
	for i := range w {
		w[i] = 1
	}
	for _, o := range obs {
		for i, opt := range d.Options {
			if sameValue(opt, o.assignment[d.Label]) {
				w[i]++
				break
			}
		}
	}
	total := utils.Sum(w)
	for i := range w {
		w[i] /= total
	}
	return w
}

func sampleWeighted(rng *utils.RandSource, w []float64) int {
	u := rng.Float64()
	for i, p := range w {
		u -= p
		if u < 0 {
			return i
		}
	}
	return len(w) - 1
}
