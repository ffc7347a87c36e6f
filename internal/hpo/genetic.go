package hpo

import (
	"context"
	"sort"

	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

// geneticBackend evolves a population. Until PopulationSize observations
// exist it proposes random points; afterwards each child comes from two
// tournament-selected parents among the fittest PopulationSize observations,
// uniform crossover and neighbourhood mutation.
type geneticBackend struct {
	space    *space.SearchSpace
	rng      *utils.RandSource
	opts     Options
	explorer ParameterExplorer
	random   randomTrial

	observations []observation
}

const tournamentSize = 3

func newGeneticBackend(s *space.SearchSpace, rng *utils.RandSource, opts Options) *geneticBackend {
	return &geneticBackend{
		space:    s,
		rng:      rng,
		opts:     opts,
		explorer: NewDefaultExplorer(s),
		random:   randomTrial{rng: rng},
	}
}

func (b *geneticBackend) Method() Method { return MethodGenetic }

func (b *geneticBackend) Tell(a space.Assignment, objective float64) {
	b.observations = append(b.observations, observation{assignment: a, objective: objective})
}

func (b *geneticBackend) Ask(ctx context.Context) (space.Assignment, bool, error) {
	if len(b.observations) < b.opts.PopulationSize {
		a, err := sampleAssignment(b.space, b.random)
		return a, err == nil, err
	}

	population := b.fittest()
	mother := b.tournament(population)
	father := b.tournament(population)

	child := make(space.Assignment, b.space.Len())
	for _, name := range b.space.Names() {
		if b.rng.BernoulliBool(0.5) {
			child[name] = mother.assignment[name]
		} else {
			child[name] = father.assignment[name]
		}
	}

	if b.rng.BernoulliBool(b.opts.MutationRate) {
		neighbors := b.explorer.GenerateNeighbors(child, 0.1)
		if len(neighbors) > 0 {
			child = neighbors[b.rng.Intn(len(neighbors))]
		}
	}
	return child, true, nil
}

func (b *geneticBackend) fittest() []observation {
	sorted := make([]observation, len(b.observations))
	copy(sorted, b.observations)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].objective < sorted[j].objective })
	return sorted[:b.opts.PopulationSize]
}

func (b *geneticBackend) tournament(population []observation) observation {
	best := population[b.rng.Intn(len(population))]
	for i := 1; i < tournamentSize; i++ {
		c := population[b.rng.Intn(len(population))]
		if c.objective < best.objective {
			best = c
		}
	}
	return best
}
