package hpo

import (
	"context"
	"fmt"

	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

// gridBackend walks the cartesian product of every parameter's grid, the
// last parameter varying fastest. Points already told are skipped.
type gridBackend struct {
	names  []string
	grids  [][]any
	cursor []int
	done   bool
	seen   map[string]bool
}

func newGridBackend(s *space.SearchSpace) (*gridBackend, error) {
	b := &gridBackend{seen: make(map[string]bool)}
	for _, p := range s.Parameters() {
		g, err := p.Grid()
		if err != nil {
			return nil, fmt.Errorf("grid search: %w", err)
		}
		b.names = append(b.names, p.Name())
		b.grids = append(b.grids, g)
	}
	b.cursor = make([]int, len(b.grids))
	b.done = len(b.grids) == 0
	return b, nil
}

// Size returns the number of points in the full grid.
func (b *gridBackend) Size() int {
	if len(b.grids) == 0 {
		return 0
	}
	n := 1
	for _, g := range b.grids {
		n *= len(g)
	}
	return n
}

func (b *gridBackend) Method() Method { return MethodGrid }

func (b *gridBackend) Tell(a space.Assignment, _ float64) {
	b.seen[utils.Fingerprint(a)] = true
}

func (b *gridBackend) Ask(ctx context.Context) (space.Assignment, bool, error) {
	for !b.done {
		a := make(space.Assignment, len(b.names))
		for i, name := range b.names {
			a[name] = b.grids[i][b.cursor[i]]
		}
		b.advance()
		if !b.seen[utils.Fingerprint(a)] {
			return a, true, nil
		}
	}
	return nil, false, nil
}

func (b *gridBackend) advance() {
	for i := len(b.cursor) - 1; i >= 0; i-- {
		b.cursor[i]++
		if b.cursor[i] < len(b.grids[i]) {
			return
		}
		b.cursor[i] = 0
	}
	b.done = true
}
