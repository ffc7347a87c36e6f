package hpo

import (
	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
)

// ParameterExplorer generates neighbouring assignments of a point
type ParameterExplorer interface {
	// GenerateNeighbors returns assignments differing from base in one parameter.
	GenerateNeighbors(base space.Assignment, stepSize float64) []space.Assignment
	// Name returns the name of the exploration strategy
	Name() string
}

// DefaultExplorer steps each numeric parameter up and down by stepSize in
// unit-cube coordinates and moves each categorical parameter to its adjacent
// categories.
type DefaultExplorer struct {
	dims []space.Dimension
}

// NewDefaultExplorer creates an explorer over s
func NewDefaultExplorer(s *space.SearchSpace) *DefaultExplorer {
	e := &DefaultExplorer{}
	for _, p := range s.Parameters() {
		e.dims = append(e.dims, space.ToDimension(p))
	}
	return e
}

func (e *DefaultExplorer) Name() string {
	return "default"
}

// GenerateNeighbors returns every distinct single-parameter neighbour of base
func (e *DefaultExplorer) GenerateNeighbors(base space.Assignment, stepSize float64) []space.Assignment {
	neighbors := make([]space.Assignment, 0, 2*len(e.dims))
	for _, d := range e.dims {
		current := base[d.Name]
		var candidates []any
		if d.Type == "categorical" {
			idx := categoryIndex(d.Categories, current)
			if idx > 0 {
				candidates = append(candidates, d.Categories[idx-1])
			}
			if idx+1 < len(d.Categories) {
				candidates = append(candidates, d.Categories[idx+1])
			}
		} else {
			u := d.ToUnit(current)
			candidates = append(candidates, d.FromUnit(u-stepSize), d.FromUnit(u+stepSize))
		}
		for _, c := range candidates {
			if sameValue(c, current) {
				continue
			}
			n := base.Clone()
			n[d.Name] = c
			neighbors = append(neighbors, n)
		}
	}
	return neighbors
}

func categoryIndex(categories []any, v any) int {
	for i, c := range categories {
		if sameValue(c, v) {
			return i
		}
	}
	return 0
}
