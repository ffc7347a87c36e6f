package hpo

import "fmt"

// SelectionStrategy defines how to select the best record of a history
type SelectionStrategy interface {
	SelectBest(history []Record) (Record, error)
	Name() string
}

// NewSelectionStrategy returns the named strategy. Empty means best_score.
func NewSelectionStrategy(name string) (SelectionStrategy, error) {
	switch name {
	case "", "best_score":
		return &BestScoreStrategy{}, nil
	case "evaluated_only":
		return &EvaluatedOnlyStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown selection strategy %q", name)
	}
}

// BestScoreStrategy selects the record with the lowest objective. Ties go to
// the earliest iteration.
type BestScoreStrategy struct{}

func (s *BestScoreStrategy) Name() string {
	return "best_score"
}

func (s *BestScoreStrategy) SelectBest(history []Record) (Record, error) {
	if len(history) == 0 {
		return Record{}, fmt.Errorf("no records to select from")
	}
	best := history[0]
	for _, r := range history[1:] {
		if r.Objective < best.Objective {
			best = r
		}
	}
	return best, nil
}

// EvaluatedOnlyStrategy selects like BestScoreStrategy but ignores resumed
// records, falling back to them only when nothing was evaluated.
type EvaluatedOnlyStrategy struct{}

func (s *EvaluatedOnlyStrategy) Name() string {
	return "evaluated_only"
}

func (s *EvaluatedOnlyStrategy) SelectBest(history []Record) (Record, error) {
	fresh := make([]Record, 0, len(history))
	for _, r := range history {
		if !r.Resumed {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		fresh = history
	}
	return (&BestScoreStrategy{}).SelectBest(fresh)
}
