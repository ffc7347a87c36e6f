package space

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrDuplicateName = errors.New("duplicate parameter name")
	ErrDefaultLength = errors.New("default point length mismatch")
)

// Assignment maps parameter names to values.
type Assignment map[string]any

// Clone returns a shallow copy of a.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// SearchSpace is an ordered collection of uniquely named parameters with an
// optional default point. Order is the positional contract with x0.
type SearchSpace struct {
	params []*Parameter
	index  map[string]int
	x0     []any
}

// New builds a search space. x0 may be nil; otherwise it needs one value per
// parameter, in order, each inside its parameter's domain.
func New(params []*Parameter, x0 []any) (*SearchSpace, error) {
	s := &SearchSpace{
		params: slices.Clone(params),
		index:  make(map[string]int, len(params)),
	}
	for i, p := range params {
		if p == nil {
			return nil, fmt.Errorf("%w: nil parameter at position %d", ErrInvalidParameter, i)
		}
		if _, dup := s.index[p.name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, p.name)
		}
		s.index[p.name] = i
	}
	if x0 != nil {
		if len(x0) != len(params) {
			return nil, fmt.Errorf("%w: %d values for %d parameters", ErrDefaultLength, len(x0), len(params))
		}
		s.x0 = make([]any, len(x0))
		for i, v := range x0 {
			c, err := params[i].Coerce(v)
			if err != nil {
				return nil, fmt.Errorf("default point: %w", err)
			}
			s.x0[i] = c
		}
	}
	return s, nil
}

// MustNew is New for statically known spaces. It panics on error.
func MustNew(params []*Parameter, x0 []any) *SearchSpace {
	s, err := New(params, x0)
	if err != nil {
		panic(err)
	}
	return s
}

// Parameters returns the parameters in declaration order.
func (s *SearchSpace) Parameters() []*Parameter { return slices.Clone(s.params) }

// Len returns the number of parameters.
func (s *SearchSpace) Len() int { return len(s.params) }

// Names returns the parameter names in declaration order.
func (s *SearchSpace) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.name
	}
	return names
}

// Lookup returns the parameter with the given name.
func (s *SearchSpace) Lookup(name string) (*Parameter, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.params[i], true
}

// X0 returns the default point, or nil when none was declared.
func (s *SearchSpace) X0() []any { return slices.Clone(s.x0) }

// HasX0 reports whether a default point was declared.
func (s *SearchSpace) HasX0() bool { return s.x0 != nil }

// Point converts positional values into an assignment.
func (s *SearchSpace) Point(values []any) (Assignment, error) {
	if len(values) != len(s.params) {
		return nil, fmt.Errorf("%w: %d values for %d parameters", ErrDefaultLength, len(values), len(s.params))
	}
	a := make(Assignment, len(values))
	for i, p := range s.params {
		c, err := p.Coerce(values[i])
		if err != nil {
			return nil, err
		}
		a[p.name] = c
	}
	return a, nil
}

// Coerce validates a and converts every value to its parameter's native type.
// Every parameter must be present; unknown names are rejected.
func (s *SearchSpace) Coerce(a Assignment) (Assignment, error) {
	out := make(Assignment, len(s.params))
	for _, p := range s.params {
		v, ok := a[p.name]
		if !ok {
			return nil, fmt.Errorf("%w: %q missing from assignment", ErrInvalidParameter, p.name)
		}
		c, err := p.Coerce(v)
		if err != nil {
			return nil, err
		}
		out[p.name] = c
	}
	for name := range a {
		if _, ok := s.index[name]; !ok {
			return nil, fmt.Errorf("%w: %q is not in the search space", ErrInvalidParameter, name)
		}
	}
	return out, nil
}

// Concat appends other's parameters after s's. The default points are
// concatenated when both are present; if either is missing the result has none.
func (s *SearchSpace) Concat(other *SearchSpace) (*SearchSpace, error) {
	params := append(s.Parameters(), other.params...)
	var x0 []any
	if s.x0 != nil && other.x0 != nil {
		x0 = append(s.X0(), other.x0...)
	}
	return New(params, x0)
}

// Specs serializes every parameter in declaration order.
func (s *SearchSpace) Specs() []Spec {
	out := make([]Spec, len(s.params))
	for i, p := range s.params {
		out[i] = Serialize(p)
	}
	return out
}

// FromSpecs rebuilds a search space from serialized parameters.
func FromSpecs(specs []Spec, x0 []any) (*SearchSpace, error) {
	params := make([]*Parameter, len(specs))
	for i, spec := range specs {
		p, err := Deserialize(spec)
		if err != nil {
			return nil, err
		}
		params[i] = p
	}
	return New(params, x0)
}
