package experiment

import (
	"fmt"
	"strings"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/internal/trial"
)

// Builder produces a variant's search space and model configuration. It is
// called once with a nil assignment to obtain the space and its default
// point, and once per trial with the suggested values.
type Builder interface {
	Build(suggested space.Assignment) (*space.SearchSpace, trial.Config, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(suggested space.Assignment) (*space.SearchSpace, trial.Config, error)

// Build calls f.
func (f BuilderFunc) Build(suggested space.Assignment) (*space.SearchSpace, trial.Config, error) {
	return f(suggested)
}

// CanonicalName strips the model_ prefix variants are sometimes declared with.
func CanonicalName(name string) string {
	return strings.TrimPrefix(name, "model_")
}

type variant struct {
	name    string
	builder Builder

	// fixed-configuration case; takes precedence over builder
	caseConfig trial.Config
	caseSpace  *space.SearchSpace
}

func (v *variant) isCase() bool { return v.caseConfig != nil }

// build resolves the configuration for suggested. A case merges the
// suggested values over its fixed configuration.
func (v *variant) build(suggested space.Assignment) (*space.SearchSpace, trial.Config, error) {
	if v.isCase() {
		return v.caseSpace, v.caseConfig.Merge(suggested), nil
	}
	return v.builder.Build(suggested)
}

// Registry is the explicit set of variants an experiment compares, in
// declaration order.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	variants map[string]*variant
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{variants: make(map[string]*variant)}
}

// Register adds a builder-backed variant.
func (r *Registry) Register(name string, b Builder) error {
	if b == nil {
		return fmt.Errorf("variant %q: builder is nil", name)
	}
	name = CanonicalName(name)
	if name == "" {
		return fmt.Errorf("variant name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.variants[name]; ok && v.builder != nil {
		return fmt.Errorf("%w: %q", ErrDuplicateVariant, name)
	} else if ok {
		v.builder = b
		return nil
	}
	r.variants[name] = &variant{name: name, builder: b}
	r.order = append(r.order, name)
	return nil
}

// AddCase adds a fixed-configuration variant. A case sharing a builder's
// name replaces the builder's configuration but keeps its position. s is
// optional and only needed to optimize the case. The configuration is
// normalized to JSON values so it persists unchanged.
func (r *Registry) AddCase(name string, cfg trial.Config, s *space.SearchSpace) error {
	name = CanonicalName(name)
	if name == "" {
		return fmt.Errorf("case name is required")
	}
	norm, err := normalizeConfig(cfg)
	if err != nil {
		return fmt.Errorf("case %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.variants[name]; ok {
		v.caseConfig = norm
		v.caseSpace = s
		return nil
	}
	r.variants[name] = &variant{name: name, caseConfig: norm, caseSpace: s}
	r.order = append(r.order, name)
	return nil
}

// Names returns the canonical variant names in declaration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of variants
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Cases returns the case configurations by variant name.
func (r *Registry) Cases() map[string]trial.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]trial.Config)
	for name, v := range r.variants {
		if v.isCase() {
			out[name] = v.caseConfig.Merge(nil)
		}
	}
	return out
}

func (r *Registry) get(name string) (*variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[CanonicalName(name)]
	return v, ok
}

// Resolve filters the declared variants by include and exclude. An empty
// include selects every variant. Any unknown name is a ConfigError.
func (r *Registry) Resolve(include, exclude []string) ([]string, error) {
	selected := make(map[string]bool)
	if len(include) == 0 {
		for _, name := range r.Names() {
			selected[name] = true
		}
	}
	for _, name := range include {
		if _, ok := r.get(name); !ok {
			return nil, &ConfigError{Field: "include", Name: name, Err: ErrUnknownVariant}
		}
		selected[CanonicalName(name)] = true
	}
	for _, name := range exclude {
		if _, ok := r.get(name); !ok {
			return nil, &ConfigError{Field: "exclude", Name: name, Err: ErrUnknownVariant}
		}
		delete(selected, CanonicalName(name))
	}

	var out []string
	for _, name := range r.Names() {
		if selected[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

func normalizeConfig(cfg trial.Config) (trial.Config, error) {
	if cfg == nil {
		return trial.Config{}, nil
	}
	st, err := structpb.NewStruct(cfg)
	if err != nil {
		return nil, fmt.Errorf("configuration is not JSON-compatible: %w", err)
	}
	return st.AsMap(), nil
}
