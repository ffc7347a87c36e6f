package resultsd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/experiment-core/internal/experiment"
)

var (
	ErrNotFound    = errors.New("experiment not found")
	ErrInvalidName = errors.New("invalid experiment name")
)

// Summary describes one persisted experiment.
type Summary struct {
	Name      string   `json:"name"`
	RunID     string   `json:"run_id,omitempty"`
	RunType   string   `json:"run_type"`
	OptMethod string   `json:"opt_method,omitempty"`
	Mode      string   `json:"mode"`
	Variants  []string `json:"variants"`
	Optimized []string `json:"optimized"`
	UpdatedAt string   `json:"updated_at"`
}

type cachedReport struct {
	report  *experiment.Report
	modTime time.Time
}

// ReportStore serves reports loaded from the experiment directories under
// one results root. A report is reloaded when its config file changes.
type ReportStore struct {
	root string

	mu      sync.RWMutex
	reports map[string]*cachedReport
}

func NewReportStore(root string) *ReportStore {
	return &ReportStore{
		root:    root,
		reports: make(map[string]*cachedReport),
	}
}

// Root returns the results directory.
func (s *ReportStore) Root() string { return s.root }

// Ready reports whether the results directory exists.
func (s *ReportStore) Ready() bool {
	info, err := os.Stat(s.root)
	return err == nil && info.IsDir()
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q cannot contain path separators", ErrInvalidName, name)
	}
	return nil
}

// Get returns the report of the named experiment.
func (s *ReportStore) Get(name string) (*experiment.Report, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	configPath := filepath.Join(s.root, name, experiment.ConfigFile)
	info, err := os.Stat(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.evict(name)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}

	s.mu.RLock()
	cached, ok := s.reports[name]
	s.mu.RUnlock()
	if ok && cached.modTime.Equal(info.ModTime()) {
		return cached.report, nil
	}

	r, err := experiment.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load experiment %s: %w", name, err)
	}

	s.mu.Lock()
	s.reports[name] = &cachedReport{report: r, modTime: info.ModTime()}
	s.mu.Unlock()
	return r, nil
}

func (s *ReportStore) evict(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reports, name)
}

// List summarizes every experiment directory holding a run configuration,
// most recently updated first. Directories that fail to load are skipped.
func (s *ReportStore) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("read results directory: %w", err)
	}

	type item struct {
		summary Summary
		mod     time.Time
	}
	var items []item
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(s.root, e.Name(), experiment.ConfigFile))
		if err != nil {
			continue
		}
		r, err := s.Get(e.Name())
		if err != nil {
			continue
		}
		items = append(items, item{summary: summarize(e.Name(), r, info.ModTime()), mod: info.ModTime()})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].mod.Equal(items[j].mod) {
			return items[i].summary.Name < items[j].summary.Name
		}
		return items[i].mod.After(items[j].mod)
	})
	out := make([]Summary, len(items))
	for i, it := range items {
		out[i] = it.summary
	}
	return out, nil
}

func summarize(name string, r *experiment.Report, mod time.Time) Summary {
	variants := r.Config.Variants
	if variants == nil {
		variants = []string{}
	}
	optimized := r.OptimizedVariants()
	if optimized == nil {
		optimized = []string{}
	}
	return Summary{
		Name:      name,
		RunID:     r.Config.RunID,
		RunType:   string(r.Config.RunType),
		OptMethod: string(r.Config.OptMethod),
		Mode:      string(r.Config.Mode),
		Variants:  variants,
		Optimized: optimized,
		UpdatedAt: mod.UTC().Format(time.RFC3339),
	}
}
