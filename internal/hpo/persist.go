package hpo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/experiment-core/internal/space"
	"github.com/GoSim-25-26J-441/experiment-core/internal/trial"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

// Files written to a search directory.
const (
	IterationsFile = "iterations.json"
	SerializedFile = "serialized.json"
	CheckpointsDir = "checkpoints"
)

// IterationKey is the iterations.json key of one record.
func IterationKey(iteration int, fingerprint string) string {
	return fmt.Sprintf("%d_%s", iteration, fingerprint)
}

// Table is the serialized form of a finished search.
type Table struct {
	Method Method       `json:"method"`
	Space  []space.Spec `json:"space"`
	X0     []any        `json:"x0,omitempty"`
	Trials []Record     `json:"trials"`
	Best   Record       `json:"best"`
}

// Observations returns the trials as resume input.
func (t *Table) Observations() []Observation {
	out := make([]Observation, len(t.Trials))
	for i, r := range t.Trials {
		out[i] = Observation{Assignment: r.Assignment, Objective: r.Objective}
	}
	return out
}

// SearchSpace rebuilds the searched space.
func (t *Table) SearchSpace() (*space.SearchSpace, error) {
	return space.FromSpecs(t.Space, t.X0)
}

// Save persists a finished search into dir: the iteration objectives, the
// full trial table and the ranked checkpoints.
func Save(dir string, s *space.SearchSpace, r *Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create search directory: %w", err)
	}

	iterations := make(map[string]float64, len(r.History))
	for _, rec := range r.History {
		iterations[IterationKey(rec.Iteration, rec.Fingerprint)] = rec.Objective
	}
	if err := writeJSON(filepath.Join(dir, IterationsFile), iterations); err != nil {
		return err
	}

	table := Table{Method: r.Method, Space: s.Specs(), X0: s.X0(), Trials: r.History, Best: r.Best}
	data, err := marshalTable(table)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, SerializedFile), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", SerializedFile, err)
	}

	return WriteCheckpoints(dir, r.History)
}

// marshalTable encodes the table as a protobuf Struct in its JSON mapping.
func marshalTable(t Table) ([]byte, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode trial table: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode trial table: %w", err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode trial table: %w", err)
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
}

// LoadTable reads the trial table of a search directory.
func LoadTable(dir string) (*Table, error) {
	data, err := os.ReadFile(filepath.Join(dir, SerializedFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SerializedFile, err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", SerializedFile, err)
	}
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", SerializedFile, err)
	}
	var t Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode %s: %w", SerializedFile, err)
	}
	return &t, nil
}

// IterationEntry is one iterations.json entry.
type IterationEntry struct {
	Iteration   int
	Fingerprint string
	Objective   float64
}

// LoadIterations reads iterations.json in iteration order.
func LoadIterations(dir string) ([]IterationEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, IterationsFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", IterationsFile, err)
	}
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", IterationsFile, err)
	}
	entries := make([]IterationEntry, 0, len(raw))
	for key, obj := range raw {
		prefix, fp, _ := strings.Cut(key, "_")
		iter, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("decode %s: malformed key %q", IterationsFile, key)
		}
		entries = append(entries, IterationEntry{Iteration: iter, Fingerprint: fp, Objective: obj})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Iteration < entries[j].Iteration })
	return entries, nil
}

// Convergence returns the running minimum of a persisted search's objectives.
func Convergence(dir string) ([]float64, error) {
	entries, err := LoadIterations(dir)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(entries))
	for i, e := range entries {
		values[i] = e.Objective
	}
	return utils.RunningMin(values), nil
}

// RankedCheckpoint is a checkpoint pointer with its rank, 1 being best.
type RankedCheckpoint struct {
	Rank       int              `json:"rank"`
	Iteration  int              `json:"iteration"`
	Objective  float64          `json:"objective"`
	Checkpoint trial.Checkpoint `json:"checkpoint"`
}

// WriteCheckpoints writes one pointer file per record that produced a
// checkpoint, named <rank>_<fingerprint>.json with rank 1 the lowest objective.
// Stale pointers from earlier runs are removed first.
func WriteCheckpoints(dir string, history []Record) error {
	ckDir := filepath.Join(dir, CheckpointsDir)
	if err := os.RemoveAll(ckDir); err != nil {
		return fmt.Errorf("clear checkpoints: %w", err)
	}

	var withCk []Record
	for _, r := range history {
		if r.Checkpoint != nil {
			withCk = append(withCk, r)
		}
	}
	if len(withCk) == 0 {
		return nil
	}
	sort.SliceStable(withCk, func(i, j int) bool { return withCk[i].Objective < withCk[j].Objective })

	if err := os.MkdirAll(ckDir, 0o755); err != nil {
		return fmt.Errorf("create checkpoints directory: %w", err)
	}
	for i, r := range withCk {
		rc := RankedCheckpoint{Rank: i + 1, Iteration: r.Iteration, Objective: r.Objective, Checkpoint: *r.Checkpoint}
		name := fmt.Sprintf("%d_%s.json", rc.Rank, r.Fingerprint)
		if err := writeJSON(filepath.Join(ckDir, name), rc); err != nil {
			return err
		}
	}
	return nil
}

// RankedCheckpoints lists the checkpoint pointers of a search directory by rank.
func RankedCheckpoints(dir string) ([]RankedCheckpoint, error) {
	ckDir := filepath.Join(dir, CheckpointsDir)
	entries, err := os.ReadDir(ckDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	var out []RankedCheckpoint
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(ckDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read checkpoint %s: %w", e.Name(), err)
		}
		var rc RankedCheckpoint
		if err := json.Unmarshal(data, &rc); err != nil {
			return nil, fmt.Errorf("decode checkpoint %s: %w", e.Name(), err)
		}
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

// BestCheckpoint returns the rank 1 checkpoint, if any was persisted.
func BestCheckpoint(dir string) (trial.Checkpoint, bool, error) {
	ranked, err := RankedCheckpoints(dir)
	if err != nil || len(ranked) == 0 {
		return trial.Checkpoint{}, false, err
	}
	if ranked[0].Rank != 1 {
		return trial.Checkpoint{}, false, nil
	}
	return ranked[0].Checkpoint, true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
