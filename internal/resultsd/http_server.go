package resultsd

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/experiment-core/internal/experiment"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/logger"
)

type HTTPServer struct {
	mux   *http.ServeMux
	store *ReportStore
}

func NewHTTPServer(store *ReportStore) *HTTPServer {
	s := &HTTPServer{
		mux:   http.NewServeMux(),
		store: store,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/experiments", s.handleExperiments)
	s.mux.HandleFunc("/v1/experiments/", s.handleExperimentByName)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":      "ok",
		"results_dir": s.store.Root(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if !s.store.Ready() {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
	}
	s.writeJSON(w, status, body)
}

// handleExperiments handles GET /v1/experiments
func (s *HTTPServer) handleExperiments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	list, err := s.store.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"experiments": list,
		"total":       len(list),
	})
}

// handleExperimentByName handles /v1/experiments/{name} and its tables
func (s *HTTPServer) handleExperimentByName(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/experiments/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "experiment name is required")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name, view, _ := strings.Cut(path, "/")
	rep, ok := s.loadReport(w, name)
	if !ok {
		return
	}

	switch view {
	case "":
		s.writeJSON(w, http.StatusOK, map[string]any{"config": rep.Config})
	case "metrics":
		s.writeJSON(w, http.StatusOK, map[string]any{"metrics": rep.Metrics})
	case "features":
		s.writeJSON(w, http.StatusOK, map[string]any{"features": rep.Features})
	case "cv_scores":
		out := make(map[string][]any, len(rep.CVScores))
		for variant, scores := range rep.CVScores {
			out[variant] = nullableSlice(scores)
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"cv_scoring": rep.Config.CVScoring,
			"cv_scores":  out,
		})
	case "sorted":
		s.handleSorted(w, r, rep)
	case "improvement":
		s.handleImprovement(w, r, rep)
	case "convergence":
		s.handleConvergence(w, r, rep)
	default:
		s.writeError(w, http.StatusNotFound, "unknown view: "+view)
	}
}

func (s *HTTPServer) loadReport(w http.ResponseWriter, name string) (*experiment.Report, bool) {
	rep, err := s.store.Get(name)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidName):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		default:
			logger.Error("failed to load experiment", "experiment", name, "error", err)
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return rep, true
}

// handleSorted handles GET /v1/experiments/{name}/sorted
func (s *HTTPServer) handleSorted(w http.ResponseWriter, r *http.Request, rep *experiment.Report) {
	q := r.URL.Query()
	opts := experiment.SortOptions{
		Metric:     q.Get("metric"),
		CutoffType: experiment.Cutoff(q.Get("cutoff_type")),
		SortBy:     q.Get("sort_by"),
		IgnoreNaNs: true,
	}
	if v := q.Get("cutoff_val"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid cutoff_val: "+v)
			return
		}
		opts.CutoffVal = f
	}
	if v := q.Get("ignore_nans"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid ignore_nans: "+v)
			return
		}
		opts.IgnoreNaNs = b
	}

	rows, err := rep.SortByMetric(opts)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = map[string]any{
			"variant": row.Variant,
			"train":   nullable(row.Train),
			"test":    nullable(row.Test),
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"metric": opts.Metric,
		"rows":   out,
	})
}

// handleImprovement handles GET /v1/experiments/{name}/improvement
func (s *HTTPServer) handleImprovement(w http.ResponseWriter, r *http.Request, rep *experiment.Report) {
	metric := r.URL.Query().Get("metric")
	rows, err := rep.Improvement(metric)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = map[string]any{
			"variant": row.Variant,
			"start":   nullable(row.Start),
			"end":     nullable(row.End),
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"metric": metric,
		"rows":   out,
	})
}

// handleConvergence handles GET /v1/experiments/{name}/convergence with an
// optional variant filter
func (s *HTTPServer) handleConvergence(w http.ResponseWriter, r *http.Request, rep *experiment.Report) {
	if variant := r.URL.Query().Get("variant"); variant != "" {
		curve, err := rep.Convergence(variant)
		if err != nil {
			if errors.Is(err, experiment.ErrNotOptimized) {
				s.writeError(w, http.StatusNotFound, err.Error())
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"convergence": map[string][]any{experiment.CanonicalName(variant): nullableSlice(curve)},
		})
		return
	}

	curves, err := rep.CompareConvergence()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make(map[string][]any, len(curves))
	for variant, curve := range curves {
		out[variant] = nullableSlice(curve)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"convergence": out})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

// nullable maps non-finite values to JSON null.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func nullableSlice(values []float64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = nullable(v)
	}
	return out
}
