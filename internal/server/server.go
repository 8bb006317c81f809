// Package server exposes the tuning service over HTTP: starting runs,
// reporting their progress, and cancelling them.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ecotune/ecotune/internal/config"
	"github.com/ecotune/ecotune/internal/logging"
	"github.com/ecotune/ecotune/internal/objective"
	"github.com/ecotune/ecotune/internal/optimization"
	"github.com/ecotune/ecotune/internal/optimization/runner"
	"github.com/ecotune/ecotune/internal/telemetry"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecotune_runs_total",
		Help: "Completed tuning runs by terminal status.",
	}, []string{"status"})

	lastBestScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ecotune_last_best_score",
		Help: "Best objective score of the most recently completed run.",
	})
)

// RunState tracks one tuning run. Access is guarded by the server's mutex.
type RunState struct {
	ID          string
	Mode        optimization.Mode
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time

	Space     *optimization.Space
	Optimizer optimization.Optimizer
	Result    *optimization.Result
	Cancel    context.CancelFunc
}

// Server manages tuning runs and serves the HTTP API.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	applier  objective.Applier     // nil when no cluster access is configured
	metrics  objective.MetricSource // nil when no telemetry is configured
	reporter *telemetry.Reporter

	runs   map[string]*RunState
	runsMu sync.RWMutex
}

// NewServer wires a server. applier and metrics may be nil, in which case
// live-objective runs are rejected with 503.
func NewServer(cfg *config.Config, logger *logging.Logger, applier objective.Applier, metrics objective.MetricSource, reporter *telemetry.Reporter) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		applier:  applier,
		metrics:  metrics,
		reporter: reporter,
		runs:     make(map[string]*RunState),
	}
}

// RegisterRoutes mounts the tuning API.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tune", s.handleTuneStart)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/tune/{id}", s.handleCancel)
	})
}

// Close cancels every run still in flight.
func (s *Server) Close() error {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	for _, run := range s.runs {
		if run.Cancel != nil {
			run.Cancel()
		}
	}
	return nil
}

type paramSpec struct {
	Name  string  `json:"name"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Kind  string  `json:"kind"` // "continuous" or "integer"
}

type tuneRequest struct {
	Mode           string      `json:"mode"`      // "de" or "local"; default from config
	Objective      string      `json:"objective"` // "formula" or "live"; default "formula"
	Params         []paramSpec `json:"params"`
	PopulationSize int         `json:"population_size"`
	MaxIterations  int         `json:"max_iterations"`
	F              float64     `json:"f"`
	CR             float64     `json:"cr"`
	Spread         float64     `json:"spread"`
	Seed           int64       `json:"seed"`
}

func (s *Server) handleTuneStart(w http.ResponseWriter, r *http.Request) {
	var req tuneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if req.Objective == "" {
		req.Objective = "formula"
	}

	space, err := s.buildSpace(req)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	obj, status, err := s.buildObjective(req.Objective, space)
	if err != nil {
		s.respondError(w, status, err.Error())
		return
	}

	ocfg := s.buildOptimizerConfig(req)
	opt, err := runner.NewOptimizer(space, ocfg, s.logger.WithField("run_mode", string(ocfg.Mode)))
	if err != nil {
		// Fail fast: a bad configuration is rejected before any evaluation.
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := fmt.Sprintf("run_%d", time.Now().UnixNano())
	ctx, cancel := context.WithCancel(context.Background())
	state := &RunState{
		ID:          id,
		Mode:        ocfg.Mode,
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		Space:       space,
		Optimizer:   opt,
		Cancel:      cancel,
	}

	s.runsMu.Lock()
	s.runs[id] = state
	s.runsMu.Unlock()

	go s.runTune(ctx, state, obj)

	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": id,
		"status": "pending",
	})
}

func (s *Server) buildSpace(req tuneRequest) (*optimization.Space, error) {
	if len(req.Params) == 0 {
		if req.Objective == "live" {
			return optimization.NewSpace(
				optimization.Param{Name: "replicas", Lower: 1, Upper: 4, Kind: optimization.Integer},
				optimization.Param{Name: "cpu_request", Lower: 0.1, Upper: 0.5, Kind: optimization.Continuous},
				optimization.Param{Name: "concurrency", Lower: 1, Upper: 4, Kind: optimization.Integer},
			)
		}
		return optimization.NewSpace(
			optimization.Param{Name: "cpu", Lower: 0.1, Upper: 2.0, Kind: optimization.Continuous},
			optimization.Param{Name: "memory_mb", Lower: 256, Upper: 4096, Kind: optimization.Continuous},
			optimization.Param{Name: "replicas", Lower: 1, Upper: 10, Kind: optimization.Integer},
			optimization.Param{Name: "parallel_jobs", Lower: 1, Upper: 5, Kind: optimization.Integer},
		)
	}

	params := make([]optimization.Param, len(req.Params))
	for i, p := range req.Params {
		kind := optimization.Continuous
		switch p.Kind {
		case "", "continuous":
		case "integer":
			kind = optimization.Integer
		default:
			return nil, fmt.Errorf("parameter %q: unknown kind %q", p.Name, p.Kind)
		}
		params[i] = optimization.Param{Name: p.Name, Lower: p.Lower, Upper: p.Upper, Kind: kind}
	}
	return optimization.NewSpace(params...)
}

func (s *Server) buildObjective(kind string, space *optimization.Space) (optimization.Objective, int, error) {
	switch kind {
	case "formula":
		if space.Dim() < 3 {
			return nil, http.StatusBadRequest, fmt.Errorf("formula objective needs at least 3 dimensions, got %d", space.Dim())
		}
		return objective.Func(objective.BuildCost), 0, nil
	case "live":
		if s.applier == nil || s.metrics == nil {
			return nil, http.StatusServiceUnavailable, fmt.Errorf("live objective is not available: cluster or telemetry access is not configured")
		}
		// Fail fast: a space too narrow for the applier must be rejected
		// here, not discovered mid-run inside the goroutine.
		if sizer, ok := s.applier.(interface{ MinVectorLen() int }); ok && space.Dim() < sizer.MinVectorLen() {
			return nil, http.StatusBadRequest, fmt.Errorf("live objective needs at least %d parameters, got %d", sizer.MinVectorLen(), space.Dim())
		}
		return objective.NewLive(s.applier, s.metrics, s.liveConfig(), s.logger), 0, nil
	default:
		return nil, http.StatusBadRequest, fmt.Errorf("unknown objective %q", kind)
	}
}

// liveConfig assembles the weighted signals of the live score from the
// service configuration.
func (s *Server) liveConfig() objective.LiveConfig {
	o := s.cfg.Objective
	cpuQuery := fmt.Sprintf(`avg(rate(container_cpu_usage_seconds_total{pod=~"%s.*"}[1m]))`, s.cfg.Target.Deployment)
	return objective.LiveConfig{
		Signals: []objective.Signal{
			{
				Name:    "build_duration",
				Query:   "avg_over_time(ci_build_duration_seconds[30m])",
				Weight:  o.DurationWeight,
				Low:     o.DurationLow,
				High:    o.DurationHigh,
				Default: 300,
			},
			{
				Name:    "cpu",
				Query:   cpuQuery,
				Weight:  o.CPUWeight,
				Low:     o.CPULow,
				High:    o.CPUHigh,
				Default: 0.5,
			},
		},
		Settle:        o.Settle,
		FallbackScore: o.FallbackScore,
	}
}

func (s *Server) buildOptimizerConfig(req tuneRequest) optimization.Config {
	d := s.cfg.Optimizer
	cfg := optimization.Config{
		Mode:           optimization.Mode(d.Mode),
		PopulationSize: d.PopulationSize,
		MaxIterations:  d.MaxIterations,
		F:              d.F,
		CR:             d.CR,
		Spread:         d.Spread,
		Seed:           d.Seed,
	}
	if req.Mode != "" {
		cfg.Mode = optimization.Mode(req.Mode)
	}
	if req.PopulationSize > 0 {
		cfg.PopulationSize = req.PopulationSize
	}
	if req.MaxIterations > 0 {
		cfg.MaxIterations = req.MaxIterations
	}
	if req.F != 0 {
		cfg.F = req.F
	}
	if req.CR != 0 {
		cfg.CR = req.CR
	}
	if req.Spread != 0 {
		cfg.Spread = req.Spread
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	return cfg
}

// runTune executes one run to completion in its own goroutine.
func (s *Server) runTune(ctx context.Context, state *RunState, obj optimization.Objective) {
	s.setStatus(state, "running")

	result, err := state.Optimizer.Optimize(ctx, obj)

	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now
	state.Result = result

	switch {
	case err == nil:
		state.Status = "completed"
	case ctx.Err() != nil:
		state.Status = "cancelled"
	default:
		state.Status = "failed"
		s.logger.Error("tuning run failed", map[string]interface{}{
			"run_id": state.ID,
			"error":  err.Error(),
		})
	}
	runsTotal.WithLabelValues(state.Status).Inc()

	if state.Status == "completed" && result != nil && result.Best != nil {
		lastBestScore.Set(result.Best.Score)
		if s.reporter != nil {
			s.reporter.PushBestScore(result.Best.Score)
		}
		s.logger.Info("tuning run completed", map[string]interface{}{
			"run_id":      state.ID,
			"best_score":  result.Best.Score,
			"best_values": s.namedValues(state.Space, result.Best.Values),
			"evaluations": result.Evaluations,
		})
	}
}

func (s *Server) setStatus(state *RunState, status string) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	state.Status = status
	state.LastUpdated = time.Now()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	state, ok := s.runs[id]
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	resp := map[string]interface{}{
		"run_id":      state.ID,
		"mode":        state.Mode,
		"status":      state.Status,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}
	if state.EndTime != nil {
		resp["end_time"] = state.EndTime.Format(time.RFC3339)
	}

	if history := state.Optimizer.History(); len(history) > 0 {
		gens := make([]map[string]interface{}, len(history))
		for i, h := range history {
			gens[i] = map[string]interface{}{
				"generation": h.Generation,
				"best_score": h.BestScore,
			}
		}
		resp["generations"] = gens
	}

	if best := state.Optimizer.Best(); best != nil {
		resp["best"] = map[string]interface{}{
			"values": s.namedValues(state.Space, best.Values),
			"score":  best.Score,
		}
	}
	if state.Result != nil {
		resp["evaluations"] = state.Result.Evaluations
	}

	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	state, ok := s.runs[id]
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	switch state.Status {
	case "completed", "failed", "cancelled":
		s.respondError(w, http.StatusConflict, fmt.Sprintf("run already %s", state.Status))
		return
	}

	if state.Cancel != nil {
		state.Cancel()
	}
	s.logger.Info("run cancellation requested", map[string]interface{}{"run_id": id})

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

// namedValues zips the space's parameter names with a value vector.
func (s *Server) namedValues(space *optimization.Space, values []float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for i, p := range space.Params() {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("param_%d", i)
		}
		out[name] = values[i]
	}
	return out
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.logger.Warn("request rejected", map[string]interface{}{
		"status":  status,
		"message": msg,
	})
	s.respondJSON(w, status, map[string]string{"error": msg})
}
