// Package api exposes the live inference state and stored runs over HTTP.
// Consumers (experiment dashboards, the plotting tools) treat belief
// vectors as live, continuously-refreshed estimates; never as final
// decisions.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/intent.report/internal/config"
	"github.com/banshee-data/intent.report/internal/infer"
	"github.com/banshee-data/intent.report/internal/monitoring"
	"github.com/banshee-data/intent.report/internal/runner"
	sqlitestore "github.com/banshee-data/intent.report/internal/storage/sqlite"
	"github.com/banshee-data/intent.report/internal/version"
)

// Server wires the runner, scheduler, and belief store into HTTP handlers.
type Server struct {
	runner *runner.Runner
	sched  *infer.Scheduler
	store  *sqlitestore.BeliefStore // may be nil when persistence is disabled

	// mu guards tuning: handlers run concurrently and POST /params
	// rewrites the struct that GET /params encodes.
	mu     sync.RWMutex
	tuning *config.TuningConfig
}

// NewServer creates an API server. store may be nil.
func NewServer(r *runner.Runner, sched *infer.Scheduler, store *sqlitestore.BeliefStore, tuning *config.TuningConfig) *Server {
	return &Server{runner: r, sched: sched, store: store, tuning: tuning}
}

// ServeMux returns the route table for the API.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/beliefs", s.showBeliefs)
	mux.HandleFunc("/tracks", s.showTracks)
	mux.HandleFunc("/metrics", s.showMetrics)
	mux.HandleFunc("/params", s.handleParams)
	mux.HandleFunc("/reset", s.requestReset)
	mux.HandleFunc("/runs", s.listRuns)
	mux.HandleFunc("/agents", s.listAgents)
	mux.HandleFunc("/series", s.showSeries)
	mux.HandleFunc("/health", s.showHealth)
	return mux
}

// showHealth reports liveness plus build identity, for deploy checks.
func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"status":     "ok",
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
		"tick_count": s.runner.TickCount(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("api: failed to write response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`+"\n", msg)
}

// showBeliefs returns the latest tick result: per-agent normalized
// posteriors plus any per-agent skip reasons.
func (s *Server) showBeliefs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	latest := s.runner.Latest()
	if latest == nil {
		s.writeJSONError(w, http.StatusNotFound, "no inference tick has completed yet")
		return
	}
	s.writeJSON(w, latest)
}

// showTracks returns read-only copies of the live tracks, including
// each track's recent posterior history.
func (s *Server) showTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, s.sched.Tracks())
}

// showMetrics returns aggregate inference quality metrics.
func (s *Server) showMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, s.sched.Metrics())
}

// handleParams shows (GET) or validates-and-applies (POST) the tuning
// config. On POST the scheduler swaps in a filter rebuilt from the new
// tuning between ticks, so updates take effect on the next inference
// cycle. The runner's tick interval is fixed at startup and is the one
// value a POST cannot change.
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		defer s.mu.RUnlock()
		s.writeJSON(w, s.tuning)
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		updated := config.EmptyTuningConfig()
		if err := json.Unmarshal(body, updated); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid params JSON: %v", err))
			return
		}
		if err := updated.Validate(); err != nil {
			s.writeJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid params: %v", err))
			return
		}
		filter, err := infer.NewFilter(infer.FilterConfigFromTuning(updated))
		if err != nil {
			s.writeJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid params: %v", err))
			return
		}

		s.mu.Lock()
		*s.tuning = *updated
		s.mu.Unlock()
		s.sched.Reconfigure(filter, infer.SchedulerConfigFromTuning(updated))

		s.writeJSON(w, updated)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// requestReset arranges for the next tick to discard accumulated priors.
func (s *Server) requestReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.sched.RequestReset()
	monitoring.Logf("api: prior reset requested")
	s.writeJSON(w, map[string]bool{"reset_requested": true})
}

// listRuns returns the stored inference runs, newest first.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotFound, "persistence is disabled")
		return
	}
	runs, err := s.store.ListRuns()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	s.writeJSON(w, runs)
}

// listAgents returns the agent IDs recorded in a run: /agents?run_id=...
func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotFound, "persistence is disabled")
		return
	}
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "run_id is required")
		return
	}
	agents, err := s.store.ListAgents(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list agents: %v", err))
		return
	}
	s.writeJSON(w, agents)
}

// showSeries returns the stored belief time series for one agent in one
// run: /series?run_id=...&agent_id=...
func (s *Server) showSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotFound, "persistence is disabled")
		return
	}
	runID := r.URL.Query().Get("run_id")
	agentID := r.URL.Query().Get("agent_id")
	if runID == "" || agentID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "run_id and agent_id are required")
		return
	}
	series, err := s.store.AgentSeries(runID, agentID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load series: %v", err))
		return
	}
	s.writeJSON(w, series)
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status, and duration per request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf("[%s] %s %s %s", strconv.Itoa(lrw.statusCode), r.Method, r.URL.Path,
			time.Since(start).Round(time.Microsecond))
	})
}
