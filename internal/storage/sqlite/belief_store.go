// Package sqlite persists inference runs and per-tick belief vectors.
// All database read/write operations for the goal-inference domain live
// here rather than in internal/infer, keeping the filter and scheduler
// free of SQL noise.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/intent.report/internal/infer"
)

// Run identifies one continuous inference session: a fixed hypothesis
// set inferred over a live experiment or an offline replay.
type Run struct {
	RunID            string          `json:"run_id"`
	StartedUnixNanos int64           `json:"started_unix_nanos"`
	HypothesisCount  int             `json:"hypothesis_count"`
	ParamsJSON       json.RawMessage `json:"params_json,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

// BeliefRow is one persisted posterior for one agent at one tick.
type BeliefRow struct {
	AgentID    string    `json:"agent_id"`
	UnixNanos  int64     `json:"unix_nanos"`
	Belief     []float64 `json:"belief"`
	Degenerate bool      `json:"degenerate"`
}

// BeliefStore is the SQLite-backed store for runs and belief ticks.
type BeliefStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path and applies pending
// migrations. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*BeliefStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open belief store %q: %w", path, err)
	}
	s := &BeliefStore{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *BeliefStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new inference run record.
func (s *BeliefStore) CreateRun(run Run) error {
	_, err := s.db.Exec(
		`INSERT INTO inference_runs (run_id, started_unix_nanos, hypothesis_count, params_json, notes)
		 VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.StartedUnixNanos, run.HypothesisCount, string(run.ParamsJSON), run.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun fetches one run by ID.
func (s *BeliefStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT run_id, started_unix_nanos, hypothesis_count, params_json, notes
		 FROM inference_runs WHERE run_id = ?`, runID)

	var run Run
	var params, notes sql.NullString
	if err := row.Scan(&run.RunID, &run.StartedUnixNanos, &run.HypothesisCount, &params, &notes); err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	if params.Valid && params.String != "" {
		run.ParamsJSON = json.RawMessage(params.String)
	}
	run.Notes = notes.String
	return &run, nil
}

// ListRuns returns all runs, newest first.
func (s *BeliefStore) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, started_unix_nanos, hypothesis_count, params_json, notes
		 FROM inference_runs ORDER BY started_unix_nanos DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var params, notes sql.NullString
		if err := rows.Scan(&run.RunID, &run.StartedUnixNanos, &run.HypothesisCount, &params, &notes); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if params.Valid && params.String != "" {
			run.ParamsJSON = json.RawMessage(params.String)
		}
		run.Notes = notes.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordTick persists one row per agent belief in a single transaction,
// so a tick is stored atomically or not at all.
func (s *BeliefStore) RecordTick(runID string, res *infer.TickResult) error {
	if len(res.Beliefs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tick transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO belief_ticks (run_id, agent_id, tick_unix_nanos, hypothesis_count, belief_json, degenerate)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare tick insert: %w", err)
	}
	defer stmt.Close()

	for agentID, belief := range res.Beliefs {
		beliefJSON, err := json.Marshal(belief)
		if err != nil {
			return fmt.Errorf("marshal belief for %s: %w", agentID, err)
		}
		degenerate := 0
		if res.Degenerate[agentID] {
			degenerate = 1
		}
		if _, err := stmt.Exec(runID, agentID, res.UnixNanos, res.HypothesisCount, string(beliefJSON), degenerate); err != nil {
			return fmt.Errorf("insert belief for %s: %w", agentID, err)
		}
	}
	return tx.Commit()
}

// ListAgents returns the distinct agent IDs seen in a run.
func (s *BeliefStore) ListAgents(runID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT agent_id FROM belief_ticks WHERE run_id = ? ORDER BY agent_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list agents for run %s: %w", runID, err)
	}
	defer rows.Close()

	var agents []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent id: %w", err)
		}
		agents = append(agents, id)
	}
	return agents, rows.Err()
}

// AgentSeries returns the belief time series for one agent in one run,
// oldest first.
func (s *BeliefStore) AgentSeries(runID, agentID string) ([]BeliefRow, error) {
	rows, err := s.db.Query(
		`SELECT agent_id, tick_unix_nanos, belief_json, degenerate
		 FROM belief_ticks WHERE run_id = ? AND agent_id = ?
		 ORDER BY tick_unix_nanos ASC`, runID, agentID)
	if err != nil {
		return nil, fmt.Errorf("agent series %s/%s: %w", runID, agentID, err)
	}
	defer rows.Close()

	var series []BeliefRow
	for rows.Next() {
		var r BeliefRow
		var beliefJSON string
		var degenerate int
		if err := rows.Scan(&r.AgentID, &r.UnixNanos, &beliefJSON, &degenerate); err != nil {
			return nil, fmt.Errorf("scan belief row: %w", err)
		}
		if err := json.Unmarshal([]byte(beliefJSON), &r.Belief); err != nil {
			return nil, fmt.Errorf("unmarshal belief for %s at %d: %w", r.AgentID, r.UnixNanos, err)
		}
		r.Degenerate = degenerate != 0
		series = append(series, r)
	}
	return series, rows.Err()
}

// RunRecorder binds a store to a run ID so it satisfies the runner's
// Sink interface.
type RunRecorder struct {
	store *BeliefStore
	runID string
}

// NewRunRecorder creates a Sink that records every tick under runID.
func NewRunRecorder(store *BeliefStore, runID string) *RunRecorder {
	return &RunRecorder{store: store, runID: runID}
}

// RecordTick implements the runner Sink.
func (r *RunRecorder) RecordTick(res *infer.TickResult) error {
	return r.store.RecordTick(r.runID, res)
}
