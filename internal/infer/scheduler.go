package infer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/intent.report/internal/config"
	"github.com/banshee-data/intent.report/internal/geom"
	"github.com/banshee-data/intent.report/internal/monitoring"
)

// SchedulerConfig holds the scheduler-side tunables.
type SchedulerConfig struct {
	// BeliefHistoryLength is how many posteriors each track retains for
	// diagnostics. Zero disables history retention.
	BeliefHistoryLength int

	// VelocityAverageWindow smooths observed velocities with a moving
	// average before inference. 1 means observations feed the filter
	// as-is.
	VelocityAverageWindow int
}

// SchedulerConfigFromTuning builds a SchedulerConfig from a loaded TuningConfig.
func SchedulerConfigFromTuning(cfg *config.TuningConfig) SchedulerConfig {
	return SchedulerConfig{
		BeliefHistoryLength:   cfg.GetBeliefHistoryLength(),
		VelocityAverageWindow: cfg.GetVelocityAverageWindow(),
	}
}

// TickInput is one consistent snapshot of the environment feed for one
// inference cycle. The AgentIDs order is authoritative: the predicted
// matrix is agent-major, so agent AgentIDs[i] owns the contiguous block
// Predicted[i*N : (i+1)*N].
//
// Mixing data from different cycles (a velocity from cycle k with
// predictions from cycle k+1) is a correctness bug in the producer, not
// something the scheduler can detect; sources must build each TickInput
// atomically.
type TickInput struct {
	UnixNanos       int64                `json:"unix_nanos"`
	HypothesisCount int                  `json:"hypothesis_count"`
	AgentIDs        []string             `json:"agent_ids"`
	Observed        map[string]geom.Vec2 `json:"observed"`
	Predicted       []geom.Vec2          `json:"predicted"`
	Reset           bool                 `json:"reset,omitempty"`
}

// TickResult carries the per-agent outcomes of one inference cycle.
// Beliefs holds independent copies; callers may retain them across
// ticks without racing the tracks.
type TickResult struct {
	UnixNanos       int64                `json:"unix_nanos"`
	HypothesisCount int                  `json:"hypothesis_count"`
	Beliefs         map[string][]float64 `json:"beliefs"`
	Degenerate      map[string]bool      `json:"degenerate,omitempty"`
	Skipped         map[string]string    `json:"skipped,omitempty"`

	// skipErrs keeps the underlying per-agent errors for errors.Is checks;
	// Skipped carries their strings for JSON consumers.
	skipErrs map[string]error
}

// SkipReason returns the error that caused an agent to be skipped this
// tick, or nil if it was processed.
func (r *TickResult) SkipReason(agentID string) error {
	return r.skipErrs[agentID]
}

// Scheduler drives one filter tick per tracked agent per control cycle
// and owns the track lifecycle: tracks are created on first sighting,
// dropped when the agent leaves the environment feed, and reset in bulk
// when the hypothesis set changes. The tracked-agent list in each
// TickInput is authoritative.
type Scheduler struct {
	mu     sync.RWMutex
	filter *Filter
	cfg    SchedulerConfig

	tracks map[string]*Track

	// lastN is the hypothesis count seen on the previous tick; 0 before
	// the first tick. A change forces a bulk prior reset.
	lastN int

	// resetRequested is a one-shot manual override (e.g. from the API);
	// consumed by the next tick.
	resetRequested bool

	tracksCreated int
	tracksDropped int
}

// NewScheduler creates a scheduler around the given filter.
func NewScheduler(filter *Filter, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		filter: filter,
		cfg:    cfg,
		tracks: make(map[string]*Track),
	}
}

// RequestReset arranges for the next tick to discard all accumulated
// priors and emit uniform beliefs.
func (s *Scheduler) RequestReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetRequested = true
}

// Reconfigure swaps in a new filter and scheduler config. The swap is
// atomic with respect to Tick: a tick in flight finishes under the old
// configuration and the next one runs entirely under the new one, so no
// tick ever mixes two noise models.
func (s *Scheduler) Reconfigure(filter *Filter, cfg SchedulerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	s.cfg = cfg
}

// FilterConfig returns the active filter's configuration.
func (s *Scheduler) FilterConfig() FilterConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter.Config()
}

// Tick runs one inference cycle over the snapshot. A hypothesis count of
// zero is a configuration error and fails the whole tick; everything
// that can go wrong for a single agent (missing observation, short
// predicted slice, non-finite components) skips that agent only and is
// reported in the result.
func (s *Scheduler) Tick(in TickInput) (*TickResult, error) {
	if in.HypothesisCount <= 0 {
		return nil, fmt.Errorf("tick with hypothesis count %d: %w", in.HypothesisCount, ErrNoHypotheses)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := in.HypothesisCount

	resetAll := in.Reset || s.resetRequested
	s.resetRequested = false
	if s.lastN != 0 && s.lastN != n {
		monitoring.Logf("infer: hypothesis count changed %d -> %d, resetting all priors", s.lastN, n)
		resetAll = true
	}
	s.lastN = n

	// Drop tracks for agents no longer reported by the environment feed.
	current := make(map[string]struct{}, len(in.AgentIDs))
	for _, id := range in.AgentIDs {
		current[id] = struct{}{}
	}
	for id := range s.tracks {
		if _, ok := current[id]; !ok {
			delete(s.tracks, id)
			s.tracksDropped++
		}
	}

	if want := len(in.AgentIDs) * n; len(in.Predicted) != want {
		monitoring.Debugf("infer: predicted matrix has %d entries, want %d (%d agents x %d hypotheses)",
			len(in.Predicted), want, len(in.AgentIDs), n)
	}

	res := &TickResult{
		UnixNanos:       in.UnixNanos,
		HypothesisCount: n,
		Beliefs:         make(map[string][]float64, len(in.AgentIDs)),
		Degenerate:      make(map[string]bool),
		Skipped:         make(map[string]string),
		skipErrs:        make(map[string]error),
	}

	skip := func(id string, err error) {
		res.skipErrs[id] = err
		res.Skipped[id] = err.Error()
		monitoring.Logf("infer: skipping agent %s this tick: %v", id, err)
	}

	for i, id := range in.AgentIDs {
		tr, ok := s.tracks[id]
		if !ok {
			tr = NewTrack(id, in.UnixNanos)
			s.tracks[id] = tr
			s.tracksCreated++
		}
		// The reset stays pending on the track until its update actually
		// runs, so an agent skipped this tick is not left with its
		// pre-reset prior.
		if resetAll {
			tr.PendingReset = true
		}

		observed, ok := in.Observed[id]
		if !ok {
			skip(id, fmt.Errorf("agent %s: %w", id, ErrMissingObservation))
			continue
		}
		if !observed.IsFinite() {
			skip(id, fmt.Errorf("agent %s observed (%g, %g): %w", id, observed.X, observed.Y, ErrNonFinite))
			continue
		}

		lo, hi := i*n, (i+1)*n
		if hi > len(in.Predicted) {
			skip(id, fmt.Errorf("agent %s needs predicted[%d:%d] of %d: %w", id, lo, hi, len(in.Predicted), ErrBadSlice))
			continue
		}

		observed = tr.smoothObserved(observed, s.cfg.VelocityAverageWindow)

		out, err := s.filter.Update(tr, observed, in.Predicted[lo:hi], tr.PendingReset)
		if err != nil {
			skip(id, fmt.Errorf("agent %s: %w", id, err))
			continue
		}
		tr.PendingReset = false

		tr.LastUnixNanos = in.UnixNanos
		tr.recordBelief(BeliefSnapshot{
			UnixNanos:  in.UnixNanos,
			Belief:     out.Belief,
			Degenerate: out.Degenerate,
		}, s.cfg.BeliefHistoryLength)

		belief := make([]float64, len(out.Belief))
		copy(belief, out.Belief)
		res.Beliefs[id] = belief
		if out.Degenerate {
			res.Degenerate[id] = true
		}
	}

	return res, nil
}

// TrackCount returns the number of live tracks.
func (s *Scheduler) TrackCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// TrackView is a read-only copy of a track's public state.
type TrackView struct {
	AgentID         string           `json:"agent_id"`
	Initialized     bool             `json:"initialized"`
	FirstUnixNanos  int64            `json:"first_unix_nanos"`
	LastUnixNanos   int64            `json:"last_unix_nanos"`
	TickCount       int              `json:"tick_count"`
	DegenerateTicks int              `json:"degenerate_ticks"`
	History         []BeliefSnapshot `json:"history,omitempty"`
}

// Tracks returns copies of all live tracks, for the API and diagnostics.
// Consumers never see the live prior vectors; those are owned
// exclusively by the scheduler/filter pair.
func (s *Scheduler) Tracks() []TrackView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]TrackView, 0, len(s.tracks))
	for _, tr := range s.tracks {
		v := TrackView{
			AgentID:         tr.AgentID,
			Initialized:     tr.Initialized,
			FirstUnixNanos:  tr.FirstUnixNanos,
			LastUnixNanos:   tr.LastUnixNanos,
			TickCount:       tr.TickCount,
			DegenerateTicks: tr.DegenerateTicks,
		}
		v.History = make([]BeliefSnapshot, len(tr.History))
		for i, snap := range tr.History {
			b := make([]float64, len(snap.Belief))
			copy(b, snap.Belief)
			v.History[i] = BeliefSnapshot{UnixNanos: snap.UnixNanos, Belief: b, Degenerate: snap.Degenerate}
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].AgentID < views[j].AgentID })
	return views
}
