package infer

import "github.com/banshee-data/intent.report/internal/geom"

// BeliefSnapshot is one tick's posterior for a track, retained in the
// track's history ring for diagnostics and the API.
type BeliefSnapshot struct {
	UnixNanos  int64     `json:"unix_nanos"`
	Belief     []float64 `json:"belief"`
	Degenerate bool      `json:"degenerate"`
}

// Track is the per-agent filter state. It is an explicit record owned by
// the scheduler and passed into every Filter.Update call; there is no
// hidden per-agent state inside the filter, so a tick sequence can be
// replayed deterministically.
type Track struct {
	AgentID string

	// Prior is the stored (possibly floored) posterior from the previous
	// tick, reused as the Bayesian prior for the next one. Undefined until
	// Initialized is true and must not be read before then.
	Prior []float64

	// Initialized flips to true once the first valid belief has been
	// computed. Tracked per agent, not per hypothesis: a reset or
	// hypothesis-set change invalidates all hypotheses together.
	Initialized bool

	// PendingReset marks the track for a prior reset on its next
	// successful update. It survives skipped ticks: an agent missing an
	// observation on the reset tick still discards its accumulated prior
	// the next time it actually updates.
	PendingReset bool

	FirstUnixNanos int64
	LastUnixNanos  int64

	TickCount       int
	DegenerateTicks int

	// History holds the most recent posteriors, newest last.
	History []BeliefSnapshot

	// recentVels is the moving-average window for observed velocities.
	// Unused (nil) when the window size is 1.
	recentVels []geom.Vec2
}

// NewTrack creates an uninitialized track for an agent first sighted at
// the given timestamp.
func NewTrack(agentID string, unixNanos int64) *Track {
	return &Track{
		AgentID:        agentID,
		FirstUnixNanos: unixNanos,
	}
}

// LatestBelief returns the most recent posterior, or nil if the track has
// not produced one yet. The returned slice is the caller's copy.
func (t *Track) LatestBelief() []float64 {
	if len(t.History) == 0 {
		return nil
	}
	latest := t.History[len(t.History)-1].Belief
	out := make([]float64, len(latest))
	copy(out, latest)
	return out
}

// recordBelief appends a snapshot to the history ring, trimming to limit.
// A limit of zero disables history retention.
func (t *Track) recordBelief(snap BeliefSnapshot, limit int) {
	if limit == 0 {
		return
	}
	t.History = append(t.History, snap)
	if len(t.History) > limit {
		t.History = t.History[len(t.History)-limit:]
	}
}

// smoothObserved pushes the raw observation into the moving-average
// window and returns the window mean. With window <= 1 the observation
// passes through untouched.
func (t *Track) smoothObserved(observed geom.Vec2, window int) geom.Vec2 {
	if window <= 1 {
		return observed
	}
	t.recentVels = append(t.recentVels, observed)
	if len(t.recentVels) > window {
		t.recentVels = t.recentVels[len(t.recentVels)-window:]
	}
	var sum geom.Vec2
	for _, v := range t.recentVels {
		sum = sum.Add(v)
	}
	return sum.Scale(1 / float64(len(t.recentVels)))
}
