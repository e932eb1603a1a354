package infer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TrackMetrics summarises inference quality for a single track.
type TrackMetrics struct {
	AgentID         string  `json:"agent_id"`
	TickCount       int     `json:"tick_count"`
	DegenerateTicks int     `json:"degenerate_ticks"`
	// DominantGoal is the index of the highest-belief hypothesis in the
	// latest posterior, -1 if the track has no posterior yet.
	DominantGoal int     `json:"dominant_goal"`
	Confidence   float64 `json:"confidence"`   // belief mass on the dominant goal
	EntropyBits  float64 `json:"entropy_bits"` // Shannon entropy of the latest posterior
}

// Metrics aggregates inference quality across all live tracks. Used by
// the API and by offline replay comparisons.
type Metrics struct {
	ActiveTracks  int `json:"active_tracks"`
	TracksCreated int `json:"tracks_created"`
	TracksDropped int `json:"tracks_dropped"`

	// Aggregates over tracks that have produced at least one posterior.
	MeanEntropyBits   float64 `json:"mean_entropy_bits"`
	StdDevEntropyBits float64 `json:"stddev_entropy_bits"`
	MeanConfidence    float64 `json:"mean_confidence"`

	// DegenerateRatio is degenerate ticks over total ticks across all
	// live tracks. [0, 1]
	DegenerateRatio float64 `json:"degenerate_ratio"`

	PerTrack []TrackMetrics `json:"per_track,omitempty"`
}

// beliefEntropyBits returns the Shannon entropy of a belief vector in
// bits. Zero entries contribute nothing (lim p·log p = 0).
func beliefEntropyBits(belief []float64) float64 {
	var h float64
	for _, p := range belief {
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h
}

// dominantGoal returns the index and mass of the largest belief entry.
func dominantGoal(belief []float64) (int, float64) {
	best, mass := -1, 0.0
	for g, p := range belief {
		if best == -1 || p > mass {
			best, mass = g, p
		}
	}
	return best, mass
}

// Metrics computes aggregate inference metrics over the live tracks.
func (s *Scheduler) Metrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := Metrics{
		ActiveTracks:  len(s.tracks),
		TracksCreated: s.tracksCreated,
		TracksDropped: s.tracksDropped,
	}

	var entropies, confidences []float64
	var totalTicks, degenerateTicks int

	for _, tr := range s.tracks {
		tm := TrackMetrics{
			AgentID:         tr.AgentID,
			TickCount:       tr.TickCount,
			DegenerateTicks: tr.DegenerateTicks,
			DominantGoal:    -1,
		}
		totalTicks += tr.TickCount
		degenerateTicks += tr.DegenerateTicks

		if latest := tr.LatestBelief(); latest != nil {
			tm.DominantGoal, tm.Confidence = dominantGoal(latest)
			tm.EntropyBits = beliefEntropyBits(latest)
			entropies = append(entropies, tm.EntropyBits)
			confidences = append(confidences, tm.Confidence)
		}
		m.PerTrack = append(m.PerTrack, tm)
	}
	sort.Slice(m.PerTrack, func(i, j int) bool { return m.PerTrack[i].AgentID < m.PerTrack[j].AgentID })

	if len(entropies) > 0 {
		m.MeanEntropyBits = stat.Mean(entropies, nil)
		m.MeanConfidence = stat.Mean(confidences, nil)
		if len(entropies) > 1 {
			m.StdDevEntropyBits = stat.StdDev(entropies, nil)
		}
	}
	if totalTicks > 0 {
		m.DegenerateRatio = float64(degenerateTicks) / float64(totalTicks)
	}
	return m
}
