// Package sim defines the boundary to the velocity-prediction simulator
// and provides a reference predictor plus a small kinematic world for
// the demo binary and tests.
//
// The production predictor is the collision-avoidance simulator that
// answers "if this agent were pursuing goal g, what velocity would it
// command right now?"; that system stays external. This package only
// fixes the seam: one predicted velocity per (agent, goal) pair, in an
// agent-major flattened matrix.
package sim

import (
	"fmt"

	"github.com/banshee-data/intent.report/internal/geom"
)

// AgentState is one agent's pose and velocity as reported by the
// environment feed for the current cycle.
type AgentState struct {
	ID       string    `json:"id"`
	Position geom.Vec2 `json:"position"`
	Velocity geom.Vec2 `json:"velocity"`
}

// Predictor produces one predicted velocity per (agent, goal) pair.
// The returned matrix is agent-major: all goals for agents[0], then all
// goals for agents[1], and so on; len(agents) × len(goals) entries.
type Predictor interface {
	PredictVelocities(agents []AgentState, goals []geom.Vec2) ([]geom.Vec2, error)
}

// PreferredSpeedPredictor is the reference Predictor: an agent pursuing
// goal g is assumed to head straight for it at its preferred speed,
// ignoring other agents. Crude next to a collision-avoidance simulator,
// but exact in open space and sufficient for replay and testing.
type PreferredSpeedPredictor struct {
	PreferredSpeed float64 // m/s commanded toward the goal

	// ArrivalRadius is the distance at which an agent is considered to
	// have reached a goal and the predicted velocity drops to zero.
	ArrivalRadius float64
}

// PredictVelocities implements Predictor.
func (p *PreferredSpeedPredictor) PredictVelocities(agents []AgentState, goals []geom.Vec2) ([]geom.Vec2, error) {
	if p.PreferredSpeed <= 0 {
		return nil, fmt.Errorf("preferred speed must be positive, got %g", p.PreferredSpeed)
	}
	out := make([]geom.Vec2, 0, len(agents)*len(goals))
	for _, a := range agents {
		for _, g := range goals {
			toGoal := g.Sub(a.Position)
			if toGoal.Norm() <= p.ArrivalRadius {
				out = append(out, geom.Vec2{})
				continue
			}
			out = append(out, toGoal.Unit().Scale(p.PreferredSpeed))
		}
	}
	return out, nil
}
