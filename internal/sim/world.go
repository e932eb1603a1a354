package sim

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/banshee-data/intent.report/internal/geom"
	"github.com/banshee-data/intent.report/internal/infer"
)

// World is a minimal kinematic playground used by the demo binary: each
// agent walks toward its assigned true goal at a preferred speed with
// additive Gaussian velocity noise. It doubles as the snapshot source
// for the inference runner, so the demo exercises the whole pipeline
// without robot hardware.
type World struct {
	mu sync.Mutex

	goals     []geom.Vec2
	agents    []AgentState
	trueGoals map[string]int // agent -> index of the goal it actually pursues

	predictor Predictor
	speed     float64
	noise     float64 // std dev of the additive velocity noise, m/s
	dt        float64 // seconds advanced per snapshot
	clock     int64   // unix nanos, advanced synthetically
	rng       *rand.Rand
}

// WorldConfig configures a demo world.
type WorldConfig struct {
	Goals          []geom.Vec2
	PreferredSpeed float64
	VelocityNoise  float64
	StepSeconds    float64
	Seed           int64
	StartUnixNanos int64
}

// NewWorld builds a demo world with the given goal set.
func NewWorld(cfg WorldConfig, predictor Predictor) (*World, error) {
	if len(cfg.Goals) == 0 {
		return nil, fmt.Errorf("demo world needs at least one goal")
	}
	if cfg.PreferredSpeed <= 0 {
		return nil, fmt.Errorf("preferred speed must be positive, got %g", cfg.PreferredSpeed)
	}
	if cfg.StepSeconds <= 0 {
		return nil, fmt.Errorf("step seconds must be positive, got %g", cfg.StepSeconds)
	}
	return &World{
		goals:     append([]geom.Vec2(nil), cfg.Goals...),
		trueGoals: make(map[string]int),
		predictor: predictor,
		speed:     cfg.PreferredSpeed,
		noise:     cfg.VelocityNoise,
		dt:        cfg.StepSeconds,
		clock:     cfg.StartUnixNanos,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// AddAgent places an agent at a position, pursuing the goal at trueGoal.
func (w *World) AddAgent(id string, position geom.Vec2, trueGoal int) error {
	if trueGoal < 0 || trueGoal >= len(w.goals) {
		return fmt.Errorf("true goal index %d out of range (have %d goals)", trueGoal, len(w.goals))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.agents = append(w.agents, AgentState{ID: id, Position: position})
	w.trueGoals[id] = trueGoal
	return nil
}

// RemoveAgent drops an agent from the environment feed.
func (w *World) RemoveAgent(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, a := range w.agents {
		if a.ID == id {
			w.agents = append(w.agents[:i], w.agents[i+1:]...)
			break
		}
	}
	delete(w.trueGoals, id)
}

// step advances every agent one control period toward its true goal with
// velocity noise. Callers hold w.mu.
func (w *World) step() {
	for i := range w.agents {
		a := &w.agents[i]
		toGoal := w.goals[w.trueGoals[a.ID]].Sub(a.Position)
		v := geom.Vec2{}
		if toGoal.Norm() > 1e-3 {
			v = toGoal.Unit().Scale(w.speed)
		}
		v.X += w.rng.NormFloat64() * w.noise
		v.Y += w.rng.NormFloat64() * w.noise
		a.Velocity = v
		a.Position = a.Position.Add(v.Scale(w.dt))
	}
	w.clock += int64(w.dt * 1e9)
}

// Snapshot advances the world one control period and returns one
// consistent TickInput: the agent list, observed velocities, and the
// predicted matrix all come from the same instant. It implements the
// runner's Source.
func (w *World) Snapshot() (infer.TickInput, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.step()

	agents := append([]AgentState(nil), w.agents...)
	predicted, err := w.predictor.PredictVelocities(agents, w.goals)
	if err != nil {
		return infer.TickInput{}, fmt.Errorf("predict velocities: %w", err)
	}

	in := infer.TickInput{
		UnixNanos:       w.clock,
		HypothesisCount: len(w.goals),
		AgentIDs:        make([]string, len(agents)),
		Observed:        make(map[string]geom.Vec2, len(agents)),
		Predicted:       predicted,
	}
	for i, a := range agents {
		in.AgentIDs[i] = a.ID
		in.Observed[a.ID] = a.Velocity
	}
	return in, nil
}
