package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/intent.report/internal/geom"
)

func TestPreferredSpeedPredictor(t *testing.T) {
	t.Parallel()

	p := &PreferredSpeedPredictor{PreferredSpeed: 0.5, ArrivalRadius: 0.1}
	agents := []AgentState{
		{ID: "a", Position: geom.Vec2{X: 0, Y: 0}},
		{ID: "b", Position: geom.Vec2{X: 2, Y: 0}},
	}
	goals := []geom.Vec2{{X: 1, Y: 0}, {X: 0, Y: 3}}

	got, err := p.PredictVelocities(agents, goals)
	require.NoError(t, err)
	require.Len(t, got, 4, "agent-major matrix: 2 agents x 2 goals")

	// Agent a toward goal 0: straight +X at preferred speed.
	assert.InDelta(t, 0.5, got[0].X, 1e-12)
	assert.InDelta(t, 0.0, got[0].Y, 1e-12)
	// Agent a toward goal 1: straight +Y.
	assert.InDelta(t, 0.0, got[1].X, 1e-12)
	assert.InDelta(t, 0.5, got[1].Y, 1e-12)
	// Agent b toward goal 0: straight -X.
	assert.InDelta(t, -0.5, got[2].X, 1e-12)

	// Every prediction is commanded at the preferred speed.
	for i, v := range got {
		assert.InDelta(t, 0.5, v.Norm(), 1e-12, "prediction %d", i)
	}
}

func TestPreferredSpeedPredictorArrival(t *testing.T) {
	t.Parallel()

	p := &PreferredSpeedPredictor{PreferredSpeed: 0.5, ArrivalRadius: 0.2}
	agents := []AgentState{{ID: "a", Position: geom.Vec2{X: 0.9, Y: 0}}}
	goals := []geom.Vec2{{X: 1, Y: 0}}

	got, err := p.PredictVelocities(agents, goals)
	require.NoError(t, err)
	assert.Equal(t, geom.Vec2{}, got[0], "inside the arrival radius the commanded velocity is zero")
}

func TestPreferredSpeedPredictorValidation(t *testing.T) {
	t.Parallel()

	p := &PreferredSpeedPredictor{}
	_, err := p.PredictVelocities(nil, nil)
	assert.Error(t, err)
}

func TestWorldSnapshotConsistency(t *testing.T) {
	t.Parallel()

	goals := []geom.Vec2{{X: 5, Y: 0}, {X: 0, Y: 5}}
	w, err := NewWorld(WorldConfig{
		Goals:          goals,
		PreferredSpeed: 0.5,
		VelocityNoise:  0, // deterministic
		StepSeconds:    0.1,
		Seed:           1,
		StartUnixNanos: 1000,
	}, &PreferredSpeedPredictor{PreferredSpeed: 0.5, ArrivalRadius: 0.1})
	require.NoError(t, err)

	require.NoError(t, w.AddAgent("r1", geom.Vec2{X: 0, Y: 0}, 0))
	require.NoError(t, w.AddAgent("r2", geom.Vec2{X: 1, Y: 1}, 1))

	in, err := w.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, []string{"r1", "r2"}, in.AgentIDs)
	assert.Equal(t, 2, in.HypothesisCount)
	require.Len(t, in.Predicted, 4)
	assert.Greater(t, in.UnixNanos, int64(1000))

	// Without noise the observed velocity equals the prediction for the
	// agent's true goal; a snapshot is internally consistent.
	assert.InDelta(t, in.Predicted[0].X, in.Observed["r1"].X, 1e-9)
	assert.InDelta(t, in.Predicted[0].Y, in.Observed["r1"].Y, 1e-9)
	assert.InDelta(t, in.Predicted[3].X, in.Observed["r2"].X, 1e-9)
	assert.InDelta(t, in.Predicted[3].Y, in.Observed["r2"].Y, 1e-9)
}

func TestWorldRemoveAgent(t *testing.T) {
	t.Parallel()

	w, err := NewWorld(WorldConfig{
		Goals:          []geom.Vec2{{X: 5, Y: 0}},
		PreferredSpeed: 0.5,
		StepSeconds:    0.1,
	}, &PreferredSpeedPredictor{PreferredSpeed: 0.5})
	require.NoError(t, err)

	require.NoError(t, w.AddAgent("r1", geom.Vec2{}, 0))
	require.NoError(t, w.AddAgent("r2", geom.Vec2{X: 1}, 0))
	w.RemoveAgent("r1")

	in, err := w.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, in.AgentIDs)
	assert.NotContains(t, in.Observed, "r1")
}

func TestWorldValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWorld(WorldConfig{PreferredSpeed: 0.5, StepSeconds: 0.1}, nil)
	assert.Error(t, err, "no goals")

	w, err := NewWorld(WorldConfig{
		Goals:          []geom.Vec2{{X: 1}},
		PreferredSpeed: 0.5,
		StepSeconds:    0.1,
	}, &PreferredSpeedPredictor{PreferredSpeed: 0.5})
	require.NoError(t, err)
	assert.Error(t, w.AddAgent("r1", geom.Vec2{}, 5), "goal index out of range")
}
