package sqlite

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/intent.report/internal/infer"
)

func openTestStore(t *testing.T) *BeliefStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "beliefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRun(n int) Run {
	return Run{
		RunID:            uuid.NewString(),
		StartedUnixNanos: 1_700_000_000_000_000_000,
		HypothesisCount:  n,
		ParamsJSON:       json.RawMessage(`{"max_acceleration":1.2}`),
		Notes:            "unit test run",
	}
}

func TestRunRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	run := testRun(3)
	require.NoError(t, store.CreateRun(run))

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, run.StartedUnixNanos, got.StartedUnixNanos)
	assert.Equal(t, 3, got.HypothesisCount)
	assert.JSONEq(t, string(run.ParamsJSON), string(got.ParamsJSON))
	assert.Equal(t, "unit test run", got.Notes)
}

func TestGetRunMissing(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	_, err := store.GetRun("no-such-run")
	assert.Error(t, err)
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	older := testRun(2)
	older.StartedUnixNanos = 100
	newer := testRun(2)
	newer.StartedUnixNanos = 200
	require.NoError(t, store.CreateRun(older))
	require.NoError(t, store.CreateRun(newer))

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.RunID, runs[0].RunID)
	assert.Equal(t, older.RunID, runs[1].RunID)
}

func TestRecordTickAndSeries(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	run := testRun(2)
	require.NoError(t, store.CreateRun(run))

	ticks := []*infer.TickResult{
		{
			UnixNanos:       1000,
			HypothesisCount: 2,
			Beliefs: map[string][]float64{
				"a": {0.9, 0.1},
				"b": {0.4, 0.6},
			},
		},
		{
			UnixNanos:       2000,
			HypothesisCount: 2,
			Beliefs:         map[string][]float64{"a": {0.5, 0.5}},
			Degenerate:      map[string]bool{"a": true},
		},
	}
	for _, res := range ticks {
		require.NoError(t, store.RecordTick(run.RunID, res))
	}

	agents, err := store.ListAgents(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, agents)

	series, err := store.AgentSeries(run.RunID, "a")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, int64(1000), series[0].UnixNanos)
	assert.Equal(t, []float64{0.9, 0.1}, series[0].Belief)
	assert.False(t, series[0].Degenerate)
	assert.Equal(t, int64(2000), series[1].UnixNanos)
	assert.True(t, series[1].Degenerate)

	series, err = store.AgentSeries(run.RunID, "b")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, []float64{0.4, 0.6}, series[0].Belief)
}

func TestRecordTickEmptyIsNoop(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	run := testRun(2)
	require.NoError(t, store.CreateRun(run))
	require.NoError(t, store.RecordTick(run.RunID, &infer.TickResult{UnixNanos: 1}))

	agents, err := store.ListAgents(run.RunID)
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestRunRecorderImplementsSink(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	run := testRun(2)
	require.NoError(t, store.CreateRun(run))

	rec := NewRunRecorder(store, run.RunID)
	require.NoError(t, rec.RecordTick(&infer.TickResult{
		UnixNanos:       500,
		HypothesisCount: 2,
		Beliefs:         map[string][]float64{"a": {0.7, 0.3}},
	}))

	series, err := store.AgentSeries(run.RunID, "a")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, []float64{0.7, 0.3}, series[0].Belief)
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "beliefs.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateRun(testRun(2)))
	require.NoError(t, store.Close())

	// Reopening applies no-change migrations and keeps existing data.
	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
