package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/intent.report/internal/geom"
	"github.com/banshee-data/intent.report/internal/infer"
)

// fakeSource serves scripted snapshots, repeating the last one.
type fakeSource struct {
	mu    sync.Mutex
	calls int
	errAt int // 1-based call index that fails, 0 = never
}

func (f *fakeSource) Snapshot() (infer.TickInput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.errAt != 0 && f.calls == f.errAt {
		return infer.TickInput{}, errors.New("feed dropped")
	}
	return infer.TickInput{
		UnixNanos:       int64(f.calls) * 1000,
		HypothesisCount: 2,
		AgentIDs:        []string{"a"},
		Observed:        map[string]geom.Vec2{"a": {X: 1, Y: 0}},
		Predicted:       []geom.Vec2{{X: 1, Y: 0}, {X: -1, Y: 0}},
	}, nil
}

type fakeSink struct {
	mu    sync.Mutex
	ticks []*infer.TickResult
	err   error
}

func (f *fakeSink) RecordTick(res *infer.TickResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ticks = append(f.ticks, res)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ticks)
}

func newTestRunner(t *testing.T, source Source, sink Sink) *Runner {
	t.Helper()
	f, err := infer.NewFilter(infer.FilterConfig{
		MaxAcceleration: 1.2,
		ControlPeriod:   0.1,
		PosteriorFloor:  0.005,
		FloorActivation: 0.01,
	})
	require.NoError(t, err)
	sched := infer.NewScheduler(f, infer.SchedulerConfig{BeliefHistoryLength: 10, VelocityAverageWindow: 1})
	r, err := New(sched, source, sink, time.Millisecond)
	require.NoError(t, err)
	return r
}

func TestRunnerTicksAndPersists(t *testing.T) {
	t.Parallel()

	source := &fakeSource{}
	sink := &fakeSink{}
	r := newTestRunner(t, source, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.TickCount() >= 3 },
		time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	latest := r.Latest()
	require.NotNil(t, latest)
	assert.Greater(t, latest.Beliefs["a"][0], 0.98)
	assert.GreaterOrEqual(t, sink.count(), 3)
	assert.NoError(t, r.LastErr())
}

func TestRunnerSurvivesSnapshotFailure(t *testing.T) {
	t.Parallel()

	source := &fakeSource{errAt: 1}
	r := newTestRunner(t, source, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	// The first cycle fails; later cycles keep ticking.
	require.Eventually(t, func() bool { return r.TickCount() >= 2 },
		time.Second, time.Millisecond)
}

func TestRunnerSurvivesSinkFailure(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{err: errors.New("disk full")}
	r := newTestRunner(t, &fakeSource{}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.TickCount() >= 2 },
		time.Second, time.Millisecond)
	assert.Error(t, r.LastErr())
}

func TestRunnerValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, &fakeSource{}, nil, time.Millisecond)
	assert.Error(t, err)

	_, err = New(infer.NewScheduler(nil, infer.SchedulerConfig{}), &fakeSource{}, nil, 0)
	assert.Error(t, err)
}
