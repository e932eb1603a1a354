package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTuningConfig(t *testing.T) {
	t.Parallel()

	t.Run("loads full config", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{
			"max_acceleration": 2.0,
			"control_period": 0.05,
			"posterior_floor": 0.002,
			"floor_activation": 0.02,
			"velocity_average_window": 5,
			"belief_history_length": 20,
			"tick_interval": "50ms",
			"reset_priors": true
		}`)

		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 2.0, cfg.GetMaxAcceleration())
		assert.Equal(t, 0.05, cfg.GetControlPeriod())
		assert.Equal(t, 0.002, cfg.GetPosteriorFloor())
		assert.Equal(t, 0.02, cfg.GetFloorActivation())
		assert.Equal(t, 5, cfg.GetVelocityAverageWindow())
		assert.Equal(t, 20, cfg.GetBeliefHistoryLength())
		assert.Equal(t, 50*time.Millisecond, cfg.GetTickInterval())
		assert.True(t, cfg.GetResetPriors())
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{"max_acceleration": 3.0}`)

		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 3.0, cfg.GetMaxAcceleration())
		assert.Equal(t, 0.1, cfg.GetControlPeriod())
		assert.Equal(t, 0.005, cfg.GetPosteriorFloor())
		assert.Equal(t, 0.01, cfg.GetFloorActivation())
		assert.Equal(t, 1, cfg.GetVelocityAverageWindow())
		assert.Equal(t, 10, cfg.GetBeliefHistoryLength())
		assert.Equal(t, 100*time.Millisecond, cfg.GetTickInterval())
		assert.False(t, cfg.GetResetPriors())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})

	t.Run("rejects missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "missing.json"))
		assert.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{"max_acceleration": `)
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	f := func(v float64) *float64 { return &v }
	i := func(v int) *int { return &v }
	s := func(v string) *string { return &v }

	cases := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{"empty is valid", TuningConfig{}, false},
		{"zero max acceleration", TuningConfig{MaxAcceleration: f(0)}, true},
		{"negative control period", TuningConfig{ControlPeriod: f(-0.1)}, true},
		{"floor at zero", TuningConfig{PosteriorFloor: f(0)}, true},
		{"floor at one", TuningConfig{PosteriorFloor: f(1)}, true},
		{"activation above one", TuningConfig{FloorActivation: f(1.5)}, true},
		{"floor above activation", TuningConfig{PosteriorFloor: f(0.05), FloorActivation: f(0.01)}, true},
		{"floor equals activation", TuningConfig{PosteriorFloor: f(0.01), FloorActivation: f(0.01)}, false},
		{"zero velocity window", TuningConfig{VelocityAverageWindow: i(0)}, true},
		{"negative history length", TuningConfig{BeliefHistoryLength: i(-1)}, true},
		{"bad tick interval", TuningConfig{TickInterval: s("fast")}, true},
		{"good tick interval", TuningConfig{TickInterval: s("250ms")}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := MustLoadDefaultConfig()
	assert.Equal(t, 1.2, cfg.GetMaxAcceleration())
	assert.Equal(t, 0.1, cfg.GetControlPeriod())
	assert.Equal(t, 0.005, cfg.GetPosteriorFloor())
	assert.Equal(t, 0.01, cfg.GetFloorActivation())
}
