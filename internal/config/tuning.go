package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the runtime-tunable parameters of the goal-inference
// stack. The schema matches the /api/params endpoint so the same JSON can
// be used for both startup configuration and runtime updates. All fields
// are pointers: omitted fields fall back to the defaults baked into the
// Get* accessors, so partial configs are safe.
type TuningConfig struct {
	// Likelihood model params. Sigma per axis is derived, not stored:
	// sigma = (max_acceleration / 2) * control_period.
	MaxAcceleration *float64 `json:"max_acceleration,omitempty"` // m/s²
	ControlPeriod   *float64 `json:"control_period,omitempty"`   // seconds per inference tick

	// Prior clamp params
	PosteriorFloor  *float64 `json:"posterior_floor,omitempty"`  // stored-prior floor for near-zero posteriors
	FloorActivation *float64 `json:"floor_activation,omitempty"` // posterior below this gets floored

	// Observation smoothing (1 = use observed velocity as-is)
	VelocityAverageWindow *int `json:"velocity_average_window,omitempty"`

	// Per-track posterior history retained for diagnostics/API
	BeliefHistoryLength *int `json:"belief_history_length,omitempty"`

	// Scheduler params
	TickInterval *string `json:"tick_interval,omitempty"` // duration string like "100ms"

	// Manual prior reset override (normally driven via POST /api/reset)
	ResetPriors *bool `json:"reset_priors,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size. Fields omitted
// from the JSON retain their accessor defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching the current directory and common parent
// directories. Panics if the file cannot be loaded; intended for tests
// and binaries that have already validated config availability.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/storage/sqlite/
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable. Zero and
// negative kinematic limits would produce a zero or negative sigma and
// a degenerate likelihood, so they are rejected here rather than deep
// inside the filter.
func (c *TuningConfig) Validate() error {
	if c.MaxAcceleration != nil && *c.MaxAcceleration <= 0 {
		return fmt.Errorf("max_acceleration must be positive, got %f", *c.MaxAcceleration)
	}
	if c.ControlPeriod != nil && *c.ControlPeriod <= 0 {
		return fmt.Errorf("control_period must be positive, got %f", *c.ControlPeriod)
	}
	if c.PosteriorFloor != nil {
		if *c.PosteriorFloor <= 0 || *c.PosteriorFloor >= 1 {
			return fmt.Errorf("posterior_floor must be in (0, 1), got %f", *c.PosteriorFloor)
		}
	}
	if c.FloorActivation != nil {
		if *c.FloorActivation <= 0 || *c.FloorActivation >= 1 {
			return fmt.Errorf("floor_activation must be in (0, 1), got %f", *c.FloorActivation)
		}
	}
	if c.PosteriorFloor != nil && c.FloorActivation != nil && *c.PosteriorFloor > *c.FloorActivation {
		return fmt.Errorf("posterior_floor (%f) must not exceed floor_activation (%f)",
			*c.PosteriorFloor, *c.FloorActivation)
	}
	if c.VelocityAverageWindow != nil && *c.VelocityAverageWindow < 1 {
		return fmt.Errorf("velocity_average_window must be >= 1, got %d", *c.VelocityAverageWindow)
	}
	if c.BeliefHistoryLength != nil && *c.BeliefHistoryLength < 0 {
		return fmt.Errorf("belief_history_length must be non-negative, got %d", *c.BeliefHistoryLength)
	}
	if c.TickInterval != nil && *c.TickInterval != "" {
		if _, err := time.ParseDuration(*c.TickInterval); err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
	}
	return nil
}

// GetMaxAcceleration returns the max_acceleration value or the default.
func (c *TuningConfig) GetMaxAcceleration() float64 {
	if c.MaxAcceleration == nil {
		return 1.2 // m/s²; youBot platform limit
	}
	return *c.MaxAcceleration
}

// GetControlPeriod returns the control_period value or the default.
func (c *TuningConfig) GetControlPeriod() float64 {
	if c.ControlPeriod == nil {
		return 0.1 // 10 Hz control loop
	}
	return *c.ControlPeriod
}

// GetPosteriorFloor returns the posterior_floor value or the default.
func (c *TuningConfig) GetPosteriorFloor() float64 {
	if c.PosteriorFloor == nil {
		return 0.005
	}
	return *c.PosteriorFloor
}

// GetFloorActivation returns the floor_activation value or the default.
func (c *TuningConfig) GetFloorActivation() float64 {
	if c.FloorActivation == nil {
		return 0.01
	}
	return *c.FloorActivation
}

// GetVelocityAverageWindow returns the velocity_average_window value or
// the default. The default of 1 means observed velocities feed the
// filter unsmoothed.
func (c *TuningConfig) GetVelocityAverageWindow() int {
	if c.VelocityAverageWindow == nil {
		return 1
	}
	return *c.VelocityAverageWindow
}

// GetBeliefHistoryLength returns the belief_history_length value or the default.
func (c *TuningConfig) GetBeliefHistoryLength() int {
	if c.BeliefHistoryLength == nil {
		return 10
	}
	return *c.BeliefHistoryLength
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *TuningConfig) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return 100 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// GetResetPriors returns the reset_priors value or the default.
func (c *TuningConfig) GetResetPriors() bool {
	if c.ResetPriors == nil {
		return false
	}
	return *c.ResetPriors
}
