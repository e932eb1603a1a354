// Package infer implements recursive multi-hypothesis goal inference:
// a per-agent Bayesian filter over candidate goals, updated each control
// cycle from the agent's observed velocity and one simulator-predicted
// velocity per goal hypothesis, plus the scheduler that drives one filter
// tick per tracked agent per cycle.
package infer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/intent.report/internal/config"
	"github.com/banshee-data/intent.report/internal/geom"
	"github.com/banshee-data/intent.report/internal/monitoring"
)

// FilterConfig holds the likelihood-model and prior-clamp parameters.
type FilterConfig struct {
	MaxAcceleration float64 // kinematic limit, m/s²
	ControlPeriod   float64 // seconds per inference tick

	// PosteriorFloor is the minimum stored-prior value. Under the
	// multiplicative Bayes update a hypothesis at exactly zero can never
	// recover (L·0 = 0 forever), so posteriors below FloorActivation are
	// stored as PosteriorFloor instead of their true near-zero value.
	// The returned belief is never floored; only the carried prior is.
	PosteriorFloor  float64
	FloorActivation float64
}

// FilterConfigFromTuning builds a FilterConfig from a loaded TuningConfig.
func FilterConfigFromTuning(cfg *config.TuningConfig) FilterConfig {
	return FilterConfig{
		MaxAcceleration: cfg.GetMaxAcceleration(),
		ControlPeriod:   cfg.GetControlPeriod(),
		PosteriorFloor:  cfg.GetPosteriorFloor(),
		FloorActivation: cfg.GetFloorActivation(),
	}
}

// Sigma returns the per-axis standard deviation of the Gaussian motion
// model: two standard deviations cover the maximum velocity change one
// control period of full acceleration can produce. Both axes share it.
func (c FilterConfig) Sigma() float64 {
	return c.MaxAcceleration / 2 * c.ControlPeriod
}

// Validate checks the configuration for values that would break the
// likelihood math.
func (c FilterConfig) Validate() error {
	if c.MaxAcceleration <= 0 {
		return fmt.Errorf("max acceleration must be positive, got %g", c.MaxAcceleration)
	}
	if c.ControlPeriod <= 0 {
		return fmt.Errorf("control period must be positive, got %g", c.ControlPeriod)
	}
	if c.PosteriorFloor <= 0 || c.PosteriorFloor >= 1 {
		return fmt.Errorf("posterior floor must be in (0, 1), got %g", c.PosteriorFloor)
	}
	if c.FloorActivation < c.PosteriorFloor || c.FloorActivation >= 1 {
		return fmt.Errorf("floor activation must be in [floor, 1), got %g", c.FloorActivation)
	}
	return nil
}

// Filter computes the recursive Bayes update over goal hypotheses for a
// single agent. A Filter is stateless across agents: all per-agent state
// lives in the Track passed to Update.
type Filter struct {
	cfg FilterConfig

	// Precomputed Gaussian terms: sigma2 = σ², normConst = 1/(2πσ²).
	sigma2    float64
	normConst float64
}

// NewFilter validates cfg and returns a Filter with precomputed Gaussian
// constants.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("filter config: %w", err)
	}
	sigma := cfg.Sigma()
	sigma2 := sigma * sigma
	return &Filter{
		cfg:       cfg,
		sigma2:    sigma2,
		normConst: 1 / (2 * math.Pi * sigma2),
	}, nil
}

// Config returns the filter's configuration.
func (f *Filter) Config() FilterConfig {
	return f.cfg
}

// UpdateResult is the outcome of one filter tick for one agent.
type UpdateResult struct {
	// Belief is the normalized posterior over hypotheses. Always sums to 1
	// and is never floored; the anti-collapse floor applies only to the
	// prior stored on the track for the next tick.
	Belief []float64

	// Degenerate is true when every hypothesis likelihood underflowed to
	// zero and the uniform fallback was returned. The stored prior is left
	// at its previous value in that case so one bad tick cannot destroy
	// accumulated belief.
	Degenerate bool

	// Reset is true when the output is the exact uniform distribution
	// produced by an explicit reset request.
	Reset bool
}

// Update runs one recursive Bayes tick for the track.
//
// The likelihood of each hypothesis g is a zero-correlation bivariate
// Gaussian density centred on predicted[g], evaluated at observed, with
// the shared per-axis sigma from FilterConfig. The prior is the track's
// stored posterior from the previous tick, or uniform on first sighting.
// With reset set, the tick short-circuits to an exactly-uniform belief
// and re-seeds the stored prior; used when the hypothesis set changes
// and accumulated priors no longer mean anything.
func (f *Filter) Update(tr *Track, observed geom.Vec2, predicted []geom.Vec2, reset bool) (UpdateResult, error) {
	n := len(predicted)
	if n == 0 {
		return UpdateResult{}, ErrNoHypotheses
	}
	if !observed.IsFinite() {
		return UpdateResult{}, fmt.Errorf("observed velocity (%g, %g): %w", observed.X, observed.Y, ErrNonFinite)
	}
	for g, p := range predicted {
		if !p.IsFinite() {
			return UpdateResult{}, fmt.Errorf("predicted velocity for hypothesis %d (%g, %g): %w", g, p.X, p.Y, ErrNonFinite)
		}
	}

	uniform := 1 / float64(n)

	if reset {
		belief := make([]float64, n)
		prior := make([]float64, n)
		for g := range belief {
			belief[g] = uniform
			prior[g] = uniform
		}
		tr.Prior = prior
		tr.Initialized = true
		tr.TickCount++
		return UpdateResult{Belief: belief, Reset: true}, nil
	}

	// First sighting (or a stale prior of the wrong length, which only
	// happens if a hypothesis-count change slipped past the scheduler's
	// reset) feeds a uniform prior through the full Bayes update, so the
	// very first tick already discriminates between hypotheses.
	prior := tr.Prior
	if !tr.Initialized || len(prior) != n {
		prior = make([]float64, n)
		for g := range prior {
			prior[g] = uniform
		}
	}

	posterior := make([]float64, n)
	for g := range predicted {
		d2 := observed.DistSquared(predicted[g])
		lik := f.normConst * math.Exp(-d2/(2*f.sigma2))
		posterior[g] = lik * prior[g]
	}

	z := floats.Sum(posterior)
	if z == 0 {
		// Observed velocity numerically implausible under every
		// hypothesis. Fall back to uniform for this tick's output and keep
		// the stored prior as it was.
		tr.TickCount++
		tr.DegenerateTicks++
		monitoring.Debugf("infer: agent %s: all %d goal likelihoods underflowed, returning uniform belief", tr.AgentID, n)
		belief := make([]float64, n)
		for g := range belief {
			belief[g] = uniform
		}
		return UpdateResult{Belief: belief, Degenerate: true}, nil
	}

	floats.Scale(1/z, posterior)

	stored := make([]float64, n)
	for g, b := range posterior {
		if b > f.cfg.FloorActivation {
			stored[g] = b
		} else {
			stored[g] = f.cfg.PosteriorFloor
		}
	}
	tr.Prior = stored
	tr.Initialized = true
	tr.TickCount++

	return UpdateResult{Belief: posterior}, nil
}
