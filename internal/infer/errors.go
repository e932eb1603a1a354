package infer

import "errors"

// Error taxonomy for the inference core.
//
// Configuration errors (ErrNoHypotheses, invalid FilterConfig) are fatal
// to the call that raised them and surfaced immediately. Input-validation
// errors (ErrNonFinite, ErrBadSlice, ErrMissingObservation) are reported
// per agent: the scheduler skips that agent for the tick and keeps
// processing the rest. A degenerate likelihood (all hypotheses collapse
// to numerically zero) is not an error at all; the filter falls back to
// a uniform belief and leaves the stored prior untouched.
var (
	// ErrNoHypotheses indicates an empty goal hypothesis set (N == 0).
	ErrNoHypotheses = errors.New("hypothesis set is empty")

	// ErrNonFinite indicates a NaN or infinite velocity component in the
	// tick input. Rejected before any likelihood math: a single non-finite
	// likelihood would corrupt the normaliser and defeat the
	// degenerate-likelihood guard silently.
	ErrNonFinite = errors.New("non-finite velocity component")

	// ErrBadSlice indicates the predicted-velocity matrix does not contain
	// a full N-length slice for the agent.
	ErrBadSlice = errors.New("predicted velocity slice out of range")

	// ErrMissingObservation indicates no observed velocity was supplied
	// for a tracked agent this tick.
	ErrMissingObservation = errors.New("no observed velocity for agent")
)
