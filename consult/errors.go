package consult

import (
	"errors"

	"github.com/hupe1980/tribunal/cost"
)

// Sentinel errors surfaced by Consult. Check with errors.Is; every fatal
// condition is also recorded as a transition to the Aborted phase with a
// human-readable reason.
var (
	// ErrCancelled marks a consultation the user chose not to proceed
	// with at the admission gate. It is the same sentinel the cost gate
	// returns, re-exported so callers need not import cost to classify
	// the outcome. Not a failure: callers should present it as a normal
	// cancellation, never as a crash.
	ErrCancelled = cost.ErrConsentDenied

	// ErrAllAgentsFailed is returned when a fan-out round ends with zero
	// surviving artifacts.
	ErrAllAgentsFailed = errors.New("all agents failed")

	// ErrBudgetExceeded is returned by the in-flight cost breaker when
	// actual spend exceeds the pre-flight estimate beyond tolerance.
	ErrBudgetExceeded = errors.New("actual cost exceeded estimate beyond tolerance")

	// ErrSynthesisRequired is returned when a verdict is requested
	// without a synthesis artifact. Unlike cross-examination, the verdict
	// never degrades.
	ErrSynthesisRequired = errors.New("verdict requires a synthesis artifact")
)
