package cost

import "errors"

// Decision is the outcome of an interactive consent prompt.
type Decision string

// Consent decisions. DecisionAlways approves this consultation and signals
// the caller to stop prompting for future ones; persisting that preference
// is the caller's concern.
const (
	DecisionApproved Decision = "approved"
	DecisionDenied   Decision = "denied"
	DecisionAlways   Decision = "always"
)

// ErrConsentDenied marks a consultation cancelled by the user at the
// admission gate. It is an expected cancellation path, distinguishable from
// failures via errors.Is.
var ErrConsentDenied = errors.New("consultation cancelled by user")

// Consent is the interactive decision collaborator, injected so the engine
// has no interactive-I/O dependency of its own.
type Consent func(est Estimate, agentCount, maxRounds int) (Decision, error)

// AlwaysApprove is a Consent that approves without prompting. Useful for
// tests and --yes style flags.
func AlwaysApprove(Estimate, int, int) (Decision, error) { return DecisionApproved, nil }

// GateOptions configures a Gate.
type GateOptions struct {
	// Notify is invoked when an estimate is auto-approved under the
	// threshold. Side-effect only; defaults to a no-op.
	Notify func(est Estimate)
}

// Gate is the admission-control policy: auto-approve at or under the
// threshold, otherwise request interactive consent.
type Gate struct {
	threshold float64
	consent   Consent
	notify    func(est Estimate)
}

// NewGate constructs a Gate with the given auto-approve threshold (USD) and
// consent collaborator.
func NewGate(thresholdUSD float64, consent Consent, optFns ...func(o *GateOptions)) *Gate {
	opts := GateOptions{Notify: func(Estimate) {}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gate{threshold: thresholdUSD, consent: consent, notify: opts.Notify}
}

// ShouldPrompt reports whether the estimate requires interactive consent.
// The boundary is strict: an estimate exactly at the threshold does not prompt.
func (g *Gate) ShouldPrompt(est Estimate) bool {
	return est.CostUSD > g.threshold
}

// Authorize applies the admission policy. Under the threshold it notifies
// and approves; over it, it defers to the consent collaborator. A denied
// decision is returned as ErrConsentDenied.
func (g *Gate) Authorize(est Estimate, agentCount, maxRounds int) (Decision, error) {
	if !g.ShouldPrompt(est) {
		g.notify(est)
		return DecisionApproved, nil
	}
	if g.consent == nil {
		return DecisionDenied, ErrConsentDenied
	}
	decision, err := g.consent(est, agentCount, maxRounds)
	if err != nil {
		return DecisionDenied, err
	}
	if decision == DecisionDenied {
		return DecisionDenied, ErrConsentDenied
	}
	return decision, nil
}
