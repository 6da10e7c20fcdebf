package consult

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/tribunal/agent"
	"github.com/hupe1980/tribunal/cost"
	"github.com/hupe1980/tribunal/event"
	"github.com/hupe1980/tribunal/logging"
	"github.com/hupe1980/tribunal/model"
	"github.com/hupe1980/tribunal/phase"
)

// Config defines the numeric knobs for a consultation. It arrives resolved
// and already merged; the engine never reads configuration sources directly.
type Config struct {
	// AutoApproveUSD is the admission-gate threshold: estimates at or
	// under it proceed without an interactive prompt.
	AutoApproveUSD float64

	// MaxRounds caps the debate. Values of 2 or less stop after synthesis
	// (early termination); anything above runs the full four-round
	// protocol, since the phase table has no exit between cross-exam and
	// verdict. New normalizes the value to 2 or 4.
	MaxRounds int

	// MaxTokens and Temperature are forwarded to every model call.
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig provides conservative defaults for interactive use.
var DefaultConfig = Config{
	AutoApproveUSD: 0.50,
	MaxRounds:      4,
	MaxTokens:      4096,
	Temperature:    0.7,
}

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// Config contains the numeric policy knobs.
	Config Config
	// Roster is the fixed debater roster. Defaults to agent.DefaultRoster
	// with the judge model.
	Roster []agent.Agent
	// JudgeModel is the model id for the three ad hoc judges.
	JudgeModel string
	// Ledger records every provider call. Defaults to a fresh ledger.
	Ledger *cost.Ledger
	// Bus broadcasts lifecycle events. Defaults to a fresh bus.
	Bus *event.Bus
	// Consent is the interactive decision collaborator for estimates over
	// the threshold. Defaults to denying, so non-interactive callers must
	// either raise the threshold or supply one.
	Consent cost.Consent
	// Pricing overrides the estimator's price table.
	Pricing map[string]cost.Pricing
	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// Engine orchestrates consultations. One consultation runs at a time per
// instance; concurrent Consult calls are serialized.
type Engine struct {
	cfg        Config
	roster     []agent.Agent
	judgeModel string
	resolver   model.Resolver

	ledger    *cost.Ledger
	estimator *cost.Estimator
	gate      *cost.Gate
	bus       *event.Bus
	logger    logging.Logger
	// clog is the logger again when it is a *logging.ConsultLogger, used
	// for session/phase-scoped entries and round records. Nil otherwise.
	clog   *logging.ConsultLogger
	caller *caller

	mu sync.Mutex
}

// New constructs an Engine with optional overrides. The resolver maps model
// ids on agents to concrete model implementations and is the engine's only
// connection to provider SDKs.
func New(resolver model.Resolver, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:     DefaultConfig,
		JudgeModel: "claude-3-5-sonnet-20241022",
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Roster == nil {
		opts.Roster = agent.DefaultRoster(opts.JudgeModel)
	}
	if opts.Ledger == nil {
		if opts.Pricing != nil {
			opts.Ledger = cost.NewLedger(func(o *cost.LedgerOptions) { o.Pricing = opts.Pricing })
		} else {
			opts.Ledger = cost.NewLedger()
		}
	}
	if opts.Bus == nil {
		opts.Bus = event.NewBus()
	}
	if opts.Config.MaxRounds <= 2 {
		opts.Config.MaxRounds = 2
	} else {
		opts.Config.MaxRounds = 4
	}

	e := &Engine{
		cfg:        opts.Config,
		roster:     opts.Roster,
		judgeModel: opts.JudgeModel,
		resolver:   resolver,
		ledger:     opts.Ledger,
		estimator:  cost.NewEstimator(opts.Pricing),
		bus:        opts.Bus,
		logger:     opts.Logger,
	}
	e.clog, _ = opts.Logger.(*logging.ConsultLogger)
	e.caller = &caller{ledger: e.ledger, logger: e.logger, clog: e.clog}
	e.gate = cost.NewGate(opts.Config.AutoApproveUSD, opts.Consent, func(o *cost.GateOptions) {
		o.Notify = func(est cost.Estimate) {
			e.logger.Info("estimate auto-approved", "cost_usd", est.CostUSD)
		}
	})
	return e
}

// Bus returns the engine's event bus for subscribing to lifecycle events.
func (e *Engine) Bus() *event.Bus { return e.bus }

// Ledger returns the engine's cost ledger.
func (e *Engine) Ledger() *cost.Ledger { return e.ledger }

// publish emits a lifecycle event stamped with the session id.
func (e *Engine) publish(s *session, ev event.Event) {
	ev.SessionID = s.id
	if ev.Phase == "" {
		ev.Phase = string(s.machine.Current())
	}
	e.bus.Publish(ev)
}

// sessionLog returns the engine logger scoped to the session where the
// logger supports it.
func (e *Engine) sessionLog(s *session) logging.Logger {
	if e.clog != nil {
		return e.clog.WithSession(s.id)
	}
	return e.logger
}

// logRound records the join of a fan-out round.
func (e *Engine) logRound(s *session, round, agents, survived int, dur time.Duration) {
	if e.clog != nil {
		e.clog.WithSession(s.id).LogRound(round, agents, survived, dur)
		return
	}
	e.logger.Info("round joined", "round", round, "agents", agents, "survived", survived, "duration", dur)
}

// transition drives the phase machine and broadcasts the change. Edge
// violations indicate an engine bug and are returned as errors.
func (e *Engine) transition(s *session, to phase.Phase, reason string) error {
	if err := s.machine.Transition(to, reason); err != nil {
		return err
	}
	if e.clog != nil {
		e.clog.WithSession(s.id).WithPhase(string(to)).Debug("phase entered", "reason", reason)
	}
	e.publish(s, event.Event{Type: event.TypePhaseChanged, Phase: string(to), Round: s.machine.Round(), Message: reason})
	return nil
}

// abort moves the session to Aborted with a human-readable reason and
// returns the causing error for the caller.
func (e *Engine) abort(s *session, reason string, cause error) error {
	if err := e.transition(s, phase.Aborted, reason); err != nil {
		e.logger.Error("abort transition failed", "reason", reason, "error", err)
	}
	return cause
}

// Consult runs the full consultation protocol for a question with optional
// context. On any fatal condition the session transitions to Aborted and the
// causing error is returned; consent denial returns ErrCancelled, which is
// an expected outcome rather than a failure.
func (e *Engine) Consult(ctx context.Context, question, contextText string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	s := newSession(question, contextText, e.roster)
	log := e.sessionLog(s)
	log.Info("consultation started", "agents", len(s.roster), "max_rounds", e.cfg.MaxRounds)

	// Pre-flight: estimate and admission gate.
	if err := e.transition(s, phase.Estimating, ""); err != nil {
		return nil, err
	}
	models := make([]string, len(s.roster))
	for i, ag := range s.roster {
		models[i] = ag.Model
	}
	s.estimate = e.estimator.Estimate(question, contextText, models, e.cfg.MaxRounds)
	e.publish(s, event.Event{Type: event.TypeCostEstimated, CostUSD: s.estimate.CostUSD})

	if err := e.transition(s, phase.AwaitingConsent, ""); err != nil {
		return nil, err
	}
	decision, err := e.gate.Authorize(s.estimate, len(s.roster), e.cfg.MaxRounds)
	if err != nil {
		if errors.Is(err, cost.ErrConsentDenied) {
			log.Info("consultation cancelled by user")
			return nil, e.abort(s, "cancelled by user", err)
		}
		return nil, e.abort(s, fmt.Sprintf("consent failed: %v", err), err)
	}
	e.publish(s, event.Event{Type: event.TypeConsentResolved, Message: string(decision)})

	s.baselineUSD = e.ledger.Summary().CostUSD

	// Round 1: independent positions.
	if err := e.transition(s, phase.Independent, ""); err != nil {
		return nil, err
	}
	if err := e.runIndependent(ctx, s); err != nil {
		return nil, e.abort(s, "all agents failed", err)
	}
	s.completedRounds = 1
	e.publish(s, event.Event{Type: event.TypeRoundCompleted, Round: 1})
	if err := e.checkBudget(s); err != nil {
		return nil, e.abort(s, "cost overrun", err)
	}

	// Round 2: synthesis.
	if err := e.transition(s, phase.Synthesis, ""); err != nil {
		return nil, err
	}
	if err := e.runSynthesis(ctx, s); err != nil {
		return nil, e.abort(s, err.Error(), err)
	}
	s.completedRounds = 2
	e.publish(s, event.Event{Type: event.TypeRoundCompleted, Round: 2})
	if err := e.checkBudget(s); err != nil {
		return nil, e.abort(s, "cost overrun", err)
	}

	if e.cfg.MaxRounds <= 2 {
		if err := e.transition(s, phase.Complete, "early termination"); err != nil {
			return nil, err
		}
		result := e.assemble(s)
		e.publish(s, event.Event{Type: event.TypeSessionCompleted, CostUSD: result.Cost.ActualUSD})
		log.Info("consultation completed", "rounds", result.CompletedRounds, "cost_usd", result.Cost.ActualUSD)
		return result, nil
	}

	// Round 3: cross-examination (degrades to a skip without synthesis).
	if err := e.transition(s, phase.CrossExam, ""); err != nil {
		return nil, err
	}
	if err := e.runCrossExam(ctx, s); err != nil {
		return nil, e.abort(s, err.Error(), err)
	}
	if s.crossExam != nil {
		s.completedRounds = 3
	}
	e.publish(s, event.Event{Type: event.TypeRoundCompleted, Round: 3})
	if err := e.checkBudget(s); err != nil {
		return nil, e.abort(s, "cost overrun", err)
	}

	// Round 4: verdict. Requires synthesis unconditionally.
	if err := e.transition(s, phase.Verdict, ""); err != nil {
		return nil, err
	}
	if err := e.runVerdict(ctx, s); err != nil {
		return nil, e.abort(s, err.Error(), err)
	}
	s.completedRounds = 4
	e.publish(s, event.Event{Type: event.TypeRoundCompleted, Round: 4})
	if err := e.checkBudget(s); err != nil {
		return nil, e.abort(s, "cost overrun", err)
	}

	if err := e.transition(s, phase.Complete, ""); err != nil {
		return nil, err
	}
	result := e.assemble(s)
	e.publish(s, event.Event{Type: event.TypeSessionCompleted, CostUSD: result.Cost.ActualUSD})
	log.Info("consultation completed", "rounds", result.CompletedRounds, "cost_usd", result.Cost.ActualUSD)
	return result, nil
}

// assemble builds the final Result from session state.
func (e *Engine) assemble(s *session) *Result {
	summary := e.ledger.Summary()
	actual := summary.CostUSD - s.baselineUSD

	var sessionInput, sessionOutput int
	for _, entry := range e.ledger.Entries() {
		if entry.Timestamp.Before(s.started) {
			continue
		}
		sessionInput += entry.InputTokens
		sessionOutput += entry.OutputTokens
	}

	res := &Result{
		ID:              s.id,
		Timestamp:       s.started,
		Question:        s.question,
		Context:         s.context,
		Agents:          s.roster,
		Responses:       s.responses,
		FinalPhase:      string(s.machine.Current()),
		TotalRounds:     e.cfg.MaxRounds,
		CompletedRounds: s.completedRounds,
		Independent:     s.independents,
		Synthesis:       s.synthesis,
		CrossExam:       s.crossExam,
		Verdict:         s.verdict,

		ConsensusSummary: consensusSummary(s.synthesis),
		Concerns:         concerns(s.synthesis, s.crossExam),

		Cost: CostReport{
			EstimatedUSD: s.estimate.CostUSD,
			ActualUSD:    actual,
			Tokens:       Tokens{Input: sessionInput, Output: sessionOutput, Total: sessionInput + sessionOutput},
			Exceeded:     s.estimate.CostUSD > 0 && actual > s.estimate.CostUSD*overrunFactor,
		},
		Duration: time.Since(s.started),
	}
	if s.verdict != nil {
		res.Confidence = s.verdict.Confidence
		res.Recommendation = s.verdict.Recommendation
		res.Dissent = s.verdict.Dissent
	}
	return res
}
