// Package tribunal provides a high-level façade over the consultation engine
// and its collaborators (cost ledger, event bus, phase machine & logging) for
// running structured multi-model debates. Most applications interact with
// this package by:
//  1. Creating a Tribunal via New() with a model resolver
//  2. Running Consult() with a question and optional context
//  3. Reading the Result: verdict, confidence, consensus and dissent
//
// The façade delegates orchestration to consult.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a consent prompt, a
// persistent history store and a structured logger.
package tribunal

import (
	"context"

	"github.com/hupe1980/tribunal/agent"
	"github.com/hupe1980/tribunal/consult"
	"github.com/hupe1980/tribunal/cost"
	"github.com/hupe1980/tribunal/event"
	"github.com/hupe1980/tribunal/logging"
	"github.com/hupe1980/tribunal/model"
)

// Options configures the Tribunal instance.
type Options struct {
	// Config holds the consultation policy knobs (auto-approve threshold,
	// max rounds, per-call token and temperature limits).
	Config consult.Config

	// Roster overrides the default three-advisor roster.
	Roster []agent.Agent

	// JudgeModel is the model id used by the synthesis, cross-exam and
	// verdict judges.
	JudgeModel string

	// Consent is invoked when an estimate exceeds the auto-approve
	// threshold. Nil denies over-threshold consultations, which is the
	// safe default for non-interactive use.
	Consent cost.Consent

	// Ledger overrides the per-call cost ledger (defaults to a fresh
	// in-memory ledger).
	Ledger *cost.Ledger

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Tribunal is the high-level façade aggregating the consultation engine and
// its services.
type Tribunal struct {
	opts   Options
	engine *consult.Engine
}

// New creates a new Tribunal instance with optional overrides. The resolver
// maps model ids to concrete provider adapters; see model/anthropic and
// model/openai.
func New(resolver model.Resolver, optFns ...func(o *Options)) *Tribunal {
	opts := Options{
		Config:     consult.DefaultConfig,
		JudgeModel: "claude-3-5-sonnet-20241022",
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := consult.New(resolver, func(o *consult.Options) {
		o.Config = opts.Config
		o.Roster = opts.Roster
		o.JudgeModel = opts.JudgeModel
		o.Consent = opts.Consent
		o.Ledger = opts.Ledger
		o.Logger = opts.Logger
	})

	return &Tribunal{opts: opts, engine: e}
}

// Consult runs the full debate protocol and returns the assembled result.
func (t *Tribunal) Consult(ctx context.Context, question, contextText string) (*consult.Result, error) {
	return t.engine.Consult(ctx, question, contextText)
}

// Events returns a subscription to the engine's lifecycle events for progress
// reporting.
func (t *Tribunal) Events() <-chan event.Event {
	return t.engine.Bus().Subscribe()
}

// CostSummary aggregates spend across all consultations run on this instance.
func (t *Tribunal) CostSummary() cost.Summary {
	return t.engine.Ledger().Summary()
}
