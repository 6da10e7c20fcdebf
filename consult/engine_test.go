package consult

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tribunal/agent"
	"github.com/hupe1980/tribunal/cost"
	"github.com/hupe1980/tribunal/event"
	"github.com/hupe1980/tribunal/logging"
	"github.com/hupe1980/tribunal/model"
	"github.com/hupe1980/tribunal/phase"
)

const (
	synthesisJSON = `{
	  "consensus_points": [
	    {"point": "Ship behind a feature flag", "supporting_agents": ["analyst", "pragmatist"], "confidence": 0.8}
	  ],
	  "tensions": [
	    {"topic": "rollout speed", "viewpoints": [{"agent": "skeptic", "viewpoint": "slower is safer"}]}
	  ],
	  "priority_order": ["Ship behind a feature flag"]
	}`

	crossExamJSON = `{
	  "challenges": [
	    {"challenger": "skeptic", "target_agent": "analyst", "challenge": "flag debt accumulates", "evidence": ["past incidents"]}
	  ],
	  "rebuttals": [
	    {"agent": "analyst", "rebuttal": "flags are removed after rollout"}
	  ],
	  "unresolved": ["cleanup ownership"]
	}`

	verdictJSON = `{
	  "recommendation": "Adopt the migration behind a feature flag",
	  "confidence": 0.85,
	  "evidence": ["broad consensus", "reversible rollout"],
	  "dissent": [{"agent": "skeptic", "concern": "rollback complexity", "severity": "medium"}]
	}`
)

func independentJSON(confidence float64) string {
	return fmt.Sprintf(`{
	  "position": "Migrate incrementally",
	  "key_points": ["lower blast radius", "earlier feedback"],
	  "rationale": "big-bang rewrites rarely land on time",
	  "confidence": %.2f,
	  "quote": "ship small, learn fast"
	}`, confidence)
}

// testRig wires an engine against per-agent mock models so each debater can be
// scripted independently.
type testRig struct {
	engine *Engine
	mocks  map[string]*model.MockModel
	events <-chan event.Event
}

func newTestRig(t *testing.T, optFns ...func(o *Options)) *testRig {
	t.Helper()

	mocks := map[string]*model.MockModel{
		"mock-analyst":    model.NewMockModel("mock-analyst"),
		"mock-skeptic":    model.NewMockModel("mock-skeptic"),
		"mock-pragmatist": model.NewMockModel("mock-pragmatist"),
		"mock-judge":      model.NewMockModel("mock-judge"),
	}
	mocks["mock-analyst"].AddResponse("Take a position", independentJSON(0.7))
	mocks["mock-skeptic"].AddResponse("Take a position", independentJSON(0.8))
	mocks["mock-pragmatist"].AddResponse("Take a position", independentJSON(0.6))
	mocks["mock-judge"].AddResponse("Synthesize these positions", synthesisJSON)
	mocks["mock-judge"].AddResponse("Reduce the cross-examination", crossExamJSON)
	mocks["mock-judge"].AddResponse("Render the verdict", verdictJSON)

	resolver := func(modelID string) (model.Model, error) {
		m, ok := mocks[modelID]
		if !ok {
			return nil, fmt.Errorf("unknown model %q", modelID)
		}
		return m, nil
	}

	roster := []agent.Agent{
		{Name: "analyst", Model: "mock-analyst", Role: "analyst role"},
		{Name: "skeptic", Model: "mock-skeptic", Role: "skeptic role"},
		{Name: "pragmatist", Model: "mock-pragmatist", Role: "pragmatist role"},
	}

	opts := append([]func(o *Options){func(o *Options) {
		o.Roster = roster
		o.JudgeModel = "mock-judge"
		o.Config.AutoApproveUSD = 1000 // auto-approve unless a test overrides it
	}}, optFns...)

	e := New(resolver, opts...)
	e.caller.backoffFn = func(int) time.Duration { return 0 }
	return &testRig{engine: e, mocks: mocks, events: e.Bus().Subscribe()}
}

// drain collects every event published so far without blocking.
func (r *testRig) drain() []event.Event {
	var out []event.Event
	for {
		select {
		case ev := <-r.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (r *testRig) phaseTrail() []string {
	var trail []string
	for _, ev := range r.drain() {
		if ev.Type == event.TypePhaseChanged {
			trail = append(trail, ev.Phase)
		}
	}
	return trail
}

func TestConsultHappyPath(t *testing.T) {
	rig := newTestRig(t)

	res, err := rig.engine.Consult(context.Background(), "Should we migrate to the new queue?", "We run 40 services on the old one.")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, string(phase.Complete), res.FinalPhase)
	assert.Equal(t, 4, res.CompletedRounds)
	assert.Len(t, res.Independent, 3)
	require.NotNil(t, res.Synthesis)
	require.NotNil(t, res.CrossExam)
	require.NotNil(t, res.Verdict)

	assert.Equal(t, "Adopt the migration behind a feature flag", res.Recommendation)
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
	assert.Len(t, res.Dissent, 1)
	assert.Contains(t, res.ConsensusSummary, "Ship behind a feature flag")
	assert.Contains(t, res.Concerns, "cleanup ownership")
	assert.Contains(t, res.Concerns, "rollout speed")

	// 3 independent + 1 synthesis + 3 cross-exam + 1 cross-exam judge + 1 verdict.
	assert.Len(t, res.Responses, 9)
	assert.Greater(t, res.Cost.EstimatedUSD, 0.0)
	assert.Greater(t, res.Cost.ActualUSD, 0.0)
	assert.False(t, res.Cost.Exceeded)

	assert.Equal(t, []string{
		string(phase.Estimating),
		string(phase.AwaitingConsent),
		string(phase.Independent),
		string(phase.Synthesis),
		string(phase.CrossExam),
		string(phase.Verdict),
		string(phase.Complete),
	}, rig.phaseTrail())
}

func TestConsultOneAgentFailureDegrades(t *testing.T) {
	rig := newTestRig(t)
	rig.mocks["mock-skeptic"].AddError("Take a position", errors.New("invalid api key"))

	res, err := rig.engine.Consult(context.Background(), "Should we migrate?", "")
	require.NoError(t, err)

	assert.Equal(t, string(phase.Complete), res.FinalPhase)
	assert.Equal(t, 4, res.CompletedRounds)
	assert.Len(t, res.Independent, 2)
	require.NotNil(t, res.Verdict)

	// Only surviving agents are re-invoked for cross-examination, so the
	// failed agent's model sees exactly its round-1 call.
	assert.Len(t, rig.mocks["mock-skeptic"].Calls(), 1)

	failed := 0
	for _, r := range res.Responses {
		if r.Agent == "skeptic" && r.Round == 1 {
			assert.Contains(t, r.Error, "invalid api key")
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestConsultAllAgentsFailedAborts(t *testing.T) {
	rig := newTestRig(t)
	for _, name := range []string{"mock-analyst", "mock-skeptic", "mock-pragmatist"} {
		rig.mocks[name].AddError("Take a position", errors.New("invalid api key"))
	}

	res, err := rig.engine.Consult(context.Background(), "Should we migrate?", "")
	require.ErrorIs(t, err, ErrAllAgentsFailed)
	assert.Nil(t, res)

	trail := rig.phaseTrail()
	require.NotEmpty(t, trail)
	assert.Equal(t, string(phase.Aborted), trail[len(trail)-1])
}

func TestConsultConsentDenied(t *testing.T) {
	var prompted bool
	rig := newTestRig(t, func(o *Options) {
		o.Config.AutoApproveUSD = 0
		o.Consent = func(est cost.Estimate, agentCount, maxRounds int) (cost.Decision, error) {
			prompted = true
			assert.Equal(t, 3, agentCount)
			assert.Equal(t, 4, maxRounds)
			assert.Greater(t, est.CostUSD, 0.0)
			return cost.DecisionDenied, nil
		}
	})

	res, err := rig.engine.Consult(context.Background(), "Should we migrate?", "")
	require.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, res)
	assert.True(t, prompted)

	// Denial happens before any model call is admitted.
	assert.Zero(t, rig.engine.Ledger().Summary().Calls)

	trail := rig.phaseTrail()
	require.NotEmpty(t, trail)
	assert.Equal(t, string(phase.Aborted), trail[len(trail)-1])
}

func TestConsultConsentApprovedOverThreshold(t *testing.T) {
	rig := newTestRig(t, func(o *Options) {
		o.Config.AutoApproveUSD = 0
		o.Consent = cost.AlwaysApprove
	})

	res, err := rig.engine.Consult(context.Background(), "Should we migrate?", "")
	require.NoError(t, err)
	assert.Equal(t, string(phase.Complete), res.FinalPhase)
}

func TestConsultEarlyTermination(t *testing.T) {
	rig := newTestRig(t, func(o *Options) {
		o.Config.MaxRounds = 2
	})

	res, err := rig.engine.Consult(context.Background(), "Should we migrate?", "")
	require.NoError(t, err)

	assert.Equal(t, string(phase.Complete), res.FinalPhase)
	assert.Equal(t, 2, res.CompletedRounds)
	require.NotNil(t, res.Synthesis)
	assert.Nil(t, res.CrossExam)
	assert.Nil(t, res.Verdict)
	assert.Zero(t, res.Confidence)
	assert.Empty(t, res.Recommendation)
}

func TestConsultRoundCountNormalized(t *testing.T) {
	// There is no exit between cross-examination and verdict, so a round
	// count of 3 runs the full protocol and is reported as such.
	rig := newTestRig(t, func(o *Options) {
		o.Config.MaxRounds = 3
	})

	res, err := rig.engine.Consult(context.Background(), "Should we migrate?", "")
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalRounds)
	assert.Equal(t, 4, res.CompletedRounds)
	require.NotNil(t, res.Verdict)

	rig = newTestRig(t, func(o *Options) {
		o.Config.MaxRounds = 0
	})
	res, err = rig.engine.Consult(context.Background(), "Should we migrate?", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalRounds)
	assert.Equal(t, 2, res.CompletedRounds)
	assert.Nil(t, res.Verdict)
}

func TestConsultSynthesisFailureIsFatal(t *testing.T) {
	rig := newTestRig(t)
	rig.mocks["mock-judge"].AddResponse("Synthesize these positions", "I could not reach a synthesis, sorry.")

	res, err := rig.engine.Consult(context.Background(), "Should we migrate?", "")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "synthesis")

	trail := rig.phaseTrail()
	require.NotEmpty(t, trail)
	assert.Equal(t, string(phase.Aborted), trail[len(trail)-1])
}

func TestConsultBreakerTrips(t *testing.T) {
	rig := newTestRig(t)
	for _, m := range rig.mocks {
		m.SetUsage(model.TokenUsage{InputTokens: 50_000_000, OutputTokens: 10_000_000})
	}

	res, err := rig.engine.Consult(context.Background(), "Should we migrate?", "")
	require.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Nil(t, res)

	tripped := false
	aborted := false
	for _, ev := range rig.drain() {
		if ev.Type == event.TypeBreakerTripped {
			tripped = true
			assert.Greater(t, ev.CostUSD, 0.0)
		}
		if ev.Type == event.TypePhaseChanged && ev.Phase == string(phase.Aborted) {
			aborted = true
		}
	}
	assert.True(t, tripped)
	assert.True(t, aborted)

	// The breaker fires after the round joined, so round 1 spend is recorded.
	assert.Equal(t, 3, rig.engine.Ledger().Summary().Calls)
}

func TestConsultEmptyQuestion(t *testing.T) {
	rig := newTestRig(t)
	res, err := rig.engine.Consult(context.Background(), "", "")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Zero(t, rig.engine.Ledger().Summary().Calls)
}

func TestCheckBudget(t *testing.T) {
	rig := newTestRig(t)
	e := rig.engine

	s := newSession("q", "", e.roster)
	e.ledger.Record("mock-analyst", 0, model.TokenUsage{InputTokens: 100_000, OutputTokens: 100_000}, nil)
	actual := e.ledger.Summary().CostUSD
	require.Greater(t, actual, 0.0)

	t.Run("no estimate never trips", func(t *testing.T) {
		s.estimate = cost.Estimate{}
		assert.NoError(t, e.checkBudget(s))
	})

	t.Run("within tolerance", func(t *testing.T) {
		s.estimate = cost.Estimate{CostUSD: actual}
		assert.NoError(t, e.checkBudget(s))
	})

	t.Run("exactly at tolerance boundary", func(t *testing.T) {
		s.estimate = cost.Estimate{CostUSD: actual / overrunFactor}
		assert.NoError(t, e.checkBudget(s))
	})

	t.Run("beyond tolerance", func(t *testing.T) {
		s.estimate = cost.Estimate{CostUSD: actual / 2}
		err := e.checkBudget(s)
		require.ErrorIs(t, err, ErrBudgetExceeded)
	})
}

func TestRunVerdictRequiresSynthesis(t *testing.T) {
	rig := newTestRig(t)
	s := newSession("q", "", rig.engine.roster)

	err := rig.engine.runVerdict(context.Background(), s)
	require.ErrorIs(t, err, ErrSynthesisRequired)
	assert.Nil(t, s.verdict)
}

func TestRunCrossExamSkipsWithoutSynthesis(t *testing.T) {
	rig := newTestRig(t)
	s := newSession("q", "", rig.engine.roster)

	err := rig.engine.runCrossExam(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, s.crossExam)
	assert.Empty(t, s.responses)
}

func TestConsultStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.LogLevelDebug,
		Format: "text",
		Output: &buf,
	})

	rig := newTestRig(t, func(o *Options) {
		o.Logger = logger
	})

	_, err := rig.engine.Consult(context.Background(), "Should we migrate?", "")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `msg="Model call completed"`)
	assert.Contains(t, out, `msg="Round completed"`)
	assert.Contains(t, out, `msg="phase entered"`)
	assert.Contains(t, out, "session_id=")
	assert.Contains(t, out, "phase=complete")
	assert.Contains(t, out, "max_rounds=4")
	assert.NotContains(t, out, "EXTRA")
}

func TestConsultCancelledErrorIsDistinguishable(t *testing.T) {
	assert.ErrorIs(t, ErrCancelled, cost.ErrConsentDenied)
	assert.NotErrorIs(t, ErrAllAgentsFailed, ErrCancelled)
	assert.NotErrorIs(t, ErrBudgetExceeded, ErrCancelled)
}
