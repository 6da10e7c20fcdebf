package consult

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/tribunal/agent"
	"github.com/hupe1980/tribunal/artifact"
	"github.com/hupe1980/tribunal/event"
	"github.com/hupe1980/tribunal/model"
)

// overrunFactor is the in-flight cost breaker tolerance: a session whose
// actual spend exceeds estimate × overrunFactor aborts after the current
// round. The overrun itself is already spent by the time the breaker fires;
// this is a stop-loss, not a hard cap.
const overrunFactor = 1.5

// invokeAgent resolves an agent's model and performs one boundary call,
// returning the response record. Failures are captured on the record, never
// propagated, so a failing agent cannot take down its peers.
func (e *Engine) invokeAgent(ctx context.Context, s *session, ag agent.Agent, round int, userPrompt string) (AgentResponse, *model.Response) {
	e.publish(s, event.Event{Type: event.TypeAgentStarted, Round: round, Agent: ag.Name})

	resp := AgentResponse{Agent: ag.Name, Model: ag.Model, Round: round}
	start := time.Now()

	m, err := e.resolver(ag.Model)
	if err != nil {
		resp.Error = fmt.Sprintf("resolve model %q: %v", ag.Model, err)
		e.publish(s, event.Event{Type: event.TypeAgentFinished, Round: round, Agent: ag.Name, Error: resp.Error})
		return resp, nil
	}

	out, err := e.caller.call(ctx, m, model.Request{
		System:      ag.Role,
		Messages:    []model.Message{{Role: "user", Text: userPrompt}},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	resp.Latency = time.Since(start)

	if err != nil {
		resp.Error = err.Error()
		e.publish(s, event.Event{Type: event.TypeAgentFinished, Round: round, Agent: ag.Name, Error: resp.Error})
		return resp, nil
	}

	resp.Text = out.Text
	e.publish(s, event.Event{Type: event.TypeAgentFinished, Round: round, Agent: ag.Name})
	return resp, out
}

// runIndependent executes round 1: the full roster invoked concurrently,
// each call isolated. Returns ErrAllAgentsFailed when no artifact survives.
func (e *Engine) runIndependent(ctx context.Context, s *session) error {
	start := time.Now()
	prompt := independentPrompt(s.question, s.context)

	responses := make([]AgentResponse, len(s.roster))
	artifacts := make([]*artifact.Independent, len(s.roster))

	var wg sync.WaitGroup
	for i, ag := range s.roster {
		wg.Add(1)
		go func(i int, ag agent.Agent) {
			defer wg.Done()
			resp, out := e.invokeAgent(ctx, s, ag, 1, prompt)
			if out != nil {
				art, err := artifact.ExtractIndependent(out.Text, ag.Name)
				if err != nil {
					resp.Error = err.Error()
				} else {
					artifacts[i] = art
				}
			}
			responses[i] = resp
		}(i, ag)
	}
	wg.Wait()

	s.responses = append(s.responses, responses...)
	for _, art := range artifacts {
		if art != nil {
			s.independents = append(s.independents, art)
		}
	}

	e.logRound(s, 1, len(s.roster), len(s.independents), time.Since(start))
	if len(s.independents) == 0 {
		return ErrAllAgentsFailed
	}
	return nil
}

// runSynthesis executes round 2: a single ad hoc judge reduces all surviving
// round-1 artifacts. Any failure here is fatal to the session.
func (e *Engine) runSynthesis(ctx context.Context, s *session) error {
	judge := agent.NewSynthesisJudge(e.judgeModel)
	resp, out := e.invokeAgent(ctx, s, judge, 2, synthesisPrompt(s.question, s.independents))
	s.responses = append(s.responses, resp)
	if out == nil {
		return fmt.Errorf("synthesis judge failed: %s", resp.Error)
	}

	art, err := artifact.ExtractSynthesis(out.Text)
	if err != nil {
		return fmt.Errorf("synthesis judge: %w", err)
	}
	s.synthesis = art
	return nil
}

// runCrossExam executes round 3: each surviving agent is re-invoked with its
// own prior position plus the synthesis, then a second judge reduces the
// responses. When the synthesis artifact is absent, the round is skipped
// entirely and the session degrades to verdict on rounds 1-2 alone.
func (e *Engine) runCrossExam(ctx context.Context, s *session) error {
	if s.synthesis == nil {
		e.logger.Warn("cross-examination skipped: no synthesis artifact")
		return nil
	}

	start := time.Now()

	var survivors []agent.Agent
	for _, ag := range s.roster {
		if s.independentFor(ag.Name) != nil {
			survivors = append(survivors, ag)
		}
	}

	responses := make([]AgentResponse, len(survivors))
	var wg sync.WaitGroup
	for i, ag := range survivors {
		wg.Add(1)
		go func(i int, ag agent.Agent) {
			defer wg.Done()
			prompt := crossExamAgentPrompt(s.independentFor(ag.Name), s.synthesis)
			responses[i], _ = e.invokeAgent(ctx, s, ag, 3, prompt)
		}(i, ag)
	}
	wg.Wait()

	s.responses = append(s.responses, responses...)

	succeeded := 0
	for _, r := range responses {
		if r.Error == "" {
			succeeded++
		}
	}
	e.logRound(s, 3, len(survivors), succeeded, time.Since(start))
	if succeeded == 0 {
		return fmt.Errorf("cross-examination: %w", ErrAllAgentsFailed)
	}

	judge := agent.NewCrossExamJudge(e.judgeModel)
	resp, out := e.invokeAgent(ctx, s, judge, 3, crossExamJudgePrompt(responses))
	s.responses = append(s.responses, resp)
	if out == nil {
		return fmt.Errorf("cross-exam judge failed: %s", resp.Error)
	}

	art, err := artifact.ExtractCrossExam(out.Text)
	if err != nil {
		return fmt.Errorf("cross-exam judge: %w", err)
	}
	s.crossExam = art
	return nil
}

// runVerdict executes round 4. A synthesis artifact is required
// unconditionally: unlike cross-examination, this round never degrades,
// regardless of whether cross-exam artifacts exist.
func (e *Engine) runVerdict(ctx context.Context, s *session) error {
	if s.synthesis == nil {
		return ErrSynthesisRequired
	}

	judge := agent.NewVerdictJudge(e.judgeModel)
	resp, out := e.invokeAgent(ctx, s, judge, 4, verdictPrompt(s.question, s.synthesis, s.crossExam))
	s.responses = append(s.responses, resp)
	if out == nil {
		return fmt.Errorf("verdict judge failed: %s", resp.Error)
	}

	art, err := artifact.ExtractVerdict(out.Text)
	if err != nil {
		return fmt.Errorf("verdict judge: %w", err)
	}
	s.verdict = art
	return nil
}

// checkBudget is the in-flight cost breaker, invoked after every round. It
// compares the session's accumulated actual cost against the pre-flight
// estimate times overrunFactor. A session without an estimate is never
// tripped.
func (e *Engine) checkBudget(s *session) error {
	if s.estimate.CostUSD == 0 {
		return nil
	}
	actual := e.ledger.Summary().CostUSD - s.baselineUSD
	if actual > s.estimate.CostUSD*overrunFactor {
		e.publish(s, event.Event{Type: event.TypeBreakerTripped, CostUSD: actual})
		return fmt.Errorf("actual cost $%.4f exceeded estimate $%.4f beyond %.1fx tolerance: %w",
			actual, s.estimate.CostUSD, overrunFactor, ErrBudgetExceeded)
	}
	return nil
}
