package consult

import (
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/tribunal/agent"
	"github.com/hupe1980/tribunal/artifact"
	"github.com/hupe1980/tribunal/cost"
	"github.com/hupe1980/tribunal/phase"
)

// session is the mutable per-consultation state. Created on invocation,
// mutated only by the engine, discarded after Consult returns; no
// persistence is owned here.
type session struct {
	id       string
	question string
	context  string
	roster   []agent.Agent
	machine  *phase.Machine
	started  time.Time

	estimate    cost.Estimate
	baselineUSD float64 // ledger cost at session start; actual spend is measured against it

	responses       []AgentResponse
	independents    []*artifact.Independent
	synthesis       *artifact.Synthesis
	crossExam       *artifact.CrossExam
	verdict         *artifact.Verdict
	completedRounds int
}

func newSession(question, context string, roster []agent.Agent) *session {
	return &session{
		id:       uuid.NewString(),
		question: question,
		context:  context,
		roster:   roster,
		machine:  phase.NewMachine(),
		started:  time.Now().UTC(),
	}
}

// independentFor returns the surviving round-1 artifact for an agent, or nil.
func (s *session) independentFor(name string) *artifact.Independent {
	for _, a := range s.independents {
		if a.AgentID == name {
			return a
		}
	}
	return nil
}
