// Package agent defines the debate participants: the fixed three-member
// roster that argues each consultation, and the ad hoc single-purpose judges
// constructed per synthesis, cross-examination and verdict call.
package agent

import "fmt"

// Agent is one independently-invoked text-generation service instance with a
// fixed role prompt. Agents are plain values; the engine owns all sequencing.
type Agent struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Role  string `json:"role"`
}

// String returns "name (model)" for logs and error messages.
func (a Agent) String() string { return fmt.Sprintf("%s (%s)", a.Name, a.Model) }

// Roster role prompts. Each debater answers the same question from a fixed
// perspective so the synthesis judge has genuinely divergent material.
const (
	analystRole = `You are the Analyst, one of three advisors in a structured debate.
Examine the question methodically: identify the core trade-offs, quantify what can
be quantified, and ground every claim in evidence or first principles. Avoid
hedging; commit to a position.`

	skepticRole = `You are the Skeptic, one of three advisors in a structured debate.
Your job is to find what the obvious answer gets wrong: hidden assumptions, failure
modes, second-order effects, and costs that only appear at scale or over time.
Commit to a position, even a contrarian one, and defend it.`

	pragmatistRole = `You are the Pragmatist, one of three advisors in a structured debate.
Weigh the question against real-world constraints: team capacity, migration cost,
operational burden, and reversibility. Prefer the answer a competent team could
actually execute. Commit to a position.`
)

// DefaultRoster returns the fixed three-agent roster used for the independent
// and cross-examination rounds. Model ids can be overridden per agent via
// configuration before the roster is handed to the engine.
func DefaultRoster(modelID string) []Agent {
	return []Agent{
		{Name: "analyst", Model: modelID, Role: analystRole},
		{Name: "skeptic", Model: modelID, Role: skepticRole},
		{Name: "pragmatist", Model: modelID, Role: pragmatistRole},
	}
}

// Judge purposes. Judges are not part of the roster; one is constructed per
// reduction call and discarded afterwards.
const (
	synthesisJudgeRole = `You are a neutral synthesis judge. You receive the positions of
several advisors on the same question. Identify genuine points of consensus (with the
supporting advisors and a confidence score between 0 and 1), surface tensions where
advisors disagree (topic plus each advisor's viewpoint), and produce a priority
ordering of the consensus points. Respond with a single JSON object and nothing else:
{
  "consensus_points": [{"point": "...", "supporting_agents": ["..."], "confidence": 0.0}],
  "tensions": [{"topic": "...", "viewpoints": [{"agent": "...", "viewpoint": "..."}]}],
  "priority_order": ["..."]
}`

	crossExamJudgeRole = `You are a neutral cross-examination judge. You receive each
advisor's critique and defense after reading the synthesis of all positions. Reduce
them into challenges (challenger, target advisor, the challenge, supporting evidence),
rebuttals (advisor, rebuttal) and a list of points left unresolved. Respond with a
single JSON object and nothing else:
{
  "challenges": [{"challenger": "...", "target_agent": "...", "challenge": "...", "evidence": ["..."]}],
  "rebuttals": [{"agent": "...", "rebuttal": "..."}],
  "unresolved": ["..."]
}`

	verdictJudgeRole = `You are the verdict judge. Weigh consensus points that survived
cross-examination more heavily than points that were challenged without rebuttal.
Render a final recommendation with a confidence score between 0 and 1. Use these
confidence bands: High is above 0.9, Medium is 0.7 to 0.9, Low is below 0.7.
Record every advisor disagreement as dissent with a severity of "low", "medium" or
"high". Respond with a single JSON object and nothing else:
{
  "recommendation": "...",
  "confidence": 0.0,
  "evidence": ["..."],
  "dissent": [{"agent": "...", "concern": "...", "severity": "..."}]
}`
)

// NewSynthesisJudge constructs the ad hoc judge for the synthesis round.
func NewSynthesisJudge(modelID string) Agent {
	return Agent{Name: "synthesis-judge", Model: modelID, Role: synthesisJudgeRole}
}

// NewCrossExamJudge constructs the ad hoc judge for the cross-examination round.
func NewCrossExamJudge(modelID string) Agent {
	return Agent{Name: "crossexam-judge", Model: modelID, Role: crossExamJudgeRole}
}

// NewVerdictJudge constructs the ad hoc judge for the verdict round.
func NewVerdictJudge(modelID string) Agent {
	return Agent{Name: "verdict-judge", Model: modelID, Role: verdictJudgeRole}
}
