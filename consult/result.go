package consult

import (
	"strings"
	"time"

	"github.com/hupe1980/tribunal/agent"
	"github.com/hupe1980/tribunal/artifact"
)

// AgentResponse records one agent or judge call outcome, including failures.
type AgentResponse struct {
	Agent   string        `json:"agent"`
	Model   string        `json:"model"`
	Round   int           `json:"round"`
	Text    string        `json:"text,omitempty"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Tokens aggregates token counts for a consultation.
type Tokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// CostReport compares estimated against actual spend.
type CostReport struct {
	EstimatedUSD float64 `json:"estimated_usd"`
	ActualUSD    float64 `json:"actual_usd"`
	Tokens       Tokens  `json:"tokens"`
	Exceeded     bool    `json:"exceeded"`
}

// Result is the full outcome of a consultation. Trailing round artifacts may
// be absent when the consultation terminated early.
type Result struct {
	ID              string          `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	Question        string          `json:"question"`
	Context         string          `json:"context,omitempty"`
	Agents          []agent.Agent   `json:"agents"`
	Responses       []AgentResponse `json:"responses"`
	FinalPhase      string          `json:"final_phase"`
	TotalRounds     int             `json:"total_rounds"`
	CompletedRounds int             `json:"completed_rounds"`

	Independent []*artifact.Independent `json:"independent,omitempty"`
	Synthesis   *artifact.Synthesis     `json:"synthesis,omitempty"`
	CrossExam   *artifact.CrossExam     `json:"cross_exam,omitempty"`
	Verdict     *artifact.Verdict       `json:"verdict,omitempty"`

	ConsensusSummary string             `json:"consensus_summary,omitempty"`
	Confidence       float64            `json:"confidence"`
	Recommendation   string             `json:"recommendation,omitempty"`
	Concerns         []string           `json:"concerns,omitempty"`
	Dissent          []artifact.Dissent `json:"dissent,omitempty"`

	Cost     CostReport    `json:"cost"`
	Duration time.Duration `json:"duration"`
}

// consensusSummary flattens the synthesis consensus points into one line per
// point, in priority order where one exists.
func consensusSummary(syn *artifact.Synthesis) string {
	if syn == nil || len(syn.ConsensusPoints) == 0 {
		return ""
	}
	byPoint := make(map[string]bool, len(syn.ConsensusPoints))
	var lines []string
	for _, p := range syn.PriorityOrder {
		for _, cp := range syn.ConsensusPoints {
			if cp.Point == p && !byPoint[p] {
				byPoint[p] = true
				lines = append(lines, cp.Point)
			}
		}
	}
	for _, cp := range syn.ConsensusPoints {
		if !byPoint[cp.Point] {
			byPoint[cp.Point] = true
			lines = append(lines, cp.Point)
		}
	}
	return strings.Join(lines, "; ")
}

// concerns collects unresolved cross-examination points and open tension
// topics for the result summary.
func concerns(syn *artifact.Synthesis, ce *artifact.CrossExam) []string {
	var out []string
	if ce != nil {
		out = append(out, ce.Unresolved...)
	}
	if syn != nil {
		for _, t := range syn.Tensions {
			out = append(out, t.Topic)
		}
	}
	return out
}
