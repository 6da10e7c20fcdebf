// Package artifact defines the typed structures extracted from agent and
// judge output, plus the tolerant extractor that parses them out of free-form
// model text.
//
// Artifacts form a closed tagged union over Kind. Switches over Kind should
// enumerate all four values so a new artifact kind cannot silently fall
// through an unhandled branch.
package artifact

// Kind discriminates the four artifact types.
type Kind string

// The four artifact kinds, one per debate round.
const (
	KindIndependent Kind = "independent"
	KindSynthesis   Kind = "synthesis"
	KindCrossExam   Kind = "cross_exam"
	KindVerdict     Kind = "verdict"
)

// Artifact is the sum type over the four round artifacts. Artifacts are
// immutable once extracted.
type Artifact interface {
	Kind() Kind
}

// Independent is one roster agent's round-1 position.
type Independent struct {
	AgentID    string   `json:"agent_id"`
	Position   string   `json:"position"`
	KeyPoints  []string `json:"key_points"`
	Rationale  string   `json:"rationale"`
	Confidence float64  `json:"confidence"`
	Quote      string   `json:"quote,omitempty"`
}

// Kind implements Artifact.
func (*Independent) Kind() Kind { return KindIndependent }

// ConsensusPoint is a synthesis-stage statement of agreement among agents.
type ConsensusPoint struct {
	Point            string   `json:"point"`
	SupportingAgents []string `json:"supporting_agents"`
	Confidence       float64  `json:"confidence"`
}

// Viewpoint is one agent's side of a tension.
type Viewpoint struct {
	Agent     string `json:"agent"`
	Viewpoint string `json:"viewpoint"`
}

// Tension records a topic the agents disagree on.
type Tension struct {
	Topic      string      `json:"topic"`
	Viewpoints []Viewpoint `json:"viewpoints"`
}

// Synthesis is the round-2 judge's reduction of all independent positions.
type Synthesis struct {
	ConsensusPoints []ConsensusPoint `json:"consensus_points"`
	Tensions        []Tension        `json:"tensions"`
	PriorityOrder   []string         `json:"priority_order"`
}

// Kind implements Artifact.
func (*Synthesis) Kind() Kind { return KindSynthesis }

// Challenge is a cross-examination attack on another agent's position.
type Challenge struct {
	Challenger  string   `json:"challenger"`
	TargetAgent string   `json:"target_agent"`
	Challenge   string   `json:"challenge"`
	Evidence    []string `json:"evidence"`
}

// Rebuttal is an agent's defense against a challenge.
type Rebuttal struct {
	Agent    string `json:"agent"`
	Rebuttal string `json:"rebuttal"`
}

// CrossExam is the round-3 judge's reduction of the cross-examination.
type CrossExam struct {
	Challenges []Challenge `json:"challenges"`
	Rebuttals  []Rebuttal  `json:"rebuttals"`
	Unresolved []string    `json:"unresolved"`
}

// Kind implements Artifact.
func (*CrossExam) Kind() Kind { return KindCrossExam }

// Dissent records an agent's disagreement with the final recommendation.
// Severity is "low", "medium" or "high".
type Dissent struct {
	Agent    string `json:"agent"`
	Concern  string `json:"concern"`
	Severity string `json:"severity"`
}

// Verdict is the round-4 judge's final recommendation.
type Verdict struct {
	Recommendation string    `json:"recommendation"`
	Confidence     float64   `json:"confidence"`
	Evidence       []string  `json:"evidence"`
	Dissent        []Dissent `json:"dissent"`
}

// Kind implements Artifact.
func (*Verdict) Kind() Kind { return KindVerdict }
