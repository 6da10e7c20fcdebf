package consult

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/tribunal/artifact"
)

// Prompt assembly for the four rounds. Role instructions live on the agents
// (see package agent); these builders produce the user-turn content, which
// includes the exact JSON shape a structured response must take.

const independentSchema = `{
  "position": "your recommended answer in one or two sentences",
  "key_points": ["the strongest points supporting your position"],
  "rationale": "why you hold this position",
  "confidence": 0.0,
  "quote": "one short quotable line summarizing your stance"
}`

func independentPrompt(question, context string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", question)
	if context != "" {
		fmt.Fprintf(&b, "\nContext: %s\n", context)
	}
	b.WriteString("\nTake a position. Respond with a single JSON object and nothing else:\n")
	b.WriteString(independentSchema)
	return b.String()
}

func synthesisPrompt(question string, independents []*artifact.Independent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question under debate: %s\n\nAdvisor positions:\n", question)
	for _, a := range independents {
		raw, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			continue
		}
		b.Write(raw)
		b.WriteByte('\n')
	}
	b.WriteString("\nSynthesize these positions as instructed.")
	return b.String()
}

func crossExamAgentPrompt(own *artifact.Independent, syn *artifact.Synthesis) string {
	var b strings.Builder
	b.WriteString("The synthesis of all advisor positions is below, followed by your own prior position.\n\n")
	if raw, err := json.MarshalIndent(syn, "", "  "); err == nil {
		b.WriteString("Synthesis:\n")
		b.Write(raw)
		b.WriteByte('\n')
	}
	if raw, err := json.MarshalIndent(own, "", "  "); err == nil {
		b.WriteString("\nYour prior position:\n")
		b.Write(raw)
		b.WriteByte('\n')
	}
	b.WriteString(`
Cross-examine the debate: challenge the consensus points you find weakest,
defend your position against the tensions raised, and state your revised
position if anything changed your mind. Plain prose, no JSON.`)
	return b.String()
}

func crossExamJudgePrompt(replies []AgentResponse) string {
	var b strings.Builder
	b.WriteString("Cross-examination responses from each advisor:\n")
	for _, r := range replies {
		if r.Error != "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", r.Agent, r.Text)
	}
	b.WriteString("\nReduce the cross-examination as instructed.")
	return b.String()
}

func verdictPrompt(question string, syn *artifact.Synthesis, ce *artifact.CrossExam) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question under debate: %s\n", question)
	if raw, err := json.MarshalIndent(syn, "", "  "); err == nil {
		b.WriteString("\nSynthesis:\n")
		b.Write(raw)
		b.WriteByte('\n')
	}
	if ce != nil {
		if raw, err := json.MarshalIndent(ce, "", "  "); err == nil {
			b.WriteString("\nCross-examination:\n")
			b.Write(raw)
			b.WriteByte('\n')
		}
	} else {
		b.WriteString("\nNo cross-examination was held; weigh the synthesis on its own.\n")
	}
	b.WriteString("\nRender the verdict as instructed.")
	return b.String()
}
