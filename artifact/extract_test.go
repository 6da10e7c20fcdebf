package artifact

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_PlainObject(t *testing.T) {
	raw, err := Normalize(`{"a": 1}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestNormalize_FencedObject(t *testing.T) {
	for _, text := range []string{
		"```json\n{\"a\": 1}\n```",
		"```\n{\"a\": 1}\n```",
		"Here is the result:\n```json\n{\"a\": 1}\n```\nLet me know if you need anything else.",
	} {
		raw, err := Normalize(text)
		require.NoErrorf(t, err, "input: %q", text)
		assert.JSONEq(t, `{"a":1}`, string(raw))
	}
}

func TestNormalize_TrailingProse(t *testing.T) {
	raw, err := Normalize(`{"a": {"b": 2}} and that is my final answer.`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"b":2}}`, string(raw))
}

func TestNormalize_TrailingCommas(t *testing.T) {
	raw, err := Normalize(`{"a": [1, 2,], "b": {"c": 3,},}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":[1,2],"b":{"c":3}}`, string(raw))
}

func TestNormalize_UnescapedQuotes(t *testing.T) {
	raw, err := Normalize(`{"a": "he said "hi" to me"}`)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, `he said "hi" to me`, got["a"])
}

func TestNormalize_NoObject(t *testing.T) {
	for _, text := range []string{"", "I cannot answer that.", "[1, 2, 3]"} {
		_, err := Normalize(text)
		assert.Errorf(t, err, "input: %q", text)
	}
}

func TestNormalize_Unrecoverable(t *testing.T) {
	_, err := Normalize(`{"a": this is not json}`)
	assert.Error(t, err)
}

func TestRepairQuotes_LegitimateCloses(t *testing.T) {
	// Quotes followed by delimiters are treated as closes, not escaped.
	in := []byte(`{"key": "value", "list": ["x", "y"]}`)
	assert.Equal(t, in, repairQuotes(in))
}

func TestRepairQuotes_EscapedQuotePassesThrough(t *testing.T) {
	in := []byte(`{"a": "already \"escaped\" here"}`)
	assert.Equal(t, in, repairQuotes(in))
}

func TestExtractIndependent(t *testing.T) {
	text := "```json\n" + `{
		"position": "Adopt incremental rollout",
		"key_points": ["lower risk", "faster feedback"],
		"rationale": "Big-bang migrations fail more often",
		"confidence": 0.8,
		"quote": "ship small, ship often"
	}` + "\n```"

	a, err := ExtractIndependent(text, "analyst")
	require.NoError(t, err)
	assert.Equal(t, KindIndependent, a.Kind())
	assert.Equal(t, "analyst", a.AgentID)
	assert.Equal(t, "Adopt incremental rollout", a.Position)
	assert.Len(t, a.KeyPoints, 2)
	assert.InDelta(t, 0.8, a.Confidence, 1e-9)
}

func TestExtractIndependent_AgentIDOverridesModelOutput(t *testing.T) {
	a, err := ExtractIndependent(`{"position": "p", "confidence": 0.5, "agent_id": "impostor"}`, "skeptic")
	require.NoError(t, err)
	assert.Equal(t, "skeptic", a.AgentID)
}

func TestExtractIndependent_Failures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no object", "I refuse to answer."},
		{"missing position", `{"confidence": 0.5}`},
		{"confidence too high", `{"position": "p", "confidence": 1.5}`},
		{"confidence negative", `{"position": "p", "confidence": -0.1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ExtractIndependent(tt.text, "analyst")
			assert.Error(t, err)
			assert.Nil(t, a)
		})
	}
}

func TestExtractSynthesis(t *testing.T) {
	text := `{
		"consensus_points": [
			{"point": "incremental is safer", "supporting_agents": ["analyst", "pragmatist"], "confidence": 0.85}
		],
		"tensions": [
			{"topic": "timeline", "viewpoints": [
				{"agent": "analyst", "viewpoint": "six months"},
				{"agent": "skeptic", "viewpoint": "a year at least"}
			]}
		],
		"priority_order": ["incremental is safer"]
	}`

	a, err := ExtractSynthesis(text)
	require.NoError(t, err)
	assert.Equal(t, KindSynthesis, a.Kind())
	require.Len(t, a.ConsensusPoints, 1)
	assert.Equal(t, []string{"analyst", "pragmatist"}, a.ConsensusPoints[0].SupportingAgents)
	require.Len(t, a.Tensions, 1)
	assert.Len(t, a.Tensions[0].Viewpoints, 2)
}

func TestExtractSynthesis_Failures(t *testing.T) {
	_, err := ExtractSynthesis(`{"tensions": []}`)
	assert.Error(t, err, "missing consensus_points must fail loudly")

	_, err = ExtractSynthesis(`{"consensus_points": [{"point": "p", "confidence": 2.0}]}`)
	assert.Error(t, err)
}

func TestExtractCrossExam(t *testing.T) {
	text := `{
		"challenges": [
			{"challenger": "skeptic", "target_agent": "analyst", "challenge": "ignores migration cost", "evidence": ["prior incident"]}
		],
		"rebuttals": [
			{"agent": "analyst", "rebuttal": "cost is amortized over quarters"}
		],
		"unresolved": ["timeline risk"]
	}`

	a, err := ExtractCrossExam(text)
	require.NoError(t, err)
	assert.Equal(t, KindCrossExam, a.Kind())
	assert.Len(t, a.Challenges, 1)
	assert.Len(t, a.Rebuttals, 1)
	assert.Equal(t, []string{"timeline risk"}, a.Unresolved)
}

func TestExtractCrossExam_RequiresAnySection(t *testing.T) {
	_, err := ExtractCrossExam(`{"something_else": true}`)
	assert.Error(t, err)

	a, err := ExtractCrossExam(`{"unresolved": []}`)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestExtractVerdict(t *testing.T) {
	text := `Final answer below.
	{
		"recommendation": "Adopt incremental rollout behind a feature flag",
		"confidence": 0.82,
		"evidence": ["consensus survived cross-examination"],
		"dissent": [{"agent": "skeptic", "concern": "timeline optimism", "severity": "medium"}]
	}`

	a, err := ExtractVerdict(text)
	require.NoError(t, err)
	assert.Equal(t, KindVerdict, a.Kind())
	assert.InDelta(t, 0.82, a.Confidence, 1e-9)
	require.Len(t, a.Dissent, 1)
	assert.Equal(t, "medium", a.Dissent[0].Severity)
}

func TestExtractVerdict_Failures(t *testing.T) {
	for name, text := range map[string]string{
		"missing recommendation": `{"confidence": 0.8}`,
		"empty recommendation":   `{"recommendation": "", "confidence": 0.8}`,
		"bad confidence":         `{"recommendation": "r", "confidence": 7}`,
	} {
		t.Run(name, func(t *testing.T) {
			a, err := ExtractVerdict(text)
			assert.Error(t, err)
			assert.Nil(t, a)
		})
	}
}

// The union is closed: a switch over Kind covers all four artifact types.
func TestArtifactKinds(t *testing.T) {
	artifacts := []Artifact{&Independent{}, &Synthesis{}, &CrossExam{}, &Verdict{}}
	seen := map[Kind]bool{}
	for _, a := range artifacts {
		switch a.Kind() {
		case KindIndependent, KindSynthesis, KindCrossExam, KindVerdict:
			seen[a.Kind()] = true
		default:
			t.Fatalf("unhandled artifact kind %q", a.Kind())
		}
	}
	assert.Len(t, seen, 4)
}
