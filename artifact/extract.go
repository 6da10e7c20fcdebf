package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Extraction failures are always loud: callers gate round progression on
// nil-vs-populated artifacts, so an empty default artifact is never returned.

// Normalize locates the JSON object inside free-form model text and repairs
// common malformations: code fences, trailing prose, trailing commas and
// unescaped interior quotes. It returns the normalized object bytes or an
// error when no parseable object can be recovered.
//
// The quote repair pass is a heuristic scanner, not a grammar; pathological
// input can produce false positives or negatives. See repairQuotes.
func Normalize(text string) ([]byte, error) {
	raw := isolateObject(stripFences(text))
	if raw == nil {
		return nil, fmt.Errorf("no JSON object found in model output")
	}
	if gjson.ValidBytes(raw) {
		return raw, nil
	}
	repaired := repairQuotes(stripTrailingCommas(raw))
	if gjson.ValidBytes(repaired) {
		return repaired, nil
	}
	return nil, fmt.Errorf("model output is not parseable as JSON after repair")
}

// stripFences removes a ```json ... ``` (or bare ```) fence when present.
func stripFences(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && len(strings.TrimSpace(rest[:nl])) <= len("json") {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		return rest[:end]
	}
	return rest
}

// isolateObject slices from the first '{' to its matching close brace,
// tracking strings and escapes. When the braces never balance (typically
// because of unescaped interior quotes) it falls back to the last '}' so the
// repair passes get a chance.
func isolateObject(text string) []byte {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil
	}
	depth := 0
	inside := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inside = !inside
		case inside:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return []byte(text[start : i+1])
			}
		}
	}
	if end := strings.LastIndexByte(text, '}'); end > start {
		return []byte(text[start : end+1])
	}
	return nil
}

// stripTrailingCommas removes commas whose next non-whitespace character is a
// closing brace or bracket. String contents are left untouched.
func stripTrailingCommas(in []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(in))
	inside := false
	escaped := false
	for i := 0; i < len(in); i++ {
		c := in[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inside = !inside
		case !inside && c == ',':
			j := i + 1
			for j < len(in) && isSpace(in[j]) {
				j++
			}
			if j < len(in) && (in[j] == '}' || in[j] == ']') {
				continue // drop the comma
			}
		}
		out.WriteByte(c)
	}
	return out.Bytes()
}

// repairQuotes escapes quotation marks that appear inside string values.
//
// The scanner tracks {insideString, pendingEscape}. A literal backslash flags
// the next character as escaped and passes it through. A quote outside a
// string opens one. A quote inside a string is disambiguated by peeking at
// the next non-whitespace character: one of ':', ',', '}', ']' or end of
// input means a legitimate close; anything else means an unescaped interior
// quote, which gets an inserted escape.
//
// This is a textual patch, not a grammar. A close quote legitimately followed
// by other text, or an interior quote followed by a delimiter, will be
// misjudged; such inputs fail the validity gate in Normalize instead of being
// silently mangled further.
func repairQuotes(in []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(in) + 8)
	inside := false
	escaped := false
	for i := 0; i < len(in); i++ {
		c := in[i]
		if escaped {
			out.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' {
			out.WriteByte(c)
			escaped = true
			continue
		}
		if c != '"' {
			out.WriteByte(c)
			continue
		}
		if !inside {
			inside = true
			out.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(in) && isSpace(in[j]) {
			j++
		}
		if j >= len(in) || in[j] == ':' || in[j] == ',' || in[j] == '}' || in[j] == ']' {
			inside = false
			out.WriteByte(c)
			continue
		}
		out.WriteByte('\\')
		out.WriteByte(c)
	}
	return out.Bytes()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// ExtractIndependent parses a roster agent's round-1 output. The agent id is
// stamped by the caller since models do not reliably echo their own identity.
func ExtractIndependent(text, agentID string) (*Independent, error) {
	raw, err := Normalize(text)
	if err != nil {
		return nil, fmt.Errorf("independent artifact: %w", err)
	}
	if !gjson.GetBytes(raw, "position").Exists() {
		return nil, fmt.Errorf("independent artifact: missing required field %q", "position")
	}
	if agentID != "" {
		if raw, err = sjson.SetBytes(raw, "agent_id", agentID); err != nil {
			return nil, fmt.Errorf("independent artifact: %w", err)
		}
	}
	var a Independent
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("independent artifact: %w", err)
	}
	if err := checkConfidence(a.Confidence); err != nil {
		return nil, fmt.Errorf("independent artifact: %w", err)
	}
	return &a, nil
}

// ExtractSynthesis parses the round-2 judge output.
func ExtractSynthesis(text string) (*Synthesis, error) {
	raw, err := Normalize(text)
	if err != nil {
		return nil, fmt.Errorf("synthesis artifact: %w", err)
	}
	if !gjson.GetBytes(raw, "consensus_points").Exists() {
		return nil, fmt.Errorf("synthesis artifact: missing required field %q", "consensus_points")
	}
	var a Synthesis
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("synthesis artifact: %w", err)
	}
	for _, cp := range a.ConsensusPoints {
		if err := checkConfidence(cp.Confidence); err != nil {
			return nil, fmt.Errorf("synthesis artifact: consensus point %q: %w", cp.Point, err)
		}
	}
	return &a, nil
}

// ExtractCrossExam parses the round-3 judge output.
func ExtractCrossExam(text string) (*CrossExam, error) {
	raw, err := Normalize(text)
	if err != nil {
		return nil, fmt.Errorf("cross-exam artifact: %w", err)
	}
	probe := gjson.GetManyBytes(raw, "challenges", "rebuttals", "unresolved")
	if !probe[0].Exists() && !probe[1].Exists() && !probe[2].Exists() {
		return nil, fmt.Errorf("cross-exam artifact: none of %q, %q, %q present", "challenges", "rebuttals", "unresolved")
	}
	var a CrossExam
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("cross-exam artifact: %w", err)
	}
	return &a, nil
}

// ExtractVerdict parses the round-4 judge output.
func ExtractVerdict(text string) (*Verdict, error) {
	raw, err := Normalize(text)
	if err != nil {
		return nil, fmt.Errorf("verdict artifact: %w", err)
	}
	if !gjson.GetBytes(raw, "recommendation").Exists() {
		return nil, fmt.Errorf("verdict artifact: missing required field %q", "recommendation")
	}
	var a Verdict
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("verdict artifact: %w", err)
	}
	if a.Recommendation == "" {
		return nil, fmt.Errorf("verdict artifact: empty recommendation")
	}
	if err := checkConfidence(a.Confidence); err != nil {
		return nil, fmt.Errorf("verdict artifact: %w", err)
	}
	return &a, nil
}

func checkConfidence(c float64) error {
	if c < 0 || c > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", c)
	}
	return nil
}
