package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Message is a single conversational turn sent to a model. Role is one of
// "user" or "assistant"; system instructions travel separately on Request.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request captures the normalized model input produced by the consultation
// engine. System carries role instructions; Messages the conversational turns.
type Request struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int64     `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
// The engine surfaces tool calls without executing them.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// TokenUsage captures token usage statistics for a response. CacheReadTokens
// counts prompt tokens served from a provider-side prompt cache, which are
// priced at a discount by the cost ledger.
type TokenUsage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	CacheReadTokens int `json:"cache_read_tokens,omitempty"`
}

// Total returns the combined input and output token count.
func (u TokenUsage) Total() int { return u.InputTokens + u.OutputTokens }

// Response is the final result of a generation call. Usage may be nil when
// the provider does not report token counts.
type Response struct {
	Text         string      `json:"text"`
	ToolCalls    []ToolCall  `json:"tool_calls,omitempty"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the consultation engine to
// drive generation. Implementations must be safe for concurrent use.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Resolver maps a model identifier (e.g. "claude-3-5-sonnet-20241022") to a
// concrete Model. Injected into the engine so it carries no vendor knowledge.
type Resolver func(modelID string) (Model, error)

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Responses are matched by substring against the last user message; errors
// can be queued per matching substring to script failure scenarios.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	errs      map[string]error
	usage     TokenUsage
	calls     []Request
}

// NewMockModel constructs a MockModel with a default nonzero token usage so
// ledger and breaker paths are exercised in tests.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock", SupportsTools: true},
		responses: make(map[string]string),
		errs:      make(map[string]error),
		usage:     TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

// AddResponse registers a canned completion returned when the last message
// contains the given substring.
func (m *MockModel) AddResponse(substr, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[substr] = response
}

// AddError registers an error returned when the last message contains the
// given substring. Errors take precedence over responses.
func (m *MockModel) AddError(substr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[substr] = err
}

// SetUsage overrides the token usage reported on every response.
func (m *MockModel) SetUsage(u TokenUsage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = u
}

// Calls returns a copy of all requests seen so far.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]Request, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	last := req.Messages[len(req.Messages)-1].Text

	for substr, err := range m.errs {
		if strings.Contains(last, substr) {
			return nil, err
		}
	}

	text := ""
	for substr, resp := range m.responses {
		if strings.Contains(last, substr) {
			text = resp
			break
		}
	}
	if text == "" {
		text = fmt.Sprintf("Mock response to: %s", last)
	}

	usage := m.usage
	return &Response{Text: text, FinishReason: "stop", Usage: &usage}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
