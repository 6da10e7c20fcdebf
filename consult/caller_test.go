package consult

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tribunal/cost"
	"github.com/hupe1980/tribunal/logging"
	"github.com/hupe1980/tribunal/model"
)

// scriptedModel replays a fixed sequence of outcomes, one per call. Unlike
// model.MockModel it can fail and then succeed, which is what retry tests need.
type scriptedModel struct {
	name     string
	outcomes []scriptedOutcome
	calls    int
}

type scriptedOutcome struct {
	text string
	err  error
}

func (m *scriptedModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.calls >= len(m.outcomes) {
		return nil, fmt.Errorf("scripted model exhausted after %d calls", m.calls)
	}
	o := m.outcomes[m.calls]
	m.calls++
	if o.err != nil {
		return nil, o.err
	}
	return &model.Response{Text: o.text, FinishReason: "stop", Usage: &model.TokenUsage{InputTokens: 10, OutputTokens: 5}}, nil
}

func (m *scriptedModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "mock"}
}

func newTestCaller(ledger *cost.Ledger) *caller {
	return &caller{
		ledger:    ledger,
		logger:    logging.NoOpLogger{},
		backoffFn: func(int) time.Duration { return 0 },
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"read tcp: connection reset by peer", true},
		{"ECONNRESET", true},
		{"request timed out", true},
		{"429 Too Many Requests", true},
		{"Rate Limit exceeded, retry later", true},
		{"503 Service Unavailable", true},
		{"upstream server is Overloaded", true},
		{"remote end hung up unexpectedly", true},
		{"invalid api key", false},
		{"model not found", false},
		{"context length exceeded", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(errors.New(tt.msg)))
		})
	}
}

func TestCallerRetriesThenSucceeds(t *testing.T) {
	ledger := cost.NewLedger()
	c := newTestCaller(ledger)

	m := &scriptedModel{name: "flaky", outcomes: []scriptedOutcome{
		{err: errors.New("connection reset by peer")},
		{err: errors.New("429 too many requests")},
		{text: "finally"},
	}}

	resp, err := c.call(context.Background(), m, model.Request{Messages: []model.Message{{Role: "user", Text: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "finally", resp.Text)
	assert.Equal(t, 3, m.calls)
}

func TestCallerRecordsEveryAttempt(t *testing.T) {
	ledger := cost.NewLedger()
	c := newTestCaller(ledger)

	m := &scriptedModel{name: "flaky", outcomes: []scriptedOutcome{
		{err: errors.New("request timed out")},
		{text: "ok"},
	}}

	_, err := c.call(context.Background(), m, model.Request{Messages: []model.Message{{Role: "user", Text: "hi"}}})
	require.NoError(t, err)

	entries := ledger.Entries()
	require.Len(t, entries, 2)
	assert.False(t, entries[0].OK)
	assert.Contains(t, entries[0].Error, "timed out")
	assert.True(t, entries[1].OK)
	assert.Equal(t, "flaky", entries[0].Model)
}

func TestCallerExhaustsRetries(t *testing.T) {
	ledger := cost.NewLedger()
	c := newTestCaller(ledger)

	m := &scriptedModel{name: "down", outcomes: []scriptedOutcome{
		{err: errors.New("503 service unavailable")},
		{err: errors.New("503 service unavailable")},
		{err: errors.New("503 service unavailable")},
		{text: "never reached"},
	}}

	_, err := c.call(context.Background(), m, model.Request{Messages: []model.Message{{Role: "user", Text: "hi"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, maxAttempts, m.calls)
	assert.Len(t, ledger.Entries(), maxAttempts)
}

func TestCallerNonRetryableFailsFast(t *testing.T) {
	ledger := cost.NewLedger()
	c := newTestCaller(ledger)

	m := &scriptedModel{name: "broken", outcomes: []scriptedOutcome{
		{err: errors.New("invalid api key")},
		{text: "never reached"},
	}}

	_, err := c.call(context.Background(), m, model.Request{Messages: []model.Message{{Role: "user", Text: "hi"}}})
	require.Error(t, err)
	assert.Equal(t, 1, m.calls)
	assert.Len(t, ledger.Entries(), 1)
}

func TestCallerContextCancelledDuringBackoff(t *testing.T) {
	ledger := cost.NewLedger()
	c := newTestCaller(ledger)
	c.backoffFn = func(int) time.Duration { return time.Second }

	m := &scriptedModel{name: "flaky", outcomes: []scriptedOutcome{
		{err: errors.New("connection reset by peer")},
		{text: "never reached"},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.call(ctx, m, model.Request{Messages: []model.Message{{Role: "user", Text: "hi"}}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, m.calls)
}

func TestCallerDefaultBackoffDoubles(t *testing.T) {
	c := &caller{}
	assert.Equal(t, time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 4*time.Second, c.backoff(3))
}
