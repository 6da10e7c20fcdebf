package cost

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/tribunal/model"
)

// Entry is one recorded provider call attempt, successful or not.
// Entries are immutable once appended.
type Entry struct {
	ID              string        `json:"id"`
	Timestamp       time.Time     `json:"timestamp"`
	Model           string        `json:"model"`
	Latency         time.Duration `json:"latency"`
	InputTokens     int           `json:"input_tokens"`
	OutputTokens    int           `json:"output_tokens"`
	CacheReadTokens int           `json:"cache_read_tokens,omitempty"`
	CostUSD         float64       `json:"cost_usd"`
	OK              bool          `json:"ok"`
	Error           string        `json:"error,omitempty"`
}

// Summary aggregates the ledger.
type Summary struct {
	Calls        int           `json:"calls"`
	Failures     int           `json:"failures"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	TotalTokens  int           `json:"total_tokens"`
	CostUSD      float64       `json:"cost_usd"`
	TotalLatency time.Duration `json:"total_latency"`
}

// LedgerOptions configures a Ledger.
type LedgerOptions struct {
	// Pricing overrides the default per-model price table.
	Pricing map[string]Pricing
}

// Ledger is an append-only log of every provider call's cost, latency and
// outcome. It is an explicitly constructed service injected into the engine,
// never a process-wide singleton. Safe for concurrent use; writes are
// serialized by a mutex.
type Ledger struct {
	mu      sync.Mutex
	pricing map[string]Pricing
	entries []Entry
}

// NewLedger constructs a Ledger with optional overrides.
func NewLedger(optFns ...func(o *LedgerOptions)) *Ledger {
	opts := LedgerOptions{Pricing: DefaultTable()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Ledger{pricing: opts.Pricing}
}

// Record appends one call attempt. Token counts of zero are recorded as-is
// when the provider reports no usage. The computed entry is returned.
func (l *Ledger) Record(modelID string, latency time.Duration, usage model.TokenUsage, callErr error) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		Model:           modelID,
		Latency:         latency,
		InputTokens:     usage.InputTokens,
		OutputTokens:    usage.OutputTokens,
		CacheReadTokens: usage.CacheReadTokens,
		CostUSD:         priceFor(l.pricing, modelID).Price(usage.InputTokens, usage.OutputTokens, usage.CacheReadTokens),
		OK:              callErr == nil,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	l.entries = append(l.entries, entry)
	return entry
}

// Entries returns a defensive copy of all recorded entries.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// Summary aggregates cost, tokens and latency across all entries.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s Summary
	for _, e := range l.entries {
		s.Calls++
		if !e.OK {
			s.Failures++
		}
		s.InputTokens += e.InputTokens
		s.OutputTokens += e.OutputTokens
		s.CostUSD += e.CostUSD
		s.TotalLatency += e.Latency
	}
	s.TotalTokens = s.InputTokens + s.OutputTokens
	return s
}
