// Package event provides the lifecycle notification channel for the
// consultation engine. Publication is fire-and-forget and at-most-once per
// subscriber: the engine never blocks on, or is affected by, subscriber
// behavior.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type classifies a lifecycle event.
type Type string

// Lifecycle event types emitted during a consultation.
const (
	TypePhaseChanged     Type = "phase_changed"
	TypeCostEstimated    Type = "cost_estimated"
	TypeConsentResolved  Type = "consent_resolved"
	TypeAgentStarted     Type = "agent_started"
	TypeAgentFinished    Type = "agent_finished"
	TypeRoundCompleted   Type = "round_completed"
	TypeBreakerTripped   Type = "breaker_tripped"
	TypeSessionCompleted Type = "session_completed"
)

// Event is one lifecycle notification. After publication it should be
// treated as immutable. Optional fields are zero when not applicable.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase,omitempty"`
	Round     int       `json:"round,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	CostUSD   float64   `json:"cost_usd,omitempty"`
}

// New creates an event with a fresh id and UTC timestamp.
func New(t Type, sessionID string) Event {
	return Event{ID: uuid.NewString(), Type: t, SessionID: sessionID, Timestamp: time.Now().UTC()}
}

// BusOptions configures a Bus.
type BusOptions struct {
	// BufferSize sets per-subscriber channel buffering. Events beyond a
	// full buffer are dropped for that subscriber.
	BufferSize int
}

// Bus broadcasts events to passive subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event (at-most-once delivery).
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	buffer int
	closed bool
}

// NewBus constructs a Bus with optional overrides.
func NewBus(optFns ...func(o *BusOptions)) *Bus {
	opts := BusOptions{BufferSize: 64}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{buffer: opts.BufferSize}
}

// Subscribe registers a new listener and returns its receive channel. The
// channel is closed when the bus is closed.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish broadcasts the event to all subscribers without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default: // slow subscriber: drop
		}
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
