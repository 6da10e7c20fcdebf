// Package phase implements the authoritative control-flow graph for the
// consultation lifecycle: a fixed-edge state machine with an append-only
// transition history, snapshot/restore support and a phase-to-round mapping.
package phase

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is one state of the consultation lifecycle.
type Phase string

// Lifecycle phases. Complete and Aborted are terminal.
const (
	Idle            Phase = "idle"
	Estimating      Phase = "estimating"
	AwaitingConsent Phase = "awaiting_consent"
	Independent     Phase = "independent"
	Synthesis       Phase = "synthesis"
	CrossExam       Phase = "cross_exam"
	Verdict         Phase = "verdict"
	Complete        Phase = "complete"
	Aborted         Phase = "aborted"
)

// edges is the fixed allowed-transition table. Terminal phases have no entry.
// Synthesis -> Complete models early termination when the consultation is
// configured for fewer than four rounds.
var edges = map[Phase][]Phase{
	Idle:            {Estimating, Aborted},
	Estimating:      {AwaitingConsent, Aborted},
	AwaitingConsent: {Independent, Aborted},
	Independent:     {Synthesis, Aborted},
	Synthesis:       {CrossExam, Complete, Aborted},
	CrossExam:       {Verdict, Aborted},
	Verdict:         {Complete, Aborted},
}

// rounds maps each phase to its debate round number. Phases outside the
// debate (including Complete) map to zero.
var rounds = map[Phase]int{
	Idle:            0,
	Estimating:      0,
	AwaitingConsent: 0,
	Independent:     1,
	Synthesis:       2,
	CrossExam:       3,
	Verdict:         4,
	Complete:        0,
	Aborted:         0,
}

// IsTerminal reports whether p accepts no further transitions.
func IsTerminal(p Phase) bool { return p == Complete || p == Aborted }

// Transition is one append-only record of a state change.
type Transition struct {
	ID        string    `json:"id"`
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Machine is the consultation phase state machine. It is safe for concurrent
// use, though the engine drives it from a single goroutine.
//
// Contract:
//   - Transitions occur only along the fixed edge table
//   - Terminal phases reject every transition
//   - History is append-only and never mutated
type Machine struct {
	mu      sync.Mutex
	current Phase
	history []Transition
}

// NewMachine returns a Machine in the Idle phase with empty history.
func NewMachine() *Machine {
	return &Machine{current: Idle}
}

// Current returns the current phase.
func (m *Machine) Current() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition moves the machine to the target phase, appending a history
// record. It returns an error naming the attempted pair when the edge is not
// in the fixed table, or just the terminal phase when no transition is
// possible at all.
func (m *Machine) Transition(to Phase, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if IsTerminal(m.current) {
		return fmt.Errorf("phase %s is terminal", m.current)
	}

	allowed := false
	for _, t := range edges[m.current] {
		if t == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid phase transition %s -> %s", m.current, to)
	}

	m.history = append(m.history, Transition{
		ID:        uuid.NewString(),
		From:      m.current,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	m.current = to
	return nil
}

// CanTransition reports whether a transition to the target phase would succeed.
func (m *Machine) CanTransition(to Phase) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if IsTerminal(m.current) {
		return false
	}
	for _, t := range edges[m.current] {
		if t == to {
			return true
		}
	}
	return false
}

// Round returns the debate round number for the current phase. Round number
// is a pure function of phase.
func (m *Machine) Round() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return rounds[m.current]
}

// RoundOf returns the debate round number for an arbitrary phase.
func RoundOf(p Phase) int { return rounds[p] }

// InRound reports whether the machine is currently inside one of the four
// debate rounds (Independent, Synthesis, CrossExam, Verdict).
func (m *Machine) InRound() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.current {
	case Independent, Synthesis, CrossExam, Verdict:
		return true
	default:
		return false
	}
}

// History returns a defensive copy of the transition history.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := make([]Transition, len(m.history))
	copy(history, m.history)
	return history
}

// Reset returns the machine to Idle and clears the history.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Idle
	m.history = nil
}

// snapshot is the serialized machine state.
type snapshot struct {
	Current Phase        `json:"current"`
	History []Transition `json:"history"`
}

// Snapshot serializes the current phase and full transition history.
func (m *Machine) Snapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return json.Marshal(snapshot{Current: m.current, History: m.history})
}

// Restore reconstructs a Machine from a Snapshot payload. The restored
// machine reproduces the current phase and transition history exactly.
func Restore(data []byte) (*Machine, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to restore phase machine: %w", err)
	}
	if s.Current == "" {
		return nil, fmt.Errorf("failed to restore phase machine: empty current phase")
	}
	if _, known := rounds[s.Current]; !known {
		return nil, fmt.Errorf("failed to restore phase machine: unknown phase %q", s.Current)
	}
	return &Machine{current: s.Current, history: s.History}, nil
}
