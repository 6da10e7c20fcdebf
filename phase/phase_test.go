package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allPhases = []Phase{Idle, Estimating, AwaitingConsent, Independent, Synthesis, CrossExam, Verdict, Complete, Aborted}

// machineAt walks a machine along a valid path to the requested phase.
func machineAt(t *testing.T, target Phase) *Machine {
	t.Helper()
	paths := map[Phase][]Phase{
		Idle:            {},
		Estimating:      {Estimating},
		AwaitingConsent: {Estimating, AwaitingConsent},
		Independent:     {Estimating, AwaitingConsent, Independent},
		Synthesis:       {Estimating, AwaitingConsent, Independent, Synthesis},
		CrossExam:       {Estimating, AwaitingConsent, Independent, Synthesis, CrossExam},
		Verdict:         {Estimating, AwaitingConsent, Independent, Synthesis, CrossExam, Verdict},
		Complete:        {Estimating, AwaitingConsent, Independent, Synthesis, CrossExam, Verdict, Complete},
		Aborted:         {Aborted},
	}
	m := NewMachine()
	for _, p := range paths[target] {
		require.NoError(t, m.Transition(p, ""))
	}
	require.Equal(t, target, m.Current())
	return m
}

func TestMachine_TransitionTable(t *testing.T) {
	allowed := map[Phase][]Phase{
		Idle:            {Estimating, Aborted},
		Estimating:      {AwaitingConsent, Aborted},
		AwaitingConsent: {Independent, Aborted},
		Independent:     {Synthesis, Aborted},
		Synthesis:       {CrossExam, Complete, Aborted},
		CrossExam:       {Verdict, Aborted},
		Verdict:         {Complete, Aborted},
		Complete:        {},
		Aborted:         {},
	}

	for from, targets := range allowed {
		ok := map[Phase]bool{}
		for _, to := range targets {
			ok[to] = true
		}
		for _, to := range allPhases {
			m := machineAt(t, from)
			err := m.Transition(to, "test")
			if ok[to] {
				assert.NoErrorf(t, err, "%s -> %s should be allowed", from, to)
				assert.Equal(t, to, m.Current())
			} else {
				assert.Errorf(t, err, "%s -> %s should be rejected", from, to)
				assert.Equal(t, from, m.Current(), "failed transition must not change phase")
			}
		}
	}
}

func TestMachine_InvalidTransitionNamesPair(t *testing.T) {
	m := NewMachine()
	err := m.Transition(Verdict, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idle")
	assert.Contains(t, err.Error(), "verdict")
}

func TestMachine_TerminalPhasesRejectEverything(t *testing.T) {
	for _, terminal := range []Phase{Complete, Aborted} {
		for _, to := range allPhases {
			m := machineAt(t, terminal)
			err := m.Transition(to, "")
			require.Errorf(t, err, "%s must reject transition to %s", terminal, to)
			assert.Contains(t, err.Error(), "terminal")
			assert.Contains(t, err.Error(), string(terminal))
		}
	}
}

func TestMachine_RoundMapping(t *testing.T) {
	expected := map[Phase]int{
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
	for p, round := range expected {
		m := machineAt(t, p)
		assert.Equalf(t, round, m.Round(), "round for phase %s", p)
	}
}

func TestMachine_InRound(t *testing.T) {
	inRound := map[Phase]bool{Independent: true, Synthesis: true, CrossExam: true, Verdict: true}
	for _, p := range allPhases {
		m := machineAt(t, p)
		assert.Equalf(t, inRound[p], m.InRound(), "InRound for phase %s", p)
	}
}

func TestMachine_HistoryAppendOnly(t *testing.T) {
	m := machineAt(t, Independent)
	history := m.History()
	require.Len(t, history, 3)
	assert.Equal(t, Idle, history[0].From)
	assert.Equal(t, Estimating, history[0].To)
	assert.Equal(t, Independent, history[2].To)
	assert.NotEmpty(t, history[0].ID)

	// Mutating the returned slice must not affect the machine.
	history[0].To = Aborted
	assert.Equal(t, Estimating, m.History()[0].To)
}

func TestMachine_TransitionReason(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Transition(Aborted, "all agents failed"))
	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, "all agents failed", history[0].Reason)
}

func TestMachine_SnapshotRestore(t *testing.T) {
	m := machineAt(t, CrossExam)
	data, err := m.Snapshot()
	require.NoError(t, err)

	restored, err := Restore(data)
	require.NoError(t, err)
	assert.Equal(t, m.Current(), restored.Current())
	assert.Len(t, restored.History(), len(m.History()))
	assert.Equal(t, m.History(), restored.History())

	// Restored machine keeps enforcing the edge table.
	assert.Error(t, restored.Transition(Complete, ""))
	assert.NoError(t, restored.Transition(Verdict, ""))
}

func TestRestore_RejectsGarbage(t *testing.T) {
	_, err := Restore([]byte("not json"))
	assert.Error(t, err)

	_, err = Restore([]byte(`{"current":"warp","history":[]}`))
	assert.Error(t, err)

	_, err = Restore([]byte(`{"history":[]}`))
	assert.Error(t, err)
}

func TestMachine_Reset(t *testing.T) {
	m := machineAt(t, Synthesis)
	m.Reset()
	assert.Equal(t, Idle, m.Current())
	assert.Empty(t, m.History())
	assert.NoError(t, m.Transition(Estimating, ""))
}

func TestCanTransition(t *testing.T) {
	m := NewMachine()
	assert.True(t, m.CanTransition(Estimating))
	assert.False(t, m.CanTransition(Verdict))

	m = machineAt(t, Complete)
	for _, p := range allPhases {
		assert.False(t, m.CanTransition(p))
	}
}
