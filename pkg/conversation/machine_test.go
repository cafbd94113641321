package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allStates enumerates every lifecycle state for exhaustive legality checks.
var allStates = []State{
	StateIdle, StateQuestionRaised, StateClarifying,
	StateOwnerAssigned, StateInProgress, StateResolved,
}

// fixedClock returns a now func pinned to base plus a controllable offset.
func fixedClock(base time.Time) (func() time.Time, *time.Duration) {
	offset := new(time.Duration)
	return func() time.Time { return base.Add(*offset) }, offset
}

func TestNewMachine(t *testing.T) {
	m := NewMachine(nil)
	assert.Equal(t, StateIdle, m.Current())
	assert.Empty(t, m.History())
}

func TestTransitionLegality(t *testing.T) {
	// Every (from, to) pair not in the legal table must be rejected with the
	// state left unchanged.
	for _, from := range allStates {
		for _, to := range allStates {
			legal := false
			for _, allowed := range legalTransitions[from] {
				if allowed == to {
					legal = true
				}
			}

			m := NewMachineFrom(from, nil, nil, nil)
			transition := m.TransitionTo(to, "test", nil)

			if legal {
				require.NotNil(t, transition, "expected %s -> %s to be legal", from, to)
				assert.Equal(t, to, m.Current())
				assert.Equal(t, from, transition.From)
				assert.Equal(t, to, transition.To)
			} else {
				assert.Nil(t, transition, "expected %s -> %s to be illegal", from, to)
				assert.Equal(t, from, m.Current(), "illegal transition must not change state")
			}
		}
	}
}

func TestTransitionAudit(t *testing.T) {
	// After N successful transitions the history has length N and each
	// entry's From equals the previous entry's To.
	m := NewMachine(nil)

	path := []State{
		StateQuestionRaised, StateOwnerAssigned, StateInProgress,
		StateResolved, StateQuestionRaised, StateClarifying,
	}
	for _, to := range path {
		require.NotNil(t, m.TransitionTo(to, "test", nil))
	}

	history := m.History()
	require.Len(t, history, len(path))

	assert.Equal(t, StateIdle, history[0].From)
	for i, transition := range history {
		assert.Equal(t, path[i], transition.To)
		if i > 0 {
			assert.Equal(t, history[i-1].To, transition.From)
		}
		if i > 0 {
			assert.False(t, transition.Timestamp.Before(history[i-1].Timestamp))
		}
	}
}

func TestTransitionRecordsMetadata(t *testing.T) {
	m := NewMachine(nil)

	transition := m.TransitionTo(StateQuestionRaised, "message:question", map[string]string{
		"message_ts": "1700000000.000100",
	})
	require.NotNil(t, transition)
	assert.Equal(t, "message:question", transition.Trigger)
	assert.Equal(t, "1700000000.000100", transition.Metadata["message_ts"])
	assert.NotEmpty(t, transition.ID)
}

func TestTimeInState(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now, offset := fixedClock(base)

	m := NewMachine(now)

	t.Run("never entered returns zero", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), m.TimeInState(StateResolved))
		// idle has no recorded entry either - the machine starts there
		// without a transition.
		assert.Equal(t, time.Duration(0), m.TimeInState(""))
	})

	t.Run("measures since last entry", func(t *testing.T) {
		require.NotNil(t, m.TransitionTo(StateQuestionRaised, "test", nil))

		*offset = 25 * time.Hour
		assert.Equal(t, 25*time.Hour, m.TimeInState(StateQuestionRaised))
		assert.Equal(t, 25*time.Hour, m.TimeInState(""))
	})

	t.Run("re-entry resets the clock", func(t *testing.T) {
		require.NotNil(t, m.TransitionTo(StateClarifying, "test", nil))
		require.NotNil(t, m.TransitionTo(StateQuestionRaised, "test", nil))

		*offset += 30 * time.Minute
		assert.Equal(t, 30*time.Minute, m.TimeInState(StateQuestionRaised))
	})
}

func TestNewMachineFrom(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now, offset := fixedClock(base)

	entered := map[State]time.Time{
		StateQuestionRaised: base.Add(-24 * time.Hour),
	}
	history := []StateTransition{
		{From: StateIdle, To: StateQuestionRaised, Trigger: "message:question", Timestamp: base.Add(-24 * time.Hour)},
	}

	m := NewMachineFrom(StateQuestionRaised, entered, history, now)

	assert.Equal(t, StateQuestionRaised, m.Current())
	assert.Equal(t, 24*time.Hour, m.TimeInState(StateQuestionRaised))
	require.Len(t, m.History(), 1)

	// Hydrated machines keep accepting transitions with a contiguous audit chain.
	*offset = time.Hour
	transition := m.TransitionTo(StateOwnerAssigned, "message:update", nil)
	require.NotNil(t, transition)
	assert.Equal(t, StateQuestionRaised, transition.From)
	assert.Len(t, m.History(), 2)
}

func TestMachineCopiesAreIndependent(t *testing.T) {
	m := NewMachine(nil)
	require.NotNil(t, m.TransitionTo(StateQuestionRaised, "test", nil))

	history := m.History()
	history[0].Trigger = "mutated"
	assert.Equal(t, "test", m.History()[0].Trigger)

	ts := m.StateTimestamps()
	ts[StateResolved] = time.Now()
	assert.Equal(t, time.Duration(0), m.TimeInState(StateResolved))
}
