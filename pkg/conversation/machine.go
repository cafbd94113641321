package conversation

import (
	"time"

	"github.com/google/uuid"
)

// legalTransitions is the exhaustive lifecycle transition table. Any pair not
// listed is illegal. The machine is cyclic: resolved has outbound edges back
// to idle and question_raised so conversations can reopen.
var legalTransitions = map[State][]State{
	StateIdle:           {StateQuestionRaised, StateClarifying},
	StateQuestionRaised: {StateClarifying, StateOwnerAssigned, StateResolved},
	StateClarifying:     {StateQuestionRaised, StateOwnerAssigned, StateResolved},
	StateOwnerAssigned:  {StateInProgress, StateClarifying, StateResolved},
	StateInProgress:     {StateResolved, StateClarifying},
	StateResolved:       {StateIdle, StateQuestionRaised},
}

// Machine holds the authoritative lifecycle state of one conversation and
// enforces legal transitions. A Machine is owned exclusively by the worker
// processing the conversation's events; it is not safe for concurrent use.
type Machine struct {
	current         State
	transitions     []StateTransition
	stateTimestamps map[State]time.Time
	now             func() time.Time
}

// NewMachine creates a state machine in the initial idle state.
// A nil nowFn defaults to time.Now.
func NewMachine(nowFn func() time.Time) *Machine {
	return NewMachineFrom(StateIdle, nil, nil, nowFn)
}

// NewMachineFrom rehydrates a state machine from persisted conversation
// state: the current state, the per-state entry timestamps, and the prior
// transition history. Used by the processing worker to rebuild the machine
// before attempting a transition.
func NewMachineFrom(current State, stateTimestamps map[State]time.Time, history []StateTransition, nowFn func() time.Time) *Machine {
	if current == "" {
		current = StateIdle
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	ts := make(map[State]time.Time, len(stateTimestamps))
	for state, entered := range stateTimestamps {
		ts[state] = entered
	}
	transitions := make([]StateTransition, len(history))
	copy(transitions, history)

	return &Machine{
		current:         current,
		transitions:     transitions,
		stateTimestamps: ts,
		now:             nowFn,
	}
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	return m.current
}

// CanTransition reports whether moving to the given state is legal from the
// current state.
func (m *Machine) CanTransition(to State) bool {
	for _, allowed := range legalTransitions[m.current] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo attempts a transition to the given state. Returns nil and
// leaves the machine unchanged when the transition is illegal - illegality is
// an expected, frequent outcome, not an error. On success it appends a
// StateTransition to the history, updates the current state, and records the
// entry timestamp for the new state.
func (m *Machine) TransitionTo(to State, trigger string, metadata map[string]string) *StateTransition {
	if !m.CanTransition(to) {
		return nil
	}

	now := m.now()
	transition := StateTransition{
		ID:        uuid.New().String(),
		From:      m.current,
		To:        to,
		Trigger:   trigger,
		Timestamp: now,
		Metadata:  metadata,
	}

	m.transitions = append(m.transitions, transition)
	m.current = to
	m.stateTimestamps[to] = now

	return &transition
}

// TimeInState returns the elapsed time since the given state was last
// entered, or 0 if the state was never entered. Pass the empty state to query
// the current state.
func (m *Machine) TimeInState(state State) time.Duration {
	if state == "" {
		state = m.current
	}
	entered, ok := m.stateTimestamps[state]
	if !ok {
		return 0
	}
	return m.now().Sub(entered)
}

// StateTimestamps returns a copy of the per-state entry timestamps.
func (m *Machine) StateTimestamps() map[State]time.Time {
	ts := make(map[State]time.Time, len(m.stateTimestamps))
	for state, entered := range m.stateTimestamps {
		ts[state] = entered
	}
	return ts
}

// History returns the machine's transition history in order. The returned
// slice is a copy; the internal history is append-only.
func (m *Machine) History() []StateTransition {
	history := make([]StateTransition, len(m.transitions))
	copy(history, m.transitions)
	return history
}
