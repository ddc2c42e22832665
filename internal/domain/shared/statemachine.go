package shared

// StateMachine holds a closed transition table for a status type.
// Statuses without outgoing edges are terminal.
type StateMachine[S ~string] struct {
	entity      string
	transitions map[S][]S
}

// NewStateMachine creates a state machine for the named entity
func NewStateMachine[S ~string](entity string, transitions map[S][]S) *StateMachine[S] {
	return &StateMachine[S]{entity: entity, transitions: transitions}
}

// CanTransition reports whether from -> to is in the table
func (m *StateMachine[S]) CanTransition(from, to S) bool {
	for _, next := range m.transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns an InvalidTransitionError unless from -> to is legal
func (m *StateMachine[S]) Transition(from, to S) error {
	if !m.CanTransition(from, to) {
		return &InvalidTransitionError{
			Entity:    m.entity,
			Current:   string(from),
			Requested: string(to),
		}
	}
	return nil
}

// IsTerminal reports whether no transition leaves s
func (m *StateMachine[S]) IsTerminal(s S) bool {
	return len(m.transitions[s]) == 0
}

// Known reports whether s appears in the table as a source state
func (m *StateMachine[S]) Known(s S) bool {
	_, ok := m.transitions[s]
	return ok
}
