package workflow

// State represents a verification session state
type State string

const (
	StateNotStarted   State = "not_started"
	StateInProgress   State = "in_progress"
	StatePaused       State = "paused"
	StateCompleted    State = "completed"
	StateAutoApproved State = "auto_approved"
	StateExpired      State = "expired"
	StateCancelled    State = "cancelled"
)

var validStates = map[State]bool{
	StateNotStarted:   true,
	StateInProgress:   true,
	StatePaused:       true,
	StateCompleted:    true,
	StateAutoApproved: true,
	StateExpired:      true,
	StateCancelled:    true,
}

var terminalStates = map[State]bool{
	StateCompleted:    true,
	StateAutoApproved: true,
	StateExpired:      true,
	StateCancelled:    true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid session state
func (s State) IsValid() bool {
	return validStates[s]
}
