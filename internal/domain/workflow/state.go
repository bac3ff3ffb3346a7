package workflow

// State represents a document status in the approval lifecycle
type State string

const (
	StateDraft    State = "draft"
	StateReview   State = "review"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

var validStates = map[State]bool{
	StateDraft:    true,
	StateReview:   true,
	StateApproved: true,
	StateRejected: true,
}

// Approved is the only state with no outgoing edges. Rejected documents
// can be resubmitted, so rejected is not terminal.
var terminalStates = map[State]bool{
	StateApproved: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid document status
func (s State) IsValid() bool {
	return validStates[s]
}
