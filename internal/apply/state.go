package apply

import (
	"fmt"

	"github.com/jonathan/apply-agent/internal/types"
)

// State is the position of one application attempt in the driver.
type State string

const (
	StateNotStarted     State = "not_started"
	StateNavigating     State = "navigating"
	StateNativeFlow     State = "native_flow"
	StateGenericFlow    State = "generic_flow"
	StateSubmitted      State = "submitted"
	StateReviewRequired State = "review_required"
	StateFailed         State = "failed"
)

// IsTerminal reports whether the attempt has finished.
func (s State) IsTerminal() bool {
	return s == StateSubmitted || s == StateReviewRequired || s == StateFailed
}

var stateTransitions = map[State][]State{
	StateNotStarted:  {StateNavigating, StateReviewRequired, StateFailed},
	StateNavigating:  {StateNativeFlow, StateGenericFlow, StateReviewRequired, StateFailed},
	StateNativeFlow:  {StateSubmitted, StateReviewRequired, StateFailed},
	StateGenericFlow: {StateSubmitted, StateReviewRequired, StateFailed},
}

// TransitionError reports an illegal state change.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal driver transition %s -> %s", e.From, e.To)
}

// machine tracks the state of a single attempt.
type machine struct {
	state State
}

func newMachine() *machine {
	return &machine{state: StateNotStarted}
}

func (m *machine) transition(to State) error {
	for _, next := range stateTransitions[m.state] {
		if next == to {
			m.state = to
			return nil
		}
	}
	return &TransitionError{From: m.state, To: to}
}

// StatusFor maps a terminal state to the application status it produces.
func StatusFor(s State) types.ApplicationStatus {
	switch s {
	case StateSubmitted:
		return types.StatusSubmitted
	case StateReviewRequired:
		return types.StatusReviewed
	default:
		return types.StatusFailed
	}
}
