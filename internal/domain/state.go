package domain

import "fmt"

// InvocationState tracks one provider through a consultation.
type InvocationState string

const (
	StatePending   InvocationState = "pending"
	StateRunning   InvocationState = "running"
	StateSucceeded InvocationState = "succeeded"
	StateTimedOut  InvocationState = "timed_out"
	StateFailed    InvocationState = "failed"
	StateRetrying  InvocationState = "retrying"
	// StateSkipped is terminal for providers that were never dispatched
	// (unavailable at probe time).
	StateSkipped InvocationState = "skipped"
)

var stateTransitions = map[InvocationState][]InvocationState{
	StatePending:   {StateRunning, StateSkipped, StateTimedOut},
	StateRunning:   {StateSucceeded, StateTimedOut, StateFailed},
	StateFailed:    {StateRetrying},
	StateTimedOut:  {},
	StateRetrying:  {StateRunning, StateTimedOut},
	StateSucceeded: {},
	StateSkipped:   {},
}

// CanTransition reports whether moving from s to next is legal.
func (s InvocationState) CanTransition(next InvocationState) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is expected. Failed is
// terminal unless the rate-limit fallback moves it to retrying.
func (s InvocationState) Terminal() bool {
	switch s {
	case StateSucceeded, StateTimedOut, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// Transition validates and returns next.
func (s InvocationState) Transition(next InvocationState) (InvocationState, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("illegal invocation transition %s -> %s", s, next)
	}
	return next, nil
}

// StateForStatus maps a finished attempt's status to its state.
func StateForStatus(status Status) InvocationState {
	switch status {
	case StatusSuccess:
		return StateSucceeded
	case StatusTimeout:
		return StateTimedOut
	default:
		return StateFailed
	}
}
