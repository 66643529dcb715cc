package models

import (
	"github.com/pkg/errors"
)

// validTransitions maps from-state to allowed to-states
var validTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusPending: {
		JobStatusRunning: true, // Pending → Running (successful submission)
		JobStatusFailed:  true, // Pending → Failed (submission rejected)
	},
	JobStatusRunning: {
		JobStatusCompleted: true, // Running → Completed (progress reached 100)
		JobStatusFailed:    true, // Running → Failed (deadline, hardware failure)
		JobStatusPending:   true, // Running → Pending (cancel returns the job to the queue)
	},
	// Terminal states (no transitions allowed)
	JobStatusCompleted: {},
	JobStatusFailed:    {},
}

// ValidateTransition checks if a state transition is valid
func ValidateTransition(from, to JobStatus) error {
	allowedStates, exists := validTransitions[from]
	if !exists {
		return errors.Wrapf(ErrInvalidState, "unknown source state %q", from)
	}

	if !allowedStates[to] {
		return errors.Wrapf(ErrInvalidState, "transition from %s to %s", from, to)
	}

	return nil
}

// IsTerminalState returns true if the state is terminal (no further transitions)
func IsTerminalState(state JobStatus) bool {
	return state == JobStatusCompleted || state == JobStatusFailed
}

// IsKnownState reports whether state belongs to the job lifecycle
func IsKnownState(state JobStatus) bool {
	_, ok := validTransitions[state]
	return ok
}
