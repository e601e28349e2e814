// Package recurring holds the lifecycle rules for recurring invoice templates:
// the state machine, the due-date schedule and the per-template rules applied
// to each generated invoice. Nothing here touches the database.
package recurring

import (
	"github.com/diewo77/billflow/internal/apperr"
	"github.com/diewo77/billflow/internal/models"
)

// transitions lists the allowed target states for each source state.
// Canceled has no entry and is therefore terminal.
var transitions = map[models.RecurringState][]models.RecurringState{
	models.RecurringStateDraft:  {models.RecurringStateActive},
	models.RecurringStateActive: {models.RecurringStatePaused, models.RecurringStateCanceled},
	models.RecurringStatePaused: {models.RecurringStateActive, models.RecurringStateCanceled},
}

// CanTransition reports whether a template may move from one state to another.
func CanTransition(from, to models.RecurringState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates a state change and returns an InvalidStateError when
// the move is not allowed.
func Transition(from, to models.RecurringState) error {
	if !ValidState(to) {
		return apperr.NewValidationError("state", string(to), "unknown state")
	}
	if !CanTransition(from, to) {
		return &apperr.InvalidStateError{
			Entity: "recurring invoice",
			State:  string(from),
			Op:     "move to " + string(to),
		}
	}
	return nil
}

// ValidState reports whether s is one of the known template states.
func ValidState(s models.RecurringState) bool {
	switch s {
	case models.RecurringStateDraft, models.RecurringStateActive,
		models.RecurringStatePaused, models.RecurringStateCanceled:
		return true
	}
	return false
}

// CanGenerate reports whether invoices may be generated in state s.
func CanGenerate(s models.RecurringState) bool {
	return s == models.RecurringStateActive
}
