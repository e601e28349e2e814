// Package apperr defines the error types shared by the billing services.
//
// Callers branch on them with errors.As / errors.Is; the HTTP layer maps
// each kind to a status code.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record does not exist within the caller's account.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a conditional update lost a race with another writer.
	ErrConflict = errors.New("record changed concurrently")

	// ErrLocked is returned when another batch run already holds the account lock.
	ErrLocked = errors.New("batch run already in progress")
)

// DataAccessError wraps a failure to read from or write to the data store.
type DataAccessError struct {
	// Op is the operation that failed (e.g. "list pending transactions").
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access: %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// DataAccess wraps err as a DataAccessError unless it is nil or already one.
func DataAccess(op string, err error) error {
	if err == nil {
		return nil
	}
	var dae *DataAccessError
	if errors.As(err, &dae) {
		return err
	}
	return &DataAccessError{Op: op, Err: err}
}

// InvalidStateError reports an operation that the entity's current state forbids.
type InvalidStateError struct {
	Entity string
	ID     string
	State  string
	Op     string
}

func (e *InvalidStateError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: cannot %s in state %q", e.Entity, e.ID, e.Op, e.State)
	}
	return fmt.Sprintf("%s: cannot %s in state %q", e.Entity, e.Op, e.State)
}

// ValidationError represents malformed input for a single field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// IsDataAccess reports whether err is (or wraps) a DataAccessError.
func IsDataAccess(err error) bool {
	var dae *DataAccessError
	return errors.As(err, &dae)
}

// IsInvalidState reports whether err is (or wraps) an InvalidStateError.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
