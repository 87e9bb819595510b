package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a second audit record for one event_id).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update matched no row in the
	// expected state, for example a notification that is no longer pending.
	ErrUpdateFailed = errors.New("update failed")

	// ErrInvariantViolation is returned when stored data breaks an invariant
	// the store relies on, such as two active schedules for one parent task.
	ErrInvariantViolation = errors.New("data invariant violated")

	// Entity-specific "not found" errors

	// ErrAuditRecordNotFound indicates that the requested audit record does not exist.
	ErrAuditRecordNotFound = fmt.Errorf("%w: audit record", ErrNotFound)

	// ErrScheduleNotFound indicates that the requested recurrence schedule does not exist.
	ErrScheduleNotFound = fmt.Errorf("%w: recurrence schedule", ErrNotFound)

	// ErrNotificationNotFound indicates that the requested notification does not exist.
	ErrNotificationNotFound = fmt.Errorf("%w: notification", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrEventAlreadyRecorded indicates that an audit record with the same event_id exists.
	ErrEventAlreadyRecorded = fmt.Errorf("%w: event_id", ErrDuplicate)

	// ErrNotificationExists indicates a notification for the same source event exists.
	ErrNotificationExists = fmt.Errorf("%w: notification source_event_id", ErrDuplicate)

	// ErrNotificationNotPending indicates a status transition on a notification
	// that already reached a terminal state.
	ErrNotificationNotPending = fmt.Errorf("%w: notification not pending", ErrUpdateFailed)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "audit_record", "notification")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
