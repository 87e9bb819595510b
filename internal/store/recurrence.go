package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/domain"
)

// ScheduleFilter narrows recurrence schedule listings.
type ScheduleFilter struct {
	IsActive *bool
}

// RecurrenceStore defines the interface for recurrence schedule persistence.
type RecurrenceStore interface {
	// Create inserts a new schedule.
	Create(ctx context.Context, schedule *domain.RecurrenceSchedule) error

	// GetActiveByParent returns the single active schedule for a parent task.
	// Inside a transaction the row is locked until commit.
	// Returns ErrScheduleNotFound when there is none and ErrInvariantViolation
	// when more than one active row exists.
	GetActiveByParent(ctx context.Context, parentTaskID uuid.UUID) (*domain.RecurrenceSchedule, error)

	// Update persists next_due_date, is_active and updated_at.
	// Returns ErrScheduleNotFound if the schedule does not exist.
	Update(ctx context.Context, schedule *domain.RecurrenceSchedule) error

	// GetByID retrieves a schedule by ID.
	// Returns ErrScheduleNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurrenceSchedule, error)

	// List returns schedules newest-first by created_at plus the matching total.
	List(ctx context.Context, filter ScheduleFilter, page Page) ([]*domain.RecurrenceSchedule, int, error)

	// WithTx returns a new RecurrenceStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) RecurrenceStore
}
