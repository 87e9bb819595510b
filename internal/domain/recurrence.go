package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecurrenceSchedule drives re-creation of a recurring task. At most one
// schedule per parent task is active; deactivation is terminal.
type RecurrenceSchedule struct {
	ID           uuid.UUID `json:"id"`
	ParentTaskID uuid.UUID `json:"parent_task_id"`
	Frequency    Frequency `json:"frequency"`
	NextDueDate  time.Time `json:"next_due_date"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewRecurrenceSchedule creates an active schedule. When due is nil the first
// occurrence is one frequency interval after now.
func NewRecurrenceSchedule(
	parentTaskID uuid.UUID,
	frequency Frequency,
	due *time.Time,
	now time.Time,
) (*RecurrenceSchedule, error) {
	if parentTaskID == uuid.Nil {
		return nil, fmt.Errorf("%w: parent_task_id is required", ErrValidation)
	}
	if frequency == "" {
		frequency = FrequencyDaily
	}

	now = now.UTC()
	next := frequency.Next(now)
	if due != nil {
		next = due.UTC()
	}

	return &RecurrenceSchedule{
		ID:           uuid.New(),
		ParentTaskID: parentTaskID,
		Frequency:    frequency,
		NextDueDate:  next,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Advance moves NextDueDate forward by one interval.
func (s *RecurrenceSchedule) Advance(now time.Time) error {
	if !s.IsActive {
		return fmt.Errorf("%w: schedule %s is inactive", ErrTerminalState, s.ID)
	}
	s.NextDueDate = s.Frequency.Next(s.NextDueDate)
	s.UpdatedAt = now.UTC()
	return nil
}

// Deactivate marks the schedule inactive.
func (s *RecurrenceSchedule) Deactivate(now time.Time) error {
	if !s.IsActive {
		return fmt.Errorf("%w: schedule %s is already inactive", ErrTerminalState, s.ID)
	}
	s.IsActive = false
	s.UpdatedAt = now.UTC()
	return nil
}
