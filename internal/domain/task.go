package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle status carried in task event payloads.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusComplete   TaskStatus = "complete"
)

// Frequency is the recurrence cadence of a recurring task.
type Frequency string

// Supported frequencies
const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

var frequencyDeltas = map[Frequency]time.Duration{
	FrequencyDaily:   24 * time.Hour,
	FrequencyWeekly:  7 * 24 * time.Hour,
	FrequencyMonthly: 30 * 24 * time.Hour,
}

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	_, ok := frequencyDeltas[f]
	return ok
}

// Delta returns the interval between two occurrences.
// Monthly is a fixed 30 days. Unrecognized frequencies advance by one day.
func (f Frequency) Delta() time.Duration {
	if d, ok := frequencyDeltas[f]; ok {
		return d
	}
	return frequencyDeltas[FrequencyDaily]
}

// Next returns the occurrence following current.
func (f Frequency) Next(current time.Time) time.Time {
	return current.Add(f.Delta())
}

// TaskPayload is the snapshot of task fields carried by task events.
type TaskPayload struct {
	Title              string     `json:"title"`
	Description        *string    `json:"description,omitempty"`
	Status             TaskStatus `json:"status"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	ReminderTime       *time.Time `json:"reminder_time,omitempty"`
	IsRecurring        bool       `json:"is_recurring"`
	RecurrenceSchedule *Frequency `json:"recurrence_schedule,omitempty"`
}

// FrequencyOrDefault returns the declared frequency, or daily when none is set.
func (p TaskPayload) FrequencyOrDefault() Frequency {
	if p.RecurrenceSchedule == nil || *p.RecurrenceSchedule == "" {
		return FrequencyDaily
	}
	return *p.RecurrenceSchedule
}

// ReminderPayload is the payload of a reminder-fired event.
// The task id travels on the event itself.
type ReminderPayload struct {
	Title        string    `json:"title"`
	ReminderTime time.Time `json:"reminder_time"`
	Channel      Channel   `json:"channel"`
}

// TaskEvent is a decoded task lifecycle event.
type TaskEvent struct {
	EventID   uuid.UUID
	EventType string
	TaskID    uuid.UUID
	Timestamp time.Time
	Payload   TaskPayload
}
