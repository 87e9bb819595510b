package events

import (
	"errors"
	"fmt"

	"github.com/todoai/eventflow/internal/broker"
)

// EventType identifies the kind of domain event.
type EventType string

// Known event types.
const (
	TaskCreated   EventType = "task-created"
	TaskUpdated   EventType = "task-updated"
	TaskCompleted EventType = "task-completed"
	TaskDeleted   EventType = "task-deleted"
	ReminderFired EventType = "reminder-fired"
)

// Topics.
const (
	TopicTaskEvents  = "task-events"
	TopicTaskUpdates = "task-updates"
	TopicReminders   = "reminders"
)

// UnknownCloudEventType classifies events with no registered mapping.
const UnknownCloudEventType = "com.todoai.event.unknown"

var cloudEventTypes = map[EventType]string{
	TaskCreated:   "com.todoai.task.created",
	TaskUpdated:   "com.todoai.task.updated",
	TaskCompleted: "com.todoai.task.completed",
	TaskDeleted:   "com.todoai.task.deleted",
	ReminderFired: "com.todoai.reminder.fired",
}

var (
	// ErrMalformedEvent indicates a message that can never be processed.
	// It is permanent: brokers acknowledge and drop such messages.
	ErrMalformedEvent = fmt.Errorf("malformed event: %w", broker.ErrPermanent)

	// ErrUnknownEventType indicates an event type outside the known set.
	ErrUnknownEventType = errors.New("unknown event type")
)

// ParseEventType validates s against the known event types.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if _, ok := cloudEventTypes[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
	return t, nil
}

// CloudEventType returns the external classification tag for t.
func (t EventType) CloudEventType() string {
	if ce, ok := cloudEventTypes[t]; ok {
		return ce
	}
	return UnknownCloudEventType
}

func (t EventType) String() string { return string(t) }
