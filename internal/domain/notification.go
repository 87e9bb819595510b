package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationStatus is the delivery state of a notification.
type NotificationStatus string

// Notification states. Sent and failed are terminal.
const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Valid reports whether s is a known status.
func (s NotificationStatus) Valid() bool {
	switch s {
	case NotificationStatusPending, NotificationStatusSent, NotificationStatusFailed:
		return true
	}
	return false
}

// Channel names a delivery mechanism.
type Channel string

// ChannelInApp is the synchronous in-process channel and the default.
const ChannelInApp Channel = "in_app"

// NotificationTypeReminder marks notifications produced from reminder events.
const NotificationTypeReminder = "reminder"

// Notification tracks one delivery attempt for a task.
type Notification struct {
	ID               uuid.UUID          `json:"id"`
	TaskID           uuid.UUID          `json:"task_id"`
	NotificationType string             `json:"notification_type"`
	Channel          Channel            `json:"channel"`
	Status           NotificationStatus `json:"status"`
	Payload          json.RawMessage    `json:"payload"`
	CreatedAt        time.Time          `json:"created_at"`
	SentAt           *time.Time         `json:"sent_at,omitempty"`
	ErrorMessage     *string            `json:"error_message,omitempty"`

	// SourceEventID is the event the notification was produced from, if any.
	// At most one notification exists per source event.
	SourceEventID *uuid.UUID `json:"source_event_id,omitempty"`
}

// NewNotification creates a pending notification. An empty channel means in_app.
func NewNotification(
	taskID uuid.UUID,
	notificationType string,
	payload json.RawMessage,
	channel Channel,
	now time.Time,
) (*Notification, error) {
	if taskID == uuid.Nil {
		return nil, fmt.Errorf("%w: task_id is required", ErrValidation)
	}
	if notificationType == "" {
		return nil, fmt.Errorf("%w: notification_type is required", ErrValidation)
	}
	if channel == "" {
		channel = ChannelInApp
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	return &Notification{
		ID:               uuid.New(),
		TaskID:           taskID,
		NotificationType: notificationType,
		Channel:          channel,
		Status:           NotificationStatusPending,
		Payload:          payload,
		CreatedAt:        now.UTC(),
	}, nil
}

// IsTerminal reports whether the notification has left the pending state.
func (n *Notification) IsTerminal() bool {
	return n.Status != NotificationStatusPending
}

// MarkSent transitions pending → sent.
func (n *Notification) MarkSent(now time.Time) error {
	if n.IsTerminal() {
		return fmt.Errorf("%w: notification %s is %s", ErrTerminalState, n.ID, n.Status)
	}
	sentAt := now.UTC()
	n.Status = NotificationStatusSent
	n.SentAt = &sentAt
	return nil
}

// MarkFailed transitions pending → failed, recording the error text.
func (n *Notification) MarkFailed(message string) error {
	if n.IsTerminal() {
		return fmt.Errorf("%w: notification %s is %s", ErrTerminalState, n.ID, n.Status)
	}
	n.Status = NotificationStatusFailed
	n.ErrorMessage = &message
	return nil
}
