// Package notification creates notification records for reminders and
// drives them from pending to a terminal sent or failed state.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/platform/logger"
	"github.com/todoai/eventflow/internal/store"
)

// DefaultReminderTitle is used for reminders without a title.
const DefaultReminderTitle = "Task reminder"

// Dispatcher creates and delivers notifications.
type Dispatcher struct {
	notifications store.NotificationStore
	channels      map[domain.Channel]Channel
	now           func() time.Time
	logger        *slog.Logger
}

// NewDispatcher creates a Dispatcher. The in-app channel is always
// registered; extra channels may be supplied.
func NewDispatcher(notifications store.NotificationStore, logger *slog.Logger, channels ...Channel) (*Dispatcher, error) {
	if notifications == nil {
		return nil, fmt.Errorf("%w: notification store cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		notifications: notifications,
		channels:      map[domain.Channel]Channel{domain.ChannelInApp: InAppChannel{}},
		now:           time.Now,
		logger:        logger.With(slog.String("component", "notification_dispatcher")),
	}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
	}
	return d, nil
}

// Create persists a pending notification. An empty channel means in-app.
func (d *Dispatcher) Create(
	ctx context.Context,
	taskID uuid.UUID,
	notificationType string,
	payload json.RawMessage,
	channel domain.Channel,
) (*domain.Notification, error) {
	n, err := domain.NewNotification(taskID, notificationType, payload, channel, d.now())
	if err != nil {
		return nil, err
	}
	if err := d.create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (d *Dispatcher) create(ctx context.Context, n *domain.Notification) error {
	if err := d.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification for task %s: %w", n.TaskID, err)
	}

	logger.FromContextOrDefault(ctx, d.logger).Info("notification created",
		slog.String("notification_id", n.ID.String()),
		slog.String("channel", string(n.Channel)))
	return nil
}

// Deliver sends n through its channel and marks it sent.
// A channel with no registered implementation leaves n pending and only logs.
// A send failure is returned unchanged, with n still pending.
func (d *Dispatcher) Deliver(ctx context.Context, n *domain.Notification) error {
	log := logger.FromContextOrDefault(ctx, d.logger).With(
		slog.String("notification_id", n.ID.String()),
		slog.String("channel", string(n.Channel)))

	ch, ok := d.channels[n.Channel]
	if !ok {
		log.Warn("unsupported notification channel, leaving pending")
		return nil
	}

	if err := ch.Send(ctx, n); err != nil {
		return fmt.Errorf("delivery via %s failed: %w", n.Channel, err)
	}

	sent := *n
	if err := sent.MarkSent(d.now()); err != nil {
		return err
	}
	if err := d.notifications.MarkSent(ctx, &sent); err != nil {
		return fmt.Errorf("failed to mark notification %s sent: %w", n.ID, err)
	}
	*n = sent

	log.Info("notification delivered")
	return nil
}

// HandleFailure marks n failed with message. A notification that is
// already terminal is left unchanged and domain.ErrTerminalState is returned.
func (d *Dispatcher) HandleFailure(ctx context.Context, n *domain.Notification, message string) error {
	failed := *n
	if err := failed.MarkFailed(message); err != nil {
		return err
	}
	if err := d.notifications.MarkFailed(ctx, &failed); err != nil {
		return fmt.Errorf("failed to mark notification %s failed: %w", n.ID, err)
	}
	*n = failed

	logger.FromContextOrDefault(ctx, d.logger).Warn("notification delivery failed",
		slog.String("notification_id", n.ID.String()),
		slog.String("error_message", message))
	return nil
}

// HandleReminder turns a fired reminder into a notification: create, deliver,
// and on delivery error record the failure. A recorded failure is not an error.
//
// The notification is keyed on eventID. A redelivered reminder reuses the
// notification created the first time: a pending one is delivered again and
// a terminal one is returned untouched.
func (d *Dispatcher) HandleReminder(
	ctx context.Context,
	eventID uuid.UUID,
	taskID uuid.UUID,
	reminder domain.ReminderPayload,
) (*domain.Notification, error) {
	n, err := d.reminderNotification(ctx, eventID, taskID, reminder)
	if err != nil {
		return nil, err
	}
	if n.IsTerminal() {
		logger.FromContextOrDefault(ctx, d.logger).Info("reminder already notified",
			slog.String("notification_id", n.ID.String()),
			slog.String("status", string(n.Status)))
		return n, nil
	}

	if err := d.Deliver(ctx, n); err != nil {
		if ferr := d.HandleFailure(ctx, n, err.Error()); ferr != nil {
			return n, fmt.Errorf("failed to record delivery failure (%v): %w", err, ferr)
		}
	}
	return n, nil
}

// reminderNotification returns the notification already produced from
// eventID, or creates it.
func (d *Dispatcher) reminderNotification(
	ctx context.Context,
	eventID uuid.UUID,
	taskID uuid.UUID,
	reminder domain.ReminderPayload,
) (*domain.Notification, error) {
	existing, err := d.notifications.GetBySourceEvent(ctx, eventID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, store.ErrNotificationNotFound):
		return nil, fmt.Errorf("failed to look up notification for event %s: %w", eventID, err)
	}

	payload, err := reminderNotificationPayload(eventID, reminder)
	if err != nil {
		return nil, err
	}
	n, err := domain.NewNotification(taskID, domain.NotificationTypeReminder, payload, reminder.Channel, d.now())
	if err != nil {
		return nil, err
	}
	n.SourceEventID = &eventID

	err = d.create(ctx, n)
	if errors.Is(err, store.ErrNotificationExists) {
		// A concurrent delivery of the same event created it first.
		return d.notifications.GetBySourceEvent(ctx, eventID)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func reminderNotificationPayload(eventID uuid.UUID, r domain.ReminderPayload) (json.RawMessage, error) {
	title := r.Title
	if title == "" {
		title = DefaultReminderTitle
	}
	reminderTime := ""
	if !r.ReminderTime.IsZero() {
		reminderTime = r.ReminderTime.UTC().Format(time.RFC3339)
	}

	raw, err := json.Marshal(map[string]string{
		"title":         title,
		"reminder_time": reminderTime,
		"event_id":      eventID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification payload: %w", err)
	}
	return raw, nil
}
