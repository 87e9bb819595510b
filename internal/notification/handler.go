package notification

import (
	"context"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/events"
)

// Handler turns reminder-fired events into notifications.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler creates a Handler.
func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// Register subscribes the handler to reminder-fired events.
func (h *Handler) Register(d *events.Dispatcher) {
	d.Register(events.ReminderFired, h)
}

// Handle implements events.Handler.
func (h *Handler) Handle(ctx context.Context, env *events.Envelope) error {
	var reminder domain.ReminderPayload
	if err := env.DecodePayload(&reminder); err != nil {
		return err
	}
	_, err := h.dispatcher.HandleReminder(ctx, env.Event.EventID, env.Event.TaskID, reminder)
	return err
}
