package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/events"
	"github.com/todoai/eventflow/internal/platform/logger"
)

// Message is the JSON pushed to clients for each task update.
type Message struct {
	EventType string          `json:"event_type"`
	TaskID    uuid.UUID       `json:"task_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewMessage builds the client message for env.
func NewMessage(env *events.Envelope) Message {
	return Message{
		EventType: env.Event.EventType.String(),
		TaskID:    env.Event.TaskID,
		Timestamp: env.Event.Timestamp,
		Payload:   env.Event.Payload,
	}
}

// Handler forwards task-update events to the Broadcaster.
type Handler struct {
	broadcaster *Broadcaster
}

// NewHandler creates a Handler.
func NewHandler(b *Broadcaster) *Handler {
	return &Handler{broadcaster: b}
}

// Register subscribes the handler to every task lifecycle event.
func (h *Handler) Register(d *events.Dispatcher) {
	for _, t := range []events.EventType{
		events.TaskCreated,
		events.TaskUpdated,
		events.TaskCompleted,
		events.TaskDeleted,
	} {
		d.Register(t, h)
	}
}

// Handle implements events.Handler. Push failures are absorbed by the
// Broadcaster and never cause redelivery.
func (h *Handler) Handle(ctx context.Context, env *events.Envelope) error {
	delivered, err := h.broadcaster.Broadcast(ctx, NewMessage(env))
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("task update pushed", slog.Int("delivered", delivered))
	return nil
}
