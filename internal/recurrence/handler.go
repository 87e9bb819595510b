package recurrence

import (
	"context"
	"errors"

	"github.com/todoai/eventflow/internal/broker"
	"github.com/todoai/eventflow/internal/events"
	"github.com/todoai/eventflow/internal/store"
)

// Handler feeds task events from the task-events topic into an Engine.
type Handler struct {
	engine *Engine
}

// NewHandler creates a Handler for engine.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Register subscribes the handler to created, completed and deleted events.
func (h *Handler) Register(d *events.Dispatcher) {
	d.Register(events.TaskCreated, h)
	d.Register(events.TaskCompleted, h)
	d.Register(events.TaskDeleted, h)
}

// Handle implements events.Handler.
// A broken single-active-schedule invariant cannot be fixed by redelivery
// and is reported as permanent.
func (h *Handler) Handle(ctx context.Context, env *events.Envelope) error {
	ev, err := env.TaskEvent()
	if err != nil {
		return err
	}

	switch env.Event.EventType {
	case events.TaskCreated:
		_, err = h.engine.OnTaskCreated(ctx, ev)
	case events.TaskCompleted:
		_, err = h.engine.OnTaskCompleted(ctx, ev)
	case events.TaskDeleted:
		_, err = h.engine.OnTaskDeleted(ctx, ev)
	}

	if errors.Is(err, store.ErrInvariantViolation) {
		return broker.Permanent(err)
	}
	return err
}
