package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/events"
	"github.com/todoai/eventflow/internal/platform/logger"
)

// DefaultTitle is used for reminders of tasks without a title.
const DefaultTitle = "Task reminder"

// Registrar registers reminders. *Scheduler satisfies it.
type Registrar interface {
	Schedule(ctx context.Context, taskID uuid.UUID, title string, at time.Time) (string, error)
}

// Handler schedules a reminder for every created task that carries a reminder time.
type Handler struct {
	scheduler Registrar
}

// NewHandler creates a Handler.
func NewHandler(scheduler Registrar) *Handler {
	return &Handler{scheduler: scheduler}
}

// Register subscribes the handler to task-created events.
func (h *Handler) Register(d *events.Dispatcher) {
	d.Register(events.TaskCreated, h)
}

// Handle implements events.Handler.
func (h *Handler) Handle(ctx context.Context, env *events.Envelope) error {
	ev, err := env.TaskEvent()
	if err != nil {
		return err
	}
	if ev.Payload.ReminderTime == nil {
		return nil
	}

	title := ev.Payload.Title
	if title == "" {
		title = DefaultTitle
	}

	jobID, err := h.scheduler.Schedule(ctx, ev.TaskID, title, *ev.Payload.ReminderTime)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("reminder registered from task event", slog.String("job_id", jobID))
	return nil
}
