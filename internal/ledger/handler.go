package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/events"
)

// Handler records task events delivered on the task-events topic.
type Handler struct {
	svc *Service
}

// NewHandler creates a Handler backed by svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register subscribes the handler to every task event type.
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

// Handle implements events.Handler.
func (h *Handler) Handle(ctx context.Context, env *events.Envelope) error {
	_, _, err := h.svc.Record(ctx, RecordParams{
		EventID:       env.Event.EventID,
		EventType:     string(env.Event.EventType),
		TaskID:        env.Event.TaskID,
		Payload:       env.Event.Payload,
		SourceService: env.SourceService(),
	})
	if errors.Is(err, domain.ErrValidation) {
		return fmt.Errorf("%w: %v", events.ErrMalformedEvent, err)
	}
	return err
}
