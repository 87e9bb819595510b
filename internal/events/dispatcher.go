package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/todoai/eventflow/internal/broker"
	"github.com/todoai/eventflow/internal/platform/logger"
)

// Handler processes one decoded event.
type Handler interface {
	Handle(ctx context.Context, env *Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env *Envelope) error

// Handle calls f(ctx, env).
func (f HandlerFunc) Handle(ctx context.Context, env *Envelope) error {
	return f(ctx, env)
}

// Dispatcher routes events to the handlers registered for their type.
// Events of a type with no handler are logged and dropped.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	logger   *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[EventType][]Handler),
		logger:   logger.With(slog.String("component", "event_dispatcher")),
	}
}

// Register adds handler for events of type t.
func (d *Dispatcher) Register(t EventType, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], handler)
	d.logger.Debug("registered event handler",
		slog.String("event_type", string(t)),
		slog.Int("handler_count", len(d.handlers[t])))
}

// Types returns the event types with at least one handler.
func (d *Dispatcher) Types() []EventType {
	d.mu.RLock()
	defer d.mu.RUnlock()
	types := make([]EventType, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	return types
}

// Dispatch runs every handler registered for the event's type.
// All handlers run even if one fails; the first error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, env *Envelope) error {
	log := logger.FromContextOrDefault(ctx, d.logger).With(
		slog.String("event_id", env.Event.EventID.String()),
		slog.String("event_type", string(env.Event.EventType)),
		slog.String("task_id", env.Event.TaskID.String()))
	ctx = logger.WithLogger(ctx, log)

	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers[env.Event.EventType]))
	copy(handlers, d.handlers[env.Event.EventType])
	d.mu.RUnlock()

	if len(handlers) == 0 {
		if _, err := ParseEventType(string(env.Event.EventType)); err != nil {
			log.Warn("dropping event of unknown type")
		} else {
			log.Debug("no handler registered for event type")
		}
		return nil
	}

	var firstErr error
	for i, handler := range handlers {
		if err := handler.Handle(ctx, env); err != nil {
			log.Error("handler failed to process event",
				slog.String("error", err.Error()),
				slog.Int("handler_index", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// HandleMessage decodes a broker message and dispatches it.
// It satisfies broker.Handler.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg broker.Message) error {
	env, err := Decode(msg.Body)
	if err != nil {
		logger.FromContextOrDefault(ctx, d.logger).Warn("discarding malformed event",
			slog.String("topic", msg.Topic),
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()))
		return err
	}
	return d.Dispatch(ctx, env)
}

// IsMalformed reports whether err means the event can never be processed.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedEvent)
}
