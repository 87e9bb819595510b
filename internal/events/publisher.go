package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/todoai/eventflow/internal/broker"
	"github.com/todoai/eventflow/internal/platform/logger"
)

// Publisher sends events to a topic, attributed to this service.
type Publisher struct {
	broker broker.Publisher
	source string
	logger *slog.Logger
}

// NewPublisher creates a Publisher that stamps outgoing envelopes with source.
func NewPublisher(b broker.Publisher, source string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		broker: b,
		source: source,
		logger: logger.With(slog.String("component", "event_publisher")),
	}
}

// Publish encodes event and publishes it keyed by task id.
// Transport failures are returned so the triggering delivery is retried.
func (p *Publisher) Publish(ctx context.Context, topic string, event *Event) error {
	log := logger.FromContextOrDefault(ctx, p.logger)

	if event.SourceService == "" {
		event.SourceService = p.source
	}
	body, err := Encode(event, p.source)
	if err != nil {
		return err
	}

	if err := p.broker.Publish(ctx, topic, event.TaskID.String(), body); err != nil {
		log.Error("failed to publish event",
			slog.String("topic", topic),
			slog.String("event_type", string(event.EventType)),
			slog.String("event_id", event.EventID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to publish %s to %s: %w", event.EventType, topic, err)
	}

	log.Info("published event",
		slog.String("topic", topic),
		slog.String("event_type", string(event.EventType)),
		slog.String("event_id", event.EventID.String()),
		slog.String("task_id", event.TaskID.String()))
	return nil
}
