package mocks

import (
	"context"
	"sync"

	"github.com/todoai/eventflow/internal/events"
)

// PublishedEvent is one call recorded by MockEventPublisher.
type PublishedEvent struct {
	Topic string
	Event *events.Event
}

// MockEventPublisher records published events instead of sending them.
type MockEventPublisher struct {
	PublishFn func(ctx context.Context, topic string, event *events.Event) error

	mu        sync.Mutex
	published []PublishedEvent
}

// Publish records the event, then returns PublishFn's result when set.
func (m *MockEventPublisher) Publish(ctx context.Context, topic string, event *events.Event) error {
	if m.PublishFn != nil {
		if err := m.PublishFn(ctx, topic, event); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, PublishedEvent{Topic: topic, Event: event})
	return nil
}

// Published returns a snapshot of recorded events.
func (m *MockEventPublisher) Published() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.published))
	copy(out, m.published)
	return out
}
