package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/store"
)

// MockNotificationStore implements store.NotificationStore in memory,
// including the pending-only guard on status transitions and the
// one-notification-per-source-event constraint.
type MockNotificationStore struct {
	CreateFn     func(ctx context.Context, n *domain.Notification) error
	MarkSentFn   func(ctx context.Context, n *domain.Notification) error
	MarkFailedFn func(ctx context.Context, n *domain.Notification) error

	mu            sync.Mutex
	notifications map[uuid.UUID]domain.Notification
}

// NewMockNotificationStore creates an empty store.
func NewMockNotificationStore() *MockNotificationStore {
	return &MockNotificationStore{notifications: make(map[uuid.UUID]domain.Notification)}
}

var _ store.NotificationStore = (*MockNotificationStore)(nil)

// Create implements store.NotificationStore.
func (m *MockNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.SourceEventID != nil {
		for _, existing := range m.notifications {
			if existing.SourceEventID != nil && *existing.SourceEventID == *n.SourceEventID {
				return store.ErrNotificationExists
			}
		}
	}
	m.notifications[n.ID] = *n
	return nil
}

// MarkSent implements store.NotificationStore.
func (m *MockNotificationStore) MarkSent(ctx context.Context, n *domain.Notification) error {
	if m.MarkSentFn != nil {
		return m.MarkSentFn(ctx, n)
	}
	return m.transition(n)
}

// MarkFailed implements store.NotificationStore.
func (m *MockNotificationStore) MarkFailed(ctx context.Context, n *domain.Notification) error {
	if m.MarkFailedFn != nil {
		return m.MarkFailedFn(ctx, n)
	}
	return m.transition(n)
}

func (m *MockNotificationStore) transition(n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.notifications[n.ID]
	if !ok || current.Status != domain.NotificationStatusPending {
		return store.ErrNotificationNotPending
	}
	m.notifications[n.ID] = *n
	return nil
}

// GetByID implements store.NotificationStore.
func (m *MockNotificationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, store.ErrNotificationNotFound
	}
	return &n, nil
}

// GetBySourceEvent implements store.NotificationStore.
func (m *MockNotificationStore) GetBySourceEvent(ctx context.Context, eventID uuid.UUID) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.SourceEventID != nil && *n.SourceEventID == eventID {
			n := n
			return &n, nil
		}
	}
	return nil, store.ErrNotificationNotFound
}

// List implements store.NotificationStore.
func (m *MockNotificationStore) List(
	ctx context.Context,
	filter store.NotificationFilter,
	page store.Page,
) ([]*domain.Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := []*domain.Notification{}
	for _, n := range m.notifications {
		if filter.Status != "" && n.Status != filter.Status {
			continue
		}
		if filter.TaskID != nil && n.TaskID != *filter.TaskID {
			continue
		}
		n := n
		matched = append(matched, &n)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, page), len(matched), nil
}

// WithTx implements store.NotificationStore. The mock ignores transactions.
func (m *MockNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore { return m }

// All returns a snapshot of every stored notification.
func (m *MockNotificationStore) All() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		out = append(out, n)
	}
	return out
}
