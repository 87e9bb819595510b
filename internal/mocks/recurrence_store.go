package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/store"
)

// MockRecurrenceStore implements store.RecurrenceStore in memory.
// Stored schedules are copied so callers cannot mutate them without Update.
type MockRecurrenceStore struct {
	CreateFn            func(ctx context.Context, schedule *domain.RecurrenceSchedule) error
	UpdateFn            func(ctx context.Context, schedule *domain.RecurrenceSchedule) error
	GetActiveByParentFn func(ctx context.Context, parentTaskID uuid.UUID) (*domain.RecurrenceSchedule, error)

	mu        sync.Mutex
	schedules map[uuid.UUID]domain.RecurrenceSchedule
	txCount   int
}

// NewMockRecurrenceStore creates an empty store.
func NewMockRecurrenceStore() *MockRecurrenceStore {
	return &MockRecurrenceStore{schedules: make(map[uuid.UUID]domain.RecurrenceSchedule)}
}

var _ store.RecurrenceStore = (*MockRecurrenceStore)(nil)

// Create implements store.RecurrenceStore.
func (m *MockRecurrenceStore) Create(ctx context.Context, schedule *domain.RecurrenceSchedule) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, schedule)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.schedules[schedule.ID]; exists {
		return store.ErrDuplicate
	}
	m.schedules[schedule.ID] = *schedule
	return nil
}

// GetActiveByParent implements store.RecurrenceStore.
func (m *MockRecurrenceStore) GetActiveByParent(
	ctx context.Context,
	parentTaskID uuid.UUID,
) (*domain.RecurrenceSchedule, error) {
	if m.GetActiveByParentFn != nil {
		return m.GetActiveByParentFn(ctx, parentTaskID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []domain.RecurrenceSchedule
	for _, s := range m.schedules {
		if s.ParentTaskID == parentTaskID && s.IsActive {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return nil, store.ErrScheduleNotFound
	case 1:
		s := found[0]
		return &s, nil
	default:
		return nil, fmt.Errorf("%w: more than one active schedule for parent task %s",
			store.ErrInvariantViolation, parentTaskID)
	}
}

// Update implements store.RecurrenceStore.
func (m *MockRecurrenceStore) Update(ctx context.Context, schedule *domain.RecurrenceSchedule) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, schedule)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.schedules[schedule.ID]; !exists {
		return store.ErrScheduleNotFound
	}
	m.schedules[schedule.ID] = *schedule
	return nil
}

// GetByID implements store.RecurrenceStore.
func (m *MockRecurrenceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurrenceSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, store.ErrScheduleNotFound
	}
	return &s, nil
}

// List implements store.RecurrenceStore.
func (m *MockRecurrenceStore) List(
	ctx context.Context,
	filter store.ScheduleFilter,
	page store.Page,
) ([]*domain.RecurrenceSchedule, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := []*domain.RecurrenceSchedule{}
	for _, s := range m.schedules {
		if filter.IsActive != nil && s.IsActive != *filter.IsActive {
			continue
		}
		s := s
		matched = append(matched, &s)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, page), len(matched), nil
}

// WithTx implements store.RecurrenceStore. The mock counts but otherwise ignores transactions.
func (m *MockRecurrenceStore) WithTx(tx *sql.Tx) store.RecurrenceStore {
	m.mu.Lock()
	m.txCount++
	m.mu.Unlock()
	return m
}

// All returns a snapshot of every stored schedule.
func (m *MockRecurrenceStore) All() []domain.RecurrenceSchedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RecurrenceSchedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		out = append(out, s)
	}
	return out
}

// Put stores schedule directly, bypassing Create.
func (m *MockRecurrenceStore) Put(schedule domain.RecurrenceSchedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[schedule.ID] = schedule
}

// TxCount returns how many times WithTx was called.
func (m *MockRecurrenceStore) TxCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txCount
}
