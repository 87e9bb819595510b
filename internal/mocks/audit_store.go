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

// MockAuditStore implements store.AuditStore in memory. Like the real table
// it rejects a second record with the same event_id.
type MockAuditStore struct {
	CreateFn func(ctx context.Context, record *domain.AuditRecord) error

	mu      sync.Mutex
	records map[uuid.UUID]*domain.AuditRecord // by event_id
	creates int
}

// NewMockAuditStore creates an empty store.
func NewMockAuditStore() *MockAuditStore {
	return &MockAuditStore{records: make(map[uuid.UUID]*domain.AuditRecord)}
}

var _ store.AuditStore = (*MockAuditStore)(nil)

// Create implements store.AuditStore.
func (m *MockAuditStore) Create(ctx context.Context, record *domain.AuditRecord) error {
	m.mu.Lock()
	m.creates++
	m.mu.Unlock()

	if m.CreateFn != nil {
		return m.CreateFn(ctx, record)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.EventID]; exists {
		return store.ErrEventAlreadyRecorded
	}
	m.records[record.EventID] = record
	return nil
}

// GetByID implements store.AuditStore.
func (m *MockAuditStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, store.ErrAuditRecordNotFound
}

// List implements store.AuditStore.
func (m *MockAuditStore) List(
	ctx context.Context,
	filter store.AuditFilter,
	page store.Page,
) ([]*domain.AuditRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := []*domain.AuditRecord{}
	for _, r := range m.records {
		if filter.TaskID != nil && r.TaskID != *filter.TaskID {
			continue
		}
		if filter.EventType != "" && r.EventType != filter.EventType {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].RecordedAt.After(matched[j].RecordedAt) })
	return paginate(matched, page), len(matched), nil
}

// WithTx implements store.AuditStore. The mock ignores transactions.
func (m *MockAuditStore) WithTx(tx *sql.Tx) store.AuditStore { return m }

// Records returns a snapshot of stored records.
func (m *MockAuditStore) Records() []*domain.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.AuditRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out
}

// CreateCalls returns the number of Create calls.
func (m *MockAuditStore) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

func paginate[T any](items []T, page store.Page) []T {
	page = page.Normalize()
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
