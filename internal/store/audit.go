package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/domain"
)

// AuditFilter narrows audit record listings. Zero values match everything.
type AuditFilter struct {
	TaskID    *uuid.UUID
	EventType string
}

// AuditStore defines the interface for the append-only audit ledger.
type AuditStore interface {
	// Create inserts a new audit record. It relies on the event_id uniqueness
	// constraint and returns ErrEventAlreadyRecorded when the event was seen before.
	Create(ctx context.Context, record *domain.AuditRecord) error

	// GetByID retrieves an audit record by its surrogate ID.
	// Returns ErrAuditRecordNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditRecord, error)

	// List returns records newest-first by recorded_at plus the total number
	// of records matching the filter.
	List(ctx context.Context, filter AuditFilter, page Page) ([]*domain.AuditRecord, int, error)

	// WithTx returns a new AuditStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) AuditStore
}
