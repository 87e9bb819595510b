package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/domain"
)

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	Status domain.NotificationStatus
	TaskID *uuid.UUID
}

// NotificationStore defines the interface for notification persistence.
type NotificationStore interface {
	// Create inserts a new pending notification. A second notification for
	// the same SourceEventID returns ErrNotificationExists.
	Create(ctx context.Context, n *domain.Notification) error

	// MarkSent records a successful delivery. Only pending rows are updated;
	// otherwise ErrNotificationNotPending is returned.
	MarkSent(ctx context.Context, n *domain.Notification) error

	// MarkFailed records a failed delivery. Only pending rows are updated;
	// otherwise ErrNotificationNotPending is returned.
	MarkFailed(ctx context.Context, n *domain.Notification) error

	// GetByID retrieves a notification by ID.
	// Returns ErrNotificationNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)

	// GetBySourceEvent retrieves the notification produced from eventID.
	// Returns ErrNotificationNotFound if there is none.
	GetBySourceEvent(ctx context.Context, eventID uuid.UUID) (*domain.Notification, error)

	// List returns notifications newest-first by created_at plus the matching total.
	List(ctx context.Context, filter NotificationFilter, page Page) ([]*domain.Notification, int, error)

	// WithTx returns a new NotificationStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) NotificationStore
}
