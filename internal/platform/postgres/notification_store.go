package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/platform/logger"
	"github.com/todoai/eventflow/internal/store"
)

const notificationColumns = `id, task_id, notification_type, channel, status, payload, created_at, sent_at, error_message, source_event_id`

// PostgresNotificationStore implements the store.NotificationStore interface
// using a PostgreSQL database as the storage backend.
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNotificationStore creates a new PostgreSQL implementation of the NotificationStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresNotificationStore(db store.DBTX, logger *slog.Logger) *PostgresNotificationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresNotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

// Ensure PostgresNotificationStore implements store.NotificationStore interface
var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

// WithTx implements store.NotificationStore.WithTx
func (s *PostgresNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore {
	return &PostgresNotificationStore{db: tx, logger: s.logger}
}

// Create implements store.NotificationStore.Create
func (s *PostgresNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		n.ID,
		n.TaskID,
		n.NotificationType,
		string(n.Channel),
		string(n.Status),
		string(n.Payload),
		n.CreatedAt,
		n.SentAt,
		n.ErrorMessage,
		n.SourceEventID,
	)
	if err != nil {
		if IsUniqueViolation(err) && n.SourceEventID != nil {
			log.Info("notification for source event already exists",
				slog.String("source_event_id", n.SourceEventID.String()))
			return store.ErrNotificationExists
		}
		log.Error("failed to create notification",
			slog.String("error", err.Error()),
			slog.String("task_id", n.TaskID.String()))
		return MapError(err)
	}

	log.Debug("notification created",
		slog.String("notification_id", n.ID.String()),
		slog.String("channel", string(n.Channel)))
	return nil
}

// MarkSent implements store.NotificationStore.MarkSent
func (s *PostgresNotificationStore) MarkSent(ctx context.Context, n *domain.Notification) error {
	query := `
		UPDATE notifications
		SET status = $1, sent_at = $2
		WHERE id = $3 AND status = 'pending'
	`
	return s.transition(ctx, n, query, string(domain.NotificationStatusSent), n.SentAt, n.ID)
}

// MarkFailed implements store.NotificationStore.MarkFailed
func (s *PostgresNotificationStore) MarkFailed(ctx context.Context, n *domain.Notification) error {
	query := `
		UPDATE notifications
		SET status = $1, error_message = $2
		WHERE id = $3 AND status = 'pending'
	`
	return s.transition(ctx, n, query, string(domain.NotificationStatusFailed), n.ErrorMessage, n.ID)
}

func (s *PostgresNotificationStore) transition(
	ctx context.Context,
	n *domain.Notification,
	query string,
	args ...any,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update notification status",
			slog.String("error", err.Error()),
			slog.String("notification_id", n.ID.String()),
			slog.String("status", string(n.Status)))
		return MapError(err)
	}

	// Zero rows means the notification is missing or already terminal.
	if err := CheckRowsAffected(result, store.ErrNotificationNotPending); err != nil {
		log.Warn("notification status not updated",
			slog.String("notification_id", n.ID.String()),
			slog.String("status", string(n.Status)),
			slog.String("error", err.Error()))
		return err
	}

	log.Info("notification status updated",
		slog.String("notification_id", n.ID.String()),
		slog.String("status", string(n.Status)))
	return nil
}

// GetByID implements store.NotificationStore.GetByID
func (s *PostgresNotificationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotificationNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get notification",
			slog.String("error", err.Error()),
			slog.String("notification_id", id.String()))
		return nil, MapError(err)
	}
	return n, nil
}

// GetBySourceEvent implements store.NotificationStore.GetBySourceEvent
func (s *PostgresNotificationStore) GetBySourceEvent(
	ctx context.Context,
	eventID uuid.UUID,
) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE source_event_id = $1`

	n, err := scanNotification(s.db.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotificationNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get notification by source event",
			slog.String("error", err.Error()),
			slog.String("source_event_id", eventID.String()))
		return nil, MapError(err)
	}
	return n, nil
}

// List implements store.NotificationStore.List
func (s *PostgresNotificationStore) List(
	ctx context.Context,
	filter store.NotificationFilter,
	page store.Page,
) ([]*domain.Notification, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	page = page.Normalize()

	var conds conditions
	if filter.Status != "" {
		conds.add("status", string(filter.Status))
	}
	if filter.TaskID != nil {
		conds.add("task_id", *filter.TaskID)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM notifications` + conds.where()
	if err := s.db.QueryRowContext(ctx, countQuery, conds.args...).Scan(&total); err != nil {
		log.Error("failed to count notifications", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}

	limitClause, args := conds.page(page.Limit, page.Offset)
	query := `SELECT ` + notificationColumns + ` FROM notifications` + conds.where() +
		` ORDER BY created_at DESC` + limitClause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list notifications", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	notifications := []*domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	var channel, status string
	var payload []byte
	var sentAt sql.NullTime
	var errorMessage sql.NullString
	var sourceEventID uuid.NullUUID

	if err := row.Scan(
		&n.ID,
		&n.TaskID,
		&n.NotificationType,
		&channel,
		&status,
		&payload,
		&n.CreatedAt,
		&sentAt,
		&errorMessage,
		&sourceEventID,
	); err != nil {
		return nil, err
	}

	n.Channel = domain.Channel(channel)
	n.Status = domain.NotificationStatus(status)
	n.Payload = payload
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	if errorMessage.Valid {
		msg := errorMessage.String
		n.ErrorMessage = &msg
	}
	if sourceEventID.Valid {
		id := sourceEventID.UUID
		n.SourceEventID = &id
	}
	return &n, nil
}
