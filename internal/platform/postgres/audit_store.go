package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/platform/logger"
	"github.com/todoai/eventflow/internal/store"
)

const auditColumns = `id, event_id, event_type, task_id, payload, source_service, recorded_at`

// PostgresAuditStore implements the store.AuditStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAuditStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAuditStore creates a new PostgreSQL implementation of the AuditStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresAuditStore(db store.DBTX, logger *slog.Logger) *PostgresAuditStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAuditStore{
		db:     db,
		logger: logger.With(slog.String("component", "audit_store")),
	}
}

// Ensure PostgresAuditStore implements store.AuditStore interface
var _ store.AuditStore = (*PostgresAuditStore)(nil)

// WithTx implements store.AuditStore.WithTx
func (s *PostgresAuditStore) WithTx(tx *sql.Tx) store.AuditStore {
	return &PostgresAuditStore{db: tx, logger: s.logger}
}

// Create implements store.AuditStore.Create.
// There is no existence pre-check: the event_id unique constraint decides,
// so concurrent deliveries of the same event cannot both succeed.
func (s *PostgresAuditStore) Create(ctx context.Context, record *domain.AuditRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO audit_records (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.EventID,
		record.EventType,
		record.TaskID,
		string(record.Payload),
		record.SourceService,
		record.RecordedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("audit record already exists",
				slog.String("event_id", record.EventID.String()))
			return fmt.Errorf("%w: %v", store.ErrEventAlreadyRecorded, err)
		}
		log.Error("failed to create audit record",
			slog.String("error", err.Error()),
			slog.String("event_id", record.EventID.String()))
		return MapError(err)
	}

	log.Debug("audit record created",
		slog.String("audit_id", record.ID.String()),
		slog.String("event_id", record.EventID.String()),
		slog.String("event_type", record.EventType))
	return nil
}

// GetByID implements store.AuditStore.GetByID
func (s *PostgresAuditStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + auditColumns + ` FROM audit_records WHERE id = $1`

	record, err := scanAuditRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAuditRecordNotFound
		}
		log.Error("failed to get audit record",
			slog.String("error", err.Error()),
			slog.String("audit_id", id.String()))
		return nil, MapError(err)
	}
	return record, nil
}

// List implements store.AuditStore.List
func (s *PostgresAuditStore) List(
	ctx context.Context,
	filter store.AuditFilter,
	page store.Page,
) ([]*domain.AuditRecord, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	page = page.Normalize()

	var conds conditions
	if filter.TaskID != nil {
		conds.add("task_id", *filter.TaskID)
	}
	if filter.EventType != "" {
		conds.add("event_type", filter.EventType)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM audit_records` + conds.where()
	if err := s.db.QueryRowContext(ctx, countQuery, conds.args...).Scan(&total); err != nil {
		log.Error("failed to count audit records", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}

	limitClause, args := conds.page(page.Limit, page.Offset)
	query := `SELECT ` + auditColumns + ` FROM audit_records` + conds.where() +
		` ORDER BY recorded_at DESC` + limitClause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list audit records", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	records := []*domain.AuditRecord{}
	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			log.Error("failed to scan audit record", slog.String("error", err.Error()))
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditRecord(row rowScanner) (*domain.AuditRecord, error) {
	var r domain.AuditRecord
	var payload []byte
	if err := row.Scan(
		&r.ID,
		&r.EventID,
		&r.EventType,
		&r.TaskID,
		&payload,
		&r.SourceService,
		&r.RecordedAt,
	); err != nil {
		return nil, err
	}
	r.Payload = payload
	return &r, nil
}
