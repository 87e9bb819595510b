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

const scheduleColumns = `id, parent_task_id, frequency, next_due_date, is_active, created_at, updated_at`

// PostgresRecurrenceStore implements the store.RecurrenceStore interface
// using a PostgreSQL database as the storage backend.
type PostgresRecurrenceStore struct {
	db     store.DBTX
	logger *slog.Logger
	inTx   bool
}

// NewPostgresRecurrenceStore creates a new PostgreSQL implementation of the RecurrenceStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresRecurrenceStore(db store.DBTX, logger *slog.Logger) *PostgresRecurrenceStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresRecurrenceStore{
		db:     db,
		logger: logger.With(slog.String("component", "recurrence_store")),
	}
}

// Ensure PostgresRecurrenceStore implements store.RecurrenceStore interface
var _ store.RecurrenceStore = (*PostgresRecurrenceStore)(nil)

// WithTx implements store.RecurrenceStore.WithTx
func (s *PostgresRecurrenceStore) WithTx(tx *sql.Tx) store.RecurrenceStore {
	return &PostgresRecurrenceStore{db: tx, logger: s.logger, inTx: true}
}

// Create implements store.RecurrenceStore.Create
func (s *PostgresRecurrenceStore) Create(ctx context.Context, schedule *domain.RecurrenceSchedule) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO recurrence_schedules (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		schedule.ID,
		schedule.ParentTaskID,
		string(schedule.Frequency),
		schedule.NextDueDate,
		schedule.IsActive,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create recurrence schedule",
			slog.String("error", err.Error()),
			slog.String("parent_task_id", schedule.ParentTaskID.String()))
		return MapError(err)
	}

	log.Info("recurrence schedule created",
		slog.String("schedule_id", schedule.ID.String()),
		slog.String("parent_task_id", schedule.ParentTaskID.String()),
		slog.String("frequency", string(schedule.Frequency)))
	return nil
}

// GetActiveByParent implements store.RecurrenceStore.GetActiveByParent.
// Within a transaction the matching rows are locked with FOR UPDATE so that
// concurrent completions of the same parent serialize on the schedule.
func (s *PostgresRecurrenceStore) GetActiveByParent(
	ctx context.Context,
	parentTaskID uuid.UUID,
) (*domain.RecurrenceSchedule, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// LIMIT 2 is enough to detect a second active row.
	query := `
		SELECT ` + scheduleColumns + `
		FROM recurrence_schedules
		WHERE parent_task_id = $1 AND is_active = TRUE
		ORDER BY created_at
		LIMIT 2`
	if s.inTx {
		query += ` FOR UPDATE`
	}

	rows, err := s.db.QueryContext(ctx, query, parentTaskID)
	if err != nil {
		log.Error("failed to query active schedule",
			slog.String("error", err.Error()),
			slog.String("parent_task_id", parentTaskID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var found []*domain.RecurrenceSchedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, store.ErrScheduleNotFound
	case 1:
		return found[0], nil
	default:
		log.Error("multiple active recurrence schedules",
			slog.String("parent_task_id", parentTaskID.String()))
		return nil, fmt.Errorf("%w: more than one active schedule for parent task %s",
			store.ErrInvariantViolation, parentTaskID)
	}
}

// Update implements store.RecurrenceStore.Update
func (s *PostgresRecurrenceStore) Update(ctx context.Context, schedule *domain.RecurrenceSchedule) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE recurrence_schedules
		SET next_due_date = $1, is_active = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		schedule.NextDueDate,
		schedule.IsActive,
		schedule.UpdatedAt,
		schedule.ID,
	)
	if err != nil {
		log.Error("failed to update recurrence schedule",
			slog.String("error", err.Error()),
			slog.String("schedule_id", schedule.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrScheduleNotFound); err != nil {
		return err
	}

	log.Debug("recurrence schedule updated",
		slog.String("schedule_id", schedule.ID.String()),
		slog.Time("next_due_date", schedule.NextDueDate),
		slog.Bool("is_active", schedule.IsActive))
	return nil
}

// GetByID implements store.RecurrenceStore.GetByID
func (s *PostgresRecurrenceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurrenceSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM recurrence_schedules WHERE id = $1`

	schedule, err := scanSchedule(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrScheduleNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get recurrence schedule",
			slog.String("error", err.Error()),
			slog.String("schedule_id", id.String()))
		return nil, MapError(err)
	}
	return schedule, nil
}

// List implements store.RecurrenceStore.List
func (s *PostgresRecurrenceStore) List(
	ctx context.Context,
	filter store.ScheduleFilter,
	page store.Page,
) ([]*domain.RecurrenceSchedule, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	page = page.Normalize()

	var conds conditions
	if filter.IsActive != nil {
		conds.add("is_active", *filter.IsActive)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM recurrence_schedules` + conds.where()
	if err := s.db.QueryRowContext(ctx, countQuery, conds.args...).Scan(&total); err != nil {
		log.Error("failed to count recurrence schedules", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}

	limitClause, args := conds.page(page.Limit, page.Offset)
	query := `SELECT ` + scheduleColumns + ` FROM recurrence_schedules` + conds.where() +
		` ORDER BY created_at DESC` + limitClause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list recurrence schedules", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	schedules := []*domain.RecurrenceSchedule{}
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, err
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return schedules, total, nil
}

func scanSchedule(row rowScanner) (*domain.RecurrenceSchedule, error) {
	var s domain.RecurrenceSchedule
	var frequency string
	if err := row.Scan(
		&s.ID,
		&s.ParentTaskID,
		&frequency,
		&s.NextDueDate,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Frequency = domain.Frequency(frequency)
	return &s, nil
}
