package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/platform/logger"
	"github.com/todoai/eventflow/internal/platform/postgres"
	"github.com/todoai/eventflow/internal/store"
)

var scheduleColumns = []string{
	"id", "parent_task_id", "frequency", "next_due_date", "is_active", "created_at", "updated_at",
}

const lockActiveSchedule = `FROM recurrence_schedules WHERE parent_task_id = \$1 AND is_active = TRUE ORDER BY created_at LIMIT 2 FOR UPDATE`

// scheduleFixture is one weekly schedule as stored in recurrence_schedules.
type scheduleFixture struct {
	id     uuid.UUID
	parent uuid.UUID
	due    time.Time
}

func newScheduleFixture() scheduleFixture {
	return scheduleFixture{
		id:     uuid.New(),
		parent: uuid.New(),
		due:    time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC),
	}
}

func (f scheduleFixture) rows() *sqlmock.Rows {
	created := f.due.AddDate(0, 0, -7)
	return sqlmock.NewRows(scheduleColumns).
		AddRow(f.id.String(), f.parent.String(), "weekly", f.due, true, created, created)
}

// advanceSchedule is the completion path of the recurrence engine: lock the
// parent's active schedule, advance it and persist it in one transaction.
func advanceSchedule(
	ctx context.Context,
	db *sql.DB,
	parent uuid.UUID,
	now time.Time,
) (*domain.RecurrenceSchedule, error) {
	schedules := postgres.NewPostgresRecurrenceStore(db, nil)

	var advanced *domain.RecurrenceSchedule
	err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		repo := schedules.WithTx(tx)
		schedule, err := repo.GetActiveByParent(ctx, parent)
		if err != nil {
			return err
		}
		if err := schedule.Advance(now); err != nil {
			return err
		}
		if err := repo.Update(ctx, schedule); err != nil {
			return err
		}
		advanced = schedule
		return nil
	})
	if err != nil {
		return nil, err
	}
	return advanced, nil
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestRunInTransaction_AdvanceCommits(t *testing.T) {
	db, mock := newMockDB(t)
	f := newScheduleFixture()
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(lockActiveSchedule).WithArgs(f.parent).WillReturnRows(f.rows())
	mock.ExpectExec(`UPDATE recurrence_schedules`).
		WithArgs(f.due.AddDate(0, 0, 7), true, now, f.id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	schedule, err := advanceSchedule(context.Background(), db, f.parent, now)

	require.NoError(t, err)
	assert.True(t, f.due.AddDate(0, 0, 7).Equal(schedule.NextDueDate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_RollsBack(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

	t.Run("second active schedule", func(t *testing.T) {
		db, mock := newMockDB(t)
		f := newScheduleFixture()
		rows := f.rows().AddRow(uuid.New().String(), f.parent.String(), "daily", f.due, true, f.due, f.due)

		mock.ExpectBegin()
		mock.ExpectQuery(lockActiveSchedule).WithArgs(f.parent).WillReturnRows(rows)
		mock.ExpectRollback()

		_, err := advanceSchedule(context.Background(), db, f.parent, now)

		assert.ErrorIs(t, err, store.ErrInvariantViolation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("schedule vanished before update", func(t *testing.T) {
		db, mock := newMockDB(t)
		f := newScheduleFixture()

		mock.ExpectBegin()
		mock.ExpectQuery(lockActiveSchedule).WithArgs(f.parent).WillReturnRows(f.rows())
		mock.ExpectExec(`UPDATE recurrence_schedules`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := advanceSchedule(context.Background(), db, f.parent, now)

		assert.ErrorIs(t, err, store.ErrScheduleNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback failure keeps the cause", func(t *testing.T) {
		db, mock := newMockDB(t)
		f := newScheduleFixture()

		mock.ExpectBegin()
		mock.ExpectQuery(lockActiveSchedule).WithArgs(f.parent).WillReturnError(errors.New("lock timeout"))
		mock.ExpectRollback().WillReturnError(errors.New("connection lost"))

		_, err := advanceSchedule(context.Background(), db, f.parent, now)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "error rolling back transaction: connection lost")
		assert.Contains(t, err.Error(), "lock timeout")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRunInTransaction_BeginAndCommitFailures(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

	t.Run("begin", func(t *testing.T) {
		db, mock := newMockDB(t)
		beginErr := errors.New("too many connections")
		mock.ExpectBegin().WillReturnError(beginErr)

		_, err := advanceSchedule(context.Background(), db, uuid.New(), now)

		assert.ErrorIs(t, err, beginErr)
		assert.Contains(t, err.Error(), "failed to begin transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit", func(t *testing.T) {
		db, mock := newMockDB(t)
		f := newScheduleFixture()
		commitErr := errors.New("serialization failure")

		mock.ExpectBegin()
		mock.ExpectQuery(lockActiveSchedule).WithArgs(f.parent).WillReturnRows(f.rows())
		mock.ExpectExec(`UPDATE recurrence_schedules`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(commitErr)

		schedule, err := advanceSchedule(context.Background(), db, f.parent, now)

		assert.Nil(t, schedule, "an uncommitted advance must not be reported")
		assert.ErrorIs(t, err, commitErr)
		assert.Contains(t, err.Error(), "failed to commit transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRunInTransaction_PanicRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	f := newScheduleFixture()

	mock.ExpectBegin()
	mock.ExpectQuery(lockActiveSchedule).WithArgs(f.parent).WillReturnRows(f.rows())
	mock.ExpectRollback()

	schedules := postgres.NewPostgresRecurrenceStore(db, nil)
	assert.PanicsWithValue(t, "frequency table corrupted", func() {
		_ = store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			if _, err := schedules.WithTx(tx).GetActiveByParent(ctx, f.parent); err != nil {
				return err
			}
			panic("frequency table corrupted")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_LogsThroughContextLogger(t *testing.T) {
	db, mock := newMockDB(t)
	f := newScheduleFixture()

	mock.ExpectBegin()
	mock.ExpectQuery(lockActiveSchedule).WithArgs(f.parent).WillReturnRows(sqlmock.NewRows(scheduleColumns))
	mock.ExpectRollback()

	ctx, logBuf := logger.NewCaptureContext(t)
	_, err := advanceSchedule(ctx, db, f.parent, time.Now())

	assert.ErrorIs(t, err, store.ErrScheduleNotFound)
	logger.AssertLogContains(t, logBuf, "rolled back transaction due to error")
	assert.NoError(t, mock.ExpectationsWereMet())
}
