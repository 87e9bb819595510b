package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/todoai/eventflow/internal/platform/postgres"
	"github.com/todoai/eventflow/internal/store"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "audit_records",
		ColumnName:     "event_id",
		ConstraintName: "audit_records_event_id_key",
	}
}

func uniqueViolationOn(constraint string) *pgconn.PgError {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"unique violation", newPgError("23505"), true},
		{"wrapped unique violation", fmt.Errorf("insert: %w", newPgError("23505")), true},
		{"other pg error", newPgError("23503"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, postgres.IsUniqueViolation(tt.err))
		})
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique violation", newPgError("23505"), store.ErrDuplicate},
		{"duplicate audit event", newPgError("23505"), store.ErrEventAlreadyRecorded},
		{"duplicate reminder notification", uniqueViolationOn("idx_notifications_source_event_id"), store.ErrNotificationExists},
		{"unmapped unique constraint", uniqueViolationOn("recurrence_schedules_pkey"), store.ErrDuplicate},
		{"check violation", newPgError("23514"), store.ErrInvalidEntity},
		{"not null violation", newPgError("23502"), store.ErrInvalidEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, postgres.MapError(tt.err), tt.target)
		})
	}

	assert.NoError(t, postgres.MapError(nil))

	unmapped := postgres.MapError(uniqueViolationOn("recurrence_schedules_pkey"))
	assert.NotErrorIs(t, unmapped, store.ErrEventAlreadyRecorded)
	assert.Contains(t, unmapped.Error(), "recurrence_schedules_pkey")

	plain := errors.New("connection refused")
	assert.Same(t, plain, postgres.MapError(plain))
}

func TestCheckRowsAffected(t *testing.T) {
	assert.NoError(t, postgres.CheckRowsAffected(sqlmock.NewResult(0, 1), store.ErrScheduleNotFound))
	assert.ErrorIs(t,
		postgres.CheckRowsAffected(sqlmock.NewResult(0, 0), store.ErrScheduleNotFound),
		store.ErrScheduleNotFound)

	resultErr := errors.New("driver does not support rows affected")
	assert.ErrorIs(t,
		postgres.CheckRowsAffected(sqlmock.NewErrorResult(resultErr), store.ErrNotFound),
		resultErr)

	assert.Error(t, postgres.CheckRowsAffected(nil, store.ErrNotFound))
}
