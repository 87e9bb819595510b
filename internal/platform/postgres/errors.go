package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/todoai/eventflow/internal/store"
)

// SQLSTATE codes the stores translate.
const (
	codeUniqueViolation  = "23505"
	codeCheckViolation   = "23514"
	codeNotNullViolation = "23502"
)

// Unique constraints that carry an entity-specific duplicate error. Names
// follow the migrations in migrations/.
var duplicateByConstraint = map[string]error{
	"audit_records_event_id_key":        store.ErrEventAlreadyRecorded,
	"idx_notifications_source_event_id": store.ErrNotificationExists,
}

// MapError translates driver errors into store sentinels, keeping the
// driver text for logs. Errors it does not recognise are returned as is.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		if dup, ok := duplicateByConstraint[pgErr.ConstraintName]; ok {
			return fmt.Errorf("%w: %v", dup, err)
		}
		return fmt.Errorf("%w: %s: %v", store.ErrDuplicate, pgErr.ConstraintName, err)
	case codeCheckViolation:
		// e.g. notifications.status outside pending/sent/failed
		return fmt.Errorf("%w: %s violates %s: %v",
			store.ErrInvalidEntity, pgErr.TableName, pgErr.ConstraintName, err)
	case codeNotNullViolation:
		return fmt.Errorf("%w: %s.%s is required: %v",
			store.ErrInvalidEntity, pgErr.TableName, pgErr.ColumnName, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// CheckRowsAffected returns none when an UPDATE matched no row. The
// notification transitions rely on it: their WHERE status = 'pending'
// guard turns a lost race into zero rows.
func CheckRowsAffected(result sql.Result, none error) error {
	if result == nil {
		return errors.New("nil sql result")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}
