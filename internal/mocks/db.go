package mocks

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// NewTxDB returns a sqlmock-backed *sql.DB that accepts any number of
// transactions, for services that wrap mock stores in store.RunInTransaction.
// Expectations are registered per call with ExpectTx.
func NewTxDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// ExpectTx registers n transactions that begin and then either commit or roll back.
func ExpectTx(mock sqlmock.Sqlmock, n int, commit bool) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		if commit {
			mock.ExpectCommit()
		} else {
			mock.ExpectRollback()
		}
	}
}
