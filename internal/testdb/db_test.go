package testdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTestDatabaseURL(t *testing.T) {
	t.Setenv("EVENTFLOW_TEST_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")
	assert.Empty(t, GetTestDatabaseURL())
	assert.True(t, ShouldSkipDatabaseTest())

	t.Setenv("DATABASE_URL", "postgres://fallback")
	assert.Equal(t, "postgres://fallback", GetTestDatabaseURL())

	t.Setenv("EVENTFLOW_TEST_DATABASE_URL", "postgres://preferred")
	assert.Equal(t, "postgres://preferred", GetTestDatabaseURL())
	assert.False(t, ShouldSkipDatabaseTest())
}
