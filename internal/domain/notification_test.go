package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotification(t *testing.T) {
	now := time.Now()

	n, err := NewNotification(uuid.New(), NotificationTypeReminder, nil, "", now)

	require.NoError(t, err)
	assert.Equal(t, ChannelInApp, n.Channel)
	assert.Equal(t, NotificationStatusPending, n.Status)
	assert.Nil(t, n.SentAt)
	assert.Nil(t, n.ErrorMessage)
	assert.False(t, n.IsTerminal())

	_, err = NewNotification(uuid.Nil, NotificationTypeReminder, nil, "", now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNotification_TerminalMonotonicity(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	t.Run("sent is terminal", func(t *testing.T) {
		n, err := NewNotification(uuid.New(), NotificationTypeReminder, nil, ChannelInApp, now)
		require.NoError(t, err)

		require.NoError(t, n.MarkSent(now))
		require.NotNil(t, n.SentAt)
		assert.Equal(t, now, *n.SentAt)

		assert.ErrorIs(t, n.MarkFailed("late failure"), ErrTerminalState)
		assert.ErrorIs(t, n.MarkSent(now), ErrTerminalState)
		assert.Equal(t, NotificationStatusSent, n.Status)
		assert.Nil(t, n.ErrorMessage)
	})

	t.Run("failed is terminal", func(t *testing.T) {
		n, err := NewNotification(uuid.New(), NotificationTypeReminder, nil, ChannelInApp, now)
		require.NoError(t, err)

		require.NoError(t, n.MarkFailed("smtp down"))
		require.NotNil(t, n.ErrorMessage)
		assert.Equal(t, "smtp down", *n.ErrorMessage)

		assert.ErrorIs(t, n.MarkSent(now), ErrTerminalState)
		assert.Equal(t, NotificationStatusFailed, n.Status)
		assert.Nil(t, n.SentAt)
	})
}
