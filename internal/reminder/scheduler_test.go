package reminder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/events"
	"github.com/todoai/eventflow/internal/mocks"
	"github.com/todoai/eventflow/internal/platform/logger"
)

func newScheduler(t *testing.T, publisher EventPublisher) *Scheduler {
	t.Helper()
	log, _ := logger.NewTestLogger(t)
	s := NewScheduler(publisher, log)
	s.Start(context.Background())
	t.Cleanup(s.Shutdown)
	return s
}

func reminderPayload(t *testing.T, e *events.Event) domain.ReminderPayload {
	t.Helper()
	var p domain.ReminderPayload
	env := &events.Envelope{Event: *e}
	require.NoError(t, env.DecodePayload(&p))
	return p
}

func TestJobID(t *testing.T) {
	id := uuid.MustParse("0e9d8c7b-6a54-4321-8fed-cba987654321")
	assert.Equal(t, "reminder-0e9d8c7b-6a54-4321-8fed-cba987654321", JobID(id))
}

func TestScheduler_PastReminderFiresImmediately(t *testing.T) {
	publisher := &mocks.MockEventPublisher{}
	s := newScheduler(t, publisher)
	taskID := uuid.New()
	at := time.Now().Add(-time.Hour)

	jobID, err := s.Schedule(context.Background(), taskID, "Pay rent", at)
	require.NoError(t, err)
	assert.Equal(t, JobID(taskID), jobID)

	require.Eventually(t, func() bool { return len(publisher.Published()) == 1 }, time.Second, 5*time.Millisecond)

	published := publisher.Published()[0]
	assert.Equal(t, events.TopicReminders, published.Topic)
	assert.Equal(t, events.ReminderFired, published.Event.EventType)
	assert.Equal(t, taskID, published.Event.TaskID)

	p := reminderPayload(t, published.Event)
	assert.Equal(t, "Pay rent", p.Title)
	assert.Equal(t, domain.ChannelInApp, p.Channel)
	assert.True(t, at.Equal(p.ReminderTime))

	pending, err := s.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending, "a fired job is consumed")
}

func TestScheduler_ReplaceSemantics(t *testing.T) {
	publisher := &mocks.MockEventPublisher{}
	s := newScheduler(t, publisher)
	taskID := uuid.New()

	_, err := s.Schedule(context.Background(), taskID, "first", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = s.Schedule(context.Background(), taskID, "second", time.Now().Add(2*time.Hour))
	require.NoError(t, err)

	pending, err := s.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1, "one pending job per task")
	assert.Equal(t, "second", pending[0].Title)

	// Re-register in the near future: only the latest parameters fire, once.
	_, err = s.Schedule(context.Background(), taskID, "third", time.Now().Add(20*time.Millisecond))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(publisher.Published()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	published := publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "third", reminderPayload(t, published[0].Event).Title)
}

func TestScheduler_PendingOrderedByRunTime(t *testing.T) {
	s := newScheduler(t, &mocks.MockEventPublisher{})
	later, sooner := uuid.New(), uuid.New()

	_, err := s.Schedule(context.Background(), later, "later", time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	_, err = s.Schedule(context.Background(), sooner, "sooner", time.Now().Add(time.Hour))
	require.NoError(t, err)

	pending, err := s.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, JobID(sooner), pending[0].ID)
	assert.Equal(t, JobID(later), pending[1].ID)
}

func TestScheduler_ShutdownCancelsWithoutFiring(t *testing.T) {
	publisher := &mocks.MockEventPublisher{}
	log, _ := logger.NewTestLogger(t)
	s := NewScheduler(publisher, log)
	s.Start(context.Background())

	_, err := s.Schedule(context.Background(), uuid.New(), "never", time.Now().Add(30*time.Millisecond))
	require.NoError(t, err)

	s.Shutdown()
	s.Shutdown()
	time.Sleep(60 * time.Millisecond)

	assert.Empty(t, publisher.Published())

	_, err = s.Schedule(context.Background(), uuid.New(), "late", time.Now())
	assert.ErrorIs(t, err, ErrStopped)
	_, err = s.Pending(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestScheduler_NotStarted(t *testing.T) {
	s := NewScheduler(&mocks.MockEventPublisher{}, nil)

	_, err := s.Schedule(context.Background(), uuid.New(), "x", time.Now())
	assert.ErrorIs(t, err, ErrNotStarted)

	s.Shutdown()
}

func TestScheduler_RetriesPublish(t *testing.T) {
	var attempts atomic.Int32
	publisher := &mocks.MockEventPublisher{
		PublishFn: func(ctx context.Context, topic string, event *events.Event) error {
			if attempts.Add(1) < 3 {
				return errors.New("broker unavailable")
			}
			return nil
		},
	}
	s := newScheduler(t, publisher)

	_, err := s.Schedule(context.Background(), uuid.New(), "retry me", time.Now())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(publisher.Published()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestScheduler_ConcurrentSchedules(t *testing.T) {
	s := newScheduler(t, &mocks.MockEventPublisher{})
	taskIDs := make([]uuid.UUID, 25)
	for i := range taskIDs {
		taskIDs[i] = uuid.New()
	}

	done := make(chan struct{})
	for _, id := range taskIDs {
		go func(id uuid.UUID) {
			defer func() { done <- struct{}{} }()
			_, err := s.Schedule(context.Background(), id, "t", time.Now().Add(time.Hour))
			assert.NoError(t, err)
		}(id)
	}
	for range taskIDs {
		<-done
	}

	pending, err := s.Pending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, len(taskIDs))
}
