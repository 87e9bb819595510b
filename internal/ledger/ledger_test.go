package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/events"
	"github.com/todoai/eventflow/internal/ledger"
	"github.com/todoai/eventflow/internal/mocks"
	"github.com/todoai/eventflow/internal/platform/logger"
	"github.com/todoai/eventflow/internal/store"
)

func newService(t *testing.T, audits store.AuditStore) *ledger.Service {
	t.Helper()
	log, _ := logger.NewTestLogger(t)
	svc, err := ledger.NewService(audits, log)
	require.NoError(t, err)
	return svc
}

func params() ledger.RecordParams {
	return ledger.RecordParams{
		EventID:       uuid.New(),
		EventType:     "task-created",
		TaskID:        uuid.New(),
		Payload:       json.RawMessage(`{"title":"Buy milk"}`),
		SourceService: "todo-service",
	}
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := ledger.NewService(nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRecord_Idempotent(t *testing.T) {
	audits := mocks.NewMockAuditStore()
	svc := newService(t, audits)
	p := params()

	record, outcome, err := svc.Record(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeRecorded, outcome)
	require.NotNil(t, record)
	assert.Equal(t, p.EventID, record.EventID)
	assert.Equal(t, "todo-service", record.SourceService)

	again, outcome, err := svc.Record(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeDuplicate, outcome)
	assert.Nil(t, again)

	assert.Len(t, audits.Records(), 1)
	assert.Equal(t, 2, audits.CreateCalls(), "duplicates are detected by the insert, not a pre-check")
}

func TestRecord_ConcurrentDuplicates(t *testing.T) {
	audits := mocks.NewMockAuditStore()
	svc := newService(t, audits)
	p := params()

	const deliveries = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := map[ledger.Outcome]int{}

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, outcome, err := svc.Record(context.Background(), p)
			assert.NoError(t, err)
			mu.Lock()
			outcomes[outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, outcomes[ledger.OutcomeRecorded])
	assert.Equal(t, deliveries-1, outcomes[ledger.OutcomeDuplicate])
	assert.Len(t, audits.Records(), 1)
}

func TestRecord_StorageFailureIsRetryable(t *testing.T) {
	audits := mocks.NewMockAuditStore()
	dbErr := errors.New("connection reset by peer")
	audits.CreateFn = func(ctx context.Context, r *domain.AuditRecord) error { return dbErr }
	svc := newService(t, audits)

	_, _, err := svc.Record(context.Background(), params())

	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.False(t, events.IsMalformed(err))
}

func TestRecord_DefaultsMissingSource(t *testing.T) {
	svc := newService(t, mocks.NewMockAuditStore())
	p := params()
	p.SourceService = ""
	p.Payload = nil

	record, _, err := svc.Record(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, domain.UnknownSource, record.SourceService)
	assert.JSONEq(t, `{}`, string(record.Payload))
}

func TestHandler(t *testing.T) {
	audits := mocks.NewMockAuditStore()
	svc := newService(t, audits)
	h := ledger.NewHandler(svc)

	log, _ := logger.NewTestLogger(t)
	d := events.NewDispatcher(log)
	h.Register(d)
	assert.Len(t, d.Types(), 4)

	t.Run("records with envelope source", func(t *testing.T) {
		env := &events.Envelope{
			Source: "gateway",
			Event: events.Event{
				EventID:       uuid.New(),
				EventType:     events.TaskUpdated,
				TaskID:        uuid.New(),
				SourceService: "todo-service",
				Payload:       json.RawMessage(`{"title":"x"}`),
			},
		}
		require.NoError(t, d.Dispatch(context.Background(), env))

		record, err := findByEventID(audits, env.Event.EventID)
		require.NoError(t, err)
		assert.Equal(t, "gateway", record.SourceService)
		assert.Equal(t, "task-updated", record.EventType)
	})

	t.Run("redelivery is a success", func(t *testing.T) {
		env := &events.Envelope{Event: events.Event{
			EventID: uuid.New(), EventType: events.TaskDeleted, TaskID: uuid.New(),
		}}
		require.NoError(t, d.Dispatch(context.Background(), env))
		require.NoError(t, d.Dispatch(context.Background(), env))
	})

	t.Run("oversized source is malformed", func(t *testing.T) {
		env := &events.Envelope{
			Source: strings.Repeat("s", 101),
			Event:  events.Event{EventID: uuid.New(), EventType: events.TaskCreated, TaskID: uuid.New()},
		}
		err := h.Handle(context.Background(), env)
		assert.True(t, events.IsMalformed(err))
	})
}

func findByEventID(audits *mocks.MockAuditStore, id uuid.UUID) (*domain.AuditRecord, error) {
	for _, r := range audits.Records() {
		if r.EventID == id {
			return r, nil
		}
	}
	return nil, store.ErrAuditRecordNotFound
}
