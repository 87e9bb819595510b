package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoai/eventflow/internal/broker"
	"github.com/todoai/eventflow/internal/domain"
)

const sampleEvent = `{
	"event_id": "5b7c1e3e-2f6a-4d8e-9a41-0f5e3c2b1a90",
	"event_type": "task-completed",
	"task_id": "0e9d8c7b-6a54-4321-8fed-cba987654321",
	"timestamp": "2025-03-01T10:00:00Z",
	"schema_version": "1.0",
	"payload": {
		"title": "Water plants",
		"status": "complete",
		"due_date": "2025-03-01T09:00:00Z",
		"is_recurring": true,
		"recurrence_schedule": "weekly"
	}
}`

func TestDecode(t *testing.T) {
	t.Run("cloudevent envelope", func(t *testing.T) {
		body := `{"specversion":"1.0","type":"com.todoai.task.completed","source":"todo-service","data":` +
			sampleEvent + `}`

		env, err := Decode([]byte(body))

		require.NoError(t, err)
		assert.Equal(t, "com.todoai.task.completed", env.Type)
		assert.Equal(t, TaskCompleted, env.Event.EventType)
		assert.Equal(t, "todo-service", env.SourceService())
		assert.Equal(t, uuid.MustParse("0e9d8c7b-6a54-4321-8fed-cba987654321"), env.Event.TaskID)
	})

	t.Run("bare event body", func(t *testing.T) {
		env, err := Decode([]byte(sampleEvent))

		require.NoError(t, err)
		assert.Equal(t, TaskCompleted, env.Event.EventType)
		assert.Equal(t, domain.UnknownSource, env.SourceService())
	})

	t.Run("missing payload defaults to empty object", func(t *testing.T) {
		body := `{"event_id":"5b7c1e3e-2f6a-4d8e-9a41-0f5e3c2b1a90","event_type":"task-deleted",` +
			`"task_id":"0e9d8c7b-6a54-4321-8fed-cba987654321"}`

		env, err := Decode([]byte(body))

		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(env.Event.Payload))
	})

	malformed := map[string]string{
		"not json":         `{`,
		"missing event id": `{"event_type":"task-created","task_id":"0e9d8c7b-6a54-4321-8fed-cba987654321"}`,
		"missing type":     `{"event_id":"5b7c1e3e-2f6a-4d8e-9a41-0f5e3c2b1a90","task_id":"0e9d8c7b-6a54-4321-8fed-cba987654321"}`,
		"bad task id":      `{"event_id":"5b7c1e3e-2f6a-4d8e-9a41-0f5e3c2b1a90","event_type":"task-created","task_id":"42"}`,
	}
	for name, body := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEvent)
			assert.True(t, broker.IsPermanent(err))
		})
	}
}

func TestEnvelope_SourceService(t *testing.T) {
	env := &Envelope{Event: Event{SourceService: "todo-service"}}
	assert.Equal(t, "todo-service", env.SourceService())

	env.Source = "gateway"
	assert.Equal(t, "gateway", env.SourceService())
}

func TestEnvelope_TaskEvent(t *testing.T) {
	env, err := Decode([]byte(sampleEvent))
	require.NoError(t, err)

	te, err := env.TaskEvent()

	require.NoError(t, err)
	assert.Equal(t, "Water plants", te.Payload.Title)
	assert.True(t, te.Payload.IsRecurring)
	assert.Equal(t, domain.FrequencyWeekly, te.Payload.FrequencyOrDefault())
	require.NotNil(t, te.Payload.DueDate)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), te.Payload.DueDate.UTC())

	env.Event.Payload = json.RawMessage(`{"title": 7}`)
	_, err = env.TaskEvent()
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestEncode(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	event, err := NewEvent(ReminderFired, uuid.New(),
		domain.ReminderPayload{Title: "Call mom", ReminderTime: now, Channel: domain.ChannelInApp}, now)
	require.NoError(t, err)

	body, err := Encode(event, "recurring-task-service")
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(body, &wire))
	assert.Equal(t, "1.0", wire["specversion"])
	assert.Equal(t, "com.todoai.reminder.fired", wire["type"])
	assert.Equal(t, "recurring-task-service", wire["source"])
	assert.Equal(t, "application/json", wire["datacontenttype"])

	env, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, env.Event.EventID)
	assert.Equal(t, ReminderFired, env.Event.EventType)

	var payload domain.ReminderPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "Call mom", payload.Title)
}

func TestCloudEventType(t *testing.T) {
	assert.Equal(t, "com.todoai.task.created", TaskCreated.CloudEventType())
	assert.Equal(t, "com.todoai.task.deleted", TaskDeleted.CloudEventType())
	assert.Equal(t, UnknownCloudEventType, EventType("task-archived").CloudEventType())

	_, err := ParseEventType("task-archived")
	assert.ErrorIs(t, err, ErrUnknownEventType)

	parsed, err := ParseEventType("task-updated")
	require.NoError(t, err)
	assert.Equal(t, TaskUpdated, parsed)
}
