package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/domain"
)

// CloudEvents attributes set on outgoing envelopes.
const (
	SpecVersion     = "1.0"
	ContentTypeJSON = "application/json"
	SchemaVersion   = "1.0"
)

// Event is a domain event as carried in the envelope data.
type Event struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     EventType       `json:"event_type"`
	TaskID        uuid.UUID       `json:"task_id"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	SourceService string          `json:"source_service,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEvent builds an event with a fresh event id.
func NewEvent(eventType EventType, taskID uuid.UUID, payload any, now time.Time) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		EventID:       uuid.New(),
		EventType:     eventType,
		TaskID:        taskID,
		Timestamp:     now.UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       raw,
	}, nil
}

// Envelope is a decoded inbound message: CloudEvents attributes plus the event.
type Envelope struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type,omitempty"`
	Source string `json:"source,omitempty"`

	Event Event `json:"-"`
}

// wireEnvelope is the CloudEvents structured-mode JSON form.
type wireEnvelope struct {
	SpecVersion     string          `json:"specversion,omitempty"`
	ID              string          `json:"id,omitempty"`
	Type            string          `json:"type,omitempty"`
	Source          string          `json:"source,omitempty"`
	DataContentType string          `json:"datacontenttype,omitempty"`
	Time            *time.Time      `json:"time,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// Decode parses a delivered message. The event is read from the envelope's
// data member when present, otherwise from the body itself.
// Every failure wraps ErrMalformedEvent.
func Decode(body []byte) (*Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	data := wire.Data
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = body
	}

	env := &Envelope{ID: wire.ID, Type: wire.Type, Source: wire.Source}
	if err := json.Unmarshal(data, &env.Event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch {
	case env.Event.EventID == uuid.Nil:
		return nil, fmt.Errorf("%w: event_id is required", ErrMalformedEvent)
	case env.Event.EventType == "":
		return nil, fmt.Errorf("%w: event_type is required", ErrMalformedEvent)
	case env.Event.TaskID == uuid.Nil:
		return nil, fmt.Errorf("%w: task_id is required", ErrMalformedEvent)
	}
	if len(env.Event.Payload) == 0 || bytes.Equal(env.Event.Payload, []byte("null")) {
		env.Event.Payload = json.RawMessage(`{}`)
	}
	return env, nil
}

// SourceService resolves the producing service: the envelope source, then
// the event's source_service, then domain.UnknownSource.
func (e *Envelope) SourceService() string {
	switch {
	case e.Source != "":
		return e.Source
	case e.Event.SourceService != "":
		return e.Event.SourceService
	default:
		return domain.UnknownSource
	}
}

// DecodePayload unmarshals the event payload into v.
func (e *Envelope) DecodePayload(v any) error {
	if err := json.Unmarshal(e.Event.Payload, v); err != nil {
		return fmt.Errorf("%w: invalid %s payload: %v", ErrMalformedEvent, e.Event.EventType, err)
	}
	return nil
}

// TaskEvent decodes the envelope as a task lifecycle event.
func (e *Envelope) TaskEvent() (*domain.TaskEvent, error) {
	var payload domain.TaskPayload
	if err := e.DecodePayload(&payload); err != nil {
		return nil, err
	}
	return &domain.TaskEvent{
		EventID:   e.Event.EventID,
		EventType: string(e.Event.EventType),
		TaskID:    e.Event.TaskID,
		Timestamp: e.Event.Timestamp,
		Payload:   payload,
	}, nil
}

// Encode wraps event in a CloudEvents envelope attributed to source.
func Encode(event *Event, source string) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	ts := event.Timestamp
	return json.Marshal(wireEnvelope{
		SpecVersion:     SpecVersion,
		ID:              uuid.NewString(),
		Type:            event.EventType.CloudEventType(),
		Source:          source,
		DataContentType: ContentTypeJSON,
		Time:            &ts,
		Data:            data,
	})
}
