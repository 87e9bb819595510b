package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UnknownSource is recorded when an event carries no source information.
const UnknownSource = "unknown"

// AuditRecord is the immutable ledger entry written once per event_id.
type AuditRecord struct {
	ID            uuid.UUID       `json:"id"`
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	TaskID        uuid.UUID       `json:"task_id"`
	Payload       json.RawMessage `json:"payload"`
	SourceService string          `json:"source_service"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

// NewAuditRecord builds a validated audit record stamped with now.
// An empty source is recorded as UnknownSource.
func NewAuditRecord(
	eventID uuid.UUID,
	eventType string,
	taskID uuid.UUID,
	payload json.RawMessage,
	source string,
	now time.Time,
) (*AuditRecord, error) {
	if source == "" {
		source = UnknownSource
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	r := &AuditRecord{
		ID:            uuid.New(),
		EventID:       eventID,
		EventType:     eventType,
		TaskID:        taskID,
		Payload:       payload,
		SourceService: source,
		RecordedAt:    now.UTC(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the invariants of an audit record.
func (r *AuditRecord) Validate() error {
	switch {
	case r.EventID == uuid.Nil:
		return fmt.Errorf("%w: event_id is required", ErrValidation)
	case r.TaskID == uuid.Nil:
		return fmt.Errorf("%w: task_id is required", ErrValidation)
	case r.EventType == "":
		return fmt.Errorf("%w: event_type is required", ErrValidation)
	case len(r.EventType) > 50:
		return fmt.Errorf("%w: event_type exceeds 50 characters", ErrValidation)
	case len(r.SourceService) > 100:
		return fmt.Errorf("%w: source_service exceeds 100 characters", ErrValidation)
	}
	return nil
}
