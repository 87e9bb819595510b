// Package ledger records every task event exactly once, keyed by event_id.
//
// Deduplication relies on the storage uniqueness constraint rather than a
// read-before-write check, so concurrent redeliveries of the same event race
// safely: one insert wins and the others are reported as duplicates.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/platform/logger"
	"github.com/todoai/eventflow/internal/store"
)

// Outcome reports what Record did with an event.
type Outcome int

// Record outcomes.
const (
	OutcomeRecorded Outcome = iota + 1
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// RecordParams are the fields of an event to record.
type RecordParams struct {
	EventID       uuid.UUID
	EventType     string
	TaskID        uuid.UUID
	Payload       json.RawMessage
	SourceService string
}

// Service writes audit records.
type Service struct {
	audits store.AuditStore
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a ledger service.
func NewService(audits store.AuditStore, logger *slog.Logger) (*Service, error) {
	if audits == nil {
		return nil, fmt.Errorf("%w: audit store cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		audits: audits,
		now:    time.Now,
		logger: logger.With(slog.String("component", "ledger")),
	}, nil
}

// Record inserts an audit record for the event.
// A second record for the same event_id is not an error: it returns
// OutcomeDuplicate and a nil record. Validation failures wrap
// domain.ErrValidation; any other storage failure is returned for retry.
func (s *Service) Record(ctx context.Context, p RecordParams) (*domain.AuditRecord, Outcome, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	record, err := domain.NewAuditRecord(p.EventID, p.EventType, p.TaskID, p.Payload, p.SourceService, s.now())
	if err != nil {
		log.Warn("rejecting invalid audit record", slog.String("error", err.Error()))
		return nil, 0, err
	}

	if err := s.audits.Create(ctx, record); err != nil {
		if errors.Is(err, store.ErrEventAlreadyRecorded) {
			log.Info("duplicate event skipped", slog.String("event_id", p.EventID.String()))
			return nil, OutcomeDuplicate, nil
		}
		log.Error("failed to record event",
			slog.String("event_id", p.EventID.String()),
			slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to record event %s: %w", p.EventID, err)
	}

	log.Info("audit record created",
		slog.String("record_id", record.ID.String()),
		slog.String("event_id", record.EventID.String()),
		slog.String("source_service", record.SourceService))
	return record, OutcomeRecorded, nil
}
