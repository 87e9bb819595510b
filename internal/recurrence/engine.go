// Package recurrence maintains one active schedule per recurring task and
// re-emits the next occurrence of a task when the current one is completed.
//
// Schedule states: no schedule, active, inactive. Completion advances the
// active schedule's next due date by the frequency interval (daily 1 day,
// weekly 7 days, monthly a fixed 30 days) and publishes a task-created event
// for a fresh task. Deletion deactivates the schedule; inactive schedules are
// never reactivated or removed.
package recurrence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/events"
	"github.com/todoai/eventflow/internal/platform/logger"
	"github.com/todoai/eventflow/internal/store"
)

// DefaultTitle is used for re-emitted tasks whose title is empty.
const DefaultTitle = "Recurring task"

// EventPublisher publishes events to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *events.Event) error
}

// Engine reacts to task lifecycle events.
type Engine struct {
	db        store.TxBeginner
	schedules store.RecurrenceStore
	publisher EventPublisher
	now       func() time.Time
	logger    *slog.Logger
}

// NewEngine creates a recurrence engine.
func NewEngine(
	db store.TxBeginner,
	schedules store.RecurrenceStore,
	publisher EventPublisher,
	logger *slog.Logger,
) (*Engine, error) {
	switch {
	case db == nil:
		return nil, fmt.Errorf("%w: db cannot be nil", domain.ErrValidation)
	case schedules == nil:
		return nil, fmt.Errorf("%w: recurrence store cannot be nil", domain.ErrValidation)
	case publisher == nil:
		return nil, fmt.Errorf("%w: publisher cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		db:        db,
		schedules: schedules,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "recurrence_engine")),
	}, nil
}

// OnTaskCreated creates an active schedule for a recurring task.
// Non-recurring tasks are ignored and return a nil schedule.
func (e *Engine) OnTaskCreated(ctx context.Context, ev *domain.TaskEvent) (*domain.RecurrenceSchedule, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	if !ev.Payload.IsRecurring {
		log.Debug("task is not recurring, no schedule created")
		return nil, nil
	}

	freq := e.frequency(ctx, ev.Payload)
	schedule, err := domain.NewRecurrenceSchedule(ev.TaskID, freq, ev.Payload.DueDate, e.now())
	if err != nil {
		return nil, err
	}

	if err := e.schedules.Create(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to create schedule for task %s: %w", ev.TaskID, err)
	}

	log.Info("recurrence schedule created",
		slog.String("schedule_id", schedule.ID.String()),
		slog.String("frequency", string(schedule.Frequency)),
		slog.Time("next_due_date", schedule.NextDueDate))
	return schedule, nil
}

// OnTaskCompleted advances the task's active schedule and publishes the next
// occurrence. The advance is committed before publishing; a publish failure
// is returned so the completion is redelivered.
// A task without an active schedule is a no-op and returns a nil schedule.
func (e *Engine) OnTaskCompleted(ctx context.Context, ev *domain.TaskEvent) (*domain.RecurrenceSchedule, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	schedule, err := e.mutateActive(ctx, ev.TaskID, func(s *domain.RecurrenceSchedule, now time.Time) error {
		return s.Advance(now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to advance schedule for task %s: %w", ev.TaskID, err)
	}
	if schedule == nil {
		log.Debug("no active schedule for completed task")
		return nil, nil
	}

	next, err := e.nextOccurrence(ev, schedule)
	if err != nil {
		return schedule, err
	}
	if err := e.publisher.Publish(ctx, events.TopicTaskEvents, next); err != nil {
		return schedule, fmt.Errorf("failed to publish next occurrence of task %s: %w", ev.TaskID, err)
	}

	log.Info("recurring task advanced",
		slog.String("schedule_id", schedule.ID.String()),
		slog.String("next_task_id", next.TaskID.String()),
		slog.Time("next_due_date", schedule.NextDueDate))
	return schedule, nil
}

// OnTaskDeleted deactivates the task's active schedule, if any.
func (e *Engine) OnTaskDeleted(ctx context.Context, ev *domain.TaskEvent) (*domain.RecurrenceSchedule, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	schedule, err := e.mutateActive(ctx, ev.TaskID, func(s *domain.RecurrenceSchedule, now time.Time) error {
		return s.Deactivate(now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate schedule for task %s: %w", ev.TaskID, err)
	}
	if schedule == nil {
		log.Debug("no active schedule for deleted task")
		return nil, nil
	}

	log.Info("recurrence schedule deactivated", slog.String("schedule_id", schedule.ID.String()))
	return schedule, nil
}

// mutateActive locks the parent's active schedule, applies fn and persists
// the result in one transaction. It returns nil when there is no active schedule.
func (e *Engine) mutateActive(
	ctx context.Context,
	parentTaskID uuid.UUID,
	fn func(s *domain.RecurrenceSchedule, now time.Time) error,
) (*domain.RecurrenceSchedule, error) {
	var result *domain.RecurrenceSchedule

	err := store.RunInTransaction(ctx, e.db, func(ctx context.Context, tx *sql.Tx) error {
		repo := e.schedules.WithTx(tx)

		schedule, err := repo.GetActiveByParent(ctx, parentTaskID)
		if err != nil {
			if errors.Is(err, store.ErrScheduleNotFound) {
				return nil
			}
			return err
		}

		if err := fn(schedule, e.now()); err != nil {
			return err
		}
		if err := repo.Update(ctx, schedule); err != nil {
			return err
		}
		result = schedule
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) nextOccurrence(ev *domain.TaskEvent, schedule *domain.RecurrenceSchedule) (*events.Event, error) {
	title := ev.Payload.Title
	if title == "" {
		title = DefaultTitle
	}
	due := schedule.NextDueDate
	freq := schedule.Frequency

	payload := domain.TaskPayload{
		Title:              title,
		Description:        ev.Payload.Description,
		Status:             domain.TaskStatusPending,
		DueDate:            &due,
		ReminderTime:       ev.Payload.ReminderTime,
		IsRecurring:        true,
		RecurrenceSchedule: &freq,
	}
	return events.NewEvent(events.TaskCreated, uuid.New(), payload, e.now())
}

// frequency returns the declared frequency, falling back to daily for
// values outside the supported set.
func (e *Engine) frequency(ctx context.Context, p domain.TaskPayload) domain.Frequency {
	freq := p.FrequencyOrDefault()
	if !freq.Valid() {
		logger.FromContextOrDefault(ctx, e.logger).Warn("unsupported recurrence frequency, using daily",
			slog.String("frequency", string(freq)))
		return domain.FrequencyDaily
	}
	return freq
}
