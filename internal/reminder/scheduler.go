// Package reminder schedules one-shot reminder timers and publishes a
// reminder-fired event when one elapses.
//
// A Scheduler owns a table of pending jobs keyed by task. All mutations of
// the table (registration, replacement, firing and shutdown) run on a single
// loop goroutine; callers hand requests to it through a channel. The table is
// process-local: pending reminders do not survive a restart.
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/events"
)

// JobPrefix prefixes every reminder job id.
const JobPrefix = "reminder-"

const (
	publishTimeout = 10 * time.Second
	publishRetries = 3
)

var (
	// ErrNotStarted is returned when the scheduler loop is not running yet.
	ErrNotStarted = errors.New("reminder scheduler not started")

	// ErrStopped is returned after Shutdown.
	ErrStopped = errors.New("reminder scheduler stopped")
)

// EventPublisher publishes events to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *events.Event) error
}

// Job is a pending reminder.
type Job struct {
	ID     string
	TaskID uuid.UUID
	Title  string
	RunAt  time.Time
}

// JobID returns the deterministic job id for a task.
func JobID(taskID uuid.UUID) string {
	return JobPrefix + taskID.String()
}

type entry struct {
	job   Job
	gen   uint64
	timer *time.Timer
}

type fireSignal struct {
	id  string
	gen uint64
}

type scheduleCmd struct {
	job   Job
	reply chan struct{}
}

type pendingCmd struct {
	reply chan []Job
}

// Scheduler runs reminder jobs.
type Scheduler struct {
	publisher EventPublisher
	now       func() time.Time
	logger    *slog.Logger

	cmds     chan any
	fired    chan fireSignal
	stop     chan struct{}
	loopDone chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   chan struct{}

	// in-flight publishes
	inflight sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler creates a stopped scheduler. Call Start before Schedule.
func NewScheduler(publisher EventPublisher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "reminder_scheduler")),
		cmds:      make(chan any),
		fired:     make(chan fireSignal),
		stop:      make(chan struct{}),
		loopDone:  make(chan struct{}),
		started:   make(chan struct{}),
	}
}

// Start launches the scheduling loop. Publishes triggered by fired jobs use
// a context derived from ctx. Calling Start more than once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
		close(s.started)
		go s.loop()
		s.logger.Info("reminder scheduler started")
	})
}

// Schedule registers a reminder for taskID at the given time, replacing any
// pending reminder for the same task. Times in the past fire immediately.
func (s *Scheduler) Schedule(ctx context.Context, taskID uuid.UUID, title string, at time.Time) (string, error) {
	job := Job{ID: JobID(taskID), TaskID: taskID, Title: title, RunAt: at.UTC()}
	cmd := scheduleCmd{job: job, reply: make(chan struct{}, 1)}

	if err := s.send(ctx, cmd); err != nil {
		return "", err
	}
	select {
	case <-cmd.reply:
		return job.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Pending returns the pending jobs ordered by run time.
func (s *Scheduler) Pending(ctx context.Context) ([]Job, error) {
	cmd := pendingCmd{reply: make(chan []Job, 1)}
	if err := s.send(ctx, cmd); err != nil {
		return nil, err
	}
	select {
	case jobs := <-cmd.reply:
		return jobs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown cancels every pending job without firing it and waits for
// reminders already being published. It is safe to call more than once.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
		select {
		case <-s.started:
			<-s.loopDone
			s.inflight.Wait()
			s.cancel()
		default:
		}
		s.logger.Info("reminder scheduler stopped")
	})
}

func (s *Scheduler) send(ctx context.Context, cmd any) error {
	select {
	case <-s.stop:
		return ErrStopped
	default:
	}
	select {
	case <-s.started:
	default:
		return ErrNotStarted
	}

	select {
	case s.cmds <- cmd:
		return nil
	case <-s.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop() {
	defer close(s.loopDone)

	jobs := make(map[string]*entry)
	var gen uint64

	for {
		select {
		case <-s.stop:
			for id, e := range jobs {
				e.timer.Stop()
				s.logger.Debug("reminder cancelled on shutdown", slog.String("job_id", id))
			}
			return

		case cmd := <-s.cmds:
			switch c := cmd.(type) {
			case scheduleCmd:
				gen++
				if old, ok := jobs[c.job.ID]; ok {
					old.timer.Stop()
					s.logger.Debug("replacing pending reminder",
						slog.String("job_id", c.job.ID),
						slog.Time("previous_run_at", old.job.RunAt))
				}
				jobs[c.job.ID] = &entry{job: c.job, gen: gen, timer: s.arm(c.job.ID, gen, c.job.RunAt)}
				s.logger.Info("reminder scheduled",
					slog.String("job_id", c.job.ID),
					slog.String("task_id", c.job.TaskID.String()),
					slog.Time("run_at", c.job.RunAt))
				c.reply <- struct{}{}

			case pendingCmd:
				snapshot := make([]Job, 0, len(jobs))
				for _, e := range jobs {
					snapshot = append(snapshot, e.job)
				}
				sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].RunAt.Before(snapshot[j].RunAt) })
				c.reply <- snapshot
			}

		case sig := <-s.fired:
			e, ok := jobs[sig.id]
			if !ok || e.gen != sig.gen {
				// Timer of a replaced job that fired before it could be stopped.
				continue
			}
			delete(jobs, sig.id)
			s.inflight.Add(1)
			go s.fire(e.job)
		}
	}
}

// arm starts a timer that reports back to the loop. A negative delay fires at once.
func (s *Scheduler) arm(id string, gen uint64, at time.Time) *time.Timer {
	return time.AfterFunc(at.Sub(s.now()), func() {
		select {
		case s.fired <- fireSignal{id: id, gen: gen}:
		case <-s.stop:
		}
	})
}

func (s *Scheduler) fire(job Job) {
	defer s.inflight.Done()

	log := s.logger.With(slog.String("job_id", job.ID), slog.String("task_id", job.TaskID.String()))

	payload := domain.ReminderPayload{
		Title:        job.Title,
		ReminderTime: job.RunAt,
		Channel:      domain.ChannelInApp,
	}
	event, err := events.NewEvent(events.ReminderFired, job.TaskID, payload, s.now())
	if err != nil {
		log.Error("failed to build reminder event", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, publishTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(publishRetries, retry.NewExponential(100*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.publisher.Publish(ctx, events.TopicReminders, event); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to publish reminder", slog.String("error", err.Error()))
		return
	}

	log.Info("reminder fired", slog.String("event_id", event.EventID.String()))
}
