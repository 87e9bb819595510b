package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/todoai/eventflow/internal/broker"
	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/events"
)

// Consumer names.
const (
	NameAudit        = "audit"
	NameRecurrence   = "recurrence"
	NameReminder     = "reminder"
	NameNotification = "notification"
	NameRealtime     = "realtime"
)

// pushedEventsRemembered bounds how many processed event ids each consumer
// keeps for push ingestion.
const pushedEventsRemembered = 10000

// ErrAlreadyStarted is returned when consumers are added or started twice.
var ErrAlreadyStarted = errors.New("consumer runner already started")

// Registrant attaches its handlers to a dispatcher.
type Registrant interface {
	Register(d *events.Dispatcher)
}

// Consumer describes one subscription.
type Consumer struct {
	Name     string
	Topic    string
	Handlers []Registrant
}

type subscription struct {
	Consumer
	group      string
	dispatcher *events.Dispatcher
	pushed     *processedEvents
}

// processedEvents remembers which pushed events a consumer has finished with.
// A push broker acknowledges a topic delivery as a whole, so a retry caused
// by one consumer reaches all of them again.
type processedEvents struct {
	mu    sync.Mutex
	cache *lru.Cache
}

func newProcessedEvents(size int) *processedEvents {
	return &processedEvents{cache: lru.New(size)}
}

func (p *processedEvents) seen(eventID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.cache.Get(eventID)
	return ok
}

func (p *processedEvents) mark(eventID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Add(eventID, struct{}{})
}

// Subscription describes a running consumer for introspection.
type Subscription struct {
	Consumer string             `json:"consumer"`
	Topic    string             `json:"topic"`
	Group    string             `json:"group"`
	Types    []events.EventType `json:"event_types"`
}

// Runner manages consumer subscriptions.
type Runner struct {
	subscriber  broker.Subscriber
	groupPrefix string
	restartBase time.Duration
	restartMax  time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	subs    []*subscription
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a Runner. Consumer groups are named
// "<groupPrefix>-<consumer name>".
func NewRunner(subscriber broker.Subscriber, groupPrefix string, logger *slog.Logger) (*Runner, error) {
	if subscriber == nil {
		return nil, fmt.Errorf("%w: subscriber cannot be nil", domain.ErrValidation)
	}
	if groupPrefix == "" {
		return nil, fmt.Errorf("%w: consumer group prefix cannot be empty", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		subscriber:  subscriber,
		groupPrefix: groupPrefix,
		restartBase: time.Second,
		restartMax:  30 * time.Second,
		logger:      logger.With(slog.String("component", "consumer_runner")),
	}, nil
}

// Group returns the consumer group used for the named consumer.
func (r *Runner) Group(name string) string {
	return r.groupPrefix + "-" + name
}

// Add registers a consumer. Consumers must be added before Start.
func (r *Runner) Add(c Consumer) error {
	if c.Name == "" || c.Topic == "" {
		return fmt.Errorf("%w: consumer name and topic are required", domain.ErrValidation)
	}
	if len(c.Handlers) == 0 {
		return fmt.Errorf("%w: consumer %s has no handlers", domain.ErrValidation, c.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}
	for _, s := range r.subs {
		if s.Name == c.Name {
			return fmt.Errorf("%w: consumer %s already added", domain.ErrValidation, c.Name)
		}
	}

	log := r.logger.With(slog.String("consumer", c.Name), slog.String("topic", c.Topic))
	d := events.NewDispatcher(log)
	for _, h := range c.Handlers {
		h.Register(d)
	}

	r.subs = append(r.subs, &subscription{
		Consumer:   c,
		group:      r.Group(c.Name),
		dispatcher: d,
		pushed:     newProcessedEvents(pushedEventsRemembered),
	})
	return nil
}

// Subscriptions lists the added consumers.
func (r *Runner) Subscriptions() []Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, Subscription{
			Consumer: s.Name,
			Topic:    s.Topic,
			Group:    s.group,
			Types:    s.dispatcher.Types(),
		})
	}
	return out
}

// Topics returns the distinct subscribed topics in the order they were added.
func (r *Runner) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(r.subs))
	var topics []string
	for _, s := range r.subs {
		if !seen[s.Topic] {
			seen[s.Topic] = true
			topics = append(topics, s.Topic)
		}
	}
	return topics
}

// Dispatch routes an already decoded envelope to every consumer subscribed
// to topic, as the broker would. Used by push ingestion.
// All consumers run; the first error is returned. A consumer that already
// finished with the event, successfully or permanently, skips it, so a
// redelivery requested because of one consumer reaches only the ones that
// still need it.
func (r *Runner) Dispatch(ctx context.Context, topic string, env *events.Envelope) (int, error) {
	r.mu.Lock()
	var matched []*subscription
	for _, s := range r.subs {
		if s.Topic == topic {
			matched = append(matched, s)
		}
	}
	r.mu.Unlock()

	eventID := env.Event.EventID
	var firstErr error
	for _, s := range matched {
		if s.pushed.seen(eventID) {
			r.logger.Debug("pushed event already processed by consumer",
				slog.String("consumer", s.Name),
				slog.String("event_id", eventID.String()))
			continue
		}
		err := s.dispatcher.Dispatch(ctx, env)
		if broker.ShouldAck(err) {
			s.pushed.mark(eventID)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(matched), firstErr
}

// Start launches one goroutine per consumer. It returns immediately.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for _, s := range r.subs {
		r.wg.Add(1)
		go r.run(ctx, s)
	}

	r.logger.Info("consumers started", slog.Int("count", len(r.subs)))
	return nil
}

// Stop cancels every subscription and waits for in-flight deliveries.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	r.logger.Info("consumers stopped")
}

// run keeps one subscription alive, resubscribing with backoff when the
// transport fails, until ctx is cancelled.
func (r *Runner) run(ctx context.Context, s *subscription) {
	defer r.wg.Done()

	log := r.logger.With(
		slog.String("consumer", s.Name),
		slog.String("topic", s.Topic),
		slog.String("group", s.group))
	log.Debug("starting subscription")

	backoff := retry.WithCappedDuration(r.restartMax, retry.NewExponential(r.restartBase))
	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.subscriber.Subscribe(ctx, s.Topic, s.group, s.dispatcher.HandleMessage)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("subscription ended unexpectedly")
		}
		log.Error("subscription failed, resubscribing", slog.String("error", err.Error()))
		return retry.RetryableError(err)
	})

	log.Debug("subscription stopped")
}
