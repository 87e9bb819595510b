package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/todoai/eventflow/internal/broker"
	"github.com/todoai/eventflow/internal/config"
	"github.com/todoai/eventflow/internal/consumer"
	"github.com/todoai/eventflow/internal/events"
	"github.com/todoai/eventflow/internal/ledger"
	"github.com/todoai/eventflow/internal/notification"
	"github.com/todoai/eventflow/internal/platform/postgres"
	"github.com/todoai/eventflow/internal/realtime"
	"github.com/todoai/eventflow/internal/recurrence"
	"github.com/todoai/eventflow/internal/reminder"
	"github.com/todoai/eventflow/internal/store"
)

// application holds the shared dependencies and owns their lifecycle.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	broker broker.Broker

	auditStore        store.AuditStore
	recurrenceStore   store.RecurrenceStore
	notificationStore store.NotificationStore

	publisher   *events.Publisher
	scheduler   *reminder.Scheduler
	broadcaster *realtime.Broadcaster
	runner      *consumer.Runner
}

// newApplication connects to the database and broker and wires every
// enabled consumer.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupAppDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	b, err := newBroker(ctx, cfg.Broker, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set up broker: %w", err)
	}

	app := &application{
		config:            cfg,
		logger:            logger,
		db:                db,
		broker:            b,
		auditStore:        postgres.NewPostgresAuditStore(db, logger),
		recurrenceStore:   postgres.NewPostgresRecurrenceStore(db, logger),
		notificationStore: postgres.NewPostgresNotificationStore(db, logger),
	}
	if err := app.wire(); err != nil {
		app.cleanup()
		return nil, err
	}
	return app, nil
}

// wire builds the services on top of the stores and registers consumers.
func (app *application) wire() error {
	cfg := app.config
	log := app.logger

	app.publisher = events.NewPublisher(app.broker, cfg.Service.Name, log)
	app.scheduler = reminder.NewScheduler(app.publisher, log)
	app.broadcaster = realtime.NewBroadcaster(log)

	runner, err := consumer.NewRunner(app.broker, cfg.Broker.ConsumerGroupPrefix, log)
	if err != nil {
		return err
	}
	app.runner = runner

	ledgerService, err := ledger.NewService(app.auditStore, log)
	if err != nil {
		return err
	}
	engine, err := recurrence.NewEngine(app.db, app.recurrenceStore, app.publisher, log)
	if err != nil {
		return err
	}
	notifier, err := notification.NewDispatcher(app.notificationStore, log)
	if err != nil {
		return err
	}

	consumers := []struct {
		enabled bool
		c       consumer.Consumer
	}{
		{cfg.Consumers.Audit, consumer.Consumer{
			Name: consumer.NameAudit, Topic: events.TopicTaskEvents,
			Handlers: []consumer.Registrant{ledger.NewHandler(ledgerService)},
		}},
		{cfg.Consumers.Recurrence, consumer.Consumer{
			Name: consumer.NameRecurrence, Topic: events.TopicTaskEvents,
			Handlers: []consumer.Registrant{recurrence.NewHandler(engine)},
		}},
		{cfg.Consumers.Reminder, consumer.Consumer{
			Name: consumer.NameReminder, Topic: events.TopicTaskEvents,
			Handlers: []consumer.Registrant{reminder.NewHandler(app.scheduler)},
		}},
		{cfg.Consumers.Notification, consumer.Consumer{
			Name: consumer.NameNotification, Topic: events.TopicReminders,
			Handlers: []consumer.Registrant{notification.NewHandler(notifier)},
		}},
		{cfg.Consumers.Realtime, consumer.Consumer{
			Name: consumer.NameRealtime, Topic: events.TopicTaskUpdates,
			Handlers: []consumer.Registrant{realtime.NewHandler(app.broadcaster)},
		}},
	}
	for _, entry := range consumers {
		if !entry.enabled {
			log.Info("consumer disabled", slog.String("consumer", entry.c.Name))
			continue
		}
		if err := runner.Add(entry.c); err != nil {
			return fmt.Errorf("failed to add %s consumer: %w", entry.c.Name, err)
		}
	}
	return nil
}

// start launches the reminder scheduler and the broker subscriptions.
func (app *application) start(ctx context.Context) error {
	app.scheduler.Start(ctx)
	if err := app.runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start consumers: %w", err)
	}
	return nil
}

// cleanup stops consumption before the scheduler so no new reminders are
// registered during shutdown, then releases the broker and the database.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}
	if app.scheduler != nil {
		app.scheduler.Shutdown()
	}
	if app.broker != nil {
		if err := app.broker.Close(); err != nil {
			app.logger.Error("failed to close broker", slog.Any("error", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", slog.Any("error", err))
		}
	}
	app.logger.Info("application resources released")
}
