// Package main implements the entry point for the eventflow server, which
// consumes task events and drives auditing, recurrence, reminders,
// notifications and realtime fan-out.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/todoai/eventflow/internal/config"
	"github.com/todoai/eventflow/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("eventflow: %v", err)
	}
}

// run wires the application and blocks until SIGINT/SIGTERM or a fatal
// server error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("broker", cfg.Broker.Driver),
		slog.String("service", cfg.Service.Name))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer app.cleanup()

	if err := app.start(ctx); err != nil {
		return err
	}
	return app.startHTTPServer(ctx, app.setupRouter())
}
