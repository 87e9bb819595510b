package main

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/todoai/eventflow/internal/api"
	apiMiddleware "github.com/todoai/eventflow/internal/api/middleware"
	"github.com/todoai/eventflow/internal/realtime"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: app.config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Trace-Id"},
		ExposedHeaders: []string{"X-Trace-Id"},
		MaxAge:         300,
	}).Handler)

	queries := api.NewQueryHandler(app.auditStore, app.notificationStore, app.recurrenceStore, app.broadcaster)
	ingest := api.NewIngestHandler(app.runner, app.config.Broker.PubSubName)
	health := api.NewHealthHandler(app.db)
	ws := realtime.NewServer(app.broadcaster, app.config.Realtime.WriteTimeout(), app.checkOrigin, app.logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/audit", queries.ListAuditRecords)
		r.Get("/audit/{id}", queries.GetAuditRecord)
		r.Get("/notifications", queries.ListNotifications)
		r.Get("/notifications/{id}", queries.GetNotification)
		r.Get("/schedules", queries.ListSchedules)
		r.Get("/schedules/{id}", queries.GetSchedule)
		r.Get("/connections", queries.GetConnections)
	})

	r.Get("/dapr/subscribe", ingest.Subscriptions)
	r.Post("/events/{topic}", ingest.Receive)

	r.Get("/health", health.Live)
	r.Get("/health/ready", health.Ready)

	r.Handle("/ws", ws)

	return r
}

// checkOrigin applies the CORS allow-list to websocket upgrades.
func (app *application) checkOrigin(r *http.Request) bool {
	origins := app.config.Server.AllowedOrigins
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
}
