package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/todoai/eventflow/internal/api/shared"
	"github.com/todoai/eventflow/internal/broker"
	"github.com/todoai/eventflow/internal/events"
	"github.com/todoai/eventflow/internal/platform/logger"
)

// Delivery statuses understood by push-based brokers.
const (
	StatusSuccess = "SUCCESS"
	StatusRetry   = "RETRY"
	StatusDrop    = "DROP"
)

// EventRouter routes a decoded envelope to the consumers of a topic.
type EventRouter interface {
	Topics() []string
	Dispatch(ctx context.Context, topic string, env *events.Envelope) (int, error)
}

// Subscription is one entry of the subscription listing.
type Subscription struct {
	PubSubName string `json:"pubsubname"`
	Topic      string `json:"topic"`
	Route      string `json:"route"`
}

// DeliveryResponse acknowledges a pushed delivery.
type DeliveryResponse struct {
	Status string `json:"status"`
}

// IngestHandler accepts events pushed by a sidecar broker and dispatches
// them synchronously to the same consumers the pull subscriptions use.
type IngestHandler struct {
	router     EventRouter
	pubsubName string
}

// NewIngestHandler creates an IngestHandler.
func NewIngestHandler(router EventRouter, pubsubName string) *IngestHandler {
	return &IngestHandler{router: router, pubsubName: pubsubName}
}

// Subscriptions handles GET /dapr/subscribe.
func (h *IngestHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	topics := h.router.Topics()
	subs := make([]Subscription, 0, len(topics))
	for _, topic := range topics {
		subs = append(subs, Subscription{
			PubSubName: h.pubsubName,
			Topic:      topic,
			Route:      "/events/" + topic,
		})
	}
	shared.RespondWithJSON(w, r, http.StatusOK, subs)
}

// Receive handles POST /events/{topic}. Malformed envelopes are dropped,
// retryable failures answer 500 so the broker redelivers, and everything
// else, duplicates and unknown types included, is acknowledged.
func (h *IngestHandler) Receive(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	log := logger.FromContext(r.Context()).With(slog.String("topic", topic))

	body, err := shared.ReadBody(r)
	if err != nil {
		log.Warn("failed to read pushed event", slog.Any("error", err))
		shared.RespondWithJSON(w, r, http.StatusInternalServerError, DeliveryResponse{Status: StatusRetry})
		return
	}

	env, err := events.Decode(body)
	if err != nil {
		log.Warn("dropping malformed pushed event", slog.String("error", err.Error()))
		shared.RespondWithJSON(w, r, http.StatusOK, DeliveryResponse{Status: StatusDrop})
		return
	}

	ctx := logger.WithLogger(r.Context(), log)
	consumers, err := h.router.Dispatch(ctx, topic, env)
	switch {
	case err == nil:
		if consumers == 0 {
			log.Debug("no consumers for pushed topic")
		}
		shared.RespondWithJSON(w, r, http.StatusOK, DeliveryResponse{Status: StatusSuccess})
	case broker.IsPermanent(err):
		log.Warn("dropping unprocessable pushed event", slog.String("error", err.Error()))
		shared.RespondWithJSON(w, r, http.StatusOK, DeliveryResponse{Status: StatusDrop})
	default:
		log.Error("pushed event failed, requesting retry", slog.String("error", err.Error()))
		shared.RespondWithJSON(w, r, http.StatusInternalServerError, DeliveryResponse{Status: StatusRetry})
	}
}
