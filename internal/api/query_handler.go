package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/api/shared"
	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/store"
)

// AuditReader is the read side of store.AuditStore.
type AuditReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditRecord, error)
	List(ctx context.Context, filter store.AuditFilter, page store.Page) ([]*domain.AuditRecord, int, error)
}

// NotificationReader is the read side of store.NotificationStore.
type NotificationReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	List(ctx context.Context, filter store.NotificationFilter, page store.Page) ([]*domain.Notification, int, error)
}

// ScheduleReader is the read side of store.RecurrenceStore.
type ScheduleReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurrenceSchedule, error)
	List(ctx context.Context, filter store.ScheduleFilter, page store.Page) ([]*domain.RecurrenceSchedule, int, error)
}

// ConnectionCounter reports open realtime connections.
type ConnectionCounter interface {
	Count() int
}

// QueryHandler serves the read-only query endpoints.
type QueryHandler struct {
	audits        AuditReader
	notifications NotificationReader
	schedules     ScheduleReader
	connections   ConnectionCounter
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(
	audits AuditReader,
	notifications NotificationReader,
	schedules ScheduleReader,
	connections ConnectionCounter,
) *QueryHandler {
	return &QueryHandler{
		audits:        audits,
		notifications: notifications,
		schedules:     schedules,
		connections:   connections,
	}
}

// ListAuditRecords handles GET /api/v1/audit.
func (h *QueryHandler) ListAuditRecords(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	page := q.Page()

	records, total, err := h.audits.List(r.Context(),
		store.AuditFilter{TaskID: q.taskID(), EventType: q.EventType}, page)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list audit records")
		return
	}

	respondList(w, r, records, total, page)
}

// GetAuditRecord handles GET /api/v1/audit/{id}.
func (h *QueryHandler) GetAuditRecord(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	record, err := h.audits.GetByID(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get audit record")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, record)
}

// ListNotifications handles GET /api/v1/notifications.
func (h *QueryHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	page := q.Page()

	notifications, total, err := h.notifications.List(r.Context(), store.NotificationFilter{
		Status: domain.NotificationStatus(q.Status),
		TaskID: q.taskID(),
	}, page)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list notifications")
		return
	}

	respondList(w, r, notifications, total, page)
}

// GetNotification handles GET /api/v1/notifications/{id}.
func (h *QueryHandler) GetNotification(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	n, err := h.notifications.GetByID(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get notification")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, n)
}

// ListSchedules handles GET /api/v1/schedules.
func (h *QueryHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	page := q.Page()

	schedules, total, err := h.schedules.List(r.Context(), store.ScheduleFilter{IsActive: q.isActive()}, page)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list recurrence schedules")
		return
	}

	respondList(w, r, schedules, total, page)
}

// GetSchedule handles GET /api/v1/schedules/{id}.
func (h *QueryHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	schedule, err := h.schedules.GetByID(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get recurrence schedule")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, schedule)
}

// ConnectionsResponse reports the realtime connection count.
type ConnectionsResponse struct {
	Connections int `json:"connections"`
}

// GetConnections handles GET /api/v1/connections.
func (h *QueryHandler) GetConnections(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, ConnectionsResponse{Connections: h.connections.Count()})
}

func respondList[T any](w http.ResponseWriter, r *http.Request, items []T, total int, page store.Page) {
	if items == nil {
		items = []T{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, shared.ListResponse[T]{
		Items:  items,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}
