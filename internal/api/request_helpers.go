package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/todoai/eventflow/internal/api/shared"
	"github.com/todoai/eventflow/internal/domain"
	"github.com/todoai/eventflow/internal/store"
)

// ListQuery holds the query parameters accepted by list endpoints.
// Fields are kept as strings so that validation reports the offending
// parameter before any conversion.
type ListQuery struct {
	Limit     string `validate:"omitempty,number"`
	Offset    string `validate:"omitempty,number"`
	TaskID    string `validate:"omitempty,uuid"`
	EventType string `validate:"omitempty,max=64"`
	Status    string `validate:"omitempty,oneof=pending sent failed"`
	IsActive  string `validate:"omitempty,boolean"`
}

func parseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{
		Limit:     values.Get("limit"),
		Offset:    values.Get("offset"),
		TaskID:    values.Get("task_id"),
		EventType: values.Get("event_type"),
		Status:    values.Get("status"),
		IsActive:  values.Get("is_active"),
	}
	if err := shared.ValidateRequest(q); err != nil {
		return ListQuery{}, err
	}
	return q, nil
}

// Page converts limit and offset, clamping them to the store bounds.
func (q ListQuery) Page() store.Page {
	limit, _ := strconv.Atoi(q.Limit)
	offset, _ := strconv.Atoi(q.Offset)
	return store.Page{Limit: limit, Offset: offset}.Normalize()
}

func (q ListQuery) taskID() *uuid.UUID {
	if q.TaskID == "" {
		return nil
	}
	id := uuid.MustParse(q.TaskID)
	return &id
}

func (q ListQuery) isActive() *bool {
	if q.IsActive == "" {
		return nil
	}
	v, _ := strconv.ParseBool(q.IsActive)
	return &v
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", domain.ErrInvalidID, paramName)
	}
	return id, nil
}
