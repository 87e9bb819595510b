package shared

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/todoai/eventflow/internal/platform/logger"
)

func TestRespondWithJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		data         any
		expectedBody string
	}{
		{"object", http.StatusOK, map[string]any{"status": "ok"}, `{"status":"ok"}`},
		{"list", http.StatusOK, ListResponse[int]{Items: []int{1, 2}, Total: 2, Limit: 50}, `{"items":[1,2],"total":2,"limit":50,"offset":0}`},
		{"nil", http.StatusOK, nil, `null`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondWithJSON(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.status, tc.data)

			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.JSONEq(t, tc.expectedBody, rr.Body.String())
		})
	}
}

func TestRespondWithErrorAndLog(t *testing.T) {
	log, buf := logger.NewTestLogger(t)
	ctx := logger.WithLogger(SetTraceID(context.Background(), "abc123"), log)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	RespondWithErrorAndLog(rr, req, http.StatusInternalServerError, "Failed to list notifications",
		errors.New("failed to connect to postgres://admin:hunter2@db:5432/eventflow"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Failed to list notifications","trace_id":"abc123"}`, rr.Body.String())

	logs := buf.String()
	assert.Contains(t, logs, "API error response")
	assert.Contains(t, logs, "abc123")
	assert.NotContains(t, logs, "hunter2")
}

func TestSetTraceID(t *testing.T) {
	assert.Equal(t, "given", GetTraceID(SetTraceID(context.Background(), "given")))
	assert.Len(t, GetTraceID(SetTraceID(context.Background(), "")), 32)
	assert.Empty(t, GetTraceID(context.Background()))
}
