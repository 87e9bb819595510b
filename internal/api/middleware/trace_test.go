package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/todoai/eventflow/internal/api/shared"
	"github.com/todoai/eventflow/internal/platform/logger"
)

func TestTraceMiddleware(t *testing.T) {
	log, buf := logger.NewTestLogger(t)

	var seenTraceID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTraceID = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
	})
	handler := NewTraceMiddleware(log)(next)

	t.Run("generates a trace id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))

		assert.Len(t, seenTraceID, 32)
		assert.Equal(t, seenTraceID, rr.Header().Get(shared.TraceIDHeader))
		assert.Contains(t, buf.String(), seenTraceID)
	})

	t.Run("propagates an upstream trace id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(shared.TraceIDHeader, "upstream-trace")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, "upstream-trace", seenTraceID)
		assert.Equal(t, "upstream-trace", rr.Header().Get(shared.TraceIDHeader))
	})
}
