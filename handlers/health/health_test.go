package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/middleware"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestHandler(checks map[string]Pinger) *Handler {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	middleware.Logger = logger
	return NewHandler(checks, logger)
}

func healthy(context.Context) error { return nil }

func TestHandleHealthCheck(t *testing.T) {
	h := newTestHandler(map[string]Pinger{"cache": pingFunc(healthy)})

	w := httptest.NewRecorder()
	h.HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Services["cache"])
	assert.NotEmpty(t, status.Uptime)
}

func TestHandleHealthCheckUnhealthy(t *testing.T) {
	h := newTestHandler(map[string]Pinger{
		"cache": pingFunc(func(context.Context) error { return errors.New("database is locked") }),
	})

	w := httptest.NewRecorder()
	h.HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	// Health always answers; readiness is what gates traffic
	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "unhealthy: database is locked", status.Services["cache"])
}

func TestHandleLivenessCheck(t *testing.T) {
	h := newTestHandler(nil)

	w := httptest.NewRecorder()
	h.HandleLivenessCheck(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alive", body["status"])
}

func TestHandleReadinessCheck(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		h := newTestHandler(map[string]Pinger{"cache": pingFunc(healthy)})

		w := httptest.NewRecorder()
		h.HandleReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ready", body["status"])
	})

	t.Run("not ready", func(t *testing.T) {
		h := newTestHandler(map[string]Pinger{
			"cache": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		})

		w := httptest.NewRecorder()
		h.HandleReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var apiErr middleware.APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
		assert.Equal(t, middleware.ErrCodeServiceUnavailable, apiErr.Error)
		assert.Contains(t, apiErr.Details, "cache is not ready")
	})

	t.Run("ping deadline", func(t *testing.T) {
		h := newTestHandler(map[string]Pinger{
			"cache": pingFunc(func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}),
		})
		h.Timeout = 10 * time.Millisecond

		w := httptest.NewRecorder()
		h.HandleReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
