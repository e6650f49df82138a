package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/middleware"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallerKey(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trust      bool
		expected   string
	}{
		{
			name:       "trusted principal wins",
			headers:    map[string]string{"X-User-ID": "u-1", "X-Forwarded-For": "1.2.3.4"},
			remoteAddr: "10.0.0.1:1234",
			trust:      true,
			expected:   "user:u-1",
		},
		{
			name:       "untrusted principal ignored",
			headers:    map[string]string{"X-User-ID": "u-1"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "ip:10.0.0.1",
		},
		{
			name:       "trusted but absent principal",
			remoteAddr: "10.0.0.1:1234",
			trust:      true,
			expected:   "ip:10.0.0.1",
		},
		{
			name:       "first forwarded address",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "ip:1.2.3.4",
		},
		{
			name:       "real ip header",
			headers:    map[string]string{"X-Real-IP": "9.9.9.9"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "ip:9.9.9.9",
		},
		{
			name:       "remote address without port",
			remoteAddr: "10.0.0.1:1234",
			expected:   "ip:10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/analyses", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, CallerKey(req, tt.trust))
		})
	}
}

func TestMiddleware(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	middleware.Logger = logger

	limiter, clock := newTestLimiter()
	calls := 0
	handler := Middleware(limiter, Rule{Limit: 2, Window: time.Minute}, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/analyses", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	first := send()
	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusAccepted, send().Code)

	clock.Advance(15 * time.Second)
	rejected := send()
	require.Equal(t, http.StatusTooManyRequests, rejected.Code)
	assert.Equal(t, "45", rejected.Header().Get("Retry-After"))
	assert.Equal(t, "0", rejected.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, 2, calls)

	var body middleware.APIError
	require.NoError(t, json.NewDecoder(rejected.Body).Decode(&body))
	assert.Equal(t, middleware.ErrCodeRateLimited, body.Error)
	assert.Contains(t, body.Details, "rate limit of 2 requests exceeded")
}

func TestMiddlewareForgedPrincipalsShareOriginWindow(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	middleware.Logger = logger

	limiter, _ := newTestLimiter()
	handler := Middleware(limiter, Rule{Limit: 1, Window: time.Minute}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	admitted := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/analyses", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set(PrincipalHeader, fmt.Sprintf("forged-%d", i))
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code == http.StatusAccepted {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted)
}

func TestMiddlewareTrustedPrincipalsHaveOwnWindows(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	middleware.Logger = logger

	limiter, _ := newTestLimiter()
	handler := Middleware(limiter, Rule{Limit: 1, Window: time.Minute, TrustPrincipal: true}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	for _, user := range []string{"alice", "bob"} {
		req := httptest.NewRequest(http.MethodPost, "/api/analyses", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set(PrincipalHeader, user)
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusAccepted, rec.Code, user)
	}
}

func TestStatusHandlerReportsQuota(t *testing.T) {
	limiter, clock := newTestLimiter()
	rule := Rule{Limit: 3, Window: time.Minute}
	limiter.Admit("ip:203.0.113.9", rule.Limit, rule.Window)

	status := StatusHandler(limiter, rule)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/rate-limit", nil)
		req.RemoteAddr = "203.0.113.9:7000"
		rec := httptest.NewRecorder()
		status(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))

		var quota QuotaStatus
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&quota))
		assert.Equal(t, 3, quota.Limit)
		assert.Equal(t, 2, quota.Remaining)
		assert.Equal(t, "1m0s", quota.Window)
		assert.True(t, quota.ResetAt.Equal(clock.Now().Add(time.Minute)))
	}
}

func TestWriteHeadersMinimumRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHeaders(rec, Decision{Allowed: false, Limit: 1, RetryAfter: 200 * time.Millisecond, ResetAt: time.Now()})
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
