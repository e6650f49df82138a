package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/middleware"
	"github.com/iankiku/agentsauthority-chatbot-sub003/monitoring"
	"github.com/iankiku/agentsauthority-chatbot-sub003/utils"
	"github.com/sirupsen/logrus"
)

// PrincipalHeader carries the authenticated user id set by the auth proxy
const PrincipalHeader = "X-User-ID"

// Rule is the admission policy applied by Middleware
type Rule struct {
	Limit  int
	Window time.Duration
	// TrustPrincipal keys callers on PrincipalHeader. Enable it only when an
	// auth proxy in front of the service sets the header and strips any
	// client-supplied value.
	TrustPrincipal bool
}

// CallerKey identifies the caller of r. The principal header is honoured only
// when trustPrincipal is set; otherwise the network origin is used.
func CallerKey(r *http.Request, trustPrincipal bool) string {
	if trustPrincipal {
		if principal := strings.TrimSpace(r.Header.Get(PrincipalHeader)); principal != "" {
			return "user:" + principal
		}
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// Take the first IP from the forwarded chain
		ips := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(ips[0]); ip != "" {
			return "ip:" + ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return "ip:" + realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// WriteHeaders exposes the decision to the client
func WriteHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		seconds := int(d.RetryAfter.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
}

// Middleware admits requests through limiter before calling next
func Middleware(limiter Limiter, rule Rule, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := CallerKey(r, rule.TrustPrincipal)
		decision := limiter.Admit(key, rule.Limit, rule.Window)
		WriteHeaders(w, decision)

		if !decision.Allowed {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = utils.GenerateRequestID()
			}
			monitoring.RecordRateLimitRejection(r.URL.Path)
			middleware.Logger.WithFields(logrus.Fields{
				"caller":      key,
				"path":        r.URL.Path,
				"limit":       decision.Limit,
				"retry_after": decision.RetryAfter.String(),
				"request_id":  requestID,
			}).Warn("Request rejected by rate limiter")
			middleware.RespondError(w, decision.Err(), requestID)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// QuotaStatus is a caller's view of its current window
type QuotaStatus struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
	Window    string    `json:"window"`
}

// StatusHandler reports the caller's remaining quota without consuming it
//
// @Summary Analysis quota status
// @Description Reports the caller's analysis quota in the current window without consuming it.
// @Tags Analysis
// @Produce json
// @Success 200 {object} QuotaStatus
// @Router /api/rate-limit [get]
func StatusHandler(limiter Limiter, rule Rule) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision := limiter.Peek(CallerKey(r, rule.TrustPrincipal), rule.Limit, rule.Window)
		WriteHeaders(w, decision)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(QuotaStatus{
			Limit:     decision.Limit,
			Remaining: decision.Remaining,
			ResetAt:   decision.ResetAt.UTC(),
			Window:    rule.Window.String(),
		})
	}
}
