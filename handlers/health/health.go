// Package health provides health check handlers for the brand analysis backend
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/middleware"
	"github.com/iankiku/agentsauthority-chatbot-sub003/utils"
	"github.com/sirupsen/logrus"
)

// HealthStatus represents the health check response structure
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
}

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains dependencies for health handlers
type Handler struct {
	// Checks maps a service name to its pinger
	Checks map[string]Pinger
	Logger *logrus.Logger
	// Timeout bounds each ping
	Timeout time.Duration
}

// NewHandler creates a new health handler
func NewHandler(checks map[string]Pinger, logger *logrus.Logger) *Handler {
	return &Handler{
		Checks:  checks,
		Logger:  logger,
		Timeout: 5 * time.Second,
	}
}

// HandleHealthCheck provides a health check endpoint for monitoring
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
		Services:  make(map[string]string),
		Uptime:    time.Since(startTime).String(),
	}

	for name, err := range h.pingAll(r.Context()) {
		if err != nil {
			health.Status = "unhealthy"
			health.Services[name] = "unhealthy: " + err.Error()
			h.Logger.WithFields(logrus.Fields{
				"service":    name,
				"error":      err.Error(),
				"request_id": requestID,
			}).Error("Health check failed")
			continue
		}
		health.Services[name] = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// HandleLivenessCheck provides a simple liveness check
func (h *Handler) HandleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// HandleReadinessCheck provides a readiness check
func (h *Handler) HandleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
	}

	services := make(map[string]string)
	for name, err := range h.pingAll(r.Context()) {
		if err != nil {
			middleware.RespondServiceUnavailable(w, fmt.Errorf("%s is not ready: %w", name, err), requestID)
			return
		}
		services[name] = "ready"
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Format(time.RFC3339),
		"services":  services,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// pingAll pings every dependency under the handler timeout
func (h *Handler) pingAll(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	results := make(map[string]error, len(h.Checks))
	for name, check := range h.Checks {
		results[name] = check.Ping(ctx)
	}
	return results
}

var startTime = time.Now()
