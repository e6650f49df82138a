/*
Package main initializes the brand analysis backend server.

The server accepts brand visibility analysis requests, runs them as
background jobs through a staged pipeline, streams their progress and
reuses fresh results from the freshness cache.

Run the application:

	$ go run .

Endpoints:
  - POST /api/analyses: Start an analysis (or get a fresh cached result).
  - DELETE /api/analyses: Invalidate a cached result.
  - GET /api/jobs: Paginated job list.
  - GET /api/jobs/{id}: Job snapshot.
  - GET /api/jobs/{id}/stream: Progress over Server-Sent Events.
  - GET /api/jobs/{id}/ws: Progress over WebSocket.
  - GET /api/cache/policy: Cache freshness windows.
  - DELETE /api/cache: Clear every cached result.
  - GET /api/rate-limit: Caller's remaining analysis quota.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/iankiku/agentsauthority-chatbot-sub003/cache"
	"github.com/iankiku/agentsauthority-chatbot-sub003/config"
	_ "github.com/iankiku/agentsauthority-chatbot-sub003/docs"
	"github.com/iankiku/agentsauthority-chatbot-sub003/handlers"
	"github.com/iankiku/agentsauthority-chatbot-sub003/handlers/health"
	"github.com/iankiku/agentsauthority-chatbot-sub003/middleware"
	"github.com/iankiku/agentsauthority-chatbot-sub003/monitoring"
	"github.com/iankiku/agentsauthority-chatbot-sub003/ratelimit"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// shutdownGrace bounds how long in-flight requests and jobs may finish
const shutdownGrace = 30 * time.Second

// @title Brand Analysis API
// @version 1.0
// @description Brand visibility analysis jobs with progress streaming and freshness caching.
// @BasePath /
func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	cfg := config.NewConfig()
	logger := middleware.InitLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Configuration validation failed")
	}

	// Initialize tracing
	tracerProvider, err := monitoring.InitTracing(monitoring.TracingConfig{
		ServiceName: "brand-analysis-backend",
		Environment: cfg.Environment,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize tracing")
	}
	defer monitoring.ShutdownTracing(tracerProvider, logger)

	// Initialize alert manager
	alertManager := monitoring.NewAlertManager(logger, cfg.AlertInterval, monitoring.DefaultAlertRules()...)
	alertManager.Start()
	defer alertManager.Stop()

	services, err := config.NewServices(cfg, alertManager)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}
	defer services.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, err := buildRouter(ctx, cfg, services)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build router")
	}

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           CORSMiddleware(middleware.LoggingMiddleware(router), cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":        cfg.ServerPort,
			"environment": cfg.Environment,
			"cache":       cfg.Cache.Backend,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	waitForJobs(shutdownCtx, services, logger)
}

// buildRouter resolves the handlers from the container, starts the
// maintenance loops and registers every route
func buildRouter(ctx context.Context, cfg *config.Config, services *config.Services) (*mux.Router, error) {
	c := services.Container

	handler, err := c.GetHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize handler: %w", err)
	}
	limiter, err := c.GetLimiter()
	if err != nil {
		return nil, err
	}
	store, err := c.GetJobStore()
	if err != nil {
		return nil, err
	}
	backend, err := c.GetCacheBackend()
	if err != nil {
		return nil, err
	}
	freshness, err := c.GetCache()
	if err != nil {
		return nil, err
	}
	runner, err := c.GetRunner()
	if err != nil {
		return nil, err
	}

	limiter.StartCleanup(ctx, cfg.RateLimitCleanupInterval)
	store.StartCleanup(ctx, cfg.Pipeline.JobCleanupInterval, cfg.Pipeline.JobRetention)
	switch b := backend.(type) {
	case *cache.InMemoryBackend:
		b.StartCleanup(ctx, cfg.Cache.CleanupInterval)
	case *cache.SQLBackend:
		b.StartPurge(ctx, cfg.Cache.CleanupInterval, cfg.Cache.Retention, services.Logger)
	case *cache.DatastoreBackend:
		b.StartPurge(ctx, cfg.Cache.CleanupInterval, freshness.Policy().MaxTTL()+cfg.Cache.Retention, services.Logger)
	}

	stageNames := make([]string, 0, len(runner.Stages()))
	for _, stage := range runner.Stages() {
		stageNames = append(stageNames, fmt.Sprintf("%s(%d)", stage.Name, stage.Weight))
	}
	services.Logger.WithFields(logrus.Fields{
		"stages":        stageNames,
		"cache_backend": cfg.Cache.Backend,
	}).Info("Analysis pipeline ready")

	healthHandler := health.NewHandler(map[string]health.Pinger{"cache": backend}, services.Logger)
	return newRouter(handler, healthHandler, limiter, ratelimit.Rule{
		Limit:          cfg.RateLimitRequests,
		Window:         cfg.RateLimitWindow,
		TrustPrincipal: cfg.RateLimitTrustPrincipal,
	}), nil
}

// newRouter registers the API, health, metrics and documentation routes
func newRouter(handler *handlers.Handler, healthHandler *health.Handler, limiter ratelimit.Limiter, rule ratelimit.Rule) *mux.Router {
	router := mux.NewRouter()

	// Setup metrics endpoint
	monitoring.SetupMetricsEndpoint(router)

	// Setup health check endpoints (no rate limiting)
	router.HandleFunc("/health", healthHandler.HandleHealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/health/live", healthHandler.HandleLivenessCheck).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", healthHandler.HandleReadinessCheck).Methods(http.MethodGet)

	// Setup Swagger documentation
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/analyses", MonitoringMiddleware(ratelimit.Middleware(limiter, rule, handler.HandleCreateAnalysis))).Methods(http.MethodPost)
	api.HandleFunc("/analyses", MonitoringMiddleware(handler.HandleInvalidateAnalysis)).Methods(http.MethodDelete)
	api.HandleFunc("/cache", MonitoringMiddleware(handler.HandleClearCache)).Methods(http.MethodDelete)
	api.HandleFunc("/cache/policy", MonitoringMiddleware(handler.HandleGetCachePolicy)).Methods(http.MethodGet)
	api.HandleFunc("/rate-limit", MonitoringMiddleware(ratelimit.StatusHandler(limiter, rule))).Methods(http.MethodGet)
	api.HandleFunc("/jobs", MonitoringMiddleware(handler.HandleListJobs)).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", MonitoringMiddleware(handler.HandleGetJob)).Methods(http.MethodGet)
	// Long-lived streams stay out of the request latency metrics
	api.HandleFunc("/jobs/{id}/stream", handler.HandleStreamJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/ws", handler.HandleJobWebSocket).Methods(http.MethodGet)

	return router
}

// waitForJobs gives running analyses until ctx ends to finish
func waitForJobs(ctx context.Context, services *config.Services, logger *logrus.Logger) {
	runner, err := services.Container.GetRunner()
	if err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		runner.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("All analysis jobs finished")
	case <-ctx.Done():
		logger.Warn("Shutdown grace period elapsed with analysis jobs still running")
	}
}

// MonitoringMiddleware adds metrics and tracing to HTTP handlers
func MonitoringMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Label by route template so job ids do not explode cardinality
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				endpoint = template
			}
		}

		ctx, span := monitoring.CreateSpan(r.Context(), fmt.Sprintf("%s %s", r.Method, endpoint))
		defer span.End()

		monitoring.SetSpanAttributes(span, map[string]interface{}{
			"http.method":     r.Method,
			"http.route":      endpoint,
			"http.user_agent": r.UserAgent(),
			"remote.addr":     r.RemoteAddr,
		})

		r = r.WithContext(ctx)

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		monitoring.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", rw.statusCode), duration)

		monitoring.SetSpanAttributes(span, map[string]interface{}{
			"http.status_code": rw.statusCode,
			"duration_seconds": duration,
		})
		if rw.statusCode >= http.StatusBadRequest {
			monitoring.SetSpanError(span, fmt.Errorf("HTTP %d", rw.statusCode))
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
