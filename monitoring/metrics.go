// Package monitoring provides metrics and observability for the brand analysis backend
package monitoring

import (
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job metrics
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brand_analysis_jobs_total",
			Help: "Total number of analysis jobs by terminal status",
		},
		[]string{"status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brand_analysis_job_duration_seconds",
			Help:    "Duration of analysis jobs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	activeJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brand_analysis_active_jobs",
			Help: "Number of analysis jobs currently running",
		},
	)

	// Stage metrics
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brand_analysis_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "status"},
	)

	// Cache metrics
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brand_analysis_cache_lookups_total",
			Help: "Total number of freshness cache lookups by outcome",
		},
		[]string{"resource_class", "outcome"},
	)

	// Rate limiting metrics
	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brand_analysis_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	// Progress stream metrics
	activeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brand_analysis_progress_subscribers",
			Help: "Number of connected progress subscribers",
		},
	)

	// Provider metrics
	providerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brand_analysis_provider_requests_total",
			Help: "Total number of AI provider requests",
		},
		[]string{"provider", "status"},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brand_analysis_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brand_analysis_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
)

// Counters mirrored in process for alert rule evaluation
var (
	completedJobs atomic.Int64
	failedJobs    atomic.Int64
	rejectedCalls atomic.Int64
)

// RecordJob records a job reaching a terminal status
func RecordJob(status string, duration float64) {
	jobsTotal.WithLabelValues(status).Inc()
	jobDuration.WithLabelValues(status).Observe(duration)
	switch status {
	case "completed":
		completedJobs.Add(1)
	case "failed":
		failedJobs.Add(1)
	}
}

// JobStarted increments the active jobs gauge
func JobStarted() {
	activeJobs.Inc()
}

// JobFinished decrements the active jobs gauge
func JobFinished() {
	activeJobs.Dec()
}

// RecordStage records the duration and outcome of one pipeline stage
func RecordStage(stage, status string, duration float64) {
	stageDuration.WithLabelValues(stage, status).Observe(duration)
}

// RecordCacheLookup records a freshness cache lookup ("hit", "miss" or "stale")
func RecordCacheLookup(resourceClass, outcome string) {
	cacheLookups.WithLabelValues(resourceClass, outcome).Inc()
}

// RecordRateLimitRejection records a request denied by the rate limiter
func RecordRateLimitRejection(endpoint string) {
	rateLimitRejections.WithLabelValues(endpoint).Inc()
	rejectedCalls.Add(1)
}

// SubscriberConnected increments the progress subscribers gauge
func SubscriberConnected() {
	activeSubscribers.Inc()
}

// SubscriberDisconnected decrements the progress subscribers gauge
func SubscriberDisconnected() {
	activeSubscribers.Dec()
}

// RecordProviderRequest records a request to an AI provider
func RecordProviderRequest(provider, status string) {
	providerRequests.WithLabelValues(provider, status).Inc()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration)
}

// JobCounts returns the completed and failed job totals seen by this process
func JobCounts() (completed, failed int64) {
	return completedJobs.Load(), failedJobs.Load()
}

// RateLimitRejections returns the rejection total seen by this process
func RateLimitRejections() int64 {
	return rejectedCalls.Load()
}

// SetupMetricsEndpoint serves the default registry at /metrics
func SetupMetricsEndpoint(router *mux.Router) {
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}
