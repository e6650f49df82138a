/*
Package config provides configuration management for the brand analysis backend.

Settings come from environment variables (optionally loaded from a .env file)
and are grouped by concern: server, rate limiting, CORS, cache, scoring,
pipeline and AI providers. NewServices turns a validated Config into the
wired component graph held by the dependency container.
*/
package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/iankiku/agentsauthority-chatbot-sub003/analysis"
	"github.com/iankiku/agentsauthority-chatbot-sub003/cache"
	"github.com/iankiku/agentsauthority-chatbot-sub003/container"
	"github.com/iankiku/agentsauthority-chatbot-sub003/jobs"
	"github.com/iankiku/agentsauthority-chatbot-sub003/middleware"
	"github.com/iankiku/agentsauthority-chatbot-sub003/pipeline"
	"github.com/iankiku/agentsauthority-chatbot-sub003/progress"
	"github.com/iankiku/agentsauthority-chatbot-sub003/ratelimit"
	"github.com/iankiku/agentsauthority-chatbot-sub003/scoring"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Cache backends
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendDatastore = "datastore"
)

// Config holds all application configuration
type Config struct {
	LogLevel    string
	ServerPort  string
	Environment string
	// Rate limiting configuration
	RateLimitRequests        int
	RateLimitWindow          time.Duration
	RateLimitCleanupInterval time.Duration
	// RateLimitTrustPrincipal keys callers on X-User-ID; only safe behind an
	// auth proxy that sets it
	RateLimitTrustPrincipal bool
	// Enhanced CORS configuration
	CORSConfig CORSConfig
	Cache      CacheConfig
	Weights    scoring.Weights
	Pipeline   PipelineConfig
	Providers  ProvidersConfig
	// Alert rule evaluation interval
	AlertInterval time.Duration
	// TraceSampleRatio is the share of root traces kept
	TraceSampleRatio float64
}

// CacheConfig selects and tunes the freshness cache
type CacheConfig struct {
	Backend    string
	SQLitePath string
	ProjectID  string
	// PolicyFile optionally overrides TTLs per resource class
	PolicyFile        string
	BrandAnalysisTTL  time.Duration
	BrandDiscoveryTTL time.Duration
	ProviderScanTTL   time.Duration
	// Retention keeps stale entries around after expiry before purging
	Retention       time.Duration
	CleanupInterval time.Duration
}

// PipelineConfig holds job execution settings
type PipelineConfig struct {
	StageTimeout       time.Duration
	JobTimeout         time.Duration
	PollInterval       time.Duration
	JobRetention       time.Duration
	JobCleanupInterval time.Duration
	MaxQueries         int
	ScanConcurrency    int
}

// ProvidersConfig holds AI provider and press feed settings
type ProvidersConfig struct {
	Chat []analysis.ChatConfig
	// RPS and Burst throttle outbound provider calls across all jobs
	RPS            float64
	Burst          int
	SiteTimeout    time.Duration
	MentionFeedURL string
	MentionLimit   int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	// Environment-specific settings
	Environment string
	// Allowed origins based on environment
	DevelopmentOrigins []string
	StagingOrigins     []string
	ProductionOrigins  []string
	// Additional CORS settings
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
	// Dynamic origin validation
	AllowSubdomains bool
	AllowedDomains  []string
}

// Services holds all service dependencies
type Services struct {
	Container *container.Container
	Logger    *logrus.Logger
}

// LoadEnvFile loads variables from path into the environment without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// NewConfig creates a new configuration instance
func NewConfig() *Config {
	environment := getEnv("ENVIRONMENT", "development")

	return &Config{
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: environment,
		// Rate limiting defaults (10 analyses per caller per minute)
		RateLimitRequests:        getEnvInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:          getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		RateLimitTrustPrincipal:  getEnvBool("RATE_LIMIT_TRUST_PRINCIPAL_HEADER", false),
		CORSConfig: CORSConfig{
			Environment: environment,
			DevelopmentOrigins: getEnvSlice("DEV_CORS_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost:3001",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:3001",
				"http://localhost:8080",
			}),
			StagingOrigins:    getEnvSlice("STAGING_CORS_ORIGINS", []string{}),
			ProductionOrigins: getEnvSlice("PROD_CORS_ORIGINS", []string{}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{
				"GET", "POST", "DELETE", "OPTIONS",
			}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{
				"Content-Type", "Authorization", "X-Requested-With",
				"X-Request-ID", "Accept", "Origin", "Cache-Control",
			}),
			ExposedHeaders: getEnvSlice("CORS_EXPOSED_HEADERS", []string{
				"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining",
				"X-RateLimit-Reset", "Retry-After", "X-Cache",
			}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getEnvInt("CORS_MAX_AGE", 86400), // 24 hours
			AllowSubdomains:  getEnvBool("CORS_ALLOW_SUBDOMAINS", false),
			AllowedDomains:   getEnvSlice("CORS_ALLOWED_DOMAINS", []string{}),
		},
		Cache: CacheConfig{
			Backend:           strings.ToLower(getEnv("CACHE_BACKEND", BackendMemory)),
			SQLitePath:        getEnv("CACHE_SQLITE_PATH", "brand-cache.db"),
			ProjectID:         getEnv("PROJECT_ID", ""),
			PolicyFile:        getEnv("CACHE_POLICY_FILE", ""),
			BrandAnalysisTTL:  getEnvDuration("CACHE_TTL_BRAND_ANALYSIS", 6*time.Hour),
			BrandDiscoveryTTL: getEnvDuration("CACHE_TTL_BRAND_DISCOVERY", time.Hour),
			ProviderScanTTL:   getEnvDuration("CACHE_TTL_PROVIDER_SCAN", 30*time.Minute),
			Retention:         getEnvDuration("CACHE_RETENTION", time.Hour),
			CleanupInterval:   getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
		Weights: scoring.Weights{
			Visibility:   getEnvFloat("SCORE_WEIGHT_VISIBILITY", 0.30),
			Sentiment:    getEnvFloat("SCORE_WEIGHT_SENTIMENT", 0.20),
			ShareOfVoice: getEnvFloat("SCORE_WEIGHT_SHARE_OF_VOICE", 0.30),
			Position:     getEnvFloat("SCORE_WEIGHT_POSITION", 0.20),
		},
		Pipeline: PipelineConfig{
			StageTimeout:       getEnvDuration("STAGE_TIMEOUT", 2*time.Minute),
			JobTimeout:         getEnvDuration("JOB_TIMEOUT", 10*time.Minute),
			PollInterval:       getEnvDuration("PROGRESS_POLL_INTERVAL", progress.DefaultPollInterval),
			JobRetention:       getEnvDuration("JOB_RETENTION", 24*time.Hour),
			JobCleanupInterval: getEnvDuration("JOB_CLEANUP_INTERVAL", 15*time.Minute),
			MaxQueries:         getEnvInt("MAX_QUERIES", 6),
			ScanConcurrency:    getEnvInt("SCAN_CONCURRENCY", 4),
		},
		Providers: ProvidersConfig{
			Chat:           loadChatProviders(),
			RPS:            getEnvFloat("PROVIDER_RPS", 5),
			Burst:          getEnvInt("PROVIDER_BURST", 5),
			SiteTimeout:    getEnvDuration("SITE_FETCH_TIMEOUT", 20*time.Second),
			MentionFeedURL: getEnv("MENTION_FEED_URL", analysis.DefaultMentionFeed),
			MentionLimit:   getEnvInt("MENTION_LIMIT", 50),
		},
		AlertInterval:    getEnvDuration("ALERT_INTERVAL", time.Minute),
		TraceSampleRatio: getEnvFloat("TRACE_SAMPLE_RATIO", 1),
	}
}

// loadChatProviders reads the primary provider and, when its key is set, a
// Perplexity provider as a second opinion
func loadChatProviders() []analysis.ChatConfig {
	timeout := getEnvDuration("AI_PROVIDER_TIMEOUT", 60*time.Second)
	providers := []analysis.ChatConfig{{
		Name:     getEnv("AI_PROVIDER_NAME", "openai"),
		Endpoint: getEnv("AI_PROVIDER_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
		Model:    getEnv("AI_PROVIDER_MODEL", "gpt-4o-mini"),
		APIKey:   getEnv("AI_PROVIDER_API_KEY", ""),
		Timeout:  timeout,
	}}

	if key := getEnv("PERPLEXITY_API_KEY", ""); key != "" {
		providers = append(providers, analysis.ChatConfig{
			Name:     "perplexity",
			Endpoint: getEnv("PERPLEXITY_ENDPOINT", "https://api.perplexity.ai/chat/completions"),
			Model:    getEnv("PERPLEXITY_MODEL", "sonar"),
			APIKey:   key,
			Timeout:  timeout,
		})
	}
	return providers
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimitRequests)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Cache.SQLitePath == "" {
			return fmt.Errorf("CACHE_SQLITE_PATH is required for the sqlite cache backend")
		}
	case BackendDatastore:
		if c.Cache.ProjectID == "" {
			return fmt.Errorf("PROJECT_ID environment variable is required for the datastore cache backend")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}

	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid scoring weights: %w", err)
	}
	if c.Pipeline.StageTimeout <= 0 || c.Pipeline.JobTimeout <= 0 {
		return fmt.Errorf("STAGE_TIMEOUT and JOB_TIMEOUT must be positive")
	}
	if c.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("PROGRESS_POLL_INTERVAL must be positive, got %s", c.Pipeline.PollInterval)
	}
	if c.Providers.RPS <= 0 || c.Providers.Burst <= 0 {
		return fmt.Errorf("PROVIDER_RPS and PROVIDER_BURST must be positive")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATIO must be between 0 and 1, got %v", c.TraceSampleRatio)
	}
	return nil
}

// CachePolicy returns the TTL table from the environment, overridden by the
// policy file when one is configured
func (c *Config) CachePolicy() (cache.Policy, error) {
	policy := cache.Policy{
		cache.ClassBrandAnalysis:  c.Cache.BrandAnalysisTTL,
		cache.ClassBrandDiscovery: c.Cache.BrandDiscoveryTTL,
		cache.ClassProviderScan:   c.Cache.ProviderScanTTL,
	}
	if c.Cache.PolicyFile != "" {
		return cache.LoadPolicyFile(c.Cache.PolicyFile, policy)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// NewServices creates and initializes all service dependencies using DI container.
// alerter may be nil.
func NewServices(config *Config, alerter pipeline.Alerter) (*Services, error) {
	logger := middleware.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	policy, err := config.CachePolicy()
	if err != nil {
		return nil, fmt.Errorf("invalid cache policy: %w", err)
	}

	backend, datastoreClient, err := newCacheBackend(config.Cache)
	if err != nil {
		return nil, err
	}
	logger.WithField("backend", config.Cache.Backend).Info("Cache backend initialized successfully")

	freshness := cache.NewFreshnessCache(backend, policy, logger)

	providers := make([]analysis.Provider, 0, len(config.Providers.Chat))
	for _, chat := range config.Providers.Chat {
		providers = append(providers, analysis.NewChatProvider(chat))
	}
	siteClient := &http.Client{Timeout: config.Providers.SiteTimeout}
	analyzer := &analysis.Analyzer{
		Providers:       providers,
		Inspector:       analysis.NewHTMLInspector(siteClient),
		Mentions:        analysis.NewFeedMentionSource(config.Providers.MentionFeedURL, siteClient, config.Providers.MentionLimit),
		Cache:           freshness,
		Weights:         config.Weights,
		MaxQueries:      config.Pipeline.MaxQueries,
		ScanConcurrency: config.Pipeline.ScanConcurrency,
		Logger:          logger,
	}

	store := jobs.NewMemoryStore(logger)
	runner, err := pipeline.NewRunner(store, freshness, analyzer.Stages(), pipeline.Options{
		StageTimeout: config.Pipeline.StageTimeout,
		JobTimeout:   config.Pipeline.JobTimeout,
		Weights:      config.Weights,
		Throttle:     rate.NewLimiter(rate.Limit(config.Providers.RPS), config.Providers.Burst),
		Alerter:      alerter,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis pipeline: %w", err)
	}

	diContainer := container.NewContainer()
	if err := diContainer.InitializeServices(container.Components{
		Logger:          logger,
		Backend:         backend,
		DatastoreClient: datastoreClient,
		Cache:           freshness,
		Store:           store,
		Limiter:         ratelimit.NewFixedWindowLimiter(logger),
		Runner:          runner,
		Broadcaster:     progress.NewBroadcaster(store, config.Pipeline.PollInterval, logger),
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize dependency container: %v", err)
	}

	return &Services{
		Container: diContainer,
		Logger:    logger,
	}, nil
}

// newCacheBackend opens the configured backend. The datastore client is
// returned separately so the container can close it.
func newCacheBackend(cfg CacheConfig) (cache.Backend, *datastore.Client, error) {
	switch cfg.Backend {
	case BackendSQLite:
		backend, err := cache.OpenSQLBackend(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite cache: %w", err)
		}
		return backend, nil, nil
	case BackendDatastore:
		client, err := datastore.NewClient(context.Background(), cfg.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Datastore client: %v", err)
		}
		return cache.NewDatastoreBackend(client), client, nil
	default:
		return cache.NewInMemoryBackend(cfg.Retention), nil, nil
	}
}

// Close gracefully closes all service connections
func (s *Services) Close() error {
	if s.Container != nil {
		return s.Container.Close()
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as float64 with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as time.Duration with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as bool with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvSlice gets an environment variable as a string slice with a default value
func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
