/*
Package container provides dependency injection capabilities for the brand analysis backend.

This package implements a simple dependency injection container that helps manage
service dependencies and reduces tight coupling between components.
*/
package container

import (
	"fmt"
	"io"
	"sync"

	"cloud.google.com/go/datastore"
	"github.com/iankiku/agentsauthority-chatbot-sub003/cache"
	"github.com/iankiku/agentsauthority-chatbot-sub003/handlers"
	"github.com/iankiku/agentsauthority-chatbot-sub003/jobs"
	"github.com/iankiku/agentsauthority-chatbot-sub003/pipeline"
	"github.com/iankiku/agentsauthority-chatbot-sub003/progress"
	"github.com/iankiku/agentsauthority-chatbot-sub003/ratelimit"
	"github.com/sirupsen/logrus"
)

// Service names
const (
	ServiceLogger       = "logger"
	ServiceDatastore    = "datastore"
	ServiceCacheBackend = "cache_backend"
	ServiceCache        = "cache"
	ServiceJobStore     = "jobs"
	ServiceLimiter      = "limiter"
	ServiceRunner       = "runner"
	ServiceBroadcaster  = "broadcaster"
	ServiceHandler      = "handler"
)

// Components are the core services assembled at startup. DatastoreClient is
// nil unless the datastore cache backend is in use.
type Components struct {
	Logger          *logrus.Logger
	Backend         cache.Backend
	DatastoreClient *datastore.Client
	Cache           *cache.FreshnessCache
	Store           *jobs.MemoryStore
	Limiter         *ratelimit.FixedWindowLimiter
	Runner          *pipeline.Runner
	Broadcaster     *progress.Broadcaster
}

// Container holds all service dependencies
type Container struct {
	mu         sync.RWMutex
	services   map[string]interface{}
	factories  map[string]func() (interface{}, error)
	singletons map[string]interface{}
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		services:   make(map[string]interface{}),
		factories:  make(map[string]func() (interface{}, error)),
		singletons: make(map[string]interface{}),
	}
}

// Register registers a service instance
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterFactory registers a factory function for lazy service creation
func (c *Container) RegisterFactory(name string, factory func() (interface{}, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// RegisterSingleton registers a singleton service
func (c *Container) RegisterSingleton(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singletons[name] = service
}

// Get retrieves a service by name
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup(name)
}

func (c *Container) lookup(name string) (interface{}, error) {
	// Check if service is already registered
	if service, exists := c.services[name]; exists {
		return service, nil
	}

	// Check if it's a singleton
	if singleton, exists := c.singletons[name]; exists {
		return singleton, nil
	}

	// Check if there's a factory for this service
	if factory, exists := c.factories[name]; exists {
		service, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to create service %s: %v", name, err)
		}
		return service, nil
	}

	return nil, fmt.Errorf("service %s not found", name)
}

// resolve fetches name and asserts it to T
func resolve[T any](c *Container, name string) (T, error) {
	var zero T
	service, err := c.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("%s service is not of expected type", name)
	}
	return typed, nil
}

// GetLogger retrieves the logger service
func (c *Container) GetLogger() (*logrus.Logger, error) {
	return resolve[*logrus.Logger](c, ServiceLogger)
}

// GetCacheBackend retrieves the storage behind the freshness cache
func (c *Container) GetCacheBackend() (cache.Backend, error) {
	return resolve[cache.Backend](c, ServiceCacheBackend)
}

// GetCache retrieves the freshness cache
func (c *Container) GetCache() (*cache.FreshnessCache, error) {
	return resolve[*cache.FreshnessCache](c, ServiceCache)
}

// GetJobStore retrieves the job store
func (c *Container) GetJobStore() (*jobs.MemoryStore, error) {
	return resolve[*jobs.MemoryStore](c, ServiceJobStore)
}

// GetLimiter retrieves the request rate limiter
func (c *Container) GetLimiter() (*ratelimit.FixedWindowLimiter, error) {
	return resolve[*ratelimit.FixedWindowLimiter](c, ServiceLimiter)
}

// GetRunner retrieves the pipeline runner
func (c *Container) GetRunner() (*pipeline.Runner, error) {
	return resolve[*pipeline.Runner](c, ServiceRunner)
}

// GetBroadcaster retrieves the progress broadcaster
func (c *Container) GetBroadcaster() (*progress.Broadcaster, error) {
	return resolve[*progress.Broadcaster](c, ServiceBroadcaster)
}

// GetHandler retrieves the handler service
func (c *Container) GetHandler() (*handlers.Handler, error) {
	return resolve[*handlers.Handler](c, ServiceHandler)
}

// InitializeServices initializes all core services with proper dependencies
func (c *Container) InitializeServices(components Components) error {
	switch {
	case components.Logger == nil:
		return fmt.Errorf("logger is required")
	case components.Backend == nil || components.Cache == nil:
		return fmt.Errorf("cache is required")
	case components.Store == nil || components.Runner == nil:
		return fmt.Errorf("job store and runner are required")
	case components.Limiter == nil || components.Broadcaster == nil:
		return fmt.Errorf("limiter and broadcaster are required")
	}

	// Register core services
	c.RegisterSingleton(ServiceLogger, components.Logger)
	c.RegisterSingleton(ServiceCacheBackend, components.Backend)
	c.RegisterSingleton(ServiceCache, components.Cache)
	c.RegisterSingleton(ServiceJobStore, components.Store)
	c.RegisterSingleton(ServiceLimiter, components.Limiter)
	c.RegisterSingleton(ServiceRunner, components.Runner)
	c.RegisterSingleton(ServiceBroadcaster, components.Broadcaster)
	if components.DatastoreClient != nil {
		c.RegisterSingleton(ServiceDatastore, components.DatastoreClient)
	}

	// Register handler factory that depends on other services
	c.RegisterFactory(ServiceHandler, func() (interface{}, error) {
		return handlers.NewHandler(
			components.Runner,
			components.Store,
			components.Cache,
			components.Broadcaster,
			components.Logger,
		), nil
	})

	return nil
}

// Close gracefully closes all service connections
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if backend, err := c.lookup(ServiceCacheBackend); err == nil {
		if closer, ok := backend.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				return fmt.Errorf("failed to close cache backend: %v", err)
			}
		}
	}

	// Close datastore client if available
	if service, err := c.lookup(ServiceDatastore); err == nil {
		if client, ok := service.(*datastore.Client); ok && client != nil {
			if err := client.Close(); err != nil {
				return fmt.Errorf("failed to close datastore client: %v", err)
			}
		}
	}

	return nil
}
