package container

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/cache"
	"github.com/iankiku/agentsauthority-chatbot-sub003/jobs"
	"github.com/iankiku/agentsauthority-chatbot-sub003/pipeline"
	"github.com/iankiku/agentsauthority-chatbot-sub003/progress"
	"github.com/iankiku/agentsauthority-chatbot-sub003/ratelimit"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closingBackend struct {
	*cache.InMemoryBackend
	closed int
	err    error
}

func (b *closingBackend) Close() error {
	b.closed++
	return b.err
}

func testComponents(t *testing.T, backend cache.Backend) Components {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	freshness := cache.NewFreshnessCache(backend, cache.DefaultPolicy(), logger)
	store := jobs.NewMemoryStore(logger)
	noop := func(context.Context, *pipeline.State) error { return nil }
	runner, err := pipeline.NewRunner(store, freshness, []pipeline.Stage{
		{Name: "only", Label: "Doing everything", Weight: 100, Run: noop},
	}, pipeline.DefaultOptions(), logger)
	require.NoError(t, err)

	return Components{
		Logger:      logger,
		Backend:     backend,
		Cache:       freshness,
		Store:       store,
		Limiter:     ratelimit.NewFixedWindowLimiter(logger),
		Runner:      runner,
		Broadcaster: progress.NewBroadcaster(store, time.Second, logger),
	}
}

func TestInitializeServices(t *testing.T) {
	c := NewContainer()
	components := testComponents(t, cache.NewInMemoryBackend(time.Hour))
	require.NoError(t, c.InitializeServices(components))

	logger, err := c.GetLogger()
	require.NoError(t, err)
	assert.Same(t, components.Logger, logger)

	store, err := c.GetJobStore()
	require.NoError(t, err)
	assert.Same(t, components.Store, store)

	freshness, err := c.GetCache()
	require.NoError(t, err)
	assert.Same(t, components.Cache, freshness)

	limiter, err := c.GetLimiter()
	require.NoError(t, err)
	assert.Same(t, components.Limiter, limiter)

	broadcaster, err := c.GetBroadcaster()
	require.NoError(t, err)
	assert.Same(t, components.Broadcaster, broadcaster)

	handler, err := c.GetHandler()
	require.NoError(t, err)
	assert.Same(t, components.Runner, handler.Runner)
	assert.Same(t, components.Store, handler.Jobs)

	// No datastore client was supplied
	_, err = c.Get(ServiceDatastore)
	assert.Error(t, err)
}

func TestInitializeServicesRequiresComponents(t *testing.T) {
	base := testComponents(t, cache.NewInMemoryBackend(time.Hour))

	tests := []struct {
		name   string
		mutate func(*Components)
	}{
		{"logger", func(c *Components) { c.Logger = nil }},
		{"cache", func(c *Components) { c.Cache = nil }},
		{"backend", func(c *Components) { c.Backend = nil }},
		{"store", func(c *Components) { c.Store = nil }},
		{"runner", func(c *Components) { c.Runner = nil }},
		{"limiter", func(c *Components) { c.Limiter = nil }},
		{"broadcaster", func(c *Components) { c.Broadcaster = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			components := base
			tt.mutate(&components)
			assert.Error(t, NewContainer().InitializeServices(components))
		})
	}
}

func TestGetTypeMismatch(t *testing.T) {
	c := NewContainer()
	c.Register(ServiceLogger, "not a logger")

	_, err := c.GetLogger()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not of expected type")

	_, err = c.GetRunner()
	assert.Contains(t, err.Error(), "service runner not found")
}

func TestFactoryError(t *testing.T) {
	c := NewContainer()
	c.RegisterFactory("broken", func() (interface{}, error) {
		return nil, errors.New("boom")
	})

	_, err := c.Get("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create service broken")
}

func TestClose(t *testing.T) {
	backend := &closingBackend{InMemoryBackend: cache.NewInMemoryBackend(time.Hour)}
	c := NewContainer()
	require.NoError(t, c.InitializeServices(testComponents(t, backend)))

	require.NoError(t, c.Close())
	assert.Equal(t, 1, backend.closed)

	backend.err = errors.New("disk full")
	err := c.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to close cache backend")

	// Close on an empty container is a no-op
	assert.NoError(t, NewContainer().Close())
}
