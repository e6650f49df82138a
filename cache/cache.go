/*
Package cache provides the freshness cache for computed analysis results.

Results are stored through a pluggable Backend (in-memory, SQLite or Cloud
Datastore) and read back through FreshnessCache, which applies the TTL of the
entry's resource class itself instead of relying on backend expiry.
*/
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
)

// Backend stores cache entries by derived key
type Backend interface {
	Load(ctx context.Context, key string) (*types.CacheEntry, bool, error)
	Store(ctx context.Context, entry *types.CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
}

// InMemoryBackend implements Backend with a map guarded by a RWMutex
type InMemoryBackend struct {
	items map[string]*types.CacheEntry
	mutex sync.RWMutex
	// retention is how long past its TTL an entry is kept before cleanup
	retention time.Duration
	now       func() time.Time
}

// NewInMemoryBackend creates a new in-memory backend
func NewInMemoryBackend(retention time.Duration) *InMemoryBackend {
	return &InMemoryBackend{
		items:     make(map[string]*types.CacheEntry),
		retention: retention,
		now:       time.Now,
	}
}

// Load retrieves an entry. Entries are returned even when stale; freshness
// is decided by FreshnessCache.
func (c *InMemoryBackend) Load(_ context.Context, key string) (*types.CacheEntry, bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.items[key]
	if !exists {
		return nil, false, nil
	}
	copied := *entry
	return &copied, true, nil
}

// Store replaces the entry for entry.Key
func (c *InMemoryBackend) Store(_ context.Context, entry *types.CacheEntry) error {
	copied := *entry

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[entry.Key] = &copied
	return nil
}

// Delete removes an entry
func (c *InMemoryBackend) Delete(_ context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
	return nil
}

// Clear removes all entries
func (c *InMemoryBackend) Clear(_ context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[string]*types.CacheEntry)
	return nil
}

// Ping always succeeds for the in-memory backend
func (c *InMemoryBackend) Ping(_ context.Context) error {
	return nil
}

// Len returns the number of physically stored entries
func (c *InMemoryBackend) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// StartCleanup periodically removes entries past TTL plus retention
func (c *InMemoryBackend) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.cleanup()
			}
		}
	}()
}

// cleanup removes expired entries
func (c *InMemoryBackend) cleanup() int {
	now := c.now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	removed := 0
	for key, entry := range c.items {
		if now.After(entry.CachedAt.Add(entry.TTL + c.retention)) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}
