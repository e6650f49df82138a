package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/sirupsen/logrus"
)

// datastoreBatchLimit is the most keys one DeleteMulti call accepts
const datastoreBatchLimit = 500

// CacheKind is the Datastore kind holding cache entries
const CacheKind = "CacheEntry"

// DatastoreClient is the subset of *datastore.Client used by the backend
type DatastoreClient interface {
	Get(ctx context.Context, key *datastore.Key, dst interface{}) error
	Put(ctx context.Context, key *datastore.Key, src interface{}) (*datastore.Key, error)
	Delete(ctx context.Context, key *datastore.Key) error
	DeleteMulti(ctx context.Context, keys []*datastore.Key) error
	GetAll(ctx context.Context, q *datastore.Query, dst interface{}) ([]*datastore.Key, error)
}

// cacheEntity is the stored form of a cache entry
type cacheEntity struct {
	ResourceClass string    `datastore:"resource_class"`
	Payload       []byte    `datastore:"payload,noindex"`
	CachedAt      time.Time `datastore:"cached_at"`
	TTLSeconds    int64     `datastore:"ttl_seconds,noindex"`
}

// DatastoreBackend stores cache entries in Google Cloud Datastore
type DatastoreBackend struct {
	client DatastoreClient
}

// NewDatastoreBackend creates a backend over client
func NewDatastoreBackend(client DatastoreClient) *DatastoreBackend {
	return &DatastoreBackend{client: client}
}

// Load retrieves an entry by key
func (b *DatastoreBackend) Load(ctx context.Context, key string) (*types.CacheEntry, bool, error) {
	var entity cacheEntity
	err := b.client.Get(ctx, datastore.NameKey(CacheKind, key, nil), &entity)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load cache entry: %w", err)
	}

	return &types.CacheEntry{
		Key:           key,
		ResourceClass: entity.ResourceClass,
		Payload:       entity.Payload,
		CachedAt:      entity.CachedAt.UTC(),
		TTL:           time.Duration(entity.TTLSeconds) * time.Second,
	}, true, nil
}

// Store puts an entry, replacing any existing one
func (b *DatastoreBackend) Store(ctx context.Context, entry *types.CacheEntry) error {
	entity := &cacheEntity{
		ResourceClass: entry.ResourceClass,
		Payload:       entry.Payload,
		CachedAt:      entry.CachedAt,
		TTLSeconds:    int64(entry.TTL / time.Second),
	}
	if _, err := b.client.Put(ctx, datastore.NameKey(CacheKind, entry.Key, nil), entity); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

// Delete removes an entry by key
func (b *DatastoreBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Delete(ctx, datastore.NameKey(CacheKind, key, nil)); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Clear removes every cache entity
func (b *DatastoreBackend) Clear(ctx context.Context) error {
	keys, err := b.client.GetAll(ctx, datastore.NewQuery(CacheKind).KeysOnly(), nil)
	if err != nil {
		return fmt.Errorf("list cache entries: %w", err)
	}
	if err := b.deleteKeys(ctx, keys); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Purge deletes entities cached before cutoff. TTLs are stored unindexed, so
// callers pass a cutoff past the longest TTL in the policy.
func (b *DatastoreBackend) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	query := datastore.NewQuery(CacheKind).
		FilterField("cached_at", "<", cutoff).
		KeysOnly()
	keys, err := b.client.GetAll(ctx, query, nil)
	if err != nil {
		return 0, fmt.Errorf("list expired cache entries: %w", err)
	}
	if err := b.deleteKeys(ctx, keys); err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return len(keys), nil
}

// StartPurge periodically deletes entities older than maxAge
func (b *DatastoreBackend) StartPurge(ctx context.Context, interval, maxAge time.Duration, logger *logrus.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := b.Purge(ctx, time.Now().Add(-maxAge))
				if err != nil {
					logger.WithError(err).Warn("Cache purge failed")
					continue
				}
				if removed > 0 {
					logger.WithField("removed", removed).Debug("Purged expired cache entries")
				}
			}
		}
	}()
}

func (b *DatastoreBackend) deleteKeys(ctx context.Context, keys []*datastore.Key) error {
	for start := 0; start < len(keys); start += datastoreBatchLimit {
		end := start + datastoreBatchLimit
		if end > len(keys) {
			end = len(keys)
		}
		if err := b.client.DeleteMulti(ctx, keys[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// Ping runs a minimal keys-only query
func (b *DatastoreBackend) Ping(ctx context.Context) error {
	query := datastore.NewQuery("__namespace__").KeysOnly().Limit(1)
	_, err := b.client.GetAll(ctx, query, nil)
	return err
}
