package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/monitoring"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/sirupsen/logrus"
)

// MaxKeyLength is the longest identity part kept verbatim in a key
const MaxKeyLength = 128

// DeriveKey builds the cache key for class and the identifying fields.
// Fields are trimmed and case-folded, so "Acme" and "acme " share a key.
// Identities longer than MaxKeyLength are replaced by their SHA-256 digest.
func DeriveKey(class ResourceClass, identity ...string) string {
	parts := make([]string, len(identity))
	for i, field := range identity {
		parts[i] = strings.ToLower(strings.TrimSpace(field))
	}

	joined := strings.Join(parts, "|")
	if len(joined) > MaxKeyLength {
		sum := sha256.Sum256([]byte(joined))
		joined = hex.EncodeToString(sum[:])
	}
	return fmt.Sprintf("%s:%s", class, joined)
}

// FreshnessCache serves cached results only while they are within the TTL
// of their resource class
type FreshnessCache struct {
	backend Backend
	policy  Policy
	logger  *logrus.Logger
	now     func() time.Time
}

// FreshnessOption configures a FreshnessCache
type FreshnessOption func(*FreshnessCache)

// WithNow overrides the clock used for staleness checks
func WithNow(now func() time.Time) FreshnessOption {
	return func(fc *FreshnessCache) {
		fc.now = now
	}
}

// NewFreshnessCache creates a freshness cache over backend
func NewFreshnessCache(backend Backend, policy Policy, logger *logrus.Logger, opts ...FreshnessOption) *FreshnessCache {
	fc := &FreshnessCache{
		backend: backend,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(fc)
	}
	return fc
}

// Policy returns the TTL table in use
func (fc *FreshnessCache) Policy() Policy {
	return fc.policy
}

// Get returns the payload cached for class and identity. Missing, stale,
// unreadable and unknown-class entries all report a miss.
func (fc *FreshnessCache) Get(ctx context.Context, class ResourceClass, identity ...string) ([]byte, bool) {
	key := DeriveKey(class, identity...)

	ttl, ok := fc.policy.TTL(class)
	if !ok {
		fc.logger.WithField("resource_class", class).Warn("Cache lookup for unknown resource class")
		monitoring.RecordCacheLookup(string(class), "miss")
		return nil, false
	}

	entry, found, err := fc.backend.Load(ctx, key)
	if err != nil {
		fc.logger.WithFields(logrus.Fields{
			"key":   key,
			"error": err.Error(),
		}).Warn("Cache backend read failed")
		monitoring.RecordCacheLookup(string(class), "error")
		return nil, false
	}
	if !found {
		fc.logger.WithField("key", key).Debug("Cache miss")
		monitoring.RecordCacheLookup(string(class), "miss")
		return nil, false
	}

	// Staleness follows the current policy, not the TTL recorded at write time
	entry.TTL = ttl
	if entry.IsStale(fc.now()) {
		fc.logger.WithFields(logrus.Fields{
			"key":       key,
			"cached_at": entry.CachedAt,
			"ttl":       ttl.String(),
		}).Debug("Cache entry stale")
		monitoring.RecordCacheLookup(string(class), "stale")
		return nil, false
	}

	fc.logger.WithField("key", key).Debug("Cache hit")
	monitoring.RecordCacheLookup(string(class), "hit")
	return entry.Payload, true
}

// Put stores payload under class and identity stamped with the current time
func (fc *FreshnessCache) Put(ctx context.Context, class ResourceClass, payload []byte, identity ...string) error {
	ttl, ok := fc.policy.TTL(class)
	if !ok {
		return fmt.Errorf("unknown resource class %q", class)
	}

	entry := &types.CacheEntry{
		Key:           DeriveKey(class, identity...),
		ResourceClass: string(class),
		Payload:       payload,
		CachedAt:      fc.now().UTC(),
		TTL:           ttl,
	}
	if err := fc.backend.Store(ctx, entry); err != nil {
		fc.logger.WithFields(logrus.Fields{
			"key":   entry.Key,
			"error": err.Error(),
		}).Error("Failed to write cache entry")
		return fmt.Errorf("store cache entry: %w", err)
	}

	fc.logger.WithFields(logrus.Fields{
		"key":         entry.Key,
		"ttl_minutes": ttl.Minutes(),
	}).Debug("Cached entry successfully")
	return nil
}

// Invalidate removes the entry for class and identity
func (fc *FreshnessCache) Invalidate(ctx context.Context, class ResourceClass, identity ...string) error {
	key := DeriveKey(class, identity...)
	if err := fc.backend.Delete(ctx, key); err != nil {
		fc.logger.WithFields(logrus.Fields{
			"key":   key,
			"error": err.Error(),
		}).Error("Failed to invalidate cache entry")
		return err
	}

	fc.logger.WithField("key", key).Info("Invalidated cache entry")
	return nil
}

// ClearAll removes every entry from the backend
func (fc *FreshnessCache) ClearAll(ctx context.Context) error {
	if err := fc.backend.Clear(ctx); err != nil {
		fc.logger.WithError(err).Error("Failed to clear cache")
		return err
	}

	fc.logger.Info("Cache cleared successfully")
	return nil
}

// GetJSON decodes a fresh cached payload into dst
func (fc *FreshnessCache) GetJSON(ctx context.Context, class ResourceClass, dst interface{}, identity ...string) bool {
	payload, ok := fc.Get(ctx, class, identity...)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		fc.logger.WithFields(logrus.Fields{
			"resource_class": class,
			"error":          err.Error(),
		}).Warn("Discarding undecodable cache entry")
		return false
	}
	return true
}

// PutJSON encodes v and stores it
func (fc *FreshnessCache) PutJSON(ctx context.Context, class ResourceClass, v interface{}, identity ...string) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}
	return fc.Put(ctx, class, payload, identity...)
}
