package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

const cacheTable = "cache_entries"

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key      TEXT PRIMARY KEY,
	resource_class TEXT NOT NULL,
	payload        BLOB NOT NULL,
	cached_at      INTEGER NOT NULL,
	ttl_ns         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_class ON cache_entries(resource_class);
`

// SQLBackend stores cache entries in a SQLite database
type SQLBackend struct {
	db *sql.DB
}

// OpenSQLBackend opens (and creates if needed) the SQLite cache at path.
// ":memory:" gives a private in-memory database.
func OpenSQLBackend(path string) (*SQLBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// Single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &SQLBackend{db: db}, nil
}

// Load retrieves an entry by key
func (b *SQLBackend) Load(ctx context.Context, key string) (*types.CacheEntry, bool, error) {
	query, args, err := sq.Select("cache_key", "resource_class", "payload", "cached_at", "ttl_ns").
		From(cacheTable).
		Where(sq.Eq{"cache_key": key}).
		ToSql()
	if err != nil {
		return nil, false, err
	}

	var (
		entry    types.CacheEntry
		cachedAt int64
		ttl      int64
	)
	err = b.db.QueryRowContext(ctx, query, args...).
		Scan(&entry.Key, &entry.ResourceClass, &entry.Payload, &cachedAt, &ttl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load cache entry: %w", err)
	}

	entry.CachedAt = time.Unix(0, cachedAt).UTC()
	entry.TTL = time.Duration(ttl)
	return &entry, true, nil
}

// Store inserts or replaces an entry
func (b *SQLBackend) Store(ctx context.Context, entry *types.CacheEntry) error {
	query, args, err := sq.Replace(cacheTable).
		Columns("cache_key", "resource_class", "payload", "cached_at", "ttl_ns").
		Values(entry.Key, entry.ResourceClass, entry.Payload, entry.CachedAt.UnixNano(), int64(entry.TTL)).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

// Delete removes an entry by key
func (b *SQLBackend) Delete(ctx context.Context, key string) error {
	query, args, err := sq.Delete(cacheTable).Where(sq.Eq{"cache_key": key}).ToSql()
	if err != nil {
		return err
	}

	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry
func (b *SQLBackend) Clear(ctx context.Context) error {
	query, args, err := sq.Delete(cacheTable).ToSql()
	if err != nil {
		return err
	}

	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Purge deletes entries whose TTL plus retention ended before now
func (b *SQLBackend) Purge(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	query, args, err := sq.Delete(cacheTable).
		Where(sq.Expr("cached_at + ttl_ns + ? < ?", int64(retention), now.UnixNano())).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

// StartPurge periodically deletes entries past TTL plus retention
func (b *SQLBackend) StartPurge(ctx context.Context, interval, retention time.Duration, logger *logrus.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := b.Purge(ctx, time.Now(), retention)
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

// Ping checks the database connection
func (b *SQLBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close closes the database
func (b *SQLBackend) Close() error {
	return b.db.Close()
}
