/*
Package ratelimit provides per-caller request admission control.

The limiter uses fixed windows created lazily per caller key: the first request
opens a window of the configured duration with a count of one, later requests
in the same window increment the count, and the first request after the window
ends opens a new one. It is permissive at window boundaries but needs O(1)
memory per caller.
*/
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/sirupsen/logrus"
)

// Decision is the outcome of a single admission check
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Err returns a RateLimitError for rejected decisions and nil otherwise
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &types.RateLimitError{
		Limit:      d.Limit,
		RetryAfter: d.RetryAfter,
		ResetAt:    d.ResetAt,
	}
}

// Limiter is the admission contract used by the HTTP layer
type Limiter interface {
	Admit(key string, limit int, window time.Duration) Decision
	// Peek reports the decision the next request would get without counting it
	Peek(key string, limit int, window time.Duration) Decision
}

// FixedWindowLimiter implements Limiter with one counter per caller key
type FixedWindowLimiter struct {
	mutex   sync.Mutex
	records map[string]*types.RateLimitRecord
	now     func() time.Time
	logger  *logrus.Logger
}

// Option configures a FixedWindowLimiter
type Option func(*FixedWindowLimiter)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindowLimiter) {
		l.now = now
	}
}

// NewFixedWindowLimiter creates a new limiter
func NewFixedWindowLimiter(logger *logrus.Logger, opts ...Option) *FixedWindowLimiter {
	if logger == nil {
		logger = logrus.New()
	}
	l := &FixedWindowLimiter{
		records: make(map[string]*types.RateLimitRecord),
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit counts a request for key and reports whether it is within limit
func (l *FixedWindowLimiter) Admit(key string, limit int, window time.Duration) Decision {
	now := l.now()

	l.mutex.Lock()
	record, exists := l.records[key]
	if !exists || !now.Before(record.WindowResetAt) {
		record = &types.RateLimitRecord{
			Key:           key,
			Count:         1,
			WindowResetAt: now.Add(window),
		}
		l.records[key] = record
	} else {
		record.Count++
	}
	count := record.Count
	resetAt := record.WindowResetAt
	l.mutex.Unlock()

	decision := Decision{
		Allowed: count <= limit,
		Limit:   limit,
		ResetAt: resetAt,
	}
	if decision.Allowed {
		decision.Remaining = limit - count
	} else {
		decision.RetryAfter = resetAt.Sub(now)
	}
	return decision
}

// Peek reports the state of key's window without admitting a request. A key
// with no open window has its full quota and would open one now.
func (l *FixedWindowLimiter) Peek(key string, limit int, window time.Duration) Decision {
	now := l.now()
	record, ok := l.Snapshot(key)
	if !ok || !now.Before(record.WindowResetAt) {
		return Decision{Allowed: limit > 0, Limit: limit, Remaining: limit, ResetAt: now.Add(window)}
	}

	decision := Decision{
		Allowed: record.Count < limit,
		Limit:   limit,
		ResetAt: record.WindowResetAt,
	}
	if record.Count < limit {
		decision.Remaining = limit - record.Count
	} else {
		decision.RetryAfter = record.WindowResetAt.Sub(now)
	}
	return decision
}

// Snapshot returns a copy of the record for key, if one exists
func (l *FixedWindowLimiter) Snapshot(key string) (types.RateLimitRecord, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	record, exists := l.records[key]
	if !exists {
		return types.RateLimitRecord{}, false
	}
	return *record, true
}

// Len returns the number of tracked caller keys
func (l *FixedWindowLimiter) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.records)
}

// Cleanup removes records whose window has ended
func (l *FixedWindowLimiter) Cleanup() int {
	now := l.now()

	l.mutex.Lock()
	removed := 0
	for key, record := range l.records {
		if !now.Before(record.WindowResetAt) {
			delete(l.records, key)
			removed++
		}
	}
	l.mutex.Unlock()
	return removed
}

// StartCleanup purges expired records every interval until ctx is done
func (l *FixedWindowLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := l.Cleanup(); removed > 0 {
					l.logger.WithFields(logrus.Fields{
						"removed_count": removed,
						"tracked_keys":  l.Len(),
					}).Debug("Purged expired rate limit windows")
				}
			}
		}
	}()
}
