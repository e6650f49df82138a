/*
Package jobs tracks analysis jobs through their lifecycle.

A job moves pending -> processing -> completed | failed. Completed and failed
are terminal: once reached, the job's status, progress and result never change.
*/
package jobs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/sirupsen/logrus"
)

// Store is the job registry shared by the runner, the HTTP layer and
// progress subscribers
type Store interface {
	Create(subject types.AnalysisSubject) (types.Job, error)
	Get(id string) (types.Job, error)
	Advance(id string, progress int, stage string) error
	Complete(id string, result types.AnalysisResult) error
	Fail(id string, message string) error
	// Watch returns a channel signalled after every write to the job and
	// closed once the job is terminal. The returned func unsubscribes.
	Watch(id string) (<-chan struct{}, func(), error)
	List() []types.Job
	Cleanup(olderThan time.Duration) int
}

type record struct {
	job      types.Job
	watchers map[uint64]chan struct{}
}

// MemoryStore implements Store in process memory
type MemoryStore struct {
	records   map[string]*record
	mutex     sync.RWMutex
	nextWatch uint64
	logger    *logrus.Logger
	now       func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore(logger *logrus.Logger) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*record),
		logger:  logger,
		now:     time.Now,
	}
}

// Create registers a new pending job for subject
func (s *MemoryStore) Create(subject types.AnalysisSubject) (types.Job, error) {
	now := s.now().UTC()
	job := types.Job{
		ID:        uuid.NewString(),
		Status:    types.JobPending,
		Progress:  0,
		Stage:     "Queued",
		Subject:   subject,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mutex.Lock()
	s.records[job.ID] = &record{job: job, watchers: make(map[uint64]chan struct{})}
	s.mutex.Unlock()

	s.logger.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"brand_name": subject.BrandName,
		"brand_url":  subject.BrandURL,
	}).Info("Analysis job created")

	return job, nil
}

// Get returns a copy of the job
func (s *MemoryStore) Get(id string) (types.Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return types.Job{}, &types.NotFoundError{Resource: "job", ID: id}
	}
	return rec.job, nil
}

// Advance moves the job to processing and records the running stage.
// Progress never decreases and stays below 100 until completion.
func (s *MemoryStore) Advance(id string, progress int, stage string) error {
	return s.update(id, func(job *types.Job, now time.Time) {
		if job.Status == types.JobPending {
			job.Status = types.JobProcessing
			job.StartedAt = &now
		}
		if progress > 99 {
			progress = 99
		}
		if progress > job.Progress {
			job.Progress = progress
		}
		job.Stage = stage
	})
}

// Complete stores the result and marks the job completed at 100%
func (s *MemoryStore) Complete(id string, result types.AnalysisResult) error {
	return s.update(id, func(job *types.Job, now time.Time) {
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
		job.Status = types.JobCompleted
		job.Progress = 100
		job.Stage = "Completed"
		job.Result = &result
		job.CompletedAt = &now
	})
}

// unknownFailure stands in for a blank failure message so a failed job always
// carries an error
const unknownFailure = "analysis failed: unknown error"

// Fail marks the job failed with message, keeping its last progress
func (s *MemoryStore) Fail(id string, message string) error {
	if strings.TrimSpace(message) == "" {
		message = unknownFailure
	}
	return s.update(id, func(job *types.Job, now time.Time) {
		job.Status = types.JobFailed
		job.Error = message
		job.CompletedAt = &now
	})
}

// update applies mutate to a copy of the job and swaps it in
func (s *MemoryStore) update(id string, mutate func(job *types.Job, now time.Time)) error {
	now := s.now().UTC()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, exists := s.records[id]
	if !exists {
		return &types.NotFoundError{Resource: "job", ID: id}
	}
	if rec.job.Status.IsTerminal() {
		return types.ErrTerminalJob
	}

	next := rec.job
	mutate(&next, now)
	next.UpdatedAt = now
	rec.job = next

	for watchID, ch := range rec.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
		if next.Status.IsTerminal() {
			close(ch)
			delete(rec.watchers, watchID)
		}
	}
	return nil
}

// Watch subscribes to change signals for the job
func (s *MemoryStore) Watch(id string) (<-chan struct{}, func(), error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, nil, &types.NotFoundError{Resource: "job", ID: id}
	}

	ch := make(chan struct{}, 1)
	if rec.job.Status.IsTerminal() {
		close(ch)
		return ch, func() {}, nil
	}

	s.nextWatch++
	watchID := s.nextWatch
	rec.watchers[watchID] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mutex.Lock()
			defer s.mutex.Unlock()
			if rec, ok := s.records[id]; ok {
				if ch, ok := rec.watchers[watchID]; ok {
					close(ch)
					delete(rec.watchers, watchID)
				}
			}
		})
	}
	return ch, unsubscribe, nil
}

// List returns all jobs, newest first
func (s *MemoryStore) List() []types.Job {
	s.mutex.RLock()
	jobs := make([]types.Job, 0, len(s.records))
	for _, rec := range s.records {
		jobs = append(jobs, rec.job)
	}
	s.mutex.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Cleanup removes terminal jobs last updated more than olderThan ago
func (s *MemoryStore) Cleanup(olderThan time.Duration) int {
	cutoff := s.now().UTC().Add(-olderThan)

	s.mutex.Lock()
	removed := 0
	for id, rec := range s.records {
		if rec.job.Status.IsTerminal() && rec.job.UpdatedAt.Before(cutoff) {
			delete(s.records, id)
			removed++
		}
	}
	s.mutex.Unlock()

	if removed > 0 {
		s.logger.WithField("removed_count", removed).Info("Cleaned up old analysis jobs")
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done
func (s *MemoryStore) StartCleanup(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup(retention)
			}
		}
	}()
}
