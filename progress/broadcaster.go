/*
Package progress streams job snapshots to any number of subscribers.

Each subscriber gets its own goroutine and channel. The current snapshot is
sent immediately, then a new one whenever the job changes, and the channel is
closed after a terminal snapshot. Unsubscribing never affects the job itself.
*/
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/jobs"
	"github.com/iankiku/agentsauthority-chatbot-sub003/monitoring"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is the fallback refresh cadence
const DefaultPollInterval = 2 * time.Second

// Broadcaster fans job snapshots out to subscribers
type Broadcaster struct {
	store        jobs.Store
	pollInterval time.Duration
	logger       *logrus.Logger
}

// NewBroadcaster creates a broadcaster reading from store
func NewBroadcaster(store jobs.Store, pollInterval time.Duration, logger *logrus.Logger) *Broadcaster {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Broadcaster{
		store:        store,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// NotFoundEvent is the single event sent for an unknown job
func NotFoundEvent(jobID string) types.JobEvent {
	return types.JobEvent{
		Type:  types.JobEventError,
		JobID: jobID,
		Error: types.JobNotFoundMessage,
	}
}

// Subscribe streams snapshots of jobID until the job is terminal or ctx is
// done. An unknown job yields one not-found event.
func (b *Broadcaster) Subscribe(ctx context.Context, jobID string) <-chan types.JobEvent {
	events := make(chan types.JobEvent, 1)

	changes, unsubscribe, err := b.store.Watch(jobID)
	if err != nil {
		events <- NotFoundEvent(jobID)
		close(events)
		return events
	}

	monitoring.SubscriberConnected()
	go func() {
		defer close(events)
		defer monitoring.SubscriberDisconnected()
		defer unsubscribe()

		b.stream(ctx, jobID, changes, events)
	}()

	return events
}

func (b *Broadcaster) stream(ctx context.Context, jobID string, changes <-chan struct{}, events chan<- types.JobEvent) {
	logger := b.logger.WithField("job_id", jobID)

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	var last *types.JobEvent
	for {
		job, err := b.store.Get(jobID)
		if err != nil {
			// Removed by retention while being watched
			if errors.Is(err, types.ErrJobNotFound) {
				b.send(ctx, events, NotFoundEvent(jobID))
			}
			return
		}

		event := types.SnapshotEvent(job)
		if last == nil || changed(*last, event) {
			if !b.send(ctx, events, event) {
				logger.Debug("Progress subscriber went away")
				return
			}
			last = &event
		}
		if job.Status.IsTerminal() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				// Closed on terminal write; one more read picks up the final snapshot
				changes = nil
			}
		case <-ticker.C:
		}
	}
}

func (b *Broadcaster) send(ctx context.Context, events chan<- types.JobEvent, event types.JobEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// changed reports whether next differs from prev in anything a subscriber sees
func changed(prev, next types.JobEvent) bool {
	return prev.Status != next.Status ||
		prev.Progress != next.Progress ||
		prev.Stage != next.Stage ||
		prev.Error != next.Error ||
		(prev.Result == nil) != (next.Result == nil)
}
