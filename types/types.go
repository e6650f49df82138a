// Package types contains shared types used across the brand analysis backend
package types

import (
	"time"
)

// JobStatus is the lifecycle state of an analysis job
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition can leave this status
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// AnalysisSubject holds the identifying attributes of an analysis request
type AnalysisSubject struct {
	BrandName string `json:"brandName"`
	BrandURL  string `json:"brandUrl"`
	Qualifier string `json:"qualifier,omitempty"`
}

// Identity returns the fields that identify the subject for caching
func (s AnalysisSubject) Identity() []string {
	return []string{s.BrandName, s.BrandURL, s.Qualifier}
}

// Job represents a tracked analysis job
type Job struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"`
	Stage       string          `json:"stage"`
	Subject     AnalysisSubject `json:"subject"`
	Result      *AnalysisResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// CompetitorScore is the share of voice observed for a competing brand
type CompetitorScore struct {
	Name         string  `json:"name"`
	Mentions     int     `json:"mentions"`
	ShareOfVoice float64 `json:"shareOfVoice"`
}

// AnalysisResult is the aggregated output of a completed analysis
type AnalysisResult struct {
	VisibilityScore float64           `json:"visibilityScore"`
	SentimentScore  float64           `json:"sentimentScore"`
	ShareOfVoice    float64           `json:"shareOfVoice"`
	AveragePosition float64           `json:"averagePosition"`
	PositionScore   float64           `json:"positionScore"`
	OverallScore    float64           `json:"overallScore"`
	Mentions        int               `json:"mentions"`
	QueriesRun      int               `json:"queriesRun"`
	PressMentions   int               `json:"pressMentions,omitempty"`
	Providers       []string          `json:"providers,omitempty"`
	Competitors     []CompetitorScore `json:"competitors,omitempty"`
	AnalyzedAt      time.Time         `json:"analyzedAt"`
}

// CacheEntry is a cached payload stamped with the time it was written
type CacheEntry struct {
	Key           string        `json:"key"`
	ResourceClass string        `json:"resource_class"`
	Payload       []byte        `json:"payload"`
	CachedAt      time.Time     `json:"cached_at"`
	TTL           time.Duration `json:"ttl"`
}

// IsStale reports whether the entry is past its validity window at now
func (e *CacheEntry) IsStale(now time.Time) bool {
	return now.After(e.CachedAt.Add(e.TTL))
}

// RateLimitRecord tracks the requests a caller made in the current window
type RateLimitRecord struct {
	Key           string    `json:"key"`
	Count         int       `json:"count"`
	WindowResetAt time.Time `json:"window_reset_at"`
}

// JobEventType distinguishes status snapshots from stream errors
type JobEventType string

const (
	JobEventStatus JobEventType = "status"
	JobEventError  JobEventType = "error"
)

// JobEvent is one snapshot delivered to a progress subscriber
type JobEvent struct {
	Type     JobEventType    `json:"type"`
	JobID    string          `json:"jobId,omitempty"`
	Status   JobStatus       `json:"status,omitempty"`
	Progress int             `json:"progress"`
	Stage    string          `json:"stage,omitempty"`
	Result   *AnalysisResult `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// SnapshotEvent builds a status event from a job
func SnapshotEvent(job Job) JobEvent {
	return JobEvent{
		Type:     JobEventStatus,
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Stage:    job.Stage,
		Result:   job.Result,
		Error:    job.Error,
	}
}
