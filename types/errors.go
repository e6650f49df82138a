package types

import (
	"errors"
	"fmt"
	"time"
)

// JobNotFoundMessage is the user-facing text for an unknown job id
const JobNotFoundMessage = "Job not found"

var (
	// ErrJobNotFound is returned for unknown or expired job ids
	ErrJobNotFound = errors.New("job not found")
	// ErrTerminalJob is returned when writing to a completed or failed job
	ErrTerminalJob = errors.New("job is already in a terminal state")
	// ErrStageTimeout marks a stage that exceeded its deadline
	ErrStageTimeout = errors.New("stage timed out")
)

// ValidationError reports malformed or missing request attributes
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RateLimitError reports a denied admission
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit of %d requests exceeded, retry after %s", e.Limit, e.RetryAfter.Round(time.Second))
}

// ExternalServiceError reports a failed upstream dependency. Its message is
// relayed to the caller close to verbatim.
type ExternalServiceError struct {
	Service string
	Message string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil && e.Service != "":
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Service != "":
		return e.Service + " request failed"
	default:
		return "external service request failed"
	}
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// PipelineStageError is a stage failure that was not otherwise classified
type PipelineStageError struct {
	Stage string
	Err   error
}

func (e *PipelineStageError) Error() string {
	return fmt.Sprintf("analysis failed: %v", e.Err)
}

func (e *PipelineStageError) Unwrap() error {
	return e.Err
}

// NotFoundError reports an unknown job or cached resource
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.Resource == "job" {
		return JobNotFoundMessage
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return e.Resource == "job" && target == ErrJobNotFound
}
