/*
Package pipeline runs analysis jobs as an ordered list of weighted stages.

Each stage owns a fixed share of the 0-100 progress range. The runner reports
the cumulative progress and the stage label to the job store before each stage,
classifies the first failure into the job's error and stops, and on success
completes the job and writes the result to the freshness cache.
*/
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/scoring"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"golang.org/x/time/rate"
)

// Stage is one unit of pipeline work
type Stage struct {
	// Name is the stable identifier used in logs and metrics
	Name string
	// Label is the human-readable stage name shown to subscribers
	Label string
	// Weight is the share of progress this stage owns
	Weight int
	// Timeout overrides the runner's default stage timeout when positive
	Timeout time.Duration
	Run     func(ctx context.Context, state *State) error
}

// ValidatePlan checks that stages are runnable and their weights sum to 100
func ValidatePlan(stages []Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("pipeline has no stages")
	}

	total := 0
	seen := make(map[string]bool, len(stages))
	for i, stage := range stages {
		if stage.Name == "" {
			return fmt.Errorf("stage %d has no name", i)
		}
		if seen[stage.Name] {
			return fmt.Errorf("duplicate stage name %q", stage.Name)
		}
		seen[stage.Name] = true
		if stage.Run == nil {
			return fmt.Errorf("stage %q has no run function", stage.Name)
		}
		if stage.Weight < 0 {
			return fmt.Errorf("stage %q has negative weight %d", stage.Name, stage.Weight)
		}
		total += stage.Weight
	}
	if total != 100 {
		return fmt.Errorf("stage weights must sum to 100, got %d", total)
	}
	return nil
}

// State carries a job's partial results from one stage to the next
type State struct {
	JobID   string
	Subject types.AnalysisSubject

	// Signals are the per-answer observations gathered by the scan stages
	Signals []scoring.Signal
	// Measurements are aggregated from Signals before scoring
	Measurements *scoring.Measurements
	// Result is the terminal payload; when nil the runner scores Measurements
	Result *types.AnalysisResult

	throttle *rate.Limiter
	mutex    sync.Mutex
	values   map[string]interface{}
}

// NewState creates the state for a job
func NewState(jobID string, subject types.AnalysisSubject, throttle *rate.Limiter) *State {
	return &State{
		JobID:    jobID,
		Subject:  subject,
		throttle: throttle,
		values:   make(map[string]interface{}),
	}
}

// Set stores a named intermediate value
func (s *State) Set(key string, value interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.values[key] = value
}

// Value returns a named intermediate value
func (s *State) Value(key string) (interface{}, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// AddSignals appends observations; safe for concurrent scanners
func (s *State) AddSignals(signals ...scoring.Signal) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Signals = append(s.Signals, signals...)
}

// Throttle blocks until the shared outbound limiter admits one call
func (s *State) Throttle(ctx context.Context) error {
	if s.throttle == nil {
		return nil
	}
	return s.throttle.Wait(ctx)
}
