package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/cache"
	"github.com/iankiku/agentsauthority-chatbot-sub003/jobs"
	"github.com/iankiku/agentsauthority-chatbot-sub003/monitoring"
	"github.com/iankiku/agentsauthority-chatbot-sub003/scoring"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ResultCache is where completed results are published
type ResultCache interface {
	PutJSON(ctx context.Context, class cache.ResourceClass, v interface{}, identity ...string) error
}

// Alerter receives stage timeout notifications
type Alerter interface {
	TriggerManualAlert(alertType monitoring.AlertType, severity monitoring.AlertSeverity, title, description string, labels map[string]string)
}

// Options tune a Runner
type Options struct {
	StageTimeout time.Duration
	JobTimeout   time.Duration
	Weights      scoring.Weights
	// Throttle is shared by every job for outbound provider calls
	Throttle *rate.Limiter
	Alerter  Alerter
}

// DefaultOptions returns a 2 minute stage timeout and a 10 minute job timeout
func DefaultOptions() Options {
	return Options{
		StageTimeout: 2 * time.Minute,
		JobTimeout:   10 * time.Minute,
		Weights:      scoring.DefaultWeights(),
	}
}

// Runner executes the stage plan for analysis jobs
type Runner struct {
	store  jobs.Store
	cache  ResultCache
	stages []Stage
	opts   Options
	logger *logrus.Logger
	wg     sync.WaitGroup
}

// NewRunner validates the plan and creates a runner
func NewRunner(store jobs.Store, resultCache ResultCache, stages []Stage, opts Options, logger *logrus.Logger) (*Runner, error) {
	if err := ValidatePlan(stages); err != nil {
		return nil, err
	}
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultOptions().StageTimeout
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultOptions().JobTimeout
	}

	return &Runner{
		store:  store,
		cache:  resultCache,
		stages: stages,
		opts:   opts,
		logger: logger,
	}, nil
}

// Stages returns the stage plan
func (r *Runner) Stages() []Stage {
	return r.stages
}

// Start creates a job for subject and runs it in the background. The job is
// detached from any request context and keeps running without observers.
func (r *Runner) Start(subject types.AnalysisSubject) (types.Job, error) {
	job, err := r.store.Create(subject)
	if err != nil {
		return types.Job{}, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Run(context.Background(), job.ID, subject)
	}()

	return job, nil
}

// Wait blocks until every job started by Start has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Run executes every stage for jobID synchronously and leaves the job in a
// terminal state
func (r *Runner) Run(ctx context.Context, jobID string, subject types.AnalysisSubject) {
	startTime := time.Now()
	monitoring.JobStarted()
	defer monitoring.JobFinished()

	ctx, span := monitoring.CreateSpan(ctx, "analysis.job")
	defer span.End()
	monitoring.SetSpanAttributes(span, map[string]interface{}{
		"job_id":     jobID,
		"brand_name": subject.BrandName,
		"brand_url":  subject.BrandURL,
	})

	jobCtx, cancel := context.WithTimeout(ctx, r.opts.JobTimeout)
	defer cancel()

	logger := r.logger.WithFields(logrus.Fields{
		"job_id":     jobID,
		"brand_name": subject.BrandName,
	})
	logger.Info("Analysis job started")

	state := NewState(jobID, subject, r.opts.Throttle)
	progress := 0

	for _, stage := range r.stages {
		if err := r.store.Advance(jobID, progress, stage.Label); err != nil {
			logger.WithError(err).Error("Failed to record stage progress")
			monitoring.SetSpanError(span, err)
			return
		}

		if err := r.runStage(jobCtx, stage, state); err != nil {
			r.fail(jobCtx, logger, jobID, stage, err, progress, startTime)
			monitoring.SetSpanError(span, err)
			return
		}
		progress += stage.Weight
		monitoring.AddSpanEvent(span, "stage.completed", map[string]interface{}{
			"stage":    stage.Name,
			"progress": progress,
		})
	}

	result := r.finalResult(state)
	if err := r.store.Complete(jobID, result); err != nil {
		logger.WithError(err).Error("Failed to complete analysis job")
		monitoring.SetSpanError(span, err)
		return
	}

	duration := time.Since(startTime)
	monitoring.RecordJob(string(types.JobCompleted), duration.Seconds())
	logger.WithFields(logrus.Fields{
		"overall_score": result.OverallScore,
		"duration_ms":   duration.Milliseconds(),
	}).Info("Analysis job completed successfully")

	// A failed cache write is logged only; the job stays completed
	if r.cache != nil {
		if err := r.cache.PutJSON(context.Background(), cache.ClassBrandAnalysis, result, subject.Identity()...); err != nil {
			logger.WithError(err).Warn("Failed to cache analysis result")
		}
	}
}

// runStage executes one stage under its timeout, recovering panics. A stage
// that ignores its context is abandoned once the deadline passes.
func (r *Runner) runStage(jobCtx context.Context, stage Stage, state *State) (err error) {
	timeout := r.stageTimeout(stage)
	stageCtx, cancel := context.WithTimeout(jobCtx, timeout)
	defer cancel()

	stageCtx, span := monitoring.StartStageSpan(stageCtx, state.JobID, stage.Name, timeout)
	defer span.End()

	startTime := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- fmt.Errorf("stage %s panicked: %v", stage.Name, recovered)
			}
		}()
		done <- stage.Run(stageCtx, state)
	}()

	select {
	case err = <-done:
	case <-stageCtx.Done():
		err = stageCtx.Err()
	}

	status := "success"
	if err != nil {
		status = "failed"
		monitoring.SetSpanError(span, err)
	}
	monitoring.RecordStage(stage.Name, status, time.Since(startTime).Seconds())
	return err
}

func (r *Runner) stageTimeout(stage Stage) time.Duration {
	if stage.Timeout > 0 {
		return stage.Timeout
	}
	return r.opts.StageTimeout
}

// fail classifies err and marks the job failed. Nothing is cached.
func (r *Runner) fail(jobCtx context.Context, logger *logrus.Entry, jobID string, stage Stage, err error, progress int, startTime time.Time) {
	var classified error
	if jobCtx.Err() == context.DeadlineExceeded {
		classified = &types.ExternalServiceError{
			Service: stage.Name,
			Message: fmt.Sprintf("analysis timed out after %s", r.opts.JobTimeout),
			Err:     types.ErrStageTimeout,
		}
	} else {
		classified = Classify(stage, err, r.stageTimeout(stage))
	}

	if storeErr := r.store.Fail(jobID, classified.Error()); storeErr != nil {
		logger.WithError(storeErr).Error("Failed to record job failure")
	}
	monitoring.RecordJob(string(types.JobFailed), time.Since(startTime).Seconds())

	logger.WithFields(logrus.Fields{
		"stage":    stage.Name,
		"progress": progress,
		"error":    err.Error(),
	}).Error("Analysis job failed")

	if IsTimeout(classified) && r.opts.Alerter != nil {
		r.opts.Alerter.TriggerManualAlert(
			monitoring.AlertTypeStageTimeout,
			monitoring.SeverityMedium,
			"Pipeline stage timed out",
			classified.Error(),
			map[string]string{"stage": stage.Name, "job_id": jobID},
		)
	}
}

// finalResult scores the collected measurements unless a stage already
// produced the terminal payload
func (r *Runner) finalResult(state *State) types.AnalysisResult {
	if state.Result != nil {
		return *state.Result
	}

	measurements := state.Measurements
	if measurements == nil {
		m := scoring.FromSignals(state.Signals)
		measurements = &m
	}
	return scoring.Aggregate(*measurements, r.opts.Weights)
}
