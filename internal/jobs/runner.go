// Package jobs implements the job runner (C9): accepts ingestion job
// requests, assigns a job_id, and drives the orchestrator (C8) for each job
// in the background. Job state is process-local; it is not meant to
// survive a restart.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"gazette/internal/core"
	"gazette/internal/logger"
	"gazette/internal/pipeline"
	"gazette/internal/sources"
)

// EventSink receives one log line per job lifecycle event. The log/session
// store (C11) implements this; a nil sink is a valid no-op.
type EventSink interface {
	Record(entry core.LogEntry)
}

// DriverFactory builds the Driver for one job's source_kind and filter.
type DriverFactory func(kind core.SourceKind, filter map[string]any) (sources.Driver, error)

// Config bounds the runner's concurrent jobs and its retry policy for
// retryable driver failures (§4.11: retryable vs fatal).
type Config struct {
	MaxConcurrentJobs int
	MaxRetries        uint64
}

// DefaultConfig returns the runner's documented defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrentJobs: 4, MaxRetries: 2}
}

// Runner owns every Job record for the life of the process.
type Runner struct {
	mu       sync.RWMutex
	jobs     map[string]*core.Job
	order    []string // insertion order, oldest first

	orchestrator *pipeline.Orchestrator
	driverFor    DriverFactory
	sink         EventSink
	sem          chan struct{}
	config       Config
	log          *slog.Logger
}

// New builds a Runner. sink may be nil.
func New(orchestrator *pipeline.Orchestrator, driverFor DriverFactory, sink EventSink, cfg Config) *Runner {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}
	return &Runner{
		jobs:         make(map[string]*core.Job),
		orchestrator: orchestrator,
		driverFor:    driverFor,
		sink:         sink,
		sem:          make(chan struct{}, cfg.MaxConcurrentJobs),
		config:       cfg,
		log:          logger.Get(),
	}
}

// Submit assigns a job_id, stores the Job in "pending", and schedules its
// run on a background goroutine. It returns immediately with the pending
// Job.
func (r *Runner) Submit(kind core.SourceKind, params core.JobParams) (core.Job, error) {
	driver, err := r.driverFor(kind, params.Filter)
	if err != nil {
		return core.Job{}, fmt.Errorf("jobs: resolve driver: %w", err)
	}

	job := &core.Job{
		JobID:      uuid.NewString(),
		SourceKind: kind,
		Params:     params,
		State:      core.JobPending,
		CreatedAt:  time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.JobID] = job
	r.order = append(r.order, job.JobID)
	r.mu.Unlock()

	r.emit(job.JobID, core.LogInfo, "job submitted", map[string]any{"source_kind": string(kind)})

	go r.run(job.JobID, driver)

	return *job, nil
}

// run drives one job to completion. It blocks on the runner's semaphore, so
// at most config.MaxConcurrentJobs jobs execute their orchestrator at once;
// extra jobs simply wait in "pending" until a slot frees up.
func (r *Runner) run(jobID string, driver sources.Driver) {
	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	job.State = core.JobRunning
	job.StartedAt = &now
	params := job.Params
	kind := job.SourceKind
	r.mu.Unlock()

	r.emit(jobID, core.LogInfo, "job started", nil)

	ctx := context.Background()
	var result core.JobResult
	runErr := backoff.Retry(func() error {
		var err error
		result, _, err = r.orchestrator.Run(ctx, driver, params)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			r.emit(jobID, core.LogWarn, "retryable fetch failure, retrying", map[string]any{"error": err.Error()})
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.config.MaxRetries))

	r.mu.Lock()
	defer r.mu.Unlock()
	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt
	if runErr != nil {
		job.State = core.JobFailed
		job.Error = runErr.Error()
		r.emit(jobID, core.LogError, "job failed", map[string]any{"source_kind": string(kind), "error": runErr.Error()})
		return
	}
	job.State = core.JobCompleted
	job.Result = &result
	r.emit(jobID, core.LogInfo, "job completed", map[string]any{
		"saved": result.Saved, "skipped": result.Skipped, "errors": result.Errors,
	})
}

func isRetryable(err error) bool {
	var fetchErr *sources.FetchError
	return errors.As(err, &fetchErr) && fetchErr.Retryable
}

// Status returns the Job for id, or false if unknown.
func (r *Runner) Status(jobID string) (core.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return core.Job{}, false
	}
	return *job, true
}

// List returns up to limit jobs, newest first. limit <= 0 means unbounded.
func (r *Runner) List(limit int) []core.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Job, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		job, ok := r.jobs[r.order[i]]
		if !ok {
			continue
		}
		out = append(out, *job)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Cleanup drops every job in a terminal state (completed or failed),
// keeping pending and running jobs untouched. It returns the number
// dropped.
func (r *Runner) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.order[:0]
	dropped := 0
	for _, id := range r.order {
		job := r.jobs[id]
		if job.State == core.JobCompleted || job.State == core.JobFailed {
			delete(r.jobs, id)
			dropped++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return dropped
}

func (r *Runner) emit(jobID string, level core.LogLevel, message string, ctxFields map[string]any) {
	switch level {
	case core.LogError:
		r.log.Error(message, "job_id", jobID, "fields", ctxFields)
	case core.LogWarn:
		r.log.Warn(message, "job_id", jobID, "fields", ctxFields)
	default:
		r.log.Info(message, "job_id", jobID, "fields", ctxFields)
	}
	if r.sink == nil {
		return
	}
	r.sink.Record(core.LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		SessionID: jobID,
		Context:   ctxFields,
	})
}
