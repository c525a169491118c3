// Package job provides the background job queue: a Postgres-backed Store,
// a polling WorkerPool, and a stale-job watchdog (spec.md §4.1, §4.2).
package job

import (
	"context"
	"errors"
	"time"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrNoJobsAvailable indicates no pending jobs matched the claim query.
	ErrNoJobsAvailable = errors.New("no jobs available")

	// ErrAtCapacity indicates the worker pool's concurrency limit is reached.
	ErrAtCapacity = errors.New("at capacity")

	// ErrUnknownJobType indicates no Handler is registered for a job's type.
	ErrUnknownJobType = errors.New("no handler registered for job type")
)

// ProgressReporter lets a running Handler report incremental progress
// without owning the job's terminal status.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, progress, total int, message string) error
}

// Handler processes one job of a given type to completion. The worker owns
// claiming, heartbeat, timeout, retry bookkeeping and terminal status; a
// Handler only does the work and returns a Result (spec.md §4.2 "the
// executor owns none of the job lifecycle bookkeeping").
type Handler interface {
	Handle(ctx context.Context, j *models.Job, progress ProgressReporter) (*Result, error)
}

// Result is the outcome of a successfully-run Handler. A Handler that
// returns a non-nil error is always treated as failed regardless of Result.
type Result struct {
	Message string
	Output  map[string]any
}

// PoolHealth summarizes the worker pool for the health endpoint.
type PoolHealth struct {
	IsHealthy      bool           `json:"is_healthy"`
	StoreReachable bool           `json:"store_reachable"`
	StoreError     string         `json:"store_error,omitempty"`
	PodID          string         `json:"pod_id"`
	ActiveWorkers  int            `json:"active_workers"`
	TotalWorkers   int            `json:"total_workers"`
	ActiveJobs     int            `json:"active_jobs"`
	MaxConcurrent  int            `json:"max_concurrent"`
	QueueDepth     int            `json:"queue_depth"`
	WorkerStats    []WorkerHealth `json:"worker_stats"`
	LastSweep      time.Time      `json:"last_stale_sweep"`
	StaleRecovered int            `json:"stale_jobs_recovered"`
}

// WorkerHealth summarizes a single worker.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	CurrentJobID  string    `json:"current_job_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
