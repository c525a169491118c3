// Package models contains the domain types shared across the ingest core:
// jobs, articles, extractions, schemas, actors, incidents, and events.
package models

import "time"

// JobStatus is the lifecycle state of a background job.
type JobStatus string

// Job status values. pending -> running -> {completed, failed, cancelled}.
// running -> pending is permitted only by the watchdog (see pkg/job).
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobType identifies the handler that processes a job.
type JobType string

// Recognized job types. A job.Registry binds at most one Handler to each.
const (
	JobTypeFetch          JobType = "fetch"
	JobTypeProcessArticle JobType = "process_article"
	JobTypeBatchExtract   JobType = "batch_extract"
	JobTypeEnrich         JobType = "enrich"
	JobTypeFullPipeline   JobType = "full_pipeline"
	JobTypeStaleSweep     JobType = "stale_sweep"
	JobTypeMetricsRollup  JobType = "metrics_rollup"
	JobTypeViewRefresh    JobType = "view_refresh"
)

// Job is a durable unit of work owned by the Job Store (pkg/job).
// Exactly one worker may hold a job in JobStatusRunning at a time,
// enforced by claim-on-status-transition (see pkg/job.Store.ClaimNext).
type Job struct {
	ID            string
	Type          JobType
	Queue         string
	Status        JobStatus
	Params        map[string]any
	Progress      int
	Total         int
	Message       string
	Error         string
	RetryCount    int
	MaxRetries    int
	WorkerTaskID  string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	LastHeartbeat *time.Time
}

// IsOwned reports whether the job is currently held by a worker, per
// spec.md §4.1: "a job is considered owned only after its status becomes
// running and worker_task_id is set".
func (j *Job) IsOwned() bool {
	return j.Status == JobStatusRunning && j.WorkerTaskID != ""
}

// CanRetry reports whether the watchdog may requeue this job rather than
// failing it outright.
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}
