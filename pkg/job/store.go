package job

import (
	"context"
	"time"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// Store is the persistence contract the worker pool and watchdog depend
// on. pkg/storage provides the pgx-backed implementation; the interface
// lives here so job orchestration stays decoupled from the driver
// (spec.md §9 "constructor injection, no global singletons").
type Store interface {
	// Enqueue inserts a new pending job and returns its ID.
	Enqueue(ctx context.Context, jobType models.JobType, queue string, params map[string]any, maxRetries int) (string, error)

	// ClaimNext atomically claims the oldest pending job on the given
	// queue using SELECT ... FOR UPDATE SKIP LOCKED, setting it to
	// running and recording workerTaskID. Returns ErrNoJobsAvailable if
	// none are pending.
	ClaimNext(ctx context.Context, queue, workerTaskID string) (*models.Job, error)

	// ActiveCount returns the number of jobs currently running on the
	// given queue, used for the best-effort capacity check.
	ActiveCount(ctx context.Context, queue string) (int, error)

	// QueueDepth returns the number of pending jobs on the given queue.
	QueueDepth(ctx context.Context, queue string) (int, error)

	// Heartbeat updates LastHeartbeat for a running job.
	Heartbeat(ctx context.Context, jobID string) error

	// ReportProgress updates progress/total/message for a running job.
	ReportProgress(ctx context.Context, jobID string, progress, total int, message string) error

	// Complete marks a job completed.
	Complete(ctx context.Context, jobID string, message string) error

	// Fail marks a job failed, recording the error. If requeue is true
	// it is reset to pending with RetryCount incremented instead of being
	// marked terminal; the caller decides whether retries remain.
	Fail(ctx context.Context, jobID string, errMsg string, requeue bool) error

	// SweepStale finds running jobs whose LastHeartbeat is older than
	// threshold and returns them to pending (if retries remain) or fails
	// them, returning the number recovered. Safe to call concurrently
	// from every pod (spec.md §4.2 "watchdog idempotence").
	SweepStale(ctx context.Context, threshold time.Duration) (recovered int, err error)

	// RecoverOwned resets any running job whose worker_task_id carries
	// podID's prefix back to pending, to recover from an ungraceful
	// previous exit. It is reached through RecoverStartupOwned, which
	// the start-worker command does not call.
	RecoverOwned(ctx context.Context, podID string) (recovered int, err error)

	// Get fetches a job by ID.
	Get(ctx context.Context, jobID string) (*models.Job, error)
}
