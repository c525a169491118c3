package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelcore/ingestcore/pkg/job"
	"github.com/sentinelcore/ingestcore/pkg/models"
)

// JobStore is the pgx-backed implementation of job.Store.
type JobStore struct {
	pool *pgxpool.Pool
}

// NewJobStore wraps a Client's pool as a job.Store.
func NewJobStore(c *Client) *JobStore {
	return &JobStore{pool: c.Pool}
}

var _ job.Store = (*JobStore)(nil)

func (s *JobStore) Enqueue(ctx context.Context, jobType models.JobType, queue string, params map[string]any, maxRetries int) (string, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshaling job params: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO jobs (type, queue, status, params, max_retries)
		VALUES ($1, $2, 'pending', $3, $4)
		RETURNING id
	`, string(jobType), queue, paramsJSON, maxRetries).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("enqueueing job: %w", err)
	}
	return id, nil
}

// ClaimNext atomically claims the oldest pending job on queue using
// SELECT ... FOR UPDATE SKIP LOCKED, mirroring the claim pattern of a
// single-writer worker pool: at most one worker ever holds a given job
// in 'running' at a time.
func (s *JobStore) ClaimNext(ctx context.Context, queue, workerTaskID string) (*models.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `
		SELECT id FROM jobs
		WHERE queue = $1 AND status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, queue).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, job.ErrNoJobsAvailable
		}
		return nil, fmt.Errorf("claiming next job: %w", err)
	}

	now := time.Now()
	row := tx.QueryRow(ctx, `
		UPDATE jobs
		SET status = 'running', worker_task_id = $2, started_at = $3, last_heartbeat = $3
		WHERE id = $1
		RETURNING `+jobColumns, id, workerTaskID, now)

	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("claiming job %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	return j, nil
}

func (s *JobStore) ActiveCount(ctx context.Context, queue string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM jobs WHERE queue = $1 AND status = 'running'`, queue).Scan(&n)
	return n, err
}

func (s *JobStore) QueueDepth(ctx context.Context, queue string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM jobs WHERE queue = $1 AND status = 'pending'`, queue).Scan(&n)
	return n, err
}

func (s *JobStore) Heartbeat(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE jobs SET last_heartbeat = now() WHERE id = $1`, jobID)
	return err
}

func (s *JobStore) ReportProgress(ctx context.Context, jobID string, progress, total int, message string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET progress = $2, total = $3, message = $4 WHERE id = $1
	`, jobID, progress, total, message)
	return err
}

func (s *JobStore) Complete(ctx context.Context, jobID string, message string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'completed', completed_at = now(), message = $2 WHERE id = $1
	`, jobID, message)
	return err
}

// Fail marks a job failed. When requeue is true the job is reset to
// pending with retry_count incremented rather than being left terminal,
// so the next poll from any worker picks it back up.
func (s *JobStore) Fail(ctx context.Context, jobID, errMsg string, requeue bool) error {
	if requeue {
		_, err := s.pool.Exec(ctx, `
			UPDATE jobs
			SET status = 'pending', retry_count = retry_count + 1, error = $2,
			    worker_task_id = '', started_at = NULL, last_heartbeat = NULL
			WHERE id = $1
		`, jobID, errMsg)
		return err
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'failed', completed_at = now(), error = $2 WHERE id = $1
	`, jobID, errMsg)
	return err
}

// SweepStale reclaims running jobs whose last_heartbeat is older than
// threshold. Jobs with retries remaining go back to pending; jobs
// without go to failed. A CTE with FOR UPDATE SKIP LOCKED keeps
// concurrent sweeps from double-counting the same job (spec.md §4.2).
func (s *JobStore) SweepStale(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold)

	tag, err := s.pool.Exec(ctx, `
		WITH stale AS (
			SELECT id FROM jobs
			WHERE status = 'running' AND last_heartbeat IS NOT NULL AND last_heartbeat < $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE jobs
		SET status = CASE WHEN retry_count < max_retries THEN 'pending' ELSE 'failed' END,
		    retry_count = CASE WHEN retry_count < max_retries THEN retry_count + 1 ELSE retry_count END,
		    worker_task_id = CASE WHEN retry_count < max_retries THEN '' ELSE worker_task_id END,
		    started_at = CASE WHEN retry_count < max_retries THEN NULL ELSE started_at END,
		    last_heartbeat = CASE WHEN retry_count < max_retries THEN NULL ELSE last_heartbeat END,
		    completed_at = CASE WHEN retry_count >= max_retries THEN now() ELSE completed_at END,
		    error = 'stale: no heartbeat since ' || last_heartbeat::text
		WHERE id IN (SELECT id FROM stale)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// RecoverOwned resets jobs still marked running under podID's worker
// task IDs back to pending, to recover from an ungraceful previous exit
// of this pod. Nothing in this module calls it at startup.
func (s *JobStore) RecoverOwned(ctx context.Context, podID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending', worker_task_id = '', started_at = NULL, last_heartbeat = NULL,
		    error = 'recovered after pod restart: ' || worker_task_id
		WHERE status = 'running' AND worker_task_id LIKE $1
	`, podID+"-%")
	if err != nil {
		return 0, fmt.Errorf("recovering owned jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// PurgeCompletedOlderThan deletes terminal jobs (completed or failed)
// whose completed_at predates cutoff, returning the number removed.
// Called by the retention cleanup job (spec.md §6.5).
func (s *JobStore) PurgeCompletedOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobs WHERE status IN ('completed', 'failed') AND completed_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging completed jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*models.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", jobID, err)
		}
		return nil, err
	}
	return j, nil
}

const jobColumns = `id, type, queue, status, params, progress, total, message, error,
	retry_count, max_retries, worker_task_id, created_at, started_at, completed_at, last_heartbeat`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	var paramsJSON []byte
	var jobType, status string
	if err := row.Scan(
		&j.ID, &jobType, &j.Queue, &status, &paramsJSON, &j.Progress, &j.Total, &j.Message, &j.Error,
		&j.RetryCount, &j.MaxRetries, &j.WorkerTaskID, &j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.LastHeartbeat,
	); err != nil {
		return nil, err
	}
	j.Type = models.JobType(jobType)
	j.Status = models.JobStatus(status)
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &j.Params); err != nil {
			return nil, fmt.Errorf("unmarshaling job params: %w", err)
		}
	}
	return &j, nil
}
