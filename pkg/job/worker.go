package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sentinelcore/ingestcore/pkg/config"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// JobRegistry is the subset of WorkerPool a Worker uses to register an
// in-flight job's cancel function for external cancellation.
type JobRegistry interface {
	RegisterJob(jobID string, cancel context.CancelFunc)
	UnregisterJob(jobID string)
}

// Worker is a single queue worker that polls for and processes jobs on
// one queue.
type Worker struct {
	id       string
	podID    string
	queue    string
	store    Store
	config   *config.JobConfig
	handlers *Registry
	pool     JobRegistry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a new queue worker bound to one queue.
func NewWorker(id, podID, queue string, store Store, cfg *config.JobConfig, handlers *Registry, pool JobRegistry) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		queue:        queue,
		store:        store,
		config:       cfg,
		handlers:     handlers,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish. Safe to
// call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID, "queue", w.queue)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a job, and runs it to a
// terminal status. It owns the entire lifecycle around the Handler:
// claim, timeout context, heartbeat, terminal write, retry-on-failure.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	active, err := w.store.ActiveCount(ctx, w.queue)
	if err != nil {
		return fmt.Errorf("checking active job count: %w", err)
	}
	if active >= w.config.MaxConcurrentPerQueue {
		return ErrAtCapacity
	}

	j, err := w.store.ClaimNext(ctx, w.queue, w.id)
	if err != nil {
		return err
	}

	log := slog.With("job_id", j.ID, "job_type", j.Type, "worker_id", w.id)
	log.Info("job claimed")

	w.setStatus(WorkerStatusWorking, j.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	jobCtx, cancel := context.WithTimeout(ctx, w.config.TimeoutFor(string(j.Type)))
	defer cancel()

	w.pool.RegisterJob(j.ID, cancel)
	defer w.pool.UnregisterJob(j.ID)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(jobCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, j.ID)

	handler, err := w.handlers.Lookup(j.Type)
	if err != nil {
		cancelHeartbeat()
		_ = w.store.Fail(context.Background(), j.ID, err.Error(), false)
		return nil
	}

	result, runErr := handler.Handle(jobCtx, j, &storeProgressReporter{store: w.store, jobID: j.ID})
	cancelHeartbeat()

	if runErr != nil {
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			runErr = fmt.Errorf("job timed out after %v: %w", w.config.TimeoutFor(string(j.Type)), runErr)
		}
		requeue := j.CanRetry() && !errors.Is(jobCtx.Err(), context.Canceled)
		if err := w.store.Fail(context.Background(), j.ID, runErr.Error(), requeue); err != nil {
			log.Error("failed to record job failure", "error", err)
			return err
		}
		log.Warn("job failed", "error", runErr, "requeued", requeue)
	} else {
		msg := ""
		if result != nil {
			msg = result.Message
		}
		if err := w.store.Complete(context.Background(), j.ID, msg); err != nil {
			log.Error("failed to record job completion", "error", err)
			return err
		}
		log.Info("job completed")
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	return nil
}

func (w *Worker) runHeartbeat(ctx context.Context, jobID string) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.Heartbeat(ctx, jobID); err != nil {
				slog.Warn("heartbeat update failed", "job_id", jobID, "error", err)
			}
		}
	}
}

func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}

// storeProgressReporter adapts Store.ReportProgress to the ProgressReporter
// interface a Handler receives, scoped to one job.
type storeProgressReporter struct {
	store Store
	jobID string
}

func (r *storeProgressReporter) ReportProgress(ctx context.Context, progress, total int, message string) error {
	return r.store.ReportProgress(ctx, r.jobID, progress, total, message)
}
