package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sentinelcore/ingestcore/pkg/config"
)

// Pool manages a pool of queue workers for a single queue name, plus the
// stale-job watchdog for that queue.
type Pool struct {
	podID    string
	queue    string
	store    Store
	config   *config.JobConfig
	handlers *Registry
	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	activeJobs map[string]context.CancelFunc
	mu         sync.RWMutex
	started    bool

	watchdog watchdogState
}

// NewPool creates a new worker pool bound to one queue.
func NewPool(podID, queue string, store Store, cfg *config.JobConfig, handlers *Registry) *Pool {
	return &Pool{
		podID:      podID,
		queue:      queue,
		store:      store,
		config:     cfg,
		handlers:   handlers,
		workers:    make([]*Worker, 0, cfg.WorkerCount),
		stopCh:     make(chan struct{}),
		activeJobs: make(map[string]context.CancelFunc),
	}
}

// Start spawns worker goroutines and the stale-job watchdog. Safe to call
// multiple times; subsequent calls are no-ops.
func (p *Pool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call", "pod_id", p.podID, "queue", p.queue)
		return nil
	}
	p.started = true

	slog.Info("starting worker pool", "pod_id", p.podID, "queue", p.queue, "worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-%s-worker-%d", p.podID, p.queue, i)
		worker := NewWorker(workerID, p.podID, p.queue, p.store, p.config, p.handlers, p)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runStaleSweep(ctx)
	}()

	slog.Info("worker pool started", "queue", p.queue)
	return nil
}

// Stop signals all workers to stop and waits for them to finish. Workers
// finish their current job before exiting.
func (p *Pool) Stop() {
	slog.Info("stopping worker pool gracefully", "queue", p.queue)

	active := p.getActiveJobIDs()
	if len(active) > 0 {
		slog.Info("waiting for active jobs to complete", "queue", p.queue, "count", len(active), "job_ids", active)
	}

	for _, worker := range p.workers {
		worker.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("worker pool stopped gracefully", "queue", p.queue)
}

// RegisterJob stores a cancel function for manual cancellation.
func (p *Pool) RegisterJob(jobID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeJobs[jobID] = cancel
}

// UnregisterJob removes the cancel function when processing ends.
func (p *Pool) UnregisterJob(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeJobs, jobID)
}

// CancelJob triggers context cancellation for a job running on this pod.
// Returns true if the job was found and cancelled here.
func (p *Pool) CancelJob(jobID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeJobs[jobID]; ok {
		cancel()
		return true
	}
	return false
}

// Health returns the current health status of the pool.
func (p *Pool) Health(ctx context.Context) *PoolHealth {
	queueDepth, errQ := p.store.QueueDepth(ctx, p.queue)
	if errQ != nil {
		slog.Error("failed to query queue depth for health check", "queue", p.queue, "error", errQ)
	}

	activeJobs, errA := p.store.ActiveCount(ctx, p.queue)
	if errA != nil {
		slog.Error("failed to query active jobs for health check", "queue", p.queue, "error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	storeHealthy := errQ == nil && errA == nil
	isHealthy := len(p.workers) > 0 && activeJobs <= p.config.MaxConcurrentPerQueue && storeHealthy

	p.watchdog.mu.Lock()
	lastSweep := p.watchdog.lastSweep
	recovered := p.watchdog.recovered
	p.watchdog.mu.Unlock()

	var storeErr string
	if !storeHealthy {
		if errQ != nil {
			storeErr = fmt.Sprintf("queue depth query failed: %v", errQ)
		} else if errA != nil {
			storeErr = fmt.Sprintf("active job query failed: %v", errA)
		}
	}

	return &PoolHealth{
		IsHealthy:      isHealthy,
		StoreReachable: storeHealthy,
		StoreError:     storeErr,
		PodID:          p.podID,
		ActiveWorkers:  activeWorkers,
		TotalWorkers:   len(p.workers),
		ActiveJobs:     activeJobs,
		MaxConcurrent:  p.config.MaxConcurrentPerQueue,
		QueueDepth:     queueDepth,
		WorkerStats:    workerStats,
		LastSweep:      lastSweep,
		StaleRecovered: recovered,
	}
}

func (p *Pool) getActiveJobIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.activeJobs))
	for id := range p.activeJobs {
		ids = append(ids, id)
	}
	return ids
}
