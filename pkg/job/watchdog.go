package job

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// watchdogState tracks stale-job sweep metrics (thread-safe).
type watchdogState struct {
	mu        sync.Mutex
	lastSweep time.Time
	recovered int
}

// runStaleSweep periodically reclaims running jobs whose heartbeat has
// gone stale. All pods run this independently; Store.SweepStale is
// required to be idempotent under concurrent invocation (spec.md §4.2).
func (p *Pool) runStaleSweep(ctx context.Context) {
	ticker := time.NewTicker(p.config.StaleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			recovered, err := p.store.SweepStale(ctx, p.config.StaleThreshold)
			if err != nil {
				slog.Error("stale job sweep failed", "queue", p.queue, "error", err)
				continue
			}
			if recovered > 0 {
				slog.Warn("recovered stale jobs", "queue", p.queue, "count", recovered)
			}
			p.watchdog.mu.Lock()
			p.watchdog.lastSweep = time.Now()
			p.watchdog.recovered += recovered
			p.watchdog.mu.Unlock()
		}
	}
}

// RecoverStartupOwned performs a one-time recovery of jobs left running
// under this pod's identity from a previous, ungraceful exit. Call once
// at startup before the pool begins polling.
func RecoverStartupOwned(ctx context.Context, store Store, podID string) error {
	recovered, err := store.RecoverOwned(ctx, podID)
	if err != nil {
		return err
	}
	if recovered > 0 {
		slog.Warn("recovered startup-owned jobs from previous run", "pod_id", podID, "count", recovered)
	}
	return nil
}
