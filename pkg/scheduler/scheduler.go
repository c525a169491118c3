// Package scheduler runs the cron beat of spec.md §6.4/§4.2: named
// triggers fire on a schedule and each one enqueues a job rather than
// running the work inline, keeping scheduling and execution decoupled
// (workers in pkg/job pick the enqueued jobs up independently).
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// Enqueuer is the narrow surface of job.Store the scheduler needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType models.JobType, queue string, params map[string]any, maxRetries int) (string, error)
}

// Trigger is one named cron entry.
type Trigger struct {
	Name       string
	Schedule   string // standard 5-field cron expression
	JobType    models.JobType
	Queue      string
	Params     map[string]any
	MaxRetries int
}

// DefaultTriggers is spec.md §6.4's beat schedule: hourly fetch, a
// 15-minute stale-job sweep, a 5-minute metrics rollup, and a 6-hour
// materialized-view refresh.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{Name: "fetch", Schedule: "0 * * * *", JobType: models.JobTypeFetch, Queue: "fetch", MaxRetries: 2},
		{Name: "stale_sweep", Schedule: "*/15 * * * *", JobType: models.JobTypeStaleSweep, Queue: "maintenance", MaxRetries: 0},
		{Name: "metrics_rollup", Schedule: "*/5 * * * *", JobType: models.JobTypeMetricsRollup, Queue: "maintenance", MaxRetries: 1},
		{Name: "view_refresh", Schedule: "0 */6 * * *", JobType: models.JobTypeViewRefresh, Queue: "maintenance", MaxRetries: 1},
	}
}

// Scheduler wraps a robfig/cron runner, enqueuing one job per fired
// trigger.
type Scheduler struct {
	cron     *cron.Cron
	enqueuer Enqueuer
	log      *slog.Logger
}

// New builds a Scheduler and registers triggers, but does not start
// running them — call Start.
func New(enqueuer Enqueuer, triggers []Trigger, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{cron: cron.New(), enqueuer: enqueuer, log: log}
	for _, t := range triggers {
		trigger := t
		if _, err := s.cron.AddFunc(trigger.Schedule, func() { s.fire(trigger) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) fire(t Trigger) {
	ctx := context.Background()
	id, err := s.enqueuer.Enqueue(ctx, t.JobType, t.Queue, t.Params, t.MaxRetries)
	if err != nil {
		s.log.Error("scheduler failed to enqueue job", "trigger", t.Name, "error", err)
		return
	}
	s.log.Info("scheduler enqueued job", "trigger", t.Name, "job_id", id, "job_type", t.JobType)
}

// Start begins running registered triggers in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for any in-flight trigger callback to finish, then halts
// the cron runner.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
