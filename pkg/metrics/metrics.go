// Package metrics implements the Metrics Rollup of spec.md §4.13:
// periodic aggregation of raw task_metrics rows into fixed 5-minute
// buckets, plus the Prometheus collectors the rollup and job pipeline
// populate.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the Prometheus metrics this module registers,
// grounded on the shape of r3e's infrastructure/metrics package
// (CounterVec/HistogramVec/Gauge per concern, registered once at
// construction).
type Collectors struct {
	JobsTotal       *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	StageOutcomes   *prometheus.CounterVec
	RollupRuns      prometheus.Counter
	RollupLagBuckets prometheus.Gauge
}

// New constructs and registers the Collectors against registerer. Pass
// prometheus.DefaultRegisterer in production, a fresh
// prometheus.NewRegistry() in tests.
func New(registerer prometheus.Registerer) *Collectors {
	c := &Collectors{
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestcore_jobs_total",
				Help: "Total number of jobs processed, by task name and status.",
			},
			[]string{"task_name", "status"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingestcore_job_duration_seconds",
				Help:    "Job execution duration in seconds, by task name.",
				Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"task_name"},
		),
		StageOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestcore_pipeline_stage_outcomes_total",
				Help: "Pipeline stage outcomes, by stage slug and outcome.",
			},
			[]string{"stage", "outcome"},
		),
		RollupRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingestcore_metrics_rollup_runs_total",
				Help: "Number of metrics rollup sweeps executed.",
			},
		),
		RollupLagBuckets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingestcore_metrics_rollup_lag_buckets",
				Help: "Number of 5-minute buckets the last rollup sweep had to backfill.",
			},
		),
	}

	if registerer != nil {
		registerer.MustRegister(c.JobsTotal, c.JobDuration, c.StageOutcomes, c.RollupRuns, c.RollupLagBuckets)
	}
	return c
}

// RecordJob records one completed job's outcome and duration.
func (c *Collectors) RecordJob(taskName, status string, duration time.Duration) {
	c.JobsTotal.WithLabelValues(taskName, status).Inc()
	c.JobDuration.WithLabelValues(taskName).Observe(duration.Seconds())
}

// RecordStageOutcome records one pipeline stage's {continue, skip,
// reject, error} outcome.
func (c *Collectors) RecordStageOutcome(stage, outcome string) {
	c.StageOutcomes.WithLabelValues(stage, outcome).Inc()
}
