package models

import "time"

// TaskMetric is an append-only record of a single job run, rolled up
// periodically into TaskMetricAggregate (see pkg/metrics).
type TaskMetric struct {
	ID             string
	JobID          string
	TaskName       string
	Queue          string
	Status         JobStatus
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	ItemsProcessed int
	Error          string
	Metadata       map[string]any
}

// TaskMetricAggregate is a fixed-width period bucket used by dashboards.
// Keyed on (PeriodStart, TaskName); upserts must be idempotent under
// re-run (spec.md §4.13, §8 "Metrics idempotence").
type TaskMetricAggregate struct {
	PeriodStart    time.Time
	PeriodEnd      time.Time
	TaskName       string
	TotalRuns      int
	Successful     int
	Failed         int
	AvgDuration    time.Duration
	P95Duration    time.Duration
	SumItems       int
}
