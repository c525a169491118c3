package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// MetricsStore persists append-only TaskMetric rows and their rolled-up
// TaskMetricAggregate buckets.
type MetricsStore struct {
	pool *pgxpool.Pool
}

// NewMetricsStore wraps a Client's pool as a MetricsStore.
func NewMetricsStore(c *Client) *MetricsStore {
	return &MetricsStore{pool: c.Pool}
}

func (s *MetricsStore) Record(ctx context.Context, m *models.TaskMetric) error {
	metadataJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling task metric metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO task_metrics (job_id, task_name, queue, status, started_at, completed_at,
			duration_ms, items_processed, error, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, nullableUUID(m.JobID), m.TaskName, m.Queue, string(m.Status), m.StartedAt, m.CompletedAt,
		m.Duration.Milliseconds(), m.ItemsProcessed, m.Error, metadataJSON)
	if err != nil {
		return fmt.Errorf("recording task metric: %w", err)
	}
	return nil
}

// AggregateRange rolls up raw task_metrics within [periodStart, periodEnd)
// for taskName into one TaskMetricAggregate, computing avg/p95 duration
// via percentile_cont. The caller is responsible for upserting the
// result via UpsertAggregate — idempotent under re-run since it always
// recomputes the full window rather than incrementing (spec.md §8
// "metrics idempotence").
func (s *MetricsStore) AggregateRange(ctx context.Context, taskName string, periodStart, periodEnd time.Time) (*models.TaskMetricAggregate, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			count(*) AS total_runs,
			count(*) FILTER (WHERE status = 'completed') AS successful,
			count(*) FILTER (WHERE status = 'failed') AS failed,
			coalesce(avg(duration_ms), 0) AS avg_duration_ms,
			coalesce(percentile_cont(0.95) WITHIN GROUP (ORDER BY duration_ms), 0) AS p95_duration_ms,
			coalesce(sum(items_processed), 0) AS sum_items
		FROM task_metrics
		WHERE task_name = $1 AND completed_at >= $2 AND completed_at < $3
	`, taskName, periodStart, periodEnd)

	var avgMs, p95Ms float64
	agg := &models.TaskMetricAggregate{
		TaskName:    taskName,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
	if err := row.Scan(&agg.TotalRuns, &agg.Successful, &agg.Failed, &avgMs, &p95Ms, &agg.SumItems); err != nil {
		return nil, fmt.Errorf("aggregating task metrics: %w", err)
	}
	agg.AvgDuration = time.Duration(avgMs) * time.Millisecond
	agg.P95Duration = time.Duration(p95Ms) * time.Millisecond
	return agg, nil
}

// UpsertAggregate writes a rolled-up bucket, overwriting any prior
// aggregate for the same (PeriodStart, TaskName) key — a re-run of the
// rollup job for an already-processed window is a no-op change.
func (s *MetricsStore) UpsertAggregate(ctx context.Context, agg *models.TaskMetricAggregate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_metric_aggregates (period_start, period_end, task_name, total_runs,
			successful, failed, avg_duration_ms, p95_duration_ms, sum_items)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (period_start, task_name) DO UPDATE SET
			period_end = $2, total_runs = $4, successful = $5, failed = $6,
			avg_duration_ms = $7, p95_duration_ms = $8, sum_items = $9
	`, agg.PeriodStart, agg.PeriodEnd, agg.TaskName, agg.TotalRuns, agg.Successful, agg.Failed,
		agg.AvgDuration.Milliseconds(), agg.P95Duration.Milliseconds(), agg.SumItems)
	if err != nil {
		return fmt.Errorf("upserting task metric aggregate: %w", err)
	}
	return nil
}

// LatestPeriodEnd returns the most recent period_end already aggregated
// for taskName, or zero time if none exists yet (spec.md §4.13
// "compute the latest period_end in the aggregate table").
func (s *MetricsStore) LatestPeriodEnd(ctx context.Context, taskName string) (time.Time, error) {
	var periodEnd *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT max(period_end) FROM task_metric_aggregates WHERE task_name = $1
	`, taskName).Scan(&periodEnd)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading latest period end: %w", err)
	}
	if periodEnd == nil {
		return time.Time{}, nil
	}
	return *periodEnd, nil
}

// DistinctTaskNames returns every task_name that has ever appeared in
// task_metrics, so the rollup sweep can discover task names without a
// static config list.
func (s *MetricsStore) DistinctTaskNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT task_name FROM task_metrics ORDER BY task_name`)
	if err != nil {
		return nil, fmt.Errorf("listing distinct task names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *MetricsStore) ListAggregates(ctx context.Context, taskName string, since time.Time) ([]*models.TaskMetricAggregate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT period_start, period_end, task_name, total_runs, successful, failed,
			avg_duration_ms, p95_duration_ms, sum_items
		FROM task_metric_aggregates
		WHERE task_name = $1 AND period_start >= $2
		ORDER BY period_start
	`, taskName, since)
	if err != nil {
		return nil, fmt.Errorf("listing task metric aggregates: %w", err)
	}
	defer rows.Close()

	var out []*models.TaskMetricAggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func scanAggregate(row pgx.Row) (*models.TaskMetricAggregate, error) {
	var agg models.TaskMetricAggregate
	var avgMs, p95Ms int64
	if err := row.Scan(&agg.PeriodStart, &agg.PeriodEnd, &agg.TaskName, &agg.TotalRuns,
		&agg.Successful, &agg.Failed, &avgMs, &p95Ms, &agg.SumItems); err != nil {
		return nil, err
	}
	agg.AvgDuration = time.Duration(avgMs) * time.Millisecond
	agg.P95Duration = time.Duration(p95Ms) * time.Millisecond
	return &agg, nil
}
