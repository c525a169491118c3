package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

type fakeAggregateStore struct {
	latest      map[string]time.Time
	aggregates  map[string]*models.TaskMetricAggregate // key: taskName+periodStart
	upsertCalls int
}

func newFakeAggregateStore() *fakeAggregateStore {
	return &fakeAggregateStore{
		latest:     map[string]time.Time{},
		aggregates: map[string]*models.TaskMetricAggregate{},
	}
}

func (f *fakeAggregateStore) key(taskName string, periodStart time.Time) string {
	return taskName + "|" + periodStart.String()
}

func (f *fakeAggregateStore) LatestPeriodEnd(ctx context.Context, taskName string) (time.Time, error) {
	return f.latest[taskName], nil
}

func (f *fakeAggregateStore) DistinctTaskNames(ctx context.Context) ([]string, error) {
	return []string{"run_stage1"}, nil
}

func (f *fakeAggregateStore) AggregateRange(ctx context.Context, taskName string, periodStart, periodEnd time.Time) (*models.TaskMetricAggregate, error) {
	return &models.TaskMetricAggregate{
		TaskName:    taskName,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		TotalRuns:   3,
		Successful:  3,
	}, nil
}

func (f *fakeAggregateStore) UpsertAggregate(ctx context.Context, agg *models.TaskMetricAggregate) error {
	f.upsertCalls++
	f.aggregates[f.key(agg.TaskName, agg.PeriodStart)] = agg
	return nil
}

func TestRollupRunIsIdempotentUnderReRun(t *testing.T) {
	store := newFakeAggregateStore()
	fixedNow := time.Date(2026, 1, 1, 12, 17, 0, 0, time.UTC) // mid-bucket, truncates to 12:15

	rollup := NewRollup(store, nil, func() time.Time { return fixedNow }, nil)

	require.NoError(t, rollup.Run(context.Background()))
	firstSnapshot := len(store.aggregates)
	require.Greater(t, firstSnapshot, 0)

	// Re-run: LatestPeriodEnd now reflects the bucket already written,
	// so the sweep should produce the exact same aggregate set.
	store.latest["run_stage1"] = truncateToBucket(fixedNow)
	require.NoError(t, rollup.Run(context.Background()))

	assert.Equal(t, firstSnapshot, len(store.aggregates), "re-running the sweep must not produce additional buckets")
}

func TestTruncateToBucket(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 12, 17, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 1, 12, 15, 0, 0, time.UTC), truncateToBucket(t1))

	t2 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, t2, truncateToBucket(t2))
}
