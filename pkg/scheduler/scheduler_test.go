package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

type fakeEnqueuer struct {
	mu    sync.Mutex
	calls []models.JobType
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, jobType models.JobType, queue string, params map[string]any, maxRetries int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, jobType)
	return "job-1", nil
}

func TestDefaultTriggersCoverBeatSchedule(t *testing.T) {
	triggers := DefaultTriggers()
	names := make(map[string]bool)
	for _, tr := range triggers {
		names[tr.Name] = true
	}
	assert.True(t, names["fetch"])
	assert.True(t, names["stale_sweep"])
	assert.True(t, names["metrics_rollup"])
	assert.True(t, names["view_refresh"])
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	_, err := New(&fakeEnqueuer{}, []Trigger{{Name: "bad", Schedule: "not a cron expression", JobType: models.JobTypeFetch}}, nil)
	require.Error(t, err)
}

func TestFireEnqueuesTheConfiguredJobType(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	s, err := New(enqueuer, nil, nil)
	require.NoError(t, err)

	s.fire(Trigger{Name: "manual", JobType: models.JobTypeMetricsRollup, Queue: "maintenance"})

	enqueuer.mu.Lock()
	defer enqueuer.mu.Unlock()
	assert.Equal(t, []models.JobType{models.JobTypeMetricsRollup}, enqueuer.calls)
}
