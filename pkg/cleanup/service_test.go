package cleanup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelcore/ingestcore/pkg/config"
)

type fakeArticlePurger struct {
	mu       sync.Mutex
	cutoffs  []time.Time
	toRemove int
	err      error
}

func (f *fakeArticlePurger) PurgeRejectedOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.toRemove, f.err
}

type fakeJobPurger struct {
	mu       sync.Mutex
	cutoffs  []time.Time
	toRemove int
	err      error
}

func (f *fakeJobPurger) PurgeCompletedOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.toRemove, f.err
}

type fakeSamplePurger struct {
	mu       sync.Mutex
	cutoffs  []time.Time
	toRemove int
	err      error
}

func (f *fakeSamplePurger) PurgeReviewedSamplesOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.toRemove, f.err
}

func testRetentionConfig() *config.RetentionConfig {
	return &config.RetentionConfig{
		RejectedArticleRetentionDays: 30,
		CompletedJobRetentionDays:    7,
		QualitySampleRetentionDays:   90,
		CleanupInterval:              time.Hour,
	}
}

func TestRunAllPurgesAllThreeRetentionTargets(t *testing.T) {
	articles := &fakeArticlePurger{toRemove: 3}
	jobs := &fakeJobPurger{toRemove: 5}
	samples := &fakeSamplePurger{toRemove: 1}

	svc := NewService(testRetentionConfig(), articles, jobs, samples)
	svc.runAll(context.Background())

	assert.Len(t, articles.cutoffs, 1)
	assert.Len(t, jobs.cutoffs, 1)
	assert.Len(t, samples.cutoffs, 1)
}

func TestRunAllUsesPerTargetRetentionWindow(t *testing.T) {
	articles := &fakeArticlePurger{}
	jobs := &fakeJobPurger{}
	samples := &fakeSamplePurger{}

	svc := NewService(testRetentionConfig(), articles, jobs, samples)

	before := time.Now()
	svc.runAll(context.Background())
	after := time.Now()

	require.Len(t, articles.cutoffs, 1)
	require.Len(t, jobs.cutoffs, 1)
	require.Len(t, samples.cutoffs, 1)

	// Article cutoff should be ~30 days back, job cutoff ~7 days back,
	// sample cutoff ~90 days back - each target has a distinct window.
	tolerance := after.Sub(before) + time.Second
	assert.WithinDuration(t, before.AddDate(0, 0, -30), articles.cutoffs[0], tolerance)
	assert.WithinDuration(t, before.AddDate(0, 0, -7), jobs.cutoffs[0], tolerance)
	assert.WithinDuration(t, before.AddDate(0, 0, -90), samples.cutoffs[0], tolerance)

	assert.True(t, jobs.cutoffs[0].After(articles.cutoffs[0]), "job retention window is shorter than article retention window")
	assert.True(t, samples.cutoffs[0].Before(articles.cutoffs[0]), "sample retention window is longer than article retention window")
}

func TestRunAllContinuesPastIndividualPurgeErrors(t *testing.T) {
	articles := &fakeArticlePurger{err: assert.AnError}
	jobs := &fakeJobPurger{toRemove: 2}
	samples := &fakeSamplePurger{toRemove: 1}

	svc := NewService(testRetentionConfig(), articles, jobs, samples)
	svc.runAll(context.Background())

	assert.Len(t, articles.cutoffs, 1, "article purge was still attempted")
	assert.Len(t, jobs.cutoffs, 1, "job purge still ran despite the article purge failing")
	assert.Len(t, samples.cutoffs, 1, "sample purge still ran despite the article purge failing")
}

func TestStartRunsImmediatelyThenOnEachTick(t *testing.T) {
	articles := &fakeArticlePurger{}
	jobs := &fakeJobPurger{}
	samples := &fakeSamplePurger{}

	cfg := testRetentionConfig()
	cfg.CleanupInterval = 20 * time.Millisecond

	svc := NewService(cfg, articles, jobs, samples)
	svc.Start(context.Background())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		articles.mu.Lock()
		defer articles.mu.Unlock()
		return len(articles.cutoffs) >= 2
	}, time.Second, 5*time.Millisecond, "expected at least an immediate run plus one tick")
}

func TestStopWaitsForLoopExit(t *testing.T) {
	articles := &fakeArticlePurger{}
	jobs := &fakeJobPurger{}
	samples := &fakeSamplePurger{}

	svc := NewService(testRetentionConfig(), articles, jobs, samples)
	svc.Start(context.Background())
	svc.Stop()

	// Stop must be safe to call once the loop has already exited.
	svc.Stop()
	assert.NotNil(t, svc.done)
}
