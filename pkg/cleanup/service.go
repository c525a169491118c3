// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/sentinelcore/ingestcore/pkg/config"
)

// ArticlePurger removes rejected articles past their retention window.
type ArticlePurger interface {
	PurgeRejectedOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// JobPurger removes terminal jobs past their retention window.
type JobPurger interface {
	PurgeCompletedOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// QualitySamplePurger removes reviewed quality samples past their
// retention window.
type QualitySamplePurger interface {
	PurgeReviewedSamplesOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Service periodically enforces retention policies:
//   - Deletes rejected articles older than RejectedArticleRetentionDays
//   - Deletes completed/failed jobs older than CompletedJobRetentionDays
//   - Deletes reviewed quality samples older than QualitySampleRetentionDays
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config   *config.RetentionConfig
	articles ArticlePurger
	jobs     JobPurger
	samples  QualitySamplePurger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, articles ArticlePurger, jobs JobPurger, samples QualitySamplePurger) *Service {
	return &Service{config: cfg, articles: articles, jobs: jobs, samples: samples}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started",
		"rejected_article_retention_days", s.config.RejectedArticleRetentionDays,
		"completed_job_retention_days", s.config.CompletedJobRetentionDays,
		"quality_sample_retention_days", s.config.QualitySampleRetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.purgeRejectedArticles(ctx)
	s.purgeCompletedJobs(ctx)
	s.purgeReviewedQualitySamples(ctx)
}

func (s *Service) purgeRejectedArticles(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.config.RejectedArticleRetentionDays)
	count, err := s.articles.PurgeRejectedOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("retention: purging rejected articles failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: purged rejected articles", "count", count)
	}
}

func (s *Service) purgeCompletedJobs(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.config.CompletedJobRetentionDays)
	count, err := s.jobs.PurgeCompletedOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("retention: purging completed jobs failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: purged completed jobs", "count", count)
	}
}

func (s *Service) purgeReviewedQualitySamples(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.config.QualitySampleRetentionDays)
	count, err := s.samples.PurgeReviewedSamplesOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("retention: purging quality samples failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: purged quality samples", "count", count)
	}
}
