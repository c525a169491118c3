package dedup

import (
	"context"
	"fmt"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// ArticleLookup is the narrow article-content surface the pipeline's
// DuplicateChecker needs — satisfied directly by *storage.ArticleStore.
type ArticleLookup interface {
	Get(ctx context.Context, id string) (*models.Article, error)
	ListByStatus(ctx context.Context, status models.ArticleStatus, limit int) ([]*models.Article, error)
}

// IncidentLookup is the narrow cross-source surface the checker needs
// to catch a duplicate that already made it to a persisted incident —
// satisfied directly by *storage.IncidentStore.
type IncidentLookup interface {
	FindBySourceURL(ctx context.Context, url string) (*models.Incident, error)
}

// Checker implements pipeline.DuplicateChecker: the in-batch cascade
// (spec.md §4.9) against a recent window of already-extracted articles,
// plus an exact source_url cross-source check against persisted
// incidents. Entity-tiered cross-source matching is not reachable here
// — DuplicateCheckStage runs before Stage 1/Stage 2 extraction, so no
// entities/dates/states exist yet to match against.
type Checker struct {
	Articles  ArticleLookup
	Incidents IncidentLookup
	Config    Config
	Window    int
}

// NewChecker constructs a Checker. window <= 0 defaults to 200, a
// generous recent-article sample for the in-batch cascade.
func NewChecker(articles ArticleLookup, incidents IncidentLookup, cfg Config, window int) *Checker {
	if window <= 0 {
		window = 200
	}
	return &Checker{Articles: articles, Incidents: incidents, Config: cfg, Window: window}
}

// IsDuplicate implements pipeline.DuplicateChecker.
func (c *Checker) IsDuplicate(ctx context.Context, articleID string) (bool, string, error) {
	article, err := c.Articles.Get(ctx, articleID)
	if err != nil {
		return false, "", fmt.Errorf("loading article %s: %w", articleID, err)
	}

	if c.Incidents != nil && article.SourceURL != "" {
		if existing, err := c.Incidents.FindBySourceURL(ctx, article.SourceURL); err == nil && existing != nil {
			return true, fmt.Sprintf("duplicate of incident %s via exact source_url match", existing.ID), nil
		}
	}

	others, err := c.Articles.ListByStatus(ctx, models.ArticleStatusExtracted, c.Window)
	if err != nil {
		return false, "", fmt.Errorf("listing recent articles: %w", err)
	}

	candidate := InBatchCandidate{ID: article.ID, URL: article.SourceURL, Title: article.Title, Content: article.Content}
	for _, other := range others {
		if other.ID == article.ID {
			continue
		}
		otherCandidate := InBatchCandidate{ID: other.ID, URL: other.SourceURL, Title: other.Title, Content: other.Content}
		if match, ok := Match(c.Config, candidate, otherCandidate, nil); ok {
			return true, fmt.Sprintf("duplicate of article %s via %s (score %.2f)", other.ID, match.Method, match.Score), nil
		}
	}

	return false, "", nil
}
