package dedup

import (
	"strings"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// IncidentCandidate is the subset of a persisted incident's fields the
// cross-source cascade compares against a freshly extracted article
// (spec.md §4.9 "cross-source, against persisted incidents").
type IncidentCandidate struct {
	ID          string
	SourceURL   string
	Description string
	Entity      EntityInput
}

// ArticleForCrossSource is the freshly ingested article side of the
// cross-source comparison.
type ArticleForCrossSource struct {
	URL         string
	Description string
	Entity      EntityInput
}

const minDescriptionLenForExactMatch = 50

// MatchAgainstIncident runs the cross-source cascade of spec.md §4.9:
// exact source_url, then exact description (only once long enough to
// be meaningful), then tiered entity matching. Candidates are expected
// to already be pre-filtered by state and date window at the SQL layer
// (storage.IncidentStore.FindCandidatesNear).
func MatchAgainstIncident(article ArticleForCrossSource, candidate IncidentCandidate, syn SynonymGroups) (models.DedupMatch, bool) {
	if article.URL != "" && candidate.SourceURL != "" && article.URL == candidate.SourceURL {
		return newMatch("", candidate.ID, models.DedupMethodURL, 1.0), true
	}

	if len(article.Description) > minDescriptionLenForExactMatch &&
		strings.EqualFold(strings.TrimSpace(article.Description), strings.TrimSpace(candidate.Description)) {
		return newMatch("", candidate.ID, models.DedupMethodDescription, 1.0), true
	}

	if isMatch, confidence, _ := EntityMatch(article.Entity, candidate.Entity, syn); isMatch {
		return newMatch("", candidate.ID, models.DedupMethodEntity, confidence), true
	}

	return models.DedupMatch{}, false
}
