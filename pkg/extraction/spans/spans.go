// Package spans validates Stage 2 source_spans against the original
// article text (spec.md §4.7.1): a provenance pointer is only as
// trustworthy as its bounds, so every span an LLM reports is checked
// against the actual article before it is allowed to be persisted.
package spans

import (
	"strings"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// Validate filters candidates to those whose [Start, End) bounds fall
// within article and whose sliced text equals Text once both sides are
// whitespace-normalized and case-folded (spec.md §4.7.1). Invalid spans
// are dropped silently; Validate never errors.
func Validate(article string, candidates []models.SourceSpan) []models.SourceSpan {
	valid := make([]models.SourceSpan, 0, len(candidates))
	for _, c := range candidates {
		if isValid(article, c) {
			valid = append(valid, c)
		}
	}
	return valid
}

func isValid(article string, s models.SourceSpan) bool {
	if s.Start < 0 || s.Start >= s.End || s.End > len(article) {
		return false
	}
	return normalize(article[s.Start:s.End]) == normalize(s.Text)
}

// normalize collapses whitespace and lowercases, the comparison spec.md
// §4.7.1 specifies for span text equality.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
