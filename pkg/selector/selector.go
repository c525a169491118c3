// Package selector implements the Result Selector/Merger of spec.md
// §4.8: given several Stage 2 extractions that plausibly describe the
// same subject, pick the primary cluster and merge its members into a
// single result without letting a higher-confidence but unrelated
// result's fields leak in.
package selector

import (
	"sort"
	"strings"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// Candidate is one Stage 2 result considered for selection.
type Candidate struct {
	SourceID      string // article/schema-result identifier, for MergeSource bookkeeping
	SchemaID      string
	ExtractedData map[string]any
	Confidence    float64 // auto-normalized to 0-1 by Normalize before clustering
	DomainSlug    string
	CategorySlug  string
	SchemaName    string
}

// Result is the merged output of Select, or nil if every candidate was
// filtered out.
type Result struct {
	ExtractedData map[string]any
	Confidence    float64
	MergeInfo     models.MergeInfo
}

const minConfidence = 0.3

// domainPriority returns the tie-break weight for a domain slug
// (spec.md §4.8 step 3).
func domainPriority(domainSlug string) int {
	switch strings.ToLower(domainSlug) {
	case "immigration":
		return 100
	case "criminal_justice":
		return 50
	case "civil_rights":
		return 25
	default:
		return 10
	}
}

// subjectNameFields is the fixed ordered list of field names scanned
// for a primary person-name (spec.md §4.8 step 2).
var subjectNameFields = []string{
	"offender_name", "person_name", "defendant_name", "victim_name",
	"suspect_name", "individual_name", "name",
}

// Normalize coerces a confidence value that may be expressed on a 0-100
// scale into the 0-1 range the rest of the pipeline expects.
func Normalize(confidence float64) float64 {
	if confidence > 1.0 {
		return confidence / 100.0
	}
	return confidence
}

// Select runs the §4.8 algorithm end to end, returning nil if no
// candidate survives the confidence filter.
func Select(candidates []Candidate) *Result {
	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		c.Confidence = Normalize(c.Confidence)
		if c.Confidence >= minConfidence {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	clusters := clusterBySubject(filtered)
	primary, entity := pickPrimaryCluster(clusters)
	if len(primary) == 0 {
		return nil
	}

	return mergeCluster(primary, entity)
}

// cluster groups candidates sharing a subject entity. The empty string
// key is spec.md's "None" cluster for nameless candidates.
func clusterBySubject(candidates []Candidate) map[string][]Candidate {
	clusters := make(map[string][]Candidate)
	assigned := make([]bool, len(candidates))
	keys := make([]string, len(candidates)) // representative normalized name per candidate, "" if none

	for i, c := range candidates {
		keys[i] = subjectName(c)
	}

	for i := range candidates {
		if assigned[i] {
			continue
		}
		if keys[i] == "" {
			clusters["None"] = append(clusters["None"], candidates[i])
			assigned[i] = true
			continue
		}
		clusterKey := keys[i]
		clusters[clusterKey] = append(clusters[clusterKey], candidates[i])
		assigned[i] = true
		for j := i + 1; j < len(candidates); j++ {
			if assigned[j] || keys[j] == "" {
				continue
			}
			if namesMatch(keys[i], keys[j]) {
				clusters[clusterKey] = append(clusters[clusterKey], candidates[j])
				assigned[j] = true
			}
		}
	}
	return clusters
}

// subjectName extracts and normalizes the first populated name field
// from the fixed ordered list (spec.md §4.8 step 2).
func subjectName(c Candidate) string {
	for _, field := range subjectNameFields {
		if v, ok := c.ExtractedData[field]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return normalizeName(s)
			}
		}
	}
	return ""
}

func normalizeName(name string) string {
	var b strings.Builder
	lastWasSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasSpace = false
		case r == ' ' || r == '-' || r == '_' || r == '\t' || r == '\n':
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// namesMatch implements spec.md §4.8 step 2's three-way name equality:
// normalized-equal, substring either-way, or last-name-and-first-
// initial equal.
func namesMatch(a, b string) bool {
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	lastA, lastB := ta[len(ta)-1], tb[len(tb)-1]
	firstA, firstB := ta[0], tb[0]
	return lastA == lastB && len(firstA) > 0 && len(firstB) > 0 && firstA[0] == firstB[0]
}

// pickPrimaryCluster scores every cluster and returns the winner and
// its entity key (spec.md §4.8 step 3).
func pickPrimaryCluster(clusters map[string][]Candidate) ([]Candidate, string) {
	type scored struct {
		key            string
		members        []Candidate
		hasImmigration bool
		weightedSum    float64
	}

	var best *scored
	for key, members := range clusters {
		s := scored{key: key, members: members}
		for _, m := range members {
			weight := float64(domainPriority(m.DomainSlug)) * m.Confidence
			s.weightedSum += weight
			if strings.EqualFold(m.DomainSlug, "immigration") && m.Confidence >= 0.5 {
				s.hasImmigration = true
			}
		}
		if best == nil || better(s.hasImmigration, s.weightedSum, best.hasImmigration, best.weightedSum) {
			best = &s
		}
	}
	if best == nil {
		return nil, ""
	}
	return best.members, best.key
}

// better reports whether (hasImmigration, weightedSum) outranks
// (otherHasImmigration, otherWeightedSum): an immigration presence
// always wins, ties broken by weighted sum.
func better(hasImmigration bool, weightedSum float64, otherHasImmigration bool, otherWeightedSum float64) bool {
	if hasImmigration != otherHasImmigration {
		return hasImmigration
	}
	return weightedSum > otherWeightedSum
}

// mergeCluster implements spec.md §4.8 steps 4-6.
func mergeCluster(members []Candidate, entityKey string) *Result {
	clusterEntity := entityKey
	if clusterEntity == "None" {
		clusterEntity = ""
	}

	if len(members) == 1 {
		m := members[0]
		return &Result{
			ExtractedData: m.ExtractedData,
			Confidence:    m.Confidence,
			MergeInfo: models.MergeInfo{
				PrimarySourceID: m.SourceID,
				ClusterEntity:   clusterEntity,
				Merged:          false,
				SchemasMerged:   []string{m.SchemaName},
				Sources: []models.MergeSource{{
					ArticleID:  m.SourceID,
					SchemaID:   m.SchemaID,
					Confidence: m.Confidence,
					DomainSlug: m.DomainSlug,
					Role:       models.MergeRoleSole,
				}},
				SelectionReason: "sole_result",
			},
		}
	}

	sorted := append([]Candidate(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := domainPriority(sorted[i].DomainSlug), domainPriority(sorted[j].DomainSlug)
		if pi != pj {
			return pi > pj
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})

	base := sorted[0]
	merged := make(map[string]any, len(base.ExtractedData))
	for k, v := range base.ExtractedData {
		merged[k] = v
	}

	var mergedSourceIDs []string
	var schemasMerged []string
	sources := make([]models.MergeSource, 0, len(sorted))
	sources = append(sources, models.MergeSource{
		ArticleID:  base.SourceID,
		SchemaID:   base.SchemaID,
		Confidence: base.Confidence,
		DomainSlug: base.DomainSlug,
		Role:       models.MergeRoleBase,
	})
	schemasMerged = append(schemasMerged, base.SchemaName)

	maxImmigrationConfidence := 0.0
	if strings.EqualFold(base.DomainSlug, "immigration") {
		maxImmigrationConfidence = base.Confidence
	}

	for _, supplement := range sorted[1:] {
		mergedSourceIDs = append(mergedSourceIDs, supplement.SourceID)
		schemasMerged = append(schemasMerged, supplement.SchemaName)
		if strings.EqualFold(supplement.DomainSlug, "immigration") && supplement.Confidence > maxImmigrationConfidence {
			maxImmigrationConfidence = supplement.Confidence
		}

		var contributed []string
		for field, value := range supplement.ExtractedData {
			if !isEmptyValue(merged[field]) {
				continue
			}
			if isEmptyValue(value) {
				continue
			}
			merged[field] = value
			contributed = append(contributed, field)
		}
		sort.Strings(contributed)
		sources = append(sources, models.MergeSource{
			ArticleID:         supplement.SourceID,
			SchemaID:          supplement.SchemaID,
			Confidence:        supplement.Confidence,
			DomainSlug:        supplement.DomainSlug,
			Role:              models.MergeRoleSupplement,
			FieldsContributed: contributed,
		})
	}

	confidence := base.Confidence
	if maxImmigrationConfidence > confidence {
		confidence = maxImmigrationConfidence
	}

	return &Result{
		ExtractedData: merged,
		Confidence:    confidence,
		MergeInfo: models.MergeInfo{
			PrimarySourceID: base.SourceID,
			MergedSourceIDs: mergedSourceIDs,
			ClusterEntity:   clusterEntity,
			Merged:          true,
			SchemasMerged:   schemasMerged,
			Sources:         sources,
			SelectionReason: "domain_priority",
		},
	}
}

// isEmptyValue reports whether v is nil, an empty string, or an empty
// slice/map — the "base value is null, empty string, or empty list"
// test of spec.md §4.8 step 4.
func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}
