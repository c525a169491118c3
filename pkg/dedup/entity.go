package dedup

import (
	"math"
	"strings"
	"time"
)

// EntityInput is the normalized view of one article's extracted facts
// the tiered entity matcher compares (spec.md §4.9.1).
type EntityInput struct {
	OffenderName string
	VictimName   string
	IncidentType string
	State        string
	City         string
	Date         time.Time
}

// SynonymGroups maps an incident type to the set of other incident
// types considered "related" for the purposes of the incident-type
// comparison (spec.md §4.9.1's "hand-curated synonym group").
type SynonymGroups map[string][]string

// DefaultSynonymGroups is a small starter table; deployments override
// via config.
func DefaultSynonymGroups() SynonymGroups {
	return SynonymGroups{
		"homicide": {"murder", "manslaughter"},
		"assault":  {"battery"},
		"theft":    {"larceny", "robbery"},
	}
}

const dateWindowDays = 30

// EntityMatch runs the §4.9.1 tiered comparison between two articles'
// extracted entities, returning whether they are judged the same
// incident, the average confidence across contributing comparisons,
// and the human-readable reasons behind the verdict.
func EntityMatch(a, b EntityInput, syn SynonymGroups) (bool, float64, []string) {
	// matches accumulates as a weighted count: full comparisons add 1.0,
	// the incident-type synonym comparison adds only 0.5 (spec.md
	// §4.9.1), so this is a float rather than an int.
	matches := 0.0
	confidenceSum := 0.0
	var reasons []string
	nameMatched := false

	if score := bestNameMatch(a, b); score > 0 {
		matches++
		confidenceSum += score
		nameMatched = true
		reasons = append(reasons, "name matched")
	}

	if a.IncidentType != "" && b.IncidentType != "" {
		switch {
		case strings.EqualFold(a.IncidentType, b.IncidentType):
			matches++
			confidenceSum += 1.0
			reasons = append(reasons, "incident type exact match")
		case areSynonyms(syn, a.IncidentType, b.IncidentType):
			matches += 0.5
			confidenceSum += 0.7
			reasons = append(reasons, "incident type synonym match")
		}
	}

	if a.State != "" && b.State != "" && strings.EqualFold(a.State, b.State) {
		matches++
		confidenceSum += 1.0
		reasons = append(reasons, "state match")
		if a.City != "" && b.City != "" && strings.EqualFold(a.City, b.City) {
			confidenceSum += 0.2
			reasons = append(reasons, "city match")
		}
	}

	if !a.Date.IsZero() && !b.Date.IsZero() {
		days := math.Abs(a.Date.Sub(b.Date).Hours() / 24)
		if days <= dateWindowDays {
			matches++
			confidence := 1.0 - 0.5*(days/dateWindowDays)
			confidenceSum += confidence
			reasons = append(reasons, "date within window")
		}
	}

	if matches == 0 {
		return false, 0, reasons
	}
	avgConfidence := confidenceSum / matches

	switch {
	case nameMatched && matches >= 2:
		return true, avgConfidence, reasons
	case matches >= 3 && avgConfidence >= 0.7:
		return true, avgConfidence, reasons
	case matches >= 2 && avgConfidence >= 0.6:
		return true, avgConfidence, reasons
	}
	return false, avgConfidence, reasons
}

// bestNameMatch returns the higher fuzzy-match score between the two
// articles' offender and victim names, 0 if neither is populated.
func bestNameMatch(a, b EntityInput) float64 {
	best := 0.0
	if a.OffenderName != "" && b.OffenderName != "" {
		if s := FuzzyNameMatch(a.OffenderName, b.OffenderName); s > best {
			best = s
		}
	}
	if a.VictimName != "" && b.VictimName != "" {
		if s := FuzzyNameMatch(a.VictimName, b.VictimName); s > best {
			best = s
		}
	}
	if a.OffenderName != "" && b.VictimName != "" {
		if s := FuzzyNameMatch(a.OffenderName, b.VictimName); s > best {
			best = s
		}
	}
	if a.VictimName != "" && b.OffenderName != "" {
		if s := FuzzyNameMatch(a.VictimName, b.OffenderName); s > best {
			best = s
		}
	}
	return best
}

func areSynonyms(syn SynonymGroups, a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for key, group := range syn {
		if key == la || containsFold(group, la) {
			if key == lb || containsFold(group, lb) {
				return true
			}
		}
	}
	return false
}

func containsFold(group []string, v string) bool {
	for _, g := range group {
		if strings.EqualFold(g, v) {
			return true
		}
	}
	return false
}
