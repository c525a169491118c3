package approval

import "strings"

// severityEntry pairs an incident-type substring with its severity
// score. Matching is substring-based and case-insensitive, checked in
// table order so more specific terms can be listed before broader ones.
type severityEntry struct {
	substr   string
	severity int
}

type severityTable []severityEntry

// defaultSeverityTable is spec.md §4.10 step 6's "crime-severity table
// (homicide=10 … other=3)".
func defaultSeverityTable() severityTable {
	return severityTable{
		{"homicide", 10},
		{"murder", 10},
		{"manslaughter", 9},
		{"sexual assault", 9},
		{"rape", 9},
		{"kidnapping", 8},
		{"robbery", 7},
		{"assault", 6},
		{"burglary", 5},
		{"theft", 4},
		{"vandalism", 3},
		{"trespass", 3},
	}
}

// scoreFor returns the severity score for the first table entry whose
// substring appears in incidentType, or 3 ("other") if none match.
func (t severityTable) scoreFor(incidentType string) int {
	lower := strings.ToLower(incidentType)
	for _, entry := range t {
		if strings.Contains(lower, entry.substr) {
			return entry.severity
		}
	}
	return 3
}
