package models

import "time"

// EventClusterCandidate is a proposed grouping of incidents that appear
// to belong to the same underlying Event (grounded on
// original_source/backend/services/event_clustering.py). No package in
// this module produces or consumes it.
type EventClusterCandidate struct {
	ID            string
	IncidentIDs    []string
	SuggestedName string
	SuggestedType string
	Score         float64
	SharedActors  []string
	DateWindow    time.Duration
	GeographicScope string
}

// CrossReferenceMatch is a proposed link between a newly-approved
// incident and an existing Event or Incident, based on shared actors,
// location and time proximity. No pipeline stage produces it.
type CrossReferenceMatch struct {
	IncidentID  string
	EventID     string
	MatchedOn   []string // e.g. []string{"actor", "location", "date_window"}
	Score       float64
}
