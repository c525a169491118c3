package models

import "time"

// CurationStatus is the human-review state of an incident.
type CurationStatus string

// Curation status values.
const (
	CurationPending  CurationStatus = "pending"
	CurationApproved CurationStatus = "approved"
	CurationRejected CurationStatus = "rejected"
)

// LegacyCategory is the historical two-bucket classification kept for
// backward compatibility with pre-taxonomy incidents (spec.md §4.11).
type LegacyCategory string

// Legacy category values.
const (
	LegacyCategoryEnforcement LegacyCategory = "enforcement"
	LegacyCategoryCrime       LegacyCategory = "crime"
)

// Incident is the approved structured record written to storage for
// downstream use.
type Incident struct {
	ID                 string
	Category           LegacyCategory
	DomainID           string
	CategoryID         string
	Date               time.Time
	State              string
	City               string
	IncidentTypeID     string
	Description        string
	SourceURL          string
	SourceTier         int
	VictimName         string
	OffenderName       string
	OffenderImmigrationStatus string
	PriorDeportations  int
	GangAffiliation    string
	Tags               []string
	CustomFields       map[string]any
	Latitude           *float64
	Longitude          *float64
	CurationStatus     CurationStatus
	ExtractionConfidence float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IncidentActorRole is the role an Actor plays on an Incident link.
type IncidentActorRole string

// Incident actor role values.
const (
	RoleOffender IncidentActorRole = "offender"
	RoleVictim   IncidentActorRole = "victim"
	RoleAgency   IncidentActorRole = "agency"
	RoleOther    IncidentActorRole = "other"
)

// IncidentActorLink joins an Incident to an Actor with a role and
// confidence.
type IncidentActorLink struct {
	IncidentID string
	ActorID    string
	Role       IncidentActorRole
	Confidence float64
}

// Event is a named occurrence (e.g. a wave of related incidents) that
// incidents may be linked to.
type Event struct {
	ID               string
	Name             string
	Slug             string
	EventType        string
	StartDate        time.Time
	EndDate          *time.Time
	GeographicScope  string
	AISummary        string
	Tags             []string
}

// IncidentEventLink joins an Incident to an Event.
type IncidentEventLink struct {
	IncidentID string
	EventID    string
}

// IncidentSourceLink joins an Incident to the Article(s) it was derived
// from, for provenance.
type IncidentSourceLink struct {
	IncidentID string
	ArticleID  string
}
