package models

// ActorType is the kind of participant an Actor represents.
type ActorType string

// Actor type values.
const (
	ActorTypePerson       ActorType = "person"
	ActorTypeOrganization ActorType = "organization"
	ActorTypeAgency       ActorType = "agency"
	ActorTypeGroup        ActorType = "group"
)

// PersonAttributes holds person-specific Actor fields.
type PersonAttributes struct {
	DOB                string
	Gender             string
	Nationality        string
	ImmigrationStatus  string
	PriorDeportations  int
}

// OrgAttributes holds organization/agency-specific Actor fields.
type OrgAttributes struct {
	Parent            string
	IsGovernmentEntity bool
	IsLawEnforcement   bool
	Jurisdiction       string
}

// Actor is a canonicalized participant (person, agency, organization,
// group) linkable to many incidents. Merged actors (IsMerged=true) are
// never returned by list/search; their incident links are transferred to
// the surviving actor (see storage.ActorStore.Merge).
type Actor struct {
	ID                string
	CanonicalName     string
	Type              ActorType
	Aliases           []string // ordered, deduped by normalized form
	Person            *PersonAttributes
	Org               *OrgAttributes
	ExternalIDs       map[string]string
	IsMerged          bool
	MergedFrom        []string
}
