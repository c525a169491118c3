package models

// MergeSourceRole names a contributor's part in a merged result
// (spec.md §4.8 step 4).
type MergeSourceRole string

const (
	MergeRoleBase       MergeSourceRole = "base"
	MergeRoleSupplement MergeSourceRole = "supplement"
	MergeRoleSole       MergeSourceRole = "sole"
)

// MergeSource records one contributor to a merged cluster, so the
// non-destructive merge (spec.md §4.8) can be audited and the primary
// re-derived if scoring weights change.
type MergeSource struct {
	ArticleID         string
	SchemaID          string
	Confidence        float64
	DomainSlug        string
	Role              MergeSourceRole
	FieldsContributed []string
}

// MergeInfo is attached to a SchemaExtractionResult (or Incident) that
// absorbed one or more duplicate extractions, recording what was merged
// in and why the surviving record won (spec.md §4.8 "primary cluster
// scoring").
type MergeInfo struct {
	PrimarySourceID string
	MergedSourceIDs []string
	Sources         []MergeSource
	ClusterEntity   string
	Merged          bool
	SchemasMerged   []string
	SelectionReason string // e.g. "domain_priority", "immigration_presence_tiebreak"
}

// DedupMatchMethod names the cascade stage that produced a duplicate
// match (spec.md §4.9).
type DedupMatchMethod string

// Dedup match method values, in cascade order.
const (
	DedupMethodURL            DedupMatchMethod = "url"
	DedupMethodTitleJaccard   DedupMatchMethod = "title_jaccard"
	DedupMethodContentMinHash DedupMatchMethod = "content_minhash"
	DedupMethodEntity         DedupMatchMethod = "entity"
	DedupMethodDescription    DedupMatchMethod = "description"
)

// DedupMatch is one duplicate pairing found by the in-batch or
// cross-source dedup cascade.
type DedupMatch struct {
	SourceID   string
	TargetID   string
	Method     DedupMatchMethod
	Score      float64
}

// EntityMatchTier names which tier of the fuzzy entity/name matching
// cascade produced a match (spec.md §4.9.1, §4.9.2).
type EntityMatchTier string

// Entity match tier values, in cascade order (most to least exact).
const (
	EntityTierExactNormalized EntityMatchTier = "exact_normalized"
	EntityTierAliasMatch      EntityMatchTier = "alias_match"
	EntityTierFuzzyName       EntityMatchTier = "fuzzy_name"
	EntityTierExternalID      EntityMatchTier = "external_id"
)

// EntityMatch is a candidate match between two Actor records (or an
// Actor and a raw extracted Entity) found during resolution.
type EntityMatch struct {
	SourceID string
	TargetID string
	Tier     EntityMatchTier
	Score    float64
}
