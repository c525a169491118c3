package models

import "time"

// SchemaType distinguishes Stage 1 (reusable IR) from Stage 2
// (domain/category-specific) extraction schemas.
type SchemaType string

// Schema type values.
const (
	SchemaTypeStage1 SchemaType = "stage1"
	SchemaTypeStage2 SchemaType = "stage2"
)

// FieldDefinition describes one field of a schema's extracted_data shape.
type FieldDefinition struct {
	Name     string
	Type     string // string, int, float, bool, date, list, object
	Critical bool   // double-weighted in confidence scoring (spec.md §4.7)
}

// ExtractionSchema is a typed extraction contract: system prompt, user
// template, required/optional fields, field definitions, validation rules,
// quality threshold, and production status. At most one row with
// IsProduction=true may exist per (DomainID, CategoryID, Type) — enforced
// by pkg/storage at write time.
type ExtractionSchema struct {
	ID                    string
	Type                  SchemaType
	DomainID              string
	CategoryID            string
	// DomainSlug and CategorySlug are populated only by queries that join
	// against domains/categories (SchemaStore.ListActiveStage2Schemas);
	// they are the (domain_slug, category_slug) pair the Stage 2 Router's
	// auto-selection matches against (spec.md §4.7 step 3), not columns
	// on extraction_schemas itself.
	DomainSlug            string
	CategorySlug          string
	Name                  string
	SystemPrompt          string
	UserPromptTemplate    string
	ModelName             string
	Temperature           float64
	MaxTokens             int
	RequiredFields        []string
	OptionalFields        []string
	FieldDefinitions      []FieldDefinition
	ConfidenceThresholds  map[string]float64
	MinQualityThreshold   float64
	SchemaVersion         int
	IsActive              bool
	IsProduction          bool
	DeployedAt            *time.Time
	PreviousVersionID     string
	RollbackReason        string
	GitCommitSHA          string
	QualityMetrics        map[string]any
}

// Stage2Status is the lifecycle state of a Schema Extraction Result.
type Stage2Status string

// Stage 2 status values. Results are unique per (stage1 row, schema), so
// storage.SchemaStore.UpsertResult overwrites a prior row in place on a
// re-run; no row is left with Superseded.
const (
	Stage2StatusPending    Stage2Status = "pending"
	Stage2StatusCompleted  Stage2Status = "completed"
	Stage2StatusFailed     Stage2Status = "failed"
	Stage2StatusSuperseded Stage2Status = "superseded"
)

// SourceSpan is a provenance pointer into the original article text.
// Validated per spec.md §4.7.1 before being persisted.
type SourceSpan struct {
	Start int
	End   int
	Text  string
	Field string // which extracted field this span supports
}

// SchemaExtractionResult is the Stage 2 output for one (stage1_row,
// schema) pair. Unique on (Stage1RowID, SchemaID).
type SchemaExtractionResult struct {
	ID               string
	Stage1RowID      string
	SchemaID         string
	DomainSlug       string
	CategorySlug     string
	SchemaName       string
	ExtractedData    map[string]any
	SourceSpans      []SourceSpan
	Confidence       float64
	ValidationErrors []string
	Status           Stage2Status
	Stage1Version    int
	UsedOriginalText bool
	Provider         string
	Model            string
	TokensIn         int
	TokensOut        int
	Latency          time.Duration
	CreatedAt        time.Time
}

// Domain is the top level of the two-level taxonomy (e.g. "immigration").
type Domain struct {
	ID            string
	Slug          string
	Name          string
	IsActive      bool
	RelevanceScope string
}

// Category is the second level of the taxonomy, scoped to a Domain
// (e.g. immigration -> enforcement).
type Category struct {
	ID               string
	DomainID         string
	Slug             string
	Name             string
	RequiredFields   []string
	OptionalFields   []string
	FieldDefinitions []FieldDefinition
	IsActive         bool
}
