package models

import "time"

// ArticleStatus is the lifecycle state of an ingested article.
type ArticleStatus string

// Article status values.
const (
	ArticleStatusPending    ArticleStatus = "pending"
	ArticleStatusProcessing ArticleStatus = "processing"
	ArticleStatusExtracted  ArticleStatus = "extracted"
	ArticleStatusApproved   ArticleStatus = "approved"
	ArticleStatusRejected   ArticleStatus = "rejected"
	ArticleStatusArchived   ArticleStatus = "archived"
)

// ExtractionPipeline distinguishes which extraction path produced an
// article's current extracted_data.
type ExtractionPipeline string

// Extraction pipeline values.
const (
	ExtractionPipelineLegacy   ExtractionPipeline = "legacy"
	ExtractionPipelineTwoStage ExtractionPipeline = "two_stage"
)

// Article is an ingested news item, the input to the pipeline.
type Article struct {
	ID                     string
	SourceID               string
	SourceURL              string
	ContentHash            string
	Title                  string
	Content                string
	FetchedAt              time.Time
	PublishedAt            *time.Time
	Status                 ArticleStatus
	ExtractedData          map[string]any
	LatestExtractionID     string
	ExtractionPipeline     ExtractionPipeline
	ExtractionErrorCount   int
	LastExtractionError    string
	LastExtractionErrorAt  *time.Time
	LastExtractionCategory string // extraction_error_category
}

// Stage1Status is the lifecycle state of a Stage 1 extraction row.
type Stage1Status string

// Stage 1 status values.
const (
	Stage1StatusPending   Stage1Status = "pending"
	Stage1StatusCompleted Stage1Status = "completed"
	Stage1StatusFailed    Stage1Status = "failed"
)

// ClassificationHint is a {domain_slug, category_slug, confidence} tuple
// emitted by Stage 1, used by the Stage 2 Router to select schemas.
type ClassificationHint struct {
	DomainSlug   string
	CategorySlug string
	Confidence   float64
}

// DomainRelevance reports whether Stage 1 judged a domain relevant to the
// article, with what confidence (spec.md §4.7 step 2).
type DomainRelevance struct {
	DomainSlug  string
	IsRelevant  bool
	Confidence  float64
}

// ExtractionData is the dynamic, schema-agnostic Stage 1 payload: entities,
// events, quotes, legal data, classification hints and domain relevance.
// Field-level typing lives one layer down in extraction-schema-specific
// results (SchemaExtractionResult); this is the IR bag described by
// spec.md §9 "Dynamic JSON-as-map" note.
type ExtractionData struct {
	Entities            []Entity              `json:"entities"`
	Events              []ExtractedEvent      `json:"events"`
	Quotes              []Quote               `json:"quotes"`
	LegalData           map[string]any        `json:"legal_data,omitempty"`
	ClassificationHints []ClassificationHint  `json:"classification_hints"`
	DomainRelevance     []DomainRelevance     `json:"domain_relevance,omitempty"`
	ExtractionConfidence float64              `json:"extraction_confidence"`
	ExtractionNotes     string                `json:"extraction_notes,omitempty"`
}

// Entity is a named participant surfaced by Stage 1 (not yet canonicalized
// into an Actor).
type Entity struct {
	Name string
	Type string // person, organization, agency, group
}

// ExtractedEvent is a raw event surfaced by Stage 1, prior to Event
// canonicalization.
type ExtractedEvent struct {
	Name string
	Type string
	Date string
}

// Quote is a direct quotation surfaced by Stage 1, with optional speaker
// attribution.
type Quote struct {
	Speaker string
	Text    string
}

// Stage1Row is the persisted Stage 1 extraction for one article.
// Only the latest row is referenced by Article.LatestExtractionID.
type Stage1Row struct {
	ID                 string
	ArticleID          string
	Data               ExtractionData
	EntityCount        int
	EventCount         int
	OverallConfidence  float64
	Status             Stage1Status
	SchemaVersion      int
	PromptHash         string
	Provider           string
	Model              string
	TokensIn           int
	TokensOut          int
	Latency            time.Duration
	Error              string
	CreatedAt          time.Time
	CompletedAt        *time.Time
}
