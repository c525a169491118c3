package models

import "time"

// PromptTestCase is a fixture pairing a frozen article excerpt with the
// expected classification/extraction outcome, used to catch prompt
// regressions before a schema is promoted to production (SPEC_FULL.md
// supplement, grounded on original_source/backend/services extraction
// quality tooling).
type PromptTestCase struct {
	ID             string
	SchemaID       string
	Name           string
	ArticleExcerpt string
	ExpectedFields map[string]any
	MinConfidence  float64
}

// PromptTestRun is one execution of a PromptTestCase against a candidate
// schema version, recording whether the output matched expectations
// closely enough to pass.
type PromptTestRun struct {
	ID           string
	TestCaseID   string
	SchemaID     string
	SchemaVersion int
	ActualFields map[string]any
	Confidence   float64
	FieldsMatched int
	FieldsTotal   int
	Passed       bool
	RanAt        time.Time
}

// QualitySample is a periodic random sample of production extractions
// set aside for manual quality review, distinct from the curation queue
// (SPEC_FULL.md supplement).
type QualitySample struct {
	ID         string
	ResultID   string
	SampledAt  time.Time
	Reviewed   bool
	ReviewNote string
	Accurate   *bool
}
