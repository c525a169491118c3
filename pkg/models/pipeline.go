package models

// PipelineStageConfig is one row of the database-driven stage ordering
// the Pipeline Orchestrator reads at the start of every run (spec.md
// §4.12 "Stage order and configuration come from the database").
type PipelineStageConfig struct {
	ID             string
	Slug           string
	IncidentType   string // "" applies to every incident type
	ExecutionOrder *int   // per-deployment override; nil falls back to DefaultOrder
	DefaultOrder   int
	IsActive       bool
}

// StageOutcomeKind is the result a pipeline stage hands back to the
// orchestrator (spec.md §4.12).
type StageOutcomeKind string

const (
	StageContinue StageOutcomeKind = "continue"
	StageSkip     StageOutcomeKind = "skip"
	StageReject   StageOutcomeKind = "reject"
	StageError    StageOutcomeKind = "error"
)
