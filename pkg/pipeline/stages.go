package pipeline

import (
	"context"
	"fmt"

	"github.com/sentinelcore/ingestcore/pkg/approval"
	"github.com/sentinelcore/ingestcore/pkg/extraction/stage1"
	"github.com/sentinelcore/ingestcore/pkg/extraction/stage2"
	"github.com/sentinelcore/ingestcore/pkg/incident"
	"github.com/sentinelcore/ingestcore/pkg/models"
	"github.com/sentinelcore/ingestcore/pkg/selector"
)

// Well-known stage slugs. The database ties these to execution order;
// the orchestrator only cares that a registered Stage exists for each
// active slug.
const (
	SlugDuplicateCheck = "duplicate_check"
	SlugStage1Extract  = "stage1_extract"
	SlugStage2Extract  = "stage2_extract"
	SlugSelect         = "select_result"
	SlugApprovalGate   = "approval_gate"
	SlugWriteIncident  = "write_incident"
)

// RunState keys populated by the stages below. Later stages read these
// back out of state.Values.
const (
	stateKeyStage1Row      = "stage1.row"
	stateKeyStage1Hints    = "stage1.classification_hints"
	stateKeyCandidates     = "selector.candidates"
	stateKeyResult         = "selector.result"
	stateKeyApprovalInput  = "approval.input"
	stateKeyApprovalResult = "approval.decision"
	stateKeyIncidentInput  = "incident.input"
)

// DuplicateChecker abstracts the in-batch/cross-source dedup cascades
// already implemented in pkg/dedup; the stage only needs a yes/no.
type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, articleID string) (bool, string, error)
}

// DuplicateCheckStage runs dedup first in stage order; a positive match
// short-circuits the run with StageSkip, matching spec.md's "skip
// breaks early (e.g., duplicate)".
type DuplicateCheckStage struct {
	Checker DuplicateChecker
}

func (s *DuplicateCheckStage) Slug() string { return SlugDuplicateCheck }

func (s *DuplicateCheckStage) Run(ctx context.Context, article *ArticleInput, state *RunState) StageResult {
	dup, reason, err := s.Checker.IsDuplicate(ctx, article.ID)
	if err != nil {
		return StageResult{Outcome: models.StageError, Err: err}
	}
	if dup {
		return StageResult{Outcome: models.StageSkip, Reason: reason}
	}
	return StageResult{Outcome: models.StageContinue}
}

// ArticleSource loads the article body a stage needs to run an LLM
// call over — satisfied directly by *storage.ArticleStore.
type ArticleSource interface {
	Get(ctx context.Context, id string) (*models.Article, error)
}

// Stage1Extractor is the narrow surface of stage1.Runner the
// orchestrator stage needs.
type Stage1Extractor interface {
	Run(ctx context.Context, in stage1.Input) (*models.Stage1Row, error)
}

// Stage1ExtractStage runs the IR extractor over the article and
// deposits the resulting row into RunState for Stage 2 to consume
// (spec.md §4.6).
type Stage1ExtractStage struct {
	Articles                ArticleSource
	Extractor               Stage1Extractor
	DomainRelevanceCriteria string
	Model                   string
}

func (s *Stage1ExtractStage) Slug() string { return SlugStage1Extract }

func (s *Stage1ExtractStage) Run(ctx context.Context, article *ArticleInput, state *RunState) StageResult {
	a, err := s.Articles.Get(ctx, article.ID)
	if err != nil {
		return StageResult{Outcome: models.StageError, Err: fmt.Errorf("loading article: %w", err)}
	}

	row, err := s.Extractor.Run(ctx, stage1.Input{
		ArticleID:               article.ID,
		ArticleText:             a.Content,
		DomainRelevanceCriteria: s.DomainRelevanceCriteria,
		Model:                   s.Model,
	})
	if err != nil {
		return StageResult{Outcome: models.StageError, Err: err}
	}
	if row.Status != models.Stage1StatusCompleted {
		return StageResult{Outcome: models.StageReject, Reason: "stage1 extraction did not complete"}
	}

	state.Values[stateKeyStage1Row] = row
	state.Values[stateKeyStage1Hints] = row.Data.ClassificationHints
	return StageResult{Outcome: models.StageContinue}
}

// Stage2Extractor is the narrow surface of stage2.Runner the
// orchestrator stage needs.
type Stage2Extractor interface {
	Run(ctx context.Context, in stage2.Input) ([]*models.SchemaExtractionResult, error)
}

// Stage2ExtractStage runs the Stage 2 router over the Stage 1 row and
// turns each schema's result into a selector.Candidate, the shape
// SelectionStage expects in RunState (spec.md §4.7, §4.8).
type Stage2ExtractStage struct {
	Articles  ArticleSource
	Extractor Stage2Extractor
}

func (s *Stage2ExtractStage) Slug() string { return SlugStage2Extract }

func (s *Stage2ExtractStage) Run(ctx context.Context, article *ArticleInput, state *RunState) StageResult {
	raw, ok := state.Values[stateKeyStage1Row]
	if !ok {
		return StageResult{Outcome: models.StageError, Reason: "no stage1 row available for stage2 extraction"}
	}
	row, ok := raw.(*models.Stage1Row)
	if !ok {
		return StageResult{Outcome: models.StageError, Reason: "stage1 row in unexpected shape"}
	}

	a, err := s.Articles.Get(ctx, article.ID)
	if err != nil {
		return StageResult{Outcome: models.StageError, Err: fmt.Errorf("loading article: %w", err)}
	}

	results, err := s.Extractor.Run(ctx, stage2.Input{Stage1Row: row, ArticleText: a.Content})
	if err != nil {
		return StageResult{Outcome: models.StageError, Err: err}
	}
	if len(results) == 0 {
		return StageResult{Outcome: models.StageReject, Reason: "stage2 router selected no schemas"}
	}

	candidates := make([]selector.Candidate, 0, len(results))
	for _, r := range results {
		if r.Status != models.Stage2StatusCompleted {
			continue
		}
		candidates = append(candidates, selector.Candidate{
			SourceID:      article.ID,
			SchemaID:      r.SchemaID,
			ExtractedData: r.ExtractedData,
			Confidence:    r.Confidence,
			DomainSlug:    r.DomainSlug,
			CategorySlug:  r.CategorySlug,
			SchemaName:    r.SchemaName,
		})
	}
	if len(candidates) == 0 {
		return StageResult{Outcome: models.StageReject, Reason: "no stage2 schema completed successfully"}
	}

	state.Values[stateKeyCandidates] = candidates
	return StageResult{Outcome: models.StageContinue}
}

// SelectionStage wraps pkg/selector.Select over the candidates the
// Stage 2 router deposited into RunState.
type SelectionStage struct{}

func (s *SelectionStage) Slug() string { return SlugSelect }

func (s *SelectionStage) Run(ctx context.Context, article *ArticleInput, state *RunState) StageResult {
	raw, ok := state.Values[stateKeyCandidates]
	if !ok {
		return StageResult{Outcome: models.StageError, Reason: "no extraction candidates available for selection"}
	}
	candidates, ok := raw.([]selector.Candidate)
	if !ok {
		return StageResult{Outcome: models.StageError, Reason: "selector candidates in unexpected shape"}
	}

	result := selector.Select(candidates)
	if result == nil {
		return StageResult{Outcome: models.StageReject, Reason: "no candidate survived confidence filtering"}
	}
	state.Values[stateKeyResult] = result
	return StageResult{Outcome: models.StageContinue}
}

// ApprovalGateStage wraps pkg/approval.Decider over the selected
// result, rejecting the run when the decision is OutcomeAutoReject.
type ApprovalGateStage struct {
	Decider    *approval.Decider
	Thresholds approval.Thresholds
	BuildInput func(result *selector.Result) approval.Input
}

func (s *ApprovalGateStage) Slug() string { return SlugApprovalGate }

func (s *ApprovalGateStage) Run(ctx context.Context, article *ArticleInput, state *RunState) StageResult {
	raw, ok := state.Values[stateKeyResult]
	if !ok {
		return StageResult{Outcome: models.StageError, Reason: "no selected result available for approval"}
	}
	result, ok := raw.(*selector.Result)
	if !ok {
		return StageResult{Outcome: models.StageError, Reason: "selected result in unexpected shape"}
	}

	in := s.BuildInput(result)
	decision := s.Decider.Decide(in, s.Thresholds)
	state.Values[stateKeyApprovalResult] = decision

	if decision.Outcome == models.OutcomeAutoReject {
		return StageResult{Outcome: models.StageReject, Reason: decision.Reason}
	}
	return StageResult{Outcome: models.StageContinue}
}

// IncidentWriterWrite is the narrow surface of incident.Writer the
// orchestrator stage needs.
type IncidentWriterWrite interface {
	CreateIncident(ctx context.Context, in incident.Input) (*incident.Result, error)
}

// WriteIncidentStage persists the approved result via pkg/incident.
type WriteIncidentStage struct {
	Writer     IncidentWriterWrite
	BuildInput func(result *selector.Result, decision models.ApprovalDecision) incident.Input
}

func (s *WriteIncidentStage) Slug() string { return SlugWriteIncident }

func (s *WriteIncidentStage) Run(ctx context.Context, article *ArticleInput, state *RunState) StageResult {
	rawResult, ok := state.Values[stateKeyResult]
	if !ok {
		return StageResult{Outcome: models.StageError, Reason: "no selected result available for incident write"}
	}
	result, ok := rawResult.(*selector.Result)
	if !ok {
		return StageResult{Outcome: models.StageError, Reason: "selected result in unexpected shape"}
	}

	rawDecision, ok := state.Values[stateKeyApprovalResult]
	if !ok {
		return StageResult{Outcome: models.StageError, Reason: "no approval decision available for incident write"}
	}
	decision, ok := rawDecision.(models.ApprovalDecision)
	if !ok {
		return StageResult{Outcome: models.StageError, Reason: "approval decision in unexpected shape"}
	}

	in := s.BuildInput(result, decision)
	if _, err := s.Writer.CreateIncident(ctx, in); err != nil {
		return StageResult{Outcome: models.StageError, Err: err}
	}
	return StageResult{Outcome: models.StageContinue}
}
