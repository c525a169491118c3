// Package pipeline implements the Pipeline Orchestrator of spec.md
// §4.12: drive a database-ordered sequence of named stages over one
// article, honoring each stage's {continue, skip, reject, error}
// outcome, and the batch-mode wrapper around it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// StageResult is what a Stage returns to the orchestrator.
type StageResult struct {
	Outcome models.StageOutcomeKind
	Reason  string
	Err     error
}

// Stage is one named unit of pipeline work (duplicate check, Stage 1
// extraction, Stage 2 extraction, selection, approval, incident write,
// ...). Implementations live alongside the package they wrap
// (pkg/extraction, pkg/dedup, pkg/selector, pkg/approval, pkg/incident)
// and are registered here by slug.
type Stage interface {
	Slug() string
	Run(ctx context.Context, article *ArticleInput, state *RunState) StageResult
}

// ArticleInput is the article the pipeline runs over.
type ArticleInput struct {
	ID           string
	IncidentType string // optional caller override
}

// RunState threads accumulated data between stages within one run
// (Stage 1 output consumed by Stage 2, merged result consumed by the
// Decider, decision consumed by the Incident Writer, ...). Stages type
// -assert the keys they know about; this mirrors the teacher's
// dynamic-JSON-bag escape hatch (spec.md §9) for inter-stage data that
// does not warrant a dedicated typed field on every stage.
type RunState struct {
	Values map[string]any
}

// NewRunState returns an empty RunState.
func NewRunState() *RunState {
	return &RunState{Values: map[string]any{}}
}

// StageRegistry resolves stage slugs to their Stage implementation.
type StageRegistry struct {
	stages map[string]Stage
}

// NewStageRegistry builds a registry from a fixed stage list.
func NewStageRegistry(stages ...Stage) *StageRegistry {
	r := &StageRegistry{stages: make(map[string]Stage, len(stages))}
	for _, s := range stages {
		r.stages[s.Slug()] = s
	}
	return r
}

func (r *StageRegistry) get(slug string) (Stage, bool) {
	s, ok := r.stages[slug]
	return s, ok
}

// StageOrderSource resolves the DB-driven stage ordering.
type StageOrderSource interface {
	ListActive(ctx context.Context, incidentType string) ([]*models.PipelineStageConfig, error)
}

// Result is what Execute returns for one article.
type Result struct {
	ArticleID      string
	FinalDecision  string // "completed", "rejected", "skipped"
	StagesRun      []string
	SkippedAt      string
	RejectedAt     string
	Errors         map[string]string // stage slug -> error message, for stages that errored but did not halt the run
}

// Orchestrator drives stages in database order.
type Orchestrator struct {
	registry *StageRegistry
	order    StageOrderSource
	log      *slog.Logger
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(registry *StageRegistry, order StageOrderSource, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{registry: registry, order: order, log: log}
}

// Execute implements spec.md §4.12's contract: drive registered stages
// in (execution_order ?? default_order) order, filtered to is_active,
// honoring skip_stages, with {continue, skip, reject, error} semantics.
func (o *Orchestrator) Execute(ctx context.Context, article ArticleInput, skipStages map[string]bool) (*Result, error) {
	configs, err := o.order.ListActive(ctx, article.IncidentType)
	if err != nil {
		return nil, fmt.Errorf("loading pipeline stage order: %w", err)
	}
	sort.SliceStable(configs, func(i, j int) bool {
		return resolvedOrder(configs[i]) < resolvedOrder(configs[j])
	})

	result := &Result{ArticleID: article.ID, FinalDecision: "completed", Errors: map[string]string{}}
	state := NewRunState()

	for _, cfg := range configs {
		if skipStages[cfg.Slug] {
			continue
		}
		stage, ok := o.registry.get(cfg.Slug)
		if !ok {
			o.log.Warn("pipeline stage configured but not registered", "slug", cfg.Slug)
			continue
		}

		outcome := stage.Run(ctx, &article, state)
		result.StagesRun = append(result.StagesRun, cfg.Slug)

		switch outcome.Outcome {
		case models.StageContinue:
			continue
		case models.StageSkip:
			result.FinalDecision = "skipped"
			result.SkippedAt = cfg.Slug
			return result, nil
		case models.StageReject:
			result.FinalDecision = "rejected"
			result.RejectedAt = cfg.Slug
			return result, nil
		case models.StageError:
			msg := outcome.Reason
			if outcome.Err != nil {
				msg = outcome.Err.Error()
			}
			result.Errors[cfg.Slug] = msg
			o.log.Error("pipeline stage errored, continuing", "slug", cfg.Slug, "error", msg)
			continue
		default:
			return nil, fmt.Errorf("stage %s returned unknown outcome %q", cfg.Slug, outcome.Outcome)
		}
	}

	return result, nil
}

// resolvedOrder implements "(execution_order ?? default_order)".
func resolvedOrder(cfg *models.PipelineStageConfig) int {
	if cfg.ExecutionOrder != nil {
		return *cfg.ExecutionOrder
	}
	return cfg.DefaultOrder
}
