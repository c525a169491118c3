// Package stage2 implements the Stage 2 Router of spec.md §4.7: given a
// completed Stage 1 row, auto-select (or accept an explicit list of)
// domain/category schemas, run one LLM call per schema in parallel
// bounded by provider concurrency, validate and coerce the extracted
// fields, score confidence, and persist each schema's result.
package stage2

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sentinelcore/ingestcore/pkg/extraction/spans"
	"github.com/sentinelcore/ingestcore/pkg/llm"
	"github.com/sentinelcore/ingestcore/pkg/models"
	"github.com/sentinelcore/ingestcore/pkg/selector"
)

const (
	minHintConfidence            = 0.3
	minDomainRelevanceConfidence = 0.5
)

// Caller is the narrow LLM surface run_stage2 needs — satisfied
// directly by *llm.Router.
type Caller interface {
	Generate(ctx context.Context, input *llm.GenerateInput) (string, llm.UsageChunk, error)
}

// SchemaSource is the narrow read surface over extraction_schemas the
// router needs: the active Stage 2 set for auto-selection, and direct
// lookup for an explicit schema_ids override.
type SchemaSource interface {
	ListActiveStage2Schemas(ctx context.Context) ([]*models.ExtractionSchema, error)
	Get(ctx context.Context, id string) (*models.ExtractionSchema, error)
}

// Store persists a schema's result; satisfied directly by
// *storage.SchemaStore.
type Store interface {
	UpsertResult(ctx context.Context, r *models.SchemaExtractionResult) (*models.SchemaExtractionResult, error)
}

// Runner drives run_stage2 for one Stage 1 row.
type Runner struct {
	caller       Caller
	schemas      SchemaSource
	store        Store
	concurrency  int
	providerName string
	clock        func() time.Time
}

// NewRunner constructs a Runner. concurrency bounds how many schemas
// run their LLM call at once; <= 0 defaults to 1. clock may be nil to
// use time.Now.
func NewRunner(caller Caller, schemas SchemaSource, store Store, concurrency int, providerName string, clock func() time.Time) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	if providerName == "" {
		providerName = "router"
	}
	if clock == nil {
		clock = time.Now
	}
	return &Runner{
		caller:       caller,
		schemas:      schemas,
		store:        store,
		concurrency:  concurrency,
		providerName: providerName,
		clock:        clock,
	}
}

// Input is run_stage2's per-call argument.
type Input struct {
	Stage1Row   *models.Stage1Row
	ArticleText string
	// SchemaIDs overrides auto-selection when non-empty (spec.md §4.7
	// "run_stage2(stage1_row_id, schema_ids?)").
	SchemaIDs []string
}

// Run executes run_stage2: selects schemas (explicit or auto), runs
// each in parallel bounded by concurrency, and persists every result
// that completes. A schema that errors does not prevent the others
// from completing; Run only returns an error if every schema failed.
func (r *Runner) Run(ctx context.Context, in Input) ([]*models.SchemaExtractionResult, error) {
	schemas, err := r.selectSchemas(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("selecting stage2 schemas: %w", err)
	}
	if len(schemas) == 0 {
		return nil, nil
	}

	results := make([]*models.SchemaExtractionResult, len(schemas))
	errs := make([]error, len(schemas))

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for i, schema := range schemas {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, sc *models.ExtractionSchema) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := r.runSchema(ctx, in, sc)
			if err != nil {
				errs[idx] = fmt.Errorf("schema %s: %w", sc.Name, err)
				return
			}
			persisted, err := r.store.UpsertResult(ctx, result)
			if err != nil {
				errs[idx] = fmt.Errorf("persisting schema %s result: %w", sc.Name, err)
				return
			}
			results[idx] = persisted
		}(i, schema)
	}
	wg.Wait()

	out := make([]*models.SchemaExtractionResult, 0, len(results))
	var firstErr error
	for i, res := range results {
		if res != nil {
			out = append(out, res)
			continue
		}
		if firstErr == nil {
			firstErr = errs[i]
		}
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (r *Runner) selectSchemas(ctx context.Context, in Input) ([]*models.ExtractionSchema, error) {
	if len(in.SchemaIDs) > 0 {
		schemas := make([]*models.ExtractionSchema, 0, len(in.SchemaIDs))
		for _, id := range in.SchemaIDs {
			schema, err := r.schemas.Get(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("loading schema %s: %w", id, err)
			}
			schemas = append(schemas, schema)
		}
		return schemas, nil
	}
	return r.autoSelect(ctx, in.Stage1Row)
}

// autoSelect implements spec.md §4.7 step 3's auto-selection when no
// explicit schema_ids are given.
func (r *Runner) autoSelect(ctx context.Context, row *models.Stage1Row) ([]*models.ExtractionSchema, error) {
	hints := relevantHints(row.Data.ClassificationHints, row.Data.DomainRelevance)
	if len(hints) == 0 {
		return nil, nil
	}

	active, err := r.schemas.ListActiveStage2Schemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active stage2 schemas: %w", err)
	}

	seen := make(map[string]bool, len(active))
	var selected []*models.ExtractionSchema
	for _, schema := range active {
		if seen[schema.ID] {
			continue
		}
		if matchSchema(schema.DomainSlug, schema.CategorySlug, hints) {
			seen[schema.ID] = true
			selected = append(selected, schema)
		}
	}
	return selected, nil
}

// relevantHints keeps classification hints at confidence >= 0.3, then
// (when domain_relevance was reported) narrows to hints whose domain
// was judged relevant at confidence >= 0.5. If domain_relevance names
// no relevant domain, no schemas are selected (spec.md §4.7 step 2).
func relevantHints(hints []models.ClassificationHint, relevance []models.DomainRelevance) []models.ClassificationHint {
	kept := make([]models.ClassificationHint, 0, len(hints))
	for _, h := range hints {
		if h.Confidence >= minHintConfidence {
			kept = append(kept, h)
		}
	}
	if len(relevance) == 0 {
		return kept
	}

	relevantDomains := make(map[string]bool, len(relevance))
	for _, d := range relevance {
		if d.IsRelevant && d.Confidence >= minDomainRelevanceConfidence {
			relevantDomains[normalizeSlug(d.DomainSlug)] = true
		}
	}
	if len(relevantDomains) == 0 {
		return nil
	}

	out := make([]models.ClassificationHint, 0, len(kept))
	for _, h := range kept {
		if relevantDomains[normalizeSlug(h.DomainSlug)] {
			out = append(out, h)
		}
	}
	return out
}

// matchSchema applies spec.md §4.7 step 3's four ordered rules,
// first-match-wins across all hints, per rule.
func matchSchema(domainSlug, categorySlug string, hints []models.ClassificationHint) bool {
	domain, category := normalizeSlug(domainSlug), normalizeSlug(categorySlug)
	combined := domain
	if category != "" {
		combined = domain + "_" + category
	}

	rules := [...]func(models.ClassificationHint) bool{
		func(h models.ClassificationHint) bool { // (a) exact domain+category
			return domain == normalizeSlug(h.DomainSlug) && category == normalizeSlug(h.CategorySlug)
		},
		func(h models.ClassificationHint) bool { // (b) combined domain_category equals hint domain
			return category != "" && combined == normalizeSlug(h.DomainSlug)
		},
		func(h models.ClassificationHint) bool { // (c) schema domain equals hint domain, category invented
			return domain == normalizeSlug(h.DomainSlug)
		},
		func(h models.ClassificationHint) bool { // (d) hint domain starts with schema_domain_
			return strings.HasPrefix(normalizeSlug(h.DomainSlug), domain+"_")
		},
	}
	for _, rule := range rules {
		for _, h := range hints {
			if rule(h) {
				return true
			}
		}
	}
	return false
}

func normalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// runSchema renders the schema's prompt, calls the LLM, parses and
// validates the response, and returns the (not yet persisted) result
// (spec.md §4.7 paragraph 2).
func (r *Runner) runSchema(ctx context.Context, in Input, schema *models.ExtractionSchema) (*models.SchemaExtractionResult, error) {
	started := r.clock()
	prompt := renderUserPrompt(schema.UserPromptTemplate, in.Stage1Row.Data, in.ArticleText)

	text, usage, err := r.caller.Generate(ctx, &llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: schema.SystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Model:       schema.ModelName,
		Temperature: schema.Temperature,
		MaxTokens:   schema.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	data, parseErr := parseJSON(text)
	if parseErr != nil {
		data = map[string]any{}
	}

	spanCandidates := extractSpanCandidates(data["source_spans"])
	delete(data, "source_spans")
	validSpans := spans.Validate(in.ArticleText, spanCandidates)

	llmConfidence, hasLLMConfidence := toFloat(data["confidence"])

	coerceFields(schema, data)
	confidence, validationErrors := computeConfidence(schema, data, llmConfidence, hasLLMConfidence)

	return &models.SchemaExtractionResult{
		Stage1RowID:      in.Stage1Row.ID,
		SchemaID:         schema.ID,
		DomainSlug:       schema.DomainSlug,
		CategorySlug:     schema.CategorySlug,
		SchemaName:       schema.Name,
		ExtractedData:    data,
		SourceSpans:      validSpans,
		Confidence:       confidence,
		ValidationErrors: validationErrors,
		Status:           models.Stage2StatusCompleted,
		Stage1Version:    in.Stage1Row.SchemaVersion,
		UsedOriginalText: true,
		Provider:         r.providerName,
		Model:            schema.ModelName,
		TokensIn:         usage.InputTokens,
		TokensOut:        usage.OutputTokens,
		Latency:          r.clock().Sub(started),
	}, nil
}

// renderUserPrompt substitutes {stage1_output} (a JSON pretty-print of
// the Stage 1 data) then {article_text}, in that order (spec.md §4.7
// paragraph 2, mirroring §4.6's injection-safe substitution order).
func renderUserPrompt(template string, stage1Data models.ExtractionData, articleText string) string {
	pretty, _ := json.MarshalIndent(stage1Data, "", "  ")
	prompt := strings.Replace(template, "{stage1_output}", string(pretty), 1)
	prompt = strings.Replace(prompt, "{article_text}", articleText, 1)
	return prompt
}

func extractSpanCandidates(raw any) []models.SourceSpan {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]models.SourceSpan, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		start, sok := toInt(m["start"])
		end, eok := toInt(m["end"])
		if !sok || !eok {
			continue
		}
		text, _ := m["text"].(string)
		field, _ := m["field"].(string)
		out = append(out, models.SourceSpan{Start: start, End: end, Text: text, Field: field})
	}
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return selector.Normalize(n), true
	case int:
		return selector.Normalize(float64(n)), true
	}
	return 0, false
}
