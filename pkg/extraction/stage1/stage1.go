// Package stage1 implements the IR (entities/events/quotes) extractor
// of spec.md §4.6: a single LLM call per article against a fixed
// system prompt and templated user prompt, with truncation recovery
// and an adaptive retry, writing one Stage1Row and updating the
// article's latest_extraction_id in a single logical step.
package stage1

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sentinelcore/ingestcore/pkg/llm"
	"github.com/sentinelcore/ingestcore/pkg/models"
)

// systemPrompt is the fixed instruction set for IR extraction. Its text
// is part of the prompt hash, so any edit here changes prompt_hash for
// every future row.
const systemPrompt = `You extract entities, events, and quotes from a news article as JSON. Respond with a single JSON object matching the documented schema. Do not include commentary outside the JSON.`

// userPromptTemplate is rendered with domainRelevanceCriteria first and
// articleText last, in that order, so that untrusted article text can
// never inject a replacement for the other placeholder (spec.md §4.6
// "placeholder substitution order").
const userPromptTemplate = `Domain relevance criteria:
{domain_relevance_criteria}

Article:
{article_text}`

const (
	defaultMaxTokens = 8192
	retryMaxTokens   = 16384
	retrySuffix      = "\n\nIf the article describes more incidents than fit, extract only the top 10 most significant incidents."
)

// Store is the narrow persistence surface run_stage1 needs.
type Store interface {
	Create(ctx context.Context, r *models.Stage1Row) (*models.Stage1Row, error)
	SetLatestExtraction(ctx context.Context, articleID, stage1RowID string, pipeline models.ExtractionPipeline) error
}

// Runner drives Stage 1 extraction for one article.
type Runner struct {
	provider llm.Provider
	breaker  *llm.CircuitBreaker
	store    Store
	clock    func() time.Time
}

// NewRunner constructs a Runner. clock may be nil to use time.Now.
func NewRunner(provider llm.Provider, breaker *llm.CircuitBreaker, store Store, clock func() time.Time) *Runner {
	if clock == nil {
		clock = time.Now
	}
	return &Runner{provider: provider, breaker: breaker, store: store, clock: clock}
}

// Input is run_stage1's per-article argument.
type Input struct {
	ArticleID               string
	ArticleText             string
	DomainRelevanceCriteria string
	Model                   string
}

// PromptHash computes the prompt_hash stored alongside every row:
// a hash of (system_prompt, user_prompt_template) only, not the
// per-article rendered text, so the same template always hashes the
// same way regardless of article content (spec.md §4.6).
func PromptHash() string {
	sum := sha256.Sum256([]byte(systemPrompt + "\x00" + userPromptTemplate))
	return hex.EncodeToString(sum[:])
}

func renderPrompt(in Input) string {
	prompt := userPromptTemplate
	prompt = strings.Replace(prompt, "{domain_relevance_criteria}", in.DomainRelevanceCriteria, 1)
	prompt = strings.Replace(prompt, "{article_text}", in.ArticleText, 1)
	return prompt
}

// Run executes the Stage 1 contract and returns the finalized Stage1Row.
// Every call writes a new row with a fresh id; Run does not look up or
// return an existing completed row for the article.
func (r *Runner) Run(ctx context.Context, in Input) (*models.Stage1Row, error) {
	if r.breaker != nil && !r.breaker.Allow() {
		return nil, fmt.Errorf("provider %s circuit breaker open", r.provider.Name())
	}

	started := r.clock()
	parsed, truncated, usage, callErr := r.call(ctx, in, defaultMaxTokens, "")

	if callErr != nil {
		if r.breaker != nil {
			r.breaker.RecordFailure(callErr)
		}
		return r.finalizeFailed(ctx, in, callErr, started)
	}

	if truncated {
		// One adaptive retry at doubled tokens (capped) with the
		// top-10 suffix instruction; keep whichever result has more
		// events/entities (spec.md §4.6 truncation policy).
		retryParsed, retryTruncated, retryUsage, retryErr := r.call(ctx, in, retryMaxTokens, retrySuffix)
		if retryErr == nil && richerThan(retryParsed, parsed) {
			parsed = retryParsed
			truncated = retryTruncated
			usage = retryUsage
		}
		// If the retry is not richer (or failed), the original
		// repaired partial is kept and [TRUNCATED] stays on it.
	}

	if r.breaker != nil {
		r.breaker.RecordSuccess()
	}

	if truncated {
		parsed.ExtractionNotes = strings.TrimSpace("[TRUNCATED] " + parsed.ExtractionNotes)
	}

	row := &models.Stage1Row{
		ArticleID:         in.ArticleID,
		Data:              *parsed,
		EntityCount:       len(parsed.Entities),
		EventCount:        len(parsed.Events),
		OverallConfidence: parsed.ExtractionConfidence,
		Status:            models.Stage1StatusCompleted,
		PromptHash:        PromptHash(),
		Provider:          r.provider.Name(),
		Model:             in.Model,
		TokensIn:          usage.InputTokens,
		TokensOut:         usage.OutputTokens,
		Latency:           r.clock().Sub(started),
	}
	completed := r.clock()
	row.CompletedAt = &completed

	created, err := r.store.Create(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("persisting stage1 row: %w", err)
	}
	if err := r.store.SetLatestExtraction(ctx, in.ArticleID, created.ID, models.ExtractionPipelineTwoStage); err != nil {
		return nil, fmt.Errorf("updating article latest extraction: %w", err)
	}
	return created, nil
}

func (r *Runner) finalizeFailed(ctx context.Context, in Input, callErr *llm.LLMError, started time.Time) (*models.Stage1Row, error) {
	row := &models.Stage1Row{
		ArticleID:  in.ArticleID,
		Status:     models.Stage1StatusFailed,
		PromptHash: PromptHash(),
		Provider:   r.provider.Name(),
		Model:      in.Model,
		Error:      callErr.Error(),
		Latency:    r.clock().Sub(started),
	}
	created, err := r.store.Create(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("persisting failed stage1 row: %w", err)
	}
	return created, fmt.Errorf("stage1 extraction failed: %w", callErr)
}

// call issues one LLM completion and parses its JSON response,
// reporting whether the response was truncated. Truncation is inferred
// only from the JSON: a response that cannot be parsed as-is and has to
// be repaired by closing open structures counts as truncated. The
// provider's stop reason is not consulted; llm.Drain does not return one.
func (r *Runner) call(ctx context.Context, in Input, maxTokens int, suffix string) (*models.ExtractionData, bool, llm.UsageChunk, *llm.LLMError) {
	prompt := renderPrompt(in) + suffix
	chunks, err := r.provider.Generate(ctx, &llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Model:     in.Model,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, false, llm.UsageChunk{}, llm.Classify(r.provider.Name(), err)
	}

	text, usage, callErr := llm.Drain(chunks)
	if callErr != nil {
		return nil, false, usage, callErr
	}

	data, truncated := parseWithRepair(text)
	return data, truncated, usage, nil
}

// parseWithRepair tries a direct json.Unmarshal first; on failure it
// closes any open braces/brackets left by a response cut off mid
// -object and retries once. Returns the best-effort parse and whether
// repair was needed at all (a proxy for "the response was truncated").
func parseWithRepair(text string) (*models.ExtractionData, bool) {
	trimmed := strings.TrimSpace(text)
	var data models.ExtractionData
	if err := json.Unmarshal([]byte(trimmed), &data); err == nil {
		return &data, false
	}

	repaired := closeOpenStructures(trimmed)
	if err := json.Unmarshal([]byte(repaired), &data); err == nil {
		return &data, true
	}

	// Could not repair at all; return an empty result rather than
	// erroring the whole call, so the retry path still gets a chance.
	return &models.ExtractionData{}, true
}

// closeOpenStructures appends closing brackets/braces for every
// unmatched opener, in reverse order of opening, ignoring characters
// inside string literals.
func closeOpenStructures(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var closer strings.Builder
	closer.WriteString(s)
	if inString {
		closer.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			closer.WriteByte('}')
		} else {
			closer.WriteByte(']')
		}
	}
	return closer.String()
}

// richerThan reports whether a has strictly more events or entities
// than b, the tie-break spec.md §4.6 uses to decide whether a retry's
// output replaces the original repaired partial.
func richerThan(a, b *models.ExtractionData) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	aCount := len(a.Events) + len(a.Entities)
	bCount := len(b.Events) + len(b.Entities)
	return aCount > bCount
}
