package stage1

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelcore/ingestcore/pkg/llm"
	"github.com/sentinelcore/ingestcore/pkg/models"
)

// scriptedProvider returns one response per call, in order, letting a
// test drive multi-call scenarios (initial call + adaptive retry).
type scriptedProvider struct {
	name      string
	responses []string
	usages    []llm.UsageChunk
	calls     []*llm.GenerateInput
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Generate(ctx context.Context, input *llm.GenerateInput) (<-chan llm.Chunk, error) {
	p.calls = append(p.calls, input)
	idx := len(p.calls) - 1
	ch := make(chan llm.Chunk, 2)
	ch <- &llm.TextChunk{Content: p.responses[idx]}
	if idx < len(p.usages) {
		ch <- &llm.UsageChunk{InputTokens: p.usages[idx].InputTokens, OutputTokens: p.usages[idx].OutputTokens}
	}
	close(ch)
	return ch, nil
}

type fakeStore struct {
	created []*models.Stage1Row
	latest  map[string]string
	nextID  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{latest: map[string]string{}}
}

func (f *fakeStore) Create(ctx context.Context, r *models.Stage1Row) (*models.Stage1Row, error) {
	f.nextID++
	cp := *r
	cp.ID = "stage1-row-" + strconv.Itoa(f.nextID)
	f.created = append(f.created, &cp)
	return &cp, nil
}

func (f *fakeStore) SetLatestExtraction(ctx context.Context, articleID, stage1RowID string, pipeline models.ExtractionPipeline) error {
	f.latest[articleID] = stage1RowID
	return nil
}

func validExtraction(eventCount int) string {
	events := make([]map[string]string, eventCount)
	for i := range events {
		events[i] = map[string]string{"name": "event", "type": "arrest", "date": "2024-01-01"}
	}
	data := map[string]any{
		"entities":              []map[string]string{{"name": "Jane Roe", "type": "person"}},
		"events":                events,
		"quotes":                []any{},
		"classification_hints":  []map[string]any{{"domain_slug": "criminal_justice", "category_slug": "arrest", "confidence": 0.8}},
		"extraction_confidence": 0.8,
	}
	b, _ := json.Marshal(data)
	return string(b)
}

func TestPromptHashStableAcrossArticles(t *testing.T) {
	h1 := PromptHash()
	h2 := PromptHash()
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestRunHappyPathNoTruncation(t *testing.T) {
	provider := &scriptedProvider{name: "hosted", responses: []string{validExtraction(2)}, usages: []llm.UsageChunk{{InputTokens: 100, OutputTokens: 50}}}
	store := newFakeStore()
	runner := NewRunner(provider, llm.NewCircuitBreaker("hosted"), store, func() time.Time { return time.Unix(0, 0) })

	row, err := runner.Run(context.Background(), Input{ArticleID: "art-1", ArticleText: "text", DomainRelevanceCriteria: "criteria"})
	require.NoError(t, err)
	assert.Equal(t, models.Stage1StatusCompleted, row.Status)
	assert.Equal(t, 2, row.EventCount)
	assert.NotContains(t, row.Data.ExtractionNotes, "[TRUNCATED]")
	assert.Len(t, provider.calls, 1, "a clean parse must not trigger a retry call")
	assert.Equal(t, row.ID, store.latest["art-1"])
}

// TestRunTruncationRetryYieldsRicherResult is spec.md §8 scenario 4:
// the first call ends mid-object at max_tokens; the repaired partial
// has fewer events than the retry's full response, so the retry's
// output wins and [TRUNCATED] must not appear on the final row.
func TestRunTruncationRetryYieldsRicherResult(t *testing.T) {
	truncated := validExtraction(8)
	// Cut the response off mid-object to force the repair path; the cut
	// lands right after the events array, so closing the open object
	// yields valid JSON with all 8 events.
	cutPoint := len(truncated) - 41
	truncated = truncated[:cutPoint]

	full := validExtraction(12)

	provider := &scriptedProvider{
		name:      "hosted",
		responses: []string{truncated, full},
		usages:    []llm.UsageChunk{{InputTokens: 100, OutputTokens: 200}, {InputTokens: 100, OutputTokens: 400}},
	}
	store := newFakeStore()
	runner := NewRunner(provider, llm.NewCircuitBreaker("hosted"), store, func() time.Time { return time.Unix(0, 0) })

	row, err := runner.Run(context.Background(), Input{ArticleID: "art-1", ArticleText: "text", DomainRelevanceCriteria: "criteria"})
	require.NoError(t, err)
	assert.Len(t, provider.calls, 2, "a truncated first response must trigger exactly one retry")
	assert.Equal(t, 12, row.EventCount, "the richer retry result must replace the repaired partial")
	assert.NotContains(t, row.Data.ExtractionNotes, "[TRUNCATED]",
		"TRUNCATED must not be carried when the retry succeeded, only when the repaired partial was kept")
	assert.Equal(t, retryMaxTokens, provider.calls[1].MaxTokens)
}

func TestRunTruncationRetryNotRicherKeepsRepairedPartial(t *testing.T) {
	truncated := validExtraction(8)
	truncated = truncated[:len(truncated)-41]
	sameSize := validExtraction(8)

	provider := &scriptedProvider{
		name:      "hosted",
		responses: []string{truncated, sameSize},
		usages:    []llm.UsageChunk{{}, {}},
	}
	store := newFakeStore()
	runner := NewRunner(provider, llm.NewCircuitBreaker("hosted"), store, func() time.Time { return time.Unix(0, 0) })

	row, err := runner.Run(context.Background(), Input{ArticleID: "art-1", ArticleText: "text", DomainRelevanceCriteria: "criteria"})
	require.NoError(t, err)
	assert.Contains(t, row.Data.ExtractionNotes, "[TRUNCATED]")
}

func TestRunCircuitBreakerOpenSkipsCall(t *testing.T) {
	provider := &scriptedProvider{name: "hosted", responses: []string{validExtraction(1)}}
	breaker := llm.NewCircuitBreaker("hosted")
	breaker.RecordFailure(&llm.LLMError{Category: llm.CategoryPermanent, ErrorCode: "credit_balance_too_low", Provider: "hosted"})
	store := newFakeStore()
	runner := NewRunner(provider, breaker, store, nil)

	_, err := runner.Run(context.Background(), Input{ArticleID: "art-1"})
	require.Error(t, err)
	assert.Empty(t, provider.calls, "no call should be dispatched while the breaker is open")
}

func TestRenderPromptSubstitutionOrderPreventsInjection(t *testing.T) {
	in := Input{ArticleText: "{domain_relevance_criteria} should not be treated as a placeholder", DomainRelevanceCriteria: "real criteria"}
	rendered := renderPrompt(in)
	assert.Contains(t, rendered, "real criteria")
	assert.Contains(t, rendered, "{domain_relevance_criteria} should not be treated as a placeholder")
}

func TestCloseOpenStructures(t *testing.T) {
	assert.Equal(t, `{"a":1}`, closeOpenStructures(`{"a":1`))
	assert.Equal(t, `{"a":[1,2]}`, closeOpenStructures(`{"a":[1,2]`))
	assert.Equal(t, `{"a":"b}"}`, closeOpenStructures(`{"a":"b}"`))
}
