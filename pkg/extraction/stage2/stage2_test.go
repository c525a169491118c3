package stage2

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelcore/ingestcore/pkg/llm"
	"github.com/sentinelcore/ingestcore/pkg/models"
)

// scriptedCaller returns a canned response keyed by the schema's
// system prompt, so a test can give each matched schema its own
// response without depending on call order.
type scriptedCaller struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []*llm.GenerateInput
}

func (c *scriptedCaller) Generate(_ context.Context, input *llm.GenerateInput) (string, llm.UsageChunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, input)
	resp, ok := c.responses[input.Messages[0].Content]
	if !ok {
		return "{}", llm.UsageChunk{}, nil
	}
	return resp, llm.UsageChunk{InputTokens: 10, OutputTokens: 20}, nil
}

type fakeSchemaSource struct {
	active []*models.ExtractionSchema
	byID   map[string]*models.ExtractionSchema
}

func (f *fakeSchemaSource) ListActiveStage2Schemas(ctx context.Context) ([]*models.ExtractionSchema, error) {
	return f.active, nil
}

func (f *fakeSchemaSource) Get(ctx context.Context, id string) (*models.ExtractionSchema, error) {
	return f.byID[id], nil
}

type fakeStore struct {
	mu      sync.Mutex
	results []*models.SchemaExtractionResult
	nextID  int
}

func (f *fakeStore) UpsertResult(ctx context.Context, r *models.SchemaExtractionResult) (*models.SchemaExtractionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cp := *r
	cp.ID = "result-" + strconv.Itoa(f.nextID)
	f.results = append(f.results, &cp)
	return &cp, nil
}

func criminalJusticeSchema() *models.ExtractionSchema {
	return &models.ExtractionSchema{
		ID:                 "schema-cj-arrest",
		Type:               models.SchemaTypeStage2,
		Name:               "criminal_justice.arrest",
		DomainSlug:         "criminal_justice",
		CategorySlug:       "arrest",
		SystemPrompt:       "cj-arrest-system",
		UserPromptTemplate: "Stage1: {stage1_output}\nArticle: {article_text}",
		RequiredFields:     []string{"offender_name", "charges"},
		OptionalFields:     []string{"victim_name"},
		FieldDefinitions: []models.FieldDefinition{
			{Name: "offender_name", Type: "string", Critical: true},
			{Name: "charges", Type: "list"},
			{Name: "victim_name", Type: "string"},
		},
	}
}

func TestMatchSchemaExactDomainAndCategory(t *testing.T) {
	hints := []models.ClassificationHint{{DomainSlug: "criminal_justice", CategorySlug: "arrest", Confidence: 0.9}}
	assert.True(t, matchSchema("criminal_justice", "arrest", hints))
}

func TestMatchSchemaCombinedDomainCategory(t *testing.T) {
	hints := []models.ClassificationHint{{DomainSlug: "criminal_justice_arrest", Confidence: 0.9}}
	assert.True(t, matchSchema("criminal_justice", "arrest", hints))
}

func TestMatchSchemaDomainOnlyCategoryInvented(t *testing.T) {
	hints := []models.ClassificationHint{{DomainSlug: "immigration", CategorySlug: "enforcement", Confidence: 0.9}}
	assert.True(t, matchSchema("immigration", "detention", hints))
}

func TestMatchSchemaHintDomainPrefixedBySchemaDomain(t *testing.T) {
	hints := []models.ClassificationHint{{DomainSlug: "immigration_raid", Confidence: 0.9}}
	assert.True(t, matchSchema("immigration", "", hints))
}

func TestMatchSchemaNoRuleFires(t *testing.T) {
	hints := []models.ClassificationHint{{DomainSlug: "civil_rights", CategorySlug: "protest", Confidence: 0.9}}
	assert.False(t, matchSchema("immigration", "detention", hints))
}

func TestRelevantHintsDropsLowConfidence(t *testing.T) {
	hints := []models.ClassificationHint{
		{DomainSlug: "immigration", Confidence: 0.1},
		{DomainSlug: "criminal_justice", Confidence: 0.5},
	}
	kept := relevantHints(hints, nil)
	require.Len(t, kept, 1)
	assert.Equal(t, "criminal_justice", kept[0].DomainSlug)
}

func TestRelevantHintsFiltersByDomainRelevance(t *testing.T) {
	hints := []models.ClassificationHint{
		{DomainSlug: "immigration", Confidence: 0.8},
		{DomainSlug: "criminal_justice", Confidence: 0.8},
	}
	relevance := []models.DomainRelevance{
		{DomainSlug: "immigration", IsRelevant: true, Confidence: 0.9},
		{DomainSlug: "criminal_justice", IsRelevant: false, Confidence: 0.9},
	}
	kept := relevantHints(hints, relevance)
	require.Len(t, kept, 1)
	assert.Equal(t, "immigration", kept[0].DomainSlug)
}

func TestRelevantHintsNoRelevantDomainSelectsNone(t *testing.T) {
	hints := []models.ClassificationHint{{DomainSlug: "immigration", Confidence: 0.8}}
	relevance := []models.DomainRelevance{{DomainSlug: "immigration", IsRelevant: false, Confidence: 0.9}}
	assert.Empty(t, relevantHints(hints, relevance))
}

func TestRunAutoSelectsAndPersistsResult(t *testing.T) {
	schema := criminalJusticeSchema()
	resp := map[string]any{
		"offender_name": "Jane Roe",
		"charges":       []string{"assault"},
		"confidence":    0.9,
		"source_spans": []map[string]any{
			{"start": 0, "end": 8, "text": "Jane Roe", "field": "offender_name"},
			{"start": -1, "end": 3, "text": "xx", "field": "offender_name"},
		},
	}
	b, _ := json.Marshal(resp)

	caller := &scriptedCaller{responses: map[string]string{"cj-arrest-system": string(b)}}
	schemas := &fakeSchemaSource{active: []*models.ExtractionSchema{schema}}
	store := &fakeStore{}

	runner := NewRunner(caller, schemas, store, 4, "test-provider", nil)

	row := &models.Stage1Row{
		ID: "stage1-1",
		Data: models.ExtractionData{
			ClassificationHints: []models.ClassificationHint{{DomainSlug: "criminal_justice", CategorySlug: "arrest", Confidence: 0.8}},
		},
	}

	results, err := runner.Run(context.Background(), Input{Stage1Row: row, ArticleText: "Jane Roe was arrested today."})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "schema-cj-arrest", r.SchemaID)
	assert.Equal(t, models.Stage2StatusCompleted, r.Status)
	assert.Equal(t, "Jane Roe", r.ExtractedData["offender_name"])
	assert.NotContains(t, r.ExtractedData, "source_spans")
	require.Len(t, r.SourceSpans, 1)
	assert.Equal(t, "Jane Roe", r.SourceSpans[0].Text)
	assert.Greater(t, r.Confidence, 0.0)

	require.Len(t, store.results, 1)
}

func TestRunNoRelevantHintsProducesNoResults(t *testing.T) {
	schema := criminalJusticeSchema()
	caller := &scriptedCaller{responses: map[string]string{}}
	schemas := &fakeSchemaSource{active: []*models.ExtractionSchema{schema}}
	store := &fakeStore{}
	runner := NewRunner(caller, schemas, store, 2, "", nil)

	row := &models.Stage1Row{ID: "stage1-2", Data: models.ExtractionData{
		ClassificationHints: []models.ClassificationHint{{DomainSlug: "civil_rights", Confidence: 0.9}},
	}}

	results, err := runner.Run(context.Background(), Input{Stage1Row: row, ArticleText: "irrelevant article"})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, store.results)
}

func TestRunExplicitSchemaIDsBypassesAutoSelection(t *testing.T) {
	schema := criminalJusticeSchema()
	resp := map[string]any{"offender_name": "Sam Rivera", "charges": []string{"theft"}}
	b, _ := json.Marshal(resp)

	caller := &scriptedCaller{responses: map[string]string{"cj-arrest-system": string(b)}}
	schemas := &fakeSchemaSource{byID: map[string]*models.ExtractionSchema{schema.ID: schema}}
	store := &fakeStore{}
	runner := NewRunner(caller, schemas, store, 1, "test", nil)

	row := &models.Stage1Row{ID: "stage1-3"}
	results, err := runner.Run(context.Background(), Input{
		Stage1Row:   row,
		ArticleText: "Sam Rivera was charged with theft.",
		SchemaIDs:   []string{schema.ID},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Sam Rivera", results[0].ExtractedData["offender_name"])
}

func TestComputeConfidenceCriticalFieldsDoubleWeighted(t *testing.T) {
	schema := criminalJusticeSchema()
	data := map[string]any{"offender_name": "Jane Roe"} // charges (non-critical) missing
	confidence, errs := computeConfidence(schema, data, 0, false)
	require.Len(t, errs, 1)
	// presentWeight=2 (critical), totalWeight=3 -> 2/3, no optional present
	assert.InDelta(t, 2.0/3.0, confidence, 1e-9)
}

func TestComputeConfidenceOptionalBonusAndLLMBlend(t *testing.T) {
	schema := criminalJusticeSchema()
	data := map[string]any{
		"offender_name": "Jane Roe",
		"charges":       []any{"assault"},
		"victim_name":   "Alex Doe",
	}
	confidence, errs := computeConfidence(schema, data, 0.8, true)
	assert.Empty(t, errs)
	fieldScore := clamp01(1.0 + optionalFieldBonus)
	expected := fieldWeight*fieldScore + llmWeight*0.8
	assert.InDelta(t, expected, confidence, 1e-9)
}

func TestComputeConfidenceCrossFieldPenaltyCapped(t *testing.T) {
	schema := criminalJusticeSchema()
	data := map[string]any{
		"offender_name":  "Jane Roe",
		"disposition":    "Convicted", // convicted without charges: inconsistent
		"incident_date":  "2024-05-01",
		"arrest_date":    "2024-04-01", // before incident: inconsistent
	}
	confidence, _ := computeConfidence(schema, data, 0, false)
	// charges (non-critical) missing -> 2/3; both cross-field checks fire,
	// so the summed penalty reaches the cap.
	fieldScore := 2.0 / 3.0
	assert.InDelta(t, fieldScore-maxCrossFieldPenalty, confidence, 1e-9)
}

func TestCoerceFieldsConvertsStringToInt(t *testing.T) {
	schema := &models.ExtractionSchema{FieldDefinitions: []models.FieldDefinition{{Name: "count", Type: "int"}}}
	data := map[string]any{"count": "5"}
	coerceFields(schema, data)
	assert.Equal(t, 5, data["count"])
}
