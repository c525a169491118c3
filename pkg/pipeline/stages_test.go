package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelcore/ingestcore/pkg/extraction/stage1"
	"github.com/sentinelcore/ingestcore/pkg/extraction/stage2"
	"github.com/sentinelcore/ingestcore/pkg/models"
	"github.com/sentinelcore/ingestcore/pkg/selector"
)

type fakeArticleSource struct {
	byID map[string]*models.Article
}

func (f *fakeArticleSource) Get(ctx context.Context, id string) (*models.Article, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, errors.New("article not found")
	}
	return a, nil
}

type fakeStage1Extractor struct {
	row *models.Stage1Row
	err error
}

func (f *fakeStage1Extractor) Run(ctx context.Context, in stage1.Input) (*models.Stage1Row, error) {
	return f.row, f.err
}

type fakeStage2Extractor struct {
	results []*models.SchemaExtractionResult
	err     error
	gotRow  *models.Stage1Row
}

func (f *fakeStage2Extractor) Run(ctx context.Context, in stage2.Input) ([]*models.SchemaExtractionResult, error) {
	f.gotRow = in.Stage1Row
	return f.results, f.err
}

func TestStage1ExtractStagePopulatesRunState(t *testing.T) {
	article := &models.Article{ID: "art-1", Content: "Jane Roe was arrested."}
	row := &models.Stage1Row{
		ID:     "stage1-1",
		Status: models.Stage1StatusCompleted,
		Data: models.ExtractionData{
			ClassificationHints: []models.ClassificationHint{{DomainSlug: "criminal_justice", Confidence: 0.8}},
		},
	}
	stage := &Stage1ExtractStage{
		Articles:  &fakeArticleSource{byID: map[string]*models.Article{"art-1": article}},
		Extractor: &fakeStage1Extractor{row: row},
	}

	state := NewRunState()
	result := stage.Run(context.Background(), &ArticleInput{ID: "art-1"}, state)
	require.Equal(t, models.StageContinue, result.Outcome)
	assert.Same(t, row, state.Values[stateKeyStage1Row])
	assert.Equal(t, row.Data.ClassificationHints, state.Values[stateKeyStage1Hints])
}

func TestStage1ExtractStageRejectsOnIncompleteStatus(t *testing.T) {
	article := &models.Article{ID: "art-1", Content: "text"}
	row := &models.Stage1Row{ID: "stage1-1", Status: models.Stage1StatusFailed}
	stage := &Stage1ExtractStage{
		Articles:  &fakeArticleSource{byID: map[string]*models.Article{"art-1": article}},
		Extractor: &fakeStage1Extractor{row: row},
	}

	result := stage.Run(context.Background(), &ArticleInput{ID: "art-1"}, NewRunState())
	assert.Equal(t, models.StageReject, result.Outcome)
}

func TestStage1ExtractStageErrorsOnExtractorFailure(t *testing.T) {
	article := &models.Article{ID: "art-1", Content: "text"}
	stage := &Stage1ExtractStage{
		Articles:  &fakeArticleSource{byID: map[string]*models.Article{"art-1": article}},
		Extractor: &fakeStage1Extractor{err: errors.New("provider down")},
	}

	result := stage.Run(context.Background(), &ArticleInput{ID: "art-1"}, NewRunState())
	assert.Equal(t, models.StageError, result.Outcome)
}

func TestStage2ExtractStageBuildsCandidatesFromResults(t *testing.T) {
	article := &models.Article{ID: "art-1", Content: "Jane Roe was arrested."}
	row := &models.Stage1Row{ID: "stage1-1"}
	extractor := &fakeStage2Extractor{results: []*models.SchemaExtractionResult{
		{
			SchemaID:      "schema-1",
			DomainSlug:    "criminal_justice",
			CategorySlug:  "arrest",
			SchemaName:    "criminal_justice.arrest",
			ExtractedData: map[string]any{"offender_name": "Jane Roe"},
			Confidence:    0.82,
			Status:        models.Stage2StatusCompleted,
		},
		{
			SchemaID: "schema-2",
			Status:   models.Stage2StatusFailed,
		},
	}}

	stage := &Stage2ExtractStage{
		Articles:  &fakeArticleSource{byID: map[string]*models.Article{"art-1": article}},
		Extractor: extractor,
	}

	state := NewRunState()
	state.Values[stateKeyStage1Row] = row

	result := stage.Run(context.Background(), &ArticleInput{ID: "art-1"}, state)
	require.Equal(t, models.StageContinue, result.Outcome)
	assert.Same(t, row, extractor.gotRow)

	candidates, ok := state.Values[stateKeyCandidates].([]selector.Candidate)
	require.True(t, ok)
	require.Len(t, candidates, 1, "the failed schema must not produce a candidate")
	assert.Equal(t, "schema-1", candidates[0].SchemaID)
	assert.Equal(t, "art-1", candidates[0].SourceID)
	assert.Equal(t, "Jane Roe", candidates[0].ExtractedData["offender_name"])
}

func TestStage2ExtractStageRejectsWhenNoSchemaCompletes(t *testing.T) {
	row := &models.Stage1Row{ID: "stage1-1"}
	extractor := &fakeStage2Extractor{results: []*models.SchemaExtractionResult{
		{SchemaID: "schema-1", Status: models.Stage2StatusFailed},
	}}
	article := &models.Article{ID: "art-1", Content: "text"}
	stage := &Stage2ExtractStage{
		Articles:  &fakeArticleSource{byID: map[string]*models.Article{"art-1": article}},
		Extractor: extractor,
	}

	state := NewRunState()
	state.Values[stateKeyStage1Row] = row
	result := stage.Run(context.Background(), &ArticleInput{ID: "art-1"}, state)
	assert.Equal(t, models.StageReject, result.Outcome)
}

func TestStage2ExtractStageErrorsWithoutStage1Row(t *testing.T) {
	stage := &Stage2ExtractStage{
		Articles:  &fakeArticleSource{byID: map[string]*models.Article{}},
		Extractor: &fakeStage2Extractor{},
	}
	result := stage.Run(context.Background(), &ArticleInput{ID: "art-1"}, NewRunState())
	assert.Equal(t, models.StageError, result.Outcome)
}
