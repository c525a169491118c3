package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

func TestSelectFiltersLowConfidence(t *testing.T) {
	candidates := []Candidate{
		{SourceID: "a", Confidence: 0.1, ExtractedData: map[string]any{"offender_name": "John Smith"}},
	}
	result := Select(candidates)
	assert.Nil(t, result)
}

func TestSelectReturnsNilWhenEmpty(t *testing.T) {
	assert.Nil(t, Select(nil))
}

func TestSelectSoleResult(t *testing.T) {
	candidates := []Candidate{
		{SourceID: "a", SchemaName: "enforcement-action", DomainSlug: "immigration", Confidence: 0.8,
			ExtractedData: map[string]any{"offender_name": "John Smith"}},
	}
	result := Select(candidates)
	require.NotNil(t, result)
	assert.False(t, result.MergeInfo.Merged)
	assert.Equal(t, models.MergeRoleSole, result.MergeInfo.Sources[0].Role)
}

func TestSelectMergesWithinClusterWithoutOverwritingBase(t *testing.T) {
	candidates := []Candidate{
		{
			SourceID: "immigration-result", SchemaName: "ice-enforcement", DomainSlug: "immigration", Confidence: 0.6,
			ExtractedData: map[string]any{
				"offender_name": "John Smith",
				"state":         "TX",
			},
		},
		{
			SourceID: "cj-result", SchemaName: "criminal-case", DomainSlug: "criminal_justice", Confidence: 0.9,
			ExtractedData: map[string]any{
				"offender_name": "John Smith",
				"state":         "OK", // should NOT overwrite the base's non-empty "TX"
				"charges":       []any{"assault"},
			},
		},
	}

	result := Select(candidates)
	require.NotNil(t, result)
	assert.True(t, result.MergeInfo.Merged)
	assert.Equal(t, "TX", result.ExtractedData["state"], "base's non-empty field must never be overwritten by a supplement")
	assert.Equal(t, []any{"assault"}, result.ExtractedData["charges"], "empty base field should be filled from supplement")
}

func TestSelectPrefersClusterWithImmigrationPresence(t *testing.T) {
	candidates := []Candidate{
		// Higher weighted sum (two candidates) but no immigration presence.
		{SourceID: "cj-only", SchemaName: "cj-schema", DomainSlug: "criminal_justice", Confidence: 0.95,
			ExtractedData: map[string]any{"offender_name": "Alice Walker"}},
		{SourceID: "cj-two", SchemaName: "cj-schema-2", DomainSlug: "criminal_justice", Confidence: 0.9,
			ExtractedData: map[string]any{"offender_name": "Alice Walker"}},
		// Lower weighted sum but has immigration presence >= 0.5.
		{SourceID: "imm-a", SchemaName: "imm-schema", DomainSlug: "immigration", Confidence: 0.5,
			ExtractedData: map[string]any{"offender_name": "Bob Jones"}},
	}
	result := Select(candidates)
	require.NotNil(t, result)
	assert.Equal(t, "imm-a", result.MergeInfo.PrimarySourceID)
}

func TestSelectNoCrossContaminationAcrossClusters(t *testing.T) {
	candidates := []Candidate{
		{SourceID: "imm-john", SchemaName: "imm-schema", DomainSlug: "immigration", Confidence: 0.9,
			ExtractedData: map[string]any{"offender_name": "John Smith"}},
		{SourceID: "cj-alice", SchemaName: "cj-schema", DomainSlug: "criminal_justice", Confidence: 0.99,
			ExtractedData: map[string]any{"offender_name": "Alice Walker", "charges": []any{"theft"}}},
	}
	result := Select(candidates)
	require.NotNil(t, result)
	assert.Equal(t, "John Smith", result.ExtractedData["offender_name"])
	_, hasCharges := result.ExtractedData["charges"]
	assert.False(t, hasCharges, "a different person's fields must never leak into the primary cluster's result")
}

func TestNamesMatchLastNameAndFirstInitial(t *testing.T) {
	assert.True(t, namesMatch("john smith", "j smith"))
	assert.False(t, namesMatch("john smith", "alice walker"))
}

func TestNormalizeConfidenceScale(t *testing.T) {
	assert.Equal(t, 0.85, Normalize(85))
	assert.Equal(t, 0.5, Normalize(0.5))
}
