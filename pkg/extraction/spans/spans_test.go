package spans

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

const article = "Jane Roe was arrested in Springfield on Tuesday after a lengthy investigation."

func TestValidateKeepsExactMatch(t *testing.T) {
	span := models.SourceSpan{Start: 0, End: len("Jane Roe"), Text: "Jane Roe", Field: "offender_name"}
	got := Validate(article, []models.SourceSpan{span})
	assert.Equal(t, []models.SourceSpan{span}, got)
}

func TestValidateIsCaseAndWhitespaceInsensitive(t *testing.T) {
	span := models.SourceSpan{Start: 0, End: len("Jane Roe"), Text: "  JANE   ROE ", Field: "offender_name"}
	got := Validate(article, []models.SourceSpan{span})
	assert.Len(t, got, 1)
}

func TestValidateDropsMismatchedText(t *testing.T) {
	span := models.SourceSpan{Start: 0, End: len("Jane Roe"), Text: "John Doe", Field: "offender_name"}
	got := Validate(article, []models.SourceSpan{span})
	assert.Empty(t, got)
}

func TestValidateDropsOutOfBounds(t *testing.T) {
	cases := []models.SourceSpan{
		{Start: -1, End: 5, Text: article[:5]},
		{Start: 5, End: 5, Text: ""},
		{Start: 10, End: 5, Text: ""},
		{Start: 0, End: len(article) + 1, Text: article},
	}
	got := Validate(article, cases)
	assert.Empty(t, got)
}

func TestValidatePreservesOrderAndDropsOnlyInvalid(t *testing.T) {
	valid1 := models.SourceSpan{Start: 0, End: len("Jane Roe"), Text: "Jane Roe"}
	invalid := models.SourceSpan{Start: -5, End: 2, Text: "xx"}
	valid2 := models.SourceSpan{Start: 25, End: 36, Text: "Springfield"}
	got := Validate(article, []models.SourceSpan{valid1, invalid, valid2})
	assert.Equal(t, []models.SourceSpan{valid1, valid2}, got)
}
