package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

func TestMatchURLEquality(t *testing.T) {
	a := InBatchCandidate{ID: "a", URL: "https://example.com/x", Title: "Foo", Content: "bar"}
	b := InBatchCandidate{ID: "b", URL: "https://example.com/x", Title: "Completely different", Content: "baz"}
	m, ok := Match(DefaultConfig(), a, b, nil)
	assert.True(t, ok)
	assert.Equal(t, models.DedupMethodURL, m.Method)
	assert.Equal(t, 1.0, m.Score)
}

func TestMatchTitleJaccard(t *testing.T) {
	a := InBatchCandidate{ID: "a", Title: "County Sheriff Arrests Local Man After Standoff"}
	b := InBatchCandidate{ID: "b", Title: "County Sheriff Arrests Local Man Following Standoff"}
	m, ok := Match(DefaultConfig(), a, b, nil)
	assert.True(t, ok)
	assert.Equal(t, models.DedupMethodTitleJaccard, m.Method)
}

func TestMatchNoneFound(t *testing.T) {
	a := InBatchCandidate{ID: "a", Title: "Local bakery wins award", Content: "the bakery on main street won"}
	b := InBatchCandidate{ID: "b", Title: "City council votes on budget", Content: "the council approved the budget unanimously"}
	_, ok := Match(DefaultConfig(), a, b, nil)
	assert.False(t, ok)
}

func TestMatchFallsThroughToEntityMatcher(t *testing.T) {
	a := InBatchCandidate{ID: "a", Title: "one", Content: "two"}
	b := InBatchCandidate{ID: "b", Title: "three", Content: "four"}
	called := false
	entityMatch := func(a, b InBatchCandidate) (float64, bool) {
		called = true
		return 0.8, true
	}
	m, ok := Match(DefaultConfig(), a, b, entityMatch)
	assert.True(t, called)
	assert.True(t, ok)
	assert.Equal(t, models.DedupMethodEntity, m.Method)
}

func TestTitleJaccardSymmetric(t *testing.T) {
	a, b := "Breaking News About A Fire Downtown", "Fire Downtown Sparks Evacuation Today"
	assert.InDelta(t, titleJaccard(a, b), titleJaccard(b, a), 1e-9)
}

func TestContentMinHashIdenticalTextScoresOne(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog near the riverbank every single morning"
	cfg := DefaultConfig()
	score := contentMinHashSimilarity(cfg, text, text)
	assert.Equal(t, 1.0, score)
}

func TestContentMinHashSymmetric(t *testing.T) {
	cfg := DefaultConfig()
	a := "police responded to a disturbance call near the downtown plaza late last night"
	b := "officers responded to a disturbance call near the downtown plaza late last night"
	assert.InDelta(t, contentMinHashSimilarity(cfg, a, b), contentMinHashSimilarity(cfg, b, a), 1e-9)
}
