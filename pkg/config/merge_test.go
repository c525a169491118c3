package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeDomains(t *testing.T) {
	builtin := map[string]DomainConfig{
		"immigration": {
			Slug:           "immigration",
			Name:           "Immigration Enforcement",
			IsActive:       true,
			RelevanceScope: "builtin scope",
			Categories: map[string]CategoryConfig{
				"enforcement-action": {Slug: "enforcement-action", Name: "Enforcement Action", IsActive: true},
			},
		},
	}

	user := map[string]DomainConfig{
		"immigration": {
			Slug:     "immigration",
			IsActive: true,
			Categories: map[string]CategoryConfig{
				"custody-death": {Slug: "custody-death", Name: "Death in Custody", IsActive: true},
			},
		},
		"other-domain": {
			Slug: "other-domain",
			Name: "Other",
		},
	}

	result := mergeDomains(builtin, user)

	assert.Len(t, result, 2)
	assert.Contains(t, result, "immigration")
	// built-in name preserved since user override left Name blank
	assert.Equal(t, "Immigration Enforcement", result["immigration"].Name)
	// categories merged, not replaced wholesale
	assert.Len(t, result["immigration"].Categories, 2)
	assert.Contains(t, result["immigration"].Categories, "enforcement-action")
	assert.Contains(t, result["immigration"].Categories, "custody-death")
	assert.Contains(t, result, "other-domain")
}

func TestMergeDomainsMutationIsolation(t *testing.T) {
	builtin := map[string]DomainConfig{
		"immigration": {
			Slug: "immigration",
			Name: "Immigration Enforcement",
			Categories: map[string]CategoryConfig{
				"enforcement-action": {Slug: "enforcement-action", Name: "Enforcement Action"},
			},
		},
	}

	result := mergeDomains(builtin, nil)
	result["immigration"].Categories["enforcement-action"] = CategoryConfig{Slug: "enforcement-action", Name: "Mutated"}

	// Mutating the merge result must not mutate the built-in source map.
	assert.Equal(t, "Enforcement Action", builtin["immigration"].Categories["enforcement-action"].Name)
}

func TestMergeStages(t *testing.T) {
	builtin := map[string]StageLLMConfig{
		"stage1": {Provider: "hosted", Model: "claude-haiku-4-5", MaxTokens: 4096},
	}
	user := map[string]StageLLMConfig{
		"stage1": {Provider: "local", Model: "llama3", MaxTokens: 2048},
		"stage2": {Provider: "hosted", Model: "claude-sonnet-4-5", MaxTokens: 4096},
	}

	result := mergeStages(builtin, user)

	assert.Len(t, result, 2)
	assert.Equal(t, "local", result["stage1"].Provider)
	assert.Equal(t, "llama3", result["stage1"].Model)
	assert.Equal(t, "hosted", result["stage2"].Provider)
}
