package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBuiltinConfigIsSingleton(t *testing.T) {
	first := GetBuiltinConfig()
	second := GetBuiltinConfig()
	assert.Same(t, first, second)
}

func TestBuiltinConfigHasImmigrationDomain(t *testing.T) {
	builtin := GetBuiltinConfig()

	domain, ok := builtin.Domains["immigration"]
	assert.True(t, ok)
	assert.True(t, domain.IsActive)
	assert.Contains(t, domain.Categories, "enforcement-action")
	assert.Contains(t, domain.Categories, "criminal-justice")
}

func TestBuiltinConfigHasStage1AndStage2(t *testing.T) {
	builtin := GetBuiltinConfig()

	stage1, ok := builtin.Stages["stage1"]
	assert.True(t, ok)
	assert.Equal(t, "hosted", stage1.Provider)
	assert.Greater(t, stage1.MaxTokensCeiling, stage1.MaxTokens)

	stage2, ok := builtin.Stages["stage2"]
	assert.True(t, ok)
	assert.NotEmpty(t, stage2.Model)
}
