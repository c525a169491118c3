package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageConfigRegistrySetOverridesExisting(t *testing.T) {
	r := NewStageConfigRegistry(map[string]*StageLLMConfig{
		"stage1": {Provider: "hosted", Model: "claude-haiku-4-5", MaxTokens: 4096},
	})

	assert.True(t, r.Has("stage1"))
	assert.False(t, r.Has("stage2"))

	r.Set("stage2", &StageLLMConfig{Provider: "local", Model: "llama3", MaxTokens: 2048})

	cfg, err := r.Get("stage2")
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Provider)
	assert.Len(t, r.GetAll(), 2)
}

func TestStageConfigRegistryGetMissing(t *testing.T) {
	r := NewStageConfigRegistry(nil)
	_, err := r.Get("stage1")
	assert.ErrorIs(t, err, ErrStageConfigNotFound)
}
