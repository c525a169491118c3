package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStats(t *testing.T) {
	cfg := validConfig()
	stats := cfg.Stats()

	assert.Equal(t, 1, stats.Domains)
	assert.Equal(t, 1, stats.Categories)
	assert.Equal(t, 1, stats.Stages)
}

func TestConfigGetStageNotFound(t *testing.T) {
	cfg := validConfig()
	_, err := cfg.GetStage("nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStageConfigNotFound)
}

func TestConfigGetDomainNotFound(t *testing.T) {
	cfg := validConfig()
	_, err := cfg.GetDomain("nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDomainNotFound)
}

func TestConfigDir(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "/tmp", cfg.ConfigDir())
}
