package config

import (
	"fmt"
	"sync"
)

// StageLLMConfig defines the model/temperature/token-budget LLM settings
// for one extraction stage (or one schema's Stage 2 override). Field
// definitions and prompts themselves live in the persisted
// ExtractionSchema row; this is the process-local dial set (spec.md
// §4.5, §4.7 "per-stage config overrides").
type StageLLMConfig struct {
	Provider    string `yaml:"provider" validate:"required"`
	Model       string `yaml:"model" validate:"required"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int    `yaml:"max_tokens" validate:"required,min=256"`

	// MaxTokensCeiling bounds the adaptive doubling retry used when
	// Stage 1 output is truncated (spec.md §4.6).
	MaxTokensCeiling int `yaml:"max_tokens_ceiling"`
}

// StageConfigRegistry stores per-stage LLM configuration in memory with
// thread-safe, copy-on-read access, mirroring the teacher's provider
// registry pattern.
type StageConfigRegistry struct {
	stages map[string]*StageLLMConfig
	mu     sync.RWMutex
}

// NewStageConfigRegistry creates a registry from a defensively-copied map.
func NewStageConfigRegistry(stages map[string]*StageLLMConfig) *StageConfigRegistry {
	copied := make(map[string]*StageLLMConfig, len(stages))
	for k, v := range stages {
		copied[k] = v
	}
	return &StageConfigRegistry{stages: copied}
}

// Get retrieves a stage's LLM configuration by name (e.g. "stage1", or
// a schema slug for a Stage 2 override).
func (r *StageConfigRegistry) Get(name string) (*StageLLMConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, exists := r.stages[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStageConfigNotFound, name)
	}
	return cfg, nil
}

// GetAll returns a copy of all stage configurations.
func (r *StageConfigRegistry) GetAll() map[string]*StageLLMConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]*StageLLMConfig, len(r.stages))
	for k, v := range r.stages {
		result[k] = v
	}
	return result
}

// Has reports whether name has an explicit override in the registry.
func (r *StageConfigRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.stages[name]
	return exists
}

// Set installs or replaces name's configuration.
func (r *StageConfigRegistry) Set(name string, cfg *StageLLMConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[name] = cfg
}
