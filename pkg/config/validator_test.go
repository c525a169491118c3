package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	domains := map[string]*DomainConfig{
		"immigration": {
			Slug:     "immigration",
			Name:     "Immigration Enforcement",
			IsActive: true,
			Categories: map[string]CategoryConfig{
				"enforcement-action": {
					Slug:           "enforcement-action",
					Name:           "Enforcement Action",
					RequiredFields: []string{"incident_type"},
					FieldDefinitions: []FieldDefinitionConfig{
						{Name: "incident_type", Type: "string", Critical: true},
					},
					IsActive: true,
				},
			},
		},
	}
	stages := map[string]*StageLLMConfig{
		"stage1": {Provider: "hosted", Model: "claude-haiku-4-5", Temperature: 0.1, MaxTokens: 4096, MaxTokensCeiling: 16384},
	}

	return &Config{
		configDir: "/tmp",
		Defaults: &Defaults{
			StageProvider:                "hosted",
			MinDomainRelevanceConfidence: 0.5,
			AutoApproveConfidence:        0.85,
			AutoRejectConfidence:         0.3,
		},
		Job:       DefaultJobConfig(),
		Stages:    NewStageConfigRegistry(stages),
		Domains:   NewDomainRegistry(domains),
		Retention: DefaultRetentionConfig(),
	}
}

func TestValidateAllSucceedsForValidConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, NewValidator(cfg).ValidateAll())
}

func TestValidateJobRejectsJitterExceedingInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Job.PollInterval = 1 * time.Second
	cfg.Job.PollIntervalJitter = 2 * time.Second

	err := NewValidator(cfg).ValidateAll()
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValidateJobRejectsHeartbeatExceedingStaleThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Job.HeartbeatInterval = 10 * time.Minute
	cfg.Job.StaleThreshold = 5 * time.Minute

	err := NewValidator(cfg).ValidateAll()
	assert.Error(t, err)
}

func TestValidateStagesRequiresStage1(t *testing.T) {
	cfg := validConfig()
	cfg.Stages = NewStageConfigRegistry(map[string]*StageLLMConfig{
		"stage2": {Provider: "hosted", Model: "claude-sonnet-4-5", MaxTokens: 4096},
	})

	err := NewValidator(cfg).ValidateAll()
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestValidateStagesRejectsUnknownProvider(t *testing.T) {
	cfg := validConfig()
	s, _ := cfg.Stages.Get("stage1")
	bad := *s
	bad.Provider = "carrier-pigeon"
	cfg.Stages.Set("stage1", &bad)

	err := NewValidator(cfg).ValidateAll()
	assert.Error(t, err)
}

func TestValidateDomainsRejectsUnreferencedRequiredField(t *testing.T) {
	cfg := validConfig()
	domains := cfg.Domains.GetAll()
	d := domains["immigration"]
	cat := d.Categories["enforcement-action"]
	cat.RequiredFields = append(cat.RequiredFields, "missing_field")
	d.Categories["enforcement-action"] = cat
	cfg.Domains = NewDomainRegistry(domains)

	err := NewValidator(cfg).ValidateAll()
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestValidateDefaultsRejectsRejectThresholdAboveApprove(t *testing.T) {
	cfg := validConfig()
	cfg.Defaults.AutoRejectConfidence = 0.9
	cfg.Defaults.AutoApproveConfidence = 0.5

	err := NewValidator(cfg).ValidateAll()
	assert.Error(t, err)
}

func TestValidateRetentionRejectsZeroDays(t *testing.T) {
	cfg := validConfig()
	cfg.Retention.CompletedJobRetentionDays = 0

	err := NewValidator(cfg).ValidateAll()
	assert.Error(t, err)
}
