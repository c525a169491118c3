package config

import "sync"

// BuiltinConfig holds all built-in configuration data: the default
// domain/category taxonomy and the default per-stage LLM dials. User
// YAML overrides this on load (see loader.go).
type BuiltinConfig struct {
	Domains map[string]DomainConfig
	Stages  map[string]StageLLMConfig
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration
// (thread-safe, lazy-initialized).
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		Domains: initBuiltinDomains(),
		Stages:  initBuiltinStages(),
	}
}

func initBuiltinDomains() map[string]DomainConfig {
	return map[string]DomainConfig{
		"immigration": {
			Slug:           "immigration",
			Name:           "Immigration Enforcement",
			IsActive:       true,
			RelevanceScope: "incidents involving immigration enforcement, detention, deportation, or immigration status",
			Categories: map[string]CategoryConfig{
				"enforcement-action": {
					Slug: "enforcement-action",
					Name: "Enforcement Action",
					RequiredFields: []string{
						"incident_type", "date", "location", "agency",
					},
					OptionalFields: []string{
						"offender_name", "offender_immigration_status", "prior_deportations",
					},
					FieldDefinitions: []FieldDefinitionConfig{
						{Name: "incident_type", Type: "string", Critical: true},
						{Name: "date", Type: "date", Critical: true},
						{Name: "location", Type: "string", Critical: true},
						{Name: "agency", Type: "string", Critical: false},
						{Name: "offender_name", Type: "string", Critical: false},
						{Name: "offender_immigration_status", Type: "string", Critical: false},
						{Name: "prior_deportations", Type: "int", Critical: false},
					},
					IsActive: true,
				},
				"criminal-justice": {
					Slug: "criminal-justice",
					Name: "Criminal Justice Involving Immigration Status",
					RequiredFields: []string{
						"incident_type", "date", "location", "offense",
					},
					OptionalFields: []string{
						"victim_name", "offender_name", "offender_immigration_status", "gang_affiliation",
					},
					FieldDefinitions: []FieldDefinitionConfig{
						{Name: "incident_type", Type: "string", Critical: true},
						{Name: "date", Type: "date", Critical: true},
						{Name: "location", Type: "string", Critical: true},
						{Name: "offense", Type: "string", Critical: true},
						{Name: "victim_name", Type: "string", Critical: false},
						{Name: "offender_name", Type: "string", Critical: false},
						{Name: "offender_immigration_status", Type: "string", Critical: false},
						{Name: "gang_affiliation", Type: "string", Critical: false},
					},
					IsActive: true,
				},
			},
		},
	}
}

func initBuiltinStages() map[string]StageLLMConfig {
	return map[string]StageLLMConfig{
		"stage1": {
			Provider:         "hosted",
			Model:            "claude-haiku-4-5",
			Temperature:      0.1,
			MaxTokens:        4096,
			MaxTokensCeiling: 16384,
		},
		"stage2": {
			Provider:         "hosted",
			Model:            "claude-sonnet-4-5",
			Temperature:      0.1,
			MaxTokens:        4096,
			MaxTokensCeiling: 16384,
		},
	}
}
