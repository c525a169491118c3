package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// IngestYAMLConfig represents the complete ingest.yaml file structure:
// the taxonomy, per-stage LLM dials, job worker tuning, defaults, and
// retention policy a deployment may override.
type IngestYAMLConfig struct {
	Domains   map[string]DomainConfig   `yaml:"domains"`
	Stages    map[string]StageLLMConfig `yaml:"stages"`
	Defaults  *Defaults                 `yaml:"defaults"`
	Job       *JobConfig                `yaml:"job"`
	Retention *RetentionConfig          `yaml:"retention"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load ingest.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined domains and stages
//  5. Build in-memory registries
//  6. Apply default values
//  7. Validate all configuration
//  8. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"domains", stats.Domains,
		"categories", stats.Categories,
		"stages", stats.Stages)

	return cfg, nil
}

// load is the internal loader (not exported).
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	userConfig, err := loader.loadIngestYAML()
	if err != nil {
		return nil, NewLoadError("ingest.yaml", err)
	}

	builtin := GetBuiltinConfig()

	domains := mergeDomains(builtin.Domains, userConfig.Domains)
	stages := mergeStages(builtin.Stages, userConfig.Stages)

	domainRegistry := NewDomainRegistry(domains)
	stageRegistry := NewStageConfigRegistry(stages)

	defaults := userConfig.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	if defaults.StageProvider == "" {
		defaults.StageProvider = "hosted"
	}
	if defaults.MinDomainRelevanceConfidence == 0 {
		defaults.MinDomainRelevanceConfidence = 0.5
	}
	if defaults.AutoApproveConfidence == 0 {
		defaults.AutoApproveConfidence = 0.85
	}
	if defaults.AutoRejectConfidence == 0 {
		defaults.AutoRejectConfidence = 0.3
	}

	jobConfig := DefaultJobConfig()
	if userConfig.Job != nil {
		if err := mergeJobConfig(jobConfig, userConfig.Job); err != nil {
			return nil, err
		}
	}

	retentionConfig := DefaultRetentionConfig()
	if userConfig.Retention != nil {
		if err := mergeRetentionConfig(retentionConfig, userConfig.Retention); err != nil {
			return nil, err
		}
	}

	return &Config{
		configDir: configDir,
		Defaults:  defaults,
		Job:       jobConfig,
		Stages:    stageRegistry,
		Domains:   domainRegistry,
		Retention: retentionConfig,
	}, nil
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadIngestYAML() (*IngestYAMLConfig, error) {
	config := IngestYAMLConfig{
		Domains: make(map[string]DomainConfig),
		Stages:  make(map[string]StageLLMConfig),
	}

	if err := l.loadYAML("ingest.yaml", &config); err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			// A deployment may run entirely on built-ins.
			return &config, nil
		}
		return nil, err
	}

	return &config, nil
}

// mergeJobConfig overlays user onto base, letting user's non-zero
// fields win; JobTypeTimeouts is merged key-by-key rather than
// replaced wholesale so a user can override one job type's timeout
// without restating the others.
func mergeJobConfig(base *JobConfig, user *JobConfig) error {
	timeouts := user.JobTypeTimeouts
	user.JobTypeTimeouts = nil
	if err := mergo.Merge(base, user, mergo.WithOverride); err != nil {
		return fmt.Errorf("merging job config: %w", err)
	}
	for jobType, timeout := range timeouts {
		base.JobTypeTimeouts[jobType] = timeout
	}
	return nil
}

func mergeRetentionConfig(base *RetentionConfig, user *RetentionConfig) error {
	if err := mergo.Merge(base, user, mergo.WithOverride); err != nil {
		return fmt.Errorf("merging retention config: %w", err)
	}
	return nil
}
