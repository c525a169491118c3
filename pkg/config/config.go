package config

// Config is the umbrella configuration object that encapsulates all
// registries, defaults, and configuration state. It is the primary
// object returned by Initialize and used throughout the application.
type Config struct {
	configDir string

	Defaults  *Defaults
	Job       *JobConfig
	Stages    *StageConfigRegistry
	Domains   *DomainRegistry
	Retention *RetentionConfig
}

// ConfigStats contains statistics about loaded configuration.
type ConfigStats struct {
	Domains    int
	Categories int
	Stages     int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	categories := 0
	for _, d := range c.Domains.GetAll() {
		categories += len(d.Categories)
	}
	return ConfigStats{
		Domains:    c.Domains.Len(),
		Categories: categories,
		Stages:     len(c.Stages.GetAll()),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetStage retrieves a stage's LLM configuration by name (e.g.
// "stage1", or a schema slug for a Stage 2 override).
func (c *Config) GetStage(name string) (*StageLLMConfig, error) {
	return c.Stages.Get(name)
}

// GetDomain retrieves a domain configuration by slug.
func (c *Config) GetDomain(slug string) (*DomainConfig, error) {
	return c.Domains.Get(slug)
}
