package config

import "time"

// RetentionConfig controls data retention and cleanup behavior.
type RetentionConfig struct {
	// RejectedArticleRetentionDays is how many days to keep rejected
	// articles and their extraction rows before they are purged by the
	// cleanup job.
	RejectedArticleRetentionDays int `yaml:"rejected_article_retention_days"`

	// CompletedJobRetentionDays is how long terminal Job rows stay
	// queryable before the cleanup job deletes them.
	CompletedJobRetentionDays int `yaml:"completed_job_retention_days"`

	// QualitySampleRetentionDays bounds how long reviewed
	// QualitySample rows are kept.
	QualitySampleRetentionDays int `yaml:"quality_sample_retention_days"`

	// CleanupInterval is how often the cleanup job runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		RejectedArticleRetentionDays: 90,
		CompletedJobRetentionDays:    30,
		QualitySampleRetentionDays:   180,
		CleanupInterval:              12 * time.Hour,
	}
}
