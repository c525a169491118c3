package config

import (
	"fmt"
)

// Validator validates configuration comprehensively with clear error
// messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at
// first error). Validated in dependency order: job → stages → domains
// → defaults → retention.
func (v *Validator) ValidateAll() error {
	if err := v.validateJob(); err != nil {
		return fmt.Errorf("job validation failed: %w", err)
	}

	if err := v.validateStages(); err != nil {
		return fmt.Errorf("stage validation failed: %w", err)
	}

	if err := v.validateDomains(); err != nil {
		return fmt.Errorf("domain validation failed: %w", err)
	}

	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}

	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}

	return nil
}

func (v *Validator) validateJob() error {
	j := v.cfg.Job
	if j == nil {
		return fmt.Errorf("job configuration is nil")
	}

	if j.WorkerCount < 1 || j.WorkerCount > 50 {
		return NewValidationError("job", "worker_count", "", fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidValue, j.WorkerCount))
	}
	if j.MaxConcurrentPerQueue < 1 {
		return NewValidationError("job", "max_concurrent_per_queue", "", fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidValue, j.MaxConcurrentPerQueue))
	}
	if j.PollInterval <= 0 {
		return NewValidationError("job", "poll_interval", "", fmt.Errorf("%w: must be positive, got %v", ErrInvalidValue, j.PollInterval))
	}
	if j.PollIntervalJitter < 0 {
		return NewValidationError("job", "poll_interval_jitter", "", fmt.Errorf("%w: must be non-negative, got %v", ErrInvalidValue, j.PollIntervalJitter))
	}
	if j.PollIntervalJitter >= j.PollInterval {
		return NewValidationError("job", "poll_interval_jitter", "", fmt.Errorf("%w: must be less than poll_interval, got jitter=%v interval=%v", ErrInvalidValue, j.PollIntervalJitter, j.PollInterval))
	}
	if j.DefaultJobTimeout <= 0 {
		return NewValidationError("job", "default_job_timeout", "", fmt.Errorf("%w: must be positive, got %v", ErrInvalidValue, j.DefaultJobTimeout))
	}
	for jobType, timeout := range j.JobTypeTimeouts {
		if timeout <= 0 {
			return NewValidationError("job", "job_type_timeouts", jobType, fmt.Errorf("%w: must be positive, got %v", ErrInvalidValue, timeout))
		}
	}
	if j.HeartbeatInterval <= 0 {
		return NewValidationError("job", "heartbeat_interval", "", fmt.Errorf("%w: must be positive, got %v", ErrInvalidValue, j.HeartbeatInterval))
	}
	if j.HeartbeatInterval >= j.StaleThreshold {
		return NewValidationError("job", "heartbeat_interval", "", fmt.Errorf("%w: must be less than stale_threshold to prevent false stale detection, got heartbeat=%v threshold=%v", ErrInvalidValue, j.HeartbeatInterval, j.StaleThreshold))
	}
	if j.GracefulShutdownTimeout <= 0 {
		return NewValidationError("job", "graceful_shutdown_timeout", "", fmt.Errorf("%w: must be positive, got %v", ErrInvalidValue, j.GracefulShutdownTimeout))
	}
	if j.StaleSweepInterval <= 0 {
		return NewValidationError("job", "stale_sweep_interval", "", fmt.Errorf("%w: must be positive, got %v", ErrInvalidValue, j.StaleSweepInterval))
	}
	if j.StaleThreshold <= 0 {
		return NewValidationError("job", "stale_threshold", "", fmt.Errorf("%w: must be positive, got %v", ErrInvalidValue, j.StaleThreshold))
	}

	return nil
}

func (v *Validator) validateStages() error {
	stages := v.cfg.Stages.GetAll()
	if len(stages) == 0 {
		return fmt.Errorf("%w: at least one stage must be configured", ErrMissingRequiredField)
	}

	for name, s := range stages {
		if s.Provider == "" {
			return NewValidationError("stage", name, "provider", ErrMissingRequiredField)
		}
		if s.Provider != "hosted" && s.Provider != "local" {
			return NewValidationError("stage", name, "provider", fmt.Errorf("%w: must be 'hosted' or 'local', got %q", ErrInvalidValue, s.Provider))
		}
		if s.Model == "" {
			return NewValidationError("stage", name, "model", ErrMissingRequiredField)
		}
		if s.Temperature < 0 || s.Temperature > 1 {
			return NewValidationError("stage", name, "temperature", fmt.Errorf("%w: must be between 0 and 1, got %v", ErrInvalidValue, s.Temperature))
		}
		if s.MaxTokens < 1 {
			return NewValidationError("stage", name, "max_tokens", fmt.Errorf("%w: must be positive, got %d", ErrInvalidValue, s.MaxTokens))
		}
		if s.MaxTokensCeiling > 0 && s.MaxTokensCeiling < s.MaxTokens {
			return NewValidationError("stage", name, "max_tokens_ceiling", fmt.Errorf("%w: must be >= max_tokens, got ceiling=%d max_tokens=%d", ErrInvalidValue, s.MaxTokensCeiling, s.MaxTokens))
		}
	}

	if _, err := v.cfg.Stages.Get("stage1"); err != nil {
		return fmt.Errorf("%w: a 'stage1' LLM configuration is required", ErrMissingRequiredField)
	}

	return nil
}

func (v *Validator) validateDomains() error {
	domains := v.cfg.Domains.GetAll()
	if len(domains) == 0 {
		return fmt.Errorf("%w: at least one domain must be configured", ErrMissingRequiredField)
	}

	for slug, d := range domains {
		if d.Slug != slug {
			return NewValidationError("domain", slug, "slug", fmt.Errorf("%w: key %q does not match slug %q", ErrInvalidReference, slug, d.Slug))
		}
		if d.Name == "" {
			return NewValidationError("domain", slug, "name", ErrMissingRequiredField)
		}
		if len(d.Categories) == 0 {
			return NewValidationError("domain", slug, "categories", fmt.Errorf("%w: domain must define at least one category", ErrMissingRequiredField))
		}
		for catSlug, cat := range d.Categories {
			if err := v.validateCategory(slug, catSlug, cat); err != nil {
				return err
			}
		}
	}

	return nil
}

func (v *Validator) validateCategory(domainSlug, catSlug string, cat CategoryConfig) error {
	component := fmt.Sprintf("domain/%s/category", domainSlug)

	if cat.Slug != catSlug {
		return NewValidationError(component, catSlug, "slug", fmt.Errorf("%w: key %q does not match slug %q", ErrInvalidReference, catSlug, cat.Slug))
	}
	if cat.Name == "" {
		return NewValidationError(component, catSlug, "name", ErrMissingRequiredField)
	}
	if len(cat.RequiredFields) == 0 {
		return NewValidationError(component, catSlug, "required_fields", fmt.Errorf("%w: category must require at least one field", ErrMissingRequiredField))
	}

	defined := make(map[string]bool, len(cat.FieldDefinitions))
	for _, fd := range cat.FieldDefinitions {
		if fd.Name == "" {
			return NewValidationError(component, catSlug, "field_definitions", ErrMissingRequiredField)
		}
		defined[fd.Name] = true
	}
	for _, name := range cat.RequiredFields {
		if !defined[name] {
			return NewValidationError(component, catSlug, "required_fields", fmt.Errorf("%w: field %q has no field_definitions entry", ErrInvalidReference, name))
		}
	}
	for _, name := range cat.OptionalFields {
		if !defined[name] {
			return NewValidationError(component, catSlug, "optional_fields", fmt.Errorf("%w: field %q has no field_definitions entry", ErrInvalidReference, name))
		}
	}

	return nil
}

func (v *Validator) validateDefaults() error {
	d := v.cfg.Defaults
	if d == nil {
		return fmt.Errorf("defaults configuration is nil")
	}

	if d.StageProvider != "hosted" && d.StageProvider != "local" {
		return NewValidationError("defaults", "stage_provider", "", fmt.Errorf("%w: must be 'hosted' or 'local', got %q", ErrInvalidValue, d.StageProvider))
	}
	if d.MinDomainRelevanceConfidence < 0 || d.MinDomainRelevanceConfidence > 1 {
		return NewValidationError("defaults", "min_domain_relevance_confidence", "", fmt.Errorf("%w: must be between 0 and 1, got %v", ErrInvalidValue, d.MinDomainRelevanceConfidence))
	}
	if d.AutoApproveConfidence < 0 || d.AutoApproveConfidence > 1 {
		return NewValidationError("defaults", "auto_approve_confidence", "", fmt.Errorf("%w: must be between 0 and 1, got %v", ErrInvalidValue, d.AutoApproveConfidence))
	}
	if d.AutoRejectConfidence < 0 || d.AutoRejectConfidence > 1 {
		return NewValidationError("defaults", "auto_reject_confidence", "", fmt.Errorf("%w: must be between 0 and 1, got %v", ErrInvalidValue, d.AutoRejectConfidence))
	}
	if d.AutoRejectConfidence >= d.AutoApproveConfidence {
		return NewValidationError("defaults", "auto_reject_confidence", "", fmt.Errorf("%w: must be less than auto_approve_confidence, got reject=%v approve=%v", ErrInvalidValue, d.AutoRejectConfidence, d.AutoApproveConfidence))
	}

	return nil
}

func (v *Validator) validateRetention() error {
	r := v.cfg.Retention
	if r == nil {
		return fmt.Errorf("retention configuration is nil")
	}

	if r.RejectedArticleRetentionDays < 1 {
		return NewValidationError("retention", "rejected_article_retention_days", "", fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidValue, r.RejectedArticleRetentionDays))
	}
	if r.CompletedJobRetentionDays < 1 {
		return NewValidationError("retention", "completed_job_retention_days", "", fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidValue, r.CompletedJobRetentionDays))
	}
	if r.QualitySampleRetentionDays < 1 {
		return NewValidationError("retention", "quality_sample_retention_days", "", fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidValue, r.QualitySampleRetentionDays))
	}
	if r.CleanupInterval <= 0 {
		return NewValidationError("retention", "cleanup_interval", "", fmt.Errorf("%w: must be positive, got %v", ErrInvalidValue, r.CleanupInterval))
	}

	return nil
}
