package config

// Defaults contains system-wide default configurations, used when a
// domain, category, or schema doesn't specify its own value.
type Defaults struct {
	// StageProvider names a default provider ("hosted" or "local"). It is
	// defaulted to "hosted" and validated at load; nothing else reads it.
	StageProvider string `yaml:"stage_provider,omitempty"`

	// MinDomainRelevanceConfidence is the floor applied to Stage 1's
	// domain_relevance output before a domain is considered in scope
	// for Stage 2 routing (spec.md §4.7 step 2).
	MinDomainRelevanceConfidence float64 `yaml:"min_domain_relevance_confidence"`

	// AutoApproveConfidence and AutoRejectConfidence are defaulted and
	// validated at load (reject must be below approve). approval.Decider
	// does not read them: its fallbacks for unset thresholds are its own
	// built-in constants.
	AutoApproveConfidence float64 `yaml:"auto_approve_confidence"`
	AutoRejectConfidence  float64 `yaml:"auto_reject_confidence"`
}
