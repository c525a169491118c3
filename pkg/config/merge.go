package config

// mergeDomains merges built-in and user-defined domain/category
// taxonomy. A user-defined domain with the same slug as a built-in one
// overrides its Name and RelevanceScope when those are non-empty, and
// always its IsActive flag; categories are merged one level deeper so a
// user can add a category to a built-in domain without restating the
// others.
func mergeDomains(builtinDomains map[string]DomainConfig, userDomains map[string]DomainConfig) map[string]*DomainConfig {
	result := make(map[string]*DomainConfig, len(builtinDomains)+len(userDomains))

	for slug, d := range builtinDomains {
		copied := d
		copied.Categories = copyCategories(d.Categories)
		result[slug] = &copied
	}

	for slug, userDomain := range userDomains {
		existing, ok := result[slug]
		if !ok {
			copied := userDomain
			copied.Categories = copyCategories(userDomain.Categories)
			result[slug] = &copied
			continue
		}
		merged := *existing
		if userDomain.Name != "" {
			merged.Name = userDomain.Name
		}
		if userDomain.RelevanceScope != "" {
			merged.RelevanceScope = userDomain.RelevanceScope
		}
		merged.IsActive = userDomain.IsActive
		for catSlug, cat := range userDomain.Categories {
			merged.Categories[catSlug] = cat
		}
		result[slug] = &merged
	}

	return result
}

func copyCategories(in map[string]CategoryConfig) map[string]CategoryConfig {
	out := make(map[string]CategoryConfig, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// mergeStages merges built-in and user-defined per-stage LLM
// configuration. User-defined stages override built-in stages with the
// same name.
func mergeStages(builtinStages map[string]StageLLMConfig, userStages map[string]StageLLMConfig) map[string]*StageLLMConfig {
	result := make(map[string]*StageLLMConfig, len(builtinStages)+len(userStages))
	for name, s := range builtinStages {
		copied := s
		result[name] = &copied
	}
	for name, s := range userStages {
		copied := s
		result[name] = &copied
	}
	return result
}
