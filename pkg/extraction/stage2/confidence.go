package stage2

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

const (
	optionalFieldBonus    = 0.15
	fieldWeight           = 0.6
	llmWeight             = 0.4
	maxCrossFieldPenalty  = 0.3
	crossFieldPenaltyEach = 0.15
)

// coerceFields converts each field present in data to the type its
// FieldDefinition declares (string, int, float, bool, list), leaving
// values that cannot be coerced as the LLM returned them.
func coerceFields(schema *models.ExtractionSchema, data map[string]any) {
	for _, fd := range schema.FieldDefinitions {
		v, ok := data[fd.Name]
		if !ok || v == nil {
			continue
		}
		data[fd.Name] = coerceValue(fd.Type, v)
	}
}

func coerceValue(fieldType string, v any) any {
	switch fieldType {
	case "int":
		switch n := v.(type) {
		case float64:
			return int(n)
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return i
			}
		}
	case "float":
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	case "bool":
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}
	case "list":
		if s, ok := v.(string); ok && s != "" {
			return []any{s}
		}
	}
	return v
}

// computeConfidence implements spec.md §4.7's confidence formula:
// required-field presence (critical fields double-weighted), an
// optional-field bonus up to +0.15, blended with an LLM-reported
// confidence (0.6 field / 0.4 LLM, or 1.0 / 0.0 absent), then
// cross-field penalties capped at 0.3. Also returns validation_errors
// for every missing required field.
func computeConfidence(schema *models.ExtractionSchema, data map[string]any, llmConfidence float64, hasLLMConfidence bool) (float64, []string) {
	critical := make(map[string]bool, len(schema.FieldDefinitions))
	for _, fd := range schema.FieldDefinitions {
		if fd.Critical {
			critical[fd.Name] = true
		}
	}

	var validationErrors []string
	totalWeight, presentWeight := 0.0, 0.0
	for _, field := range schema.RequiredFields {
		weight := 1.0
		if critical[field] {
			weight = 2.0
		}
		totalWeight += weight
		if fieldPresent(data, field) {
			presentWeight += weight
		} else {
			validationErrors = append(validationErrors, fmt.Sprintf("missing required field %q", field))
		}
	}

	fieldScore := 1.0
	if totalWeight > 0 {
		fieldScore = presentWeight / totalWeight
	}

	if len(schema.OptionalFields) > 0 {
		present := 0
		for _, field := range schema.OptionalFields {
			if fieldPresent(data, field) {
				present++
			}
		}
		fieldScore += optionalFieldBonus * float64(present) / float64(len(schema.OptionalFields))
	}
	fieldScore = clamp01(fieldScore)

	blended := fieldScore
	if hasLLMConfidence {
		blended = fieldWeight*fieldScore + llmWeight*clamp01(llmConfidence)
	}

	blended -= crossFieldPenalty(data)
	return clamp01(blended), validationErrors
}

func fieldPresent(data map[string]any, field string) bool {
	v, ok := data[field]
	if !ok || v == nil {
		return false
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	}
	return true
}

// crossFieldPenalty applies spec.md §4.7's cross-field checks — dates
// must be chronologically consistent, a "convicted" disposition
// requires non-empty charges — capped at 0.3 total.
func crossFieldPenalty(data map[string]any) float64 {
	penalty := 0.0
	if !datesChronological(data) {
		penalty += crossFieldPenaltyEach
	}
	if convictedWithoutCharges(data) {
		penalty += crossFieldPenaltyEach
	}
	if penalty > maxCrossFieldPenalty {
		penalty = maxCrossFieldPenalty
	}
	return penalty
}

func datesChronological(data map[string]any) bool {
	incidentDate, hasIncident := parseDateField(data, "incident_date")
	arrestDate, hasArrest := parseDateField(data, "arrest_date")
	convictionDate, hasConviction := parseDateField(data, "conviction_date")

	if hasIncident && hasArrest && arrestDate.Before(incidentDate) {
		return false
	}
	if hasArrest && hasConviction && convictionDate.Before(arrestDate) {
		return false
	}
	if hasIncident && hasConviction && convictionDate.Before(incidentDate) {
		return false
	}
	return true
}

func convictedWithoutCharges(data map[string]any) bool {
	disposition, _ := data["disposition"].(string)
	if !strings.EqualFold(strings.TrimSpace(disposition), "convicted") {
		return false
	}
	charges, ok := data["charges"]
	if !ok {
		return true
	}
	switch c := charges.(type) {
	case string:
		return strings.TrimSpace(c) == ""
	case []any:
		return len(c) == 0
	case nil:
		return true
	}
	return false
}

func parseDateField(data map[string]any, key string) (time.Time, bool) {
	raw, ok := data[key]
	if !ok {
		return time.Time{}, false
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
