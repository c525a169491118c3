// Package approval implements the ordered-gate curation decision
// described in spec.md §4.10: given a Stage 2 extraction result, decide
// whether it should be auto-approved, auto-rejected, or routed to a
// human reviewer.
package approval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sentinelcore/ingestcore/pkg/config"
	"github.com/sentinelcore/ingestcore/pkg/models"
)

// Thresholds bundles the tunable gate values a category can override at
// runtime. Zero numeric values fall back to the built-in gate defaults
// used in Decide; the boolean switches are taken as given.
type Thresholds struct {
	AutoRejectBelow          float64
	FieldConfidenceMin       float64
	MaxSeverityAutoReject    int
	MinSeverityAutoApprove   int
	ConfidenceBand           float64
	MinConfidenceReview      float64
	AutoApproveEnabled       bool
	AutoRejectEnabled        bool
	SeverityGateEnabled      bool
}

// Input is the normalized view of one extraction the Decider evaluates.
// The caller (pkg/pipeline) is responsible for flattening
// SchemaExtractionResult.ExtractedData into this shape per spec.md §4.10
// step 3.
type Input struct {
	IsRelevant       bool
	OverallConfidence float64
	IncidentType     string
	State            string
	Date             string
	RequiredFields   []string
	FieldConfidence  map[string]float64
	FieldValues      map[string]any
	Category         models.LegacyCategory
	// IsDomainCategory marks extractions routed through a schema-driven
	// domain category (rather than the legacy enforcement/crime split).
	// Domain categories disable the severity gate the same way
	// enforcement does (spec.md §4.10 step 6).
	IsDomainCategory bool
}

// Decider evaluates the ordered gates of spec.md §4.10.
type Decider struct {
	defaults *config.Defaults
	severity severityTable
}

// NewDecider constructs a Decider from process-wide defaults.
func NewDecider(defaults *config.Defaults) *Decider {
	return &Decider{defaults: defaults, severity: defaultSeverityTable()}
}

// Decide runs the gates in spec-mandated order, returning on the first
// applicable one (spec.md §4.10 "first applicable wins").
func (d *Decider) Decide(in Input, th Thresholds) models.ApprovalDecision {
	// Gate 1: relevance.
	if !in.IsRelevant && th.AutoRejectEnabled {
		return reject(models.GateRelevance, "extraction marked not relevant", in.OverallConfidence)
	}

	// Gate 2: hard confidence floor.
	rejectBelow := orDefault(th.AutoRejectBelow, 0.30)
	if in.OverallConfidence < rejectBelow && th.AutoRejectEnabled {
		return reject(models.GateConfidenceFloor,
			fmt.Sprintf("overall confidence %.2f below auto-reject floor %.2f", in.OverallConfidence, rejectBelow),
			in.OverallConfidence)
	}

	// Gate 3 (normalization) is the caller's responsibility before Decide
	// is invoked; Input is already the normalized shape.

	// Gate 4: required fields.
	required := resolveRequiredFields(in.RequiredFields)
	var missing []string
	for _, f := range required {
		if !hasField(in, f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return models.ApprovalDecision{
			Outcome:    models.OutcomeNeedsReview,
			FailedGate: models.GateRequiredFields,
			Reason:     "missing required fields: " + strings.Join(missing, ", "),
			Confidence: in.OverallConfidence,
		}
	}

	// Gate 5: per-field confidence.
	fieldMin := orDefault(th.FieldConfidenceMin, fieldConfidenceDefault(in.Category))
	var lowConfidence []string
	for _, f := range required {
		if c, ok := in.FieldConfidence[f]; ok && c < fieldMin {
			lowConfidence = append(lowConfidence, f)
		}
	}
	if len(lowConfidence) > 0 {
		sort.Strings(lowConfidence)
		return models.ApprovalDecision{
			Outcome:    models.OutcomeNeedsReview,
			FailedGate: models.GateFieldConfidence,
			Reason:     "low confidence fields: " + strings.Join(lowConfidence, ", "),
			Confidence: in.OverallConfidence,
		}
	}

	// Gate 6: severity, disabled for enforcement/domain categories
	// (spec.md §4.10 step 6 parenthetical).
	severity := d.severity.scoreFor(in.IncidentType)
	severityGateApplies := th.SeverityGateEnabled && in.Category != models.LegacyCategoryEnforcement && !in.IsDomainCategory
	if severityGateApplies {
		maxAutoReject := intOrDefault(th.MaxSeverityAutoReject, 3)
		if severity <= maxAutoReject && th.AutoRejectEnabled {
			return reject(models.GateSeverity, fmt.Sprintf("severity %d at or below auto-reject ceiling %d", severity, maxAutoReject), in.OverallConfidence)
		}
	}

	// Gate 7: confidence bands.
	approveThreshold := orDefault(th.ConfidenceBand, confidenceBandDefault(in.Category))
	minSeverityApprove := intOrDefault(th.MinSeverityAutoApprove, 3)
	severitySatisfiesApprove := !severityGateApplies || severity >= minSeverityApprove

	if in.OverallConfidence >= approveThreshold && severitySatisfiesApprove && th.AutoApproveEnabled {
		return models.ApprovalDecision{
			Outcome:    models.OutcomeAutoApprove,
			Confidence: in.OverallConfidence,
			Reason:     "confidence and severity bands satisfied",
		}
	}

	minReview := orDefault(th.MinConfidenceReview, 0.50)
	if in.OverallConfidence >= minReview {
		return models.ApprovalDecision{
			Outcome:    models.OutcomeNeedsReview,
			FailedGate: models.GateConfidenceBand,
			Reason:     "confidence insufficient for auto-approve",
			Confidence: in.OverallConfidence,
		}
	}

	return models.ApprovalDecision{
		Outcome:    models.OutcomeNeedsReview,
		FailedGate: models.GateConfidenceBand,
		Reason:     "evaluation complete",
		Confidence: in.OverallConfidence,
	}
}

func reject(gate models.ApprovalGate, reason string, confidence float64) models.ApprovalDecision {
	return models.ApprovalDecision{
		Outcome:    models.OutcomeAutoReject,
		FailedGate: gate,
		Reason:     reason,
		Confidence: confidence,
	}
}

// resolveRequiredFields folds in the universal minimums {date, state}
// that always apply regardless of category configuration (spec.md
// §4.10 step 4).
func resolveRequiredFields(configured []string) []string {
	seen := map[string]bool{"date": true, "state": true}
	out := []string{"date", "state"}
	for _, f := range configured {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func hasField(in Input, field string) bool {
	switch field {
	case "date":
		return in.Date != ""
	case "state":
		return in.State != ""
	case "incident_type":
		return in.IncidentType != ""
	}
	v, ok := in.FieldValues[field]
	if !ok {
		return false
	}
	switch val := v.(type) {
	case string:
		return val != ""
	case nil:
		return false
	default:
		return true
	}
}

func fieldConfidenceDefault(cat models.LegacyCategory) float64 {
	if cat == models.LegacyCategoryEnforcement {
		return 0.75
	}
	return 0.70
}

func confidenceBandDefault(cat models.LegacyCategory) float64 {
	if cat == models.LegacyCategoryEnforcement {
		return 0.90
	}
	return 0.85
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func intOrDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
