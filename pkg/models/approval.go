package models

// ApprovalGate names one step of the ordered decision pipeline in
// spec.md §4.10. Decider records which gate produced a reject so the
// reason is auditable.
type ApprovalGate string

// Approval gate values, evaluated in this order.
const (
	GateRelevance        ApprovalGate = "relevance"
	GateConfidenceFloor  ApprovalGate = "confidence_floor"
	GateRequiredFields   ApprovalGate = "required_fields"
	GateFieldConfidence  ApprovalGate = "field_confidence"
	GateSeverity         ApprovalGate = "severity"
	GateConfidenceBand   ApprovalGate = "confidence_band"
)

// ApprovalOutcome is the Decider's verdict for a curation band (spec.md
// §4.10 "confidence bands": auto-approve, auto-reject, or queue for
// human review).
type ApprovalOutcome string

// Approval outcome values.
const (
	OutcomeAutoApprove ApprovalOutcome = "auto_approve"
	OutcomeAutoReject  ApprovalOutcome = "auto_reject"
	OutcomeNeedsReview ApprovalOutcome = "needs_review"
)

// ApprovalDecision is the result of running the ordered gates against one
// SchemaExtractionResult.
type ApprovalDecision struct {
	Outcome     ApprovalOutcome
	FailedGate  ApprovalGate
	Reason      string
	Confidence  float64
}
