package models

import "time"

// ErrorCategory classifies an LLM call failure for retry/circuit-breaker
// decisions (spec.md §4.4).
type ErrorCategory string

// Error category values.
const (
	ErrorCategoryTransient ErrorCategory = "transient"
	ErrorCategoryPermanent ErrorCategory = "permanent"
	ErrorCategoryPartial   ErrorCategory = "partial"
)

// LLMError is the classified result of a failed provider call. ErrorCode
// is a short stable string (e.g. "rate_limited", "context_length",
// "invalid_api_key") used by the Circuit Breaker to detect repeated
// identical failures.
type LLMError struct {
	Category   ErrorCategory
	ErrorCode  string
	Message    string
	Provider   string
	Retryable  bool
	StatusCode int
	Original   error
}

func (e *LLMError) Error() string {
	return e.Message
}

func (e *LLMError) Unwrap() error {
	return e.Original
}

// CircuitBreakerState is the in-memory trip state for one provider, kept
// by pkg/llm and never persisted (spec.md §4.4: resets on process
// restart).
type CircuitBreakerState struct {
	Provider          string
	Tripped           bool
	TripReason        string
	TripErrorCode     string
	TrippedAt         time.Time
	ConsecutiveCode   string
	ConsecutiveCount  int
	FailureLog        []CircuitBreakerFailure
}

// CircuitBreakerFailure is one entry in a breaker's bounded failure log,
// retained for diagnostics only.
type CircuitBreakerFailure struct {
	At        time.Time
	ErrorCode string
	Category  ErrorCategory
}
