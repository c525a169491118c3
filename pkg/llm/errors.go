package llm

import (
	"context"
	"errors"
	"net"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// LLMError is the classified result of a failed provider call.
type LLMError = models.LLMError

// ErrorCategory aliases models.ErrorCategory for package-local readability.
type ErrorCategory = models.ErrorCategory

// Error categories, re-exported from models for call sites that only
// import pkg/llm.
const (
	CategoryTransient = models.ErrorCategoryTransient
	CategoryPermanent = models.ErrorCategoryPermanent
	CategoryPartial   = models.ErrorCategoryPartial
)

// Classify turns a raw provider error into an LLMError, deciding
// transient vs. permanent the way the teacher's Anthropic client does:
// context cancellation is never retryable, network timeouts and 429/5xx
// are transient, and anything else from the API is permanent (spec.md
// §4.4).
func Classify(provider string, err error) *LLMError {
	if err == nil {
		return nil
	}

	var already *LLMError
	if errors.As(err, &already) {
		return already
	}

	if errors.Is(err, context.Canceled) {
		return &LLMError{Category: CategoryPermanent, ErrorCode: "cancelled", Message: err.Error(), Provider: provider, Retryable: false, Original: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &LLMError{Category: CategoryTransient, ErrorCode: "timeout", Message: err.Error(), Provider: provider, Retryable: true, Original: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &LLMError{Category: CategoryTransient, ErrorCode: "network_timeout", Message: err.Error(), Provider: provider, Retryable: true, Original: err}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		switch {
		case code == 429:
			return &LLMError{Category: CategoryTransient, ErrorCode: "rate_limited", Message: err.Error(), Provider: provider, Retryable: true, StatusCode: code, Original: err}
		case code >= 500:
			return &LLMError{Category: CategoryTransient, ErrorCode: "server_error", Message: err.Error(), Provider: provider, Retryable: true, StatusCode: code, Original: err}
		case code == 401 || code == 403:
			return &LLMError{Category: CategoryPermanent, ErrorCode: "invalid_api_key", Message: err.Error(), Provider: provider, Retryable: false, StatusCode: code, Original: err}
		case code == 400:
			return &LLMError{Category: CategoryPermanent, ErrorCode: "invalid_request", Message: err.Error(), Provider: provider, Retryable: false, StatusCode: code, Original: err}
		default:
			return &LLMError{Category: CategoryPermanent, ErrorCode: "api_error", Message: err.Error(), Provider: provider, Retryable: false, StatusCode: code, Original: err}
		}
	}

	return &LLMError{Category: CategoryTransient, ErrorCode: "unknown", Message: err.Error(), Provider: provider, Retryable: true, Original: err}
}

// ClassifyHTTPStatus classifies a plain HTTP-backed provider's failure
// (the local/Ollama-compatible provider has no typed SDK error like
// anthropic.Error) by status code alone.
func ClassifyHTTPStatus(provider string, statusCode int, body string) *LLMError {
	switch {
	case statusCode == 429:
		return &LLMError{Category: CategoryTransient, ErrorCode: "rate_limited", Message: body, Provider: provider, Retryable: true, StatusCode: statusCode}
	case statusCode >= 500:
		return &LLMError{Category: CategoryTransient, ErrorCode: "server_error", Message: body, Provider: provider, Retryable: true, StatusCode: statusCode}
	case statusCode == 400 || statusCode == 422:
		return &LLMError{Category: CategoryPermanent, ErrorCode: "invalid_request", Message: body, Provider: provider, Retryable: false, StatusCode: statusCode}
	case statusCode == 401 || statusCode == 403:
		return &LLMError{Category: CategoryPermanent, ErrorCode: "invalid_api_key", Message: body, Provider: provider, Retryable: false, StatusCode: statusCode}
	default:
		return &LLMError{Category: CategoryPermanent, ErrorCode: "api_error", Message: body, Provider: provider, Retryable: false, StatusCode: statusCode}
	}
}
