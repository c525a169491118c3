package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsImmediatelyOnPermanentError(t *testing.T) {
	b := NewCircuitBreaker("hosted")
	require.True(t, b.Allow())

	b.RecordFailure(&LLMError{Category: CategoryPermanent, ErrorCode: "credit_balance_too_low"})

	assert.False(t, b.Allow())
	snap := b.Snapshot()
	assert.True(t, snap.Tripped)
	assert.Equal(t, "credit_balance_too_low", snap.TripErrorCode)
}

func TestCircuitBreakerTripsAfterThreeConsecutiveSameCodeTransientErrors(t *testing.T) {
	b := NewCircuitBreaker("hosted")
	b.RecordFailure(&LLMError{Category: CategoryTransient, ErrorCode: "rate_limited"})
	assert.True(t, b.Allow())
	b.RecordFailure(&LLMError{Category: CategoryTransient, ErrorCode: "rate_limited"})
	assert.True(t, b.Allow())
	b.RecordFailure(&LLMError{Category: CategoryTransient, ErrorCode: "rate_limited"})
	assert.False(t, b.Allow(), "the third consecutive identical transient error must trip the breaker")
}

func TestCircuitBreakerDifferentCodeResetsConsecutiveCounter(t *testing.T) {
	b := NewCircuitBreaker("hosted")
	b.RecordFailure(&LLMError{Category: CategoryTransient, ErrorCode: "rate_limited"})
	b.RecordFailure(&LLMError{Category: CategoryTransient, ErrorCode: "server_error"})
	b.RecordFailure(&LLMError{Category: CategoryTransient, ErrorCode: "server_error"})
	assert.True(t, b.Allow(), "a different error code must reset the consecutive streak")
}

func TestCircuitBreakerSuccessResetsConsecutiveCounter(t *testing.T) {
	b := NewCircuitBreaker("hosted")
	b.RecordFailure(&LLMError{Category: CategoryTransient, ErrorCode: "rate_limited"})
	b.RecordFailure(&LLMError{Category: CategoryTransient, ErrorCode: "rate_limited"})
	b.RecordSuccess()
	b.RecordFailure(&LLMError{Category: CategoryTransient, ErrorCode: "rate_limited"})
	b.RecordFailure(&LLMError{Category: CategoryTransient, ErrorCode: "rate_limited"})
	assert.True(t, b.Allow(), "a success must reset the consecutive streak so two more failures don't trip it")
}

func TestCircuitBreakerResetClearsTripState(t *testing.T) {
	b := NewCircuitBreaker("hosted")
	b.RecordFailure(&LLMError{Category: CategoryPermanent, ErrorCode: "invalid_api_key"})
	require.False(t, b.Allow())
	b.Reset()
	assert.True(t, b.Allow())
}

// TestBatchDispatchStopsOnTrippedBreaker is spec.md §8 scenario 5: a
// batch of 50 calls, the 7th returns a permanent 403
// credit-exhausted error. The breaker must trip on that call and the
// remaining 43 must never be dispatched.
func TestBatchDispatchStopsOnTrippedBreaker(t *testing.T) {
	b := NewCircuitBreaker("hosted")
	const batchSize = 50
	const failAt = 7

	dispatched := 0
	var tripReason string
	for i := 1; i <= batchSize; i++ {
		if !b.Allow() {
			break
		}
		dispatched++
		if i == failAt {
			b.RecordFailure(&LLMError{Category: CategoryPermanent, ErrorCode: "credit_balance_too_low", StatusCode: 403})
			tripReason = b.Snapshot().TripReason
			continue
		}
		b.RecordSuccess()
	}

	assert.Equal(t, failAt, dispatched, "dispatch must stop immediately once the breaker trips")
	assert.Equal(t, batchSize-failAt, batchSize-dispatched, "the remaining calls must never be dispatched")
	assert.Contains(t, tripReason, "credit_balance_too_low")
}
