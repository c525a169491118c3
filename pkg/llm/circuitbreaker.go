package llm

import (
	"sync"
	"time"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// CircuitBreaker tracks failures for one provider and trips to stop
// sending it further work. State is in-memory only and resets on
// process restart (spec.md §4.4); it is never persisted, unlike job and
// extraction state.
//
// Trip rules: a single permanent error trips immediately; three
// consecutive transient errors carrying the same error code also trip.
// A different error code, or a success, resets the consecutive counter.
type CircuitBreaker struct {
	mu    sync.Mutex
	state models.CircuitBreakerState

	consecutiveTripThreshold int
	failureLogCap            int
}

// NewCircuitBreaker returns a breaker for provider, closed.
func NewCircuitBreaker(provider string) *CircuitBreaker {
	return &CircuitBreaker{
		state:                    models.CircuitBreakerState{Provider: provider},
		consecutiveTripThreshold: 3,
		failureLogCap:            50,
	}
}

// Allow reports whether a call may be attempted against this provider.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.state.Tripped
}

// RecordSuccess resets the consecutive-failure counter. It does not
// un-trip an already-tripped breaker; that requires an explicit Reset
// (operator action or process restart).
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.ConsecutiveCode = ""
	b.state.ConsecutiveCount = 0
}

// RecordFailure applies the trip rules for a classified LLMError.
func (b *CircuitBreaker) RecordFailure(e *LLMError) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.appendFailureLog(e)

	if e.Category == CategoryPermanent {
		b.trip(e.ErrorCode, "permanent error: "+e.ErrorCode)
		return
	}

	if e.ErrorCode == b.state.ConsecutiveCode {
		b.state.ConsecutiveCount++
	} else {
		b.state.ConsecutiveCode = e.ErrorCode
		b.state.ConsecutiveCount = 1
	}

	if b.state.ConsecutiveCount >= b.consecutiveTripThreshold {
		b.trip(e.ErrorCode, "3 consecutive transient errors: "+e.ErrorCode)
	}
}

func (b *CircuitBreaker) trip(errorCode, reason string) {
	b.state.Tripped = true
	b.state.TripReason = reason
	b.state.TripErrorCode = errorCode
	b.state.TrippedAt = time.Now()
}

func (b *CircuitBreaker) appendFailureLog(e *LLMError) {
	b.state.FailureLog = append(b.state.FailureLog, models.CircuitBreakerFailure{
		At:        time.Now(),
		ErrorCode: e.ErrorCode,
		Category:  e.Category,
	})
	if len(b.state.FailureLog) > b.failureLogCap {
		b.state.FailureLog = b.state.FailureLog[len(b.state.FailureLog)-b.failureLogCap:]
	}
}

// Reset clears the tripped state, e.g. after an operator fixes the
// underlying cause.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = models.CircuitBreakerState{Provider: b.state.Provider}
}

// Snapshot returns a copy of the current state for the health endpoint.
func (b *CircuitBreaker) Snapshot() models.CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.state
	snap.FailureLog = append([]models.CircuitBreakerFailure(nil), b.state.FailureLog...)
	return snap
}
