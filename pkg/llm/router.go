package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
)

// RouterConfig controls fallback and retry policy across providers.
type RouterConfig struct {
	// Providers are tried in order; the first whose breaker allows a
	// call and whose attempt succeeds wins.
	Providers []Provider

	// MaxRetriesPerProvider bounds retries of transient errors against
	// a single provider before falling through to the next one.
	MaxRetriesPerProvider uint64
}

// Router applies fallback policy across a prioritized list of
// Providers, retrying transient errors within a provider via
// exponential backoff before moving to the next provider, and skipping
// any provider whose circuit breaker is tripped (spec.md §4.3, §4.4).
type Router struct {
	providers []Provider
	breakers  map[string]*CircuitBreaker
	maxRetry  uint64
}

// NewRouter builds a Router and one CircuitBreaker per provider.
func NewRouter(cfg RouterConfig) *Router {
	breakers := make(map[string]*CircuitBreaker, len(cfg.Providers))
	for _, p := range cfg.Providers {
		breakers[p.Name()] = NewCircuitBreaker(p.Name())
	}
	maxRetry := cfg.MaxRetriesPerProvider
	if maxRetry == 0 {
		maxRetry = 2
	}
	return &Router{providers: cfg.Providers, breakers: breakers, maxRetry: maxRetry}
}

// Breaker returns the circuit breaker for a named provider, for health
// reporting.
func (r *Router) Breaker(provider string) *CircuitBreaker {
	return r.breakers[provider]
}

// Generate tries each provider in order, retrying transient failures
// within a provider with exponential backoff, and falls through to the
// next provider on a permanent failure, exhausted retries, or a tripped
// breaker. Returns the full classified error chain if every provider is
// exhausted.
func (r *Router) Generate(ctx context.Context, input *GenerateInput) (string, UsageChunk, error) {
	var errs []error

	for _, provider := range r.providers {
		breaker := r.breakers[provider.Name()]
		if !breaker.Allow() {
			slog.Warn("skipping provider: circuit breaker tripped", "provider", provider.Name())
			continue
		}

		text, usage, err := r.callWithRetry(ctx, provider, breaker, input)
		if err == nil {
			return text, usage, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
	}

	return "", UsageChunk{}, fmt.Errorf("all providers exhausted: %w", joinErrors(errs))
}

func (r *Router) callWithRetry(ctx context.Context, provider Provider, breaker *CircuitBreaker, input *GenerateInput) (string, UsageChunk, error) {
	var text string
	var usage UsageChunk
	var lastClassified *LLMError

	operation := func() error {
		chunks, err := provider.Generate(ctx, input)
		if err != nil {
			lastClassified = Classify(provider.Name(), err)
			breaker.RecordFailure(lastClassified)
			if lastClassified.Retryable {
				return lastClassified
			}
			return backoff.Permanent(lastClassified)
		}

		var drainErr *LLMError
		text, usage, drainErr = Drain(chunks)
		if drainErr != nil {
			lastClassified = drainErr
			breaker.RecordFailure(drainErr)
			if drainErr.Retryable {
				return drainErr
			}
			return backoff.Permanent(drainErr)
		}

		breaker.RecordSuccess()
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.maxRetry)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		if lastClassified != nil {
			return "", UsageChunk{}, lastClassified
		}
		return "", UsageChunk{}, err
	}
	return text, usage, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return fmt.Errorf("no providers configured")
	}
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
