package taskspec

import (
	"time"

	"github.com/zoobzio/pipz"
)

// Option modifies the gateway pipeline for reliability features.
type Option func(pipz.Chainable[*CallRequest]) pipz.Chainable[*CallRequest]

// WithRetry adds retry logic to the pipeline.
// Failed provider calls are retried up to maxAttempts times.
func WithRetry(maxAttempts int) Option {
	return func(pipeline pipz.Chainable[*CallRequest]) pipz.Chainable[*CallRequest] {
		return pipz.NewRetry("retry", pipeline, maxAttempts)
	}
}

// WithBackoff adds retry logic with exponential backoff to the pipeline.
// The delay starts at baseDelay and doubles after each failure.
func WithBackoff(maxAttempts int, baseDelay time.Duration) Option {
	return func(pipeline pipz.Chainable[*CallRequest]) pipz.Chainable[*CallRequest] {
		return pipz.NewBackoff("backoff", pipeline, maxAttempts, baseDelay)
	}
}

// WithTimeout adds timeout protection to the pipeline, in addition to the
// per-call provider deadline from the configuration.
func WithTimeout(duration time.Duration) Option {
	return func(pipeline pipz.Chainable[*CallRequest]) pipz.Chainable[*CallRequest] {
		return pipz.NewTimeout("timeout", pipeline, duration)
	}
}

// WithCircuitBreaker adds circuit breaker protection to the pipeline.
// After 'failures' consecutive failures, the circuit opens for 'recovery'.
func WithCircuitBreaker(failures int, recovery time.Duration) Option {
	return func(pipeline pipz.Chainable[*CallRequest]) pipz.Chainable[*CallRequest] {
		return pipz.NewCircuitBreaker("circuit-breaker", pipeline, failures, recovery)
	}
}

// WithRateLimit adds rate limiting to the pipeline.
// rps = requests per second, burst = burst capacity.
func WithRateLimit(rps float64, burst int) Option {
	return func(pipeline pipz.Chainable[*CallRequest]) pipz.Chainable[*CallRequest] {
		rateLimiter := pipz.NewRateLimiter[*CallRequest]("rate-limit", rps, burst)
		return pipz.NewSequence("rate-limited", rateLimiter, pipeline)
	}
}

// WithFallbackProvider tries a secondary provider when the primary fails.
// The fallback runs without a cache check of its own; a response it serves
// is cached under the fallback provider's fingerprint, not the primary's.
func WithFallbackProvider(provider Provider, timeout time.Duration) Option {
	return func(pipeline pipz.Chainable[*CallRequest]) pipz.Chainable[*CallRequest] {
		return pipz.NewFallback("with-fallback", pipeline, newTerminal(provider, timeout))
	}
}

// WithErrorHandler adds error handling to the pipeline.
// The handler receives error context and can process/log/alert as needed.
func WithErrorHandler(handler pipz.Chainable[*pipz.Error[*CallRequest]]) Option {
	return func(pipeline pipz.Chainable[*CallRequest]) pipz.Chainable[*CallRequest] {
		return pipz.NewHandle("error-handler", pipeline, handler)
	}
}
