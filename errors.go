package taskspec

import (
	"errors"
	"fmt"
)

// ErrProviderTimeout is returned when a provider call exceeds the configured
// deadline. The pipeline treats it as fatal for the step: no automatic
// retry is applied unless the caller opted in via WithRetry/WithBackoff.
var ErrProviderTimeout = errors.New("provider deadline exceeded")

// ErrCacheMiss reports that a key is absent (or expired) in the cache.
// It is internal to the gateway pipeline and never escapes Gateway.Call.
var ErrCacheMiss = errors.New("cache miss")

// ProviderError reports a transport, auth, or quota failure from a provider
// backend. It is not retried by the core; callers decide the retry policy.
type ProviderError struct {
	Provider string // provider name ("openai", "anthropic", ...)
	Status   int    // HTTP status code, 0 if the request never completed
	Message  string // provider-supplied error message, if any
	Err      error  // underlying transport error, if any
}

func (e *ProviderError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s error (%d): %s", e.Provider, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s error: status %d", e.Provider, e.Status)
	default:
		return fmt.Sprintf("%s error: %v", e.Provider, e.Err)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RateLimited reports whether the failure was a provider rate limit.
func (e *ProviderError) RateLimited() bool { return e.Status == 429 }

// StepExecutionError wraps a gateway or output-parsing failure from one
// pipeline step. The step name identifies where the run failed.
type StepExecutionError struct {
	Step string
	Err  error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// CacheError reports a cache backend I/O failure. Cache errors are absorbed
// at the cache boundary: a failed read is a miss, a failed write is reported
// through hooks but never fails the pipeline.
type CacheError struct {
	Op  string // "get", "put", "clear", "clear_expired", "open"
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }
