package taskspec

import "github.com/zoobzio/capitan"

// Signals for hook events.
const (
	RequestStarted        = capitan.Signal("llm.request.started")
	RequestCompleted      = capitan.Signal("llm.request.completed")
	RequestFailed         = capitan.Signal("llm.request.failed")
	ProviderCallStarted   = capitan.Signal("llm.provider.call.started")
	ProviderCallCompleted = capitan.Signal("llm.provider.call.completed")
	ProviderCallFailed    = capitan.Signal("llm.provider.call.failed")

	CacheHit        = capitan.Signal("cache.hit")
	CacheMissed     = capitan.Signal("cache.miss")
	CacheStored     = capitan.Signal("cache.stored")
	CacheWriteError = capitan.Signal("cache.write.error")
	CacheReadError  = capitan.Signal("cache.read.error")

	StepStarted   = capitan.Signal("pipeline.step.started")
	StepCompleted = capitan.Signal("pipeline.step.completed")
	StepFailed    = capitan.Signal("pipeline.step.failed")
	RunStarted    = capitan.Signal("pipeline.run.started")
	RunCompleted  = capitan.Signal("pipeline.run.completed")
	RunFailed     = capitan.Signal("pipeline.run.failed")

	ValidationPassed    = capitan.Signal("validation.passed")
	ValidationFailed    = capitan.Signal("validation.failed")
	ValidationExhausted = capitan.Signal("validation.exhausted")
)

// Keys for hook event fields.
var (
	// Request identification.
	RequestIDKey = capitan.NewStringKey("llm.request.id")
	RunIDKey     = capitan.NewStringKey("pipeline.run.id")
	StepNameKey  = capitan.NewStringKey("pipeline.step.name")
	StateKey     = capitan.NewStringKey("pipeline.state")

	// Provider information.
	ProviderKey    = capitan.NewStringKey("llm.provider")
	ModelKey       = capitan.NewStringKey("llm.model")
	TemperatureKey = capitan.NewFloat64Key("llm.temperature")

	// Response data.
	ResponseKey = capitan.NewStringKey("llm.response")

	// Error information.
	ErrorKey     = capitan.NewStringKey("llm.error")
	ErrorTypeKey = capitan.NewStringKey("llm.error.type")

	// Provider metrics.
	PromptTokensKey     = capitan.NewIntKey("llm.tokens.prompt")
	CompletionTokensKey = capitan.NewIntKey("llm.tokens.completion")
	TotalTokensKey      = capitan.NewIntKey("llm.tokens.total")
	DurationMsKey       = capitan.NewIntKey("llm.duration.ms")

	// HTTP/API metadata.
	HTTPStatusCodeKey = capitan.NewIntKey("llm.http.status.code")
	APIErrorTypeKey   = capitan.NewStringKey("llm.api.error.type")

	// Cache metadata.
	CacheKeyKey     = capitan.NewStringKey("cache.key")
	CacheBackendKey = capitan.NewStringKey("cache.backend")
	CacheTTLKey     = capitan.NewIntKey("cache.ttl.seconds")

	// Validation metadata.
	IterationKey  = capitan.NewIntKey("validation.iteration")
	IssueCountKey = capitan.NewIntKey("validation.issue.count")

	// Decomposition metadata.
	SubtaskCountKey = capitan.NewIntKey("pipeline.subtask.count")
	SubtaskIDKey    = capitan.NewStringKey("pipeline.subtask.id")
	PhaseCountKey   = capitan.NewIntKey("design.phase.count")
)
