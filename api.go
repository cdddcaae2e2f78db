// Package taskspec turns a natural-language task description into a
// validated specification document, using LLM providers as the analytical
// engine and a content-addressed response cache to avoid paying for the
// same call twice.
//
// The package is organized around a small set of collaborators:
//
//   - Cache: key/value store for provider responses with TTL expiry,
//     backed by memory or a SQLite file on disk
//   - Gateway: uniform call interface over providers, checked against the
//     cache before any network traffic
//   - Executor: runs one bounded analysis step (prompt render, gateway
//     call, output parse)
//   - Analyzer: the decompose → elaborate → assemble → validate pipeline
//   - Designer: the longer design-document pipeline, reusing the Analyzer
//     for per-subtask runs
//
// Basic usage:
//
//	cfg, _ := taskspec.LoadConfig("")
//	cache, _ := taskspec.OpenCache(cfg)
//	defer cache.Close()
//	gw := taskspec.NewGateway(provider, cache, cfg)
//	analyzer := taskspec.NewAnalyzer(gw, cfg)
//	result, err := analyzer.Run(ctx, taskspec.Request{Task: "Build a CLI that reverses a string"})
package taskspec

import "context"

// Provider defines the interface for LLM providers.
// Providers accept conversation messages and return responses with usage stats.
type Provider interface {
	// Call sends messages to the LLM and returns the response.
	// Messages should be in chronological order (oldest first).
	Call(ctx context.Context, messages []Message, params Params) (*ProviderResponse, error)

	// Name returns the provider identifier (e.g., "openai", "anthropic")
	Name() string
}

// Params carries the tunable parameters of a single provider call.
// Every field participates in the cache fingerprint.
type Params struct {
	Model       string  // Model identifier passed through to the provider
	Temperature float32 // Sampling temperature
	MaxTokens   int     // Response token budget (0 uses the provider default)
}

// TokenUsage contains token counts from a provider response.
type TokenUsage struct {
	Prompt     int // Tokens used by the prompt/messages
	Completion int // Tokens used by the completion/response
	Total      int // Total tokens used
}

// ProviderResponse contains the response from an LLM provider.
type ProviderResponse struct {
	Content string     // The text response content
	Usage   TokenUsage // Token usage statistics
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string // RoleUser, RoleAssistant, or RoleSystem
	Content string // The message content
}

// Role constants for message types.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Default temperature constants for the pipeline steps.
// Lower values produce more deterministic outputs; the decomposition and
// validation steps run cooler than the initial breakdown.
const (
	// TemperatureUnset indicates that no temperature has been explicitly set.
	// A zero-value float32 is also treated as unset for ergonomic struct
	// initialization.
	TemperatureUnset float32 = -1

	// DefaultTemperatureBreakdown is used for the initial task breakdown,
	// which benefits from some creative latitude.
	DefaultTemperatureBreakdown float32 = 0.3

	// DefaultTemperatureRefinement is used for refinement, formatting, and
	// validation steps where consistency matters more than variety.
	DefaultTemperatureRefinement float32 = 0.2

	// DefaultTemperatureElicitation is used during interactive design
	// elicitation, where varied conversational responses are desirable.
	DefaultTemperatureElicitation float32 = 0.7
)
