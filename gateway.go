package taskspec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// CallRequest flows through the gateway's pipz pipeline.
// It carries the conversation, the call parameters, and the response.
type CallRequest struct {
	// Input fields
	Messages []Message // Full conversation, oldest first
	Params   Params    // Resolved call parameters

	// Metadata fields
	RequestID    string // Unique identifier for this request
	ProviderName string // Name of the provider being used
	Key          string // Cache fingerprint for this call

	// Output fields (populated by pipeline)
	Response string      // Raw text response from provider
	Usage    *TokenUsage // Token usage from provider response
	ServedBy string      // Name of the provider that produced the response
}

// Gateway is the uniform call interface over provider backends. Every call
// is fingerprinted and checked against the cache first; a hit returns with
// zero provider interaction. On a miss the provider round trip runs under
// the configured deadline and the result is cached only on success;
// failures are never cached.
type Gateway struct {
	provider Provider
	cache    Cache
	pipeline pipz.Chainable[*CallRequest]
	ttl      time.Duration
	defaults Params
}

// NewGateway creates a Gateway over provider backed by cache. Reliability
// options wrap the provider terminal in order, innermost first.
func NewGateway(provider Provider, cache Cache, cfg *Config, opts ...Option) *Gateway {
	var pipeline pipz.Chainable[*CallRequest] = newTerminal(provider, cfg.LLM.Timeout)
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}

	return &Gateway{
		provider: provider,
		cache:    cache,
		pipeline: pipeline,
		ttl:      cfg.Cache.TTL(),
		defaults: Params{
			Model:       cfg.LLM.Model,
			Temperature: DefaultTemperatureBreakdown,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
	}
}

// newTerminal creates the terminal processor that performs the provider
// round trip under the configured deadline.
func newTerminal(provider Provider, timeout time.Duration) pipz.Chainable[*CallRequest] {
	return pipz.Apply("llm-call", func(ctx context.Context, req *CallRequest) (*CallRequest, error) {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resp, err := provider.Call(callCtx, req.Messages, req.Params)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return req, fmt.Errorf("%w: %s after %s", ErrProviderTimeout, req.ProviderName, timeout)
			}
			return req, err
		}
		req.Response = resp.Content
		req.Usage = &resp.Usage
		req.ServedBy = provider.Name()
		return req, nil
	})
}

// Call sends the conversation to the provider and returns the response
// text. Unset parameters resolve from the configured defaults.
//
// The cache is consulted first; on a hit the provider is never touched and
// the cached text is returned byte for byte. Cache read failures degrade to
// a miss, cache write failures are reported through hooks only, and a broken
// cache never blocks analysis. A canceled context skips cache population so
// no partial entry is ever written.
func (g *Gateway) Call(ctx context.Context, messages []Message, params Params) (string, error) {
	params = g.resolve(params)
	key := Fingerprint(g.provider.Name(), messages, params)
	requestID := uuid.New().String()

	if value, ok := g.lookup(ctx, key); ok {
		return value, nil
	}

	capitan.Info(ctx, RequestStarted,
		RequestIDKey.Field(requestID),
		ProviderKey.Field(g.provider.Name()),
		ModelKey.Field(params.Model),
		TemperatureKey.Field(float64(params.Temperature)),
	)

	req := &CallRequest{
		Messages:     messages,
		Params:       params,
		RequestID:    requestID,
		ProviderName: g.provider.Name(),
		Key:          key,
	}

	processed, err := g.pipeline.Process(ctx, req)
	if err != nil {
		capitan.Error(ctx, RequestFailed,
			RequestIDKey.Field(requestID),
			ProviderKey.Field(g.provider.Name()),
			ErrorKey.Field(err.Error()),
		)
		return "", err
	}
	if processed.Response == "" {
		return "", &ProviderError{Provider: g.provider.Name(), Message: "empty response"}
	}

	storeKey := key
	if processed.ServedBy != "" && processed.ServedBy != g.provider.Name() {
		// A fallback provider answered. Cache under its own fingerprint
		// so a later call with the primary healthy never replays it.
		storeKey = Fingerprint(processed.ServedBy, messages, params)
	}
	g.store(ctx, storeKey, processed.Response)

	fields := []capitan.Field{
		RequestIDKey.Field(requestID),
		ProviderKey.Field(g.provider.Name()),
		ModelKey.Field(params.Model),
	}
	if processed.Usage != nil {
		fields = append(fields,
			PromptTokensKey.Field(processed.Usage.Prompt),
			CompletionTokensKey.Field(processed.Usage.Completion),
			TotalTokensKey.Field(processed.Usage.Total),
		)
	}
	capitan.Info(ctx, RequestCompleted, fields...)

	return processed.Response, nil
}

// Provider returns the name of the underlying provider backend.
func (g *Gateway) Provider() string { return g.provider.Name() }

// ClearCache removes all cached responses.
func (g *Gateway) ClearCache() error { return g.cache.Clear() }

// resolve fills unset parameters from the configured defaults.
func (g *Gateway) resolve(params Params) Params {
	if params.Model == "" {
		params.Model = g.defaults.Model
	}
	if params.Temperature == 0 || params.Temperature == TemperatureUnset {
		params.Temperature = g.defaults.Temperature
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = g.defaults.MaxTokens
	}
	return params
}

// lookup consults the cache, absorbing read failures as misses.
func (g *Gateway) lookup(ctx context.Context, key string) (string, bool) {
	value, ok, err := g.cache.Get(key)
	if err != nil {
		capitan.Error(ctx, CacheReadError,
			CacheKeyKey.Field(key),
			ErrorKey.Field(err.Error()),
		)
		return "", false
	}
	if !ok {
		capitan.Emit(ctx, CacheMissed, CacheKeyKey.Field(key))
		return "", false
	}
	capitan.Emit(ctx, CacheHit, CacheKeyKey.Field(key))
	return value, true
}

// store populates the cache after a successful call. Cancellation between
// the provider response and this point skips the write entirely, so a
// canceled run never leaves a partial entry.
func (g *Gateway) store(ctx context.Context, key, value string) {
	if ctx.Err() != nil {
		return
	}
	if err := g.cache.Put(key, value, g.ttl); err != nil {
		capitan.Error(ctx, CacheWriteError,
			CacheKeyKey.Field(key),
			ErrorKey.Field(err.Error()),
		)
		return
	}
	capitan.Emit(ctx, CacheStored,
		CacheKeyKey.Field(key),
		CacheTTLKey.Field(int(g.ttl/time.Second)),
	)
}
