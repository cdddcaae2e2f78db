package taskspec

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "mock",
			Model:    "test-model",
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    CacheBackendMemory,
			TTLSeconds: 3600,
		},
		Validation: ValidationConfig{
			Enabled:       true,
			MaxIterations: 3,
		},
	}
}

func TestGatewayCacheHitIdempotence(t *testing.T) {
	provider := NewMockProviderWithResponse("cached answer")
	gateway := NewGateway(provider, NewMemoryCache(), testConfig())

	messages := []Message{{Role: RoleUser, Content: "question"}}

	first, err := gateway.Call(context.Background(), messages, Params{})
	if err != nil {
		t.Fatalf("First call failed: %v", err)
	}
	second, err := gateway.Call(context.Background(), messages, Params{})
	if err != nil {
		t.Fatalf("Second call failed: %v", err)
	}

	if provider.Calls() != 1 {
		t.Errorf("Expected 1 provider call, got %d", provider.Calls())
	}
	if first != second {
		t.Errorf("Cached response differs: %q vs %q", first, second)
	}
}

func TestGatewayParamsChangeKey(t *testing.T) {
	provider := NewMockProviderWithResponse("answer")
	gateway := NewGateway(provider, NewMemoryCache(), testConfig())

	messages := []Message{{Role: RoleUser, Content: "question"}}

	gateway.Call(context.Background(), messages, Params{Temperature: 0.3})
	gateway.Call(context.Background(), messages, Params{Temperature: 0.7})

	if provider.Calls() != 2 {
		t.Errorf("Different temperature must miss the cache, got %d calls", provider.Calls())
	}
}

func TestGatewayDisabledCache(t *testing.T) {
	provider := NewMockProviderWithResponse("answer")
	gateway := NewGateway(provider, NopCache{}, testConfig())

	messages := []Message{{Role: RoleUser, Content: "question"}}
	for i := 0; i < 3; i++ {
		if _, err := gateway.Call(context.Background(), messages, Params{}); err != nil {
			t.Fatalf("Call %d failed: %v", i, err)
		}
	}

	if provider.Calls() != 3 {
		t.Errorf("Disabled cache must reach the provider every time, got %d calls", provider.Calls())
	}
}

func TestGatewayFailuresNotCached(t *testing.T) {
	provider := NewMockProvider()
	provider.SetAvailable(false)
	cache := NewMemoryCache()
	gateway := NewGateway(provider, cache, testConfig())

	messages := []Message{{Role: RoleUser, Content: "question"}}

	if _, err := gateway.Call(context.Background(), messages, Params{}); err == nil {
		t.Fatal("Expected error from unavailable provider")
	}
	if stats := cache.Stats(); stats.Entries != 0 {
		t.Errorf("Failure must not be cached, found %d entries", stats.Entries)
	}

	provider.SetAvailable(true)
	if _, err := gateway.Call(context.Background(), messages, Params{}); err != nil {
		t.Fatalf("Call after recovery failed: %v", err)
	}
	if provider.Calls() != 2 {
		t.Errorf("Expected 2 provider calls, got %d", provider.Calls())
	}
}

func TestGatewayBrokenCacheWrite(t *testing.T) {
	provider := NewMockProviderWithResponse("computed anyway")
	gateway := NewGateway(provider, &brokenCache{}, testConfig())

	response, err := gateway.Call(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, Params{})
	if err != nil {
		t.Fatalf("A broken cache must never fail the call: %v", err)
	}
	if response != "computed anyway" {
		t.Errorf("Expected provider response, got %q", response)
	}
}

func TestGatewayBrokenCacheRead(t *testing.T) {
	provider := NewMockProviderWithResponse("fresh")
	gateway := NewGateway(provider, &brokenCache{}, testConfig())

	if _, err := gateway.Call(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, Params{}); err != nil {
		t.Fatalf("A failing read must degrade to a miss: %v", err)
	}
	if provider.Calls() != 1 {
		t.Errorf("Expected provider fallback, got %d calls", provider.Calls())
	}
}

func TestGatewayTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Timeout = 20 * time.Millisecond

	gateway := NewGateway(&slowProvider{delay: 200 * time.Millisecond}, NopCache{}, cfg)

	_, err := gateway.Call(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, Params{})
	if !errors.Is(err, ErrProviderTimeout) {
		t.Errorf("Expected ErrProviderTimeout, got %v", err)
	}
}

func TestGatewayCancellation(t *testing.T) {
	cache := NewMemoryCache()
	gateway := NewGateway(&slowProvider{delay: 200 * time.Millisecond}, cache, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := gateway.Call(ctx, []Message{{Role: RoleUser, Content: "q"}}, Params{}); err == nil {
		t.Fatal("Expected cancellation error")
	}
	if stats := cache.Stats(); stats.Entries != 0 {
		t.Errorf("Canceled call must not populate the cache, found %d entries", stats.Entries)
	}
}

func TestGatewayResolvesDefaults(t *testing.T) {
	var got Params
	provider := NewMockProviderWithCallback(func(_ []Message, params Params) (string, error) {
		got = params
		return "ok", nil
	})
	gateway := NewGateway(provider, NopCache{}, testConfig())

	if _, err := gateway.Call(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, Params{}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got.Model != "test-model" {
		t.Errorf("Expected configured model, got %q", got.Model)
	}
	if got.Temperature != DefaultTemperatureBreakdown {
		t.Errorf("Expected default temperature, got %f", got.Temperature)
	}
}

func TestGatewayClearCache(t *testing.T) {
	provider := NewMockProviderWithResponse("answer")
	gateway := NewGateway(provider, NewMemoryCache(), testConfig())

	messages := []Message{{Role: RoleUser, Content: "q"}}
	gateway.Call(context.Background(), messages, Params{})

	if err := gateway.ClearCache(); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}

	gateway.Call(context.Background(), messages, Params{})
	if provider.Calls() != 2 {
		t.Errorf("Expected a miss after clear, got %d provider calls", provider.Calls())
	}
}

// brokenCache fails every backend operation.
type brokenCache struct{}

func (*brokenCache) Get(string) (string, bool, error) {
	return "", false, &CacheError{Op: "get", Err: errors.New("disk unreadable")}
}
func (*brokenCache) Put(string, string, time.Duration) error {
	return &CacheError{Op: "put", Err: errors.New("disk full")}
}
func (*brokenCache) Clear() error              { return nil }
func (*brokenCache) ClearExpired() (int, error) { return 0, nil }
func (*brokenCache) Stats() CacheStats          { return CacheStats{} }
func (*brokenCache) Close() error               { return nil }

// slowProvider blocks until its delay elapses or the context ends.
type slowProvider struct {
	delay time.Duration
}

func (*slowProvider) Name() string { return "slow" }

func (p *slowProvider) Call(ctx context.Context, _ []Message, _ Params) (*ProviderResponse, error) {
	select {
	case <-time.After(p.delay):
		return &ProviderResponse{Content: "late"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
