package taskspec

import (
	"context"
	"errors"
	"testing"
)

func TestMockProviderScript(t *testing.T) {
	provider := NewMockProviderWithScript("first", "second")
	ctx := context.Background()

	for i, want := range []string{"first", "second"} {
		resp, err := provider.Call(ctx, []Message{{Role: RoleUser, Content: "q"}}, Params{})
		if err != nil {
			t.Fatalf("Call %d failed: %v", i+1, err)
		}
		if resp.Content != want {
			t.Errorf("Call %d: expected %q, got %q", i+1, want, resp.Content)
		}
	}

	if _, err := provider.Call(ctx, nil, Params{}); err == nil {
		t.Error("Expected error once the script is exhausted")
	}
	if provider.Calls() != 3 {
		t.Errorf("Expected 3 calls counted, got %d", provider.Calls())
	}
}

func TestMockProviderAvailability(t *testing.T) {
	provider := NewMockProvider()
	provider.SetAvailable(false)

	_, err := provider.Call(context.Background(), nil, Params{})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected a ProviderError, got %v", err)
	}

	provider.SetAvailable(true)
	resp, err := provider.Call(context.Background(), nil, Params{})
	if err != nil {
		t.Fatalf("Call after recovery failed: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("Expected canned reply, got %q", resp.Content)
	}
}

func TestMockProviderCanceledContext(t *testing.T) {
	provider := NewMockProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := provider.Call(ctx, nil, Params{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if provider.Calls() != 0 {
		t.Errorf("Canceled call must not be counted, got %d", provider.Calls())
	}
}
