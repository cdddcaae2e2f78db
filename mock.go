package taskspec

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider simulates provider behavior for testing. Responses come from
// a fixed string, a callback, or a script of sequential replies; calls are
// counted so tests can assert how many reached the provider.
type MockProvider struct {
	mu        sync.Mutex
	name      string
	available bool
	calls     int

	response string
	callback func(messages []Message, params Params) (string, error)
	script   []string
}

// NewMockProvider creates a mock that always succeeds with a canned reply.
func NewMockProvider() *MockProvider {
	return NewMockProviderWithResponse("mock response")
}

// NewMockProviderWithResponse creates a mock that always returns response.
func NewMockProviderWithResponse(response string) *MockProvider {
	return &MockProvider{name: "mock", available: true, response: response}
}

// NewMockProviderWithCallback creates a mock that derives each response
// from the call's messages and params.
func NewMockProviderWithCallback(callback func(messages []Message, params Params) (string, error)) *MockProvider {
	return &MockProvider{name: "mock", available: true, callback: callback}
}

// NewMockProviderWithScript creates a mock that returns the given responses
// in order, one per call. Calls past the end of the script fail.
func NewMockProviderWithScript(responses ...string) *MockProvider {
	return &MockProvider{name: "mock", available: true, script: responses}
}

// Name returns the provider name.
func (m *MockProvider) Name() string { return m.name }

// SetName overrides the provider name, for tests that need to tell two
// mocks apart (fingerprints include it).
func (m *MockProvider) SetName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
}

// SetAvailable toggles failure mode. While unavailable every call returns a
// ProviderError.
func (m *MockProvider) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// Calls reports how many calls reached the provider.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Call simulates one provider round trip.
func (m *MockProvider) Call(ctx context.Context, messages []Message, params Params) (*ProviderResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls++
	n := m.calls
	available := m.available
	m.mu.Unlock()

	if !available {
		return nil, &ProviderError{
			Provider: m.name,
			Message:  "provider unavailable",
		}
	}

	content, err := m.respond(n, messages, params)
	if err != nil {
		return nil, err
	}
	return &ProviderResponse{
		Content: content,
		Usage: TokenUsage{
			Prompt:     len(messages),
			Completion: 1,
			Total:      len(messages) + 1,
		},
	}, nil
}

func (m *MockProvider) respond(call int, messages []Message, params Params) (string, error) {
	switch {
	case m.callback != nil:
		return m.callback(messages, params)
	case m.script != nil:
		if call > len(m.script) {
			return "", fmt.Errorf("mock script exhausted after %d responses", len(m.script))
		}
		return m.script[call-1], nil
	default:
		return m.response, nil
	}
}
