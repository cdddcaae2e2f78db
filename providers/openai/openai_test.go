package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/azmaveth/taskspec"
)

func TestProviderCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Bearer token, got %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("Expected model gpt-4o, got %s", req.Model)
		}
		if req.Temperature != 0.3 {
			t.Errorf("Expected temperature 0.3, got %f", req.Temperature)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("Unexpected messages: %v", req.Messages)
		}

		resp := chatCompletionResponse{
			ID:    "test-id",
			Model: "gpt-4o",
			Choices: []choice{
				{Message: message{Role: "assistant", Content: "test response"}, FinishReason: "stop"},
			},
			Usage: usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := New(Config{
		APIKey:  "test-key",
		Model:   "gpt-4o",
		BaseURL: server.URL,
	})

	resp, err := provider.Call(context.Background(), []taskspec.Message{
		{Role: taskspec.RoleSystem, Content: "be terse"},
		{Role: taskspec.RoleUser, Content: "test prompt"},
	}, taskspec.Params{Temperature: 0.3})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if resp.Content != "test response" {
		t.Errorf("Expected 'test response', got %q", resp.Content)
	}
	if resp.Usage.Total != 15 {
		t.Errorf("Expected total tokens 15, got %d", resp.Usage.Total)
	}
}

func TestProviderModelOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Model != "gpt-4-turbo" {
			t.Errorf("Expected model override gpt-4-turbo, got %s", req.Model)
		}
		json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []choice{{Message: message{Content: "ok"}}},
		})
	}))
	defer server.Close()

	provider := New(Config{APIKey: "test-key", BaseURL: server.URL})
	_, err := provider.Call(context.Background(), []taskspec.Message{
		{Role: taskspec.RoleUser, Content: "hi"},
	}, taskspec.Params{Model: "gpt-4-turbo"})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
}

func TestProviderRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit exceeded", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	provider := New(Config{APIKey: "test-key", BaseURL: server.URL})
	_, err := provider.Call(context.Background(), []taskspec.Message{
		{Role: taskspec.RoleUser, Content: "hi"},
	}, taskspec.Params{})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var perr *taskspec.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ProviderError, got %T", err)
	}
	if !perr.RateLimited() {
		t.Errorf("Expected rate limited error, got status %d", perr.Status)
	}
	if perr.Message != "rate limit exceeded" {
		t.Errorf("Unexpected message: %q", perr.Message)
	}
}

func TestProviderAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	provider := New(Config{APIKey: "bad-key", BaseURL: server.URL})
	_, err := provider.Call(context.Background(), []taskspec.Message{
		{Role: taskspec.RoleUser, Content: "hi"},
	}, taskspec.Params{})

	var perr *taskspec.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ProviderError, got %v", err)
	}
	if perr.Status != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", perr.Status)
	}
}

func TestProviderNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(chatCompletionResponse{})
	}))
	defer server.Close()

	provider := New(Config{APIKey: "test-key", BaseURL: server.URL})
	_, err := provider.Call(context.Background(), []taskspec.Message{
		{Role: taskspec.RoleUser, Content: "hi"},
	}, taskspec.Params{})
	if err == nil {
		t.Fatal("Expected error for empty choices, got nil")
	}
}

func TestProviderDefaults(t *testing.T) {
	provider := New(Config{APIKey: "key"})
	if provider.model != "gpt-4o" {
		t.Errorf("Expected default model gpt-4o, got %s", provider.model)
	}
	if provider.baseURL != "https://api.openai.com/v1" {
		t.Errorf("Unexpected default base URL: %s", provider.baseURL)
	}
	if provider.Name() != "openai" {
		t.Errorf("Expected name openai, got %s", provider.Name())
	}
}

func TestProviderMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	provider := New(Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := provider.Call(context.Background(), []taskspec.Message{
		{Role: taskspec.RoleUser, Content: "test"},
	}, taskspec.Params{})
	if err == nil {
		t.Fatal("Expected error for unparseable response body")
	}

	var provErr *taskspec.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected a ProviderError, got %v", err)
	}
	if provErr.Provider != "openai" {
		t.Errorf("Expected provider openai, got %s", provErr.Provider)
	}
}
