package ollama

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
		if r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Stream {
			t.Error("Expected streaming disabled")
		}
		if req.Model != "athene-v2" {
			t.Errorf("Expected model athene-v2, got %s", req.Model)
		}
		if req.Options.Temperature != 0.3 {
			t.Errorf("Expected temperature 0.3, got %f", req.Options.Temperature)
		}

		resp := chatResponse{
			Model:           "athene-v2",
			Message:         message{Role: "assistant", Content: "test response"},
			Done:            true,
			PromptEvalCount: 20,
			EvalCount:       8,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := New(Config{BaseURL: server.URL})

	resp, err := provider.Call(context.Background(), []taskspec.Message{
		{Role: taskspec.RoleUser, Content: "test prompt"},
	}, taskspec.Params{Temperature: 0.3})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if resp.Content != "test response" {
		t.Errorf("Expected 'test response', got %q", resp.Content)
	}
	if resp.Usage.Total != 28 {
		t.Errorf("Expected total tokens 28, got %d", resp.Usage.Total)
	}
}

func TestProviderModelMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "model 'missing' not found"}`))
	}))
	defer server.Close()

	provider := New(Config{BaseURL: server.URL})
	_, err := provider.Call(context.Background(), []taskspec.Message{
		{Role: taskspec.RoleUser, Content: "hi"},
	}, taskspec.Params{Model: "missing"})

	var perr *taskspec.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ProviderError, got %v", err)
	}
	if perr.Status != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", perr.Status)
	}
	if perr.Message != "model 'missing' not found" {
		t.Errorf("Unexpected message: %q", perr.Message)
	}
}

func TestProviderEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Done: true})
	}))
	defer server.Close()

	provider := New(Config{BaseURL: server.URL})
	_, err := provider.Call(context.Background(), []taskspec.Message{
		{Role: taskspec.RoleUser, Content: "hi"},
	}, taskspec.Params{})
	if err == nil {
		t.Fatal("Expected error for empty content, got nil")
	}
}

func TestProviderDefaults(t *testing.T) {
	provider := New(Config{})
	if provider.model != "athene-v2" {
		t.Errorf("Unexpected default model: %s", provider.model)
	}
	if provider.baseURL != "http://localhost:11434" {
		t.Errorf("Unexpected default base URL: %s", provider.baseURL)
	}
	if provider.Name() != "ollama" {
		t.Errorf("Expected name ollama, got %s", provider.Name())
	}
}

func TestProviderMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	provider := New(Config{BaseURL: server.URL})

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
	if provErr.Provider != "ollama" {
		t.Errorf("Expected provider ollama, got %s", provErr.Provider)
	}
}
