// Package ollama implements the taskspec Provider interface for a local
// Ollama server. Ollama needs no credentials; the default endpoint is the
// standard local install.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zoobzio/capitan"

	"github.com/azmaveth/taskspec"
)

// Provider implements the taskspec Provider interface for Ollama.
type Provider struct {
	model      string
	baseURL    string
	httpClient *http.Client
	name       string
}

// Config holds configuration for the Ollama provider.
type Config struct {
	Model   string        // e.g. "athene-v2", defaults to "athene-v2"
	BaseURL string        // Optional, defaults to "http://localhost:11434"
	Timeout time.Duration // Optional, defaults to 120s; local models are slow
}

// New creates a new Ollama provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "athene-v2"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}

	return &Provider{
		model:   config.Model,
		baseURL: config.BaseURL,
		name:    "ollama",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call sends the conversation to the Ollama chat endpoint and returns the
// response.
func (p *Provider) Call(ctx context.Context, messages []taskspec.Message, params taskspec.Params) (*taskspec.ProviderResponse, error) {
	startTime := time.Now()

	model := params.Model
	if model == "" {
		model = p.model
	}

	capitan.Emit(ctx, taskspec.ProviderCallStarted,
		taskspec.ProviderKey.Field(p.name),
		taskspec.ModelKey.Field(model),
	)

	apiMessages := make([]message, len(messages))
	for i, m := range messages {
		apiMessages[i] = message{Role: m.Role, Content: m.Content}
	}

	requestBody := chatRequest{
		Model:    model,
		Messages: apiMessages,
		Stream:   false,
		Options: options{
			Temperature: params.Temperature,
		},
	}
	if params.MaxTokens > 0 {
		requestBody.Options.NumPredict = params.MaxTokens
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, &taskspec.ProviderError{Provider: p.name, Message: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &taskspec.ProviderError{Provider: p.name, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &taskspec.ProviderError{Provider: p.name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &taskspec.ProviderError{Provider: p.name, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		duration := time.Since(startTime)
		var errorResp errorResponse

		fields := []capitan.Field{
			taskspec.ProviderKey.Field(p.name),
			taskspec.ModelKey.Field(model),
			taskspec.HTTPStatusCodeKey.Field(resp.StatusCode),
			taskspec.DurationMsKey.Field(int(duration.Milliseconds())),
		}

		perr := &taskspec.ProviderError{Provider: p.name, Status: resp.StatusCode}
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error != "" {
			perr.Message = errorResp.Error
			fields = append(fields, taskspec.ErrorKey.Field(errorResp.Error))
		} else {
			fields = append(fields, taskspec.ErrorKey.Field(fmt.Sprintf("status %d", resp.StatusCode)))
		}

		capitan.Emit(ctx, taskspec.ProviderCallFailed, fields...)
		return nil, perr
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, &taskspec.ProviderError{Provider: p.name, Message: "failed to parse response", Err: err}
	}

	if chatResp.Message.Content == "" {
		return nil, &taskspec.ProviderError{Provider: p.name, Status: resp.StatusCode, Message: "empty response content"}
	}

	duration := time.Since(startTime)
	total := chatResp.PromptEvalCount + chatResp.EvalCount

	capitan.Emit(ctx, taskspec.ProviderCallCompleted,
		taskspec.ProviderKey.Field(p.name),
		taskspec.ModelKey.Field(chatResp.Model),
		taskspec.PromptTokensKey.Field(chatResp.PromptEvalCount),
		taskspec.CompletionTokensKey.Field(chatResp.EvalCount),
		taskspec.TotalTokensKey.Field(total),
		taskspec.DurationMsKey.Field(int(duration.Milliseconds())),
		taskspec.HTTPStatusCodeKey.Field(resp.StatusCode),
	)

	return &taskspec.ProviderResponse{
		Content: chatResp.Message.Content,
		Usage: taskspec.TokenUsage{
			Prompt:     chatResp.PromptEvalCount,
			Completion: chatResp.EvalCount,
			Total:      total,
		},
	}, nil
}

// Request/Response types for the Ollama API

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options"`
}

type options struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model           string  `json:"model"`
	Message         message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}
