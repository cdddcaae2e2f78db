// Package openai implements the taskspec Provider interface for the
// OpenAI chat completions API.
package openai

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

// Provider implements the taskspec Provider interface for OpenAI.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	name       string
}

// Config holds configuration for the OpenAI provider.
type Config struct {
	APIKey  string
	Model   string        // e.g. "gpt-4o", defaults to "gpt-4o"
	BaseURL string        // Optional, defaults to "https://api.openai.com/v1"
	Timeout time.Duration // Optional, defaults to 60s
}

// New creates a new OpenAI provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "gpt-4o"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Provider{
		apiKey:  config.APIKey,
		model:   config.Model,
		baseURL: config.BaseURL,
		name:    "openai",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call sends the conversation to OpenAI and returns the response.
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

	requestBody := chatCompletionRequest{
		Model:       model,
		Messages:    apiMessages,
		Temperature: params.Temperature,
	}
	if params.MaxTokens > 0 {
		requestBody.MaxTokens = params.MaxTokens
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, &taskspec.ProviderError{Provider: p.name, Message: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &taskspec.ProviderError{Provider: p.name, Message: "failed to create request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			perr.Message = errorResp.Error.Message
			fields = append(fields,
				taskspec.ErrorKey.Field(errorResp.Error.Message),
				taskspec.APIErrorTypeKey.Field(errorResp.Error.Type),
			)
		} else {
			fields = append(fields, taskspec.ErrorKey.Field(fmt.Sprintf("status %d", resp.StatusCode)))
		}

		capitan.Emit(ctx, taskspec.ProviderCallFailed, fields...)
		return nil, perr
	}

	var completionResp chatCompletionResponse
	if err := json.Unmarshal(body, &completionResp); err != nil {
		return nil, &taskspec.ProviderError{Provider: p.name, Message: "failed to parse response", Err: err}
	}

	if len(completionResp.Choices) == 0 {
		return nil, &taskspec.ProviderError{Provider: p.name, Status: resp.StatusCode, Message: "no response choices returned"}
	}

	duration := time.Since(startTime)

	capitan.Emit(ctx, taskspec.ProviderCallCompleted,
		taskspec.ProviderKey.Field(p.name),
		taskspec.ModelKey.Field(completionResp.Model),
		taskspec.PromptTokensKey.Field(completionResp.Usage.PromptTokens),
		taskspec.CompletionTokensKey.Field(completionResp.Usage.CompletionTokens),
		taskspec.TotalTokensKey.Field(completionResp.Usage.TotalTokens),
		taskspec.DurationMsKey.Field(int(duration.Milliseconds())),
		taskspec.HTTPStatusCodeKey.Field(resp.StatusCode),
	)

	return &taskspec.ProviderResponse{
		Content: completionResp.Choices[0].Message.Content,
		Usage: taskspec.TokenUsage{
			Prompt:     completionResp.Usage.PromptTokens,
			Completion: completionResp.Usage.CompletionTokens,
			Total:      completionResp.Usage.TotalTokens,
		},
	}, nil
}

// Request/Response types for the OpenAI API

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
