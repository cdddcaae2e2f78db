// Package anthropic implements the taskspec Provider interface for the
// Anthropic messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zoobzio/capitan"

	"github.com/azmaveth/taskspec"
)

const defaultMaxTokens = 4096

// Provider implements the taskspec Provider interface for Anthropic.
type Provider struct {
	apiKey     string
	model      string
	version    string
	baseURL    string
	httpClient *http.Client
	name       string
}

// Config holds configuration for the Anthropic provider.
type Config struct {
	APIKey  string
	Model   string        // e.g. "claude-3-opus-20240229"
	Version string        // API version, defaults to "2023-06-01"
	BaseURL string        // Optional, defaults to "https://api.anthropic.com/v1"
	Timeout time.Duration // Optional, defaults to 60s
}

// New creates a new Anthropic provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "claude-3-opus-20240229"
	}
	if config.Version == "" {
		config.Version = "2023-06-01"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Provider{
		apiKey:  config.APIKey,
		model:   config.Model,
		version: config.Version,
		baseURL: config.BaseURL,
		name:    "anthropic",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call sends the conversation to Anthropic and returns the response. The
// messages API takes the system prompt as a top-level field, so system
// messages are lifted out of the conversation.
func (p *Provider) Call(ctx context.Context, messages []taskspec.Message, params taskspec.Params) (*taskspec.ProviderResponse, error) {
	startTime := time.Now()

	model := params.Model
	if model == "" {
		model = p.model
	}
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	capitan.Emit(ctx, taskspec.ProviderCallStarted,
		taskspec.ProviderKey.Field(p.name),
		taskspec.ModelKey.Field(model),
	)

	var system string
	var apiMessages []message
	for _, m := range messages {
		if m.Role == taskspec.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		apiMessages = append(apiMessages, message{Role: m.Role, Content: m.Content})
	}

	requestBody := messagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: params.Temperature,
		System:      system,
		Messages:    apiMessages,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, &taskspec.ProviderError{Provider: p.name, Message: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &taskspec.ProviderError{Provider: p.name, Message: "failed to create request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", p.version)

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

	var messagesResp messagesResponse
	if err := json.Unmarshal(body, &messagesResp); err != nil {
		return nil, &taskspec.ProviderError{Provider: p.name, Message: "failed to parse response", Err: err}
	}

	var result strings.Builder
	for _, block := range messagesResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	if result.Len() == 0 {
		return nil, &taskspec.ProviderError{Provider: p.name, Status: resp.StatusCode, Message: "no text content returned"}
	}

	duration := time.Since(startTime)
	total := messagesResp.Usage.InputTokens + messagesResp.Usage.OutputTokens

	capitan.Emit(ctx, taskspec.ProviderCallCompleted,
		taskspec.ProviderKey.Field(p.name),
		taskspec.ModelKey.Field(messagesResp.Model),
		taskspec.PromptTokensKey.Field(messagesResp.Usage.InputTokens),
		taskspec.CompletionTokensKey.Field(messagesResp.Usage.OutputTokens),
		taskspec.TotalTokensKey.Field(total),
		taskspec.DurationMsKey.Field(int(duration.Milliseconds())),
		taskspec.HTTPStatusCodeKey.Field(resp.StatusCode),
	)

	return &taskspec.ProviderResponse{
		Content: result.String(),
		Usage: taskspec.TokenUsage{
			Prompt:     messagesResp.Usage.InputTokens,
			Completion: messagesResp.Usage.OutputTokens,
			Total:      total,
		},
	}, nil
}

// Request/Response types for the Anthropic API

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Role    string    `json:"role"`
	Content []content `json:"content"`
	Model   string    `json:"model"`
	Usage   usage     `json:"usage"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
