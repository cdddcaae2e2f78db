// Package providers builds a concrete provider backend from configuration.
package providers

import (
	"fmt"

	"github.com/azmaveth/taskspec"
	"github.com/azmaveth/taskspec/providers/anthropic"
	"github.com/azmaveth/taskspec/providers/ollama"
	"github.com/azmaveth/taskspec/providers/openai"
)

// FromConfig constructs the provider backend named by cfg.LLM.Provider.
func FromConfig(cfg *taskspec.Config) (taskspec.Provider, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}), nil
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:  cfg.Anthropic.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}), nil
	case "ollama":
		return ollama.New(ollama.Config{
			Model:   cfg.LLM.Model,
			BaseURL: cfg.Ollama.BaseURL,
			Timeout: cfg.LLM.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.LLM.Provider)
	}
}
