package taskspec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete process configuration. It is constructed once at
// the entry point and passed into the Gateway and Cache constructors; there
// is no ambient mutable configuration state.
type Config struct {
	LLM        LLMConfig        `koanf:"llm"`
	OpenAI     CredentialConfig `koanf:"openai"`
	Anthropic  CredentialConfig `koanf:"anthropic"`
	Ollama     OllamaConfig     `koanf:"ollama"`
	Cache      CacheConfig      `koanf:"cache"`
	Validation ValidationConfig `koanf:"validation"`
	Output     OutputConfig     `koanf:"output"`
}

// LLMConfig selects the provider backend and call parameters.
type LLMConfig struct {
	Provider  string        `koanf:"provider"`
	Model     string        `koanf:"model"`
	Timeout   time.Duration `koanf:"timeout"`
	MaxTokens int           `koanf:"max_tokens"`
}

// CredentialConfig holds an opaque API credential for one provider.
type CredentialConfig struct {
	APIKey string `koanf:"api_key"`
}

// OllamaConfig holds settings for a local Ollama endpoint.
type OllamaConfig struct {
	BaseURL string `koanf:"base_url"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Backend    string `koanf:"backend"` // "memory" or "disk"
	TTLSeconds int    `koanf:"ttl_seconds"`
	Path       string `koanf:"path"` // disk backend only
}

// TTL returns the configured entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ValidationConfig controls the validation loop. When Required is set, a
// draft that never passes within the iteration budget fails the run instead
// of returning the best draft with warnings.
type ValidationConfig struct {
	Enabled       bool `koanf:"enabled"`
	Required      bool `koanf:"required"`
	MaxIterations int  `koanf:"max_iterations"`
}

// OutputConfig holds collaborator-facing output settings.
type OutputConfig struct {
	Directory       string `koanf:"directory"`
	TemplatePath    string `koanf:"template_path"`
	ConventionsFile string `koanf:"conventions_file"`
}

// Cache backend names accepted by CacheConfig.Backend.
const (
	CacheBackendMemory = "memory"
	CacheBackendDisk   = "disk"
)

// envAliases is the full set of environment variables the loader reads,
// mapped to their config paths. Variables not listed here are ignored.
var envAliases = map[string]string{
	"LLM_PROVIDER":              "llm.provider",
	"LLM_MODEL":                 "llm.model",
	"LLM_TIMEOUT":               "llm.timeout",
	"LLM_MAX_TOKENS":            "llm.max_tokens",
	"OPENAI_API_KEY":            "openai.api_key",
	"ANTHROPIC_API_KEY":         "anthropic.api_key",
	"OLLAMA_BASE_URL":           "ollama.base_url",
	"CACHE_ENABLED":             "cache.enabled",
	"CACHE_BACKEND":             "cache.backend",
	"CACHE_TTL":                 "cache.ttl_seconds",
	"CACHE_PATH":                "cache.path",
	"VALIDATION_ENABLED":        "validation.enabled",
	"VALIDATION_REQUIRED":       "validation.required",
	"MAX_VALIDATION_ITERATIONS": "validation.max_iterations",
	"OUTPUT_DIRECTORY":          "output.directory",
	"TEMPLATE_PATH":             "output.template_path",
	"CONVENTIONS_FILE":          "output.conventions_file",
}

// defaultConfigYAML seeds the koanf tree so that booleans that default to
// true (cache.enabled, validation.enabled) survive a missing file and
// missing environment variables.
var defaultConfigYAML = []byte(`
llm:
  timeout: 120s
  max_tokens: 4000
ollama:
  base_url: http://localhost:11434
cache:
  enabled: true
  backend: disk
  ttl_seconds: 86400
validation:
  enabled: true
  max_iterations: 3
output:
  directory: output
`)

// LoadConfig loads configuration from an optional YAML file, then overrides
// with environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (LLM_PROVIDER, CACHE_TTL, ...)
//  2. YAML config file (default: ~/.taskspec/config.yaml)
//  3. Built-in defaults
//
// Passing an empty configPath uses the default location; a missing file is
// not an error, only an unreadable or malformed one is.
func LoadConfig(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultConfigYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".taskspec", "config.yaml")
		}
	}

	if configPath != "" {
		if f, err := os.Open(configPath); err == nil {
			content, readErr := io.ReadAll(f)
			f.Close()
			if readErr != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	// Environment variables override file values. Only variables in the
	// alias table are read; returning an empty key skips everything else,
	// so unrelated ambient variables never land in the config tree.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envAliases[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in the values that cannot be expressed in the static
// defaults document: the provider-dependent model and the home-relative
// cache path.
func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModelFor(cfg.LLM.Provider)
	}
	if cfg.Cache.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Cache.Path = filepath.Join(home, ".taskspec", "cache.db")
		}
	}
}

// defaultModelFor returns the default model for a provider.
func defaultModelFor(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o"
	case "anthropic":
		return "claude-3-opus-20240229"
	default:
		return "athene-v2"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendDisk:
	default:
		return fmt.Errorf("unsupported cache backend: %q", c.Cache.Backend)
	}
	if c.Cache.Enabled && c.Cache.Backend == CacheBackendDisk && c.Cache.Path == "" {
		return fmt.Errorf("cache path must be set for the disk backend")
	}
	if c.Validation.MaxIterations < 1 {
		return fmt.Errorf("validation max_iterations must be at least 1, got %d", c.Validation.MaxIterations)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm timeout must be non-negative")
	}
	return nil
}
