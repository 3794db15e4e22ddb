// Package config defines the Selene configuration file and its loading.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config is the root Selene configuration.
type Config struct {
	// Providers
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`

	// Agent behavior
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Failover tuning
	Failover FailoverConfig `json:"failover" mapstructure:"failover"`

	// History compaction
	Compaction CompactionConfig `json:"compaction" mapstructure:"compaction"`

	// Session persistence
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ProvidersConfig holds the credentials and model lists per provider.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `json:"openai" mapstructure:"openai"`
	Anthropic ProviderConfig `json:"anthropic" mapstructure:"anthropic"`
}

// ProviderConfig configures one model provider. A provider with no API
// key is treated as unconfigured and excluded from failover.
type ProviderConfig struct {
	APIKey  string   `json:"api_key" mapstructure:"api_key"`
	BaseURL string   `json:"base_url" mapstructure:"base_url"`
	Models  []string `json:"models" mapstructure:"models"`
}

// Configured reports whether the provider can be used.
func (p ProviderConfig) Configured() bool {
	return p.APIKey != "" && len(p.Models) > 0
}

// AgentConfig tunes the orchestrator.
type AgentConfig struct {
	SystemPrompt  string  `json:"system_prompt" mapstructure:"system_prompt"`
	Temperature   float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens     int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxToolRounds int     `json:"max_tool_rounds" mapstructure:"max_tool_rounds"`

	// Provider and Model form the preferred candidate. Fallbacks are
	// "provider:model" pairs tried in order after it.
	Provider  string   `json:"provider" mapstructure:"provider"`
	Model     string   `json:"model" mapstructure:"model"`
	Fallbacks []string `json:"fallbacks" mapstructure:"fallbacks"`
}

// FailoverConfig tunes retry behavior within one candidate.
type FailoverConfig struct {
	MaxRetriesPerCandidate int    `json:"max_retries_per_candidate" mapstructure:"max_retries_per_candidate"`
	RetryDelay             string `json:"retry_delay" mapstructure:"retry_delay"`
}

// CompactionConfig tunes history summarization.
type CompactionConfig struct {
	TriggerTokens int `json:"trigger_tokens" mapstructure:"trigger_tokens"`
	KeepRecent    int `json:"keep_recent" mapstructure:"keep_recent"`
	ContextWindow int `json:"context_window" mapstructure:"context_window"`
}

// SessionConfig selects the session store backend.
type SessionConfig struct {
	Backend string `json:"backend" mapstructure:"backend"` // memory, sqlite
	Path    string `json:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			OpenAI: ProviderConfig{
				Models: []string{"gpt-4o", "gpt-4o-mini"},
			},
			Anthropic: ProviderConfig{
				Models: []string{"claude-sonnet-4-20250514"},
			},
		},
		Agent: AgentConfig{
			Temperature:   0.7,
			MaxTokens:     4096,
			MaxToolRounds: 10,
			Provider:      "openai",
			Model:         "gpt-4o",
		},
		Failover: FailoverConfig{
			MaxRetriesPerCandidate: 1,
			RetryDelay:             "1s",
		},
		Compaction: CompactionConfig{
			TriggerTokens: 60000,
			KeepRecent:    8,
			ContextWindow: 128000,
		},
		Session: SessionConfig{
			Backend: "sqlite",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
	}
}

// String returns a JSON representation of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	v := NewValidator()

	if !c.Providers.OpenAI.Configured() && !c.Providers.Anthropic.Configured() {
		return fmt.Errorf("no providers configured: at least one provider needs an api_key and models")
	}
	if c.Providers.OpenAI.Configured() {
		if err := v.ValidateAPIKey(c.Providers.OpenAI.APIKey, "openai"); err != nil {
			return err
		}
	}
	if c.Providers.Anthropic.Configured() {
		if err := v.ValidateAPIKey(c.Providers.Anthropic.APIKey, "anthropic"); err != nil {
			return err
		}
	}

	if c.Agent.Provider == "" {
		return fmt.Errorf("agent provider is required")
	}
	switch c.Agent.Provider {
	case "openai":
		if !c.Providers.OpenAI.Configured() {
			return fmt.Errorf("agent provider openai is not configured")
		}
	case "anthropic":
		if !c.Providers.Anthropic.Configured() {
			return fmt.Errorf("agent provider anthropic is not configured")
		}
	default:
		return fmt.Errorf("invalid agent provider %q (must be: openai, anthropic)", c.Agent.Provider)
	}

	if c.Agent.Model != "" {
		if err := v.ValidateModel(c.Agent.Model); err != nil {
			return err
		}
	}
	if err := v.ValidateTemperature(c.Agent.Temperature); err != nil {
		return err
	}
	if c.Agent.MaxTokens < 0 {
		return fmt.Errorf("agent max_tokens cannot be negative")
	}
	if c.Agent.MaxToolRounds < 0 {
		return fmt.Errorf("agent max_tool_rounds cannot be negative")
	}

	for _, fb := range c.Agent.Fallbacks {
		if err := v.ValidateFallback(fb); err != nil {
			return err
		}
	}

	if err := v.ValidateRetryDelay(c.Failover.RetryDelay); err != nil {
		return err
	}
	if c.Failover.MaxRetriesPerCandidate < 0 {
		return fmt.Errorf("failover max_retries_per_candidate cannot be negative")
	}

	switch c.Session.Backend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("invalid session backend %q (must be: memory, sqlite)", c.Session.Backend)
	}

	return nil
}

// SplitCandidate parses a "provider:model" or bare "provider" fallback
// entry.
func SplitCandidate(s string) (provider, model string, err error) {
	provider, model, found := strings.Cut(s, ":")
	if provider == "" || (found && model == "") {
		return "", "", fmt.Errorf("invalid fallback %q (expected provider or provider:model)", s)
	}
	return provider, model, nil
}
