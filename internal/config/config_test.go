package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configuredConfig() *Config {
	cfg := DefaultConfig()
	cfg.Providers.OpenAI.APIKey = "sk-test"
	cfg.Providers.Anthropic.APIKey = "sk-ant-test"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("should accept configured defaults", func(t *testing.T) {
		require.NoError(t, configuredConfig().Validate())
	})

	t.Run("should reject config without any provider", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no providers configured")
	})

	t.Run("should reject unknown agent provider", func(t *testing.T) {
		cfg := configuredConfig()
		cfg.Agent.Provider = "mistral"
		require.Error(t, cfg.Validate())
	})

	t.Run("should reject agent provider without credentials", func(t *testing.T) {
		cfg := configuredConfig()
		cfg.Providers.OpenAI.APIKey = ""
		cfg.Agent.Provider = "openai"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})

	t.Run("should reject out-of-range temperature", func(t *testing.T) {
		cfg := configuredConfig()
		cfg.Agent.Temperature = 2.5
		require.Error(t, cfg.Validate())
	})

	t.Run("should reject malformed fallback entries", func(t *testing.T) {
		cfg := configuredConfig()
		cfg.Agent.Fallbacks = []string{"anthropic:"}
		require.Error(t, cfg.Validate())
	})

	t.Run("should accept bare provider fallbacks", func(t *testing.T) {
		cfg := configuredConfig()
		cfg.Agent.Fallbacks = []string{"anthropic", "openai:gpt-4o-mini"}
		require.NoError(t, cfg.Validate())
	})

	t.Run("should reject malformed retry delay", func(t *testing.T) {
		cfg := configuredConfig()
		cfg.Failover.RetryDelay = "soon"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retry delay")
	})

	t.Run("should reject negative retry delay", func(t *testing.T) {
		cfg := configuredConfig()
		cfg.Failover.RetryDelay = "-1s"
		require.Error(t, cfg.Validate())
	})

	t.Run("should accept an empty retry delay", func(t *testing.T) {
		cfg := configuredConfig()
		cfg.Failover.RetryDelay = ""
		require.NoError(t, cfg.Validate())
	})

	t.Run("should reject malformed provider keys", func(t *testing.T) {
		cfg := configuredConfig()
		cfg.Providers.Anthropic.APIKey = "not-a-key"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sk-ant-")
	})

	t.Run("should reject model names with whitespace", func(t *testing.T) {
		cfg := configuredConfig()
		cfg.Agent.Model = "gpt 4o"
		require.Error(t, cfg.Validate())
	})

	t.Run("should reject unknown session backend", func(t *testing.T) {
		cfg := configuredConfig()
		cfg.Session.Backend = "redis"
		require.Error(t, cfg.Validate())
	})
}

func TestSplitCandidate(t *testing.T) {
	t.Run("should split provider and model", func(t *testing.T) {
		provider, model, err := SplitCandidate("openai:gpt-4o")
		require.NoError(t, err)
		assert.Equal(t, "openai", provider)
		assert.Equal(t, "gpt-4o", model)
	})

	t.Run("should accept bare provider", func(t *testing.T) {
		provider, model, err := SplitCandidate("anthropic")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", provider)
		assert.Empty(t, model)
	})

	t.Run("should reject empty parts", func(t *testing.T) {
		_, _, err := SplitCandidate(":gpt-4o")
		require.Error(t, err)
		_, _, err = SplitCandidate("openai:")
		require.Error(t, err)
	})
}
