package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator(t *testing.T) {
	v := NewValidator()

	t.Run("should validate API key prefixes", func(t *testing.T) {
		require.NoError(t, v.ValidateAPIKey("sk-ant-abc", "anthropic"))
		require.NoError(t, v.ValidateAPIKey("sk-abc", "openai"))
		require.Error(t, v.ValidateAPIKey("", "openai"))
		require.Error(t, v.ValidateAPIKey("abc", "anthropic"))
		require.Error(t, v.ValidateAPIKey("ant-abc", "openai"))
	})

	t.Run("should validate model names", func(t *testing.T) {
		require.NoError(t, v.ValidateModel("gpt-4o"))
		require.Error(t, v.ValidateModel(""))
		require.Error(t, v.ValidateModel("gpt 4o"))
	})

	t.Run("should validate temperature range", func(t *testing.T) {
		require.NoError(t, v.ValidateTemperature(0))
		require.NoError(t, v.ValidateTemperature(1.2))
		require.Error(t, v.ValidateTemperature(-0.1))
		require.Error(t, v.ValidateTemperature(2.1))
	})

	t.Run("should validate retry delay strings", func(t *testing.T) {
		require.NoError(t, v.ValidateRetryDelay(""))
		require.NoError(t, v.ValidateRetryDelay("500ms"))
		require.Error(t, v.ValidateRetryDelay("soon"))
		require.Error(t, v.ValidateRetryDelay("-1s"))
	})

	t.Run("should validate fallback entries", func(t *testing.T) {
		require.NoError(t, v.ValidateFallback("anthropic"))
		require.NoError(t, v.ValidateFallback("openai:gpt-4o-mini"))
		err := v.ValidateFallback(":x")
		assert.Error(t, err)
	})
}
