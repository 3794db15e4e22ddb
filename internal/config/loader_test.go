package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader(t *testing.T) {
	t.Run("should return defaults when file is missing", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "missing.json"))
		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "openai", cfg.Agent.Provider)
		assert.Equal(t, 10, cfg.Agent.MaxToolRounds)
		assert.NotEmpty(t, cfg.Session.Path)
	})

	t.Run("should load values from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "selene.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"agent": {"provider": "anthropic", "model": "claude-sonnet-4-20250514", "max_tool_rounds": 5}
		}`), 0644))

		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)
		assert.Equal(t, "anthropic", cfg.Agent.Provider)
		assert.Equal(t, 5, cfg.Agent.MaxToolRounds)
		// Untouched sections keep their defaults.
		assert.Equal(t, "sqlite", cfg.Session.Backend)
	})

	t.Run("should apply credential environment overrides", func(t *testing.T) {
		t.Setenv("SELENE_OPENAI_API_KEY", "sk-from-env")
		cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.json")).Load()
		require.NoError(t, err)
		assert.Equal(t, "sk-from-env", cfg.Providers.OpenAI.APIKey)
	})

	t.Run("should round-trip through Save", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "selene.json")
		loader := NewLoader(path)

		cfg := DefaultConfig()
		cfg.Agent.Model = "gpt-4o-mini"
		cfg.DataDir = t.TempDir()
		require.NoError(t, loader.Save(cfg))

		loaded, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", loaded.Agent.Model)
	})
}
