package failover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	order  []string
	models map[string][]string
}

func (c *fakeCatalog) ProviderNames() []string { return c.order }
func (c *fakeCatalog) ProviderModels(provider string) []string {
	return c.models[provider]
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		order: []string{"openai", "anthropic", "groq"},
		models: map[string][]string{
			"openai":    {"gpt-4o", "gpt-4o-mini"},
			"anthropic": {"claude-sonnet", "claude-haiku"},
			"groq":      {"llama-70b"},
		},
	}
}

func TestResolveCandidates(t *testing.T) {
	t.Run("should order preferred, fallbacks, sibling models, other providers", func(t *testing.T) {
		got := ResolveCandidates(
			Candidate{Provider: "openai", Model: "gpt-4o"},
			[]Candidate{{Provider: "anthropic", Model: "claude-haiku"}},
			testCatalog(),
		)

		want := []Candidate{
			{Provider: "openai", Model: "gpt-4o"},
			{Provider: "anthropic", Model: "claude-haiku"},
			{Provider: "openai", Model: "gpt-4o-mini"},
			{Provider: "anthropic", Model: "claude-sonnet"},
			{Provider: "groq", Model: "llama-70b"},
		}
		assert.Equal(t, want, got)
	})

	t.Run("should deduplicate repeated pairs", func(t *testing.T) {
		got := ResolveCandidates(
			Candidate{Provider: "openai", Model: "gpt-4o"},
			[]Candidate{
				{Provider: "openai", Model: "gpt-4o"},
				{Provider: "openai", Model: "gpt-4o-mini"},
			},
			testCatalog(),
		)

		seen := map[string]int{}
		for _, c := range got {
			seen[c.Key()]++
		}
		for key, count := range seen {
			assert.Equal(t, 1, count, key)
		}
	})

	t.Run("should skip unconfigured providers", func(t *testing.T) {
		got := ResolveCandidates(
			Candidate{Provider: "openai", Model: "gpt-4o"},
			[]Candidate{{Provider: "mistral", Model: "large"}},
			testCatalog(),
		)
		for _, c := range got {
			assert.NotEqual(t, "mistral", c.Provider)
		}
	})

	t.Run("should survive an unconfigured preferred provider", func(t *testing.T) {
		got := ResolveCandidates(
			Candidate{Provider: "mistral", Model: "large"},
			nil,
			testCatalog(),
		)
		require.NotEmpty(t, got)
		assert.Equal(t, Candidate{Provider: "openai", Model: "gpt-4o"}, got[0])
	})

	t.Run("should return empty list for empty catalog", func(t *testing.T) {
		got := ResolveCandidates(
			Candidate{Provider: "openai", Model: "gpt-4o"},
			nil,
			&fakeCatalog{},
		)
		assert.Empty(t, got)
	})
}

func TestCandidateKey(t *testing.T) {
	t.Run("should join provider and model", func(t *testing.T) {
		assert.Equal(t, "openai:gpt-4o", Candidate{Provider: "openai", Model: "gpt-4o"}.Key())
	})

	t.Run("should fall back to bare provider", func(t *testing.T) {
		assert.Equal(t, "openai", Candidate{Provider: "openai"}.Key())
	})
}
