package agent

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseToolArguments(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("should return empty map for empty input", func(t *testing.T) {
		assert.Equal(t, map[string]interface{}{}, ParseToolArguments("", logger))
		assert.Equal(t, map[string]interface{}{}, ParseToolArguments("   ", logger))
		assert.Equal(t, map[string]interface{}{}, ParseToolArguments("{}", logger))
	})

	t.Run("should parse well-formed arguments", func(t *testing.T) {
		args := ParseToolArguments(`{"city": "Oslo", "days": 3}`, logger)
		assert.Equal(t, "Oslo", args["city"])
		assert.Equal(t, float64(3), args["days"])
	})

	t.Run("should repair trailing commas", func(t *testing.T) {
		args := ParseToolArguments(`{"city": "Oslo",}`, logger)
		assert.Equal(t, "Oslo", args["city"])

		args = ParseToolArguments(`{"tags": ["a", "b",],}`, logger)
		assert.Equal(t, []interface{}{"a", "b"}, args["tags"])
	})

	t.Run("should repair single-quoted strings", func(t *testing.T) {
		args := ParseToolArguments(`{'city': 'Oslo'}`, logger)
		assert.Equal(t, "Oslo", args["city"])
	})

	t.Run("should repair raw control characters in values", func(t *testing.T) {
		args := ParseToolArguments("{\"note\": \"line one\nline two\"}", logger)
		assert.Equal(t, "line one\nline two", args["note"])
	})

	t.Run("should take first of concatenated objects", func(t *testing.T) {
		args := ParseToolArguments(`{"city": "Oslo"}{"city": "Bergen"}`, logger)
		assert.Equal(t, "Oslo", args["city"])
		assert.Len(t, args, 1)
	})

	t.Run("should extract object embedded in prose", func(t *testing.T) {
		args := ParseToolArguments(`Here are the arguments: {"city": "Oslo"} as requested.`, logger)
		assert.Equal(t, "Oslo", args["city"])
	})

	t.Run("should handle nested braces inside strings", func(t *testing.T) {
		args := ParseToolArguments(`{"pattern": "func() { return }"}`, logger)
		assert.Equal(t, "func() { return }", args["pattern"])
	})

	t.Run("should return empty map when nothing is salvageable", func(t *testing.T) {
		assert.Equal(t, map[string]interface{}{}, ParseToolArguments("not json at all", logger))
		assert.Equal(t, map[string]interface{}{}, ParseToolArguments(`{"unclosed": `, logger))
	})

	t.Run("should return empty map for JSON null", func(t *testing.T) {
		assert.Equal(t, map[string]interface{}{}, ParseToolArguments("null", logger))
	})
}

func TestScanBalanced(t *testing.T) {
	t.Run("should find matching brace", func(t *testing.T) {
		end, ok := scanBalanced(`{"a": {"b": 1}}`, 0)
		assert.True(t, ok)
		assert.Equal(t, 14, end)
	})

	t.Run("should ignore braces inside strings", func(t *testing.T) {
		s := `{"a": "}"}`
		end, ok := scanBalanced(s, 0)
		assert.True(t, ok)
		assert.Equal(t, len(s)-1, end)
	})

	t.Run("should report unbalanced input", func(t *testing.T) {
		_, ok := scanBalanced(`{"a": 1`, 0)
		assert.False(t, ok)
	})
}
