package session

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	summary string
	err     error
	gotOld  []Message
	gotOpts SummarizeOptions
}

func (s *fakeSummarizer) Summarize(ctx context.Context, old []Message, opts SummarizeOptions) (string, error) {
	s.gotOld = old
	s.gotOpts = opts
	return s.summary, s.err
}

func longHistory(n int) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		msgs[i] = Message{Role: role, Content: strings.Repeat("words and more words ", 50)}
	}
	return msgs
}

func TestEstimator(t *testing.T) {
	e := NewEstimator()

	t.Run("should count more tokens for longer text", func(t *testing.T) {
		short := e.CountText("hello")
		long := e.CountText(strings.Repeat("hello world ", 100))
		assert.Greater(t, long, short)
	})

	t.Run("should include tool calls in message estimates", func(t *testing.T) {
		plain := e.EstimateTokens([]Message{{Role: RoleAssistant, Content: "x"}})
		withCall := e.EstimateTokens([]Message{{
			Role:      RoleAssistant,
			Content:   "x",
			ToolCalls: []ToolCall{{Name: "search", Arguments: `{"query": "a long query string"}`}},
		}})
		assert.Greater(t, withCall, plain)
	})
}

func TestCompactIfNeeded(t *testing.T) {
	ctx := context.Background()

	t.Run("should do nothing under the trigger", func(t *testing.T) {
		s := &fakeSummarizer{summary: "sum"}
		c := NewCompactor(s, 100000, 4, 128000)
		data := &Data{Messages: longHistory(6)}

		changed, err := c.CompactIfNeeded(ctx, data)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Len(t, data.Messages, 6)
	})

	t.Run("should replace old messages with a summary", func(t *testing.T) {
		s := &fakeSummarizer{summary: "they discussed many words"}
		c := NewCompactor(s, 100, 4, 128000)
		data := &Data{Messages: longHistory(12), TotalTokensUsed: 999}

		changed, err := c.CompactIfNeeded(ctx, data)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, "they discussed many words", data.Summary)
		assert.Len(t, data.Messages, 4)
		assert.Len(t, s.gotOld, 8)
		// Lifetime counter is untouched by compaction.
		assert.Equal(t, 999, data.TotalTokensUsed)
	})

	t.Run("should hand the previous summary to the summarizer", func(t *testing.T) {
		s := &fakeSummarizer{summary: "new summary"}
		c := NewCompactor(s, 100, 2, 128000)
		data := &Data{Messages: longHistory(8), Summary: "old summary"}

		_, err := c.CompactIfNeeded(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, "old summary", s.gotOpts.PreviousSummary)
	})

	t.Run("should prune when summarization fails", func(t *testing.T) {
		s := &fakeSummarizer{err: fmt.Errorf("model unavailable")}
		c := NewCompactor(s, 100, 4, 2000)
		data := &Data{Messages: longHistory(12)}

		changed, err := c.CompactIfNeeded(ctx, data)
		require.Error(t, err)
		assert.True(t, changed)
		assert.Empty(t, data.Summary)
		assert.Less(t, len(data.Messages), 12)
	})

	t.Run("should prune without a summarizer", func(t *testing.T) {
		c := NewCompactor(nil, 100, 4, 2000)
		data := &Data{Messages: longHistory(12)}

		changed, err := c.CompactIfNeeded(ctx, data)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Less(t, len(data.Messages), 12)
	})

	t.Run("should not compact below keep-recent", func(t *testing.T) {
		s := &fakeSummarizer{summary: "sum"}
		c := NewCompactor(s, 1, 10, 128000)
		data := &Data{Messages: longHistory(8)}

		changed, err := c.CompactIfNeeded(ctx, data)
		require.NoError(t, err)
		assert.False(t, changed)
	})
}
