package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolCallAccumulator(t *testing.T) {
	t.Run("should assemble a call from argument fragments", func(t *testing.T) {
		acc := newToolCallAccumulator()
		acc.Add(ToolCallDelta{Index: 0, ID: "call_1", Name: "get_weather"})
		acc.Add(ToolCallDelta{Index: 0, Arguments: `{"city":`})
		acc.Add(ToolCallDelta{Index: 0, Arguments: ` "Oslo"}`})

		calls := acc.Completed()
		require.Len(t, calls, 1)
		assert.Equal(t, "call_1", calls[0].ID)
		assert.Equal(t, "get_weather", calls[0].Name)
		assert.Equal(t, `{"city": "Oslo"}`, calls[0].Arguments)
	})

	t.Run("should adopt an id arriving after the first fragment", func(t *testing.T) {
		acc := newToolCallAccumulator()
		acc.Add(ToolCallDelta{Index: 0, Name: "search"})
		acc.Add(ToolCallDelta{Index: 0, ID: "call_late", Arguments: `{"q": "go"}`})

		calls := acc.Completed()
		require.Len(t, calls, 1)
		assert.Equal(t, "call_late", calls[0].ID)
		assert.Equal(t, "search", calls[0].Name)
	})

	t.Run("should re-key a record when a later fragment changes the id", func(t *testing.T) {
		acc := newToolCallAccumulator()
		acc.Add(ToolCallDelta{Index: 0, ID: "call_a", Name: "search", Arguments: `{"q":`})
		acc.Add(ToolCallDelta{Index: 0, ID: "call_b", Arguments: ` "go"`})
		// Fragments addressed by the new id land on the same record.
		acc.Add(ToolCallDelta{Index: 9, ID: "call_b", Arguments: `}`})

		calls := acc.Completed()
		require.Len(t, calls, 1)
		assert.Equal(t, "call_b", calls[0].ID)
		assert.Equal(t, `{"q": "go"}`, calls[0].Arguments)
	})

	t.Run("should keep parallel calls separate by index", func(t *testing.T) {
		acc := newToolCallAccumulator()
		acc.Add(ToolCallDelta{Index: 0, ID: "a", Name: "first"})
		acc.Add(ToolCallDelta{Index: 1, ID: "b", Name: "second"})
		acc.Add(ToolCallDelta{Index: 0, Arguments: `{"n": 1}`})
		acc.Add(ToolCallDelta{Index: 1, Arguments: `{"n": 2}`})

		calls := acc.Completed()
		require.Len(t, calls, 2)
		assert.Equal(t, `{"n": 1}`, calls[0].Arguments)
		assert.Equal(t, `{"n": 2}`, calls[1].Arguments)
	})

	t.Run("should not overwrite the name once set", func(t *testing.T) {
		acc := newToolCallAccumulator()
		acc.Add(ToolCallDelta{Index: 0, ID: "a", Name: "first"})
		acc.Add(ToolCallDelta{Index: 0, Name: "second"})

		calls := acc.Completed()
		require.Len(t, calls, 1)
		assert.Equal(t, "first", calls[0].Name)
	})

	t.Run("should drop fragments that never got a name", func(t *testing.T) {
		acc := newToolCallAccumulator()
		acc.Add(ToolCallDelta{Index: 0, Arguments: `{"orphan": true}`})

		assert.Empty(t, acc.Completed())
	})

	t.Run("should assign a synthetic id when the provider sent none", func(t *testing.T) {
		acc := newToolCallAccumulator()
		acc.Add(ToolCallDelta{Index: 0, Name: "get_weather", Arguments: "{}"})

		calls := acc.Completed()
		require.Len(t, calls, 1)
		assert.NotEmpty(t, calls[0].ID)
		assert.Contains(t, calls[0].ID, "call_")
	})
}

func TestReplyStream(t *testing.T) {
	ctx := context.Background()

	t.Run("should deliver chunks then the final reply", func(t *testing.T) {
		stream := newReplyStream()
		stream.emit(ctx, "hello ")
		stream.emit(ctx, "world")
		stream.finish(&Reply{Content: "hello world"}, nil)

		var got string
		for chunk := range stream.Text() {
			got += chunk
		}
		assert.Equal(t, "hello world", got)

		reply, err := stream.Wait()
		require.NoError(t, err)
		assert.Equal(t, "hello world", reply.Content)
	})

	t.Run("should deliver every chunk past the buffer size", func(t *testing.T) {
		stream := newReplyStream()
		go func() {
			for i := 0; i < 100; i++ {
				stream.emit(ctx, "x")
			}
			stream.finish(&Reply{Content: strings.Repeat("x", 100)}, nil)
		}()

		var got strings.Builder
		for chunk := range stream.Text() {
			got.WriteString(chunk)
		}
		assert.Len(t, got.String(), 100)

		reply, err := stream.Wait()
		require.NoError(t, err)
		assert.Equal(t, reply.Content, got.String())
	})

	t.Run("should release the producer when the turn is cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		stream := newReplyStream()
		for i := 0; i < 1000; i++ {
			stream.emit(cancelled, "chunk")
		}
		stream.finish(&Reply{Content: "done"}, nil)

		reply, err := stream.Wait()
		require.NoError(t, err)
		assert.Equal(t, "done", reply.Content)
	})
}
