package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFor(t *testing.T) {
	t.Run("should key group chats by chat", func(t *testing.T) {
		assert.Equal(t, "telegram:chat42", KeyFor("telegram", "chat42", "user7", true))
	})

	t.Run("should key direct chats by sender", func(t *testing.T) {
		assert.Equal(t, "telegram:user7", KeyFor("telegram", "chat42", "user7", false))
	})
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	newManager := func(t *testing.T) *Manager {
		t.Helper()
		m, err := NewManager(NewMemoryStore())
		require.NoError(t, err)
		return m
	}

	t.Run("should require a store", func(t *testing.T) {
		_, err := NewManager(nil)
		require.Error(t, err)
	})

	t.Run("should create a fresh session on first load", func(t *testing.T) {
		m := newManager(t)
		data, err := m.Load(ctx, "k1")
		require.NoError(t, err)
		assert.Empty(t, data.Messages)
		assert.False(t, data.LastUpdate.IsZero())
	})

	t.Run("should persist appended messages", func(t *testing.T) {
		m := newManager(t)
		data, err := m.Load(ctx, "k1")
		require.NoError(t, err)

		require.NoError(t, m.Append(ctx, "k1", data,
			Message{Role: RoleUser, Content: "hi"},
			Message{Role: RoleAssistant, Content: "hello"},
		))

		reloaded, err := m.Load(ctx, "k1")
		require.NoError(t, err)
		require.Len(t, reloaded.Messages, 2)
		assert.False(t, reloaded.Messages[0].Timestamp.IsZero())
	})

	t.Run("should keep the token counter monotonic", func(t *testing.T) {
		m := newManager(t)
		data := &Data{}
		m.AddUsage(data, 100)
		m.AddUsage(data, 0)
		m.AddUsage(data, -5)
		m.AddUsage(data, 50)
		assert.Equal(t, 150, data.TotalTokensUsed)
	})

	t.Run("should clear to an empty session", func(t *testing.T) {
		m := newManager(t)
		data, _ := m.Load(ctx, "k1")
		require.NoError(t, m.Append(ctx, "k1", data, Message{Role: RoleUser, Content: "hi"}))

		require.NoError(t, m.Clear(ctx, "k1"))
		reloaded, err := m.Load(ctx, "k1")
		require.NoError(t, err)
		assert.Empty(t, reloaded.Messages)
	})

	t.Run("should delete sessions", func(t *testing.T) {
		m := newManager(t)
		data, _ := m.Load(ctx, "k1")
		require.NoError(t, m.Save(ctx, "k1", data))
		require.NoError(t, m.Delete(ctx, "k1"))

		keys, err := m.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("should serialize concurrent appends per key", func(t *testing.T) {
		m := newManager(t)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := m.Acquire("shared")
				defer unlock()

				data, err := m.Load(ctx, "shared")
				assert.NoError(t, err)
				assert.NoError(t, m.Append(ctx, "shared", data, Message{Role: RoleUser, Content: "m"}))
			}()
		}
		wg.Wait()

		data, err := m.Load(ctx, "shared")
		require.NoError(t, err)
		assert.Len(t, data.Messages, 20)
	})
}
