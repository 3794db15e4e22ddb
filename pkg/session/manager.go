package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adilhn/selene/internal/observability"
	"github.com/adilhn/selene/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Manager mediates all session mutations. Turns for the same session key
// are serialized through a per-key lock, so two near-simultaneous messages
// from one user queue strictly instead of interleaving history appends.
type Manager struct {
	store      Store
	writeLocks map[string]*sync.Mutex
	locksMu    sync.Mutex
}

// NewManager creates a manager on top of the given store.
func NewManager(store Store) (*Manager, error) {
	observability.EnsureRegistered()

	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	return &Manager{
		store:      store,
		writeLocks: make(map[string]*sync.Mutex),
	}, nil
}

func (m *Manager) keyLock(sessionKey string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	if lock, ok := m.writeLocks[sessionKey]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	m.writeLocks[sessionKey] = lock
	return lock
}

// Acquire locks the session key for the duration of one orchestrated turn
// and returns the unlock function.
func (m *Manager) Acquire(sessionKey string) func() {
	lock := m.keyLock(sessionKey)
	lock.Lock()
	return lock.Unlock
}

// Load returns the session for key, creating a fresh empty session when
// none exists yet. The returned data is the caller's to mutate; call Save
// to persist it.
func (m *Manager) Load(ctx context.Context, sessionKey string) (*Data, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"selene.session",
		"session.load",
		attribute.String("session_key", sessionKey),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	data, found, err := m.store.Get(ctx, sessionKey)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !found {
		log.Debug().Str("session_key", sessionKey).Msg("Creating new session")
		return &Data{LastUpdate: time.Now()}, nil
	}
	return data, nil
}

// Save persists the session, stamping LastUpdate.
func (m *Manager) Save(ctx context.Context, sessionKey string, data *Data) error {
	ctx, span := tracing.StartSpan(
		ctx,
		"selene.session",
		"session.save",
		attribute.String("session_key", sessionKey),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	data.LastUpdate = time.Now()
	if err := m.store.Set(ctx, sessionKey, data); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Append adds messages to the session log and persists it.
func (m *Manager) Append(ctx context.Context, sessionKey string, data *Data, msgs ...Message) error {
	now := time.Now()
	for i := range msgs {
		if msgs[i].Timestamp.IsZero() {
			msgs[i].Timestamp = now
		}
	}
	data.Messages = append(data.Messages, msgs...)
	return m.Save(ctx, sessionKey, data)
}

// AddUsage increments the session's lifetime token counter. The counter
// never decreases, including across compaction.
func (m *Manager) AddUsage(data *Data, totalTokens int) {
	if totalTokens > 0 {
		data.TotalTokensUsed += totalTokens
	}
}

// Clear replaces the session with a fresh empty one.
func (m *Manager) Clear(ctx context.Context, sessionKey string) error {
	unlock := m.Acquire(sessionKey)
	defer unlock()

	if err := m.store.Set(ctx, sessionKey, &Data{LastUpdate: time.Now()}); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	log.Info().Str("session_key", sessionKey).Msg("Session cleared")
	return nil
}

// Delete removes the session entirely.
func (m *Manager) Delete(ctx context.Context, sessionKey string) error {
	unlock := m.Acquire(sessionKey)
	defer unlock()

	if err := m.store.Delete(ctx, sessionKey); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	m.locksMu.Lock()
	delete(m.writeLocks, sessionKey)
	m.locksMu.Unlock()

	log.Info().Str("session_key", sessionKey).Msg("Session deleted")
	return nil
}

// List returns the known session keys and refreshes the sessions gauge.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	observability.SetActiveSessions(len(keys))
	return keys, nil
}
