package failover

import (
	"sync"
	"time"

	"github.com/adilhn/selene/internal/observability"
	"github.com/rs/zerolog"
)

// Ledger tracks per-candidate suspension windows. Entries are keyed by
// Candidate.Key() and lazily evicted on lookup once expired. The ledger is
// constructor-injected into whatever owns it; there is no process-wide
// instance, so orchestrators and tests never share cooldown state.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
	logger  zerolog.Logger
}

// NewLedger creates an empty cooldown ledger.
func NewLedger(logger zerolog.Logger) *Ledger {
	return &Ledger{
		entries: make(map[string]time.Time),
		now:     time.Now,
		logger:  logger,
	}
}

// IsInCooldown reports whether key is currently suspended. Expired entries
// are deleted on the way out.
func (l *Ledger) IsInCooldown(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.entries[key]
	if !ok {
		return false
	}
	if l.now().After(expiry) {
		delete(l.entries, key)
		observability.SetCandidateCooldown(key, false)
		return false
	}
	return true
}

// SetCooldown suspends key for the reason's duration. Reasons with a zero
// duration are a no-op. A later failure for the same key overwrites the
// window; last write wins.
func (l *Ledger) SetCooldown(key string, reason Reason) {
	d := reason.CooldownDuration()
	if d <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	expiry := l.now().Add(d)
	l.entries[key] = expiry
	observability.SetCandidateCooldown(key, true)

	l.logger.Debug().
		Str("key", key).
		Str("reason", string(reason)).
		Time("until", expiry).
		Msg("Candidate placed in cooldown")
}

// Clear removes the cooldown entry for key, if any.
func (l *Ledger) Clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	observability.SetCandidateCooldown(key, false)
}

// ClearAll removes every cooldown entry.
func (l *Ledger) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.entries {
		observability.SetCandidateCooldown(key, false)
	}
	l.entries = make(map[string]time.Time)
}
