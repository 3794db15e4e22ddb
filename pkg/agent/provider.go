package agent

import (
	"context"
	"fmt"
	"sync"
)

// Provider is a chat-completion backend. Implementations wrap one vendor
// SDK and translate its failures into classifiable errors.
type Provider interface {
	// Name returns the provider identifier used in candidate keys.
	Name() string
	// Models returns the configured model identifiers, preferred first.
	Models() []string
	// Chat performs one blocking completion round.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// ChatStream performs one streaming completion round. The returned
	// channel is closed when the stream ends; a terminal failure arrives
	// as a final event with Err set.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)
}

// Registry holds the configured providers in registration order. It
// doubles as the failover candidate catalog.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Registration order determines failover order
// across providers.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = p
	r.order = append(r.order, name)
	return nil
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// ProviderNames returns provider names in registration order.
func (r *Registry) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ProviderModels returns the models of the named provider, or nil when
// the provider is not registered.
func (r *Registry) ProviderModels(provider string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[provider]
	if !ok {
		return nil
	}
	return p.Models()
}
