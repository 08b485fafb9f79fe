package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Models names the model used for each tier of a provider.
type Models struct {
	Default   string
	Reasoning string
}

func (m Models) forTier(t Tier) string {
	if t == TierReasoning && strings.TrimSpace(m.Reasoning) != "" {
		return m.Reasoning
	}
	return m.Default
}

// Constructor builds a client for one concrete model.
type Constructor func(ctx context.Context, model string) (Client, error)

// UnknownProviderError reports a provider name outside the registry.
type UnknownProviderError struct {
	Provider string
	Valid    []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("Invalid configuration. Valid providers: %v", e.Valid)
}

// Registry resolves selections to clients. Clients are built lazily and cached
// per provider and model.
type Registry struct {
	mu      sync.Mutex
	models  map[string]Models
	ctors   map[string]Constructor
	clients map[string]Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models:  map[string]Models{},
		ctors:   map[string]Constructor{},
		clients: map[string]Client{},
	}
}

// Register adds a provider with its models and constructor.
func (r *Registry) Register(provider string, models Models, ctor Constructor) {
	key := normalizeProvider(provider)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[key] = models
	r.ctors[key] = ctor
}

// Providers lists registered providers in sorted order.
func (r *Registry) Providers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate returns *UnknownProviderError when provider is not registered.
func (r *Registry) Validate(provider string) error {
	key := normalizeProvider(provider)
	r.mu.Lock()
	_, ok := r.ctors[key]
	r.mu.Unlock()
	if !ok {
		return &UnknownProviderError{Provider: provider, Valid: r.Providers()}
	}
	return nil
}

// Model reports the model name a selection resolves to.
func (r *Registry) Model(sel Selection) (string, error) {
	if err := r.Validate(sel.Provider); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.models[normalizeProvider(sel.Provider)].forTier(sel.Tier), nil
}

// Resolve returns a retrying client for the selection.
func (r *Registry) Resolve(ctx context.Context, sel Selection) (Client, error) {
	if err := r.Validate(sel.Provider); err != nil {
		return nil, err
	}
	key := normalizeProvider(sel.Provider)

	r.mu.Lock()
	model := r.models[key].forTier(sel.Tier)
	ctor := r.ctors[key]
	cacheKey := key + "/" + model
	if c, ok := r.clients[cacheKey]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	base, err := ctor(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("init %s client model=%s: %w", key, model, err)
	}
	client := NewRetrying(base, key, model)

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[cacheKey]; ok {
		return c, nil
	}
	r.clients[cacheKey] = client
	return client, nil
}

func normalizeProvider(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}
