// Package oracle resolves the configured Language Oracle provider.
package oracle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/infrastructure/llm"
	"CurriculumSpider/internal/ports"
)

// Factory builds a provider client from its configuration.
type Factory func(ctx context.Context, cfg config.OracleConfig) (ports.Oracle, error)

// Registry keeps a mapping from provider names to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Default returns a registry with the openai, azure and gemini providers.
func Default() *Registry {
	r := NewRegistry()
	chat := func(_ context.Context, cfg config.OracleConfig) (ports.Oracle, error) {
		return llm.NewChatClient(cfg)
	}
	r.Register("openai", chat)
	r.Register("azure", chat)
	r.Register("gemini", func(ctx context.Context, cfg config.OracleConfig) (ports.Oracle, error) {
		return llm.NewGeminiClient(ctx, cfg)
	})
	return r
}

// Register adds or replaces a provider factory. Names are case-insensitive.
func (r *Registry) Register(name string, factory Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[strings.ToLower(name)] = factory
}

// Resolve returns a factory by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Factory, error) {
	if factory, ok := r.factories[strings.ToLower(name)]; ok {
		return factory, nil
	}
	return nil, fmt.Errorf("oracle provider %q is not registered (known: %s)", name, strings.Join(r.Names(), ", "))
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open resolves cfg.Provider and builds the client.
func (r *Registry) Open(ctx context.Context, cfg config.OracleConfig) (ports.Oracle, error) {
	factory, err := r.Resolve(cfg.Provider)
	if err != nil {
		return nil, err
	}
	client, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s oracle: %w", cfg.Provider, err)
	}
	return client, nil
}
