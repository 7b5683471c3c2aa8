// Package embedder provides a unified abstraction over embedding backends.
// Providers are registered by name and constructed from a config map, so the
// backend can be swapped through configuration alone.
package embedder

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Provider generates vector embeddings. The model is passed per call because
// the embedding service routes different content profiles to different
// models behind the same backend.
type Provider interface {
	// Embed generates embeddings for the given texts using the named model.
	// The result preserves input order.
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, model string, text string) ([]float32, error)

	// Name returns the provider name.
	Name() string
}

// Factory constructs a Provider from a config map.
type Factory func(config map[string]any) (Provider, error)

var registry = struct {
	mu        sync.RWMutex
	factories map[string]Factory
}{
	factories: make(map[string]Factory),
}

// Register registers a provider factory under the given name.
func Register(name string, factory Factory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.factories[name] = factory
}

// New creates a provider instance by name.
func New(name string, config map[string]any) (Provider, error) {
	registry.mu.RLock()
	factory, ok := registry.factories[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}
	return factory(config)
}

// List returns the names of all registered providers, sorted.
func List() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
