package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry maps provider type names to their factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}
}

// RegisterFactory registers the factory for typeName, replacing any
// previous registration.
func (r *Registry) RegisterFactory(typeName string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = factory
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for name := range r.factories {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Create builds a provider of type typeName from cfg.
func (r *Registry) Create(typeName string, cfg FactoryConfig) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[typeName]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", typeName)
	}

	p, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating provider %s: %w", cfg.Name, err)
	}

	r.logger.Info("provider created",
		slog.String("name", p.Name()),
		slog.String("type", p.Type()),
	)
	return p, nil
}
