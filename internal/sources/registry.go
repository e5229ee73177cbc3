package sources

import (
	"sort"
	"sync"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
)

// Registry manages the set of configured source adapters.
// It provides thread-safe registration and retrieval; the fan-out coordinator
// consumes EnabledAdapters for each pipeline run.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.SourceType]SourceAdapter
}

// NewRegistry creates a new empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[domain.SourceType]SourceAdapter),
	}
}

// Register adds an adapter to the registry, replacing any adapter already
// registered for the same source type. This method is thread-safe.
func (r *Registry) Register(adapter SourceAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.SourceType()] = adapter
}

// Get returns an adapter by source type, or nil if not registered.
func (r *Registry) Get(sourceType domain.SourceType) SourceAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[sourceType]
}

// AllAdapters returns a snapshot of all registered adapters, ordered by
// source type for reproducible iteration.
func (r *Registry) AllAdapters() []SourceAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(false)
}

// EnabledAdapters returns a snapshot of adapters whose IsEnabled() is true,
// ordered by source type for reproducible iteration.
func (r *Registry) EnabledAdapters() []SourceAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(true)
}

// snapshot must be called with at least a read lock held.
func (r *Registry) snapshot(enabledOnly bool) []SourceAdapter {
	adapters := make([]SourceAdapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		if enabledOnly && !a.IsEnabled() {
			continue
		}
		adapters = append(adapters, a)
	}
	sort.Slice(adapters, func(i, j int) bool {
		return adapters[i].SourceType() < adapters[j].SourceType()
	})
	return adapters
}
