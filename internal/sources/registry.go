package sources

import (
	"fmt"
	"sort"
	"strings"
)

// Registry holds the configured data sources. It is constructed once at
// process start and passed to the job driver; there is no ambient global
// registry.
type Registry struct {
	sources map[string]*Source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*Source)}
}

// Register adds a source; IDs must be unique.
func (r *Registry) Register(src *Source) error {
	if src.ID == "" {
		return fmt.Errorf("registry: source without id")
	}
	if _, ok := r.sources[src.ID]; ok {
		return fmt.Errorf("registry: duplicate source id %q", src.ID)
	}
	r.sources[src.ID] = src
	return nil
}

// Get returns a source by ID.
func (r *Registry) Get(id string) (*Source, error) {
	src, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("unknown data source %q, available sources: %s", id, strings.Join(r.IDs(), ", "))
	}
	return src, nil
}

// IDs lists all registered source IDs, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
