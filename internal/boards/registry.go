package boards

import "sort"

// Registry holds the configured job source adapters in a deterministic order
// so every session iterates boards the same way.
type Registry struct {
	sources map[string]JobSource
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]JobSource)}
}

// Register adds an adapter; a second adapter with the same name replaces the first
func (r *Registry) Register(source JobSource) {
	r.sources[source.Name()] = source
}

// Sources returns the registered adapters sorted by name
func (r *Registry) Sources() []JobSource {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]JobSource, 0, len(names))
	for _, name := range names {
		out = append(out, r.sources[name])
	}
	return out
}

// Get returns the adapter registered under the given name
func (r *Registry) Get(name string) (JobSource, bool) {
	source, ok := r.sources[name]
	return source, ok
}
