package codegen

import (
	"fmt"
	"sort"
)

// Factory creates a generator from common options
type Factory func(opts Options) Generator

// Registry manages available backends
type Registry struct {
	generators map[string]Factory
}

// NewRegistry creates a new generator registry
func NewRegistry() *Registry {
	r := &Registry{
		generators: make(map[string]Factory),
	}
	return r
}

// Register adds a new generator factory to the registry
func (r *Registry) Register(name string, factory Factory) {
	r.generators[name] = factory
}

// Get returns a generator for the specified backend
func (r *Registry) Get(name string, opts Options) (Generator, error) {
	factory, exists := r.generators[name]
	if !exists {
		return nil, fmt.Errorf("unsupported backend: %s", name)
	}

	return factory(opts), nil
}

// Names returns the registered backend names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
