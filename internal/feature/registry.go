// Package feature holds the registry of optional capabilities a deployment
// profile can enable. Features are registered explicitly by name at process
// start; there is no discovery of arbitrary code.
package feature

import (
	"fmt"
	"sort"
	"sync"
)

// Feature is one optional capability.
type Feature interface {
	Name() string
	Description() string
}

// Constructor builds a feature instance when its name is enabled.
type Constructor func() (Feature, error)

// Registry maps feature names to constructors.
type Registry struct {
	mu           sync.Mutex
	constructors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a named constructor. Registering a name twice is a
// programming error and is rejected.
func (r *Registry) Register(name string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.constructors[name]; ok {
		return fmt.Errorf("feature %q registered twice", name)
	}
	r.constructors[name] = ctor
	return nil
}

// Names returns the registered feature names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enable constructs the features named in the configuration list, in list
// order. An unknown name fails the whole call; a deployment profile that
// names a feature this build does not carry is a configuration error, not
// something to skip silently.
func (r *Registry) Enable(names []string) ([]Feature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	features := make([]Feature, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		ctor, ok := r.constructors[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		f, err := ctor()
		if err != nil {
			return nil, fmt.Errorf("enable feature %q: %w", name, err)
		}
		features = append(features, f)
	}
	return features, nil
}
