// Package schemaregistry holds the resource descriptors an application
// serves, keyed by entity name. Resources register at startup; lookups
// are safe for concurrent use afterwards.
package schemaregistry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/viewspec/viewspec/pkg/schema"
)

// Registry maps entity names to validated resource descriptors.
type Registry struct {
	mutex     sync.RWMutex
	resources map[string]*schema.Resource
}

// Global default registry instance
var defaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]*schema.Resource)}
}

// GetDefaultRegistry returns the process-wide registry.
func GetDefaultRegistry() *Registry {
	return defaultRegistry
}

// Register validates the resource and stores it under name. Registering
// the same name twice is a configuration mistake and fails.
func (r *Registry) Register(name string, res *schema.Resource) error {
	if res == nil {
		return fmt.Errorf("resource %s is nil", name)
	}
	if err := res.Validate(); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.resources[name]; exists {
		return fmt.Errorf("resource %s already registered", name)
	}
	r.resources[name] = res
	return nil
}

// Get looks up a resource by entity name.
func (r *Registry) Get(name string) (*schema.Resource, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	res, ok := r.resources[name]
	return res, ok
}

// Names returns the registered entity names, sorted.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Iterate calls fn for every registered resource in name order.
func (r *Registry) Iterate(fn func(name string, res *schema.Resource)) {
	for _, name := range r.Names() {
		if res, ok := r.Get(name); ok {
			fn(name, res)
		}
	}
}

// Register adds a resource to the default global registry.
func Register(name string, res *schema.Resource) error {
	return defaultRegistry.Register(name, res)
}

// Get looks up a resource in the default global registry.
func Get(name string) (*schema.Resource, bool) {
	return defaultRegistry.Get(name)
}
