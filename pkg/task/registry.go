package task

import (
	"context"
	"fmt"
	"sync"
)

// Work is the opaque computation a task performs. The lifecycle manager never
// looks inside it; it only needs the error contract.
type Work interface {
	Execute(ctx context.Context, d *Descriptor) error
}

// WorkFunc adapts a plain function to Work.
type WorkFunc func(ctx context.Context, d *Descriptor) error

// Execute implements Work.
func (f WorkFunc) Execute(ctx context.Context, d *Descriptor) error {
	return f(ctx, d)
}

// Registry maps kind tags to Work constructors so the execution side can
// dispatch a reloaded descriptor without the submitting process's code layout.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]func() Work
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]func() Work)}
}

// Register binds a kind tag to a Work constructor. Registering the same kind
// twice is a programming error and panics, matching init-time usage.
func (r *Registry) Register(kind string, factory func() Work) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.kinds[kind]; dup {
		panic(fmt.Sprintf("task: kind %q registered twice", kind))
	}
	r.kinds[kind] = factory
}

// Lookup returns the Work for a kind tag.
func (r *Registry) Lookup(kind string) (Work, error) {
	r.mu.RLock()
	factory, ok := r.kinds[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("task: no work registered for kind %q", kind)
	}
	return factory(), nil
}

// Kinds returns the registered kind tags.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	return kinds
}

// DefaultRegistry is the process-wide registry used by the exec entry point.
var DefaultRegistry = NewRegistry()

// Register binds a kind tag in the default registry.
func Register(kind string, factory func() Work) {
	DefaultRegistry.Register(kind, factory)
}

// Lookup resolves a kind tag in the default registry.
func Lookup(kind string) (Work, error) {
	return DefaultRegistry.Lookup(kind)
}
