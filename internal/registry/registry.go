// Package registry holds the two process-wide identity maps described in
// spec section 4.F: name/alias -> service runtime instance, and name/alias
// -> group descriptor. It is the only place service runtime instances are
// created, lazily, on first reference.
package registry

import (
	"fmt"
	"io"
	"sync"

	"github.com/tomtom215/procmux/internal/model"
	"github.com/tomtom215/procmux/internal/runtime"
)

// Registry owns the identity maps. The zero value is not usable; construct
// with New. A Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*runtime.Service
	groups   map[string]*model.GroupDescriptor

	sink   io.Writer
	sinkMu *sync.Mutex
}

// New creates an empty Registry. sink is the shared output stream every
// lazily-created service's pattern pipes write to.
func New(sink io.Writer) *Registry {
	return &Registry{
		services: make(map[string]*runtime.Service),
		groups:   make(map[string]*model.GroupDescriptor),
		sink:     sink,
		sinkMu:   &sync.Mutex{},
	}
}

// EnsureService returns the runtime instance for desc, creating it under
// every one of desc's identifiers on first reference. If desc's name is
// already registered, the existing instance is returned (re-referencing a
// service is idempotent; the descriptors are not compared). A descriptor
// with a new name whose name or any alias collides with an already-registered
// identifier fails with ErrAlreadyLoaded.
func (r *Registry) EnsureService(desc *model.ServiceDescriptor) (*runtime.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.services[desc.Name]; ok {
		return existing, nil
	}

	for _, id := range desc.Identifiers() {
		if _, exists := r.services[id]; exists {
			return nil, fmt.Errorf("%w: service identifier %q", model.ErrAlreadyLoaded, id)
		}
	}

	svc := runtime.New(desc, r.sink, r.sinkMu)
	for _, id := range desc.Identifiers() {
		r.services[id] = svc
	}
	return svc, nil
}

// RegisterGroup records desc under every one of its identifiers.
func (r *Registry) RegisterGroup(desc *model.GroupDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range desc.Identifiers() {
		if _, exists := r.groups[id]; exists {
			return fmt.Errorf("%w: group identifier %q", model.ErrAlreadyLoaded, id)
		}
	}
	for _, id := range desc.Identifiers() {
		r.groups[id] = desc
	}
	return nil
}

// Service looks up a service runtime instance by name or alias.
func (r *Registry) Service(id string) (*runtime.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	return s, ok
}

// Group looks up a group descriptor by name or alias.
func (r *Registry) Group(id string) (*model.GroupDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	return g, ok
}

// AllServices returns every distinct registered service (deduplicated
// across its aliases).
func (r *Registry) AllServices() []*runtime.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*runtime.Service]bool)
	out := make([]*runtime.Service, 0, len(r.services))
	for _, s := range r.services {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Clear removes every registered service and group. It is permitted only
// when no service IsRunning(), per spec section 4.F.
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.services {
		if s.IsRunning() {
			return fmt.Errorf("%w: service %q is still running", model.ErrConfigInvalid, s.Name())
		}
	}

	r.services = make(map[string]*runtime.Service)
	r.groups = make(map[string]*model.GroupDescriptor)
	return nil
}
