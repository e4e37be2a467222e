package project

import (
	"sync"

	"github.com/giantswarm/multibranch/internal/job"
)

// Registry is the ordered set of children of one parent, keyed by encoded
// name. It stores and returns copies, so a reader never observes a child
// that is being modified.
//
// Mutations during a pass or cascade happen under the parent's lock; the
// registry's own lock only keeps concurrent readers safe.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	children map[string]*job.Child
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{children: make(map[string]*job.Child)}
}

// List returns copies of all children in insertion order.
func (r *Registry) List() []*job.Child {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*job.Child, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.children[name].Clone())
	}
	return out
}

// Names returns the encoded names of all children in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Get returns a copy of the child with the given name, or nil.
func (r *Registry) Get(name string) *job.Child {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.children[name].Clone()
}

// Has reports whether a child with the given name exists.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.children[name]
	return ok
}

// Put inserts or replaces a child. A replaced child keeps its position.
func (r *Registry) Put(child *job.Child) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.children[child.Name]; !ok {
		r.order = append(r.order, child.Name)
	}
	r.children[child.Name] = child.Clone()
}

// Remove deletes a child. Removing an unknown name is a no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.children[name]; !ok {
		return
	}
	delete(r.children, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Replace makes children the content of the registry. Children that were
// already present keep their position; new ones are appended in the given
// order.
func (r *Registry) Replace(children []*job.Child) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*job.Child, len(children))
	for _, child := range children {
		next[child.Name] = child.Clone()
	}

	order := make([]string, 0, len(next))
	placed := make(map[string]bool, len(next))
	for _, name := range r.order {
		if _, ok := next[name]; ok {
			order = append(order, name)
			placed[name] = true
		}
	}
	for _, child := range children {
		if !placed[child.Name] {
			order = append(order, child.Name)
			placed[child.Name] = true
		}
	}

	r.order = order
	r.children = next
}

// Len returns the number of children.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
