// Package registry maps surface ids to their trees.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/agentic-research/revtree/internal/graph"
	"github.com/agentic-research/revtree/internal/tree"
)

// ErrSurfaceExists is returned by Add when the surface is already registered.
var ErrSurfaceExists = errors.New("surface already registered")

// Registry holds the live trees of a process. It never calls into a tree
// while its own lock is held, so callbacks may freely commit, stop surfaces
// or modify the registry.
type Registry struct {
	mu    sync.RWMutex
	trees map[graph.SurfaceID]*tree.Tree
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{trees: make(map[graph.SurfaceID]*tree.Tree)}
}

// Add registers t under its surface id.
func (r *Registry) Add(t *tree.Tree) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trees[t.Surface()]; ok {
		return fmt.Errorf("surface %d: %w", t.Surface(), ErrSurfaceExists)
	}
	r.trees[t.Surface()] = t
	return nil
}

// Remove unregisters a surface and returns its tree.
func (r *Registry) Remove(id graph.SurfaceID) (*tree.Tree, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trees[id]
	if ok {
		delete(r.trees, id)
	}
	return t, ok
}

// Get returns the tree of a surface.
func (r *Registry) Get(id graph.SurfaceID) (*tree.Tree, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trees[id]
	return t, ok
}

// Len returns the number of registered surfaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trees)
}

// Snapshot returns the registered trees ordered by surface id.
func (r *Registry) Snapshot() []*tree.Tree {
	r.mu.RLock()
	out := make([]*tree.Tree, 0, len(r.trees))
	for _, t := range r.trees {
		out = append(out, t)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *tree.Tree) int { return int(a.Surface()) - int(b.Surface()) })
	return out
}

// Enumerate calls fn for every tree registered at the time of the call, in
// surface id order, until fn sets *stop. Trees added or removed during the
// walk do not affect it.
func (r *Registry) Enumerate(fn func(t *tree.Tree, stop *bool)) {
	stop := false
	for _, t := range r.Snapshot() {
		fn(t, &stop)
		if stop {
			return
		}
	}
}
