// Package store holds the engine's in-memory state: the entity registry, the
// relationship graph, the tag index, the interaction ledger and feedback
// counters. Every store is safe for concurrent use.
package store

import (
	"sort"
	"sync"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

// Registry is the in-memory entity registry.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]apptype.Entity
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]apptype.Entity)}
}

// Put stores or replaces an entity. Tags are copied.
func (r *Registry) Put(e apptype.Entity) {
	if len(e.Tags) > 0 {
		e.Tags = append([]string(nil), e.Tags...)
	}
	r.mu.Lock()
	r.entities[e.ID] = e
	r.mu.Unlock()
}

// Exists reports whether id is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	_, ok := r.entities[id]
	r.mu.RUnlock()
	return ok
}

// Get returns the entity for id.
func (r *Registry) Get(id string) (apptype.Entity, bool) {
	r.mu.RLock()
	e, ok := r.entities[id]
	r.mu.RUnlock()
	return e, ok
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// All returns every entity ordered by id.
func (r *Registry) All() []apptype.Entity {
	r.mu.RLock()
	out := make([]apptype.Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
