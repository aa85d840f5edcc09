package engine

import "sync"

/*
 * Ordered definition registries.
 *
 * The engine holds one registry for trigger definitions and one for action
 * definitions. Both are populated from the built-in catalog at construction
 * time and are safe for concurrent reads afterwards.
 *
 * Registration is idempotent: re-registering an id replaces the definition
 * in place without changing its position in the listing order.
 */

// Registry is an ordered, thread-safe catalog of definitions keyed by id.
type Registry[T any] struct {
	mu    sync.RWMutex
	byID  map[string]T
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{byID: make(map[string]T)}
}

// Register adds or replaces the definition for id.
func (r *Registry[T]) Register(id string, def T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		r.order = append(r.order, id)
	}
	r.byID[id] = def
}

// Get returns the definition for id and whether it is registered.
func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.byID[id]
	return def, ok
}

// List returns all definitions in registration order.
func (r *Registry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered definitions.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
