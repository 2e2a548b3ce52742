package server

import "sync"

// registry is an insertion-ordered map guarded by a RWMutex. Lookups and
// snapshots take the read lock; callbacks run on the copies they return.
type registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{items: make(map[string]T)}
}

// has must be called with mu held.
func (r *registry[T]) has(key string) bool {
	_, ok := r.items[key]
	return ok
}

// add must be called with mu held and key absent.
func (r *registry[T]) add(key string, item T) {
	r.items[key] = item
	r.order = append(r.order, key)
}

func (r *registry[T]) get(key string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[key]
	return item, ok
}

func (r *registry[T]) snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.items[key])
	}
	return out
}

func (r *registry[T]) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
