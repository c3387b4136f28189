package cache

import "sync"

// Registry maps keys, typically graphs, to their caches.
type Registry[K comparable] struct {
	mu     sync.RWMutex
	caches map[K]*Cache
}

// NewRegistry creates an empty registry.
func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{caches: make(map[K]*Cache)}
}

// Get returns the cache for key.
func (r *Registry[K]) Get(key K) (*Cache, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caches[key]
	return c, ok
}

// GetOrCreate returns the cache for key, creating it with factory on first
// use. The factory is called at most once per key.
func (r *Registry[K]) GetOrCreate(key K, factory func() *Cache) *Cache {
	r.mu.RLock()
	c, ok := r.caches[key]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[key]; ok {
		return c
	}
	c = factory()
	r.caches[key] = c
	return c
}

// Drop removes the cache for key and clears it.
func (r *Registry[K]) Drop(key K) bool {
	r.mu.Lock()
	c, ok := r.caches[key]
	delete(r.caches, key)
	r.mu.Unlock()
	if ok {
		c.Clear()
	}
	return ok
}

// Len returns the number of caches.
func (r *Registry[K]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caches)
}

// Range calls fn for each cache of a snapshot until fn returns false.
func (r *Registry[K]) Range(fn func(key K, c *Cache) bool) {
	r.mu.RLock()
	snapshot := make(map[K]*Cache, len(r.caches))
	for k, c := range r.caches {
		snapshot[k] = c
	}
	r.mu.RUnlock()

	for k, c := range snapshot {
		if !fn(k, c) {
			return
		}
	}
}
