package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/expr"
)

// Key is the 128-bit hash of a program name.
type Key = xxh3.Uint128

// KeyOf returns the cache key of name.
func KeyOf(name string) Key {
	return xxh3.HashString128(name)
}

// Entry is one named program.
type Entry struct {
	Key     Key
	Name    string
	Program *expr.Program
	// Defined is when the entry was stored.
	Defined time.Time
	// Version counts definitions of the name in this cache, starting at 1.
	Version int
}

// Cache maps program names to compiled programs for one graph.
type Cache struct {
	mu       sync.RWMutex
	graph    string
	entries  map[Key]*Entry
	versions map[Key]int
	now      func() time.Time
}

// New creates an empty cache for the named graph.
func New(graph string) *Cache {
	return &Cache{
		graph:    graph,
		entries:  make(map[Key]*Entry),
		versions: make(map[Key]int),
		now:      time.Now,
	}
}

// Graph returns the name of the graph the cache belongs to.
func (c *Cache) Graph() string { return c.graph }

// Define stores p under name, taking a reference to it. An existing entry
// is replaced and its reference dropped; replaced reports whether one existed.
func (c *Cache) Define(name string, p *expr.Program) (e *Entry, replaced bool) {
	key := KeyOf(name)
	p.Incref()

	c.mu.Lock()
	defer c.mu.Unlock()

	old, replaced := c.entries[key]
	if replaced {
		old.Program.Decref()
	}
	c.versions[key]++
	e = &Entry{Key: key, Name: name, Program: p, Defined: c.now(), Version: c.versions[key]}
	c.entries[key] = e
	return e, replaced
}

// Lookup returns the entry for name.
func (c *Cache) Lookup(name string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[KeyOf(name)]
	return e, ok
}

// Resolve returns the program for name, satisfying expr.Resolver.
func (c *Cache) Resolve(name string) (*expr.Program, bool) {
	e, ok := c.Lookup(name)
	if !ok {
		return nil, false
	}
	return e.Program, true
}

// Has reports whether name is defined.
func (c *Cache) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Forget removes name and drops the cache's reference to its program.
func (c *Cache) Forget(name string) bool {
	key := KeyOf(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	delete(c.entries, key)
	e.Program.Decref()
	return true
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		e.Program.Decref()
		delete(c.entries, key)
	}
}

// Names returns the defined names in sorted order.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Range calls fn for each entry of a snapshot until fn returns false.
func (c *Cache) Range(fn func(e *Entry) bool) {
	c.mu.RLock()
	snapshot := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		snapshot = append(snapshot, e)
	}
	c.mu.RUnlock()

	for _, e := range snapshot {
		if !fn(e) {
			return
		}
	}
}
