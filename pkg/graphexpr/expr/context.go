package expr

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/memory"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

// Context is the mutable state one machine evaluates against.
// It is owned by a single machine and is not safe for concurrent use.
type Context struct {
	Graph graph.Graph

	Tail graph.Vertex
	This graph.Vertex
	Head graph.Vertex
	// Arrive is the arc from Tail into This; Exit is the arc from This to Head.
	Arrive *graph.Arc
	Exit   *graph.Arc

	Rank    float64
	Vector  graph.Vector
	DefProp value.Value

	Memory    *memory.Memory
	Cull      *CullHeap
	Collector graph.Collector

	// Budget is checked before each run; a done budget yields null.
	Budget context.Context
	// Clock supplies graph.ts; nil means time.Now.
	Clock func() time.Time

	rng   *rand.Rand
	scope []graph.Vector
}

// NewContext creates a context over g with a PCG random source seeded by seed.
func NewContext(g graph.Graph, seed uint64) *Context {
	return &Context{
		Graph: g,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Seed reseeds the random source.
func (c *Context) Seed(seed uint64) {
	c.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Fork returns a context with the same graph, query vector, default property,
// collector, budget and clock, a random source seeded from this one, and no
// entities, memory or cull heap.
func (c *Context) Fork() *Context {
	f := NewContext(c.Graph, c.random().Uint64())
	f.Vector = c.Vector
	f.DefProp = c.DefProp
	f.Collector = c.Collector
	f.Budget = c.Budget
	f.Clock = c.Clock
	return f
}

// ResetEntities clears the tail, this, head and arcs.
func (c *Context) ResetEntities() {
	c.Tail, c.This, c.Head = nil, nil, nil
	c.Arrive, c.Exit = nil, nil
}

// Hold keeps v alive until the next run resets the local scope.
func (c *Context) Hold(v graph.Vector) {
	if v == nil {
		return
	}
	v.Incref()
	c.scope = append(c.scope, v)
}

// adopt takes over an existing reference to v.
func (c *Context) adopt(v graph.Vector) {
	if v != nil {
		c.scope = append(c.scope, v)
	}
}

// ReleaseScope drops every vector held for the current run.
func (c *Context) ReleaseScope() {
	for i, v := range c.scope {
		v.Decref()
		c.scope[i] = nil
	}
	c.scope = c.scope[:0]
}

func (c *Context) random() *rand.Rand {
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return c.rng
}

func (c *Context) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *Context) entity(e Entity) graph.Vertex {
	switch e {
	case EntityTail:
		return c.Tail
	case EntityThis:
		return c.This
	case EntityHead:
		return c.Head
	}
	return nil
}

func (c *Context) arc(e Entity) *graph.Arc {
	switch e {
	case EntityArrive:
		return c.Arrive
	case EntityExit:
		return c.Exit
	}
	return nil
}

// Culled is one retained cull heap entry.
type Culled struct {
	Score  float64
	Vertex graph.Vertex
}

// CullHeap is a bounded min-heap that retains the best-scoring vertices
// offered to it.
type CullHeap struct {
	items []Culled
	cap   int
}

// NewCullHeap creates a heap retaining at most capacity entries.
func NewCullHeap(capacity int) *CullHeap {
	return &CullHeap{items: make([]Culled, 0, capacity), cap: capacity}
}

// Cap returns the capacity.
func (h *CullHeap) Cap() int { return h.cap }

// Len returns the number of retained entries.
func (h *CullHeap) Len() int { return len(h.items) }

// Min returns the lowest retained score.
func (h *CullHeap) Min() (float64, bool) {
	if len(h.items) == 0 {
		return 0, false
	}
	return h.items[0].Score, true
}

// Push offers an entry and reports whether it was retained. Once full, an
// entry is retained only if it scores above the current minimum, which it
// then displaces. NaN scores are never retained.
func (h *CullHeap) Push(score float64, v graph.Vertex) bool {
	if h.cap <= 0 || math.IsNaN(score) {
		return false
	}
	if len(h.items) < h.cap {
		h.items = append(h.items, Culled{Score: score, Vertex: v})
		h.siftUp(len(h.items) - 1)
		return true
	}
	if score <= h.items[0].Score {
		return false
	}
	h.items[0] = Culled{Score: score, Vertex: v}
	h.siftDown(0)
	return true
}

// Sorted returns the retained entries by descending score.
func (h *CullHeap) Sorted() []Culled {
	out := make([]Culled, len(h.items))
	copy(out, h.items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Reset empties the heap.
func (h *CullHeap) Reset() {
	clear(h.items)
	h.items = h.items[:0]
}

func (h *CullHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].Score >= h.items[parent].Score {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *CullHeap) siftDown(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && h.items[right].Score < h.items[left].Score {
			child = right
		}
		if h.items[child].Score >= h.items[i].Score {
			break
		}
		h.items[i], h.items[child] = h.items[child], h.items[i]
		i = child
	}
}
