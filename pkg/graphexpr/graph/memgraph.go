package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Memgraph errors.
var (
	// ErrEmptyVertexID is returned when a vertex is added without an ID.
	ErrEmptyVertexID = errors.New("vertex ID cannot be empty")

	// ErrDuplicateVertex is returned when a vertex ID is added twice.
	ErrDuplicateVertex = errors.New("duplicate vertex")

	// ErrVertexNotFound is returned when an arc references an unknown vertex.
	ErrVertexNotFound = errors.New("vertex not found")
)

// VertexSpec describes a vertex to add to a Memgraph.
type VertexSpec struct {
	ID         string
	Type       string
	CreatedAt  int64
	ModifiedAt int64
	ExpiresAt  int64
	C1         float64
	C0         float64
	Virtual    bool
	// Vector ownership passes to the graph.
	Vector Vector
	Props  map[string]any
}

// Memgraph is a small in-memory Graph with adjacency lists.
//
// It is safe for concurrent use. Vertices are never removed.
type Memgraph struct {
	mu       sync.RWMutex
	name     string
	vertices map[string]*MemVertex
	ordered  []*MemVertex
	out      map[string][]*Arc
	in       map[string][]*Arc
	size     int
	rels     enumerator
	types    enumerator
}

// NewMemgraph creates an empty graph with the given name.
func NewMemgraph(name string) *Memgraph {
	return &Memgraph{
		name:     name,
		vertices: make(map[string]*MemVertex),
		out:      make(map[string][]*Arc),
		in:       make(map[string][]*Arc),
	}
}

// AddVertex adds a vertex and registers its type.
func (g *Memgraph) AddVertex(spec VertexSpec) (*MemVertex, error) {
	if spec.ID == "" {
		return nil, ErrEmptyVertexID
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.vertices[spec.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateVertex, spec.ID)
	}

	props := make(map[string]any, len(spec.Props))
	for k, v := range spec.Props {
		props[k] = v
	}

	v := &MemVertex{
		g:        g,
		id:       spec.ID,
		internal: uint64(len(g.ordered) + 1),
		typ:      spec.Type,
		created:  spec.CreatedAt,
		modified: spec.ModifiedAt,
		expires:  spec.ExpiresAt,
		c1:       spec.C1,
		c0:       spec.C0,
		virtual:  spec.Virtual,
		vec:      spec.Vector,
		props:    props,
	}
	if spec.Type != "" {
		g.types.define(spec.Type)
	}
	g.vertices[spec.ID] = v
	g.ordered = append(g.ordered, v)
	return v, nil
}

// Connect adds a directed arc from tail to head and registers its relationship.
// The returned arc is the outbound view from tail.
func (g *Memgraph) Connect(tail, head, rel string, mod Modifier, value float64) (*Arc, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.vertices[tail]
	if !ok {
		return nil, fmt.Errorf("%w: tail %s", ErrVertexNotFound, tail)
	}
	h, ok := g.vertices[head]
	if !ok {
		return nil, fmt.Errorf("%w: head %s", ErrVertexNotFound, head)
	}
	if rel != "" {
		g.rels.define(rel)
	}

	outArc := &Arc{Tail: t, Head: h, Rel: rel, Dir: DirOut, Mod: mod, Value: value, Dist: 1}
	inArc := &Arc{Tail: h, Head: t, Rel: rel, Dir: DirIn, Mod: mod, Value: value, Dist: 1}
	g.out[tail] = append(g.out[tail], outArc)
	g.in[head] = append(g.in[head], inArc)
	g.size++
	return outArc, nil
}

// DefineRel registers a relationship name and returns its code.
func (g *Memgraph) DefineRel(rel string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rels.define(rel)
}

// DefineType registers a vertex type name and returns its code.
func (g *Memgraph) DefineType(typ string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.types.define(typ)
}

// Vertex returns the vertex with the given ID.
func (g *Memgraph) Vertex(id string) (*MemVertex, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.vertices[id]
	return v, ok
}

// Vertices returns all vertices in insertion order.
func (g *Memgraph) Vertices() []*MemVertex {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*MemVertex, len(g.ordered))
	copy(out, g.ordered)
	return out
}

// Arcs returns the arcs of vertex id in direction dir, viewed from that vertex
// (Tail is always the vertex itself). DirAny and DirBoth return both.
func (g *Memgraph) Arcs(id string, dir Direction) []*Arc {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*Arc
	if dir != DirIn {
		out = append(out, g.out[id]...)
	}
	if dir != DirOut {
		out = append(out, g.in[id]...)
	}
	return out
}

// AllArcs returns every arc in its outbound view, ordered by tail insertion.
func (g *Memgraph) AllArcs() []*Arc {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Arc, 0, g.size)
	for _, v := range g.ordered {
		out = append(out, g.out[v.id]...)
	}
	return out
}

// Rels returns the registered relationship names ordered by code.
func (g *Memgraph) Rels() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rels.names()
}

// Types returns the registered vertex type names ordered by code.
func (g *Memgraph) Types() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.types.names()
}

// Name implements Graph.
func (g *Memgraph) Name() string { return g.name }

// Order implements Graph.
func (g *Memgraph) Order() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.ordered)
}

// Size implements Graph.
func (g *Memgraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.size
}

// RelEncode implements Graph.
func (g *Memgraph) RelEncode(rel string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rels.encode(rel)
}

// RelDecode implements Graph.
func (g *Memgraph) RelDecode(code int) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rels.decode(code)
}

// TypeEncode implements Graph.
func (g *Memgraph) TypeEncode(typ string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.types.encode(typ)
}

// TypeDecode implements Graph.
func (g *Memgraph) TypeDecode(code int) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.types.decode(code)
}

// Release drops the graph's references to vertex vectors.
func (g *Memgraph) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, v := range g.ordered {
		if v.vec != nil {
			v.vec.Decref()
			v.vec = nil
		}
	}
}

var _ Graph = (*Memgraph)(nil)

// enumerator assigns dense codes to names. Not synchronized.
type enumerator struct {
	codes map[string]int
	list  []string
}

func (e *enumerator) define(name string) int {
	if code, ok := e.codes[name]; ok {
		return code
	}
	if e.codes == nil {
		e.codes = make(map[string]int)
	}
	code := len(e.list)
	e.codes[name] = code
	e.list = append(e.list, name)
	return code
}

func (e *enumerator) encode(name string) (int, bool) {
	code, ok := e.codes[name]
	return code, ok
}

func (e *enumerator) decode(code int) (string, bool) {
	if code < 0 || code >= len(e.list) {
		return "", false
	}
	return e.list[code], true
}

func (e *enumerator) names() []string {
	out := make([]string, len(e.list))
	copy(out, e.list)
	return out
}

// MemVertex is the Vertex implementation of Memgraph.
type MemVertex struct {
	g        *Memgraph
	id       string
	internal uint64
	typ      string
	created  int64
	modified int64
	expires  int64
	c1, c0   float64
	virtual  bool
	vec      Vector
	props    map[string]any
}

// ID implements Vertex.
func (v *MemVertex) ID() string { return v.id }

// InternalID implements Vertex.
func (v *MemVertex) InternalID() uint64 { return v.internal }

// Type implements Vertex.
func (v *MemVertex) Type() string { return v.typ }

// OutDegree implements Vertex.
func (v *MemVertex) OutDegree() int {
	v.g.mu.RLock()
	defer v.g.mu.RUnlock()
	return len(v.g.out[v.id])
}

// InDegree implements Vertex.
func (v *MemVertex) InDegree() int {
	v.g.mu.RLock()
	defer v.g.mu.RUnlock()
	return len(v.g.in[v.id])
}

// Degree implements Vertex.
func (v *MemVertex) Degree() int { return v.InDegree() + v.OutDegree() }

// CreatedAt implements Vertex.
func (v *MemVertex) CreatedAt() int64 { return v.created }

// ModifiedAt implements Vertex.
func (v *MemVertex) ModifiedAt() int64 { return v.modified }

// ExpiresAt implements Vertex.
func (v *MemVertex) ExpiresAt() int64 { return v.expires }

// Rank implements Vertex.
func (v *MemVertex) Rank() (float64, float64) { return v.c1, v.c0 }

// Virtual implements Vertex.
func (v *MemVertex) Virtual() bool { return v.virtual }

// Vector implements Vertex.
func (v *MemVertex) Vector() Vector {
	v.g.mu.RLock()
	defer v.g.mu.RUnlock()
	return v.vec
}

// Property implements Vertex.
func (v *MemVertex) Property(key string) (any, bool) {
	val, ok := v.props[key]
	return val, ok
}

// PropertyKeys returns the property keys in sorted order.
func (v *MemVertex) PropertyKeys() []string {
	keys := make([]string, 0, len(v.props))
	for k := range v.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the vertex ID.
func (v *MemVertex) String() string { return v.id }

var _ Vertex = (*MemVertex)(nil)
