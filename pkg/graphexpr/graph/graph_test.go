package graph

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVector struct {
	refs  atomic.Int64
	elems []float32
}

func newStubVector(elems []float32) Vector {
	v := &stubVector{elems: elems}
	v.refs.Store(1)
	return v
}

func (v *stubVector) Incref() int64                   { return v.refs.Add(1) }
func (v *stubVector) Decref() int64                   { return v.refs.Add(-1) }
func (v *stubVector) Len() int                        { return len(v.elems) }
func (v *stubVector) Elements() []float32             { return v.elems }
func (v *stubVector) Similarity(other Vector) float64 { return 0 }
func (v *stubVector) Fingerprint() uint64             { return uint64(len(v.elems)) }

func socialGraph(t *testing.T) *Memgraph {
	t.Helper()
	g := NewMemgraph("social")
	_, err := g.AddVertex(VertexSpec{ID: "alice", Type: "user", C1: 1.5, C0: 0.5, Props: map[string]any{"age": 31}})
	require.NoError(t, err)
	_, err = g.AddVertex(VertexSpec{ID: "bob", Type: "user"})
	require.NoError(t, err)
	_, err = g.AddVertex(VertexSpec{ID: "acme", Type: "org", Virtual: true})
	require.NoError(t, err)
	_, err = g.Connect("alice", "bob", "follows", ModFloat, 0.8)
	require.NoError(t, err)
	_, err = g.Connect("alice", "acme", "works_at", ModStatic, 1)
	require.NoError(t, err)
	_, err = g.Connect("bob", "alice", "follows", ModFloat, 0.2)
	require.NoError(t, err)
	return g
}

func TestMemgraph_Build(t *testing.T) {
	g := socialGraph(t)

	assert.Equal(t, "social", g.Name())
	assert.Equal(t, 3, g.Order())
	assert.Equal(t, 3, g.Size())

	alice, ok := g.Vertex("alice")
	require.True(t, ok)
	assert.Equal(t, uint64(1), alice.InternalID())
	assert.Equal(t, 2, alice.OutDegree())
	assert.Equal(t, 1, alice.InDegree())
	assert.Equal(t, 3, alice.Degree())
	c1, c0 := alice.Rank()
	assert.Equal(t, 1.5, c1)
	assert.Equal(t, 0.5, c0)

	age, ok := alice.Property("age")
	require.True(t, ok)
	assert.Equal(t, 31, age)
	_, ok = alice.Property("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"age"}, alice.PropertyKeys())
}

func TestMemgraph_Errors(t *testing.T) {
	g := NewMemgraph("g")

	_, err := g.AddVertex(VertexSpec{})
	assert.ErrorIs(t, err, ErrEmptyVertexID)

	_, err = g.AddVertex(VertexSpec{ID: "a"})
	require.NoError(t, err)
	_, err = g.AddVertex(VertexSpec{ID: "a"})
	assert.ErrorIs(t, err, ErrDuplicateVertex)

	_, err = g.Connect("a", "nope", "r", ModAny, 0)
	assert.ErrorIs(t, err, ErrVertexNotFound)
	_, err = g.Connect("nope", "a", "r", ModAny, 0)
	assert.ErrorIs(t, err, ErrVertexNotFound)
}

func TestMemgraph_Arcs(t *testing.T) {
	g := socialGraph(t)

	out := g.Arcs("alice", DirOut)
	require.Len(t, out, 2)
	for _, a := range out {
		assert.Equal(t, "alice", a.Tail.ID())
		assert.Equal(t, DirOut, a.Dir)
	}

	in := g.Arcs("alice", DirIn)
	require.Len(t, in, 1)
	assert.Equal(t, "alice", in[0].Tail.ID())
	assert.Equal(t, "bob", in[0].Head.ID())
	assert.Equal(t, DirIn, in[0].Dir)
	assert.Equal(t, 0.2, in[0].Value)

	assert.Len(t, g.Arcs("alice", DirAny), 3)
	assert.Len(t, g.AllArcs(), 3)
}

func TestMemgraph_Enumerations(t *testing.T) {
	g := socialGraph(t)

	code, ok := g.RelEncode("works_at")
	require.True(t, ok)
	assert.Equal(t, 1, code)

	for _, rel := range g.Rels() {
		code, ok := g.RelEncode(rel)
		require.True(t, ok)
		back, ok := g.RelDecode(code)
		require.True(t, ok)
		assert.Equal(t, rel, back)
	}

	_, ok = g.RelEncode("unknown")
	assert.False(t, ok)
	_, ok = g.RelDecode(99)
	assert.False(t, ok)
	_, ok = g.TypeDecode(-1)
	assert.False(t, ok)

	typ, ok := g.TypeDecode(1)
	require.True(t, ok)
	assert.Equal(t, "org", typ)
	assert.Equal(t, 1, g.DefineType("org"))
	assert.Equal(t, 2, g.DefineType("bot"))
}

func TestModifier(t *testing.T) {
	tests := []struct {
		name string
		want Modifier
		ok   bool
	}{
		{"M_FLT", ModFloat, true},
		{"FLT", ModFloat, true},
		{"M_TMC", ModCreated, true},
		{"", ModAny, true},
		{"M_BOGUS", ModAny, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseModifier(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "M_SIM", ModSimilarity.String())
	assert.Equal(t, "M_UNKNOWN(99)", Modifier(99).String())
	assert.True(t, ModCounter.IsIntegral())
	assert.False(t, ModFloat.IsIntegral())
	assert.Len(t, Modifiers(), 13)
	assert.Equal(t, "D_OUT", DirOut.String())
}

func TestMemgraph_Release(t *testing.T) {
	g := NewMemgraph("g")
	vec := newStubVector([]float32{1, 2})
	vec.Incref()
	_, err := g.AddVertex(VertexSpec{ID: "a", Vector: vec})
	require.NoError(t, err)

	g.Release()
	assert.Equal(t, int64(1), vec.(*stubVector).refs.Load())
	v, _ := g.Vertex("a")
	assert.Nil(t, v.Vector())
}

func TestCollectorFunc(t *testing.T) {
	var got float64
	var c Collector = CollectorFunc(func(_ *Arc, score float64) { got = score })
	c.Collect(&Arc{}, 0.75)
	assert.Equal(t, 0.75, got)
}

const fixture = `
name: fixture
rels: [knows]
vertices:
  - id: a
    type: person
    created: 100
    c1: 2
    vector: [1, 0, 0]
    props:
      name: Ann
      score: 0.5
  - id: b
    type: person
arcs:
  - tail: a
    head: b
    rel: likes
    mod: M_SIM
    value: 0.9
`

func TestLoadYAML(t *testing.T) {
	g, err := LoadYAML([]byte(fixture), newStubVector)
	require.NoError(t, err)

	assert.Equal(t, "fixture", g.Name())
	assert.Equal(t, []string{"knows", "likes"}, g.Rels())

	a, ok := g.Vertex("a")
	require.True(t, ok)
	assert.Equal(t, int64(100), a.CreatedAt())
	require.NotNil(t, a.Vector())
	assert.Equal(t, 3, a.Vector().Len())
	name, _ := a.Property("name")
	assert.Equal(t, "Ann", name)

	arcs := g.Arcs("a", DirOut)
	require.Len(t, arcs, 1)
	assert.Equal(t, ModSimilarity, arcs[0].Mod)
	assert.Equal(t, 0.9, arcs[0].Value)
}

func TestLoadYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "vertices: [:"},
		{"bad modifier", "vertices: [{id: a}]\narcs: [{tail: a, head: a, mod: M_NOPE}]"},
		{"missing head", "vertices: [{id: a}]\narcs: [{tail: a, head: z}]"},
		{"duplicate", "vertices: [{id: a}, {id: a}]"},
		{"vector without factory", "vertices: [{id: a, vector: [1]}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML([]byte(tt.doc), nil)
			assert.Error(t, err)
		})
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()

	src, err := LoadYAML([]byte(fixture), newStubVector)
	require.NoError(t, err)
	require.NoError(t, store.Save(src))
	// Saving twice replaces rather than duplicates.
	require.NoError(t, store.Save(src))

	g, err := store.Load("fixture", newStubVector)
	require.NoError(t, err)

	assert.Equal(t, src.Order(), g.Order())
	assert.Equal(t, src.Size(), g.Size())
	assert.Equal(t, src.Rels(), g.Rels())
	assert.Equal(t, src.Types(), g.Types())

	a, ok := g.Vertex("a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0}, a.Vector().Elements())
	c1, _ := a.Rank()
	assert.Equal(t, 2.0, c1)
	score, _ := a.Property("score")
	assert.Equal(t, 0.5, score)
}

func TestSQLiteStore_Errors(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	_, err = store.Load("missing", nil)
	assert.True(t, errors.Is(err, ErrGraphNotFound))

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Save(NewMemgraph("x")), ErrStoreClosed)
	_, err = store.Load("x", nil)
	assert.ErrorIs(t, err, ErrStoreClosed)
}
