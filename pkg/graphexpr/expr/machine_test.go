package expr

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/memory"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/vector"
)

func TestMachine_ArithmeticMatchesHost(t *testing.T) {
	ints := []int64{-7, -1, 0, 3, 12}
	for _, a := range ints {
		for _, b := range ints {
			src := value.Int(a).String() + " * " + value.Int(b).String() + " + " + value.Int(a).String() + " - " + value.Int(b).String()
			got := run(t, src)
			assert.Equal(t, a*b+a-b, got.Int(), src)
			if b != 0 {
				got = run(t, value.Int(a).String()+" / "+value.Int(b).String())
				assert.Equal(t, a/b, got.Int())
				got = run(t, value.Int(a).String()+" % "+value.Int(b).String())
				assert.Equal(t, a%b, got.Int())
			}
		}
	}

	reals := []float64{-2.5, 0.25, 1, 3.75}
	for _, a := range reals {
		for _, b := range reals {
			src := value.Real(a).String() + " / " + value.Real(b).String() + " - " + value.Real(a).String() + " * " + value.Real(b).String()
			got := run(t, src)
			assert.InDelta(t, a/b-a*b, got.Real(), 1e-12, src)
		}
	}
}

func TestMachine_Arithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want value.Value
	}{
		{"7 / 2", value.Int(3)},
		{"7.0 / 2", value.Real(3.5)},
		{"-7 / 2", value.Int(-3)},
		{"7 % 3", value.Int(1)},
		{"2.5 * 4", value.Real(10)},
		{"1 + 0.5", value.Real(1.5)},
		{"1 / 0", value.Real(math.Inf(1))},
		{"-1 / 0", value.Real(math.Inf(-1))},
		{"2 ** 10", value.Int(1024)},
		{"0x10 | 1", value.Int(17)},
		{"-16 >> 2", value.Int(-4)},
		{"1 << 65", value.Int(2)},
		{"floor(7.9)", value.Real(7)},
		{"floor(7)", value.Int(7)},
		{"abs(-3)", value.Int(3)},
		{"max(1, 9.5, 3)", value.Real(9.5)},
		{"min(4, 2, 8)", value.Int(2)},
		{"sum(1, 2, 3)", value.Int(6)},
		{"sum(1, 2.5)", value.Real(3.5)},
		{"mean(1, 2, 3, 4)", value.Real(2.5)},
		{"int('42')", value.Int(42)},
		{"real('0.5')", value.Real(0.5)},
		{"int(3.9)", value.Int(3)},
		{"asreal(asint(1.5))", value.Real(1.5)},
		{"asint(asreal(12345))", value.Int(12345)},
		{"-9223372036854775808", value.Int(math.MinInt64)},
		{"-9223372036854775808 == -9223372036854775807 - 1", value.Int(1)},
		{"-9223372036854775808 in {1, -9223372036854775808}", value.Int(1)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := run(t, tt.expr)
			assert.Equal(t, tt.want.Kind(), got.Kind(), "got %s", got)
			assert.True(t, value.Equal(tt.want, got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestMachine_NaN(t *testing.T) {
	for _, src := range []string{"0 / 0", "7 % 0", "'a' + 1", "nan", "sqrt(-1)", "real('x')"} {
		t.Run(src, func(t *testing.T) {
			assert.True(t, run(t, src).IsNaN())
		})
	}
	assert.Equal(t, int64(0), run(t, "nan ? 1 : 0").Int(), "NaN is falsy")
	assert.Equal(t, int64(0), run(t, "nan == nan").Int())
	assert.Equal(t, int64(1), run(t, "isnan(0 / 0)").Int())
}

func TestMachine_Strings(t *testing.T) {
	tests := []struct {
		expr string
		want value.Value
	}{
		{"upper('abc')", value.Str("ABC")},
		{"lower('AbC')", value.Str("abc")},
		{"strlen('hello')", value.Int(5)},
		{"startswith('hello', 'he')", value.Int(1)},
		{"endswith('hello', 'he')", value.Int(0)},
		{"concat('a', 1, 'b', 2.5)", value.Str("a1b2.5")},
		{"str(42)", value.Str("42")},
		{"type(1.5)", value.Str("real")},
		{"type('x')", value.Str("str")},
		{"'abc' == 'a*'", value.Int(1)},
		{"'abc' == 'abd'", value.Int(0)},
		{"'abc' < 'abd'", value.Int(1)},
		{"ifnull(null, 'd')", value.Str("d")},
		{"do(1, 2, 'last')", value.Str("last")},
		{"len('four')", value.Int(4)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := run(t, tt.expr)
			assert.True(t, value.Equal(tt.want, got), "want %s, got %s", tt.want, got)
		})
	}
}

func newMemoryMachine(t *testing.T, src string) (*Machine, *memory.Memory) {
	t.Helper()
	p, err := Compile(src)
	require.NoError(t, err)
	mem, err := memory.New(memory.DefaultOrder)
	require.NoError(t, err)
	ctx := NewContext(nil, 1)
	ctx.Memory = mem
	m := NewMachine(p, ctx)
	t.Cleanup(func() { m.Release() })
	return m, mem
}

func TestMachine_Memory(t *testing.T) {
	tests := []struct {
		expr string
		want value.Value
	}{
		{"store(-1, 42), load(-1)", value.Int(42)},
		{"store(R2, 'x'), load(R2)", value.Str("x")},
		{"mset(0, -1, 7)", value.Int(64)},
		{"mset(0, -1, 7), load(10) + load(R1)", value.Int(14)},
		{"mset(4, 2, 7)", value.Int(0)},
		{"write(0, 3, 1, 2), msort(0, 2), load(0) * 100 + load(1) * 10 + load(2)", value.Int(123)},
		{"write(0, 3, 1, 2), msortrev(0, 2), load(0) * 100 + load(1) * 10 + load(2)", value.Int(321)},
		{"rwrite(0, 1, 2, 3), load(0) * 100 + load(1) * 10 + load(2)", value.Int(321)},
		{"write(0, 3, 1, 2), msum(0, 2)", value.Int(6)},
		{"write(0, 1, 2, 3, 4), mmean(0, 3)", value.Real(2.5)},
		{"write(0, 5, 1, 4), mmax(0, 2) - mmin(0, 2)", value.Int(4)},
		{"write(0, 'a', 'b', 'a'), mcount(0, 2, 'a')", value.Int(2)},
		{"push(1), push(2), peek() * 10 + peek(1)", value.Int(21)},
		{"push(5), pop()", value.Int(5)},
		{"inc(3), inc(3, 4), load(3)", value.Int(5)},
		{"dec(3), load(3)", value.Int(-1)},
		{"store(0, 9), mov(1, 0), load(1)", value.Int(9)},
		{"write(0, 1, 2), xchg(0, 1), load(0) * 10 + load(1)", value.Int(21)},
		{"store(0, 5), storei(0, 'p'), loadi(0)", value.Str("p")},
		{"storeif(0, 1, 9)", value.Int(0)},
		{"storeif(1, 1, 9), load(1)", value.Int(9)},
		{"movif(1, 2, 2)", value.Int(1)},
		{"setadd(5), setadd(5)", value.Int(0)},
		{"setadd(5), sethas(5) + setlen()", value.Int(2)},
		{"setadd(5), setdel(5), setlen()", value.Int(0)},
		{"write(0, 5, 1, 4, 2, 3), mheapifymin(0, 5), load(0)", value.Int(1)},
		{"write(0, 5, 1, 4, 2, 3), mheapifymax(0, 5), load(0)", value.Int(5)},
		{"write(0, 1, 2, 3), mheapifymin(0, 3), mheappushmin(0, 3, 10), load(0)", value.Int(2)},
		{"mheapifymax(0, 4), mheappushmax(0, 4, 5)", value.Int(1)},
		{"mheapifymax(0, 4), mheappushmax(0, 4, 5), mheappushmax(0, 4, 3), msort(0, 3), load(0) * 10 + load(1)", value.Int(35)},
		{"write(0, 3, 1, 2), msort(0, 3), load(0)", value.Int(1)},
		{"write(0, 3, 1, 2), msort(0, 3), isnull(load(3))", value.Int(1)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			m, _ := newMemoryMachine(t, tt.expr)
			got := m.Run()
			assert.True(t, value.Equal(tt.want, got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestMachine_MemoryPersistsAcrossRuns(t *testing.T) {
	m, mem := newMemoryMachine(t, "inc(0)")
	for i := 0; i < 3; i++ {
		m.Run()
	}
	assert.Equal(t, int64(3), mem.Load(0).Int())

	m, _ = newMemoryMachine(t, "pop()")
	assert.True(t, m.Run().IsNone(), "pop on an empty push region")
}

func TestMachine_WithoutMemory(t *testing.T) {
	for _, src := range []string{"load(0)", "store(0, 1)", "push(1)", "pop()", "msum(0, 3)", "setlen()"} {
		t.Run(src, func(t *testing.T) {
			assert.True(t, run(t, src).IsNone())
		})
	}
}

func TestMachine_PoppedVectorIsScoped(t *testing.T) {
	m, mem := newMemoryMachine(t, "pop()")
	v := vector.New([]float32{1, 2})
	require.True(t, mem.Push(value.Vec(v)))
	assert.Equal(t, int64(2), v.Refs())

	out := m.Run()
	assert.Equal(t, value.KindVector, out.Kind())
	assert.Equal(t, int64(2), v.Refs(), "held by the run scope")

	m.Run()
	assert.Equal(t, int64(1), v.Refs(), "released when the next run starts")
}

// fixture is a two-vertex graph a -knows-> b.
type fixture struct {
	g   *graph.Memgraph
	a   *graph.MemVertex
	b   *graph.MemVertex
	arc *graph.Arc
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	g := graph.NewMemgraph("test")
	a, err := g.AddVertex(graph.VertexSpec{
		ID: "a", Type: "person", C1: 2, C0: 0.5, CreatedAt: 100,
		Vector: vector.New([]float32{1, 0, 0}),
		Props:  map[string]any{"name": "alice", "score": 7},
	})
	require.NoError(t, err)
	b, err := g.AddVertex(graph.VertexSpec{
		ID: "b", Type: "person",
		Vector: vector.New([]float32{0, 1, 0}),
		Props:  map[string]any{"name": "bob"},
	})
	require.NoError(t, err)
	arc, err := g.Connect("a", "b", "knows", graph.ModInteger, 3)
	require.NoError(t, err)
	return fixture{g: g, a: a, b: b, arc: arc}
}

func (f fixture) context() *Context {
	ctx := NewContext(f.g, 1)
	ctx.This = f.a
	ctx.Head = f.b
	ctx.Exit = f.arc
	return ctx
}

func TestMachine_AttributeCachedPerEvaluation(t *testing.T) {
	f := newFixture(t)
	p, err := Compile(".deg * 10 + vertex.deg")
	require.NoError(t, err)
	m := NewMachine(p, f.context())
	defer m.Release()
	assert.Equal(t, int64(11), m.Run().Int())

	_, err = f.g.AddVertex(graph.VertexSpec{ID: "c"})
	require.NoError(t, err)
	_, err = f.g.Connect("a", "c", "knows", graph.ModInteger, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(22), m.Run().Int(), "cached attributes are reread on the next run")
}

func TestMachine_Graph(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		expr string
		want value.Value
	}{
		{"vertex.id", value.VertexID("a")},
		{".type", value.Str("person")},
		{"vertex['name']", value.Str("alice")},
		{"next['name']", value.Str("bob")},
		{"vertex['missing']", value.None()},
		{"next['na' + '']", value.None()},
		{".deg", value.Int(1)},
		{"next.ideg", value.Int(1)},
		{"next.odeg", value.Int(0)},
		{".tmc", value.Int(100)},
		{"vertex.c1", value.Real(2)},
		{"vertex.rank", value.Real(2.5)},
		{"vertex.internalid", value.Int(1)},
		{"next.arc.value", value.Int(3)},
		{"next.arc.type", value.Str("knows")},
		{"next.arc.isfwd", value.Int(1)},
		{"next.arc.mod == M_INT", value.Int(1)},
		{"prev.arc.value", value.None()},
		{"prev.id", value.None()},
		{"isnull(prev)", value.Int(1)},
		{"isvertex(next)", value.Int(1)},
		{"vertex == 'a'", value.Int(1)},
		{"graph.order", value.Int(2)},
		{"graph.size", value.Int(1)},
		{"graph.name", value.Str("test")},
		{"reldec(relenc('knows'))", value.Str("knows")},
		{"typedec(typeenc('person'))", value.Str("person")},
		{"relenc('nope')", value.None()},
		{"sim(vertex.vector, next.vector)", value.Real(0)},
		{"sim(vertex, vertex)", value.Real(1)},
		{"hamdist(vertex, vertex)", value.Int(0)},
		{"sim(1, 2)", value.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := Compile(tt.expr)
			require.NoError(t, err)
			m := NewMachine(p, f.context())
			defer m.Release()
			got := m.Run()
			if tt.want.IsNaN() {
				assert.True(t, got.IsNaN(), "got %s", got)
				return
			}
			assert.Equal(t, tt.want.Kind(), got.Kind(), "got %s", got)
			if tt.want.Is(value.KindReal) {
				assert.InDelta(t, tt.want.Real(), got.Real(), 1e-6)
				return
			}
			assert.True(t, value.Equal(tt.want, got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestMachine_ContextSymbols(t *testing.T) {
	f := newFixture(t)
	ctx := f.context()
	ctx.Rank = 0.75
	ctx.Vector = vector.New([]float32{1, 0, 0})
	ctx.DefProp = value.Int(-1)
	ctx.Clock = func() time.Time { return time.Unix(1700000000, 0) }

	for src, want := range map[string]value.Value{
		"context.rank":      value.Real(0.75),
		"sim(vertex)":       value.Real(1),
		"vertex['missing']": value.Int(-1),
		"context.defprop":   value.Int(-1),
		"graph.ts":          value.Int(1700000000),
	} {
		p, err := Compile(src)
		require.NoError(t, err)
		m := NewMachine(p, ctx)
		got := m.Run()
		m.Release()
		assert.InDelta(t, want.Real(), got.Real(), 1e-6, src)
	}
}

func TestMachine_PropertyRegisterResetsPerRun(t *testing.T) {
	f := newFixture(t)
	p, err := Compile("vertex['name'] + '' , vertex['name']")
	require.NoError(t, err)
	ctx := f.context()
	m := NewMachine(p, ctx)
	defer m.Release()

	assert.Equal(t, "alice", m.Run().Str())
	ctx.This = f.b
	assert.Equal(t, "bob", m.Run().Str())
}

func TestMachine_Cull(t *testing.T) {
	g := graph.NewMemgraph("cull")
	scores := map[string]float64{"v1": 1, "v2": 5, "v3": 3, "v4": 4}
	p, err := Compile("mcull(vertex['score'], 2)")
	require.NoError(t, err)
	require.Equal(t, 2, p.CullCap)

	ctx := NewContext(g, 1)
	ctx.Cull = NewCullHeap(p.CullCap)
	m := NewMachine(p, ctx)
	defer m.Release()

	for _, id := range []string{"v1", "v2", "v3", "v4"} {
		v, err := g.AddVertex(graph.VertexSpec{ID: id, Props: map[string]any{"score": scores[id]}})
		require.NoError(t, err)
		ctx.This = v
		assert.Equal(t, int64(1), m.Run().Int(), id)
	}

	top := ctx.Cull.Sorted()
	require.Len(t, top, 2)
	assert.Equal(t, "v2", top[0].Vertex.ID())
	assert.Equal(t, "v4", top[1].Vertex.ID())
	assert.Equal(t, 4.0, top[1].Score)
}

func TestCullHeap(t *testing.T) {
	h := NewCullHeap(3)
	assert.False(t, h.Push(math.NaN(), nil))
	for _, s := range []float64{5, 1, 9, 3, 7} {
		h.Push(s, nil)
	}
	assert.Equal(t, 3, h.Len())
	low, ok := h.Min()
	require.True(t, ok)
	assert.Equal(t, 5.0, low)
	assert.False(t, h.Push(2, nil))

	var got []float64
	for _, c := range h.Sorted() {
		got = append(got, c.Score)
	}
	assert.Equal(t, []float64{9, 7, 5}, got)

	h.Reset()
	assert.Equal(t, 0, h.Len())
	_, ok = h.Min()
	assert.False(t, ok)
	assert.False(t, NewCullHeap(0).Push(1, nil))
}

func TestMachine_Collect(t *testing.T) {
	f := newFixture(t)
	var got []float64
	var arcs []*graph.Arc
	ctx := f.context()
	ctx.Collector = graph.CollectorFunc(func(arc *graph.Arc, score float64) {
		arcs = append(arcs, arc)
		got = append(got, score)
	})

	p, err := Compile("collect(next.arc.value * 2)")
	require.NoError(t, err)
	m := NewMachine(p, ctx)
	defer m.Release()

	assert.Equal(t, int64(6), m.Run().Int())
	assert.Equal(t, []float64{6}, got)
	assert.Same(t, f.arc, arcs[0])

	// Without arcs the collector gets one synthesized from the entities.
	ctx.Exit = nil
	p, err = Compile("collect(1.5)")
	require.NoError(t, err)
	m2 := NewMachine(p, ctx)
	defer m2.Release()
	assert.Equal(t, 1.5, m2.Run().Real())
	require.Len(t, arcs, 2)
	assert.Same(t, f.a, arcs[1].Head)
	assert.Equal(t, graph.DirAny, arcs[1].Dir)
}

func TestMachine_BudgetAndRelease(t *testing.T) {
	p, err := Compile("1 + 1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Refs())

	ctx := NewContext(nil, 1)
	budget, cancel := context.WithCancel(context.Background())
	ctx.Budget = budget
	m := NewMachine(p, ctx)
	assert.Equal(t, int64(1), p.Refs())
	assert.Equal(t, int64(2), m.Run().Int())

	cancel()
	assert.True(t, m.Run().IsNone())

	assert.Equal(t, int64(0), m.Release())
	assert.True(t, m.Run().IsNone())
	assert.Equal(t, int64(0), m.Release(), "second release is a no-op")
}

func TestMachine_RandomIsSeeded(t *testing.T) {
	p, err := Compile("random() + randint(1, 6) * 0 + randbits() * 0")
	require.NoError(t, err)
	a := NewMachine(p, NewContext(nil, 42))
	b := NewMachine(p, NewContext(nil, 42))
	defer a.Release()
	defer b.Release()
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.Run().Real(), b.Run().Real())
	}

	r, err := Compile("randint(6, 1)")
	require.NoError(t, err)
	m := NewMachine(r, NewContext(nil, 7))
	defer m.Release()
	for i := 0; i < 50; i++ {
		n := m.Run().Int()
		assert.GreaterOrEqual(t, n, int64(1))
		assert.LessOrEqual(t, n, int64(6))
	}
}

func TestMachine_ClonesAreIsolated(t *testing.T) {
	p, err := Compile("inc(0), load(0) * 1")
	require.NoError(t, err)
	proto := NewMachine(p, NewContext(nil, 1))
	defer proto.Release()

	const workers, runs = 8, 100
	results := make([]int64, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		ctx := NewContext(nil, uint64(w))
		mem, err := memory.New(memory.DefaultOrder)
		require.NoError(t, err)
		ctx.Memory = mem
		clone := proto.Clone(ctx)
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			defer clone.Release()
			var last value.Value
			for i := 0; i < runs; i++ {
				last = clone.Run()
			}
			results[w] = last.Int()
		}(w)
	}
	wg.Wait()

	for w, got := range results {
		assert.Equal(t, int64(runs), got, "worker %d", w)
	}
	assert.Equal(t, int64(1), p.Refs())
}

func TestContext_Fork(t *testing.T) {
	f := newFixture(t)
	ctx := f.context()
	ctx.DefProp = value.Int(3)
	mem, err := memory.New(memory.MinOrder)
	require.NoError(t, err)
	ctx.Memory = mem

	fork := ctx.Fork()
	assert.Same(t, f.g, fork.Graph)
	assert.Nil(t, fork.This)
	assert.Nil(t, fork.Memory)
	assert.Equal(t, int64(3), fork.DefProp.Int())

	ctx.ResetEntities()
	assert.Nil(t, ctx.This)
	assert.Nil(t, ctx.Exit)
}
