package expr

import (
	"math"
	"math/bits"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/vector"
)

var vertexAttrs = map[string]func(v graph.Vertex) value.Value{
	"id":         func(v graph.Vertex) value.Value { return value.VertexID(v.ID()) },
	"internalid": func(v graph.Vertex) value.Value { return value.Int(int64(v.InternalID())) },
	"type":       func(v graph.Vertex) value.Value { return value.Str(v.Type()) },
	"deg":        func(v graph.Vertex) value.Value { return value.Int(int64(v.Degree())) },
	"ideg":       func(v graph.Vertex) value.Value { return value.Int(int64(v.InDegree())) },
	"odeg":       func(v graph.Vertex) value.Value { return value.Int(int64(v.OutDegree())) },
	"tmc":        func(v graph.Vertex) value.Value { return value.Int(v.CreatedAt()) },
	"tmm":        func(v graph.Vertex) value.Value { return value.Int(v.ModifiedAt()) },
	"tmx":        func(v graph.Vertex) value.Value { return value.Int(v.ExpiresAt()) },
	"c0":         func(v graph.Vertex) value.Value { _, c0 := v.Rank(); return value.Real(c0) },
	"c1":         func(v graph.Vertex) value.Value { c1, _ := v.Rank(); return value.Real(c1) },
	"virtual":    func(v graph.Vertex) value.Value { return value.Bool(v.Virtual()) },
	"vector":     func(v graph.Vertex) value.Value { return value.Vec(v.Vector()) },
	"rank":       func(v graph.Vertex) value.Value { c1, c0 := v.Rank(); return value.Real(c1 + c0) },
}

var arcAttrs = map[string]func(a *graph.Arc) value.Value{
	"value": func(a *graph.Arc) value.Value {
		if a.Mod.IsIntegral() {
			return value.Int(int64(a.Value))
		}
		return value.Real(a.Value)
	},
	"type":  func(a *graph.Arc) value.Value { return value.Str(a.Rel) },
	"dir":   func(a *graph.Arc) value.Value { return value.Int(int64(a.Dir)) },
	"mod":   func(a *graph.Arc) value.Value { return value.Int(int64(a.Mod)) },
	"dist":  func(a *graph.Arc) value.Value { return value.Int(int64(a.Dist)) },
	"isfwd": func(a *graph.Arc) value.Value { return value.Bool(a.Dir == graph.DirOut) },
}

func registerGraph(t *Table) {
	for e := EntityTail; e <= EntityHead; e++ {
		t.entities[e] = &Descriptor{Token: e.String(), Prec: PrecOperand, Class: ClassSymbol, Entity: e,
			eval: func(m *Machine, op *Op) {
				m.sp++
				m.stack[m.sp] = value.Vert(m.ctx.entity(op.entity))
			}}
	}
	for name, get := range vertexAttrs {
		t.vertexAt[name] = &Descriptor{Token: name, Prec: PrecOperand, Class: ClassSymbol, cached: true,
			eval: func(m *Machine, op *Op) {
				if m.pushCached(op) {
					return
				}
				v := value.None()
				if vx := m.ctx.entity(op.entity); vx != nil {
					v = get(vx)
				}
				m.pushAndCache(op, v)
			}}
	}
	for name, get := range arcAttrs {
		t.arcAt[name] = &Descriptor{Token: name, Prec: PrecOperand, Class: ClassSymbol, cached: true,
			eval: func(m *Machine, op *Op) {
				if m.pushCached(op) {
					return
				}
				v := value.None()
				if a := m.ctx.arc(op.entity); a != nil {
					v = get(a)
				}
				m.pushAndCache(op, v)
			}}
	}

	t.addSymbol("context.rank", nullary(func(m *Machine) value.Value { return value.Real(m.ctx.Rank) }))
	t.addSymbol("context.vector", nullary(func(m *Machine) value.Value { return value.Vec(m.ctx.Vector) }))
	t.addSymbol("context.defprop", nullary(func(m *Machine) value.Value { return m.ctx.DefProp }))
	t.addSymbol("graph.order", nullary(func(m *Machine) value.Value { return graphInt(m, graph.Graph.Order) }))
	t.addSymbol("graph.size", nullary(func(m *Machine) value.Value { return graphInt(m, graph.Graph.Size) }))
	t.addSymbol("graph.name", nullary(func(m *Machine) value.Value {
		if m.ctx.Graph == nil {
			return value.None()
		}
		return value.Str(m.ctx.Graph.Name())
	}))
	t.addSymbol("graph.ts", nullary(func(m *Machine) value.Value { return value.Int(m.ctx.now().Unix()) }))

	t.addFunc("relenc", 1, 1, unaryM(func(m *Machine, v value.Value) value.Value {
		return encode(m, v, graph.Graph.RelEncode)
	}))
	t.addFunc("typeenc", 1, 1, unaryM(func(m *Machine, v value.Value) value.Value {
		return encode(m, v, graph.Graph.TypeEncode)
	}))
	t.addFunc("reldec", 1, 1, unaryM(func(m *Machine, v value.Value) value.Value {
		return decode(m, v, graph.Graph.RelDecode)
	}))
	t.addFunc("typedec", 1, 1, unaryM(func(m *Machine, v value.Value) value.Value {
		return decode(m, v, graph.Graph.TypeDecode)
	}))

	t.addFunc("sim", 1, 2, variadic(similarity))
	t.addFunc("l2dist", 2, 2, binary(func(a, b value.Value) value.Value {
		return value.Real(vector.L2(vectorOf(a), vectorOf(b)))
	}))
	t.addFunc("fp", 1, 1, unary(func(v value.Value) value.Value {
		if vec := vectorOf(v); vec != nil {
			return value.Bits(vec.Fingerprint())
		}
		return value.None()
	}))
	t.addFunc("hamdist", 2, 2, binary(func(a, b value.Value) value.Value {
		x, ok1 := fingerprintOf(a)
		y, ok2 := fingerprintOf(b)
		if !ok1 || !ok2 {
			return value.None()
		}
		return value.Int(int64(bits.OnesCount64(x ^ y)))
	}))
	t.addFunc("popcnt", 1, 1, unary(func(v value.Value) value.Value {
		x, ok := fingerprintOf(v)
		if !ok {
			return value.None()
		}
		return value.Int(int64(bits.OnesCount64(x)))
	}))

	// K is folded into the op at compile time.
	t.addFunc("mcull", 2, 2, unaryM(cull))
	t.addFunc("collect", 1, 1, unaryM(collect))
}

func graphInt(m *Machine, f func(graph.Graph) int) value.Value {
	if m.ctx.Graph == nil {
		return value.None()
	}
	return value.Int(int64(f(m.ctx.Graph)))
}

func encode(m *Machine, v value.Value, f func(graph.Graph, string) (int, bool)) value.Value {
	s, ok := stringOf(v)
	if !ok || m.ctx.Graph == nil {
		return value.None()
	}
	code, ok := f(m.ctx.Graph, s)
	if !ok {
		return value.None()
	}
	return value.Int(int64(code))
}

func decode(m *Machine, v value.Value, f func(graph.Graph, int) (string, bool)) value.Value {
	if !v.IsNumeric() || m.ctx.Graph == nil {
		return value.None()
	}
	s, ok := f(m.ctx.Graph, int(v.Int()))
	if !ok {
		return value.None()
	}
	return value.Str(s)
}

// vectorOf returns the vector of a Vector value or of a vertex.
func vectorOf(v value.Value) graph.Vector {
	switch v.Kind() {
	case value.KindVector:
		return v.Vector()
	case value.KindVertex:
		return v.Vertex().Vector()
	}
	return nil
}

func fingerprintOf(v value.Value) (uint64, bool) {
	if vec := vectorOf(v); vec != nil {
		return vec.Fingerprint(), true
	}
	if v.IsNumeric() {
		return v.Bits(), true
	}
	return 0, false
}

// similarity compares two vectors, or one vector with the context vector.
func similarity(m *Machine, args []value.Value) value.Value {
	a := vectorOf(args[0])
	var b graph.Vector
	if len(args) == 2 {
		b = vectorOf(args[1])
	} else {
		b = m.ctx.Vector
	}
	if a == nil || b == nil {
		return value.NaN()
	}
	return value.Real(a.Similarity(b))
}

// cull offers (score, head-or-this) to the cull heap and reports whether it
// was retained.
func cull(m *Machine, score value.Value) value.Value {
	h := m.ctx.Cull
	if h == nil || !score.IsNumeric() {
		return value.Int(0)
	}
	v := m.ctx.Head
	if v == nil {
		v = m.ctx.This
	}
	return value.Bool(h.Push(score.Real(), v))
}

// collect forwards the current arc and score to the collector and returns
// the score.
func collect(m *Machine, score value.Value) value.Value {
	c := m.ctx.Collector
	if c == nil {
		return score
	}
	arc := m.ctx.Exit
	if arc == nil {
		arc = m.ctx.Arrive
	}
	if arc == nil {
		arc = &graph.Arc{Tail: m.ctx.Tail, Head: m.ctx.This, Dir: graph.DirAny}
	}
	f := score.Real()
	if math.IsNaN(f) {
		return score
	}
	c.Collect(arc, f)
	return score
}
