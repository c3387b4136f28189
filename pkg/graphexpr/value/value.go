// Package value implements the tagged runtime value of the expression machine.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
)

// Kind identifies which variant of a Value is meaningful.
type Kind uint8

// Value kinds.
const (
	KindNone Kind = iota
	KindInteger
	KindReal
	KindString
	KindVector
	KindBitVector
	KindKeyVal
	KindVertex
	KindVertexID
	KindSet
	KindRange
	// KindInit marks the guard slot below the bottom of the stack.
	KindInit
	// KindTerminator marks the end of a program.
	KindTerminator
)

var kindNames = [...]string{
	KindNone:       "null",
	KindInteger:    "int",
	KindReal:       "real",
	KindString:     "str",
	KindVector:     "vector",
	KindBitVector:  "bitvector",
	KindKeyVal:     "keyval",
	KindVertex:     "vertex",
	KindVertexID:   "vertexid",
	KindSet:        "set",
	KindRange:      "range",
	KindInit:       "init",
	KindTerminator: "terminator",
}

// String returns the lower-case kind name, as reported by the type() builtin.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a fixed-size tagged union.
//
// Integer, BitVector and Set count live in i; Real and KeyVal value live in f;
// KeyVal key is the low 32 bits of i. String and VertexID live in s.
// Vector and Vertex handles live in ref. Range keeps lo in f and the bits of
// hi in i.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	ref  any
}

// None returns the null value.
func None() Value { return Value{} }

// Int returns an Integer.
func Int(i int64) Value { return Value{kind: KindInteger, i: i} }

// Real returns a Real.
func Real(f float64) Value { return Value{kind: KindReal, f: f} }

// NaN returns a Real NaN, the result of meaningless arithmetic.
func NaN() Value { return Value{kind: KindReal, f: math.NaN()} }

// Bool returns Integer 1 or 0.
func Bool(b bool) Value {
	if b {
		return Value{kind: KindInteger, i: 1}
	}
	return Value{kind: KindInteger}
}

// Str returns a String.
func Str(s string) Value { return Value{kind: KindString, s: s} }

// Bits returns a BitVector.
func Bits(u uint64) Value { return Value{kind: KindBitVector, i: int64(u)} }

// KeyVal returns a KeyVal pair.
func KeyVal(key int32, val float64) Value {
	return Value{kind: KindKeyVal, i: int64(key), f: val}
}

// Vec wraps a vector handle. A nil vector yields None.
// The caller manages the reference count.
func Vec(v graph.Vector) Value {
	if v == nil {
		return Value{}
	}
	return Value{kind: KindVector, ref: v}
}

// Vert wraps a vertex handle. A nil vertex yields None.
func Vert(v graph.Vertex) Value {
	if v == nil {
		return Value{}
	}
	return Value{kind: KindVertex, ref: v}
}

// VertexID returns a vertex identifier.
func VertexID(id string) Value { return Value{kind: KindVertexID, s: id} }

// Set returns the marker for a set literal of n members.
func Set(n int) Value { return Value{kind: KindSet, i: int64(n)} }

// RangeOf returns the half-open numeric range [lo, hi).
func RangeOf(lo, hi float64) Value {
	return Value{kind: KindRange, f: lo, i: int64(math.Float64bits(hi))}
}

// Init returns the stack guard sentinel.
func Init() Value { return Value{kind: KindInit} }

// Terminator returns the end-of-program sentinel.
func Terminator() Value { return Value{kind: KindTerminator} }

// FromAny converts a host value, such as a vertex property, to a Value.
// Unsupported types yield None.
func FromAny(x any) Value {
	switch v := x.(type) {
	case nil:
		return None()
	case Value:
		return v
	case bool:
		return Bool(v)
	case int:
		return Int(int64(v))
	case int8:
		return Int(int64(v))
	case int16:
		return Int(int64(v))
	case int32:
		return Int(int64(v))
	case int64:
		return Int(v)
	case uint:
		return Int(int64(v))
	case uint8:
		return Int(int64(v))
	case uint16:
		return Int(int64(v))
	case uint32:
		return Int(int64(v))
	case uint64:
		return Bits(v)
	case float32:
		return Real(float64(v))
	case float64:
		return Real(v)
	case string:
		return Str(v)
	case []byte:
		return Str(string(v))
	case graph.Vertex:
		return Vert(v)
	case graph.Vector:
		return Vec(v)
	default:
		return None()
	}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Is reports whether v has kind k.
func (v Value) Is(k Kind) bool { return v.kind == k }

// IsNone reports whether v is null.
func (v Value) IsNone() bool { return v.kind == KindNone }

// IsNumeric reports whether v is an Integer, Real or BitVector.
func (v Value) IsNumeric() bool {
	return v.kind == KindInteger || v.kind == KindReal || v.kind == KindBitVector
}

// IsNaN reports whether v is a Real NaN.
func (v Value) IsNaN() bool { return v.kind == KindReal && math.IsNaN(v.f) }

// Int coerces v to an integer. Reals truncate toward zero (NaN is 0),
// KeyVal yields its value truncated and everything else is 0.
func (v Value) Int() int64 {
	switch v.kind {
	case KindInteger, KindBitVector:
		return v.i
	case KindReal, KindKeyVal:
		return truncate(v.f)
	default:
		return 0
	}
}

// Real coerces v to a float. Non-numeric values are NaN, except KeyVal
// which yields its value.
func (v Value) Real() float64 {
	switch v.kind {
	case KindInteger:
		return float64(v.i)
	case KindBitVector:
		return float64(uint64(v.i))
	case KindReal, KindKeyVal:
		return v.f
	default:
		return math.NaN()
	}
}

// Bits coerces v to an unsigned bit pattern.
func (v Value) Bits() uint64 { return uint64(v.Int()) }

// Str returns the string payload of a String or VertexID, or the ID of a Vertex.
func (v Value) Str() string {
	switch v.kind {
	case KindString, KindVertexID:
		return v.s
	case KindVertex:
		return v.ref.(graph.Vertex).ID()
	default:
		return ""
	}
}

// Vector returns the vector handle or nil.
func (v Value) Vector() graph.Vector {
	if v.kind != KindVector {
		return nil
	}
	return v.ref.(graph.Vector)
}

// Vertex returns the vertex handle or nil.
func (v Value) Vertex() graph.Vertex {
	if v.kind != KindVertex {
		return nil
	}
	return v.ref.(graph.Vertex)
}

// Key returns the key of a KeyVal.
func (v Value) Key() int32 { return int32(v.i) }

// Count returns the member count of a Set marker.
func (v Value) Count() int { return int(v.i) }

// Range returns the bounds of a Range.
func (v Value) Range() (lo, hi float64) {
	return v.f, math.Float64frombits(uint64(v.i))
}

// Len returns the length of strings, vectors and sets; 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindString, KindVertexID:
		return len(v.s)
	case KindVector:
		return v.ref.(graph.Vector).Len()
	case KindSet:
		return int(v.i)
	default:
		return 0
	}
}

// Truthy reports the boolean interpretation of v. NaN is false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindInteger, KindBitVector, KindSet:
		return v.i != 0
	case KindReal, KindKeyVal:
		return v.f != 0 && !math.IsNaN(v.f)
	case KindString, KindVertexID:
		return v.s != ""
	case KindVector, KindVertex:
		return true
	case KindRange:
		lo, hi := v.Range()
		return hi > lo
	default:
		return false
	}
}

// String formats v the way it would be written as a literal where possible.
func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "null"
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		return formatReal(v.f)
	case KindString:
		return quote(v.s)
	case KindVector:
		return fmt.Sprintf("vector(len=%d)", v.ref.(graph.Vector).Len())
	case KindBitVector:
		return fmt.Sprintf("0x%016x", uint64(v.i))
	case KindKeyVal:
		return fmt.Sprintf("keyval(%d, %s)", int32(v.i), formatReal(v.f))
	case KindVertex:
		return "vertex(" + quote(v.ref.(graph.Vertex).ID()) + ")"
	case KindVertexID:
		return "vertexid(" + quote(v.s) + ")"
	case KindSet:
		return fmt.Sprintf("set(%d)", v.i)
	case KindRange:
		lo, hi := v.Range()
		return "range(" + formatReal(lo) + ", " + formatReal(hi) + ")"
	default:
		return "<" + v.kind.String() + ">"
	}
}

// Any converts v to a host value: int64, float64, string, uint64,
// graph.Vector, graph.Vertex or nil.
func (v Value) Any() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindReal, KindKeyVal:
		return v.f
	case KindString, KindVertexID:
		return v.s
	case KindBitVector:
		return uint64(v.i)
	case KindVector, KindVertex:
		return v.ref
	default:
		return nil
	}
}

func formatReal(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\'', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&b, `\x%02x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func truncate(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}
