// Package graph defines the collaborators an expression evaluator consumes:
// vertices, arcs, the owning graph, similarity vectors and top-K collectors.
//
// The storage engine behind these interfaces is not part of this module.
// Memgraph is a small in-memory implementation used by tests, examples and
// the CLI; OpenSQLite and LoadYAML populate one from fixtures.
package graph

import "fmt"

// Direction is the direction of an arc relative to the vertex it is viewed from.
type Direction int

// Arc directions. The numeric values are visible in expressions as D_* constants.
const (
	DirAny Direction = iota
	DirIn
	DirOut
	DirBoth
)

// String returns the constant name of the direction.
func (d Direction) String() string {
	switch d {
	case DirAny:
		return "D_ANY"
	case DirIn:
		return "D_IN"
	case DirOut:
		return "D_OUT"
	case DirBoth:
		return "D_BOTH"
	default:
		return fmt.Sprintf("D_UNKNOWN(%d)", int(d))
	}
}

// Modifier describes how an arc value should be interpreted.
type Modifier int

// Arc modifiers. The numeric values are visible in expressions as M_* constants.
const (
	ModAny Modifier = iota
	ModStatic
	ModSimilarity
	ModDistance
	ModLSH
	ModInteger
	ModUnsigned
	ModCounter
	ModAccumulator
	ModCreated
	ModModified
	ModExpires
	ModFloat
)

var modifierNames = [...]string{
	ModAny:         "M_ANY",
	ModStatic:      "M_STAT",
	ModSimilarity:  "M_SIM",
	ModDistance:    "M_DIST",
	ModLSH:         "M_LSH",
	ModInteger:     "M_INT",
	ModUnsigned:    "M_UINT",
	ModCounter:     "M_CNT",
	ModAccumulator: "M_ACC",
	ModCreated:     "M_TMC",
	ModModified:    "M_TMM",
	ModExpires:     "M_TMX",
	ModFloat:       "M_FLT",
}

// String returns the constant name of the modifier.
func (m Modifier) String() string {
	if m >= 0 && int(m) < len(modifierNames) {
		return modifierNames[m]
	}
	return fmt.Sprintf("M_UNKNOWN(%d)", int(m))
}

// Modifiers returns every known modifier in declaration order.
func Modifiers() []Modifier {
	out := make([]Modifier, len(modifierNames))
	for i := range modifierNames {
		out[i] = Modifier(i)
	}
	return out
}

// IsIntegral reports whether arc values with this modifier are whole numbers.
func (m Modifier) IsIntegral() bool {
	switch m {
	case ModInteger, ModUnsigned, ModCounter, ModCreated, ModModified, ModExpires:
		return true
	}
	return false
}

// Vector is a reference-counted similarity vector.
//
// Incref and Decref return the new reference count. Implementations must be
// safe for concurrent reference counting; the elements are immutable.
type Vector interface {
	Incref() int64
	Decref() int64
	Len() int
	Elements() []float32
	// Similarity returns a score in [-1, 1]; higher is more similar.
	Similarity(other Vector) float64
	// Fingerprint is a 64-bit locality-sensitive hash of the vector.
	Fingerprint() uint64
}

// Vertex is the read-only view of a vertex the evaluator dereferences.
type Vertex interface {
	ID() string
	InternalID() uint64
	Type() string
	Degree() int
	InDegree() int
	OutDegree() int
	// CreatedAt, ModifiedAt and ExpiresAt are unix seconds.
	CreatedAt() int64
	ModifiedAt() int64
	ExpiresAt() int64
	// Rank returns the vertex rank coefficients.
	Rank() (c1, c0 float64)
	Virtual() bool
	// Vector returns nil when the vertex has no vector.
	Vector() Vector
	Property(key string) (any, bool)
}

// Arc connects Tail to Head with a typed, modified value.
type Arc struct {
	Tail  Vertex
	Head  Vertex
	Rel   string
	Dir   Direction
	Mod   Modifier
	Value float64
	// Dist is the traversal distance of the arc from the anchor vertex.
	Dist int
}

// Graph is the owner of vertices and the enumerations they share.
type Graph interface {
	Name() string
	Order() int
	Size() int
	RelEncode(rel string) (int, bool)
	RelDecode(code int) (string, bool)
	TypeEncode(typ string) (int, bool)
	TypeDecode(code int) (string, bool)
}

// Collector accumulates scored arcs, typically a bounded top-K result set.
type Collector interface {
	Collect(arc *Arc, score float64)
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func(arc *Arc, score float64)

// Collect calls f.
func (f CollectorFunc) Collect(arc *Arc, score float64) {
	f(arc, score)
}

// ParseModifier returns the modifier with the given constant name,
// with or without the "M_" prefix.
func ParseModifier(name string) (Modifier, bool) {
	if name == "" {
		return ModAny, true
	}
	for i, n := range modifierNames {
		if n == name || n[2:] == name {
			return Modifier(i), true
		}
	}
	return ModAny, false
}
