package value

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/zeebo/xxh3"
)

// Equal reports strict equality: numbers compare by value across Integer,
// Real and BitVector; a Vertex equals a VertexID or String holding its ID;
// None equals None. Strings compare exactly.
func Equal(a, b Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		return numericCompare(a, b) == 0
	}
	if id, ok := identity(a); ok {
		if other, ok := identity(b); ok {
			return id == other
		}
		return false
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNone:
		return true
	case KindKeyVal:
		return a.i == b.i && a.f == b.f
	case KindVector:
		return sameVector(a, b)
	case KindSet:
		return a.i == b.i
	case KindRange:
		return a.f == b.f && a.i == b.i
	default:
		return false
	}
}

// Matches is Equal with wildcard strings: when either side is a string
// pattern with a leading or trailing '*', the other side's string form is
// matched against it. The right operand is tried as the pattern first.
func Matches(a, b Value) bool {
	if b.kind == KindString && IsPattern(b.s) {
		if s, ok := identity(a); ok {
			return Match(b.s, s)
		}
	}
	if a.kind == KindString && IsPattern(a.s) {
		if s, ok := identity(b); ok {
			return Match(a.s, s)
		}
	}
	return Equal(a, b)
}

// IsPattern reports whether s has a leading or trailing wildcard.
func IsPattern(s string) bool {
	return strings.HasPrefix(s, "*") || strings.HasSuffix(s, "*")
}

// Match matches s against a pattern of the forms 'x', 'x*', '*x' or '*x*'.
func Match(pattern, s string) bool {
	lead := strings.HasPrefix(pattern, "*")
	trail := len(pattern) > 1 && strings.HasSuffix(pattern, "*")
	core := pattern
	if lead {
		core = core[1:]
	}
	if trail {
		core = core[:len(core)-1]
	}
	switch {
	case lead && trail:
		return strings.Contains(s, core)
	case lead:
		return strings.HasSuffix(s, core)
	case trail:
		return strings.HasPrefix(s, core)
	default:
		return s == pattern
	}
}

// Compare orders a and b. Numbers compare numerically and strings
// lexicographically; ok is false when the values are not ordered,
// including any comparison involving NaN.
func Compare(a, b Value) (c int, ok bool) {
	if a.IsNumeric() && b.IsNumeric() {
		if a.IsNaN() || b.IsNaN() {
			return 0, false
		}
		return numericCompare(a, b), true
	}
	if a.kind == KindKeyVal && b.kind == KindKeyVal {
		return cmpFloat(a.f, b.f), !math.IsNaN(a.f) && !math.IsNaN(b.f)
	}
	sa, oka := identity(a)
	sb, okb := identity(b)
	if oka && okb {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// SortKey maps v to a float for memory sort and heap primitives.
// Values without a numeric interpretation map to NaN.
func SortKey(v Value) float64 {
	switch v.kind {
	case KindInteger, KindReal, KindBitVector, KindKeyVal:
		return v.Real()
	default:
		return math.NaN()
	}
}

// Less orders sort keys with NaN after every number.
func Less(a, b float64) bool {
	if math.IsNaN(b) {
		return !math.IsNaN(a)
	}
	if math.IsNaN(a) {
		return false
	}
	return a < b
}

// Hash returns a deterministic 64-bit xxh3 hash of v.
// Values that are Equal numerically hash alike when they are integral.
func Hash(v Value) uint64 {
	var buf [9]byte
	switch v.kind {
	case KindInteger, KindBitVector:
		buf[0] = byte(KindInteger)
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.i))
		return xxh3.Hash(buf[:])
	case KindReal:
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<63 {
			buf[0] = byte(KindInteger)
			binary.LittleEndian.PutUint64(buf[1:], uint64(int64(v.f)))
		} else {
			buf[0] = byte(KindReal)
			binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(v.f))
		}
		return xxh3.Hash(buf[:])
	case KindString, KindVertexID:
		return xxh3.HashString(v.s)
	case KindVertex:
		return xxh3.HashString(v.Str())
	case KindKeyVal:
		buf[0] = byte(KindKeyVal)
		binary.LittleEndian.PutUint32(buf[1:], uint32(v.i))
		h := xxh3.Hash(buf[:5])
		return h ^ math.Float64bits(v.f)
	case KindVector:
		return v.Vector().Fingerprint()
	default:
		buf[0] = byte(v.kind)
		return xxh3.Hash(buf[:1])
	}
}

// identity returns the string identity of strings, vertex IDs and vertices.
func identity(v Value) (string, bool) {
	switch v.kind {
	case KindString, KindVertexID:
		return v.s, true
	case KindVertex:
		return v.Vertex().ID(), true
	default:
		return "", false
	}
}

func sameVector(a, b Value) bool {
	va, vb := a.Vector(), b.Vector()
	if va == vb {
		return true
	}
	ea, eb := va.Elements(), vb.Elements()
	if len(ea) != len(eb) {
		return false
	}
	for i := range ea {
		if ea[i] != eb[i] {
			return false
		}
	}
	return true
}

func numericCompare(a, b Value) int {
	if a.kind == KindReal || b.kind == KindReal {
		return cmpFloat(a.Real(), b.Real())
	}
	if a.kind == KindBitVector && b.kind == KindBitVector {
		ua, ub := uint64(a.i), uint64(b.i)
		switch {
		case ua < ub:
			return -1
		case ua > ub:
			return 1
		}
		return 0
	}
	switch {
	case a.i < b.i:
		return -1
	case a.i > b.i:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case a == b:
		return 0
	}
	// NaN is unequal to everything.
	return 2
}
