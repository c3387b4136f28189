package expr

import (
	"strconv"
	"strings"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

func registerStrings(t *Table) {
	t.addFunc("str", 1, 1, unary(func(v value.Value) value.Value { return value.Str(text(v)) }))
	t.addFunc("upper", 1, 1, unary(stringFunc(strings.ToUpper)))
	t.addFunc("lower", 1, 1, unary(stringFunc(strings.ToLower)))
	t.addFunc("strlen", 1, 1, unary(func(v value.Value) value.Value {
		if s, ok := stringOf(v); ok {
			return value.Int(int64(len(s)))
		}
		return value.None()
	}))
	t.addFunc("startswith", 2, 2, binary(stringPred(strings.HasPrefix)))
	t.addFunc("endswith", 2, 2, binary(stringPred(strings.HasSuffix)))
	t.addFunc("concat", 0, -1, variadic(func(_ *Machine, args []value.Value) value.Value {
		var b strings.Builder
		for _, a := range args {
			b.WriteString(text(a))
		}
		return value.Str(b.String())
	}))
}

// stringOf returns the text of strings, vertex IDs and vertices.
func stringOf(v value.Value) (string, bool) {
	switch v.Kind() {
	case value.KindString, value.KindVertexID, value.KindVertex:
		return v.Str(), true
	}
	return "", false
}

// text renders v for concatenation: strings as-is, numbers without quotes.
func text(v value.Value) string {
	if s, ok := stringOf(v); ok {
		return s
	}
	switch v.Kind() {
	case value.KindInteger:
		return strconv.FormatInt(v.Int(), 10)
	case value.KindReal:
		return strconv.FormatFloat(v.Real(), 'g', -1, 64)
	case value.KindNone:
		return ""
	}
	return v.String()
}

func stringFunc(f func(string) string) func(value.Value) value.Value {
	return func(v value.Value) value.Value {
		if s, ok := stringOf(v); ok {
			return value.Str(f(s))
		}
		return v
	}
}

func stringPred(f func(s, affix string) bool) func(a, b value.Value) value.Value {
	return func(a, b value.Value) value.Value {
		s, ok1 := stringOf(a)
		affix, ok2 := stringOf(b)
		return value.Bool(ok1 && ok2 && f(s, affix))
	}
}

func parseNumber(s string) (value.Value, bool) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return value.Int(i), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Real(f), true
	}
	return value.None(), false
}

// subscript indexes strings by byte, vectors by element, bit vectors by bit
// and vertices by property key. Negative indexes count from the end;
// out-of-range indexes yield null.
func subscript(m *Machine, a, i value.Value) value.Value {
	switch a.Kind() {
	case value.KindString, value.KindVertexID:
		s := a.Str()
		if k, ok := index(i, len(s)); ok {
			return value.Str(s[k : k+1])
		}
	case value.KindVector:
		elems := a.Vector().Elements()
		if k, ok := index(i, len(elems)); ok {
			return value.Real(float64(elems[k]))
		}
	case value.KindBitVector, value.KindInteger:
		if k, ok := index(i, 64); ok {
			return value.Int(int64(a.Bits()>>k) & 1)
		}
	case value.KindVertex:
		key, ok := stringOf(i)
		if !ok {
			return value.None()
		}
		if p, ok := a.Vertex().Property(key); ok {
			return value.FromAny(p)
		}
		return m.ctx.DefProp
	}
	return value.None()
}

func index(i value.Value, n int) (int, bool) {
	if !i.IsNumeric() || i.IsNaN() {
		return 0, false
	}
	k := i.Int()
	if k < 0 {
		k += int64(n)
	}
	if k < 0 || k >= int64(n) {
		return 0, false
	}
	return int(k), true
}

// slice returns s[lo:hi] with null bounds meaning the ends, negative bounds
// counting from the end and every bound clamped to the string.
func slice(a, lo, hi value.Value) value.Value {
	s, ok := stringOf(a)
	if !ok {
		return value.None()
	}
	n := int64(len(s))
	bound := func(v value.Value, def int64) int64 {
		if v.IsNone() || !v.IsNumeric() {
			return def
		}
		k := v.Int()
		if k < 0 {
			k += n
		}
		return min(max(k, 0), n)
	}
	from, to := bound(lo, 0), bound(hi, n)
	if from >= to {
		return value.Str("")
	}
	return value.Str(s[from:to])
}
