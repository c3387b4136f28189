package expr

import (
	"math"
	"strings"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

func registerOperators(t *Table) {
	t.addInfix(",", PrecSequence, AssocLeft, binary(seq))
	t.addInfix(";", PrecSequence, AssocLeft, binary(seq))
	t.addInfix("|", PrecBitOr, AssocLeft, binary(bitOr))
	t.addInfix("^", PrecBitXor, AssocLeft, binary(bitXor))
	t.addInfix("&", PrecBitAnd, AssocLeft, binary(bitAnd))
	t.addInfix("==", PrecEquality, AssocLeft, binary(eq))
	t.addInfix("!=", PrecEquality, AssocLeft, binary(ne))
	t.addInfix("<", PrecCompare, AssocLeft, binary(compareWith(func(c int) bool { return c < 0 })))
	t.addInfix("<=", PrecCompare, AssocLeft, binary(compareWith(func(c int) bool { return c <= 0 })))
	t.addInfix(">", PrecCompare, AssocLeft, binary(compareWith(func(c int) bool { return c > 0 })))
	t.addInfix(">=", PrecCompare, AssocLeft, binary(compareWith(func(c int) bool { return c >= 0 })))
	t.addInfix("<<", PrecShift, AssocLeft, binary(shl))
	t.addInfix(">>", PrecShift, AssocLeft, binary(shr))
	t.addInfix("+", PrecAdditive, AssocLeft, binary(add))
	t.addInfix("-", PrecAdditive, AssocLeft, binary(sub))
	t.addInfix("*", PrecMultiplicative, AssocLeft, binary(mul))
	t.addInfix("/", PrecMultiplicative, AssocLeft, binary(div))
	t.addInfix("%", PrecMultiplicative, AssocLeft, binary(mod))
	t.addInfix("in", PrecMembership, AssocLeft, evalIn)
	t.addInfix("notin", PrecMembership, AssocLeft, evalNotIn)
	t.addInfix("**", PrecPower, AssocRight, binary(pow))

	// Short-circuit and conditional operators compile to skips; their
	// descriptors carry precedence only.
	t.infix["&&"] = &Descriptor{Token: "&&", Prec: PrecAnd, Class: ClassInfix, MinArgs: 2, MaxArgs: 2}
	t.infix["||"] = &Descriptor{Token: "||", Prec: PrecOr, Class: ClassInfix, MinArgs: 2, MaxArgs: 2}
	t.infix["?"] = &Descriptor{Token: "?", Prec: PrecTernary, Assoc: AssocRight, Class: ClassTernary, MinArgs: 3, MaxArgs: 3}
	t.infix[":="] = &Descriptor{Token: ":=", Prec: PrecAssign, Assoc: AssocRight, Class: ClassAssign, MinArgs: 1, MaxArgs: 1}

	t.addPrefix("-", unary(neg))
	t.addPrefix("!", unary(not))
	t.addPrefix("~", unary(complement))
	// Unary plus is elided by the compiler.
	t.addPrefix("+", nil)
}

func seq(_, b value.Value) value.Value { return b }

// numeric classifies a pair of operands for arithmetic.
type numeric uint8

const (
	numNone numeric = iota
	numInt
	numReal
)

func classify(a, b value.Value) numeric {
	if !a.IsNumeric() || !b.IsNumeric() {
		return numNone
	}
	if a.Is(value.KindReal) || b.Is(value.KindReal) {
		return numReal
	}
	return numInt
}

func add(a, b value.Value) value.Value {
	switch classify(a, b) {
	case numInt:
		return value.Int(a.Int() + b.Int())
	case numReal:
		return value.Real(a.Real() + b.Real())
	}
	return value.NaN()
}

func sub(a, b value.Value) value.Value {
	switch classify(a, b) {
	case numInt:
		return value.Int(a.Int() - b.Int())
	case numReal:
		return value.Real(a.Real() - b.Real())
	}
	return value.NaN()
}

func mul(a, b value.Value) value.Value {
	switch classify(a, b) {
	case numInt:
		return value.Int(a.Int() * b.Int())
	case numReal:
		return value.Real(a.Real() * b.Real())
	}
	return value.NaN()
}

// div truncates integer quotients. Division by zero yields a signed
// infinity, or NaN for 0/0.
func div(a, b value.Value) value.Value {
	switch classify(a, b) {
	case numInt:
		x, y := a.Int(), b.Int()
		if y == 0 {
			return value.Real(divZero(float64(x)))
		}
		return value.Int(x / y)
	case numReal:
		return value.Real(a.Real() / b.Real())
	}
	return value.NaN()
}

func divZero(x float64) float64 {
	switch {
	case x > 0:
		return math.Inf(1)
	case x < 0:
		return math.Inf(-1)
	}
	return math.NaN()
}

func mod(a, b value.Value) value.Value {
	switch classify(a, b) {
	case numInt:
		x, y := a.Int(), b.Int()
		if y == 0 {
			return value.NaN()
		}
		return value.Int(x % y)
	case numReal:
		return value.Real(math.Mod(a.Real(), b.Real()))
	}
	return value.NaN()
}

// pow keeps integer results for a non-negative integer exponent.
func pow(a, b value.Value) value.Value {
	switch classify(a, b) {
	case numInt:
		if e := b.Int(); e >= 0 {
			return value.Int(ipow(a.Int(), e))
		}
		return value.Real(math.Pow(a.Real(), b.Real()))
	case numReal:
		return value.Real(math.Pow(a.Real(), b.Real()))
	}
	return value.NaN()
}

func ipow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

// bitwise applies f to the bit patterns of a and b. The result is a
// BitVector when either operand is one.
func bitwise(a, b value.Value, f func(x, y uint64) uint64) value.Value {
	if !a.IsNumeric() || !b.IsNumeric() {
		return value.NaN()
	}
	r := f(a.Bits(), b.Bits())
	if a.Is(value.KindBitVector) || b.Is(value.KindBitVector) {
		return value.Bits(r)
	}
	return value.Int(int64(r))
}

func bitOr(a, b value.Value) value.Value {
	return bitwise(a, b, func(x, y uint64) uint64 { return x | y })
}

func bitXor(a, b value.Value) value.Value {
	return bitwise(a, b, func(x, y uint64) uint64 { return x ^ y })
}

func bitAnd(a, b value.Value) value.Value {
	return bitwise(a, b, func(x, y uint64) uint64 { return x & y })
}

// Shift counts wrap modulo 64. Right shifts are arithmetic for integers and
// logical for bit vectors.
func shl(a, b value.Value) value.Value {
	return bitwise(a, b, func(x, y uint64) uint64 { return x << (y & 63) })
}

func shr(a, b value.Value) value.Value {
	if a.Is(value.KindBitVector) {
		return bitwise(a, b, func(x, y uint64) uint64 { return x >> (y & 63) })
	}
	return bitwise(a, b, func(x, y uint64) uint64 { return uint64(int64(x) >> (y & 63)) })
}

func neg(a value.Value) value.Value {
	switch a.Kind() {
	case value.KindInteger, value.KindBitVector:
		return value.Int(-a.Int())
	case value.KindReal:
		return value.Real(-a.Real())
	}
	return value.NaN()
}

func not(a value.Value) value.Value { return value.Bool(!a.Truthy()) }

func complement(a value.Value) value.Value {
	switch a.Kind() {
	case value.KindBitVector:
		return value.Bits(^a.Bits())
	case value.KindInteger, value.KindReal:
		return value.Int(^a.Int())
	}
	return value.NaN()
}

func eq(a, b value.Value) value.Value { return value.Bool(value.Matches(a, b)) }

func ne(a, b value.Value) value.Value { return value.Bool(!value.Matches(a, b)) }

func compareWith(pred func(c int) bool) func(a, b value.Value) value.Value {
	return func(a, b value.Value) value.Value {
		c, ok := value.Compare(a, b)
		return value.Bool(ok && pred(c))
	}
}

// memberOf scans set for x, stopping at the first match. String members with
// wildcards are matched as patterns.
func memberOf(x value.Value, set []value.Value) bool {
	for _, member := range set {
		if value.Matches(x, member) {
			return true
		}
	}
	return false
}

// contains implements the right-hand side forms of in: a set literal (whose
// marker is on top of its members), a range, a string or a single value.
// It returns the index of the left operand on the stack.
func contains(m *Machine, op *Op) (int, bool) {
	top := m.stack[m.sp]
	if top.Is(value.KindSet) {
		n := top.Count()
		base := m.sp - n - 1
		return base, memberOf(m.stack[base], m.stack[base+1:m.sp])
	}
	base := m.sp - 1
	x := m.stack[base]
	switch top.Kind() {
	case value.KindRange:
		lo, hi := top.Range()
		f := x.Real()
		return base, x.IsNumeric() && f >= lo && f < hi
	case value.KindString:
		if s, ok := stringOf(x); ok {
			return base, strings.Contains(top.Str(), s)
		}
		return base, value.Matches(x, top)
	}
	return base, value.Matches(x, top)
}

func evalIn(m *Machine, op *Op) {
	base, ok := contains(m, op)
	m.stack[base] = value.Bool(ok)
	m.sp = base
}

func evalNotIn(m *Machine, op *Op) {
	base, ok := contains(m, op)
	m.stack[base] = value.Bool(!ok)
	m.sp = base
}
