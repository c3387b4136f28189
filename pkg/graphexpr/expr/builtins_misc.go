package expr

import (
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

func registerMisc(t *Table) {
	t.addFunc("hash", 1, 1, unary(func(v value.Value) value.Value { return value.Bits(value.Hash(v)) }))
	t.addFunc("random", 0, 0, variadic(func(m *Machine, _ []value.Value) value.Value {
		return value.Real(m.ctx.random().Float64())
	}))
	t.addFunc("randbits", 0, 0, variadic(func(m *Machine, _ []value.Value) value.Value {
		return value.Bits(m.ctx.random().Uint64())
	}))
	t.addFunc("randint", 2, 2, binaryM(randint))
	t.addFunc("range", 2, 2, binary(func(lo, hi value.Value) value.Value {
		if !lo.IsNumeric() || !hi.IsNumeric() {
			return value.None()
		}
		return value.RangeOf(lo.Real(), hi.Real())
	}))
	t.addFunc("do", 1, -1, variadic(func(_ *Machine, args []value.Value) value.Value {
		return args[len(args)-1]
	}))
	t.addFunc("ifnull", 2, 2, binary(func(a, b value.Value) value.Value {
		if a.IsNone() {
			return b
		}
		return a
	}))
}

// randint returns a uniform integer in [lo, hi].
func randint(m *Machine, lo, hi value.Value) value.Value {
	if !lo.IsNumeric() || !hi.IsNumeric() {
		return value.None()
	}
	a, b := lo.Int(), hi.Int()
	if a > b {
		a, b = b, a
	}
	span := uint64(b - a)
	if span == ^uint64(0) {
		return value.Int(int64(m.ctx.random().Uint64()))
	}
	return value.Int(a + int64(m.ctx.random().Uint64N(span+1)))
}
