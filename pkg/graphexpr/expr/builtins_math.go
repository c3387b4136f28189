package expr

import (
	"math"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

func registerMath(t *Table) {
	preds := map[string]func(v value.Value) bool{
		"isnan":       func(v value.Value) bool { return v.IsNaN() },
		"isinf":       func(v value.Value) bool { return v.Is(value.KindReal) && math.IsInf(v.Real(), 0) },
		"isint":       func(v value.Value) bool { return v.Is(value.KindInteger) },
		"isreal":      func(v value.Value) bool { return v.Is(value.KindReal) },
		"isnum":       func(v value.Value) bool { return v.IsNumeric() },
		"isstr":       func(v value.Value) bool { return v.Is(value.KindString) },
		"isvector":    func(v value.Value) bool { return v.Is(value.KindVector) },
		"isbitvector": func(v value.Value) bool { return v.Is(value.KindBitVector) },
		"iskeyval":    func(v value.Value) bool { return v.Is(value.KindKeyVal) },
		"isvertex":    func(v value.Value) bool { return v.Is(value.KindVertex) || v.Is(value.KindVertexID) },
		"isnull":      func(v value.Value) bool { return v.IsNone() },
	}
	for name, pred := range preds {
		t.addFunc(name, 1, 1, unary(func(v value.Value) value.Value { return value.Bool(pred(v)) }))
	}

	reals := map[string]func(float64) float64{
		"sqrt":  math.Sqrt,
		"log":   math.Log,
		"log2":  math.Log2,
		"log10": math.Log10,
		"exp":   math.Exp,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"asin":  math.Asin,
		"acos":  math.Acos,
		"atan":  math.Atan,
		"sinh":  math.Sinh,
		"cosh":  math.Cosh,
		"tanh":  math.Tanh,
	}
	for name, f := range reals {
		t.addFunc(name, 1, 1, unary(realFunc(f)))
	}

	// Integer-preserving rounding functions.
	rounders := map[string]func(float64) float64{
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"round": math.Round,
		"trunc": math.Trunc,
	}
	for name, f := range rounders {
		t.addFunc(name, 1, 1, unary(roundFunc(f)))
	}
	t.addFunc("abs", 1, 1, unary(abs))
	t.addFunc("sign", 1, 1, unary(sign))

	t.addFunc("pow", 2, 2, binary(pow))
	t.addFunc("atan2", 2, 2, binary(func(y, x value.Value) value.Value {
		if !y.IsNumeric() || !x.IsNumeric() {
			return value.NaN()
		}
		return value.Real(math.Atan2(y.Real(), x.Real()))
	}))

	t.addFunc("min", 1, -1, variadic(func(_ *Machine, args []value.Value) value.Value { return extreme(args, -1) }))
	t.addFunc("max", 1, -1, variadic(func(_ *Machine, args []value.Value) value.Value { return extreme(args, 1) }))
	t.addFunc("sum", 0, -1, variadic(func(_ *Machine, args []value.Value) value.Value { return fold(args, value.Int(0), add) }))
	t.addFunc("prod", 0, -1, variadic(func(_ *Machine, args []value.Value) value.Value { return fold(args, value.Int(1), mul) }))
	t.addFunc("mean", 1, -1, variadic(mean))

	t.addFunc("int", 1, 1, unary(toInt))
	t.addFunc("real", 1, 1, unary(toReal))
	t.addFunc("bitvector", 1, 1, unary(func(v value.Value) value.Value {
		if v.IsNumeric() {
			return value.Bits(v.Bits())
		}
		return value.None()
	}))
	t.addFunc("keyval", 2, 2, binary(func(k, v value.Value) value.Value {
		return value.KeyVal(int32(k.Int()), v.Real())
	}))
	t.addFunc("asint", 1, 1, unary(asInt))
	t.addFunc("asreal", 1, 1, unary(asReal))
	t.addFunc("type", 1, 1, unary(func(v value.Value) value.Value { return value.Str(v.Kind().String()) }))
	t.addFunc("len", 1, 1, unary(func(v value.Value) value.Value { return value.Int(int64(v.Len())) }))
}

// realFunc lifts f to values. Non-numeric arguments pass through unchanged.
func realFunc(f func(float64) float64) func(value.Value) value.Value {
	return func(v value.Value) value.Value {
		if !v.IsNumeric() {
			return v
		}
		return value.Real(f(v.Real()))
	}
}

func roundFunc(f func(float64) float64) func(value.Value) value.Value {
	return func(v value.Value) value.Value {
		if v.Is(value.KindReal) {
			return value.Real(f(v.Real()))
		}
		return v
	}
}

func abs(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindInteger:
		if i := v.Int(); i < 0 {
			return value.Int(-i)
		}
	case value.KindReal:
		return value.Real(math.Abs(v.Real()))
	}
	return v
}

func sign(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindInteger, value.KindBitVector:
		switch i := v.Int(); {
		case i > 0:
			return value.Int(1)
		case i < 0:
			return value.Int(-1)
		}
		return value.Int(0)
	case value.KindReal:
		f := v.Real()
		switch {
		case f > 0:
			return value.Real(1)
		case f < 0:
			return value.Real(-1)
		}
		return v
	}
	return v
}

// extreme returns the smallest (dir < 0) or largest argument among those
// that order against each other.
func extreme(args []value.Value, dir int) value.Value {
	best := value.None()
	for _, a := range args {
		if a.IsNaN() {
			continue
		}
		if best.IsNone() {
			best = a
			continue
		}
		if c, ok := value.Compare(a, best); ok && c*dir > 0 {
			best = a
		}
	}
	return best
}

func fold(args []value.Value, acc value.Value, f func(a, b value.Value) value.Value) value.Value {
	for _, a := range args {
		acc = f(acc, a)
	}
	return acc
}

func mean(_ *Machine, args []value.Value) value.Value {
	sum := fold(args, value.Int(0), add)
	if !sum.IsNumeric() {
		return value.NaN()
	}
	return value.Real(sum.Real() / float64(len(args)))
}

func toInt(v value.Value) value.Value {
	switch {
	case v.IsNumeric(), v.Is(value.KindKeyVal):
		if v.IsNaN() {
			return v
		}
		return value.Int(v.Int())
	case v.Is(value.KindString):
		if n, ok := parseNumber(v.Str()); ok {
			return value.Int(n.Int())
		}
	}
	return value.None()
}

func toReal(v value.Value) value.Value {
	switch {
	case v.IsNumeric(), v.Is(value.KindKeyVal):
		return value.Real(v.Real())
	case v.Is(value.KindString):
		if n, ok := parseNumber(v.Str()); ok {
			return value.Real(n.Real())
		}
		return value.NaN()
	}
	return value.None()
}

// asInt reinterprets the bits of a real as an integer.
func asInt(v value.Value) value.Value {
	if v.Is(value.KindReal) {
		return value.Int(int64(math.Float64bits(v.Real())))
	}
	return v
}

// asReal reinterprets the bits of an integer as a real.
func asReal(v value.Value) value.Value {
	if v.Is(value.KindInteger) || v.Is(value.KindBitVector) {
		return value.Real(math.Float64frombits(v.Bits()))
	}
	return v
}
