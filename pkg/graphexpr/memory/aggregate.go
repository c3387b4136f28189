package memory

import (
	"cmp"
	"math"
	"slices"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

// Sum adds the numeric slots of [a, b]. The result is an Integer when every
// numeric slot is an Integer, otherwise a Real. Other slots are skipped.
func (m *Memory) Sum(a, b int64) value.Value {
	lo, hi, ok := m.span(a, b)
	if !ok {
		return value.Int(0)
	}
	var isum int64
	var fsum float64
	hasReal := false
	for i := lo; i <= hi; i++ {
		v := m.data[i]
		switch v.Kind() {
		case value.KindInteger, value.KindBitVector:
			isum += v.Int()
		case value.KindReal, value.KindKeyVal:
			hasReal = true
			fsum += v.Real()
		}
	}
	if hasReal {
		return value.Real(fsum + float64(isum))
	}
	return value.Int(isum)
}

// Mean returns the arithmetic mean of the numeric slots of [a, b], or NaN
// when there are none.
func (m *Memory) Mean(a, b int64) value.Value {
	n, sum, _ := m.moments(a, b)
	if n == 0 {
		return value.NaN()
	}
	return value.Real(sum / float64(n))
}

// Stdev returns the population standard deviation of the numeric slots of
// [a, b], or NaN when there are none.
func (m *Memory) Stdev(a, b int64) value.Value {
	n, sum, sumsq := m.moments(a, b)
	if n == 0 {
		return value.NaN()
	}
	mean := sum / float64(n)
	variance := sumsq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return value.Real(math.Sqrt(variance))
}

func (m *Memory) moments(a, b int64) (n int, sum, sumsq float64) {
	lo, hi, ok := m.span(a, b)
	if !ok {
		return 0, 0, 0
	}
	for i := lo; i <= hi; i++ {
		k := value.SortKey(m.data[i])
		if math.IsNaN(k) {
			continue
		}
		n++
		sum += k
		sumsq += k * k
	}
	return n, sum, sumsq
}

// Min returns the smallest numeric slot of [a, b], or null when there is none.
func (m *Memory) Min(a, b int64) value.Value {
	return m.extreme(a, b, func(x, y float64) bool { return x < y })
}

// Max returns the largest numeric slot of [a, b], or null when there is none.
func (m *Memory) Max(a, b int64) value.Value {
	return m.extreme(a, b, func(x, y float64) bool { return x > y })
}

func (m *Memory) extreme(a, b int64, better func(x, y float64) bool) value.Value {
	lo, hi, ok := m.span(a, b)
	if !ok {
		return value.None()
	}
	best := value.None()
	bestKey := math.NaN()
	for i := lo; i <= hi; i++ {
		k := value.SortKey(m.data[i])
		if math.IsNaN(k) {
			continue
		}
		if math.IsNaN(bestKey) || better(k, bestKey) {
			best, bestKey = m.data[i], k
		}
	}
	return best
}

// Sort orders [a, b] ascending by sort key and returns the slot count.
// Slots without a numeric key sort last.
func (m *Memory) Sort(a, b int64) int {
	return m.sortRange(a, b, false)
}

// SortReverse orders [a, b] descending by sort key and returns the slot
// count. Slots without a numeric key still sort last.
func (m *Memory) SortReverse(a, b int64) int {
	return m.sortRange(a, b, true)
}

func (m *Memory) sortRange(a, b int64, desc bool) int {
	lo, hi, ok := m.span(a, b)
	if !ok {
		return 0
	}
	s := m.data[lo : hi+1]
	slices.SortStableFunc(s, func(x, y value.Value) int {
		kx, ky := value.SortKey(x), value.SortKey(y)
		switch {
		case math.IsNaN(kx) || math.IsNaN(ky):
			return cmp.Compare(b2i(math.IsNaN(kx)), b2i(math.IsNaN(ky)))
		case desc:
			return cmp.Compare(ky, kx)
		default:
			return cmp.Compare(kx, ky)
		}
	})
	return len(s)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Reverse reverses [a, b] in place and returns the slot count.
func (m *Memory) Reverse(a, b int64) int {
	lo, hi, ok := m.span(a, b)
	if !ok {
		return 0
	}
	for i, j := lo, hi; i < j; i, j = i+1, j-1 {
		m.data[i], m.data[j] = m.data[j], m.data[i]
	}
	return int(hi - lo + 1)
}
