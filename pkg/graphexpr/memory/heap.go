package memory

import (
	"math"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

// heap is an array heap over k slots of the tape starting at a slot index.
// less orders sort keys so that the top is the element for which less
// holds against every other.
type heap struct {
	m    *Memory
	base int64
	n    int64
	less func(x, y float64) bool
}

// Keys without a numeric value (null slots) rise to the top in both
// directions, so they are the first to be displaced by a push or sift.
func minOrder(x, y float64) bool { return topOrder(x, y, x < y) }
func maxOrder(x, y float64) bool { return topOrder(x, y, x > y) }

func topOrder(x, y float64, before bool) bool {
	if math.IsNaN(x) {
		return !math.IsNaN(y)
	}
	if math.IsNaN(y) {
		return false
	}
	return before
}

func (m *Memory) heap(a, k int64, less func(x, y float64) bool) heap {
	base := a & m.mask
	if k < 0 {
		k = 0
	}
	if limit := int64(len(m.data)) - base; k > limit {
		k = limit
	}
	return heap{m: m, base: base, n: k, less: less}
}

func (h heap) key(i int64) float64 { return value.SortKey(h.m.data[h.base+i]) }

func (h heap) swap(i, j int64) {
	d := h.m.data
	d[h.base+i], d[h.base+j] = d[h.base+j], d[h.base+i]
}

func (h heap) siftDown(i int64) {
	for {
		left := 2*i + 1
		if left >= h.n {
			return
		}
		child := left
		if right := left + 1; right < h.n && h.less(h.key(right), h.key(left)) {
			child = right
		}
		if !h.less(h.key(child), h.key(i)) {
			return
		}
		h.swap(i, child)
		i = child
	}
}

func (h heap) heapify() {
	for i := h.n/2 - 1; i >= 0; i-- {
		h.siftDown(i)
	}
}

// push replaces the top with v when the top orders before v, so a min-heap
// retains the k largest values seen.
func (h heap) push(v value.Value) bool {
	if h.n == 0 {
		return false
	}
	if !h.less(h.key(0), value.SortKey(v)) {
		return false
	}
	h.m.put(h.base, v)
	h.siftDown(0)
	return true
}

// HeapifyMin arranges A[a..a+k) as a min-heap and returns k.
func (m *Memory) HeapifyMin(a, k int64) int {
	h := m.heap(a, k, minOrder)
	h.heapify()
	return int(h.n)
}

// HeapifyMax arranges A[a..a+k) as a max-heap and returns k.
func (m *Memory) HeapifyMax(a, k int64) int {
	h := m.heap(a, k, maxOrder)
	h.heapify()
	return int(h.n)
}

// HeapPushMin offers v to the min-heap A[a..a+k). The top is replaced only
// when v is larger, so at most one element is displaced.
func (m *Memory) HeapPushMin(a, k int64, v value.Value) bool {
	return m.heap(a, k, minOrder).push(v)
}

// HeapPushMax offers v to the max-heap A[a..a+k). The top is replaced only
// when v is smaller.
func (m *Memory) HeapPushMax(a, k int64, v value.Value) bool {
	return m.heap(a, k, maxOrder).push(v)
}

// HeapSiftMin partitions A[a..a+n) so that A[a..a+k) holds its k smallest
// values, arranged as a max-heap. Displaced values move to the positions of
// the values that replaced them. It returns the number of swaps.
func (m *Memory) HeapSiftMin(a, k, n int64) int {
	return m.sift(a, k, n, maxOrder)
}

// HeapSiftMax partitions A[a..a+n) so that A[a..a+k) holds its k largest
// values, arranged as a min-heap.
func (m *Memory) HeapSiftMax(a, k, n int64) int {
	return m.sift(a, k, n, minOrder)
}

func (m *Memory) sift(a, k, n int64, less func(x, y float64) bool) int {
	all := m.heap(a, n, less)
	if k > all.n {
		k = all.n
	}
	h := m.heap(a, k, less)
	h.heapify()
	swaps := 0
	for i := h.n; h.n > 0 && i < all.n; i++ {
		if less(h.key(0), all.key(i)) {
			all.swap(0, i)
			h.siftDown(0)
			swaps++
		}
	}
	return swaps
}
