// Package memory implements the addressable scratch tape used by memory
// builtins: registers, a push/pop region, range aggregates, array heaps and
// an integer set.
//
// Addresses are signed. Every address is reduced by the tape's index mask,
// so negative addresses count from the end: -1 is the last slot. The last
// four slots are the registers R1..R4 (addresses -1..-4). The push/pop region
// grows downward from address -5.
package memory

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

// Register addresses.
const (
	R1 int64 = -1 - iota
	R2
	R3
	R4
)

// Registers is the number of register slots at the end of the tape.
const Registers = 4

const (
	// MinOrder is the smallest tape order (log2 of the slot count).
	MinOrder = 3
	// MaxOrder is the largest tape order accepted by New.
	MaxOrder = 30
	// DefaultOrder gives a 64-slot tape.
	DefaultOrder = 6
)

// ErrOrder is returned for a tape order outside [MinOrder, MaxOrder].
var ErrOrder = errors.New("memory order out of range")

// Memory is a power-of-two tape of tagged values.
//
// Memory is not safe for concurrent mutation. Its reference count is atomic
// so holders on different goroutines may release it independently.
type Memory struct {
	data  []value.Value
	mask  int64
	order int
	sp    int64
	refs  atomic.Int64
	set   *roaring64.Bitmap
}

// New creates a tape of 1<<order slots with one reference.
func New(order int) (*Memory, error) {
	if order < MinOrder || order > MaxOrder {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrOrder, order, MinOrder, MaxOrder)
	}
	n := int64(1) << order
	m := &Memory{
		data:  make([]value.Value, n),
		mask:  n - 1,
		order: order,
		sp:    -Registers,
		set:   roaring64.New(),
	}
	m.refs.Store(1)
	return m, nil
}

// Copy returns an independent tape with the same contents and one reference.
func (m *Memory) Copy() *Memory {
	c := &Memory{
		data:  make([]value.Value, len(m.data)),
		mask:  m.mask,
		order: m.order,
		sp:    m.sp,
		set:   m.set.Clone(),
	}
	copy(c.data, m.data)
	for _, v := range c.data {
		if vec := v.Vector(); vec != nil {
			vec.Incref()
		}
	}
	c.refs.Store(1)
	return c
}

// Incref adds a reference and returns the new count.
func (m *Memory) Incref() int64 { return m.refs.Add(1) }

// Decref drops a reference and returns the new count. The last reference
// releases every vector held by the tape.
func (m *Memory) Decref() int64 {
	n := m.refs.Add(-1)
	if n == 0 {
		m.clear()
	}
	return n
}

// Refs returns the current reference count.
func (m *Memory) Refs() int64 { return m.refs.Load() }

// Len returns the number of slots.
func (m *Memory) Len() int { return len(m.data) }

// Order returns log2 of the slot count.
func (m *Memory) Order() int { return m.order }

// Index reduces an address to a slot index.
func (m *Memory) Index(addr int64) int64 { return addr & m.mask }

// Reset sets every slot to null, empties the push region and the integer set.
func (m *Memory) Reset() { m.clear() }

func (m *Memory) clear() {
	for i := range m.data {
		m.put(int64(i), value.None())
	}
	m.sp = -Registers
	m.set.Clear()
}

// put stores v at a reduced index and keeps vector reference counts balanced.
func (m *Memory) put(i int64, v value.Value) {
	if vec := v.Vector(); vec != nil {
		vec.Incref()
	}
	if old := m.data[i].Vector(); old != nil {
		old.Decref()
	}
	m.data[i] = v
}

// Load returns the value at addr.
func (m *Memory) Load(addr int64) value.Value {
	return m.data[addr&m.mask]
}

// Store writes v at addr and returns v.
func (m *Memory) Store(addr int64, v value.Value) value.Value {
	m.put(addr&m.mask, v)
	return v
}

// LoadIndirect loads from the address held at addr.
func (m *Memory) LoadIndirect(addr int64) value.Value {
	return m.Load(m.Load(addr).Int())
}

// StoreIndirect stores v at the address held at addr.
func (m *Memory) StoreIndirect(addr int64, v value.Value) value.Value {
	return m.Store(m.Load(addr).Int(), v)
}

// Move copies the value at src to dst and returns it.
func (m *Memory) Move(dst, src int64) value.Value {
	return m.Store(dst, m.Load(src))
}

// Exchange swaps the values at a and b and returns the new value at a.
func (m *Memory) Exchange(a, b int64) value.Value {
	ia, ib := a&m.mask, b&m.mask
	m.data[ia], m.data[ib] = m.data[ib], m.data[ia]
	return m.data[ia]
}

// Add adds delta to the numeric value at addr and returns the result.
// Non-numeric slots count as integer zero.
func (m *Memory) Add(addr int64, delta int64) value.Value {
	i := addr & m.mask
	cur := m.data[i]
	var next value.Value
	switch cur.Kind() {
	case value.KindReal:
		next = value.Real(cur.Real() + float64(delta))
	case value.KindBitVector:
		next = value.Bits(cur.Bits() + uint64(delta))
	case value.KindInteger:
		next = value.Int(cur.Int() + delta)
	default:
		next = value.Int(delta)
	}
	m.put(i, next)
	return next
}

// Write stores vals at consecutive addresses starting at addr and returns
// the number written.
func (m *Memory) Write(addr int64, vals ...value.Value) int {
	for k, v := range vals {
		m.put((addr+int64(k))&m.mask, v)
	}
	return len(vals)
}

// ReverseWrite stores vals in reverse order at consecutive addresses
// starting at addr, so the last value lands at addr.
func (m *Memory) ReverseWrite(addr int64, vals ...value.Value) int {
	n := len(vals)
	for k := range vals {
		m.put((addr+int64(k))&m.mask, vals[n-1-k])
	}
	return n
}

// Push pushes v onto the push region and reports whether there was room.
func (m *Memory) Push(v value.Value) bool {
	if m.Depth() >= len(m.data)-Registers {
		return false
	}
	m.sp--
	m.put(m.sp&m.mask, v)
	return true
}

// Pop removes and returns the top of the push region, or null when empty.
// A popped vector carries the slot's reference; the caller must release it.
func (m *Memory) Pop() value.Value {
	if m.sp >= -Registers {
		return value.None()
	}
	i := m.sp & m.mask
	v := m.data[i]
	m.data[i] = value.None()
	m.sp++
	return v
}

// Peek returns the value n slots below the top of the push region.
// Peek(0) is the current top. Out-of-region offsets yield null.
func (m *Memory) Peek(n int64) value.Value {
	if n < 0 || m.sp+n >= -Registers {
		return value.None()
	}
	return m.data[(m.sp+n)&m.mask]
}

// Depth returns the number of values in the push region.
func (m *Memory) Depth() int { return int(-Registers - m.sp) }

// span resolves an inclusive address range to slot indexes.
func (m *Memory) span(a, b int64) (lo, hi int64, ok bool) {
	lo, hi = a&m.mask, b&m.mask
	return lo, hi, lo <= hi
}

// Fill stores v in every slot of [a, b] and returns the count.
func (m *Memory) Fill(a, b int64, v value.Value) int {
	lo, hi, ok := m.span(a, b)
	if !ok {
		return 0
	}
	for i := lo; i <= hi; i++ {
		m.put(i, v)
	}
	return int(hi - lo + 1)
}

// Count returns the number of slots in [a, b] matching v, with wildcard
// strings honored.
func (m *Memory) Count(a, b int64, v value.Value) int {
	lo, hi, ok := m.span(a, b)
	if !ok {
		return 0
	}
	n := 0
	for i := lo; i <= hi; i++ {
		if value.Matches(m.data[i], v) {
			n++
		}
	}
	return n
}

// SetAdd adds x to the integer set and reports whether it was absent.
func (m *Memory) SetAdd(x int64) bool { return m.set.CheckedAdd(uint64(x)) }

// SetHas reports whether x is in the integer set.
func (m *Memory) SetHas(x int64) bool { return m.set.Contains(uint64(x)) }

// SetDel removes x from the integer set and reports whether it was present.
func (m *Memory) SetDel(x int64) bool { return m.set.CheckedRemove(uint64(x)) }

// SetLen returns the integer set cardinality.
func (m *Memory) SetLen() int { return int(m.set.GetCardinality()) }

// SetClear empties the integer set.
func (m *Memory) SetClear() { m.set.Clear() }
