// Package vector provides a reference-counted float32 similarity vector that
// satisfies graph.Vector, using vecgo's distance kernels.
package vector

import (
	"encoding/binary"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecgo/distance"
	"github.com/zeebo/xxh3"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
)

// Vector is an immutable float32 vector with an atomic reference count.
type Vector struct {
	refs  atomic.Int64
	elems []float32

	once sync.Once
	unit []float32 // L2-normalized copy, nil for the zero vector
	fp   uint64
}

// New copies elems into a vector holding one reference.
func New(elems []float32) *Vector {
	v := &Vector{elems: slices.Clone(elems)}
	v.refs.Store(1)
	return v
}

// Factory adapts New to graph.VectorFactory.
func Factory(elems []float32) graph.Vector { return New(elems) }

// Incref implements graph.Vector.
func (v *Vector) Incref() int64 { return v.refs.Add(1) }

// Decref implements graph.Vector.
func (v *Vector) Decref() int64 { return v.refs.Add(-1) }

// Refs returns the current reference count.
func (v *Vector) Refs() int64 { return v.refs.Load() }

// Len implements graph.Vector.
func (v *Vector) Len() int { return len(v.elems) }

// Elements implements graph.Vector. The slice must not be modified.
func (v *Vector) Elements() []float32 { return v.elems }

func (v *Vector) prepare() {
	v.once.Do(func() {
		if unit, ok := distance.NormalizeL2Copy(v.elems); ok {
			v.unit = unit
		}
		v.fp = fingerprint(v.elems)
	})
}

// Similarity implements graph.Vector as cosine similarity. Vectors of
// different length, or a zero vector, have similarity 0.
func (v *Vector) Similarity(other graph.Vector) float64 {
	if other == nil || other.Len() != v.Len() {
		return 0
	}
	v.prepare()
	if v.unit == nil {
		return 0
	}
	var unit []float32
	if o, ok := other.(*Vector); ok {
		o.prepare()
		unit = o.unit
	} else {
		unit, _ = distance.NormalizeL2Copy(other.Elements())
	}
	if unit == nil {
		return 0
	}
	return clamp(float64(distance.Dot(v.unit, unit)))
}

// Fingerprint implements graph.Vector with a 64-plane random-hyperplane hash.
func (v *Vector) Fingerprint() uint64 {
	v.prepare()
	return v.fp
}

// L2 returns the Euclidean distance between a and b, or NaN when their
// lengths differ.
func L2(a, b graph.Vector) float64 {
	if a == nil || b == nil || a.Len() != b.Len() {
		return math.NaN()
	}
	return math.Sqrt(float64(distance.SquaredL2(a.Elements(), b.Elements())))
}

// Dot returns the inner product of a and b, or NaN when their lengths differ.
func Dot(a, b graph.Vector) float64 {
	if a == nil || b == nil || a.Len() != b.Len() {
		return math.NaN()
	}
	return float64(distance.Dot(a.Elements(), b.Elements()))
}

// fingerprint sets bit p when elems lies on the positive side of hyperplane p.
// Hyperplane coordinates are ±1 taken from an xxh3 hash of (p, i), so
// fingerprints are stable across processes.
func fingerprint(elems []float32) uint64 {
	var fp uint64
	var buf [8]byte
	for p := 0; p < 64; p++ {
		var dot float64
		for i, x := range elems {
			binary.LittleEndian.PutUint32(buf[:4], uint32(p))
			binary.LittleEndian.PutUint32(buf[4:], uint32(i))
			if xxh3.Hash(buf[:])&1 == 1 {
				dot += float64(x)
			} else {
				dot -= float64(x)
			}
		}
		if dot > 0 {
			fp |= 1 << p
		}
	}
	return fp
}

func clamp(x float64) float64 {
	switch {
	case x > 1:
		return 1
	case x < -1:
		return -1
	}
	return x
}

var _ graph.Vector = (*Vector)(nil)
