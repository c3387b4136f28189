package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/expr"
)

func compile(t *testing.T, src string) *expr.Program {
	t.Helper()
	p, err := expr.Compile(src)
	require.NoError(t, err)
	return p
}

func TestKeyOf(t *testing.T) {
	assert.Equal(t, KeyOf("score"), KeyOf("score"))
	assert.NotEqual(t, KeyOf("score"), KeyOf("Score"))
}

func TestDefineAndLookup(t *testing.T) {
	c := New("g")
	assert.Equal(t, "g", c.Graph())

	p := compile(t, "1 + 1")
	e, replaced := c.Define("two", p)
	assert.False(t, replaced)
	assert.Equal(t, 1, e.Version)
	assert.Equal(t, int64(1), p.Refs())

	got, ok := c.Lookup("two")
	require.True(t, ok)
	assert.Same(t, p, got.Program)
	assert.Equal(t, "two", got.Name)
	assert.True(t, c.Has("two"))

	_, ok = c.Lookup("three")
	assert.False(t, ok)
}

func TestRedefineDropsOldReference(t *testing.T) {
	c := New("g")
	old := compile(t, "1")
	c.Define("x", old)

	p := compile(t, "2")
	e, replaced := c.Define("x", p)
	assert.True(t, replaced)
	assert.Equal(t, 2, e.Version)
	assert.Equal(t, int64(0), old.Refs())
	assert.Equal(t, int64(1), p.Refs())
	assert.Equal(t, 1, c.Len())
}

func TestForgetAndClear(t *testing.T) {
	c := New("g")
	a, b := compile(t, "1"), compile(t, "2")
	c.Define("a", a)
	c.Define("b", b)
	assert.Equal(t, []string{"a", "b"}, c.Names())

	assert.True(t, c.Forget("a"))
	assert.False(t, c.Forget("a"))
	assert.Equal(t, int64(0), a.Refs())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), b.Refs())
}

func TestResolverInlinesNames(t *testing.T) {
	c := New("g")
	c.Define("base", compile(t, "20 + 1"))

	p, err := expr.Compile("base * 2", expr.WithResolver(c))
	require.NoError(t, err)
	m := expr.NewMachine(p, expr.NewContext(nil, 1))
	defer m.Release()
	assert.Equal(t, int64(42), m.Run().Int())

	_, ok := c.Resolve("missing")
	assert.False(t, ok)
}

func TestRange(t *testing.T) {
	c := New("g")
	for i := 0; i < 5; i++ {
		c.Define(fmt.Sprintf("p%d", i), compile(t, "1"))
	}

	seen := 0
	c.Range(func(e *Entry) bool {
		c.Forget(e.Name)
		seen++
		return true
	})
	assert.Equal(t, 5, seen)
	assert.Equal(t, 0, c.Len())

	c.Define("a", compile(t, "1"))
	c.Define("b", compile(t, "1"))
	seen = 0
	c.Range(func(*Entry) bool {
		seen++
		return false
	})
	assert.Equal(t, 1, seen)
}

func TestConcurrentDefineAndResolve(t *testing.T) {
	c := New("g")
	p := compile(t, "1")

	var wg sync.WaitGroup
	var hits atomic.Int64
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				name := fmt.Sprintf("n%d", i%10)
				if w%2 == 0 {
					c.Define(name, p)
				} else if _, ok := c.Resolve(name); ok {
					hits.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 10, c.Len())
	assert.Equal(t, int64(10), p.Refs(), "one reference per live entry")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry[string]()
	var created atomic.Int64
	factory := func() *Cache {
		created.Add(1)
		return New("g")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.GetOrCreate("g", factory)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), created.Load())
	assert.Equal(t, 1, r.Len())

	c, ok := r.Get("g")
	require.True(t, ok)
	p := compile(t, "1")
	c.Define("x", p)

	keys := 0
	r.Range(func(string, *Cache) bool {
		keys++
		return true
	})
	assert.Equal(t, 1, keys)

	assert.True(t, r.Drop("g"))
	assert.False(t, r.Drop("g"))
	assert.Equal(t, int64(0), p.Refs())
	_, ok = r.Get("g")
	assert.False(t, ok)
}
