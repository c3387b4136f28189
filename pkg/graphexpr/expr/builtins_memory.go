package expr

import (
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/memory"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

// memFunc wraps a memory builtin; without a tape every memory op yields null.
func memFunc(f func(mem *memory.Memory, args []value.Value) value.Value) evalFunc {
	return variadic(func(m *Machine, args []value.Value) value.Value {
		if m.ctx.Memory == nil {
			return value.None()
		}
		return f(m.ctx.Memory, args)
	})
}

func addr(v value.Value) int64 { return v.Int() }

func registerMemory(t *Table) {
	t.addMemFunc("load", 1, 1, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return mem.Load(addr(a[0]))
	}))
	t.addMemFunc("store", 2, 2, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return mem.Store(addr(a[0]), a[1])
	}))
	t.addMemFunc("storeif", 3, 3, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		if !a[0].Truthy() {
			return value.Int(0)
		}
		mem.Store(addr(a[1]), a[2])
		return value.Int(1)
	}))
	t.addMemFunc("loadi", 1, 1, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return mem.LoadIndirect(addr(a[0]))
	}))
	t.addMemFunc("storei", 2, 2, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return mem.StoreIndirect(addr(a[0]), a[1])
	}))
	t.addMemFunc("mov", 2, 2, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return mem.Move(addr(a[0]), addr(a[1]))
	}))
	t.addMemFunc("movif", 3, 3, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		if !a[0].Truthy() {
			return value.Int(0)
		}
		mem.Move(addr(a[1]), addr(a[2]))
		return value.Int(1)
	}))
	t.addMemFunc("xchg", 2, 2, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return mem.Exchange(addr(a[0]), addr(a[1]))
	}))
	t.addMemFunc("inc", 1, 2, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return mem.Add(addr(a[0]), step(a))
	}))
	t.addMemFunc("dec", 1, 2, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return mem.Add(addr(a[0]), -step(a))
	}))
	t.addMemFunc("write", 2, -1, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Int(int64(mem.Write(addr(a[0]), a[1:]...)))
	}))
	t.addMemFunc("rwrite", 2, -1, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Int(int64(mem.ReverseWrite(addr(a[0]), a[1:]...)))
	}))
	t.addMemFunc("mset", 3, 3, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Int(int64(mem.Fill(addr(a[0]), addr(a[1]), a[2])))
	}))
	t.addMemFunc("mcount", 3, 3, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Int(int64(mem.Count(addr(a[0]), addr(a[1]), a[2])))
	}))

	t.addMemFunc("push", 1, 1, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		if !mem.Push(a[0]) {
			return value.None()
		}
		return a[0]
	}))
	t.addMemFunc("pop", 0, 0, variadic(func(m *Machine, _ []value.Value) value.Value {
		if m.ctx.Memory == nil {
			return value.None()
		}
		v := m.ctx.Memory.Pop()
		m.ctx.adopt(v.Vector())
		return v
	}))
	t.addMemFunc("peek", 0, 1, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		var n int64
		if len(a) == 1 {
			n = a[0].Int()
		}
		return mem.Peek(n)
	}))

	ranges := map[string]func(mem *memory.Memory, lo, hi int64) value.Value{
		"msum":     (*memory.Memory).Sum,
		"mmean":    (*memory.Memory).Mean,
		"mstdev":   (*memory.Memory).Stdev,
		"mmin":     (*memory.Memory).Min,
		"mmax":     (*memory.Memory).Max,
		"msort":    countOf((*memory.Memory).Sort),
		"msortrev": countOf((*memory.Memory).SortReverse),
		"mreverse": countOf((*memory.Memory).Reverse),
	}
	for name, f := range ranges {
		t.addMemFunc(name, 2, 2, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
			return f(mem, addr(a[0]), addr(a[1]))
		}))
	}

	t.addMemFunc("mheapifymin", 2, 2, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Int(int64(mem.HeapifyMin(addr(a[0]), a[1].Int())))
	}))
	t.addMemFunc("mheapifymax", 2, 2, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Int(int64(mem.HeapifyMax(addr(a[0]), a[1].Int())))
	}))
	t.addMemFunc("mheappushmin", 3, 3, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Bool(mem.HeapPushMin(addr(a[0]), a[1].Int(), a[2]))
	}))
	t.addMemFunc("mheappushmax", 3, 3, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Bool(mem.HeapPushMax(addr(a[0]), a[1].Int(), a[2]))
	}))
	t.addMemFunc("mheapsiftmin", 3, 3, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Int(int64(mem.HeapSiftMin(addr(a[0]), a[1].Int(), a[2].Int())))
	}))
	t.addMemFunc("mheapsiftmax", 3, 3, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Int(int64(mem.HeapSiftMax(addr(a[0]), a[1].Int(), a[2].Int())))
	}))

	t.addMemFunc("setadd", 1, 1, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Bool(mem.SetAdd(a[0].Int()))
	}))
	t.addMemFunc("sethas", 1, 1, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Bool(mem.SetHas(a[0].Int()))
	}))
	t.addMemFunc("setdel", 1, 1, memFunc(func(mem *memory.Memory, a []value.Value) value.Value {
		return value.Bool(mem.SetDel(a[0].Int()))
	}))
	t.addMemFunc("setlen", 0, 0, memFunc(func(mem *memory.Memory, _ []value.Value) value.Value {
		return value.Int(int64(mem.SetLen()))
	}))
	t.addMemFunc("setclr", 0, 0, memFunc(func(mem *memory.Memory, _ []value.Value) value.Value {
		mem.SetClear()
		return value.Int(0)
	}))
}

func step(a []value.Value) int64 {
	if len(a) == 2 {
		return a[1].Int()
	}
	return 1
}

func countOf(f func(mem *memory.Memory, lo, hi int64) int) func(mem *memory.Memory, lo, hi int64) value.Value {
	return func(mem *memory.Memory, lo, hi int64) value.Value {
		return value.Int(int64(f(mem, lo, hi)))
	}
}
