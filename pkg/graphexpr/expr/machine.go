package expr

import (
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

// Machine executes a Program against a Context.
//
// The value stack is sized from the program's MaxDepth, so no op checks
// bounds at run time. A Machine is not safe for concurrent use; Clone one
// per goroutine.
type Machine struct {
	prog  *Program
	ctx   *Context
	stack []value.Value
	sp    int
	pc    int
	regs  []value.Value
	valid []bool
}

// NewMachine creates a machine for p and takes a reference to it.
func NewMachine(p *Program, ctx *Context) *Machine {
	p.Incref()
	return &Machine{
		prog:  p,
		ctx:   ctx,
		stack: make([]value.Value, 1+p.MaxDepth+1),
		regs:  make([]value.Value, p.WorkRegs),
		valid: make([]bool, p.WorkRegs),
	}
}

// Program returns the program being executed.
func (m *Machine) Program() *Program { return m.prog }

// Context returns the machine's context.
func (m *Machine) Context() *Context { return m.ctx }

// Clone returns a machine sharing the program with fresh runtime buffers
// bound to ctx.
func (m *Machine) Clone(ctx *Context) *Machine {
	return NewMachine(m.prog, ctx)
}

// Release drops the machine's program reference.
func (m *Machine) Release() int64 {
	if m.prog == nil {
		return 0
	}
	n := m.prog.Decref()
	m.prog = nil
	m.ctx.ReleaseScope()
	return n
}

// Run evaluates the program once and returns the top of the stack.
// A released machine or a done budget yields null.
func (m *Machine) Run() value.Value {
	if m.prog == nil {
		return value.None()
	}
	if b := m.ctx.Budget; b != nil && b.Err() != nil {
		return value.None()
	}

	m.sp = 0
	m.stack[0] = value.Init()
	clear(m.valid)
	m.ctx.ReleaseScope()

	ops := m.prog.ops
	for m.pc = 0; ; {
		op := &ops[m.pc]
		m.pc++
		if op.eval == nil {
			break
		}
		op.eval(m, op)
	}

	if m.sp < 1 {
		return value.None()
	}
	out := m.stack[m.sp]
	clear(m.stack[1 : m.sp+1])
	return out
}

// Op adapters. Each reads its arguments at and below the stack pointer and
// writes the result in place.

func nullary(f func(m *Machine) value.Value) evalFunc {
	return func(m *Machine, _ *Op) {
		m.sp++
		m.stack[m.sp] = f(m)
	}
}

func unary(f func(a value.Value) value.Value) evalFunc {
	return func(m *Machine, _ *Op) {
		m.stack[m.sp] = f(m.stack[m.sp])
	}
}

func unaryM(f func(m *Machine, a value.Value) value.Value) evalFunc {
	return func(m *Machine, _ *Op) {
		m.stack[m.sp] = f(m, m.stack[m.sp])
	}
}

func binary(f func(a, b value.Value) value.Value) evalFunc {
	return func(m *Machine, _ *Op) {
		m.sp--
		m.stack[m.sp] = f(m.stack[m.sp], m.stack[m.sp+1])
	}
}

func binaryM(f func(m *Machine, a, b value.Value) value.Value) evalFunc {
	return func(m *Machine, _ *Op) {
		m.sp--
		m.stack[m.sp] = f(m, m.stack[m.sp], m.stack[m.sp+1])
	}
}

func ternary(f func(a, b, c value.Value) value.Value) evalFunc {
	return func(m *Machine, _ *Op) {
		m.sp -= 2
		m.stack[m.sp] = f(m.stack[m.sp], m.stack[m.sp+1], m.stack[m.sp+2])
	}
}

// variadic passes the op's arguments as a slice. With no arguments the
// result is pushed.
func variadic(f func(m *Machine, args []value.Value) value.Value) evalFunc {
	return func(m *Machine, op *Op) {
		if op.argc == 0 {
			m.sp++
			m.stack[m.sp] = f(m, nil)
			return
		}
		base := m.sp - op.argc + 1
		m.stack[base] = f(m, m.stack[base:m.sp+1])
		m.sp = base
	}
}

func evalLiteral(m *Machine, op *Op) {
	m.sp++
	m.stack[m.sp] = op.arg
}

func evalCondJump(m *Machine, op *Op) {
	c := m.stack[m.sp]
	m.sp--
	if !c.Truthy() {
		m.pc = op.jump
	}
}

func evalJump(m *Machine, op *Op) {
	m.pc = op.jump
}

func evalAndSkip(m *Machine, op *Op) {
	if !m.stack[m.sp].Truthy() {
		m.stack[m.sp] = value.Int(0)
		m.pc = op.jump
		return
	}
	m.sp--
}

func evalOrSkip(m *Machine, op *Op) {
	if m.stack[m.sp].Truthy() {
		m.stack[m.sp] = value.Int(1)
		m.pc = op.jump
		return
	}
	m.sp--
}

func toBool(a value.Value) value.Value { return value.Bool(a.Truthy()) }

// pushCached pushes the work register of op when it already holds this
// evaluation's result.
func (m *Machine) pushCached(op *Op) bool {
	if !m.valid[op.reg] {
		return false
	}
	m.sp++
	m.stack[m.sp] = m.regs[op.reg]
	return true
}

func (m *Machine) pushAndCache(op *Op, v value.Value) {
	m.regs[op.reg] = v
	m.valid[op.reg] = true
	m.sp++
	m.stack[m.sp] = v
}

func evalProperty(m *Machine, op *Op) {
	if m.pushCached(op) {
		return
	}
	v := m.ctx.DefProp
	if vx := m.ctx.entity(op.entity); vx != nil {
		if p, ok := vx.Property(op.key); ok {
			v = value.FromAny(p)
		}
	}
	m.pushAndCache(op, v)
}

func evalInSet(m *Machine, op *Op) {
	m.stack[m.sp] = value.Bool(memberOf(m.stack[m.sp], op.set))
}

func evalNotInSet(m *Machine, op *Op) {
	m.stack[m.sp] = value.Bool(!memberOf(m.stack[m.sp], op.set))
}
