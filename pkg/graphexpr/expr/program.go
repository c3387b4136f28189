package expr

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/lexer"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

// Op is one step of a compiled program.
type Op struct {
	desc   *Descriptor
	eval   evalFunc
	argc   int
	arg    value.Value
	key    string
	set    []value.Value
	jump   int
	reg    int
	entity Entity
	pos    lexer.Position
}

// Token returns the descriptor token of the op.
func (op *Op) Token() string { return op.desc.Token }

// Argc returns the number of stack values the op consumes.
func (op *Op) Argc() int { return op.argc }

// DerefCounts counts how often a program touches each graph entity.
// A zero count lets the caller skip the locking or traversal for it.
type DerefCounts struct {
	Tail int
	This int
	Head int
	Arc  int
}

// Program is a compiled expression. It is immutable and shared by reference
// count between machines.
type Program struct {
	ops []Op

	// PassThrough counts elided no-op operations such as unary plus.
	PassThrough int
	// MaxDepth is the exact maximum number of live stack values.
	MaxDepth int
	Deref    DerefCounts
	// Identifiers counts identifier operands in the source.
	Identifiers int
	// CullCap is the largest K of any mcull in the program.
	CullCap int
	// WorkRegs is the number of per-evaluation registers caching property
	// and attribute lookups.
	WorkRegs int
	// UsesMemory reports whether any op touches the memory tape.
	UsesMemory bool
	// Name is set for programs bound with name := expr.
	Name string
	// Strings holds the string literals of the program in order.
	Strings []string
	Source  string
	// Defined lists the named programs bound inside this one.
	Defined []*Program

	refs atomic.Int64
}

// Len returns the number of ops, including the final halt.
func (p *Program) Len() int { return len(p.ops) }

// Op returns the op at index i.
func (p *Program) Op(i int) *Op { return &p.ops[i] }

// Incref adds a reference and returns the new count.
func (p *Program) Incref() int64 { return p.refs.Add(1) }

// Decref drops a reference and returns the new count.
func (p *Program) Decref() int64 { return p.refs.Add(-1) }

// Refs returns the current reference count.
func (p *Program) Refs() int64 { return p.refs.Load() }

// body returns the ops without the final halt.
func (p *Program) body() []Op {
	if n := len(p.ops); n > 0 && p.ops[n-1].desc.flow == flowHalt {
		return p.ops[:n-1]
	}
	return p.ops
}

// Disassemble renders the program one op per line.
func (p *Program) Disassemble() string {
	var b strings.Builder
	if p.Name != "" {
		fmt.Fprintf(&b, "; %s\n", p.Name)
	}
	fmt.Fprintf(&b, "; depth=%d regs=%d cull=%d deref(tail=%d this=%d head=%d arc=%d) idents=%d passthrough=%d\n",
		p.MaxDepth, p.WorkRegs, p.CullCap, p.Deref.Tail, p.Deref.This, p.Deref.Head, p.Deref.Arc,
		p.Identifiers, p.PassThrough)
	for i := range p.ops {
		op := &p.ops[i]
		fmt.Fprintf(&b, "%04d  %-12s", i, op.desc.Token)
		switch {
		case op.desc == descLiteral || op.desc == descSet:
			fmt.Fprintf(&b, " %s", op.arg)
		case op.desc.flow == flowCondJump || op.desc.flow == flowJump || op.desc.flow == flowSkip:
			fmt.Fprintf(&b, " -> %04d", op.jump)
		case op.desc == descProperty:
			fmt.Fprintf(&b, " %s[%q] r%d", op.entity, op.key, op.reg)
		case op.desc.cached:
			fmt.Fprintf(&b, " %s.%s r%d", op.entity, op.key, op.reg)
		case op.desc == descInSet || op.desc == descNotInSet:
			parts := make([]string, len(op.set))
			for i, v := range op.set {
				parts[i] = v.String()
			}
			fmt.Fprintf(&b, " {%s}", strings.Join(parts, ", "))
		case op.entity != EntityNone && op.key != "":
			fmt.Fprintf(&b, " %s.%s", op.entity, op.key)
		case op.entity != EntityNone:
			fmt.Fprintf(&b, " %s", op.entity)
		case op.desc.Class == ClassCall || op.desc.Class == ClassInfix || op.desc.Class == ClassPrefix:
			fmt.Fprintf(&b, " argc=%d", op.argc)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// analyze derives the static properties of p from its ops: exact stack
// depth, dereference counts, work registers, cull capacity and literal strings.
func analyze(p *Program) {
	depth, maxDepth := 0, 0
	at := make(map[int]int)
	reachable := true
	regs := make(map[string]int)

	p.Deref = DerefCounts{}
	p.CullCap = 0
	p.UsesMemory = false
	p.Strings = p.Strings[:0]

	for i := range p.ops {
		op := &p.ops[i]
		if !reachable {
			depth = at[i]
			reachable = true
		}
		switch op.desc.flow {
		case flowCondJump:
			depth--
			at[op.jump] = depth
		case flowSkip:
			at[op.jump] = depth
			depth--
		case flowJump:
			at[op.jump] = depth
			reachable = false
		case flowHalt:
		default:
			depth += 1 - op.argc
		}
		if depth > maxDepth {
			maxDepth = depth
		}

		switch op.entity {
		case EntityTail:
			p.Deref.Tail++
		case EntityThis:
			p.Deref.This++
		case EntityHead:
			p.Deref.Head++
		case EntityArrive, EntityExit:
			p.Deref.Arc++
		}
		if op.desc.cached {
			k := op.entity.String() + "\x00" + op.desc.Token + "\x00" + op.key
			r, ok := regs[k]
			if !ok {
				r = len(regs)
				regs[k] = r
			}
			op.reg = r
		}
		if op.desc.Memory {
			p.UsesMemory = true
		}
		if op.desc.Token == "mcull" {
			if k := int(op.arg.Int()); k > p.CullCap {
				p.CullCap = k
			}
		}
		if op.desc == descLiteral && op.arg.Is(value.KindString) {
			p.Strings = append(p.Strings, op.arg.Str())
		}
		for _, v := range op.set {
			if v.Is(value.KindString) {
				p.Strings = append(p.Strings, v.Str())
			}
		}
	}
	p.MaxDepth = maxDepth
	p.WorkRegs = len(regs)
}
