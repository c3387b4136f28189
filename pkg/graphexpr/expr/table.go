package expr

import (
	"math"
	"sort"
	"sync"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/memory"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

// Class is the syntactic role of a descriptor.
type Class uint8

// Descriptor classes.
const (
	ClassInfix Class = iota
	ClassPrefix
	ClassCall
	ClassGroup
	ClassSubscript
	ClassAssign
	ClassSymbol
	ClassLiteral
	ClassSeparator
	ClassTernary
	ClassInternal
)

var classNames = [...]string{
	ClassInfix:     "infix",
	ClassPrefix:    "prefix",
	ClassCall:      "call",
	ClassGroup:     "group",
	ClassSubscript: "subscript",
	ClassAssign:    "assign",
	ClassSymbol:    "symbol",
	ClassLiteral:   "literal",
	ClassSeparator: "separator",
	ClassTernary:   "ternary",
	ClassInternal:  "internal",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "class?"
}

// Assoc is operator associativity.
type Assoc uint8

// Associativities.
const (
	AssocLeft Assoc = iota
	AssocRight
)

// Entity is the graph object a symbol dereferences.
type Entity uint8

// Entities.
const (
	EntityNone Entity = iota
	EntityTail
	EntityThis
	EntityHead
	EntityArrive
	EntityExit
)

var entityNames = [...]string{
	EntityNone:   "",
	EntityTail:   "prev",
	EntityThis:   "vertex",
	EntityHead:   "next",
	EntityArrive: "prev.arc",
	EntityExit:   "next.arc",
}

func (e Entity) String() string {
	if int(e) < len(entityNames) {
		return entityNames[e]
	}
	return "entity?"
}

// Precedence levels, lowest first.
const (
	PrecSequence = 1 + iota
	PrecAssign
	PrecTernary
	PrecOr
	PrecAnd
	PrecBitOr
	PrecBitXor
	PrecBitAnd
	PrecEquality
	PrecCompare
	PrecShift
	PrecAdditive
	PrecMultiplicative
	PrecMembership
	PrecUnary
	PrecPower
	PrecPostfix
	PrecOperand
)

// flow marks descriptors that move the instruction cursor.
type flow uint8

const (
	flowNone flow = iota
	flowCondJump
	flowSkip
	flowJump
	flowHalt
)

// evalFunc executes one op against the machine.
type evalFunc func(m *Machine, op *Op)

// Descriptor is the immutable definition of an operator, function, symbol or
// internal op.
type Descriptor struct {
	Token   string
	Prec    int
	Assoc   Assoc
	Class   Class
	MinArgs int
	// MaxArgs is -1 for variadic functions.
	MaxArgs int
	Entity  Entity
	// Memory marks builtins that read or write the memory tape.
	Memory bool

	flow flow
	eval evalFunc
	// cached ops own a work register valid for one evaluation.
	cached bool
}

// Arity reports whether n arguments satisfy the descriptor.
func (d *Descriptor) Arity(n int) bool {
	return n >= d.MinArgs && (d.MaxArgs < 0 || n <= d.MaxArgs)
}

// Table is the registry of every operator, function, symbol and constant the
// compiler recognizes. A Table is immutable once built and safe to share.
type Table struct {
	infix     map[string]*Descriptor
	prefix    map[string]*Descriptor
	calls     map[string]*Descriptor
	symbols   map[string]*Descriptor
	constants map[string]value.Value
	vertexAt  map[string]*Descriptor
	arcAt     map[string]*Descriptor
	entities  map[Entity]*Descriptor
}

var defaultTable = sync.OnceValue(newTable)

// DefaultTable returns the process-wide builtin table, building it on first use.
func DefaultTable() *Table { return defaultTable() }

// Infix returns the binary operator for tok.
func (t *Table) Infix(tok string) (*Descriptor, bool) {
	d, ok := t.infix[tok]
	return d, ok
}

// Prefix returns the unary operator for tok.
func (t *Table) Prefix(tok string) (*Descriptor, bool) {
	d, ok := t.prefix[tok]
	return d, ok
}

// Func returns the function named name.
func (t *Table) Func(name string) (*Descriptor, bool) {
	d, ok := t.calls[name]
	return d, ok
}

// Symbol returns the nullary symbol named name, such as graph.order.
func (t *Table) Symbol(name string) (*Descriptor, bool) {
	d, ok := t.symbols[name]
	return d, ok
}

// Constant returns the value of a named constant.
func (t *Table) Constant(name string) (value.Value, bool) {
	v, ok := t.constants[name]
	return v, ok
}

// Funcs returns the sorted function names.
func (t *Table) Funcs() []string { return sortedKeys(t.calls) }

// Symbols returns the sorted symbol, attribute and constant names.
func (t *Table) Symbols() []string {
	names := sortedKeys(t.symbols)
	for name := range t.constants {
		names = append(names, name)
	}
	for attr := range t.vertexAt {
		names = append(names, "vertex."+attr)
	}
	for attr := range t.arcAt {
		names = append(names, "next.arc."+attr)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of distinct builtins: operators, functions,
// symbols, attributes and constants.
func (t *Table) Len() int {
	return len(t.infix) + len(t.prefix) + len(t.calls) + len(t.symbols) +
		len(t.constants) + len(t.vertexAt) + len(t.arcAt) + len(t.entities)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Internal ops shared by every table.
var (
	descLiteral   = &Descriptor{Token: "lit", Class: ClassLiteral, eval: evalLiteral}
	descSet       = &Descriptor{Token: "set", Class: ClassInternal, eval: evalLiteral}
	descInSet     = &Descriptor{Token: "inset", Class: ClassInternal, eval: evalInSet}
	descNotInSet  = &Descriptor{Token: "notinset", Class: ClassInternal, eval: evalNotInSet}
	descCondJump  = &Descriptor{Token: "condjump", Class: ClassTernary, flow: flowCondJump, eval: evalCondJump}
	descJump      = &Descriptor{Token: "jump", Class: ClassTernary, flow: flowJump, eval: evalJump}
	descAndSkip   = &Descriptor{Token: "andskip", Class: ClassInternal, flow: flowSkip, eval: evalAndSkip}
	descOrSkip    = &Descriptor{Token: "orskip", Class: ClassInternal, flow: flowSkip, eval: evalOrSkip}
	descToBool    = &Descriptor{Token: "tobool", Class: ClassInternal, eval: unary(toBool)}
	descSubscript = &Descriptor{Token: "[]", Prec: PrecPostfix, Class: ClassSubscript, eval: binaryM(subscript)}
	descSlice     = &Descriptor{Token: "[:]", Prec: PrecPostfix, Class: ClassSubscript, eval: ternary(slice)}
	descProperty  = &Descriptor{Token: "prop", Class: ClassSymbol, eval: evalProperty, cached: true}
	descHalt      = &Descriptor{Token: "halt", Class: ClassInternal, flow: flowHalt}
)

func newTable() *Table {
	t := &Table{
		infix:     make(map[string]*Descriptor),
		prefix:    make(map[string]*Descriptor),
		calls:     make(map[string]*Descriptor),
		symbols:   make(map[string]*Descriptor),
		constants: make(map[string]value.Value),
		vertexAt:  make(map[string]*Descriptor),
		arcAt:     make(map[string]*Descriptor),
		entities:  make(map[Entity]*Descriptor),
	}
	registerOperators(t)
	registerMath(t)
	registerStrings(t)
	registerGraph(t)
	registerMemory(t)
	registerMisc(t)
	registerConstants(t)
	return t
}

func (t *Table) addInfix(tok string, prec int, assoc Assoc, eval evalFunc) {
	t.infix[tok] = &Descriptor{Token: tok, Prec: prec, Assoc: assoc, Class: ClassInfix, MinArgs: 2, MaxArgs: 2, eval: eval}
}

func (t *Table) addPrefix(tok string, eval evalFunc) {
	t.prefix[tok] = &Descriptor{Token: tok, Prec: PrecUnary, Assoc: AssocRight, Class: ClassPrefix, MinArgs: 1, MaxArgs: 1, eval: eval}
}

func (t *Table) addFunc(name string, minArgs, maxArgs int, eval evalFunc) *Descriptor {
	d := &Descriptor{Token: name, Prec: PrecPostfix, Class: ClassCall, MinArgs: minArgs, MaxArgs: maxArgs, eval: eval}
	t.calls[name] = d
	return d
}

func (t *Table) addMemFunc(name string, minArgs, maxArgs int, eval evalFunc) {
	t.addFunc(name, minArgs, maxArgs, eval).Memory = true
}

func (t *Table) addSymbol(name string, eval evalFunc) {
	t.symbols[name] = &Descriptor{Token: name, Prec: PrecOperand, Class: ClassSymbol, eval: eval}
}

func registerConstants(t *Table) {
	c := t.constants
	c["pi"] = value.Real(math.Pi)
	c["e"] = value.Real(math.E)
	c["nan"] = value.NaN()
	c["inf"] = value.Real(math.Inf(1))
	c["true"] = value.Int(1)
	c["false"] = value.Int(0)
	c["null"] = value.None()
	for _, d := range []graph.Direction{graph.DirAny, graph.DirIn, graph.DirOut, graph.DirBoth} {
		c[d.String()] = value.Int(int64(d))
	}
	for _, m := range graph.Modifiers() {
		c[m.String()] = value.Int(int64(m))
	}
	c["R1"] = value.Int(memory.R1)
	c["R2"] = value.Int(memory.R2)
	c["R3"] = value.Int(memory.R3)
	c["R4"] = value.Int(memory.R4)
}
