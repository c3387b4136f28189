package expr

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/lexer"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

// Resolver looks up named programs defined by earlier compiles, typically a
// graph-scoped program cache.
type Resolver interface {
	Resolve(name string) (*Program, bool)
}

// CompileOption configures Compile.
type CompileOption func(*compiler)

// WithTable compiles against t instead of the default table.
func WithTable(t *Table) CompileOption {
	return func(c *compiler) { c.table = t }
}

// WithResolver lets identifiers refer to previously named programs.
func WithResolver(r Resolver) CompileOption {
	return func(c *compiler) { c.resolver = r }
}

// state is what the compiler accepts next.
type state uint8

const (
	expectOperand state = iota
	expectInfix
	// expectCloseParen follows "f(": an operand or ")".
	expectCloseParen
	// expectCloseBrace follows "{": an operand or "}".
	expectCloseBrace
)

type pendKind uint8

const (
	pendOp pendKind = iota
	pendAnd
	pendOr
	pendTernary
	pendAssign
	pendGroup
	pendCall
	pendBrace
	pendSubscript
)

// pending is an entry of the operator stack.
type pending struct {
	kind  pendKind
	desc  *Descriptor
	tok   lexer.Token
	prec  int
	assoc Assoc
	// count is the number of separators seen by a call, brace or subscript.
	count int
	// jump is the op to patch when the entry is applied.
	jump  int
	phase int

	// Assignment capture.
	name     string
	start    int
	srcStart int
	idents   int
	pass     int
}

func (p *pending) barrier() bool {
	return p.kind >= pendGroup
}

// operand tracks what a compiled subexpression leaves on the stack.
type operand struct {
	literal bool
	lit     value.Value
	set     bool
	folded  bool
	members []value.Value
	n       int
	tok     lexer.Token
}

type compiler struct {
	table    *Table
	resolver Resolver

	src   string
	toks  []lexer.Token
	i     int
	state state

	ops      []Op
	stack    []pending
	operands []operand

	names   map[string]*Program
	defined []*Program
	idents  int
	pass    int
}

// Compile translates src into a Program. Lexical errors are returned as
// *lexer.Error, grammar errors as *SyntaxError and argument count errors as
// *ArityError. No partial program is returned on failure.
func Compile(src string, opts ...CompileOption) (*Program, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	c := &compiler{
		table: DefaultTable(),
		src:   src,
		toks:  toks,
		names: make(map[string]*Program),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c.compile()
}

func (c *compiler) compile() (*Program, error) {
	for {
		tok := c.toks[c.i]
		var err error
		if c.state == expectInfix {
			if tok.Kind == lexer.EOF {
				return c.finish()
			}
			err = c.infix(tok)
		} else {
			err = c.operand(tok)
		}
		if err != nil {
			return nil, err
		}
		c.i++
	}
}

func (c *compiler) errorf(tok lexer.Token, format string, args ...any) error {
	return &SyntaxError{Pos: tok.Pos, Token: tok.Text, Msg: fmt.Sprintf(format, args...)}
}

func (c *compiler) peek(n int) lexer.Token {
	if c.i+n < len(c.toks) {
		return c.toks[c.i+n]
	}
	return c.toks[len(c.toks)-1]
}

func (c *compiler) top() *pending {
	if len(c.stack) == 0 {
		return nil
	}
	return &c.stack[len(c.stack)-1]
}

func (c *compiler) pushPending(p pending) {
	c.stack = append(c.stack, p)
}

func (c *compiler) popPending() pending {
	p := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return p
}

// operand handles a token where an operand must start.
func (c *compiler) operand(tok lexer.Token) error {
	switch tok.Kind {
	case lexer.EOF:
		if len(c.ops) == 0 && len(c.stack) == 0 {
			return c.errorf(tok, "empty expression")
		}
		return c.errorf(tok, "unexpected end of input, expected operand")
	case lexer.Int:
		if tok.MinMagnitude() && !c.negatedLiteral() {
			return c.errorf(tok, "integer literal %s out of range", tok.Text)
		}
		c.literal(value.Int(tok.Int), tok)
		return nil
	case lexer.Real:
		c.literal(value.Real(tok.Real), tok)
		return nil
	case lexer.String:
		c.literal(value.Str(tok.Str), tok)
		return nil
	case lexer.Ident:
		return c.identifier(tok)
	}

	switch tok.Text {
	case "(":
		c.pushPending(pending{kind: pendGroup, tok: tok})
		c.state = expectOperand
		return nil
	case "{":
		c.pushPending(pending{kind: pendBrace, tok: tok})
		c.state = expectCloseBrace
		return nil
	case ")":
		if c.state == expectCloseParen {
			return c.closeCall(c.popPending(), 0)
		}
	case "}":
		if c.state == expectCloseBrace {
			return c.closeSet(c.popPending(), 0)
		}
	case ":":
		if top := c.top(); top != nil && top.kind == pendSubscript {
			c.literal(value.None(), tok)
			return c.colon(tok)
		}
	case "]":
		if top := c.top(); top != nil && top.kind == pendSubscript && top.count > 0 {
			c.literal(value.None(), tok)
			return c.closeSubscript(tok)
		}
		if top := c.top(); top != nil && top.kind == pendSubscript {
			return c.errorf(tok, "empty subscript")
		}
	default:
		if d, ok := c.table.Prefix(tok.Text); ok {
			if d.eval == nil {
				c.pass++
			} else {
				c.pushPending(pending{kind: pendOp, desc: d, tok: tok, prec: d.Prec, assoc: d.Assoc})
			}
			c.state = expectOperand
			return nil
		}
	}
	return c.errorf(tok, "unexpected %s, expected operand", tok)
}

// negatedLiteral reports whether the operand at the current token folds
// into a pending unary minus.
func (c *compiler) negatedLiteral() bool {
	top := c.top()
	if top == nil || top.kind != pendOp || top.desc.Class != ClassPrefix || top.desc.Token != "-" {
		return false
	}
	next := c.peek(1)
	return next.Kind != lexer.Op || (next.Text != "**" && next.Text != "[")
}

func (c *compiler) literal(v value.Value, tok lexer.Token) {
	c.ops = append(c.ops, Op{desc: descLiteral, eval: evalLiteral, arg: v, pos: tok.Pos})
	c.operands = append(c.operands, operand{literal: true, lit: v, tok: tok})
	c.state = expectInfix
}

// push emits an op that takes no stack arguments.
func (c *compiler) push(op Op, tok lexer.Token) {
	op.eval = op.desc.eval
	op.pos = tok.Pos
	c.ops = append(c.ops, op)
	c.operands = append(c.operands, operand{tok: tok})
	c.state = expectInfix
}

// identifier resolves a name in operand position.
func (c *compiler) identifier(tok lexer.Token) error {
	name := tok.Text
	next := c.peek(1)

	if next.Is(":=") {
		if c.reserved(name) {
			return c.errorf(tok, "cannot assign to builtin %q", name)
		}
		c.i++
		c.pushPending(pending{
			kind:     pendAssign,
			tok:      tok,
			prec:     PrecAssign,
			assoc:    AssocRight,
			name:     name,
			start:    len(c.ops),
			srcStart: next.Pos.Offset + len(next.Text),
			idents:   c.idents,
			pass:     c.pass,
		})
		c.state = expectOperand
		return nil
	}

	if next.Is("(") {
		d, ok := c.table.Func(name)
		if !ok {
			return c.errorf(tok, "unknown function %q", name)
		}
		c.i++
		c.pushPending(pending{kind: pendCall, desc: d, tok: tok})
		c.state = expectCloseParen
		return nil
	}

	c.idents++

	if e, attr, ok := parseEntity(name); ok {
		return c.entity(tok, e, attr)
	}
	if d, ok := c.table.Symbol(name); ok {
		c.push(Op{desc: d}, tok)
		return nil
	}
	if v, ok := c.table.Constant(name); ok {
		c.literal(v, tok)
		return nil
	}
	if p, ok := c.names[name]; ok {
		c.inline(p, tok)
		return nil
	}
	if c.resolver != nil {
		if p, ok := c.resolver.Resolve(name); ok {
			c.inline(p, tok)
			return nil
		}
	}
	return c.errorf(tok, "unknown identifier %q", name)
}

func (c *compiler) reserved(name string) bool {
	if _, _, ok := parseEntity(name); ok {
		return true
	}
	if _, ok := c.table.Func(name); ok {
		return true
	}
	if _, ok := c.table.Symbol(name); ok {
		return true
	}
	_, ok := c.table.Constant(name)
	return ok
}

// parseEntity splits entity references: "vertex" and "." name this vertex,
// "prev" the tail and "next" the head; "prev.arc.x" and "next.arc.x" are arc
// attributes.
func parseEntity(name string) (Entity, string, bool) {
	switch name {
	case "vertex", ".":
		return EntityThis, "", true
	case "next":
		return EntityHead, "", true
	case "prev":
		return EntityTail, "", true
	}
	prefixes := []struct {
		prefix string
		entity Entity
	}{
		{"next.arc.", EntityExit},
		{"prev.arc.", EntityArrive},
		{"vertex.", EntityThis},
		{"next.", EntityHead},
		{"prev.", EntityTail},
		{".", EntityThis},
	}
	for _, p := range prefixes {
		if attr, ok := strings.CutPrefix(name, p.prefix); ok && attr != "" {
			return p.entity, attr, true
		}
	}
	return EntityNone, "", false
}

func (c *compiler) entity(tok lexer.Token, e Entity, attr string) error {
	if e == EntityArrive || e == EntityExit {
		d, ok := c.table.arcAt[attr]
		if !ok {
			return c.errorf(tok, "unknown arc attribute %q", attr)
		}
		c.push(Op{desc: d, entity: e, key: attr}, tok)
		return nil
	}
	if attr != "" {
		d, ok := c.table.vertexAt[attr]
		if !ok {
			return c.errorf(tok, "unknown vertex attribute %q", attr)
		}
		c.push(Op{desc: d, entity: e, key: attr}, tok)
		return nil
	}

	// entity['key'] compiles to one cached property lookup.
	if c.peek(1).Is("[") && c.peek(2).Kind == lexer.String && c.peek(3).Is("]") {
		key := c.peek(2).Str
		c.i += 3
		c.push(Op{desc: descProperty, entity: e, key: key}, tok)
		return nil
	}
	c.push(Op{desc: c.table.entities[e], entity: e}, tok)
	return nil
}

// inline copies the ops of a named program, relocating its jumps.
func (c *compiler) inline(p *Program, tok lexer.Token) {
	off := len(c.ops)
	for _, op := range p.body() {
		switch op.desc.flow {
		case flowCondJump, flowJump, flowSkip:
			op.jump += off
		}
		c.ops = append(c.ops, op)
	}
	c.operands = append(c.operands, operand{tok: tok})
	c.state = expectInfix
}

// infix handles a token after a complete operand.
func (c *compiler) infix(tok lexer.Token) error {
	if tok.Kind != lexer.Op {
		return c.errorf(tok, "unexpected %s, expected operator", tok)
	}

	switch tok.Text {
	case ")":
		return c.closeParen(tok)
	case "}":
		return c.closeBrace(tok)
	case "]":
		return c.closeSubscript(tok)
	case "[":
		c.pushPending(pending{kind: pendSubscript, tok: tok})
		c.state = expectOperand
		return nil
	case ":":
		return c.colon(tok)
	case ",":
		if err := c.unwind(); err != nil {
			return err
		}
		if top := c.top(); top != nil {
			switch top.kind {
			case pendCall, pendBrace:
				top.count++
				c.state = expectOperand
				return nil
			case pendSubscript:
				return c.errorf(tok, "unexpected ',' in subscript")
			}
		}
	case "?":
		if err := c.popWhile(PrecTernary, AssocRight); err != nil {
			return err
		}
		if err := c.consume(1); err != nil {
			return err
		}
		c.ops = append(c.ops, Op{desc: descCondJump, eval: evalCondJump, pos: tok.Pos})
		c.pushPending(pending{kind: pendTernary, tok: tok, prec: PrecTernary, assoc: AssocRight, phase: 1, jump: len(c.ops) - 1})
		c.state = expectOperand
		return nil
	case "&&", "||":
		kind, prec, d := pendAnd, PrecAnd, descAndSkip
		if tok.Text == "||" {
			kind, prec, d = pendOr, PrecOr, descOrSkip
		}
		if err := c.popWhile(prec, AssocLeft); err != nil {
			return err
		}
		if err := c.checkOperands(1, tok); err != nil {
			return err
		}
		c.ops = append(c.ops, Op{desc: d, eval: d.eval, pos: tok.Pos})
		c.pushPending(pending{kind: kind, tok: tok, prec: prec, jump: len(c.ops) - 1})
		c.state = expectOperand
		return nil
	case ":=":
		return c.errorf(tok, "assignment target must be a name")
	}

	d, ok := c.table.Infix(tok.Text)
	if !ok || d.eval == nil {
		return c.errorf(tok, "unexpected %s, expected operator", tok)
	}
	if err := c.popWhile(d.Prec, d.Assoc); err != nil {
		return err
	}
	c.pushPending(pending{kind: pendOp, desc: d, tok: tok, prec: d.Prec, assoc: d.Assoc})
	c.state = expectOperand
	return nil
}

// popWhile applies pending operators that bind at least as tightly as an
// incoming operator of precedence prec.
func (c *compiler) popWhile(prec int, assoc Assoc) error {
	for {
		top := c.top()
		if top == nil || top.barrier() {
			return nil
		}
		if top.prec > prec || (top.prec == prec && assoc == AssocLeft) {
			if err := c.apply(c.popPending()); err != nil {
				return err
			}
			continue
		}
		return nil
	}
}

// unwind applies every pending operator down to the nearest grouping.
func (c *compiler) unwind() error {
	for {
		top := c.top()
		if top == nil || top.barrier() {
			return nil
		}
		if err := c.apply(c.popPending()); err != nil {
			return err
		}
	}
}

func (c *compiler) colon(tok lexer.Token) error {
	for {
		top := c.top()
		if top == nil || top.barrier() || (top.kind == pendTernary && top.phase == 1) {
			break
		}
		if err := c.apply(c.popPending()); err != nil {
			return err
		}
	}
	top := c.top()
	switch {
	case top != nil && top.kind == pendTernary:
		if err := c.consume(1); err != nil {
			return err
		}
		c.ops = append(c.ops, Op{desc: descJump, eval: evalJump, pos: tok.Pos})
		c.ops[top.jump].jump = len(c.ops)
		top.jump = len(c.ops) - 1
		top.phase = 2
		c.state = expectOperand
		return nil
	case top != nil && top.kind == pendSubscript:
		if top.count > 0 {
			return c.errorf(tok, "too many ':' in subscript")
		}
		top.count++
		c.state = expectOperand
		return nil
	}
	return c.errorf(tok, "unexpected ':'")
}

func (c *compiler) closeParen(tok lexer.Token) error {
	if err := c.unwind(); err != nil {
		return err
	}
	top := c.top()
	if top == nil {
		return c.errorf(tok, "unexpected ')'")
	}
	switch top.kind {
	case pendGroup:
		c.popPending()
		c.state = expectInfix
		return nil
	case pendCall:
		p := c.popPending()
		return c.closeCall(p, p.count+1)
	}
	return c.errorf(tok, "unexpected ')', unclosed %s", top.tok)
}

func (c *compiler) closeCall(p pending, args int) error {
	d := p.desc
	if !d.Arity(args) {
		return &ArityError{Pos: p.tok.Pos, Func: d.Token, Got: args, Min: d.MinArgs, Max: d.MaxArgs}
	}
	op := Op{desc: d, eval: d.eval, argc: args, pos: p.tok.Pos}

	if d.Token == "mcull" {
		last := c.operands[len(c.operands)-1]
		if !last.literal || !last.lit.Is(value.KindInteger) || last.lit.Int() <= 0 {
			return c.errorf(last.tok, "mcull capacity must be a positive integer literal")
		}
		c.ops = c.ops[:len(c.ops)-1]
		c.operands = c.operands[:len(c.operands)-1]
		op.arg = last.lit
		op.argc--
	}
	if err := c.emit(op, p.tok); err != nil {
		return err
	}
	c.state = expectInfix
	return nil
}

func (c *compiler) closeBrace(tok lexer.Token) error {
	if err := c.unwind(); err != nil {
		return err
	}
	top := c.top()
	if top == nil || top.kind != pendBrace {
		if top == nil {
			return c.errorf(tok, "unexpected '}'")
		}
		return c.errorf(tok, "unexpected '}', unclosed %s", top.tok)
	}
	p := c.popPending()
	return c.closeSet(p, p.count+1)
}

// closeSet turns the last n operands into a set literal. Sets of literals
// fold into the membership op; others leave their members on the stack
// under a Set marker.
func (c *compiler) closeSet(p pending, n int) error {
	members := c.operands[len(c.operands)-n:]
	for _, m := range members {
		if m.set {
			return c.errorf(m.tok, "nested set literal")
		}
	}
	folded := true
	for k, m := range members {
		op := &c.ops[len(c.ops)-n+k]
		if !m.literal || op.desc != descLiteral {
			folded = false
		}
	}

	set := operand{set: true, n: n, tok: p.tok}
	if folded {
		set.folded = true
		set.members = make([]value.Value, n)
		for k, m := range members {
			set.members[k] = m.lit
		}
		c.ops = c.ops[:len(c.ops)-n]
	} else {
		c.ops = append(c.ops, Op{desc: descSet, eval: evalLiteral, arg: value.Set(n), pos: p.tok.Pos})
	}
	c.operands = append(c.operands[:len(c.operands)-n], set)
	c.state = expectInfix
	return nil
}

func (c *compiler) closeSubscript(tok lexer.Token) error {
	if err := c.unwind(); err != nil {
		return err
	}
	top := c.top()
	if top == nil || top.kind != pendSubscript {
		if top == nil {
			return c.errorf(tok, "unexpected ']'")
		}
		return c.errorf(tok, "unexpected ']', unclosed %s", top.tok)
	}
	p := c.popPending()
	d := descSubscript
	if p.count > 0 {
		d = descSlice
	}
	if err := c.emit(Op{desc: d, eval: d.eval, argc: 2 + p.count}, p.tok); err != nil {
		return err
	}
	c.state = expectInfix
	return nil
}

// consume pops n operands that must not be set literals.
func (c *compiler) consume(n int) error {
	if err := c.checkOperands(n, lexer.Token{}); err != nil {
		return err
	}
	c.operands = c.operands[:len(c.operands)-n]
	return nil
}

func (c *compiler) checkOperands(n int, tok lexer.Token) error {
	if len(c.operands) < n {
		return c.errorf(tok, "missing operand")
	}
	for _, o := range c.operands[len(c.operands)-n:] {
		if o.set {
			return c.errorf(o.tok, "set literal is only valid as the right operand of in or notin")
		}
	}
	return nil
}

// emit appends an op consuming op.argc operands and producing one.
func (c *compiler) emit(op Op, tok lexer.Token) error {
	if err := c.consume(op.argc); err != nil {
		return err
	}
	op.pos = tok.Pos
	c.ops = append(c.ops, op)
	c.operands = append(c.operands, operand{tok: tok})
	return nil
}

// apply completes a pending entry, emitting its ops.
func (c *compiler) apply(p pending) error {
	switch p.kind {
	case pendOp:
		return c.applyOp(p)

	case pendAnd, pendOr:
		if err := c.consume(2); err != nil {
			return err
		}
		c.ops = append(c.ops, Op{desc: descToBool, eval: descToBool.eval, argc: 1, pos: p.tok.Pos})
		c.ops[p.jump].jump = len(c.ops)
		c.operands = append(c.operands, operand{tok: p.tok})
		return nil

	case pendTernary:
		if p.phase == 1 {
			return c.errorf(p.tok, "missing ':' in conditional expression")
		}
		if err := c.consume(1); err != nil {
			return err
		}
		c.ops[p.jump].jump = len(c.ops)
		c.operands = append(c.operands, operand{tok: p.tok})
		return nil

	case pendAssign:
		return c.capture(p)
	}
	return c.errorf(p.tok, "unclosed %s", p.tok)
}

func (c *compiler) applyOp(p pending) error {
	d := p.desc
	if d.Class == ClassPrefix {
		// A folded set leaves no ops behind.
		if err := c.checkOperands(1, p.tok); err != nil {
			return err
		}
		top := &c.operands[len(c.operands)-1]
		last := &c.ops[len(c.ops)-1]
		if d.Token == "-" && top.literal && top.lit.IsNumeric() && last.desc == descLiteral {
			// Fold negative numeric literals so they stay literals.
			last.arg = neg(top.lit)
			top.lit = last.arg
			return nil
		}
		return c.emit(Op{desc: d, eval: d.eval, argc: 1}, p.tok)
	}

	if d.Token == "in" || d.Token == "notin" {
		right := c.operands[len(c.operands)-1]
		if right.set {
			if left := c.operands[len(c.operands)-2]; left.set {
				return c.errorf(left.tok, "set literal is only valid as the right operand of in or notin")
			}
			c.operands = c.operands[:len(c.operands)-2]
			op := Op{desc: d, eval: d.eval, argc: right.n + 2, pos: p.tok.Pos}
			if right.folded {
				op = Op{desc: descInSet, eval: evalInSet, argc: 1, set: right.members, pos: p.tok.Pos}
				if d.Token == "notin" {
					op.desc, op.eval = descNotInSet, evalNotInSet
				}
			}
			c.ops = append(c.ops, op)
			c.operands = append(c.operands, operand{tok: p.tok})
			return nil
		}
	}
	return c.emit(Op{desc: d, eval: d.eval, argc: 2}, p.tok)
}

// capture binds the ops compiled since the assignment started to a name.
func (c *compiler) capture(p pending) error {
	if top := c.operands[len(c.operands)-1]; top.set {
		return c.errorf(top.tok, "cannot bind a set literal to %q", p.name)
	}
	body := c.ops[p.start:]
	ops := make([]Op, len(body), len(body)+1)
	copy(ops, body)
	for i := range ops {
		switch ops[i].desc.flow {
		case flowCondJump, flowJump, flowSkip:
			ops[i].jump -= p.start
		}
	}
	ops = append(ops, Op{desc: descHalt})

	end := len(c.src)
	if c.i < len(c.toks) {
		end = c.toks[c.i].Pos.Offset
	}
	prog := &Program{
		ops:         ops,
		Name:        p.name,
		Source:      strings.TrimSpace(c.src[p.srcStart:end]),
		Identifiers: c.idents - p.idents,
		PassThrough: c.pass - p.pass,
	}
	analyze(prog)

	if _, redefined := c.names[p.name]; redefined {
		for k, d := range c.defined {
			if d.Name == p.name {
				c.defined = append(c.defined[:k], c.defined[k+1:]...)
				break
			}
		}
	}
	c.names[p.name] = prog
	c.defined = append(c.defined, prog)
	return nil
}

func (c *compiler) finish() (*Program, error) {
	for len(c.stack) > 0 {
		if err := c.apply(c.popPending()); err != nil {
			return nil, err
		}
	}
	if err := c.checkOperands(1, c.toks[len(c.toks)-1]); err != nil {
		return nil, err
	}
	ops := append(c.ops, Op{desc: descHalt})
	prog := &Program{
		ops:         ops,
		Source:      c.src,
		Identifiers: c.idents,
		PassThrough: c.pass,
		Defined:     c.defined,
	}
	analyze(prog)
	return prog, nil
}
