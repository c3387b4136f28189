// Package lexer tokenizes expression source text.
//
// The token sequence is finite and restartable: Reset rewinds to the start
// of the source. Comments (// and nestable /* */) are stripped. The first
// lexical error halts tokenization and is returned by every later call.
package lexer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind classifies a token.
type Kind int

// Token kinds.
const (
	EOF Kind = iota
	Int
	Real
	String
	Ident
	Op
)

var kindNames = [...]string{
	EOF:    "end of input",
	Int:    "integer",
	Real:   "real",
	String: "string",
	Ident:  "identifier",
	Op:     "operator",
}

// String returns a readable kind name.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Position is a location in source text. Line and Column are 1-based.
type Position struct {
	Line   int
	Column int
	Offset int
}

// String formats the position as line:column.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is one lexical unit.
type Token struct {
	Kind Kind
	// Text is the source text of the token.
	Text string
	Pos  Position

	// Int is set for Int tokens.
	Int int64
	// Real is set for Real tokens.
	Real float64
	// Str is the decoded payload of String tokens.
	Str string
	// Bytes marks a b'...' byte string.
	Bytes bool
}

// Is reports whether t is the operator or identifier text.
func (t Token) Is(text string) bool {
	return (t.Kind == Op || t.Kind == Ident) && t.Text == text
}

// String describes the token for error messages.
func (t Token) String() string {
	if t.Kind == EOF {
		return "end of input"
	}
	return strconv.Quote(t.Text)
}

// Error is a lexical error.
type Error struct {
	Pos Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("lexical error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// operators in longest-first order.
var operators = []string{
	":=", "**", "<<", ">>", "&&", "||", "==", "!=", "<=", ">=",
	"+", "-", "*", "/", "%", "<", ">", "!", "~", "&", "|", "^",
	"?", ":", ",", ";", "(", ")", "[", "]", "{", "}",
}

// wordOperators are identifiers that lex as operators.
var wordOperators = map[string]bool{
	"in":    true,
	"notin": true,
}

// Lexer produces tokens from source text.
type Lexer struct {
	src  string
	pos  int
	line int
	col  int
	err  *Error
}

// New creates a Lexer over src.
func New(src string) *Lexer {
	l := &Lexer{src: src}
	l.Reset()
	return l
}

// Reset rewinds the lexer to the start of the source.
func (l *Lexer) Reset() {
	l.pos = 0
	l.line = 1
	l.col = 1
	l.err = nil
}

// Source returns the text being tokenized.
func (l *Lexer) Source() string { return l.src }

// Next returns the next token. At the end of input it returns EOF tokens
// indefinitely.
func (l *Lexer) Next() (Token, error) {
	if l.err != nil {
		return Token{}, l.err
	}
	if err := l.skipSpaceAndComments(); err != nil {
		return Token{}, l.fail(err)
	}

	start := l.position()
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Pos: start}, nil
	}

	ch := l.src[l.pos]
	switch {
	case ch == '\'':
		return l.readString(start, false)
	case ch == 'b' && l.peek(1) == '\'':
		l.advance(1)
		return l.readString(start, true)
	case isDigit(ch) || (ch == '.' && isDigit(l.peek(1))):
		return l.readNumber(start)
	case isIdentStart(ch) || ch == '.':
		return l.readIdent(start)
	}

	for _, op := range operators {
		if strings.HasPrefix(l.src[l.pos:], op) {
			l.advance(len(op))
			return Token{Kind: Op, Text: op, Pos: start}, nil
		}
	}
	return Token{}, l.fail(&Error{Pos: start, Msg: fmt.Sprintf("unexpected character %q", rune(ch))})
}

// All returns the remaining tokens up to and including EOF.
func (l *Lexer) All() ([]Token, error) {
	var out []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == EOF {
			return out, nil
		}
	}
}

// Tokenize returns every token of src, ending with EOF.
func Tokenize(src string) ([]Token, error) {
	return New(src).All()
}

func (l *Lexer) fail(err *Error) *Error {
	l.err = err
	return err
}

func (l *Lexer) position() Position {
	return Position{Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *Lexer) peek(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *Lexer) skipSpaceAndComments() *Error {
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			l.advance(1)
		case ch == '/' && l.peek(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		case ch == '/' && l.peek(1) == '*':
			if err := l.skipBlockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) skipBlockComment() *Error {
	start := l.position()
	depth := 0
	for l.pos < len(l.src) {
		switch {
		case l.src[l.pos] == '/' && l.peek(1) == '*':
			depth++
			l.advance(2)
		case l.src[l.pos] == '*' && l.peek(1) == '/':
			depth--
			l.advance(2)
			if depth == 0 {
				return nil
			}
		default:
			l.advance(1)
		}
	}
	return &Error{Pos: start, Msg: "unterminated block comment"}
}

func (l *Lexer) readString(start Position, bytes bool) (Token, error) {
	l.advance(1) // opening quote
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, l.fail(&Error{Pos: start, Msg: "unterminated string"})
		}
		ch := l.src[l.pos]
		if ch == '\'' {
			l.advance(1)
			break
		}
		if ch != '\\' {
			b.WriteByte(ch)
			l.advance(1)
			continue
		}

		escPos := l.position()
		esc := l.peek(1)
		switch esc {
		case '\\', '\'':
			b.WriteByte(esc)
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case 'x':
			hi, lo := l.peek(2), l.peek(3)
			if !isHex(hi) || !isHex(lo) {
				return Token{}, l.fail(&Error{Pos: escPos, Msg: `invalid \x escape`})
			}
			b.WriteByte(unhex(hi)<<4 | unhex(lo))
			l.advance(2)
		case 0:
			return Token{}, l.fail(&Error{Pos: start, Msg: "unterminated string"})
		default:
			return Token{}, l.fail(&Error{Pos: escPos, Msg: fmt.Sprintf("invalid escape \\%c", esc)})
		}
		l.advance(2)
	}
	return Token{
		Kind:  String,
		Text:  l.src[start.Offset:l.pos],
		Str:   b.String(),
		Bytes: bytes,
		Pos:   start,
	}, nil
}

func (l *Lexer) readNumber(start Position) (Token, error) {
	if l.src[l.pos] == '0' && (l.peek(1) == 'x' || l.peek(1) == 'X') {
		l.advance(2)
		digits := l.pos
		for l.pos < len(l.src) && isHex(l.src[l.pos]) {
			l.advance(1)
		}
		text := l.src[start.Offset:l.pos]
		if l.pos == digits {
			return Token{}, l.fail(&Error{Pos: start, Msg: "hex literal has no digits"})
		}
		if l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			return Token{}, l.fail(&Error{Pos: start, Msg: fmt.Sprintf("invalid numeric literal %q", text+string(l.src[l.pos]))})
		}
		u, err := strconv.ParseUint(l.src[digits:l.pos], 16, 64)
		if err != nil {
			return Token{}, l.fail(&Error{Pos: start, Msg: fmt.Sprintf("hex literal %s out of range", text)})
		}
		return Token{Kind: Int, Text: text, Int: int64(u), Pos: start}, nil
	}

	isReal := false
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.advance(1)
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' && !isIdentStart(l.peek(1)) {
		isReal = true
		l.advance(1)
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.advance(1)
		}
	}
	if c := l.peek(0); c == 'e' || c == 'E' {
		n := 1
		if s := l.peek(1); s == '+' || s == '-' {
			n = 2
		}
		if isDigit(l.peek(n)) {
			isReal = true
			l.advance(n)
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.advance(1)
			}
		}
	}

	text := l.src[start.Offset:l.pos]
	if l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		return Token{}, l.fail(&Error{Pos: start, Msg: fmt.Sprintf("invalid numeric literal %q", text+string(l.src[l.pos]))})
	}
	if isReal {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Token{}, l.fail(&Error{Pos: start, Msg: fmt.Sprintf("invalid real literal %s", text)})
		}
		return Token{Kind: Real, Text: text, Real: f, Pos: start}, nil
	}
	u, err := strconv.ParseUint(text, 10, 64)
	if err != nil || u > 1<<63 {
		return Token{}, l.fail(&Error{Pos: start, Msg: fmt.Sprintf("integer literal %s out of range", text)})
	}
	return Token{Kind: Int, Text: text, Int: int64(u), Pos: start}, nil
}

// MinMagnitude reports whether t is the decimal literal 9223372036854775808,
// which lexes as math.MinInt64 and is only valid directly under unary minus.
func (t Token) MinMagnitude() bool {
	return t.Kind == Int && t.Int == math.MinInt64 &&
		!strings.HasPrefix(t.Text, "0x") && !strings.HasPrefix(t.Text, "0X")
}

// readIdent reads a possibly dotted identifier. A lone "." is an identifier
// naming the current vertex; ".c1" is an attribute of it.
func (l *Lexer) readIdent(start Position) (Token, error) {
	if l.src[l.pos] == '.' {
		l.advance(1)
	}
	for {
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.advance(1)
		}
		if l.pos < len(l.src) && l.src[l.pos] == '.' && isIdentStart(l.peek(1)) {
			l.advance(1)
			continue
		}
		break
	}
	text := l.src[start.Offset:l.pos]
	if wordOperators[text] {
		return Token{Kind: Op, Text: text, Pos: start}, nil
	}
	return Token{Kind: Ident, Text: text, Pos: start}, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
