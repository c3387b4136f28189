package lexer

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(t *testing.T, src string) []string {
	t.Helper()
	toks, err := Tokenize(src)
	require.NoError(t, err)
	out := make([]string, 0, len(toks))
	for _, tok := range toks {
		if tok.Kind == EOF {
			break
		}
		out = append(out, tok.Text)
	}
	return out
}

func TestTokenize_Operators(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"a:=b", []string{"a", ":=", "b"}},
		{"2**3**2", []string{"2", "**", "3", "**", "2"}},
		{"1<<2>>3", []string{"1", "<<", "2", ">>", "3"}},
		{"a&&b||c", []string{"a", "&&", "b", "||", "c"}},
		{"a==b!=c<=d>=e", []string{"a", "==", "b", "!=", "c", "<=", "d", ">=", "e"}},
		{"x notin {1}", []string{"x", "notin", "{", "1", "}"}},
		{"!~-+", []string{"!", "~", "-", "+"}},
		{"a?b:c;d,e", []string{"a", "?", "b", ":", "c", ";", "d", ",", "e"}},
		{"s[1:2]", []string{"s", "[", "1", ":", "2", "]"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, texts(t, tt.src))
		})
	}
}

func TestTokenize_Numbers(t *testing.T) {
	tests := []struct {
		src  string
		kind Kind
		i    int64
		f    float64
	}{
		{"42", Int, 42, 0},
		{"0x1F", Int, 31, 0},
		{"0xFFFFFFFFFFFFFFFF", Int, -1, 0},
		{"1.5e-3", Real, 0, 0.0015},
		{".5", Real, 0, 0.5},
		{"2.", Real, 0, 2},
		{"3E2", Real, 0, 300},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks, err := Tokenize(tt.src)
			require.NoError(t, err)
			require.Len(t, toks, 2)
			assert.Equal(t, tt.kind, toks[0].Kind)
			assert.Equal(t, tt.i, toks[0].Int)
			assert.Equal(t, tt.f, toks[0].Real)
		})
	}
}

func TestToken_MinMagnitude(t *testing.T) {
	toks, err := Tokenize("9223372036854775808 9223372036854775807 0x8000000000000000")
	require.NoError(t, err)
	require.Len(t, toks, 4)
	assert.True(t, toks[0].MinMagnitude())
	assert.Equal(t, int64(math.MinInt64), toks[0].Int)
	assert.False(t, toks[1].MinMagnitude())
	assert.False(t, toks[2].MinMagnitude(), "hex literals keep their bit pattern")
}

func TestTokenize_Strings(t *testing.T) {
	toks, err := Tokenize(`'a\'b\\c\n\t\r\0\x41' b'\xff\x00'`)
	require.NoError(t, err)
	require.Len(t, toks, 3)

	assert.Equal(t, String, toks[0].Kind)
	assert.Equal(t, "a'b\\c\n\t\r\x00A", toks[0].Str)
	assert.False(t, toks[0].Bytes)

	assert.Equal(t, String, toks[1].Kind)
	assert.Equal(t, "\xff\x00", toks[1].Str)
	assert.True(t, toks[1].Bytes)
}

func TestTokenize_Identifiers(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"vertex.id", []string{"vertex.id"}},
		{"next.arc.value", []string{"next.arc.value"}},
		{".c1 + .", []string{".c1", "+", "."}},
		{".['k']", []string{".", "[", "'k'", "]"}},
		{"index in x", []string{"index", "in", "x"}},
		{"M_INT|D_OUT", []string{"M_INT", "|", "D_OUT"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, texts(t, tt.src))
		})
	}

	toks, err := Tokenize("in notin inx")
	require.NoError(t, err)
	assert.Equal(t, Op, toks[0].Kind)
	assert.Equal(t, Op, toks[1].Kind)
	assert.Equal(t, Ident, toks[2].Kind)
}

func TestTokenize_Comments(t *testing.T) {
	assert.Equal(t, []string{"1", "+", "2"}, texts(t, "1 // one\n+ /* a /* nested */ comment */ 2"))
	assert.Empty(t, texts(t, "// nothing"))
}

func TestTokenize_Positions(t *testing.T) {
	toks, err := Tokenize("a +\n  bb")
	require.NoError(t, err)
	assert.Equal(t, Position{Line: 1, Column: 1, Offset: 0}, toks[0].Pos)
	assert.Equal(t, Position{Line: 1, Column: 3, Offset: 2}, toks[1].Pos)
	assert.Equal(t, Position{Line: 2, Column: 3, Offset: 6}, toks[2].Pos)
	assert.Equal(t, "2:3", toks[2].Pos.String())
}

func TestTokenize_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unterminated string", "'abc", "unterminated string"},
		{"unterminated escape", `'abc\`, "unterminated string"},
		{"bad escape", `'\q'`, `invalid escape \q`},
		{"bad hex escape", `'\xZ1'`, `invalid \x escape`},
		{"unterminated comment", "1 /* /* */", "unterminated block comment"},
		{"unknown character", "1 @ 2", `unexpected character '@'`},
		{"double quote", `"a"`, `unexpected character '"'`},
		{"number suffix", "12abc", "invalid numeric literal"},
		{"empty hex", "0x", "hex literal has no digits"},
		{"int overflow", "99999999999999999999", "out of range"},
		{"int past min magnitude", "9223372036854775809", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.src)
			require.Error(t, err)
			var lexErr *Error
			require.True(t, errors.As(err, &lexErr))
			assert.Contains(t, lexErr.Msg, tt.msg)
			assert.Contains(t, err.Error(), "lexical error at line 1")
		})
	}
}

func TestLexer_HaltsAndResets(t *testing.T) {
	l := New("1 @ 2")

	tok, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), tok.Int)

	_, err = l.Next()
	require.Error(t, err)
	_, again := l.Next()
	assert.Equal(t, err, again)

	l.Reset()
	tok, err = l.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", tok.Text)
}

func TestLexer_Restartable(t *testing.T) {
	l := New("a + b * 2")
	first, err := l.All()
	require.NoError(t, err)

	eof, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, EOF, eof.Kind)

	l.Reset()
	second, err := l.All()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "a + b * 2", l.Source())
}

func TestToken_Is(t *testing.T) {
	toks, err := Tokenize("in x 'in'")
	require.NoError(t, err)
	assert.True(t, toks[0].Is("in"))
	assert.True(t, toks[1].Is("x"))
	assert.False(t, toks[2].Is("in"))
	assert.Equal(t, "end of input", toks[3].String())
	assert.Equal(t, "operator", Op.String())
}
