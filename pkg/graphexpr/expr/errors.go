package expr

import (
	"fmt"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/lexer"
)

// SyntaxError reports an invalid token sequence.
type SyntaxError struct {
	Pos lexer.Position
	// Token is the offending token text, empty at end of input.
	Token string
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// ArityError reports a function called with the wrong number of arguments.
type ArityError struct {
	Pos  lexer.Position
	Func string
	Got  int
	Min  int
	// Max is -1 for variadic functions.
	Max int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("arity error at line %d, column %d: %s() takes %s, got %d",
		e.Pos.Line, e.Pos.Column, e.Func, describeArity(e.Min, e.Max), e.Got)
}

func describeArity(lo, hi int) string {
	plural := func(n int) string {
		if n == 1 {
			return "1 argument"
		}
		return fmt.Sprintf("%d arguments", n)
	}
	switch {
	case hi < 0:
		return "at least " + plural(lo)
	case lo == hi:
		return plural(lo)
	default:
		return fmt.Sprintf("%d to %d arguments", lo, hi)
	}
}
