package graphexpr

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/config"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/expr"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/lexer"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/memory"
)

// Sentinel errors for evaluator construction.
var (
	// ErrNilGraph indicates an evaluator was requested without a graph.
	ErrNilGraph = errors.New("graph cannot be nil")

	// ErrEmptyExpression indicates the expression text was blank.
	ErrEmptyExpression = errors.New("empty expression")

	// ErrNameNotFound indicates a named expression is not in the graph's cache.
	ErrNameNotFound = errors.New("named expression not found")
)

// Sentinel errors for evaluator use.
var (
	// ErrDiscarded indicates the evaluator was used after Discard.
	ErrDiscarded = errors.New("evaluator discarded")

	// ErrResourceExhausted indicates a memory tape larger than the configured cap.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// CompileError wraps a failure to compile an expression.
type CompileError struct {
	// Source is the expression text.
	Source string
	// Err is a *lexer.Error, *expr.SyntaxError, *expr.ArityError or
	// ErrEmptyExpression.
	Err error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %q: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies errors returned by this package.
type ErrorKind int

const (
	// KindUnknown is any error not produced by graphexpr.
	KindUnknown ErrorKind = iota
	// KindLexical is a tokenization failure.
	KindLexical
	// KindSyntax is an invalid token sequence or unknown identifier.
	KindSyntax
	// KindArity is a function called with the wrong number of arguments.
	KindArity
	// KindResource is a memory request above the configured cap.
	KindResource
	// KindUsage is a misuse of the API, such as a nil graph, a discarded
	// evaluator or an invalid configuration.
	KindUsage
)

var kindNames = [...]string{
	KindUnknown:  "unknown",
	KindLexical:  "lexical",
	KindSyntax:   "syntax",
	KindArity:    "arity",
	KindResource: "resource",
	KindUsage:    "usage",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Classify returns the kind of err. Arity errors are compile-time errors
// like syntax errors but keep their own kind.
func Classify(err error) ErrorKind {
	var (
		lexErr    *lexer.Error
		syntaxErr *expr.SyntaxError
		arityErr  *expr.ArityError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &lexErr):
		return KindLexical
	case errors.As(err, &arityErr):
		return KindArity
	case errors.As(err, &syntaxErr), errors.Is(err, ErrEmptyExpression):
		return KindSyntax
	case errors.Is(err, ErrResourceExhausted), errors.Is(err, memory.ErrOrder):
		return KindResource
	case errors.Is(err, ErrNilGraph), errors.Is(err, ErrDiscarded), errors.Is(err, ErrNameNotFound),
		errors.Is(err, config.ErrInvalid):
		return KindUsage
	}
	return KindUnknown
}
