/*
Package graphexpr evaluates compiled expressions while traversing a graph.

# Overview

An Engine compiles expression text into a program once and hands out
Evaluators that run it against each vertex or arc a traversal visits. The
language covers arithmetic, string and vector operations, vertex and arc
attributes, set membership, a scratch memory tape and top-K culling. See
package expr for the grammar and builtins.

# Basic Usage

	eng := graphexpr.NewEngine(graphexpr.WithLogger(logger))

	ev, err := eng.NewEvaluator(g, "next.arc.value > 0.5 && next.type == 'user'", nil)
	if err != nil {
	    return err // *graphexpr.CompileError
	}
	defer ev.Discard()

	ev.SetContext(nil, arriving, query, 0)
	for _, arc := range out {
	    if ev.EvalArc(arc).Truthy() {
	        // follow arc
	    }
	}

NewEvaluator on the package level uses a shared default engine.

# Named Expressions

An expression may bind subexpressions with name := expr. Every binding is
stored in the graph's cache and later expressions on the same graph may use
the name; its ops are inlined at compile time. An evaluator created from a
bare defined name shares the cached program instead of compiling:

	eng.Define(g, "hot", "vertex.ideg > 100 && vertex.tmm > graph.ts - 86400")
	ev, _ := eng.NewEvaluator(g, "hot", nil)

Redefining a name replaces the cache entry; evaluators holding the old
program keep using it.

# Lifecycle

An Evaluator moves through compiled, contextualized, evaluated and reset
states until Discard releases its program, memory tape and query vector.
After Discard, setters return ErrDiscarded and evaluations return null.

# Concurrency

An Engine and its caches are safe for concurrent use. An Evaluator is not;
Clone gives each goroutine its own stack, registers, cull heap and memory
copy while sharing the program. EvalParallel does this for a batch:

	results, err := eng.EvalParallel(ctx, ev, graphexpr.ArcItems(arcs), 8)

# Errors

Compile failures are *CompileError values wrapping a *lexer.Error,
*expr.SyntaxError or *expr.ArityError. Classify maps any returned error to
an ErrorKind. Type mismatches at run time never fail; they yield null, NaN
or zero depending on the operation.

# Configuration

Engine options can be loaded from YAML or JSON with package config:

	cfg, err := config.FromFile("graphexpr.yaml")
	eng := graphexpr.NewEngine(graphexpr.WithConfig(cfg))
	if err := eng.Err(); err != nil {
	    return err
	}

# Observability

WithMetrics and WithTracing record OpenTelemetry metrics and spans through
the global providers. Compiles are logged at Debug, rejected expressions at
Warn and redefined names at Info.
*/
package graphexpr
