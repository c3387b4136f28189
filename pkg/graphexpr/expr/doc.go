/*
Package expr compiles and runs graph traversal expressions.

# Overview

An expression is compiled once into a Program of ops in reverse Polish
order and then run by a Machine any number of times, typically once per
vertex or arc visited during a traversal. The compiler computes the exact
stack depth of the program, so the machine allocates its stack once and
never checks bounds while running.

# Expression Syntax

	<expr>     := <operand> | <prefix> <expr> | <expr> <infix> <expr>
	           | <expr> '?' <expr> ':' <expr>
	           | <name> ':=' <expr>
	           | <expr> '[' <expr> ']' | <expr> '[' [<expr>] ':' [<expr>] ']'
	<operand>  := number | 'string' | constant | symbol | entity | attribute
	           | <func> '(' [<expr> {',' <expr>}] ')'
	           | '(' <expr> ')' | '{' [<expr> {',' <expr>}] '}'

Set literals are only valid on the right of in and notin. A set of
literals is folded into the membership op.

# Operators

From loosest to tightest:

	, ;              sequence, yields the right operand
	:=               bind a named program
	? :              conditional
	||               logical or
	&&               logical and
	|  ^  &          bitwise
	== !=            equality, with * and ? wildcards in strings
	< <= > >=        ordering
	<< >>            shifts
	+ -              additive
	* / %            multiplicative
	in notin         membership in a set, range or string
	- ! ~ +          prefix
	**               power, right associative

&& and || short-circuit and yield 1 or 0.

# Graph Entities

	vertex, .        the vertex being evaluated
	prev, next       the tail and head vertices
	.deg, next.type  vertex attributes
	next.arc.value   attributes of the arc to next (prev.arc for the arc in)
	vertex['key']    vertex property

Attributes and properties are read once per run and cached.

# Memory

Memory functions operate on the Context's memory tape and return null when
the context has none. Registers R1 to R4 are the addresses -1 to -4.

# Concurrency

Programs are immutable and shared by reference count. A Machine and its
Context belong to one goroutine; use Machine.Clone with a forked Context
for each worker.
*/
package expr
