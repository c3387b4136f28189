package graphexpr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/expr"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/memory"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/observability"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

// State is the lifecycle state of an Evaluator.
type State uint8

// Evaluator states.
const (
	StateUninitialized State = iota
	StateCompiled
	StateContextualized
	StateEvaluated
	StateReset
	StateDiscarded
)

var stateNames = [...]string{
	StateUninitialized:  "uninitialized",
	StateCompiled:       "compiled",
	StateContextualized: "contextualized",
	StateEvaluated:      "evaluated",
	StateReset:          "reset",
	StateDiscarded:      "discarded",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Evaluator runs one compiled expression repeatedly against changing
// traversal context.
//
// An Evaluator is not safe for concurrent use. Clone one per goroutine, or
// use Engine.EvalParallel.
type Evaluator struct {
	id      string
	engine  *Engine
	graph   graph.Graph
	ctx     *expr.Context
	machine *expr.Machine
	// shared is set when the memory tape came from OwnMemory.
	shared bool
	state  State
	evals  int64
	logger *slog.Logger
}

func (e *Engine) newEvaluator(g graph.Graph, p *expr.Program, vec graph.Vector) (*Evaluator, error) {
	ctx := expr.NewContext(g, e.nextSeed())
	ctx.Clock = e.clock
	if p.UsesMemory {
		mem, err := e.newMemory()
		if err != nil {
			return nil, err
		}
		ctx.Memory = mem
	}
	if p.CullCap > 0 {
		ctx.Cull = expr.NewCullHeap(p.CullCap)
	}
	if vec != nil {
		vec.Incref()
		ctx.Vector = vec
	}

	ev := &Evaluator{
		id:      uuid.New().String(),
		engine:  e,
		graph:   g,
		ctx:     ctx,
		machine: expr.NewMachine(p, ctx),
		state:   StateCompiled,
	}
	ev.logger = observability.EnrichLogger(e.logger, ev.id, g.Name())
	return ev, nil
}

func (e *Engine) newMemory() (*memory.Memory, error) {
	order := e.settings.MemoryOrder
	if order > e.settings.MaxMemoryOrder {
		return nil, fmt.Errorf("%w: memory order %d above cap %d",
			ErrResourceExhausted, order, e.settings.MaxMemoryOrder)
	}
	mem, err := memory.New(order)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	}
	return mem, nil
}

// ID returns the evaluator's unique identifier.
func (ev *Evaluator) ID() string { return ev.id }

// State returns the lifecycle state.
func (ev *Evaluator) State() State { return ev.state }

// Graph returns the graph the evaluator was created for.
func (ev *Evaluator) Graph() graph.Graph { return ev.graph }

// Program returns the shared program, or nil after Discard.
func (ev *Evaluator) Program() *expr.Program { return ev.machine.Program() }

// Memory returns the memory tape, or nil if the program uses none.
func (ev *Evaluator) Memory() *memory.Memory { return ev.ctx.Memory }

// Evaluations returns the number of evaluations run so far.
func (ev *Evaluator) Evaluations() int64 { return ev.evals }

// SetContext sets the traversal context for the following evaluations:
// the vertex visited before this one, the arc arriving from it, the query
// vector and the rank score. A nil tail defaults to the arriving arc's tail.
func (ev *Evaluator) SetContext(tail graph.Vertex, arriving *graph.Arc, vec graph.Vector, rank float64) error {
	if ev.state == StateDiscarded {
		return ErrDiscarded
	}
	if tail == nil && arriving != nil {
		tail = arriving.Tail
	}
	c := ev.ctx
	c.Tail = tail
	c.Arrive = arriving
	c.Rank = rank
	ev.setVector(vec)
	ev.state = StateContextualized
	return nil
}

func (ev *Evaluator) setVector(vec graph.Vector) {
	old := ev.ctx.Vector
	if vec == old {
		return
	}
	if vec != nil {
		vec.Incref()
	}
	if old != nil {
		old.Decref()
	}
	ev.ctx.Vector = vec
}

// SetDefaultProp sets the value returned for missing properties.
func (ev *Evaluator) SetDefaultProp(v value.Value) error {
	if ev.state == StateDiscarded {
		return ErrDiscarded
	}
	ev.ctx.DefProp = v
	return nil
}

// SetCollector sets the destination of collect().
func (ev *Evaluator) SetCollector(c graph.Collector) error {
	if ev.state == StateDiscarded {
		return ErrDiscarded
	}
	ev.ctx.Collector = c
	return nil
}

// SetBudget bounds evaluation by ctx: once ctx is done, evaluations return
// null without running.
func (ev *Evaluator) SetBudget(ctx context.Context) error {
	if ev.state == StateDiscarded {
		return ErrDiscarded
	}
	ev.ctx.Budget = ctx
	return nil
}

// OwnMemory replaces the evaluator's memory tape with shared, taking a
// reference to it. Evaluators sharing a tape see each other's writes and
// their clones share it too. A nil tape detaches memory, after which memory
// builtins return null.
func (ev *Evaluator) OwnMemory(shared *memory.Memory) error {
	if ev.state == StateDiscarded {
		return ErrDiscarded
	}
	if shared != nil && shared.Order() > ev.engine.settings.MaxMemoryOrder {
		return fmt.Errorf("%w: memory order %d above cap %d",
			ErrResourceExhausted, shared.Order(), ev.engine.settings.MaxMemoryOrder)
	}
	old := ev.ctx.Memory
	if shared == old {
		ev.shared = shared != nil
		return nil
	}
	if shared != nil {
		shared.Incref()
	}
	if old != nil {
		old.Decref()
	}
	ev.ctx.Memory = shared
	ev.shared = shared != nil
	return nil
}

// EvalVertex evaluates the expression with v as the current vertex and no
// next vertex. A vector result stays valid until the next evaluation.
func (ev *Evaluator) EvalVertex(v graph.Vertex) value.Value {
	if ev.state == StateDiscarded {
		return value.None()
	}
	c := ev.ctx
	c.This, c.Head, c.Exit = v, nil, nil
	return ev.run()
}

// EvalArc evaluates the expression for arc: the arc's tail is the current
// vertex and its head the next vertex.
func (ev *Evaluator) EvalArc(arc *graph.Arc) value.Value {
	if ev.state == StateDiscarded || arc == nil {
		return value.None()
	}
	c := ev.ctx
	c.This, c.Head, c.Exit = arc.Tail, arc.Head, arc
	return ev.run()
}

func (ev *Evaluator) run() value.Value {
	ev.state = StateEvaluated
	ev.evals++
	return ev.machine.Run()
}

// Clone returns an evaluator sharing the program, with its own stack, work
// registers, cull heap and a copy of the memory tape. A tape installed with
// OwnMemory is shared rather than copied. vec replaces the query vector
// when non-nil. Cloning a discarded evaluator returns nil.
func (ev *Evaluator) Clone(vec graph.Vector) *Evaluator {
	if ev.state == StateDiscarded {
		return nil
	}
	src := ev.ctx
	ctx := src.Fork()
	ctx.Tail, ctx.Arrive, ctx.Rank = src.Tail, src.Arrive, src.Rank
	if vec == nil {
		vec = src.Vector
	}
	if vec != nil {
		vec.Incref()
	}
	ctx.Vector = vec
	if mem := src.Memory; mem != nil {
		if ev.shared {
			mem.Incref()
			ctx.Memory = mem
		} else {
			ctx.Memory = mem.Copy()
		}
	}
	if src.Cull != nil {
		ctx.Cull = expr.NewCullHeap(src.Cull.Cap())
	}

	state := StateCompiled
	if ev.state != StateCompiled {
		state = StateContextualized
	}
	clone := &Evaluator{
		id:      uuid.New().String(),
		engine:  ev.engine,
		graph:   ev.graph,
		ctx:     ctx,
		machine: ev.machine.Clone(ctx),
		shared:  ev.shared,
		state:   state,
	}
	clone.logger = observability.EnrichLogger(ev.engine.logger, clone.id, ev.graph.Name())
	return clone
}

// Reset clears the cull heap and the traversal context. The memory tape,
// default property and collector are kept.
func (ev *Evaluator) Reset() {
	if ev.state == StateDiscarded {
		return
	}
	c := ev.ctx
	if c.Cull != nil {
		c.Cull.Reset()
	}
	c.ResetEntities()
	c.Rank = 0
	c.ReleaseScope()
	ev.setVector(nil)
	ev.state = StateReset
}

// Discard releases the program, memory and vector references. Later calls
// return ErrDiscarded or null. Discard is idempotent.
func (ev *Evaluator) Discard() {
	if ev.state == StateDiscarded {
		return
	}
	ev.machine.Release()
	c := ev.ctx
	if c.Memory != nil {
		c.Memory.Decref()
		c.Memory = nil
	}
	ev.setVector(nil)
	c.ResetEntities()
	if c.Cull != nil {
		c.Cull.Reset()
	}
	if ev.evals > 0 {
		ev.engine.metrics.RecordEval(context.Background(), ev.graph.Name(), ev.evals)
	}
	if ev.logger != nil {
		ev.logger.Debug("evaluator discarded", slog.Int64("evaluations", ev.evals))
	}
	ev.state = StateDiscarded
}

// Culled returns the cull heap entries by descending score.
func (ev *Evaluator) Culled() []expr.Culled {
	if ev.ctx.Cull == nil {
		return nil
	}
	return ev.ctx.Cull.Sorted()
}

// FlushCull sends the cull heap entries to c by descending score as arcs
// from the context tail, empties the heap and returns the number sent.
func (ev *Evaluator) FlushCull(c graph.Collector) int {
	h := ev.ctx.Cull
	if h == nil || c == nil {
		return 0
	}
	items := h.Sorted()
	for _, item := range items {
		c.Collect(&graph.Arc{Tail: ev.ctx.Tail, Head: item.Vertex, Dir: graph.DirAny}, item.Score)
	}
	h.Reset()
	return len(items)
}
