package graphexpr

import (
	"context"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/observability"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
)

// Item is one evaluation of a parallel batch: an arc when Arc is set,
// otherwise Vertex.
type Item struct {
	Vertex graph.Vertex
	Arc    *graph.Arc
}

// VertexItems wraps vertices as batch items.
func VertexItems[V graph.Vertex](vs []V) []Item {
	items := make([]Item, len(vs))
	for i, v := range vs {
		items[i] = Item{Vertex: v}
	}
	return items
}

// ArcItems wraps arcs as batch items.
func ArcItems(arcs []*graph.Arc) []Item {
	items := make([]Item, len(arcs))
	for i, a := range arcs {
		items[i] = Item{Arc: a}
	}
	return items
}

func (ev *Evaluator) eval(it Item) value.Value {
	if it.Arc != nil {
		return ev.EvalArc(it.Arc)
	}
	return ev.EvalVertex(it.Vertex)
}

// EvalParallel evaluates items with workers clones of ev and returns the
// results in item order. workers <= 0 uses the engine's configured worker
// count, or GOMAXPROCS.
//
// ctx is checked between whole evaluations, never during one. Entries the
// clones cull are merged into ev's cull heap. Writes to a private memory tape
// stay in the clones; a tape installed with OwnMemory is shared and not
// synchronized. The collector, if any, is called from every worker and must
// be safe for concurrent use. Vector results are released when the batch
// returns.
func (e *Engine) EvalParallel(ctx context.Context, ev *Evaluator, items []Item, workers int) ([]value.Value, error) {
	if ev.State() == StateDiscarded {
		return nil, ErrDiscarded
	}
	if len(items) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = e.settings.Workers
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(items))

	if e.settings.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.settings.BatchTimeout)
		defer cancel()
	}

	ctx, span := e.spans.StartParallelSpan(ctx, ev.graph.Name(), ev.id, len(items), workers)
	elapsed := observability.TimedOperation()

	clones := make([]*Evaluator, workers)
	for w := range clones {
		clones[w] = ev.Clone(nil)
	}

	results := make([]value.Value, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for w, clone := range clones {
		g.Go(func() error {
			n := 0
			for i := w; i < len(items); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = clone.eval(items[i])
				n++
			}
			observability.AddSpanEvent(ctx, "worker.done",
				attribute.Int("worker", w),
				attribute.Int("items", n))
			return nil
		})
	}
	err := g.Wait()

	for _, clone := range clones {
		if h := ev.ctx.Cull; h != nil {
			for _, c := range clone.Culled() {
				h.Push(c.Score, c.Vertex)
			}
		}
		clone.Discard()
	}

	e.spans.EndSpanWithError(span, err)
	observability.LogEvalBatch(ev.logger, len(items), workers, elapsed(), err)
	if err != nil {
		return nil, err
	}
	return results, nil
}
