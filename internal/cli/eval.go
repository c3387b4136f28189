package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/value"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/vector"
)

type evalFlags struct {
	src      graphSource
	vertices []string
	arcs     bool
	query    []float32
	workers  int
	truthy   bool
	defProp  string
}

func newEvalCommand(opts *options) *cobra.Command {
	f := &evalFlags{}
	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression over the vertices or arcs of a graph",
		Long: `Evaluate an expression once per vertex, or once per arc with --arcs, and
print one line per evaluation. Vertices cull into the cull heap when the
expression calls mcull; the retained entries are printed last.`,
		Example: `  graphexpr eval -g social.yaml "vertex.deg"
  graphexpr eval -g social.yaml --arcs --truthy "next.arc.value > 0.5"
  graphexpr eval --db fixtures.db --name social --query 1,0,0 "sim(vertex.vector)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.newEngine(cmd)
			if err != nil {
				return err
			}
			g, err := f.src.load()
			if err != nil {
				return err
			}
			defer g.Release()
			return f.run(cmd, eng, g, args[0])
		},
	}
	f.src.register(cmd)
	cmd.Flags().StringSliceVar(&f.vertices, "vertex", nil, "evaluate only these vertex ids")
	cmd.Flags().BoolVar(&f.arcs, "arcs", false, "evaluate every arc instead of every vertex")
	cmd.Flags().Float32SliceVar(&f.query, "query", nil, "query vector for sim() and context.vector")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 1, "parallel workers (0 uses GOMAXPROCS)")
	cmd.Flags().BoolVar(&f.truthy, "truthy", false, "print only truthy results")
	cmd.Flags().StringVar(&f.defProp, "default-prop", "", "value of missing properties (numbers parse as int or real)")
	return cmd
}

// defaultProp reads a flag value as an integer or real when it parses as
// one, and as a string otherwise.
func defaultProp(s string) value.Value {
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return value.Int(i)
	}
	if r, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Real(r)
	}
	return value.Str(s)
}

type labeled struct {
	label string
	item  graphexpr.Item
}

func (f *evalFlags) run(cmd *cobra.Command, eng *graphexpr.Engine, g *graph.Memgraph, text string) error {
	var query graph.Vector
	if len(f.query) > 0 {
		v := vector.New(f.query)
		defer v.Decref()
		query = v
	}

	ev, err := eng.NewEvaluator(g, text, query)
	if err != nil {
		return describe(err)
	}
	defer ev.Discard()
	if f.defProp != "" {
		if err := ev.SetDefaultProp(defaultProp(f.defProp)); err != nil {
			return err
		}
	}

	targets, err := f.targets(g)
	if err != nil {
		return err
	}
	items := make([]graphexpr.Item, len(targets))
	for i, t := range targets {
		items[i] = t.item
	}

	var results []value.Value
	if f.workers == 1 {
		results = make([]value.Value, len(items))
		for i, it := range items {
			if it.Arc != nil {
				results[i] = ev.EvalArc(it.Arc)
			} else {
				results[i] = ev.EvalVertex(it.Vertex)
			}
		}
	} else {
		results, err = eng.EvalParallel(cmd.Context(), ev, items, f.workers)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for i, r := range results {
		if f.truthy && !r.Truthy() {
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", targets[i].label, r)
	}
	printCulled(out, ev)
	return nil
}

func (f *evalFlags) targets(g *graph.Memgraph) ([]labeled, error) {
	if f.arcs {
		arcs := g.AllArcs()
		out := make([]labeled, len(arcs))
		for i, a := range arcs {
			out[i] = labeled{
				label: fmt.Sprintf("%s -%s-> %s", a.Tail.ID(), a.Rel, a.Head.ID()),
				item:  graphexpr.Item{Arc: a},
			}
		}
		return out, nil
	}

	var vs []*graph.MemVertex
	if len(f.vertices) == 0 {
		vs = g.Vertices()
	} else {
		for _, id := range f.vertices {
			v, ok := g.Vertex(id)
			if !ok {
				return nil, fmt.Errorf("vertex %q not in graph %q", id, g.Name())
			}
			vs = append(vs, v)
		}
	}
	out := make([]labeled, len(vs))
	for i, v := range vs {
		out[i] = labeled{label: v.ID(), item: graphexpr.Item{Vertex: v}}
	}
	return out, nil
}

func printCulled(w io.Writer, ev *graphexpr.Evaluator) {
	culled := ev.Culled()
	if len(culled) == 0 {
		return
	}
	fmt.Fprintln(w, "; culled")
	for _, c := range culled {
		id := "-"
		if c.Vertex != nil {
			id = c.Vertex.ID()
		}
		fmt.Fprintf(w, "%s\t%g\n", id, c.Score)
	}
}
