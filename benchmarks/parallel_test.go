package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr"
)

// BenchmarkEvalParallel_1 runs a ranking batch on a single worker.
func BenchmarkEvalParallel_1(b *testing.B) {
	benchmarkParallel(b, 1)
}

// BenchmarkEvalParallel_4 runs a ranking batch on four workers.
func BenchmarkEvalParallel_4(b *testing.B) {
	benchmarkParallel(b, 4)
}

// BenchmarkEvalParallel_Max runs a ranking batch on GOMAXPROCS workers.
func BenchmarkEvalParallel_Max(b *testing.B) {
	benchmarkParallel(b, 0)
}

func benchmarkParallel(b *testing.B, workers int) {
	b.Helper()
	g := buildGraph(b, 2000, 8)
	eng := graphexpr.NewEngine()
	ev, err := eng.NewEvaluator(g, rankingExpr, query(b))
	if err != nil {
		b.Fatal(err)
	}
	defer ev.Discard()
	items := graphexpr.ArcItems(g.AllArcs())
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := eng.EvalParallel(ctx, ev, items, workers); err != nil {
			b.Fatal(err)
		}
	}
}
