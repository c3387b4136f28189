package graphexpr

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/vector"
)

// social is a star graph: a knows b and c, and likes d.
type social struct {
	g          *graph.Memgraph
	a, b, c, d *graph.MemVertex
	ab, ac, ad *graph.Arc
}

func newSocial(t *testing.T) social {
	t.Helper()
	g := graph.NewMemgraph("social")
	add := func(id, typ string, score float64, vec []float32) *graph.MemVertex {
		v, err := g.AddVertex(graph.VertexSpec{
			ID: id, Type: typ, C1: 1,
			Vector: vector.New(vec),
			Props:  map[string]any{"score": score, "name": id},
		})
		require.NoError(t, err)
		return v
	}
	s := social{g: g}
	s.a = add("a", "user", 1, []float32{1, 0})
	s.b = add("b", "user", 4, []float32{1, 1})
	s.c = add("c", "bot", 2, []float32{0, 1})
	s.d = add("d", "user", 3, []float32{-1, 0})

	connect := func(tail, head, rel string, w float64) *graph.Arc {
		arc, err := g.Connect(tail, head, rel, graph.ModFloat, w)
		require.NoError(t, err)
		return arc
	}
	s.ab = connect("a", "b", "knows", 0.9)
	s.ac = connect("a", "c", "knows", 0.2)
	s.ad = connect("a", "d", "likes", 0.7)
	return s
}

// numbered returns a graph of n isolated vertices v0..vn-1 with property n.
func numbered(t *testing.T, n int) (*graph.Memgraph, []*graph.MemVertex) {
	t.Helper()
	g := graph.NewMemgraph("numbered")
	vs := make([]*graph.MemVertex, n)
	for i := range vs {
		v, err := g.AddVertex(graph.VertexSpec{
			ID:    fmt.Sprintf("v%d", i),
			Props: map[string]any{"n": i},
		})
		require.NoError(t, err)
		vs[i] = v
	}
	return g, vs
}

// logBuffer is a concurrency-safe sink for a JSON slog handler.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// collected records arcs sent to a collector.
type collected struct {
	mu     sync.Mutex
	arcs   []*graph.Arc
	scores []float64
}

func (c *collected) Collect(arc *graph.Arc, score float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arcs = append(c.arcs, arc)
	c.scores = append(c.scores, score)
}
