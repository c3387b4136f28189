package graphexpr

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/cache"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/config"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/expr"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/observability"
)

// Engine compiles expressions and owns the per-graph named-program caches.
// An Engine is safe for concurrent use; the evaluators it creates are not.
type Engine struct {
	id       string
	settings config.Settings
	err      error
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	table    *expr.Table
	clock    func() time.Time
	caches   *cache.Registry[graph.Graph]
	seq      atomic.Uint64
}

// NewEngine creates an engine.
//
// Example:
//
//	eng := graphexpr.NewEngine(
//	    graphexpr.WithLogger(logger),
//	    graphexpr.WithMetrics(true))
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		id:       uuid.New().String(),
		settings: config.Defaults(),
		logger:   slog.Default(),
		table:    expr.DefaultTable(),
		caches:   cache.NewRegistry[graph.Graph](),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.err == nil {
		e.err = e.settings.Validate()
	}

	e.logger = e.logger.With(slog.String("engine_id", e.id))
	if e.metrics == nil {
		e.metrics = observability.NoopMetrics{}
		if e.settings.Metrics {
			e.metrics = observability.NewMetricsRecorder()
		}
	}
	if e.spans == nil {
		e.spans = observability.NoopSpanManager{}
		if e.settings.Tracing {
			e.spans = observability.NewSpanManager()
		}
	}
	return e
}

var defaultEngine = sync.OnceValue(func() *Engine { return NewEngine() })

// Default returns the shared engine used by the package-level functions.
func Default() *Engine { return defaultEngine() }

// NewEvaluator creates an evaluator on the default engine.
func NewEvaluator(g graph.Graph, text string, vec graph.Vector) (*Evaluator, error) {
	return Default().NewEvaluator(g, text, vec)
}

// ID returns the engine's unique identifier.
func (e *Engine) ID() string { return e.id }

// Settings returns the engine settings.
func (e *Engine) Settings() config.Settings { return e.settings }

// Err returns the configuration error, if any.
func (e *Engine) Err() error { return e.err }

// NewEvaluator returns an evaluator for text over g.
//
// When text is a bare name defined in g's cache, the evaluator shares that
// program. Otherwise text is compiled, named subexpressions (name := expr)
// are stored in g's cache, and references to cached names are inlined.
// vec is the query vector for sim() and context.vector and may be nil.
func (e *Engine) NewEvaluator(g graph.Graph, text string, vec graph.Vector) (*Evaluator, error) {
	if e.err != nil {
		return nil, e.err
	}
	if g == nil {
		return nil, ErrNilGraph
	}
	c := e.cacheFor(g)

	if entry, ok := c.Lookup(strings.TrimSpace(text)); ok {
		observability.LogCacheHit(e.logger, g.Name(), entry.Name)
		e.metrics.RecordCacheHit(context.Background(), g.Name())
		return e.newEvaluator(g, entry.Program, vec)
	}

	p, err := e.compile(g, c, text)
	if err != nil {
		return nil, err
	}
	return e.newEvaluator(g, p, vec)
}

// Define compiles text and stores it in g's cache under name, replacing any
// previous definition. Evaluators already sharing the old program keep it.
func (e *Engine) Define(g graph.Graph, name, text string) (*cache.Entry, error) {
	if e.err != nil {
		return nil, e.err
	}
	if g == nil {
		return nil, ErrNilGraph
	}
	c := e.cacheFor(g)
	p, err := e.compile(g, c, text)
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		p.Name = name
	}
	return e.define(g, c, name, p), nil
}

// Lookup returns the cache entry for name in g's cache.
func (e *Engine) Lookup(g graph.Graph, name string) (*cache.Entry, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if c, ok := e.caches.Get(g); ok {
		if entry, ok := c.Lookup(name); ok {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in graph %q", ErrNameNotFound, name, g.Name())
}

// Names returns the names defined for g in sorted order.
func (e *Engine) Names(g graph.Graph) []string {
	if c, ok := e.caches.Get(g); ok {
		return c.Names()
	}
	return nil
}

// Forget removes name from g's cache and reports whether it was defined.
func (e *Engine) Forget(g graph.Graph, name string) bool {
	c, ok := e.caches.Get(g)
	if !ok {
		return false
	}
	return c.Forget(name)
}

// DropGraph discards g's cache. Call it when the graph is closed.
func (e *Engine) DropGraph(g graph.Graph) bool {
	return e.caches.Drop(g)
}

func (e *Engine) cacheFor(g graph.Graph) *cache.Cache {
	return e.caches.GetOrCreate(g, func() *cache.Cache {
		c := cache.New(g.Name())
		e.predefine(g, c)
		return c
	})
}

// predefine stores the configured expressions in a new cache. Names are
// compiled in sorted order, so later names may reference earlier ones.
func (e *Engine) predefine(g graph.Graph, c *cache.Cache) {
	if len(e.settings.Expressions) == 0 {
		return
	}
	names := make([]string, 0, len(e.settings.Expressions))
	for name := range e.settings.Expressions {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		p, err := e.compile(g, c, e.settings.Expressions[name])
		if err != nil {
			e.logger.Warn("configured expression skipped",
				slog.String("graph", g.Name()),
				slog.String("name", name),
				slog.String("error", err.Error()))
			continue
		}
		if p.Name == "" {
			p.Name = name
		}
		e.define(g, c, name, p)
	}
}

func (e *Engine) compile(g graph.Graph, c *cache.Cache, text string) (*expr.Program, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &CompileError{Source: text, Err: ErrEmptyExpression}
	}

	ctx, span := e.spans.StartCompileSpan(context.Background(), g.Name(), text)
	elapsed := observability.TimedOperation()
	start := time.Now()
	p, err := expr.Compile(text, expr.WithTable(e.table), expr.WithResolver(c))
	e.metrics.RecordCompile(ctx, time.Since(start), err)
	e.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogCompileError(e.logger, text, err)
		return nil, &CompileError{Source: text, Err: err}
	}
	if e.settings.LogCompile {
		observability.LogCompile(e.logger, text, p.Len(), p.MaxDepth, elapsed())
	}

	for _, d := range p.Defined {
		e.define(g, c, d.Name, d)
	}
	return p, nil
}

func (e *Engine) define(g graph.Graph, c *cache.Cache, name string, p *expr.Program) *cache.Entry {
	entry, replaced := c.Define(name, p)
	observability.LogCacheDefine(e.logger, g.Name(), name, replaced)
	return entry
}

func (e *Engine) nextSeed() uint64 {
	n := e.seq.Add(1)
	if e.settings.Seed == 0 {
		return rand.Uint64()
	}
	return e.settings.Seed + n - 1
}
