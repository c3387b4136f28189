package graphexpr

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/config"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/expr"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/observability"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
func WithMetrics(enabled bool) Option {
	return func(e *Engine) {
		e.settings.Metrics = enabled
	}
}

// WithTracing enables OpenTelemetry spans through the global tracer provider.
func WithTracing(enabled bool) Option {
	return func(e *Engine) {
		e.settings.Tracing = enabled
	}
}

// WithMetricsRecorder records metrics with r instead of the OTel recorder
// selected by WithMetrics.
func WithMetricsRecorder(r observability.MetricsRecorder) Option {
	return func(e *Engine) {
		e.metrics = r
	}
}

// WithSpanManager traces with m instead of the span manager selected by
// WithTracing.
func WithSpanManager(m observability.SpanManager) Option {
	return func(e *Engine) {
		e.spans = m
	}
}

// WithConfig applies settings loaded from cfg. An invalid configuration is
// reported by Engine.Err and by every NewEvaluator call.
//
// Example:
//
//	cfg, _ := config.FromFile("graphexpr.yaml")
//	eng := graphexpr.NewEngine(graphexpr.WithConfig(cfg))
//	if err := eng.Err(); err != nil {
//	    return err
//	}
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) {
		s, err := config.Load(cfg)
		if err != nil {
			e.err = err
			return
		}
		e.settings = s
	}
}

// WithMemoryOrder sets the log2 size of the memory tape given to programs
// that use memory.
// Default: 6 (64 slots)
func WithMemoryOrder(order int) Option {
	return func(e *Engine) {
		e.settings.MemoryOrder = order
	}
}

// WithMaxMemoryOrder caps the memory tape an evaluator may own.
// Default: 20
func WithMaxMemoryOrder(order int) Option {
	return func(e *Engine) {
		e.settings.MaxMemoryOrder = order
	}
}

// WithSeed seeds evaluator random sources deterministically. Evaluators
// created by one engine draw successive seeds from it. Zero seeds randomly.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.settings.Seed = seed
	}
}

// WithWorkers sets the default worker count of EvalParallel.
// Default: GOMAXPROCS
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.settings.Workers = n
		}
	}
}

// WithClock sets the time source for graph.ts.
// Default: time.Now
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithTable compiles with a custom operator table.
// Default: expr.DefaultTable()
func WithTable(t *expr.Table) Option {
	return func(e *Engine) {
		if t != nil {
			e.table = t
		}
	}
}
