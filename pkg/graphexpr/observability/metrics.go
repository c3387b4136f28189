package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordCompile records a compile with its duration and error status.
	RecordCompile(ctx context.Context, duration time.Duration, err error)

	// RecordEval records n evaluations on the named graph.
	RecordEval(ctx context.Context, graphName string, n int64)

	// RecordCacheHit records an evaluator served from a graph's cache.
	RecordCacheHit(ctx context.Context, graphName string)
}

type otelMetrics struct {
	compiles       metric.Int64Counter
	compileErrors  metric.Int64Counter
	compileLatency metric.Float64Histogram
	evals          metric.Int64Counter
	cacheHits      metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("graphexpr")

	compiles, err := meter.Int64Counter("graphexpr.compile.count",
		metric.WithDescription("Number of expressions compiled"),
	)
	if err != nil {
		return nil, err
	}

	compileErrors, err := meter.Int64Counter("graphexpr.compile.errors",
		metric.WithDescription("Number of expressions rejected by the compiler"),
	)
	if err != nil {
		return nil, err
	}

	compileLatency, err := meter.Float64Histogram("graphexpr.compile.latency_ms",
		metric.WithDescription("Compile latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	evals, err := meter.Int64Counter("graphexpr.eval.count",
		metric.WithDescription("Number of expression evaluations"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter("graphexpr.cache.hits",
		metric.WithDescription("Number of evaluators built from cached named programs"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		compiles:       compiles,
		compileErrors:  compileErrors,
		compileLatency: compileLatency,
		evals:          evals,
		cacheHits:      cacheHits,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses the global OTel
// meter provider. If initialization fails, it returns a no-op recorder.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordCompile(ctx context.Context, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.compiles.Add(ctx, 1, attrs)
	m.compileLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.compileErrors.Add(ctx, 1)
	}
}

func (m *otelMetrics) RecordEval(ctx context.Context, graphName string, n int64) {
	m.evals.Add(ctx, n, metric.WithAttributes(attribute.String("graph", graphName)))
}

func (m *otelMetrics) RecordCacheHit(ctx context.Context, graphName string) {
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("graph", graphName)))
}
