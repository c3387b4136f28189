// Package observability provides logging, metrics and tracing helpers for
// graphexpr engines.
//
// Logging uses log/slog; metrics and tracing use OpenTelemetry through the
// global providers. Every feature is opt-in and has a no-op implementation
// when disabled.
package observability

import (
	"log/slog"
	"time"
)

// maxLoggedSource bounds the expression text attached to log records.
const maxLoggedSource = 200

// EnrichLogger adds evaluator context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, ev.ID(), "social")
//	enriched.Info("evaluating") // includes evaluator_id and graph
func EnrichLogger(logger *slog.Logger, evaluatorID, graphName string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("evaluator_id", evaluatorID),
		slog.String("graph", graphName),
	)
}

// LogCompile logs a successful compile.
func LogCompile(logger *slog.Logger, source string, ops, depth int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("expression compiled",
		slog.String("source", clip(source)),
		slog.Int("ops", ops),
		slog.Int("max_depth", depth),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogCompileError logs a rejected expression.
func LogCompileError(logger *slog.Logger, source string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("expression rejected",
		slog.String("source", clip(source)),
		slog.String("error", err.Error()),
	)
}

// LogCacheDefine logs a named program stored in a graph's cache.
// Redefinitions are logged at Info, first definitions at Debug.
func LogCacheDefine(logger *slog.Logger, graphName, name string, replaced bool) {
	if logger == nil {
		return
	}
	if replaced {
		logger.Info("named expression redefined",
			slog.String("graph", graphName),
			slog.String("name", name),
		)
		return
	}
	logger.Debug("named expression defined",
		slog.String("graph", graphName),
		slog.String("name", name),
	)
}

// LogCacheHit logs an evaluator built from a cached program.
func LogCacheHit(logger *slog.Logger, graphName, name string) {
	if logger == nil {
		return
	}
	logger.Debug("named expression reused",
		slog.String("graph", graphName),
		slog.String("name", name),
	)
}

// LogEvalBatch logs the outcome of a parallel evaluation.
func LogEvalBatch(logger *slog.Logger, items, workers int, durationMs float64, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Error("parallel evaluation failed",
			slog.Int("items", items),
			slog.Int("workers", workers),
			slog.Float64("duration_ms", durationMs),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info("parallel evaluation completed",
		slog.Int("items", items),
		slog.Int("workers", workers),
		slog.Float64("duration_ms", durationMs),
	)
}

// TimedOperation measures the duration of an operation.
// The returned function reports the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}

func clip(s string) string {
	if len(s) <= maxLoggedSource {
		return s
	}
	return s[:maxLoggedSource] + "..."
}
