package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/memory"
)

// Configuration keys.
const (
	KeyMemoryOrder    = "memory_order"
	KeyMaxMemoryOrder = "max_memory_order"
	KeyMetrics        = "metrics"
	KeyTracing        = "tracing"
	KeySeed           = "seed"
	KeyLogCompile     = "log_compile"
	KeyWorkers        = "workers"
	KeyBatchTimeout   = "batch_timeout"
	KeyExpressions    = "expressions"
)

// DefaultMaxMemoryOrder caps evaluator memory at one million slots.
const DefaultMaxMemoryOrder = 20

// ErrInvalid is wrapped by every settings validation error.
var ErrInvalid = errors.New("invalid configuration")

// Settings are the engine settings a Config resolves to.
type Settings struct {
	MemoryOrder    int
	MaxMemoryOrder int
	Metrics        bool
	Tracing        bool
	// Seed 0 seeds each evaluator randomly.
	Seed       uint64
	LogCompile bool
	// Workers 0 uses GOMAXPROCS.
	Workers      int
	BatchTimeout time.Duration
	// Expressions are named expressions to define on every graph.
	Expressions map[string]string
}

// Defaults returns the settings used when no configuration is given.
func Defaults() Settings {
	return Settings{
		MemoryOrder:    memory.DefaultOrder,
		MaxMemoryOrder: DefaultMaxMemoryOrder,
		LogCompile:     true,
	}
}

// Load resolves c into validated Settings.
func Load(c Config) (Settings, error) {
	d := Defaults()
	s := Settings{
		MemoryOrder:    c.Int(KeyMemoryOrder, d.MemoryOrder),
		MaxMemoryOrder: c.Int(KeyMaxMemoryOrder, d.MaxMemoryOrder),
		Metrics:        c.Bool(KeyMetrics, d.Metrics),
		Tracing:        c.Bool(KeyTracing, d.Tracing),
		Seed:           c.Uint64(KeySeed, d.Seed),
		LogCompile:     c.Bool(KeyLogCompile, d.LogCompile),
		Workers:        c.Int(KeyWorkers, d.Workers),
		BatchTimeout:   c.Duration(KeyBatchTimeout, d.BatchTimeout),
		Expressions:    c.StringMap(KeyExpressions, nil),
	}
	if c.Has(KeyExpressions) && s.Expressions == nil {
		return Settings{}, fmt.Errorf("%w: %s must map names to expression strings", ErrInvalid, KeyExpressions)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks that every setting is in range. A memory order above
// MaxMemoryOrder is valid here; evaluators that would need such a tape fail
// when they are created.
func (s Settings) Validate() error {
	if s.MaxMemoryOrder < memory.MinOrder || s.MaxMemoryOrder > memory.MaxOrder {
		return fmt.Errorf("%w: %s %d not in [%d, %d]", ErrInvalid, KeyMaxMemoryOrder,
			s.MaxMemoryOrder, memory.MinOrder, memory.MaxOrder)
	}
	if s.MemoryOrder < memory.MinOrder || s.MemoryOrder > memory.MaxOrder {
		return fmt.Errorf("%w: %s %d not in [%d, %d]", ErrInvalid, KeyMemoryOrder,
			s.MemoryOrder, memory.MinOrder, memory.MaxOrder)
	}
	if s.Workers < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalid, KeyWorkers)
	}
	if s.BatchTimeout < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalid, KeyBatchTimeout)
	}
	return nil
}
