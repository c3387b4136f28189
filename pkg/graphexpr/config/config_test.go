package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/config"
)

func TestAccessors(t *testing.T) {
	cfg := config.New(map[string]any{
		"name":     "social",
		"order":    8,
		"whole":    float64(12),
		"fraction": 1.5,
		"enabled":  true,
		"timeout":  "250ms",
		"seconds":  2,
		"negative": -3,
		"exprs":    map[string]any{"hot": "vertex.deg > 10"},
		"mixed":    map[string]any{"hot": 1},
	})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", cfg.String("name", "x"), "social"},
		{"string missing", cfg.String("missing", "x"), "x"},
		{"string wrong type", cfg.String("order", "x"), "x"},
		{"int", cfg.Int("order", 0), 8},
		{"int from whole float", cfg.Int("whole", 0), 12},
		{"int from fraction", cfg.Int("fraction", 7), 7},
		{"int wrong type", cfg.Int("name", 7), 7},
		{"uint64", cfg.Uint64("order", 0), uint64(8)},
		{"uint64 negative", cfg.Uint64("negative", 9), uint64(9)},
		{"float", cfg.Float("fraction", 0), 1.5},
		{"float from int", cfg.Float("order", 0), 8.0},
		{"bool", cfg.Bool("enabled", false), true},
		{"bool wrong type", cfg.Bool("name", false), false},
		{"duration string", cfg.Duration("timeout", 0), 250 * time.Millisecond},
		{"duration seconds", cfg.Duration("seconds", 0), 2 * time.Second},
		{"duration float seconds", cfg.Duration("fraction", 0), 1500 * time.Millisecond},
		{"duration invalid", cfg.Duration("name", time.Minute), time.Minute},
		{"string map", cfg.StringMap("exprs", nil), map[string]string{"hot": "vertex.deg > 10"}},
		{"string map mixed", cfg.StringMap("mixed", nil), map[string]string(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestNewNil(t *testing.T) {
	cfg := config.New(nil)
	assert.NotNil(t, cfg.Raw())
	assert.False(t, cfg.Has("anything"))
	assert.Empty(t, cfg.Keys())
}

func TestKeysSorted(t *testing.T) {
	cfg := config.New(map[string]any{"b": 1, "a": 2, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Keys())
}

func TestSub(t *testing.T) {
	cfg := config.New(map[string]any{
		"engine": map[string]any{"seed": 42},
		"flat":   "x",
	})

	sub, err := cfg.Sub("engine")
	require.NoError(t, err)
	assert.Equal(t, 42, sub.Int("seed", 0))

	missing, err := cfg.Sub("nope")
	require.NoError(t, err)
	assert.False(t, missing.Has("seed"))

	_, err = cfg.Sub("flat")
	assert.Error(t, err)
}

func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
memory_order: 8
metrics: true
seed: 7
batch_timeout: 2s
expressions:
  popular: vertex.ideg > 100
  close: next.arc.dist <= 2
`))
	require.NoError(t, err)

	s, err := config.Load(cfg)
	require.NoError(t, err)
	assert.Equal(t, 8, s.MemoryOrder)
	assert.Equal(t, config.DefaultMaxMemoryOrder, s.MaxMemoryOrder)
	assert.True(t, s.Metrics)
	assert.False(t, s.Tracing)
	assert.Equal(t, uint64(7), s.Seed)
	assert.True(t, s.LogCompile)
	assert.Equal(t, 2*time.Second, s.BatchTimeout)
	assert.Equal(t, "vertex.ideg > 100", s.Expressions["popular"])
	assert.Len(t, s.Expressions, 2)
}

func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"memory_order": 10, "workers": 4, "log_compile": false}`))
	require.NoError(t, err)

	s, err := config.Load(cfg)
	require.NoError(t, err)
	assert.Equal(t, 10, s.MemoryOrder)
	assert.Equal(t, 4, s.Workers)
	assert.False(t, s.LogCompile)
}

func TestParseErrors(t *testing.T) {
	_, err := config.FromYAML([]byte("key: [unclosed"))
	assert.Error(t, err)

	_, err = config.FromJSON([]byte("{not json"))
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "graphexpr.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("seed: 3\n"), 0o600))
	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Int("seed", 0))

	jsonPath := filepath.Join(dir, "graphexpr.JSON")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"seed": 4}`), 0o600))
	cfg, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Int("seed", 0))

	txtPath := filepath.Join(dir, "graphexpr.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("seed=1"), 0o600))
	_, err = config.FromFile(txtPath)
	assert.ErrorContains(t, err, `unsupported extension ".txt"`)

	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	emptyPath := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(emptyPath, []byte("\n  \n"), 0o600))
	cfg, err = config.FromFile(emptyPath)
	require.NoError(t, err)
	assert.Empty(t, cfg.Keys())

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte("{"), 0o600))
	_, err = config.FromFile(badPath)
	assert.ErrorContains(t, err, "bad.json: parse json")
}

func TestFromEnv(t *testing.T) {
	cfg := config.FromEnv(config.EnvPrefix, []string{
		"HOME=/root",
		"GRAPHEXPR_MEMORY_ORDER=8",
		"GRAPHEXPR_METRICS=true",
		"GRAPHEXPR_BATCH_TIMEOUT=250ms",
		"GRAPHEXPR_SCALE=0.5",
		"GRAPHEXPR_=ignored",
		"GRAPHEXPR_BROKEN",
		"GRAPHEXPR_LIST=[1, 2]",
	})

	assert.Equal(t, []string{"batch_timeout", "list", "memory_order", "metrics", "scale"}, cfg.Keys())
	assert.Equal(t, 8, cfg.Int("memory_order", 0))
	assert.True(t, cfg.Bool("metrics", false))
	assert.Equal(t, 250*time.Millisecond, cfg.Duration("batch_timeout", 0))
	assert.InDelta(t, 0.5, cfg.Float("scale", 0), 1e-12)
	assert.Equal(t, "[1, 2]", cfg.String("list", ""))
}

func TestMerge(t *testing.T) {
	base := config.New(map[string]any{"seed": 1, "workers": 2})
	over := config.New(map[string]any{"workers": 8})

	merged := config.Merge(base, over)
	assert.Equal(t, 1, merged.Int("seed", 0))
	assert.Equal(t, 8, merged.Int("workers", 0))
	assert.Equal(t, 2, base.Int("workers", 0))

	s, err := config.Load(config.Merge(config.New(nil), config.FromEnv(config.EnvPrefix, []string{"GRAPHEXPR_WORKERS=3"})))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Workers)
}

func TestLoadDefaults(t *testing.T) {
	s, err := config.Load(config.New(nil))
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), s)
}

func TestLoadAllowsOrderAboveCap(t *testing.T) {
	s, err := config.Load(config.New(map[string]any{"memory_order": 12, "max_memory_order": 10}))
	require.NoError(t, err)
	assert.Equal(t, 12, s.MemoryOrder)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{"memory order below minimum", map[string]any{"memory_order": 1}},
		{"memory order above maximum", map[string]any{"memory_order": 31}},
		{"max order too large", map[string]any{"max_memory_order": 40}},
		{"negative workers", map[string]any{"workers": -1}},
		{"negative timeout", map[string]any{"batch_timeout": "-1s"}},
		{"expressions not strings", map[string]any{"expressions": map[string]any{"a": 1}}},
		{"expressions not a map", map[string]any{"expressions": "a := 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(config.New(tt.data))
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}
