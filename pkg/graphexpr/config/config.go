package config

import (
	"fmt"
	"sort"
	"time"
)

// Config is a read-only view over decoded configuration data.
type Config struct {
	data map[string]any
}

// New wraps data. A nil map yields an empty Config.
func New(data map[string]any) Config {
	if data == nil {
		data = map[string]any{}
	}
	return Config{data: data}
}

// Has reports whether key is present.
func (c Config) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Keys returns the top-level keys in sorted order.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Raw returns the underlying map. Callers must not modify it.
func (c Config) Raw() map[string]any { return c.data }

// String returns the string at key or def.
func (c Config) String(key, def string) string {
	if s, ok := c.data[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool at key or def.
func (c Config) Bool(key string, def bool) bool {
	if b, ok := c.data[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the integer at key or def. Floats are accepted only when
// they hold a whole number.
func (c Config) Int(key string, def int) int {
	if n, ok := asInt(c.data[key]); ok {
		return int(n)
	}
	return def
}

// Uint64 returns the non-negative integer at key or def.
func (c Config) Uint64(key string, def uint64) uint64 {
	if n, ok := asInt(c.data[key]); ok && n >= 0 {
		return uint64(n)
	}
	return def
}

// Float returns the number at key or def.
func (c Config) Float(key string, def float64) float64 {
	switch v := c.data[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	}
	if n, ok := asInt(c.data[key]); ok {
		return float64(n)
	}
	return def
}

// Duration returns the duration at key or def. Strings are parsed with
// time.ParseDuration; numbers are seconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	switch v := c.data[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		return def
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	if n, ok := asInt(c.data[key]); ok {
		return time.Duration(n) * time.Second
	}
	return def
}

// StringMap returns the string-valued mapping at key or def. Every value
// must be a string.
func (c Config) StringMap(key string, def map[string]string) map[string]string {
	switch v := c.data[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			s, ok := item.(string)
			if !ok {
				return def
			}
			out[k] = s
		}
		return out
	}
	return def
}

// Sub returns the nested section at key as a Config.
func (c Config) Sub(key string) (Config, error) {
	v, ok := c.data[key]
	if !ok {
		return New(nil), nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Config{}, fmt.Errorf("config key %q: expected a mapping, got %T", key, v)
	}
	return New(m), nil
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
