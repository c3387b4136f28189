package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables read by FromEnv.
const EnvPrefix = "GRAPHEXPR_"

// FromFile reads path and decodes it by extension (.yaml, .yml or .json).
// An empty file yields an empty Config.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var decode func([]byte) (Config, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		decode = FromYAML
	case ".json":
		decode = FromJSON
	default:
		return Config{}, fmt.Errorf("config file %s: unsupported extension %q", path, ext)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return New(nil), nil
	}
	c, err := decode(data)
	if err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return c, nil
}

// FromYAML decodes a YAML mapping.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON decodes a JSON object. Numbers stay float64; the typed
// accessors accept whole floats as integers.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// FromEnv collects the variables of environ (KEY=VALUE pairs, as returned
// by os.Environ) that start with prefix. The key is the lowercased rest of
// the name, so GRAPHEXPR_MEMORY_ORDER sets memory_order. Values are decoded
// as YAML scalars: "8" is an int, "true" a bool, "250ms" a string.
func FromEnv(prefix string, environ []string) Config {
	m := make(map[string]any)
	for _, kv := range environ {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		key, ok := strings.CutPrefix(name, prefix)
		if !ok || key == "" {
			continue
		}
		m[strings.ToLower(key)] = scalar(raw)
	}
	return New(m)
}

func scalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case int, float64, bool, string:
		return v
	}
	return raw
}

// Merge returns a Config holding the keys of base overlaid by over.
// Neither input is modified.
func Merge(base, over Config) Config {
	m := make(map[string]any, len(base.data)+len(over.data))
	maps.Copy(m, base.data)
	maps.Copy(m, over.data)
	return New(m)
}
