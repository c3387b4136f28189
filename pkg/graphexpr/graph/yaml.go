package graph

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VectorFactory builds a Vector from raw elements.
type VectorFactory func(elems []float32) Vector

type yamlGraph struct {
	Name     string       `yaml:"name"`
	Rels     []string     `yaml:"rels"`
	Types    []string     `yaml:"types"`
	Vertices []yamlVertex `yaml:"vertices"`
	Arcs     []yamlArc    `yaml:"arcs"`
}

type yamlVertex struct {
	ID       string         `yaml:"id"`
	Type     string         `yaml:"type"`
	Created  int64          `yaml:"created"`
	Modified int64          `yaml:"modified"`
	Expires  int64          `yaml:"expires"`
	C1       float64        `yaml:"c1"`
	C0       float64        `yaml:"c0"`
	Virtual  bool           `yaml:"virtual"`
	Vector   []float32      `yaml:"vector"`
	Props    map[string]any `yaml:"props"`
}

type yamlArc struct {
	Tail  string  `yaml:"tail"`
	Head  string  `yaml:"head"`
	Rel   string  `yaml:"rel"`
	Mod   string  `yaml:"mod"`
	Value float64 `yaml:"value"`
}

// LoadYAML builds a Memgraph from a YAML fixture document.
//
// The optional rels and types lists pin enumeration codes before vertices and
// arcs register theirs. newVector may be nil when no vertex carries a vector.
func LoadYAML(data []byte, newVector VectorFactory) (*Memgraph, error) {
	var doc yamlGraph
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse graph yaml: %w", err)
	}

	g := NewMemgraph(doc.Name)
	for _, r := range doc.Rels {
		g.DefineRel(r)
	}
	for _, t := range doc.Types {
		g.DefineType(t)
	}

	for i, yv := range doc.Vertices {
		spec := VertexSpec{
			ID:         yv.ID,
			Type:       yv.Type,
			CreatedAt:  yv.Created,
			ModifiedAt: yv.Modified,
			ExpiresAt:  yv.Expires,
			C1:         yv.C1,
			C0:         yv.C0,
			Virtual:    yv.Virtual,
			Props:      yv.Props,
		}
		if len(yv.Vector) > 0 {
			if newVector == nil {
				return nil, fmt.Errorf("vertex %d (%s): vector given but no vector factory", i, yv.ID)
			}
			spec.Vector = newVector(yv.Vector)
		}
		if _, err := g.AddVertex(spec); err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
	}

	for i, ya := range doc.Arcs {
		mod, ok := ParseModifier(ya.Mod)
		if !ok {
			return nil, fmt.Errorf("arc %d: unknown modifier %q", i, ya.Mod)
		}
		if _, err := g.Connect(ya.Tail, ya.Head, ya.Rel, mod, ya.Value); err != nil {
			return nil, fmt.Errorf("arc %d: %w", i, err)
		}
	}
	return g, nil
}

// LoadYAMLFile reads a YAML fixture from disk.
func LoadYAMLFile(path string, newVector VectorFactory) (*Memgraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	return LoadYAML(data, newVector)
}
