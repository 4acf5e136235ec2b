// Package frontmatter implements the pluggable header (de)serialization
// adapters the domain/document package delegates to: one for YAML
// frontmatter (--- fences) and one for TOML frontmatter (+++ fences).
// The adapter-as-interface shape is grounded on the teacher's
// pkg/domain/provider and pkg/domain/skill registries, which keep a
// closed Go interface behind a small lookup-by-name registry instead of
// a dynamic plugin system.
package frontmatter

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/docflow/docflow/internal/domain/document"
)

// YAMLCodec implements document.HeaderCodec over gopkg.in/yaml.v3.
type YAMLCodec struct{}

func (YAMLCodec) Parse(raw string) (document.Header, error) {
	if raw == "" {
		return document.Header{}, nil
	}
	var h document.Header
	if err := yaml.Unmarshal([]byte(raw), &h); err != nil {
		return nil, fmt.Errorf("yaml frontmatter: %w", err)
	}
	if h == nil {
		h = document.Header{}
	}
	return h, nil
}

func (YAMLCodec) Serialize(h document.Header, order document.KeyOrder) (string, error) {
	node, err := toYAMLNode(h, order)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return "", fmt.Errorf("yaml frontmatter: %w", err)
	}
	enc.Close()
	return buf.String(), nil
}

// toYAMLNode builds a mapping node with keys in the requested order,
// since yaml.v3 preserves the order of an explicit MappingNode's content
// but not of a plain map.
func toYAMLNode(h document.Header, order document.KeyOrder) (*yaml.Node, error) {
	keys := sortedKeys(h, order)
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range keys {
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(k); err != nil {
			return nil, err
		}
		valNode := &yaml.Node{}
		if err := valNode.Encode(h[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

func sortedKeys(h document.Header, order document.KeyOrder) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	if order != document.KeyOrderInsertion {
		sort.Strings(keys)
	}
	return keys
}

// TOMLCodec implements document.HeaderCodec over github.com/BurntSushi/toml,
// borrowed cross-repo from vinayprograms-agent.
type TOMLCodec struct{}

func (TOMLCodec) Parse(raw string) (document.Header, error) {
	if raw == "" {
		return document.Header{}, nil
	}
	var h document.Header
	if _, err := toml.Decode(raw, &h); err != nil {
		return nil, fmt.Errorf("toml frontmatter: %w", err)
	}
	if h == nil {
		h = document.Header{}
	}
	return h, nil
}

func (TOMLCodec) Serialize(h document.Header, order document.KeyOrder) (string, error) {
	keys := sortedKeys(h, order)
	ordered := make(orderedMap, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, kv{k, h[k]})
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(ordered.toMap()); err != nil {
		return "", fmt.Errorf("toml frontmatter: %w", err)
	}
	return buf.String(), nil
}

type kv struct {
	Key   string
	Value any
}

type orderedMap []kv

func (o orderedMap) toMap() map[string]any {
	m := make(map[string]any, len(o))
	for _, e := range o {
		m[e.Key] = e.Value
	}
	return m
}

// Registry resolves a document.Syntax to its codec, per spec §6's
// "pluggable adapters" requirement.
type Registry struct {
	codecs map[document.Syntax]document.HeaderCodec
}

// NewRegistry returns a Registry preloaded with the yaml and toml codecs.
func NewRegistry() *Registry {
	return &Registry{codecs: map[document.Syntax]document.HeaderCodec{
		document.SyntaxYAML: YAMLCodec{},
		document.SyntaxTOML: TOMLCodec{},
		document.SyntaxNone: YAMLCodec{}, // default for documents with no existing header
	}}
}

// For returns the codec registered for a syntax, defaulting to YAML.
func (r *Registry) For(s document.Syntax) document.HeaderCodec {
	if c, ok := r.codecs[s]; ok {
		return c
	}
	return r.codecs[document.SyntaxYAML]
}
