package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hmansour/progression/internal/predicate"
)

// #region graph

// Graph is an immutable, validated set of progression nodes. Definition
// order is preserved: the unlock engine processes candidates in this order
// so runs are deterministic.
type Graph struct {
	nodes map[string]*Node
	order []string
}

// #endregion graph

// #region load

// Load validates node definitions and builds a graph. Any structural problem
// fails fast with a DefinitionError; nothing is deferred to evaluation time.
func Load(defs []Node) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]*Node, len(defs)),
		order: make([]string, 0, len(defs)),
	}

	for i := range defs {
		node := defs[i]
		if node.ID == "" {
			return nil, &DefinitionError{Reason: fmt.Sprintf("node at index %d has empty id", i)}
		}
		if _, exists := g.nodes[node.ID]; exists {
			return nil, &DefinitionError{NodeID: node.ID, Reason: "duplicate id"}
		}
		if !validKinds[node.Kind] {
			return nil, &DefinitionError{NodeID: node.ID, Reason: fmt.Sprintf("unknown kind %q", node.Kind)}
		}
		if err := predicate.Validate(node.Trigger); err != nil {
			return nil, &DefinitionError{NodeID: node.ID, Reason: fmt.Sprintf("malformed trigger: %v", err)}
		}
		if len(node.Options) > 0 && node.Kind != KindStory {
			return nil, &DefinitionError{NodeID: node.ID, Reason: fmt.Sprintf("options on non-story node of kind %q", node.Kind)}
		}
		seenOpts := make(map[string]bool, len(node.Options))
		for _, opt := range node.Options {
			if opt.ID == "" {
				return nil, &DefinitionError{NodeID: node.ID, Reason: "option with empty id"}
			}
			if seenOpts[opt.ID] {
				return nil, &DefinitionError{NodeID: node.ID, Reason: fmt.Sprintf("duplicate option id %q", opt.ID)}
			}
			seenOpts[opt.ID] = true
			for _, d := range opt.SignalDeltas {
				if err := validateDelta(d); err != nil {
					return nil, &DefinitionError{NodeID: node.ID, Reason: fmt.Sprintf("option %q: %v", opt.ID, err)}
				}
			}
		}
		g.nodes[node.ID] = &node
		g.order = append(g.order, node.ID)
	}

	// Children may only reference defined nodes.
	for _, id := range g.order {
		for _, child := range g.nodes[id].Children {
			if _, exists := g.nodes[child]; !exists {
				return nil, &DefinitionError{NodeID: id, Reason: fmt.Sprintf("child %q does not exist", child)}
			}
		}
	}

	return g, nil
}

func validateDelta(d SignalDelta) error {
	if d.Key == "" {
		return fmt.Errorf("signal delta with empty key")
	}
	switch d.Kind {
	case DeltaCounter, DeltaDuration:
		if d.Amount < 1 || d.Amount != math.Trunc(d.Amount) {
			return fmt.Errorf("%s delta %q must be a whole number >= 1, got %v", d.Kind, d.Key, d.Amount)
		}
	case DeltaFlag:
	case DeltaSet:
		if d.Member == "" {
			return fmt.Errorf("set delta %q missing member", d.Key)
		}
	case DeltaAttribute:
	default:
		return fmt.Errorf("unknown delta kind %q", d.Kind)
	}
	return nil
}

// #endregion load

// #region document-loaders

// document is the top-level shape of a content file.
type document struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// LoadYAML parses a YAML content document and builds a graph.
func LoadYAML(data []byte) (*Graph, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &DefinitionError{Reason: fmt.Sprintf("parse yaml: %v", err)}
	}
	return Load(doc.Nodes)
}

// LoadJSON parses a JSON content document and builds a graph.
func LoadJSON(data []byte) (*Graph, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &DefinitionError{Reason: fmt.Sprintf("parse json: %v", err)}
	}
	return Load(doc.Nodes)
}

// LoadFile reads a content document, choosing the parser by extension.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(data)
	case ".json":
		return LoadJSON(data)
	default:
		return nil, &DefinitionError{Reason: fmt.Sprintf("unsupported content format %q", filepath.Ext(path))}
	}
}

// #endregion document-loaders

// #region accessors

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// All returns every node in definition order.
func (g *Graph) All() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// ChildrenOf returns the declared children of a node, in declaration order.
// The list is an evaluation hint; a full re-scan is always safe.
func (g *Graph) ChildrenOf(id string) []*Node {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, child := range n.Children {
		out = append(out, g.nodes[child])
	}
	return out
}

// Len returns the node count.
func (g *Graph) Len() int {
	return len(g.order)
}

// #endregion accessors
