package graph

import (
	"errors"
	"testing"

	"github.com/hmansour/progression/internal/predicate"
)

func validNodes() []Node {
	return []Node{
		{
			ID:      "palace",
			Kind:    KindLocation,
			Trigger: predicate.CounterAtLeast("logo_clicks", 15),
			OnUnlock: UnlockEffect{
				GrantFlags: []string{"palace_open"},
				Notify:     NotificationPayload{Title: "Palace Gates"},
			},
			Children: []string{"vizier"},
		},
		{
			ID:      "vizier",
			Kind:    KindCharacter,
			Trigger: predicate.FlagSet("palace_open"),
		},
		{
			ID:      "aliBaba",
			Kind:    KindStory,
			Trigger: predicate.And(),
			Options: []ChoiceOption{
				{ID: "a", SignalDeltas: []SignalDelta{{Kind: DeltaAttribute, Key: "wisdom", Amount: 1}}},
				{ID: "b", GrantFlags: []string{"b_taken"}},
			},
		},
	}
}

func TestLoadValidGraph(t *testing.T) {
	g, err := Load(validNodes())
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if g.Len() != 3 {
		t.Fatalf("expected 3 nodes, got %d", g.Len())
	}

	n, ok := g.Node("palace")
	if !ok {
		t.Fatal("palace should exist")
	}
	if n.Kind != KindLocation {
		t.Fatalf("expected location, got %s", n.Kind)
	}

	children := g.ChildrenOf("palace")
	if len(children) != 1 || children[0].ID != "vizier" {
		t.Fatalf("unexpected children: %v", children)
	}
}

func TestAllPreservesDefinitionOrder(t *testing.T) {
	g, err := Load(validNodes())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"palace", "vizier", "aliBaba"}
	for i, n := range g.All() {
		if n.ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], n.ID)
		}
	}
}

func TestLoadRejectsDuplicateID(t *testing.T) {
	defs := validNodes()
	defs = append(defs, Node{ID: "palace", Kind: KindTool, Trigger: predicate.And()})
	assertDefinitionError(t, defs, "palace")
}

func TestLoadRejectsDanglingChild(t *testing.T) {
	defs := validNodes()
	defs[0].Children = append(defs[0].Children, "ghost")
	assertDefinitionError(t, defs, "palace")
}

func TestLoadRejectsMalformedPredicate(t *testing.T) {
	defs := validNodes()
	defs[1].Trigger = predicate.Predicate{Kind: "bogus"}
	assertDefinitionError(t, defs, "vizier")
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	defs := []Node{{ID: "x", Kind: "portal", Trigger: predicate.And()}}
	assertDefinitionError(t, defs, "x")
}

func TestLoadRejectsOptionsOnNonStory(t *testing.T) {
	defs := []Node{{
		ID:      "hammer",
		Kind:    KindTool,
		Trigger: predicate.And(),
		Options: []ChoiceOption{{ID: "a"}},
	}}
	assertDefinitionError(t, defs, "hammer")
}

func TestLoadRejectsDuplicateOptionID(t *testing.T) {
	defs := []Node{{
		ID:      "tale",
		Kind:    KindStory,
		Trigger: predicate.And(),
		Options: []ChoiceOption{{ID: "a"}, {ID: "a"}},
	}}
	assertDefinitionError(t, defs, "tale")
}

func TestLoadRejectsBadDelta(t *testing.T) {
	defs := []Node{{
		ID:      "tale",
		Kind:    KindStory,
		Trigger: predicate.And(),
		Options: []ChoiceOption{{
			ID:           "a",
			SignalDeltas: []SignalDelta{{Kind: DeltaSet, Key: "skills"}}, // missing member
		}},
	}}
	assertDefinitionError(t, defs, "tale")
}

func TestLoadRejectsFractionalCounterDelta(t *testing.T) {
	for _, kind := range []DeltaKind{DeltaCounter, DeltaDuration} {
		defs := []Node{{
			ID:      "tale",
			Kind:    KindStory,
			Trigger: predicate.And(),
			Options: []ChoiceOption{{
				ID:           "a",
				SignalDeltas: []SignalDelta{{Kind: kind, Key: "clicks", Amount: 0.5}},
			}},
		}}
		assertDefinitionError(t, defs, "tale")
	}
}

func TestLoadYAMLDocument(t *testing.T) {
	doc := `
nodes:
  - id: palace
    kind: location
    trigger:
      kind: counter_at_least
      key: logo_clicks
      min: 15
    on_unlock:
      grant_flags: [palace_open]
      notify:
        title: "Palace Gates"
    children: [vizier]
  - id: vizier
    kind: character
    trigger:
      kind: flag_set
      key: palace_open
`
	g, err := LoadYAML([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected yaml error: %v", err)
	}
	n, _ := g.Node("palace")
	if n.Trigger.Kind != predicate.KindCounterAtLeast || n.Trigger.Min != 15 {
		t.Fatalf("trigger not decoded: %+v", n.Trigger)
	}
	if len(n.OnUnlock.GrantFlags) != 1 || n.OnUnlock.GrantFlags[0] != "palace_open" {
		t.Fatalf("grants not decoded: %+v", n.OnUnlock)
	}
}

func TestLoadJSONDocument(t *testing.T) {
	doc := `{"nodes":[{"id":"p","kind":"location","trigger":{"kind":"and"}}]}`
	g, err := LoadJSON([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected json error: %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 node, got %d", g.Len())
	}
}

func TestLoadYAMLMalformed(t *testing.T) {
	if _, err := LoadYAML([]byte("nodes: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func assertDefinitionError(t *testing.T, defs []Node, nodeID string) {
	t.Helper()
	_, err := Load(defs)
	if err == nil {
		t.Fatal("expected DefinitionError")
	}
	var defErr *DefinitionError
	if !errors.As(err, &defErr) {
		t.Fatalf("expected DefinitionError, got %T: %v", err, err)
	}
	if defErr.NodeID != nodeID {
		t.Fatalf("expected error on node %q, got %q", nodeID, defErr.NodeID)
	}
}
