package engine

import (
	"testing"

	"github.com/hmansour/progression/internal/graph"
	"github.com/hmansour/progression/internal/persist"
	"github.com/hmansour/progression/internal/predicate"
	"github.com/hmansour/progression/internal/signal"
)

func mustLoad(t *testing.T, defs []graph.Node) *graph.Graph {
	t.Helper()
	g, err := graph.Load(defs)
	if err != nil {
		t.Fatalf("load graph: %v", err)
	}
	return g
}

func collect(eng *Engine) *[]string {
	var events []string
	eng.Subscribe(func(ev Event) {
		events = append(events, ev.NodeID)
	})
	return &events
}

func TestCounterThresholdUnlock(t *testing.T) {
	g := mustLoad(t, []graph.Node{{
		ID:      "palace",
		Kind:    graph.KindLocation,
		Trigger: predicate.CounterAtLeast("logo_clicks", 15),
	}})
	store := signal.NewStore(nil, "test")
	eng := New(g, store)
	events := collect(eng)
	eng.Start()

	for i := 0; i < 14; i++ {
		store.Increment("logo_clicks", 1)
	}
	if len(*events) != 0 {
		t.Fatalf("no event expected before threshold, got %v", *events)
	}

	store.Increment("logo_clicks", 1)
	if len(*events) != 1 || (*events)[0] != "palace" {
		t.Fatalf("expected exactly one palace event, got %v", *events)
	}
	if !eng.Unlocked("palace") {
		t.Fatal("palace should be unlocked")
	}
}

func TestSetMembershipUnlock(t *testing.T) {
	g := mustLoad(t, []graph.Node{{
		ID:      "desert",
		Kind:    graph.KindLocation,
		Trigger: predicate.And(predicate.SetContainsAll("skills", "flow", "time")),
	}})
	store := signal.NewStore(nil, "test")
	eng := New(g, store)
	events := collect(eng)
	eng.Start()

	store.AddToSet("skills", "flow")
	if len(*events) != 0 {
		t.Fatal("one of two members should not unlock")
	}
	store.AddToSet("skills", "flow") // duplicate, no effect
	if len(*events) != 0 {
		t.Fatal("duplicate member should not unlock")
	}
	store.AddToSet("skills", "time")
	if len(*events) != 1 || (*events)[0] != "desert" {
		t.Fatalf("expected desert event, got %v", *events)
	}
}

func TestUnlockIsExactlyOnce(t *testing.T) {
	g := mustLoad(t, []graph.Node{{
		ID:      "palace",
		Kind:    graph.KindLocation,
		Trigger: predicate.CounterAtLeast("clicks", 1),
	}})
	store := signal.NewStore(nil, "test")
	eng := New(g, store)
	events := collect(eng)
	eng.Start()

	store.Increment("clicks", 1)
	eng.OnSignalChanged()
	eng.OnSignalChanged()
	store.Increment("clicks", 5)

	if len(*events) != 1 {
		t.Fatalf("expected exactly one event, got %v", *events)
	}

	members := store.Snapshot().SetMembers(signal.SetUnlockedNodes)
	if len(members) != 1 || members[0] != "palace" {
		t.Fatalf("unlocked_nodes should contain palace exactly once, got %v", members)
	}
}

func TestVacuousTriggerUnlocksAtStart(t *testing.T) {
	g := mustLoad(t, []graph.Node{{
		ID:      "bazaar",
		Kind:    graph.KindLocation,
		Trigger: predicate.And(),
	}})
	store := signal.NewStore(nil, "test")
	eng := New(g, store)
	events := collect(eng)

	if len(*events) != 0 {
		t.Fatal("nothing should unlock before Start")
	}
	eng.Start()
	if len(*events) != 1 || (*events)[0] != "bazaar" {
		t.Fatalf("vacuous node should unlock at start, got %v", *events)
	}
}

func TestEvaluationDeferredUntilStart(t *testing.T) {
	g := mustLoad(t, []graph.Node{{
		ID:      "palace",
		Kind:    graph.KindLocation,
		Trigger: predicate.CounterAtLeast("clicks", 1),
	}})
	store := signal.NewStore(nil, "test")
	eng := New(g, store)
	events := collect(eng)

	store.Increment("clicks", 3) // queued, not dropped
	if len(*events) != 0 {
		t.Fatal("no events before Start")
	}
	eng.Start()
	if len(*events) != 1 {
		t.Fatalf("queued evaluation should fire at Start, got %v", *events)
	}
}

func TestGrantCascadeUnlocksDownstream(t *testing.T) {
	g := mustLoad(t, []graph.Node{
		{
			ID:      "palace",
			Kind:    graph.KindLocation,
			Trigger: predicate.CounterAtLeast("clicks", 1),
			OnUnlock: graph.UnlockEffect{
				GrantFlags: []string{"palace_open"},
			},
			Children: []string{"vizier"},
		},
		{
			ID:      "vizier",
			Kind:    graph.KindCharacter,
			Trigger: predicate.FlagSet("palace_open"),
		},
	})
	store := signal.NewStore(nil, "test")
	eng := New(g, store)
	events := collect(eng)
	eng.Start()

	store.Increment("clicks", 1)

	if len(*events) != 2 {
		t.Fatalf("expected cascade of 2 events, got %v", *events)
	}
	if (*events)[0] != "palace" || (*events)[1] != "vizier" {
		t.Fatalf("cascade order wrong: %v", *events)
	}
}

func TestUnlockedNodesSetFeedsAchievements(t *testing.T) {
	g := mustLoad(t, []graph.Node{
		{ID: "a", Kind: graph.KindLocation, Trigger: predicate.CounterAtLeast("x", 1)},
		{ID: "b", Kind: graph.KindLocation, Trigger: predicate.CounterAtLeast("y", 1)},
		{
			ID:      "both",
			Kind:    graph.KindAchievement,
			Trigger: predicate.SetContainsAll(signal.SetUnlockedNodes, "a", "b"),
		},
	})
	store := signal.NewStore(nil, "test")
	eng := New(g, store)
	events := collect(eng)
	eng.Start()

	store.Increment("x", 1)
	if len(*events) != 1 {
		t.Fatalf("only a should unlock, got %v", *events)
	}
	store.Increment("y", 1)
	if len(*events) != 3 {
		t.Fatalf("b then achievement should unlock, got %v", *events)
	}
	if (*events)[2] != "both" {
		t.Fatalf("achievement should come last, got %v", *events)
	}
}

func TestDefinitionOrderBreaksTies(t *testing.T) {
	defs := []graph.Node{
		{ID: "third", Kind: graph.KindTool, Trigger: predicate.FlagSet("go")},
		{ID: "first", Kind: graph.KindTool, Trigger: predicate.FlagSet("go")},
		{ID: "second", Kind: graph.KindTool, Trigger: predicate.FlagSet("go")},
	}

	run := func() []string {
		g := mustLoad(t, defs)
		store := signal.NewStore(nil, "test")
		eng := New(g, store)
		events := collect(eng)
		eng.Start()
		store.SetFlag("go")
		return *events
	}

	first := run()
	if len(first) != 3 {
		t.Fatalf("expected 3 events, got %v", first)
	}
	want := []string{"third", "first", "second"}
	for i := range want {
		if first[i] != want[i] {
			t.Fatalf("definition order violated: %v", first)
		}
	}
	// Determinism: identical mutation sequence, identical event sequence.
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("runs diverged: %v vs %v", first, second)
		}
	}
}

func TestPersistedUnlocksRestoredAtStart(t *testing.T) {
	adapter := persist.NewMemoryAdapter()
	defs := []graph.Node{{
		ID:      "palace",
		Kind:    graph.KindLocation,
		Trigger: predicate.CounterAtLeast("clicks", 1),
	}}

	store := signal.NewStore(adapter, "u1")
	store.SetSaveWindow(0)
	g := mustLoad(t, defs)
	eng := New(g, store)
	eng.Start()
	store.Increment("clicks", 1)
	if !eng.Unlocked("palace") {
		t.Fatal("setup failed")
	}

	// Fresh engine over the same profile: no duplicate event for palace.
	store2 := signal.NewStore(adapter, "u1")
	store2.Load()
	eng2 := New(mustLoad(t, defs), store2)
	events := collect(eng2)
	eng2.Start()

	if len(*events) != 0 {
		t.Fatalf("restored unlock must not re-emit, got %v", *events)
	}
	if !eng2.Unlocked("palace") {
		t.Fatal("palace should be restored as unlocked")
	}
}

func TestUnknownPersistedIDsDropped(t *testing.T) {
	store := signal.NewStore(nil, "test")
	store.AddToSet(signal.SetUnlockedNodes, "ghost")

	g := mustLoad(t, []graph.Node{{
		ID: "palace", Kind: graph.KindLocation, Trigger: predicate.CounterAtLeast("clicks", 1),
	}})
	eng := New(g, store)
	eng.Start() // must not panic

	if eng.Unlocked("ghost") {
		t.Fatal("unknown id should be dropped")
	}
	if len(eng.UnlockedNodes()) != 0 {
		t.Fatalf("nothing should be unlocked, got %v", eng.UnlockedNodes())
	}
}

func TestReplaceGraphPreservesKnownUnlocks(t *testing.T) {
	store := signal.NewStore(nil, "test")
	g := mustLoad(t, []graph.Node{
		{ID: "palace", Kind: graph.KindLocation, Trigger: predicate.CounterAtLeast("clicks", 1)},
		{ID: "attic", Kind: graph.KindLocation, Trigger: predicate.CounterAtLeast("clicks", 2)},
	})
	eng := New(g, store)
	eng.Start()
	store.Increment("clicks", 2)
	if !eng.Unlocked("palace") || !eng.Unlocked("attic") {
		t.Fatal("setup failed")
	}

	// New content drops attic, keeps palace.
	replacement := mustLoad(t, []graph.Node{
		{ID: "palace", Kind: graph.KindLocation, Trigger: predicate.CounterAtLeast("clicks", 1)},
	})
	eng.ReplaceGraph(replacement)

	if !eng.Unlocked("palace") {
		t.Fatal("palace should survive the reload")
	}
	if eng.Unlocked("attic") {
		t.Fatal("attic is gone from the graph")
	}
}

func TestUnsubscribeStopsEvents(t *testing.T) {
	g := mustLoad(t, []graph.Node{{
		ID: "palace", Kind: graph.KindLocation, Trigger: predicate.CounterAtLeast("clicks", 1),
	}})
	store := signal.NewStore(nil, "test")
	eng := New(g, store)

	var got int
	unsubscribe := eng.Subscribe(func(Event) { got++ })
	unsubscribe()
	eng.Start()
	store.Increment("clicks", 1)

	if got != 0 {
		t.Fatalf("unsubscribed observer received %d events", got)
	}
}
