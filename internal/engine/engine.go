package engine

import (
	"log"

	"github.com/hmansour/progression/internal/graph"
	"github.com/hmansour/progression/internal/predicate"
	"github.com/hmansour/progression/internal/signal"
)

// #region event

// Event is emitted exactly once when a node transitions locked -> unlocked.
type Event struct {
	NodeID string
	Kind   graph.NodeKind
	Notify graph.NotificationPayload
}

// Observer receives unlock events. Observers run synchronously inside the
// evaluation pass, in subscription order.
type Observer func(Event)

type subscription struct {
	id int
	fn Observer
}

// #endregion event

// #region engine

// Engine re-evaluates locked nodes whenever signals change and performs
// exactly-once unlock transitions. Unlocks are permanent: re-satisfying a
// trigger after unlock is a no-op.
//
// The engine follows the single-threaded cooperative model: one instance per
// user session, callers serialize access. Only the store's write-behind
// timer runs off-thread, and it never calls back in.
type Engine struct {
	graph    *graph.Graph
	store    *signal.Store
	unlocked map[string]bool

	observers []subscription
	nextSubID int

	ready  bool
	inPass bool // re-entrancy guard during an evaluation pass
	rescan bool // a mutation landed mid-pass; full re-scan needed
}

// New wires an engine to a graph and store. The store's change hook is
// claimed by the engine: every mutation triggers re-evaluation directly,
// no polling.
func New(g *graph.Graph, store *signal.Store) *Engine {
	e := &Engine{
		graph:    g,
		store:    store,
		unlocked: make(map[string]bool),
	}
	store.SetOnChange(e.OnSignalChanged)
	return e
}

// Subscribe registers an unlock observer and returns its unsubscribe func.
func (e *Engine) Subscribe(fn Observer) func() {
	id := e.nextSubID
	e.nextSubID++
	e.observers = append(e.observers, subscription{id: id, fn: fn})
	return func() {
		for i, sub := range e.observers {
			if sub.id == id {
				e.observers = append(e.observers[:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

// #endregion engine

// #region start

// Start derives unlocked state from the loaded store and runs the first full
// evaluation pass, so mutations made before Start are never lost. Persisted
// node ids unknown to the graph are dropped with a warning.
func (e *Engine) Start() {
	snap := e.store.Snapshot()
	for _, id := range snap.SetMembers(signal.SetUnlockedNodes) {
		if _, ok := e.graph.Node(id); !ok {
			log.Printf("[ENGINE] persisted unlock %q not in graph, dropping", id)
			continue
		}
		e.unlocked[id] = true
	}
	e.ready = true
	e.OnSignalChanged()
}

// ReplaceGraph swaps in a new content graph wholesale. Unlocked ids still
// present in the new graph are preserved; unknown ids are dropped with a
// warning. State is re-derived and re-evaluated immediately.
func (e *Engine) ReplaceGraph(g *graph.Graph) {
	e.graph = g
	e.unlocked = make(map[string]bool)
	snap := e.store.Snapshot()
	for _, id := range snap.SetMembers(signal.SetUnlockedNodes) {
		if _, ok := g.Node(id); !ok {
			log.Printf("[ENGINE] unlock %q not in replacement graph, dropping", id)
			continue
		}
		e.unlocked[id] = true
	}
	if e.ready {
		e.OnSignalChanged()
	}
}

// #endregion start

// #region evaluation

// OnSignalChanged re-evaluates all locked nodes against the current
// snapshot. Nodes are processed in definition order, so runs over the same
// mutation sequence emit identical event sequences. Calling it when nothing
// newly satisfies is a pure no-op.
func (e *Engine) OnSignalChanged() {
	if !e.ready {
		// Start always runs a full pass, so nothing is lost by returning.
		return
	}
	if e.inPass {
		// Grants and cascades mutate the store mid-pass; fold them into the
		// running pass instead of recursing.
		e.rescan = true
		return
	}
	e.inPass = true
	defer func() { e.inPass = false }()

	candidates := e.lockedNodes()
	for len(candidates) > 0 {
		e.rescan = false
		var unlockedNow []*graph.Node
		snap := e.store.Snapshot()
		for _, n := range candidates {
			if e.unlocked[n.ID] {
				continue
			}
			if predicate.Evaluate(n.Trigger, snap) {
				e.applyUnlock(n)
				unlockedNow = append(unlockedNow, n)
				snap = e.store.Snapshot()
			}
		}
		if e.rescan {
			candidates = e.lockedNodes()
		} else {
			candidates = e.lockedChildren(unlockedNow)
		}
	}
}

// applyUnlock performs the one-time transition: grants, unlocked-set record,
// event emission.
func (e *Engine) applyUnlock(n *graph.Node) {
	e.unlocked[n.ID] = true

	for _, flag := range n.OnUnlock.GrantFlags {
		e.store.SetFlag(flag)
	}
	for set, members := range n.OnUnlock.GrantSets {
		for _, m := range members {
			e.store.AddToSet(set, m)
		}
	}
	e.store.AddToSet(signal.SetUnlockedNodes, n.ID)

	log.Printf("[ENGINE] unlock node=%s kind=%s", n.ID, n.Kind)
	ev := Event{NodeID: n.ID, Kind: n.Kind, Notify: n.OnUnlock.Notify}
	for _, sub := range e.observers {
		sub.fn(ev)
	}
}

// lockedNodes returns all not-yet-unlocked nodes in definition order.
func (e *Engine) lockedNodes() []*graph.Node {
	var out []*graph.Node
	for _, n := range e.graph.All() {
		if !e.unlocked[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// lockedChildren collects the still-locked declared children of the given
// nodes, deduplicated, preserving declaration order.
func (e *Engine) lockedChildren(parents []*graph.Node) []*graph.Node {
	var out []*graph.Node
	seen := make(map[string]bool)
	for _, p := range parents {
		for _, child := range e.graph.ChildrenOf(p.ID) {
			if e.unlocked[child.ID] || seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			out = append(out, child)
		}
	}
	return out
}

// #endregion evaluation

// #region accessors

// Unlocked reports whether a node has been unlocked.
func (e *Engine) Unlocked(nodeID string) bool {
	return e.unlocked[nodeID]
}

// UnlockedNodes returns unlocked node ids in definition order.
func (e *Engine) UnlockedNodes() []string {
	var out []string
	for _, n := range e.graph.All() {
		if e.unlocked[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

// Graph returns the active content graph.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// #endregion accessors
