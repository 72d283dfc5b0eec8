package replay

import (
	"fmt"

	"github.com/hmansour/progression/internal/engine"
	"github.com/hmansour/progression/internal/graph"
	"github.com/hmansour/progression/internal/signal"
	"github.com/hmansour/progression/internal/story"
)

// #region result

// Result is the outcome of replaying a fixture against a fresh engine.
type Result struct {
	Pass     bool
	Emitted  []string // node ids in emission order
	Expected []string
	Mismatch string // first divergence, empty when Pass
	Errors   []string
}

// #endregion result

// #region run

// Run replays the fixture's steps against a fresh in-memory store and engine
// built from the given graph, then diffs the emitted unlock-event sequence
// against the fixture's expectation. Entirely in-memory, no persistence.
//
// Identical mutation sequences yield identical event sequences, so a fixture
// recorded from a live run replays byte-for-byte.
func Run(g *graph.Graph, fixture *Fixture) Result {
	store := signal.NewStore(nil, "replay")
	eng := engine.New(g, store)
	resolver := story.NewResolver(store, eng)

	var emitted []string
	eng.Subscribe(func(ev engine.Event) {
		emitted = append(emitted, ev.NodeID)
	})
	eng.Start()

	var errs []string
	for i, step := range fixture.Steps {
		switch step.Kind {
		case StepMutation:
			store.Apply(step.Op)
		case StepResolve:
			if err := resolver.Resolve(step.StoryID, step.OptionID); err != nil {
				errs = append(errs, fmt.Sprintf("step %d: resolve %s/%s: %v", i, step.StoryID, step.OptionID, err))
			}
		default:
			errs = append(errs, fmt.Sprintf("step %d: unknown kind %q", i, step.Kind))
		}
	}

	result := Result{
		Emitted:  emitted,
		Expected: fixture.ExpectedEvents,
		Errors:   errs,
	}
	result.Mismatch = diff(fixture.ExpectedEvents, emitted)
	result.Pass = result.Mismatch == "" && len(errs) == 0
	return result
}

// diff returns a description of the first divergence between the expected
// and emitted sequences, or "" when they match exactly.
func diff(expected, emitted []string) string {
	for i := range expected {
		if i >= len(emitted) {
			return fmt.Sprintf("event %d: expected %q, got nothing", i, expected[i])
		}
		if emitted[i] != expected[i] {
			return fmt.Sprintf("event %d: expected %q, got %q", i, expected[i], emitted[i])
		}
	}
	if len(emitted) > len(expected) {
		return fmt.Sprintf("event %d: unexpected %q", len(expected), emitted[len(expected)])
	}
	return ""
}

// #endregion run
