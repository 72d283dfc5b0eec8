package story

import (
	"errors"
	"fmt"
	"log"

	"github.com/hmansour/progression/internal/engine"
	"github.com/hmansour/progression/internal/graph"
	"github.com/hmansour/progression/internal/signal"
)

// #region errors

// AlreadyResolvedError rejects a second resolution of the same story. The
// caller treats it as a no-op, not a crash; no deltas are applied.
type AlreadyResolvedError struct {
	StoryID string
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("story %q already resolved", e.StoryID)
}

var (
	// ErrNotStory is returned when the node exists but is not a story.
	ErrNotStory = errors.New("node is not a story")
	// ErrUnknownStory is returned when the story node id is not in the graph.
	ErrUnknownStory = errors.New("unknown story node")
	// ErrUnknownOption is returned when the option id is not declared on the story.
	ErrUnknownOption = errors.New("unknown option")
	// ErrStoryLocked is returned when the story has not been unlocked yet.
	ErrStoryLocked = errors.New("story not yet unlocked")
)

// #endregion errors

// #region recorder

// Recorder receives resolved choices for the audit trail. Optional.
type Recorder interface {
	RecordChoice(storyID, optionID string)
}

// #endregion recorder

// #region resolver

// Resolver applies player choices on story nodes: each option carries its
// own signal deltas and direct grants, distinct from trigger-gated unlocks.
// Content is read through the engine so a graph hot-swap takes effect here
// too.
type Resolver struct {
	store    *signal.Store
	engine   *engine.Engine
	recorder Recorder
}

// NewResolver wires a resolver against the same store and engine as the rest
// of the session.
func NewResolver(store *signal.Store, eng *engine.Engine) *Resolver {
	return &Resolver{store: store, engine: eng}
}

// SetRecorder installs the optional choice audit recorder.
func (r *Resolver) SetRecorder(rec Recorder) {
	r.recorder = rec
}

// #endregion resolver

// #region present

// PresentChoices returns the declared options of an unlocked story node.
func (r *Resolver) PresentChoices(storyID string) ([]graph.ChoiceOption, error) {
	node, ok := r.engine.Graph().Node(storyID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStory, storyID)
	}
	if node.Kind != graph.KindStory {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotStory, storyID, node.Kind)
	}
	if !r.engine.Unlocked(storyID) {
		return nil, fmt.Errorf("%w: %s", ErrStoryLocked, storyID)
	}
	return node.Options, nil
}

// #endregion present

// #region resolve

// Resolve applies the chosen option's signal deltas and grants, marks the
// story resolved, and triggers engine re-evaluation so cascades fire
// immediately. A story resolves at most once; the second attempt returns
// AlreadyResolvedError before any delta is applied.
func (r *Resolver) Resolve(storyID, optionID string) error {
	node, ok := r.engine.Graph().Node(storyID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStory, storyID)
	}
	if node.Kind != graph.KindStory {
		return fmt.Errorf("%w: %s is %s", ErrNotStory, storyID, node.Kind)
	}
	if !r.engine.Unlocked(storyID) {
		return fmt.Errorf("%w: %s", ErrStoryLocked, storyID)
	}
	if r.store.Snapshot().SetContains(signal.SetResolvedStories, storyID) {
		return &AlreadyResolvedError{StoryID: storyID}
	}

	var option *graph.ChoiceOption
	for i := range node.Options {
		if node.Options[i].ID == optionID {
			option = &node.Options[i]
			break
		}
	}
	if option == nil {
		return fmt.Errorf("%w: %s on story %s", ErrUnknownOption, optionID, storyID)
	}

	// Mark resolved before deltas so a cascade cannot re-enter this story.
	r.store.AddToSet(signal.SetResolvedStories, storyID)

	for _, d := range option.SignalDeltas {
		r.applyDelta(d)
	}
	for _, flag := range option.GrantFlags {
		r.store.SetFlag(flag)
	}

	log.Printf("[STORY] resolve story=%s option=%s", storyID, optionID)
	if r.recorder != nil {
		r.recorder.RecordChoice(storyID, optionID)
	}

	r.engine.OnSignalChanged()
	return nil
}

// applyDelta routes one declared delta to the matching store mutation.
func (r *Resolver) applyDelta(d graph.SignalDelta) {
	switch d.Kind {
	case graph.DeltaCounter:
		r.store.Increment(d.Key, int64(d.Amount))
	case graph.DeltaDuration:
		r.store.AddDuration(d.Key, int64(d.Amount))
	case graph.DeltaFlag:
		r.store.SetFlag(d.Key)
	case graph.DeltaSet:
		r.store.AddToSet(d.Key, d.Member)
	case graph.DeltaAttribute:
		r.store.AdjustAttribute(d.Key, d.Amount)
	default:
		// Unreachable for graphs that passed load validation.
		log.Printf("[STORY] unknown delta kind %q for key %q, skipping", d.Kind, d.Key)
	}
}

// #endregion resolve

// #region resolved

// Resolved reports whether a story's choice has been made.
func (r *Resolver) Resolved(storyID string) bool {
	return r.store.Snapshot().SetContains(signal.SetResolvedStories, storyID)
}

// #endregion resolved
