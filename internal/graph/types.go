package graph

import (
	"fmt"

	"github.com/hmansour/progression/internal/predicate"
)

// #region node-kind

// NodeKind categorizes a unit of gated content.
type NodeKind string

const (
	KindLocation    NodeKind = "location"
	KindStory       NodeKind = "story"
	KindCharacter   NodeKind = "character"
	KindTool        NodeKind = "tool"
	KindAchievement NodeKind = "achievement"
)

var validKinds = map[NodeKind]bool{
	KindLocation:    true,
	KindStory:       true,
	KindCharacter:   true,
	KindTool:        true,
	KindAchievement: true,
}

// #endregion node-kind

// #region notification

// NotificationPayload is the presentation hint attached to an unlock event.
// The engine never interprets it.
type NotificationPayload struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Body  string `json:"body,omitempty" yaml:"body,omitempty"`
	Icon  string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// #endregion notification

// #region unlock-effect

// UnlockEffect describes the one-time effect of unlocking a node. Grants are
// idempotent signal additions.
type UnlockEffect struct {
	GrantFlags []string            `json:"grant_flags,omitempty" yaml:"grant_flags,omitempty"`
	GrantSets  map[string][]string `json:"grant_sets,omitempty" yaml:"grant_sets,omitempty"`
	Notify     NotificationPayload `json:"notify,omitempty" yaml:"notify,omitempty"`
}

// #endregion unlock-effect

// #region signal-delta

// DeltaKind enumerates the signal mutations a choice may carry.
type DeltaKind string

const (
	DeltaCounter   DeltaKind = "counter"
	DeltaDuration  DeltaKind = "duration"
	DeltaFlag      DeltaKind = "flag"
	DeltaSet       DeltaKind = "set"
	DeltaAttribute DeltaKind = "attribute"
)

// SignalDelta is one signal mutation applied when a choice resolves.
// Attribute deltas are the only way attribute scores move, keeping them
// auditable.
type SignalDelta struct {
	Kind   DeltaKind `json:"kind" yaml:"kind"`
	Key    string    `json:"key" yaml:"key"`
	Amount float64   `json:"amount,omitempty" yaml:"amount,omitempty"`
	Member string    `json:"member,omitempty" yaml:"member,omitempty"`
}

// #endregion signal-delta

// #region choice-option

// ChoiceOption is one branch of an interactive story node.
type ChoiceOption struct {
	ID           string        `json:"id" yaml:"id"`
	Label        string        `json:"label,omitempty" yaml:"label,omitempty"`
	SignalDeltas []SignalDelta `json:"signal_deltas,omitempty" yaml:"signal_deltas,omitempty"`
	GrantFlags   []string      `json:"grant_flags,omitempty" yaml:"grant_flags,omitempty"`
}

// #endregion choice-option

// #region node

// Node is a unit of gated content. Defined statically at load time; the
// mutable locked/unlocked state lives in the signal store, not here.
type Node struct {
	ID       string              `json:"id" yaml:"id"`
	Kind     NodeKind            `json:"kind" yaml:"kind"`
	Trigger  predicate.Predicate `json:"trigger" yaml:"trigger"`
	OnUnlock UnlockEffect        `json:"on_unlock,omitempty" yaml:"on_unlock,omitempty"`
	Children []string            `json:"children,omitempty" yaml:"children,omitempty"`
	Options  []ChoiceOption      `json:"options,omitempty" yaml:"options,omitempty"`
}

// #endregion node

// #region definition-error

// DefinitionError reports a malformed content graph: duplicate ids, dangling
// child references, malformed predicates. Fatal at load time.
type DefinitionError struct {
	NodeID string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("graph definition: %s", e.Reason)
	}
	return fmt.Sprintf("graph definition, node %q: %s", e.NodeID, e.Reason)
}

// #endregion definition-error
