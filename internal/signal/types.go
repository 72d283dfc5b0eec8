package signal

// #region well-known-keys

// SetUnlockedNodes is the set recording every node id the engine has
// transitioned to unlocked.
const SetUnlockedNodes = "unlocked_nodes"

// SetResolvedStories is the set recording every story node whose choice has
// been resolved.
const SetResolvedStories = "resolved_stories"

// #endregion well-known-keys

// #region snapshot

// Snapshot is an immutable view of the accumulated signals. Predicates are
// evaluated against a Snapshot, never against the live store.
type Snapshot struct {
	Counters   map[string]int64
	Durations  map[string]int64 // accumulated milliseconds per category
	Flags      map[string]bool
	Sets       map[string]map[string]bool
	Attributes map[string]float64
}

// Counter returns the counter value, zero when absent.
func (s Snapshot) Counter(key string) int64 {
	return s.Counters[key]
}

// Duration returns accumulated milliseconds, zero when absent.
func (s Snapshot) Duration(key string) int64 {
	return s.Durations[key]
}

// Flag reports whether the flag has been set.
func (s Snapshot) Flag(key string) bool {
	return s.Flags[key]
}

// SetContains reports whether member is in the named set.
func (s Snapshot) SetContains(key, member string) bool {
	return s.Sets[key][member]
}

// SetMembers returns the members of the named set in unspecified order.
func (s Snapshot) SetMembers(key string) []string {
	members := make([]string, 0, len(s.Sets[key]))
	for m := range s.Sets[key] {
		members = append(members, m)
	}
	return members
}

// Attribute returns the attribute score, zero when absent.
func (s Snapshot) Attribute(key string) float64 {
	return s.Attributes[key]
}

// #endregion snapshot

// #region profile

// profile is the serialized form of the store, one JSON document per user.
type profile struct {
	SchemaVersion int                 `json:"schema_version"`
	Counters      map[string]int64    `json:"counters,omitempty"`
	Durations     map[string]int64    `json:"durations,omitempty"`
	Flags         []string            `json:"flags,omitempty"`
	Sets          map[string][]string `json:"sets,omitempty"`
	Attributes    map[string]float64  `json:"attributes,omitempty"`
}

const profileSchemaVersion = 1

// #endregion profile

// #region mutation-op

// OpKind enumerates the mutation operations a store accepts.
type OpKind string

const (
	OpIncrement       OpKind = "increment"
	OpAddDuration     OpKind = "add_duration"
	OpSetFlag         OpKind = "set_flag"
	OpAddToSet        OpKind = "add_to_set"
	OpAdjustAttribute OpKind = "adjust_attribute"
)

// MutationOp records a single store mutation for journaling and replay.
type MutationOp struct {
	Kind   OpKind  `json:"kind"`
	Key    string  `json:"key"`
	Amount float64 `json:"amount,omitempty"`
	Member string  `json:"member,omitempty"`
}

// Journal receives every mutation applied to a store, in order.
type Journal interface {
	Record(op MutationOp)
}

// #endregion mutation-op
