package predicate

import "fmt"

// #region kind

// Kind enumerates the predicate forms.
type Kind string

const (
	KindCounterAtLeast   Kind = "counter_at_least"
	KindDurationAtLeast  Kind = "duration_at_least"
	KindFlagSet          Kind = "flag_set"
	KindSetContainsAll   Kind = "set_contains_all"
	KindAttributeAtLeast Kind = "attribute_at_least"
	KindAttributeAtMost  Kind = "attribute_at_most"
	KindAnd              Kind = "and"
	KindOr               Kind = "or"
)

// #endregion kind

// #region predicate

// Predicate is a declarative trigger expression: data, not code. Leaves test
// a single signal against a threshold or membership list; And/Or compose.
// A Predicate is a pure function of a signal snapshot.
type Predicate struct {
	Kind Kind `json:"kind" yaml:"kind"`

	// Leaf fields.
	Key     string   `json:"key,omitempty" yaml:"key,omitempty"`
	Min     int64    `json:"min,omitempty" yaml:"min,omitempty"`         // counter_at_least, duration_at_least
	Value   float64  `json:"value,omitempty" yaml:"value,omitempty"`     // attribute thresholds
	Members []string `json:"members,omitempty" yaml:"members,omitempty"` // set_contains_all

	// Composite fields.
	All []Predicate `json:"all,omitempty" yaml:"all,omitempty"` // and
	Any []Predicate `json:"any,omitempty" yaml:"any,omitempty"` // or
}

// #endregion predicate

// #region constructors

// CounterAtLeast matches when counter key has reached n.
func CounterAtLeast(key string, n int64) Predicate {
	return Predicate{Kind: KindCounterAtLeast, Key: key, Min: n}
}

// DurationAtLeast matches when accumulated duration key has reached ms.
func DurationAtLeast(key string, ms int64) Predicate {
	return Predicate{Kind: KindDurationAtLeast, Key: key, Min: ms}
}

// FlagSet matches when the flag has been set.
func FlagSet(key string) Predicate {
	return Predicate{Kind: KindFlagSet, Key: key}
}

// SetContainsAll matches when set key contains every listed member.
func SetContainsAll(key string, members ...string) Predicate {
	return Predicate{Kind: KindSetContainsAll, Key: key, Members: members}
}

// AttributeAtLeast matches when attribute key is >= v.
func AttributeAtLeast(key string, v float64) Predicate {
	return Predicate{Kind: KindAttributeAtLeast, Key: key, Value: v}
}

// AttributeAtMost matches when attribute key is <= v.
func AttributeAtMost(key string, v float64) Predicate {
	return Predicate{Kind: KindAttributeAtMost, Key: key, Value: v}
}

// And matches when every child matches. And() with no children is vacuously
// true: a node with no requirements auto-unlocks.
func And(children ...Predicate) Predicate {
	return Predicate{Kind: KindAnd, All: children}
}

// Or matches when any child matches. Or() with no children is false.
func Or(children ...Predicate) Predicate {
	return Predicate{Kind: KindOr, Any: children}
}

// #endregion constructors

// #region validate

// Validate checks structural well-formedness: known kinds, required leaf
// fields, recursively for composites. Content graphs call this at load time
// so evaluation never sees a malformed tree.
func Validate(p Predicate) error {
	switch p.Kind {
	case KindCounterAtLeast, KindDurationAtLeast:
		if p.Key == "" {
			return fmt.Errorf("%s: missing key", p.Kind)
		}
		if p.Min < 0 {
			return fmt.Errorf("%s %q: negative threshold %d", p.Kind, p.Key, p.Min)
		}
	case KindFlagSet:
		if p.Key == "" {
			return fmt.Errorf("%s: missing key", p.Kind)
		}
	case KindSetContainsAll:
		if p.Key == "" {
			return fmt.Errorf("%s: missing key", p.Kind)
		}
		if len(p.Members) == 0 {
			return fmt.Errorf("%s %q: empty member list", p.Kind, p.Key)
		}
	case KindAttributeAtLeast, KindAttributeAtMost:
		if p.Key == "" {
			return fmt.Errorf("%s: missing key", p.Kind)
		}
	case KindAnd:
		for i, child := range p.All {
			if err := Validate(child); err != nil {
				return fmt.Errorf("and[%d]: %w", i, err)
			}
		}
	case KindOr:
		for i, child := range p.Any {
			if err := Validate(child); err != nil {
				return fmt.Errorf("or[%d]: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
	return nil
}

// #endregion validate
