package predicate

import (
	"log"

	"github.com/hmansour/progression/internal/signal"
)

// #region evaluate

// Evaluate tests a predicate against a signal snapshot. Pure and total:
// missing keys read as zero/empty/false. Composites short-circuit.
//
// A malformed tree (unknown kind) evaluates false with a logged anomaly
// rather than erroring; well-formed graphs reject those at load time.
func Evaluate(p Predicate, snap signal.Snapshot) bool {
	switch p.Kind {
	case KindCounterAtLeast:
		return snap.Counter(p.Key) >= p.Min
	case KindDurationAtLeast:
		return snap.Duration(p.Key) >= p.Min
	case KindFlagSet:
		return snap.Flag(p.Key)
	case KindSetContainsAll:
		for _, m := range p.Members {
			if !snap.SetContains(p.Key, m) {
				return false
			}
		}
		return true
	case KindAttributeAtLeast:
		return snap.Attribute(p.Key) >= p.Value
	case KindAttributeAtMost:
		return snap.Attribute(p.Key) <= p.Value
	case KindAnd:
		for _, child := range p.All {
			if !Evaluate(child, snap) {
				return false
			}
		}
		return true
	case KindOr:
		for _, child := range p.Any {
			if Evaluate(child, snap) {
				return true
			}
		}
		return false
	default:
		log.Printf("[PREDICATE] unknown kind %q, treating as false", p.Kind)
		return false
	}
}

// #endregion evaluate
