package signal

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/hmansour/progression/internal/persist"
)

// #region store

// Store accumulates user signals: monotonic counters, durations, flags and
// sets, plus signed attribute scores. Counters, flags and sets never lose
// members; attributes move only through explicit deltas.
//
// Mutations are synchronous. Persistence is write-behind: each mutation marks
// the store dirty and arms a short timer so bursts coalesce into one save.
type Store struct {
	mu         sync.Mutex
	counters   map[string]int64
	durations  map[string]int64
	flags      map[string]bool
	sets       map[string]map[string]bool
	attributes map[string]float64

	adapter    persist.Adapter
	profileKey string
	saveWindow time.Duration

	dirty    atomic.Bool
	saveWait *time.Timer

	onChange func()
	journal  Journal
}

// DefaultSaveWindow is the batch window for coalescing writes.
const DefaultSaveWindow = 250 * time.Millisecond

// NewStore creates an empty store bound to the given adapter and profile key.
// adapter may be nil for a purely in-memory store.
func NewStore(adapter persist.Adapter, profileKey string) *Store {
	return &Store{
		counters:   make(map[string]int64),
		durations:  make(map[string]int64),
		flags:      make(map[string]bool),
		sets:       make(map[string]map[string]bool),
		attributes: make(map[string]float64),
		adapter:    adapter,
		profileKey: profileKey,
		saveWindow: DefaultSaveWindow,
	}
}

// SetSaveWindow overrides the write-coalescing window. Zero saves on every
// mutation.
func (s *Store) SetSaveWindow(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveWindow = d
}

// SetOnChange installs the hook invoked after every mutation. The unlock
// engine wires its re-evaluation here.
func (s *Store) SetOnChange(fn func()) {
	s.onChange = fn
}

// SetJournal installs a mutation journal. Every mutation is recorded in
// apply order, before the change hook fires.
func (s *Store) SetJournal(j Journal) {
	s.journal = j
}

// #endregion store

// #region load

// Load reads the persisted profile. A read failure or malformed document
// degrades to an empty store with a logged warning; Load never fails.
func (s *Store) Load() {
	if s.adapter == nil {
		return
	}
	data, err := s.adapter.Load(s.profileKey)
	if err != nil {
		log.Printf("[SIGNAL] load %q failed, starting empty: %v", s.profileKey, err)
		return
	}
	if data == nil {
		return
	}
	var p profile
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("[SIGNAL] profile %q malformed, starting empty: %v", s.profileKey, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range p.Counters {
		s.counters[k] = v
	}
	for k, v := range p.Durations {
		s.durations[k] = v
	}
	for _, f := range p.Flags {
		s.flags[f] = true
	}
	for k, members := range p.Sets {
		set := make(map[string]bool, len(members))
		for _, m := range members {
			set[m] = true
		}
		s.sets[k] = set
	}
	for k, v := range p.Attributes {
		s.attributes[k] = v
	}
}

// #endregion load

// #region snapshot

// Snapshot returns a deep copy of the current signal state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Counters:   make(map[string]int64, len(s.counters)),
		Durations:  make(map[string]int64, len(s.durations)),
		Flags:      make(map[string]bool, len(s.flags)),
		Sets:       make(map[string]map[string]bool, len(s.sets)),
		Attributes: make(map[string]float64, len(s.attributes)),
	}
	for k, v := range s.counters {
		snap.Counters[k] = v
	}
	for k, v := range s.durations {
		snap.Durations[k] = v
	}
	for k, v := range s.flags {
		snap.Flags[k] = v
	}
	for k, set := range s.sets {
		copySet := make(map[string]bool, len(set))
		for m := range set {
			copySet[m] = true
		}
		snap.Sets[k] = copySet
	}
	for k, v := range s.attributes {
		snap.Attributes[k] = v
	}
	return snap
}

// #endregion snapshot

// #region mutations

// Increment raises a counter by the given amount. Counters are monotonic:
// a non-positive amount is ignored with a logged warning, never applied.
func (s *Store) Increment(key string, by int64) {
	if by <= 0 {
		log.Printf("[SIGNAL] ignoring non-positive increment %d for counter %q", by, key)
		return
	}
	s.mu.Lock()
	s.counters[key] += by
	s.mu.Unlock()
	s.mutated(MutationOp{Kind: OpIncrement, Key: key, Amount: float64(by)})
}

// AddDuration accumulates elapsed milliseconds for a category. Durations are
// monotonic: a non-positive amount is ignored with a logged warning.
func (s *Store) AddDuration(key string, ms int64) {
	if ms <= 0 {
		log.Printf("[SIGNAL] ignoring non-positive duration %dms for %q", ms, key)
		return
	}
	s.mu.Lock()
	s.durations[key] += ms
	s.mu.Unlock()
	s.mutated(MutationOp{Kind: OpAddDuration, Key: key, Amount: float64(ms)})
}

// SetFlag marks a fact true. Setting an already-set flag is a no-op beyond
// the change dispatch.
func (s *Store) SetFlag(key string) {
	s.mu.Lock()
	s.flags[key] = true
	s.mu.Unlock()
	s.mutated(MutationOp{Kind: OpSetFlag, Key: key})
}

// AddToSet adds a member to a named set. Adding an existing member is a no-op
// beyond the change dispatch.
func (s *Store) AddToSet(key, member string) {
	s.mu.Lock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]bool)
		s.sets[key] = set
	}
	set[member] = true
	s.mu.Unlock()
	s.mutated(MutationOp{Kind: OpAddToSet, Key: key, Member: member})
}

// AdjustAttribute moves a signed attribute score by delta.
func (s *Store) AdjustAttribute(key string, delta float64) {
	s.mu.Lock()
	s.attributes[key] += delta
	s.mu.Unlock()
	s.mutated(MutationOp{Kind: OpAdjustAttribute, Key: key, Amount: delta})
}

// Apply dispatches a recorded mutation back into the store. Used by the
// replay harness.
func (s *Store) Apply(op MutationOp) {
	switch op.Kind {
	case OpIncrement:
		s.Increment(op.Key, int64(op.Amount))
	case OpAddDuration:
		s.AddDuration(op.Key, int64(op.Amount))
	case OpSetFlag:
		s.SetFlag(op.Key)
	case OpAddToSet:
		s.AddToSet(op.Key, op.Member)
	case OpAdjustAttribute:
		s.AdjustAttribute(op.Key, op.Amount)
	default:
		log.Printf("[SIGNAL] unknown mutation op %q ignored", op.Kind)
	}
}

// mutated runs post-mutation bookkeeping: journal, save scheduling, change
// hook. Called without the lock held.
func (s *Store) mutated(op MutationOp) {
	if s.journal != nil {
		s.journal.Record(op)
	}
	s.scheduleSave()
	if s.onChange != nil {
		s.onChange()
	}
}

// #endregion mutations

// #region persistence

// scheduleSave marks the store dirty and arms the coalescing timer.
func (s *Store) scheduleSave() {
	if s.adapter == nil {
		return
	}
	s.dirty.Store(true)

	s.mu.Lock()
	window := s.saveWindow
	if window <= 0 {
		s.mu.Unlock()
		s.flush()
		return
	}
	if s.saveWait == nil {
		s.saveWait = time.AfterFunc(window, func() {
			s.mu.Lock()
			s.saveWait = nil
			s.mu.Unlock()
			s.flush()
		})
	}
	s.mu.Unlock()
}

// Flush writes the profile immediately if there are pending changes.
func (s *Store) Flush() {
	if s.adapter == nil {
		return
	}
	s.mu.Lock()
	if s.saveWait != nil {
		s.saveWait.Stop()
		s.saveWait = nil
	}
	s.mu.Unlock()
	if s.dirty.Load() {
		s.flush()
	}
}

// flush serializes and saves. Save failure keeps the store dirty so the next
// mutation retries; durability is best-effort.
func (s *Store) flush() {
	s.dirty.Store(false)
	data, err := json.Marshal(s.encode())
	if err != nil {
		log.Printf("[SIGNAL] encode profile %q: %v", s.profileKey, err)
		return
	}
	if err := s.adapter.Save(s.profileKey, data); err != nil {
		log.Printf("[SIGNAL] save %q failed, will retry on next mutation: %v", s.profileKey, err)
		s.dirty.Store(true)
	}
}

// encode builds the serializable profile with stable member ordering.
func (s *Store) encode() profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := profile{
		SchemaVersion: profileSchemaVersion,
		Counters:      make(map[string]int64, len(s.counters)),
		Durations:     make(map[string]int64, len(s.durations)),
		Sets:          make(map[string][]string, len(s.sets)),
		Attributes:    make(map[string]float64, len(s.attributes)),
	}
	for k, v := range s.counters {
		p.Counters[k] = v
	}
	for k, v := range s.durations {
		p.Durations[k] = v
	}
	for f := range s.flags {
		p.Flags = append(p.Flags, f)
	}
	sort.Strings(p.Flags)
	for k, set := range s.sets {
		members := make([]string, 0, len(set))
		for m := range set {
			members = append(members, m)
		}
		sort.Strings(members)
		p.Sets[k] = members
	}
	for k, v := range s.attributes {
		p.Attributes[k] = v
	}
	return p
}

// Close flushes pending changes. It does not close the adapter, which may be
// shared across stores.
func (s *Store) Close() {
	s.Flush()
}

// #endregion persistence
