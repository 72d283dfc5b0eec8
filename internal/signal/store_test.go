package signal

import (
	"errors"
	"testing"
	"time"

	"github.com/hmansour/progression/internal/persist"
)

func TestSnapshotReflectsMutations(t *testing.T) {
	s := NewStore(nil, "test")

	s.Increment("clicks", 3)
	s.Increment("clicks", 2)
	s.AddDuration("session_ms", 1500)
	s.SetFlag("met_vizier")
	s.AddToSet("skills", "flow")
	s.AddToSet("skills", "time")
	s.AdjustAttribute("wisdom", 2.5)
	s.AdjustAttribute("wisdom", -1)

	snap := s.Snapshot()
	if snap.Counter("clicks") != 5 {
		t.Fatalf("expected counter 5, got %d", snap.Counter("clicks"))
	}
	if snap.Duration("session_ms") != 1500 {
		t.Fatalf("expected duration 1500, got %d", snap.Duration("session_ms"))
	}
	if !snap.Flag("met_vizier") {
		t.Fatal("flag should be set")
	}
	if !snap.SetContains("skills", "flow") || !snap.SetContains("skills", "time") {
		t.Fatal("set should contain both members")
	}
	if snap.Attribute("wisdom") != 1.5 {
		t.Fatalf("expected attribute 1.5, got %v", snap.Attribute("wisdom"))
	}
}

func TestSnapshotMissingKeysReadAsZero(t *testing.T) {
	snap := NewStore(nil, "test").Snapshot()

	if snap.Counter("absent") != 0 {
		t.Fatal("absent counter should read 0")
	}
	if snap.Flag("absent") {
		t.Fatal("absent flag should read false")
	}
	if snap.SetContains("absent", "x") {
		t.Fatal("absent set should contain nothing")
	}
	if snap.Attribute("absent") != 0 {
		t.Fatal("absent attribute should read 0")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore(nil, "test")
	s.AddToSet("skills", "flow")

	snap := s.Snapshot()
	snap.Counters["clicks"] = 99
	snap.Sets["skills"]["forged"] = true

	fresh := s.Snapshot()
	if fresh.Counter("clicks") != 0 {
		t.Fatal("mutating a snapshot must not touch the store")
	}
	if fresh.SetContains("skills", "forged") {
		t.Fatal("mutating a snapshot set must not touch the store")
	}
}

func TestCountersAndDurationsAreMonotonic(t *testing.T) {
	s := NewStore(nil, "test")
	var fired int
	s.SetOnChange(func() { fired++ })

	s.Increment("clicks", 10)
	s.Increment("clicks", -7)
	s.Increment("clicks", 0)
	s.AddDuration("session_ms", 500)
	s.AddDuration("session_ms", -200)

	snap := s.Snapshot()
	if snap.Counter("clicks") != 10 {
		t.Fatalf("counter moved backwards: %d", snap.Counter("clicks"))
	}
	if snap.Duration("session_ms") != 500 {
		t.Fatalf("duration moved backwards: %d", snap.Duration("session_ms"))
	}
	// Rejected mutations must not dispatch change notifications either.
	if fired != 2 {
		t.Fatalf("expected 2 change dispatches, got %d", fired)
	}
}

func TestApplyRejectsNonPositiveAmounts(t *testing.T) {
	s := NewStore(nil, "test")
	s.Apply(MutationOp{Kind: OpIncrement, Key: "clicks", Amount: 10})
	s.Apply(MutationOp{Kind: OpIncrement, Key: "clicks", Amount: -9})
	s.Apply(MutationOp{Kind: OpAddDuration, Key: "session_ms", Amount: -100})

	snap := s.Snapshot()
	if snap.Counter("clicks") != 10 {
		t.Fatalf("counter moved backwards via Apply: %d", snap.Counter("clicks"))
	}
	if snap.Duration("session_ms") != 0 {
		t.Fatalf("duration moved via Apply: %d", snap.Duration("session_ms"))
	}
}

func TestDuplicateSetAddIsIdempotent(t *testing.T) {
	s := NewStore(nil, "test")
	s.AddToSet("skills", "flow")
	s.AddToSet("skills", "flow")

	if got := len(s.Snapshot().SetMembers("skills")); got != 1 {
		t.Fatalf("expected 1 member, got %d", got)
	}
}

func TestOnChangeFiresPerMutation(t *testing.T) {
	s := NewStore(nil, "test")
	var fired int
	s.SetOnChange(func() { fired++ })

	s.Increment("clicks", 1)
	s.SetFlag("f")
	s.AddToSet("s", "m")

	if fired != 3 {
		t.Fatalf("expected 3 change dispatches, got %d", fired)
	}
}

func TestJournalRecordsInOrder(t *testing.T) {
	s := NewStore(nil, "test")
	j := &captureJournal{}
	s.SetJournal(j)

	s.Increment("clicks", 2)
	s.AdjustAttribute("wisdom", -1)

	if len(j.ops) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(j.ops))
	}
	if j.ops[0].Kind != OpIncrement || j.ops[0].Amount != 2 {
		t.Fatalf("unexpected first op: %+v", j.ops[0])
	}
	if j.ops[1].Kind != OpAdjustAttribute || j.ops[1].Amount != -1 {
		t.Fatalf("unexpected second op: %+v", j.ops[1])
	}
}

func TestApplyDispatchesOps(t *testing.T) {
	s := NewStore(nil, "test")
	s.Apply(MutationOp{Kind: OpIncrement, Key: "clicks", Amount: 4})
	s.Apply(MutationOp{Kind: OpAddToSet, Key: "skills", Member: "flow"})
	s.Apply(MutationOp{Kind: "bogus", Key: "x"}) // ignored, not fatal

	snap := s.Snapshot()
	if snap.Counter("clicks") != 4 {
		t.Fatalf("expected counter 4, got %d", snap.Counter("clicks"))
	}
	if !snap.SetContains("skills", "flow") {
		t.Fatal("set member missing after Apply")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	adapter := persist.NewMemoryAdapter()

	s := NewStore(adapter, "u1")
	s.SetSaveWindow(0) // save synchronously
	s.Increment("clicks", 7)
	s.SetFlag("met_vizier")
	s.AddToSet("skills", "flow")
	s.AdjustAttribute("chaos", -2)

	restored := NewStore(adapter, "u1")
	restored.Load()
	snap := restored.Snapshot()
	if snap.Counter("clicks") != 7 {
		t.Fatalf("expected counter 7 after reload, got %d", snap.Counter("clicks"))
	}
	if !snap.Flag("met_vizier") {
		t.Fatal("flag lost across reload")
	}
	if !snap.SetContains("skills", "flow") {
		t.Fatal("set member lost across reload")
	}
	if snap.Attribute("chaos") != -2 {
		t.Fatalf("expected attribute -2 after reload, got %v", snap.Attribute("chaos"))
	}
}

func TestLoadFallsBackOnMalformedDocument(t *testing.T) {
	adapter := persist.NewMemoryAdapter()
	if err := adapter.Save("u1", []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	s := NewStore(adapter, "u1")
	s.Load() // must not panic or error

	if len(s.Snapshot().Counters) != 0 {
		t.Fatal("store should start empty on malformed document")
	}
}

func TestLoadFallsBackOnAdapterError(t *testing.T) {
	s := NewStore(&failingAdapter{}, "u1")
	s.Load()

	if len(s.Snapshot().Flags) != 0 {
		t.Fatal("store should start empty on adapter error")
	}
}

func TestSaveCoalescesWrites(t *testing.T) {
	adapter := &countingAdapter{inner: persist.NewMemoryAdapter()}
	s := NewStore(adapter, "u1")
	s.SetSaveWindow(20 * time.Millisecond)

	for i := 0; i < 10; i++ {
		s.Increment("clicks", 1)
	}
	time.Sleep(60 * time.Millisecond)

	if adapter.saves != 1 {
		t.Fatalf("expected 1 coalesced save, got %d", adapter.saves)
	}
}

func TestFlushWritesPendingChanges(t *testing.T) {
	adapter := &countingAdapter{inner: persist.NewMemoryAdapter()}
	s := NewStore(adapter, "u1")
	s.Increment("clicks", 1)
	s.Flush()

	if adapter.saves == 0 {
		t.Fatal("flush should write pending changes immediately")
	}
}

// --- helpers ---

type captureJournal struct {
	ops []MutationOp
}

func (c *captureJournal) Record(op MutationOp) {
	c.ops = append(c.ops, op)
}

type failingAdapter struct{}

func (f *failingAdapter) Load(string) ([]byte, error) {
	return nil, errors.New("storage offline")
}
func (f *failingAdapter) Save(string, []byte) error { return errors.New("storage offline") }
func (f *failingAdapter) Close() error              { return nil }

type countingAdapter struct {
	inner *persist.MemoryAdapter
	saves int
}

func (c *countingAdapter) Load(key string) ([]byte, error) { return c.inner.Load(key) }
func (c *countingAdapter) Save(key string, data []byte) error {
	c.saves++
	return c.inner.Save(key, data)
}
func (c *countingAdapter) Close() error { return nil }
