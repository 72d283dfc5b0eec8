package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/hmansour/progression/internal/audit"
	"github.com/hmansour/progression/internal/persist"
	"github.com/hmansour/progression/internal/replay"
)

// #region main

// fixture-export rebuilds a replay fixture from a live database: the
// mutation journal becomes the step script, the unlock log becomes the
// expected event sequence. Choice deltas are already present in the journal,
// so choice rows contribute no steps of their own.
func main() {
	dbPath := flag.String("db", "progression.db", "path to progression.db")
	profile := flag.String("profile", "default", "profile key")
	graphPath := flag.String("graph", "content/graph.yaml", "graph path recorded in the fixture")
	out := flag.String("out", "fixture.json", "output fixture path")
	desc := flag.String("desc", "", "fixture description")
	flag.Parse()

	adapter, err := persist.NewSQLiteAdapter(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer adapter.Close()

	auditLog, err := audit.NewLog(adapter.DB(), *profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open audit log: %v\n", err)
		os.Exit(1)
	}

	fixture, err := buildFixture(auditLog, *graphPath, *desc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := replay.WriteFixture(*out, fixture); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s: %d steps, %d expected events\n", *out, len(fixture.Steps), len(fixture.ExpectedEvents))
}

// #endregion main

// #region build

func buildFixture(auditLog *audit.Log, graphPath, desc string) (*replay.Fixture, error) {
	ops, err := auditLog.Mutations()
	if err != nil {
		return nil, err
	}
	entries, err := auditLog.TailUnlocks(1 << 20)
	if err != nil {
		return nil, err
	}

	fixture := &replay.Fixture{
		Description: desc,
		GraphPath:   graphPath,
	}
	for _, op := range ops {
		fixture.Steps = append(fixture.Steps, replay.Step{Kind: replay.StepMutation, Op: op})
	}
	for _, e := range entries {
		if strings.HasPrefix(e.TriggerType, "choice:") {
			continue
		}
		fixture.ExpectedEvents = append(fixture.ExpectedEvents, e.NodeID)
	}
	return fixture, nil
}

// #endregion build
