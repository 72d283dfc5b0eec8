package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hmansour/progression/internal/graph"
	"github.com/hmansour/progression/internal/replay"
)

// #region main

func main() {
	graphPath := flag.String("graph", "content/graph.yaml", "path to content graph")
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--graph content/graph.yaml]")
		os.Exit(2)
	}

	fixture, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if fixture.GraphPath != "" {
		*graphPath = fixture.GraphPath
	}

	g, err := graph.LoadFile(*graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	result := replay.Run(g, fixture)

	fmt.Printf("fixture: %s\n", fixture.Description)
	fmt.Printf("steps: %d, expected events: %d, emitted: %d\n",
		len(fixture.Steps), len(result.Expected), len(result.Emitted))
	for _, e := range result.Errors {
		fmt.Printf("  step error: %s\n", e)
	}
	if result.Pass {
		fmt.Println("PASS: event sequence matches")
		return
	}
	fmt.Printf("FAIL: %s\n", result.Mismatch)
	os.Exit(1)
}

// #endregion main
