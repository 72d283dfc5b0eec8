package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hmansour/progression/internal/audit"
	"github.com/hmansour/progression/internal/config"
	"github.com/hmansour/progression/internal/engine"
	"github.com/hmansour/progression/internal/graph"
	"github.com/hmansour/progression/internal/persist"
	"github.com/hmansour/progression/internal/signal"
	"github.com/hmansour/progression/internal/story"
)

// #region main
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	g, err := graph.LoadFile(cfg.GraphPath)
	if err != nil {
		log.Fatalf("load content graph: %v", err)
	}

	adapter, err := persist.NewSQLiteAdapter(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer adapter.Close()

	auditLog, err := audit.NewLog(adapter.DB(), cfg.ProfileKey)
	if err != nil {
		log.Fatalf("open audit log: %v", err)
	}

	store := signal.NewStore(adapter, cfg.ProfileKey)
	store.SetSaveWindow(time.Duration(cfg.SaveWindowMS) * time.Millisecond)
	store.SetJournal(auditLog)
	store.Load()
	defer store.Close()

	eng := engine.New(g, store)
	eng.Subscribe(func(ev engine.Event) {
		fmt.Printf("\n*** UNLOCKED %s (%s): %s. %s\n", ev.NodeID, ev.Kind, ev.Notify.Title, ev.Notify.Body)
		auditLog.AppendUnlock(audit.UnlockEntry{
			NodeID:      ev.NodeID,
			NodeKind:    string(ev.Kind),
			TriggerType: "signal_change",
		})
	})

	resolver := story.NewResolver(store, eng)
	resolver.SetRecorder(auditLog)

	eng.Start()

	fmt.Println("Progression engine ready.")
	fmt.Printf("  DB: %s | Graph: %s (%d nodes) | Profile: %s\n", cfg.DBPath, cfg.GraphPath, g.Len(), cfg.ProfileKey)
	fmt.Println("Commands: inc <key> [n] | dur <key> <ms> | flag <key> | set <key> <member> | attr <key> <delta>")
	fmt.Println("          choices <story> | resolve <story> <option> | state | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		runCommand(line, store, eng, resolver)
	}
	store.Flush()
}

// #endregion main

// #region commands

func runCommand(line string, store *signal.Store, eng *engine.Engine, resolver *story.Resolver) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "inc":
		if len(args) < 1 {
			fmt.Println("usage: inc <key> [n]")
			return
		}
		n := int64(1)
		if len(args) > 1 {
			n, _ = strconv.ParseInt(args[1], 10, 64)
		}
		store.Increment(args[0], n)

	case "dur":
		if len(args) != 2 {
			fmt.Println("usage: dur <key> <ms>")
			return
		}
		ms, _ := strconv.ParseInt(args[1], 10, 64)
		store.AddDuration(args[0], ms)

	case "flag":
		if len(args) != 1 {
			fmt.Println("usage: flag <key>")
			return
		}
		store.SetFlag(args[0])

	case "set":
		if len(args) != 2 {
			fmt.Println("usage: set <key> <member>")
			return
		}
		store.AddToSet(args[0], args[1])

	case "attr":
		if len(args) != 2 {
			fmt.Println("usage: attr <key> <delta>")
			return
		}
		delta, _ := strconv.ParseFloat(args[1], 64)
		store.AdjustAttribute(args[0], delta)

	case "choices":
		if len(args) != 1 {
			fmt.Println("usage: choices <story>")
			return
		}
		options, err := resolver.PresentChoices(args[0])
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		for _, opt := range options {
			fmt.Printf("  [%s] %s\n", opt.ID, opt.Label)
		}

	case "resolve":
		if len(args) != 2 {
			fmt.Println("usage: resolve <story> <option>")
			return
		}
		if err := resolver.Resolve(args[0], args[1]); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Printf("resolved %s via %s\n", args[0], args[1])

	case "state":
		snap := store.Snapshot()
		fmt.Printf("unlocked: %v\n", eng.UnlockedNodes())
		fmt.Printf("counters: %v\n", snap.Counters)
		fmt.Printf("flags: %v\n", snap.Flags)
		fmt.Printf("attributes: %v\n", snap.Attributes)

	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
}

// #endregion commands
