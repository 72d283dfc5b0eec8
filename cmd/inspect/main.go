package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/hmansour/progression/internal/audit"
	"github.com/hmansour/progression/internal/persist"
	"github.com/hmansour/progression/internal/signal"
)

// #region main

func main() {
	dbPath := flag.String("db", "progression.db", "path to progression.db")
	profile := flag.String("profile", "default", "profile key")
	last := flag.Int("last", 20, "audit/version entries to show")
	versions := flag.Bool("versions", false, "list profile snapshot versions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of text")
	flag.Parse()

	adapter, err := persist.NewSQLiteAdapter(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer adapter.Close()

	if *versions {
		if err := runVersionMode(adapter, *profile, *last, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := runProfileMode(adapter, *profile, *last, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region profile-mode

func runProfileMode(adapter *persist.SQLiteAdapter, profile string, last int, jsonOut bool) error {
	store := signal.NewStore(adapter, profile)
	store.Load()
	snap := store.Snapshot()

	auditLog, err := audit.NewLog(adapter.DB(), profile)
	if err != nil {
		return err
	}
	entries, err := auditLog.TailUnlocks(last)
	if err != nil {
		return err
	}

	if jsonOut {
		out := map[string]interface{}{
			"profile":    profile,
			"counters":   snap.Counters,
			"durations":  snap.Durations,
			"flags":      snap.Flags,
			"attributes": snap.Attributes,
			"unlocked":   snap.SetMembers(signal.SetUnlockedNodes),
			"audit":      entries,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("profile %q\n", profile)
	fmt.Printf("  counters:   %v\n", snap.Counters)
	fmt.Printf("  durations:  %v\n", snap.Durations)
	fmt.Printf("  flags:      %v\n", snap.Flags)
	fmt.Printf("  attributes: %v\n", snap.Attributes)
	fmt.Printf("  unlocked:   %v\n", snap.SetMembers(signal.SetUnlockedNodes))
	fmt.Printf("audit (last %d):\n", last)
	for _, e := range entries {
		fmt.Printf("  %s  %-12s %-8s %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.NodeID, e.NodeKind, e.TriggerType)
	}
	return nil
}

// #endregion profile-mode

// #region version-mode

func runVersionMode(adapter *persist.SQLiteAdapter, profile string, last int, jsonOut bool) error {
	records, err := adapter.ListVersions(profile, last)
	if err != nil {
		return err
	}
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	for _, rec := range records {
		fmt.Printf("%s  %s  parent=%s  %d bytes\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.VersionID, orDash(rec.ParentID), len(rec.Body))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion version-mode
