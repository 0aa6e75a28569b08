package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"voxelbarter.ai/internal/persistence/invdb"
	"voxelbarter.ai/internal/persistence/snapshot"
	"voxelbarter.ai/internal/sim/inventory"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "diff":
			diffCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "snapshots"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), snapshot.Ext) {
			fmt.Println(e.Name())
		}
	}
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	snap := mustRead(*snapPath, filepath.Join(*dataDir, "snapshots"))
	fmt.Printf("world=%s saved_at=%s agents=%d\n", snap.Header.WorldID,
		time.UnixMilli(snap.Header.SavedAt).UTC().Format(time.RFC3339), len(snap.Agents))
	printStates(snap.States())
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dbPath := fs.String("db", "", "sqlite inventory path")
	outPath := fs.String("out", "", "write the database contents to this snapshot path (optional)")
	worldID := fs.String("world", "frontier", "world id for -out")
	_ = fs.Parse(args)

	if strings.TrimSpace(*dbPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -db")
		os.Exit(2)
	}
	db, err := invdb.Open(*dbPath, 1)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open db:", err)
		os.Exit(1)
	}
	defer db.Close()

	states, err := db.Export()
	if err != nil {
		fmt.Fprintln(os.Stderr, "export:", err)
		os.Exit(1)
	}
	if *outPath != "" {
		if err := snapshot.WriteSnapshot(*outPath, snapshot.Capture(*worldID, states, time.Now())); err != nil {
			fmt.Fprintln(os.Stderr, "write snapshot:", err)
			os.Exit(1)
		}
		fmt.Println("wrote", *outPath)
		return
	}
	printStates(states)
}

// diffCmd compares per-item totals between two snapshots. Trades only move
// units between agents, so any total change points at something else.
func diffCmd(args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	fromPath := fs.String("from", "", "older snapshot")
	toPath := fs.String("to", "", "newer snapshot")
	_ = fs.Parse(args)

	if *fromPath == "" || *toPath == "" {
		fmt.Fprintln(os.Stderr, "missing -from or -to")
		os.Exit(2)
	}
	a := mustRead(*fromPath, "")
	b := mustRead(*toPath, "")
	changes := diffTotals(totals(a.States()), totals(b.States()))
	if len(changes) == 0 {
		fmt.Println("totals unchanged")
		return
	}
	for _, c := range changes {
		fmt.Println(c)
	}
	os.Exit(1)
}

func mustRead(path, dir string) snapshot.SnapshotV1 {
	if path == "" {
		latest, err := snapshot.LatestSnapshot(dir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "latest snapshot:", err)
			os.Exit(1)
		}
		path = latest
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	return snap
}

func printStates(states []inventory.AgentState) {
	for _, st := range states {
		used := 0
		for _, sl := range st.Slots {
			if !sl.Empty() {
				used++
			}
		}
		fmt.Printf("%s (%s) slots=%d/%d\n", st.ID, st.Name, used, len(st.Slots))
		for i, sl := range st.Slots {
			if sl.Empty() {
				continue
			}
			fmt.Printf("  [%02d] %-28s x%d\n", i, sl.Item, sl.Count)
		}
	}
}

func totals(states []inventory.AgentState) map[string]int {
	out := map[string]int{}
	for _, st := range states {
		for _, sl := range st.Slots {
			if !sl.Empty() {
				out[sl.Item] += sl.Count
			}
		}
	}
	return out
}

func diffTotals(a, b map[string]int) []string {
	keys := map[string]struct{}{}
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var out []string
	for _, k := range sorted {
		if a[k] != b[k] {
			out = append(out, fmt.Sprintf("%s: %d -> %d", k, a[k], b[k]))
		}
	}
	return out
}
