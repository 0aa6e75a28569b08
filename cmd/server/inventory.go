package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"voxelbarter.ai/internal/persistence/invdb"
	"voxelbarter.ai/internal/persistence/snapshot"
	"voxelbarter.ai/internal/sim/inventory"
	"voxelbarter.ai/internal/sim/tuning"
)

// seedStore creates every starter agent from tuning.
func seedStore(store *inventory.Store, tune tuning.Tuning) error {
	for _, a := range tune.Agents {
		if err := store.AddAgent(a.ID, a.Name, tune.Inventory.Slots); err != nil {
			return err
		}
		for _, item := range a.SortedItems() {
			if err := store.Give(a.ID, item, a.Items[item]); err != nil {
				return fmt.Errorf("starter %s: %w", a.ID, err)
			}
		}
	}
	return nil
}

// loadStore restores from an explicit or latest snapshot, else seeds from
// tuning. It reports where the contents came from.
func loadStore(store *inventory.Store, tune tuning.Tuning, explicit, snapDir string) (string, error) {
	path := explicit
	if path == "" {
		latest, err := snapshot.LatestSnapshot(snapDir)
		switch {
		case err == nil:
			path = latest
		case errors.Is(err, snapshot.ErrNoSnapshot):
		default:
			return "", err
		}
	}
	if path == "" {
		return "tuning", seedStore(store, tune)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}
	if err := store.Import(snap.States()); err != nil {
		return "", err
	}
	return filepath.Base(path), nil
}

func saveStore(store *inventory.Store, worldID, snapDir string, now time.Time) (string, error) {
	path := filepath.Join(snapDir, snapshot.FileName(worldID, now))
	if err := snapshot.WriteSnapshot(path, snapshot.Capture(worldID, store.Export(), now)); err != nil {
		return "", err
	}
	return path, nil
}

// seedDB adds starter agents missing from the database; existing rows win.
func seedDB(db *invdb.DB, tune tuning.Tuning) (int, error) {
	have, err := db.Agents()
	if err != nil {
		return 0, err
	}
	exists := make(map[string]bool, len(have))
	for _, id := range have {
		exists[id] = true
	}
	n := 0
	for _, a := range tune.Agents {
		if exists[a.ID] {
			continue
		}
		if err := db.Seed(a.ID, a.Name, tune.Inventory.Slots, a.Items); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
