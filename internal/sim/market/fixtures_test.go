package market

import (
	"fmt"
	"testing"

	"voxelbarter.ai/internal/sim/catalogs"
	"voxelbarter.ai/internal/sim/inventory"
)

const (
	player  = "player"
	citizen = "citizen_1"
)

func testCatalog(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.New(
		[]catalogs.ItemDef{
			{ID: "Wood", Cost: 10},
			{ID: "Iron", Cost: 9},
			{ID: "Bread", Cost: 5},
			{ID: "Crystal", Cost: 40},
			{ID: "Gem", Cost: 30},
			{ID: "extra:gem", Cost: 30},
			{ID: "Notice", Cost: 9, Virtual: true},
		},
		nil,
	)
	if err != nil {
		t.Fatalf("catalogs.New: %v", err)
	}
	return c
}

func testStore(t *testing.T, slots int, inv map[string]map[string]int) *inventory.Store {
	t.Helper()
	s := inventory.NewStore(99)
	for _, id := range []string{player, citizen} {
		if err := s.AddAgent(id, id, slots); err != nil {
			t.Fatalf("AddAgent: %v", err)
		}
		for item, n := range inv[id] {
			if err := s.Give(id, item, n); err != nil {
				t.Fatalf("Give(%s,%s,%d): %v", id, item, n, err)
			}
		}
	}
	return s
}

func counts(t *testing.T, s *inventory.Store, agent string) map[string]int {
	t.Helper()
	c, err := s.Counts(agent)
	if err != nil {
		t.Fatalf("Counts(%s): %v", agent, err)
	}
	return c
}

func sameCounts(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func union(a, b map[string]int) map[string]int {
	out := map[string]int{}
	for k, v := range a {
		out[k] += v
	}
	for k, v := range b {
		out[k] += v
	}
	return out
}

// faultyInventory wraps a real store and fails or panics on chosen calls.
type faultyInventory struct {
	Inventory

	failRemove map[string]error // "agent/id"
	failAdd    map[string]error
	panicAdd   map[string]bool
	calls      int
}

func (f *faultyInventory) SlotCount(agentID string) (int, error) {
	f.calls++
	return f.Inventory.SlotCount(agentID)
}

func (f *faultyInventory) ItemAt(agentID string, slot int) (string, bool, error) {
	f.calls++
	return f.Inventory.ItemAt(agentID, slot)
}

func (f *faultyInventory) RemoveOne(agentID, id string) error {
	f.calls++
	if err := f.failRemove[agentID+"/"+id]; err != nil {
		return err
	}
	return f.Inventory.RemoveOne(agentID, id)
}

func (f *faultyInventory) AddOne(agentID, id string) error {
	f.calls++
	key := agentID + "/" + id
	if f.panicAdd[key] {
		panic(fmt.Sprintf("add %s exploded", key))
	}
	if err := f.failAdd[key]; err != nil {
		return err
	}
	return f.Inventory.AddOne(agentID, id)
}

// countingCatalog counts calls so tests can assert nothing was consulted.
type countingCatalog struct {
	Catalog
	calls int
}

func (c *countingCatalog) Cost(id string) (int, bool) {
	c.calls++
	return c.Catalog.Cost(id)
}

func (c *countingCatalog) ResolveCreatable(name string) (string, error) {
	c.calls++
	return c.Catalog.ResolveCreatable(name)
}
