package market

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"voxelbarter.ai/internal/sim/inventory"
)

func TestExecuteSwapsOneUnitEach(t *testing.T) {
	s := testStore(t, 8, map[string]map[string]int{
		player:  {"Wood": 2},
		citizen: {"Iron": 1, "Bread": 1},
	})
	ex := &Executor{Inventory: s, Catalog: testCatalog(t)}

	if err := ex.Execute(player, citizen, NewMarketItem("Wood", 10), NewMarketItem("Iron", 9)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := counts(t, s, player); !sameCounts(got, map[string]int{"Wood": 1, "Iron": 1}) {
		t.Fatalf("player inventory: %#v", got)
	}
	if got := counts(t, s, citizen); !sameCounts(got, map[string]int{"Wood": 1, "Bread": 1}) {
		t.Fatalf("citizen inventory: %#v", got)
	}
}

func TestExecuteMatchesNamesIgnoringCase(t *testing.T) {
	s := testStore(t, 4, map[string]map[string]int{
		player:  {"Wood": 1},
		citizen: {"Iron": 1},
	})
	ex := &Executor{Inventory: s, Catalog: testCatalog(t)}
	if err := ex.Execute(player, citizen, NewMarketItem("WOOD", 10), NewMarketItem("iron", 9)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := counts(t, s, player); !sameCounts(got, map[string]int{"Iron": 1}) {
		t.Fatalf("player inventory: %#v", got)
	}
}

func TestExecuteMissingItemChangesNothing(t *testing.T) {
	s := testStore(t, 4, map[string]map[string]int{
		player:  {"Wood": 1},
		citizen: {"Bread": 1},
	})
	inv := &faultyInventory{Inventory: s}
	ex := &Executor{Inventory: inv, Catalog: testCatalog(t)}
	beforeP, beforeC := counts(t, s, player), counts(t, s, citizen)

	err := ex.Execute(player, citizen, NewMarketItem("Wood", 10), NewMarketItem("Iron", 9))
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	var te *TradeError
	if !errors.As(err, &te) || te.Agent != citizen || te.Item != "Iron" {
		t.Fatalf("unexpected trade error: %#v", err)
	}
	if !sameCounts(counts(t, s, player), beforeP) || !sameCounts(counts(t, s, citizen), beforeC) {
		t.Fatalf("inventories changed on failed locate")
	}
}

func TestExecuteUncreatableItemFailsBeforeMutation(t *testing.T) {
	cases := []struct {
		name string
		give string
		take string
	}{
		{name: "ambiguous", give: "Wood", take: "Gem"},
		{name: "virtual", give: "Notice", take: "Iron"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := testStore(t, 4, map[string]map[string]int{
				player:  {"Wood": 1, "Notice": 1},
				citizen: {"Iron": 1, "Gem": 1},
			})
			ex := &Executor{Inventory: s, Catalog: testCatalog(t)}
			v1, _ := s.Version(player)
			v2, _ := s.Version(citizen)

			err := ex.Execute(player, citizen, NewMarketItem(tc.give, 0), NewMarketItem(tc.take, 0))
			if !errors.Is(err, ErrAddFailed) {
				t.Fatalf("expected ErrAddFailed, got %v", err)
			}
			w1, _ := s.Version(player)
			w2, _ := s.Version(citizen)
			if v1 != w1 || v2 != w2 {
				t.Fatalf("inventory mutated before commit")
			}
		})
	}
}

func TestExecuteRollsBackEveryCommitStep(t *testing.T) {
	boom := errors.New("refused")
	cases := []struct {
		name       string
		failRemove map[string]error
		failAdd    map[string]error
		kind       error
	}{
		{name: "remove counterparty item", failRemove: map[string]error{citizen + "/Iron": boom}, kind: ErrItemNotFound},
		{name: "remove initiator item", failRemove: map[string]error{player + "/Wood": fmt.Errorf("raced: %w", inventory.ErrConflict)}, kind: ErrItemNotFound},
		{name: "add counterparty item", failAdd: map[string]error{player + "/Iron": boom}, kind: ErrAddFailed},
		{name: "add initiator item", failAdd: map[string]error{citizen + "/Wood": boom}, kind: ErrAddFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := testStore(t, 4, map[string]map[string]int{
				player:  {"Wood": 3, "Bread": 1},
				citizen: {"Iron": 2},
			})
			inv := &faultyInventory{Inventory: s, failRemove: tc.failRemove, failAdd: tc.failAdd}
			ex := &Executor{Inventory: inv, Catalog: testCatalog(t)}
			beforeP, beforeC := counts(t, s, player), counts(t, s, citizen)

			err := ex.Execute(player, citizen, NewMarketItem("Wood", 10), NewMarketItem("Iron", 9))
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			if errors.Is(err, ErrRollbackFailed) {
				t.Fatalf("unexpected rollback failure: %v", err)
			}
			if !sameCounts(counts(t, s, player), beforeP) {
				t.Fatalf("player changed: %#v -> %#v", beforeP, counts(t, s, player))
			}
			if !sameCounts(counts(t, s, citizen), beforeC) {
				t.Fatalf("citizen changed: %#v -> %#v", beforeC, counts(t, s, citizen))
			}
		})
	}
}

func TestExecuteConflictSurfacesAsItemNotFound(t *testing.T) {
	s := testStore(t, 4, map[string]map[string]int{
		player:  {"Wood": 1},
		citizen: {"Iron": 1},
	})
	inv := &faultyInventory{Inventory: s, failRemove: map[string]error{player + "/Wood": inventory.ErrConflict}}
	ex := &Executor{Inventory: inv, Catalog: testCatalog(t)}
	err := ex.Execute(player, citizen, NewMarketItem("Wood", 10), NewMarketItem("Iron", 9))
	if !errors.Is(err, ErrItemNotFound) || !errors.Is(err, inventory.ErrConflict) {
		t.Fatalf("expected ItemNotFound wrapping conflict, got %v", err)
	}
}

func TestExecuteReportsFailedRollback(t *testing.T) {
	s := testStore(t, 4, map[string]map[string]int{
		player:  {"Wood": 1},
		citizen: {"Iron": 1},
	})
	boom := errors.New("refused")
	inv := &faultyInventory{Inventory: s, failAdd: map[string]error{
		citizen + "/Wood": boom, // commit step 4
		citizen + "/Iron": boom, // compensation of step 1
	}}
	ex := &Executor{Inventory: inv, Catalog: testCatalog(t)}
	err := ex.Execute(player, citizen, NewMarketItem("Wood", 10), NewMarketItem("Iron", 9))
	if !errors.Is(err, ErrAddFailed) || !errors.Is(err, ErrRollbackFailed) {
		t.Fatalf("expected add failure with rollback failure, got %v", err)
	}
}

func TestExecuteSwapsBetweenFullInventories(t *testing.T) {
	s := testStore(t, 1, map[string]map[string]int{
		player:  {"Wood": 1},
		citizen: {"Iron": 1},
	})
	ex := &Executor{Inventory: s, Catalog: testCatalog(t)}
	if err := ex.Execute(player, citizen, NewMarketItem("Wood", 10), NewMarketItem("Iron", 9)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := counts(t, s, player); !sameCounts(got, map[string]int{"Iron": 1}) {
		t.Fatalf("player inventory: %#v", got)
	}
}

func TestExecuteFullDestinationRollsBack(t *testing.T) {
	// The citizen's single slot holds two Iron, so removing one frees nothing.
	s := testStore(t, 1, map[string]map[string]int{
		player:  {"Wood": 1},
		citizen: {"Iron": 2},
	})
	ex := &Executor{Inventory: s, Catalog: testCatalog(t)}
	total := union(counts(t, s, player), counts(t, s, citizen))

	err := ex.Execute(player, citizen, NewMarketItem("Wood", 10), NewMarketItem("Iron", 9))
	if !errors.Is(err, ErrAddFailed) || !errors.Is(err, inventory.ErrInventoryFull) {
		t.Fatalf("expected full inventory add failure, got %v", err)
	}
	if got := union(counts(t, s, player), counts(t, s, citizen)); !sameCounts(got, total) {
		t.Fatalf("conservation violated: %#v -> %#v", total, got)
	}
	if got := counts(t, s, citizen); !sameCounts(got, map[string]int{"Iron": 2}) {
		t.Fatalf("citizen inventory: %#v", got)
	}
}

func TestExecuteRoundTripRestoresInventories(t *testing.T) {
	s := testStore(t, 6, map[string]map[string]int{
		player:  {"Wood": 2, "Bread": 3},
		citizen: {"Iron": 1, "Crystal": 1},
	})
	ex := &Executor{Inventory: s, Catalog: testCatalog(t)}
	beforeP, beforeC := counts(t, s, player), counts(t, s, citizen)

	wood, iron := NewMarketItem("Wood", 10), NewMarketItem("Iron", 9)
	if err := ex.Execute(player, citizen, wood, iron); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if err := ex.Execute(player, citizen, iron, wood); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if !sameCounts(counts(t, s, player), beforeP) || !sameCounts(counts(t, s, citizen), beforeC) {
		t.Fatalf("round trip changed inventories")
	}
}

func TestExecuteRejectsSameAgent(t *testing.T) {
	s := testStore(t, 2, map[string]map[string]int{player: {"Wood": 1}})
	ex := &Executor{Inventory: s, Catalog: testCatalog(t)}
	if err := ex.Execute(player, player, NewMarketItem("Wood", 10), NewMarketItem("Wood", 10)); !errors.Is(err, ErrSameAgent) {
		t.Fatalf("expected ErrSameAgent, got %v", err)
	}
}

// pauseInventory runs hook once, right after the first successful removal.
type pauseInventory struct {
	Inventory
	once sync.Once
	hook func()
}

func (p *pauseInventory) RemoveOne(agentID, id string) error {
	if err := p.Inventory.RemoveOne(agentID, id); err != nil {
		return err
	}
	p.once.Do(p.hook)
	return nil
}

func TestExecuteSerializesOverlappingTrades(t *testing.T) {
	s := testStore(t, 1, map[string]map[string]int{
		player:  {"Wood": 1},
		citizen: {"Iron": 1},
	})
	if err := s.AddAgent("player_2", "player_2", 1); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.Give("player_2", "Bread", 1); err != nil {
		t.Fatalf("Give: %v", err)
	}
	all := func() map[string]int {
		return union(union(counts(t, s, player), counts(t, s, citizen)), counts(t, s, "player_2"))
	}
	before := all()

	inv := &pauseInventory{Inventory: s}
	ex := &Executor{Inventory: inv, Catalog: testCatalog(t)}
	second := make(chan error, 1)
	// A second trade against citizen_1 starts while the first is between its
	// removals and additions. It must only see the finished first trade.
	inv.hook = func() {
		go func() {
			second <- ex.Execute("player_2", citizen,
				MarketItem{Name: "Bread", Cost: 5, Quantity: 1},
				MarketItem{Name: "Wood", Cost: 10, Quantity: 1})
		}()
	}

	if err := ex.Execute(player, citizen, MarketItem{Name: "Wood", Cost: 10, Quantity: 1}, MarketItem{Name: "Iron", Cost: 9, Quantity: 1}); err != nil {
		t.Fatalf("first trade: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second trade: %v", err)
	}

	if got := counts(t, s, player); !sameCounts(got, map[string]int{"Iron": 1}) {
		t.Fatalf("player: %v", got)
	}
	if got := counts(t, s, citizen); !sameCounts(got, map[string]int{"Bread": 1}) {
		t.Fatalf("citizen: %v", got)
	}
	if got := counts(t, s, "player_2"); !sameCounts(got, map[string]int{"Wood": 1}) {
		t.Fatalf("player_2: %v", got)
	}
	if got := all(); !sameCounts(got, before) {
		t.Fatalf("conservation violated: before=%v after=%v", before, got)
	}
}
