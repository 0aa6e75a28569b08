package market

import "fmt"

// Snapshotter projects an agent's inventory into candidate entries.
type Snapshotter struct {
	Inventory Inventory
	Catalog   Catalog
}

// Snapshot returns one entry per occupied slot with a catalog cost, in slot
// order. Slots whose identity the catalog does not know are skipped.
func (s Snapshotter) Snapshot(agentID string) ([]MarketItem, error) {
	n, err := s.Inventory.SlotCount(agentID)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", agentID, err)
	}
	items := make([]MarketItem, 0, n)
	for i := 0; i < n; i++ {
		id, ok, err := s.Inventory.ItemAt(agentID, i)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s slot %d: %w", agentID, i, err)
		}
		if !ok || id == "" {
			continue
		}
		cost, ok := s.Catalog.Cost(id)
		if !ok {
			continue
		}
		items = append(items, NewMarketItem(id, cost))
	}
	return items, nil
}
