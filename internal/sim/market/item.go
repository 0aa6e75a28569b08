// Package market negotiates and executes single-item barter trades between
// an initiator and a counterparty agent.
package market

import "voxelbarter.ai/internal/sim/ident"

// MarketItem is one tradeable catalog entry as seen in a candidate list.
// Values are never mutated after construction.
type MarketItem struct {
	Name     string `json:"name"`
	Cost     int    `json:"cost"`
	Quantity int    `json:"quantity"`
}

func NewMarketItem(name string, cost int) MarketItem {
	if cost < 0 {
		cost = 0
	}
	return MarketItem{Name: name, Cost: cost, Quantity: 1}
}

// SameKind reports whether both entries name the same catalog identity.
// Cost and quantity are ignored.
func (m MarketItem) SameKind(other MarketItem) bool {
	return ident.Equal(m.Name, other.Name)
}

// SelectionCost is the cost shown for an optional selection; nil shows 0.
func SelectionCost(sel *MarketItem) int {
	if sel == nil {
		return 0
	}
	return sel.Cost
}

// FindCandidate returns the first entry in items naming the same identity as name.
func FindCandidate(items []MarketItem, name string) (MarketItem, bool) {
	for _, it := range items {
		if ident.Equal(it.Name, name) {
			return it, true
		}
	}
	return MarketItem{}, false
}
