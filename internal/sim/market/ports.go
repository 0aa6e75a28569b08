package market

// Inventory is the slot-based inventory capability the core mutates through.
// Identities are catalog ids; an empty slot reports ok=false.
type Inventory interface {
	SlotCount(agentID string) (int, error)
	ItemAt(agentID string, slot int) (id string, ok bool, err error)
	RemoveOne(agentID, id string) error
	AddOne(agentID, id string) error
}

// Catalog resolves costs and creatable identities.
type Catalog interface {
	Cost(id string) (int, bool)
	ResolveCreatable(name string) (string, error)
}
