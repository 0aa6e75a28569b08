package market

import (
	"errors"
	"fmt"
	"sync"

	"voxelbarter.ai/internal/sim/ident"
)

// Executor swaps one unit of each selected item between two agents.
// Either every step lands or none does. Execute calls on the same Executor
// are serialized, so sessions sharing a provider must share one Executor.
type Executor struct {
	Inventory Inventory
	Catalog   Catalog

	mu sync.Mutex
}

type stepKind int

const (
	stepRemove stepKind = iota + 1
	stepAdd
)

type step struct {
	kind  stepKind
	name  string
	agent string
	id    string
	want  string
}

// prepared holds everything resolved before the first mutation.
type prepared struct {
	counterpartyHeld string // identity removed from the counterparty
	initiatorHeld    string // identity removed from the initiator
	toInitiator      string // creatable identity given to the initiator
	toCounterparty   string // creatable identity given to the counterparty
}

func (e *Executor) Execute(initiator, counterparty string, initiatorItem, counterpartyItem MarketItem) error {
	if initiator == counterparty {
		return ErrSameAgent
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.prepare(initiator, counterparty, initiatorItem, counterpartyItem)
	if err != nil {
		return err
	}

	plan := []step{
		{kind: stepRemove, name: "remove counterparty item", agent: counterparty, id: p.counterpartyHeld, want: counterpartyItem.Name},
		{kind: stepRemove, name: "remove initiator item", agent: initiator, id: p.initiatorHeld, want: initiatorItem.Name},
		{kind: stepAdd, name: "add counterparty item", agent: initiator, id: p.toInitiator, want: counterpartyItem.Name},
		{kind: stepAdd, name: "add initiator item", agent: counterparty, id: p.toCounterparty, want: initiatorItem.Name},
	}

	applied := make([]step, 0, len(plan))
	for _, st := range plan {
		if err := e.apply(st); err != nil {
			te := stepError(st, err)
			te.Rollback = e.rollback(applied)
			return te
		}
		applied = append(applied, st)
	}
	return nil
}

func (e *Executor) prepare(initiator, counterparty string, initiatorItem, counterpartyItem MarketItem) (prepared, error) {
	var p prepared
	var err error
	if p.counterpartyHeld, err = e.locate(counterparty, counterpartyItem); err != nil {
		return p, err
	}
	if p.initiatorHeld, err = e.locate(initiator, initiatorItem); err != nil {
		return p, err
	}
	if p.toInitiator, err = e.resolve(initiator, counterpartyItem); err != nil {
		return p, err
	}
	if p.toCounterparty, err = e.resolve(counterparty, initiatorItem); err != nil {
		return p, err
	}
	return p, nil
}

// locate returns the identity in the first slot matching item's name.
func (e *Executor) locate(agent string, item MarketItem) (string, error) {
	n, err := e.Inventory.SlotCount(agent)
	if err != nil {
		return "", &TradeError{Kind: ErrItemNotFound, Step: "locate", Agent: agent, Item: item.Name, Err: err}
	}
	for i := 0; i < n; i++ {
		id, ok, err := e.Inventory.ItemAt(agent, i)
		if err != nil {
			return "", &TradeError{Kind: ErrItemNotFound, Step: "locate", Agent: agent, Item: item.Name, Err: err}
		}
		if ok && ident.Equal(id, item.Name) {
			return id, nil
		}
	}
	return "", &TradeError{Kind: ErrItemNotFound, Step: "locate", Agent: agent, Item: item.Name}
}

func (e *Executor) resolve(agent string, item MarketItem) (string, error) {
	id, err := e.Catalog.ResolveCreatable(item.Name)
	if err != nil {
		return "", &TradeError{Kind: ErrAddFailed, Step: "resolve", Agent: agent, Item: item.Name, Err: err}
	}
	if id == "" {
		return "", &TradeError{Kind: ErrAddFailed, Step: "resolve", Agent: agent, Item: item.Name}
	}
	return id, nil
}

func (e *Executor) apply(st step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	switch st.kind {
	case stepRemove:
		return e.Inventory.RemoveOne(st.agent, st.id)
	case stepAdd:
		return e.Inventory.AddOne(st.agent, st.id)
	default:
		return fmt.Errorf("unknown step kind %d", st.kind)
	}
}

// rollback compensates applied steps in reverse order. All compensations are
// attempted even when one fails.
func (e *Executor) rollback(applied []step) error {
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		st := applied[i]
		if err := e.apply(st.inverse()); err != nil {
			errs = append(errs, fmt.Errorf("undo %s (%s/%s): %w", st.name, st.agent, st.id, err))
		}
	}
	return errors.Join(errs...)
}

func (st step) inverse() step {
	inv := st
	switch st.kind {
	case stepRemove:
		inv.kind = stepAdd
	case stepAdd:
		inv.kind = stepRemove
	}
	return inv
}

func stepError(st step, err error) *TradeError {
	kind := ErrAddFailed
	if st.kind == stepRemove {
		kind = ErrItemNotFound
	}
	return &TradeError{Kind: kind, Step: st.name, Agent: st.agent, Item: st.want, Err: err}
}
