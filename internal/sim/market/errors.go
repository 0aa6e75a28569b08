package market

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound   = errors.New("item not found")
	ErrAddFailed      = errors.New("add failed")
	ErrRollbackFailed = errors.New("rollback failed")
	ErrSameAgent      = errors.New("initiator and counterparty are the same agent")
	ErrNoSession      = errors.New("no active negotiation")
	ErrNoSelection    = errors.New("missing selection")
)

// TradeError describes why Execute did not commit. Kind is ErrItemNotFound
// or ErrAddFailed.
type TradeError struct {
	Kind  error
	Step  string
	Agent string
	Item  string
	Err   error
	// Rollback is set when compensating an applied step also failed.
	Rollback error
}

func (e *TradeError) Error() string {
	msg := fmt.Sprintf("%s: %s agent=%s item=%s", e.Step, e.Kind, e.Agent, e.Item)
	if e.Err != nil && !errors.Is(e.Err, e.Kind) {
		msg += ": " + e.Err.Error()
	}
	if e.Rollback != nil {
		msg += " (rollback: " + e.Rollback.Error() + ")"
	}
	return msg
}

func (e *TradeError) Unwrap() error { return e.Err }

func (e *TradeError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return target == ErrRollbackFailed && e.Rollback != nil
}
