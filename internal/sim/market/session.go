package market

import (
	"errors"
	"fmt"
	"io"
	"log"

	"voxelbarter.ai/internal/protocol"
)

type State int

const (
	StateIdle State = iota
	StateNegotiating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateNegotiating:
		return "NEGOTIATING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Side int

const (
	SideInitiator Side = iota
	SideCounterparty
)

type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeDeclined
	OutcomeCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "COMPLETED"
	case OutcomeDeclined:
		return "DECLINED"
	default:
		return "FAILED"
	}
}

const (
	MsgCompleted = "Trade completed."
	MsgDeclined  = "Offer declined."
	MsgFailed    = "Trade failed."
)

func (o Outcome) Message() string {
	switch o {
	case OutcomeCompleted:
		return MsgCompleted
	case OutcomeDeclined:
		return MsgDeclined
	default:
		return MsgFailed
	}
}

// Result is what Propose reports to the presentation layer.
type Result struct {
	Outcome Outcome
	Message string
	// Err is set for OutcomeFailed and carries the diagnostic cause.
	Err error
}

// Code maps the result onto a protocol error code; empty for non-failures.
func (r Result) Code() string {
	if r.Outcome != OutcomeFailed {
		return ""
	}
	switch {
	case errors.Is(r.Err, ErrNoSession):
		return protocol.ErrNoSession
	case errors.Is(r.Err, ErrNoSelection), errors.Is(r.Err, ErrSameAgent):
		return protocol.ErrBadRequest
	case errors.Is(r.Err, ErrItemNotFound):
		return protocol.ErrNotFound
	case errors.Is(r.Err, ErrAddFailed):
		return protocol.ErrAddFailed
	default:
		return protocol.ErrInternal
	}
}

type SessionDeps struct {
	Snapshotter Snapshotter
	Executor    *Executor
	Evaluator   Evaluator
	Draw        Draw
	Logger      *log.Logger
}

// Session drives one negotiation on behalf of the initiator. It owns the
// counterparty reference and both candidate lists; it is not safe for
// concurrent use.
type Session struct {
	initiator    string
	counterparty string

	initiatorItems    []MarketItem
	counterpartyItems []MarketItem
	message           string

	snap Snapshotter
	exec *Executor
	eval Evaluator
	draw Draw
	log  *log.Logger
}

func NewSession(initiatorID string, deps SessionDeps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Session{
		initiator: initiatorID,
		snap:      deps.Snapshotter,
		exec:      deps.Executor,
		eval:      deps.Evaluator,
		draw:      deps.Draw,
		log:       logger,
	}
}

func (s *Session) Initiator() string    { return s.initiator }
func (s *Session) Counterparty() string { return s.counterparty }
func (s *Session) Message() string      { return s.message }

func (s *Session) State() State {
	if s.counterparty == "" {
		return StateIdle
	}
	return StateNegotiating
}

// StartNegotiation targets counterpartyID and loads both candidate lists.
// On failure the session is left idle.
func (s *Session) StartNegotiation(counterpartyID string) (err error) {
	if counterpartyID == "" {
		s.Close()
		return fmt.Errorf("start negotiation: %w", ErrNoSession)
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("start negotiation with %s panicked: %v", counterpartyID, r)
			s.Close()
			err = fmt.Errorf("start negotiation: collaborator fault: %v", r)
		}
	}()
	s.counterparty = counterpartyID
	s.message = ""
	if err := s.refresh(); err != nil {
		s.log.Printf("start negotiation %s<->%s: %v", s.initiator, counterpartyID, err)
		s.Close()
		return err
	}
	return nil
}

// Refresh reloads both candidate lists from current inventory contents.
func (s *Session) Refresh() error {
	if s.State() == StateIdle {
		return ErrNoSession
	}
	return s.refresh()
}

func (s *Session) refresh() error {
	theirs, err := s.snap.Snapshot(s.counterparty)
	if err != nil {
		return err
	}
	mine, err := s.snap.Snapshot(s.initiator)
	if err != nil {
		return err
	}
	s.counterpartyItems = theirs
	s.initiatorItems = mine
	return nil
}

func (s *Session) Candidates(side Side) []MarketItem {
	var src []MarketItem
	switch side {
	case SideInitiator:
		src = s.initiatorItems
	case SideCounterparty:
		src = s.counterpartyItems
	}
	out := make([]MarketItem, len(src))
	copy(out, src)
	return out
}

// Propose evaluates and, when accepted, executes the swap of the two selections.
func (s *Session) Propose(initiatorSel, counterpartySel *MarketItem) (res Result) {
	if s.State() == StateIdle {
		return Result{Outcome: OutcomeFailed, Message: MsgFailed, Err: ErrNoSession}
	}
	if initiatorSel == nil || counterpartySel == nil {
		return s.fail(ErrNoSelection)
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("trade %s<->%s panicked: %v", s.initiator, s.counterparty, r)
			res = s.fail(fmt.Errorf("collaborator fault: %v", r))
		}
	}()

	give, take := *initiatorSel, *counterpartySel
	if !s.eval.IsAcceptable(give, take, s.draw) {
		return s.finish(Result{Outcome: OutcomeDeclined})
	}
	if s.exec == nil {
		return s.fail(errors.New("no executor"))
	}
	if err := s.exec.Execute(s.initiator, s.counterparty, give, take); err != nil {
		s.log.Printf("trade failed %s(%s)<->%s(%s): %v", s.initiator, give.Name, s.counterparty, take.Name, err)
		return s.fail(err)
	}
	if err := s.refresh(); err != nil {
		s.log.Printf("refresh after trade %s<->%s: %v", s.initiator, s.counterparty, err)
	}
	return s.finish(Result{Outcome: OutcomeCompleted})
}

func (s *Session) fail(err error) Result {
	return s.finish(Result{Outcome: OutcomeFailed, Err: err})
}

func (s *Session) finish(res Result) Result {
	res.Message = res.Outcome.Message()
	s.message = res.Message
	return res
}

// Close abandons the negotiation. Calling it again has no further effect.
func (s *Session) Close() {
	s.counterparty = ""
	s.initiatorItems = nil
	s.counterpartyItems = nil
	s.message = ""
}
