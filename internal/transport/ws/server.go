package ws

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"voxelbarter.ai/internal/protocol"
	"voxelbarter.ai/internal/sim/inventory"
	"voxelbarter.ai/internal/sim/market"
)

type Config struct {
	Inventory     market.Inventory
	Catalog       market.Catalog
	CatalogDigest string
	Evaluator     market.Evaluator

	// Seed feeds per-connection draws; each connection gets Seed+n.
	Seed int64
	// NewDraw overrides the seeded draw (tests).
	NewDraw func() market.Draw

	// MessagesPerSecond limits client messages per connection; 0 disables.
	MessagesPerSecond float64
	Burst             int
}

type Server struct {
	cfg  Config
	log  *log.Logger
	conn atomic.Int64
	// exec is shared by every connection so trades on the provider never interleave.
	exec *market.Executor

	upgrader websocket.Upgrader
}

func NewServer(cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		cfg:  cfg,
		log:  logger,
		exec: &market.Executor{Inventory: cfg.Inventory, Catalog: cfg.Catalog},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		agentID, sessionID := s.handshake(conn)
		if agentID == "" {
			return
		}
		sess := market.NewSession(agentID, market.SessionDeps{
			Snapshotter: market.Snapshotter{Inventory: s.cfg.Inventory, Catalog: s.cfg.Catalog},
			Executor:    s.exec,
			Evaluator:   s.cfg.Evaluator,
			Draw:        s.draw(),
			Logger:      s.log,
		})
		defer sess.Close()
		s.log.Printf("session %s opened for %s", sessionID, agentID)
		limiter := s.limiter()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if limiter != nil && !limiter.Allow() {
				if err := writeError(conn, protocol.ErrRateLimit, "slow down"); err != nil {
					break
				}
				continue
			}
			if err := s.dispatch(conn, sess, msg); err != nil {
				break
			}
		}
		s.log.Printf("session %s closed for %s", sessionID, agentID)
	}
}

func (s *Server) draw() market.Draw {
	if s.cfg.NewDraw != nil {
		return s.cfg.NewDraw()
	}
	return market.NewDraw(s.cfg.Seed + s.conn.Add(1))
}

func (s *Server) limiter() *rate.Limiter {
	if s.cfg.MessagesPerSecond <= 0 {
		return nil
	}
	burst := s.cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), burst)
}

func (s *Server) handshake(conn *websocket.Conn) (agentID, sessionID string) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", ""
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeError(conn, protocol.ErrProtoVersion, "bad protocol_version")
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", ""
	}
	hello.AgentID = strings.TrimSpace(hello.AgentID)
	if _, err := s.cfg.Inventory.SlotCount(hello.AgentID); err != nil {
		_ = writeError(conn, protocol.ErrNotFound, "unknown agent "+hello.AgentID)
		return "", ""
	}

	sessionID = uuid.NewString()
	if err := writeJSON(conn, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		AgentID:         hello.AgentID,
		CatalogDigest:   s.cfg.CatalogDigest,
	}); err != nil {
		return "", ""
	}
	return hello.AgentID, sessionID
}

// dispatch handles one client message. A returned error ends the connection.
func (s *Server) dispatch(conn *websocket.Conn, sess *market.Session, msg []byte) error {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return writeError(conn, protocol.ErrProtoBadRequest, "malformed message")
	}

	switch base.Type {
	case protocol.TypeStart:
		var m protocol.StartMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return writeError(conn, protocol.ErrProtoBadRequest, "malformed START")
		}
		if err := sess.StartNegotiation(strings.TrimSpace(m.CounterpartyID)); err != nil {
			return writeError(conn, startCode(err), err.Error())
		}
		return writeJSON(conn, candidates(sess))

	case protocol.TypeList:
		if sess.State() == market.StateNegotiating {
			if err := sess.Refresh(); err != nil {
				s.log.Printf("refresh %s<->%s: %v", sess.Initiator(), sess.Counterparty(), err)
				return writeError(conn, protocol.ErrInternal, "refresh failed")
			}
		}
		return writeJSON(conn, candidates(sess))

	case protocol.TypePropose:
		var m protocol.ProposeMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return writeError(conn, protocol.ErrProtoBadRequest, "malformed PROPOSE")
		}
		give := pick(sess.Candidates(market.SideInitiator), m.InitiatorItem)
		take := pick(sess.Candidates(market.SideCounterparty), m.CounterpartyItem)
		res := sess.Propose(give, take)
		if err := writeJSON(conn, protocol.ResultMsg{
			Type:    protocol.TypeResult,
			Outcome: res.Outcome.String(),
			Message: res.Message,
			Code:    res.Code(),

			InitiatorCost:    market.SelectionCost(give),
			CounterpartyCost: market.SelectionCost(take),
		}); err != nil {
			return err
		}
		if res.Outcome == market.OutcomeCompleted {
			return writeJSON(conn, candidates(sess))
		}
		return nil

	case protocol.TypeClose:
		sess.Close()
		return writeJSON(conn, candidates(sess))

	default:
		return writeError(conn, protocol.ErrProtoBadRequest, "unknown type "+base.Type)
	}
}

// pick resolves a selected name against the cached candidates.
func pick(items []market.MarketItem, name *string) *market.MarketItem {
	if name == nil {
		return nil
	}
	it, ok := market.FindCandidate(items, *name)
	if !ok {
		return nil
	}
	return &it
}

func startCode(err error) string {
	switch {
	case errors.Is(err, market.ErrNoSession):
		return protocol.ErrNoSession
	case errors.Is(err, inventory.ErrUnknownAgent):
		return protocol.ErrNotFound
	default:
		return protocol.ErrInternal
	}
}

func candidates(sess *market.Session) protocol.CandidatesMsg {
	return protocol.CandidatesMsg{
		Type:              protocol.TypeCandidates,
		State:             sess.State().String(),
		CounterpartyID:    sess.Counterparty(),
		InitiatorItems:    toItems(sess.Candidates(market.SideInitiator)),
		CounterpartyItems: toItems(sess.Candidates(market.SideCounterparty)),
	}
}

func toItems(in []market.MarketItem) []protocol.Item {
	out := make([]protocol.Item, 0, len(in))
	for _, it := range in {
		out = append(out, protocol.Item{Name: it.Name, Cost: it.Cost, Quantity: it.Quantity})
	}
	return out
}

func writeError(conn *websocket.Conn, code, message string) error {
	return writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
