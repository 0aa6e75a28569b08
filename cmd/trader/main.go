package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voxelbarter.ai/internal/protocol"
)

type options struct {
	URL   string
	Agent string
	With  string
	Give  string
	Take  string
}

func main() {
	var opts options
	flag.StringVar(&opts.URL, "url", "ws://localhost:8080/v1/ws", "ws url")
	flag.StringVar(&opts.Agent, "agent", "player", "initiating agent id")
	flag.StringVar(&opts.With, "with", "citizen_1", "counterparty agent id")
	flag.StringVar(&opts.Give, "give", "", "item to offer (empty: list candidates only)")
	flag.StringVar(&opts.Take, "take", "", "item to ask for")
	flag.Parse()

	logger := log.New(os.Stdout, "[trader] ", log.LstdFlags|log.Lmicroseconds)
	if err := run(opts, logger, os.Stdout); err != nil {
		logger.Fatalf("%v", err)
	}
}

// run drives one negotiation: HELLO, START, optional PROPOSE, CLOSE.
func run(opts options, logger *log.Logger, out io.Writer) error {
	conn, _, err := websocket.DefaultDialer.Dial(opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c := &client{conn: conn, log: logger, out: out}
	if err := c.send(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, AgentID: opts.Agent}); err != nil {
		return err
	}
	if _, err := c.expect(protocol.TypeWelcome); err != nil {
		return err
	}

	if err := c.send(protocol.StartMsg{Type: protocol.TypeStart, CounterpartyID: opts.With}); err != nil {
		return err
	}
	if _, err := c.expect(protocol.TypeCandidates); err != nil {
		return err
	}

	if opts.Give != "" || opts.Take != "" {
		if err := c.send(protocol.ProposeMsg{Type: protocol.TypePropose, InitiatorItem: optional(opts.Give), CounterpartyItem: optional(opts.Take)}); err != nil {
			return err
		}
		outcome, err := c.expect(protocol.TypeResult)
		if err != nil {
			return err
		}
		if outcome == "COMPLETED" {
			if _, err := c.expect(protocol.TypeCandidates); err != nil {
				return err
			}
		}
	}

	if err := c.send(protocol.SimpleMsg{Type: protocol.TypeClose}); err != nil {
		return err
	}
	if _, err := c.expect(protocol.TypeCandidates); err != nil {
		return err
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return nil
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

type client struct {
	conn *websocket.Conn
	log  *log.Logger
	out  io.Writer
}

func (c *client) send(v any) error {
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// expect reads one message and prints it. ERROR or a type mismatch is an
// error. For RESULT it returns the outcome.
func (c *client) expect(typ string) (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	outcome := ""
	switch base.Type {
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		return "", fmt.Errorf("ERROR %s: %s", e.Code, e.Message)
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		_ = json.Unmarshal(msg, &w)
		c.log.Printf("WELCOME agent_id=%s session=%s", w.AgentID, w.SessionID)
	case protocol.TypeCandidates:
		var m protocol.CandidatesMsg
		_ = json.Unmarshal(msg, &m)
		c.log.Printf("CANDIDATES state=%s counterparty=%s", m.State, m.CounterpartyID)
		fmt.Fprint(c.out, formatItems("  offer", m.InitiatorItems))
		fmt.Fprint(c.out, formatItems("  want", m.CounterpartyItems))
	case protocol.TypeResult:
		var r protocol.ResultMsg
		_ = json.Unmarshal(msg, &r)
		c.log.Printf("RESULT %s %q %s (offer cost=%d, want cost=%d)", r.Outcome, r.Message, r.Code, r.InitiatorCost, r.CounterpartyCost)
		outcome = r.Outcome
	}
	if base.Type != typ {
		return "", fmt.Errorf("expected %s, got %s", typ, base.Type)
	}
	return outcome, nil
}

func formatItems(label string, items []protocol.Item) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%s: %-24s cost=%d\n", label, it.Name, it.Cost)
	}
	return b.String()
}
