package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentID         string `json:"agent_id"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	AgentID         string `json:"agent_id"`
	CatalogDigest   string `json:"catalog_digest"`
}

// START (client -> server)
type StartMsg struct {
	Type           string `json:"type"`
	CounterpartyID string `json:"counterparty_id"`
}

// PROPOSE (client -> server). A nil selection means nothing was picked.
type ProposeMsg struct {
	Type             string  `json:"type"`
	InitiatorItem    *string `json:"initiator_item"`
	CounterpartyItem *string `json:"counterparty_item"`
}

// LIST and CLOSE carry no payload beyond the type.
type SimpleMsg struct {
	Type string `json:"type"`
}

type Item struct {
	Name     string `json:"name"`
	Cost     int    `json:"cost"`
	Quantity int    `json:"quantity"`
}

// CANDIDATES (server -> client)
type CandidatesMsg struct {
	Type              string `json:"type"`
	State             string `json:"state"`
	CounterpartyID    string `json:"counterparty_id,omitempty"`
	InitiatorItems    []Item `json:"initiator_items"`
	CounterpartyItems []Item `json:"counterparty_items"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type    string `json:"type"`
	Outcome string `json:"outcome"` // COMPLETED, DECLINED, FAILED
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`

	// Costs of the submitted selections; an absent selection shows 0.
	InitiatorCost    int `json:"initiator_cost"`
	CounterpartyCost int `json:"counterparty_cost"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
