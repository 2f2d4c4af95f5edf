package domain

import "encoding/json"

// Notification is a newly observed ledger transaction, normalized for broadcast.
type Notification struct {
	Hash      string
	Account   string
	Amount    string
	Block     any // decoded block; usually an object
	Timestamp int64 // ingestion instant, epoch milliseconds

	// Extra carries any additional top-level fields of the ingest payload.
	// They are relayed to subscribers untouched.
	Extra map[string]json.RawMessage
}

// MarshalJSON renders the notification as the flat object subscribers receive.
func (n Notification) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Extra)+5)
	for k, v := range n.Extra {
		out[k] = v
	}
	out["hash"] = n.Hash
	out["account"] = n.Account
	out["amount"] = n.Amount
	out["block"] = n.Block
	out["timestamp"] = n.Timestamp
	return json.Marshal(out)
}

// Event is the envelope of every WebSocket frame in both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// TransactionEvent is the server-to-client frame for a new transaction.
type TransactionEvent struct {
	Event string       `json:"event"`
	Data  Notification `json:"data"`
}

// NewTransactionEvent wraps n in a newTransaction frame.
func NewTransactionEvent(n Notification) TransactionEvent {
	return TransactionEvent{Event: EventNewTransaction, Data: n}
}
