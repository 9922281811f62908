package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"budgetplaner/internal/core"
)

// EventMessage carries a ledger event. It holds ids only; consumers load
// the current state of the transaction from the store.
type EventMessage struct {
	Event     core.LedgerEvent `json:"event"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewEventMessage(e core.LedgerEvent) *EventMessage {
	return &EventMessage{Event: e, Timestamp: time.Now()}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON parses a message and rejects events without a type
// or owner.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Event.Type == "" || msg.Event.OwnerID == "" {
		return nil, fmt.Errorf("incomplete event message")
	}
	return &msg, nil
}
