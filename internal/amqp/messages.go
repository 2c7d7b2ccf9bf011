package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeMessage announces that a user's ledger changed. It carries no
// balances; consumers re-read the ledger for the current state.
type ChangeMessage struct {
	UserID   string    `json:"userId"`
	Kind     string    `json:"kind"`
	EntityID string    `json:"entityId,omitempty"`
	At       time.Time `json:"at"`
}

func NewChangeMessage(userID, kind, entityID string, at time.Time) *ChangeMessage {
	return &ChangeMessage{
		UserID:   userID,
		Kind:     kind,
		EntityID: entityID,
		At:       at.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and rejects ones without a user.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, fmt.Errorf("change message without userId")
	}
	return &msg, nil
}
