// Package events defines the envelope exchanged between ExCon processes and pushed to
// attached windows.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/excon/go/internal/models"
)

// Type is the kind of sync message.
type Type string

// TypeState carries a full DashboardSnapshot. It is the only type; there are no deltas.
const TypeState Type = "state"

// Message is a sync envelope. Origin identifies the publishing process so it can ignore
// its own messages.
type Message struct {
	ID      string                   `json:"id"`
	Type    Type                     `json:"type"`
	Payload models.DashboardSnapshot `json:"payload"`
	TS      time.Time                `json:"ts"`
	Origin  string                   `json:"origin,omitempty"`
}

// NewState wraps snap in a state message.
func NewState(origin string, snap models.DashboardSnapshot, ts time.Time) Message {
	return Message{
		ID:      uuid.NewString(),
		Type:    TypeState,
		Payload: snap,
		TS:      ts.UTC(),
		Origin:  origin,
	}
}

// Encode marshals m for the wire.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a wire message. Messages of an unknown type are rejected.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Type != TypeState {
		return Message{}, fmt.Errorf("unknown message type %q", m.Type)
	}
	if m.Payload.Injects == nil {
		m.Payload.Injects = []models.Inject{}
	}
	if m.Payload.Resources == nil {
		m.Payload.Resources = []models.Resource{}
	}
	return m, nil
}
