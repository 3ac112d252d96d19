package events

import (
	"encoding/json"
	"time"
)

// Message is the envelope every domain event travels in.
type Message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewMessage wraps payload in an envelope of the given type.
func NewMessage(eventType string, payload any, now time.Time) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: eventType, Timestamp: now.UTC(), Payload: body}, nil
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
