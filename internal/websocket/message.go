package websocket

import (
	"encoding/json"
	"time"
)

// creates a message with a marshaled payload
func NewMessage(messageType, sessionID, userID string, payload any) (*Message, error) {
	msg := &Message{
		Type:      messageType,
		SessionID: sessionID,
		UserID:    userID,
		Timestamp: time.Now(),
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}

		msg.Payload = raw
	}

	return msg, nil
}

// decodes the message payload into the given value
func (m *Message) UnmarshalPayload(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}

	return json.Unmarshal(m.Payload, v)
}
