package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// PaymentRegisteredMessage announces a newly registered payment. The worker
// loads the joined payment from storage by ID.
type PaymentRegisteredMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

var errMissingID = errors.New("message without payment id")

func NewPaymentRegisteredMessage(id string) *PaymentRegisteredMessage {
	return &PaymentRegisteredMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PaymentRegisteredMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PaymentRegisteredMessageFromJSON decodes a message and rejects a blank id.
func PaymentRegisteredMessageFromJSON(data []byte) (*PaymentRegisteredMessage, error) {
	var msg PaymentRegisteredMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	msg.ID = strings.TrimSpace(msg.ID)
	if msg.ID == "" {
		return nil, errMissingID
	}
	return &msg, nil
}
