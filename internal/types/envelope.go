package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMissingType is returned when an inbound frame carries no event name
var ErrMissingType = errors.New("message type is required")

// Message is the wire envelope for every frame in both directions
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage builds an envelope around payload
func NewMessage(eventType string, payload interface{}, now time.Time) (*Message, error) {
	msg := &Message{Type: eventType, Timestamp: now}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		msg.Data = data
	}
	return msg, nil
}

// Encode builds and serializes an envelope in one step
func Encode(eventType string, payload interface{}, now time.Time) ([]byte, error) {
	msg, err := NewMessage(eventType, payload, now)
	if err != nil {
		return nil, err
	}
	return msg.ToJSON()
}

// ToJSON serializes the envelope
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes an inbound frame
func ParseMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return &msg, nil
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (m *Message) Decode(v interface{}) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}
