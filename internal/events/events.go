// Package events mirrors call and agent lifecycle transitions to an external
// pub/sub channel so other services can follow the call center without a
// WebSocket connection.
package events

import (
	"encoding/json"
	"time"
)

// Event is one lifecycle transition
type Event struct {
	Type      string    `json:"type"`
	CallID    string    `json:"callId,omitempty"`
	AgentID   string    `json:"agentId,omitempty"`
	Status    string    `json:"status,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Duration  int       `json:"duration,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode serializes the event for the wire
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher receives lifecycle events. Publish must not block the caller.
type Publisher interface {
	Publish(ev Event)
	Close() error
}

// NoopPublisher discards every event
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (NoopPublisher) Publish(Event) {}
func (NoopPublisher) Close() error  { return nil }
