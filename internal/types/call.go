package types

import (
	"encoding/json"
	"time"
)

// CallStatus represents the lifecycle state of a call
type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusQueued    CallStatus = "queued"
	CallStatusConnected CallStatus = "connected"
	CallStatusEnded     CallStatus = "ended"
	CallStatusRejected  CallStatus = "rejected"
	CallStatusFailed    CallStatus = "failed"
)

// IsTerminal reports whether the status removes the call from the directory
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusEnded, CallStatusRejected, CallStatusFailed:
		return true
	}
	return false
}

// CallSource records who created the call
type CallSource string

const (
	SourceCustomer  CallSource = "customer"
	SourceSoftphone CallSource = "softphone"
	SourceCRM       CallSource = "crm_system"
	SourceOutbound  CallSource = "outbound"
	SourceSimulated CallSource = "simulated"
)

// Call id prefixes
const (
	PrefixCall      = "CALL"
	PrefixSoftphone = "SOFTPHONE_CALL"
	PrefixDemo      = "DEMO_CALL"
	PrefixOutbound  = "OUTBOUND_CALL"
	PrefixSimulated = "SIM_CALL"
	PrefixAgentCall = "AGENT_CALL"
)

// CustomerInfo is the opaque customer profile snapshot attached to a call.
// ID is kept raw because CRM clients send it both as a number and as a string.
type CustomerInfo struct {
	ID          json.RawMessage `json:"id,omitempty"`
	FullName    string          `json:"fullName,omitempty"`
	PhoneNumber string          `json:"phoneNumber,omitempty"`
	Email       string          `json:"email,omitempty"`
	CIF         string          `json:"cif,omitempty"`
}

// AssignedAgent is the display hint carried by softphone and demo calls
type AssignedAgent struct {
	ID       string      `json:"id"`
	UserID   string      `json:"userId,omitempty"`
	FullName string      `json:"fullName"`
	Status   AgentStatus `json:"status,omitempty"`
}

// Call represents a live call tracked by the directory
type Call struct {
	CallID        string         `json:"callId"`
	CallerNumber  string         `json:"callerNumber"`
	CalledNumber  string         `json:"calledNumber,omitempty"`
	CustomerInfo  *CustomerInfo  `json:"customerInfo,omitempty"`
	AssignedAgent *AssignedAgent `json:"assignedAgent,omitempty"`
	Status        CallStatus     `json:"status"`
	Source        CallSource     `json:"source"`
	StartTime     time.Time      `json:"startTime"`
	ConnectedTime *time.Time     `json:"connectedTime,omitempty"`
	AgentID       string         `json:"agentId,omitempty"`
	OnHold        bool           `json:"onHold,omitempty"`

	// ConnID is the originating connection; it never leaves the server
	ConnID string `json:"-"`

	// ReservedFor is the agent connection picked for a pending direct connect
	ReservedFor string `json:"-"`

	// AgentSince is when the current agent took the call; transfers reset it
	AgentSince *time.Time `json:"-"`
}

// DurationSecs returns whole seconds since connect, or 0 if never connected
func (c Call) DurationSecs(now time.Time) int {
	if c.ConnectedTime == nil {
		return 0
	}
	d := now.Sub(*c.ConnectedTime)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// HandleSecs returns the seconds the current agent has held the call
func (c Call) HandleSecs(now time.Time) float64 {
	since := c.AgentSince
	if since == nil {
		since = c.ConnectedTime
	}
	if since == nil || now.Before(*since) {
		return 0
	}
	return now.Sub(*since).Seconds()
}
