package types

import "time"

// AgentStatus represents the availability of an agent
type AgentStatus string

const (
	StatusAvailable AgentStatus = "available"
	StatusBusy      AgentStatus = "busy"
	StatusAway      AgentStatus = "away"
	StatusOffline   AgentStatus = "offline"

	// StatusOnCall is set by the call lifecycle only, never by a status change request
	StatusOnCall AgentStatus = "on_call"
)

// SelectableStatuses are the values an agent may request through change_agent_status
var SelectableStatuses = []AgentStatus{
	StatusAvailable,
	StatusBusy,
	StatusAway,
	StatusOffline,
}

// IsSelectable reports whether s may be requested by an agent
func (s AgentStatus) IsSelectable() bool {
	for _, allowed := range SelectableStatuses {
		if s == allowed {
			return true
		}
	}
	return false
}

// UserType distinguishes CRM viewer registrations from agent dashboards
type UserType string

const (
	UserTypeCRM   UserType = "crm_system"
	UserTypeAgent UserType = "agent"
)

// Agent is a logged-in human operator bound to one connection
type Agent struct {
	ID                string      `json:"id"`
	Username          string      `json:"username"`
	FullName          string      `json:"fullName"`
	Email             string      `json:"email,omitempty"`
	Department        string      `json:"department,omitempty"`
	Status            AgentStatus `json:"status"`
	ConnID            string      `json:"socketId"`
	LoginTime         time.Time   `json:"loginTime"`
	StatusSince       time.Time   `json:"statusSince"`
	TotalCallsHandled int         `json:"totalCallsHandled"`
	AvgHandleTime     float64     `json:"avgHandleTime"` // seconds
}

// Info returns the display fields sent to customers and viewers
func (a Agent) Info() AgentInfo {
	return AgentInfo{
		ID:       a.ID,
		FullName: a.FullName,
		Username: a.Username,
	}
}

// RecordHandledCall folds one finished call into the running counters
func (a *Agent) RecordHandledCall(handleSecs float64) {
	total := a.AvgHandleTime * float64(a.TotalCallsHandled)
	a.TotalCallsHandled++
	a.AvgHandleTime = (total + handleSecs) / float64(a.TotalCallsHandled)
}

// AgentInfo is the agent display snapshot attached to call events
type AgentInfo struct {
	ID       string `json:"id"`
	FullName string `json:"fullName,omitempty"`
	Username string `json:"username,omitempty"`
	Source   string `json:"source,omitempty"`
}

// SyntheticAgent stands in for a real agent when the queue fallback connects a call
var SyntheticAgent = AgentInfo{
	ID:       "agent_mock",
	FullName: "Mock Agent",
	Username: "agent01",
}

// Viewer is a passive CRM back-office registration
type Viewer struct {
	ID         string      `json:"id"`
	ConnID     string      `json:"socketId"`
	ClientInfo *ClientInfo `json:"clientInfo,omitempty"`
	JoinTime   time.Time   `json:"joinTime"`
}

// ClientInfo describes the CRM client that joined
type ClientInfo struct {
	Platform  string `json:"platform,omitempty"`
	Version   string `json:"version,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	URL       string `json:"url,omitempty"`
}
