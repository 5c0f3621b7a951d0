package types

import "encoding/json"

// APIResponse is the body of every auxiliary REST response
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Path    string          `json:"path,omitempty"`
	Method  string          `json:"method,omitempty"`
}

// HealthStatus answers GET /health
type HealthStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// AgentsSnapshot answers GET /api/realtime/agents
type AgentsSnapshot struct {
	Agents    []Agent `json:"agents"`
	Total     int     `json:"total"`
	Available int     `json:"available"`
}

// DemoInitiateRequest is the body of POST /api/call/demo/initiate
type DemoInitiateRequest struct {
	CallerNumber string          `json:"callerNumber"`
	TargetAgent  json.RawMessage `json:"targetAgent,omitempty"`
}

// DemoInitiateResult acknowledges a demo agent call
type DemoInitiateResult struct {
	CallID       string          `json:"callId"`
	CallerNumber string          `json:"callerNumber"`
	TargetAgent  json.RawMessage `json:"targetAgent,omitempty"`
	Status       string          `json:"status"`
	Message      string          `json:"message"`
}

// DemoStatus answers GET /api/call/demo/status
type DemoStatus struct {
	Service string  `json:"service"`
	Status  string  `json:"status"`
	Agents  int     `json:"agents"`
	Calls   int     `json:"calls"`
	Queue   int     `json:"queue"`
	Uptime  float64 `json:"uptime"` // seconds
}

// CallHistory answers GET /api/call/history
type CallHistory struct {
	Date    string       `json:"date"`
	AgentID string       `json:"agentId,omitempty"`
	Total   int          `json:"total"`
	Records []CallRecord `json:"records"`
}
