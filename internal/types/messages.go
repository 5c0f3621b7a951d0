package types

// Inbound event names (client -> server)
const (
	EventMakeCall             = "make_call"
	EventEndCall              = "end_call"
	EventRejectCall           = "reject_call"
	EventAnswerCall           = "answer_call"
	EventSendDTMF             = "send_dtmf"
	EventAgentLogin           = "agent_login"
	EventAgentLogout          = "agent_logout"
	EventChangeAgentStatus    = "change_agent_status"
	EventJoinCallCenter       = "join_call_center"
	EventGetDashboardData     = "get_dashboard_data"
	EventHealthCheck          = "health_check"
	EventAgentHealthCheck     = "agent_health_check"
	EventHoldCall             = "hold_call"
	EventResumeCall           = "resume_call"
	EventTransferCall         = "transfer_call"
	EventMakeOutboundCall     = "make_outbound_call"
	EventSimulateIncomingCall = "simulate_incoming_call"
)

// Outbound event names (server -> client)
const (
	EventConnected              = "connected"
	EventCallInitiated          = "call_initiated"
	EventCallQueued             = "call_queued"
	EventCallConnected          = "call_connected"
	EventCallFailed             = "call_failed"
	EventCallEnded              = "call_ended"
	EventCallAnswered           = "call_answered"
	EventAgentLoginSuccess      = "agent_login_success"
	EventAgentLoginFailed       = "agent_login_failed"
	EventAgentStatusUpdate      = "agent_status_update"
	EventStatusChangeSuccess    = "status_change_success"
	EventStatusChangeFailed     = "status_change_failed"
	EventJoinedCallCenter       = "joined_call_center"
	EventIncomingCall           = "incoming_call"
	EventIncomingCallToCRM      = "incoming_call_to_crm"
	EventDashboardData          = "dashboard_data"
	EventRealTimeStats          = "real_time_stats"
	EventDTMFSent               = "dtmf_sent"
	EventHealthCheckResponse    = "health_check_response"
	EventCallHold               = "call_hold"
	EventCallResume             = "call_resume"
	EventCallOnHold             = "call_on_hold"
	EventCallResumed            = "call_resumed"
	EventCallTransferred        = "call_transferred"
	EventCallTransferredToAgent = "call_transferred_to_agent"
)

// Default end reasons
const (
	ReasonCallerHangup       = "caller_hangup"
	ReasonAgentEnded         = "agent_ended"
	ReasonAgentDeclined      = "agent_declined"
	ReasonCRMReject          = "crm_reject"
	ReasonCRMEnd             = "crm_end"
	ReasonTimeout            = "timeout"
	ReasonCustomerHangup     = "customer_hangup"
	ReasonAgentDisconnected  = "agent_disconnected"
	ReasonCallerDisconnected = "caller_disconnected"
)

// Ended-by parties
const (
	EndedByCaller = "caller"
	EndedByAgent  = "agent"
	EndedBySystem = "system"
)

// ---- inbound payloads ----

// MakeCallRequest is sent by a customer dialing in
type MakeCallRequest struct {
	CallerNumber string        `json:"callerNumber"`
	CalledNumber string        `json:"calledNumber"`
	CustomerInfo *CustomerInfo `json:"customerInfo,omitempty"`
}

// EndCallRequest carries both end_call and reject_call
type EndCallRequest struct {
	CallID    string     `json:"callId"`
	AgentID   string     `json:"agentId,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	EndReason string     `json:"endReason,omitempty"`
	EndedBy   string     `json:"endedBy,omitempty"`
	Source    CallSource `json:"source,omitempty"`
}

// AnswerCallRequest is sent by an agent or by a CRM viewer on behalf of AgentID
type AnswerCallRequest struct {
	CallID  string     `json:"callId"`
	AgentID string     `json:"agentId,omitempty"`
	Source  CallSource `json:"source,omitempty"`
}

// DTMFRequest carries one keypad tone
type DTMFRequest struct {
	CallID  string `json:"callId"`
	Tone    string `json:"tone"`
	AgentID string `json:"agentId,omitempty"`
}

// AgentLoginRequest registers an agent on the sending connection
type AgentLoginRequest struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	FullName    string `json:"fullName"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Department  string `json:"department,omitempty"`
}

// AgentLogoutRequest removes the agent registered on the sending connection
type AgentLogoutRequest struct {
	UserID string `json:"userId,omitempty"`
}

// StatusChangeRequest asks for a new availability status
type StatusChangeRequest struct {
	UserID         string      `json:"userId,omitempty"`
	Status         AgentStatus `json:"status"`
	PreviousStatus AgentStatus `json:"previousStatus,omitempty"`
}

// JoinRequest registers a CRM viewer, or asks for dashboard data as an agent
type JoinRequest struct {
	UserType   UserType    `json:"userType,omitempty"`
	UserID     string      `json:"userId,omitempty"`
	AgentID    string      `json:"agentId,omitempty"`
	ClientInfo *ClientInfo `json:"clientInfo,omitempty"`
}

// CallControlRequest is used by hold_call and resume_call
type CallControlRequest struct {
	CallID  string     `json:"callId"`
	AgentID string     `json:"agentId,omitempty"`
	Source  CallSource `json:"source,omitempty"`
}

// TransferRequest moves a connected call to another agent
type TransferRequest struct {
	CallID        string     `json:"callId"`
	FromAgentID   string     `json:"fromAgentId,omitempty"`
	TargetAgentID string     `json:"targetAgentId"`
	TransferType  string     `json:"transferType,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Source        CallSource `json:"source,omitempty"`
}

// OutboundCallRequest is an agent dialing out
type OutboundCallRequest struct {
	AgentID      string        `json:"agentId,omitempty"`
	TargetNumber string        `json:"targetNumber"`
	CustomerInfo *CustomerInfo `json:"customerInfo,omitempty"`
}

// SimulateIncomingRequest offers a fake call to the sending agent
type SimulateIncomingRequest struct {
	CallID       string        `json:"callId,omitempty"`
	CallerNumber string        `json:"callerNumber,omitempty"`
	CustomerInfo *CustomerInfo `json:"customerInfo,omitempty"`
}

// ---- outbound payloads ----

// ConnectedPayload opens every connection
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// CallInitiated acknowledges a new call
type CallInitiated struct {
	CallID       string     `json:"callId"`
	CallerNumber string     `json:"callerNumber"`
	CalledNumber string     `json:"calledNumber,omitempty"`
	Status       CallStatus `json:"status"`
}

// CallQueued tells the caller where it is in line
type CallQueued struct {
	CallID            string `json:"callId"`
	QueuePosition     int    `json:"queuePosition"`
	EstimatedWaitTime int    `json:"estimatedWaitTime"` // seconds
}

// CallConnected tells the caller who picked up
type CallConnected struct {
	CallID    string    `json:"callId"`
	AgentInfo AgentInfo `json:"agentInfo"`
}

// CallFailed tells the caller the call was rejected
type CallFailed struct {
	CallID  string `json:"callId"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason"`
}

// CallEnded announces a terminated call
type CallEnded struct {
	CallID    string `json:"callId"`
	Duration  int    `json:"duration"` // seconds
	EndReason string `json:"endReason"`
	EndedBy   string `json:"endedBy,omitempty"`
	Message   string `json:"message,omitempty"`
}

// AnsweredCall is the call summary nested in viewer call_answered events
type AnsweredCall struct {
	CallID       string        `json:"callId"`
	CallerNumber string        `json:"callerNumber,omitempty"`
	CustomerInfo *CustomerInfo `json:"customerInfo,omitempty"`
	Status       CallStatus    `json:"status"`
	AgentInfo    *AgentInfo    `json:"agentInfo,omitempty"`
}

// CallAnswered confirms an answer. Agents read the flat fields, viewers read Call.
type CallAnswered struct {
	CallID       string        `json:"callId"`
	CallerNumber string        `json:"callerNumber,omitempty"`
	CustomerInfo *CustomerInfo `json:"customerInfo,omitempty"`
	AgentID      string        `json:"agentId,omitempty"`
	Call         *AnsweredCall `json:"call,omitempty"`
	Message      string        `json:"message,omitempty"`
}

// LoginResult is the payload of agent_login_success and agent_login_failed
type LoginResult struct {
	UserID   string      `json:"userId,omitempty"`
	Username string      `json:"username,omitempty"`
	Status   AgentStatus `json:"status,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// AgentStatusUpdate is broadcast on every agent status transition
type AgentStatusUpdate struct {
	AgentID  string      `json:"agentId"`
	Username string      `json:"username"`
	Status   AgentStatus `json:"status"`
}

// StatusChangeResult answers change_agent_status
type StatusChangeResult struct {
	NewStatus      AgentStatus `json:"newStatus,omitempty"`
	PreviousStatus AgentStatus `json:"previousStatus,omitempty"`
	Reason         string      `json:"reason,omitempty"`
}

// JoinedCallCenter confirms a viewer registration
type JoinedCallCenter struct {
	Message  string   `json:"message"`
	UserType UserType `json:"userType"`
	UserID   string   `json:"userId"`
}

// IncomingCall offers a ringing call to an agent or a viewer
type IncomingCall struct {
	CallID        string         `json:"callId"`
	CallerNumber  string         `json:"callerNumber"`
	CalledNumber  string         `json:"calledNumber,omitempty"`
	CustomerInfo  *CustomerInfo  `json:"customerInfo,omitempty"`
	AssignedAgent *AssignedAgent `json:"assignedAgent,omitempty"`
	Status        CallStatus     `json:"status"`
	Source        CallSource     `json:"source,omitempty"`
	StartTime     string         `json:"startTime"`
}

// DTMFSent echoes a keypad tone
type DTMFSent struct {
	CallID string `json:"callId"`
	Tone   string `json:"tone"`
}

// HealthCheckResponse answers health_check
type HealthCheckResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"` // seconds
}

// CallHoldEvent is the payload of call_hold, call_resume, call_on_hold and call_resumed
type CallHoldEvent struct {
	CallID  string `json:"callId"`
	AgentID string `json:"agentId,omitempty"`
	OnHold  bool   `json:"onHold"`
}

// CallTransferred is the payload of call_transferred and call_transferred_to_agent
type CallTransferred struct {
	CallID        string        `json:"callId"`
	CallerNumber  string        `json:"callerNumber,omitempty"`
	CustomerInfo  *CustomerInfo `json:"customerInfo,omitempty"`
	FromAgentID   string        `json:"fromAgentId,omitempty"`
	TargetAgentID string        `json:"targetAgentId"`
	TransferType  string        `json:"transferType,omitempty"`
	Reason        string        `json:"reason,omitempty"`
}
