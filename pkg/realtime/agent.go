package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

const (
	defaultRejectReason  = "agent_rejected"
	defaultHangupReason  = "agent_hangup"
	defaultTransferType  = "blind"
	defaultHealthTimeout = 3 * time.Second
)

// Identity is the agent profile sent with agent_login
type Identity struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	FullName    string `json:"fullName"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Department  string `json:"department,omitempty"`
}

// CallInfo is a session's local view of one call
type CallInfo struct {
	CallID       string              `json:"callId"`
	CallerNumber string              `json:"callerNumber,omitempty"`
	CustomerInfo *types.CustomerInfo `json:"customerInfo,omitempty"`
	Status       types.CallStatus    `json:"status,omitempty"`
	Source       types.CallSource    `json:"source,omitempty"`
	OnHold       bool                `json:"onHold,omitempty"`
}

// AgentState is a snapshot of an AgentSession's mirrored state
type AgentState struct {
	Identity     *Identity         `json:"agentInfo"`
	Status       types.AgentStatus `json:"status"`
	CurrentCall  *CallInfo         `json:"currentCall"`
	IncomingCall *CallInfo         `json:"incomingCall"`
	Connected    bool              `json:"connected"`
	ConnectionID string            `json:"socketId,omitempty"`
}

// HealthResult is the outcome of HealthCheck. Status is connected, disconnected or timeout.
type HealthResult struct {
	Status   string                     `json:"status"`
	Response *types.HealthCheckResponse `json:"response,omitempty"`
}

// AgentSession is the agent-side adapter
type AgentSession struct {
	*session

	mu       sync.RWMutex
	identity *Identity
	status   types.AgentStatus
	current  *CallInfo
	incoming *CallInfo
	connID   string
}

// NewAgentSession creates an unconnected agent adapter
func NewAgentSession(opts Options) *AgentSession {
	a := &AgentSession{
		session: newSession(opts, "agent_session"),
		status:  types.StatusOffline,
	}
	a.mirrorCall = a.applyCall
	a.mirrorStatus = a.applyStatus
	a.onConnection = a.applyConnection
	return a
}

// Connect opens the connection for identity and returns once the server has
// acknowledged it. Calling Connect while connected is a no-op.
func (a *AgentSession) Connect(ctx context.Context, identity Identity) error {
	a.mu.Lock()
	id := identity
	a.identity = &id
	a.mu.Unlock()

	if _, err := a.connect(ctx); err != nil {
		return fmt.Errorf("agent connect: %w", err)
	}
	return nil
}

// Login registers the identity on the server. The outcome arrives as
// agent_login_success or agent_login_failed.
func (a *AgentSession) Login() error {
	if !a.IsConnected() {
		return ErrNotConnected
	}
	id := a.identityCopy()
	if id == nil || id.UserID == "" {
		return ErrNoIdentity
	}
	return a.send(types.EventAgentLogin, types.AgentLoginRequest{
		UserID:      id.UserID,
		Username:    id.Username,
		FullName:    id.FullName,
		Email:       id.Email,
		PhoneNumber: id.PhoneNumber,
		Department:  id.Department,
	})
}

// ChangeStatus asks for a new availability status. Only available, busy, away
// and offline can be requested.
func (a *AgentSession) ChangeStatus(status types.AgentStatus) error {
	if !a.IsConnected() {
		return ErrNotConnected
	}
	if !status.IsSelectable() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	a.mu.RLock()
	previous := a.status
	a.mu.RUnlock()

	return a.send(types.EventChangeAgentStatus, types.StatusChangeRequest{
		UserID:         a.userID(),
		Status:         status,
		PreviousStatus: previous,
	})
}

// AnswerCall answers callID, or the tracked incoming call when callID is empty
func (a *AgentSession) AnswerCall(callID string) error {
	if !a.IsConnected() {
		return ErrNotConnected
	}
	callID, err := a.incomingOr(callID)
	if err != nil {
		return err
	}
	return a.send(types.EventAnswerCall, types.AnswerCallRequest{CallID: callID, AgentID: a.userID()})
}

// RejectCall declines callID, or the tracked incoming call when callID is empty
func (a *AgentSession) RejectCall(callID, reason string) error {
	if !a.IsConnected() {
		return ErrNotConnected
	}
	callID, err := a.incomingOr(callID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = defaultRejectReason
	}
	if err := a.send(types.EventRejectCall, types.EndCallRequest{
		CallID:  callID,
		AgentID: a.userID(),
		Reason:  reason,
	}); err != nil {
		return err
	}

	a.mu.Lock()
	if a.incoming != nil && a.incoming.CallID == callID {
		a.incoming = nil
	}
	a.mu.Unlock()
	return nil
}

// EndCall hangs up the current call
func (a *AgentSession) EndCall(reason string) error {
	callID, err := a.currentID()
	if err != nil {
		return err
	}
	if !a.IsConnected() {
		return ErrNotConnected
	}
	if reason == "" {
		reason = defaultHangupReason
	}
	return a.send(types.EventEndCall, types.EndCallRequest{
		CallID:  callID,
		AgentID: a.userID(),
		EndedBy: types.EndedByAgent,
		Reason:  reason,
	})
}

// HoldCall puts the current call on hold
func (a *AgentSession) HoldCall() error {
	return a.callControl(types.EventHoldCall)
}

// ResumeCall takes the current call off hold
func (a *AgentSession) ResumeCall() error {
	return a.callControl(types.EventResumeCall)
}

func (a *AgentSession) callControl(event string) error {
	callID, err := a.currentID()
	if err != nil {
		return err
	}
	return a.send(event, types.CallControlRequest{CallID: callID, AgentID: a.userID()})
}

// TransferCall hands the current call to targetAgentID. mode defaults to blind.
func (a *AgentSession) TransferCall(targetAgentID, mode string) error {
	callID, err := a.currentID()
	if err != nil {
		return err
	}
	if mode == "" {
		mode = defaultTransferType
	}
	return a.send(types.EventTransferCall, types.TransferRequest{
		CallID:        callID,
		FromAgentID:   a.userID(),
		TargetAgentID: targetAgentID,
		TransferType:  mode,
	})
}

// SendTone sends one DTMF tone on the current call
func (a *AgentSession) SendTone(tone string) error {
	callID, err := a.currentID()
	if err != nil {
		return err
	}
	return a.send(types.EventSendDTMF, types.DTMFRequest{CallID: callID, Tone: tone, AgentID: a.userID()})
}

// MakeOutboundCall dials number on behalf of the agent
func (a *AgentSession) MakeOutboundCall(number string, profile *types.CustomerInfo) error {
	if !a.IsConnected() {
		return ErrNotConnected
	}
	a.mu.RLock()
	onCall := a.current != nil
	a.mu.RUnlock()
	if onCall {
		return ErrAlreadyOnCall
	}
	return a.send(types.EventMakeOutboundCall, types.OutboundCallRequest{
		AgentID:      a.userID(),
		TargetNumber: number,
		CustomerInfo: profile,
	})
}

// SimulateIncomingCall asks the server to ring this agent with a fake call
func (a *AgentSession) SimulateIncomingCall(req types.SimulateIncomingRequest) error {
	if !a.IsConnected() {
		return ErrNotConnected
	}
	return a.send(types.EventSimulateIncomingCall, req)
}

// GetDashboardData requests a dashboard_data snapshot
func (a *AgentSession) GetDashboardData() error {
	if !a.IsConnected() {
		return ErrNotConnected
	}
	return a.send(types.EventGetDashboardData, types.JoinRequest{AgentID: a.userID()})
}

// HealthCheck round-trips agent_health_check. Without a ctx deadline it waits 3s.
func (a *AgentSession) HealthCheck(ctx context.Context) (HealthResult, error) {
	if !a.IsConnected() {
		return HealthResult{Status: "disconnected"}, nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHealthTimeout)
		defer cancel()
	}

	resp := make(chan *types.HealthCheckResponse, 1)
	unsubscribe := a.On(types.EventHealthCheckResponse, func(msg *types.Message) {
		var h types.HealthCheckResponse
		if err := msg.Decode(&h); err != nil {
			return
		}
		select {
		case resp <- &h:
		default:
		}
	})
	defer unsubscribe()

	if err := a.send(types.EventAgentHealthCheck, types.JoinRequest{AgentID: a.userID()}); err != nil {
		return HealthResult{}, err
	}

	select {
	case h := <-resp:
		return HealthResult{Status: "connected", Response: h}, nil
	case <-ctx.Done():
		return HealthResult{Status: "timeout"}, nil
	}
}

// Logout goes offline, deregisters and disconnects
func (a *AgentSession) Logout() error {
	if a.identityCopy() != nil && a.IsConnected() {
		if err := a.ChangeStatus(types.StatusOffline); err != nil {
			a.logger.Debug().Err(err).Msg("offline status before logout failed")
		}
	}
	var err error
	if a.IsConnected() {
		err = a.send(types.EventAgentLogout, types.AgentLogoutRequest{UserID: a.userID()})
	}
	a.Close()
	return err
}

// State returns a copy of the mirrored state. It never performs I/O.
func (a *AgentSession) State() AgentState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return AgentState{
		Identity:     copyIdentity(a.identity),
		Status:       a.status,
		CurrentCall:  copyCall(a.current),
		IncomingCall: copyCall(a.incoming),
		Connected:    a.IsConnected(),
		ConnectionID: a.connID,
	}
}

// Close disconnects and resets the call state. Subscriptions survive.
func (a *AgentSession) Close() {
	a.disconnect()
	a.reset()
}

// Cleanup disconnects and drops every subscription. Safe to call repeatedly.
func (a *AgentSession) Cleanup() {
	a.cleanup()
	a.reset()
}

func (a *AgentSession) reset() {
	a.mu.Lock()
	a.status = types.StatusOffline
	a.current = nil
	a.incoming = nil
	a.connID = ""
	a.mu.Unlock()
}

// ---- mirroring ----

func (a *AgentSession) applyCall(ev CallEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Type {
	case types.EventIncomingCall:
		a.incoming = &CallInfo{
			CallID:       ev.Incoming.CallID,
			CallerNumber: ev.Incoming.CallerNumber,
			CustomerInfo: ev.Incoming.CustomerInfo,
			Status:       ev.Incoming.Status,
			Source:       ev.Incoming.Source,
		}
	case types.EventCallAnswered:
		a.current = &CallInfo{
			CallID:       ev.Answered.CallID,
			CallerNumber: ev.Answered.CallerNumber,
			CustomerInfo: ev.Answered.CustomerInfo,
			Status:       types.CallStatusConnected,
		}
		if a.incoming != nil && a.incoming.CallID == ev.CallID {
			a.incoming = nil
		}
		a.status = types.StatusOnCall
	case types.EventCallTransferredToAgent:
		a.current = &CallInfo{
			CallID:       ev.Transfer.CallID,
			CallerNumber: ev.Transfer.CallerNumber,
			CustomerInfo: ev.Transfer.CustomerInfo,
			Status:       types.CallStatusConnected,
		}
		a.status = types.StatusOnCall
	case types.EventCallTransferred:
		if a.current != nil && a.current.CallID == ev.CallID && ev.Transfer.TargetAgentID != a.userIDLocked() {
			a.current = nil
		}
	case types.EventCallEnded:
		if a.current != nil && a.current.CallID == ev.CallID {
			a.current = nil
			if a.status == types.StatusOnCall {
				a.status = types.StatusAvailable
			}
		}
		if a.incoming != nil && a.incoming.CallID == ev.CallID {
			a.incoming = nil
		}
	case types.EventCallFailed:
		if a.incoming != nil && a.incoming.CallID == ev.CallID {
			a.incoming = nil
		}
	case types.EventCallHold, types.EventCallResume:
		if a.current != nil && a.current.CallID == ev.CallID {
			a.current.OnHold = ev.Hold.OnHold
		}
	}
}

func (a *AgentSession) applyStatus(ev StatusEvent) {
	joined := false

	a.mu.Lock()
	switch ev.Type {
	case types.EventAgentLoginSuccess:
		a.status = types.StatusAvailable
		if ev.Login.Status != "" {
			a.status = ev.Login.Status
		}
		joined = true
	case types.EventStatusChangeSuccess:
		if ev.Change.NewStatus != "" {
			a.status = ev.Change.NewStatus
		}
	case types.EventAgentStatusUpdate:
		if ev.Update.AgentID != "" && ev.Update.AgentID == a.userIDLocked() {
			a.status = ev.Update.Status
		}
	}
	a.mu.Unlock()

	// a logged-in agent joins the call center for dashboard updates
	if joined {
		if err := a.send(types.EventJoinCallCenter, types.JoinRequest{
			UserType: types.UserTypeAgent,
			AgentID:  a.userID(),
		}); err != nil {
			a.logger.Debug().Err(err).Msg("join after login failed")
		}
	}
}

func (a *AgentSession) applyConnection(ev ConnectionEvent) {
	switch ev.Type {
	case EventOpened, EventReconnected:
		a.mu.Lock()
		a.connID = ev.ConnectionID
		a.mu.Unlock()
	case EventDisconnected:
		a.mu.Lock()
		a.connID = ""
		a.mu.Unlock()
	}

	// restore server-side presence after a transport-level reconnect
	if id := a.identityCopy(); ev.Type == EventReconnected && id != nil && id.UserID != "" {
		if err := a.Login(); err != nil {
			a.logger.Warn().Err(err).Msg("re-login after reconnect failed")
		}
	}
}

// ---- helpers ----

func (a *AgentSession) incomingOr(callID string) (string, error) {
	if callID != "" {
		return callID, nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.incoming == nil {
		return "", ErrNoIncomingCall
	}
	return a.incoming.CallID, nil
}

func (a *AgentSession) currentID() (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return "", ErrNoCurrentCall
	}
	return a.current.CallID, nil
}

func (a *AgentSession) identityCopy() *Identity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return copyIdentity(a.identity)
}

func (a *AgentSession) userID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userIDLocked()
}

func (a *AgentSession) userIDLocked() string {
	if a.identity == nil {
		return ""
	}
	return a.identity.UserID
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func copyCall(c *CallInfo) *CallInfo {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
