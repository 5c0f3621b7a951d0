package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

const (
	// DefaultViewerID is the user id a viewer joins with when none is configured
	DefaultViewerID = "crm_main"

	defaultTransferReason = "crm_transfer"
)

// ConnectionStatus is a snapshot of a ViewerSession
type ConnectionStatus struct {
	Connected         bool      `json:"connected"`
	ServerURL         string    `json:"serverUrl"`
	UserID            string    `json:"userId"`
	CurrentCall       *CallInfo `json:"currentCall"`
	ReconnectAttempts int       `json:"reconnectAttempts"`
}

// ViewerSession is the CRM-side adapter. It registers as a crm_system viewer on
// every connect and reconnect.
type ViewerSession struct {
	*session

	userID     string
	clientInfo *types.ClientInfo

	mu      sync.RWMutex
	current *CallInfo
}

// NewViewerSession creates an unconnected viewer adapter. An empty userID means crm_main.
func NewViewerSession(opts Options, userID string, clientInfo *types.ClientInfo) *ViewerSession {
	if userID == "" {
		userID = DefaultViewerID
	}
	v := &ViewerSession{
		session:    newSession(opts, "viewer_session"),
		userID:     userID,
		clientInfo: clientInfo,
	}
	v.mirrorCall = v.applyCall
	v.onConnection = v.applyConnection
	return v
}

// Connect opens the connection and joins the call center as a viewer
func (v *ViewerSession) Connect(ctx context.Context) error {
	if v.IsConnected() {
		return nil
	}
	if _, err := v.connect(ctx); err != nil {
		return fmt.Errorf("viewer connect: %w", err)
	}
	return nil
}

func (v *ViewerSession) join() error {
	return v.send(types.EventJoinCallCenter, types.JoinRequest{
		UserType:   types.UserTypeCRM,
		UserID:     v.userID,
		ClientInfo: v.clientInfo,
	})
}

// AnswerCall answers callID on behalf of agentID
func (v *ViewerSession) AnswerCall(callID, agentID string) error {
	if err := v.ready(callID); err != nil {
		return err
	}
	return v.send(types.EventAnswerCall, types.AnswerCallRequest{
		CallID:  callID,
		AgentID: agentID,
		Source:  types.SourceCRM,
	})
}

// RejectCall declines an offered call. reason defaults to crm_reject.
func (v *ViewerSession) RejectCall(callID, reason string) error {
	if reason == "" {
		reason = types.ReasonCRMReject
	}
	return v.end(callID, reason)
}

// EndCall hangs up a connected call. reason defaults to crm_end.
func (v *ViewerSession) EndCall(callID, reason string) error {
	if reason == "" {
		reason = types.ReasonCRMEnd
	}
	return v.end(callID, reason)
}

func (v *ViewerSession) end(callID, reason string) error {
	if err := v.ready(callID); err != nil {
		return err
	}
	if err := v.send(types.EventEndCall, types.EndCallRequest{
		CallID:    callID,
		EndReason: reason,
		Source:    types.SourceCRM,
	}); err != nil {
		return err
	}
	v.clearCall(callID)
	return nil
}

// TransferCall moves a connected call to targetAgentID. reason defaults to crm_transfer.
func (v *ViewerSession) TransferCall(callID, targetAgentID, reason string) error {
	if err := v.ready(callID); err != nil {
		return err
	}
	if reason == "" {
		reason = defaultTransferReason
	}
	return v.send(types.EventTransferCall, types.TransferRequest{
		CallID:        callID,
		TargetAgentID: targetAgentID,
		Reason:        reason,
		Source:        types.SourceCRM,
	})
}

// HoldCall puts callID on hold
func (v *ViewerSession) HoldCall(callID string) error {
	if err := v.ready(callID); err != nil {
		return err
	}
	return v.send(types.EventHoldCall, types.CallControlRequest{CallID: callID, Source: types.SourceCRM})
}

// ResumeCall takes callID off hold
func (v *ViewerSession) ResumeCall(callID string) error {
	if err := v.ready(callID); err != nil {
		return err
	}
	return v.send(types.EventResumeCall, types.CallControlRequest{CallID: callID, Source: types.SourceCRM})
}

func (v *ViewerSession) ready(callID string) error {
	if !v.IsConnected() {
		return ErrNotConnected
	}
	if callID == "" {
		return ErrMissingCallID
	}
	return nil
}

// CurrentCall returns the last offered call that has not ended
func (v *ViewerSession) CurrentCall() *CallInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return copyCall(v.current)
}

// ConnectionStatus reports the transport and call state
func (v *ViewerSession) ConnectionStatus() ConnectionStatus {
	return ConnectionStatus{
		Connected:         v.IsConnected(),
		ServerURL:         v.opts.ServerURL,
		UserID:            v.userID,
		CurrentCall:       v.CurrentCall(),
		ReconnectAttempts: v.transport.reconnectAttempts(),
	}
}

// Close disconnects and forgets the current call. Subscriptions survive.
func (v *ViewerSession) Close() {
	v.disconnect()
	v.clearCall("")
}

// Cleanup disconnects and drops every subscription. Safe to call repeatedly.
func (v *ViewerSession) Cleanup() {
	v.cleanup()
	v.clearCall("")
}

// clearCall forgets the current call when it is callID; an empty id always clears
func (v *ViewerSession) clearCall(callID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current != nil && (callID == "" || v.current.CallID == callID) {
		v.current = nil
	}
}

func (v *ViewerSession) applyCall(ev CallEvent) {
	switch ev.Type {
	case types.EventIncomingCallToCRM:
		v.mu.Lock()
		v.current = &CallInfo{
			CallID:       ev.Incoming.CallID,
			CallerNumber: ev.Incoming.CallerNumber,
			CustomerInfo: ev.Incoming.CustomerInfo,
			Status:       ev.Incoming.Status,
			Source:       ev.Incoming.Source,
		}
		v.mu.Unlock()
	case types.EventCallAnswered:
		v.mu.Lock()
		if v.current != nil && v.current.CallID == ev.CallID && ev.Answered.Call != nil {
			v.current.Status = ev.Answered.Call.Status
		}
		v.mu.Unlock()
	case types.EventCallOnHold, types.EventCallResumed:
		v.mu.Lock()
		if v.current != nil && v.current.CallID == ev.CallID {
			v.current.OnHold = ev.Hold.OnHold
		}
		v.mu.Unlock()
	case types.EventCallEnded, types.EventCallFailed:
		if ev.CallID != "" {
			v.clearCall(ev.CallID)
		}
	}
}

func (v *ViewerSession) applyConnection(ev ConnectionEvent) {
	if ev.Type != EventOpened && ev.Type != EventReconnected {
		return
	}
	if err := v.join(); err != nil {
		v.logger.Warn().Err(err).Msg("join_call_center failed")
	}
}
