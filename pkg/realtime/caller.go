package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// CallerState is a snapshot of a CallerSession's call
type CallerState struct {
	Connected     bool             `json:"connected"`
	CallID        string           `json:"callId,omitempty"`
	Status        types.CallStatus `json:"status,omitempty"`
	QueuePosition int              `json:"queuePosition,omitempty"`
	Agent         *types.AgentInfo `json:"agentInfo,omitempty"`
}

// CallerSession places customer calls. It holds at most one call at a time.
type CallerSession struct {
	*session

	mu   sync.RWMutex
	call *CallerState
}

// NewCallerSession creates an unconnected customer adapter
func NewCallerSession(opts Options) *CallerSession {
	c := &CallerSession{session: newSession(opts, "caller_session")}
	c.mirrorCall = c.applyCall
	return c
}

// Connect opens the connection
func (c *CallerSession) Connect(ctx context.Context) error {
	if _, err := c.connect(ctx); err != nil {
		return fmt.Errorf("caller connect: %w", err)
	}
	return nil
}

// Dial sends make_call. The call id arrives with call_initiated.
func (c *CallerSession) Dial(callerNumber, calledNumber string, customer *types.CustomerInfo) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.mu.Lock()
	if c.call != nil {
		c.mu.Unlock()
		return ErrAlreadyOnCall
	}
	c.call = &CallerState{Status: types.CallStatusInitiated}
	c.mu.Unlock()

	err := c.send(types.EventMakeCall, types.MakeCallRequest{
		CallerNumber: callerNumber,
		CalledNumber: calledNumber,
		CustomerInfo: customer,
	})
	if err != nil {
		c.clear("")
	}
	return err
}

// HangUp ends the current call as the caller
func (c *CallerSession) HangUp() error {
	c.mu.RLock()
	callID := ""
	if c.call != nil {
		callID = c.call.CallID
	}
	c.mu.RUnlock()
	if callID == "" {
		return ErrNoCurrentCall
	}
	if err := c.send(types.EventEndCall, types.EndCallRequest{
		CallID:    callID,
		EndReason: types.ReasonCallerHangup,
		EndedBy:   types.EndedByCaller,
	}); err != nil {
		return err
	}
	c.clear(callID)
	return nil
}

// State returns the current call, if any
func (c *CallerSession) State() CallerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state := CallerState{Connected: c.IsConnected()}
	if c.call != nil {
		state.CallID = c.call.CallID
		state.Status = c.call.Status
		state.QueuePosition = c.call.QueuePosition
		if c.call.Agent != nil {
			agent := *c.call.Agent
			state.Agent = &agent
		}
	}
	return state
}

// Close disconnects and forgets the call
func (c *CallerSession) Close() {
	c.disconnect()
	c.clear("")
}

// Cleanup disconnects and drops every subscription
func (c *CallerSession) Cleanup() {
	c.cleanup()
	c.clear("")
}

func (c *CallerSession) clear(callID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.call != nil && (callID == "" || c.call.CallID == callID) {
		c.call = nil
	}
}

func (c *CallerSession) applyCall(ev CallEvent) {
	switch ev.Type {
	case types.EventCallInitiated:
		c.mu.Lock()
		if c.call == nil || c.call.CallID == "" {
			c.call = &CallerState{CallID: ev.CallID, Status: ev.Initiated.Status}
		}
		c.mu.Unlock()
	case types.EventCallQueued:
		c.mu.Lock()
		if c.call != nil && c.call.CallID == ev.CallID {
			c.call.Status = types.CallStatusQueued
			c.call.QueuePosition = ev.Queued.QueuePosition
		}
		c.mu.Unlock()
	case types.EventCallConnected:
		c.mu.Lock()
		if c.call != nil && c.call.CallID == ev.CallID {
			agent := ev.Connected.AgentInfo
			c.call.Status = types.CallStatusConnected
			c.call.QueuePosition = 0
			c.call.Agent = &agent
		}
		c.mu.Unlock()
	case types.EventCallEnded, types.EventCallFailed:
		c.clear(ev.CallID)
	}
}
