package realtime

import (
	"encoding/json"
	"time"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// Connection lifecycle names published by the adapters themselves
const (
	EventOpened          = "opened"
	EventDisconnected    = "disconnected"
	EventReconnecting    = "reconnecting"
	EventReconnected     = "reconnected"
	EventReconnectFailed = "reconnect_failed"
)

// CallEvent is a decoded call lifecycle frame. Exactly one payload field is set,
// chosen by Type.
type CallEvent struct {
	Type      string
	CallID    string
	Timestamp time.Time

	Incoming  *types.IncomingCall    // incoming_call, incoming_call_to_crm
	Initiated *types.CallInitiated   // call_initiated
	Queued    *types.CallQueued      // call_queued
	Connected *types.CallConnected   // call_connected
	Answered  *types.CallAnswered    // call_answered
	Ended     *types.CallEnded       // call_ended
	Failed    *types.CallFailed      // call_failed
	Hold      *types.CallHoldEvent   // call_hold, call_resume, call_on_hold, call_resumed
	Transfer  *types.CallTransferred // call_transferred, call_transferred_to_agent
	DTMF      *types.DTMFSent        // dtmf_sent
}

// StatusEvent is a decoded agent status frame
type StatusEvent struct {
	Type      string
	Timestamp time.Time

	Login  *types.LoginResult        // agent_login_success, agent_login_failed
	Change *types.StatusChangeResult // status_change_success, status_change_failed
	Update *types.AgentStatusUpdate  // agent_status_update
}

// DashboardEvent is a decoded dashboard or health frame
type DashboardEvent struct {
	Type      string
	Timestamp time.Time

	Dashboard *types.DashboardData       // dashboard_data
	Stats     *types.Stats               // real_time_stats
	Health    *types.HealthCheckResponse // health_check_response
	Joined    *types.JoinedCallCenter    // joined_call_center
}

// ConnectionEvent reports transport state changes
type ConnectionEvent struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId,omitempty"`
	Attempt      int    `json:"attempt,omitempty"`
	Error        string `json:"error,omitempty"`
}

// decodeInto decodes msg's payload into a fresh T
func decodeInto[T any](msg *types.Message) (*T, error) {
	v := new(T)
	if err := msg.Decode(v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeCall returns the typed call event for msg, or ok=false when msg is not a call frame
func decodeCall(msg *types.Message) (ev CallEvent, ok bool, err error) {
	ev = CallEvent{Type: msg.Type, Timestamp: msg.Timestamp}
	switch msg.Type {
	case types.EventIncomingCall, types.EventIncomingCallToCRM:
		ev.Incoming, err = decodeInto[types.IncomingCall](msg)
		if err == nil {
			ev.CallID = ev.Incoming.CallID
		}
	case types.EventCallInitiated:
		ev.Initiated, err = decodeInto[types.CallInitiated](msg)
		if err == nil {
			ev.CallID = ev.Initiated.CallID
		}
	case types.EventCallQueued:
		ev.Queued, err = decodeInto[types.CallQueued](msg)
		if err == nil {
			ev.CallID = ev.Queued.CallID
		}
	case types.EventCallConnected:
		ev.Connected, err = decodeInto[types.CallConnected](msg)
		if err == nil {
			ev.CallID = ev.Connected.CallID
		}
	case types.EventCallAnswered:
		ev.Answered, err = decodeInto[types.CallAnswered](msg)
		if err == nil {
			ev.CallID = ev.Answered.CallID
		}
	case types.EventCallEnded:
		ev.Ended, err = decodeInto[types.CallEnded](msg)
		if err == nil {
			ev.CallID = ev.Ended.CallID
		}
	case types.EventCallFailed:
		ev.Failed, err = decodeInto[types.CallFailed](msg)
		if err == nil {
			ev.CallID = ev.Failed.CallID
		}
	case types.EventCallHold, types.EventCallResume, types.EventCallOnHold, types.EventCallResumed:
		ev.Hold, err = decodeInto[types.CallHoldEvent](msg)
		if err == nil {
			ev.CallID = ev.Hold.CallID
		}
	case types.EventCallTransferred, types.EventCallTransferredToAgent:
		ev.Transfer, err = decodeInto[types.CallTransferred](msg)
		if err == nil {
			ev.CallID = ev.Transfer.CallID
		}
	case types.EventDTMFSent:
		ev.DTMF, err = decodeInto[types.DTMFSent](msg)
		if err == nil {
			ev.CallID = ev.DTMF.CallID
		}
	default:
		return ev, false, nil
	}
	return ev, true, err
}

func decodeStatus(msg *types.Message) (ev StatusEvent, ok bool, err error) {
	ev = StatusEvent{Type: msg.Type, Timestamp: msg.Timestamp}
	switch msg.Type {
	case types.EventAgentLoginSuccess, types.EventAgentLoginFailed:
		ev.Login, err = decodeInto[types.LoginResult](msg)
	case types.EventStatusChangeSuccess, types.EventStatusChangeFailed:
		ev.Change, err = decodeInto[types.StatusChangeResult](msg)
	case types.EventAgentStatusUpdate:
		ev.Update, err = decodeInto[types.AgentStatusUpdate](msg)
	default:
		return ev, false, nil
	}
	return ev, true, err
}

func decodeDashboard(msg *types.Message) (ev DashboardEvent, ok bool, err error) {
	ev = DashboardEvent{Type: msg.Type, Timestamp: msg.Timestamp}
	switch msg.Type {
	case types.EventDashboardData:
		ev.Dashboard, err = decodeInto[types.DashboardData](msg)
	case types.EventRealTimeStats:
		ev.Stats, err = decodeInto[types.Stats](msg)
	case types.EventHealthCheckResponse:
		ev.Health, err = decodeInto[types.HealthCheckResponse](msg)
	case types.EventJoinedCallCenter:
		ev.Joined, err = decodeInto[types.JoinedCallCenter](msg)
	default:
		return ev, false, nil
	}
	return ev, true, err
}

// connectionMessage wraps a ConnectionEvent so name-based subscribers see it too
func connectionMessage(ev ConnectionEvent) *types.Message {
	data, _ := json.Marshal(ev)
	return &types.Message{Type: ev.Type, Data: data, Timestamp: time.Now()}
}
