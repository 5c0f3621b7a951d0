package session

import (
	"strings"
	"testing"
	"time"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

func TestMakeCallConnectsAvailableAgent(t *testing.T) {
	h := newHarness(t)
	h.login(t, "agent-conn", "u1")

	callID := h.makeCall(t, "cust", "+84900000001")
	if !strings.HasPrefix(callID, "CALL_") {
		t.Fatalf("unexpected call id %s", callID)
	}

	var ack types.CallInitiated
	decodeInto(t, h.out.to("cust", types.EventCallInitiated)[0], &ack)
	if ack.Status != types.CallStatusRinging {
		t.Errorf("expected ringing ack, got %s", ack.Status)
	}

	h.clock.Advance(1999 * time.Millisecond)
	if len(h.out.to("cust", types.EventCallConnected)) != 0 {
		t.Fatal("connected before the connect delay")
	}

	h.clock.Advance(time.Millisecond)
	msgs := h.out.to("cust", types.EventCallConnected)
	if len(msgs) != 1 {
		t.Fatalf("expected one call_connected, got %d", len(msgs))
	}
	var connected types.CallConnected
	decodeInto(t, msgs[0], &connected)
	if connected.CallID != callID || connected.AgentInfo.ID != "u1" || connected.AgentInfo.FullName != "Agent u1" {
		t.Errorf("unexpected call_connected %+v", connected)
	}

	call, ok := h.router.Directory().Call(callID)
	if !ok {
		t.Fatal("call missing from directory")
	}
	if call.Status != types.CallStatusConnected || call.ConnectedTime == nil || call.AgentID != "u1" {
		t.Errorf("unexpected call state %+v", call)
	}

	agent, _ := h.router.Directory().Agent("agent-conn")
	if agent.Status != types.StatusOnCall {
		t.Errorf("expected agent on_call, got %s", agent.Status)
	}
	if len(h.out.to("agent-conn", types.EventCallAnswered)) != 1 {
		t.Error("agent should receive call_answered")
	}

	var last types.AgentStatusUpdate
	updates := h.out.broadcasts(types.EventAgentStatusUpdate)
	decodeInto(t, updates[len(updates)-1], &last)
	if last.AgentID != "u1" || last.Status != types.StatusOnCall {
		t.Errorf("expected on_call broadcast, got %+v", last)
	}
}

func TestQueuePreservesFIFOOrder(t *testing.T) {
	h := newHarness(t)

	first := h.makeCall(t, "cust-1", "+84900000001")
	second := h.makeCall(t, "cust-2", "+84900000002")

	if pos := h.router.Directory().QueuePosition(first); pos != 1 {
		t.Fatalf("expected first call at position 1, got %d", pos)
	}
	if pos := h.router.Directory().QueuePosition(second); pos != 2 {
		t.Fatalf("expected second call at position 2, got %d", pos)
	}

	h.clock.Advance(time.Second)
	for conn, want := range map[string]types.CallQueued{
		"cust-1": {CallID: first, QueuePosition: 1, EstimatedWaitTime: 30},
		"cust-2": {CallID: second, QueuePosition: 2, EstimatedWaitTime: 60},
	} {
		msgs := h.out.to(conn, types.EventCallQueued)
		if len(msgs) != 1 {
			t.Fatalf("%s: expected one call_queued, got %d", conn, len(msgs))
		}
		var got types.CallQueued
		decodeInto(t, msgs[0], &got)
		if got != want {
			t.Errorf("%s: got %+v, want %+v", conn, got, want)
		}
	}

	// the agent-available transition drains the head of the queue
	h.login(t, "agent-conn", "u1")
	if len(h.out.to("cust-1", types.EventCallConnected)) != 1 {
		t.Fatal("queue head should connect when an agent logs in")
	}
	if len(h.out.to("cust-2", types.EventCallConnected)) != 0 {
		t.Fatal("second caller must keep waiting")
	}
	if pos := h.router.Directory().QueuePosition(second); pos != 1 {
		t.Errorf("expected second call to move up, got %d", pos)
	}

	// releasing the agent drains the next call
	h.dispatch(t, "cust-1", types.EventEndCall, types.EndCallRequest{CallID: first})
	if len(h.out.to("cust-2", types.EventCallConnected)) != 1 {
		t.Fatal("next call should connect once the agent is released")
	}
}

func TestReservedAgentGoneFallsBackToQueue(t *testing.T) {
	h := newHarness(t)
	h.login(t, "agent-conn", "u1")
	callID := h.makeCall(t, "cust", "+84900000001")

	h.dispatch(t, "agent-conn", types.EventChangeAgentStatus, types.StatusChangeRequest{Status: types.StatusBusy})
	h.clock.Advance(2 * time.Second)

	if len(h.out.to("cust", types.EventCallConnected)) != 0 {
		t.Fatal("busy agent must not be connected")
	}
	if pos := h.router.Directory().QueuePosition(callID); pos != 1 {
		t.Fatalf("expected call queued at 1, got %d", pos)
	}

	h.clock.Advance(time.Second)
	if len(h.out.to("cust", types.EventCallQueued)) != 1 {
		t.Error("expected call_queued after fallback")
	}

	h.dispatch(t, "agent-conn", types.EventChangeAgentStatus, types.StatusChangeRequest{Status: types.StatusAvailable})
	call, _ := h.router.Directory().Call(callID)
	if call.Status != types.CallStatusConnected || call.AgentID != "u1" {
		t.Errorf("expected call connected on availability, got %+v", call)
	}
}

func TestReservationSkipsBusyAgent(t *testing.T) {
	h := newHarness(t)
	h.login(t, "a1", "u1")
	h.login(t, "a2", "u2")

	first := h.makeCall(t, "cust-1", "+84900000001")
	second := h.makeCall(t, "cust-2", "+84900000002")
	third := h.makeCall(t, "cust-3", "+84900000003")

	if pos := h.router.Directory().QueuePosition(third); pos != 1 {
		t.Fatalf("both agents are reserved, third call should queue; got position %d", pos)
	}

	h.clock.Advance(2 * time.Second)
	c1, _ := h.router.Directory().Call(first)
	c2, _ := h.router.Directory().Call(second)
	if c1.AgentID == c2.AgentID || c1.AgentID == "" || c2.AgentID == "" {
		t.Errorf("calls should land on different agents: %s / %s", c1.AgentID, c2.AgentID)
	}
}

func TestQueueFallbackToSyntheticAgent(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.QueueFallbackDelay = 5 * time.Second })
	callID := h.makeCall(t, "cust", "+84900000001")

	h.clock.Advance(5 * time.Second)
	msgs := h.out.to("cust", types.EventCallConnected)
	if len(msgs) != 1 {
		t.Fatalf("expected synthetic connect, got %d", len(msgs))
	}
	var got types.CallConnected
	decodeInto(t, msgs[0], &got)
	if got.AgentInfo != types.SyntheticAgent {
		t.Errorf("unexpected agent %+v", got.AgentInfo)
	}
	if len(h.router.Directory().Queue()) != 0 {
		t.Error("call should leave the queue")
	}
	call, _ := h.router.Directory().Call(callID)
	if call.AgentID != "agent_mock" {
		t.Errorf("expected agent_mock, got %s", call.AgentID)
	}
}

func TestAnswerCallByAgent(t *testing.T) {
	h := newHarness(t)
	h.login(t, "agent-conn", "u1")
	h.dispatch(t, "agent-conn", types.EventChangeAgentStatus, types.StatusChangeRequest{Status: types.StatusBusy})
	callID := h.makeCall(t, "cust", "+84900000001")

	h.dispatch(t, "agent-conn", types.EventAnswerCall, types.AnswerCallRequest{CallID: callID, AgentID: "u1"})

	call, _ := h.router.Directory().Call(callID)
	if call.Status != types.CallStatusConnected || call.AgentID != "u1" {
		t.Fatalf("unexpected call %+v", call)
	}
	if len(h.router.Directory().Queue()) != 0 {
		t.Error("answered call must leave the queue")
	}

	var answered types.CallAnswered
	decodeInto(t, h.out.to("agent-conn", types.EventCallAnswered)[0], &answered)
	if answered.CallID != callID || answered.AgentID != "u1" || answered.CallerNumber != "+84900000001" {
		t.Errorf("unexpected call_answered %+v", answered)
	}

	var connected types.CallConnected
	decodeInto(t, h.out.to("cust", types.EventCallConnected)[0], &connected)
	if connected.AgentInfo.Username != "user_u1" {
		t.Errorf("unexpected agent info %+v", connected.AgentInfo)
	}

	// the queue notice no longer fires
	h.clock.Advance(time.Second)
	if len(h.out.to("cust", types.EventCallQueued)) != 0 {
		t.Error("answered call should not get call_queued")
	}
}

func TestAnswerIgnoredForUnknownCallOrConnection(t *testing.T) {
	h := newHarness(t)
	callID := h.makeCall(t, "cust", "+84900000001")
	h.out.reset()

	h.dispatch(t, "stranger", types.EventAnswerCall, types.AnswerCallRequest{CallID: callID})
	h.login(t, "agent-conn", "u1")
	h.out.reset()
	h.dispatch(t, "agent-conn", types.EventAnswerCall, types.AnswerCallRequest{CallID: "CALL_missing"})

	if n := h.out.count(); n != 0 {
		t.Errorf("expected no emissions, got %d", n)
	}
}

func TestEndCallTwiceIsNoop(t *testing.T) {
	h := newHarness(t)
	h.login(t, "agent-conn", "u1")
	callID := h.makeCall(t, "cust", "+84900000001")
	h.clock.Advance(2 * time.Second)

	h.dispatch(t, "cust", types.EventEndCall, types.EndCallRequest{CallID: callID})
	if _, ok := h.router.Directory().Call(callID); ok {
		t.Fatal("call should be removed after the first end")
	}
	before := h.out.count()

	h.dispatch(t, "cust", types.EventEndCall, types.EndCallRequest{CallID: callID})
	if after := h.out.count(); after != before {
		t.Errorf("second end emitted %d frames", after-before)
	}
	if len(h.out.to("cust", types.EventCallEnded)) != 1 {
		t.Error("customer should see exactly one call_ended")
	}
}

func TestCustomerHangupReleasesAgent(t *testing.T) {
	h := newHarness(t)
	h.login(t, "agent-conn", "u1")
	callID := h.makeCall(t, "cust", "+84900000001")
	h.clock.Advance(2 * time.Second)
	h.clock.Advance(42 * time.Second)

	h.dispatch(t, "cust", types.EventEndCall, types.EndCallRequest{CallID: callID})

	var ended types.CallEnded
	decodeInto(t, h.out.to("cust", types.EventCallEnded)[0], &ended)
	want := types.CallEnded{CallID: callID, Duration: 42, EndReason: types.ReasonCallerHangup, EndedBy: types.EndedByCaller}
	if ended != want {
		t.Errorf("got %+v, want %+v", ended, want)
	}
	if len(h.out.to("agent-conn", types.EventCallEnded)) != 1 {
		t.Error("attached agent should be notified")
	}

	agent, _ := h.router.Directory().Agent("agent-conn")
	if agent.Status != types.StatusAvailable || agent.TotalCallsHandled != 1 || agent.AvgHandleTime != 42 {
		t.Errorf("unexpected agent after release %+v", agent)
	}
}

func TestAgentEndDefaults(t *testing.T) {
	h := newHarness(t)
	h.login(t, "agent-conn", "u1")
	callID := h.makeCall(t, "cust", "+84900000001")
	h.clock.Advance(2 * time.Second)

	h.dispatch(t, "agent-conn", types.EventEndCall, types.EndCallRequest{CallID: callID})

	var ended types.CallEnded
	decodeInto(t, h.out.to("cust", types.EventCallEnded)[0], &ended)
	if ended.EndReason != types.ReasonAgentEnded || ended.EndedBy != types.EndedByAgent {
		t.Errorf("unexpected defaults %+v", ended)
	}
	if len(h.out.to("agent-conn", types.EventCallEnded)) != 1 {
		t.Error("ending agent should see call_ended once")
	}
}

func TestRejectCallByViewer(t *testing.T) {
	h := newHarness(t)
	h.joinViewer(t, "v1", "crm_main")
	h.joinViewer(t, "v2", "crm_2")
	callID := h.makeCall(t, "cust", "+84900000001")

	h.dispatch(t, "v1", types.EventRejectCall, types.EndCallRequest{CallID: callID, Source: types.SourceCRM})

	var failed types.CallFailed
	decodeInto(t, h.out.to("cust", types.EventCallFailed)[0], &failed)
	if failed.Reason != types.ReasonAgentDeclined {
		t.Errorf("expected agent_declined, got %s", failed.Reason)
	}
	if len(h.out.to("cust", types.EventCallEnded)) != 0 {
		t.Error("rejected customer gets call_failed only")
	}

	for _, v := range []string{"v1", "v2"} {
		msgs := h.out.to(v, types.EventCallEnded)
		if len(msgs) != 1 {
			t.Fatalf("%s: expected one call_ended, got %d", v, len(msgs))
		}
		var ended types.CallEnded
		decodeInto(t, msgs[0], &ended)
		if ended.EndReason != types.ReasonCRMReject {
			t.Errorf("%s: expected crm_reject, got %s", v, ended.EndReason)
		}
	}
	if _, ok := h.router.Directory().Call(callID); ok {
		t.Error("rejected call should be removed")
	}
	if len(h.router.Directory().Queue()) != 0 {
		t.Error("rejected call should leave the queue")
	}
}

func TestViewerEndUsesExplicitReason(t *testing.T) {
	h := newHarness(t)
	h.joinViewer(t, "v1", "crm_main")
	h.login(t, "agent-conn", "u1")
	callID := h.makeCall(t, "cust", "+84900000001")
	h.clock.Advance(2 * time.Second)

	h.dispatch(t, "v1", types.EventEndCall, types.EndCallRequest{CallID: callID, EndReason: "resolved", Source: types.SourceCRM})

	var cust, viewer types.CallEnded
	decodeInto(t, h.out.to("cust", types.EventCallEnded)[0], &cust)
	decodeInto(t, h.out.to("v1", types.EventCallEnded)[0], &viewer)
	if cust.EndReason != "resolved" || cust.EndedBy != types.EndedByAgent {
		t.Errorf("unexpected customer payload %+v", cust)
	}
	if viewer.EndReason != "resolved" {
		t.Errorf("unexpected viewer payload %+v", viewer)
	}
	agent, _ := h.router.Directory().Agent("agent-conn")
	if agent.Status != types.StatusAvailable {
		t.Errorf("agent should be released, got %s", agent.Status)
	}
}

func TestHoldAndResume(t *testing.T) {
	h := newHarness(t)
	h.joinViewer(t, "v1", "crm_main")
	h.login(t, "agent-conn", "u1")
	callID := h.makeCall(t, "cust", "+84900000001")
	h.clock.Advance(2 * time.Second)

	h.dispatch(t, "agent-conn", types.EventHoldCall, types.CallControlRequest{CallID: callID})
	call, _ := h.router.Directory().Call(callID)
	if !call.OnHold {
		t.Fatal("expected call on hold")
	}
	if len(h.out.to("agent-conn", types.EventCallHold)) != 1 || len(h.out.to("v1", types.EventCallOnHold)) != 1 {
		t.Error("hold notifications missing")
	}

	h.dispatch(t, "agent-conn", types.EventResumeCall, types.CallControlRequest{CallID: callID})
	call, _ = h.router.Directory().Call(callID)
	if call.OnHold {
		t.Fatal("expected call resumed")
	}
	if len(h.out.to("agent-conn", types.EventCallResume)) != 1 || len(h.out.to("v1", types.EventCallResumed)) != 1 {
		t.Error("resume notifications missing")
	}
}

func TestTransferCall(t *testing.T) {
	h := newHarness(t)
	h.login(t, "a1", "u1")
	callID := h.makeCall(t, "cust", "+84900000001")
	h.clock.Advance(2 * time.Second)
	h.login(t, "a2", "u2")

	h.dispatch(t, "a1", types.EventTransferCall, types.TransferRequest{CallID: callID, TargetAgentID: "u2"})

	call, _ := h.router.Directory().Call(callID)
	if call.AgentID != "u2" {
		t.Fatalf("expected call on u2, got %s", call.AgentID)
	}
	a1, _ := h.router.Directory().Agent("a1")
	a2, _ := h.router.Directory().Agent("a2")
	if a1.Status != types.StatusAvailable || a2.Status != types.StatusOnCall {
		t.Errorf("unexpected statuses a1=%s a2=%s", a1.Status, a2.Status)
	}

	var moved types.CallTransferred
	decodeInto(t, h.out.to("a2", types.EventCallTransferredToAgent)[0], &moved)
	if moved.FromAgentID != "u1" || moved.TransferType != "blind" {
		t.Errorf("unexpected transfer payload %+v", moved)
	}
	if len(h.out.to("a1", types.EventCallTransferred)) != 1 {
		t.Error("requester should get call_transferred")
	}
}

func TestTransferToUnavailableAgentIgnored(t *testing.T) {
	h := newHarness(t)
	h.login(t, "a1", "u1")
	callID := h.makeCall(t, "cust", "+84900000001")
	h.clock.Advance(2 * time.Second)

	h.dispatch(t, "a1", types.EventTransferCall, types.TransferRequest{CallID: callID, TargetAgentID: "ghost"})
	call, _ := h.router.Directory().Call(callID)
	if call.AgentID != "u1" {
		t.Errorf("call should stay on u1, got %s", call.AgentID)
	}
}

func TestOutboundCall(t *testing.T) {
	h := newHarness(t)
	h.login(t, "a1", "u1")

	h.dispatch(t, "a1", types.EventMakeOutboundCall, types.OutboundCallRequest{TargetNumber: "+84911111111"})
	msgs := h.out.to("a1", types.EventCallInitiated)
	if len(msgs) != 1 {
		t.Fatalf("expected call_initiated, got %d", len(msgs))
	}
	var ack types.CallInitiated
	decodeInto(t, msgs[0], &ack)
	if !strings.HasPrefix(ack.CallID, types.PrefixOutbound+"_") {
		t.Errorf("unexpected outbound id %s", ack.CallID)
	}

	// an outbound dial holds the agent against queue assignment
	h.makeCall(t, "cust", "+84900000001")
	if len(h.router.Directory().Queue()) != 1 {
		t.Fatal("customer call should queue while the agent dials out")
	}

	h.clock.Advance(2 * time.Second)
	if len(h.out.to("a1", types.EventCallAnswered)) != 1 {
		t.Fatal("expected call_answered for the outbound call")
	}
	call, _ := h.router.Directory().Call(ack.CallID)
	if call.Status != types.CallStatusConnected || call.Source != types.SourceOutbound {
		t.Errorf("unexpected outbound call %+v", call)
	}
	agent, _ := h.router.Directory().Agent("a1")
	if agent.Status != types.StatusOnCall {
		t.Errorf("expected on_call, got %s", agent.Status)
	}
}

func TestSimulatedCallRingTimeout(t *testing.T) {
	h := newHarness(t)
	h.login(t, "a1", "u1")

	h.dispatch(t, "a1", types.EventSimulateIncomingCall, types.SimulateIncomingRequest{})
	msgs := h.out.to("a1", types.EventIncomingCall)
	if len(msgs) != 1 {
		t.Fatalf("expected incoming_call, got %d", len(msgs))
	}
	var offer types.IncomingCall
	decodeInto(t, msgs[0], &offer)
	if !strings.HasPrefix(offer.CallID, types.PrefixSimulated+"_") || offer.CallerNumber != "+84987654321" {
		t.Errorf("unexpected offer %+v", offer)
	}

	h.clock.Advance(60 * time.Second)
	ended := h.out.to("a1", types.EventCallEnded)
	if len(ended) != 1 {
		t.Fatalf("expected ring timeout call_ended, got %d", len(ended))
	}
	var payload types.CallEnded
	decodeInto(t, ended[0], &payload)
	if payload.EndReason != types.ReasonTimeout || payload.Duration != 0 {
		t.Errorf("unexpected timeout payload %+v", payload)
	}
	if _, ok := h.router.Directory().Call(offer.CallID); ok {
		t.Error("timed out call should be removed")
	}
}

func TestSimulatedCallAnswered(t *testing.T) {
	h := newHarness(t)
	h.login(t, "a1", "u1")
	h.dispatch(t, "a1", types.EventSimulateIncomingCall, types.SimulateIncomingRequest{CallID: "SIM_CALL_1"})
	h.dispatch(t, "a1", types.EventAnswerCall, types.AnswerCallRequest{CallID: "SIM_CALL_1"})

	h.clock.Advance(time.Minute)
	call, ok := h.router.Directory().Call("SIM_CALL_1")
	if !ok || call.Status != types.CallStatusConnected {
		t.Fatalf("answered call must survive its ring timeout: %+v", call)
	}
	if len(h.out.to("a1", types.EventCallConnected)) != 0 {
		t.Error("answerer is the originator, no call_connected expected")
	}
}

func TestReservationEndedBeforeConnectDrainsQueue(t *testing.T) {
	dial := func(t *testing.T, h *harness) string { return h.makeCall(t, "cust-1", "+84900000001") }
	lastID := func(t *testing.T, h *harness, connID, event string) string {
		t.Helper()
		msgs := h.out.to(connID, event)
		if len(msgs) == 0 {
			t.Fatalf("no %s for %s", event, connID)
		}
		var ack struct {
			CallID string `json:"callId"`
		}
		decodeInto(t, msgs[len(msgs)-1], &ack)
		return ack.CallID
	}

	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness) string
		end   func(t *testing.T, h *harness, callID string)
	}{
		{
			name:  "caller hangs up while ringing",
			setup: dial,
			end: func(t *testing.T, h *harness, callID string) {
				h.dispatch(t, "cust-1", types.EventEndCall, types.EndCallRequest{CallID: callID})
			},
		},
		{
			name:  "caller disconnects while ringing",
			setup: dial,
			end:   func(_ *testing.T, h *harness, _ string) { h.router.Disconnect("cust-1") },
		},
		{
			name: "simulated call times out",
			setup: func(t *testing.T, h *harness) string {
				h.dispatch(t, "a1", types.EventSimulateIncomingCall, types.SimulateIncomingRequest{})
				return lastID(t, h, "a1", types.EventIncomingCall)
			},
			end: func(_ *testing.T, h *harness, _ string) { h.clock.Advance(h.router.Options().RingTimeout) },
		},
		{
			name: "outbound call cancelled while dialing",
			setup: func(t *testing.T, h *harness) string {
				h.dispatch(t, "a1", types.EventMakeOutboundCall, types.OutboundCallRequest{TargetNumber: "+84900000009"})
				return lastID(t, h, "a1", types.EventCallInitiated)
			},
			end: func(t *testing.T, h *harness, callID string) {
				h.dispatch(t, "a1", types.EventEndCall, types.EndCallRequest{CallID: callID})
			},
		},
		{
			name: "another agent answers the reserved call",
			setup: func(t *testing.T, h *harness) string {
				h.login(t, "a2", "u2")
				h.dispatch(t, "a2", types.EventChangeAgentStatus, types.StatusChangeRequest{Status: types.StatusBusy})
				return dial(t, h)
			},
			end: func(t *testing.T, h *harness, callID string) {
				h.dispatch(t, "a2", types.EventAnswerCall, types.AnswerCallRequest{CallID: callID, AgentID: "u2"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.login(t, "a1", "u1")
			first := tt.setup(t, h)

			waiting := h.makeCall(t, "cust-2", "+84900000002")
			if pos := h.router.Directory().QueuePosition(waiting); pos != 1 {
				t.Fatalf("reserved agent must not take the second call; position %d", pos)
			}

			tt.end(t, h, first)

			msgs := h.out.to("cust-2", types.EventCallConnected)
			if len(msgs) != 1 {
				t.Fatalf("expected queued call to connect once the reservation ended, got %d", len(msgs))
			}
			var connected types.CallConnected
			decodeInto(t, msgs[0], &connected)
			if connected.CallID != waiting || connected.AgentInfo.ID != "u1" {
				t.Errorf("unexpected call_connected %+v", connected)
			}
			if len(h.router.Directory().Queue()) != 0 {
				t.Error("queue should be empty")
			}
		})
	}
}

func TestTransferSplitsHandleTime(t *testing.T) {
	h := newHarness(t)
	h.login(t, "a1", "u1")
	h.login(t, "a2", "u2")
	h.dispatch(t, "a2", types.EventChangeAgentStatus, types.StatusChangeRequest{Status: types.StatusBusy})

	callID := h.makeCall(t, "cust", "+84900000001")
	h.clock.Advance(2 * time.Second)
	h.dispatch(t, "a2", types.EventChangeAgentStatus, types.StatusChangeRequest{Status: types.StatusAvailable})

	h.clock.Advance(30 * time.Second)
	h.dispatch(t, "a1", types.EventTransferCall, types.TransferRequest{CallID: callID, TargetAgentID: "u2"})

	h.clock.Advance(12 * time.Second)
	h.dispatch(t, "cust", types.EventEndCall, types.EndCallRequest{CallID: callID})

	for conn, want := range map[string]float64{"a1": 30, "a2": 12} {
		agent, _ := h.router.Directory().Agent(conn)
		if agent.TotalCallsHandled != 1 || agent.AvgHandleTime != want {
			t.Errorf("%s: expected 1 call averaging %vs, got %d / %v", conn, want, agent.TotalCallsHandled, agent.AvgHandleTime)
		}
		if agent.Status != types.StatusAvailable {
			t.Errorf("%s: expected available, got %s", conn, agent.Status)
		}
	}
}
