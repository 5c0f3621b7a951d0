package control

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/pkg/realtime"
)

type fakeAgent struct {
	state     realtime.AgentState
	err       error
	status    types.AgentStatus
	answered  string
	endReason string
	simulated *types.SimulateIncomingRequest
}

func (f *fakeAgent) State() realtime.AgentState { return f.state }

func (f *fakeAgent) ChangeStatus(status types.AgentStatus) error {
	f.status = status
	return f.err
}

func (f *fakeAgent) AnswerCall(callID string) error {
	f.answered = callID
	return f.err
}

func (f *fakeAgent) EndCall(reason string) error {
	f.endReason = reason
	return f.err
}

func (f *fakeAgent) SimulateIncomingCall(req types.SimulateIncomingRequest) error {
	f.simulated = &req
	return f.err
}

type fakeViewer struct {
	status  realtime.ConnectionStatus
	callID  string
	agentID string
	err     error
}

func (f *fakeViewer) ConnectionStatus() realtime.ConnectionStatus { return f.status }

func (f *fakeViewer) AnswerCall(callID, agentID string) error {
	f.callID, f.agentID = callID, agentID
	return f.err
}

type fakeCaller struct {
	state  realtime.CallerState
	dialed []string
	err    error
}

func (f *fakeCaller) State() realtime.CallerState { return f.state }

func (f *fakeCaller) Dial(callerNumber, calledNumber string, _ *types.CustomerInfo) error {
	f.dialed = append(f.dialed, callerNumber, calledNumber)
	return f.err
}

func serve(api *API, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	api := NewAPI(nil, nil, nil, zerolog.Nop())
	w := serve(api, http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "healthy" {
		t.Fatalf("expected status healthy, got %s", body["status"])
	}
}

func TestStateHandler(t *testing.T) {
	agent := &fakeAgent{state: realtime.AgentState{Status: types.StatusAvailable, Connected: true}}
	viewer := &fakeViewer{status: realtime.ConnectionStatus{Connected: true, UserID: "crm_main"}}
	api := NewAPI(agent, viewer, nil, zerolog.Nop())

	w := serve(api, http.MethodGet, "/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body State
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Agent == nil || body.Agent.Status != types.StatusAvailable {
		t.Errorf("expected agent state, got %+v", body.Agent)
	}
	if body.Viewer == nil || body.Viewer.UserID != "crm_main" {
		t.Errorf("expected viewer state, got %+v", body.Viewer)
	}
	if body.Caller != nil {
		t.Errorf("expected no caller state, got %+v", body.Caller)
	}
}

func TestAgentStatusHandler(t *testing.T) {
	agent := &fakeAgent{}
	api := NewAPI(agent, nil, nil, zerolog.Nop())

	w := serve(api, http.MethodPost, "/agent/status", `{"status":"away"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if agent.status != types.StatusAway {
		t.Errorf("expected away forwarded, got %s", agent.status)
	}

	w = serve(api, http.MethodPost, "/agent/status", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", w.Code)
	}
}

func TestAgentErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{realtime.ErrNotConnected, http.StatusServiceUnavailable},
		{realtime.ErrInvalidStatus, http.StatusBadRequest},
		{realtime.ErrNoIncomingCall, http.StatusConflict},
		{realtime.ErrNoCurrentCall, http.StatusConflict},
	}
	for _, tt := range tests {
		api := NewAPI(&fakeAgent{err: tt.err}, nil, nil, zerolog.Nop())
		if w := serve(api, http.MethodPost, "/agent/answer", ""); w.Code != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, w.Code)
		}
	}
}

func TestAgentCallHandlers(t *testing.T) {
	agent := &fakeAgent{}
	api := NewAPI(agent, nil, nil, zerolog.Nop())

	if w := serve(api, http.MethodPost, "/agent/answer", `{"callId":"SIM_CALL_1"}`); w.Code != http.StatusAccepted {
		t.Fatalf("answer: expected 202, got %d", w.Code)
	}
	if agent.answered != "SIM_CALL_1" {
		t.Errorf("expected call id forwarded, got %q", agent.answered)
	}

	if w := serve(api, http.MethodPost, "/agent/end", ""); w.Code != http.StatusAccepted {
		t.Fatalf("end: expected 202, got %d", w.Code)
	}
	if agent.endReason != "" {
		t.Errorf("expected default reason, got %q", agent.endReason)
	}

	if w := serve(api, http.MethodPost, "/agent/simulate", `{"callerNumber":"0901"}`); w.Code != http.StatusAccepted {
		t.Fatalf("simulate: expected 202, got %d", w.Code)
	}
	if agent.simulated == nil || agent.simulated.CallerNumber != "0901" {
		t.Errorf("expected simulate request forwarded, got %+v", agent.simulated)
	}
}

func TestViewerAnswerDefaultsToCurrentCall(t *testing.T) {
	viewer := &fakeViewer{status: realtime.ConnectionStatus{
		Connected:   true,
		CurrentCall: &realtime.CallInfo{CallID: "SOFTPHONE_CALL_1"},
	}}
	api := NewAPI(nil, viewer, nil, zerolog.Nop())

	w := serve(api, http.MethodPost, "/viewer/answer", `{"agentId":"agent_1"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if viewer.callID != "SOFTPHONE_CALL_1" || viewer.agentID != "agent_1" {
		t.Errorf("unexpected answer call=%s agent=%s", viewer.callID, viewer.agentID)
	}
}

func TestCustomerCallHandler(t *testing.T) {
	caller := &fakeCaller{}
	api := NewAPI(nil, nil, caller, zerolog.Nop())

	if w := serve(api, http.MethodPost, "/customer/call", ""); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if len(caller.dialed) != 2 || caller.dialed[0] != "+84901234567" || caller.dialed[1] != "1900" {
		t.Errorf("expected default numbers, got %v", caller.dialed)
	}

	caller.err = realtime.ErrAlreadyOnCall
	if w := serve(api, http.MethodPost, "/customer/call", ""); w.Code != http.StatusConflict {
		t.Errorf("expected 409 while on a call, got %d", w.Code)
	}
}

func TestUnconfiguredAdapters(t *testing.T) {
	api := NewAPI(nil, nil, nil, zerolog.Nop())
	for _, path := range []string{"/agent/status", "/agent/answer", "/agent/end", "/agent/simulate", "/viewer/answer", "/customer/call"} {
		if w := serve(api, http.MethodPost, path, ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := NewAPI(&fakeAgent{}, nil, nil, zerolog.Nop())
	if w := serve(api, http.MethodGet, "/agent/answer", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}
