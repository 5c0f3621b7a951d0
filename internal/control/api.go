package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/pkg/realtime"
)

// Agent is the agent adapter surface the control API drives
type Agent interface {
	State() realtime.AgentState
	ChangeStatus(status types.AgentStatus) error
	AnswerCall(callID string) error
	EndCall(reason string) error
	SimulateIncomingCall(req types.SimulateIncomingRequest) error
}

// Viewer is the CRM viewer adapter surface the control API drives
type Viewer interface {
	ConnectionStatus() realtime.ConnectionStatus
	AnswerCall(callID, agentID string) error
}

// Caller is the customer adapter surface the control API drives
type Caller interface {
	State() realtime.CallerState
	Dial(callerNumber, calledNumber string, customer *types.CustomerInfo) error
}

// State is the combined snapshot served at /state
type State struct {
	Agent  *realtime.AgentState       `json:"agent,omitempty"`
	Viewer *realtime.ConnectionStatus `json:"viewer,omitempty"`
	Caller *realtime.CallerState      `json:"caller,omitempty"`
}

// API provides the HTTP control interface for the simulator
type API struct {
	agent  Agent
	viewer Viewer
	caller Caller
	logger zerolog.Logger
}

// NewAPI creates a control API. Any adapter may be nil; its routes then answer 503.
func NewAPI(agent Agent, viewer Viewer, caller Caller, logger zerolog.Logger) *API {
	return &API{
		agent:  agent,
		viewer: viewer,
		caller: caller,
		logger: logger.With().Str("component", "control").Logger(),
	}
}

// SetupRoutes configures HTTP routes
func (api *API) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", api.healthHandler).Methods("GET")
	router.HandleFunc("/state", api.stateHandler).Methods("GET")

	router.HandleFunc("/agent/status", api.agentStatusHandler).Methods("POST")
	router.HandleFunc("/agent/answer", api.agentAnswerHandler).Methods("POST")
	router.HandleFunc("/agent/end", api.agentEndHandler).Methods("POST")
	router.HandleFunc("/agent/simulate", api.agentSimulateHandler).Methods("POST")

	router.HandleFunc("/viewer/answer", api.viewerAnswerHandler).Methods("POST")
	router.HandleFunc("/customer/call", api.customerCallHandler).Methods("POST")
}

// Handler returns a router with every control route mounted
func (api *API) Handler() http.Handler {
	router := mux.NewRouter()
	api.SetupRoutes(router)
	return router
}

func (api *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (api *API) stateHandler(w http.ResponseWriter, r *http.Request) {
	var state State
	if api.agent != nil {
		s := api.agent.State()
		state.Agent = &s
	}
	if api.viewer != nil {
		s := api.viewer.ConnectionStatus()
		state.Viewer = &s
	}
	if api.caller != nil {
		s := api.caller.State()
		state.Caller = &s
	}
	writeJSON(w, http.StatusOK, state)
}

func (api *API) agentStatusHandler(w http.ResponseWriter, r *http.Request) {
	if api.agent == nil {
		http.Error(w, "agent session not configured", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Status types.AgentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := api.agent.ChangeStatus(req.Status); err != nil {
		api.fail(w, "change status", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "status change requested",
		"status":  string(req.Status),
	})
}

func (api *API) agentAnswerHandler(w http.ResponseWriter, r *http.Request) {
	if api.agent == nil {
		http.Error(w, "agent session not configured", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		CallID string `json:"callId"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}
	if err := api.agent.AnswerCall(req.CallID); err != nil {
		api.fail(w, "answer call", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "answer sent"})
}

func (api *API) agentEndHandler(w http.ResponseWriter, r *http.Request) {
	if api.agent == nil {
		http.Error(w, "agent session not configured", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}
	if err := api.agent.EndCall(req.Reason); err != nil {
		api.fail(w, "end call", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "hangup sent"})
}

func (api *API) agentSimulateHandler(w http.ResponseWriter, r *http.Request) {
	if api.agent == nil {
		http.Error(w, "agent session not configured", http.StatusServiceUnavailable)
		return
	}
	var req types.SimulateIncomingRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if err := api.agent.SimulateIncomingCall(req); err != nil {
		api.fail(w, "simulate call", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "simulated call requested"})
}

func (api *API) viewerAnswerHandler(w http.ResponseWriter, r *http.Request) {
	if api.viewer == nil {
		http.Error(w, "viewer session not configured", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		CallID  string `json:"callId"`
		AgentID string `json:"agentId"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}
	// default to the call the viewer is currently offered
	if req.CallID == "" {
		if call := api.viewer.ConnectionStatus().CurrentCall; call != nil {
			req.CallID = call.CallID
		}
	}
	if err := api.viewer.AnswerCall(req.CallID, req.AgentID); err != nil {
		api.fail(w, "viewer answer", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "answer sent",
		"callId":  req.CallID,
	})
}

func (api *API) customerCallHandler(w http.ResponseWriter, r *http.Request) {
	if api.caller == nil {
		http.Error(w, "caller session not configured", http.StatusServiceUnavailable)
		return
	}
	var req types.MakeCallRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.CallerNumber == "" {
		req.CallerNumber = "+84901234567"
	}
	if req.CalledNumber == "" {
		req.CalledNumber = "1900"
	}
	if err := api.caller.Dial(req.CallerNumber, req.CalledNumber, req.CustomerInfo); err != nil {
		api.fail(w, "customer call", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message":      "call placed",
		"callerNumber": req.CallerNumber,
	})
}

// fail maps adapter errors onto HTTP statuses
func (api *API) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, realtime.ErrNotConnected):
		status = http.StatusServiceUnavailable
	case errors.Is(err, realtime.ErrInvalidStatus),
		errors.Is(err, realtime.ErrMissingCallID),
		errors.Is(err, realtime.ErrNoIdentity):
		status = http.StatusBadRequest
	case errors.Is(err, realtime.ErrNoIncomingCall),
		errors.Is(err, realtime.ErrNoCurrentCall),
		errors.Is(err, realtime.ErrAlreadyOnCall):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		api.logger.Error().Err(err).Str("op", op).Msg("control request failed")
	}
	http.Error(w, err.Error(), status)
}

// Start serves the control API on addr until ctx is cancelled
func (api *API) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}

	go func() {
		<-ctx.Done()
		api.logger.Info().Msg("shutting down control API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	api.logger.Info().Str("addr", addr).Msg("control API started")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// decodeOptional decodes a JSON body when one is present
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
