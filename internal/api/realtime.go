package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/callgen"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/clock"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/directory"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/storage"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// StateSource exposes the live directory and process uptime
type StateSource interface {
	Directory() *directory.Directory
	Uptime() time.Duration
}

// Server serves the auxiliary REST endpoints
type Server struct {
	state  StateSource
	ids    *callgen.IDGenerator
	store  storage.Store
	clock  clock.Clock
	logger zerolog.Logger
}

// NewServer creates the REST handlers
func NewServer(state StateSource, ids *callgen.IDGenerator, store storage.Store, clk clock.Clock, logger zerolog.Logger) *Server {
	if clk == nil {
		clk = clock.New()
	}
	if store == nil {
		store = storage.NewNoopStore()
	}
	return &Server{
		state:  state,
		ids:    ids,
		store:  store,
		clock:  clk,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Mount registers the REST routes on r
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(Metrics)
		r.Get("/realtime/agents", s.Agents)
		r.Get("/realtime/call-stats", s.CallStats)
		r.Get("/call/demo/agents", s.DemoAgents)
		r.Post("/call/demo/initiate", s.DemoInitiate)
		r.Get("/call/demo/status", s.DemoStatus)
		r.Get("/call/history", s.History)
	})
}

// Health answers liveness probes
// GET /health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthStatus{
		Status:    "healthy",
		Message:   "CRM API is running",
		Timestamp: s.clock.Now().UTC().Format(time.RFC3339),
	})
}

// Agents lists logged-in agents
// GET /api/realtime/agents
func (s *Server) Agents(w http.ResponseWriter, r *http.Request) {
	dir := s.state.Directory()
	agents := dir.Agents()
	writeSuccess(w, types.AgentsSnapshot{
		Agents:    agents,
		Total:     len(agents),
		Available: len(dir.AvailableAgents()),
	})
}

// CallStats returns the live counters
// GET /api/realtime/call-stats
func (s *Server) CallStats(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, s.state.Directory().Stats())
}

// DemoAgents returns the fixed demo roster
// GET /api/call/demo/agents
func (s *Server) DemoAgents(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, callgen.DemoRoster{
		Agents:    callgen.DemoAgents(),
		Available: callgen.AvailableDemoAgents(),
	})
}

// DemoInitiate acknowledges an agent call request without routing it
// POST /api/call/demo/initiate
func (s *Server) DemoInitiate(w http.ResponseWriter, r *http.Request) {
	var req types.DemoInitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	callID := s.ids.New(types.PrefixAgentCall)
	s.logger.Info().
		Str("call_id", callID).
		Str("caller_number", req.CallerNumber).
		Msg("demo agent call initiated")

	writeSuccess(w, types.DemoInitiateResult{
		CallID:       callID,
		CallerNumber: req.CallerNumber,
		TargetAgent:  req.TargetAgent,
		Status:       "initiated",
		Message:      "Agent call initiated successfully",
	})
}

// DemoStatus reports directory sizes and uptime
// GET /api/call/demo/status
func (s *Server) DemoStatus(w http.ResponseWriter, r *http.Request) {
	dir := s.state.Directory()
	writeSuccess(w, types.DemoStatus{
		Service: "VoiceBot Demo Server",
		Status:  "running",
		Agents:  len(dir.Agents()),
		Calls:   len(dir.Calls()),
		Queue:   len(dir.Queue()),
		Uptime:  s.state.Uptime().Seconds(),
	})
}
