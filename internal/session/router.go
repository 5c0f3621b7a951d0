// Package session routes inbound WebSocket events between customers, agents and
// CRM viewers. Every handler, disconnect and timer callback runs under a single
// router lock, so each read-modify-write of the directory together with its
// emissions is atomic with respect to every other event.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/callgen"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/clock"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/directory"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/events"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/metrics"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/storage"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// Sender delivers encoded frames to connections
type Sender interface {
	// Send queues msg for one connection and reports whether it was accepted
	Send(connID string, msg []byte) bool
	// Broadcast queues msg for every open connection
	Broadcast(msg []byte)
}

// Options are the router's timing knobs
type Options struct {
	ConnectDelay       time.Duration
	QueueNoticeDelay   time.Duration
	QueueFallbackDelay time.Duration // 0 disables the synthetic-agent fallback
	QueueWaitEstimate  time.Duration
	RingTimeout        time.Duration
	DemoRingTimeout    time.Duration
	TestCallDelay      time.Duration // 0 disables the viewer test call
}

// DefaultOptions returns the stock timings
func DefaultOptions() Options {
	return Options{
		ConnectDelay:      2 * time.Second,
		QueueNoticeDelay:  time.Second,
		QueueWaitEstimate: 30 * time.Second,
		RingTimeout:       60 * time.Second,
		DemoRingTimeout:   45 * time.Second,
		TestCallDelay:     5 * time.Second,
	}
}

// Deps are the collaborators of a Router. Nil fields get in-memory defaults.
type Deps struct {
	Directory *directory.Directory
	Sender    Sender
	Clock     clock.Clock
	Generator *callgen.Generator
	Store     storage.Store
	Publisher events.Publisher
	Routing   directory.RoutingStrategy
	Options   Options
	Logger    zerolog.Logger
}

// Router is the single inbound dispatch point of the signalling server
type Router struct {
	mu sync.Mutex

	dir     *directory.Directory
	sender  Sender
	clock   clock.Clock
	gen     *callgen.Generator
	ids     *callgen.IDGenerator
	store   storage.Store
	pub     events.Publisher
	routing directory.RoutingStrategy
	opts    Options
	logger  zerolog.Logger
	started time.Time

	// pending timers keyed by call id or "viewer:<connID>"
	timers map[string][]clock.Timer

	archiveWG sync.WaitGroup
}

// NewRouter creates a Router
func NewRouter(deps Deps) *Router {
	if deps.Directory == nil {
		deps.Directory = directory.New()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Generator == nil {
		seed := deps.Clock.Now().UnixNano()
		deps.Generator = callgen.NewGenerator(callgen.NewIDGenerator(deps.Clock, seed), seed)
	}
	if deps.Store == nil {
		deps.Store = storage.NewNoopStore()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewNoopPublisher()
	}
	if deps.Routing == nil {
		deps.Routing = directory.LongestIdleFirst{}
	}
	if deps.Sender == nil {
		deps.Sender = discardSender{}
	}

	return &Router{
		dir:     deps.Directory,
		sender:  deps.Sender,
		clock:   deps.Clock,
		gen:     deps.Generator,
		ids:     deps.Generator.IDs(),
		store:   deps.Store,
		pub:     deps.Publisher,
		routing: deps.Routing,
		opts:    deps.Options,
		logger:  deps.Logger.With().Str("component", "router").Logger(),
		started: deps.Clock.Now(),
		timers:  make(map[string][]clock.Timer),
	}
}

// SetSender swaps the outbound transport; used when the hub is built after the router
func (r *Router) SetSender(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sender = s
}

// Directory exposes the registries for read-only consumers such as the REST API
func (r *Router) Directory() *directory.Directory {
	return r.dir
}

// Options returns the router's timings
func (r *Router) Options() Options {
	return r.opts
}

// Uptime returns the time since the router was created
func (r *Router) Uptime() time.Duration {
	return r.clock.Now().Sub(r.started)
}

// Dispatch parses one inbound frame from connID and runs its handler
func (r *Router) Dispatch(connID string, raw []byte) {
	msg, err := types.ParseMessage(raw)
	if err != nil {
		metrics.Get().RecordEventDropped()
		r.logger.Debug().Err(err).Str("conn_id", connID).Msg("dropping malformed frame")
		return
	}
	metrics.Get().RecordEventReceived(msg.Type)

	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.logger.With().Str("conn_id", connID).Str("event", msg.Type).Logger()
	decode := func(v interface{}) bool {
		if err := msg.Decode(v); err != nil {
			metrics.Get().RecordEventDropped()
			log.Warn().Err(err).Msg("dropping malformed payload")
			return false
		}
		return true
	}

	switch msg.Type {
	case types.EventMakeCall:
		var req types.MakeCallRequest
		if decode(&req) {
			r.handleMakeCall(connID, req)
		}
	case types.EventAnswerCall:
		var req types.AnswerCallRequest
		if decode(&req) {
			r.handleAnswerCall(connID, req)
		}
	case types.EventEndCall, types.EventRejectCall:
		var req types.EndCallRequest
		if decode(&req) {
			r.handleEndOrReject(connID, msg.Type == types.EventRejectCall, req)
		}
	case types.EventSendDTMF:
		var req types.DTMFRequest
		if decode(&req) {
			r.send(connID, types.EventDTMFSent, types.DTMFSent{CallID: req.CallID, Tone: req.Tone})
		}
	case types.EventAgentLogin:
		var req types.AgentLoginRequest
		if decode(&req) {
			r.handleAgentLogin(connID, req)
		}
	case types.EventAgentLogout:
		r.handleAgentLogout(connID)
	case types.EventChangeAgentStatus:
		var req types.StatusChangeRequest
		if decode(&req) {
			r.handleStatusChange(connID, req)
		}
	case types.EventJoinCallCenter:
		var req types.JoinRequest
		if decode(&req) {
			r.handleJoin(connID, req)
		}
	case types.EventGetDashboardData:
		r.sendDashboard(connID)
	case types.EventHealthCheck, types.EventAgentHealthCheck:
		r.sendHealth(connID)
	case types.EventHoldCall, types.EventResumeCall:
		var req types.CallControlRequest
		if decode(&req) {
			r.handleHold(connID, msg.Type == types.EventHoldCall, req)
		}
	case types.EventTransferCall:
		var req types.TransferRequest
		if decode(&req) {
			r.handleTransfer(connID, req)
		}
	case types.EventMakeOutboundCall:
		var req types.OutboundCallRequest
		if decode(&req) {
			r.handleOutboundCall(connID, req)
		}
	case types.EventSimulateIncomingCall:
		var req types.SimulateIncomingRequest
		if decode(&req) {
			r.handleSimulateIncoming(connID, req)
		}
	default:
		metrics.Get().RecordEventDropped()
		log.Warn().Msg("unknown event")
	}
}

// Disconnect cleans up everything owned by a closed connection
func (r *Router) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropAgent(connID, types.ReasonAgentDisconnected)

	if v, ok := r.dir.RemoveViewer(connID); ok {
		r.cancelTimers(viewerKey(connID))
		r.logger.Info().Str("conn_id", connID).Str("viewer_id", v.ID).Msg("CRM viewer disconnected")
	}

	for _, call := range r.dir.CallsByConn(connID) {
		payload := types.CallEnded{
			CallID:    call.CallID,
			Duration:  call.DurationSecs(r.clock.Now()),
			EndReason: types.ReasonCallerDisconnected,
			EndedBy:   types.EndedByCaller,
		}
		notified := map[string]bool{connID: true}
		r.notifyAttachedAgent(call, payload, notified)
		r.notifyViewers(types.EventCallEnded, payload, notified)
		r.finishCall(call, types.OutcomeEnded, types.ReasonCallerDisconnected, types.EndedByCaller)
	}
}

// AgentAvailable runs the agent-available transition for the agent on connID
func (r *Router) AgentAvailable(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agentAvailable(connID)
}

// Wait blocks until pending archive writes complete
func (r *Router) Wait() {
	r.archiveWG.Wait()
}

// ---- emission ----

func (r *Router) encode(event string, payload interface{}) ([]byte, bool) {
	data, err := types.Encode(event, payload, r.clock.Now())
	if err != nil {
		r.logger.Error().Err(err).Str("event", event).Msg("failed to encode message")
		return nil, false
	}
	return data, true
}

func (r *Router) send(connID, event string, payload interface{}) bool {
	if connID == "" {
		return false
	}
	data, ok := r.encode(event, payload)
	if !ok {
		return false
	}
	if !r.sender.Send(connID, data) {
		r.logger.Debug().Str("conn_id", connID).Str("event", event).Msg("connection gone, message dropped")
		return false
	}
	return true
}

func (r *Router) broadcast(event string, payload interface{}) {
	if data, ok := r.encode(event, payload); ok {
		r.sender.Broadcast(data)
	}
}

// notifyViewers sends to every viewer not already in notified and records them
func (r *Router) notifyViewers(event string, payload interface{}, notified map[string]bool) {
	for _, v := range r.dir.Viewers() {
		if notified[v.ConnID] {
			continue
		}
		notified[v.ConnID] = true
		r.send(v.ConnID, event, payload)
	}
}

func (r *Router) publish(ev events.Event) {
	ev.Timestamp = r.clock.Now()
	r.pub.Publish(ev)
}

// ---- timers ----

// later runs fn after d under the router lock; d <= 0 runs it inline
func (r *Router) later(key string, d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}

	var t clock.Timer
	t = r.clock.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.dropTimer(key, t)
		fn()
	})
	r.timers[key] = append(r.timers[key], t)
}

func (r *Router) dropTimer(key string, t clock.Timer) {
	pending := r.timers[key]
	for i, p := range pending {
		if p == t {
			pending = append(pending[:i], pending[i+1:]...)
			break
		}
	}
	if len(pending) == 0 {
		delete(r.timers, key)
		return
	}
	r.timers[key] = pending
}

func (r *Router) cancelTimers(key string) {
	for _, t := range r.timers[key] {
		t.Stop()
	}
	delete(r.timers, key)
}

// PendingTimers reports how many timers are armed
func (r *Router) PendingTimers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ts := range r.timers {
		n += len(ts)
	}
	return n
}

func viewerKey(connID string) string {
	return "viewer:" + connID
}

// ---- archive ----

func (r *Router) archive(record types.CallRecord) {
	r.archiveWG.Add(1)
	go func() {
		defer r.archiveWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.store.SaveCallRecord(ctx, record); err != nil {
			metrics.Get().RecordArchiveError()
			r.logger.Error().Err(err).Str("call_id", record.CallID).Msg("failed to archive call record")
		}
	}()
}

type discardSender struct{}

func (discardSender) Send(string, []byte) bool { return false }
func (discardSender) Broadcast([]byte)         {}
