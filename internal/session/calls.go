package session

import (
	"time"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/directory"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/events"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/metrics"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/storage"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

const (
	answeredMessage        = "Call connected"
	answeredElsewhereMsg   = "Call accepted by another agent"
	rejectedByAgentMessage = "Call rejected by agent"
	defaultCRMAgentName    = "CRM Agent"
	defaultCRMAgentUser    = "crm_agent"
	defaultSimulatedCaller = "+84987654321"
)

func (r *Router) handleMakeCall(connID string, req types.MakeCallRequest) {
	now := r.clock.Now()
	call := types.Call{
		CallID:       r.ids.New(types.PrefixCall),
		CallerNumber: req.CallerNumber,
		CalledNumber: req.CalledNumber,
		CustomerInfo: req.CustomerInfo,
		Status:       types.CallStatusInitiated,
		Source:       types.SourceCustomer,
		StartTime:    now,
		ConnID:       connID,
	}
	r.dir.PutCall(call)
	metrics.Get().RecordCallCreated()

	log := r.logger.With().Str("call_id", call.CallID).Logger()
	log.Info().Str("caller", call.CallerNumber).Msg("call requested")

	r.send(connID, types.EventCallInitiated, types.CallInitiated{
		CallID:       call.CallID,
		CallerNumber: call.CallerNumber,
		CalledNumber: call.CalledNumber,
		Status:       types.CallStatusRinging,
	})

	agent, ok := r.pickAgent()
	if !ok {
		r.dir.UpdateCall(call.CallID, func(c *types.Call) { c.Status = types.CallStatusRinging })
		r.enqueue(call.CallID)
		return
	}

	r.dir.UpdateCall(call.CallID, func(c *types.Call) {
		c.Status = types.CallStatusRinging
		c.ReservedFor = agent.ConnID
	})
	log.Debug().Str("agent_id", agent.ID).Msg("agent reserved")

	callID := call.CallID
	r.later(callID, r.opts.ConnectDelay, func() { r.connectReserved(callID) })
}

// pickAgent selects an available agent that no ringing call has reserved
func (r *Router) pickAgent() (types.Agent, bool) {
	candidates := make([]types.Agent, 0)
	for _, a := range r.dir.AvailableAgents() {
		if !r.isReserved(a.ConnID) {
			candidates = append(candidates, a)
		}
	}
	return r.routing.SelectAgent(candidates)
}

func (r *Router) isReserved(connID string) bool {
	for _, c := range r.dir.Calls() {
		if c.ReservedFor == connID && c.Status == types.CallStatusRinging {
			return true
		}
	}
	return false
}

func (r *Router) connectReserved(callID string) {
	call, ok := r.dir.Call(callID)
	if !ok || call.Status != types.CallStatusRinging {
		return
	}

	agent, ok := r.dir.Agent(call.ReservedFor)
	if !ok || agent.Status != types.StatusAvailable {
		r.logger.Info().Str("call_id", callID).Msg("reserved agent no longer available, queueing")
		r.dir.UpdateCall(callID, func(c *types.Call) { c.ReservedFor = "" })
		r.enqueue(callID)
		return
	}
	r.connectToAgent(callID, agent)
}

// connectToAgent attaches a waiting call to agent and notifies both ends
func (r *Router) connectToAgent(callID string, agent types.Agent) {
	call, ok := r.attach(callID, agent.ID, "")
	if !ok {
		return
	}

	r.send(call.ConnID, types.EventCallConnected, types.CallConnected{CallID: call.CallID, AgentInfo: agent.Info()})
	r.send(agent.ConnID, types.EventCallAnswered, types.CallAnswered{
		CallID:       call.CallID,
		CallerNumber: call.CallerNumber,
		CustomerInfo: call.CustomerInfo,
		AgentID:      agent.ID,
	})
	r.setOnCall(agent.ConnID)

	r.logger.Info().Str("call_id", call.CallID).Str("agent_id", agent.ID).Msg("call connected")
}

// attach marks the call connected to agentID, clears queue state and timers
func (r *Router) attach(callID, agentID string, source types.CallSource) (types.Call, bool) {
	now := r.clock.Now()
	r.dir.RemoveQueued(callID)
	r.cancelTimers(callID)

	var reserved string
	if prev, ok := r.dir.Call(callID); ok && prev.Status == types.CallStatusRinging {
		reserved = prev.ReservedFor
	}

	call, ok := r.dir.UpdateCall(callID, func(c *types.Call) {
		c.Status = types.CallStatusConnected
		c.ConnectedTime = &now
		c.AgentSince = &now
		c.AgentID = agentID
		c.ReservedFor = ""
		if source != "" {
			c.Source = source
		}
	})
	if !ok {
		return types.Call{}, false
	}

	metrics.Get().RecordCallConnected()
	r.publish(events.Event{Type: types.EventCallConnected, CallID: callID, AgentID: agentID, Status: string(call.Status)})

	// answered by someone other than the reserved agent
	if reserved != "" {
		if a, ok := r.dir.AgentByID(agentID); !ok || a.ConnID != reserved {
			r.agentAvailable(reserved)
		}
	}
	return call, true
}

func (r *Router) enqueue(callID string) {
	pos := r.dir.Enqueue(callID)
	if pos == 0 {
		return
	}
	metrics.Get().RecordCallQueued()
	r.logger.Info().Str("call_id", callID).Int("position", pos).Msg("call queued")

	r.later(callID, r.opts.QueueNoticeDelay, func() {
		call, ok := r.dir.Call(callID)
		if !ok || call.Status != types.CallStatusQueued {
			return
		}
		pos := r.dir.QueuePosition(callID)
		r.send(call.ConnID, types.EventCallQueued, types.CallQueued{
			CallID:            callID,
			QueuePosition:     pos,
			EstimatedWaitTime: directory.EstimatedWait(pos, r.opts.QueueWaitEstimate),
		})
	})

	if r.opts.QueueFallbackDelay > 0 {
		r.later(callID, r.opts.QueueFallbackDelay, func() { r.connectSynthetic(callID) })
	}
}

// connectSynthetic hands a still-queued call to the mock agent
func (r *Router) connectSynthetic(callID string) {
	call, ok := r.dir.Call(callID)
	if !ok || call.Status != types.CallStatusQueued {
		return
	}
	call, ok = r.attach(callID, types.SyntheticAgent.ID, "")
	if !ok {
		return
	}
	r.send(call.ConnID, types.EventCallConnected, types.CallConnected{CallID: callID, AgentInfo: types.SyntheticAgent})
	r.logger.Info().Str("call_id", callID).Msg("call connected to synthetic agent")
}

func (r *Router) handleAnswerCall(connID string, req types.AnswerCallRequest) {
	log := r.logger.With().Str("conn_id", connID).Str("call_id", req.CallID).Logger()

	call, ok := r.dir.Call(req.CallID)
	if !ok {
		log.Warn().Msg("answer for unknown call")
		return
	}
	if call.Status == types.CallStatusConnected {
		log.Warn().Str("agent_id", call.AgentID).Msg("call already answered")
		return
	}

	agent, isAgent := r.dir.Agent(connID)
	viewer, isViewer := r.dir.Viewer(connID)
	if !isAgent && !isViewer {
		log.Warn().Msg("answer from unregistered connection")
		return
	}

	// A logged-in agent answers for itself; a viewer answers on behalf of agentId
	byViewer := !isAgent
	agentID := agent.ID
	if byViewer {
		agentID = req.AgentID
		if agentID == "" {
			agentID = viewer.ID
		}
		if a, ok := r.dir.AgentByID(agentID); ok {
			agent, isAgent = a, true
		}
	}
	if isAgent && agent.Status == types.StatusOnCall {
		log.Warn().Str("agent_id", agent.ID).Msg("agent already on a call")
		return
	}

	source := types.CallSource("")
	if byViewer {
		source = types.SourceCRM
	}
	call, ok = r.attach(call.CallID, agentID, source)
	if !ok {
		return
	}

	if byViewer {
		r.send(connID, types.EventCallAnswered, types.CallAnswered{
			CallID: call.CallID,
			Call: &types.AnsweredCall{
				CallID:       call.CallID,
				CallerNumber: call.CallerNumber,
				CustomerInfo: call.CustomerInfo,
				Status:       call.Status,
				AgentInfo:    &types.AgentInfo{ID: agentID, Source: string(types.SourceCRM)},
			},
			Message: answeredMessage,
		})
		others := map[string]bool{connID: true}
		r.notifyViewers(types.EventCallAnswered, types.CallAnswered{
			CallID:  call.CallID,
			Call:    &types.AnsweredCall{CallID: call.CallID, Status: call.Status},
			Message: answeredElsewhereMsg,
		}, others)
	} else {
		r.send(connID, types.EventCallAnswered, types.CallAnswered{
			CallID:       call.CallID,
			CallerNumber: call.CallerNumber,
			CustomerInfo: call.CustomerInfo,
			AgentID:      agentID,
		})
	}

	if call.ConnID != connID {
		info := types.AgentInfo{ID: agentID, FullName: defaultCRMAgentName, Username: defaultCRMAgentUser}
		if isAgent {
			if agent.FullName != "" {
				info.FullName = agent.FullName
			}
			if agent.Username != "" {
				info.Username = agent.Username
			}
		}
		r.send(call.ConnID, types.EventCallConnected, types.CallConnected{CallID: call.CallID, AgentInfo: info})
	}

	if isAgent {
		r.setOnCall(agent.ConnID)
	}
	log.Info().Str("agent_id", agentID).Bool("by_viewer", byViewer).Msg("call answered")
}

// handleEndOrReject is the single terminator for reject_call and end_call
func (r *Router) handleEndOrReject(connID string, reject bool, req types.EndCallRequest) {
	log := r.logger.With().Str("conn_id", connID).Str("call_id", req.CallID).Logger()

	call, ok := r.dir.Call(req.CallID)
	if !ok {
		log.Debug().Msg("end for unknown or already ended call")
		return
	}

	_, isViewer := r.dir.Viewer(connID)
	_, isAgent := r.dir.Agent(connID)
	byCRM := isViewer || req.Source == types.SourceCRM
	byCustomer := !byCRM && !isAgent

	reason := req.EndReason
	if reason == "" {
		reason = req.Reason
	}
	duration := call.DurationSecs(r.clock.Now())
	notified := make(map[string]bool)

	var (
		outcome      types.CallOutcome
		endedBy      string
		partyPayload types.CallEnded
	)

	switch {
	case reject:
		outcome = types.OutcomeRejected
		endedBy = types.EndedByAgent
		if byCustomer {
			endedBy = types.EndedByCaller
		}
		failReason := withDefault(reason, types.ReasonAgentDeclined)
		notified[call.ConnID] = true
		r.send(call.ConnID, types.EventCallFailed, types.CallFailed{
			CallID:  call.CallID,
			Message: rejectedByAgentMessage,
			Reason:  failReason,
		})
		partyPayload = types.CallEnded{CallID: call.CallID, Duration: duration, EndReason: failReason, EndedBy: endedBy}
	case byCustomer:
		outcome = types.OutcomeEnded
		endedBy = withDefault(req.EndedBy, types.EndedByCaller)
		partyPayload = types.CallEnded{
			CallID:    call.CallID,
			Duration:  duration,
			EndReason: withDefault(reason, types.ReasonCallerHangup),
			EndedBy:   endedBy,
		}
		notified[call.ConnID] = true
		r.send(call.ConnID, types.EventCallEnded, partyPayload)
	default:
		outcome = types.OutcomeEnded
		endedBy = types.EndedByAgent
		partyPayload = types.CallEnded{
			CallID:    call.CallID,
			Duration:  duration,
			EndReason: withDefault(reason, types.ReasonAgentEnded),
			EndedBy:   endedBy,
		}
		notified[call.ConnID] = true
		r.send(call.ConnID, types.EventCallEnded, partyPayload)
	}

	viewerReason := types.ReasonCRMEnd
	viewerMessage := "Call ended"
	if reject {
		viewerReason = types.ReasonCRMReject
		viewerMessage = "Call rejected"
	}
	r.notifyViewers(types.EventCallEnded, types.CallEnded{
		CallID:    call.CallID,
		Duration:  duration,
		EndReason: withDefault(reason, viewerReason),
		EndedBy:   endedBy,
		Message:   viewerMessage,
	}, notified)

	r.notifyAttachedAgent(call, partyPayload, notified)

	// the requester always learns the outcome
	if !notified[connID] {
		r.send(connID, types.EventCallEnded, partyPayload)
	}

	r.finishCall(call, outcome, partyPayload.EndReason, endedBy)
	log.Info().Str("outcome", string(outcome)).Int("duration", duration).Msg("call terminated")
}

// notifyAttachedAgent tells the agent attached to call, unless already told
func (r *Router) notifyAttachedAgent(call types.Call, payload types.CallEnded, notified map[string]bool) {
	if call.AgentID == "" {
		return
	}
	agent, ok := r.dir.AgentByID(call.AgentID)
	if !ok || notified[agent.ConnID] {
		return
	}
	notified[agent.ConnID] = true
	r.send(agent.ConnID, types.EventCallEnded, payload)
}

// finishCall removes a terminated call, releases its agent, archives and publishes it
func (r *Router) finishCall(call types.Call, outcome types.CallOutcome, reason, endedBy string) {
	r.cancelTimers(call.CallID)
	call, ok := r.dir.RemoveCall(call.CallID)
	if !ok {
		return
	}

	now := r.clock.Now()
	metrics.Get().RecordCallEnded(outcome)
	r.archive(storage.NewCallRecord(call, outcome, reason, endedBy, now))
	r.publish(events.Event{
		Type:     types.EventCallEnded,
		CallID:   call.CallID,
		AgentID:  call.AgentID,
		Status:   string(outcome),
		Reason:   reason,
		Duration: call.DurationSecs(now),
	})

	switch {
	case call.AgentID != "" && call.Status == types.CallStatusConnected:
		r.releaseAgent(call.AgentID, call.HandleSecs(now))
	case call.Status == types.CallStatusRinging && call.ReservedFor != "":
		// the reservation is gone, so the agent can take the queue head
		r.agentAvailable(call.ReservedFor)
	}
}

// armRingTimeout fails the call if it is still ringing after d
func (r *Router) armRingTimeout(callID string, d time.Duration, reason string) {
	if d <= 0 {
		return
	}
	r.later(callID, d, func() {
		call, ok := r.dir.Call(callID)
		if !ok || call.Status != types.CallStatusRinging {
			return
		}
		metrics.Get().RecordRingTimeout()
		r.send(call.ConnID, types.EventCallEnded, types.CallEnded{
			CallID:    callID,
			Duration:  0,
			EndReason: reason,
			EndedBy:   types.EndedBySystem,
			Message:   "Call was not answered",
		})
		r.finishCall(call, types.OutcomeFailed, reason, types.EndedBySystem)
		r.logger.Info().Str("call_id", callID).Str("reason", reason).Msg("ring timeout")
	})
}

func (r *Router) handleHold(connID string, hold bool, req types.CallControlRequest) {
	call, ok := r.dir.Call(req.CallID)
	if !ok || call.Status != types.CallStatusConnected {
		r.logger.Debug().Str("conn_id", connID).Str("call_id", req.CallID).Msg("hold/resume for call that is not connected")
		return
	}

	call, _ = r.dir.UpdateCall(call.CallID, func(c *types.Call) { c.OnHold = hold })
	payload := types.CallHoldEvent{CallID: call.CallID, AgentID: call.AgentID, OnHold: hold}

	agentEvent, viewerEvent := types.EventCallResume, types.EventCallResumed
	if hold {
		agentEvent, viewerEvent = types.EventCallHold, types.EventCallOnHold
	}

	notified := make(map[string]bool)
	if agent, ok := r.dir.AgentByID(call.AgentID); ok {
		notified[agent.ConnID] = true
		r.send(agent.ConnID, agentEvent, payload)
	}
	r.notifyViewers(viewerEvent, payload, notified)
	if !notified[connID] {
		r.send(connID, agentEvent, payload)
	}
}

func (r *Router) handleTransfer(connID string, req types.TransferRequest) {
	log := r.logger.With().Str("conn_id", connID).Str("call_id", req.CallID).Str("target", req.TargetAgentID).Logger()

	call, ok := r.dir.Call(req.CallID)
	if !ok || call.Status != types.CallStatusConnected {
		log.Warn().Msg("transfer for call that is not connected")
		return
	}
	target, ok := r.dir.AgentByID(req.TargetAgentID)
	if !ok || target.Status != types.StatusAvailable || target.ID == call.AgentID {
		log.Warn().Msg("transfer target not available")
		return
	}

	from := call.AgentID
	now := r.clock.Now()
	heldSecs := call.HandleSecs(now)
	call, _ = r.dir.UpdateCall(call.CallID, func(c *types.Call) {
		c.AgentID = target.ID
		c.AgentSince = &now
	})
	r.setOnCall(target.ConnID)

	payload := types.CallTransferred{
		CallID:        call.CallID,
		CallerNumber:  call.CallerNumber,
		CustomerInfo:  call.CustomerInfo,
		FromAgentID:   from,
		TargetAgentID: target.ID,
		TransferType:  withDefault(req.TransferType, "blind"),
		Reason:        req.Reason,
	}
	r.send(target.ConnID, types.EventCallTransferredToAgent, payload)

	notified := map[string]bool{target.ConnID: true}
	r.notifyViewers(types.EventCallTransferred, payload, notified)
	if !notified[connID] {
		r.send(connID, types.EventCallTransferred, payload)
	}
	r.publish(events.Event{Type: types.EventCallTransferred, CallID: call.CallID, AgentID: target.ID})

	if from != "" {
		r.releaseAgent(from, heldSecs)
	}
	log.Info().Str("from", from).Msg("call transferred")
}

func (r *Router) handleOutboundCall(connID string, req types.OutboundCallRequest) {
	agent, ok := r.dir.Agent(connID)
	if !ok {
		r.logger.Warn().Str("conn_id", connID).Msg("outbound call from unregistered connection")
		return
	}
	if agent.Status == types.StatusOnCall || req.TargetNumber == "" {
		r.logger.Warn().Str("agent_id", agent.ID).Msg("outbound call refused")
		return
	}

	call := types.Call{
		CallID:       r.ids.New(types.PrefixOutbound),
		CallerNumber: req.TargetNumber,
		CalledNumber: req.TargetNumber,
		CustomerInfo: req.CustomerInfo,
		Status:       types.CallStatusRinging,
		Source:       types.SourceOutbound,
		StartTime:    r.clock.Now(),
		ConnID:       connID,
		ReservedFor:  connID,
	}
	r.dir.PutCall(call)
	metrics.Get().RecordCallCreated()

	r.send(connID, types.EventCallInitiated, types.CallInitiated{
		CallID:       call.CallID,
		CallerNumber: call.CallerNumber,
		CalledNumber: call.CalledNumber,
		Status:       types.CallStatusRinging,
	})

	callID := call.CallID
	r.later(callID, r.opts.ConnectDelay, func() { r.connectOutbound(callID) })
}

func (r *Router) connectOutbound(callID string) {
	call, ok := r.dir.Call(callID)
	if !ok || call.Status != types.CallStatusRinging {
		return
	}
	agent, ok := r.dir.Agent(call.ConnID)
	if !ok || agent.Status == types.StatusOnCall {
		r.send(call.ConnID, types.EventCallFailed, types.CallFailed{CallID: callID, Reason: "agent_unavailable"})
		r.finishCall(call, types.OutcomeFailed, "agent_unavailable", types.EndedBySystem)
		return
	}

	call, ok = r.attach(callID, agent.ID, "")
	if !ok {
		return
	}
	r.send(agent.ConnID, types.EventCallAnswered, types.CallAnswered{
		CallID:       call.CallID,
		CallerNumber: call.CallerNumber,
		CustomerInfo: call.CustomerInfo,
		AgentID:      agent.ID,
	})
	r.setOnCall(agent.ConnID)
}

func (r *Router) handleSimulateIncoming(connID string, req types.SimulateIncomingRequest) {
	agent, ok := r.dir.Agent(connID)
	if !ok || agent.Status != types.StatusAvailable {
		r.logger.Debug().Str("conn_id", connID).Msg("simulated call needs an available agent")
		return
	}

	callID := req.CallID
	if callID == "" {
		callID = r.ids.New(types.PrefixSimulated)
	}
	if _, exists := r.dir.Call(callID); exists {
		r.logger.Warn().Str("call_id", callID).Msg("simulated call id already in use")
		return
	}

	customer := req.CustomerInfo
	if customer == nil {
		customer = &types.CustomerInfo{FullName: "Nguyễn Văn Test", CIF: "CIF123456"}
	}
	call := types.Call{
		CallID:       callID,
		CallerNumber: withDefault(req.CallerNumber, defaultSimulatedCaller),
		CustomerInfo: customer,
		Status:       types.CallStatusRinging,
		Source:       types.SourceSimulated,
		StartTime:    r.clock.Now(),
		ConnID:       connID,
		ReservedFor:  connID,
	}
	r.dir.PutCall(call)
	metrics.Get().RecordCallCreated()

	r.send(connID, types.EventIncomingCall, incomingCall(call))
	r.armRingTimeout(callID, r.opts.RingTimeout, types.ReasonTimeout)
}

func incomingCall(call types.Call) types.IncomingCall {
	return types.IncomingCall{
		CallID:        call.CallID,
		CallerNumber:  call.CallerNumber,
		CalledNumber:  call.CalledNumber,
		CustomerInfo:  call.CustomerInfo,
		AssignedAgent: call.AssignedAgent,
		Status:        call.Status,
		Source:        call.Source,
		StartTime:     call.StartTime.UTC().Format(time.RFC3339),
	}
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
