package session

import (
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/events"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

func (r *Router) handleAgentLogin(connID string, req types.AgentLoginRequest) {
	if req.UserID == "" {
		r.send(connID, types.EventAgentLoginFailed, types.LoginResult{Username: req.Username, Reason: "userId is required"})
		return
	}
	now := r.clock.Now()

	agent := types.Agent{
		ID:          req.UserID,
		Username:    req.Username,
		FullName:    req.FullName,
		Email:       req.Email,
		Department:  req.Department,
		Status:      types.StatusAvailable,
		ConnID:      connID,
		LoginTime:   now,
		StatusSince: now,
	}

	// Last write wins: a previous registration of the same user moves here
	if prev, ok := r.dir.AgentByID(req.UserID); ok {
		agent.LoginTime = prev.LoginTime
		agent.TotalCallsHandled = prev.TotalCallsHandled
		agent.AvgHandleTime = prev.AvgHandleTime
		if prev.ConnID != connID {
			r.dir.RemoveAgent(prev.ConnID)
			r.logger.Info().Str("agent_id", prev.ID).Str("stale_conn", prev.ConnID).Msg("dropping stale agent registration")
		}
	}
	if other, ok := r.dir.Agent(connID); ok && other.ID != req.UserID {
		r.dir.RemoveAgent(connID)
		r.broadcastStatus(other.ID, other.Username, types.StatusOffline)
	}

	// Calls attached to this identity survive the re-login
	for _, c := range r.dir.CallsByAgent(agent.ID) {
		if c.Status == types.CallStatusConnected {
			agent.Status = types.StatusOnCall
			break
		}
	}

	r.dir.PutAgent(agent)
	r.send(connID, types.EventAgentLoginSuccess, types.LoginResult{
		UserID:   agent.ID,
		Username: agent.Username,
		Status:   agent.Status,
	})
	r.broadcastStatus(agent.ID, agent.Username, agent.Status)
	r.logger.Info().Str("conn_id", connID).Str("agent_id", agent.ID).Str("username", agent.Username).Msg("agent logged in")

	r.agentAvailable(connID)
}

func (r *Router) handleAgentLogout(connID string) {
	if agent, ok := r.dir.Agent(connID); ok {
		r.logger.Info().Str("conn_id", connID).Str("agent_id", agent.ID).Msg("agent logged out")
	}
	r.dropAgent(connID, types.ReasonAgentDisconnected)
}

func (r *Router) handleStatusChange(connID string, req types.StatusChangeRequest) {
	agent, ok := r.dir.Agent(connID)
	if !ok {
		r.send(connID, types.EventStatusChangeFailed, types.StatusChangeResult{NewStatus: req.Status, Reason: "agent not logged in"})
		return
	}
	if !req.Status.IsSelectable() {
		r.send(connID, types.EventStatusChangeFailed, types.StatusChangeResult{
			NewStatus:      req.Status,
			PreviousStatus: agent.Status,
			Reason:         "invalid status",
		})
		return
	}
	if agent.Status == types.StatusOnCall {
		r.send(connID, types.EventStatusChangeFailed, types.StatusChangeResult{
			NewStatus:      req.Status,
			PreviousStatus: agent.Status,
			Reason:         "agent is on a call",
		})
		return
	}

	previous := agent.Status
	now := r.clock.Now()
	agent, _ = r.dir.UpdateAgent(connID, func(a *types.Agent) {
		a.Status = req.Status
		a.StatusSince = now
	})

	r.send(connID, types.EventStatusChangeSuccess, types.StatusChangeResult{NewStatus: agent.Status, PreviousStatus: previous})
	r.broadcastStatus(agent.ID, agent.Username, agent.Status)
	r.logger.Info().Str("agent_id", agent.ID).Str("from", string(previous)).Str("to", string(agent.Status)).Msg("agent status changed")

	if agent.Status == types.StatusAvailable {
		r.agentAvailable(connID)
	}
}

// agentAvailable pops the queue head onto the agent on connID, if it is free
func (r *Router) agentAvailable(connID string) {
	agent, ok := r.dir.Agent(connID)
	if !ok || agent.Status != types.StatusAvailable || r.isReserved(connID) {
		return
	}
	call, ok := r.dir.DequeueNext()
	if !ok {
		return
	}
	r.logger.Info().Str("call_id", call.CallID).Str("agent_id", agent.ID).Msg("dequeued call for available agent")
	r.connectToAgent(call.CallID, agent)
}

// setOnCall flips the agent on connID to on_call and announces it
func (r *Router) setOnCall(connID string) {
	now := r.clock.Now()
	agent, ok := r.dir.UpdateAgent(connID, func(a *types.Agent) {
		a.Status = types.StatusOnCall
		a.StatusSince = now
	})
	if ok {
		r.broadcastStatus(agent.ID, agent.Username, agent.Status)
	}
}

// releaseAgent returns agentID to available once no live call references it
func (r *Router) releaseAgent(agentID string, handleSecs float64) {
	agent, ok := r.dir.AgentByID(agentID)
	if !ok {
		return
	}
	for _, c := range r.dir.CallsByAgent(agentID) {
		if c.Status == types.CallStatusConnected {
			return
		}
	}

	now := r.clock.Now()
	wasOnCall := agent.Status == types.StatusOnCall
	agent, _ = r.dir.UpdateAgent(agent.ConnID, func(a *types.Agent) {
		a.RecordHandledCall(handleSecs)
		if wasOnCall {
			a.Status = types.StatusAvailable
			a.StatusSince = now
		}
	})
	if !wasOnCall {
		return
	}

	r.broadcastStatus(agent.ID, agent.Username, agent.Status)
	r.agentAvailable(agent.ConnID)
}

// dropAgent removes the agent on connID, announces it offline once and ends
// the calls attached to it
func (r *Router) dropAgent(connID, reason string) {
	agent, ok := r.dir.RemoveAgent(connID)
	if !ok {
		return
	}
	r.broadcastStatus(agent.ID, agent.Username, types.StatusOffline)

	for _, call := range r.dir.CallsByAgent(agent.ID) {
		payload := types.CallEnded{
			CallID:    call.CallID,
			Duration:  call.DurationSecs(r.clock.Now()),
			EndReason: reason,
			EndedBy:   types.EndedByAgent,
		}
		notified := map[string]bool{connID: true, call.ConnID: true}
		r.send(call.ConnID, types.EventCallEnded, payload)
		r.notifyViewers(types.EventCallEnded, payload, notified)
		r.finishCall(call, types.OutcomeEnded, reason, types.EndedByAgent)
	}
}

func (r *Router) broadcastStatus(agentID, username string, status types.AgentStatus) {
	r.broadcast(types.EventAgentStatusUpdate, types.AgentStatusUpdate{
		AgentID:  agentID,
		Username: username,
		Status:   status,
	})
	r.publish(events.Event{Type: types.EventAgentStatusUpdate, AgentID: agentID, Status: string(status)})
}
