// Package directory holds the volatile registries of the call center: agents by
// connection, calls by id, the FIFO wait queue and CRM viewers. Every query walks
// the registries; nothing is cached. Reads return copies.
package directory

import (
	"sort"
	"sync"
	"time"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// Directory is the in-memory state shared by the router and the REST API
type Directory struct {
	mu      sync.RWMutex
	agents  map[string]*types.Agent  // connID -> agent
	calls   map[string]*types.Call   // callID -> call
	viewers map[string]*types.Viewer // connID -> viewer
	queue   *Queue
}

// New creates an empty directory
func New() *Directory {
	return &Directory{
		agents:  make(map[string]*types.Agent),
		calls:   make(map[string]*types.Call),
		viewers: make(map[string]*types.Viewer),
		queue:   NewQueue(),
	}
}

// ---- agents ----

// PutAgent inserts or replaces the agent registered on agent.ConnID
func (d *Directory) PutAgent(agent types.Agent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := agent
	d.agents[agent.ConnID] = &a
}

// RemoveAgent deletes the agent on connID and returns it
func (d *Directory) RemoveAgent(connID string) (types.Agent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.agents[connID]
	if !ok {
		return types.Agent{}, false
	}
	delete(d.agents, connID)
	return *a, true
}

// Agent returns the agent registered on connID
func (d *Directory) Agent(connID string) (types.Agent, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.agents[connID]
	if !ok {
		return types.Agent{}, false
	}
	return *a, true
}

// AgentByID finds an agent by its stable user id
func (d *Directory) AgentByID(agentID string) (types.Agent, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.agents {
		if a.ID == agentID {
			return *a, true
		}
	}
	return types.Agent{}, false
}

// UpdateAgent applies fn to the agent on connID under the write lock
func (d *Directory) UpdateAgent(connID string, fn func(*types.Agent)) (types.Agent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.agents[connID]
	if !ok {
		return types.Agent{}, false
	}
	fn(a)
	return *a, true
}

// Agents returns every agent ordered by login time
func (d *Directory) Agents() []types.Agent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]types.Agent, 0, len(d.agents))
	for _, a := range d.agents {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoginTime.Equal(out[j].LoginTime) {
			return out[i].ConnID < out[j].ConnID
		}
		return out[i].LoginTime.Before(out[j].LoginTime)
	})
	return out
}

// AvailableAgents returns agents in the available status, ordered by login time
func (d *Directory) AvailableAgents() []types.Agent {
	all := d.Agents()
	out := all[:0]
	for _, a := range all {
		if a.Status == types.StatusAvailable {
			out = append(out, a)
		}
	}
	return out
}

// ---- calls ----

// PutCall inserts or replaces a call
func (d *Directory) PutCall(call types.Call) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := call
	d.calls[call.CallID] = &c
}

// Call returns the call with the given id
func (d *Directory) Call(callID string) (types.Call, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.calls[callID]
	if !ok {
		return types.Call{}, false
	}
	return *c, true
}

// UpdateCall applies fn to the call under the write lock
func (d *Directory) UpdateCall(callID string, fn func(*types.Call)) (types.Call, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.calls[callID]
	if !ok {
		return types.Call{}, false
	}
	fn(c)
	return *c, true
}

// RemoveCall deletes the call and drops it from the queue
func (d *Directory) RemoveCall(callID string) (types.Call, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.calls[callID]
	if !ok {
		return types.Call{}, false
	}
	delete(d.calls, callID)
	d.queue.Remove(callID)
	return *c, true
}

// Calls returns every live call ordered by start time
func (d *Directory) Calls() []types.Call {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.collectCalls(func(*types.Call) bool { return true })
}

// CallsByConn returns calls originated by connID
func (d *Directory) CallsByConn(connID string) []types.Call {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.collectCalls(func(c *types.Call) bool { return c.ConnID == connID })
}

// CallsByAgent returns calls attached to the agent user id
func (d *Directory) CallsByAgent(agentID string) []types.Call {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.collectCalls(func(c *types.Call) bool { return agentID != "" && c.AgentID == agentID })
}

// CallsByStatus returns calls in the given status
func (d *Directory) CallsByStatus(status types.CallStatus) []types.Call {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.collectCalls(func(c *types.Call) bool { return c.Status == status })
}

// collectCalls filters calls; caller holds d.mu
func (d *Directory) collectCalls(keep func(*types.Call) bool) []types.Call {
	out := make([]types.Call, 0)
	for _, c := range d.calls {
		if keep(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].CallID < out[j].CallID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// ---- queue ----

// Enqueue marks a known call queued and appends it to the FIFO; it returns the
// 1-based position, or 0 if the call does not exist
func (d *Directory) Enqueue(callID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.calls[callID]
	if !ok {
		return 0
	}
	c.Status = types.CallStatusQueued
	return d.queue.Enqueue(callID)
}

// DequeueNext pops the oldest queued call that still exists
func (d *Directory) DequeueNext() (types.Call, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		callID, ok := d.queue.DequeueNext()
		if !ok {
			return types.Call{}, false
		}
		if c, exists := d.calls[callID]; exists {
			return *c, true
		}
	}
}

// RemoveQueued drops a call from the FIFO without touching the registry
func (d *Directory) RemoveQueued(callID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Remove(callID)
}

// QueuePosition returns the 1-based position of a call, or 0 if not queued
func (d *Directory) QueuePosition(callID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.queue.Position(callID)
}

// Queue returns the queued calls in arrival order
func (d *Directory) Queue() []types.Call {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := d.queue.IDs()
	out := make([]types.Call, 0, len(ids))
	for _, id := range ids {
		if c, ok := d.calls[id]; ok {
			out = append(out, *c)
		}
	}
	return out
}

// ---- viewers ----

// PutViewer registers a CRM viewer on viewer.ConnID
func (d *Directory) PutViewer(viewer types.Viewer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := viewer
	d.viewers[viewer.ConnID] = &v
}

// RemoveViewer deletes the viewer on connID
func (d *Directory) RemoveViewer(connID string) (types.Viewer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.viewers[connID]
	if !ok {
		return types.Viewer{}, false
	}
	delete(d.viewers, connID)
	return *v, true
}

// Viewer returns the viewer registered on connID
func (d *Directory) Viewer(connID string) (types.Viewer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.viewers[connID]
	if !ok {
		return types.Viewer{}, false
	}
	return *v, true
}

// Viewers returns every viewer ordered by join time
func (d *Directory) Viewers() []types.Viewer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]types.Viewer, 0, len(d.viewers))
	for _, v := range d.viewers {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinTime.Equal(out[j].JoinTime) {
			return out[i].ConnID < out[j].ConnID
		}
		return out[i].JoinTime.Before(out[j].JoinTime)
	})
	return out
}

// ---- derived ----

// Stats counts the registries
func (d *Directory) Stats() types.Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := types.Stats{
		TotalQueue:          d.queue.Len(),
		TotalAgents:         len(d.agents),
		ConnectedCRMSystems: len(d.viewers),
	}
	for _, c := range d.calls {
		if c.Status == types.CallStatusConnected {
			stats.TotalActiveCalls++
		}
	}
	for _, a := range d.agents {
		switch a.Status {
		case types.StatusAvailable:
			stats.AvailableAgents++
		case types.StatusOnCall:
			stats.BusyAgents++
		}
	}
	return stats
}

// Dashboard builds the dashboard_data snapshot at now
func (d *Directory) Dashboard(now time.Time, waitPerPosition time.Duration) types.DashboardData {
	agents := d.Agents()
	byID := make(map[string]*types.Agent, len(agents))
	for i := range agents {
		byID[agents[i].ID] = &agents[i]
	}

	data := types.DashboardData{
		Stats:        d.Stats(),
		ActiveCalls:  make([]types.ActiveCallView, 0),
		QueueStatus:  make([]types.QueueEntryView, 0),
		AgentsStatus: agents,
	}

	for _, c := range d.CallsByStatus(types.CallStatusConnected) {
		view := types.ActiveCallView{
			CallID:       c.CallID,
			CallerNumber: c.CallerNumber,
			Status:       c.Status,
			Duration:     c.DurationSecs(now),
		}
		if a, ok := byID[c.AgentID]; ok {
			view.AgentInfo = a
		}
		data.ActiveCalls = append(data.ActiveCalls, view)
	}

	for i, c := range d.Queue() {
		wait := int(now.Sub(c.StartTime) / time.Second)
		if wait < 0 {
			wait = 0
		}
		data.QueueStatus = append(data.QueueStatus, types.QueueEntryView{
			CallID:            c.CallID,
			CallerNumber:      c.CallerNumber,
			QueuePosition:     i + 1,
			WaitTime:          wait,
			EstimatedWaitTime: EstimatedWait(i+1, waitPerPosition),
		})
	}
	return data
}

// EstimatedWait returns the displayed wait estimate in seconds for a queue position
func EstimatedWait(position int, perPosition time.Duration) int {
	return position * int(perPosition/time.Second)
}
