package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Router metrics
	EventsReceivedTotal int64
	EventsDroppedTotal  int64
	eventsByType        map[string]int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	WebSocketRateLimitedTotal    int64
	activeConnections            int64

	// Call lifecycle metrics
	CallsCreatedTotal   int64
	CallsConnectedTotal int64
	CallsQueuedTotal    int64
	RingTimeoutsTotal   int64
	callsEndedByOutcome map[types.CallOutcome]int64
	ArchiveErrorsTotal  int64
	PublishErrorsTotal  int64

	// Agent metrics
	agentsByStatus map[types.AgentStatus]int
	totalAgents    int
	totalViewers   int

	// HTTP metrics
	httpRequestsTotal map[string]map[int]int64 // endpoint -> status -> count

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		eventsByType:        make(map[string]int64),
		callsEndedByOutcome: make(map[types.CallOutcome]int64),
		agentsByStatus:      make(map[types.AgentStatus]int),
		httpRequestsTotal:   make(map[string]map[int]int64),
		startTime:           time.Now(),
	}
}

// RecordEventReceived counts one inbound router event by name
func (m *Metrics) RecordEventReceived(eventType string) {
	m.mu.Lock()
	m.EventsReceivedTotal++
	m.eventsByType[eventType]++
	m.mu.Unlock()
}

// RecordEventDropped counts a malformed or unroutable inbound event
func (m *Metrics) RecordEventDropped() {
	m.mu.Lock()
	m.EventsDroppedTotal++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordRateLimited counts an inbound frame dropped by the per-connection limiter
func (m *Metrics) RecordRateLimited() {
	m.mu.Lock()
	m.WebSocketRateLimitedTotal++
	m.mu.Unlock()
}

// RecordCallCreated counts a new call
func (m *Metrics) RecordCallCreated() {
	m.mu.Lock()
	m.CallsCreatedTotal++
	m.mu.Unlock()
}

// RecordCallQueued counts a call entering the wait queue
func (m *Metrics) RecordCallQueued() {
	m.mu.Lock()
	m.CallsQueuedTotal++
	m.mu.Unlock()
}

// RecordCallConnected counts a call attached to an agent
func (m *Metrics) RecordCallConnected() {
	m.mu.Lock()
	m.CallsConnectedTotal++
	m.mu.Unlock()
}

// RecordCallEnded counts a terminated call by outcome
func (m *Metrics) RecordCallEnded(outcome types.CallOutcome) {
	m.mu.Lock()
	m.callsEndedByOutcome[outcome]++
	m.mu.Unlock()
}

// RecordRingTimeout counts a ringing call that expired
func (m *Metrics) RecordRingTimeout() {
	m.mu.Lock()
	m.RingTimeoutsTotal++
	m.mu.Unlock()
}

// RecordArchiveError counts a failed call-record write
func (m *Metrics) RecordArchiveError() {
	m.mu.Lock()
	m.ArchiveErrorsTotal++
	m.mu.Unlock()
}

// RecordPublishError counts a failed event-mirror publish
func (m *Metrics) RecordPublishError() {
	m.mu.Lock()
	m.PublishErrorsTotal++
	m.mu.Unlock()
}

// UpdateDirectoryStats updates agent distribution metrics
func (m *Metrics) UpdateDirectoryStats(agents []types.Agent, viewers int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agentsByStatus = make(map[types.AgentStatus]int)
	m.totalAgents = len(agents)
	m.totalViewers = viewers

	for _, agent := range agents {
		m.agentsByStatus[agent.Status]++
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		write("callcenter_uptime_seconds", time.Since(m.startTime).Seconds())

		write("callcenter_events_received_total", m.EventsReceivedTotal)
		write("callcenter_events_dropped_total", m.EventsDroppedTotal)
		for _, name := range sortedKeys(m.eventsByType) {
			write("callcenter_events_by_type_total", m.eventsByType[name], "type", name)
		}

		write("callcenter_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("callcenter_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("callcenter_websocket_active_connections", m.activeConnections)
		write("callcenter_websocket_messages_total", m.WebSocketMessagesTotal)
		write("callcenter_websocket_errors_total", m.WebSocketErrorsTotal)
		write("callcenter_websocket_rate_limited_total", m.WebSocketRateLimitedTotal)

		write("callcenter_calls_created_total", m.CallsCreatedTotal)
		write("callcenter_calls_queued_total", m.CallsQueuedTotal)
		write("callcenter_calls_connected_total", m.CallsConnectedTotal)
		write("callcenter_ring_timeouts_total", m.RingTimeoutsTotal)
		for outcome, count := range m.callsEndedByOutcome {
			write("callcenter_calls_ended_total", count, "outcome", string(outcome))
		}
		write("callcenter_archive_errors_total", m.ArchiveErrorsTotal)
		write("callcenter_publish_errors_total", m.PublishErrorsTotal)

		write("callcenter_agents_total", m.totalAgents)
		write("callcenter_viewers_total", m.totalViewers)
		for status, count := range m.agentsByStatus {
			write("callcenter_agents_by_status", count, "status", string(status))
		}

		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("callcenter_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
