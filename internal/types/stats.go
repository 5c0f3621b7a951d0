package types

// Stats are the counters shared by dashboard_data, real_time_stats and the REST API
type Stats struct {
	TotalActiveCalls    int `json:"totalActiveCalls"`
	TotalQueue          int `json:"totalQueue"`
	AvailableAgents     int `json:"availableAgents"`
	BusyAgents          int `json:"busyAgents"` // agents on_call
	TotalAgents         int `json:"totalAgents"`
	ConnectedCRMSystems int `json:"connectedCrmSystems"`
}

// ActiveCallView is one connected call in dashboard_data
type ActiveCallView struct {
	CallID       string     `json:"callId"`
	CallerNumber string     `json:"callerNumber"`
	Status       CallStatus `json:"status"`
	Duration     int        `json:"duration"` // seconds
	AgentInfo    *Agent     `json:"agentInfo"`
}

// QueueEntryView is one waiting call in dashboard_data
type QueueEntryView struct {
	CallID            string `json:"callId"`
	CallerNumber      string `json:"callerNumber"`
	QueuePosition     int    `json:"queuePosition"`
	WaitTime          int    `json:"waitTime"`          // seconds
	EstimatedWaitTime int    `json:"estimatedWaitTime"` // seconds
}

// DashboardData is the full snapshot pushed on get_dashboard_data
type DashboardData struct {
	Stats        Stats            `json:"stats"`
	ActiveCalls  []ActiveCallView `json:"activeCalls"`
	QueueStatus  []QueueEntryView `json:"queueStatus"`
	AgentsStatus []Agent          `json:"agentsStatus"`
}
