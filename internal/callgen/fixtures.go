package callgen

// DemoAgent is a static roster entry served by the demo REST endpoints
type DemoAgent struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FullName   string `json:"fullName"`
	Status     string `json:"status"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
}

// DemoAgents returns the fixed demo roster
func DemoAgents() []DemoAgent {
	return []DemoAgent{
		{ID: "agent_1", Username: "agent01", FullName: "Nguyễn Văn Agent", Status: "available", Department: "Call Center", Phone: "+84901234567"},
		{ID: "agent_2", Username: "agent02", FullName: "Trần Thị Support", Status: "available", Department: "Customer Service", Phone: "+84901234568"},
		{ID: "agent_3", Username: "agent03", FullName: "Lê Minh Help", Status: "busy", Department: "Technical Support", Phone: "+84901234569"},
	}
}

// AvailableDemoAgents filters the roster to available entries
func AvailableDemoAgents() []DemoAgent {
	out := make([]DemoAgent, 0)
	for _, a := range DemoAgents() {
		if a.Status == "available" {
			out = append(out, a)
		}
	}
	return out
}

// DemoRoster answers GET /api/call/demo/agents
type DemoRoster struct {
	Agents    []DemoAgent `json:"agents"`
	Available []DemoAgent `json:"available"`
}
