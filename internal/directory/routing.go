package directory

import "github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"

// RoutingStrategy selects the agent that receives the next call
type RoutingStrategy interface {
	SelectAgent(available []types.Agent) (types.Agent, bool)
}

// LongestIdleFirst selects the agent who has been available the longest
type LongestIdleFirst struct{}

// SelectAgent picks the available agent with the oldest StatusSince time
func (LongestIdleFirst) SelectAgent(available []types.Agent) (types.Agent, bool) {
	if len(available) == 0 {
		return types.Agent{}, false
	}

	oldest := available[0]
	for _, a := range available[1:] {
		if a.StatusSince.Before(oldest.StatusSince) {
			oldest = a
		}
	}
	return oldest, true
}
