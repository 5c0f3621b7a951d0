package session

import (
	"time"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/metrics"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

func (r *Router) sendDashboard(connID string) {
	r.send(connID, types.EventDashboardData, r.dir.Dashboard(r.clock.Now(), r.opts.QueueWaitEstimate))
}

func (r *Router) sendHealth(connID string) {
	r.send(connID, types.EventHealthCheckResponse, r.health())
}

func (r *Router) health() types.HealthCheckResponse {
	now := r.clock.Now()
	return types.HealthCheckResponse{
		Status:    "healthy",
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(r.started).Seconds(),
	}
}

// BroadcastStats pushes real_time_stats to every connection
func (r *Router) BroadcastStats() types.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.dir.Stats()
	r.broadcast(types.EventRealTimeStats, stats)
	metrics.Get().UpdateDirectoryStats(r.dir.Agents(), stats.ConnectedCRMSystems)
	return stats
}
