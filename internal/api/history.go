package api

import (
	"net/http"
	"time"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

const dateLayout = "2006-01-02"

// History returns archived call records for one day, optionally filtered by agent
// GET /api/call/history?date=YYYY-MM-DD&agentId=...
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.clock.Now().UTC().Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	agentID := r.URL.Query().Get("agentId")

	var (
		records []types.CallRecord
		err     error
	)
	if agentID != "" {
		records, err = s.store.GetAgentCallsByDate(r.Context(), agentID, date)
	} else {
		records, err = s.store.GetCallRecords(r.Context(), date)
	}
	if err != nil {
		s.logger.Error().Err(err).
			Str("agent_id", agentID).
			Str("date", date).
			Msg("failed to get call history")
		writeError(w, http.StatusInternalServerError, "failed to retrieve call history")
		return
	}

	if records == nil {
		records = []types.CallRecord{}
	}

	writeSuccess(w, types.CallHistory{
		Date:    date,
		AgentID: agentID,
		Total:   len(records),
		Records: records,
	})
}
