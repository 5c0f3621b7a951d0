package session

import (
	"time"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/metrics"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// DefaultViewerID names a CRM viewer that joins without a user id
const DefaultViewerID = "crm_main"

func (r *Router) handleJoin(connID string, req types.JoinRequest) {
	if req.UserType != types.UserTypeCRM {
		r.sendDashboard(connID)
		return
	}

	viewer := types.Viewer{
		ID:         withDefault(req.UserID, DefaultViewerID),
		ConnID:     connID,
		ClientInfo: req.ClientInfo,
		JoinTime:   r.clock.Now(),
	}
	r.dir.PutViewer(viewer)

	r.send(connID, types.EventJoinedCallCenter, types.JoinedCallCenter{
		Message:  "Joined call center as CRM system",
		UserType: types.UserTypeCRM,
		UserID:   viewer.ID,
	})
	r.logger.Info().Str("conn_id", connID).Str("viewer_id", viewer.ID).Msg("CRM viewer joined")

	// one pending test call per viewer connection
	r.cancelTimers(viewerKey(connID))
	if r.opts.TestCallDelay > 0 {
		r.later(viewerKey(connID), r.opts.TestCallDelay, func() {
			if _, ok := r.dir.Viewer(connID); !ok {
				return
			}
			r.offerToViewer(r.gen.TestCall(connID, r.clock.Now()), r.opts.RingTimeout, types.ReasonTimeout)
		})
	}
}

// PushDemoCalls offers one demo call to every registered viewer
func (r *Router) PushDemoCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	viewers := r.dir.Viewers()
	for _, v := range viewers {
		r.offerToViewer(r.gen.DemoCall(v.ConnID, r.clock.Now()), r.opts.DemoRingTimeout, types.ReasonCustomerHangup)
	}
	if len(viewers) > 0 {
		r.logger.Info().Int("viewers", len(viewers)).Msg("pushed demo calls")
	}
	return len(viewers)
}

// offerToViewer registers a ringing synthetic call and pushes it to its viewer
func (r *Router) offerToViewer(call types.Call, ringTimeout time.Duration, reason string) {
	r.dir.PutCall(call)
	metrics.Get().RecordCallCreated()
	r.send(call.ConnID, types.EventIncomingCallToCRM, incomingCall(call))
	r.armRingTimeout(call.CallID, ringTimeout, reason)
	r.logger.Info().Str("call_id", call.CallID).Str("conn_id", call.ConnID).Msg("call offered to CRM viewer")
}
