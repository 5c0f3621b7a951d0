// Package realtime is the client side of the call-center WebSocket protocol.
// AgentSession and ViewerSession each own one connection, mirror the state the
// server pushes to them and expose fire-and-forget operations: a method returns
// once its frame is written, and the server's answer arrives later as an event.
//
// Events reach callers two ways. On registers any number of handlers per event
// name; CallEvents, StatusEvents, DashboardEvents and ConnectionEvents deliver
// decoded payloads on buffered channels that drop when full. In both cases the
// mirrored state already reflects the event.
package realtime

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// session is the transport, subscription and channel plumbing shared by both adapters
type session struct {
	opts      Options
	logger    zerolog.Logger
	transport *transport
	bus       *bus

	callCh       chan CallEvent
	statusCh     chan StatusEvent
	dashboardCh  chan DashboardEvent
	connectionCh chan ConnectionEvent

	// mirror hooks are set by the embedding adapter
	mirrorCall   func(ev CallEvent)
	mirrorStatus func(ev StatusEvent)
	onConnection func(ev ConnectionEvent)
}

func newSession(opts Options, component string) *session {
	opts = opts.withDefaults()
	s := &session{
		opts:         opts,
		logger:       opts.Logger.With().Str("component", component).Logger(),
		callCh:       make(chan CallEvent, opts.EventBuffer),
		statusCh:     make(chan StatusEvent, opts.EventBuffer),
		dashboardCh:  make(chan DashboardEvent, opts.EventBuffer),
		connectionCh: make(chan ConnectionEvent, opts.EventBuffer),
	}
	s.opts.Logger = s.logger
	s.bus = newBus(s.logger)
	s.transport = newTransport(s.opts, s.handleMessage, s.handleConnection)
	return s
}

// On registers handler for event and returns a func removing this registration only
func (s *session) On(event string, handler Handler) func() {
	return s.bus.on(event, handler)
}

// Off removes every handler registered for event
func (s *session) Off(event string) {
	s.bus.off(event)
}

// CallEvents delivers call lifecycle frames. The channel is never closed.
func (s *session) CallEvents() <-chan CallEvent { return s.callCh }

// StatusEvents delivers login and status frames. The channel is never closed.
func (s *session) StatusEvents() <-chan StatusEvent { return s.statusCh }

// DashboardEvents delivers dashboard, stats and health frames. The channel is never closed.
func (s *session) DashboardEvents() <-chan DashboardEvent { return s.dashboardCh }

// ConnectionEvents delivers transport state changes. The channel is never closed.
func (s *session) ConnectionEvents() <-chan ConnectionEvent { return s.connectionCh }

// IsConnected reports whether the transport is open
func (s *session) IsConnected() bool { return s.transport.isConnected() }

func (s *session) connect(ctx context.Context) (string, error) {
	if id := s.transport.connectionID(); id != "" {
		return id, nil
	}
	connID, err := s.transport.connect(ctx)
	if err != nil {
		return "", err
	}
	s.handleConnection(ConnectionEvent{Type: EventOpened, ConnectionID: connID})
	return connID, nil
}

func (s *session) send(eventType string, payload interface{}) error {
	if err := s.transport.send(eventType, payload); err != nil {
		return err
	}
	s.logger.Debug().Str("event", eventType).Msg("sent")
	return nil
}

// handleMessage runs on the read goroutine: mirror first, then fan out
func (s *session) handleMessage(msg *types.Message) {
	s.fanOut(msg)
	s.bus.publish(msg)
}

func (s *session) fanOut(msg *types.Message) {
	if ev, ok, err := decodeCall(msg); ok {
		if err != nil {
			s.logger.Debug().Err(err).Str("event", msg.Type).Msg("undecodable call frame")
			return
		}
		if s.mirrorCall != nil {
			s.mirrorCall(ev)
		}
		select {
		case s.callCh <- ev:
		default:
			s.logger.Debug().Str("event", msg.Type).Msg("call event channel full, dropping")
		}
		return
	}
	if ev, ok, err := decodeStatus(msg); ok {
		if err != nil {
			s.logger.Debug().Err(err).Str("event", msg.Type).Msg("undecodable status frame")
			return
		}
		if s.mirrorStatus != nil {
			s.mirrorStatus(ev)
		}
		select {
		case s.statusCh <- ev:
		default:
			s.logger.Debug().Str("event", msg.Type).Msg("status event channel full, dropping")
		}
		return
	}
	if ev, ok, err := decodeDashboard(msg); ok {
		if err != nil {
			s.logger.Debug().Err(err).Str("event", msg.Type).Msg("undecodable dashboard frame")
			return
		}
		select {
		case s.dashboardCh <- ev:
		default:
			s.logger.Debug().Str("event", msg.Type).Msg("dashboard event channel full, dropping")
		}
		return
	}
	s.logger.Debug().Str("event", msg.Type).Msg("unhandled event")
}

func (s *session) handleConnection(ev ConnectionEvent) {
	if s.onConnection != nil {
		s.onConnection(ev)
	}
	select {
	case s.connectionCh <- ev:
	default:
	}
	s.bus.publish(connectionMessage(ev))
}

// disconnect closes the transport without touching subscriptions
func (s *session) disconnect() {
	if s.transport.close() {
		s.handleConnection(ConnectionEvent{Type: EventDisconnected})
	}
}

// cleanup clears subscriptions and closes the transport. Safe to call repeatedly.
func (s *session) cleanup() {
	s.bus.clear()
	s.disconnect()
}
