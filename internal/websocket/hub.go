package websocket

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/metrics"
)

// Dispatcher consumes inbound frames and connection teardown
type Dispatcher interface {
	Dispatch(connID string, msg []byte)
	Disconnect(connID string)
}

// Hub maintains the set of active clients and routes frames to them by connection id
type Hub struct {
	// Registered clients by connection id
	clients map[string]*Client

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Receives inbound frames and disconnects
	dispatcher Dispatcher

	// Mutex to protect clients map
	mu sync.RWMutex

	// Logger
	logger zerolog.Logger
}

// NewHub creates a new Hub; dispatcher may be nil for a send-only hub
func NewHub(dispatcher Dispatcher, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "hub").Logger(),
	}
}

// Run starts the hub's main loop; it closes every client when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	m := metrics.Get()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.Close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info().Msg("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			m.RecordWebSocketConnect()
			h.logger.Info().
				Str("conn_id", client.id).
				Int("total_clients", total).
				Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			current, ok := h.clients[client.id]
			if ok && current == client {
				delete(h.clients, client.id)
			}
			total := len(h.clients)
			h.mu.Unlock()
			if !ok || current != client {
				continue
			}

			client.Close()
			m.RecordWebSocketDisconnect()
			h.logger.Info().
				Str("conn_id", client.id).
				Int("total_clients", total).
				Msg("client disconnected")

			if h.dispatcher != nil {
				h.dispatcher.Disconnect(client.id)
			}
		}
	}
}

// Send queues msg for one connection and reports whether it was accepted.
// A client whose buffer is full is closed.
func (h *Hub) Send(connID string, msg []byte) bool {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if client.safeSend(msg) {
		return true
	}
	h.logger.Warn().Str("conn_id", connID).Msg("client send buffer full, closing connection")
	client.Close()
	return false
}

// Broadcast queues msg for every connected client
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.clients {
		if !client.safeSend(msg) {
			h.logger.Warn().Str("conn_id", id).Msg("client send buffer full, closing connection")
			client.Close()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) dispatch(connID string, msg []byte) {
	if h.dispatcher != nil {
		h.dispatcher.Dispatch(connID, msg)
	}
}

// join registers c unless the hub has stopped
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters c unless the hub has stopped
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
