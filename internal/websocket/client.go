package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/config"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/metrics"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

const sendBufferSize = 64

// Client is a middleman between the websocket connection and the hub
type Client struct {
	// Connection id, also the router's key for this connection
	id string

	// The hub this client belongs to
	hub *Hub

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// Inbound message budget
	limiter *rate.Limiter

	// Configuration
	config *config.Config

	// Logger
	logger zerolog.Logger

	// done is closed once the send channel is closed
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new Client with a fresh connection id
func NewClient(hub *Hub, conn *websocket.Conn, cfg *config.Config, logger zerolog.Logger) *Client {
	connID := uuid.New().String()
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &Client{
		id:      connID,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		limiter: rate.NewLimiter(limit, cfg.RateBurst),
		config:  cfg,
		logger:  logger.With().Str("conn_id", connID).Logger(),
		done:    make(chan struct{}),
	}
}

// ID returns the connection id
func (c *Client) ID() string {
	return c.id
}

// readPump pumps messages from the websocket connection to the dispatcher
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	m := metrics.Get()
	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.RecordWebSocketError()
				c.logger.Error().Err(err).Msg("websocket read error")
			}
			break
		}
		m.RecordWebSocketMessage()

		if !c.limiter.Allow() {
			m.RecordRateLimited()
			c.logger.Debug().Msg("rate limit exceeded, dropping message")
			continue
		}
		c.hub.dispatch(c.id, message)
	}
}

// writePump pumps messages from the hub to the websocket connection, one
// envelope per text frame
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				metrics.Get().RecordWebSocketError()
				c.logger.Debug().Err(err).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start queues the connected greeting and starts the client's read and write pumps
func (c *Client) Start() {
	greeting, err := types.Encode(types.EventConnected, types.ConnectedPayload{ConnectionID: c.id}, time.Now())
	if err == nil {
		c.safeSend(greeting)
	}
	go c.writePump()
	go c.readPump()
}

// Close closes the client's send channel; safe to call more than once
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		close(c.send)
	})
}

// safeSend attempts a non-blocking send, recovering if the channel is closed
func (c *Client) safeSend(data []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}
