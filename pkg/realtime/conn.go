package realtime

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

const (
	defaultReconnectAttempts = 5
	initialReconnectDelay    = 1 * time.Second
	maxReconnectDelay        = 30 * time.Second
	defaultHandshakeTimeout  = 10 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultEventBuffer       = 64
)

// Options configure a session's transport
type Options struct {
	// ServerURL is the server base (http, https, ws or wss). /ws is appended
	// when the URL carries no path.
	ServerURL string
	// Token is sent as ?token= for servers running with auth enabled
	Token string

	MaxReconnectAttempts int           // 0 means 5; negative disables reconnects
	InitialBackoff       time.Duration // first reconnect delay, doubled per attempt
	MaxBackoff           time.Duration
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
	EventBuffer          int // capacity of each typed event channel

	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.ServerURL == "" {
		o.ServerURL = "http://localhost:8000"
	}
	if o.MaxReconnectAttempts == 0 {
		o.MaxReconnectAttempts = defaultReconnectAttempts
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = initialReconnectDelay
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = maxReconnectDelay
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = defaultEventBuffer
	}
	return o
}

// websocketURL converts the configured base into the dial target
func websocketURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// transport owns one logical connection and re-dials it after unexpected drops
type transport struct {
	opts   Options
	logger zerolog.Logger

	onMessage func(*types.Message)
	onState   func(ConnectionEvent)

	mu        sync.Mutex
	ws        *websocket.Conn
	connID    string
	connected bool
	closed    bool
	stop      chan struct{}
	attempts  int // reconnect attempts since the last successful dial

	writeMu sync.Mutex
}

func newTransport(opts Options, onMessage func(*types.Message), onState func(ConnectionEvent)) *transport {
	return &transport{
		opts:      opts,
		logger:    opts.Logger,
		onMessage: onMessage,
		onState:   onState,
	}
}

// dial opens the socket and waits for the server's connected greeting
func (t *transport) dial(ctx context.Context) (*websocket.Conn, string, error) {
	target, err := websocketURL(t.opts.ServerURL, t.opts.Token)
	if err != nil {
		return nil, "", err
	}

	dialer := websocket.Dialer{HandshakeTimeout: t.opts.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("dial %s: %w", target, err)
	}

	ws.SetReadDeadline(time.Now().Add(t.opts.HandshakeTimeout))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return nil, "", fmt.Errorf("read greeting: %w", err)
	}
	msg, err := types.ParseMessage(raw)
	if err != nil || msg.Type != types.EventConnected {
		ws.Close()
		return nil, "", ErrHandshake
	}
	var greeting types.ConnectedPayload
	if err := msg.Decode(&greeting); err != nil || greeting.ConnectionID == "" {
		ws.Close()
		return nil, "", ErrHandshake
	}
	ws.SetReadDeadline(time.Time{})

	return ws, greeting.ConnectionID, nil
}

// connect dials unless already connected and returns the connection id
func (t *transport) connect(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.connected {
		id := t.connID
		t.mu.Unlock()
		return id, nil
	}
	t.mu.Unlock()

	ws, connID, err := t.dial(ctx)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	if t.connected {
		// lost a race with a concurrent connect
		id := t.connID
		t.mu.Unlock()
		ws.Close()
		return id, nil
	}
	t.ws, t.connID, t.connected, t.closed = ws, connID, true, false
	t.attempts = 0
	t.stop = make(chan struct{})
	t.mu.Unlock()

	t.logger.Debug().Str("conn_id", connID).Msg("websocket connected")
	go t.readLoop(ws)
	return connID, nil
}

func (t *transport) readLoop(ws *websocket.Conn) {
	var readErr error
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		msg, err := types.ParseMessage(raw)
		if err != nil {
			t.logger.Debug().Err(err).Msg("dropping malformed frame")
			continue
		}
		t.onMessage(msg)
	}

	t.mu.Lock()
	if t.ws != ws {
		t.mu.Unlock()
		return
	}
	t.ws = nil
	t.connected = false
	closed := t.closed
	stop := t.stop
	t.mu.Unlock()
	ws.Close()

	ev := ConnectionEvent{Type: EventDisconnected}
	if !closed && readErr != nil {
		ev.Error = readErr.Error()
	}
	t.onState(ev)

	if !closed && t.opts.MaxReconnectAttempts > 0 {
		go t.reconnect(stop)
	}
}

// reconnect retries with exponential backoff until it succeeds, runs out of
// attempts or the transport is closed
func (t *transport) reconnect(stop <-chan struct{}) {
	delay := t.opts.InitialBackoff
	for attempt := 1; attempt <= t.opts.MaxReconnectAttempts; attempt++ {
		t.mu.Lock()
		t.attempts = attempt
		t.mu.Unlock()
		t.onState(ConnectionEvent{Type: EventReconnecting, Attempt: attempt})

		select {
		case <-stop:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), t.opts.HandshakeTimeout)
		ws, connID, err := t.dial(ctx)
		cancel()
		if err != nil {
			t.logger.Debug().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("reconnect failed")
			delay *= 2
			if delay > t.opts.MaxBackoff {
				delay = t.opts.MaxBackoff
			}
			continue
		}

		t.mu.Lock()
		if t.closed || t.connected {
			t.mu.Unlock()
			ws.Close()
			return
		}
		t.ws, t.connID, t.connected = ws, connID, true
		t.attempts = 0
		t.mu.Unlock()

		t.logger.Info().Str("conn_id", connID).Int("attempt", attempt).Msg("reconnected")
		go t.readLoop(ws)
		t.onState(ConnectionEvent{Type: EventReconnected, ConnectionID: connID, Attempt: attempt})
		return
	}

	t.logger.Warn().Int("attempts", t.opts.MaxReconnectAttempts).Msg("max reconnection attempts reached")
	t.onState(ConnectionEvent{Type: EventReconnectFailed, Attempt: t.opts.MaxReconnectAttempts})
}

// send encodes and writes one frame
func (t *transport) send(eventType string, payload interface{}) error {
	t.mu.Lock()
	ws, connected := t.ws, t.connected
	t.mu.Unlock()
	if !connected || ws == nil {
		return ErrNotConnected
	}

	frame, err := types.Encode(eventType, payload, time.Now())
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write %s: %w", eventType, err)
	}
	return nil
}

// close tears the connection down and cancels any pending reconnect. Safe to
// call repeatedly; reports whether an open socket was closed.
func (t *transport) close() bool {
	t.mu.Lock()
	ws := t.ws
	t.closed = true
	t.ws = nil
	t.connected = false
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.mu.Unlock()

	if ws == nil {
		return false
	}
	t.writeMu.Lock()
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()
	ws.Close()
	return true
}

func (t *transport) isConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *transport) connectionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return ""
	}
	return t.connID
}

func (t *transport) reconnectAttempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}
