package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/clock"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/config"
	sessionpkg "github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/session"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
	wshub "github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/websocket"
)

// testServer runs the real hub and router behind httptest on a fake clock
type testServer struct {
	srv    *httptest.Server
	router *sessionpkg.Router
	clock  *clock.Fake
}

func newTestServer(t *testing.T, tweak func(*sessionpkg.Options)) *testServer {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	opts := sessionpkg.DefaultOptions()
	opts.TestCallDelay = 0
	if tweak != nil {
		tweak(&opts)
	}

	router := sessionpkg.NewRouter(sessionpkg.Deps{Clock: clk, Options: opts, Logger: zerolog.Nop()})
	hub := wshub.NewHub(router, zerolog.Nop())
	router.SetSender(hub)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	cfg := &config.Config{
		AllowedOrigins: []string{"*"},
		PongWait:       time.Minute,
		PingPeriod:     54 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 8192,
		RateLimit:      1000,
		RateBurst:      1000,
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", wshub.NewHandler(hub, cfg, zerolog.Nop()))
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &testServer{srv: srv, router: router, clock: clk}
}

func (ts *testServer) options() Options {
	return Options{
		ServerURL:            ts.srv.URL,
		MaxReconnectAttempts: -1,
		Logger:               zerolog.Nop(),
	}
}

// eventually polls cond until it holds or two seconds pass
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out: %s", msg)
}

// await subscribes to event and returns a channel fed with each occurrence
func await(s interface {
	On(string, Handler) func()
}, event string) <-chan *types.Message {
	ch := make(chan *types.Message, 16)
	s.On(event, func(msg *types.Message) {
		select {
		case ch <- msg:
		default:
		}
	})
	return ch
}

func receive(t *testing.T, ch <-chan *types.Message, event string) *types.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", event)
		return nil
	}
}

func testIdentity() Identity {
	return Identity{UserID: "agent_1", Username: "agent01", FullName: "Agent One", Department: "Call Center"}
}

// loggedInAgent connects and logs in an agent session, waiting for the login to land
func loggedInAgent(t *testing.T, ts *testServer, id Identity) *AgentSession {
	t.Helper()
	a := NewAgentSession(ts.options())
	t.Cleanup(a.Cleanup)

	ok := await(a, types.EventAgentLoginSuccess)
	if err := a.Connect(context.Background(), id); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := a.Login(); err != nil {
		t.Fatalf("login: %v", err)
	}
	receive(t, ok, types.EventAgentLoginSuccess)
	return a
}
