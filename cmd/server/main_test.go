package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/auth"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/clock"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/config"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/events"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/storage"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		AllowedOrigins:    []string{"*"},
		PongWait:          time.Minute,
		PingPeriod:        54 * time.Second,
		WriteWait:         10 * time.Second,
		MaxMessageSize:    8192,
		RateLimit:         100,
		RateBurst:         100,
		QueueWaitEstimate: 30 * time.Second,
		RingTimeout:       60 * time.Second,
		DemoRingTimeout:   45 * time.Second,
	}
}

func startServer(t *testing.T, verifier *auth.Verifier) *httptest.Server {
	t.Helper()
	a := newApp(testConfig(), appDeps{
		Clock:     clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)),
		Store:     storage.NewNoopStore(),
		Publisher: events.NewNoopPublisher(),
		Verifier:  verifier,
		Logger:    zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	a.start(ctx)
	srv := httptest.NewServer(a.handler)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one of the wanted type arrives
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) *types.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", eventType, err)
		}
		msg, err := types.ParseMessage(raw)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if msg.Type == eventType {
			return msg
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := startServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var health types.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("expected status healthy, got %s", health.Status)
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	srv := startServer(t, nil)

	resp, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var body types.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Endpoint not found" || body.Path != "/nope" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := startServer(t, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "callcenter_websocket_active_connections") {
		t.Errorf("expected metrics output, got %s", body)
	}
}

func TestAgentLoginVisibleOverREST(t *testing.T) {
	srv := startServer(t, nil)
	conn := dialWS(t, srv, "")

	greeting := readUntil(t, conn, types.EventConnected)
	var connected types.ConnectedPayload
	if err := greeting.Decode(&connected); err != nil || connected.ConnectionID == "" {
		t.Fatalf("expected connection id, got %+v (%v)", connected, err)
	}

	login, _ := types.Encode(types.EventAgentLogin, types.AgentLoginRequest{
		UserID:   "agent_1",
		Username: "agent01",
		FullName: "Agent One",
	}, time.Now())
	if err := conn.WriteMessage(websocket.TextMessage, login); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, types.EventAgentLoginSuccess)

	resp, err := http.Get(srv.URL + "/api/realtime/agents")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body types.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var snap types.AgentsSnapshot
	if err := json.Unmarshal(body.Data, &snap); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if snap.Total != 1 || snap.Available != 1 || snap.Agents[0].ConnID != connected.ConnectionID {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestAuthGuardsRoutes(t *testing.T) {
	secret := []byte("s3cret")
	srv := startServer(t, auth.NewHMACVerifier(secret, zerolog.Nop()))

	resp, err := http.Get(srv.URL + "/api/realtime/call-stats")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health must stay public, got %d", resp.StatusCode)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "agent_1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	conn := dialWS(t, srv, "?token="+token)
	readUntil(t, conn, types.EventConnected)
}
