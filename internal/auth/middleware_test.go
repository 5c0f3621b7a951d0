package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":                "user-1",
		"email":              "agent@example.com",
		"preferred_username": "agent01",
		"realm_access":       map[string]interface{}{"roles": []interface{}{"viewer", "agent"}},
		"exp":                time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerifyHMAC(t *testing.T) {
	v := NewHMACVerifier(testSecret, zerolog.Nop())

	claims, err := v.Verify(signToken(t, testSecret, validClaims()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Name != "agent01" || claims.Role != "agent" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	v := NewHMACVerifier(testSecret, zerolog.Nop())

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	noExp := validClaims()
	delete(noExp, "exp")

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, []byte("other"), validClaims())},
		{"expired", signToken(t, testSecret, expired)},
		{"no expiry", signToken(t, testSecret, noExp)},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(tt.token); err == nil {
				t.Error("expected verification to fail")
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := NewHMACVerifier(testSecret, zerolog.Nop())
	token := signToken(t, testSecret, validClaims())

	var seen *Claims
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantClaims bool
	}{
		{"bearer header", "/api/realtime/agents", "Bearer " + token, http.StatusOK, true},
		{"query token", "/ws?token=" + token, "", http.StatusOK, true},
		{"missing token", "/api/realtime/agents", "", http.StatusUnauthorized, false},
		{"non-bearer header", "/api/realtime/agents", "Basic abc", http.StatusUnauthorized, false},
		{"health skips auth", "/health", "", http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if (seen != nil) != tt.wantClaims {
				t.Errorf("claims in context = %v, want %v", seen != nil, tt.wantClaims)
			}
		})
	}
}

func TestNewVerifierRequiresKeySource(t *testing.T) {
	if _, err := NewVerifier(context.Background(), "", "", zerolog.Nop()); err == nil {
		t.Error("expected error without issuer or secret")
	}
	v, err := NewVerifier(context.Background(), "", "s3cret", zerolog.Nop())
	if err != nil || v == nil {
		t.Errorf("expected HMAC verifier, got %v", err)
	}
}
