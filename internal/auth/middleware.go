package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// ErrMissingToken is returned when a request carries no bearer token
var ErrMissingToken = errors.New("missing token")

// Claims is the identity extracted from a verified token
type Claims struct {
	Subject string   `json:"sub"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Role    string   `json:"role"`
	Groups  []string `json:"groups"`
}

type contextKey string

const UserContextKey contextKey = "user"

// Verifier checks bearer tokens against a JWKS endpoint or a shared HMAC secret
type Verifier struct {
	keyfunc jwt.Keyfunc
	methods []string
	opts    []jwt.ParserOption
	logger  zerolog.Logger
}

// NewVerifier builds a JWKS verifier when issuerURL is set, else an HMAC verifier
func NewVerifier(ctx context.Context, issuerURL, secret string, logger zerolog.Logger) (*Verifier, error) {
	switch {
	case issuerURL != "":
		return NewJWKSVerifier(ctx, issuerURL, logger)
	case secret != "":
		return NewHMACVerifier([]byte(secret), logger), nil
	default:
		return nil, fmt.Errorf("auth enabled but neither OIDC_ISSUER nor JWT_SECRET is set")
	}
}

// NewJWKSVerifier fetches and refreshes signing keys from the issuer's JWKS endpoint
func NewJWKSVerifier(ctx context.Context, issuerURL string, logger zerolog.Logger) (*Verifier, error) {
	// Keycloak layout
	jwksURL := strings.TrimSuffix(issuerURL, "/") + "/protocol/openid-connect/certs"

	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create keyfunc: %w", err)
	}

	logger = logger.With().Str("component", "auth").Logger()
	logger.Info().Str("jwks_url", jwksURL).Msg("JWKS verifier ready")
	return &Verifier{
		keyfunc: k.Keyfunc,
		methods: []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"},
		opts:    []jwt.ParserOption{jwt.WithIssuer(issuerURL)},
		logger:  logger,
	}, nil
}

// NewHMACVerifier verifies HS256/384/512 tokens signed with secret
func NewHMACVerifier(secret []byte, logger zerolog.Logger) *Verifier {
	return &Verifier{
		keyfunc: func(*jwt.Token) (interface{}, error) { return secret, nil },
		methods: []string{"HS256", "HS384", "HS512"},
		logger:  logger.With().Str("component", "auth").Logger(),
	}
}

// Verify parses and validates tokenString
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	opts := append([]jwt.ParserOption{jwt.WithValidMethods(v.methods), jwt.WithExpirationRequired()}, v.opts...)

	mapClaims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, mapClaims, v.keyfunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claimsFromMap(mapClaims), nil
}

// Middleware rejects requests without a valid token and stores the claims in the context
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			unauthorized(w, ErrMissingToken)
			return
		}

		claims, err := v.Verify(tokenString)
		if err != nil {
			v.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("token rejected")
			unauthorized(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   "unauthorized: " + err.Error(),
	})
}

// extractToken gets the token from Authorization header or query parameter
func extractToken(r *http.Request) string {
	// Try Authorization header first
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != authHeader {
			return tokenString
		}
	}

	// Query parameter (for WebSocket connections)
	return r.URL.Query().Get("token")
}

func claimsFromMap(mapClaims jwt.MapClaims) *Claims {
	claims := &Claims{}
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := mapClaims["name"].(string); ok {
		claims.Name = name
	} else if preferredUsername, ok := mapClaims["preferred_username"].(string); ok {
		claims.Name = preferredUsername
	}
	if groups, ok := mapClaims["groups"].([]interface{}); ok {
		for _, g := range groups {
			if s, ok := g.(string); ok {
				claims.Groups = append(claims.Groups, s)
			}
		}
	}
	claims.Role = extractRole(mapClaims)
	return claims
}

// extractRole reads Keycloak realm roles, falling back to a plain role claim
func extractRole(mapClaims jwt.MapClaims) string {
	if realmAccess, ok := mapClaims["realm_access"].(map[string]interface{}); ok {
		if roles, ok := realmAccess["roles"].([]interface{}); ok {
			// Priority order: admin > supervisor > agent > viewer
			for _, priority := range []string{"admin", "supervisor", "agent", "viewer"} {
				for _, role := range roles {
					if roleStr, ok := role.(string); ok && roleStr == priority {
						return roleStr
					}
				}
			}
		}
	}
	if role, ok := mapClaims["role"].(string); ok && role != "" {
		return role
	}
	return "viewer"
}

// GetUserFromContext retrieves user claims from request context
func GetUserFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	return claims, ok
}
