package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/intellecta/rag/internal/security"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// identityContextKey is the context key for storing caller identity
const identityContextKey contextKey = "identity"

// Identity is the authenticated caller resolved by the middleware.
type Identity struct {
	Subject   string
	Clearance security.Level
}

// Middleware authenticates requests via a Bearer JWT and stores the
// caller's identity in the request context. When no manager is configured
// tokens are not validated and the request-declared clearance is trusted.
type Middleware struct {
	manager *JWTManager
}

// NewMiddleware creates the authentication middleware.
// A nil manager disables token validation.
func NewMiddleware(manager *JWTManager) *Middleware {
	return &Middleware{manager: manager}
}

// Handler wraps an http.Handler with bearer token authentication.
// Requests without an Authorization header proceed as PUBLIC callers;
// a present but invalid token is rejected with 401.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := Identity{Subject: "anonymous", Clearance: security.LevelPublic}
		if m.manager == nil {
			// Auth disabled: the request-declared clearance is trusted as-is.
			identity.Clearance = security.LevelTopSecret
		}

		token := bearerToken(r)
		if token != "" && m.manager != nil {
			claims, err := m.manager.ValidateToken(token)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			identity = Identity{
				Subject:   claims.Subject,
				Clearance: claims.ClearanceLevel(),
			}
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext returns the caller identity stored by Handler.
// The zero Identity (PUBLIC) is returned when the middleware did not run.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityContextKey).(Identity); ok {
		return id
	}
	return Identity{Subject: "anonymous", Clearance: security.LevelPublic}
}

// CapClearance limits a requested clearance to what the caller's token
// grants. Untrusted request bodies cannot raise their own clearance.
func CapClearance(ctx context.Context, requested security.Level) security.Level {
	id := IdentityFromContext(ctx)
	if requested > id.Clearance {
		return id.Clearance
	}
	return requested
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func writeAuthError(w http.ResponseWriter, err error) {
	msg := "invalid token"
	if errors.Is(err, ErrExpiredToken) {
		msg = "token has expired"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
