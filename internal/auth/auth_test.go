package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellecta/rag/internal/security"
)

func newTestManager() *JWTManager {
	return NewJWTManager(DefaultJWTConfig("test-secret"))
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateToken("analyst-7", security.LevelConfidential)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "analyst-7", claims.Subject)
	assert.Equal(t, security.LevelConfidential, claims.ClearanceLevel())
}

func TestValidateTokenWrongSecret(t *testing.T) {
	m := newTestManager()
	token, err := m.GenerateToken("analyst-7", security.LevelPublic)
	require.NoError(t, err)

	other := NewJWTManager(DefaultJWTConfig("different-secret"))
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpiredToken(t *testing.T) {
	m := newTestManager()
	token, err := m.GenerateTokenWithExpiry("analyst-7", security.LevelPublic, -time.Minute)
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRefreshExpiredToken(t *testing.T) {
	m := newTestManager()
	token, err := m.GenerateTokenWithExpiry("analyst-7", security.LevelRestricted, -time.Minute)
	require.NoError(t, err)

	refreshed, err := m.RefreshToken(token)
	require.NoError(t, err)

	claims, err := m.ValidateToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, "analyst-7", claims.Subject)
	assert.Equal(t, security.LevelRestricted, claims.ClearanceLevel())
}

func TestClearanceLevelUnknownFallsBackToPublic(t *testing.T) {
	c := &Claims{Clearance: "SUPER_SECRET"}
	assert.Equal(t, security.LevelPublic, c.ClearanceLevel())
}

func TestMiddlewareResolvesIdentity(t *testing.T) {
	m := newTestManager()
	token, err := m.GenerateToken("analyst-7", security.LevelInternal)
	require.NoError(t, err)

	var got Identity
	handler := NewMiddleware(m).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "analyst-7", got.Subject)
	assert.Equal(t, security.LevelInternal, got.Clearance)
}

func TestMiddlewareRejectsInvalidToken(t *testing.T) {
	handler := NewMiddleware(newTestManager()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareExpiredTokenMessage(t *testing.T) {
	m := newTestManager()
	token, err := m.GenerateTokenWithExpiry("analyst-7", security.LevelPublic, -time.Minute)
	require.NoError(t, err)

	handler := NewMiddleware(m).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token has expired")
}

func TestWriteAuthErrorWrappedExpired(t *testing.T) {
	rec := httptest.NewRecorder()
	writeAuthError(rec, fmt.Errorf("validating bearer token: %w", ErrExpiredToken))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token has expired")
}

func TestMiddlewareAnonymousIsPublic(t *testing.T) {
	var got Identity
	handler := NewMiddleware(newTestManager()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, security.LevelPublic, got.Clearance)
}

func TestCapClearance(t *testing.T) {
	m := newTestManager()
	token, err := m.GenerateToken("analyst-7", security.LevelInternal)
	require.NoError(t, err)

	var capped, kept security.Level
	handler := NewMiddleware(m).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capped = CapClearance(r.Context(), security.LevelTopSecret)
		kept = CapClearance(r.Context(), security.LevelPublic)
	}))

	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, security.LevelInternal, capped)
	assert.Equal(t, security.LevelPublic, kept)
}

func TestMiddlewareDisabledTrustsDeclaredClearance(t *testing.T) {
	var capped security.Level
	handler := NewMiddleware(nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capped = CapClearance(r.Context(), security.LevelRestricted)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/query", nil))
	assert.Equal(t, security.LevelRestricted, capped)
}
