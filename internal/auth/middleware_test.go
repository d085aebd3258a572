package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskboard-api/internal/httputil"
)

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()

	var resp httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestRequireAuth(t *testing.T) {
	env := newServiceEnv(t)
	mw := NewMiddleware(env.service)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)
	tokens, err := env.service.Token(ctx, "bob@example.com", "s3cretpass")
	require.NoError(t, err)

	var gotUserID uuid.UUID
	var gotEmail string
	var gotRoles []string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserIDFromContext(r.Context())
		gotEmail, _ = GetUserEmailFromContext(r.Context())
		gotRoles, _ = GetUserRolesFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token passes identity through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/task", nil)
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, registered.ID, gotUserID)
		assert.Equal(t, "bob@example.com", gotEmail)
		assert.Contains(t, gotRoles, "user")
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/task", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, httputil.CodeMissingAuth, decodeErrorResponse(t, rec).Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/task", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, httputil.CodeInvalidAuthHeader, decodeErrorResponse(t, rec).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/task", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, httputil.CodeInvalidToken, decodeErrorResponse(t, rec).Code)
	})

	t.Run("revoked token", func(t *testing.T) {
		revocable, err := env.service.Token(ctx, "bob@example.com", "s3cretpass")
		require.NoError(t, err)
		claims, err := env.service.VerifyAccessToken(ctx, revocable.AccessToken)
		require.NoError(t, err)
		require.NoError(t, env.service.Logout(ctx, claims))

		req := httptest.NewRequest(http.MethodGet, "/api/task", nil)
		req.Header.Set("Authorization", "Bearer "+revocable.AccessToken)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, httputil.CodeTokenRevoked, decodeErrorResponse(t, rec).Code)
	})
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	env := newServiceEnv(t)
	mw := NewMiddleware(env.service)

	expired, err := NewJWTService(testSecret, "taskboard-api", "taskboard-clients", -time.Minute)
	require.NoError(t, err)
	tokenStr, err := expired.CreateToken(testUser())
	require.NoError(t, err)

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be called for expired tokens")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/task", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.CodeTokenExpired, decodeErrorResponse(t, rec).Code)
}
