package middleware_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"backtrail/internal/platform/middleware"
	"backtrail/pkg/requestcontext"
)

const signingKey = "test-signing-key"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedToken(t *testing.T, subject, key string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func actorProbe(actor *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*actor = requestcontext.Actor(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestActorAuth_ValidBearerResolvesSubject(t *testing.T) {
	auth := middleware.NewActorAuth(signingKey, "", discardLogger())

	var actor string
	handler := auth.Middleware(actorProbe(&actor))

	req := httptest.NewRequest(http.MethodPost, "/payments", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "ops-42", signingKey))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ops-42", actor)
}

func TestActorAuth_InvalidBearerRejected(t *testing.T) {
	auth := middleware.NewActorAuth(signingKey, "", discardLogger())
	handler := auth.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	for name, header := range map[string]string{
		"wrong signing key": "Bearer " + signedToken(t, "ops-42", "some-other-key"),
		"not a token":       "Bearer garbage",
		"missing scheme":    signedToken(t, "ops-42", signingKey),
	} {
		req := httptest.NewRequest(http.MethodPost, "/payments", nil)
		req.Header.Set("Authorization", header)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, name)
	}
}

func TestActorAuth_ExpiredBearerRejected(t *testing.T) {
	auth := middleware.NewActorAuth(signingKey, "", discardLogger())
	handler := auth.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	signed, err := token.SignedString([]byte(signingKey))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/payments", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestActorAuth_ServiceTokenResolvesSystem(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("batch-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := middleware.NewActorAuth(signingKey, string(hash), discardLogger())

	var actor string
	handler := auth.Middleware(actorProbe(&actor))

	req := httptest.NewRequest(http.MethodPost, "/payments", nil)
	req.Header.Set(middleware.ServiceTokenHeader, "batch-secret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, requestcontext.ActorSystem, actor)
}

func TestActorAuth_WrongServiceTokenRejected(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("batch-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := middleware.NewActorAuth(signingKey, string(hash), discardLogger())

	handler := auth.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/payments", nil)
	req.Header.Set(middleware.ServiceTokenHeader, "wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestActorAuth_ServiceTokenRejectedWhenNoneConfigured(t *testing.T) {
	auth := middleware.NewActorAuth(signingKey, "", discardLogger())
	handler := auth.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/payments", nil)
	req.Header.Set(middleware.ServiceTokenHeader, "anything")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestActorAuth_NoCredentialsFallsBackToSystem(t *testing.T) {
	auth := middleware.NewActorAuth(signingKey, "", discardLogger())

	var actor string
	handler := auth.Middleware(actorProbe(&actor))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payments/p-1", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, requestcontext.ActorSystem, actor)
}
