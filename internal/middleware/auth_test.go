package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/apperrors"
	"github.com/rankfeed/rankfeed/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret-key-12345678901234567890"
	testIssuer = "rankfeed-test"
)

type mapResolver map[string]uuid.UUID

func (m mapResolver) Resolve(_ context.Context, externalID string) (uuid.UUID, error) {
	id, ok := m[externalID]
	if !ok {
		return uuid.Nil, apperrors.Unauthenticated("unknown principal")
	}
	return id, nil
}

func newRouter(t *testing.T, resolver PrincipalResolver) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := NewAuthenticator(&config.JWTConfig{Secret: testSecret, Issuer: testIssuer}, resolver)

	r := gin.New()
	r.GET("/required", auth.RequireAuth(), func(c *gin.Context) {
		id, _ := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.String()})
	})
	r.GET("/optional", auth.OptionalAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"anonymous": GetViewer(c) == nil})
	})
	r.GET("/subject", auth.RequireSubject(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": GetSubject(c)})
	})
	return r
}

func do(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, subject, issuer string, ttl time.Duration) string {
	t.Helper()
	s, err := GenerateToken(subject, testSecret, issuer, ttl)
	require.NoError(t, err)
	return s
}

func TestRequireAuth(t *testing.T) {
	userID := uuid.New()
	r := newRouter(t, mapResolver{"ext-alice": userID})

	otherSigner := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ext-alice",
		Issuer:    testIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	forged, err := otherSigner.SignedString([]byte("another-secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "valid token", token: token(t, "ext-alice", testIssuer, time.Hour), status: http.StatusOK},
		{name: "missing header", token: "", status: http.StatusUnauthorized},
		{name: "expired", token: token(t, "ext-alice", testIssuer, -time.Minute), status: http.StatusUnauthorized},
		{name: "wrong issuer", token: token(t, "ext-alice", "someone-else", time.Hour), status: http.StatusUnauthorized},
		{name: "wrong secret", token: forged, status: http.StatusUnauthorized},
		{name: "unknown principal", token: token(t, "ext-bob", testIssuer, time.Hour), status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, "/required", tt.token)
			assert.Equal(t, tt.status, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.status == http.StatusOK {
				assert.Equal(t, userID.String(), body["user_id"])
			} else {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, string(apperrors.KindUnauthenticated), body["code"])
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := newRouter(t, mapResolver{"ext-alice": uuid.New()})

	w := do(r, "/optional", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"anonymous":true}`, w.Body.String())

	w = do(r, "/optional", token(t, "ext-alice", testIssuer, time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"anonymous":false}`, w.Body.String())

	// 未建档的身份按匿名处理
	w = do(r, "/optional", token(t, "ext-unknown", testIssuer, time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"anonymous":true}`, w.Body.String())

	w = do(r, "/optional", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/optional", token(t, "ext-alice", testIssuer, -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string) (uuid.UUID, error) {
	return uuid.Nil, apperrors.Wrap(apperrors.KindTransient, "identity store unavailable", nil)
}

func TestOptionalAuth_ResolverFailureIsNotAnonymous(t *testing.T) {
	r := newRouter(t, failingResolver{})

	w := do(r, "/optional", token(t, "ext-alice", testIssuer, time.Hour))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequireSubject_DoesNotResolve(t *testing.T) {
	r := newRouter(t, mapResolver{})

	w := do(r, "/subject", token(t, "ext-new", testIssuer, time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subject":"ext-new"}`, w.Body.String())
}
