package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rankfeed/rankfeed/internal/config"
	"github.com/rankfeed/rankfeed/internal/middleware"
	"github.com/rankfeed/rankfeed/internal/repository"
	"github.com/rankfeed/rankfeed/internal/services"
	"github.com/rankfeed/rankfeed/internal/testutil"
	"github.com/rankfeed/rankfeed/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret = "handler-test-secret"
	issuer = "rankfeed"
)

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	redis, _ := testutil.NewRedis(t)
	svc := services.New(services.Options{
		DB:          repository.Wrap(db),
		Cache:       redis,
		IdentityTTL: time.Minute,
		GraphTTL:    time.Minute,
		Logger:      logger.Discard(),
	})
	auth := middleware.NewAuthenticator(&config.JWTConfig{Secret: secret, Issuer: issuer}, svc.Identity)
	return &apiClient{t: t, router: NewRouter(svc, auth, "test")}
}

func (a *apiClient) token(subject string) string {
	token, err := middleware.GenerateToken(subject, secret, issuer, time.Hour)
	require.NoError(a.t, err)
	return token
}

func (a *apiClient) do(method, path, subject string, body interface{}) (int, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(subject))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (a *apiClient) provision(subject, username string) string {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/api/v1/me", subject, gin.H{"username": username})
	require.Equal(a.t, http.StatusCreated, status, env.Error)
	var user struct {
		ID string `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &user))
	return user.ID
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type itemPage struct {
	Items []struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Origin *struct {
			ID string `json:"id"`
		} `json:"origin"`
	} `json:"items"`
	NextCursor *string `json:"next_cursor"`
}

func TestPrivateAccountFlow(t *testing.T) {
	api := newAPI(t)
	aliceID := api.provision("sub-alice", "alice")
	bobID := api.provision("sub-bob", "bob")

	status, env := api.do(http.MethodPatch, "/api/v1/me", "sub-alice", gin.H{"is_private": true})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = api.do(http.MethodPost, "/api/v1/posts", "sub-alice", gin.H{"content": "hello followers"})
	require.Equal(t, http.StatusCreated, status, env.Error)
	post := decode[struct {
		ID string `json:"id"`
	}](t, env)

	// 未关注时不可见
	status, env = api.do(http.MethodGet, "/api/v1/users/"+aliceID+"/timeline", "sub-bob", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "PERMISSION_DENIED", env.Code)
	assert.False(t, env.Success)

	status, env = api.do(http.MethodPost, "/api/v1/feed-items/"+post.ID+"/retweet", "sub-bob", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = api.do(http.MethodPost, "/api/v1/users/"+aliceID+"/follow", "sub-bob", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.JSONEq(t, `{"follow_status":"REQUEST_SENT"}`, string(env.Data))

	status, env = api.do(http.MethodGet, "/api/v1/follow-requests", "sub-alice", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	requests := decode[struct {
		Items []struct {
			ID        string `json:"id"`
			Requester struct {
				ID string `json:"id"`
			} `json:"requester"`
		} `json:"items"`
	}](t, env)
	require.Len(t, requests.Items, 1)
	assert.Equal(t, bobID, requests.Items[0].Requester.ID)

	// 只有被请求方可以处理
	status, _ = api.do(http.MethodPost, "/api/v1/follow-requests/"+requests.Items[0].ID+"/accept", "sub-bob", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = api.do(http.MethodPost, "/api/v1/follow-requests/"+requests.Items[0].ID+"/accept", "sub-alice", nil)
	require.Equal(t, http.StatusOK, status, env.Error)

	status, _ = api.do(http.MethodPost, "/api/v1/follow-requests/"+requests.Items[0].ID+"/accept", "sub-alice", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = api.do(http.MethodPost, "/api/v1/feed-items/"+post.ID+"/retweet", "sub-bob", nil)
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = api.do(http.MethodGet, "/api/v1/users/"+bobID+"/timeline", "", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	page := decode[itemPage](t, env)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "RETWEET", page.Items[0].Type)
	// 匿名访问者看不到私密账号的原条目
	assert.Nil(t, page.Items[0].Origin)

	status, env = api.do(http.MethodGet, "/api/v1/users/"+bobID+"/timeline", "sub-bob", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	page = decode[itemPage](t, env)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].Origin)
	assert.Equal(t, post.ID, page.Items[0].Origin.ID)

	status, env = api.do(http.MethodGet, "/api/v1/timeline/home", "sub-bob", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Len(t, decode[itemPage](t, env).Items, 2)
}

func TestLikeEndpoints(t *testing.T) {
	api := newAPI(t)
	api.provision("sub-alice", "alice")
	api.provision("sub-bob", "bob")

	status, env := api.do(http.MethodPost, "/api/v1/posts", "sub-alice", gin.H{"content": "like me"})
	require.Equal(t, http.StatusCreated, status, env.Error)
	item := decode[struct {
		Post struct {
			ID string `json:"id"`
		} `json:"post"`
	}](t, env)

	path := "/api/v1/likes/post/" + item.Post.ID
	for i := 0; i < 2; i++ {
		status, env = api.do(http.MethodPost, path, "sub-bob", nil)
		require.Equal(t, http.StatusOK, status, env.Error)
	}

	status, env = api.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	likers := decode[struct {
		Items []struct {
			Username string `json:"username"`
		} `json:"items"`
	}](t, env)
	require.Len(t, likers.Items, 1)
	assert.Equal(t, "bob", likers.Items[0].Username)

	status, _ = api.do(http.MethodPost, "/api/v1/likes/comment/"+item.Post.ID, "sub-bob", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = api.do(http.MethodDelete, path, "sub-bob", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
}

func TestRequestValidation(t *testing.T) {
	api := newAPI(t)
	api.provision("sub-alice", "alice")

	status, env := api.do(http.MethodPost, "/api/v1/posts", "", gin.H{"content": "anonymous"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", env.Code)

	status, env = api.do(http.MethodPost, "/api/v1/posts", "sub-alice", gin.H{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)

	status, _ = api.do(http.MethodGet, "/api/v1/feed-items/not-a-uuid", "sub-alice", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(http.MethodGet, "/api/v1/timeline/home?limit=abc", "sub-alice", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = api.do(http.MethodGet, "/api/v1/timeline/home", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[itemPage](t, env).Items)

	// 未建档的身份不能访问需要登录的接口，可选登录的接口按匿名返回
	status, _ = api.do(http.MethodGet, "/api/v1/me", "sub-stranger", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = api.do(http.MethodGet, "/api/v1/timeline/home", "sub-stranger", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[itemPage](t, env).Items)

	status, _ = api.do(http.MethodPost, "/api/v1/me", "sub-other", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusConflict, status)
}
