package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatrelay/internal/chat"
	"chatrelay/internal/config"
	"chatrelay/internal/constants"
	"chatrelay/internal/friend"
	"chatrelay/internal/model"
	"chatrelay/internal/presence"
	"chatrelay/internal/protocol"
	"chatrelay/internal/query"
	"chatrelay/internal/testutil"
	"chatrelay/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type routerFixture struct {
	engine   *gin.Engine
	db       *gorm.DB
	table    *presence.Table
	messages *chat.MessageService
	friends  *friend.FriendService
}

func newRouterFixture(t *testing.T, mutate func(cfg *config.Config)) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	db := testutil.OpenDB(t)
	f := &routerFixture{
		db:       db,
		table:    presence.NewTable(nil),
		messages: chat.NewMessageService(db),
		friends:  friend.NewFriendService(db),
	}
	surface := query.NewSurface(f.table, nil, user.NewAccountService(db), f.messages, f.friends)
	f.engine = SetupRouter(Deps{Config: cfg, Surface: surface})
	return f
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		r.Header[k] = v
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, r)
	return w
}

type loginResponse struct {
	User  protocol.UserView `json:"user"`
	Token string            `json:"token"`
}

func (f *routerFixture) login(t *testing.T, username string) loginResponse {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/login", user.LoginRequest{Username: username, Password: "pw"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRouter_Login(t *testing.T) {
	f := newRouterFixture(t, nil)

	t.Run("registers and returns token", func(t *testing.T) {
		resp := f.login(t, "alice")
		require.Equal(t, "alice", resp.User.Username)
		require.Equal(t, constants.UserStatusOffline, resp.User.Status)
		require.NotEmpty(t, resp.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/login", user.LoginRequest{Username: "alice", Password: "nope"}, nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Contains(t, w.Body.String(), constants.ErrPasswordIncorrect)
	})

	t.Run("blank fields", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/login", user.LoginRequest{Username: "  ", Password: "pw"}, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		w = f.do(t, http.MethodPost, "/api/login", user.LoginRequest{Username: "bob"}, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRouter_UsersAndSearch(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, nil)
	alice := f.login(t, "alice").User
	bob := f.login(t, "bob").User
	f.table.Register(bob.ID, testutil.NewFakeConn(), presence.Profile{Username: "bob"})

	var found []protocol.UserView
	w := f.do(t, http.MethodGet, "/api/users/search?query=O&excludeId="+alice.ID, nil, nil)
	req.Equal(http.StatusOK, w.Code)
	req.NoError(json.Unmarshal(w.Body.Bytes(), &found))
	req.Len(found, 1)
	req.Equal(bob.ID, found[0].ID)
	req.Equal(constants.UserStatusOnline, found[0].Status)

	var online []protocol.UserView
	w = f.do(t, http.MethodGet, "/api/users", nil, nil)
	req.Equal(http.StatusOK, w.Code)
	req.NoError(json.Unmarshal(w.Body.Bytes(), &online))
	req.Len(online, 1)

	// 调试路由默认关闭
	w = f.do(t, http.MethodGet, "/api/debug/users", nil, nil)
	req.Equal(http.StatusNotFound, w.Code)
}

func TestRouter_DebugUsers(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, func(cfg *config.Config) { cfg.Server.DebugRoutes = true })
	f.login(t, "alice")
	f.login(t, "bob")

	var all []protocol.UserView
	w := f.do(t, http.MethodGet, "/api/debug/users", nil, nil)
	req.Equal(http.StatusOK, w.Code)
	req.NoError(json.Unmarshal(w.Body.Bytes(), &all))
	req.Len(all, 2)
}

func TestRouter_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture(t, nil)
	req.NoError(f.messages.SaveMessage(ctx, &model.Message{ID: "m1", SenderID: "u1", ReceiverID: "u2", Content: "hi", Type: "text", Timestamp: 1}))
	req.NoError(f.messages.SaveMessage(ctx, &model.Message{ID: "m2", SenderID: "u2", ReceiverID: "u1", Content: "yo", Type: "text", Timestamp: 2}))

	var inbox []model.Message
	w := f.do(t, http.MethodGet, "/api/messages/u2", nil, nil)
	req.Equal(http.StatusOK, w.Code)
	req.NoError(json.Unmarshal(w.Body.Bytes(), &inbox))
	req.Len(inbox, 1)
	req.Equal("m1", inbox[0].ID)

	var conv []model.Message
	w = f.do(t, http.MethodGet, "/api/conversations/u1/u2", nil, nil)
	req.Equal(http.StatusOK, w.Code)
	req.NoError(json.Unmarshal(w.Body.Bytes(), &conv))
	req.Len(conv, 2)

	w = f.do(t, http.MethodPost, "/api/conversations/u2/u1/read", nil, nil)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"updated":1}`, w.Body.String())
}

func TestRouter_FriendRoutes(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture(t, nil)
	alice := f.login(t, "alice").User
	bob := f.login(t, "bob").User
	req.NoError(f.friends.SaveFriendRequest(ctx, &model.FriendRequest{
		ID: "r1", FromUserID: alice.ID, ToUserID: bob.ID, Status: constants.FriendRequestPending, Timestamp: 1,
	}))

	var requests []protocol.FriendRequestView
	w := f.do(t, http.MethodGet, "/api/friend-requests/"+bob.ID, nil, nil)
	req.Equal(http.StatusOK, w.Code)
	req.NoError(json.Unmarshal(w.Body.Bytes(), &requests))
	req.Len(requests, 1)
	req.Equal(alice.ID, requests[0].FromUser.ID)

	w = f.do(t, http.MethodGet, "/api/friend-requests/"+bob.ID+"?status=accepted", nil, nil)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`[]`, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/friend-requests/"+bob.ID+"?status=maybe", nil, nil)
	req.Equal(http.StatusBadRequest, w.Code)

	req.NoError(f.friends.AddBidirectionalFriendship(ctx, alice.ID, bob.ID))
	var friends []protocol.UserView
	w = f.do(t, http.MethodGet, "/api/friends/"+alice.ID, nil, nil)
	req.Equal(http.StatusOK, w.Code)
	req.NoError(json.Unmarshal(w.Body.Bytes(), &friends))
	req.Len(friends, 1)
	req.Equal(bob.ID, friends[0].ID)
}

func TestRouter_JWTRequired(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, func(cfg *config.Config) { cfg.JWT.Required = true })

	// 登录不需要 token
	token := f.login(t, "alice").Token

	w := f.do(t, http.MethodGet, "/api/users", nil, nil)
	req.Equal(http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/users", nil, http.Header{"Authorization": {"Bearer " + token}})
	req.Equal(http.StatusOK, w.Code)
}

func TestRouter_CORS(t *testing.T) {
	f := newRouterFixture(t, nil)
	w := f.do(t, http.MethodOptions, "/api/users", nil, http.Header{
		"Origin":                        {"http://localhost:5173"},
		"Access-Control-Request-Method": {"GET"},
	})
	require.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_StoreFailure(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t, nil)
	alice := f.login(t, "alice")

	sqlDB, err := f.db.DB()
	req.NoError(err)
	req.NoError(sqlDB.Close())

	w := f.do(t, http.MethodGet, "/api/messages/"+alice.User.ID, nil, nil)
	req.Equal(http.StatusInternalServerError, w.Code)
	req.Contains(w.Body.String(), constants.ErrInternal)
}
