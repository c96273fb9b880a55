package server

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"chatrelay/internal/chat"
	"chatrelay/internal/constants"
	"chatrelay/internal/friend"
	"chatrelay/internal/model"
	"chatrelay/internal/presence"
	"chatrelay/internal/protocol"
	"chatrelay/internal/relay"
	"chatrelay/internal/testutil"
	"chatrelay/internal/user"
	"chatrelay/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type gatewayFixture struct {
	table    *presence.Table
	users    *user.AccountService
	messages *chat.MessageService
	server   *httptest.Server
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t)
	f := &gatewayFixture{
		table:    presence.NewTable(nil),
		users:    user.NewAccountService(db),
		messages: chat.NewMessageService(db),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(nil)
	go hub.Run(ctx)

	r := relay.New(relay.Deps{
		Presence: f.table,
		Users:    f.users,
		Messages: f.messages,
		Friends:  friend.NewFriendService(db),
	})
	gw := NewGateway(f.table, hub, f.users, r, GatewayOptions{})

	engine := gin.New()
	engine.GET("/api/ws", gw.WebSocketHandler())
	f.server = httptest.NewServer(engine)
	t.Cleanup(f.server.Close)
	return f
}

func (f *gatewayFixture) dial(t *testing.T, params url.Values) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/ws"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *gatewayFixture) dialAs(t *testing.T, userID, username, avatar string) *websocket.Conn {
	t.Helper()
	conn := f.dial(t, url.Values{"userId": {userID}, "username": {username}, "avatar": {avatar}})
	f.waitOnline(t, userID)
	return conn
}

func (f *gatewayFixture) waitOnline(t *testing.T, userID string) {
	t.Helper()
	require.Eventually(t, func() bool { return f.table.IsOnline(userID) }, 2*time.Second, 5*time.Millisecond)
}

// readEvent 读取直到收到指定名称的事件
func readEvent(t *testing.T, conn *websocket.Conn, name string) *protocol.Event {
	t.Helper()
	enc := protocol.NewJSONEncoder()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", name)
		evt, err := enc.Decode(data)
		require.NoError(t, err)
		if evt.Name == name {
			return evt
		}
	}
}

// readNext 读取下一个事件
func readNext(t *testing.T, conn *websocket.Conn) *protocol.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	evt, err := protocol.NewJSONEncoder().Decode(data)
	require.NoError(t, err)
	return evt
}

func writeEvent(t *testing.T, conn *websocket.Conn, name string, payload any) {
	t.Helper()
	data, err := protocol.NewJSONEncoder().Encode(protocol.MustEvent(name, payload))
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestGateway_HandshakeConnectAndDisconnect(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)

	observer := f.dialAs(t, "u1", "alice", "")
	other := f.dialAs(t, "u2", "bob", "b.png")

	// 其他连接收到上线通知
	var view protocol.UserView
	req.NoError(readEvent(t, observer, constants.EventUserConnect).Bind(&view))
	req.Equal(protocol.UserView{ID: "u2", Username: "bob", Avatar: "b.png", Status: constants.UserStatusOnline}, view)

	// 断开后广播离线，负载只有用户ID
	req.NoError(other.Close())
	var userID string
	req.NoError(readEvent(t, observer, constants.EventUserDisconnect).Bind(&userID))
	req.Equal("u2", userID)
	req.False(f.table.IsOnline("u2"))
	req.True(f.table.IsOnline("u1"))
}

func TestGateway_StoredAvatarWins(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)
	stored, err := f.users.CreateOrLogin(context.Background(), "carol", "pw", "stored.png")
	req.NoError(err)

	f.dialAs(t, stored.ID, "carol", "claimed.png")
	f.dialAs(t, "unknown", "dave", "claimed.png")

	avatars := map[string]string{}
	for _, e := range f.table.Snapshot() {
		avatars[e.UserID] = e.Profile.Avatar
	}
	req.Equal("stored.png", avatars[stored.ID])
	req.Equal("claimed.png", avatars["unknown"])
}

func TestGateway_StoredEmptyAvatarWins(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)
	stored, err := f.users.CreateOrLogin(context.Background(), "erin", "pw", "")
	req.NoError(err)

	f.dialAs(t, stored.ID, "erin", "claimed.png")

	entries := f.table.Snapshot()
	req.Len(entries, 1)
	req.Equal("", entries[0].Profile.Avatar)
}

func TestGateway_RebindBroadcastsDisconnect(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)
	observer := f.dialAs(t, "u9", "observer", "")
	conn := f.dialAs(t, "u1", "alice", "")
	readEvent(t, observer, constants.EventUserConnect)

	// 同一连接改绑为 u2
	writeEvent(t, conn, constants.EventUserLogin, protocol.LoginPayload{UserID: "u2", Username: "bob"})

	// 先收到 u1 离线，再收到 u2 上线
	evt := readNext(t, observer)
	req.Equal(constants.EventUserDisconnect, evt.Name)
	var userID string
	req.NoError(evt.Bind(&userID))
	req.Equal("u1", userID)

	evt = readNext(t, observer)
	req.Equal(constants.EventUserConnect, evt.Name)
	var view protocol.UserView
	req.NoError(evt.Bind(&view))
	req.Equal("u2", view.ID)

	req.False(f.table.IsOnline("u1"))
	req.True(f.table.IsOnline("u2"))
}

func TestGateway_LegacyLoginEvent(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)

	conn := f.dial(t, nil)
	req.Equal(0, f.table.Len())

	writeEvent(t, conn, constants.EventUserLogin, protocol.LoginPayload{UserID: "u1", Username: "alice"})
	f.waitOnline(t, "u1")

	// 缺少字段的 user:login 被丢弃
	other := f.dial(t, nil)
	writeEvent(t, other, constants.EventUserLogin, map[string]string{"username": "nobody"})
	writeEvent(t, other, constants.EventUserLogin, protocol.LoginPayload{UserID: "u2", Username: "bob"})
	f.waitOnline(t, "u2")
	req.Equal(2, f.table.Len())
}

func TestGateway_RoutesMessages(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)
	alice := f.dialAs(t, "u1", "alice", "")
	bob := f.dialAs(t, "u2", "bob", "")

	writeEvent(t, alice, constants.EventMessageSend, protocol.MessageSendPayload{
		ID: "m1", SenderID: "u1", ReceiverID: "u2", Content: "hi", Type: constants.MessageTypeText,
	})

	var got model.Message
	req.NoError(readEvent(t, bob, constants.EventMessageReceive).Bind(&got))
	req.Equal("m1", got.ID)
	req.Equal("hi", got.Content)

	var echo model.Message
	req.NoError(readEvent(t, alice, constants.EventMessageSent).Bind(&echo))
	req.Equal("m1", echo.ID)

	writeEvent(t, alice, constants.EventUserTyping, protocol.TypingPayload{UserID: "u1", ChatID: "c", ReceiverID: "u2", IsTyping: true})
	var notice protocol.TypingNotice
	req.NoError(readEvent(t, bob, constants.EventUserTyping).Bind(&notice))
	req.True(notice.IsTyping)
}

func TestGateway_SupersededConnection(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t)
	sender := f.dialAs(t, "u9", "sender", "")

	first := f.dialAs(t, "u1", "alice", "")
	second := f.dial(t, url.Values{"userId": {"u1"}, "username": {"alice"}})
	// 第二条上线通知在新连接注册之后广播
	readEvent(t, sender, constants.EventUserConnect)
	readEvent(t, sender, constants.EventUserConnect)
	req.Equal(2, f.table.Len())

	// 旧连接断开不影响新连接的在线状态
	req.NoError(first.Close())
	writeEvent(t, sender, constants.EventMessageSend, protocol.MessageSendPayload{SenderID: "u9", ReceiverID: "u1", Content: "still there?"})

	var got model.Message
	req.NoError(readEvent(t, second, constants.EventMessageReceive).Bind(&got))
	req.Equal("still there?", got.Content)
	req.True(f.table.IsOnline("u1"))
}

func TestGateway_CheckOrigin(t *testing.T) {
	gw := &Gateway{opts: GatewayOptions{AllowedOrigins: []string{"https://ok.example"}}}

	r := httptest.NewRequest("GET", "/api/ws", nil)
	require.True(t, gw.checkOrigin(r))

	r.Header.Set("Origin", "https://ok.example")
	require.True(t, gw.checkOrigin(r))

	r.Header.Set("Origin", "https://evil.example")
	require.False(t, gw.checkOrigin(r))
}
