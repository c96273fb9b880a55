package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"chatrelay/internal/connection"
	"chatrelay/internal/constants"
	"chatrelay/internal/errs"
	"chatrelay/internal/model"
	"chatrelay/internal/presence"
	"chatrelay/internal/protocol"
	"chatrelay/internal/relay"
	"chatrelay/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// IdentityStore 网关只需要按ID读取用户
type IdentityStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// GatewayOptions 网关参数
type GatewayOptions struct {
	Conn           connection.Options
	AllowedOrigins []string      // 为空或包含 "*" 时允许所有来源
	Timeout        time.Duration // 查询身份存储的超时
}

// Gateway 接受实时连接，完成握手并把连接绑定到在线表
type Gateway struct {
	presence *presence.Table
	hub      *ws.Hub
	users    IdentityStore
	relay    *relay.Relay
	encoder  protocol.EventEncoder
	validate *validator.Validate
	upgrader websocket.Upgrader
	opts     GatewayOptions
}

func NewGateway(table *presence.Table, hub *ws.Hub, users IdentityStore, r *relay.Relay, opts GatewayOptions) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	g := &Gateway{
		presence: table,
		hub:      hub,
		users:    users,
		relay:    r,
		encoder:  protocol.NewJSONEncoder(),
		validate: validator.New(),
		opts:     opts,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(g.opts.AllowedOrigins) == 0 {
		return true
	}
	return lo.Contains(g.opts.AllowedOrigins, "*") || lo.Contains(g.opts.AllowedOrigins, origin)
}

// WebSocketHandler 处理 WebSocket 连接请求，握手身份来自查询参数 userId/username/avatar
func (g *Gateway) WebSocketHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claim := protocol.LoginPayload{
			UserID:   c.Query("userId"),
			Username: c.Query("username"),
			Avatar:   c.Query("avatar"),
		}

		wsConn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("升级WebSocket连接失败: %v", err)
			return
		}

		conn := connection.NewWebSocketConnection(wsConn, g.encoder, g.opts.Conn)
		g.serve(conn, claim)
	}
}

// serve 运行连接直到断开
func (g *Gateway) serve(conn *connection.WebSocketConnection, claim protocol.LoginPayload) {
	g.hub.Add(conn)
	defer g.release(conn)

	go conn.StartWriting()

	if claim.UserID != "" || claim.Username != "" {
		if err := g.Bind(conn, claim); err != nil {
			log.Printf("连接 %s 握手身份无效，等待 user:login: %v", conn.ID(), err)
		}
	} else {
		log.Printf("连接 %s 未携带握手身份，等待 user:login", conn.ID())
	}

	// StartReading 阻塞直到连接断开
	conn.StartReading(func(evt *protocol.Event) {
		g.dispatch(conn, evt)
	})
}

func (g *Gateway) dispatch(conn connection.Connection, evt *protocol.Event) {
	if evt.Name != constants.EventUserLogin {
		g.relay.Handle(conn, evt)
		return
	}

	// 兼容旧客户端：连接建立后通过事件绑定身份
	var claim protocol.LoginPayload
	if err := evt.Bind(&claim); err != nil {
		log.Printf("连接 %s 的 user:login 已丢弃: %v", conn.ID(), err)
		return
	}
	if err := g.Bind(conn, claim); err != nil {
		log.Printf("连接 %s 的 user:login 已丢弃: %v", conn.ID(), err)
	}
}

// Bind 把连接绑定到声明的用户身份，注册到在线表并通知其他连接
//
// 声明的身份不做凭证校验。用户存在时以存储中的头像为准，否则使用声明的头像。
func (g *Gateway) Bind(conn connection.Connection, claim protocol.LoginPayload) error {
	if err := g.validate.Struct(claim); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidEvent, err)
	}

	profile := presence.Profile{Username: claim.Username, Avatar: claim.Avatar}

	ctx, cancel := context.WithTimeout(context.Background(), g.opts.Timeout)
	defer cancel()
	stored, err := g.users.GetUserByID(ctx, claim.UserID)
	switch {
	case err == nil:
		profile.Avatar = stored.Avatar
	case errors.Is(err, errs.ErrNotFound):
	default:
		log.Printf("查询用户 %s 失败，使用声明的资料: %v", claim.UserID, err)
	}

	entry, displaced := g.presence.Register(claim.UserID, conn, profile)
	conn.BindUser(claim.UserID)
	if displaced != nil {
		// 同一连接改绑其他用户，原用户离线
		log.Printf("用户 %s 已离线，连接 %s 改绑到用户 %s", displaced.UserID, conn.ID(), entry.UserID)
		g.hub.Broadcast(protocol.MustEvent(constants.EventUserDisconnect, displaced.UserID), conn)
	}
	log.Printf("用户 %s (%s) 已上线，连接 %s", entry.UserID, entry.Profile.Username, conn.ID())

	g.hub.Broadcast(protocol.MustEvent(constants.EventUserConnect, protocol.UserView{
		ID:       entry.UserID,
		Username: entry.Profile.Username,
		Avatar:   entry.Profile.Avatar,
		Status:   entry.Status,
	}), conn)
	return nil
}

// release 连接断开后移除在线记录；只有当前连接仍是该用户的在线连接时才广播离线
func (g *Gateway) release(conn connection.Connection) {
	if entry, ok := g.presence.Unregister(conn); ok {
		log.Printf("用户 %s 已离线，连接 %s", entry.UserID, conn.ID())
		g.hub.Broadcast(protocol.MustEvent(constants.EventUserDisconnect, entry.UserID), conn)
	}
	g.hub.Remove(conn)
}
