// Package relay 路由实时事件：校验 → 持久化 → 推送到在线连接。
//
// 每个连接上的事件按到达顺序逐个处理，不同连接之间并发处理。单个事件的失败只记录日志，
// 不影响其他事件；持久化失败不阻止对在线接收者的推送。
package relay

import (
	"context"
	"fmt"
	"log"
	"time"

	"chatrelay/internal/connection"
	"chatrelay/internal/constants"
	"chatrelay/internal/errs"
	"chatrelay/internal/model"
	"chatrelay/internal/protocol"

	"github.com/go-playground/validator/v10"
)

// Presence 在线表的只读视图
type Presence interface {
	Lookup(userID string) (connection.Connection, bool)
	IsOnline(userID string) bool
}

// IdentityStore 身份存储
type IdentityStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// MessageStore 消息存储
type MessageStore interface {
	SaveMessage(ctx context.Context, message *model.Message) error
}

// FriendStore 好友请求与好友关系存储
type FriendStore interface {
	SaveFriendRequest(ctx context.Context, req *model.FriendRequest) error
	UpdateFriendRequestStatus(ctx context.Context, id, status string) error
	GetFriendRequestByID(ctx context.Context, id string) (*model.FriendRequest, error)
	AddBidirectionalFriendship(ctx context.Context, userA, userB string) error
}

// Deps 路由器依赖
type Deps struct {
	Presence Presence
	Users    IdentityStore
	Messages MessageStore
	Friends  FriendStore
	Delivery Delivery      // 默认 BestEffort
	Timeout  time.Duration // 单个事件的存储超时，默认 5s
}

// Relay 事件路由器
type Relay struct {
	presence Presence
	users    IdentityStore
	messages MessageStore
	friends  FriendStore
	delivery Delivery
	timeout  time.Duration
	validate *validator.Validate
	clock    *Clock
}

func New(deps Deps) *Relay {
	if deps.Delivery == nil {
		deps.Delivery = BestEffort{}
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 5 * time.Second
	}
	return &Relay{
		presence: deps.Presence,
		users:    deps.Users,
		messages: deps.Messages,
		friends:  deps.Friends,
		delivery: deps.Delivery,
		timeout:  deps.Timeout,
		validate: validator.New(),
		clock:    NewClock(),
	}
}

// Handle 处理来自 conn 的一个事件，直到完成或失败
func (r *Relay) Handle(conn connection.Connection, evt *protocol.Event) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("处理事件 %s 时发生panic: %v", evt.Name, p)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var err error
	switch evt.Name {
	case constants.EventMessageSend:
		err = r.handleMessageSend(ctx, conn, evt)
	case constants.EventFriendRequest:
		err = r.handleFriendRequest(ctx, conn, evt)
	case constants.EventFriendResponse:
		err = r.handleFriendResponse(ctx, evt)
	case constants.EventUserTyping:
		err = r.handleTyping(conn, evt)
	default:
		err = fmt.Errorf("%w: 未知事件", errs.ErrInvalidEvent)
	}

	if err != nil {
		log.Printf("连接 %s (用户 %s) 的事件 %s 已丢弃: %v", conn.ID(), conn.UserID(), evt.Name, err)
	}
}

// decode 解析并校验事件负载
func (r *Relay) decode(evt *protocol.Event, v any) error {
	if err := evt.Bind(v); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidEvent, err)
	}
	if err := r.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidEvent, err)
	}
	return nil
}

// push 如果用户在线则推送
func (r *Relay) push(userID string, evt *protocol.Event) bool {
	conn, ok := r.presence.Lookup(userID)
	if !ok {
		return false
	}
	return r.delivery.Deliver(conn, evt)
}

// userView 附带当前在线状态的用户资料
func (r *Relay) userView(u *model.User) protocol.UserView {
	status := constants.UserStatusOffline
	if r.presence.IsOnline(u.ID) {
		status = constants.UserStatusOnline
	}
	return protocol.NewUserView(*u, status)
}
