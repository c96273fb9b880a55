package protocol

import (
	stdjson "encoding/json"

	"chatrelay/internal/model"
)

// Event 实时连接上的事件信封：{"event": "...", "data": {...}}
type Event struct {
	Name string             `json:"event"`
	Data stdjson.RawMessage `json:"data,omitempty"`
}

// LoginPayload 握手参数或兼容的 user:login 事件
type LoginPayload struct {
	UserID   string `json:"userId" validate:"required"`
	Username string `json:"username" validate:"required"`
	Avatar   string `json:"avatar,omitempty"`
}

// MessageSendPayload message:send
type MessageSendPayload struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
	Content    string `json:"content"`
	Type       string `json:"type" validate:"omitempty,oneof=text image file"`
}

// FriendRequestPayload friend:request，fromUserId 为空时取连接绑定的用户
type FriendRequestPayload struct {
	FriendID   string `json:"friendId" validate:"required"`
	FromUserID string `json:"fromUserId,omitempty"`
}

// FriendResponsePayload friend:response
type FriendResponsePayload struct {
	RequestID string `json:"requestId" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=accepted rejected"`
}

// TypingPayload user:typing
type TypingPayload struct {
	UserID     string `json:"userId"`
	ChatID     string `json:"chatId"`
	ReceiverID string `json:"receiverId" validate:"required"`
	IsTyping   bool   `json:"isTyping"`
}

// TypingNotice 转发给接收者的输入状态
type TypingNotice struct {
	UserID   string `json:"userId"`
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

// UserView 带在线状态的用户资料
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Status   string `json:"status"`
	LastSeen int64  `json:"lastSeen,omitempty"`
}

// FriendRequestView friend:request / friend:response 推送负载
type FriendRequestView struct {
	ID        string   `json:"id"`
	FromUser  UserView `json:"fromUser"`
	ToUser    UserView `json:"toUser"`
	Status    string   `json:"status"`
	Timestamp int64    `json:"timestamp"`
}

// NewUserView 由用户模型构造视图
func NewUserView(u model.User, status string) UserView {
	return UserView{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.Avatar,
		Status:   status,
	}
}
