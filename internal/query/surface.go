// Package query 提供同步查询：把存储中的数据与在线表的状态合并后返回。
package query

import (
	"context"
	"log"
	"time"

	"chatrelay/internal/constants"
	"chatrelay/internal/friend"
	"chatrelay/internal/model"
	"chatrelay/internal/presence"
	"chatrelay/internal/protocol"

	"github.com/samber/lo"
)

// Identity 身份存储
type Identity interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	CreateOrLogin(ctx context.Context, username, password, avatar string) (*model.User, error)
	SearchUsers(ctx context.Context, query, excludeID string) ([]model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Messages 消息存储
type Messages interface {
	GetMessagesForUser(ctx context.Context, userID string) ([]model.Message, error)
	GetMessagesForConversation(ctx context.Context, userA, userB string) ([]model.Message, error)
	MarkConversationRead(ctx context.Context, readerID, peerID string) (int64, error)
}

// Friends 好友存储
type Friends interface {
	GetFriendRequestsForUser(ctx context.Context, userID, status string) ([]model.FriendRequest, error)
	GetFriendsForUser(ctx context.Context, userID string) ([]model.User, error)
}

// LastSeenSource 进程外的最后在线时间，例如 Redis 镜像
type LastSeenSource interface {
	LastSeen(ctx context.Context, userID string) (time.Time, bool, error)
}

// Surface 查询入口
type Surface struct {
	presence *presence.Table
	lastSeen LastSeenSource
	users    Identity
	messages Messages
	friends  Friends
}

// NewSurface 创建查询入口，lastSeen 可以为 nil
func NewSurface(table *presence.Table, lastSeen LastSeenSource, users Identity, messages Messages, friends Friends) *Surface {
	return &Surface{
		presence: table,
		lastSeen: lastSeen,
		users:    users,
		messages: messages,
		friends:  friends,
	}
}

// View 给用户附加当前状态，离线用户附加已知的最后在线时间
func (s *Surface) View(ctx context.Context, u model.User) protocol.UserView {
	if s.presence.IsOnline(u.ID) {
		return protocol.NewUserView(u, constants.UserStatusOnline)
	}

	v := protocol.NewUserView(u, constants.UserStatusOffline)
	if ts, ok := s.presence.LastSeen(u.ID); ok {
		v.LastSeen = ts.UnixMilli()
		return v
	}
	if s.lastSeen != nil {
		ts, ok, err := s.lastSeen.LastSeen(ctx, u.ID)
		if err != nil {
			log.Printf("读取用户 %s 最后在线时间失败: %v", u.ID, err)
		} else if ok {
			v.LastSeen = ts.UnixMilli()
		}
	}
	return v
}

func (s *Surface) views(ctx context.Context, users []model.User) []protocol.UserView {
	return lo.Map(users, func(u model.User, _ int) protocol.UserView {
		return s.View(ctx, u)
	})
}

// Login 登录或注册
func (s *Surface) Login(ctx context.Context, username, password, avatar string) (protocol.UserView, error) {
	u, err := s.users.CreateOrLogin(ctx, username, password, avatar)
	if err != nil {
		return protocol.UserView{}, err
	}
	return s.View(ctx, *u), nil
}

// SearchUsers 按用户名搜索（大小写不敏感的子串匹配）
func (s *Surface) SearchUsers(ctx context.Context, query, excludeID string) ([]protocol.UserView, error) {
	users, err := s.users.SearchUsers(ctx, query, excludeID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, users), nil
}

// OnlineUsers 当前在线用户，按上线时间排序
func (s *Surface) OnlineUsers() []protocol.UserView {
	return lo.Map(s.presence.Snapshot(), func(e presence.Entry, _ int) protocol.UserView {
		return protocol.UserView{
			ID:       e.UserID,
			Username: e.Profile.Username,
			Avatar:   e.Profile.Avatar,
			Status:   e.Status,
		}
	})
}

// AllUsers 所有注册用户
func (s *Surface) AllUsers(ctx context.Context) ([]protocol.UserView, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, users), nil
}

// Inbox 用户收到的消息
func (s *Surface) Inbox(ctx context.Context, userID string) ([]model.Message, error) {
	return s.messages.GetMessagesForUser(ctx, userID)
}

// Conversation 两个用户之间的消息
func (s *Surface) Conversation(ctx context.Context, userA, userB string) ([]model.Message, error) {
	return s.messages.GetMessagesForConversation(ctx, userA, userB)
}

// MarkRead 将 peer 发给 reader 的消息标记为已读
func (s *Surface) MarkRead(ctx context.Context, readerID, peerID string) (int64, error) {
	return s.messages.MarkConversationRead(ctx, readerID, peerID)
}

// FriendRequests 用户收到的好友请求，status 为空时只返回待处理的请求
func (s *Surface) FriendRequests(ctx context.Context, userID, status string) ([]protocol.FriendRequestView, error) {
	if status == "" {
		status = constants.FriendRequestPending
	}
	requests, err := s.friends.GetFriendRequestsForUser(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return []protocol.FriendRequestView{}, nil
	}

	receiver, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	to := s.View(ctx, *receiver)

	views := lo.FilterMap(requests, func(r model.FriendRequest, _ int) (protocol.FriendRequestView, bool) {
		if r.FromUser == nil {
			log.Printf("好友请求 %s 的发起人 %s 不存在，已跳过", r.ID, r.FromUserID)
			return protocol.FriendRequestView{}, false
		}
		return protocol.FriendRequestView{
			ID:        r.ID,
			FromUser:  s.View(ctx, *r.FromUser),
			ToUser:    to,
			Status:    r.Status,
			Timestamp: r.Timestamp,
		}, true
	})
	return views, nil
}

// Friends 好友列表
func (s *Surface) Friends(ctx context.Context, userID string) ([]protocol.UserView, error) {
	users, err := s.friends.GetFriendsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, users), nil
}

// ValidFriendRequestStatus 查询参数中允许的状态
func ValidFriendRequestStatus(status string) bool {
	return lo.Contains([]string{
		"",
		constants.FriendRequestPending,
		constants.FriendRequestAccepted,
		constants.FriendRequestRejected,
		friend.StatusAll,
	}, status)
}
