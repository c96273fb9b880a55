package status

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"chatrelay/internal/constants"
	"chatrelay/internal/presence"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

// UserStatus 同步到 Redis 的用户状态
type UserStatus struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar"`
	Online      bool   `json:"online"`
	ConnectedAt int64  `json:"connected_at"`
}

type update struct {
	entry  presence.Entry
	online bool
}

// Manager 把在线表的变化镜像到 Redis
//
// 变化通过有序队列异步写入，写入失败只记录日志，不影响实时路由。
type Manager struct {
	redisClient *redis.Client
	updates     chan update
	online      map[string]UserStatus // 仅由 Run 协程访问
	ttl         time.Duration
	heartbeat   time.Duration
}

// NewManager 创建状态管理器，redisClient 为 nil 时所有操作为空操作
func NewManager(redisClient *redis.Client) *Manager {
	return &Manager{
		redisClient: redisClient,
		updates:     make(chan update, 1024),
		online:      make(map[string]UserStatus),
		ttl:         constants.StatusExpirationTime * time.Second,
		heartbeat:   time.Minute,
	}
}

// Enabled Redis 是否可用
func (m *Manager) Enabled() bool {
	return m.redisClient != nil
}

// MarkOnline 实现 presence.Mirror
func (m *Manager) MarkOnline(entry presence.Entry) {
	m.enqueue(update{entry: entry, online: true})
}

// MarkOffline 实现 presence.Mirror
func (m *Manager) MarkOffline(entry presence.Entry) {
	m.enqueue(update{entry: entry, online: false})
}

func (m *Manager) enqueue(u update) {
	if !m.Enabled() {
		return
	}
	select {
	case m.updates <- u:
	default:
		log.Printf("状态同步队列已满，丢弃用户 %s 的状态更新", u.entry.UserID)
	}
}

// Reset 清空在线集合，服务启动时调用
func (m *Manager) Reset(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	if err := m.redisClient.Del(ctx, constants.RedisKeyOnlineUsers).Err(); err != nil {
		return fmt.Errorf("清空在线用户集合失败: %w", err)
	}
	return nil
}

// Run 处理同步队列并定期刷新在线用户的过期时间，直到 ctx 结束
func (m *Manager) Run(ctx context.Context) {
	if !m.Enabled() {
		return
	}

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-m.updates:
			if err := m.apply(ctx, u); err != nil {
				log.Printf("同步用户 %s 状态到Redis失败: %v", u.entry.UserID, err)
			}
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

func (m *Manager) apply(ctx context.Context, u update) error {
	userID := u.entry.UserID
	statusKey := fmt.Sprintf(constants.RedisKeyUserStatus, userID)
	lastSeenKey := fmt.Sprintf(constants.RedisKeyUserLastSeen, userID)

	pipe := m.redisClient.Pipeline()
	if u.online {
		status := UserStatus{
			UserID:      userID,
			Username:    u.entry.Profile.Username,
			Avatar:      u.entry.Profile.Avatar,
			Online:      true,
			ConnectedAt: u.entry.ConnectedAt.UnixMilli(),
		}
		data, err := json.Marshal(status)
		if err != nil {
			return fmt.Errorf("序列化用户状态失败: %w", err)
		}
		m.online[userID] = status

		pipe.Set(ctx, statusKey, data, m.ttl)
		pipe.SAdd(ctx, constants.RedisKeyOnlineUsers, userID)
	} else {
		delete(m.online, userID)

		pipe.Del(ctx, statusKey)
		pipe.SRem(ctx, constants.RedisKeyOnlineUsers, userID)
		pipe.Set(ctx, lastSeenKey, u.entry.LastSeen.UnixMilli(), 0)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (m *Manager) refresh(ctx context.Context) {
	if len(m.online) == 0 {
		return
	}

	pipe := m.redisClient.Pipeline()
	for userID := range m.online {
		pipe.Expire(ctx, fmt.Sprintf(constants.RedisKeyUserStatus, userID), m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("刷新在线状态过期时间失败: %v", err)
		return
	}
	log.Printf("更新了 %d 个用户的心跳", len(m.online))
}

// LastSeen 读取用户最后离线时间
func (m *Manager) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	if !m.Enabled() {
		return time.Time{}, false, nil
	}
	raw, err := m.redisClient.Get(ctx, fmt.Sprintf(constants.RedisKeyUserLastSeen, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("获取最后在线时间失败: %w", err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("解析最后在线时间失败: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}
