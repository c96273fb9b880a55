package service

import (
	"context"
	"log"

	"chatrelay/internal/chat"
	"chatrelay/internal/config"
	"chatrelay/internal/connection"
	"chatrelay/internal/friend"
	"chatrelay/internal/presence"
	"chatrelay/internal/query"
	"chatrelay/internal/relay"
	"chatrelay/internal/router"
	"chatrelay/internal/server"
	"chatrelay/internal/status"
	"chatrelay/internal/user"
	"chatrelay/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Manager 统一服务管理器，持有进程内所有组件
type Manager struct {
	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc

	accountService *user.AccountService
	messageService *chat.MessageService
	friendService  *friend.FriendService
	statusManager  *status.Manager

	presence *presence.Table
	hub      *ws.Hub
	relay    *relay.Relay
	gateway  *server.Gateway
	surface  *query.Surface
}

// NewManager 创建服务管理器，redisClient 为 nil 时不镜像在线状态
func NewManager(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Manager {
	m := &Manager{
		cfg:            cfg,
		accountService: user.NewAccountService(db),
		messageService: chat.NewMessageService(db),
		friendService:  friend.NewFriendService(db),
		statusManager:  status.NewManager(redisClient),
	}

	delivery := relay.BestEffort{}
	m.presence = presence.NewTable(m.statusManager)
	m.hub = ws.NewHub(delivery)
	m.relay = relay.New(relay.Deps{
		Presence: m.presence,
		Users:    m.accountService,
		Messages: m.messageService,
		Friends:  m.friendService,
		Delivery: delivery,
		Timeout:  cfg.Gateway.EventTimeout,
	})
	m.gateway = server.NewGateway(m.presence, m.hub, m.accountService, m.relay, server.GatewayOptions{
		Conn: connection.Options{
			SendBuffer:     cfg.Gateway.SendBuffer,
			MaxMessageSize: cfg.Gateway.MaxMessageSize,
			WriteWait:      cfg.Gateway.WriteWait,
			PongWait:       cfg.Gateway.PongWait,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Timeout:        cfg.Gateway.EventTimeout,
	})
	m.surface = query.NewSurface(m.presence, m.statusManager, m.accountService, m.messageService, m.friendService)

	log.Println("服务管理器初始化完成")
	return m
}

// Start 启动后台协程：连接 Hub 与 Redis 状态同步
func (m *Manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if m.statusManager.Enabled() {
		// 在线表重启后为空，清理上次运行残留的在线集合
		if err := m.statusManager.Reset(m.ctx); err != nil {
			log.Printf("重置在线用户集合失败: %v", err)
		}
		go m.statusManager.Run(m.ctx)
	}
	go m.hub.Run(m.ctx)
}

// Router 创建 HTTP 路由
func (m *Manager) Router() *gin.Engine {
	return router.SetupRouter(router.Deps{
		Config:    m.cfg,
		Surface:   m.surface,
		WebSocket: m.gateway.WebSocketHandler(),
	})
}

// Shutdown 关闭所有连接与后台协程
func (m *Manager) Shutdown() {
	log.Println("正在关闭服务管理器...")

	// Hub 持有所有连接，包括未绑定用户的和被取代的
	m.hub.CloseAll()
	if m.cancel != nil {
		m.cancel()
	}

	log.Println("服务管理器已关闭")
}
