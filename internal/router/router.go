package router

import (
	"net/http"
	"time"

	"chatrelay/internal/config"
	"chatrelay/internal/middleware"
	"chatrelay/internal/query"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// Deps 路由依赖
type Deps struct {
	Config  *config.Config
	Surface *query.Surface
	// WebSocket 网关入口
	WebSocket gin.HandlerFunc
}

// SetupRouter 配置所有路由
func SetupRouter(deps Deps) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.GlobalConfig
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	// CORS 配置，未配置来源白名单时允许所有来源
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.Server.AllowedOrigins) == 0 || lo.Contains(cfg.Server.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	r.Use(cors.New(corsConfig))

	h := &handlers{surface: deps.Surface}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// ----- 无需认证的路由 -----
		api.POST("/login", h.login)

		// WebSocket路由，握手身份由客户端声明
		if deps.WebSocket != nil {
			api.GET("/ws", deps.WebSocket)
		}

		// ----- 查询路由 -----
		auth := api.Group("/")
		if cfg.JWT.Required {
			auth.Use(middleware.JWT())
		}
		{
			auth.GET("/users/search", h.searchUsers)
			auth.GET("/users", h.onlineUsers)
			if cfg.Server.DebugRoutes {
				auth.GET("/debug/users", h.allUsers)
			}

			auth.GET("/messages/:userId", h.inbox)
			auth.GET("/conversations/:userIdA/:userIdB", h.conversation)
			auth.POST("/conversations/:userId/:peerId/read", h.markRead)

			auth.GET("/friend-requests/:userId", h.friendRequests)
			auth.GET("/friends/:userId", h.friends)
		}
	}

	return r
}
