package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"chatrelay/internal/config"
	"chatrelay/internal/database"
	"chatrelay/internal/redisclient"
	"chatrelay/internal/server"
	"chatrelay/internal/service"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 查询接口与 WebSocket 网关",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.GlobalConfig

	// 初始化数据库
	db, err := database.InitDB()
	if err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取数据库连接失败: %w", err)
	}
	defer sqlDB.Close()
	log.Println("数据库初始化成功")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis 可选，失败时只关闭状态镜像
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		log.Printf("连接Redis: %s, 数据库: %d", cfg.RedisAddr(), cfg.Redis.DB)
		redisClient, err = redisclient.Connect(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Printf("警告: Redis 初始化失败: %v", err)
			log.Printf("系统将在无Redis的情况下继续运行，在线状态不会同步到Redis")
		} else {
			defer redisClient.Close()
			log.Println("Redis 初始化成功")
		}
	}

	serviceMgr := service.NewManager(cfg, db, redisClient)
	serviceMgr.Start(ctx)

	tlsConfig := server.NewTLSConfig(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, cfg.Server.TLS.Enabled)
	if err := tlsConfig.ValidateCertificates(); err != nil {
		log.Printf("TLS证书验证失败，回退到HTTP模式: %v", err)
		tlsConfig = server.NewTLSConfig("", "", false)
	}

	srv := tlsConfig.NewHTTPServer(serviceMgr.Router(), ":"+strconv.Itoa(cfg.Server.Port))
	errCh := make(chan error, 1)
	go func() {
		errCh <- tlsConfig.ListenAndServe(srv)
	}()

	// 等待退出信号
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceMgr.Shutdown()
			return fmt.Errorf("服务器启动失败: %w", err)
		}
	}

	log.Println("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP 服务器关闭失败: %v", err)
	}
	serviceMgr.Shutdown()

	log.Println("服务器已安全关闭")
	return nil
}
