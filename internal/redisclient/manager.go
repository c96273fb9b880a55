package redisclient

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Options Redis 连接参数
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect 创建 Redis 客户端并测试连接，失败时关闭客户端
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// 测试连接
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redis连接失败(%s): %w", opts.Addr, err)
	}

	log.Printf("Redis连接成功: %s, 数据库: %d", opts.Addr, opts.DB)
	return client, nil
}
