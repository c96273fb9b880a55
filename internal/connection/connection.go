package connection

import (
	"errors"
	"time"

	"chatrelay/internal/protocol"
)

// Connection 表示一个与客户端的实时连接
//
// Push 是尽力而为的推送：不等待确认，缓冲区满或连接关闭时返回错误，调用方只记录日志。
type Connection interface {
	// ID 连接句柄
	ID() string

	// Push 推送事件到客户端
	Push(evt *protocol.Event) error

	// UserID 连接绑定的用户，未绑定时为空
	UserID() string

	// BindUser 绑定用户身份
	BindUser(userID string)

	// Close 关闭连接
	Close() error

	// Done 连接关闭后关闭的通道
	Done() <-chan struct{}
}

// Connection timeout and heartbeat defaults
const (
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	MaxMessageSize = 64 * 1024
	SendBuffer     = 256
)

// Common error definitions
var (
	ErrConnectionBufferFull = errors.New("发送缓冲区已满")
	ErrConnectionClosed     = errors.New("连接已关闭")
)

// Options 连接参数
type Options struct {
	SendBuffer     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
}

// DefaultOptions 默认连接参数
func DefaultOptions() Options {
	return Options{
		SendBuffer:     SendBuffer,
		MaxMessageSize: MaxMessageSize,
		WriteWait:      WriteWait,
		PongWait:       PongWait,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	return o
}

// PingPeriod 发送 ping 的周期，必须小于 PongWait
func (o Options) PingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}
